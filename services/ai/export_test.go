package aisvc

import "time"

func (g *Gemini) SetInitialBackoff(d time.Duration) {
	g.initialBackoff = d
}
