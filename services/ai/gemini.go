package aisvc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/courselogic/core"
	"github.com/trezcool/courselogic/core/coursegen"
)

const (
	temperature   = 0.7
	maxRetryAfter = 10 * time.Second
)

// ErrNoCandidate is returned when the model answered without any text.
var ErrNoCandidate = errors.New("gemini: empty response")

type (
	// Gemini generates JSON documents with the Gemini `generateContent` API.
	Gemini struct {
		apiKey     string
		baseURL    string
		model      string
		maxRetries int
		httpClient *http.Client
		logger     core.Logger

		initialBackoff time.Duration
	}

	HTTPError struct {
		StatusCode int
		Body       string
		RetryAfter time.Duration
	}

	part struct {
		Text string `json:"text"`
	}

	content struct {
		Role  string `json:"role,omitempty"`
		Parts []part `json:"parts"`
	}

	generationConfig struct {
		Temperature      float64 `json:"temperature"`
		ResponseMimeType string  `json:"responseMimeType"`
	}

	generateRequest struct {
		SystemInstruction content          `json:"systemInstruction"`
		Contents          []content        `json:"contents"`
		GenerationConfig  generationConfig `json:"generationConfig"`
	}

	generateResponse struct {
		Candidates []struct {
			Content      content `json:"content"`
			FinishReason string  `json:"finishReason"`
		} `json:"candidates"`
	}
)

var _ coursegen.Generator = (*Gemini)(nil)

func (e *HTTPError) Error() string {
	return fmt.Sprintf("gemini http %d: %s", e.StatusCode, e.Body)
}

func NewGemini(conf *core.Config, logger core.Logger) *Gemini {
	return &Gemini{
		apiKey:         conf.AI.APIKey,
		baseURL:        strings.TrimRight(conf.AI.BaseURL, "/"),
		model:          conf.AI.Model,
		maxRetries:     conf.AI.MaxRetries,
		httpClient:     &http.Client{Timeout: conf.AI.Timeout},
		logger:         logger,
		initialBackoff: time.Second,
	}
}

// Generate asks the model for a JSON document matching schema and returns its text.
// Rate limits, server errors and network failures are retried with exponential backoff.
func (g *Gemini) Generate(ctx context.Context, system, prompt string, schema []byte) ([]byte, error) {
	if g.apiKey == "" {
		return nil, errors.New("gemini: missing API key")
	}

	instruction := system
	if len(schema) > 0 {
		instruction += "\nThe response must be valid JSON matching this JSON schema:\n" + string(schema)
	}
	body := generateRequest{
		SystemInstruction: content{Parts: []part{{Text: instruction}}},
		Contents:          []content{{Role: "user", Parts: []part{{Text: prompt}}}},
		GenerationConfig: generationConfig{
			Temperature:      temperature,
			ResponseMimeType: "application/json",
		},
	}

	var resp generateResponse
	if err := g.doWithRetry(ctx, body, &resp); err != nil {
		return nil, err
	}
	for _, cand := range resp.Candidates {
		var text strings.Builder
		for _, p := range cand.Content.Parts {
			text.WriteString(p.Text)
		}
		if strings.TrimSpace(text.String()) != "" {
			return []byte(text.String()), nil
		}
	}
	return nil, ErrNoCandidate
}

func (g *Gemini) path() string {
	return fmt.Sprintf("/v1beta/models/%s:generateContent", g.model)
}

func (g *Gemini) doOnce(ctx context.Context, body interface{}) ([]byte, error) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+g.path(), &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", g.apiKey)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	raw, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &HTTPError{
			StatusCode: resp.StatusCode,
			Body:       string(raw),
			RetryAfter: retryAfter(resp),
		}
	}
	return raw, nil
}

// hintedBackOff uses the server's Retry-After hint, when there is one, for the next wait.
type hintedBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *hintedBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop || b.hint <= 0 {
		return next
	}
	next, b.hint = b.hint, 0
	if next > maxRetryAfter {
		next = maxRetryAfter
	}
	return next
}

func (g *Gemini) newBackOff() *hintedBackOff {
	if g.maxRetries <= 0 {
		return &hintedBackOff{BackOff: &backoff.StopBackOff{}}
	}
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = g.initialBackoff
	exp.RandomizationFactor = 0.2
	exp.Multiplier = 2
	exp.MaxInterval = maxRetryAfter
	exp.MaxElapsedTime = 0
	return &hintedBackOff{BackOff: backoff.WithMaxRetries(exp, uint64(g.maxRetries))}
}

func (g *Gemini) doWithRetry(ctx context.Context, body interface{}, out interface{}) error {
	bo := g.newBackOff()
	attempt := 0

	op := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++

		raw, err := g.doOnce(ctx, body)
		if err != nil {
			if !isRetryable(ctx, err) {
				return backoff.Permanent(err)
			}
			var herr *HTTPError
			if errors.As(err, &herr) {
				bo.hint = herr.RetryAfter
			}
			return err
		}
		if err = json.Unmarshal(raw, out); err != nil {
			return backoff.Permanent(errors.Wrapf(err, "gemini: decoding response %s", raw))
		}
		return nil
	}
	notify := func(err error, wait time.Duration) {
		g.logger.Warn(fmt.Sprintf("gemini request retrying (attempt %d/%d, sleep %s): %v", attempt, g.maxRetries, wait, err))
	}

	return backoff.RetryNotify(op, backoff.WithContext(bo, ctx), notify)
}

func isRetryable(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return false
	}
	var herr *HTTPError
	if errors.As(err, &herr) {
		code := herr.StatusCode
		return code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500
	}
	var nerr net.Error
	if errors.As(err, &nerr) {
		return true
	}
	return errors.Is(err, io.ErrUnexpectedEOF)
}

func retryAfter(resp *http.Response) time.Duration {
	ra := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return 0
}
