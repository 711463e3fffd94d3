package content

import (
	"regexp"

	"github.com/microcosm-cc/bluemonday"
)

var classNames = regexp.MustCompile(`^[\w\s:-]+$`)

// lessonPolicy allows exactly the markup the pipeline emits.
func lessonPolicy() *bluemonday.Policy {
	p := bluemonday.NewPolicy()
	p.AllowStandardURLs()
	p.AllowElements("strong", "em", "u", "pre", "code", "ul", "li", "br", "p")
	p.AllowAttrs("class").Matching(classNames).Globally()
	p.AllowAttrs("src", "alt").OnElements("img")
	p.AllowAttrs("src", "controls").OnElements("video")
	return p
}

// Renderer renders lesson content, optionally passing the result through an HTML sanitizer.
// A Renderer is safe for concurrent use.
type Renderer struct {
	policy *bluemonday.Policy
}

// NewRenderer returns a Renderer. With sanitize set, any markup the pipeline does not
// emit itself (scripts, event handlers, unknown tags) is stripped from the output.
func NewRenderer(sanitize bool) *Renderer {
	r := new(Renderer)
	if sanitize {
		r.policy = lessonPolicy()
	}
	return r
}

func (r *Renderer) Sanitizes() bool { return r.policy != nil }

func (r *Renderer) Render(c *Content) string {
	return r.finish(Render(c))
}

func (r *Renderer) RenderText(text string) string {
	return r.finish(RenderText(text))
}

func (r *Renderer) RenderJSON(raw []byte) string {
	return r.finish(RenderJSON(raw))
}

func (r *Renderer) finish(html string) string {
	if r.policy == nil || html == Placeholder {
		return html
	}
	return r.policy.Sanitize(html)
}
