// Package content turns lesson content written in the authoring dialect into HTML.
//
// The dialect is a handful of markdown-like markers (bold, italic, underline,
// code fences, "• " bullets, images, videos and line breaks). Rendering is a
// fixed, ordered list of regexp substitutions. Each stage runs on the output of
// the previous one, so later stages may match markup emitted earlier. The result
// is not validated and rendering its own output again is not safe.
package content

import (
	"regexp"
	"strings"
)

const (
	// Placeholder is returned for lessons without content.
	Placeholder = `<p class="text-muted-foreground italic">No content available for this lesson.</p>`

	// BlobPlaceholder replaces blob URLs, which only resolve inside the authoring browser session.
	BlobPlaceholder = "/placeholder.svg?height=400&width=600"
)

// stage is one substitution of the rendering pipeline.
type stage struct {
	name        string
	re          *regexp.Regexp
	repl        string
	once        bool // only the first match is replaced
	outsideCode bool // fenced code blocks emitted by the "code" stage are left untouched
}

func (st stage) apply(s string) string {
	if st.outsideCode {
		return applyOutsideCode(s, st.apply0)
	}
	return st.apply0(s)
}

func (st stage) apply0(s string) string {
	if !st.once {
		return st.re.ReplaceAllString(s, st.repl)
	}
	loc := st.re.FindStringSubmatchIndex(s)
	if loc == nil {
		return s
	}
	var dst []byte
	dst = st.re.ExpandString(dst, st.repl, s, loc)
	return s[:loc[0]] + string(dst) + s[loc[1]:]
}

const (
	codeOpen  = `<pre class="bg-muted p-4 rounded-lg overflow-x-auto my-4"><code class="text-secondary-foreground">`
	codeClose = `</code></pre>`
)

// inLine matches any character that does not end a line: CR, LF and the unicode line/paragraph separators all do.
const inLine = `[^\r\n\x{2028}\x{2029}]`

// stages is the rendering pipeline, in order.
var stages = []stage{
	{name: "bold", re: regexp.MustCompile(`\*\*(` + inLine + `*?)\*\*`), repl: `<strong>${1}</strong>`},
	{name: "italic", re: regexp.MustCompile(`\*(` + inLine + `*?)\*`), repl: `<em>${1}</em>`},
	{name: "underline", re: regexp.MustCompile(`__(` + inLine + `*?)__`), repl: `<u>${1}</u>`},
	// a language tag is only recognised when it sits alone on the opening fence line
	{name: "code", re: regexp.MustCompile("```(?:[\\w+#.-]+\\n)?([\\s\\S]*?)```"), repl: codeOpen + `${1}` + codeClose},
	{name: "bullet", re: regexp.MustCompile(`• (` + inLine + `*)`), repl: `<li class='ml-4'>${1}</li>`},
	// greedy: spans from the first item to the last one, whatever lies in between
	{name: "list", re: regexp.MustCompile(`(?s)(<li.*</li>)`), repl: `<ul class='list-disc list-inside space-y-1 my-2'>${1}</ul>`, once: true},
	{name: "image", re: regexp.MustCompile(`!\[([^\]]*)]\((https?://[^\s)]+)\)`), repl: `<img src="${2}" alt="${1}" class="max-w-full rounded-lg" />`},
	{name: "video", re: regexp.MustCompile(`\[Video]\((https?://[^\s)]+)\)`), repl: `<video src="${1}" controls class="max-w-full rounded-lg"></video>`},
	{name: "paragraph", re: regexp.MustCompile(`\n\n`), repl: `<br /><br />`, outsideCode: true},
	{name: "linebreak", re: regexp.MustCompile(`\n`), repl: `<br />`, outsideCode: true},
	{name: "blob", re: regexp.MustCompile(`blob:[^)\s]+`), repl: BlobPlaceholder},
}

// applyOutsideCode applies fn to every part of s that is not a fenced code block.
func applyOutsideCode(s string, fn func(string) string) string {
	if !strings.Contains(s, codeOpen) {
		return fn(s)
	}

	var b strings.Builder
	b.Grow(len(s))
	for {
		start := strings.Index(s, codeOpen)
		if start < 0 {
			b.WriteString(fn(s))
			return b.String()
		}
		end := strings.Index(s[start:], codeClose)
		if end < 0 {
			b.WriteString(fn(s))
			return b.String()
		}
		end += start + len(codeClose)

		b.WriteString(fn(s[:start]))
		b.WriteString(s[start:end])
		s = s[end:]
	}
}

// Render converts content to an HTML fragment. It never fails: empty content renders as Placeholder.
func Render(c *Content) string {
	if c.IsEmpty() {
		return Placeholder
	}
	return RenderText(*c.Text)
}

// RenderText runs the pipeline on text. Empty text renders as Placeholder.
func RenderText(text string) string {
	if text == "" {
		return Placeholder
	}
	for _, st := range stages {
		text = st.apply(text)
	}
	return text
}

// RenderJSON renders a raw JSON content record as stored in the database.
// Anything that is not an object with a string "text" field renders as Placeholder.
func RenderJSON(raw []byte) string {
	c, ok := Decode(raw)
	if !ok {
		return Placeholder
	}
	return Render(c)
}
