package content

import (
	"database/sql/driver"
	"encoding/json"

	"github.com/pkg/errors"
)

// Content is the stored lesson content record: `{"text": "..."}`.
// A nil *Content and a nil Text both mean "no content".
type Content struct {
	Text *string `json:"text"`
}

// New returns a Content holding text.
func New(text string) *Content {
	return &Content{Text: &text}
}

// IsEmpty reports whether there is no text to render.
func (c *Content) IsEmpty() bool {
	return c == nil || c.Text == nil || *c.Text == ""
}

// String returns the raw text, or "" for empty content.
func (c *Content) String() string {
	if c.IsEmpty() {
		return ""
	}
	return *c.Text
}

// Scan implements sql.Scanner for JSONB columns.
// Values with an unexpected shape scan as empty content.
func (c *Content) Scan(src interface{}) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		c.Text = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return errors.Errorf("content: cannot scan %T", src)
	}

	dec, ok := Decode(raw)
	if !ok || dec == nil {
		c.Text = nil
		return nil
	}
	c.Text = dec.Text
	return nil
}

// Value implements driver.Valuer.
func (c *Content) Value() (driver.Value, error) {
	if c == nil {
		return nil, nil
	}
	b, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	return string(b), nil // []byte would be sent as bytea
}

// Decode parses a raw JSON content record. ok is false when raw has an unexpected shape.
func Decode(raw []byte) (c *Content, ok bool) {
	if len(raw) == 0 {
		return nil, true
	}
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil, false
	}
	if obj == nil { // JSON null
		return nil, true
	}
	rawText, found := obj["text"]
	if !found {
		return &Content{}, true
	}
	var text *string
	if err := json.Unmarshal(rawText, &text); err != nil {
		return nil, false
	}
	return &Content{Text: text}, true
}
