package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/austinmjames/digital-library-core-sub002/internal/ref"
)

// Content is the text of one side (source or target language) of a verse.
// It is either PlainContent or StructuredContent, decided once when the
// verse is decoded.
type Content interface {
	Text() string
	isContent()
}

// PlainContent is the legacy schema: a bare string.
type PlainContent string

func (c PlainContent) Text() string { return string(c) }
func (PlainContent) isContent()      {}

// Span is one run of structured content.
type Span struct {
	Kind string `json:"kind,omitempty"`
	Text string `json:"text"`
}

// StructuredContent is the current schema: ordered spans.
type StructuredContent struct {
	Spans []Span `json:"spans"`
}

func (c StructuredContent) Text() string {
	var sb strings.Builder
	for _, s := range c.Spans {
		sb.WriteString(s.Text)
	}
	return sb.String()
}

func (StructuredContent) isContent() {}

// DecodeContent resolves a raw JSON value into a Content. Strings become
// PlainContent; an object with spans or a bare array of spans becomes
// StructuredContent. Null and empty input decode to empty PlainContent.
func DecodeContent(raw json.RawMessage) (Content, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return PlainContent(""), nil
	}

	switch raw[0] {
	case '"':
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return nil, err
		}
		return PlainContent(s), nil
	case '[':
		var spans []Span
		if err := json.Unmarshal(raw, &spans); err != nil {
			return nil, err
		}
		return StructuredContent{Spans: spans}, nil
	case '{':
		var sc StructuredContent
		if err := json.Unmarshal(raw, &sc); err != nil {
			return nil, err
		}
		return sc, nil
	}
	return nil, fmt.Errorf("unsupported content shape: %.20s", raw)
}

// EncodeContent is the inverse of DecodeContent.
func EncodeContent(c Content) (json.RawMessage, error) {
	switch v := c.(type) {
	case nil:
		return json.RawMessage(`""`), nil
	case PlainContent:
		return json.Marshal(string(v))
	case StructuredContent:
		return json.Marshal(v)
	}
	return nil, fmt.Errorf("unsupported content type %T", c)
}

// Verse is one segment of a chapter.
type Verse struct {
	ID     string
	Index  int
	Source Content
	Target Content
}

type verseJSON struct {
	ID     string          `json:"id"`
	Index  int             `json:"index"`
	Source json.RawMessage `json:"source"`
	Target json.RawMessage `json:"target"`
}

func (v *Verse) UnmarshalJSON(b []byte) error {
	var aux verseJSON
	if err := json.Unmarshal(b, &aux); err != nil {
		return err
	}
	src, err := DecodeContent(aux.Source)
	if err != nil {
		return fmt.Errorf("verse %s source: %w", aux.ID, err)
	}
	tgt, err := DecodeContent(aux.Target)
	if err != nil {
		return fmt.Errorf("verse %s target: %w", aux.ID, err)
	}
	*v = Verse{ID: aux.ID, Index: aux.Index, Source: src, Target: tgt}
	return nil
}

func (v Verse) MarshalJSON() ([]byte, error) {
	src, err := EncodeContent(v.Source)
	if err != nil {
		return nil, err
	}
	tgt, err := EncodeContent(v.Target)
	if err != nil {
		return nil, err
	}
	return json.Marshal(verseJSON{ID: v.ID, Index: v.Index, Source: src, Target: tgt})
}

// Chapter is a fetched unit of content. NextRef and PrevRef are empty at
// corpus boundaries. Chapters are treated as immutable once built.
type Chapter struct {
	ID                string            `json:"id"`
	Ref               string            `json:"ref"`
	Book              string            `json:"book"`
	ChapterNumber     string            `json:"chapter_number"`
	Collection        string            `json:"collection"`
	StructureType     ref.StructureType `json:"structure_type"`
	Verses            []Verse           `json:"verses"`
	NextRef           string            `json:"next_ref,omitempty"`
	PrevRef           string            `json:"prev_ref,omitempty"`
	ActiveTranslation string            `json:"active_translation,omitempty"`
}

// HasNext reports whether the chapter has a successor.
func (c *Chapter) HasNext() bool { return c != nil && c.NextRef != "" }

// HasPrev reports whether the chapter has a predecessor.
func (c *Chapter) HasPrev() bool { return c != nil && c.PrevRef != "" }

// Display returns the human readable form of the chapter locator.
func (c *Chapter) Display() string {
	return ref.ToDisplay(c.Ref)
}

// Translation describes a translation layer offered by a fetch service.
type Translation struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Language string `json:"language,omitempty"`
}
