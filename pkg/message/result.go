// Package message defines the content contract at the agent-runtime
// boundary. Tool results arrive either as a plain string or as a list of
// content blocks; Normalize folds both wire shapes into one tagged union so
// call sites never inspect runtime types.
package message

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrMalformedContent is returned when a payload is neither a JSON string
// nor a block list.
var ErrMalformedContent = errors.New("message: malformed content")

// BlockType discriminates the variant stored in a ContentBlock.
type BlockType string

// Supported block types.
const (
	BlockText  BlockType = "text"
	BlockImage BlockType = "image"
	BlockJSON  BlockType = "json"
)

// ContentBlock is a flat union representing one piece of result content.
// The Type field discriminates which fields are meaningful.
type ContentBlock struct {
	Type     BlockType       `json:"type"`
	Text     string          `json:"text,omitempty"`
	URL      string          `json:"url,omitempty"`
	MIMEType string          `json:"mime_type,omitempty"`
	Data     json.RawMessage `json:"data,omitempty"`
}

// NewTextBlock creates a text content block.
func NewTextBlock(text string) ContentBlock {
	return ContentBlock{Type: BlockText, Text: text}
}

// NewImageBlock creates an image content block.
func NewImageBlock(url, mimeType string) ContentBlock {
	return ContentBlock{Type: BlockImage, URL: url, MIMEType: mimeType}
}

// NewJSONBlock creates a block carrying opaque structured data.
func NewJSONBlock(data json.RawMessage) ContentBlock {
	cp := make(json.RawMessage, len(data))
	copy(cp, data)
	return ContentBlock{Type: BlockJSON, Data: cp}
}

// Kind discriminates the Result union.
type Kind string

// Result kinds.
const (
	KindText   Kind = "text"
	KindBlocks Kind = "blocks"
)

// Result is a flat union; Kind discriminates which field is meaningful.
type Result struct {
	Kind   Kind           `json:"kind"`
	Text   string         `json:"text,omitempty"`
	Blocks []ContentBlock `json:"blocks,omitempty"`
}

// TextResult wraps a plain string.
func TextResult(text string) Result {
	return Result{Kind: KindText, Text: text}
}

// BlockListResult wraps an explicit block list.
func BlockListResult(blocks ...ContentBlock) Result {
	return Result{Kind: KindBlocks, Blocks: blocks}
}

// MarshalJSON implements json.Marshaler. It enforces union semantics: a text
// result never carries blocks and a block result never carries text.
func (r Result) MarshalJSON() ([]byte, error) {
	type alias Result
	normalized := r
	switch normalized.Kind {
	case KindText:
		normalized.Blocks = nil
	case KindBlocks:
		normalized.Text = ""
	}
	return json.Marshal(alias(normalized))
}

// Normalize parses a raw payload that may be a JSON string or a JSON array
// of content blocks. Anything else is ErrMalformedContent. This is the only
// place the loose wire shape is inspected.
func Normalize(raw json.RawMessage) (Result, error) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" {
		return TextResult(""), nil
	}

	switch trimmed[0] {
	case '"':
		var text string
		if err := json.Unmarshal(raw, &text); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformedContent, err)
		}
		return TextResult(text), nil

	case '[':
		var blocks []ContentBlock
		if err := json.Unmarshal(raw, &blocks); err != nil {
			return Result{}, fmt.Errorf("%w: %v", ErrMalformedContent, err)
		}
		for i, b := range blocks {
			if !b.Type.valid() {
				return Result{}, fmt.Errorf("%w: block %d has unknown type %q", ErrMalformedContent, i, b.Type)
			}
		}
		return BlockListResult(blocks...), nil

	default:
		return Result{}, fmt.Errorf("%w: expected string or block list", ErrMalformedContent)
	}
}

// FromToolOutput converts a tool's output string. Output that parses as a
// block list becomes KindBlocks; everything else is plain text.
func FromToolOutput(content string) Result {
	trimmed := strings.TrimSpace(content)
	if strings.HasPrefix(trimmed, "[") {
		if result, err := Normalize(json.RawMessage(trimmed)); err == nil {
			return result
		}
	}
	return TextResult(content)
}

// Flatten returns the canonical block list for either variant. A text result
// becomes a single text block.
func (r Result) Flatten() []ContentBlock {
	if r.Kind == KindText {
		return []ContentBlock{NewTextBlock(r.Text)}
	}
	return r.Blocks
}

// PlainText concatenates the text of all text blocks, separated by newlines.
func (r Result) PlainText() string {
	if r.Kind == KindText {
		return r.Text
	}
	var b strings.Builder
	for _, block := range r.Blocks {
		if block.Type == BlockText && block.Text != "" {
			if b.Len() > 0 {
				b.WriteByte('\n')
			}
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

func (t BlockType) valid() bool {
	switch t {
	case BlockText, BlockImage, BlockJSON:
		return true
	default:
		return false
	}
}
