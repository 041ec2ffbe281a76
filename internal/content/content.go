// Package content models admin-editable rich content as a list of typed
// blocks. Reads are lenient: malformed stored JSON becomes an empty document
// and unknown block types are kept as Raw. Writes are strict: see ParseStrict
// and Document.Validate.
package content

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
)

type Kind string

const (
	KindParagraph Kind = "paragraph"
	KindHeading   Kind = "heading"
	KindList      Kind = "list"
	KindImage     Kind = "image"
	KindQuote     Kind = "quote"
	KindCallout   Kind = "callout"
	KindRaw       Kind = "raw"
)

type Block interface {
	Kind() Kind
	validate() error
}

type Paragraph struct {
	Text string `json:"text"`
}

type Heading struct {
	Level int    `json:"level"`
	Text  string `json:"text"`
}

type List struct {
	Ordered bool     `json:"ordered"`
	Items   []string `json:"items"`
}

type Image struct {
	URL string `json:"url"`
	Alt string `json:"alt,omitempty"`
}

type Quote struct {
	Text string `json:"text"`
	Cite string `json:"cite,omitempty"`
}

type Callout struct {
	Variant string `json:"variant"`
	Text    string `json:"text"`
}

// Raw holds a block whose type is unknown, or whose fields did not decode.
type Raw struct {
	Type    string
	Payload json.RawMessage
}

func (Paragraph) Kind() Kind { return KindParagraph }
func (Heading) Kind() Kind   { return KindHeading }
func (List) Kind() Kind      { return KindList }
func (Image) Kind() Kind     { return KindImage }
func (Quote) Kind() Kind     { return KindQuote }
func (Callout) Kind() Kind   { return KindCallout }
func (Raw) Kind() Kind       { return KindRaw }

var calloutVariants = map[string]bool{"info": true, "warning": true, "success": true}

var knownKinds = map[Kind]bool{
	KindParagraph: true,
	KindHeading:   true,
	KindList:      true,
	KindImage:     true,
	KindQuote:     true,
	KindCallout:   true,
}

func (b Paragraph) validate() error {
	return requireText(b.Text)
}

func (b Heading) validate() error {
	if b.Level < 1 || b.Level > 4 {
		return fmt.Errorf("level must be between 1 and 4")
	}
	return requireText(b.Text)
}

func (b List) validate() error {
	if len(b.Items) == 0 {
		return fmt.Errorf("at least one item is required")
	}
	for i, item := range b.Items {
		if strings.TrimSpace(item) == "" {
			return fmt.Errorf("item %d is blank", i)
		}
	}
	return nil
}

func (b Image) validate() error {
	u, err := url.Parse(b.URL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("url must be an absolute http(s) url")
	}
	return nil
}

func (b Quote) validate() error {
	return requireText(b.Text)
}

func (b Callout) validate() error {
	if !calloutVariants[b.Variant] {
		return fmt.Errorf("unknown variant %q", b.Variant)
	}
	return requireText(b.Text)
}

func (b Raw) validate() error {
	if strings.TrimSpace(b.Type) == "" {
		return fmt.Errorf("type is required")
	}
	if knownKinds[Kind(b.Type)] {
		return fmt.Errorf("fields do not match the %s block", b.Type)
	}
	trimmed := bytes.TrimSpace(b.Payload)
	if len(trimmed) == 0 || trimmed[0] != '{' || !json.Valid(trimmed) {
		return fmt.Errorf("payload must be a json object")
	}
	return nil
}

func requireText(s string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("text is required")
	}
	return nil
}

// Document is an ordered list of blocks. Its JSON form is an array of objects
// discriminated by "type".
type Document []Block

func (d Document) MarshalJSON() ([]byte, error) {
	out := make([]json.RawMessage, 0, len(d))
	for _, b := range d {
		raw, err := marshalBlock(b)
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
	return json.Marshal(out)
}

// UnmarshalJSON never fails: stored content that cannot be read renders as an
// empty document.
func (d *Document) UnmarshalJSON(data []byte) error {
	*d = Parse(data)
	return nil
}

// Parse reads stored content. Double-encoded documents (a JSON string holding
// the array) are accepted.
func Parse(data []byte) Document {
	doc, err := decode(data)
	if err != nil {
		return Document{}
	}
	return doc
}

// ParseStrict reads content submitted for writing and validates it.
func ParseStrict(data []byte) (Document, error) {
	doc, err := decode(data)
	if err != nil {
		return nil, err
	}
	if err := doc.Validate(); err != nil {
		return nil, err
	}
	return doc, nil
}

// Validate checks every block against its shape.
func (d Document) Validate() error {
	var errs Errors
	for i, b := range d {
		if b == nil {
			errs = append(errs, BlockError{Index: i, Reason: "empty block"})
			continue
		}
		if err := b.validate(); err != nil {
			errs = append(errs, BlockError{Index: i, Kind: b.Kind(), Reason: err.Error()})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PlainText joins the textual content of the document, one block per line.
func (d Document) PlainText() string {
	lines := make([]string, 0, len(d))
	for _, b := range d {
		switch v := b.(type) {
		case Paragraph:
			lines = append(lines, v.Text)
		case Heading:
			lines = append(lines, v.Text)
		case List:
			lines = append(lines, strings.Join(v.Items, "\n"))
		case Quote:
			lines = append(lines, v.Text)
		case Callout:
			lines = append(lines, v.Text)
		}
	}
	return strings.Join(lines, "\n")
}

func decode(data []byte) (Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return Document{}, nil
	}
	if data[0] == '"' {
		var inner string
		if err := json.Unmarshal(data, &inner); err != nil {
			return nil, fmt.Errorf("decode content: %w", err)
		}
		return decode([]byte(inner))
	}

	var items []json.RawMessage
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("decode content: %w", err)
	}

	doc := make(Document, 0, len(items))
	for _, item := range items {
		doc = append(doc, decodeBlock(item))
	}
	return doc, nil
}

func decodeBlock(item json.RawMessage) Block {
	var head struct {
		Type string `json:"type"`
	}
	_ = json.Unmarshal(item, &head)

	var (
		b   Block
		err error
	)
	switch Kind(head.Type) {
	case KindParagraph:
		var v Paragraph
		err = json.Unmarshal(item, &v)
		b = v
	case KindHeading:
		var v Heading
		err = json.Unmarshal(item, &v)
		b = v
	case KindList:
		var v List
		err = json.Unmarshal(item, &v)
		b = v
	case KindImage:
		var v Image
		err = json.Unmarshal(item, &v)
		b = v
	case KindQuote:
		var v Quote
		err = json.Unmarshal(item, &v)
		b = v
	case KindCallout:
		var v Callout
		err = json.Unmarshal(item, &v)
		b = v
	default:
		return Raw{Type: head.Type, Payload: append(json.RawMessage(nil), item...)}
	}
	if err != nil {
		return Raw{Type: head.Type, Payload: append(json.RawMessage(nil), item...)}
	}
	return b
}

func marshalBlock(b Block) (json.RawMessage, error) {
	if raw, ok := b.(Raw); ok {
		if len(raw.Payload) == 0 {
			return json.Marshal(map[string]string{"type": raw.Type})
		}
		return raw.Payload, nil
	}

	fields, err := json.Marshal(b)
	if err != nil {
		return nil, fmt.Errorf("marshal %s block: %w", b.Kind(), err)
	}
	var m map[string]interface{}
	if err := json.Unmarshal(fields, &m); err != nil {
		return nil, fmt.Errorf("marshal %s block: %w", b.Kind(), err)
	}
	m["type"] = string(b.Kind())
	return json.Marshal(m)
}

type BlockError struct {
	Index  int
	Kind   Kind
	Reason string
}

func (e BlockError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("block %d: %s", e.Index, e.Reason)
	}
	return fmt.Sprintf("block %d (%s): %s", e.Index, e.Kind, e.Reason)
}

type Errors []BlockError

func (e Errors) Error() string {
	msgs := make([]string, len(e))
	for i, be := range e {
		msgs[i] = be.Error()
	}
	return "invalid content: " + strings.Join(msgs, "; ")
}
