package models

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/buger/jsonparser"
	"github.com/goccy/go-json"
)

// DefaultCanvasJSON is the content given to drawings that have none.
const DefaultCanvasJSON = `{"elements":[],"appState":{"viewBackgroundColor":"#ffffff","currentItemFontFamily":1,"gridSize":20},"files":{}}`

const (
	fieldElements = "elements"
	fieldAppState = "appState"
	fieldFiles    = "files"
)

var (
	defaultElements = json.RawMessage(`[]`)
	defaultAppState = json.RawMessage(`{"viewBackgroundColor":"#ffffff","currentItemFontFamily":1,"gridSize":20}`)
	defaultFiles    = json.RawMessage(`{}`)
)

// Content is the typed payload of a document. The variant is chosen by the
// document type.
type Content interface {
	Type() DocumentType
	// Encode returns the wire form of the content.
	Encode() string
}

// TextContent is the rich text body of a TypeText document.
type TextContent struct {
	Text string
}

func (TextContent) Type() DocumentType { return TypeText }
func (c TextContent) Encode() string   { return c.Text }

// TabularContent is the opaque body of a TypeTabular document.
type TabularContent struct {
	Raw string
}

func (TabularContent) Type() DocumentType { return TypeTabular }
func (c TabularContent) Encode() string   { return c.Raw }

// CanvasContent is the body of a TypeDrawing document. Each field holds the
// raw JSON of that member so elements and files round-trip untouched.
type CanvasContent struct {
	Elements json.RawMessage `json:"elements"`
	AppState json.RawMessage `json:"appState"`
	Files    json.RawMessage `json:"files"`
}

// DefaultCanvas returns an empty drawing with the default application state.
func DefaultCanvas() CanvasContent {
	return CanvasContent{
		Elements: clone(defaultElements),
		AppState: clone(defaultAppState),
		Files:    clone(defaultFiles),
	}
}

func (CanvasContent) Type() DocumentType { return TypeDrawing }

func (c CanvasContent) Encode() string {
	var b bytes.Buffer
	b.WriteString(`{"elements":`)
	b.Write(orDefault(c.Elements, defaultElements))
	b.WriteString(`,"appState":`)
	b.Write(orDefault(c.AppState, defaultAppState))
	b.WriteString(`,"files":`)
	b.Write(orDefault(c.Files, defaultFiles))
	b.WriteByte('}')
	return b.String()
}

// ElementCount returns the number of drawing elements.
func (c CanvasContent) ElementCount() int {
	n := 0
	_, _ = jsonparser.ArrayEach(c.Elements, func([]byte, jsonparser.ValueType, int, error) {
		n++
	})
	return n
}

// DecodeContent decodes raw strictly. Absent text content decodes to an empty
// TextContent; absent drawing content decodes to DefaultCanvas. Malformed
// drawing content is an error; see NormalizeContent for the repairing variant.
func DecodeContent(t DocumentType, raw *string) (Content, error) {
	switch t {
	case TypeDrawing:
		if isAbsent(raw) {
			return DefaultCanvas(), nil
		}
		c, repairs := parseCanvas([]byte(*raw))
		if len(repairs) > 0 {
			return nil, repairs[0]
		}
		return c, nil
	case TypeTabular:
		return TabularContent{Raw: deref(raw)}, nil
	default:
		return TextContent{Text: deref(raw)}, nil
	}
}

// Normalized is the outcome of NormalizeContent.
type Normalized struct {
	Content Content
	// Encoded is the wire form to hold as the document's content.
	Encoded string
	// Synthesized is set when absent drawing content was replaced by the
	// default and the result should be written back to the server.
	Synthesized bool
	// Repairs lists the drawing fields that were replaced.
	Repairs []*ShapeError
}

// NormalizeContent returns well-formed content for a document of type t.
//
// Text and tabular content that is absent becomes the empty string. Drawing
// content that is absent or the literal null becomes DefaultCanvas and is
// marked Synthesized. Drawing content that does not parse is reset to the
// default. Otherwise each of the three canvas fields is checked on its own and
// only the fields with the wrong shape are replaced; content that passes is
// kept byte for byte.
func NormalizeContent(t DocumentType, raw *string) Normalized {
	if t != TypeDrawing {
		c, _ := DecodeContent(t, raw)
		return Normalized{Content: c, Encoded: c.Encode()}
	}

	if isAbsent(raw) {
		c := DefaultCanvas()
		return Normalized{Content: c, Encoded: c.Encode(), Synthesized: true}
	}

	data := []byte(*raw)
	if !json.Valid(data) {
		c := DefaultCanvas()
		return Normalized{
			Content: c,
			Encoded: c.Encode(),
			Repairs: []*ShapeError{{Field: "content", Reason: "not valid JSON"}},
		}
	}

	c, repairs := parseCanvas(data)
	if len(repairs) == 0 {
		return Normalized{Content: c, Encoded: *raw}
	}
	return Normalized{Content: c, Encoded: c.Encode(), Repairs: repairs}
}

// parseCanvas extracts the three canvas fields from valid JSON, substituting
// the default for each field that is missing or has the wrong type.
func parseCanvas(data []byte) (CanvasContent, []*ShapeError) {
	var (
		c       CanvasContent
		repairs []*ShapeError
	)
	check := func(field string, want jsonparser.ValueType, def json.RawMessage) json.RawMessage {
		value, got, _, err := jsonparser.Get(data, field)
		if err == nil && got == want {
			return clone(value)
		}
		reason := "missing"
		if err == nil {
			reason = fmt.Sprintf("expected %s, got %s", want, got)
		}
		repairs = append(repairs, &ShapeError{Field: field, Reason: reason})
		return clone(def)
	}
	c.Elements = check(fieldElements, jsonparser.Array, defaultElements)
	c.AppState = check(fieldAppState, jsonparser.Object, defaultAppState)
	c.Files = check(fieldFiles, jsonparser.Object, defaultFiles)
	return c, repairs
}

func isAbsent(raw *string) bool {
	if raw == nil {
		return true
	}
	s := strings.TrimSpace(*raw)
	return s == "" || s == "null"
}

func deref(raw *string) string {
	if raw == nil {
		return ""
	}
	return *raw
}

func orDefault(v, def json.RawMessage) json.RawMessage {
	if len(v) == 0 {
		return def
	}
	return v
}

func clone(b []byte) json.RawMessage {
	return append(json.RawMessage(nil), b...)
}
