package models

import "time"

// DocumentType discriminates what a document's content holds.
type DocumentType string

const (
	TypeText    DocumentType = "document"
	TypeDrawing DocumentType = "excalidraw"
	TypeTabular DocumentType = "database"
)

// Valid reports whether t is one of the known document types.
func (t DocumentType) Valid() bool {
	switch t {
	case TypeText, TypeDrawing, TypeTabular:
		return true
	}
	return false
}

// Config holds per-document display options.
type Config struct {
	FullWidth        bool   `json:"full_width,omitempty"`
	Icon             string `json:"icon,omitempty"`
	Lock             bool   `json:"lock,omitempty"`
	HeaderBackground string `json:"header_background,omitempty"`
}

// Member grants a user or group access to a space or document.
type Member struct {
	ID     string `json:"id"`
	Type   string `json:"type"`
	Access string `json:"access"`
}

// Document is a node of a space's document tree.
//
// Content is nil in listings. A document held as the open document always has
// non-nil Content once it has been normalized.
type Document struct {
	ID        DocumentID   `json:"id"`
	Name      string       `json:"name"`
	SpaceID   SpaceID      `json:"space_id"`
	ParentID  DocumentID   `json:"parent_id,omitempty"`
	Type      DocumentType `json:"type"`
	Slug      string       `json:"slug,omitempty"`
	Config    Config       `json:"config"`
	Public    bool         `json:"public,omitempty"`
	Members   []Member     `json:"members,omitempty"`
	Content   *string      `json:"content,omitempty"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
}

// WithoutContent returns a copy of d with Content dropped, as stored in listings.
func (d Document) WithoutContent() Document {
	d.Content = nil
	return d
}

// WithContent returns a copy of d carrying content.
func (d Document) WithContent(content *string) Document {
	d.Content = content
	return d
}

// Body decodes the document's content into its typed variant.
func (d Document) Body() (Content, error) {
	return DecodeContent(d.Type, d.Content)
}

// CreateDocumentParams is the body of a create-document request.
type CreateDocumentParams struct {
	Name     string       `json:"name"`
	SpaceID  SpaceID      `json:"space_id"`
	ParentID DocumentID   `json:"parent_id,omitempty"`
	Type     DocumentType `json:"type,omitempty"`
	Content  *string      `json:"content,omitempty"`
}

// DocumentPatch is a partial update. Nil fields are not sent.
type DocumentPatch struct {
	ID      DocumentID `json:"id"`
	Name    *string    `json:"name,omitempty"`
	SpaceID SpaceID    `json:"space_id,omitempty"`
	Content *string    `json:"content,omitempty"`
	Config  *Config    `json:"config,omitempty"`
}
