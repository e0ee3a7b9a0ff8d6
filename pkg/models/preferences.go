package models

import "slices"

const (
	MinSidebarWidth     = 150
	MaxSidebarWidth     = 600
	DefaultSidebarWidth = 256
)

// UIPreferences is the in-memory preference record. Every field is always set.
type UIPreferences struct {
	ExpandedDocuments []DocumentID `json:"expanded_documents"`
	ExpandedSpaces    []SpaceID    `json:"expanded_spaces"`
	SidebarCollapsed  bool         `json:"sidebarCollapsed"`
	SidebarWidth      int          `json:"sidebarWidth"`
}

// DefaultUIPreferences returns the built-in defaults.
func DefaultUIPreferences() UIPreferences {
	return UIPreferences{
		ExpandedDocuments: []DocumentID{},
		ExpandedSpaces:    []SpaceID{},
		SidebarCollapsed:  false,
		SidebarWidth:      DefaultSidebarWidth,
	}
}

// PartialUIPreferences is the wire form of the UI record. Absent fields are nil.
type PartialUIPreferences struct {
	ExpandedDocuments []DocumentID `json:"expanded_documents"`
	ExpandedSpaces    []SpaceID    `json:"expanded_spaces"`
	SidebarCollapsed  *bool        `json:"sidebarCollapsed,omitempty"`
	SidebarWidth      *int         `json:"sidebarWidth,omitempty"`
}

// UserPreferences is the per-user preference record exchanged with the backend.
type UserPreferences struct {
	UI *PartialUIPreferences `json:"ui,omitempty"`
}

// Merge returns p with every field present in partial overriding it.
// Missing fields, and widths that are not positive, keep p's value. Other
// widths are clamped.
func (p UIPreferences) Merge(partial *PartialUIPreferences) UIPreferences {
	out := p.Clone()
	if partial == nil {
		return out
	}
	if partial.ExpandedDocuments != nil {
		out.ExpandedDocuments = slices.Clone(partial.ExpandedDocuments)
	}
	if partial.ExpandedSpaces != nil {
		out.ExpandedSpaces = slices.Clone(partial.ExpandedSpaces)
	}
	if partial.SidebarCollapsed != nil {
		out.SidebarCollapsed = *partial.SidebarCollapsed
	}
	if partial.SidebarWidth != nil && *partial.SidebarWidth > 0 {
		out.SidebarWidth = ClampSidebarWidth(*partial.SidebarWidth)
	}
	return out
}

// Wire returns the full record in its wire form.
func (p UIPreferences) Wire() UserPreferences {
	return UserPreferences{UI: &PartialUIPreferences{
		ExpandedDocuments: nonNil(p.ExpandedDocuments),
		ExpandedSpaces:    nonNil(p.ExpandedSpaces),
		SidebarCollapsed:  Ptr(p.SidebarCollapsed),
		SidebarWidth:      Ptr(p.SidebarWidth),
	}}
}

// Clone returns a copy that shares no slices with p.
func (p UIPreferences) Clone() UIPreferences {
	p.ExpandedDocuments = nonNil(slices.Clone(p.ExpandedDocuments))
	p.ExpandedSpaces = nonNil(slices.Clone(p.ExpandedSpaces))
	return p
}

// ClampSidebarWidth bounds w to [MinSidebarWidth, MaxSidebarWidth].
func ClampSidebarWidth(w int) int {
	return max(MinSidebarWidth, min(MaxSidebarWidth, w))
}

func nonNil[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
