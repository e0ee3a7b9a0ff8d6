package models

// DocumentID identifies a document.
type DocumentID string

func (id DocumentID) String() string { return string(id) }
func (id DocumentID) IsZero() bool   { return id == "" }

// SpaceID identifies a space.
type SpaceID string

func (id SpaceID) String() string { return string(id) }
func (id SpaceID) IsZero() bool   { return id == "" }

// FavoriteID identifies a favorite entry.
type FavoriteID string

func (id FavoriteID) String() string { return string(id) }
func (id FavoriteID) IsZero() bool   { return id == "" }

// UserID identifies a user.
type UserID string

func (id UserID) String() string { return string(id) }
func (id UserID) IsZero() bool   { return id == "" }

// Ptr returns a pointer to v. Handy for the optional fields of patches.
func Ptr[T any](v T) *T {
	return &v
}
