package models

import (
	"time"

	"github.com/goccy/go-json"
)

// Favorite references exactly one document or database. Document may carry a
// denormalized copy of the referenced document for display.
type Favorite struct {
	ID         FavoriteID `json:"id"`
	UserID     UserID     `json:"user_id"`
	DocumentID DocumentID `json:"document_id,omitempty"`
	DatabaseID string     `json:"database_id,omitempty"`
	Position   string     `json:"position,omitempty"`
	Document   *Document  `json:"document,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
}

// FavoriteList decodes either a bare array or a {"favorites": [...]} envelope.
type FavoriteList []Favorite

func (l *FavoriteList) UnmarshalJSON(data []byte) error {
	if isArray(data) {
		var favs []Favorite
		if err := json.Unmarshal(data, &favs); err != nil {
			return err
		}
		*l = favs
		return nil
	}
	var env struct {
		Favorites []Favorite `json:"favorites"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*l = env.Favorites
	return nil
}

// Contains reports whether the list holds a favorite for documentID.
func (l FavoriteList) Contains(documentID DocumentID) bool {
	for _, f := range l {
		if f.DocumentID == documentID {
			return true
		}
	}
	return false
}
