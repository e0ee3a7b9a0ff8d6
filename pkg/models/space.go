package models

import (
	"bytes"
	"time"

	"github.com/goccy/go-json"
)

type Space struct {
	ID                  SpaceID   `json:"id"`
	Name                string    `json:"name"`
	Description         string    `json:"description,omitempty"`
	Slug                string    `json:"slug,omitempty"`
	Icon                string    `json:"icon,omitempty"`
	IconColor           string    `json:"icon_color,omitempty"`
	OrganisationOwnerID string    `json:"organisation_owner_id,omitempty"`
	UserOwnerID         UserID    `json:"user_owner_id,omitempty"`
	Members             []Member  `json:"members,omitempty"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

type CreateSpaceParams struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Private     bool   `json:"private"`
}

// SpaceList decodes either a bare array or a {"spaces": [...]} envelope.
type SpaceList []Space

func (l *SpaceList) UnmarshalJSON(data []byte) error {
	if isArray(data) {
		var spaces []Space
		if err := json.Unmarshal(data, &spaces); err != nil {
			return err
		}
		*l = spaces
		return nil
	}
	var env struct {
		Spaces []Space `json:"spaces"`
	}
	if err := json.Unmarshal(data, &env); err != nil {
		return err
	}
	*l = env.Spaces
	return nil
}

func isArray(data []byte) bool {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	return len(trimmed) > 0 && trimmed[0] == '['
}
