// Package localstore is the durable string-keyed fallback storage the caches
// mirror their state into, standing in for browser local storage.
package localstore

import "context"

// Keys shared with earlier clients. Values are strings: JSON arrays for the
// expanded sets, "true"/"false" for the collapsed flag, a decimal integer for
// the width.
const (
	KeyExpandedSpaces    = "mynotes_expanded_spaces"
	KeyExpandedDocuments = "mynotes_expanded_documents"
	KeySidebarCollapsed  = "sidebarCollapsed"
	KeySidebarWidth      = "sidebarWidth"
	KeyToken             = "token"
	KeySessionID         = "session_id"
)

// PreferenceKeys are cleared together when preferences are reset.
var PreferenceKeys = []string{
	KeyExpandedSpaces,
	KeyExpandedDocuments,
	KeySidebarCollapsed,
	KeySidebarWidth,
}

// SessionKeys are cleared together on logout.
var SessionKeys = []string{KeyToken, KeySessionID}

// Store is a string key/value store. Get reports a missing key with ok=false
// and a nil error.
type Store interface {
	Get(ctx context.Context, key string) (value string, ok bool, err error)
	Set(ctx context.Context, key, value string) error
	Delete(ctx context.Context, keys ...string) error
}
