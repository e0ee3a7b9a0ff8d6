// Package models defines the entities the document caches hold and exchange
// with the backend: documents, spaces, favorites and user preferences.
//
// # Identity
//
// Every entity is identified by an opaque, server-assigned string. Typed ids
// ([DocumentID], [SpaceID], [FavoriteID], [UserID]) keep them from being mixed
// up at compile time. They serialize as plain JSON strings.
//
// # Document content
//
// On the wire a document's content is a string whose meaning depends on the
// document type. [DecodeContent] turns it into a [Content] variant:
//
//   - [TypeText] documents carry [TextContent], rich text owned by the editor.
//   - [TypeDrawing] documents carry [CanvasContent], a JSON record with an
//     element sequence, an application-state map and a file map.
//   - [TypeTabular] documents carry [TabularContent], passed through untouched.
//
// Drawing content is repaired rather than rejected: [NormalizeContent] fills
// absent content with [DefaultCanvas] and replaces only the fields that fail
// validation, keeping the ones that pass.
//
// # Preferences
//
// [UIPreferences] is the in-memory record with every field set.
// [UserPreferences] is the wire shape, where every field is optional so a
// partially populated server record can be merged over known defaults with
// [UIPreferences.Merge].
package models
