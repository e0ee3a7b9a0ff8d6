// Package gateway is the remote resource gateway: typed request/response
// operations against the mynotes backend.
//
// The caches depend on the narrow interfaces declared here ([DocumentAPI],
// [FavoriteAPI], [PreferenceAPI], [SpaceAPI], [AuthAPI]). [Client] implements
// all of them over HTTP.
//
// # Transport
//
// Requests carry a JSON body, an "Authorization: Bearer <token>" header once a
// token is set, and an X-Request-ID header. Responses with a status of 400 or
// above become an [*APIError]. A 401 additionally invokes the handler set with
// [WithUnauthorizedHandler], which the session gate uses to log out.
//
// # Routes
//
// All resource routes live under /v1 of the base URL; authentication lives
// under /auth:
//
//	GET    /v1/document/slug/{slug}
//	GET    /v1/document/space/{spaceId}
//	GET    /v1/document/space/{spaceId}/parent/{documentId}
//	POST   /v1/document
//	PUT    /v1/document/{documentId}
//	DELETE /v1/document/{documentId}
//	GET    /v1/document/excalidraw/libs
//	GET    /v1/me/favorites
//	POST   /v1/me/favorites/{documentId}
//	DELETE /v1/me/favorites/{documentId}
//	GET    /v1/me/preferences
//	PUT    /v1/me/preferences
//	GET    /v1/me/spaces
//	POST   /v1/space
//	POST   /auth/login
//	POST   /auth/register
//	POST   /auth/logout
package gateway

import (
	"context"

	"github.com/mynotes/docsync/pkg/models"
)

// DocumentAPI is consumed by the document cache.
type DocumentAPI interface {
	GetDocumentBySlug(ctx context.Context, slug string) (*models.Document, error)
	ListDocumentsBySpace(ctx context.Context, spaceID models.SpaceID) ([]models.Document, error)
	ListChildDocuments(ctx context.Context, spaceID models.SpaceID, parentID models.DocumentID) ([]models.Document, error)
	CreateDocument(ctx context.Context, params models.CreateDocumentParams) (*models.Document, error)
	UpdateDocument(ctx context.Context, patch models.DocumentPatch) (*models.Document, error)
	DeleteDocument(ctx context.Context, id models.DocumentID) error
	ListCanvasLibraries(ctx context.Context) ([]string, error)
}

// FavoriteAPI is consumed by the favorite set. Mutations return the whole
// list as the server now has it.
type FavoriteAPI interface {
	ListFavorites(ctx context.Context) (models.FavoriteList, error)
	AddFavorite(ctx context.Context, documentID models.DocumentID) (models.FavoriteList, error)
	RemoveFavorite(ctx context.Context, documentID models.DocumentID) (models.FavoriteList, error)
}

// PreferenceAPI is consumed by the preference cache.
type PreferenceAPI interface {
	GetPreferences(ctx context.Context) (*models.UserPreferences, error)
	UpdatePreferences(ctx context.Context, prefs models.UserPreferences) error
}

// SpaceAPI is consumed by the space cache.
type SpaceAPI interface {
	ListSpaces(ctx context.Context) (models.SpaceList, error)
	CreateSpace(ctx context.Context, params models.CreateSpaceParams) (*models.Space, error)
}

// AuthAPI is consumed by the session gate.
type AuthAPI interface {
	Login(ctx context.Context, email, password string) (*models.AuthResponse, error)
	Register(ctx context.Context, name, email, password string) (*models.AuthResponse, error)
	Logout(ctx context.Context) error
	SetAuthToken(token string)
}

// Gateway is every remote operation.
type Gateway interface {
	DocumentAPI
	FavoriteAPI
	PreferenceAPI
	SpaceAPI
	AuthAPI
}

var _ Gateway = (*Client)(nil)
