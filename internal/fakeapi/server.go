// Package fakeapi provides an in-memory implementation of the mynotes backend
// API for tests and local demos.
//
// It serves the same routes as the real backend under /api, keeps all state in
// memory, issues HS256 JWTs carrying user_id and session_id claims, and counts
// calls per route so tests can assert how many requests a cache made.
//
// Failures can be injected per route with [Server.InjectFailure], in the spirit
// of a stubbed server: a fixed status for the next N calls, optionally after a
// delay.
package fakeapi

import (
	"fmt"
	"net/http"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mynotes/docsync/pkg/models"
)

// Route names accepted by Calls and InjectFailure. They are the mux path
// templates prefixed by the method.
const (
	RouteLogin             = "POST /api/auth/login"
	RouteRegister          = "POST /api/auth/register"
	RouteLogout            = "POST /api/auth/logout"
	RouteDocumentBySlug    = "GET /api/v1/document/slug/{slug}"
	RouteDocumentsBySpace  = "GET /api/v1/document/space/{spaceId}"
	RouteDocumentsByParent = "GET /api/v1/document/space/{spaceId}/parent/{documentId}"
	RouteCreateDocument    = "POST /api/v1/document"
	RouteUpdateDocument    = "PUT /api/v1/document/{documentId}"
	RouteDeleteDocument    = "DELETE /api/v1/document/{documentId}"
	RouteCanvasLibraries   = "GET /api/v1/document/excalidraw/libs"
	RouteFavorites         = "GET /api/v1/me/favorites"
	RouteAddFavorite       = "POST /api/v1/me/favorites/{documentId}"
	RouteRemoveFavorite    = "DELETE /api/v1/me/favorites/{documentId}"
	RouteGetPreferences    = "GET /api/v1/me/preferences"
	RoutePutPreferences    = "PUT /api/v1/me/preferences"
	RouteSpaces            = "GET /api/v1/me/spaces"
	RouteCreateSpace       = "POST /api/v1/space"
)

// TokenTTL is the lifetime of issued tokens.
const TokenTTL = 24 * time.Hour

var signingKey = []byte("fakeapi-signing-key")

// Claims are carried by issued tokens.
type Claims struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
	jwt.RegisteredClaims
}

// Failure makes the next Times calls to Route answer with Status after Delay.
// Status 0 only delays.
type Failure struct {
	Route  string
	Status int
	Times  int
	Delay  time.Duration
}

type user struct {
	id       models.UserID
	name     string
	email    string
	password string
}

type Server struct {
	router *mux.Router

	mu          sync.Mutex
	users       map[string]*user // by email
	sessions    map[string]models.UserID
	documents   map[models.DocumentID]models.Document
	docOrder    []models.DocumentID
	spaces      []models.Space
	favorites   map[models.UserID][]models.Favorite
	preferences map[models.UserID]json.RawMessage
	libraries   []string
	calls       map[string]int
	failures    map[string]*Failure
	now         func() time.Time
}

func NewServer() *Server {
	s := &Server{
		users:       make(map[string]*user),
		sessions:    make(map[string]models.UserID),
		documents:   make(map[models.DocumentID]models.Document),
		favorites:   make(map[models.UserID][]models.Favorite),
		preferences: make(map[models.UserID]json.RawMessage),
		calls:       make(map[string]int),
		failures:    make(map[string]*Failure),
		now:         time.Now,
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	router := mux.NewRouter()
	router.Use(s.instrument)

	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/auth/login", s.handleLogin).Methods(http.MethodPost)
	api.HandleFunc("/auth/register", s.handleRegister).Methods(http.MethodPost)
	api.HandleFunc("/auth/logout", s.authenticated(s.handleLogout)).Methods(http.MethodPost)

	v1 := api.PathPrefix("/v1").Subrouter()
	v1.HandleFunc("/document/slug/{slug}", s.authenticated(s.handleGetDocument)).Methods(http.MethodGet)
	v1.HandleFunc("/document/space/{spaceId}", s.authenticated(s.handleListBySpace)).Methods(http.MethodGet)
	v1.HandleFunc("/document/space/{spaceId}/parent/{documentId}", s.authenticated(s.handleListByParent)).Methods(http.MethodGet)
	v1.HandleFunc("/document/excalidraw/libs", s.authenticated(s.handleLibraries)).Methods(http.MethodGet)
	v1.HandleFunc("/document", s.authenticated(s.handleCreateDocument)).Methods(http.MethodPost)
	v1.HandleFunc("/document/{documentId}", s.authenticated(s.handleUpdateDocument)).Methods(http.MethodPut)
	v1.HandleFunc("/document/{documentId}", s.authenticated(s.handleDeleteDocument)).Methods(http.MethodDelete)
	v1.HandleFunc("/me/favorites", s.authenticated(s.handleListFavorites)).Methods(http.MethodGet)
	v1.HandleFunc("/me/favorites/{documentId}", s.authenticated(s.handleAddFavorite)).Methods(http.MethodPost)
	v1.HandleFunc("/me/favorites/{documentId}", s.authenticated(s.handleRemoveFavorite)).Methods(http.MethodDelete)
	v1.HandleFunc("/me/preferences", s.authenticated(s.handleGetPreferences)).Methods(http.MethodGet)
	v1.HandleFunc("/me/preferences", s.authenticated(s.handlePutPreferences)).Methods(http.MethodPut)
	v1.HandleFunc("/me/spaces", s.authenticated(s.handleListSpaces)).Methods(http.MethodGet)
	v1.HandleFunc("/space", s.authenticated(s.handleCreateSpace)).Methods(http.MethodPost)

	s.router = router
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// instrument counts the call and applies an injected failure, if any.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		name := routeName(r)

		s.mu.Lock()
		s.calls[name]++
		var (
			status int
			delay  time.Duration
		)
		if f, ok := s.failures[name]; ok {
			status, delay = f.Status, f.Delay
			f.Times--
			if f.Times <= 0 {
				delete(s.failures, name)
			}
		}
		s.mu.Unlock()

		if delay > 0 {
			select {
			case <-time.After(delay):
			case <-r.Context().Done():
				return
			}
		}
		if status != 0 {
			respondError(w, status, "injected failure")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func routeName(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.Method + " " + r.URL.Path
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return r.Method + " " + r.URL.Path
	}
	return r.Method + " " + tpl
}

// Calls returns how many requests hit route.
func (s *Server) Calls(route string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[route]
}

// ResetCalls zeroes every call counter.
func (s *Server) ResetCalls() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = make(map[string]int)
}

// InjectFailure arms f for its route, replacing any failure already armed.
func (s *Server) InjectFailure(f Failure) {
	if f.Times <= 0 {
		f.Times = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[f.Route] = &f
}

// AddUser registers an account and returns its id.
func (s *Server) AddUser(name, email, password string) models.UserID {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addUserLocked(name, email, password).id
}

func (s *Server) addUserLocked(name, email, password string) *user {
	u := &user{
		id:       models.UserID(uuid.NewString()),
		name:     name,
		email:    strings.ToLower(email),
		password: password,
	}
	s.users[u.email] = u
	return u
}

// IssueToken returns a token for the user with the given email, valid for ttl.
// A negative ttl yields an already expired token.
func (s *Server) IssueToken(email string, ttl time.Duration) (token, sessionID string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(email)]
	if !ok {
		return "", "", fmt.Errorf("unknown user %q", email)
	}
	return s.issueLocked(u, ttl)
}

func (s *Server) issueLocked(u *user, ttl time.Duration) (string, string, error) {
	sessionID := uuid.NewString()
	now := s.now()
	claims := Claims{
		SessionID: sessionID,
		UserID:    u.id.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   u.id.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(signingKey)
	if err != nil {
		return "", "", err
	}
	s.sessions[token] = u.id
	return token, sessionID, nil
}

// AddSpace stores a space, assigning an id when it has none.
func (s *Server) AddSpace(sp models.Space) models.Space {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sp.ID.IsZero() {
		sp.ID = models.SpaceID(uuid.NewString())
	}
	if sp.Slug == "" {
		sp.Slug = slugify(sp.Name)
	}
	sp.CreatedAt = s.now()
	sp.UpdatedAt = sp.CreatedAt
	s.spaces = append(s.spaces, sp)
	return sp
}

// AddDocument stores a document, assigning an id and slug when missing.
func (s *Server) AddDocument(d models.Document) models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addDocumentLocked(d)
}

func (s *Server) addDocumentLocked(d models.Document) models.Document {
	if d.ID.IsZero() {
		d.ID = models.DocumentID(uuid.NewString())
	}
	if d.Slug == "" {
		d.Slug = slugify(d.Name)
	}
	if d.Type == "" {
		d.Type = models.TypeText
	}
	d.CreatedAt = s.now()
	d.UpdatedAt = d.CreatedAt
	s.documents[d.ID] = d
	s.docOrder = append(s.docOrder, d.ID)
	return d
}

// Document returns the stored document with the given id.
func (s *Server) Document(id models.DocumentID) (models.Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	return d, ok
}

// SetPreferences stores raw preference JSON for a user.
func (s *Server) SetPreferences(userID models.UserID, raw string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.preferences[userID] = json.RawMessage(raw)
}

// Preferences returns the raw preference JSON stored for a user.
func (s *Server) Preferences(userID models.UserID) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	raw, ok := s.preferences[userID]
	return string(raw), ok
}

func (s *Server) SetCanvasLibraries(urls ...string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.libraries = append([]string(nil), urls...)
}

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(name string) string {
	base := strings.Trim(nonSlug.ReplaceAllString(strings.ToLower(name), "-"), "-")
	if base == "" {
		base = "untitled"
	}
	return base + "-" + uuid.NewString()[:8]
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	response, _ := json.Marshal(payload)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if payload != nil {
		_, _ = w.Write(response)
	}
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
