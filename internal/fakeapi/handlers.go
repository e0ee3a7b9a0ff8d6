package fakeapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/mynotes/docsync/pkg/models"
)

type ctxKey struct{}

func userFrom(ctx context.Context) models.UserID {
	id, _ := ctx.Value(ctxKey{}).(models.UserID)
	return id
}

func (s *Server) authenticated(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || token == "" {
			respondError(w, http.StatusUnauthorized, "missing token")
			return
		}
		s.mu.Lock()
		userID, ok := s.sessions[token]
		s.mu.Unlock()
		if !ok {
			respondError(w, http.StatusUnauthorized, "invalid session")
			return
		}
		next(w, r.WithContext(context.WithValue(r.Context(), ctxKey{}, userID)))
	}
}

// Auth

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[strings.ToLower(req.Email)]
	if !ok || u.password != req.Password {
		respondError(w, http.StatusUnauthorized, "invalid credentials")
		return
	}
	token, sessionID, err := s.issueLocked(u, TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusOK, models.AuthResponse{Token: token, SessionID: sessionID, Message: "login successful"})
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req models.Credentials
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Email == "" || req.Password == "" {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[strings.ToLower(req.Email)]; exists {
		respondError(w, http.StatusConflict, "email already registered")
		return
	}
	u := s.addUserLocked(req.Name, req.Email, req.Password)
	token, sessionID, err := s.issueLocked(u, TokenTTL)
	if err != nil {
		respondError(w, http.StatusInternalServerError, err.Error())
		return
	}
	respondJSON(w, http.StatusCreated, models.AuthResponse{Token: token, SessionID: sessionID, Message: "user registered"})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	s.mu.Lock()
	delete(s.sessions, token)
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{"message": "logged out"})
}

// Documents

func (s *Server) handleGetDocument(w http.ResponseWriter, r *http.Request) {
	key := mux.Vars(r)["slug"]

	s.mu.Lock()
	defer s.mu.Unlock()
	if d, ok := s.documents[models.DocumentID(key)]; ok {
		respondJSON(w, http.StatusOK, d)
		return
	}
	for _, d := range s.documents {
		if d.Slug == key {
			respondJSON(w, http.StatusOK, d)
			return
		}
	}
	respondError(w, http.StatusNotFound, "Document not found")
}

func (s *Server) handleListBySpace(w http.ResponseWriter, r *http.Request) {
	spaceID := models.SpaceID(mux.Vars(r)["spaceId"])
	respondJSON(w, http.StatusOK, s.listDocuments(func(d models.Document) bool {
		return d.SpaceID == spaceID && d.ParentID.IsZero()
	}))
}

func (s *Server) handleListByParent(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	spaceID := models.SpaceID(vars["spaceId"])
	parentID := models.DocumentID(vars["documentId"])
	respondJSON(w, http.StatusOK, s.listDocuments(func(d models.Document) bool {
		return d.SpaceID == spaceID && d.ParentID == parentID
	}))
}

func (s *Server) listDocuments(keep func(models.Document) bool) []models.Document {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []models.Document{}
	for _, id := range s.docOrder {
		if d, ok := s.documents[id]; ok && keep(d) {
			out = append(out, d)
		}
	}
	return out
}

func (s *Server) handleCreateDocument(w http.ResponseWriter, r *http.Request) {
	var req models.CreateDocumentParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	if req.SpaceID.IsZero() {
		respondError(w, http.StatusBadRequest, "space_id is required")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d := s.addDocumentLocked(models.Document{
		Name:     req.Name,
		SpaceID:  req.SpaceID,
		ParentID: req.ParentID,
		Type:     req.Type,
		Content:  req.Content,
	})
	respondJSON(w, http.StatusCreated, d)
}

func (s *Server) handleUpdateDocument(w http.ResponseWriter, r *http.Request) {
	id := models.DocumentID(mux.Vars(r)["documentId"])
	var patch models.DocumentPatch
	if err := json.NewDecoder(r.Body).Decode(&patch); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.documents[id]
	if !ok {
		respondError(w, http.StatusNotFound, "Document not found")
		return
	}
	if patch.Name != nil {
		d.Name = *patch.Name
	}
	if !patch.SpaceID.IsZero() {
		d.SpaceID = patch.SpaceID
	}
	if patch.Content != nil {
		d.Content = patch.Content
	}
	if patch.Config != nil {
		d.Config = *patch.Config
	}
	d.UpdatedAt = s.now()
	s.documents[id] = d
	respondJSON(w, http.StatusOK, d)
}

func (s *Server) handleDeleteDocument(w http.ResponseWriter, r *http.Request) {
	id := models.DocumentID(mux.Vars(r)["documentId"])

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[id]; !ok {
		respondError(w, http.StatusNotFound, "Document not found")
		return
	}
	delete(s.documents, id)
	for userID, favs := range s.favorites {
		kept := favs[:0]
		for _, f := range favs {
			if f.DocumentID != id {
				kept = append(kept, f)
			}
		}
		s.favorites[userID] = kept
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLibraries(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	libs := append([]string{}, s.libraries...)
	respondJSON(w, http.StatusOK, libs)
}

// Favorites

func (s *Server) handleListFavorites(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]any{"favorites": s.favoritesLocked(userFrom(r.Context()))})
}

func (s *Server) handleAddFavorite(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	docID := models.DocumentID(mux.Vars(r)["documentId"])

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.documents[docID]; !ok {
		respondError(w, http.StatusNotFound, "Document not found")
		return
	}
	if !models.FavoriteList(s.favorites[userID]).Contains(docID) {
		s.favorites[userID] = append(s.favorites[userID], models.Favorite{
			ID:         models.FavoriteID(uuid.NewString()),
			UserID:     userID,
			DocumentID: docID,
			Position:   strconv.Itoa(len(s.favorites[userID])),
			CreatedAt:  s.now(),
		})
	}
	respondJSON(w, http.StatusOK, s.favoritesLocked(userID))
}

func (s *Server) handleRemoveFavorite(w http.ResponseWriter, r *http.Request) {
	userID := userFrom(r.Context())
	docID := models.DocumentID(mux.Vars(r)["documentId"])

	s.mu.Lock()
	defer s.mu.Unlock()
	var kept []models.Favorite
	for _, f := range s.favorites[userID] {
		if f.DocumentID != docID {
			kept = append(kept, f)
		}
	}
	s.favorites[userID] = kept
	respondJSON(w, http.StatusOK, s.favoritesLocked(userID))
}

// favoritesLocked returns the user's favorites with the referenced document
// attached, without its content.
func (s *Server) favoritesLocked(userID models.UserID) []models.Favorite {
	out := []models.Favorite{}
	for _, f := range s.favorites[userID] {
		if d, ok := s.documents[f.DocumentID]; ok {
			doc := d.WithoutContent()
			f.Document = &doc
		}
		out = append(out, f)
	}
	return out
}

// Preferences

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	raw, ok := s.preferences[userFrom(r.Context())]
	s.mu.Unlock()
	if !ok {
		respondJSON(w, http.StatusOK, map[string]any{})
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(raw)
}

func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var raw json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&raw); err != nil {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}
	s.mu.Lock()
	s.preferences[userFrom(r.Context())] = raw
	s.mu.Unlock()
	respondJSON(w, http.StatusOK, map[string]string{"message": "preferences updated"})
}

// Spaces

func (s *Server) handleListSpaces(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	spaces := append([]models.Space{}, s.spaces...)
	respondJSON(w, http.StatusOK, map[string]any{"spaces": spaces})
}

func (s *Server) handleCreateSpace(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSpaceParams
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Name == "" {
		respondError(w, http.StatusBadRequest, "Invalid request payload")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sp := models.Space{
		ID:          models.SpaceID(uuid.NewString()),
		Name:        req.Name,
		Description: req.Description,
		Slug:        slugify(req.Name),
		UserOwnerID: userFrom(r.Context()),
		CreatedAt:   s.now(),
	}
	sp.UpdatedAt = sp.CreatedAt
	s.spaces = append(s.spaces, sp)
	respondJSON(w, http.StatusCreated, sp)
}
