package gateway

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"

	"github.com/mynotes/docsync/pkg/logger"
	"github.com/mynotes/docsync/pkg/models"
)

// DefaultBaseURL is where a locally running backend serves its API.
const DefaultBaseURL = "http://127.0.0.1:8080/api"

const maxErrorBody = 4 << 10

// Client talks to the backend over HTTP.
//
// Client instances are safe for concurrent use by multiple goroutines.
type Client struct {
	baseURL        string
	httpClient     *http.Client
	logger         logger.Logger
	onUnauthorized func()

	mu        sync.RWMutex
	authToken string
}

type Option func(*Client)

// WithHTTPClient replaces the default client, which has a 30-second timeout.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithTimeout sets the request timeout of the default client.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.httpClient.Timeout = d }
}

func WithLogger(l logger.Logger) Option {
	return func(c *Client) { c.logger = logger.OrNop(l) }
}

// WithUnauthorizedHandler sets a func called after a 401 response to a
// request that carried a token.
func WithUnauthorizedHandler(fn func()) Option {
	return func(c *Client) { c.onUnauthorized = fn }
}

// NewClient creates a client for the API rooted at baseURL,
// e.g. "http://127.0.0.1:8080/api".
func NewClient(baseURL string, opts ...Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger.Nop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// SetUnauthorizedHandler replaces the 401 handler. It must be called before
// the client is shared.
func (c *Client) SetUnauthorizedHandler(fn func()) {
	c.onUnauthorized = fn
}

// SetAuthToken sets the bearer token. An empty token clears it.
func (c *Client) SetAuthToken(token string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.authToken = token
}

func (c *Client) AuthToken() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.authToken
}

// do sends a request and decodes the response into target, which may be nil.
func (c *Client) do(ctx context.Context, method, path string, authenticated bool, body, target any) error {
	token := c.AuthToken()
	if authenticated && token == "" {
		return fmt.Errorf("%s %s: %w", method, path, ErrUnauthenticated)
	}

	resp, err := c.doRequest(ctx, method, path, token, body)
	if err != nil {
		return err
	}
	err = c.decodeResponse(resp, method, path, target)
	if authenticated && IsUnauthorized(err) && c.onUnauthorized != nil {
		c.onUnauthorized()
	}
	return err
}

// doRequest performs an HTTP request with proper headers
func (c *Client) doRequest(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", uuid.NewString())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("Request failed", "method", method, "path", path, "error", err)
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	return resp, nil
}

// decodeResponse decodes the JSON response into the target
func (c *Client) decodeResponse(resp *http.Response, method, path string, target any) error {
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		apiErr := &APIError{
			Method:     method,
			Path:       path,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(body)),
		}
		c.logger.Error("API error", "method", method, "path", path, "status", resp.StatusCode)
		return apiErr
	}

	if target != nil && resp.StatusCode != http.StatusNoContent {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("failed to decode response of %s %s: %w", method, path, err)
		}
	}

	return nil
}

// Documents

func (c *Client) GetDocumentBySlug(ctx context.Context, slug string) (*models.Document, error) {
	var result models.Document
	if err := c.do(ctx, http.MethodGet, "/v1/document/slug/"+url.PathEscape(slug), true, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) ListDocumentsBySpace(ctx context.Context, spaceID models.SpaceID) ([]models.Document, error) {
	var result []models.Document
	path := "/v1/document/space/" + url.PathEscape(spaceID.String())
	if err := c.do(ctx, http.MethodGet, path, true, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) ListChildDocuments(ctx context.Context, spaceID models.SpaceID, parentID models.DocumentID) ([]models.Document, error) {
	var result []models.Document
	path := fmt.Sprintf("/v1/document/space/%s/parent/%s",
		url.PathEscape(spaceID.String()), url.PathEscape(parentID.String()))
	if err := c.do(ctx, http.MethodGet, path, true, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) CreateDocument(ctx context.Context, params models.CreateDocumentParams) (*models.Document, error) {
	var result models.Document
	if err := c.do(ctx, http.MethodPost, "/v1/document", true, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// UpdateDocument sends only the fields set in patch.
func (c *Client) UpdateDocument(ctx context.Context, patch models.DocumentPatch) (*models.Document, error) {
	var result models.Document
	path := "/v1/document/" + url.PathEscape(patch.ID.String())
	if err := c.do(ctx, http.MethodPut, path, true, patch, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) DeleteDocument(ctx context.Context, id models.DocumentID) error {
	return c.do(ctx, http.MethodDelete, "/v1/document/"+url.PathEscape(id.String()), true, nil, nil)
}

// ListCanvasLibraries returns the URLs of the drawing libraries offered to editors.
func (c *Client) ListCanvasLibraries(ctx context.Context) ([]string, error) {
	var result []string
	if err := c.do(ctx, http.MethodGet, "/v1/document/excalidraw/libs", true, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Favorites

func (c *Client) ListFavorites(ctx context.Context) (models.FavoriteList, error) {
	var result models.FavoriteList
	if err := c.do(ctx, http.MethodGet, "/v1/me/favorites", true, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) AddFavorite(ctx context.Context, documentID models.DocumentID) (models.FavoriteList, error) {
	var result models.FavoriteList
	path := "/v1/me/favorites/" + url.PathEscape(documentID.String())
	if err := c.do(ctx, http.MethodPost, path, true, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) RemoveFavorite(ctx context.Context, documentID models.DocumentID) (models.FavoriteList, error) {
	var result models.FavoriteList
	path := "/v1/me/favorites/" + url.PathEscape(documentID.String())
	if err := c.do(ctx, http.MethodDelete, path, true, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// Preferences

func (c *Client) GetPreferences(ctx context.Context) (*models.UserPreferences, error) {
	var result models.UserPreferences
	if err := c.do(ctx, http.MethodGet, "/v1/me/preferences", true, nil, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

func (c *Client) UpdatePreferences(ctx context.Context, prefs models.UserPreferences) error {
	return c.do(ctx, http.MethodPut, "/v1/me/preferences", true, prefs, nil)
}

// Spaces

func (c *Client) ListSpaces(ctx context.Context) (models.SpaceList, error) {
	var result models.SpaceList
	if err := c.do(ctx, http.MethodGet, "/v1/me/spaces", true, nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

func (c *Client) CreateSpace(ctx context.Context, params models.CreateSpaceParams) (*models.Space, error) {
	var result models.Space
	if err := c.do(ctx, http.MethodPost, "/v1/space", true, params, &result); err != nil {
		return nil, err
	}
	return &result, nil
}
