package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrUnauthenticated is returned before sending a request that needs a token
// when none is set.
var ErrUnauthenticated = errors.New("not authenticated")

// APIError is a response with a status of 400 or above.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("API error: %s %s: status=%d, body=%s", e.Method, e.Path, e.StatusCode, e.Body)
}

// IsUnauthorized reports whether err is a 401 response.
func IsUnauthorized(err error) bool {
	return StatusCode(err) == http.StatusUnauthorized
}

// IsNotFound reports whether err is a 404 response.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// StatusCode returns the HTTP status carried by err, or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}
