package gateway

import (
	"context"
	"fmt"
	"net/http"

	"github.com/mynotes/docsync/pkg/models"
)

// Login authenticates and sets the returned token for subsequent requests.
func (c *Client) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	req := models.Credentials{
		Email:    email,
		Password: password,
	}

	var result models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/login", false, req, &result); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}

	c.SetAuthToken(result.Token)

	return &result, nil
}

// Register creates an account. The returned token is not used for requests;
// the account still has to log in.
func (c *Client) Register(ctx context.Context, name, email, password string) (*models.AuthResponse, error) {
	req := models.Credentials{
		Name:     name,
		Email:    email,
		Password: password,
	}

	var result models.AuthResponse
	if err := c.do(ctx, http.MethodPost, "/auth/register", false, req, &result); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}

	return &result, nil
}

// Logout ends the server session and clears the token, even when the request fails.
func (c *Client) Logout(ctx context.Context) error {
	defer c.SetAuthToken("")

	if err := c.do(ctx, http.MethodPost, "/auth/logout", true, nil, nil); err != nil {
		return fmt.Errorf("logout request failed: %w", err)
	}
	return nil
}
