package models

// Credentials is the body of login and register requests.
type Credentials struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResponse is returned by login and register.
type AuthResponse struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Message   string `json:"message,omitempty"`
}
