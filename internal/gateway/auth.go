package gateway

import (
	"context"
	"net/http"
	"strings"
)

// Credentials is the backend's answer to a successful signup or login.
type Credentials struct {
	Token     string
	SubjectID string
}

type credentialsRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type credentialsResponse struct {
	Token  string `json:"token"`
	UserID string `json:"user_id"`
}

// Signup creates an account. Duplicate email or invalid input is KindAuth.
func (c *Client) Signup(ctx context.Context, email, password string) (Credentials, error) {
	return c.credentials(ctx, "signup", "/auth/signup", email, password)
}

// Login exchanges email and password for a session token.
// Invalid credentials are KindAuth.
func (c *Client) Login(ctx context.Context, email, password string) (Credentials, error) {
	return c.credentials(ctx, "login", "/auth/login", email, password)
}

func (c *Client) credentials(ctx context.Context, operation, path, email, password string) (Credentials, error) {
	r, err := jsonRequest(operation, http.MethodPost, path, credentialsRequest{
		Email:    strings.TrimSpace(email),
		Password: password,
	})
	if err != nil {
		return Credentials{}, err
	}
	// Credentials go out without any existing token, and a rejection here
	// says nothing about the current session.
	r.authenticated = false
	r.classify = classifyCredentials

	var resp credentialsResponse
	if err := c.send(ctx, r, &resp); err != nil {
		return Credentials{}, err
	}
	if resp.Token == "" || resp.UserID == "" {
		return Credentials{}, &Error{Kind: KindServer, Message: "response missing token or user_id", Status: http.StatusOK}
	}
	return Credentials{Token: resp.Token, SubjectID: resp.UserID}, nil
}
