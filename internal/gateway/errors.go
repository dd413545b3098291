package gateway

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Kind classifies a gateway failure so callers can branch without looking
// at transport details.
type Kind string

const (
	// KindAuth: bad credentials or missing/expired session. Re-authenticate.
	KindAuth Kind = "auth"
	// KindValidation: the backend rejected the input. Show inline, keep the form.
	KindValidation Kind = "validation"
	// KindUpload: the image was rejected. Keep the staged file for a retry.
	KindUpload Kind = "upload"
	// KindServer: unexpected status or an undecodable response.
	KindServer Kind = "server"
	// KindTransport: the backend could not be reached.
	KindTransport Kind = "transport"
)

// Error is the uniform failure shape of every gateway operation.
type Error struct {
	Kind    Kind
	Message string
	// Status is the HTTP status, zero when no response was received.
	Status int
	Err    error
}

// Sentinels for errors.Is; they match any *Error of the same Kind.
var (
	ErrAuth       = &Error{Kind: KindAuth}
	ErrValidation = &Error{Kind: KindValidation}
	ErrUpload     = &Error{Kind: KindUpload}
	ErrServer     = &Error{Kind: KindServer}
	ErrTransport  = &Error{Kind: KindTransport}
)

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" {
		msg = "request failed"
	}
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status %d)", msg, e.Status)
	}
	if e.Err != nil {
		return fmt.Sprintf("%s error: %s: %v", e.Kind, msg, e.Err)
	}
	return fmt.Sprintf("%s error: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is matches on Kind only.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

// KindOf returns the Kind of a gateway error, or "" for other errors.
func KindOf(err error) Kind {
	var gerr *Error
	if errors.As(err, &gerr) {
		return gerr.Kind
	}
	return ""
}

// classifier maps a non-2xx status to a Kind.
type classifier func(status int) Kind

func classifyDefault(status int) Kind {
	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return KindAuth
	default:
		return KindServer
	}
}

// classifyCredentials is used by signup and login, where every client-side
// rejection (duplicate email, weak password, wrong password) is an auth failure.
func classifyCredentials(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnauthorized, http.StatusForbidden,
		http.StatusConflict, http.StatusUnprocessableEntity:
		return KindAuth
	default:
		return KindServer
	}
}

func classifyValidation(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return KindValidation
	default:
		return classifyDefault(status)
	}
}

func classifyUpload(status int) Kind {
	switch status {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge,
		http.StatusUnsupportedMediaType, http.StatusUnprocessableEntity:
		return KindUpload
	default:
		return classifyDefault(status)
	}
}

// errorMessage extracts {"error": "..."} from a response body, falling back
// to the status text.
func errorMessage(body []byte, status int) string {
	var payload struct {
		Error   string `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(body, &payload); err == nil {
		if msg := strings.TrimSpace(payload.Error); msg != "" {
			return msg
		}
		if msg := strings.TrimSpace(payload.Message); msg != "" {
			return msg
		}
	}
	return http.StatusText(status)
}
