package auth

import (
	"context"

	"github.com/mmynk/foodguardian/internal/models"
)

// Authenticator defines how accounts are created and verified.
// The dev backend only ships a password implementation.
type Authenticator interface {
	// Register creates a new account for email, protected by credential.
	Register(ctx context.Context, email, credential string) (*models.User, error)

	// Authenticate verifies the credential and returns the matching account.
	Authenticate(ctx context.Context, email, credential string) (*models.User, error)

	// ValidateCredential checks the credential against the implementation's
	// requirements before anything is stored.
	ValidateCredential(credential string) error
}
