package models

// StoreRegistration is the transient input of the store onboarding flow.
// It is discarded once the backend calls succeed or fail.
type StoreRegistration struct {
	Name     string
	Email    string
	Password string
	// Address is the raw, human-entered address; it is resolved to a
	// Coordinate and never persisted.
	Address string
	Phone   string
}

// StoreProfile is the public record of a store.
type StoreProfile struct {
	// StoreID equals the account id returned by signup.
	StoreID string

	Name  string
	Email string
	Phone string

	// Location is where the store is, used for radius matching.
	Location Coordinate

	// CreatedAt is the Unix timestamp when the store was first registered.
	CreatedAt int64

	// UpdatedAt is the Unix timestamp of the last profile write.
	UpdatedAt int64
}
