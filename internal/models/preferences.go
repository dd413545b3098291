package models

const (
	// MinRadiusKm is the smallest notification radius a subscriber can pick.
	MinRadiusKm = 1
	// MaxRadiusKm is the largest notification radius a subscriber can pick.
	MaxRadiusKm = 50
	// DefaultRadiusKm is the radius assigned to new accounts.
	DefaultRadiusKm = 5
)

// ClampRadius forces km into [MinRadiusKm, MaxRadiusKm].
func ClampRadius(km int) int {
	if km < MinRadiusKm {
		return MinRadiusKm
	}
	if km > MaxRadiusKm {
		return MaxRadiusKm
	}
	return km
}

// PreferenceSet is a subscriber's notification preferences.
type PreferenceSet struct {
	// Tags is the set of followed tag ids.
	Tags TagSet

	// Coordinate is the subscriber's location, nil when not set.
	Coordinate *Coordinate

	// RadiusKm is the notification radius, always within [MinRadiusKm, MaxRadiusKm].
	RadiusKm int
}

// Clone returns a deep copy so callers can mutate it freely.
func (p PreferenceSet) Clone() PreferenceSet {
	out := PreferenceSet{
		Tags:     p.Tags.Clone(),
		RadiusKm: p.RadiusKm,
	}
	if p.Coordinate != nil {
		c := *p.Coordinate
		out.Coordinate = &c
	}
	return out
}

// Equal reports whether both sets describe the same preferences.
func (p PreferenceSet) Equal(other PreferenceSet) bool {
	if p.RadiusKm != other.RadiusKm || !p.Tags.Equal(other.Tags) {
		return false
	}
	if (p.Coordinate == nil) != (other.Coordinate == nil) {
		return false
	}
	return p.Coordinate == nil || *p.Coordinate == *other.Coordinate
}

// PreferenceUpdate is a partial write of a PreferenceSet.
// Nil fields are left unchanged on the backend.
type PreferenceUpdate struct {
	// TagIDs is the complete list of followed tags.
	TagIDs []string

	// Notify enables alert delivery for the account.
	Notify bool

	// Coordinate replaces the stored location when non-nil.
	Coordinate *Coordinate

	// RadiusKm replaces the stored radius when non-nil.
	RadiusKm *int
}
