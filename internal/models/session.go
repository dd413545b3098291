package models

import (
	"fmt"
	"strings"
)

// Role identifies which kind of actor a session belongs to.
type Role string

const (
	// RoleStore is a seller that uploads photos of surplus goods.
	RoleStore Role = "store"
	// RoleUser is a subscriber that receives alerts for matching goods.
	RoleUser Role = "user"
)

// ParseRole converts a user-supplied string into a Role.
func ParseRole(s string) (Role, error) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleStore:
		return RoleStore, nil
	case RoleUser:
		return RoleUser, nil
	default:
		return "", fmt.Errorf("unknown role %q (want %q or %q)", s, RoleStore, RoleUser)
	}
}

// String implements fmt.Stringer.
func (r Role) String() string {
	return string(r)
}

// Session is the authenticated state of one actor.
// It is created on a successful signup or login and destroyed on logout or
// when the backend rejects the token.
type Session struct {
	// Token is the opaque bearer credential issued by the backend.
	Token string

	// SubjectID is the backend id of the account (user id or store id).
	SubjectID string

	// Role is the actor role this session was opened for.
	Role Role
}
