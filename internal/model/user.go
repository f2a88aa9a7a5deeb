// Package model defines the data structures shared by the store, the
// services and the HTTP layer.
package model

import (
	"strings"
	"time"

	"golang.org/x/text/cases"
)

// DefaultUserName is used when a user is created without a display name.
const DefaultUserName = "Undefined"

// User is the owner of every other entity. Users are created on first contact
// and only removed by an explicit purge, which cascades to everything they own.
type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"` // stored as given
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// DisplayName returns the name to greet the user with: the display name, or
// the local part of the email when the name is unset.
func (u *User) DisplayName() string {
	if name := strings.TrimSpace(u.Name); name != "" && name != DefaultUserName {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// NormalizeEmail returns the case-insensitive lookup key for an address.
// Subscription preferences and daily metrics are keyed by it.
func NormalizeEmail(email string) string {
	return cases.Fold().String(strings.TrimSpace(email))
}
