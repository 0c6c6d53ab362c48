// Package shared contains common domain types, errors, events, and value objects
// that are used across all domain packages.
package shared

import (
	"strings"
	"unicode/utf8"
)

// ═══════════════════════════════════════════════════════════════════════════
// ID Value Objects
// ═══════════════════════════════════════════════════════════════════════════

// MaxUserIDLength bounds user identifiers accepted from callers.
const MaxUserIDLength = 128

// UserID is an opaque user identifier supplied by the authentication layer.
type UserID string

// String returns the string representation.
func (u UserID) String() string {
	return string(u)
}

// IsEmpty checks if the user ID is empty.
func (u UserID) IsEmpty() bool {
	return u == ""
}

// NewUserID creates a UserID after trimming and length validation.
func NewUserID(id string) (UserID, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return "", ErrEmptyUserID
	}
	if utf8.RuneCountInString(id) > MaxUserIDLength {
		return "", NewDomainError("shared", "NewUserID", ErrValueOutOfRange, "user id too long")
	}
	return UserID(id), nil
}
