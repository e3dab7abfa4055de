// Package domain contains the room core entities, their invariants and error kinds.
// No storage or transport logic here.
package domain

import (
	"strings"
	"unicode/utf8"
)

const MaxUserIDLen = 64

type UserID string

// ParseUserID trims and checks an identity supplied by the identity provider.
func ParseUserID(raw string) (UserID, error) {
	id := strings.TrimSpace(raw)
	if id == "" {
		return "", Invalid("user id is empty")
	}
	if utf8.RuneCountInString(id) > MaxUserIDLen {
		return "", Invalid("user id longer than %d characters", MaxUserIDLen)
	}
	return UserID(id), nil
}
