// Package uuid mints and checks the business keys that identify menus and
// menu items across devices and the server.
package uuid

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// Key prefixes.
const (
	PrefixMenu = "menu"
	PrefixItem = "item"
	// PrefixTemp marks ids assigned to extracted items before they are saved.
	PrefixTemp = "tmp"
)

// UUID v4 format: xxxxxxxx-xxxx-4xxx-yxxx-xxxxxxxxxxxx
// where y is one of [8, 9, a, b] (variant bits)
var uuidV4Regex = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-4[0-9a-fA-F]{3}-[89abAB][0-9a-fA-F]{3}-[0-9a-fA-F]{12}$`)

// New generates a new UUID v4.
func New() string {
	return uuid.New().String()
}

// NewKey returns "<prefix>_<uuid v4>".
func NewKey(prefix string) string {
	return prefix + "_" + New()
}

// SplitKey splits a key minted by NewKey. ok is false when key has no
// prefix or the remainder is not a UUID v4.
func SplitKey(key string) (prefix, id string, ok bool) {
	prefix, id, found := strings.Cut(key, "_")
	if !found || prefix == "" || !IsValid(id) {
		return "", "", false
	}
	return prefix, id, true
}

// HasPrefix reports whether key was minted with prefix.
func HasPrefix(key, prefix string) bool {
	p, _, ok := SplitKey(key)
	return ok && p == prefix
}

// IsValid checks if a string is a valid UUID v4.
// Enforces strict format with dashes and correct variant bits.
func IsValid(s string) bool {
	return uuidV4Regex.MatchString(s)
}

// ValidateKey returns an error unless key is a usable business key: non-empty,
// at most 128 bytes and free of '/' so it can be placed in an endpoint path.
func ValidateKey(key string) error {
	if key == "" {
		return fmt.Errorf("key must not be empty")
	}
	if len(key) > 128 {
		return fmt.Errorf("key longer than 128 bytes: %q", key[:32]+"...")
	}
	if strings.ContainsAny(key, "/?#") {
		return fmt.Errorf("key contains reserved URL characters: %q", key)
	}
	return nil
}
