package models

import (
	"fmt"
	"strings"
)

// KeyPrefix namespaces every rate limit key in shared stores.
const KeyPrefix = "rl"

// Key builds the storage key for a profile and client identifier. Each
// profile keeps an independent window for the same client.
func Key(profile Profile, identifier string) string {
	return fmt.Sprintf("%s:%s:%s", KeyPrefix, profile, sanitizeKeySegment(identifier))
}

// sanitizeKeySegment escapes delimiter characters so a forged identifier
// containing ':' cannot address another profile's or client's window.
//
// Escape rules (order matters):
//  1. '_' becomes '__'
//  2. ':' becomes '_c'
//
// Examples:
//   - "2001:db8::1" → "2001_cdb8_c_c1"
//   - "a_b"         → "a__b"
func sanitizeKeySegment(s string) string {
	s = strings.ReplaceAll(s, "_", "__")
	s = strings.ReplaceAll(s, ":", "_c")
	return s
}
