package session

import (
	"errors"
	"fmt"
	"strings"
)

// A session name is also the gateway instance name and a directory under
// sessions/, so it is kept short, lowercase and free of path separators.
const maxNameLen = 64

// ErrInvalidName is wrapped by every ValidateName failure.
var ErrInvalidName = errors.New("invalid session name")

// NormalizeName trims and lowercases a user-supplied session name.
func NormalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

// ValidateName checks that name is usable as a session and instance name.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("%w: empty", ErrInvalidName)
	}
	if len(name) > maxNameLen {
		return fmt.Errorf("%w %q: longer than %d characters", ErrInvalidName, name, maxNameLen)
	}
	// wppd is started with --session <name>; a leading dash reads as a flag.
	if name[0] == '-' {
		return fmt.Errorf("%w %q: must not start with '-'", ErrInvalidName, name)
	}
	for i, r := range name {
		if !nameRune(r) {
			return fmt.Errorf("%w %q: character %q at %d (allowed: a-z 0-9 _ -)", ErrInvalidName, name, r, i)
		}
	}
	return nil
}

func nameRune(r rune) bool {
	return r >= 'a' && r <= 'z' || r >= '0' && r <= '9' || r == '_' || r == '-'
}
