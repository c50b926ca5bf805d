package store

import (
	"fmt"
	"strings"
)

// ValidateFilename checks that name can be stored as one entry of a user
// namespace. Names must be non-empty, must not be "." or "..", and must
// not contain a path separator or a NUL byte.
func ValidateFilename(name string) error {
	switch {
	case name == "", name == ".", name == "..":
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	case strings.ContainsAny(name, "/\\\x00"):
		return fmt.Errorf("%w: %q contains a path separator", ErrInvalidName, name)
	}
	return nil
}

// ValidateUsername rejects usernames that would escape or collapse the
// user namespace. The notepad protocol accepts any trimmed token, including
// the empty one, which maps to the namespace root.
func ValidateUsername(name string) error {
	if name == "" {
		return nil
	}
	if name == "." || name == ".." || strings.ContainsAny(name, "/\\\x00") {
		return fmt.Errorf("%w: username %q", ErrInvalidName, name)
	}
	return nil
}
