package memlog

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
)

// ErrInvalidUserKey is returned for keys that cannot name a log file.
var ErrInvalidUserKey = errors.New("invalid user key")

const maxUserKeyLen = 128

var userKeyPattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// NormalizeUserKey validates key and returns its canonical form. UUIDs in
// any accepted spelling (braced, urn:uuid:, upper case) map to the
// lower-case hyphenated form so one user always maps to one log.
func NormalizeUserKey(key string) (string, error) {
	key = strings.TrimSpace(key)
	if key == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidUserKey)
	}
	if id, err := uuid.Parse(key); err == nil {
		return id.String(), nil
	}
	if len(key) > maxUserKeyLen {
		return "", fmt.Errorf("%w: longer than %d characters", ErrInvalidUserKey, maxUserKeyLen)
	}
	if !userKeyPattern.MatchString(key) {
		return "", fmt.Errorf("%w: %q may only contain letters, digits, '.', '_' and '-' and must not start with '.'", ErrInvalidUserKey, key)
	}
	return key, nil
}
