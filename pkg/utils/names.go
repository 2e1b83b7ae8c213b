package utils

import "regexp"

var usernamePattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9_.-]{0,63}$`)

// ValidUsername reports whether name is safe to use as a template file name:
// 1 to 64 letters, digits, '_', '-' or '.', not starting with a dot.
func ValidUsername(name string) bool {
	return usernamePattern.MatchString(name)
}
