package bastion

import "strings"

// matchPattern checks if a rule pattern matches a request value.
// Patterns are exact by default; "*" matches everything and a trailing
// '*' matches by prefix (e.g. "posts/*" matches "posts/123").
func matchPattern(pattern, value string) bool {
	if pattern == "*" {
		return true
	}
	if pattern == value {
		return true
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(value, strings.TrimSuffix(pattern, "*"))
	}
	return false
}
