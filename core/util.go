package core

import "strings"

// CleanString trims all leading and trailing whitespace in `s` and optionally lowers it.
func CleanString(s string, lower ...bool) string {
	s = strings.TrimSpace(s)
	if len(lower) > 0 && lower[0] {
		return strings.ToLower(s)
	}
	return s
}

// OptionalString cleans `s` and returns nil when nothing is left.
func OptionalString(s *string, lower ...bool) *string {
	if s == nil {
		return nil
	}
	cleaned := CleanString(*s, lower...)
	if cleaned == "" {
		return nil
	}
	return &cleaned
}

// StringValue returns the value pointed to by s, or "" when s is nil.
func StringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
