// internal/app/system/normalize/normalize.go
package normalize

import "strings"

// Email normalizes an email address for storage and lookup: surrounding
// whitespace is trimmed and the whole address is lower-cased. Every store
// query keyed by email goes through this, so matching is case-insensitive
// by construction.
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}
