// internal/app/system/htmlsanitize/htmlsanitize.go
package htmlsanitize

import "github.com/microcosm-cc/bluemonday"

var (
	ugc    = bluemonday.UGCPolicy()
	strict = bluemonday.StrictPolicy()
)

// Sanitize removes dangerous HTML (scripts, event handlers, javascript:
// URLs) while keeping common user-generated formatting tags.
func Sanitize(s string) string {
	return ugc.Sanitize(s)
}

// PlainText strips all HTML tags. Used for free-form text that is relayed
// into notification emails, where no markup is wanted at all.
func PlainText(s string) string {
	return strict.Sanitize(s)
}
