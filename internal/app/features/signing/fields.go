// internal/app/features/signing/fields.go
package signing

import (
	"fmt"
	"strings"
)

// Required form fields the provider must deliver for each document type.
// A completion webhook missing any of these is rejected before the record
// is touched.
var (
	iclaRequiredFields = []string{
		"Full Name",
		"Public Name",
		"Mailing Address 1",
		"Mailing Address 2",
		"Country",
		"Telephone",
		"Email",
	}
	cclaRequiredFields = []string{
		"Corporation name",
		"Corporation address 1",
		"Corporation address 2",
		"Corporation address 3",
		"Title",
		"Fax",
		"Telephone",
		"Email",
		"Point of Contact",
	}
)

// fieldValue is one entry of a submitter's values array in the completion
// webhook payload.
type fieldValue struct {
	Field string `json:"field"`
	Value string `json:"value"`
}

// fieldMap flattens the values array into name/value pairs. Later entries
// win if the provider ever repeats a field name.
func fieldMap(values []fieldValue) map[string]string {
	m := make(map[string]string, len(values))
	for _, v := range values {
		m[v.Field] = v.Value
	}
	return m
}

// checkRequired returns an error naming every required field the payload
// did not carry, in the declared order.
func checkRequired(got map[string]string, required []string) error {
	var missing []string
	for _, name := range required {
		if _, ok := got[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return fmt.Errorf("missing required fields: %s", strings.Join(missing, ", "))
}

// joinAddress assembles a mailing address from its parts, skipping the
// ones left blank on the form.
func joinAddress(parts ...string) string {
	var kept []string
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
