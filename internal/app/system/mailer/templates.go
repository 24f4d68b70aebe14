// internal/app/system/mailer/templates.go
package mailer

import (
	"bytes"
	"fmt"
)

// SigningNotificationData holds data for the email sent to the project's
// CLA address when a contributor agreement completes.
type SigningNotificationData struct {
	Email          string // signer's email
	Agreement      string // "ICLA" or "CCLA"
	Corporation    string // set for CCLAs
	PointOfContact bool   // signer is their company's point of contact
}

// BuildSigningNotification creates the completion notification email.
func BuildSigningNotification(data SigningNotificationData) Email {
	subject := fmt.Sprintf("%s signed: %s", data.Agreement, data.Email)
	if data.Corporation != "" {
		subject = fmt.Sprintf("%s signed: %s (%s)", data.Agreement, data.Email, data.Corporation)
	}

	var buf bytes.Buffer
	fmt.Fprintf(&buf, "%s has signed %s", data.Email, data.Agreement)
	if data.PointOfContact {
		buf.WriteString(" with point of contact")
	}
	buf.WriteString(".\n")
	if data.Corporation != "" {
		fmt.Fprintf(&buf, "Corporation: %s\n", data.Corporation)
	}

	return Email{
		To:       "", // Set by caller
		Subject:  subject,
		TextBody: buf.String(),
	}
}

// ContactMessageData holds data for relaying a contact-form message.
type ContactMessageData struct {
	Name    string
	Email   string
	Message string // already sanitized to plain text
}

// BuildContactEmail creates the email that relays a contact-form message
// to the project's CLA address.
func BuildContactEmail(data ContactMessageData) Email {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "From: %s <%s>\n\n", data.Name, data.Email)
	buf.WriteString(data.Message)
	buf.WriteString("\n")

	return Email{
		To:       "", // Set by caller
		Subject:  fmt.Sprintf("CLA contact form: %s", data.Name),
		TextBody: buf.String(),
	}
}
