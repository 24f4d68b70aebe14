// internal/domain/models/icla.go
package models

import "time"

// ICLA is one person's Individual Contributor License Agreement record.
//
// A record starts out as an email-only reservation created when a signing
// request is first submitted. The remaining fields are filled in when the
// signing provider reports the completed submission, and PDFPath is set once
// the signed document has been fetched and archived.
type ICLA struct {
	ID             string  `bson:"_id" json:"id"`
	Email          string  `bson:"email" json:"email"`       // normalized lower-case
	FullName       string  `bson:"full_name" json:"full_name"`
	PublicName     string  `bson:"public_name,omitempty" json:"public_name,omitempty"`
	MailingAddress string  `bson:"mailing_address,omitempty" json:"mailing_address,omitempty"`
	Country        string  `bson:"country,omitempty" json:"country,omitempty"`
	Telephone      string  `bson:"telephone,omitempty" json:"telephone,omitempty"`
	Volunteer      bool    `bson:"volunteer" json:"volunteer"`
	SubmissionID   *int    `bson:"submission_id,omitempty" json:"submission_id,omitempty"`
	InRoster       bool    `bson:"in_roster" json:"in_roster"` // listed on the corporate schedule A
	PointOfContact string  `bson:"point_of_contact,omitempty" json:"point_of_contact,omitempty"`
	CCLAID         *string `bson:"ccla_id,omitempty" json:"ccla_id,omitempty"`
	PersonID       *string `bson:"person_id,omitempty" json:"person_id,omitempty"`
	PDFPath        string  `bson:"pdf_path,omitempty" json:"pdf_path,omitempty"`

	SignedAt  *time.Time `bson:"signed_at,omitempty" json:"signed_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// IsVolunteer reports whether the signer contributes as an individual.
// A record sponsored by a corporate agreement is never a volunteer,
// regardless of the stored flag.
func (c *ICLA) IsVolunteer() bool {
	return c.CCLAID == nil && c.Volunteer
}

// IsActive reports whether this agreement currently covers contributions.
// A record with no archived signed document is never active. Sponsored
// signers must additionally appear on their employer's roster.
func (c *ICLA) IsActive() bool {
	if c.PDFPath == "" {
		return false
	}
	if c.IsVolunteer() {
		return true
	}
	return c.InRoster
}

// Signed reports whether the provider has confirmed a completed submission.
func (c *ICLA) Signed() bool {
	return c.SignedAt != nil
}
