// internal/domain/models/ccla.go
package models

import "time"

// CCLA is a Corporate Contributor License Agreement record covering the
// contributors a company sponsors. The corporation name is the natural key;
// individual records point at it through ICLA.CCLAID.
type CCLA struct {
	ID                    string `bson:"_id" json:"id"`
	CorporationName       string `bson:"corporation_name" json:"corporation_name"`
	CorporationNameCI     string `bson:"corporation_name_ci" json:"-"` // folded, unique
	CorporationAlias      string `bson:"corporation_alias,omitempty" json:"corporation_alias,omitempty"`
	CorporationAddress    string `bson:"corporation_address,omitempty" json:"corporation_address,omitempty"`
	AuthorizedSignerEmail string `bson:"authorized_signer_email,omitempty" json:"authorized_signer_email,omitempty"`
	AuthorizedSignerName  string `bson:"authorized_signer_name,omitempty" json:"authorized_signer_name,omitempty"`
	AuthorizedSignerTitle string `bson:"authorized_signer_title,omitempty" json:"authorized_signer_title,omitempty"`
	ManagerEmail          string `bson:"manager_email,omitempty" json:"manager_email,omitempty"` // point of contact
	ManagerName           string `bson:"manager_name,omitempty" json:"manager_name,omitempty"`
	Fax                   string `bson:"fax,omitempty" json:"fax,omitempty"`
	Telephone             string `bson:"telephone,omitempty" json:"telephone,omitempty"`
	SubmissionID          *int   `bson:"submission_id,omitempty" json:"submission_id,omitempty"`
	PDFPath               string `bson:"pdf_path,omitempty" json:"pdf_path,omitempty"`

	SignedAt  *time.Time `bson:"signed_at,omitempty" json:"signed_at,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
}

// Signed reports whether the provider has confirmed a completed submission.
func (c *CCLA) Signed() bool {
	return c.SignedAt != nil
}
