// internal/domain/models/person.go
package models

import "time"

// Person is one entry in the personnel directory. The handle fields
// (GitHub, GHE, Rev, PGP) are each unique across the directory when set;
// Emails and Identities are embedded sets whose elements are globally
// unique across all people (enforced by multikey unique indexes).
type Person struct {
	ID       string     `bson:"_id" json:"id"`
	Name     string     `bson:"name" json:"name"`
	Country  string     `bson:"country,omitempty" json:"country,omitempty"`
	JoinedAt *time.Time `bson:"joined_at,omitempty" json:"joined_at,omitempty"`
	Nick     string     `bson:"nick,omitempty" json:"nick,omitempty"`
	GitHub   string     `bson:"github,omitempty" json:"github,omitempty"`
	GHE      string     `bson:"ghe,omitempty" json:"ghe,omitempty"`
	Rev      string     `bson:"rev,omitempty" json:"rev,omitempty"`
	PGP      string     `bson:"pgp,omitempty" json:"pgp,omitempty"`

	Emails     []string `bson:"emails,omitempty" json:"emails,omitempty"`
	Identities []string `bson:"identities,omitempty" json:"identities,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Tags returns the free-form tag map exposed by the read API. Only tags
// with a value are present.
func (p *Person) Tags() map[string]string {
	tags := map[string]string{}
	if p.Country != "" {
		tags["country"] = p.Country
	}
	if p.PGP != "" {
		tags["pgp"] = p.PGP
	}
	if p.Rev != "" {
		tags["rev"] = p.Rev
	}
	return tags
}

// IDs returns the identifier list in the read API's wire shape: emails and
// identity strings first (deduplicated, in stored order), then the display
// name, then one keyed entry per optional handle.
func (p *Person) IDs() []any {
	seen := make(map[string]bool, len(p.Emails)+len(p.Identities))
	ids := make([]any, 0, len(p.Emails)+len(p.Identities)+4)
	for _, s := range p.Emails {
		if !seen[s] {
			seen[s] = true
			ids = append(ids, s)
		}
	}
	for _, s := range p.Identities {
		if !seen[s] {
			seen[s] = true
			ids = append(ids, s)
		}
	}
	ids = append(ids, p.Name)
	if p.Nick != "" {
		ids = append(ids, map[string]string{"nick": p.Nick})
	}
	if p.GHE != "" {
		ids = append(ids, map[string]string{"ghe": p.GHE})
	}
	if p.GitHub != "" {
		ids = append(ids, map[string]string{"github": p.GitHub})
	}
	return ids
}
