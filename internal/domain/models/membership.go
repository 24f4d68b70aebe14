// internal/domain/models/membership.go
package models

import "time"

// GroupMembership ties a person to a group for a bounded period.
// Either bound may be open-ended.
type GroupMembership struct {
	ID       string     `bson:"_id,omitempty" json:"id"`
	PersonID string     `bson:"person_id" json:"person_id"`
	GroupID  string     `bson:"group_id" json:"group_id"`
	Since    *time.Time `bson:"since,omitempty" json:"since,omitempty"`
	Until    *time.Time `bson:"until,omitempty" json:"until,omitempty"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
}

// ActiveAt reports whether the membership is in effect on the given day:
// since is unset or not after asOf, and until is unset or strictly after asOf.
func (m *GroupMembership) ActiveAt(asOf time.Time) bool {
	if m.Since != nil && m.Since.After(asOf) {
		return false
	}
	if m.Until != nil && !m.Until.After(asOf) {
		return false
	}
	return true
}
