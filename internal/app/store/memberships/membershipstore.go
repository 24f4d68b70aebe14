// internal/app/store/memberships/membershipstore.go
package membershipstore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/clahub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c      *mongo.Collection
	people *mongo.Collection
	groups *mongo.Collection
}

func New(db *mongo.Database) *Store {
	return &Store{
		c:      db.Collection("group_memberships"),
		people: db.Collection("people"),
		groups: db.Collection("groups"),
	}
}

var ErrDuplicateMembership = errors.New("this membership interval already exists")

// Add creates a membership interval after verifying both ends exist.
// The same person can rejoin a group later, so (person, group, since)
// identifies the interval.
func (s *Store) Add(ctx context.Context, personID, groupID string, since, until *time.Time) (models.GroupMembership, error) {
	var p models.Person
	if err := s.people.FindOne(ctx, bson.M{"_id": personID}).Decode(&p); err != nil {
		return models.GroupMembership{}, err
	}
	var g models.Group
	if err := s.groups.FindOne(ctx, bson.M{"_id": groupID}).Decode(&g); err != nil {
		return models.GroupMembership{}, err
	}

	m := models.GroupMembership{
		ID:        uuid.NewString(),
		PersonID:  personID,
		GroupID:   groupID,
		Since:     since,
		Until:     until,
		CreatedAt: time.Now().UTC(),
	}
	if _, err := s.c.InsertOne(ctx, m); err != nil {
		if wafflemongo.IsDup(err) {
			return models.GroupMembership{}, ErrDuplicateMembership
		}
		return models.GroupMembership{}, err
	}
	return m, nil
}

// ListForPerson returns every membership interval for one person.
func (s *Store) ListForPerson(ctx context.Context, personID string) ([]models.GroupMembership, error) {
	cur, err := s.c.Find(ctx, bson.M{"person_id": personID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.GroupMembership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ListForGroup returns every membership interval for one group.
func (s *Store) ListForGroup(ctx context.Context, groupID string) ([]models.GroupMembership, error) {
	cur, err := s.c.Find(ctx, bson.M{"group_id": groupID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.GroupMembership
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActivePersonIDs returns the IDs of people whose membership in the group
// is in effect at asOf, deduplicated.
func (s *Store) ActivePersonIDs(ctx context.Context, groupID string, asOf time.Time) ([]string, error) {
	memberships, err := s.ListForGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool, len(memberships))
	var out []string
	for i := range memberships {
		m := &memberships[i]
		if m.ActiveAt(asOf) && !seen[m.PersonID] {
			seen[m.PersonID] = true
			out = append(out, m.PersonID)
		}
	}
	return out, nil
}

// ActiveSince returns the start of the person's membership in the group as
// of asOf. The bool result reports whether an active membership exists; a
// nil time means the interval is open-ended at the start.
func (s *Store) ActiveSince(ctx context.Context, personID, groupID string, asOf time.Time) (*time.Time, bool, error) {
	cur, err := s.c.Find(ctx, bson.M{"person_id": personID, "group_id": groupID})
	if err != nil {
		return nil, false, err
	}
	defer cur.Close(ctx)

	var memberships []models.GroupMembership
	if err := cur.All(ctx, &memberships); err != nil {
		return nil, false, err
	}
	for i := range memberships {
		if memberships[i].ActiveAt(asOf) {
			return memberships[i].Since, true, nil
		}
	}
	return nil, false, nil
}

// Remove deletes one membership interval.
func (s *Store) Remove(ctx context.Context, id string) error {
	_, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	return err
}
