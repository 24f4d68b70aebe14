// internal/app/store/people/peoplestore.go
package peoplestore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/clahub/internal/app/system/normalize"
	"github.com/dalemusser/clahub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

var (
	// ErrDuplicateIdentifier is returned when a person's handle or one of
	// their email/identity strings is already claimed.
	ErrDuplicateIdentifier = errors.New("an identifier on this person is already in use")

	// ErrAmbiguous is returned when a lookup string resolves to more than
	// one person. The read API treats this the same as a miss.
	ErrAmbiguous = errors.New("identifier matches more than one person")
)

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("people")}
}

// Create inserts a directory entry. Machine identifiers (handles, emails,
// identities) are unique across the directory, enforced by the collection's
// indexes; display names may collide.
func (s *Store) Create(ctx context.Context, p models.Person) (models.Person, error) {
	now := time.Now().UTC()
	p.ID = uuid.NewString()
	for i, e := range p.Emails {
		p.Emails[i] = normalize.Email(e)
	}
	p.CreatedAt = now
	p.UpdatedAt = now
	if _, err := s.c.InsertOne(ctx, p); err != nil {
		if wafflemongo.IsDup(err) {
			return models.Person{}, ErrDuplicateIdentifier
		}
		return models.Person{}, err
	}
	return p, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (models.Person, error) {
	var p models.Person
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		return models.Person{}, err
	}
	return p, nil
}

// FindByIdentifier resolves a lookup string against every identifier field:
// display name, nick, ghe, github, any email, any identity. Emails are
// matched in normalized form. A string matching more than one person is
// ambiguous and returns ErrAmbiguous.
func (s *Store) FindByIdentifier(ctx context.Context, identifier string) (models.Person, error) {
	filter := bson.M{"$or": bson.A{
		bson.M{"name": identifier},
		bson.M{"nick": identifier},
		bson.M{"ghe": identifier},
		bson.M{"github": identifier},
		bson.M{"emails": normalize.Email(identifier)},
		bson.M{"identities": identifier},
	}}

	cur, err := s.c.Find(ctx, filter, options.Find().SetLimit(2))
	if err != nil {
		return models.Person{}, err
	}
	defer cur.Close(ctx)

	var matches []models.Person
	if err := cur.All(ctx, &matches); err != nil {
		return models.Person{}, err
	}
	switch len(matches) {
	case 0:
		return models.Person{}, mongo.ErrNoDocuments
	case 1:
		return matches[0], nil
	default:
		return models.Person{}, ErrAmbiguous
	}
}

// List returns the whole directory sorted by name.
func (s *Store) List(ctx context.Context) ([]models.Person, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Person
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetByIDs loads the people with the given IDs. Missing IDs are skipped.
func (s *Store) GetByIDs(ctx context.Context, ids []string) ([]models.Person, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	cur, err := s.c.Find(ctx, bson.M{"_id": bson.M{"$in": ids}},
		options.Find().SetSort(bson.D{{Key: "name", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.Person
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
