// internal/app/store/cclas/cclastore.go
package cclastore

import (
	"context"
	"errors"
	"time"

	"github.com/dalemusser/clahub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Store struct {
	c *mongo.Collection
}

// ErrDuplicateName is returned when a corporate agreement already exists
// under the same (case-folded) corporation name.
var ErrDuplicateName = errors.New("a corporate agreement with this name already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("cclas")}
}

// Reserve inserts a record for the corporation while the signing flow is in
// flight. The unique index on corporation_name_ci arbitrates races.
func (s *Store) Reserve(ctx context.Context, corporationName, signerEmail, signerName string) (models.CCLA, error) {
	now := time.Now().UTC()
	ccla := models.CCLA{
		ID:                    uuid.NewString(),
		CorporationName:       corporationName,
		CorporationNameCI:     text.Fold(corporationName),
		AuthorizedSignerEmail: signerEmail,
		AuthorizedSignerName:  signerName,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if _, err := s.c.InsertOne(ctx, ccla); err != nil {
		if wafflemongo.IsDup(err) {
			return models.CCLA{}, ErrDuplicateName
		}
		return models.CCLA{}, err
	}
	return ccla, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (models.CCLA, error) {
	var ccla models.CCLA
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&ccla); err != nil {
		return models.CCLA{}, err
	}
	return ccla, nil
}

// GetByName looks a corporation up by its case-folded name.
func (s *Store) GetByName(ctx context.Context, corporationName string) (models.CCLA, error) {
	var ccla models.CCLA
	err := s.c.FindOne(ctx, bson.M{"corporation_name_ci": text.Fold(corporationName)}).Decode(&ccla)
	if err != nil {
		return models.CCLA{}, err
	}
	return ccla, nil
}

func (s *Store) GetBySubmissionID(ctx context.Context, submissionID int) (models.CCLA, error) {
	var ccla models.CCLA
	err := s.c.FindOne(ctx, bson.M{"submission_id": submissionID}).Decode(&ccla)
	if err != nil {
		return models.CCLA{}, err
	}
	return ccla, nil
}

// Save replaces the stored record, refreshing UpdatedAt and the folded name.
func (s *Store) Save(ctx context.Context, ccla models.CCLA) (models.CCLA, error) {
	ccla.CorporationNameCI = text.Fold(ccla.CorporationName)
	ccla.UpdatedAt = time.Now().UTC()
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": ccla.ID}, ccla)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.CCLA{}, ErrDuplicateName
		}
		return models.CCLA{}, err
	}
	return ccla, nil
}

// List returns all corporate agreements sorted by folded name.
func (s *Store) List(ctx context.Context) ([]models.CCLA, error) {
	cur, err := s.c.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "corporation_name_ci", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.CCLA
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
