// internal/app/store/iclas/iclastore.go
package iclastore

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/dalemusser/clahub/internal/app/system/normalize"
	"github.com/dalemusser/clahub/internal/domain/models"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
)

type Store struct {
	c *mongo.Collection
}

// ErrDuplicateEmail is returned when a record already exists for the email.
// The unique index on iclas.email arbitrates concurrent reservations, so
// callers can treat this as "someone else got there first".
var ErrDuplicateEmail = errors.New("an agreement for this email already exists")

func New(db *mongo.Database) *Store {
	return &Store{c: db.Collection("iclas")}
}

// Reserve inserts an email-only record that pins the address while the
// signing flow is in flight. Email is normalized before storage; lookups
// must go through the same normalization.
func (s *Store) Reserve(ctx context.Context, email string) (models.ICLA, error) {
	now := time.Now().UTC()
	icla := models.ICLA{
		ID:        uuid.NewString(),
		Email:     normalize.Email(email),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if _, err := s.c.InsertOne(ctx, icla); err != nil {
		if wafflemongo.IsDup(err) {
			return models.ICLA{}, ErrDuplicateEmail
		}
		return models.ICLA{}, err
	}
	return icla, nil
}

func (s *Store) GetByID(ctx context.Context, id string) (models.ICLA, error) {
	var icla models.ICLA
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&icla); err != nil {
		return models.ICLA{}, err
	}
	return icla, nil
}

func (s *Store) GetByEmail(ctx context.Context, email string) (models.ICLA, error) {
	var icla models.ICLA
	err := s.c.FindOne(ctx, bson.M{"email": normalize.Email(email)}).Decode(&icla)
	if err != nil {
		return models.ICLA{}, err
	}
	return icla, nil
}

func (s *Store) GetBySubmissionID(ctx context.Context, submissionID int) (models.ICLA, error) {
	var icla models.ICLA
	err := s.c.FindOne(ctx, bson.M{"submission_id": submissionID}).Decode(&icla)
	if err != nil {
		return models.ICLA{}, err
	}
	return icla, nil
}

// Covered reports whether email is covered by an active agreement: a signed
// volunteer record, or a sponsored record whose signer is on the
// corporation's roster.
func (s *Store) Covered(ctx context.Context, email string) (bool, error) {
	icla, err := s.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return false, nil
		}
		return false, err
	}
	return icla.IsActive(), nil
}

// Save replaces the stored record. UpdatedAt is refreshed here so callers
// never have to remember it.
func (s *Store) Save(ctx context.Context, icla models.ICLA) (models.ICLA, error) {
	icla.UpdatedAt = time.Now().UTC()
	_, err := s.c.ReplaceOne(ctx, bson.M{"_id": icla.ID}, icla)
	if err != nil {
		if wafflemongo.IsDup(err) {
			return models.ICLA{}, ErrDuplicateEmail
		}
		return models.ICLA{}, err
	}
	return icla, nil
}

// ListByCCLA returns the individual records sponsored by one corporate
// agreement.
func (s *Store) ListByCCLA(ctx context.Context, cclaID string) ([]models.ICLA, error) {
	cur, err := s.c.Find(ctx, bson.M{"ccla_id": cclaID})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.ICLA
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ActiveEmails filters the given addresses down to those covered by an
// active agreement. Input is normalized; output preserves input order.
func (s *Store) ActiveEmails(ctx context.Context, emails []string) ([]string, error) {
	if len(emails) == 0 {
		return nil, nil
	}
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		normalized = append(normalized, normalize.Email(e))
	}

	cur, err := s.c.Find(ctx, bson.M{"email": bson.M{"$in": normalized}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []models.ICLA
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}

	active := make(map[string]bool, len(records))
	for i := range records {
		if records[i].IsActive() {
			active[records[i].Email] = true
		}
	}
	var out []string
	for _, e := range normalized {
		if active[e] {
			out = append(out, e)
		}
	}
	return out, nil
}

// ListActiveEmails returns every email covered by an active agreement,
// sorted.
func (s *Store) ListActiveEmails(ctx context.Context) ([]string, error) {
	cur, err := s.c.Find(ctx, bson.M{"pdf_path": bson.M{"$exists": true, "$ne": ""}})
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var records []models.ICLA
	if err := cur.All(ctx, &records); err != nil {
		return nil, err
	}

	var out []string
	for i := range records {
		if records[i].IsActive() {
			out = append(out, records[i].Email)
		}
	}
	sort.Strings(out)
	return out, nil
}

// Delete removes a record by ID. Returns the number of documents deleted (0 or 1).
func (s *Store) Delete(ctx context.Context, id string) (int64, error) {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return 0, err
	}
	return res.DeletedCount, nil
}
