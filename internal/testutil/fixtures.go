package testutil

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/dalemusser/clahub/internal/app/system/normalize"
	"github.com/dalemusser/clahub/internal/domain/models"
	"github.com/dalemusser/waffle/pantry/text"
	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/mongo"
)

// WithChiURLParam adds a chi URL parameter to the request context.
// Use this in handler tests that need to access chi.URLParam values.
func WithChiURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// Fixtures provides helper methods for creating test data.
type Fixtures struct {
	db *mongo.Database
	t  *testing.T
}

// NewFixtures creates a new Fixtures instance for the given test database.
func NewFixtures(t *testing.T, db *mongo.Database) *Fixtures {
	t.Helper()
	return &Fixtures{db: db, t: t}
}

// DB returns the underlying database for direct access in tests.
func (f *Fixtures) DB() *mongo.Database {
	return f.db
}

// CreateICLA creates an email-only reservation, the state a record is in
// after a signing request has been accepted but before the provider
// reports completion.
func (f *Fixtures) CreateICLA(ctx context.Context, email string) models.ICLA {
	f.t.Helper()

	now := time.Now().UTC()
	icla := models.ICLA{
		ID:        uuid.NewString(),
		Email:     normalize.Email(email),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("iclas").InsertOne(ctx, icla); err != nil {
		f.t.Fatalf("failed to create test agreement: %v", err)
	}
	return icla
}

// CreateSignedICLA creates a completed volunteer agreement with an archived
// document, i.e. an active individual record.
func (f *Fixtures) CreateSignedICLA(ctx context.Context, email string) models.ICLA {
	f.t.Helper()

	now := time.Now().UTC()
	subID := 1000 + int(now.UnixNano()%100000)
	signed := now.Add(-time.Hour)
	icla := models.ICLA{
		ID:           uuid.NewString(),
		Email:        normalize.Email(email),
		FullName:     "Test Signer",
		Volunteer:    true,
		SubmissionID: &subID,
		SignedAt:     &signed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	icla.PDFPath = "ICLA/" + icla.ID + ".pdf"

	if _, err := f.db.Collection("iclas").InsertOne(ctx, icla); err != nil {
		f.t.Fatalf("failed to create signed test agreement: %v", err)
	}
	return icla
}

// CreateSponsoredICLA creates a completed agreement tied to a corporate
// agreement. inRoster controls whether the signer appears on the
// corporation's covered-contributor roster.
func (f *Fixtures) CreateSponsoredICLA(ctx context.Context, email, cclaID string, inRoster bool) models.ICLA {
	f.t.Helper()

	now := time.Now().UTC()
	subID := 2000 + int(now.UnixNano()%100000)
	signed := now.Add(-time.Hour)
	icla := models.ICLA{
		ID:           uuid.NewString(),
		Email:        normalize.Email(email),
		FullName:     "Sponsored Signer",
		Volunteer:    false,
		InRoster:     inRoster,
		CCLAID:       &cclaID,
		SubmissionID: &subID,
		SignedAt:     &signed,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	icla.PDFPath = "CCLA/" + cclaID + "/" + icla.ID + ".pdf"

	if _, err := f.db.Collection("iclas").InsertOne(ctx, icla); err != nil {
		f.t.Fatalf("failed to create sponsored test agreement: %v", err)
	}
	return icla
}

// CreateCCLA creates a signed corporate agreement.
func (f *Fixtures) CreateCCLA(ctx context.Context, corporationName string) models.CCLA {
	f.t.Helper()

	now := time.Now().UTC()
	signed := now.Add(-time.Hour)
	ccla := models.CCLA{
		ID:                uuid.NewString(),
		CorporationName:   corporationName,
		CorporationNameCI: text.Fold(corporationName),
		ManagerEmail:      "manager@corp.example",
		ManagerName:       "Test Manager",
		SignedAt:          &signed,
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	ccla.PDFPath = "CCLA/" + ccla.ID + "/" + ccla.ID + ".pdf"

	if _, err := f.db.Collection("cclas").InsertOne(ctx, ccla); err != nil {
		f.t.Fatalf("failed to create test corporate agreement: %v", err)
	}
	return ccla
}

// CreatePerson creates a directory entry with the given name and email
// addresses.
func (f *Fixtures) CreatePerson(ctx context.Context, name string, emails ...string) models.Person {
	f.t.Helper()

	now := time.Now().UTC()
	normalized := make([]string, 0, len(emails))
	for _, e := range emails {
		normalized = append(normalized, normalize.Email(e))
	}
	p := models.Person{
		ID:        uuid.NewString(),
		Name:      name,
		Emails:    normalized,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("people").InsertOne(ctx, p); err != nil {
		f.t.Fatalf("failed to create test person: %v", err)
	}
	return p
}

// CreateGroup creates a directory group with the given name.
func (f *Fixtures) CreateGroup(ctx context.Context, name string) models.Group {
	f.t.Helper()

	now := time.Now().UTC()
	g := models.Group{
		ID:        uuid.NewString(),
		Name:      name,
		NameCI:    text.Fold(name),
		CreatedAt: now,
		UpdatedAt: now,
	}

	if _, err := f.db.Collection("groups").InsertOne(ctx, g); err != nil {
		f.t.Fatalf("failed to create test group: %v", err)
	}
	return g
}

// CreateMembership ties a person to a group for the given period. Either
// bound may be nil for an open interval.
func (f *Fixtures) CreateMembership(ctx context.Context, personID, groupID string, since, until *time.Time) models.GroupMembership {
	f.t.Helper()

	m := models.GroupMembership{
		ID:        uuid.NewString(),
		PersonID:  personID,
		GroupID:   groupID,
		Since:     since,
		Until:     until,
		CreatedAt: time.Now().UTC(),
	}

	if _, err := f.db.Collection("group_memberships").InsertOne(ctx, m); err != nil {
		f.t.Fatalf("failed to create test membership: %v", err)
	}
	return m
}
