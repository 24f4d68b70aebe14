// internal/app/system/indexes/indexes.go
package indexes

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureAll is called at startup. Each ensure* function is idempotent.
We aggregate errors so any problem is visible and startup can fail fast.
*/
func EnsureAll(ctx context.Context, db *mongo.Database) error {
	var problems []string

	if err := ensureICLAs(ctx, db); err != nil {
		problems = append(problems, "iclas: "+err.Error())
	}
	if err := ensureCCLAs(ctx, db); err != nil {
		problems = append(problems, "cclas: "+err.Error())
	}
	if err := ensurePeople(ctx, db); err != nil {
		problems = append(problems, "people: "+err.Error())
	}
	if err := ensureGroups(ctx, db); err != nil {
		problems = append(problems, "groups: "+err.Error())
	}
	if err := ensureGroupMemberships(ctx, db); err != nil {
		problems = append(problems, "group_memberships: "+err.Error())
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

/* -------------------------------------------------------------------------- */
/* Core helper: reconcile a set of desired indexes for one collection         */
/* -------------------------------------------------------------------------- */

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
	Sparse *bool  `bson:"sparse,omitempty"`
}

func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

func sameBoolPtr(a, b *bool) bool {
	av := false
	bv := false
	if a != nil {
		av = *a
	}
	if b != nil {
		bv = *b
	}
	return av == bv
}

// Best-effort duplicate-detector (works cross-vendors)
func isDuplicateKeyErr(err error) bool {
	if err == nil {
		return false
	}
	var we mongo.WriteException
	if errors.As(err, &we) {
		for _, e := range we.WriteErrors {
			if e.Code == 11000 { // E11000 duplicate key error index
				return true
			}
		}
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && ce.Code == 11000 {
		return true
	}
	s := err.Error()
	return strings.Contains(s, "E11000") || strings.Contains(strings.ToLower(s), "duplicate key")
}

// Mongo/DocDB sometimes returns IndexOptionsConflict when an index with the
// same keys already exists under a different name (or options differ).
func isOptionsConflictErr(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict")
}

func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string

	for _, m := range models {
		var desiredName string
		var desiredUnique *bool
		if m.Options != nil {
			if m.Options.Name != nil {
				desiredName = *m.Options.Name
			}
			if m.Options.Unique != nil {
				desiredUnique = m.Options.Unique
			}
		}
		desiredSig := keySig(m.Keys.(bson.D))

		start := time.Now()
		zap.L().Info("ensuring index",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique))

		// 1) Load existing indexes
		existing := map[string]existingIndex{} // sig -> index
		cur, err := coll.Indexes().List(ctx)
		if err == nil {
			for cur.Next(ctx) {
				var idx existingIndex
				if err := cur.Decode(&idx); err != nil {
					zap.L().Warn("failed to decode existing index",
						zap.String("collection", coll.Name()),
						zap.Error(err))
					continue
				}
				existing[keySig(idx.Key)] = idx
			}
			cur.Close(ctx)
		}

		if ex, ok := existing[desiredSig]; ok {
			// Same key pattern exists already.
			if sameBoolPtr(desiredUnique, ex.Unique) {
				// Name alignment: if the name differs, drop & recreate under the desired name.
				if desiredName != "" && ex.Name != desiredName {
					if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
						errs = append(errs, fmt.Sprintf("%s(%s): rename drop failed: %v", coll.Name(), desiredName, err))
						continue
					}
					if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
						errs = append(errs, fmt.Sprintf("%s(%s): rename create failed: %v", coll.Name(), desiredName, err))
						continue
					}
					zap.L().Info("index renamed",
						zap.String("collection", coll.Name()),
						zap.String("from", ex.Name),
						zap.String("to", desiredName),
						zap.String("took", time.Since(start).String()))
					continue
				}

				zap.L().Info("reusing existing index",
					zap.String("collection", coll.Name()),
					zap.String("name", ex.Name),
					zap.String("keys", desiredSig),
					zap.String("took", time.Since(start).String()))
				continue
			}

			// Options mismatch (e.g., upgrading to unique). Drop & recreate.
			if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
				errs = append(errs, fmt.Sprintf("%s(%s): drop failed: %v", coll.Name(), desiredName, err))
				continue
			}
			if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
				errs = append(errs, describeCreateErr(coll.Name(), desiredName, desiredSig, desiredUnique, err))
				continue
			}
			zap.L().Info("index dropped and recreated",
				zap.String("collection", coll.Name()),
				zap.String("name", desiredName),
				zap.String("keys", desiredSig),
				zap.String("took", time.Since(start).String()))
			continue
		}

		// 2) No existing index with the same keys: create it.
		created, err := coll.Indexes().CreateOne(ctx, m)
		if err != nil {
			if isOptionsConflictErr(err) {
				// An index with these keys appeared concurrently; next startup
				// will reconcile its name/options.
				zap.L().Info("index exists under conflicting options, leaving as-is",
					zap.String("collection", coll.Name()),
					zap.String("keys", desiredSig))
				continue
			}
			errs = append(errs, describeCreateErr(coll.Name(), desiredName, desiredSig, desiredUnique, err))
			continue
		}
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", desiredName),
			zap.String("created_name", created),
			zap.String("keys", desiredSig),
			zap.Bool("unique", desiredUnique != nil && *desiredUnique),
			zap.String("took", time.Since(start).String()))
	}

	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func describeCreateErr(coll, name, sig string, unique *bool, err error) string {
	if isDuplicateKeyErr(err) && unique != nil && *unique {
		helper := ""
		if coll == "iclas" && strings.Contains(sig, "email:1") {
			helper = ": duplicates exist on iclas.email. Example finder:\n" +
				`db.iclas.aggregate([{ $group: { _id: "$email", n: { $sum: 1 } } }, { $match: { n: { $gt: 1 } } }])`
		}
		return fmt.Sprintf("%s(%s): cannot create unique index (duplicates present)%s", coll, name, helper)
	}
	return fmt.Sprintf("%s(%s): %v", coll, name, err)
}

/* -------------------------------------------------------------------------- */
/* Collection-specific index sets                                              */
/* -------------------------------------------------------------------------- */

func ensureICLAs(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("iclas")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// 1) One agreement record per email. This is the concurrency guard:
		//    two simultaneous reservations for the same address race on this
		//    index and exactly one wins.
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_iclas_email"),
		},

		// 2) Corporate rollups: list the individuals signed under a CCLA.
		{
			Keys:    bson.D{{Key: "ccla_id", Value: 1}},
			Options: options.Index().SetName("idx_iclas_ccla"),
		},

		// 3) Completion-webhook replay detection by signing submission.
		{
			Keys:    bson.D{{Key: "submission_id", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_iclas_submission"),
		},
	})
}

func ensureCCLAs(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("cclas")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Enforce global uniqueness of corporation names (case/diacritics folded).
		{
			Keys:    bson.D{{Key: "corporation_name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_cclas_nameci"),
		},
		{
			Keys:    bson.D{{Key: "submission_id", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_cclas_submission"),
		},
	})
}

func ensurePeople(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("people")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Display names may collide; lookups that match more than one person
		// resolve as ambiguous. The index only backs the roster sort.
		{
			Keys:    bson.D{{Key: "name", Value: 1}},
			Options: options.Index().SetName("idx_people_name"),
		},

		// Machine identifiers must be unique across the roster, or lookups
		// would be ambiguous. emails and identities are arrays; the multikey
		// index enforces uniqueness of each element across documents.
		{
			Keys:    bson.D{{Key: "emails", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_people_emails"),
		},
		{
			Keys:    bson.D{{Key: "identities", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_people_identities"),
		},
		{
			Keys:    bson.D{{Key: "github", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_people_github"),
		},
		{
			Keys:    bson.D{{Key: "ghe", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_people_ghe"),
		},
		{
			Keys:    bson.D{{Key: "rev", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_people_rev"),
		},
		{
			Keys:    bson.D{{Key: "pgp", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true).SetName("uniq_people_pgp"),
		},

		// nick is a convenience lookup key, not unique; collisions surface
		// as ambiguity at resolution time.
		{
			Keys:    bson.D{{Key: "nick", Value: 1}},
			Options: options.Index().SetSparse(true).SetName("idx_people_nick"),
		},
	})
}

func ensureGroups(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("groups")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// No duplicate group names (case/diacritics folded via name_ci).
		{
			Keys:    bson.D{{Key: "name_ci", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("uniq_groups_nameci"),
		},
	})
}

func ensureGroupMemberships(ctx context.Context, db *mongo.Database) error {
	c := db.Collection("group_memberships")
	return ensureIndexSet(ctx, c, []mongo.IndexModel{
		// Memberships are intervals; the same person can rejoin a group, so
		// the start date is part of the identity.
		{
			Keys: bson.D{
				{Key: "person_id", Value: 1},
				{Key: "group_id", Value: 1},
				{Key: "since", Value: 1},
			},
			Options: options.Index().SetUnique(true).SetName("uniq_gm_person_group_since"),
		},

		// Roster expansion: all memberships for one group.
		{
			Keys:    bson.D{{Key: "group_id", Value: 1}},
			Options: options.Index().SetName("idx_gm_group"),
		},

		// Person detail: which groups someone belongs to.
		{
			Keys:    bson.D{{Key: "person_id", Value: 1}},
			Options: options.Index().SetName("idx_gm_person"),
		},
	})
}
