// internal/app/features/clacheck/verdict.go
package clacheck

import (
	"context"
	"regexp"
	"sort"
	"strings"

	"github.com/dalemusser/clahub/internal/app/system/github"
	"github.com/dalemusser/clahub/internal/app/system/normalize"
)

// trivialRe matches the trivial-change marker on any line of a commit
// message, case-insensitively, with optional surrounding whitespace.
var trivialRe = regexp.MustCompile(`(?im)^\s*CLA\s*:\s*TRIVIAL`)

// IsTrivial reports whether the commit message declares the change trivial
// and therefore exempt from the agreement requirement.
func IsTrivial(message string) bool {
	return trivialRe.MatchString(message)
}

// Verdict is the outcome of checking one pull request.
type Verdict struct {
	Passed  bool
	Reason  string   // becomes the commit status description
	Missing []string // sorted author emails with no active agreement
}

// CoverageFunc reports whether an email is covered by an active agreement.
type CoverageFunc func(ctx context.Context, email string) (bool, error)

// Evaluate classifies every commit and aggregates coverage into a verdict.
// A pull request whose commits are all trivial passes without any lookups,
// including the degenerate empty commit list. Each author email is looked
// up at most once.
func Evaluate(ctx context.Context, commits []github.Commit, covered CoverageFunc) (Verdict, error) {
	allTrivial := true
	checked := make(map[string]bool)
	missing := make(map[string]bool)

	for _, c := range commits {
		if IsTrivial(c.Message) {
			continue
		}
		allTrivial = false

		email := normalize.Email(c.AuthorEmail)
		if checked[email] {
			continue
		}
		checked[email] = true

		ok, err := covered(ctx, email)
		if err != nil {
			return Verdict{}, err
		}
		if !ok {
			missing[email] = true
		}
	}

	if allTrivial {
		return Verdict{Passed: true, Reason: "Trivial"}, nil
	}
	if len(missing) == 0 {
		return Verdict{Passed: true, Reason: "CLA found"}, nil
	}

	emails := make([]string, 0, len(missing))
	for e := range missing {
		emails = append(emails, e)
	}
	sort.Strings(emails)
	return Verdict{
		Passed:  false,
		Reason:  "CLA missing: " + strings.Join(emails, ", "),
		Missing: emails,
	}, nil
}
