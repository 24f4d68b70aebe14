package clacheck_test

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/dalemusser/clahub/internal/app/features/clacheck"
	"github.com/dalemusser/clahub/internal/app/system/github"
	"github.com/dalemusser/clahub/internal/testutil"
	"go.uber.org/zap"
)

type fakeCoverage struct {
	active map[string]bool
}

func (f *fakeCoverage) Covered(ctx context.Context, email string) (bool, error) {
	return f.active[email], nil
}

type statusCall struct {
	url, state, description string
}

type labelCall struct {
	url, label string
}

type fakeGitHub struct {
	commits  []github.Commit
	listErr  error
	statuses []statusCall
	added    []labelCall
	removed  []labelCall
}

func (f *fakeGitHub) ListCommits(ctx context.Context, commitsURL string) ([]github.Commit, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return f.commits, nil
}

func (f *fakeGitHub) CreateStatus(ctx context.Context, statusesURL, state, description string) error {
	f.statuses = append(f.statuses, statusCall{statusesURL, state, description})
	return nil
}

func (f *fakeGitHub) AddLabel(ctx context.Context, issueURL, label string) error {
	f.added = append(f.added, labelCall{issueURL, label})
	return nil
}

func (f *fakeGitHub) RemoveLabel(ctx context.Context, issueURL, label string) error {
	f.removed = append(f.removed, labelCall{issueURL, label})
	return nil
}

func prBody(action string) map[string]any {
	return map[string]any{
		"action": action,
		"pull_request": map[string]any{
			"commits_url": "https://api.example/repos/o/r/pulls/1/commits",
			"issue_url":   "https://api.example/repos/o/r/issues/1",
			"_links": map[string]any{
				"statuses": map[string]any{
					"href": "https://api.example/repos/o/r/statuses/abc",
				},
			},
		},
	}
}

func TestServeWebhook_Ping(t *testing.T) {
	h := clacheck.NewHandler(&fakeCoverage{}, &fakeGitHub{}, zap.NewNop())

	req := testutil.NewRequest(http.MethodPost, "/")
	req.Header.Set("X-GitHub-Event", "ping")
	rec := testutil.NewRecorder()

	h.ServeWebhook(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "pong")
}

func TestServeWebhook_WrongEvent(t *testing.T) {
	h := clacheck.NewHandler(&fakeCoverage{}, &fakeGitHub{}, zap.NewNop())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/", prBody("opened"))
	req.Header.Set("X-GitHub-Event", "issues")
	rec := testutil.NewRecorder()

	h.ServeWebhook(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeWebhook_MalformedJSON(t *testing.T) {
	h := clacheck.NewHandler(&fakeCoverage{}, &fakeGitHub{}, zap.NewNop())

	req := testutil.NewFormRequest(http.MethodPost, "/", "{not json")
	req.Header.Set("X-GitHub-Event", "pull_request")
	rec := testutil.NewRecorder()

	h.ServeWebhook(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
}

func TestServeWebhook_NoopAction(t *testing.T) {
	gh := &fakeGitHub{}
	h := clacheck.NewHandler(&fakeCoverage{}, gh, zap.NewNop())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/", prBody("labeled"))
	req.Header.Set("X-GitHub-Event", "pull_request")
	rec := testutil.NewRecorder()

	h.ServeWebhook(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "No-op action labeled")
	if len(gh.statuses) != 0 || len(gh.added) != 0 || len(gh.removed) != 0 {
		t.Error("no-op action must not touch the platform")
	}
}

func TestServeWebhook_PassRemovesHoldLabel(t *testing.T) {
	gh := &fakeGitHub{
		commits: []github.Commit{
			{AuthorEmail: "covered@example.com", Message: "real change"},
		},
	}
	cov := &fakeCoverage{active: map[string]bool{"covered@example.com": true}}
	h := clacheck.NewHandler(cov, gh, zap.NewNop())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/", prBody("opened"))
	req.Header.Set("X-GitHub-Event", "pull_request")
	rec := testutil.NewRecorder()

	h.ServeWebhook(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "ok")

	if len(gh.statuses) != 1 {
		t.Fatalf("expected 1 status post, got %d", len(gh.statuses))
	}
	st := gh.statuses[0]
	if st.state != github.StateSuccess || st.description != "CLA found" {
		t.Errorf("status: got %+v", st)
	}
	if st.url != "https://api.example/repos/o/r/statuses/abc" {
		t.Errorf("status url: got %q", st.url)
	}

	if len(gh.removed) != 1 || gh.removed[0].label != clacheck.HoldLabel {
		t.Errorf("expected hold label removal, got %v", gh.removed)
	}
	if len(gh.added) != 0 {
		t.Errorf("pass must not add labels, got %v", gh.added)
	}
}

func TestServeWebhook_FailAddsHoldLabel(t *testing.T) {
	gh := &fakeGitHub{
		commits: []github.Commit{
			{AuthorEmail: "unknown@example.com", Message: "real change"},
		},
	}
	h := clacheck.NewHandler(&fakeCoverage{}, gh, zap.NewNop())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/", prBody("synchronize"))
	req.Header.Set("X-GitHub-Event", "pull_request")
	rec := testutil.NewRecorder()

	h.ServeWebhook(rec, req)

	rec.AssertStatus(t, http.StatusOK)

	if len(gh.statuses) != 1 {
		t.Fatalf("expected 1 status post, got %d", len(gh.statuses))
	}
	st := gh.statuses[0]
	if st.state != github.StateFailure {
		t.Errorf("state: got %q, want failure", st.state)
	}
	if st.description != "CLA missing: unknown@example.com" {
		t.Errorf("description: got %q", st.description)
	}

	if len(gh.added) != 1 || gh.added[0].label != clacheck.HoldLabel {
		t.Errorf("expected hold label add, got %v", gh.added)
	}
	if gh.added[0].url != "https://api.example/repos/o/r/issues/1" {
		t.Errorf("label url: got %q", gh.added[0].url)
	}
	if len(gh.removed) != 0 {
		t.Errorf("fail must not remove labels, got %v", gh.removed)
	}
}

func TestServeWebhook_TrivialOnlyPasses(t *testing.T) {
	gh := &fakeGitHub{
		commits: []github.Commit{
			{AuthorEmail: "anyone@example.com", Message: "fix typo\n\nCLA: TRIVIAL"},
		},
	}
	h := clacheck.NewHandler(&fakeCoverage{}, gh, zap.NewNop())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/", prBody("opened"))
	req.Header.Set("X-GitHub-Event", "pull_request")
	rec := testutil.NewRecorder()

	h.ServeWebhook(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	if len(gh.statuses) != 1 || gh.statuses[0].description != "Trivial" {
		t.Errorf("expected Trivial success status, got %v", gh.statuses)
	}
}

func TestApply_TwiceConvergesToSameState(t *testing.T) {
	gh := &fakeGitHub{}
	h := clacheck.NewHandler(&fakeCoverage{}, gh, zap.NewNop())
	pr := clacheck.PullRequest{
		IssueURL:    "https://api.example/repos/o/r/issues/1",
		StatusesURL: "https://api.example/repos/o/r/statuses/abc",
	}
	verdict := clacheck.Verdict{Passed: true, Reason: "CLA found"}

	// A redelivered webhook drives the same verdict again; the platform
	// must see identical calls, never an accumulating state change.
	for i := 0; i < 2; i++ {
		if err := h.Apply(context.Background(), verdict, pr); err != nil {
			t.Fatalf("Apply %d failed: %v", i+1, err)
		}
	}

	if len(gh.statuses) != 2 {
		t.Fatalf("expected 2 status posts, got %d", len(gh.statuses))
	}
	if gh.statuses[0] != gh.statuses[1] {
		t.Errorf("status posts differ: %+v vs %+v", gh.statuses[0], gh.statuses[1])
	}
	if len(gh.removed) != 2 {
		t.Errorf("expected a label removal per application, got %d", len(gh.removed))
	}
	if len(gh.added) != 0 {
		t.Errorf("pass verdict must never add labels, got %v", gh.added)
	}
}

func TestServeWebhook_UpstreamFailure(t *testing.T) {
	gh := &fakeGitHub{listErr: errors.New("502 from platform")}
	h := clacheck.NewHandler(&fakeCoverage{}, gh, zap.NewNop())

	req := testutil.NewJSONRequest(t, http.MethodPost, "/", prBody("opened"))
	req.Header.Set("X-GitHub-Event", "pull_request")
	rec := testutil.NewRecorder()

	h.ServeWebhook(rec, req)

	rec.AssertStatus(t, http.StatusBadGateway)
}
