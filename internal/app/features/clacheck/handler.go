// internal/app/features/clacheck/handler.go
package clacheck

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/dalemusser/clahub/internal/app/system/github"
	"github.com/dalemusser/clahub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// HoldLabel is attached to pull requests whose authors lack an active
// agreement, and removed once the check passes again.
const HoldLabel = "hold: cla required"

// CoverageStore answers whether an email is covered by an active agreement.
type CoverageStore interface {
	Covered(ctx context.Context, email string) (bool, error)
}

// GitHubClient is the slice of the GitHub REST surface the check drives.
type GitHubClient interface {
	ListCommits(ctx context.Context, commitsURL string) ([]github.Commit, error)
	CreateStatus(ctx context.Context, statusesURL, state, description string) error
	AddLabel(ctx context.Context, issueURL, label string) error
	RemoveLabel(ctx context.Context, issueURL, label string) error
}

// Handler receives pull-request webhooks and drives the external check
// state (commit status plus hold label) to match the verdict.
type Handler struct {
	ICLAs  CoverageStore
	GitHub GitHubClient
	Log    *zap.Logger
}

// NewHandler creates a new pull-request check handler.
func NewHandler(iclas CoverageStore, gh GitHubClient, logger *zap.Logger) *Handler {
	return &Handler{
		ICLAs:  iclas,
		GitHub: gh,
		Log:    logger,
	}
}

// noopActions are pull_request actions that cannot change the verdict, so
// the handler acknowledges them without fetching anything.
var noopActions = map[string]bool{
	"assigned":               true,
	"unassigned":             true,
	"labeled":                true,
	"unlabeled":              true,
	"closed":                 true,
	"review_requested":       true,
	"review_request_removed": true,
}

// prPayload is the slice of the pull_request webhook body the check reads.
// All URLs are used verbatim; the handler never constructs repository paths.
type prPayload struct {
	Action      string `json:"action"`
	PullRequest struct {
		CommitsURL string `json:"commits_url"`
		IssueURL   string `json:"issue_url"`
		Links      struct {
			Statuses struct {
				Href string `json:"href"`
			} `json:"statuses"`
		} `json:"_links"`
	} `json:"pull_request"`
}

// PullRequest carries the three webhook URLs the driver needs.
type PullRequest struct {
	CommitsURL  string
	IssueURL    string
	StatusesURL string
}

// ServeWebhook handles POST from the hosting platform. ping events get a
// pong; anything that is not a pull_request event is rejected.
func (h *Handler) ServeWebhook(w http.ResponseWriter, r *http.Request) {
	switch event := r.Header.Get("X-GitHub-Event"); event {
	case "ping":
		fmt.Fprint(w, "pong")
		return
	case "pull_request":
	default:
		h.Log.Warn("unexpected webhook event", zap.String("event", event))
		http.Error(w, "unexpected event "+event, http.StatusBadRequest)
		return
	}

	var payload prPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.Log.Warn("malformed webhook payload", zap.Error(err))
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return
	}

	if noopActions[payload.Action] {
		fmt.Fprintf(w, "No-op action %s", payload.Action)
		return
	}

	pr := PullRequest{
		CommitsURL:  payload.PullRequest.CommitsURL,
		IssueURL:    payload.PullRequest.IssueURL,
		StatusesURL: payload.PullRequest.Links.Statuses.Href,
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.External())
	defer cancel()

	commits, err := h.GitHub.ListCommits(ctx, pr.CommitsURL)
	if err != nil {
		h.Log.Error("fetching pull request commits failed",
			zap.String("url", pr.CommitsURL), zap.Error(err))
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}

	verdict, err := Evaluate(ctx, commits, h.ICLAs.Covered)
	if err != nil {
		h.Log.Error("verdict evaluation failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if err := h.Apply(ctx, verdict, pr); err != nil {
		// The webhook sender redelivers on non-2xx; no internal retry.
		h.Log.Error("applying verdict failed",
			zap.Bool("passed", verdict.Passed), zap.Error(err))
		http.Error(w, "upstream error", http.StatusBadGateway)
		return
	}

	h.Log.Info("pull request checked",
		zap.String("action", payload.Action),
		zap.Bool("passed", verdict.Passed),
		zap.Strings("missing", verdict.Missing))
	fmt.Fprint(w, "ok")
}

// Apply drives the platform-side check state to match the verdict: exactly
// one status post and one label mutation, both idempotent on replay.
func (h *Handler) Apply(ctx context.Context, v Verdict, pr PullRequest) error {
	if v.Passed {
		if err := h.GitHub.CreateStatus(ctx, pr.StatusesURL, github.StateSuccess, v.Reason); err != nil {
			return err
		}
		return h.GitHub.RemoveLabel(ctx, pr.IssueURL, HoldLabel)
	}
	if err := h.GitHub.CreateStatus(ctx, pr.StatusesURL, github.StateFailure, v.Reason); err != nil {
		return err
	}
	return h.GitHub.AddLabel(ctx, pr.IssueURL, HoldLabel)
}
