// internal/app/system/github/client.go
package github

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	"go.uber.org/zap"
)

// Commit status states reported on the head commit of a pull request.
const (
	StateSuccess = "success"
	StateFailure = "failure"
)

// StatusContext identifies this service's commit status among others on
// the same commit.
const StatusContext = "cla-check"

// Client is a minimal GitHub REST client for the endpoints the CLA check
// needs: listing a pull request's commits, setting a commit status, and
// adding/removing an issue label. All URLs are taken verbatim from the
// webhook payload, so the client never builds repository paths itself.
type Client struct {
	token     string
	targetURL string // linked from the commit status ("Details")
	http      *http.Client
	log       *zap.Logger
}

// New creates a Client. targetURL is attached to every commit status as the
// human-facing policy page. httpClient may be nil, in which case
// http.DefaultClient is used.
func New(token, targetURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		token:     token,
		targetURL: targetURL,
		http:      httpClient,
		log:       logger,
	}
}

// Commit is one commit from a pull request's commit list, reduced to the
// fields the CLA check consumes.
type Commit struct {
	AuthorEmail string
	Message     string
}

// commitItem mirrors GET {commits_url} response elements.
type commitItem struct {
	Commit struct {
		Author struct {
			Email string `json:"email"`
		} `json:"author"`
		Message string `json:"message"`
	} `json:"commit"`
}

func (c *Client) setHeaders(req *http.Request) {
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("X-GitHub-Api-Version", "2022-11-28")
}

// ListCommits fetches the pull request's commit list.
func (c *Client) ListCommits(ctx context.Context, commitsURL string) ([]Commit, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, commitsURL, nil)
	if err != nil {
		return nil, err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list commits: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("list commits: %s returned %d", commitsURL, resp.StatusCode)
	}

	var items []commitItem
	if err := json.NewDecoder(resp.Body).Decode(&items); err != nil {
		return nil, fmt.Errorf("list commits: decode: %w", err)
	}
	commits := make([]Commit, 0, len(items))
	for _, it := range items {
		commits = append(commits, Commit{
			AuthorEmail: it.Commit.Author.Email,
			Message:     it.Commit.Message,
		})
	}
	return commits, nil
}

// CreateStatus posts a commit status to the pull request's statuses URL.
func (c *Client) CreateStatus(ctx context.Context, statusesURL, state, description string) error {
	payload := map[string]string{
		"state":       state,
		"target_url":  c.targetURL,
		"description": description,
		"context":     StatusContext,
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	c.log.Info("update commit status",
		zap.String("url", statusesURL),
		zap.String("state", state),
		zap.String("description", description))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, statusesURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("create status: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("create status: %s returned %d", statusesURL, resp.StatusCode)
	}
	return nil
}

// AddLabel adds a label to the issue behind the pull request. The platform
// treats re-adding an existing label as a no-op, so this call is idempotent.
func (c *Client) AddLabel(ctx context.Context, issueURL, label string) error {
	body, err := json.Marshal([]string{label})
	if err != nil {
		return err
	}
	labelsURL := issueURL + "/labels"

	c.log.Info("add label", zap.String("url", labelsURL), zap.String("label", label))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, labelsURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	c.setHeaders(req)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("add label: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("add label: %s returned %d", labelsURL, resp.StatusCode)
	}
	return nil
}

// RemoveLabel removes a label from the issue behind the pull request.
// A 404 means the label was not present; that is a success no-op.
func (c *Client) RemoveLabel(ctx context.Context, issueURL, label string) error {
	removeURL := issueURL + "/labels/" + url.PathEscape(label)

	c.log.Info("remove label", zap.String("url", removeURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, removeURL, nil)
	if err != nil {
		return err
	}
	c.setHeaders(req)

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("remove label: %w", err)
	}
	defer drain(resp)
	if resp.StatusCode == http.StatusNotFound {
		c.log.Info("label not present", zap.String("url", removeURL))
		return nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("remove label: %s returned %d", removeURL, resp.StatusCode)
	}
	return nil
}

// drain discards the response body so the connection can be reused.
func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
	resp.Body.Close()
}
