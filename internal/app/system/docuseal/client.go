// internal/app/system/docuseal/client.go

// Package docuseal is a minimal client for the DocuSeal e-signing API,
// covering the two calls this app makes: creating a signing submission and
// fetching the completed, signed document.
package docuseal

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"go.uber.org/zap"
)

// DefaultBaseURL is the hosted DocuSeal API endpoint.
const DefaultBaseURL = "https://api.docuseal.com"

// Submitter is one signer on a submission. Values prefills form fields by
// field name.
type Submitter struct {
	Email  string            `json:"email"`
	Name   string            `json:"name,omitempty"`
	Role   string            `json:"role,omitempty"`
	Values map[string]string `json:"values,omitempty"`
}

// SubmissionRequest creates a new signing submission from a template. With
// SendEmail set, DocuSeal emails the signing link to each submitter.
type SubmissionRequest struct {
	TemplateID int         `json:"template_id"`
	SendEmail  bool        `json:"send_email"`
	ReplyTo    string      `json:"reply_to,omitempty"`
	Submitters []Submitter `json:"submitters"`
}

// Client talks to the DocuSeal API using an API key.
type Client struct {
	key     string
	baseURL string
	http    *http.Client
	log     *zap.Logger
}

// New creates a Client. baseURL may be empty to use the hosted API;
// httpClient may be nil to use http.DefaultClient.
func New(key, baseURL string, httpClient *http.Client, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{key: key, baseURL: baseURL, http: httpClient, log: logger}
}

// CreateSubmission starts a signing flow for the given template/submitters.
func (c *Client) CreateSubmission(ctx context.Context, req SubmissionRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	c.log.Info("create signing submission",
		zap.Int("template_id", req.TemplateID),
		zap.Int("submitters", len(req.Submitters)))

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/submissions", bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("X-Auth-Token", c.key)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return fmt.Errorf("create submission: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("create submission: API returned %d", resp.StatusCode)
	}
	_, _ = io.Copy(io.Discard, resp.Body)
	return nil
}

// submissionDocuments mirrors GET /submissions/{id}/documents.
type submissionDocuments struct {
	Documents []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	} `json:"documents"`
}

// FetchDocument downloads the first (combined) signed PDF of a completed
// submission.
func (c *Client) FetchDocument(ctx context.Context, submissionID int) ([]byte, error) {
	listURL := fmt.Sprintf("%s/submissions/%d/documents", c.baseURL, submissionID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, listURL, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Auth-Token", c.key)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("list submission documents: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("list submission documents: API returned %d", resp.StatusCode)
	}

	var docs submissionDocuments
	if err := json.NewDecoder(resp.Body).Decode(&docs); err != nil {
		return nil, fmt.Errorf("list submission documents: decode: %w", err)
	}
	if len(docs.Documents) == 0 {
		return nil, fmt.Errorf("submission %d has no documents", submissionID)
	}

	c.log.Info("download signed document",
		zap.Int("submission_id", submissionID),
		zap.String("name", docs.Documents[0].Name))

	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, docs.Documents[0].URL, nil)
	if err != nil {
		return nil, err
	}
	dlResp, err := c.http.Do(dlReq)
	if err != nil {
		return nil, fmt.Errorf("download document: %w", err)
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode < 200 || dlResp.StatusCode > 299 {
		return nil, fmt.Errorf("download document: server returned %d", dlResp.StatusCode)
	}
	return io.ReadAll(dlResp.Body)
}
