// internal/app/system/turnstile/turnstile.go

// Package turnstile verifies Cloudflare Turnstile challenge tokens submitted
// with public forms.
package turnstile

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/dalemusser/clahub/internal/app/system/timeouts"
	"go.uber.org/zap"
)

// VerifyURL is Cloudflare's siteverify endpoint.
const VerifyURL = "https://challenges.cloudflare.com/turnstile/v0/siteverify"

// Verifier checks Turnstile tokens against the siteverify API.
type Verifier struct {
	secret    string
	verifyURL string
	http      *http.Client
	log       *zap.Logger
}

// New creates a Verifier. verifyURL may be empty to use the Cloudflare
// endpoint; httpClient may be nil to use http.DefaultClient.
func New(secret, verifyURL string, httpClient *http.Client, logger *zap.Logger) *Verifier {
	if verifyURL == "" {
		verifyURL = VerifyURL
	}
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Verifier{secret: secret, verifyURL: verifyURL, http: httpClient, log: logger}
}

// Verify reports whether token passes the challenge. An unreachable or
// erroring siteverify API counts as failure; the form can be resubmitted.
func (v *Verifier) Verify(ctx context.Context, token, remoteIP string) bool {
	if token == "" {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, timeouts.AntiSpam())
	defer cancel()

	form := url.Values{
		"secret":   {v.secret},
		"response": {token},
	}
	if remoteIP != "" {
		form.Set("remoteip", remoteIP)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, v.verifyURL, strings.NewReader(form.Encode()))
	if err != nil {
		v.log.Warn("turnstile request build failed", zap.Error(err))
		return false
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := v.http.Do(req)
	if err != nil {
		v.log.Warn("turnstile verify failed", zap.Error(err))
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		v.log.Warn("turnstile verify returned non-200", zap.Int("status", resp.StatusCode))
		return false
	}

	var result struct {
		Success    bool     `json:"success"`
		ErrorCodes []string `json:"error-codes"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		v.log.Warn("turnstile verify decode failed", zap.Error(err))
		return false
	}
	if !result.Success {
		v.log.Info("turnstile challenge rejected", zap.Strings("error_codes", result.ErrorCodes))
	}
	return result.Success
}
