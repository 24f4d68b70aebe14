// internal/app/features/signing/handler.go
package signing

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/dalemusser/clahub/internal/app/store/cclas"
	"github.com/dalemusser/clahub/internal/app/store/iclas"
	"github.com/dalemusser/clahub/internal/app/system/clafiles"
	"github.com/dalemusser/clahub/internal/app/system/docuseal"
	"github.com/dalemusser/clahub/internal/app/system/inputval"
	"github.com/dalemusser/clahub/internal/app/system/mailer"
	"github.com/dalemusser/clahub/internal/app/system/normalize"
	"github.com/dalemusser/clahub/internal/app/system/timeouts"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// sentConfirmation is the body returned for every accepted signing request,
// regardless of whether a record already existed for the signer.
const sentConfirmation = "Signing request has been sent"

// Provider is the slice of the e-signing API the flows drive.
type Provider interface {
	CreateSubmission(ctx context.Context, req docuseal.SubmissionRequest) error
	FetchDocument(ctx context.Context, submissionID int) ([]byte, error)
}

// AntiSpam verifies a challenge token from the signing forms.
type AntiSpam interface {
	Verify(ctx context.Context, token, remoteIP string) bool
}

// Notifier delivers outbound email.
type Notifier interface {
	Send(e mailer.Email) error
}

// Archive persists signed documents under relative paths.
type Archive interface {
	Save(relPath string, data []byte) error
}

// Config carries the e-signing template ids and addresses the flows use.
type Config struct {
	ICLATemplateID int
	CCLATemplateID int
	ReplyTo        string // reply-to on the provider's signing invitations
	NotifyEmail    string // completion notifications; empty disables them
}

// Handler owns the signing request and completion flows for both agreement
// types.
type Handler struct {
	ICLAs    *iclastore.Store
	CCLAs    *cclastore.Store
	Provider Provider
	Archive  Archive
	AntiSpam AntiSpam // nil when no anti-spam secret is configured
	Mail     Notifier
	Cfg      Config
	Log      *zap.Logger
}

// NewHandler creates a signing flow handler.
func NewHandler(iclaStore *iclastore.Store, cclaStore *cclastore.Store, provider Provider, archive Archive, antiSpam AntiSpam, mail Notifier, cfg Config, logger *zap.Logger) *Handler {
	return &Handler{
		ICLAs:    iclaStore,
		CCLAs:    cclaStore,
		Provider: provider,
		Archive:  archive,
		AntiSpam: antiSpam,
		Mail:     mail,
		Cfg:      cfg,
		Log:      logger,
	}
}

// clientIP strips the port from the request's remote address for the
// anti-spam verification call.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// verifyAntiSpam runs the challenge check when a verifier is configured.
func (h *Handler) verifyAntiSpam(r *http.Request) bool {
	if h.AntiSpam == nil {
		return true
	}
	return h.AntiSpam.Verify(r.Context(), r.FormValue("cf-turnstile-response"), clientIP(r))
}

// ServeICLASubmit handles POST /icla/submit. It reserves a record for the
// email and asks the provider to send the signing invitation. A record that
// already exists, including one created by a concurrent request, still gets
// the same confirmation so the form leaks nothing about prior signers.
func (h *Handler) ServeICLASubmit(w http.ResponseWriter, r *http.Request) {
	email := strings.TrimSpace(r.FormValue("email"))
	if !inputval.IsValidEmail(email) {
		http.Error(w, "a valid email address is required", http.StatusBadRequest)
		return
	}
	if !h.verifyAntiSpam(r) {
		http.Error(w, "anti-spam verification failed", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.External())
	defer cancel()

	_, err := h.ICLAs.Reserve(ctx, email)
	switch {
	case errors.Is(err, iclastore.ErrDuplicateEmail):
		// Already on file (or lost the race); nothing to send.
		fmt.Fprint(w, sentConfirmation)
		return
	case err != nil:
		h.Log.Error("reserving individual agreement failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	req := docuseal.SubmissionRequest{
		TemplateID: h.Cfg.ICLATemplateID,
		SendEmail:  true,
		ReplyTo:    h.Cfg.ReplyTo,
		Submitters: []docuseal.Submitter{{
			Email:  email,
			Role:   "Contributor",
			Values: map[string]string{"Email": email},
		}},
	}
	if err := h.Provider.CreateSubmission(ctx, req); err != nil {
		h.Log.Error("creating individual signing submission failed", zap.Error(err))
		http.Error(w, "signing provider error", http.StatusBadGateway)
		return
	}

	h.Log.Info("individual signing request sent", zap.String("email", normalize.Email(email)))
	fmt.Fprint(w, sentConfirmation)
}

// ServeCCLASubmit handles POST /ccla/submit, the corporate counterpart keyed
// by company name with the authorized signer as the invited submitter.
func (h *Handler) ServeCCLASubmit(w http.ResponseWriter, r *http.Request) {
	company := strings.TrimSpace(r.FormValue("company"))
	signerName := strings.TrimSpace(r.FormValue("authorized_signer_name"))
	signerEmail := strings.TrimSpace(r.FormValue("authorized_signer_email"))

	if company == "" {
		http.Error(w, "company is required", http.StatusBadRequest)
		return
	}
	if !inputval.IsValidEmail(signerEmail) {
		http.Error(w, "a valid authorized signer email is required", http.StatusBadRequest)
		return
	}
	if !h.verifyAntiSpam(r) {
		http.Error(w, "anti-spam verification failed", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.External())
	defer cancel()

	_, err := h.CCLAs.Reserve(ctx, company, signerEmail, signerName)
	switch {
	case errors.Is(err, cclastore.ErrDuplicateName):
		fmt.Fprint(w, sentConfirmation)
		return
	case err != nil:
		h.Log.Error("reserving corporate agreement failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	req := docuseal.SubmissionRequest{
		TemplateID: h.Cfg.CCLATemplateID,
		SendEmail:  true,
		ReplyTo:    h.Cfg.ReplyTo,
		Submitters: []docuseal.Submitter{{
			Email:  signerEmail,
			Name:   signerName,
			Role:   "Authorized Signer",
			Values: map[string]string{"Corporation name": company},
		}},
	}
	if err := h.Provider.CreateSubmission(ctx, req); err != nil {
		h.Log.Error("creating corporate signing submission failed", zap.Error(err))
		http.Error(w, "signing provider error", http.StatusBadGateway)
		return
	}

	h.Log.Info("corporate signing request sent", zap.String("company", company))
	fmt.Fprint(w, sentConfirmation)
}

// completionPayload is the slice of the provider's form.completed webhook
// body the handlers read.
type completionPayload struct {
	Data struct {
		ID         int `json:"id"`
		Submitters []struct {
			Email       string       `json:"email"`
			Name        string       `json:"name"`
			CompletedAt string       `json:"completed_at"`
			Values      []fieldValue `json:"values"`
		} `json:"submitters"`
	} `json:"data"`
}

// decodeCompletion parses the webhook body and validates the required field
// set for the document type. It writes the error response itself and
// reports ok=false when the delivery must not proceed.
func (h *Handler) decodeCompletion(w http.ResponseWriter, r *http.Request, required []string) (completionPayload, map[string]string, bool) {
	var payload completionPayload
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		h.Log.Warn("malformed completion payload", zap.Error(err))
		http.Error(w, "malformed payload", http.StatusBadRequest)
		return completionPayload{}, nil, false
	}
	if len(payload.Data.Submitters) == 0 {
		http.Error(w, "payload has no submitters", http.StatusBadRequest)
		return completionPayload{}, nil, false
	}

	values := fieldMap(payload.Data.Submitters[0].Values)
	if err := checkRequired(values, required); err != nil {
		h.Log.Warn("incomplete completion payload",
			zap.Int("submission_id", payload.Data.ID), zap.Error(err))
		http.Error(w, err.Error(), http.StatusBadRequest)
		return completionPayload{}, nil, false
	}
	return payload, values, true
}

// fetchAndArchive downloads the signed document for the submission and
// stores it at relPath. Called at most once per record, before the path is
// recorded.
func (h *Handler) fetchAndArchive(ctx context.Context, submissionID int, relPath string) error {
	data, err := h.Provider.FetchDocument(ctx, submissionID)
	if err != nil {
		return err
	}
	return h.Archive.Save(relPath, data)
}

// notify sends the completion notification when a recipient is configured.
// Delivery failures are logged, never surfaced to the webhook sender.
func (h *Handler) notify(data mailer.SigningNotificationData) {
	if h.Mail == nil || h.Cfg.NotifyEmail == "" {
		return
	}
	e := mailer.BuildSigningNotification(data)
	e.To = h.Cfg.NotifyEmail
	if err := h.Mail.Send(e); err != nil {
		h.Log.Error("sending completion notification failed",
			zap.String("to", h.Cfg.NotifyEmail), zap.Error(err))
	}
}

// ServeICLAWebhook handles the provider's completion callback for individual
// agreements. The delivery must reference a reserved record; a repeat
// delivery for an already recorded submission is acknowledged without
// changes.
func (h *Handler) ServeICLAWebhook(w http.ResponseWriter, r *http.Request) {
	payload, values, ok := h.decodeCompletion(w, r, iclaRequiredFields)
	if !ok {
		return
	}
	sub := payload.Data.Submitters[0]

	email := sub.Email
	if email == "" {
		email = values["Email"]
	}

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.External())
	defer cancel()

	icla, err := h.ICLAs.GetByEmail(ctx, email)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.Log.Warn("completion for unknown individual signer",
			zap.String("email", normalize.Email(email)),
			zap.Int("submission_id", payload.Data.ID))
		http.Error(w, "no signing request on file for this email", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.Log.Error("loading individual agreement failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if icla.SubmissionID != nil && *icla.SubmissionID == payload.Data.ID && icla.Signed() {
		fmt.Fprint(w, "ok")
		return
	}

	signedAt, err := time.Parse(time.RFC3339, sub.CompletedAt)
	if err != nil {
		http.Error(w, "malformed completed_at timestamp", http.StatusBadRequest)
		return
	}

	icla.FullName = values["Full Name"]
	icla.PublicName = values["Public Name"]
	icla.MailingAddress = joinAddress(values["Mailing Address 1"], values["Mailing Address 2"])
	icla.Country = values["Country"]
	icla.Telephone = values["Telephone"]
	if icla.CCLAID == nil {
		// Standalone signers contribute as individuals.
		icla.Volunteer = true
	}
	submissionID := payload.Data.ID
	icla.SubmissionID = &submissionID
	icla.SignedAt = &signedAt

	if icla.PDFPath == "" {
		relPath := clafiles.ICLAPath(icla.ID)
		if err := h.fetchAndArchive(ctx, submissionID, relPath); err != nil {
			// Non-2xx makes the provider redeliver; the record stays
			// unsigned so the retry repeats the whole save.
			h.Log.Error("archiving signed individual agreement failed",
				zap.Int("submission_id", submissionID), zap.Error(err))
			http.Error(w, "document archival failed", http.StatusBadGateway)
			return
		}
		icla.PDFPath = relPath
	}

	if _, err := h.ICLAs.Save(ctx, icla); err != nil {
		h.Log.Error("saving completed individual agreement failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.Log.Info("individual agreement signed",
		zap.String("email", icla.Email),
		zap.Int("submission_id", submissionID))
	h.notify(mailer.SigningNotificationData{
		Email:          icla.Email,
		Agreement:      "ICLA",
		PointOfContact: icla.PointOfContact != "",
	})
	fmt.Fprint(w, "ok")
}

// ServeCCLAWebhook handles the completion callback for corporate
// agreements, matched by the corporation name the signer entered.
func (h *Handler) ServeCCLAWebhook(w http.ResponseWriter, r *http.Request) {
	payload, values, ok := h.decodeCompletion(w, r, cclaRequiredFields)
	if !ok {
		return
	}
	sub := payload.Data.Submitters[0]
	company := values["Corporation name"]

	ctx, cancel := context.WithTimeout(r.Context(), timeouts.External())
	defer cancel()

	ccla, err := h.CCLAs.GetByName(ctx, company)
	if errors.Is(err, mongo.ErrNoDocuments) {
		h.Log.Warn("completion for unknown corporation",
			zap.String("company", company),
			zap.Int("submission_id", payload.Data.ID))
		http.Error(w, "no signing request on file for this corporation", http.StatusBadRequest)
		return
	}
	if err != nil {
		h.Log.Error("loading corporate agreement failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	if ccla.SubmissionID != nil && *ccla.SubmissionID == payload.Data.ID && ccla.Signed() {
		fmt.Fprint(w, "ok")
		return
	}

	signedAt, err := time.Parse(time.RFC3339, sub.CompletedAt)
	if err != nil {
		http.Error(w, "malformed completed_at timestamp", http.StatusBadRequest)
		return
	}

	ccla.CorporationAddress = joinAddress(
		values["Corporation address 1"],
		values["Corporation address 2"],
		values["Corporation address 3"])
	ccla.AuthorizedSignerEmail = sub.Email
	ccla.AuthorizedSignerName = sub.Name
	ccla.AuthorizedSignerTitle = values["Title"]
	ccla.Fax = values["Fax"]
	ccla.Telephone = values["Telephone"]
	ccla.ManagerEmail = normalize.Email(values["Point of Contact"])
	submissionID := payload.Data.ID
	ccla.SubmissionID = &submissionID
	ccla.SignedAt = &signedAt

	if ccla.PDFPath == "" {
		relPath := clafiles.CCLAPath(ccla.ID)
		if err := h.fetchAndArchive(ctx, submissionID, relPath); err != nil {
			h.Log.Error("archiving signed corporate agreement failed",
				zap.Int("submission_id", submissionID), zap.Error(err))
			http.Error(w, "document archival failed", http.StatusBadGateway)
			return
		}
		ccla.PDFPath = relPath
	}

	if _, err := h.CCLAs.Save(ctx, ccla); err != nil {
		h.Log.Error("saving completed corporate agreement failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}

	h.Log.Info("corporate agreement signed",
		zap.String("company", ccla.CorporationName),
		zap.Int("submission_id", submissionID))
	h.notify(mailer.SigningNotificationData{
		Email:       sub.Email,
		Agreement:   "CCLA",
		Corporation: ccla.CorporationName,
	})
	fmt.Fprint(w, "ok")
}
