package signing_test

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"

	"github.com/dalemusser/clahub/internal/app/features/signing"
	cclastore "github.com/dalemusser/clahub/internal/app/store/cclas"
	iclastore "github.com/dalemusser/clahub/internal/app/store/iclas"
	"github.com/dalemusser/clahub/internal/app/system/docuseal"
	"github.com/dalemusser/clahub/internal/app/system/indexes"
	"github.com/dalemusser/clahub/internal/app/system/mailer"
	"github.com/dalemusser/clahub/internal/testutil"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

type fakeProvider struct {
	created   []docuseal.SubmissionRequest
	createErr error
	document  []byte
	fetchErr  error
	fetches   int
}

func (f *fakeProvider) CreateSubmission(ctx context.Context, req docuseal.SubmissionRequest) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, req)
	return nil
}

func (f *fakeProvider) FetchDocument(ctx context.Context, submissionID int) ([]byte, error) {
	f.fetches++
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.document, nil
}

type fakeArchive struct {
	saved map[string][]byte
}

func (f *fakeArchive) Save(relPath string, data []byte) error {
	if f.saved == nil {
		f.saved = make(map[string][]byte)
	}
	f.saved[relPath] = data
	return nil
}

type fakeAntiSpam struct {
	ok     bool
	tokens []string
}

func (f *fakeAntiSpam) Verify(ctx context.Context, token, remoteIP string) bool {
	f.tokens = append(f.tokens, token)
	return f.ok
}

type fakeMailer struct {
	sent []mailer.Email
	err  error
}

func (f *fakeMailer) Send(e mailer.Email) error {
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, e)
	return nil
}

type handlerDeps struct {
	db       *mongo.Database
	iclas    *iclastore.Store
	cclas    *cclastore.Store
	provider *fakeProvider
	archive  *fakeArchive
	mail     *fakeMailer
}

func newHandler(t *testing.T, antiSpam signing.AntiSpam) (*signing.Handler, *handlerDeps) {
	t.Helper()
	db := testutil.SetupTestDB(t)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if err := indexes.EnsureAll(ctx, db); err != nil {
		t.Fatalf("EnsureAll failed: %v", err)
	}
	deps := &handlerDeps{
		db:       db,
		iclas:    iclastore.New(db),
		cclas:    cclastore.New(db),
		provider: &fakeProvider{document: []byte("%PDF-1.7 signed")},
		archive:  &fakeArchive{},
		mail:     &fakeMailer{},
	}
	cfg := signing.Config{
		ICLATemplateID: 11,
		CCLATemplateID: 22,
		ReplyTo:        "cla@example.org",
		NotifyEmail:    "cla@example.org",
	}
	h := signing.NewHandler(deps.iclas, deps.cclas, deps.provider, deps.archive, antiSpam, deps.mail, cfg, zap.NewNop())
	return h, deps
}

func TestServeICLASubmit_SendsInvitation(t *testing.T) {
	h, deps := newHandler(t, nil)

	req := testutil.NewFormRequest(http.MethodPost, "/icla/submit", "email=dev%40example.com")
	rec := testutil.NewRecorder()
	h.ServeICLASubmit(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Signing request has been sent")

	if len(deps.provider.created) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(deps.provider.created))
	}
	sub := deps.provider.created[0]
	if sub.TemplateID != 11 || !sub.SendEmail || sub.ReplyTo != "cla@example.org" {
		t.Errorf("submission request: got %+v", sub)
	}
	if len(sub.Submitters) != 1 || sub.Submitters[0].Role != "Contributor" {
		t.Fatalf("submitters: got %+v", sub.Submitters)
	}
	if sub.Submitters[0].Values["Email"] != "dev@example.com" {
		t.Errorf("prefilled email: got %q", sub.Submitters[0].Values["Email"])
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := deps.iclas.GetByEmail(ctx, "dev@example.com"); err != nil {
		t.Errorf("expected a reservation on file, got %v", err)
	}
}

func TestServeICLASubmit_InvalidEmail(t *testing.T) {
	h, deps := newHandler(t, nil)

	req := testutil.NewFormRequest(http.MethodPost, "/icla/submit", "email=not-an-email")
	rec := testutil.NewRecorder()
	h.ServeICLASubmit(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
	if len(deps.provider.created) != 0 {
		t.Error("invalid email must not reach the provider")
	}
}

func TestServeICLASubmit_ExistingRecord(t *testing.T) {
	h, deps := newHandler(t, nil)
	fixtures := testutil.NewFixtures(t, deps.db)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	fixtures.CreateICLA(ctx, "dev@example.com")

	req := testutil.NewFormRequest(http.MethodPost, "/icla/submit", "email=dev%40example.com")
	rec := testutil.NewRecorder()
	h.ServeICLASubmit(rec, req)

	// Same confirmation either way; nothing is sent again.
	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Signing request has been sent")
	if len(deps.provider.created) != 0 {
		t.Error("existing record must not trigger a new submission")
	}
}

func TestServeICLASubmit_AntiSpamRejected(t *testing.T) {
	spam := &fakeAntiSpam{ok: false}
	h, deps := newHandler(t, spam)

	req := testutil.NewFormRequest(http.MethodPost, "/icla/submit",
		"email=dev%40example.com&cf-turnstile-response=tok123")
	rec := testutil.NewRecorder()
	h.ServeICLASubmit(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
	if len(spam.tokens) != 1 || spam.tokens[0] != "tok123" {
		t.Errorf("expected the form token to reach the verifier, got %v", spam.tokens)
	}
	if len(deps.provider.created) != 0 {
		t.Error("rejected request must not reach the provider")
	}
}

func TestServeCCLASubmit_SendsInvitation(t *testing.T) {
	h, deps := newHandler(t, nil)

	form := "company=Example+Corp&authorized_signer_name=Jo+Signer&authorized_signer_email=jo%40corp.example"
	req := testutil.NewFormRequest(http.MethodPost, "/ccla/submit", form)
	rec := testutil.NewRecorder()
	h.ServeCCLASubmit(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "Signing request has been sent")

	if len(deps.provider.created) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(deps.provider.created))
	}
	sub := deps.provider.created[0]
	if sub.TemplateID != 22 {
		t.Errorf("template: got %d, want 22", sub.TemplateID)
	}
	if len(sub.Submitters) != 1 || sub.Submitters[0].Role != "Authorized Signer" {
		t.Fatalf("submitters: got %+v", sub.Submitters)
	}
	if sub.Submitters[0].Values["Corporation name"] != "Example Corp" {
		t.Errorf("prefilled name: got %q", sub.Submitters[0].Values["Corporation name"])
	}

	ctx, cancel := testutil.TestContext()
	defer cancel()
	ccla, err := deps.cclas.GetByName(ctx, "example corp")
	if err != nil {
		t.Fatalf("expected a reservation on file, got %v", err)
	}
	if ccla.AuthorizedSignerEmail != "jo@corp.example" || ccla.AuthorizedSignerName != "Jo Signer" {
		t.Errorf("signer on reservation: got %+v", ccla)
	}
}

func TestServeCCLASubmit_MissingCompany(t *testing.T) {
	h, deps := newHandler(t, nil)

	req := testutil.NewFormRequest(http.MethodPost, "/ccla/submit",
		"authorized_signer_email=jo%40corp.example")
	rec := testutil.NewRecorder()
	h.ServeCCLASubmit(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
	if len(deps.provider.created) != 0 {
		t.Error("missing company must not reach the provider")
	}
}

func iclaCompletion(submissionID int, email, completedAt string, drop ...string) map[string]any {
	fields := map[string]string{
		"Full Name":         "Dev Eloper",
		"Public Name":       "dev",
		"Mailing Address 1": "1 Main St",
		"Mailing Address 2": "Dover DE 19901",
		"Country":           "USA",
		"Telephone":         "+1 555 0100",
		"Email":             email,
	}
	for _, name := range drop {
		delete(fields, name)
	}
	var values []map[string]string
	for field, value := range fields {
		values = append(values, map[string]string{"field": field, "value": value})
	}
	return map[string]any{
		"data": map[string]any{
			"id": submissionID,
			"submitters": []map[string]any{{
				"email":        email,
				"completed_at": completedAt,
				"values":       values,
			}},
		},
	}
}

func TestServeICLAWebhook_CompletesReservation(t *testing.T) {
	h, deps := newHandler(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := deps.iclas.Reserve(ctx, "dev@example.com"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	payload := iclaCompletion(4001, "dev@example.com", "2026-01-15T10:30:00Z")
	req := testutil.NewJSONRequest(t, http.MethodPost, "/webhooks/icla/s3cret", payload)
	rec := testutil.NewRecorder()
	h.ServeICLAWebhook(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "ok")

	icla, err := deps.iclas.GetByEmail(ctx, "dev@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if !icla.Signed() || icla.SubmissionID == nil || *icla.SubmissionID != 4001 {
		t.Errorf("completion not recorded: %+v", icla)
	}
	if icla.FullName != "Dev Eloper" || icla.Country != "USA" {
		t.Errorf("form fields not recorded: %+v", icla)
	}
	if icla.MailingAddress != "1 Main St\nDover DE 19901" {
		t.Errorf("mailing address: got %q", icla.MailingAddress)
	}
	if !icla.Volunteer {
		t.Error("standalone signer should be marked volunteer")
	}
	if !icla.IsActive() {
		t.Error("completed standalone agreement should be active")
	}

	wantPath := "ICLA/" + icla.ID + ".pdf"
	if icla.PDFPath != wantPath {
		t.Errorf("pdf path: got %q, want %q", icla.PDFPath, wantPath)
	}
	if _, ok := deps.archive.saved[wantPath]; !ok {
		t.Errorf("signed document not archived at %q", wantPath)
	}

	if len(deps.mail.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(deps.mail.sent))
	}
	note := deps.mail.sent[0]
	if note.To != "cla@example.org" || !strings.Contains(note.Subject, "ICLA signed: dev@example.com") {
		t.Errorf("notification: got %+v", note)
	}
}

func TestServeICLAWebhook_MissingFields(t *testing.T) {
	h, deps := newHandler(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := deps.iclas.Reserve(ctx, "dev@example.com"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	payload := iclaCompletion(4002, "dev@example.com", "2026-01-15T10:30:00Z",
		"Mailing Address 2", "Country")
	req := testutil.NewJSONRequest(t, http.MethodPost, "/webhooks/icla/s3cret", payload)
	rec := testutil.NewRecorder()
	h.ServeICLAWebhook(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
	rec.AssertContains(t, "missing required fields: Mailing Address 2, Country")

	icla, err := deps.iclas.GetByEmail(ctx, "dev@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if icla.Signed() {
		t.Error("rejected delivery must not mark the record signed")
	}
	if deps.provider.fetches != 0 {
		t.Error("rejected delivery must not fetch the document")
	}
}

func TestServeICLAWebhook_UnknownSigner(t *testing.T) {
	h, deps := newHandler(t, nil)

	payload := iclaCompletion(4003, "stranger@example.com", "2026-01-15T10:30:00Z")
	req := testutil.NewJSONRequest(t, http.MethodPost, "/webhooks/icla/s3cret", payload)
	rec := testutil.NewRecorder()
	h.ServeICLAWebhook(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
	if deps.provider.fetches != 0 {
		t.Error("unknown signer must not fetch the document")
	}
}

func TestServeICLAWebhook_ReplayIsNoop(t *testing.T) {
	h, deps := newHandler(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := deps.iclas.Reserve(ctx, "dev@example.com"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	payload := iclaCompletion(4004, "dev@example.com", "2026-01-15T10:30:00Z")
	for i := 0; i < 2; i++ {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/webhooks/icla/s3cret", payload)
		rec := testutil.NewRecorder()
		h.ServeICLAWebhook(rec, req)
		rec.AssertStatus(t, http.StatusOK)
	}

	if deps.provider.fetches != 1 {
		t.Errorf("document fetched %d times, want once", deps.provider.fetches)
	}
	if len(deps.mail.sent) != 1 {
		t.Errorf("notification sent %d times, want once", len(deps.mail.sent))
	}
}

func TestServeICLAWebhook_FetchFailureLeavesRecordUnsigned(t *testing.T) {
	h, deps := newHandler(t, nil)
	deps.provider.fetchErr = errors.New("provider down")
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := deps.iclas.Reserve(ctx, "dev@example.com"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	payload := iclaCompletion(4005, "dev@example.com", "2026-01-15T10:30:00Z")
	req := testutil.NewJSONRequest(t, http.MethodPost, "/webhooks/icla/s3cret", payload)
	rec := testutil.NewRecorder()
	h.ServeICLAWebhook(rec, req)

	rec.AssertStatus(t, http.StatusBadGateway)

	icla, err := deps.iclas.GetByEmail(ctx, "dev@example.com")
	if err != nil {
		t.Fatalf("GetByEmail failed: %v", err)
	}
	if icla.Signed() || icla.PDFPath != "" {
		t.Errorf("failed archival must leave the record untouched, got %+v", icla)
	}
	if len(deps.mail.sent) != 0 {
		t.Error("failed delivery must not notify")
	}
}

func cclaCompletion(submissionID int, company, signerEmail, completedAt string) map[string]any {
	fields := map[string]string{
		"Corporation name":      company,
		"Corporation address 1": "100 Commerce Way",
		"Corporation address 2": "Floor 3",
		"Corporation address 3": "Dover DE 19901",
		"Title":                 "VP Engineering",
		"Fax":                   "+1 555 0199",
		"Telephone":             "+1 555 0100",
		"Email":                 signerEmail,
		"Point of Contact":      "Manager@Corp.Example",
	}
	var values []map[string]string
	for field, value := range fields {
		values = append(values, map[string]string{"field": field, "value": value})
	}
	return map[string]any{
		"data": map[string]any{
			"id": submissionID,
			"submitters": []map[string]any{{
				"email":        signerEmail,
				"name":         "Jo Signer",
				"completed_at": completedAt,
				"values":       values,
			}},
		},
	}
}

func TestServeCCLAWebhook_CompletesReservation(t *testing.T) {
	h, deps := newHandler(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := deps.cclas.Reserve(ctx, "Example Corp", "jo@corp.example", "Jo Signer"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	payload := cclaCompletion(5001, "Example Corp", "jo@corp.example", "2026-01-16T09:00:00Z")
	req := testutil.NewJSONRequest(t, http.MethodPost, "/webhooks/ccla/s3cret", payload)
	rec := testutil.NewRecorder()
	h.ServeCCLAWebhook(rec, req)

	rec.AssertStatus(t, http.StatusOK)
	rec.AssertContains(t, "ok")

	ccla, err := deps.cclas.GetByName(ctx, "Example Corp")
	if err != nil {
		t.Fatalf("GetByName failed: %v", err)
	}
	if !ccla.Signed() || ccla.SubmissionID == nil || *ccla.SubmissionID != 5001 {
		t.Errorf("completion not recorded: %+v", ccla)
	}
	if ccla.CorporationAddress != "100 Commerce Way\nFloor 3\nDover DE 19901" {
		t.Errorf("address: got %q", ccla.CorporationAddress)
	}
	if ccla.AuthorizedSignerTitle != "VP Engineering" || ccla.Fax != "+1 555 0199" {
		t.Errorf("signer details: got %+v", ccla)
	}
	if ccla.ManagerEmail != "manager@corp.example" {
		t.Errorf("point of contact not normalized: got %q", ccla.ManagerEmail)
	}

	wantPath := "CCLA/" + ccla.ID + "/" + ccla.ID + ".pdf"
	if ccla.PDFPath != wantPath {
		t.Errorf("pdf path: got %q, want %q", ccla.PDFPath, wantPath)
	}
	if _, ok := deps.archive.saved[wantPath]; !ok {
		t.Errorf("signed document not archived at %q", wantPath)
	}

	if len(deps.mail.sent) != 1 {
		t.Fatalf("expected 1 notification, got %d", len(deps.mail.sent))
	}
	if !strings.Contains(deps.mail.sent[0].Subject, "(Example Corp)") {
		t.Errorf("notification subject: got %q", deps.mail.sent[0].Subject)
	}
}

func TestServeCCLAWebhook_UnknownCorporation(t *testing.T) {
	h, deps := newHandler(t, nil)

	payload := cclaCompletion(5002, "Ghost Inc", "jo@ghost.example", "2026-01-16T09:00:00Z")
	req := testutil.NewJSONRequest(t, http.MethodPost, "/webhooks/ccla/s3cret", payload)
	rec := testutil.NewRecorder()
	h.ServeCCLAWebhook(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
	if deps.provider.fetches != 0 {
		t.Error("unknown corporation must not fetch the document")
	}
}

func TestServeICLAWebhook_MalformedTimestamp(t *testing.T) {
	h, deps := newHandler(t, nil)
	ctx, cancel := testutil.TestContext()
	defer cancel()
	if _, err := deps.iclas.Reserve(ctx, "dev@example.com"); err != nil {
		t.Fatalf("Reserve failed: %v", err)
	}

	payload := iclaCompletion(4006, "dev@example.com", "yesterday-ish")
	req := testutil.NewJSONRequest(t, http.MethodPost, "/webhooks/icla/s3cret", payload)
	rec := testutil.NewRecorder()
	h.ServeICLAWebhook(rec, req)

	rec.AssertStatus(t, http.StatusBadRequest)
}
