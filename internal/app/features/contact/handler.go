// internal/app/features/contact/handler.go
package contact

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/dalemusser/clahub/internal/app/system/htmlsanitize"
	"github.com/dalemusser/clahub/internal/app/system/inputval"
	"github.com/dalemusser/clahub/internal/app/system/mailer"
	"go.uber.org/zap"
)

// AntiSpam verifies a challenge token from the form.
type AntiSpam interface {
	Verify(ctx context.Context, token, remoteIP string) bool
}

// Notifier delivers outbound email.
type Notifier interface {
	Send(e mailer.Email) error
}

// Handler relays contact-form messages to the project's CLA address.
type Handler struct {
	Mail      Notifier
	AntiSpam  AntiSpam // nil when no anti-spam secret is configured
	Recipient string
	Log       *zap.Logger
}

// NewHandler creates a contact form handler.
func NewHandler(mail Notifier, antiSpam AntiSpam, recipient string, logger *zap.Logger) *Handler {
	return &Handler{
		Mail:      mail,
		AntiSpam:  antiSpam,
		Recipient: recipient,
		Log:       logger,
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

// ServeSubmit handles POST with name, email, and message form fields. The
// message is flattened to plain text before it is emailed, so markup from
// the form never reaches a mail client.
func (h *Handler) ServeSubmit(w http.ResponseWriter, r *http.Request) {
	name := strings.TrimSpace(r.FormValue("name"))
	email := strings.TrimSpace(r.FormValue("email"))
	message := strings.TrimSpace(r.FormValue("message"))

	if name == "" || message == "" {
		http.Error(w, "name and message are required", http.StatusBadRequest)
		return
	}
	if !inputval.IsValidEmail(email) {
		http.Error(w, "a valid email address is required", http.StatusBadRequest)
		return
	}
	if h.AntiSpam != nil &&
		!h.AntiSpam.Verify(r.Context(), r.FormValue("cf-turnstile-response"), clientIP(r)) {
		http.Error(w, "anti-spam verification failed", http.StatusBadRequest)
		return
	}

	e := mailer.BuildContactEmail(mailer.ContactMessageData{
		Name:    htmlsanitize.PlainText(name),
		Email:   email,
		Message: htmlsanitize.PlainText(message),
	})
	e.To = h.Recipient
	if err := h.Mail.Send(e); err != nil {
		h.Log.Error("relaying contact message failed", zap.Error(err))
		http.Error(w, "message could not be sent", http.StatusInternalServerError)
		return
	}

	h.Log.Info("contact message relayed", zap.String("from", email))
	fmt.Fprint(w, "Your message has been sent")
}
