// internal/app/bootstrap/appconfig.go
package bootstrap

// AppConfig holds service-specific configuration for this WAFFLE app.
//
// These values come from environment variables, configuration files, or
// command-line flags (loaded in LoadConfig). They represent *app-level*
// configuration, not WAFFLE core configuration.
//
// WAFFLE's CoreConfig handles framework-level settings like:
//   - HTTP/HTTPS ports and TLS configuration
//   - Logging level and format
//   - CORS settings
//   - Request body size limits
//   - Database connection timeouts
type AppConfig struct {
	// MongoDB connection configuration
	MongoURI         string // MongoDB connection string (e.g., mongodb://localhost:27017)
	MongoDatabase    string // Database name within MongoDB
	MongoMaxPoolSize uint64
	MongoMinPoolSize uint64

	// GitHub integration
	GitHubToken   string // token used for statuses, labels, and commit listing
	PRWebhookSlug string // secret path segment for the pull-request webhook
	TargetURL     string // CLA policy page linked from commit statuses

	// DocuSeal e-signing integration
	DocuSealKey     string // API key (X-Auth-Token)
	DocuSealBaseURL string // blank means the hosted API
	ICLATemplateID  int    // template for individual agreements
	CCLATemplateID  int    // template for corporate agreements
	ICLAWebhookSlug string // secret path segment for ICLA completion callbacks
	CCLAWebhookSlug string // secret path segment for CCLA completion callbacks

	// Cloudflare Turnstile anti-spam (blank disables verification)
	TurnstileSecret string

	// Email/SMTP configuration
	MailSMTPHost string // SMTP server host (e.g., localhost for Mailpit)
	MailSMTPPort int    // SMTP server port (e.g., 1025 for Mailpit, 587 for SES)
	MailSMTPUser string // SMTP username (empty disables auth)
	MailSMTPPass string // SMTP password
	MailFrom     string // From email address

	// Project CLA address: receives signing notifications and contact-form
	// relays, and is the reply-to on signing invitations.
	CLAEmail string

	// Signed agreement archive root, served read-only at /media/
	MediaRoot string
}
