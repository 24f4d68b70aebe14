// internal/app/bootstrap/config.go
package bootstrap

import (
	"fmt"

	"github.com/dalemusser/waffle/config"
	wafflemongo "github.com/dalemusser/waffle/pantry/mongo"
	"go.uber.org/zap"
)

// appConfigKeys defines the configuration keys for the CLA service.
// These are loaded via WAFFLE's config system with support for:
//   - Config files: mongo_uri, github_token, etc.
//   - Environment variables: CLAHUB_MONGO_URI, CLAHUB_GITHUB_TOKEN, etc.
//   - Command-line flags: --mongo_uri, --github_token, etc.
var appConfigKeys = []config.AppKey{
	{Name: "mongo_uri", Default: "mongodb://localhost:27017", Desc: "MongoDB connection URI"},
	{Name: "mongo_database", Default: "clahub", Desc: "MongoDB database name"},
	{Name: "mongo_max_pool_size", Default: 100, Desc: "MongoDB max connection pool size (default: 100)"},
	{Name: "mongo_min_pool_size", Default: 10, Desc: "MongoDB min connection pool size (default: 10)"},

	// GitHub integration
	{Name: "github_token", Default: "", Desc: "GitHub token for statuses, labels, and commit listing"},
	{Name: "pr_webhook_slug", Default: "", Desc: "Secret path segment for the pull-request webhook"},
	{Name: "target_url", Default: "", Desc: "CLA policy page linked from commit statuses"},

	// DocuSeal e-signing
	{Name: "docuseal_key", Default: "", Desc: "DocuSeal API key"},
	{Name: "docuseal_base_url", Default: "", Desc: "DocuSeal API base URL (blank for hosted)"},
	{Name: "icla_template_id", Default: 0, Desc: "DocuSeal template id for individual agreements"},
	{Name: "ccla_template_id", Default: 0, Desc: "DocuSeal template id for corporate agreements"},
	{Name: "icla_webhook_slug", Default: "", Desc: "Secret path segment for ICLA completion callbacks"},
	{Name: "ccla_webhook_slug", Default: "", Desc: "Secret path segment for CCLA completion callbacks"},

	// Anti-spam
	{Name: "turnstile_secret", Default: "", Desc: "Cloudflare Turnstile secret key (blank disables verification)"},

	// Email/SMTP configuration
	{Name: "mail_smtp_host", Default: "localhost", Desc: "SMTP server host"},
	{Name: "mail_smtp_port", Default: 1025, Desc: "SMTP server port"},
	{Name: "mail_smtp_user", Default: "", Desc: "SMTP username"},
	{Name: "mail_smtp_pass", Default: "", Desc: "SMTP password"},
	{Name: "mail_from", Default: "noreply@example.org", Desc: "From email address"},
	{Name: "cla_email", Default: "", Desc: "Project CLA address for notifications and contact relays"},

	// Signed agreement archive
	{Name: "media_root", Default: "./media", Desc: "Directory where signed agreement PDFs are archived"},
}

// LoadConfig loads WAFFLE core config and app-specific config.
//
// It is called early in startup so that both WAFFLE and the app have
// access to configuration before any backends or handlers are built.
//
// WAFFLE's config.LoadWithAppConfig handles:
//   - Loading from .env files
//   - Loading from config.yaml/json/toml files
//   - Reading environment variables (WAFFLE_* for core, CLAHUB_* for app)
//   - Parsing command-line flags
//   - Merging with precedence: flags > env > files > defaults
func LoadConfig(logger *zap.Logger) (*config.CoreConfig, AppConfig, error) {
	coreCfg, appValues, err := config.LoadWithAppConfig(logger, "CLAHUB", appConfigKeys)
	if err != nil {
		return nil, AppConfig{}, err
	}

	appCfg := AppConfig{
		MongoURI:         appValues.String("mongo_uri"),
		MongoDatabase:    appValues.String("mongo_database"),
		MongoMaxPoolSize: uint64(appValues.Int("mongo_max_pool_size")),
		MongoMinPoolSize: uint64(appValues.Int("mongo_min_pool_size")),

		GitHubToken:   appValues.String("github_token"),
		PRWebhookSlug: appValues.String("pr_webhook_slug"),
		TargetURL:     appValues.String("target_url"),

		DocuSealKey:     appValues.String("docuseal_key"),
		DocuSealBaseURL: appValues.String("docuseal_base_url"),
		ICLATemplateID:  appValues.Int("icla_template_id"),
		CCLATemplateID:  appValues.Int("ccla_template_id"),
		ICLAWebhookSlug: appValues.String("icla_webhook_slug"),
		CCLAWebhookSlug: appValues.String("ccla_webhook_slug"),

		TurnstileSecret: appValues.String("turnstile_secret"),

		MailSMTPHost: appValues.String("mail_smtp_host"),
		MailSMTPPort: appValues.Int("mail_smtp_port"),
		MailSMTPUser: appValues.String("mail_smtp_user"),
		MailSMTPPass: appValues.String("mail_smtp_pass"),
		MailFrom:     appValues.String("mail_from"),
		CLAEmail:     appValues.String("cla_email"),

		MediaRoot: appValues.String("media_root"),
	}

	return coreCfg, appCfg, nil
}

// ValidateConfig performs app-specific config validation.
//
// Return nil to accept the loaded config, or an error to abort startup.
// The webhook slugs are the only access control on their endpoints, so a
// blank slug is a configuration error rather than a silent open endpoint.
func ValidateConfig(coreCfg *config.CoreConfig, appCfg AppConfig, logger *zap.Logger) error {
	if err := wafflemongo.ValidateURI(appCfg.MongoURI); err != nil {
		logger.Error("invalid MongoDB URI", zap.Error(err))
		return fmt.Errorf("invalid MongoDB URI: %w", err)
	}

	if appCfg.PRWebhookSlug == "" || appCfg.ICLAWebhookSlug == "" || appCfg.CCLAWebhookSlug == "" {
		return fmt.Errorf("pr_webhook_slug, icla_webhook_slug, and ccla_webhook_slug must all be set")
	}

	if (appCfg.ICLATemplateID != 0 || appCfg.CCLATemplateID != 0) && appCfg.DocuSealKey == "" {
		return fmt.Errorf("docuseal_key is required when signing templates are configured")
	}

	if appCfg.GitHubToken == "" {
		logger.Warn("github_token is empty; status and label updates will be rejected upstream")
	}

	return nil
}
