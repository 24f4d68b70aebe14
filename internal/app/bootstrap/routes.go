// internal/app/bootstrap/routes.go
package bootstrap

import (
	"net/http"

	clacheckfeature "github.com/dalemusser/clahub/internal/app/features/clacheck"
	contactfeature "github.com/dalemusser/clahub/internal/app/features/contact"
	healthfeature "github.com/dalemusser/clahub/internal/app/features/health"
	peoplefeature "github.com/dalemusser/clahub/internal/app/features/people"
	signingfeature "github.com/dalemusser/clahub/internal/app/features/signing"
	cclastore "github.com/dalemusser/clahub/internal/app/store/cclas"
	groupstore "github.com/dalemusser/clahub/internal/app/store/groups"
	iclastore "github.com/dalemusser/clahub/internal/app/store/iclas"
	membershipstore "github.com/dalemusser/clahub/internal/app/store/memberships"
	peoplestore "github.com/dalemusser/clahub/internal/app/store/people"
	"github.com/dalemusser/clahub/internal/app/system/clafiles"
	"github.com/dalemusser/clahub/internal/app/system/docuseal"
	"github.com/dalemusser/clahub/internal/app/system/github"
	"github.com/dalemusser/clahub/internal/app/system/mailer"
	"github.com/dalemusser/clahub/internal/app/system/turnstile"
	"github.com/dalemusser/waffle/config"
	"github.com/dalemusser/waffle/pantry/fileserver"
	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"
)

// BuildHandler constructs the root HTTP handler (router) for this WAFFLE app.
//
// WAFFLE calls this after configuration, DB connections, schema setup, and
// any Startup hooks have completed.
//
// The webhook endpoints (pull-request checks and signing completions) are
// mounted under per-integration secret slugs from config: the slug is the
// only access control on them, matching how the upstream senders are
// configured.
func BuildHandler(coreCfg *config.CoreConfig, appCfg AppConfig, deps DBDeps, logger *zap.Logger) (http.Handler, error) {
	db := deps.MongoDatabase

	iclas := iclastore.New(db)
	cclas := cclastore.New(db)
	persons := peoplestore.New(db)
	groups := groupstore.New(db)
	memberships := membershipstore.New(db)

	ghClient := github.New(appCfg.GitHubToken, appCfg.TargetURL, nil, logger)
	signer := docuseal.New(appCfg.DocuSealKey, appCfg.DocuSealBaseURL, nil, logger)
	archive := clafiles.New(appCfg.MediaRoot, logger)
	mail := mailer.New(mailer.Config{
		Host:     appCfg.MailSMTPHost,
		Port:     appCfg.MailSMTPPort,
		Username: appCfg.MailSMTPUser,
		Password: appCfg.MailSMTPPass,
		From:     appCfg.MailFrom,
	}, logger)

	// Typed nils must not reach the AntiSpam interfaces, so the verifier is
	// only assigned when a secret is configured.
	var signingSpam signingfeature.AntiSpam
	var contactSpam contactfeature.AntiSpam
	if appCfg.TurnstileSecret != "" {
		verifier := turnstile.New(appCfg.TurnstileSecret, "", nil, logger)
		signingSpam = verifier
		contactSpam = verifier
	}

	r := chi.NewRouter()

	// Health check endpoint for load balancers and orchestrators
	healthHandler := healthfeature.NewHandler(deps.MongoClient, logger)
	r.Mount("/health", healthfeature.Routes(healthHandler))

	// Archived signed agreements, read-only
	r.Handle("/media/*", fileserver.Handler("/media", appCfg.MediaRoot))

	// Pull-request CLA check webhook
	checkHandler := clacheckfeature.NewHandler(iclas, ghClient, logger)

	// Signing request forms and completion callbacks
	signingHandler := signingfeature.NewHandler(iclas, cclas, signer, archive, signingSpam, mail, signingfeature.Config{
		ICLATemplateID: appCfg.ICLATemplateID,
		CCLATemplateID: appCfg.CCLATemplateID,
		ReplyTo:        appCfg.CLAEmail,
		NotifyEmail:    appCfg.CLAEmail,
	}, logger)

	r.Route("/webhooks", func(r chi.Router) {
		r.Mount("/pr/"+appCfg.PRWebhookSlug, clacheckfeature.Routes(checkHandler))
		r.Post("/icla/"+appCfg.ICLAWebhookSlug, signingHandler.ServeICLAWebhook)
		r.Post("/ccla/"+appCfg.CCLAWebhookSlug, signingHandler.ServeCCLAWebhook)
	})
	r.Mount("/", signingfeature.Routes(signingHandler))

	// Legacy personnel read API
	peopleHandler := peoplefeature.NewHandler(persons, groups, memberships, iclas, logger)
	r.Mount("/0", peoplefeature.Routes(peopleHandler))

	// Contact form relay
	contactHandler := contactfeature.NewHandler(mail, contactSpam, appCfg.CLAEmail, logger)
	r.Mount("/contact", contactfeature.Routes(contactHandler))

	return r, nil
}
