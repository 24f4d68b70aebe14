// internal/app/features/clacheck/routes.go
package clacheck

import "github.com/go-chi/chi/v5"

// Routes returns the webhook subrouter. It is mounted under a secret slug
// so only the configured sender can reach it.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/", h.ServeWebhook)
	return r
}
