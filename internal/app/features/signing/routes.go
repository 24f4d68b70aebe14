// internal/app/features/signing/routes.go
package signing

import "github.com/go-chi/chi/v5"

// Routes returns the public signing request endpoints. The provider's
// completion webhooks are mounted separately under their secret slugs.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/icla/submit", h.ServeICLASubmit)
	r.Post("/ccla/submit", h.ServeCCLASubmit)
	return r
}
