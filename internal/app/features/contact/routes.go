// internal/app/features/contact/routes.go
package contact

import "github.com/go-chi/chi/v5"

// Routes returns the contact form subrouter, mounted at /contact.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Post("/submit", h.ServeSubmit)
	return r
}
