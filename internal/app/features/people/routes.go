// internal/app/features/people/routes.go
package people

import "github.com/go-chi/chi/v5"

// Routes returns the legacy personnel read API, mounted under /0/. Path
// casing and shapes are fixed; existing consumers depend on them.
func Routes(h *Handler) chi.Router {
	r := chi.NewRouter()
	r.Get("/People", h.ServeListPeople)
	r.Get("/Person/{id}", h.ServeFindPerson)
	r.Get("/Person/{id}/Membership", h.ServePersonMembership)
	r.Get("/Person/{id}/IsMemberOf/{group}", h.ServeIsMemberOf)
	r.Get("/Person/{id}/ValueOfTag/{tag}", h.ServeValueOfTag)
	r.Get("/Person/{id}/HasCLA", h.ServePersonCLAs)
	r.Get("/Group/{group}/Members", h.ServeGroupMembers)
	r.Get("/Group/{group}/CLAs", h.ServeGroupCLAs)
	r.Get("/HasCLA/{email}", h.ServeEmailHasCLA)
	r.Get("/CLAs", h.ServeListCLAs)
	return r
}
