// internal/app/features/people/handler.go
package people

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/dalemusser/clahub/internal/app/store/groups"
	"github.com/dalemusser/clahub/internal/app/store/iclas"
	"github.com/dalemusser/clahub/internal/app/store/memberships"
	"github.com/dalemusser/clahub/internal/app/store/people"
	"github.com/dalemusser/clahub/internal/app/system/timeouts"
	"github.com/dalemusser/clahub/internal/domain/models"
	"github.com/go-chi/chi/v5"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// Handler serves the versioned read-only personnel API under /0/. Every
// endpoint answers GET with JSON; a key that does not resolve is a 204 with
// an empty body, never a 404.
type Handler struct {
	People      *peoplestore.Store
	Groups      *groupstore.Store
	Memberships *membershipstore.Store
	ICLAs       *iclastore.Store
	Log         *zap.Logger
}

// NewHandler creates a personnel read API handler.
func NewHandler(people *peoplestore.Store, groups *groupstore.Store, ms *membershipstore.Store, iclaStore *iclastore.Store, logger *zap.Logger) *Handler {
	return &Handler{
		People:      people,
		Groups:      groups,
		Memberships: ms,
		ICLAs:       iclaStore,
		Log:         logger,
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.Log.Error("encoding response failed", zap.Error(err))
	}
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// findPerson resolves the {id} path segment against every identifier a
// person carries. Misses and ambiguous matches both read as "no such
// person"; only genuine store failures become a 500.
func (h *Handler) findPerson(ctx context.Context, w http.ResponseWriter, identifier string) (models.Person, bool) {
	person, err := h.People.FindByIdentifier(ctx, identifier)
	switch {
	case err == nil:
		return person, true
	case errors.Is(err, mongo.ErrNoDocuments), errors.Is(err, peoplestore.ErrAmbiguous):
		noContent(w)
		return models.Person{}, false
	default:
		h.Log.Error("person lookup failed", zap.String("id", identifier), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return models.Person{}, false
	}
}

// sinceString renders a membership start date in the wire format the API
// has always used. Open-ended memberships render as the empty string.
func sinceString(since *time.Time) string {
	if since == nil {
		return ""
	}
	return since.Format("2006-01-02")
}

// memberof builds the {group name: since} map across every membership the
// person holds, current or not. Memberships of deleted groups are skipped.
func (h *Handler) memberof(ctx context.Context, personID string) (map[string]string, error) {
	ms, err := h.Memberships.ListForPerson(ctx, personID)
	if err != nil {
		return nil, err
	}
	out := map[string]string{}
	names := map[string]string{}
	for _, m := range ms {
		name, ok := names[m.GroupID]
		if !ok {
			g, err := h.Groups.GetByID(ctx, m.GroupID)
			if errors.Is(err, mongo.ErrNoDocuments) {
				continue
			}
			if err != nil {
				return nil, err
			}
			name = g.Name
			names[m.GroupID] = name
		}
		out[name] = sinceString(m.Since)
	}
	return out, nil
}

// ServeListPeople handles GET /0/People: every person's identifier list.
func (h *Handler) ServeListPeople(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	persons, err := h.People.List(ctx)
	if err != nil {
		h.Log.Error("listing people failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([][]any, 0, len(persons))
	for i := range persons {
		out = append(out, persons[i].IDs())
	}
	h.writeJSON(w, out)
}

// ServeFindPerson handles GET /0/Person/{id}.
func (h *Handler) ServeFindPerson(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	person, ok := h.findPerson(ctx, w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	member, err := h.memberof(ctx, person.ID)
	if err != nil {
		h.Log.Error("loading memberships failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, map[string]any{
		"ids":      person.IDs(),
		"tags":     person.Tags(),
		"memberof": member,
	})
}

// ServePersonMembership handles GET /0/Person/{id}/Membership.
func (h *Handler) ServePersonMembership(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	person, ok := h.findPerson(ctx, w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	member, err := h.memberof(ctx, person.ID)
	if err != nil {
		h.Log.Error("loading memberships failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, member)
}

// ServeIsMemberOf handles GET /0/Person/{id}/IsMemberOf/{group}: a
// single-element array with the since date, or 204 when the person has
// never been a member.
func (h *Handler) ServeIsMemberOf(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	person, ok := h.findPerson(ctx, w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	member, err := h.memberof(ctx, person.ID)
	if err != nil {
		h.Log.Error("loading memberships failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	since, ok := member[chi.URLParam(r, "group")]
	if !ok {
		noContent(w)
		return
	}
	h.writeJSON(w, []string{since})
}

// ServeValueOfTag handles GET /0/Person/{id}/ValueOfTag/{tag}.
func (h *Handler) ServeValueOfTag(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	person, ok := h.findPerson(ctx, w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	value, ok := person.Tags()[chi.URLParam(r, "tag")]
	if !ok {
		noContent(w)
		return
	}
	h.writeJSON(w, []string{value})
}

// ServePersonCLAs handles GET /0/Person/{id}/HasCLA: the person's emails
// that an active individual agreement covers.
func (h *Handler) ServePersonCLAs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	person, ok := h.findPerson(ctx, w, chi.URLParam(r, "id"))
	if !ok {
		return
	}
	emails, err := h.ICLAs.ActiveEmails(ctx, person.Emails)
	if err != nil {
		h.Log.Error("loading agreements failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if emails == nil {
		emails = []string{}
	}
	h.writeJSON(w, emails)
}

// findGroup resolves the {group} path segment by name, answering 204 on a
// miss like the person lookups do.
func (h *Handler) findGroup(ctx context.Context, w http.ResponseWriter, name string) (models.Group, bool) {
	g, err := h.Groups.GetByName(ctx, name)
	switch {
	case err == nil:
		return g, true
	case errors.Is(err, mongo.ErrNoDocuments):
		noContent(w)
		return models.Group{}, false
	default:
		h.Log.Error("group lookup failed", zap.String("group", name), zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return models.Group{}, false
	}
}

// activeMembers loads the people whose membership in the group is in effect
// today.
func (h *Handler) activeMembers(ctx context.Context, groupID string) ([]models.Person, error) {
	ids, err := h.Memberships.ActivePersonIDs(ctx, groupID, time.Now().UTC())
	if err != nil {
		return nil, err
	}
	return h.People.GetByIDs(ctx, ids)
}

// ServeGroupMembers handles GET /0/Group/{group}/Members: the identifier
// lists of every currently active member.
func (h *Handler) ServeGroupMembers(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, ok := h.findGroup(ctx, w, chi.URLParam(r, "group"))
	if !ok {
		return
	}
	members, err := h.activeMembers(ctx, g.ID)
	if err != nil {
		h.Log.Error("loading group members failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	out := make([][]any, 0, len(members))
	for i := range members {
		out = append(out, members[i].IDs())
	}
	h.writeJSON(w, out)
}

// ServeGroupCLAs handles GET /0/Group/{group}/CLAs: every active agreement
// email across the group's current members.
func (h *Handler) ServeGroupCLAs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	g, ok := h.findGroup(ctx, w, chi.URLParam(r, "group"))
	if !ok {
		return
	}
	members, err := h.activeMembers(ctx, g.ID)
	if err != nil {
		h.Log.Error("loading group members failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	var emails []string
	for i := range members {
		emails = append(emails, members[i].Emails...)
	}
	covered, err := h.ICLAs.ActiveEmails(ctx, emails)
	if err != nil {
		h.Log.Error("loading agreements failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if covered == nil {
		covered = []string{}
	}
	h.writeJSON(w, covered)
}

// ServeEmailHasCLA handles GET /0/HasCLA/{email}: [1] when the email is
// covered by an active agreement, 204 otherwise.
func (h *Handler) ServeEmailHasCLA(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Short())
	defer cancel()

	covered, err := h.ICLAs.Covered(ctx, chi.URLParam(r, "email"))
	if err != nil {
		h.Log.Error("coverage lookup failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if !covered {
		noContent(w)
		return
	}
	h.writeJSON(w, []int{1})
}

// ServeListCLAs handles GET /0/CLAs: every active agreement email, sorted.
func (h *Handler) ServeListCLAs(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), timeouts.Medium())
	defer cancel()

	emails, err := h.ICLAs.ListActiveEmails(ctx)
	if err != nil {
		h.Log.Error("listing agreements failed", zap.Error(err))
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	if emails == nil {
		emails = []string{}
	}
	h.writeJSON(w, emails)
}
