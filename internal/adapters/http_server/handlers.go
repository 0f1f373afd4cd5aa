package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"midtown_book/internal/app"
	"midtown_book/internal/domain"
)

type Handlers struct {
	Q     *app.QueryService
	D     *app.DirectoryService
	Views *app.ViewRecorder
}

type problem struct {
	Type   string            `json:"type"`
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers, auth TokenVerifier) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })

	s.mux.Route("/api", func(r chi.Router) {
		r.Use(Authenticate(auth))

		r.Get("/categories", h.listCategories)

		r.Route("/businesses", func(r chi.Router) {
			r.Get("/", h.listBusinesses)
			r.Get("/nearby", h.nearby)
			r.With(RequireUser).Post("/", h.submitBusiness)

			// GETs address a listing by slug, writes by numeric id.
			r.Get("/{ref}", h.getBusiness)
			r.Get("/{ref}/reviews", h.listReviews)
			r.Get("/{ref}/deals", h.listDeals)
			r.Get("/{ref}/events", h.listEvents)
			r.With(RequireUser).Post("/{ref}/reviews", h.createReview)
			r.With(RequireUser).Post("/{ref}/claims", h.submitClaim)
		})

		r.Route("/reviews/{id}", func(r chi.Router) {
			r.Use(RequireUser)
			r.Patch("/", h.updateReview)
			r.Delete("/", h.deleteReview)
			r.Post("/response", h.respondToReview)
		})

		r.Route("/owner/businesses", func(r chi.Router) {
			r.Use(RequireUser)
			r.Get("/", h.ownedBusinesses)
			r.Get("/{id}/stats", h.ownerStats)
			r.Post("/{id}/deals", h.createDeal)
			r.Post("/{id}/events", h.createEvent)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(RequireAdmin)
			r.Get("/businesses", h.adminBusinesses)
			r.Patch("/businesses/{id}/status", h.setStatus)
			r.Patch("/businesses/{id}/featured", h.setFeatured)
			r.Delete("/businesses/{id}", h.deactivate)
			r.Get("/reviews", h.moderationQueue)
			r.Post("/reviews/{id}/approve", h.approveReview)
			r.Delete("/reviews/{id}", h.removeReview)
			r.Get("/claims", h.listClaims)
			r.Post("/claims/{id}/approve", h.approveClaim)
			r.Post("/claims/{id}/reject", h.rejectClaim)
		})
	})
}

// ---- responses ----

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	writeProblemBody(w, problem{Type: "about:blank", Title: title, Status: status, Detail: detail})
}

func writeProblemBody(w http.ResponseWriter, p problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(p.Status)
	if err := json.NewEncoder(w).Encode(p); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain sentinels to problem responses in one place.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var ve *app.ValidationError
	switch {
	case errors.As(err, &ve):
		writeProblemBody(w, problem{Type: "about:blank", Title: "Validation Failed", Status: http.StatusBadRequest, Fields: ve.Fields})
	case errors.Is(err, domain.ErrValidation):
		writeProblem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	case errors.Is(err, domain.ErrUnauthorized):
		writeProblem(w, http.StatusUnauthorized, "Unauthorized", "")
	case errors.Is(err, domain.ErrForbidden):
		writeProblem(w, http.StatusForbidden, "Forbidden", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", "")
	case errors.Is(err, domain.ErrConflict):
		writeProblem(w, http.StatusConflict, "Conflict", err.Error())
	case errors.Is(err, domain.ErrInvalidTransition):
		writeProblem(w, http.StatusUnprocessableEntity, "Invalid Transition", err.Error())
	case errors.Is(err, domain.ErrUnavailable):
		log.Error().Err(err).Str("route", routeOf(r)).Msg("dependency unavailable")
		writeProblem(w, http.StatusServiceUnavailable, "Service Unavailable", "")
	default:
		log.Error().Err(err).Str("route", routeOf(r)).Msg("request failed")
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

// writeCached answers GETs with a weak ETag and honours If-None-Match.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if body == nil {
		writeProblem(w, http.StatusInternalServerError, "Internal Server Error", "")
		return
	}
	// If client already has this version, short-circuit.
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag) // include ETag on 304
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("route", routeOf(r)).Msg("failed to write body")
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("failed to write JSON body")
	}
}

// ---- public reads ----

func (h *Handlers) listBusinesses(w http.ResponseWriter, r *http.Request) {
	f, err := parseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, h.Q.ListBusinesses(r.Context(), f))
}

func (h *Handlers) nearby(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	nq, err := parseNear(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	f, err := parseFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, h.Q.Nearby(r.Context(), nq, f))
}

func (h *Handlers) getBusiness(w http.ResponseWriter, r *http.Request) {
	b, err := h.Q.GetBusiness(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if h.Views != nil {
		h.Views.Record(b.ID)
	}
	writeCached(w, r, b)
}

func (h *Handlers) listCategories(w http.ResponseWriter, r *http.Request) {
	cs, err := h.Q.ListCategories(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, map[string]any{"categories": cs})
}

func (h *Handlers) listReviews(w http.ResponseWriter, r *http.Request) {
	bad := fieldErrs{}
	limit, offset := parsePage(r.URL.Query(), bad)
	if err := bad.err(); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.Q.GetBusiness(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.Q.ListReviews(r.Context(), b.ID, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, page)
}

func (h *Handlers) listDeals(w http.ResponseWriter, r *http.Request) {
	b, err := h.Q.GetBusiness(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	ds, err := h.Q.ListDeals(r.Context(), b.ID, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, map[string]any{"deals": ds})
}

func (h *Handlers) listEvents(w http.ResponseWriter, r *http.Request) {
	b, err := h.Q.GetBusiness(r.Context(), chi.URLParam(r, "ref"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	es, err := h.Q.ListEvents(r.Context(), b.ID, true)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, map[string]any{"events": es})
}
