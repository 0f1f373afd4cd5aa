package httpserver

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"

	"midtown_book/internal/app"
	"midtown_book/internal/domain"
)

// maxUpload bounds a claim form; the document store enforces its own size cap.
const maxUpload = 11 << 20

func principal(r *http.Request) domain.Principal {
	p, _ := PrincipalFrom(r.Context())
	return p
}

// ---- listings ----

func (h *Handlers) submitBusiness(w http.ResponseWriter, r *http.Request) {
	var in domain.BusinessInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	b, err := h.D.SubmitBusiness(r.Context(), principal(r), in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, b)
}

func (h *Handlers) setStatus(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Status string `json:"status"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	to, ok := domain.ParseBusinessStatus(body.Status)
	if !ok {
		writeError(w, r, &app.ValidationError{Fields: map[string]string{"status": "must be pending, approved, rejected or suspended"}})
		return
	}
	b, err := h.D.SetBusinessStatus(r.Context(), principal(r), id, to)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) setFeatured(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Featured *bool `json:"featured"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	if body.Featured == nil {
		writeError(w, r, &app.ValidationError{Fields: map[string]string{"featured": "is required"}})
		return
	}
	b, err := h.D.SetFeatured(r.Context(), principal(r), id, *body.Featured)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

func (h *Handlers) deactivate(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.D.DeactivateBusiness(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) adminBusinesses(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	f, err := parseFilter(q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if v := q.Get("status"); v != "" {
		st, ok := domain.ParseBusinessStatus(v)
		if !ok {
			writeError(w, r, &app.ValidationError{Fields: map[string]string{"status": "unknown status"}})
			return
		}
		f.Status = &st
	}
	page, err := h.Q.AdminBusinesses(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, page)
}

// ---- reviews ----

func (h *Handlers) createReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ref")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in domain.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := h.D.CreateReview(r.Context(), principal(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rv)
}

func (h *Handlers) updateReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in domain.ReviewInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := h.D.UpdateReview(r.Context(), principal(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func (h *Handlers) deleteReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.D.DeleteReview(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) respondToReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var body struct {
		Content string `json:"content"`
	}
	if err := decodeJSON(w, r, &body); err != nil {
		writeError(w, r, err)
		return
	}
	rv, err := h.D.RespondToReview(r.Context(), principal(r), id, body.Content)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rv)
}

func (h *Handlers) moderationQueue(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	approved, err := optionalBool(q, "approved")
	if err != nil {
		writeError(w, r, err)
		return
	}
	bad := fieldErrs{}
	limit, offset := parsePage(q, bad)
	if err := bad.err(); err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.Q.ListModerationQueue(r.Context(), approved, limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, page)
}

func (h *Handlers) approveReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.D.ApproveReview(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handlers) removeReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := h.D.RemoveReview(r.Context(), principal(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ---- claims ----

func (h *Handlers) submitClaim(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "ref")
	if err != nil {
		writeError(w, r, err)
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxUpload)
	if err := r.ParseMultipartForm(1 << 20); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			writeError(w, r, &app.ValidationError{Fields: map[string]string{"document": "file too large"}})
			return
		}
		writeError(w, r, &app.ValidationError{Fields: map[string]string{"body": "expected multipart/form-data"}})
		return
	}
	defer func() { _ = r.MultipartForm.RemoveAll() }()

	doc, err := readDocument(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := h.D.SubmitClaim(r.Context(), principal(r), id, doc, strings.TrimSpace(r.FormValue("note")))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

// readDocument returns nil when the form carries no document.
func readDocument(r *http.Request) (*domain.Document, error) {
	f, hdr, err := r.FormFile("document")
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, &app.ValidationError{Fields: map[string]string{"document": "unreadable upload"}}
	}
	defer f.Close()
	body, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	ct := hdr.Header.Get("Content-Type")
	if ct == "" || ct == "application/octet-stream" {
		ct = http.DetectContentType(body)
	}
	return &domain.Document{Filename: hdr.Filename, ContentType: ct, Size: int64(len(body)), Body: body}, nil
}

func (h *Handlers) listClaims(w http.ResponseWriter, r *http.Request) {
	var status *domain.ClaimStatus
	if v := r.URL.Query().Get("status"); v != "" {
		st, ok := domain.ParseClaimStatus(v)
		if !ok {
			writeError(w, r, &app.ValidationError{Fields: map[string]string{"status": "must be pending, approved or rejected"}})
			return
		}
		status = &st
	}
	cs, err := h.Q.ListClaims(r.Context(), status)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, map[string]any{"claims": cs})
}

func (h *Handlers) approveClaim(w http.ResponseWriter, r *http.Request) {
	h.resolveClaim(w, r, h.D.ApproveClaim)
}

func (h *Handlers) rejectClaim(w http.ResponseWriter, r *http.Request) {
	h.resolveClaim(w, r, h.D.RejectClaim)
}

type claimDecision func(ctx context.Context, p domain.Principal, id int64) (domain.Claim, error)

func (h *Handlers) resolveClaim(w http.ResponseWriter, r *http.Request, decide claimDecision) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	c, err := decide(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

// ---- owner ----

func (h *Handlers) ownedBusinesses(w http.ResponseWriter, r *http.Request) {
	bad := fieldErrs{}
	limit, offset := parsePage(r.URL.Query(), bad)
	if err := bad.err(); err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.Q.OwnedBusinesses(r.Context(), principal(r), limit, offset)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, page)
}

func (h *Handlers) ownerStats(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	st, err := h.Q.OwnerStats(r.Context(), principal(r), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, st)
}

func (h *Handlers) createDeal(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in domain.DealInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	d, err := h.D.CreateDeal(r.Context(), principal(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, d)
}

func (h *Handlers) createEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var in domain.EventInput
	if err := decodeJSON(w, r, &in); err != nil {
		writeError(w, r, err)
		return
	}
	e, err := h.D.CreateEvent(r.Context(), principal(r), id, in)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}
