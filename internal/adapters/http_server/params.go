package httpserver

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"midtown_book/internal/app"
	"midtown_book/internal/domain"
)

const maxJSONBody = 1 << 20

// fieldErrs collects per-parameter failures into one 400.
type fieldErrs map[string]string

func (fe fieldErrs) err() error {
	if len(fe) == 0 {
		return nil
	}
	return &app.ValidationError{Fields: fe}
}

// sortAliases accepts the camelCase spellings the web client sends.
var sortAliases = map[string]string{
	"createdAt": "created_at",
	"viewCount": "view_count",
	"newest":    "created_at",
	"popular":   "view_count",
}

// parseFilter reads the discovery query string. Absent parameters are no-ops.
func parseFilter(q url.Values) (domain.BusinessFilter, error) {
	var f domain.BusinessFilter
	bad := fieldErrs{}

	if v := strings.TrimSpace(q.Get("category")); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			if id <= 0 {
				bad["category"] = "must be a positive id or a slug"
			} else {
				f.CategoryID = &id
			}
		} else {
			f.CategorySlug = strings.ToLower(v)
		}
	}
	if v := q.Get("rating"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 || n > 5 {
			bad["rating"] = "must be an integer between 1 and 5"
		} else {
			f.MinRating = &n
		}
	}
	if vs := q["priceRange"]; len(vs) > 0 {
		seen := map[int]bool{}
		for _, raw := range vs {
			for _, part := range strings.Split(raw, ",") {
				part = strings.TrimSpace(part)
				if part == "" {
					continue
				}
				n, err := strconv.Atoi(part)
				if err != nil || n < 1 || n > 4 {
					bad["priceRange"] = "values must be between 1 and 4"
					continue
				}
				if !seen[n] {
					seen[n] = true
					f.PriceRanges = append(f.PriceRanges, n)
				}
			}
		}
	}
	if v := q.Get("isFeatured"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			bad["isFeatured"] = "must be true or false"
		} else {
			f.IsFeatured = &b
		}
	}
	f.Search = strings.TrimSpace(q.Get("search"))
	f.City = strings.TrimSpace(q.Get("city"))

	if v := q.Get("sortBy"); v != "" {
		if a, ok := sortAliases[v]; ok {
			v = a
		}
		sb, ok := domain.ParseSortBy(v)
		if !ok {
			bad["sortBy"] = "must be one of name, rating, created_at, view_count, distance"
		} else {
			f.SortBy = sb
		}
	}
	if v := strings.ToLower(q.Get("sortOrder")); v != "" {
		switch domain.SortOrder(v) {
		case domain.Asc, domain.Desc:
			f.SortOrder = domain.SortOrder(v)
		default:
			bad["sortOrder"] = "must be asc or desc"
		}
	}
	f.Limit, f.Offset = parsePage(q, bad)
	return f, bad.err()
}

// parsePage reads limit and offset; range clamping is left to the query layer.
func parsePage(q url.Values, bad fieldErrs) (limit, offset int) {
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			bad["limit"] = "must be an integer"
		}
		limit = n
	}
	if v := q.Get("offset"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			bad["offset"] = "must be an integer"
		}
		offset = n
	}
	return limit, offset
}

func parseNear(q url.Values) (domain.NearQuery, error) {
	bad := fieldErrs{}
	var nq domain.NearQuery

	lat, err := strconv.ParseFloat(q.Get("lat"), 64)
	if err != nil || lat < -90 || lat > 90 {
		bad["lat"] = "required, between -90 and 90"
	}
	lng, err := strconv.ParseFloat(q.Get("lng"), 64)
	if err != nil || lng < -180 || lng > 180 {
		bad["lng"] = "required, between -180 and 180"
	}
	nq.Center = domain.Coords{Lat: lat, Lng: lng}

	if v := q.Get("radius"); v != "" {
		r, err := strconv.ParseFloat(v, 64)
		if err != nil || r <= 0 {
			bad["radius"] = "must be a positive number of kilometres"
		}
		nq.RadiusKm = r
	}
	return nq, bad.err()
}

func pathID(r *http.Request, name string) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		return 0, &app.ValidationError{Fields: map[string]string{name: "must be a positive integer"}}
	}
	return id, nil
}

func optionalBool(q url.Values, name string) (*bool, error) {
	v := q.Get(name)
	if v == "" {
		return nil, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return nil, &app.ValidationError{Fields: map[string]string{name: "must be true or false"}}
	}
	return &b, nil
}

// decodeJSON reads a single JSON object; unknown fields are rejected.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var mbe *http.MaxBytesError
		if errors.As(err, &mbe) {
			return &app.ValidationError{Fields: map[string]string{"body": "too large"}}
		}
		return &app.ValidationError{Fields: map[string]string{"body": fmt.Sprintf("invalid JSON: %v", err)}}
	}
	if _, err := dec.Token(); err != io.EOF {
		return &app.ValidationError{Fields: map[string]string{"body": "must contain a single JSON object"}}
	}
	return nil
}
