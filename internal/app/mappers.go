package app

import (
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"midtown_book/internal/domain"
)

/********** alias registries (single source of truth) **********/

var categoryAliases = map[string][]string{
	"name":  {"name", "title", "label"},
	"slug":  {"slug", "handle"},
	"order": {"display_order", "sort_order", "position", "order"},
}

var businessAliases = map[string][]string{
	"name":          {"name", "business_name", "title"},
	"slug":          {"slug", "handle"},
	"description":   {"description", "about", "summary"},
	"category_ref":  {"category_id", "category.id", "categoryId"},
	"category_slug": {"category_slug", "category.slug", "categories.slug"},
	"address":       {"address", "street_address", "address_line1", "location.address"},
	"city":          {"city", "location.city", "locality"},
	"state":         {"state", "location.state", "region"},
	"zip":           {"zip", "zip_code", "postal_code", "postcode"},
	"phone":         {"phone", "phone_number", "contact.phone"},
	"email":         {"email", "contact_email", "contact.email"},
	"website":       {"website", "website_url", "url", "contact.website"},
	"owner":         {"owner_id", "claimed_by", "ownerId"},
	"submitted_by":  {"submitted_by", "created_by"},
	"status":        {"status", "approval_status"},
}

var reviewAliases = map[string][]string{
	"author":       {"author_name", "reviewer_name", "author", "profiles.full_name", "user.name"},
	"title":        {"title", "review_title", "headline"},
	"text":         {"content", "comment", "text", "body", "review"},
	"user":         {"user_id", "author_id", "userId"},
	"source_id":    {"id", "review_id", "reviewId"},
	"rating":       {"rating", "stars", "score"},
	"response":     {"response", "owner_response", "business_response", "response.content"},
	"responded_at": {"response_date", "responded_at", "response.responded_at"},
}

/********** tiny helpers **********/

// lookupAny: safe nested lookup with dot paths on maps.
func lookupAny(m map[string]any, path string) any {
	cur := any(m)
	for _, part := range strings.Split(path, ".") {
		obj, ok := cur.(map[string]any)
		if !ok {
			return nil
		}
		v, ok := obj[part]
		if !ok {
			return nil
		}
		cur = v
	}
	return cur
}

// lookupStr returns string at path or "". Numbers are formatted so ids of
// either type compare equal.
func lookupStr(m map[string]any, path string) string {
	switch v := lookupAny(m, path).(type) {
	case string:
		return strings.TrimSpace(v)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	}
	return ""
}

// firstNonEmptyAlias: first non-empty string for a named alias set.
func firstNonEmptyAlias(m map[string]any, aliases map[string][]string, key string) *string {
	for _, p := range aliases[key] {
		if s := lookupStr(m, p); s != "" {
			return &s
		}
	}
	return nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}

// getFloatFlexible: number from several paths (float64/int/string like "8,0").
func getFloatFlexible(m map[string]any, paths ...string) *float64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			f := v
			return &f
		case int:
			f := float64(v)
			return &f
		case string:
			s := strings.TrimSpace(strings.ReplaceAll(v, ",", "."))
			if s == "" {
				continue
			}
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				return &f
			}
		}
	}
	return nil
}

// firstInt64Flexible: int64 from several paths (float64/int/string).
func firstInt64Flexible(m map[string]any, paths ...string) *int64 {
	for _, k := range paths {
		switch v := lookupAny(m, k).(type) {
		case float64:
			x := int64(v)
			return &x
		case int:
			x := int64(v)
			return &x
		case int64:
			x := v
			return &x
		case string:
			s := strings.TrimSpace(v)
			if s == "" {
				continue
			}
			if n, err := strconv.ParseInt(s, 10, 64); err == nil {
				return &n
			}
		}
	}
	return nil
}

// lookupBool accepts JSON booleans, 0/1 and "true"/"false"/"t"/"f".
func lookupBool(m map[string]any, path string) bool {
	switch v := lookupAny(m, path).(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case string:
		b, _ := strconv.ParseBool(strings.TrimSpace(v))
		return b
	}
	return false
}

// lookupTime parses RFC 3339 and the Postgres text formats the export emits.
func lookupTime(m map[string]any, paths ...string) *time.Time {
	layouts := []string{time.RFC3339Nano, "2006-01-02 15:04:05.999999-07", "2006-01-02 15:04:05", "2006-01-02"}
	for _, p := range paths {
		s := lookupStr(m, p)
		if s == "" {
			continue
		}
		for _, l := range layouts {
			if t, err := time.Parse(l, s); err == nil {
				t = t.UTC()
				return &t
			}
		}
	}
	return nil
}

// priceRange reads 1..4 from either a number or a "$$" style string.
func priceRange(m map[string]any) *int {
	for _, p := range []string{"price_range", "price_level", "price"} {
		switch v := lookupAny(m, p).(type) {
		case float64:
			if n := int(v); n >= 1 && n <= 4 {
				return &n
			}
		case string:
			s := strings.TrimSpace(v)
			if s != "" && strings.Trim(s, "$") == "" && len(s) <= 4 {
				n := len(s)
				return &n
			}
			if n, err := strconv.Atoi(s); err == nil && n >= 1 && n <= 4 {
				return &n
			}
		}
	}
	return nil
}

func refOf(m map[string]any) string {
	return lookupStr(m, "id")
}

/********** category mapper **********/

func mapCategory(row map[string]any) (domain.Category, error) {
	name := deref(firstNonEmptyAlias(row, categoryAliases, "name"))
	if name == "" {
		return domain.Category{}, fmt.Errorf("%w: category without name", domain.ErrValidation)
	}
	slug := deref(firstNonEmptyAlias(row, categoryAliases, "slug"))
	if slug == "" {
		slug = Slugify(name)
	}
	c := domain.Category{Name: name, Slug: slug, IsActive: true}
	if _, present := row["is_active"]; present {
		c.IsActive = lookupBool(row, "is_active")
	}
	if n := firstInt64Flexible(row, categoryAliases["order"]...); n != nil {
		c.DisplayOrder = int(*n)
	}
	return c, nil
}

/********** business mapper **********/

// mapBusiness converts one exported listing. cats resolves legacy category
// ids and slugs to local ids.
func mapBusiness(row map[string]any, cats map[string]int64) (domain.Business, error) {
	name := deref(firstNonEmptyAlias(row, businessAliases, "name"))
	if name == "" {
		return domain.Business{}, fmt.Errorf("%w: business without name", domain.ErrValidation)
	}
	b := domain.Business{
		Name:        name,
		Slug:        deref(firstNonEmptyAlias(row, businessAliases, "slug")),
		Description: firstNonEmptyAlias(row, businessAliases, "description"),
		Address:     firstNonEmptyAlias(row, businessAliases, "address"),
		City:        firstNonEmptyAlias(row, businessAliases, "city"),
		State:       firstNonEmptyAlias(row, businessAliases, "state"),
		Zip:         firstNonEmptyAlias(row, businessAliases, "zip"),
		Lat:         getFloatFlexible(row, "latitude", "lat", "location.lat"),
		Lng:         getFloatFlexible(row, "longitude", "lng", "lon", "location.lng"),
		Phone:       firstNonEmptyAlias(row, businessAliases, "phone"),
		Email:       firstNonEmptyAlias(row, businessAliases, "email"),
		Website:     firstNonEmptyAlias(row, businessAliases, "website"),
		PriceRange:  priceRange(row),
		OwnerID:     firstNonEmptyAlias(row, businessAliases, "owner"),
		SubmittedBy: firstNonEmptyAlias(row, businessAliases, "submitted_by"),
		IsClaimed:   lookupBool(row, "is_claimed"),
		IsVerified:  lookupBool(row, "is_verified"),
		IsFeatured:  lookupBool(row, "is_featured"),
		Status:      domain.StatusPending,
	}
	if b.Slug == "" {
		b.Slug = Slugify(name)
	}
	if st, ok := domain.ParseBusinessStatus(strings.ToLower(deref(firstNonEmptyAlias(row, businessAliases, "status")))); ok {
		b.Status = st
	}
	if b.OwnerID != nil {
		b.IsClaimed = true
	}
	if v := firstInt64Flexible(row, "view_count", "views"); v != nil && *v > 0 {
		b.ViewCount = *v
	}
	if (b.Lat == nil) != (b.Lng == nil) || (b.Lat != nil && (math.Abs(*b.Lat) > 90 || math.Abs(*b.Lng) > 180)) {
		b.Lat, b.Lng = nil, nil
	}
	for _, key := range []string{"category_ref", "category_slug"} {
		if ref := deref(firstNonEmptyAlias(row, businessAliases, key)); ref != "" {
			if id, ok := cats[ref]; ok {
				b.CategoryID = &id
				break
			}
		}
	}
	return b, nil
}

/********** reviews mapper **********/

func mapReviews(businessID int64, in []map[string]any) []domain.Review {
	out := make([]domain.Review, 0, len(in))
	for _, r := range in {
		var rv domain.Review
		rv.BusinessID = businessID
		rv.AuthorName = firstNonEmptyAlias(r, reviewAliases, "author")
		rv.UserID = firstNonEmptyAlias(r, reviewAliases, "user")
		rv.Title = firstNonEmptyAlias(r, reviewAliases, "title")
		rv.Content = firstNonEmptyAlias(r, reviewAliases, "text")
		rv.IsApproved = lookupBool(r, "is_approved")

		// Rating: whole stars 1..5; anything else is treated as unrated.
		if f := getFloatFlexible(r, reviewAliases["rating"]...); f != nil {
			if n := int(math.Round(*f)); n >= 1 && n <= 5 {
				rv.Rating = &n
			}
		}

		if s := firstNonEmptyAlias(r, reviewAliases, "response"); s != nil {
			resp := domain.ReviewResponse{Content: *s}
			if t := lookupTime(r, reviewAliases["responded_at"]...); t != nil {
				resp.RespondedAt = *t
			}
			rv.Response = &resp
		}
		if t := lookupTime(r, "created_at"); t != nil {
			rv.CreatedAt = *t
		}

		// SourceID → prefer explicit; else synthesize stable hash.
		if s := firstNonEmptyAlias(r, reviewAliases, "source_id"); s != nil {
			rv.SourceID = s
		} else {
			rating := ""
			if rv.Rating != nil {
				rating = strconv.Itoa(*rv.Rating)
			}
			sig := strings.Join([]string{strconv.FormatInt(businessID, 10), deref(rv.AuthorName), deref(rv.Title), deref(rv.Content), rating}, "|")
			sum := sha1.Sum([]byte(sig))
			id := hex.EncodeToString(sum[:])
			rv.SourceID = &id
		}

		out = append(out, rv)
	}
	return out
}
