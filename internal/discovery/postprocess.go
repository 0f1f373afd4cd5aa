package discovery

import (
	"sort"
	"strings"

	"midtown_book/internal/domain"
)

// Matches applies every non-paging part of f to a single business.
func Matches(b domain.Business, f domain.BusinessFilter) bool {
	if !f.IncludeInactive && !b.IsActive {
		return false
	}
	if f.Status != nil && b.Status != *f.Status {
		return false
	}
	if f.CategoryID != nil && (b.CategoryID == nil || *b.CategoryID != *f.CategoryID) {
		return false
	}
	if f.CategorySlug != "" && (b.CategorySlug == nil || !strings.EqualFold(*b.CategorySlug, f.CategorySlug)) {
		return false
	}
	if f.IsFeatured != nil && b.IsFeatured != *f.IsFeatured {
		return false
	}
	if len(f.PriceRanges) > 0 && (b.PriceRange == nil || !containsInt(f.PriceRanges, *b.PriceRange)) {
		return false
	}
	if f.City != "" && (b.City == nil || !strings.EqualFold(*b.City, f.City)) {
		return false
	}
	if f.OwnerID != "" && !b.OwnedBy(f.OwnerID) {
		return false
	}
	if f.Search != "" && !matchesSearch(b, f.Search) {
		return false
	}
	if f.MinRating != nil && !atLeast(b.Rating, *f.MinRating) {
		return false
	}
	return true
}

// FilterMinRating keeps businesses whose approved average is at least min.
// Businesses without ratings never pass.
func FilterMinRating(in []domain.Business, min int) []domain.Business {
	out := make([]domain.Business, 0, len(in))
	for _, b := range in {
		if atLeast(b.Rating, min) {
			out = append(out, b)
		}
	}
	return out
}

func atLeast(r domain.RatingSummary, min int) bool {
	return r.Average != nil && *r.Average >= float64(min)
}

func matchesSearch(b domain.Business, q string) bool {
	q = strings.ToLower(q)
	if strings.Contains(strings.ToLower(b.Name), q) {
		return true
	}
	return b.Description != nil && strings.Contains(strings.ToLower(*b.Description), q)
}

func containsInt(set []int, v int) bool {
	for _, x := range set {
		if x == v {
			return true
		}
	}
	return false
}

// Sort orders in place. Rows missing the sort key (no rating, no distance)
// always go last; ties break on id ascending so paging is stable.
func Sort(items []domain.Business, by domain.SortBy, order domain.SortOrder) {
	desc := order == domain.Desc
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i], items[j]
		switch by {
		case domain.SortName:
			an, bn := strings.ToLower(a.Name), strings.ToLower(b.Name)
			if an != bn {
				return (an < bn) != desc
			}
		case domain.SortRating:
			if c, ok := cmpNullable(a.Rating.Average, b.Rating.Average, desc); ok {
				return c
			}
		case domain.SortDistance:
			if c, ok := cmpNullable(a.Distance, b.Distance, desc); ok {
				return c
			}
		case domain.SortViewCount:
			if a.ViewCount != b.ViewCount {
				return (a.ViewCount < b.ViewCount) != desc
			}
		case domain.SortCreatedAt:
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.Before(b.CreatedAt) != desc
			}
		default:
			if a.IsFeatured != b.IsFeatured {
				return a.IsFeatured
			}
			if !a.CreatedAt.Equal(b.CreatedAt) {
				return a.CreatedAt.After(b.CreatedAt)
			}
			return a.ID > b.ID
		}
		return a.ID < b.ID
	})
}

// cmpNullable orders nil after any value. ok is false when the keys are equal.
func cmpNullable(a, b *float64, desc bool) (less, ok bool) {
	switch {
	case a == nil && b == nil:
		return false, false
	case a == nil:
		return false, true
	case b == nil:
		return true, true
	case *a == *b:
		return false, false
	}
	return (*a < *b) != desc, true
}

// Paginate slices the fully ordered set. A non-positive limit returns everything
// from offset on.
func Paginate(items []domain.Business, limit, offset int) domain.BusinessPage {
	total := len(items)
	if offset < 0 {
		offset = 0
	}
	if offset > total {
		offset = total
	}
	end := total
	if limit > 0 && offset+limit < total {
		end = offset + limit
	}
	page := make([]domain.Business, end-offset)
	copy(page, items[offset:end])
	return domain.BusinessPage{Items: page, Total: total, HasMore: end < total}
}

// Apply runs filter, sort and paginate over an in-memory candidate set.
func Apply(all []domain.Business, f domain.BusinessFilter) domain.BusinessPage {
	f = f.Normalized()
	matched := make([]domain.Business, 0, len(all))
	for _, b := range all {
		if Matches(b, f) {
			matched = append(matched, b)
		}
	}
	Sort(matched, f.SortBy, f.SortOrder)
	return Paginate(matched, f.Limit, f.Offset)
}
