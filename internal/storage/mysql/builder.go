package mysql

import (
	"strings"

	"midtown_book/internal/domain"
)

// whereClause turns a filter into a WHERE fragment plus its positional args.
// Absent filters add nothing.
func whereClause(f domain.BusinessFilter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	add := func(cond string, vals ...any) {
		conds = append(conds, cond)
		args = append(args, vals...)
	}

	if !f.IncludeInactive {
		add("b.is_active")
	}
	if f.Status != nil {
		add("b.status = ?", string(*f.Status))
	}
	if f.CategoryID != nil {
		add("b.category_id = ?", *f.CategoryID)
	}
	if f.CategorySlug != "" {
		add("c.slug = ?", f.CategorySlug)
	}
	if f.IsFeatured != nil {
		add("b.is_featured = ?", *f.IsFeatured)
	}
	if len(f.PriceRanges) > 0 {
		marks := strings.TrimSuffix(strings.Repeat("?,", len(f.PriceRanges)), ",")
		vals := make([]any, 0, len(f.PriceRanges))
		for _, p := range f.PriceRanges {
			vals = append(vals, p)
		}
		add("b.price_range IN ("+marks+")", vals...)
	}
	if f.City != "" {
		add("b.city = ?", f.City)
	}
	if f.OwnerID != "" {
		add("b.owner_id = ?", f.OwnerID)
	}
	if f.Search != "" {
		// the table collation is case-insensitive, so LIKE matches "Café" and "café" alike
		pat := "%" + escapeLike(f.Search) + "%"
		add("(b.name LIKE ? OR b.description LIKE ?)", pat, pat)
	}
	if f.MinRating != nil {
		add("r.avg_rating >= ?", *f.MinRating)
	}

	if len(conds) == 0 {
		return "", nil
	}
	return "\nWHERE " + strings.Join(conds, "\n  AND "), args
}

func boxClause(box domain.Box) (string, []any) {
	return "b.lat BETWEEN ? AND ? AND b.lng BETWEEN ? AND ?",
		[]any{box.MinLat, box.MaxLat, box.MinLng, box.MaxLng}
}

// orderClause mirrors discovery.Sort so both stores page identically.
func orderClause(f domain.BusinessFilter) string {
	dir := "ASC"
	if f.SortOrder == domain.Desc {
		dir = "DESC"
	}
	switch f.SortBy {
	case domain.SortName:
		return "\nORDER BY b.name " + dir + ", b.id ASC"
	case domain.SortRating:
		return "\nORDER BY r.avg_rating IS NULL, r.avg_rating " + dir + ", b.id ASC"
	case domain.SortCreatedAt:
		return "\nORDER BY b.created_at " + dir + ", b.id ASC"
	case domain.SortViewCount:
		return "\nORDER BY b.view_count " + dir + ", b.id ASC"
	default:
		// distance has no column; nearby search orders in process
		return "\nORDER BY b.is_featured DESC, b.created_at DESC, b.id DESC"
	}
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

func escapeLike(s string) string { return likeEscaper.Replace(s) }
