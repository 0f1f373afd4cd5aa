package domain

import "strings"

type SortBy string

const (
	SortNone      SortBy = ""
	SortName      SortBy = "name"
	SortRating    SortBy = "rating"
	SortCreatedAt SortBy = "created_at"
	SortViewCount SortBy = "view_count"
	SortDistance  SortBy = "distance"
)

func ParseSortBy(s string) (SortBy, bool) {
	switch sb := SortBy(s); sb {
	case SortNone, SortName, SortRating, SortCreatedAt, SortViewCount, SortDistance:
		return sb, true
	}
	return "", false
}

type SortOrder string

const (
	Asc  SortOrder = "asc"
	Desc SortOrder = "desc"
)

const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// BusinessFilter is the discovery query. Zero values mean "no filter".
type BusinessFilter struct {
	CategoryID   *int64
	CategorySlug string
	MinRating    *int
	PriceRanges  []int
	IsFeatured   *bool
	Search       string
	Status       *BusinessStatus
	City         string
	OwnerID      string
	// IncludeInactive keeps soft-deleted rows (admin views only).
	IncludeInactive bool

	SortBy    SortBy
	SortOrder SortOrder
	Limit     int
	Offset    int
}

// Normalized clamps paging and fills the direction default for the sort key.
func (f BusinessFilter) Normalized() BusinessFilter {
	if f.Limit <= 0 {
		f.Limit = DefaultLimit
	}
	if f.Limit > MaxLimit {
		f.Limit = MaxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	f.Search = strings.TrimSpace(f.Search)
	if f.SortOrder != Asc && f.SortOrder != Desc {
		switch f.SortBy {
		case SortName, SortDistance:
			f.SortOrder = Asc
		default:
			f.SortOrder = Desc
		}
	}
	return f
}

// Unpaged returns the filter with paging removed; used when the whole candidate
// set has to be materialized before paging (nearby search).
func (f BusinessFilter) Unpaged() BusinessFilter {
	f.Limit, f.Offset = 0, 0
	return f
}

type BusinessPage struct {
	Items   []Business `json:"businesses"`
	Total   int        `json:"total"`
	HasMore bool       `json:"hasMore"`
}

// NearQuery is a radius search around a point.
type NearQuery struct {
	Center   Coords
	RadiusKm float64
}

const (
	DefaultRadiusKm = 5.0
	MaxRadiusKm     = 50.0
)
