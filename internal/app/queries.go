package app

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"midtown_book/internal/adapters/observability"
	"midtown_book/internal/discovery"
	"midtown_book/internal/domain"
	"midtown_book/internal/geo"
)

// nearbyCandidates caps the bounding-box prefetch of a radius search.
const nearbyCandidates = 500

type QueryService struct {
	store    domain.Store
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewQueryService(s domain.Store, c domain.Cache, ttl time.Duration) *QueryService {
	return &QueryService{store: s, cache: c, cacheTTL: ttl, now: time.Now}
}

func businessKey(slug string) string { return "business:" + slug }

const categoriesKey = "categories"

func reviewsPrefix(businessID int64) string { return fmt.Sprintf("reviews:%d:", businessID) }

func reviewsKey(businessID int64, limit, offset int) string {
	return fmt.Sprintf("%s%d:%d", reviewsPrefix(businessID), limit, offset)
}

// ListBusinesses runs a public discovery query over approved, active listings.
// Backend failures are logged and answered with an empty page so the directory
// keeps rendering.
func (s *QueryService) ListBusinesses(ctx context.Context, f domain.BusinessFilter) domain.BusinessPage {
	f = publicOnly(f).Normalized()
	page, err := s.store.ListBusinesses(ctx, f)
	if err != nil {
		log.Error().Err(err).Str("context", "ListBusinesses").Msg("discovery query failed; returning empty page")
		observability.ObserveQueryFailure("list")
		return emptyPage()
	}
	if page.Items == nil {
		page.Items = []domain.Business{}
	}
	return page
}

// Nearby narrows candidates with a bounding box in the store, then keeps those
// within the exact great-circle radius, annotates distance and pages in process.
func (s *QueryService) Nearby(ctx context.Context, q domain.NearQuery, f domain.BusinessFilter) domain.BusinessPage {
	if q.RadiusKm <= 0 {
		q.RadiusKm = domain.DefaultRadiusKm
	}
	if q.RadiusKm > domain.MaxRadiusKm {
		q.RadiusKm = domain.MaxRadiusKm
	}
	if f.SortBy == domain.SortNone {
		f.SortBy = domain.SortDistance
	}
	f = publicOnly(f).Normalized()

	box := geo.BoundingBox(q.Center, q.RadiusKm)
	candidates, err := s.store.ListWithin(ctx, f.Unpaged(), box, nearbyCandidates)
	if err != nil {
		log.Error().Err(err).Str("context", "Nearby").Msg("nearby query failed; returning empty page")
		observability.ObserveQueryFailure("nearby")
		return emptyPage()
	}
	if len(candidates) == nearbyCandidates {
		log.Warn().Int("cap", nearbyCandidates).Float64("radius_km", q.RadiusKm).Msg("nearby candidate cap reached")
	}

	within := make([]domain.Business, 0, len(candidates))
	for _, b := range candidates {
		c, ok := b.Coords()
		if !ok {
			continue
		}
		d := geo.Distance(q.Center, c)
		if d > q.RadiusKm {
			continue
		}
		b.Distance = &d
		within = append(within, b)
	}
	discovery.Sort(within, f.SortBy, f.SortOrder)
	return discovery.Paginate(within, f.Limit, f.Offset)
}

func publicOnly(f domain.BusinessFilter) domain.BusinessFilter {
	approved := domain.StatusApproved
	f.Status = &approved
	f.IncludeInactive = false
	f.OwnerID = ""
	return f
}

func emptyPage() domain.BusinessPage {
	return domain.BusinessPage{Items: []domain.Business{}}
}

// GetBusiness returns a publicly visible listing by slug.
func (s *QueryService) GetBusiness(ctx context.Context, slug string) (domain.Business, error) {
	key := businessKey(slug)
	var b domain.Business
	if ok, _ := s.cache.Get(ctx, key, &b); ok {
		return b, nil
	}
	b, err := s.store.GetBusinessBySlug(ctx, slug)
	if err != nil {
		return domain.Business{}, err
	}
	if !b.Visible() {
		return domain.Business{}, domain.ErrNotFound
	}
	_ = s.cache.Set(ctx, key, b, int(s.cacheTTL.Seconds()))
	return b, nil
}

// GetBusinessByID bypasses the cache and visibility; owner and admin views use it.
func (s *QueryService) GetBusinessByID(ctx context.Context, id int64) (domain.Business, error) {
	return s.store.GetBusiness(ctx, id)
}

func (s *QueryService) ListCategories(ctx context.Context) ([]domain.Category, error) {
	var out []domain.Category
	if ok, _ := s.cache.Get(ctx, categoriesKey, &out); ok {
		return out, nil
	}
	out, err := s.store.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	if out == nil {
		out = []domain.Category{}
	}
	_ = s.cache.Set(ctx, categoriesKey, out, int(s.cacheTTL.Seconds()))
	return out, nil
}

// ListReviews returns approved reviews, newest first.
func (s *QueryService) ListReviews(ctx context.Context, businessID int64, limit, offset int) (domain.ReviewsPage, error) {
	limit, offset = clampPage(limit, offset)
	key := reviewsKey(businessID, limit, offset)
	var out domain.ReviewsPage
	if ok, _ := s.cache.Get(ctx, key, &out); ok {
		return out, nil
	}

	approved := true
	rs, err := s.store.ListReviews(ctx, domain.ReviewQuery{BusinessID: businessID, Approved: &approved, Limit: limit, Offset: offset})
	if err != nil {
		return domain.ReviewsPage{}, err
	}

	// copy slice to avoid aliasing the store's backing array
	out = copyReviewsPage(rs)

	// optional size guard
	if b, _ := json.Marshal(out); len(b) < 1_000_000 {
		_ = s.cache.Set(ctx, key, out, int(s.cacheTTL.Seconds()))
	}
	return out, nil
}

// ListModerationQueue lists reviews across businesses for admins. approved nil means all.
func (s *QueryService) ListModerationQueue(ctx context.Context, approved *bool, limit, offset int) (domain.ReviewsPage, error) {
	limit, offset = clampPage(limit, offset)
	rs, err := s.store.ListReviews(ctx, domain.ReviewQuery{Approved: approved, Limit: limit, Offset: offset})
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	return copyReviewsPage(rs), nil
}

func (s *QueryService) ListClaims(ctx context.Context, status *domain.ClaimStatus) ([]domain.Claim, error) {
	out, err := s.store.ListClaims(ctx, status)
	if out == nil && err == nil {
		out = []domain.Claim{}
	}
	return out, err
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = domain.DefaultLimit
	}
	if limit > domain.MaxLimit {
		limit = domain.MaxLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func copyReviewsPage(in domain.ReviewsPage) domain.ReviewsPage {
	out := domain.ReviewsPage{Total: in.Total, HasMore: in.HasMore, Items: make([]domain.Review, len(in.Items))}
	copy(out.Items, in.Items)
	return out
}

// ListDeals annotates each deal with its status at now. publicOnly keeps active deals.
func (s *QueryService) ListDeals(ctx context.Context, businessID int64, publicOnly bool) ([]domain.Deal, error) {
	ds, err := s.store.ListDeals(ctx, businessID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.Deal, 0, len(ds))
	for _, d := range ds {
		d.Status = d.StatusAt(now)
		if publicOnly && d.Status != domain.DealActive {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

// ListEvents annotates status and phase. publicOnly keeps published events that are not over.
func (s *QueryService) ListEvents(ctx context.Context, businessID int64, publicOnly bool) ([]domain.Event, error) {
	es, err := s.store.ListEvents(ctx, businessID)
	if err != nil {
		return nil, err
	}
	now := s.now()
	out := make([]domain.Event, 0, len(es))
	for _, e := range es {
		e.Status, e.Phase = e.CurrentStatus(), e.PhaseAt(now)
		if publicOnly && (e.Status != domain.EventPublished || e.Phase == domain.PhasePast) {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// OwnerStats is the owner dashboard summary for one listing.
type OwnerStats struct {
	BusinessID     int64    `json:"business_id"`
	Views          int64    `json:"views"`
	AverageRating  *float64 `json:"average_rating"`
	ReviewCount    int      `json:"review_count"`
	ApprovedCount  int      `json:"approved_review_count"`
	PendingCount   int      `json:"pending_review_count"`
	Histogram      [5]int   `json:"rating_histogram"`
	ActiveDeals    int      `json:"active_deals"`
	UpcomingEvents int      `json:"upcoming_events"`
}

// OwnerStats requires the caller to own the listing (or be an admin).
func (s *QueryService) OwnerStats(ctx context.Context, p domain.Principal, businessID int64) (OwnerStats, error) {
	b, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return OwnerStats{}, err
	}
	if err := requireOwner(p, b); err != nil {
		return OwnerStats{}, err
	}
	rs, err := s.store.RatingSummary(ctx, businessID)
	if err != nil {
		return OwnerStats{}, err
	}
	deals, err := s.ListDeals(ctx, businessID, true)
	if err != nil {
		return OwnerStats{}, err
	}
	events, err := s.ListEvents(ctx, businessID, false)
	if err != nil {
		return OwnerStats{}, err
	}
	upcoming := 0
	for _, e := range events {
		if e.Status == domain.EventPublished && e.Phase == domain.PhaseUpcoming {
			upcoming++
		}
	}
	return OwnerStats{
		BusinessID:     b.ID,
		Views:          b.ViewCount,
		AverageRating:  rs.Average,
		ReviewCount:    rs.ReviewCount,
		ApprovedCount:  rs.ApprovedCount,
		PendingCount:   rs.ReviewCount - rs.ApprovedCount,
		Histogram:      rs.Histogram,
		ActiveDeals:    len(deals),
		UpcomingEvents: upcoming,
	}, nil
}

// OwnedBusinesses lists every listing the caller owns, whatever its status.
func (s *QueryService) OwnedBusinesses(ctx context.Context, p domain.Principal, limit, offset int) (domain.BusinessPage, error) {
	if p.UserID == "" {
		return domain.BusinessPage{}, domain.ErrUnauthorized
	}
	page, err := s.store.ListBusinesses(ctx, domain.BusinessFilter{OwnerID: p.UserID, Limit: limit, Offset: offset}.Normalized())
	if err != nil {
		return domain.BusinessPage{}, err
	}
	if page.Items == nil {
		page.Items = []domain.Business{}
	}
	return page, nil
}

// AdminBusinesses lists listings for moderation, inactive ones included.
func (s *QueryService) AdminBusinesses(ctx context.Context, f domain.BusinessFilter) (domain.BusinessPage, error) {
	f.IncludeInactive = true
	page, err := s.store.ListBusinesses(ctx, f.Normalized())
	if err != nil {
		return domain.BusinessPage{}, err
	}
	if page.Items == nil {
		page.Items = []domain.Business{}
	}
	return page, nil
}
