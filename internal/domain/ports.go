package domain

import (
	"context"
	"time"
)

type BusinessRepository interface {
	// Write paths
	CreateBusiness(ctx context.Context, b *Business) error
	UpsertBusiness(ctx context.Context, b *Business) error
	SlugExists(ctx context.Context, slug string) (bool, error)
	UpdateStatus(ctx context.Context, id int64, status BusinessStatus) error
	SetFeatured(ctx context.Context, id int64, featured bool) error
	Deactivate(ctx context.Context, id int64) error
	AddViews(ctx context.Context, id int64, n int64) error
	UpsertCategory(ctx context.Context, c *Category) error
	LogMiss(ctx context.Context, ref string, status int, reason string) error

	// Read paths
	GetBusiness(ctx context.Context, id int64) (Business, error)
	GetBusinessBySlug(ctx context.Context, slug string) (Business, error)
	ListBusinesses(ctx context.Context, f BusinessFilter) (BusinessPage, error)
	// ListWithin returns every business matching f inside box, unpaged and unsorted.
	ListWithin(ctx context.Context, f BusinessFilter, box Box, max int) ([]Business, error)
	ListCategories(ctx context.Context) ([]Category, error)
	RatingSummary(ctx context.Context, businessID int64) (RatingSummary, error)
}

type ReviewRepository interface {
	CreateReview(ctx context.Context, r *Review) error
	UpsertReviews(ctx context.Context, rs []Review) error
	GetReview(ctx context.Context, id int64) (Review, error)
	UpdateReview(ctx context.Context, r Review) error
	DeleteReview(ctx context.Context, id int64) error
	SetApproved(ctx context.Context, id int64, approved bool) error
	SetResponse(ctx context.Context, id int64, resp ReviewResponse) error
	ListReviews(ctx context.Context, q ReviewQuery) (ReviewsPage, error)
}

type ClaimRepository interface {
	CreateClaim(ctx context.Context, c *Claim) error
	GetClaim(ctx context.Context, id int64) (Claim, error)
	ListClaims(ctx context.Context, status *ClaimStatus) ([]Claim, error)
	HasPendingClaim(ctx context.Context, businessID int64, userID string) (bool, error)
	// ResolveClaim marks a pending claim with status. On approval the claimant
	// becomes the verified owner and every other pending claim for the same
	// business is rejected, all in one transaction.
	ResolveClaim(ctx context.Context, id int64, status ClaimStatus, at time.Time) error
}

type PromoRepository interface {
	CreateDeal(ctx context.Context, d *Deal) error
	ListDeals(ctx context.Context, businessID int64) ([]Deal, error)
	CreateEvent(ctx context.Context, e *Event) error
	ListEvents(ctx context.Context, businessID int64) ([]Event, error)
}

// Store bundles every repository a backend provides.
type Store interface {
	BusinessRepository
	ReviewRepository
	ClaimRepository
	PromoRepository
}

// LegacyDirectory reads the hosted backend's REST export.
type LegacyDirectory interface {
	ListCategories(ctx context.Context) ([]map[string]any, error)
	ListBusinesses(ctx context.Context, offset, limit int) ([]map[string]any, error)
	ListReviews(ctx context.Context, businessRef string) ([]map[string]any, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, keys ...string) error
	// DelPrefix drops every key starting with prefix (paged list variants).
	DelPrefix(ctx context.Context, prefix string) error
}

// DocumentStore keeps claim verification files.
type DocumentStore interface {
	Put(ctx context.Context, prefix string, doc Document) (key string, err error)
	Delete(ctx context.Context, key string) error
}

type Notifier interface {
	ClaimResolved(ctx context.Context, c Claim, b Business) error
}

// Box is a lat/lng rectangle.
type Box struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

func (b Box) Contains(c Coords) bool {
	return c.Lat >= b.MinLat && c.Lat <= b.MaxLat && c.Lng >= b.MinLng && c.Lng <= b.MaxLng
}
