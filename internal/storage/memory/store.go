// Package memory is an in-process implementation of domain.Store, used for local
// development (STORAGE_DRIVER=memory) and as the fake behind service tests.
package memory

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"midtown_book/internal/discovery"
	"midtown_book/internal/domain"
)

type Store struct {
	mu         sync.RWMutex
	now        func() time.Time
	seq        int64
	businesses map[int64]domain.Business
	categories map[int64]domain.Category
	reviews    map[int64]domain.Review
	claims     map[int64]domain.Claim
	deals      map[int64]domain.Deal
	events     map[int64]domain.Event
	misses     map[string]int
}

var _ domain.Store = (*Store)(nil)

func New() *Store {
	return &Store{
		now:        func() time.Time { return time.Now().UTC() },
		businesses: map[int64]domain.Business{},
		categories: map[int64]domain.Category{},
		reviews:    map[int64]domain.Review{},
		claims:     map[int64]domain.Claim{},
		deals:      map[int64]domain.Deal{},
		events:     map[int64]domain.Event{},
		misses:     map[string]int{},
	}
}

// WithClock overrides the timestamp source; tests use it for deterministic ordering.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

func (s *Store) nextID() int64 {
	s.seq++
	return s.seq
}

// ---- businesses ----

func (s *Store) CreateBusiness(ctx context.Context, b *domain.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slugTaken(b.Slug, 0) {
		return fmt.Errorf("%w: slug %q", domain.ErrConflict, b.Slug)
	}
	b.ID = s.nextID()
	if b.Status == "" {
		b.Status = domain.StatusPending
	}
	b.IsActive = true
	b.CreatedAt = s.now()
	b.UpdatedAt = b.CreatedAt
	s.businesses[b.ID] = stripDerived(*b)
	return nil
}

func (s *Store) UpsertBusiness(ctx context.Context, b *domain.Business) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cur := range s.businesses {
		if cur.Slug != b.Slug {
			continue
		}
		b.ID = id
		b.CreatedAt = cur.CreatedAt
		b.IsActive = cur.IsActive
		b.SubmittedBy = cur.SubmittedBy
		if cur.ViewCount > b.ViewCount {
			b.ViewCount = cur.ViewCount
		}
		b.UpdatedAt = s.now()
		s.businesses[id] = stripDerived(*b)
		return nil
	}
	b.ID = s.nextID()
	b.IsActive = true
	b.CreatedAt = s.now()
	b.UpdatedAt = b.CreatedAt
	s.businesses[b.ID] = stripDerived(*b)
	return nil
}

func (s *Store) slugTaken(slug string, except int64) bool {
	for id, b := range s.businesses {
		if id != except && b.Slug == slug {
			return true
		}
	}
	return false
}

func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.slugTaken(slug, 0), nil
}

func (s *Store) mutate(id int64, fn func(*domain.Business)) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.businesses[id]
	if !ok {
		return domain.ErrNotFound
	}
	fn(&b)
	b.UpdatedAt = s.now()
	s.businesses[id] = b
	return nil
}

func (s *Store) UpdateStatus(ctx context.Context, id int64, status domain.BusinessStatus) error {
	return s.mutate(id, func(b *domain.Business) { b.Status = status })
}

func (s *Store) SetFeatured(ctx context.Context, id int64, featured bool) error {
	return s.mutate(id, func(b *domain.Business) { b.IsFeatured = featured })
}

func (s *Store) Deactivate(ctx context.Context, id int64) error {
	return s.mutate(id, func(b *domain.Business) { b.IsActive = false })
}

func (s *Store) AddViews(ctx context.Context, id int64, n int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	// matches an UPDATE that hits no row: silently nothing
	if b, ok := s.businesses[id]; ok {
		b.ViewCount += n
		s.businesses[id] = b
	}
	return nil
}

func (s *Store) UpsertCategory(ctx context.Context, c *domain.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cur := range s.categories {
		if cur.Slug == c.Slug {
			c.ID = id
			s.categories[id] = *c
			return nil
		}
	}
	c.ID = s.nextID()
	s.categories[c.ID] = *c
	return nil
}

func (s *Store) LogMiss(ctx context.Context, ref string, status int, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.misses[ref+"|"+reason] = status
	return nil
}

// Misses returns the recorded import misses keyed by "ref|reason".
func (s *Store) Misses() map[string]int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make(map[string]int, len(s.misses))
	for k, v := range s.misses {
		out[k] = v
	}
	return out
}

func (s *Store) GetBusiness(ctx context.Context, id int64) (domain.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	b, ok := s.businesses[id]
	if !ok {
		return domain.Business{}, domain.ErrNotFound
	}
	return s.hydrate(b), nil
}

func (s *Store) GetBusinessBySlug(ctx context.Context, slug string) (domain.Business, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, b := range s.businesses {
		if b.Slug == slug {
			return s.hydrate(b), nil
		}
	}
	return domain.Business{}, domain.ErrNotFound
}

func (s *Store) ListBusinesses(ctx context.Context, f domain.BusinessFilter) (domain.BusinessPage, error) {
	s.mu.RLock()
	all := s.hydrateAll()
	s.mu.RUnlock()
	if f.SortBy == domain.SortDistance {
		f.SortBy = domain.SortNone
	}
	return discovery.Apply(all, f), nil
}

func (s *Store) ListWithin(ctx context.Context, f domain.BusinessFilter, box domain.Box, max int) ([]domain.Business, error) {
	s.mu.RLock()
	all := s.hydrateAll()
	s.mu.RUnlock()

	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	var out []domain.Business
	for _, b := range all {
		c, ok := b.Coords()
		if !ok || !box.Contains(c) || !discovery.Matches(b, f) {
			continue
		}
		out = append(out, b)
		if max > 0 && len(out) == max {
			break
		}
	}
	return out, nil
}

func (s *Store) ListCategories(ctx context.Context) ([]domain.Category, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Category, 0, len(s.categories))
	for _, c := range s.categories {
		if !c.IsActive {
			continue
		}
		c.BusinessCount = 0
		for _, b := range s.businesses {
			if b.Visible() && b.CategoryID != nil && *b.CategoryID == c.ID {
				c.BusinessCount++
			}
		}
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DisplayOrder != out[j].DisplayOrder {
			return out[i].DisplayOrder < out[j].DisplayOrder
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}

func (s *Store) RatingSummary(ctx context.Context, businessID int64) (domain.RatingSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return discovery.Aggregate(s.reviewsOf(businessID)), nil
}

// hydrate fills the read-time fields: category join and rating aggregate.
// Callers hold the read lock.
func (s *Store) hydrate(b domain.Business) domain.Business {
	if b.CategoryID != nil {
		if c, ok := s.categories[*b.CategoryID]; ok {
			name, slug := c.Name, c.Slug
			b.CategoryName, b.CategorySlug = &name, &slug
		}
	}
	b.Rating = discovery.Aggregate(s.reviewsOf(b.ID))
	return b
}

func (s *Store) hydrateAll() []domain.Business {
	out := make([]domain.Business, 0, len(s.businesses))
	for _, b := range s.businesses {
		out = append(out, s.hydrate(b))
	}
	return out
}

func (s *Store) reviewsOf(businessID int64) []domain.Review {
	var out []domain.Review
	for _, r := range s.reviews {
		if r.BusinessID == businessID {
			out = append(out, r)
		}
	}
	return out
}

func stripDerived(b domain.Business) domain.Business {
	b.Rating = domain.RatingSummary{}
	b.Distance = nil
	b.CategoryName, b.CategorySlug = nil, nil
	return b
}

// ---- reviews ----

func (s *Store) CreateReview(ctx context.Context, r *domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businesses[r.BusinessID]; !ok {
		return domain.ErrNotFound
	}
	if r.UserID != nil {
		for _, cur := range s.reviews {
			if cur.BusinessID == r.BusinessID && cur.WrittenBy(*r.UserID) {
				return fmt.Errorf("%w: user already reviewed business %d", domain.ErrConflict, r.BusinessID)
			}
		}
	}
	r.ID = s.nextID()
	r.CreatedAt = s.now()
	r.UpdatedAt = r.CreatedAt
	s.reviews[r.ID] = *r
	return nil
}

func (s *Store) UpsertReviews(ctx context.Context, rs []domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
next:
	for _, r := range rs {
		if r.SourceID != nil {
			for id, cur := range s.reviews {
				if cur.SourceID != nil && *cur.SourceID == *r.SourceID {
					r.ID, r.CreatedAt = id, cur.CreatedAt
					r.UpdatedAt = s.now()
					s.reviews[id] = r
					continue next
				}
			}
		}
		r.ID = s.nextID()
		if r.CreatedAt.IsZero() {
			r.CreatedAt = s.now()
		}
		r.UpdatedAt = s.now()
		s.reviews[r.ID] = r
	}
	return nil
}

func (s *Store) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.Review{}, domain.ErrNotFound
	}
	return r, nil
}

func (s *Store) UpdateReview(ctx context.Context, r domain.Review) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.reviews[r.ID]
	if !ok {
		return domain.ErrNotFound
	}
	cur.Rating, cur.Title, cur.Content, cur.IsApproved = r.Rating, r.Title, r.Content, r.IsApproved
	cur.UpdatedAt = s.now()
	s.reviews[r.ID] = cur
	return nil
}

func (s *Store) DeleteReview(ctx context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.reviews[id]; !ok {
		return domain.ErrNotFound
	}
	delete(s.reviews, id)
	return nil
}

func (s *Store) SetApproved(ctx context.Context, id int64, approved bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.ErrNotFound
	}
	r.IsApproved = approved
	s.reviews[id] = r
	return nil
}

func (s *Store) SetResponse(ctx context.Context, id int64, resp domain.ReviewResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.reviews[id]
	if !ok {
		return domain.ErrNotFound
	}
	if resp.RespondedAt.IsZero() {
		resp.RespondedAt = s.now()
	}
	r.Response = &resp
	s.reviews[id] = r
	return nil
}

func (s *Store) ListReviews(ctx context.Context, q domain.ReviewQuery) (domain.ReviewsPage, error) {
	s.mu.RLock()
	var matched []domain.Review
	for _, r := range s.reviews {
		if q.BusinessID > 0 && r.BusinessID != q.BusinessID {
			continue
		}
		if q.Approved != nil && r.IsApproved != *q.Approved {
			continue
		}
		matched = append(matched, r)
	}
	s.mu.RUnlock()

	// newest first
	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})
	total := len(matched)
	start := min(max(q.Offset, 0), total)
	end := total
	if q.Limit > 0 {
		end = min(start+q.Limit, total)
	}
	return domain.ReviewsPage{Items: matched[start:end], Total: total, HasMore: end < total}, nil
}

// ---- claims ----

func (s *Store) CreateClaim(ctx context.Context, c *domain.Claim) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.businesses[c.BusinessID]; !ok {
		return domain.ErrNotFound
	}
	c.ID = s.nextID()
	c.Status = domain.ClaimPending
	c.CreatedAt = s.now()
	s.claims[c.ID] = *c
	return nil
}

func (s *Store) GetClaim(ctx context.Context, id int64) (domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.claims[id]
	if !ok {
		return domain.Claim{}, domain.ErrNotFound
	}
	return c, nil
}

func (s *Store) ListClaims(ctx context.Context, status *domain.ClaimStatus) ([]domain.Claim, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Claim
	for _, c := range s.claims {
		if status == nil || c.Status == *status {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) HasPendingClaim(ctx context.Context, businessID int64, userID string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.claims {
		if c.BusinessID == businessID && c.UserID == userID && c.Status == domain.ClaimPending {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) ResolveClaim(ctx context.Context, id int64, status domain.ClaimStatus, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.claims[id]
	if !ok {
		return domain.ErrNotFound
	}
	if c.Status != domain.ClaimPending {
		return fmt.Errorf("%w: claim %d is %s", domain.ErrInvalidTransition, id, c.Status)
	}
	c.Status, c.ReviewedAt = status, &at
	s.claims[id] = c
	if status != domain.ClaimApproved {
		return nil
	}

	b := s.businesses[c.BusinessID]
	owner := c.UserID
	b.OwnerID, b.IsClaimed, b.IsVerified = &owner, true, true
	s.businesses[c.BusinessID] = b
	for oid, other := range s.claims {
		if oid != id && other.BusinessID == c.BusinessID && other.Status == domain.ClaimPending {
			other.Status, other.ReviewedAt = domain.ClaimRejected, &at
			s.claims[oid] = other
		}
	}
	return nil
}

// ---- deals / events ----

func (s *Store) CreateDeal(ctx context.Context, d *domain.Deal) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d.ID = s.nextID()
	d.CreatedAt = s.now()
	s.deals[d.ID] = *d
	return nil
}

func (s *Store) ListDeals(ctx context.Context, businessID int64) ([]domain.Deal, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Deal
	for _, d := range s.deals {
		if d.BusinessID == businessID {
			out = append(out, d)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) CreateEvent(ctx context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	e.ID = s.nextID()
	e.CreatedAt = s.now()
	s.events[e.ID] = *e
	return nil
}

func (s *Store) ListEvents(ctx context.Context, businessID int64) ([]domain.Event, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.Event
	for _, e := range s.events {
		if e.BusinessID == businessID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].StartsAt.Equal(out[j].StartsAt) {
			return out[i].StartsAt.Before(out[j].StartsAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

// SeedCategory is a convenience for tests and local fixtures.
func (s *Store) SeedCategory(name string, order int) domain.Category {
	c := domain.Category{Name: name, Slug: strings.ToLower(strings.ReplaceAll(name, " ", "-")), DisplayOrder: order, IsActive: true}
	_ = s.UpsertCategory(context.Background(), &c)
	return c
}
