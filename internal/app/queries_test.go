package app_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"midtown_book/internal/app"
	"midtown_book/internal/domain"
)

func TestGetBusiness_CacheMissThenHit(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	approvedBusiness(s, "sunrise-cafe", "Sunrise Café", nil, nil)
	cache := &fakeCache{}
	q := app.NewQueryService(s, cache, 10*time.Minute)

	// Miss (first time, populates cache)
	b, err := q.GetBusiness(ctx, "sunrise-cafe")
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Café", b.Name)
	assert.True(t, cache.has("business:sunrise-cafe"))

	// Rename in the store; second read still comes from cache
	b.Name = "SHOULD NOT SEE THIS"
	require.NoError(t, s.UpsertBusiness(ctx, &b))

	b2, err := q.GetBusiness(ctx, "sunrise-cafe")
	require.NoError(t, err)
	assert.Equal(t, "Sunrise Café", b2.Name)
}

func TestGetBusiness_HiddenListingsAreNotFound(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	pending := domain.Business{Slug: "pending", Name: "Pending"}
	require.NoError(t, s.CreateBusiness(ctx, &pending))
	gone := approvedBusiness(s, "gone", "Gone", nil, nil)
	require.NoError(t, s.Deactivate(ctx, gone.ID))

	q := app.NewQueryService(s, &fakeCache{}, time.Minute)
	for _, slug := range []string{"pending", "gone", "never-existed"} {
		_, err := q.GetBusiness(ctx, slug)
		assert.ErrorIs(t, err, domain.ErrNotFound, slug)
	}
}

func TestListBusinesses_PublicOnlyApproved(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	approvedBusiness(s, "a", "Approved", nil, nil)
	require.NoError(t, s.CreateBusiness(ctx, &domain.Business{Slug: "p", Name: "Pending"}))
	q := app.NewQueryService(s, &fakeCache{}, time.Minute)

	pending := domain.StatusPending
	page := q.ListBusinesses(ctx, domain.BusinessFilter{Status: &pending})
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Approved", page.Items[0].Name)
	assert.Equal(t, 1, page.Total)
	assert.False(t, page.HasMore)
}

func TestListBusinesses_FailsOpenToEmpty(t *testing.T) {
	q := app.NewQueryService(brokenStore{newStore()}, &fakeCache{}, time.Minute)

	page := q.ListBusinesses(context.Background(), domain.BusinessFilter{Search: "cafe"})
	assert.NotNil(t, page.Items)
	assert.Empty(t, page.Items)
	assert.Zero(t, page.Total)
	assert.False(t, page.HasMore)

	near := q.Nearby(context.Background(), domain.NearQuery{Center: domain.Coords{Lat: 28, Lng: -82}}, domain.BusinessFilter{})
	assert.Empty(t, near.Items)
}

func TestNearby_FiltersByExactRadiusAndSortsByDistance(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	lakeland := domain.Coords{Lat: 28.0395, Lng: -81.9498}
	// roughly 1.1 km, 3.3 km and 51 km away
	approvedBusiness(s, "far", "Tampa Spot", ptr(27.9506), ptr(-82.4572))
	approvedBusiness(s, "mid", "Mid", ptr(28.0695), ptr(-81.9498))
	approvedBusiness(s, "near", "Near", ptr(28.0495), ptr(-81.9498))
	approvedBusiness(s, "nocoords", "Nowhere", nil, nil)

	q := app.NewQueryService(s, &fakeCache{}, time.Minute)
	page := q.Nearby(ctx, domain.NearQuery{Center: lakeland, RadiusKm: 10}, domain.BusinessFilter{})
	require.Len(t, page.Items, 2)
	assert.Equal(t, "near", page.Items[0].Slug)
	assert.Equal(t, "mid", page.Items[1].Slug)
	require.NotNil(t, page.Items[0].Distance)
	assert.InDelta(t, 1.11, *page.Items[0].Distance, 0.05)

	// radius is clamped to 50 km, which still leaves Tampa out
	page = q.Nearby(ctx, domain.NearQuery{Center: lakeland, RadiusKm: 500}, domain.BusinessFilter{})
	assert.Equal(t, 2, page.Total)

	// paging over the distance-ordered set
	page = q.Nearby(ctx, domain.NearQuery{Center: lakeland, RadiusKm: 10}, domain.BusinessFilter{Limit: 1, Offset: 1})
	require.Len(t, page.Items, 1)
	assert.Equal(t, "mid", page.Items[0].Slug)
	assert.False(t, page.HasMore)
}

func TestListReviews_ApprovedOnlyAndCached(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	b := approvedBusiness(s, "x", "X", nil, nil)
	for i, approved := range []bool{true, false, true} {
		uid := string(rune('a' + i))
		require.NoError(t, s.CreateReview(ctx, &domain.Review{BusinessID: b.ID, UserID: &uid, Rating: ptr(4), IsApproved: approved}))
	}
	cache := &fakeCache{}
	q := app.NewQueryService(s, cache, time.Minute)

	out, err := q.ListReviews(ctx, b.ID, 0, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, out.Total)
	assert.Len(t, out.Items, 2)
	assert.True(t, cache.has("reviews:1:20:0"))

	uid := "late"
	require.NoError(t, s.CreateReview(ctx, &domain.Review{BusinessID: b.ID, UserID: &uid, Rating: ptr(5), IsApproved: true}))
	cached, err := q.ListReviews(ctx, b.ID, 20, 0)
	require.NoError(t, err)
	assert.Equal(t, 2, cached.Total)
}

func TestListDealsAndEvents_PublicView(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	b := approvedBusiness(s, "x", "X", nil, nil)
	now := time.Now().UTC()
	day := 24 * time.Hour

	for _, d := range []domain.Deal{
		{BusinessID: b.ID, Title: "active", StartsAt: now.Add(-day), EndsAt: now.Add(day), IsPublished: true},
		{BusinessID: b.ID, Title: "draft", StartsAt: now.Add(-day), EndsAt: now.Add(day)},
		{BusinessID: b.ID, Title: "expired", StartsAt: now.Add(-3 * day), EndsAt: now.Add(-day), IsPublished: true},
		{BusinessID: b.ID, Title: "scheduled", StartsAt: now.Add(day), EndsAt: now.Add(2 * day), IsPublished: true},
	} {
		require.NoError(t, s.CreateDeal(ctx, &d))
	}
	for _, e := range []domain.Event{
		{BusinessID: b.ID, Title: "upcoming", StartsAt: now.Add(day), EndsAt: now.Add(2 * day), IsPublished: true},
		{BusinessID: b.ID, Title: "past", StartsAt: now.Add(-2 * day), EndsAt: now.Add(-day), IsPublished: true},
		{BusinessID: b.ID, Title: "cancelled", StartsAt: now.Add(day), EndsAt: now.Add(2 * day), IsPublished: true, IsCancelled: true},
	} {
		require.NoError(t, s.CreateEvent(ctx, &e))
	}

	q := app.NewQueryService(s, &fakeCache{}, time.Minute)
	deals, err := q.ListDeals(ctx, b.ID, true)
	require.NoError(t, err)
	require.Len(t, deals, 1)
	assert.Equal(t, "active", deals[0].Title)
	assert.Equal(t, domain.DealActive, deals[0].Status)

	all, err := q.ListDeals(ctx, b.ID, false)
	require.NoError(t, err)
	statuses := map[string]domain.DealStatus{}
	for _, d := range all {
		statuses[d.Title] = d.Status
	}
	assert.Equal(t, map[string]domain.DealStatus{
		"active": domain.DealActive, "draft": domain.DealDraft,
		"expired": domain.DealExpired, "scheduled": domain.DealScheduled,
	}, statuses)

	events, err := q.ListEvents(ctx, b.ID, true)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "upcoming", events[0].Title)
	assert.Equal(t, domain.PhaseUpcoming, events[0].Phase)
}

func TestOwnerStats(t *testing.T) {
	ctx := context.Background()
	s := newStore()
	b := approvedBusiness(s, "x", "X", nil, nil)
	c := &domain.Claim{BusinessID: b.ID, UserID: bob.UserID}
	require.NoError(t, s.CreateClaim(ctx, c))
	require.NoError(t, s.ResolveClaim(ctx, c.ID, domain.ClaimApproved, time.Now()))
	require.NoError(t, s.AddViews(ctx, b.ID, 7))
	for i, r := range []int{5, 3, 1} {
		uid := string(rune('a' + i))
		require.NoError(t, s.CreateReview(ctx, &domain.Review{BusinessID: b.ID, UserID: &uid, Rating: ptr(r), IsApproved: r > 1}))
	}

	q := app.NewQueryService(s, &fakeCache{}, time.Minute)
	_, err := q.OwnerStats(ctx, alice, b.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	st, err := q.OwnerStats(ctx, bob, b.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(7), st.Views)
	assert.Equal(t, 3, st.ReviewCount)
	assert.Equal(t, 2, st.ApprovedCount)
	assert.Equal(t, 1, st.PendingCount)
	require.NotNil(t, st.AverageRating)
	assert.InDelta(t, 4.0, *st.AverageRating, 1e-9)
	assert.Equal(t, [5]int{0, 0, 1, 0, 1}, st.Histogram)

	owned, err := q.OwnedBusinesses(ctx, bob, 0, 0)
	require.NoError(t, err)
	require.Len(t, owned.Items, 1)
	assert.Equal(t, b.ID, owned.Items[0].ID)
}
