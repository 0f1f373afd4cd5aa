package httpserver_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	server "midtown_book/internal/adapters/http_server"
	"midtown_book/internal/adapters/jwtauth"
	redisad "midtown_book/internal/adapters/redis"
	"midtown_book/internal/app"
	"midtown_book/internal/domain"
	"midtown_book/internal/storage/memory"
)

type env struct {
	ts    *httptest.Server
	store *memory.Store
	jwt   *jwtauth.Verifier
	views *app.ViewRecorder
	admin string
	alice string
	bob   string
	bobID string
}

func newEnv(t *testing.T, opts server.Options) *env {
	t.Helper()
	st := memory.New()
	q := app.NewQueryService(st, redisad.Noop{}, time.Minute)
	d := app.NewDirectoryService(st, redisad.Noop{}, nil, nil, app.DirectoryOptions{})
	views := app.NewViewRecorder(st, 16, time.Hour)

	srv, err := server.New(opts)
	require.NoError(t, err)
	v := jwtauth.NewVerifier("test-secret", "")
	srv.MountHandlers(&server.Handlers{Q: q, D: d, Views: views}, v)
	ts := httptest.NewServer(srv.Mux())
	t.Cleanup(ts.Close)

	e := &env{ts: ts, store: st, jwt: v, views: views, bobID: uuid.NewString()}
	e.admin = e.token(t, domain.Principal{UserID: uuid.NewString(), Role: domain.RoleAdmin})
	e.alice = e.token(t, domain.Principal{UserID: uuid.NewString(), Name: "Alice", Role: domain.RoleUser})
	e.bob = e.token(t, domain.Principal{UserID: e.bobID, Name: "Bob", Role: domain.RoleBusinessOwner})
	return e
}

func (e *env) token(t *testing.T, p domain.Principal) string {
	t.Helper()
	tok, err := e.jwt.Issue(p, time.Hour)
	require.NoError(t, err)
	return tok
}

func (e *env) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var rdr *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rdr = bytes.NewReader(b)
	} else {
		rdr = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, e.ts.URL+path, rdr)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = res.Body.Close() })
	return res
}

func decode[T any](t *testing.T, res *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(res.Body).Decode(&v))
	return v
}

type problemBody struct {
	Title  string            `json:"title"`
	Status int               `json:"status"`
	Fields map[string]string `json:"fields"`
}

func (e *env) seedApproved(t *testing.T, slug, name string) domain.Business {
	t.Helper()
	b := domain.Business{Slug: slug, Name: name, Status: domain.StatusApproved}
	require.NoError(t, e.store.CreateBusiness(context.Background(), &b))
	return b
}

func TestListBusinesses_PublicPage(t *testing.T) {
	e := newEnv(t, server.Options{})
	e.seedApproved(t, "sunrise-cafe", "Sunrise Cafe")
	e.seedApproved(t, "harbor-books", "Harbor Books")
	pending := domain.Business{Slug: "hidden", Name: "Hidden", Status: domain.StatusPending}
	require.NoError(t, e.store.CreateBusiness(context.Background(), &pending))

	res := e.do(t, http.MethodGet, "/api/businesses?sortBy=name&limit=1", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	etag := res.Header.Get("ETag")
	assert.True(t, strings.HasPrefix(etag, `W/"`))

	page := decode[domain.BusinessPage](t, res)
	assert.Equal(t, 2, page.Total)
	assert.True(t, page.HasMore)
	require.Len(t, page.Items, 1)
	assert.Equal(t, "Harbor Books", page.Items[0].Name)

	req, _ := http.NewRequest(http.MethodGet, e.ts.URL+"/api/businesses?sortBy=name&limit=1", nil)
	req.Header.Set("If-None-Match", etag)
	res2, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer res2.Body.Close()
	assert.Equal(t, http.StatusNotModified, res2.StatusCode)
}

func TestListBusinesses_BadParamsAreReportedPerField(t *testing.T) {
	e := newEnv(t, server.Options{})

	res := e.do(t, http.MethodGet, "/api/businesses?rating=9&priceRange=1,7&sortBy=stars&isFeatured=maybe", "", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))
	p := decode[problemBody](t, res)
	assert.Contains(t, p.Fields, "rating")
	assert.Contains(t, p.Fields, "priceRange")
	assert.Contains(t, p.Fields, "sortBy")
	assert.Contains(t, p.Fields, "isFeatured")
}

func TestNearby_RequiresCoordinates(t *testing.T) {
	e := newEnv(t, server.Options{})
	res := e.do(t, http.MethodGet, "/api/businesses/nearby?lat=abc", "", nil)
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	p := decode[problemBody](t, res)
	assert.Contains(t, p.Fields, "lat")
	assert.Contains(t, p.Fields, "lng")

	lat, lng := 40.7580, -73.9855
	b := domain.Business{Slug: "times-sq-deli", Name: "Times Sq Deli", Status: domain.StatusApproved, Lat: &lat, Lng: &lng}
	require.NoError(t, e.store.CreateBusiness(context.Background(), &b))

	res = e.do(t, http.MethodGet, "/api/businesses/nearby?lat=40.7590&lng=-73.9845&radius=1", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	page := decode[domain.BusinessPage](t, res)
	require.Len(t, page.Items, 1)
	require.NotNil(t, page.Items[0].Distance)
	assert.Less(t, *page.Items[0].Distance, 1.0)
}

func TestGetBusiness_UnknownSlugIs404AndViewsAreRecorded(t *testing.T) {
	e := newEnv(t, server.Options{})
	b := e.seedApproved(t, "sunrise-cafe", "Sunrise Cafe")

	res := e.do(t, http.MethodGet, "/api/businesses/nope", "", nil)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { e.views.Run(ctx); close(done) }()

	for i := 0; i < 3; i++ {
		res = e.do(t, http.MethodGet, "/api/businesses/sunrise-cafe", "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
	}
	cancel()
	<-done

	got, err := e.store.GetBusiness(context.Background(), b.ID)
	require.NoError(t, err)
	assert.EqualValues(t, 3, got.ViewCount)
}

func TestWrites_RequireAuthAndRoles(t *testing.T) {
	e := newEnv(t, server.Options{})
	in := map[string]any{"name": "Corner Bakery", "price_range": 2}

	res := e.do(t, http.MethodPost, "/api/businesses", "", in)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = e.do(t, http.MethodPost, "/api/businesses", "not-a-jwt", in)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res = e.do(t, http.MethodPost, "/api/businesses", e.alice, in)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	created := decode[domain.Business](t, res)
	assert.Equal(t, "corner-bakery", created.Slug)
	assert.Equal(t, domain.StatusPending, created.Status)

	path := fmt.Sprintf("/api/admin/businesses/%d/status", created.ID)
	res = e.do(t, http.MethodPatch, path, e.alice, map[string]string{"status": "approved"})
	assert.Equal(t, http.StatusForbidden, res.StatusCode)

	res = e.do(t, http.MethodPatch, path, e.admin, map[string]string{"status": "approved"})
	require.Equal(t, http.StatusOK, res.StatusCode)

	// approved -> rejected is not an allowed transition
	res = e.do(t, http.MethodPatch, path, e.admin, map[string]string{"status": "rejected"})
	assert.Equal(t, http.StatusUnprocessableEntity, res.StatusCode)

	res = e.do(t, http.MethodPatch, path, e.admin, map[string]string{"status": "closed"})
	assert.Equal(t, http.StatusBadRequest, res.StatusCode)
}

func TestSubmitBusiness_ValidationAndUnknownFields(t *testing.T) {
	e := newEnv(t, server.Options{})

	res := e.do(t, http.MethodPost, "/api/businesses", e.alice, map[string]any{"name": "X", "price_range": 9})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	p := decode[problemBody](t, res)
	assert.Contains(t, p.Fields, "name")
	assert.Contains(t, p.Fields, "price_range")

	res = e.do(t, http.MethodPost, "/api/businesses", e.alice, map[string]any{"name": "Valid Name", "rating": 5})
	require.Equal(t, http.StatusBadRequest, res.StatusCode)
	p = decode[problemBody](t, res)
	assert.Contains(t, p.Fields, "body")
}

func TestReviews_OnePerUserAndModeration(t *testing.T) {
	e := newEnv(t, server.Options{})
	b := e.seedApproved(t, "sunrise-cafe", "Sunrise Cafe")
	path := fmt.Sprintf("/api/businesses/%d/reviews", b.ID)

	res := e.do(t, http.MethodPost, path, e.alice, map[string]any{"rating": 4, "content": "Great coffee"})
	require.Equal(t, http.StatusCreated, res.StatusCode)
	rv := decode[domain.Review](t, res)
	assert.False(t, rv.IsApproved)

	res = e.do(t, http.MethodPost, path, e.alice, map[string]any{"rating": 5})
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	// unapproved reviews stay out of the public list
	res = e.do(t, http.MethodGet, "/api/businesses/sunrise-cafe/reviews", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 0, decode[domain.ReviewsPage](t, res).Total)

	res = e.do(t, http.MethodGet, "/api/admin/reviews?approved=false", e.admin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, 1, decode[domain.ReviewsPage](t, res).Total)

	res = e.do(t, http.MethodPost, fmt.Sprintf("/api/admin/reviews/%d/approve", rv.ID), e.admin, nil)
	require.Equal(t, http.StatusNoContent, res.StatusCode)

	res = e.do(t, http.MethodGet, "/api/businesses/sunrise-cafe/reviews", "", nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	page := decode[domain.ReviewsPage](t, res)
	require.Len(t, page.Items, 1)
	assert.Equal(t, rv.ID, page.Items[0].ID)
}

func multipartClaim(t *testing.T, withDoc bool) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("note", "I own this place"))
	if withDoc {
		fw, err := mw.CreateFormFile("document", "licence.pdf")
		require.NoError(t, err)
		_, _ = fw.Write([]byte("%PDF-1.4 test"))
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestClaims_SubmitAndApprove(t *testing.T) {
	e := newEnv(t, server.Options{})
	b := e.seedApproved(t, "sunrise-cafe", "Sunrise Cafe")
	claimURL := fmt.Sprintf("%s/api/businesses/%d/claims", e.ts.URL, b.ID)

	post := func(token string, withDoc bool) *http.Response {
		body, ct := multipartClaim(t, withDoc)
		req, err := http.NewRequest(http.MethodPost, claimURL, body)
		require.NoError(t, err)
		req.Header.Set("Content-Type", ct)
		req.Header.Set("Authorization", "Bearer "+token)
		res, err := http.DefaultClient.Do(req)
		require.NoError(t, err)
		t.Cleanup(func() { _ = res.Body.Close() })
		return res
	}

	// no document store configured
	res := post(e.bob, true)
	assert.Equal(t, http.StatusServiceUnavailable, res.StatusCode)

	res = post(e.bob, false)
	require.Equal(t, http.StatusCreated, res.StatusCode)
	c := decode[domain.Claim](t, res)
	assert.Equal(t, domain.ClaimPending, c.Status)

	res = post(e.bob, false)
	assert.Equal(t, http.StatusConflict, res.StatusCode)

	res = e.do(t, http.MethodGet, "/api/admin/claims?status=pending", e.admin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	list := decode[struct {
		Claims []domain.Claim `json:"claims"`
	}](t, res)
	require.Len(t, list.Claims, 1)

	res = e.do(t, http.MethodPost, fmt.Sprintf("/api/admin/claims/%d/approve", c.ID), e.admin, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)

	res = e.do(t, http.MethodGet, "/api/owner/businesses", e.bob, nil)
	require.Equal(t, http.StatusOK, res.StatusCode)
	owned := decode[domain.BusinessPage](t, res)
	require.Len(t, owned.Items, 1)
	assert.True(t, owned.Items[0].IsVerified)

	res = e.do(t, http.MethodGet, fmt.Sprintf("/api/owner/businesses/%d/stats", b.ID), e.alice, nil)
	assert.Equal(t, http.StatusForbidden, res.StatusCode)
	res = e.do(t, http.MethodGet, fmt.Sprintf("/api/owner/businesses/%d/stats", b.ID), e.bob, nil)
	assert.Equal(t, http.StatusOK, res.StatusCode)
}

func TestRateLimit(t *testing.T) {
	e := newEnv(t, server.Options{RateLimit: "2-M"})
	for i := 0; i < 2; i++ {
		res := e.do(t, http.MethodGet, "/api/categories", "", nil)
		require.Equal(t, http.StatusOK, res.StatusCode)
	}
	res := e.do(t, http.MethodGet, "/api/categories", "", nil)
	assert.Equal(t, http.StatusTooManyRequests, res.StatusCode)
	assert.Equal(t, "application/problem+json", res.Header.Get("Content-Type"))
}

func TestNew_RejectsBadRateLimit(t *testing.T) {
	_, err := server.New(server.Options{RateLimit: "lots"})
	assert.Error(t, err)
}
