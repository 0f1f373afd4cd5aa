package app_test

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"time"

	"midtown_book/internal/domain"
	"midtown_book/internal/storage/memory"
)

// ---- fakes ----

type fakeCache struct {
	mu    sync.Mutex
	store map[string][]byte
	dels  []string
}

func (c *fakeCache) Get(ctx context.Context, key string, dst any) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.store[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(v, dst)
}

func (c *fakeCache) Set(ctx context.Context, key string, v any, ttlSec int) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.store == nil {
		c.store = map[string][]byte{}
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.store[key] = b
	return nil
}

func (c *fakeCache) Del(ctx context.Context, keys ...string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, k := range keys {
		delete(c.store, k)
		c.dels = append(c.dels, k)
	}
	return nil
}

func (c *fakeCache) DelPrefix(ctx context.Context, prefix string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.store {
		if strings.HasPrefix(k, prefix) {
			delete(c.store, k)
		}
	}
	c.dels = append(c.dels, prefix+"*")
	return nil
}

func (c *fakeCache) has(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.store[key]
	return ok
}

// brokenStore fails every discovery read.
type brokenStore struct{ *memory.Store }

var errBackend = errors.New("connection refused")

func (brokenStore) ListBusinesses(ctx context.Context, f domain.BusinessFilter) (domain.BusinessPage, error) {
	return domain.BusinessPage{}, errBackend
}

func (brokenStore) ListWithin(ctx context.Context, f domain.BusinessFilter, box domain.Box, max int) ([]domain.Business, error) {
	return nil, errBackend
}

type fakeDocs struct {
	puts    []string
	deleted []string
	err     error
}

func (d *fakeDocs) Put(ctx context.Context, prefix string, doc domain.Document) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	key := prefix + "/" + doc.Filename
	d.puts = append(d.puts, key)
	return key, nil
}

func (d *fakeDocs) Delete(ctx context.Context, key string) error {
	d.deleted = append(d.deleted, key)
	return nil
}

type fakeNotifier struct {
	sent []domain.Claim
	err  error
}

func (n *fakeNotifier) ClaimResolved(ctx context.Context, c domain.Claim, b domain.Business) error {
	n.sent = append(n.sent, c)
	return n.err
}

// fakeLegacy serves canned export rows.
type fakeLegacy struct {
	categories []map[string]any
	businesses []map[string]any
	reviews    map[string][]map[string]any
	reviewErr  map[string]error

	mu    sync.Mutex
	pages []int
}

func (f *fakeLegacy) ListCategories(ctx context.Context) ([]map[string]any, error) {
	return f.categories, nil
}

func (f *fakeLegacy) ListBusinesses(ctx context.Context, offset, limit int) ([]map[string]any, error) {
	f.mu.Lock()
	f.pages = append(f.pages, offset)
	f.mu.Unlock()
	if offset >= len(f.businesses) {
		return nil, nil
	}
	return f.businesses[offset:min(offset+limit, len(f.businesses))], nil
}

func (f *fakeLegacy) ListReviews(ctx context.Context, ref string) ([]map[string]any, error) {
	if err := f.reviewErr[ref]; err != nil {
		return nil, err
	}
	return f.reviews[ref], nil
}

// ---- helpers ----

func ptr[T any](v T) *T { return &v }

var (
	admin = domain.Principal{UserID: "admin-1", Role: domain.RoleAdmin, Status: domain.UserActive}
	alice = domain.Principal{UserID: "alice", Name: "Alice", Email: "alice@example.com", Role: domain.RoleUser}
	bob   = domain.Principal{UserID: "bob", Name: "Bob", Role: domain.RoleBusinessOwner}
)

type tick struct{ t time.Time }

func (c *tick) now() time.Time {
	c.t = c.t.Add(time.Minute)
	return c.t
}

func newStore() *memory.Store {
	c := &tick{t: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
	return memory.New().WithClock(c.now)
}

// approvedBusiness inserts an approved, active listing.
func approvedBusiness(s *memory.Store, slug, name string, lat, lng *float64) domain.Business {
	b := domain.Business{Slug: slug, Name: name, Status: domain.StatusApproved, Lat: lat, Lng: lng}
	if err := s.CreateBusiness(context.Background(), &b); err != nil {
		panic(err)
	}
	return b
}
