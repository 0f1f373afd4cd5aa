//go:build integration || !unit

package integration

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	_ "github.com/go-sql-driver/mysql"
	"github.com/ory/dockertest/v3"
	"github.com/ory/dockertest/v3/docker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	server "midtown_book/internal/adapters/http_server"
	"midtown_book/internal/adapters/jwtauth"
	"midtown_book/internal/adapters/legacy"
	redisad "midtown_book/internal/adapters/redis"
	"midtown_book/internal/app"
	"midtown_book/internal/domain"
	mysqlrepo "midtown_book/internal/storage/mysql"
)

// ---------- helpers ----------

func migrationsDir() string {
	if v := os.Getenv("MIGRATIONS_DIR"); v != "" {
		return v
	}
	return filepath.Join("..", "..", "migrations")
}

func applyMigrations(t *testing.T, db *sql.DB) {
	t.Helper()
	dir := migrationsDir()
	ents, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read migrations dir %s: %v", dir, err)
	}
	var files []string
	for _, e := range ents {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".sql" {
			files = append(files, filepath.Join(dir, e.Name()))
		}
	}
	if len(files) == 0 {
		t.Fatalf("no .sql files in %s", dir)
	}
	sort.Strings(files)
	for _, f := range files {
		sqlBytes, err := os.ReadFile(f)
		if err != nil {
			t.Fatalf("read %s: %v", f, err)
		}
		if _, err := db.Exec(string(sqlBytes)); err != nil {
			t.Fatalf("exec %s: %v", f, err)
		}
	}
}

func startMySQL(t *testing.T) *sql.DB {
	t.Helper()
	pool, err := dockertest.NewPool("")
	if err != nil {
		t.Skipf("dockertest unavailable: %v", err)
	}
	resource, err := pool.RunWithOptions(&dockertest.RunOptions{
		Repository: "mysql",
		Tag:        "8.0.36",
		Env:        []string{"MYSQL_ROOT_PASSWORD=root", "MYSQL_DATABASE=midtown"},
	}, func(hc *docker.HostConfig) {
		hc.AutoRemove = true
		hc.RestartPolicy = docker.RestartPolicy{Name: "no"}
	})
	if err != nil {
		t.Skipf("run mysql: %v", err)
	}
	t.Cleanup(func() { _ = pool.Purge(resource) })

	dsn := fmt.Sprintf("root:root@tcp(127.0.0.1:%s)/midtown?parseTime=true&multiStatements=true&clientFoundRows=true&charset=utf8mb4&loc=UTC",
		resource.GetPort("3306/tcp"))
	var db *sql.DB
	if err := pool.Retry(func() error {
		var e error
		db, e = sql.Open("mysql", dsn)
		if e != nil {
			return e
		}
		return db.Ping()
	}); err != nil {
		t.Fatalf("connect mysql: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	applyMigrations(t, db)
	return db
}

// legacyExport serves a tiny PostgREST-shaped export.
func legacyExport(t *testing.T) *httptest.Server {
	t.Helper()
	tables := map[string]any{
		"categories": []map[string]any{
			{"id": "c-1", "name": "Restaurants", "slug": "restaurants", "display_order": 1},
		},
		"businesses": []map[string]any{
			{"id": "b-1", "name": "Sunrise Café", "category_id": "c-1", "status": "approved",
				"latitude": 28.0395, "longitude": -81.9498, "price_range": "$$", "is_featured": true},
			{"id": "b-2", "name": "Harbor Books", "status": "approved", "latitude": 28.0410, "longitude": -81.9510},
		},
	}
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		table := strings.TrimPrefix(r.URL.Path, "/rest/v1/")
		switch table {
		case "reviews":
			if r.URL.Query().Get("business_id") != "eq.b-1" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": "r-1", "rating": 5, "content": "Best pancakes", "is_approved": true},
				{"id": "r-2", "rating": 3, "content": "Slow", "is_approved": true},
			})
		case "businesses":
			if r.URL.Query().Get("offset") != "0" {
				_, _ = w.Write([]byte(`[]`))
				return
			}
			_ = json.NewEncoder(w).Encode(tables[table])
		default:
			_ = json.NewEncoder(w).Encode(tables[table])
		}
	}))
	t.Cleanup(ts.Close)
	return ts
}

// ---------- the test ----------

func TestHTTP_EndToEnd_ImportThenDiscover(t *testing.T) {
	db := startMySQL(t)
	repo := mysqlrepo.New(db)
	ctx := context.Background()

	mr := miniredis.RunT(t)
	cache := redisad.New(mr.Addr(), "", 0)
	t.Cleanup(func() { _ = cache.Close() })

	// import from the legacy export
	src, err := legacy.New(legacyExport(t).URL, "key", 100)
	require.NoError(t, err)
	st, err := app.NewImportService(src, repo, cache, app.ImportOptions{Workers: 2, PageSize: 50}).Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, st.Businesses)
	assert.Equal(t, 2, st.Reviews)

	// serve
	q := app.NewQueryService(repo, cache, time.Minute)
	d := app.NewDirectoryService(repo, cache, nil, nil, app.DirectoryOptions{})
	srv, err := server.New(server.Options{})
	require.NoError(t, err)
	srv.MountHandlers(&server.Handlers{Q: q, D: d}, jwtauth.NewVerifier("e2e", ""))
	ts := httptest.NewServer(srv.Mux())
	defer ts.Close()

	get := func(path string, out any) int {
		res, err := http.Get(ts.URL + path)
		require.NoError(t, err)
		defer res.Body.Close()
		if out != nil && res.StatusCode == http.StatusOK {
			require.NoError(t, json.NewDecoder(res.Body).Decode(out))
		}
		return res.StatusCode
	}

	var page domain.BusinessPage
	require.Equal(t, http.StatusOK, get("/api/businesses?category=restaurants&rating=4", &page))
	require.Len(t, page.Items, 1)
	assert.Equal(t, "sunrise-cafe", page.Items[0].Slug)
	require.NotNil(t, page.Items[0].Rating.Average)
	assert.InDelta(t, 4.0, *page.Items[0].Rating.Average, 0.001)

	var near domain.BusinessPage
	require.Equal(t, http.StatusOK, get("/api/businesses/nearby?lat=28.04&lng=-81.95&radius=2", &near))
	require.Len(t, near.Items, 2)
	assert.LessOrEqual(t, *near.Items[0].Distance, *near.Items[1].Distance)

	var b domain.Business
	require.Equal(t, http.StatusOK, get("/api/businesses/sunrise-cafe", &b))
	assert.Equal(t, "Sunrise Café", b.Name)
	assert.True(t, mr.Exists("business:sunrise-cafe"))

	assert.Equal(t, http.StatusNotFound, get("/api/businesses/not-a-listing", nil))
}
