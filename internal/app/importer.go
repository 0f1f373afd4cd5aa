package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"midtown_book/internal/domain"
)

type ImportOptions struct {
	Workers  int
	PageSize int
}

type ImportStats struct {
	Categories int
	Businesses int
	Reviews    int
	Misses     int
}

// ImportService copies the legacy hosted directory into the local store.
// Rows are upserted by slug (businesses, categories) and source id (reviews),
// so a rerun refreshes instead of duplicating.
type ImportService struct {
	src   domain.LegacyDirectory
	repo  domain.Store
	cache domain.Cache
	opts  ImportOptions
}

func NewImportService(src domain.LegacyDirectory, repo domain.Store, cache domain.Cache, opts ImportOptions) *ImportService {
	if opts.Workers <= 0 {
		opts.Workers = 8
	}
	if opts.PageSize <= 0 {
		opts.PageSize = 500
	}
	return &ImportService{src: src, repo: repo, cache: cache, opts: opts}
}

type importedBusiness struct {
	ref  string
	id   int64
	slug string
}

func (s *ImportService) Run(ctx context.Context) (ImportStats, error) {
	var st ImportStats

	cats, err := s.importCategories(ctx, &st)
	if err != nil {
		return st, fmt.Errorf("import categories: %w", err)
	}
	businesses, err := s.importBusinesses(ctx, cats, &st)
	if err != nil {
		return st, fmt.Errorf("import businesses: %w", err)
	}
	if err := s.importAllReviews(ctx, businesses, &st); err != nil {
		return st, fmt.Errorf("import reviews: %w", err)
	}

	if s.cache != nil {
		_ = s.cache.Del(ctx, categoriesKey)
	}
	return st, nil
}

// importCategories returns legacy id and slug -> local id.
func (s *ImportService) importCategories(ctx context.Context, st *ImportStats) (map[string]int64, error) {
	rows, err := s.src.ListCategories(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(rows)*2)
	for _, row := range rows {
		ref := refOf(row)
		c, err := mapCategory(row)
		if err != nil {
			s.miss(ctx, "category:"+ref, http.StatusUnprocessableEntity, "invalid", st)
			continue
		}
		if err := s.repo.UpsertCategory(ctx, &c); err != nil {
			return nil, err
		}
		if ref != "" {
			out[ref] = c.ID
		}
		out[c.Slug] = c.ID
		st.Categories++
	}
	return out, nil
}

func (s *ImportService) importBusinesses(ctx context.Context, cats map[string]int64, st *ImportStats) ([]importedBusiness, error) {
	var out []importedBusiness
	for offset := 0; ; offset += s.opts.PageSize {
		rows, err := s.src.ListBusinesses(ctx, offset, s.opts.PageSize)
		if err != nil {
			return out, err
		}
		for _, row := range rows {
			ref := refOf(row)
			b, err := mapBusiness(row, cats)
			if err != nil {
				s.miss(ctx, "business:"+ref, http.StatusUnprocessableEntity, "invalid", st)
				continue
			}
			if err := s.repo.UpsertBusiness(ctx, &b); err != nil {
				return out, fmt.Errorf("upsert business %q: %w", b.Slug, err)
			}
			if s.cache != nil {
				_ = s.cache.Del(ctx, businessKey(b.Slug))
			}
			out = append(out, importedBusiness{ref: ref, id: b.ID, slug: b.Slug})
			st.Businesses++
		}
		if len(rows) < s.opts.PageSize {
			return out, nil
		}
	}
}

// importAllReviews fans out per business, bounded by Workers. A business whose
// reviews cannot be fetched is logged and skipped; only cancellation aborts.
func (s *ImportService) importAllReviews(ctx context.Context, businesses []importedBusiness, st *ImportStats) error {
	sem := semaphore.NewWeighted(int64(s.opts.Workers))
	g, gctx := errgroup.WithContext(ctx)
	var reviews, misses atomic.Int64

	for _, b := range businesses {
		if b.ref == "" {
			continue
		}
		// acquire before launching the goroutine; release inside it
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		b := b
		g.Go(func() error {
			defer sem.Release(1)
			n, err := s.importReviews(gctx, b)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				if status, reason, ok := missStatus(err); ok {
					s.miss(gctx, "reviews:"+b.ref, status, reason, nil)
					misses.Add(1)
					return nil
				}
				log.Warn().Err(err).Str("business", b.slug).Msg("review import failed")
				return nil
			}
			reviews.Add(int64(n))
			return nil
		})
	}
	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	st.Reviews += int(reviews.Load())
	st.Misses += int(misses.Load())
	return err
}

func (s *ImportService) importReviews(ctx context.Context, b importedBusiness) (int, error) {
	rows, err := s.src.ListReviews(ctx, b.ref)
	if err != nil {
		return 0, err
	}
	// success: even if zero reviews, invalidate cache to drop any stale entries
	if len(rows) > 0 {
		if err := s.repo.UpsertReviews(ctx, mapReviews(b.id, rows)); err != nil {
			return 0, fmt.Errorf("upsert reviews for %s: %w", b.slug, err)
		}
	}
	if s.cache != nil {
		_ = s.cache.DelPrefix(ctx, reviewsPrefix(b.id))
		_ = s.cache.Del(ctx, businessKey(b.slug))
	}
	return len(rows), nil
}

// missStatus classifies errors that mean "the source has nothing for us".
func missStatus(err error) (int, string, bool) {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, "not found", true
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, "unauthorized", true
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, "forbidden", true
	}
	return 0, "", false
}

func (s *ImportService) miss(ctx context.Context, ref string, status int, reason string, st *ImportStats) {
	if err := s.repo.LogMiss(ctx, ref, status, reason); err != nil {
		log.Warn().Err(err).Str("ref", ref).Msg("log miss failed")
	}
	if st != nil {
		st.Misses++
	}
}
