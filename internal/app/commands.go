package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"midtown_book/internal/domain"
)

const maxResponseLen = 2000

type DirectoryOptions struct {
	// AutoApproveReviews publishes new and edited reviews without moderation.
	AutoApproveReviews bool
}

// DirectoryService holds every mutation of the directory. Each one drops the
// cache entries it makes stale.
type DirectoryService struct {
	store  domain.Store
	cache  domain.Cache
	docs   domain.DocumentStore
	notify domain.Notifier
	opts   DirectoryOptions
	now    func() time.Time
}

func NewDirectoryService(s domain.Store, c domain.Cache, docs domain.DocumentStore, n domain.Notifier, opts DirectoryOptions) *DirectoryService {
	return &DirectoryService{store: s, cache: c, docs: docs, notify: n, opts: opts, now: func() time.Time { return time.Now().UTC() }}
}

// ---- businesses ----

// SubmitBusiness creates a pending listing under a fresh slug.
func (s *DirectoryService) SubmitBusiness(ctx context.Context, p domain.Principal, in domain.BusinessInput) (domain.Business, error) {
	if err := requireWriter(p); err != nil {
		return domain.Business{}, err
	}
	in.Name = strings.TrimSpace(in.Name)
	if err := checkStruct(in); err != nil {
		return domain.Business{}, err
	}

	submitter := p.UserID
	b := domain.Business{
		Name:        in.Name,
		Description: in.Description,
		CategoryID:  in.CategoryID,
		Address:     in.Address,
		City:        in.City,
		State:       in.State,
		Zip:         in.Zip,
		Lat:         in.Lat,
		Lng:         in.Lng,
		Phone:       in.Phone,
		Email:       in.Email,
		Website:     in.Website,
		PriceRange:  in.PriceRange,
		Status:      domain.StatusPending,
		SubmittedBy: &submitter,
	}

	base := Slugify(in.Name)
	// a concurrent submission can take the slug between check and insert
	for attempt := 0; attempt < 3; attempt++ {
		slug, err := uniqueSlug(ctx, s.store, base)
		if err != nil {
			return domain.Business{}, err
		}
		b.Slug = slug
		err = s.store.CreateBusiness(ctx, &b)
		if err == nil {
			log.Info().Int64("id", b.ID).Str("slug", b.Slug).Str("user", p.UserID).Msg("business submitted")
			return b, nil
		}
		if !errors.Is(err, domain.ErrConflict) {
			return domain.Business{}, err
		}
	}
	return domain.Business{}, fmt.Errorf("%w: slug %q keeps colliding", domain.ErrConflict, base)
}

// SetBusinessStatus applies an admin moderation decision.
func (s *DirectoryService) SetBusinessStatus(ctx context.Context, p domain.Principal, id int64, to domain.BusinessStatus) (domain.Business, error) {
	if err := requireAdmin(p); err != nil {
		return domain.Business{}, err
	}
	b, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return domain.Business{}, err
	}
	if err := b.Status.Transition(to); err != nil {
		return domain.Business{}, err
	}
	if err := s.store.UpdateStatus(ctx, id, to); err != nil {
		return domain.Business{}, err
	}
	s.invalidateBusiness(ctx, b)
	log.Info().Int64("id", id).Str("from", string(b.Status)).Str("to", string(to)).Msg("business status changed")
	b.Status = to
	return b, nil
}

func (s *DirectoryService) SetFeatured(ctx context.Context, p domain.Principal, id int64, featured bool) (domain.Business, error) {
	if err := requireAdmin(p); err != nil {
		return domain.Business{}, err
	}
	b, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return domain.Business{}, err
	}
	if err := s.store.SetFeatured(ctx, id, featured); err != nil {
		return domain.Business{}, err
	}
	s.invalidateBusiness(ctx, b)
	b.IsFeatured = featured
	return b, nil
}

// DeactivateBusiness soft-deletes a listing.
func (s *DirectoryService) DeactivateBusiness(ctx context.Context, p domain.Principal, id int64) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	b, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.Deactivate(ctx, id); err != nil {
		return err
	}
	s.invalidateBusiness(ctx, b)
	return nil
}

// ---- reviews ----

func (s *DirectoryService) CreateReview(ctx context.Context, p domain.Principal, businessID int64, in domain.ReviewInput) (domain.Review, error) {
	if err := requireWriter(p); err != nil {
		return domain.Review{}, err
	}
	if err := checkStruct(in); err != nil {
		return domain.Review{}, err
	}
	b, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Review{}, err
	}
	if !b.Visible() {
		return domain.Review{}, domain.ErrNotFound
	}
	if b.OwnedBy(p.UserID) {
		return domain.Review{}, fmt.Errorf("%w: owners cannot review their own business", domain.ErrForbidden)
	}

	uid := p.UserID
	r := domain.Review{
		BusinessID: businessID,
		UserID:     &uid,
		AuthorName: nonEmpty(p.Name),
		Rating:     &in.Rating,
		Title:      in.Title,
		Content:    in.Content,
		IsApproved: s.opts.AutoApproveReviews,
	}
	if err := s.store.CreateReview(ctx, &r); err != nil {
		return domain.Review{}, err
	}
	s.invalidateBusiness(ctx, b)
	return r, nil
}

// UpdateReview lets the author edit; the edit goes back to moderation.
func (s *DirectoryService) UpdateReview(ctx context.Context, p domain.Principal, id int64, in domain.ReviewInput) (domain.Review, error) {
	if err := requireWriter(p); err != nil {
		return domain.Review{}, err
	}
	if err := checkStruct(in); err != nil {
		return domain.Review{}, err
	}
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return domain.Review{}, err
	}
	if !r.WrittenBy(p.UserID) {
		return domain.Review{}, fmt.Errorf("%w: not the author of review %d", domain.ErrForbidden, id)
	}
	r.Rating, r.Title, r.Content = &in.Rating, in.Title, in.Content
	r.IsApproved = s.opts.AutoApproveReviews
	if err := s.store.UpdateReview(ctx, r); err != nil {
		return domain.Review{}, err
	}
	s.invalidateReviewBusiness(ctx, r.BusinessID)
	return r, nil
}

// DeleteReview is open to the author and to admins.
func (s *DirectoryService) DeleteReview(ctx context.Context, p domain.Principal, id int64) error {
	if err := requireWriter(p); err != nil {
		return err
	}
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if !r.WrittenBy(p.UserID) && !p.IsAdmin() {
		return fmt.Errorf("%w: not the author of review %d", domain.ErrForbidden, id)
	}
	if err := s.store.DeleteReview(ctx, id); err != nil {
		return err
	}
	s.invalidateReviewBusiness(ctx, r.BusinessID)
	return nil
}

func (s *DirectoryService) ApproveReview(ctx context.Context, p domain.Principal, id int64) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	r, err := s.store.GetReview(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetApproved(ctx, id, true); err != nil {
		return err
	}
	s.invalidateReviewBusiness(ctx, r.BusinessID)
	return nil
}

// RemoveReview is the admin moderation delete.
func (s *DirectoryService) RemoveReview(ctx context.Context, p domain.Principal, id int64) error {
	if err := requireAdmin(p); err != nil {
		return err
	}
	return s.DeleteReview(ctx, p, id)
}

// RespondToReview attaches the owner's public reply, replacing any earlier one.
func (s *DirectoryService) RespondToReview(ctx context.Context, p domain.Principal, reviewID int64, content string) (domain.Review, error) {
	if err := requireWriter(p); err != nil {
		return domain.Review{}, err
	}
	content = strings.TrimSpace(content)
	switch {
	case content == "":
		return domain.Review{}, invalid("content", "is required")
	case len(content) > maxResponseLen:
		return domain.Review{}, invalid("content", fmt.Sprintf("must be at most %d", maxResponseLen))
	}
	r, err := s.store.GetReview(ctx, reviewID)
	if err != nil {
		return domain.Review{}, err
	}
	b, err := s.store.GetBusiness(ctx, r.BusinessID)
	if err != nil {
		return domain.Review{}, err
	}
	if !b.OwnedBy(p.UserID) {
		return domain.Review{}, fmt.Errorf("%w: only the owner may respond", domain.ErrForbidden)
	}
	resp := domain.ReviewResponse{Content: content, RespondedAt: s.now()}
	if err := s.store.SetResponse(ctx, reviewID, resp); err != nil {
		return domain.Review{}, err
	}
	r.Response = &resp
	s.invalidateBusiness(ctx, b)
	return r, nil
}

// ---- deals / events ----

func (s *DirectoryService) CreateDeal(ctx context.Context, p domain.Principal, businessID int64, in domain.DealInput) (domain.Deal, error) {
	b, err := s.ownedBusiness(ctx, p, businessID)
	if err != nil {
		return domain.Deal{}, err
	}
	if err := checkStruct(in); err != nil {
		return domain.Deal{}, err
	}
	d := domain.Deal{
		BusinessID:  b.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Discount:    in.Discount,
		StartsAt:    in.StartsAt.UTC(),
		EndsAt:      in.EndsAt.UTC(),
		IsPublished: in.Publish,
	}
	if err := s.store.CreateDeal(ctx, &d); err != nil {
		return domain.Deal{}, err
	}
	d.Status = d.StatusAt(s.now())
	return d, nil
}

func (s *DirectoryService) CreateEvent(ctx context.Context, p domain.Principal, businessID int64, in domain.EventInput) (domain.Event, error) {
	b, err := s.ownedBusiness(ctx, p, businessID)
	if err != nil {
		return domain.Event{}, err
	}
	if err := checkStruct(in); err != nil {
		return domain.Event{}, err
	}
	e := domain.Event{
		BusinessID:  b.ID,
		Title:       strings.TrimSpace(in.Title),
		Description: in.Description,
		Location:    in.Location,
		StartsAt:    in.StartsAt.UTC(),
		EndsAt:      in.EndsAt.UTC(),
		IsPublished: in.Publish,
	}
	if err := s.store.CreateEvent(ctx, &e); err != nil {
		return domain.Event{}, err
	}
	e.Status, e.Phase = e.CurrentStatus(), e.PhaseAt(s.now())
	return e, nil
}

func (s *DirectoryService) ownedBusiness(ctx context.Context, p domain.Principal, id int64) (domain.Business, error) {
	if err := requireWriter(p); err != nil {
		return domain.Business{}, err
	}
	b, err := s.store.GetBusiness(ctx, id)
	if err != nil {
		return domain.Business{}, err
	}
	return b, requireOwner(p, b)
}

// ---- cache invalidation ----

func (s *DirectoryService) invalidateBusiness(ctx context.Context, b domain.Business) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Del(ctx, businessKey(b.Slug), categoriesKey); err != nil {
		log.Warn().Err(err).Str("context", "invalidateBusiness").Int64("id", b.ID).Msg("cache del failed")
	}
	if err := s.cache.DelPrefix(ctx, reviewsPrefix(b.ID)); err != nil {
		log.Warn().Err(err).Str("context", "invalidateBusiness").Int64("id", b.ID).Msg("cache del prefix failed")
	}
}

func (s *DirectoryService) invalidateReviewBusiness(ctx context.Context, businessID int64) {
	b, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		log.Warn().Err(err).Str("context", "invalidateReviewBusiness").Int64("id", businessID).Msg("lookup failed")
		b = domain.Business{ID: businessID}
	}
	s.invalidateBusiness(ctx, b)
}

func nonEmpty(s string) *string {
	if s = strings.TrimSpace(s); s == "" {
		return nil
	}
	return &s
}
