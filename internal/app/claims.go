package app

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"midtown_book/internal/domain"
)

const maxClaimNote = 1000

// SubmitClaim files an ownership claim on an unclaimed, approved listing.
// The optional document is stored before the claim row; if the row cannot be
// written the document is removed again.
func (s *DirectoryService) SubmitClaim(ctx context.Context, p domain.Principal, businessID int64, doc *domain.Document, note string) (domain.Claim, error) {
	if err := requireWriter(p); err != nil {
		return domain.Claim{}, err
	}
	note = strings.TrimSpace(note)
	if len(note) > maxClaimNote {
		return domain.Claim{}, invalid("note", fmt.Sprintf("must be at most %d", maxClaimNote))
	}
	b, err := s.store.GetBusiness(ctx, businessID)
	if err != nil {
		return domain.Claim{}, err
	}
	if !b.Visible() {
		return domain.Claim{}, domain.ErrNotFound
	}
	if b.IsClaimed || b.OwnerID != nil {
		return domain.Claim{}, fmt.Errorf("%w: business %d is already claimed", domain.ErrConflict, businessID)
	}
	pending, err := s.store.HasPendingClaim(ctx, businessID, p.UserID)
	if err != nil {
		return domain.Claim{}, err
	}
	if pending {
		return domain.Claim{}, fmt.Errorf("%w: a claim for business %d is already pending", domain.ErrConflict, businessID)
	}

	c := domain.Claim{BusinessID: businessID, UserID: p.UserID, Email: nonEmpty(p.Email), Note: nonEmpty(note)}
	if doc != nil {
		if s.docs == nil {
			return domain.Claim{}, fmt.Errorf("%w: document storage is not configured", domain.ErrUnavailable)
		}
		key, err := s.docs.Put(ctx, fmt.Sprintf("claims/%d", businessID), *doc)
		if err != nil {
			return domain.Claim{}, err
		}
		c.DocumentKey = &key
	}
	if err := s.store.CreateClaim(ctx, &c); err != nil {
		if c.DocumentKey != nil {
			if derr := s.docs.Delete(ctx, *c.DocumentKey); derr != nil {
				log.Warn().Err(derr).Str("key", *c.DocumentKey).Msg("orphaned claim document")
			}
		}
		return domain.Claim{}, err
	}
	log.Info().Int64("claim", c.ID).Int64("business", businessID).Str("user", p.UserID).Msg("claim submitted")
	return c, nil
}

func (s *DirectoryService) ApproveClaim(ctx context.Context, p domain.Principal, id int64) (domain.Claim, error) {
	return s.resolveClaim(ctx, p, id, domain.ClaimApproved)
}

func (s *DirectoryService) RejectClaim(ctx context.Context, p domain.Principal, id int64) (domain.Claim, error) {
	return s.resolveClaim(ctx, p, id, domain.ClaimRejected)
}

func (s *DirectoryService) resolveClaim(ctx context.Context, p domain.Principal, id int64, status domain.ClaimStatus) (domain.Claim, error) {
	if err := requireAdmin(p); err != nil {
		return domain.Claim{}, err
	}
	if err := s.store.ResolveClaim(ctx, id, status, s.now()); err != nil {
		return domain.Claim{}, err
	}
	c, err := s.store.GetClaim(ctx, id)
	if err != nil {
		return domain.Claim{}, err
	}
	b, err := s.store.GetBusiness(ctx, c.BusinessID)
	if err != nil {
		return c, err
	}
	s.invalidateBusiness(ctx, b)

	// the decision stands even if the e-mail does not go out
	if s.notify != nil {
		if err := s.notify.ClaimResolved(ctx, c, b); err != nil {
			log.Error().Err(err).Str("context", "resolveClaim").Int64("claim", id).Msg("claim notification failed")
		}
	}
	log.Info().Int64("claim", id).Str("status", string(status)).Msg("claim resolved")
	return c, nil
}
