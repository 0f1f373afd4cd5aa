package mysql

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"midtown_book/internal/domain"
)

func scanClaim(s scanner) (domain.Claim, error) {
	var (
		c              domain.Claim
		email, doc, nt sql.NullString
		status         string
		reviewedAt     sql.NullTime
	)
	if err := s.Scan(&c.ID, &c.BusinessID, &c.UserID, &email, &status, &doc, &nt, &c.CreatedAt, &reviewedAt); err != nil {
		return domain.Claim{}, err
	}
	c.Email = strPtr(email)
	c.DocumentKey = strPtr(doc)
	c.Note = strPtr(nt)
	c.Status = domain.ClaimStatus(status)
	if reviewedAt.Valid {
		t := reviewedAt.Time
		c.ReviewedAt = &t
	}
	return c, nil
}

func (r *Repo) CreateClaim(ctx context.Context, c *domain.Claim) error {
	res, err := r.db.ExecContext(ctx, insertClaimSQL,
		c.BusinessID, c.UserID, valStr(c.Email), valStr(c.DocumentKey), valStr(c.Note))
	if err != nil {
		return mapErr(err)
	}
	c.Status = domain.ClaimPending
	c.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) GetClaim(ctx context.Context, id int64) (domain.Claim, error) {
	c, err := scanClaim(r.db.QueryRowContext(ctx, claimColumns+"\nWHERE id = ?", id))
	return c, mapErr(err)
}

func (r *Repo) ListClaims(ctx context.Context, status *domain.ClaimStatus) ([]domain.Claim, error) {
	q, args := claimColumns, []any{}
	if status != nil {
		q += "\nWHERE status = ?"
		args = append(args, string(*status))
	}
	rows, err := r.db.QueryContext(ctx, q+"\nORDER BY created_at, id", args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Claim
	for rows.Next() {
		c, err := scanClaim(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (r *Repo) HasPendingClaim(ctx context.Context, businessID int64, userID string) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM claims WHERE business_id = ? AND user_id = ? AND status = 'pending'`,
		businessID, userID).Scan(&n)
	return n > 0, err
}

func (r *Repo) ResolveClaim(ctx context.Context, id int64, status domain.ClaimStatus, at time.Time) (err error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var (
		businessID int64
		userID     string
		current    string
	)
	if err = tx.QueryRowContext(ctx,
		`SELECT business_id, user_id, status FROM claims WHERE id = ? FOR UPDATE`, id,
	).Scan(&businessID, &userID, &current); err != nil {
		return mapErr(err)
	}
	if domain.ClaimStatus(current) != domain.ClaimPending {
		return fmt.Errorf("%w: claim %d is %s", domain.ErrInvalidTransition, id, current)
	}

	if _, err = tx.ExecContext(ctx,
		`UPDATE claims SET status = ?, reviewed_at = ? WHERE id = ?`, string(status), at, id); err != nil {
		return err
	}

	if status == domain.ClaimApproved {
		if _, err = tx.ExecContext(ctx,
			`UPDATE businesses SET owner_id = ?, is_claimed = TRUE, is_verified = TRUE WHERE id = ?`,
			userID, businessID); err != nil {
			return err
		}
		if _, err = tx.ExecContext(ctx,
			`UPDATE claims SET status = 'rejected', reviewed_at = ?
			 WHERE business_id = ? AND id <> ? AND status = 'pending'`,
			at, businessID, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
