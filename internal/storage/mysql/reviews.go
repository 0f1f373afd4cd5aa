package mysql

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"midtown_book/internal/domain"
)

func scanReview(s scanner) (domain.Review, error) {
	var (
		rv                          domain.Review
		userID, author, title, text sql.NullString
		response, sourceID          sql.NullString
		rating                      sql.NullInt64
		respondedAt                 sql.NullTime
	)
	if err := s.Scan(
		&rv.ID,
		&rv.BusinessID,
		&userID,
		&author,
		&rating,
		&title,
		&text,
		&rv.IsApproved,
		&response,
		&respondedAt,
		&sourceID,
		&rv.CreatedAt,
		&rv.UpdatedAt,
	); err != nil {
		return domain.Review{}, err
	}
	rv.UserID = strPtr(userID)
	rv.AuthorName = strPtr(author)
	rv.Rating = intPtr(rating)
	rv.Title = strPtr(title)
	rv.Content = strPtr(text)
	rv.SourceID = strPtr(sourceID)
	if response.Valid {
		rv.Response = &domain.ReviewResponse{Content: response.String}
		if respondedAt.Valid {
			rv.Response.RespondedAt = respondedAt.Time
		}
	}
	return rv, nil
}

func (r *Repo) CreateReview(ctx context.Context, rv *domain.Review) error {
	res, err := r.db.ExecContext(ctx, insertReviewSQL,
		rv.BusinessID,
		valStr(rv.UserID),
		valStr(rv.AuthorName),
		valInt(rv.Rating),
		valStr(rv.Title),
		valStr(rv.Content),
		rv.IsApproved,
	)
	if err != nil {
		return mapErr(err)
	}
	rv.ID, err = res.LastInsertId()
	return err
}

// UpsertReviews writes imported reviews keyed by source_id in one statement.
func (r *Repo) UpsertReviews(ctx context.Context, rs []domain.Review) error {
	if len(rs) == 0 {
		return nil
	}
	values := make([]string, 0, len(rs))
	args := make([]any, 0, len(rs)*11)
	for _, rv := range rs {
		// created_at falls back to now when the source has no timestamp
		values = append(values, "(?,?,?,?,?,?,?,?,?,?,COALESCE(?, CURRENT_TIMESTAMP))")
		var created, response, respondedAt any
		if !rv.CreatedAt.IsZero() {
			created = rv.CreatedAt
		}
		if rv.Response != nil {
			response = rv.Response.Content
			if !rv.Response.RespondedAt.IsZero() {
				respondedAt = rv.Response.RespondedAt
			}
		}
		args = append(args,
			rv.BusinessID,
			valStr(rv.SourceID),
			valStr(rv.UserID),
			valStr(rv.AuthorName),
			valInt(rv.Rating),
			valStr(rv.Title),
			valStr(rv.Content),
			rv.IsApproved,
			response,
			respondedAt,
			created,
		)
	}
	q := insertReviewsPrefix + strings.Join(values, ",") + insertReviewsOnDup
	_, err := r.db.ExecContext(ctx, q, args...)
	return mapErr(err)
}

func (r *Repo) GetReview(ctx context.Context, id int64) (domain.Review, error) {
	rv, err := scanReview(r.db.QueryRowContext(ctx, reviewColumns+"\nWHERE id = ?", id))
	return rv, mapErr(err)
}

func (r *Repo) UpdateReview(ctx context.Context, rv domain.Review) error {
	return affected(r.db.ExecContext(ctx, updateReviewSQL,
		valInt(rv.Rating), valStr(rv.Title), valStr(rv.Content), rv.IsApproved, rv.ID))
}

func (r *Repo) DeleteReview(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `DELETE FROM reviews WHERE id = ?`, id))
}

func (r *Repo) SetApproved(ctx context.Context, id int64, approved bool) error {
	return affected(r.db.ExecContext(ctx, `UPDATE reviews SET is_approved = ? WHERE id = ?`, approved, id))
}

func (r *Repo) SetResponse(ctx context.Context, id int64, resp domain.ReviewResponse) error {
	at := resp.RespondedAt
	if at.IsZero() {
		at = time.Now().UTC()
	}
	return affected(r.db.ExecContext(ctx,
		`UPDATE reviews SET response = ?, responded_at = ? WHERE id = ?`, resp.Content, at, id))
}

func (r *Repo) ListReviews(ctx context.Context, q domain.ReviewQuery) (domain.ReviewsPage, error) {
	var (
		conds []string
		args  []any
	)
	if q.BusinessID > 0 {
		conds = append(conds, "business_id = ?")
		args = append(args, q.BusinessID)
	}
	if q.Approved != nil {
		conds = append(conds, "is_approved = ?")
		args = append(args, *q.Approved)
	}
	where := ""
	if len(conds) > 0 {
		where = "\nWHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM reviews"+where, args...).Scan(&total); err != nil {
		return domain.ReviewsPage{}, err
	}

	rows, err := r.db.QueryContext(ctx,
		reviewColumns+where+"\nORDER BY created_at DESC, id DESC\nLIMIT ? OFFSET ?",
		append(args, q.Limit, q.Offset)...,
	)
	if err != nil {
		return domain.ReviewsPage{}, err
	}
	defer rows.Close()

	var out []domain.Review
	for rows.Next() {
		rv, err := scanReview(rows)
		if err != nil {
			return domain.ReviewsPage{}, err
		}
		out = append(out, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.ReviewsPage{}, err
	}
	return domain.ReviewsPage{Items: out, Total: total, HasMore: q.Offset+len(out) < total}, nil
}
