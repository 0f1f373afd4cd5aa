package mysql

import (
	"context"
	"database/sql"

	"midtown_book/internal/domain"
)

func (r *Repo) CreateDeal(ctx context.Context, d *domain.Deal) error {
	res, err := r.db.ExecContext(ctx, insertDealSQL,
		d.BusinessID, d.Title, valStr(d.Description), valStr(d.Discount), d.StartsAt, d.EndsAt, d.IsPublished)
	if err != nil {
		return mapErr(err)
	}
	d.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) ListDeals(ctx context.Context, businessID int64) ([]domain.Deal, error) {
	rows, err := r.db.QueryContext(ctx, listDealsSQL, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Deal
	for rows.Next() {
		var (
			d              domain.Deal
			desc, discount sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.BusinessID, &d.Title, &desc, &discount,
			&d.StartsAt, &d.EndsAt, &d.IsPublished, &d.CreatedAt); err != nil {
			return nil, err
		}
		d.Description = strPtr(desc)
		d.Discount = strPtr(discount)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repo) CreateEvent(ctx context.Context, e *domain.Event) error {
	res, err := r.db.ExecContext(ctx, insertEventSQL,
		e.BusinessID, e.Title, valStr(e.Description), valStr(e.Location), e.StartsAt, e.EndsAt, e.IsPublished)
	if err != nil {
		return mapErr(err)
	}
	e.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) ListEvents(ctx context.Context, businessID int64) ([]domain.Event, error) {
	rows, err := r.db.QueryContext(ctx, listEventsSQL, businessID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Event
	for rows.Next() {
		var (
			e              domain.Event
			desc, location sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.BusinessID, &e.Title, &desc, &location,
			&e.StartsAt, &e.EndsAt, &e.IsPublished, &e.IsCancelled, &e.CreatedAt); err != nil {
			return nil, err
		}
		e.Description = strPtr(desc)
		e.Location = strPtr(location)
		out = append(out, e)
	}
	return out, rows.Err()
}
