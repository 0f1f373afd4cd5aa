package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	gomysql "github.com/go-sql-driver/mysql"

	"midtown_book/internal/discovery"
	"midtown_book/internal/domain"
)

func valStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt(p *int) any {
	if p == nil {
		return nil
	}
	return *p
}
func valInt64(p *int64) any {
	if p == nil {
		return nil
	}
	return *p
}
func valF64(p *float64) any {
	if p == nil {
		return nil
	}
	return *p
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}
func f64Ptr(nf sql.NullFloat64) *float64 {
	if !nf.Valid {
		return nil
	}
	f := nf.Float64
	return &f
}
func int64Ptr(ni sql.NullInt64) *int64 {
	if !ni.Valid {
		return nil
	}
	n := ni.Int64
	return &n
}
func intPtr(ni sql.NullInt64) *int {
	if !ni.Valid {
		return nil
	}
	n := int(ni.Int64)
	return &n
}

// mapErr translates driver errors into domain sentinels.
func mapErr(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	var me *gomysql.MySQLError
	if errors.As(err, &me) && me.Number == 1062 {
		return fmt.Errorf("%w: %s", domain.ErrConflict, me.Message)
	}
	return err
}

// affected reports ErrNotFound when an UPDATE matched nothing.
// The DSN must set clientFoundRows=true so unchanged rows still count.
func affected(res sql.Result, err error) error {
	if err != nil {
		return mapErr(err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

type scanner interface{ Scan(dest ...any) error }

type Repo struct{ db *sql.DB }

var _ domain.Store = (*Repo)(nil)

func New(db *sql.DB) *Repo { return &Repo{db: db} }

func scanBusiness(s scanner) (domain.Business, error) {
	var (
		b                            domain.Business
		desc, catName, catSlug       sql.NullString
		addr, city, state, zip       sql.NullString
		phone, email, website, owner sql.NullString
		catID, price                 sql.NullInt64
		lat, lng, avg                sql.NullFloat64
		status                       string
	)
	if err := s.Scan(
		&b.ID,
		&b.Slug,
		&b.Name,
		&desc,
		&catID,
		&catName,
		&catSlug,
		&addr,
		&city,
		&state,
		&zip,
		&lat,
		&lng,
		&phone,
		&email,
		&website,
		&price,
		&status,
		&b.IsClaimed,
		&b.IsVerified,
		&b.IsFeatured,
		&b.IsActive,
		&owner,
		&b.ViewCount,
		&b.CreatedAt,
		&b.UpdatedAt,
		&avg,
		&b.Rating.ReviewCount,
		&b.Rating.ApprovedCount,
	); err != nil {
		return domain.Business{}, err
	}
	b.Description = strPtr(desc)
	b.CategoryID = int64Ptr(catID)
	b.CategoryName = strPtr(catName)
	b.CategorySlug = strPtr(catSlug)
	b.Address = strPtr(addr)
	b.City = strPtr(city)
	b.State = strPtr(state)
	b.Zip = strPtr(zip)
	b.Lat = f64Ptr(lat)
	b.Lng = f64Ptr(lng)
	b.Phone = strPtr(phone)
	b.Email = strPtr(email)
	b.Website = strPtr(website)
	b.PriceRange = intPtr(price)
	b.Status = domain.BusinessStatus(status)
	b.OwnerID = strPtr(owner)
	b.Rating.Average = f64Ptr(avg)
	return b, nil
}

func (r *Repo) CreateBusiness(ctx context.Context, b *domain.Business) error {
	res, err := r.db.ExecContext(ctx, insertBusinessSQL,
		b.Slug,
		b.Name,
		valStr(b.Description),
		valInt64(b.CategoryID),
		valStr(b.Address),
		valStr(b.City),
		valStr(b.State),
		valStr(b.Zip),
		valF64(b.Lat),
		valF64(b.Lng),
		valStr(b.Phone),
		valStr(b.Email),
		valStr(b.Website),
		valInt(b.PriceRange),
		string(b.Status),
		valStr(b.SubmittedBy),
	)
	if err != nil {
		return mapErr(err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) UpsertBusiness(ctx context.Context, b *domain.Business) error {
	res, err := r.db.ExecContext(ctx, upsertBusinessSQL,
		b.Slug,
		b.Name,
		valStr(b.Description),
		valInt64(b.CategoryID),
		valStr(b.Address),
		valStr(b.City),
		valStr(b.State),
		valStr(b.Zip),
		valF64(b.Lat),
		valF64(b.Lng),
		valStr(b.Phone),
		valStr(b.Email),
		valStr(b.Website),
		valInt(b.PriceRange),
		string(b.Status),
		b.IsClaimed,
		b.IsVerified,
		b.IsFeatured,
		valStr(b.OwnerID),
		b.ViewCount,
	)
	if err != nil {
		return mapErr(err)
	}
	b.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) SlugExists(ctx context.Context, slug string) (bool, error) {
	var one int
	err := r.db.QueryRowContext(ctx, `SELECT 1 FROM businesses WHERE slug = ?`, slug).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	return err == nil, err
}

func (r *Repo) UpdateStatus(ctx context.Context, id int64, status domain.BusinessStatus) error {
	return affected(r.db.ExecContext(ctx, `UPDATE businesses SET status = ? WHERE id = ?`, string(status), id))
}

func (r *Repo) SetFeatured(ctx context.Context, id int64, featured bool) error {
	return affected(r.db.ExecContext(ctx, `UPDATE businesses SET is_featured = ? WHERE id = ?`, featured, id))
}

func (r *Repo) Deactivate(ctx context.Context, id int64) error {
	return affected(r.db.ExecContext(ctx, `UPDATE businesses SET is_active = FALSE WHERE id = ?`, id))
}

func (r *Repo) AddViews(ctx context.Context, id int64, n int64) error {
	_, err := r.db.ExecContext(ctx, `UPDATE businesses SET view_count = view_count + ? WHERE id = ?`, n, id)
	return err
}

func (r *Repo) UpsertCategory(ctx context.Context, c *domain.Category) error {
	res, err := r.db.ExecContext(ctx, upsertCategorySQL, c.Name, c.Slug, c.DisplayOrder, c.IsActive)
	if err != nil {
		return mapErr(err)
	}
	c.ID, err = res.LastInsertId()
	return err
}

func (r *Repo) LogMiss(ctx context.Context, ref string, status int, reason string) error {
	_, err := r.db.ExecContext(ctx, insertMissSQL, ref, status, reason)
	return err
}

func (r *Repo) GetBusiness(ctx context.Context, id int64) (domain.Business, error) {
	b, err := scanBusiness(r.db.QueryRowContext(ctx, selectBusinessSQL+"\nWHERE b.id = ?", id))
	return b, mapErr(err)
}

func (r *Repo) GetBusinessBySlug(ctx context.Context, slug string) (domain.Business, error) {
	b, err := scanBusiness(r.db.QueryRowContext(ctx, selectBusinessSQL+"\nWHERE b.slug = ?", slug))
	return b, mapErr(err)
}

func (r *Repo) ListBusinesses(ctx context.Context, f domain.BusinessFilter) (domain.BusinessPage, error) {
	f = f.Normalized()
	where, args := whereClause(f)

	var total int
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+businessFrom+where, args...).Scan(&total); err != nil {
		return domain.BusinessPage{}, err
	}

	q := selectBusinessSQL + where + orderClause(f) + "\nLIMIT ? OFFSET ?"
	items, err := r.queryBusinesses(ctx, q, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return domain.BusinessPage{}, err
	}
	return domain.BusinessPage{
		Items:   items,
		Total:   total,
		HasMore: f.Offset+len(items) < total,
	}, nil
}

func (r *Repo) ListWithin(ctx context.Context, f domain.BusinessFilter, box domain.Box, max int) ([]domain.Business, error) {
	where, args := whereClause(f)
	geo, geoArgs := boxClause(box)
	if where == "" {
		where = "\nWHERE " + geo
	} else {
		where += "\n  AND " + geo
	}
	args = append(args, geoArgs...)
	q := selectBusinessSQL + where + "\nORDER BY b.id\nLIMIT ?"
	return r.queryBusinesses(ctx, q, append(args, max)...)
}

func (r *Repo) queryBusinesses(ctx context.Context, q string, args ...any) ([]domain.Business, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Business
	for rows.Next() {
		b, err := scanBusiness(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repo) ListCategories(ctx context.Context) ([]domain.Category, error) {
	rows, err := r.db.QueryContext(ctx, listCategoriesSQL)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Category
	for rows.Next() {
		var c domain.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.DisplayOrder, &c.IsActive, &c.BusinessCount); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// RatingSummary loads the business's review rows and aggregates them in process,
// which also yields the histogram the list query does not carry.
func (r *Repo) RatingSummary(ctx context.Context, businessID int64) (domain.RatingSummary, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT rating, is_approved FROM reviews WHERE business_id = ?`, businessID)
	if err != nil {
		return domain.RatingSummary{}, err
	}
	defer rows.Close()

	var rs []domain.Review
	for rows.Next() {
		var (
			rv     domain.Review
			rating sql.NullInt64
		)
		if err := rows.Scan(&rating, &rv.IsApproved); err != nil {
			return domain.RatingSummary{}, err
		}
		rv.Rating = intPtr(rating)
		rs = append(rs, rv)
	}
	if err := rows.Err(); err != nil {
		return domain.RatingSummary{}, err
	}
	return discovery.Aggregate(rs), nil
}
