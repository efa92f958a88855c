package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

// RequestRepo provides CRUD, search and eligibility queries over the
// `service_requests` table.  All timestamps are stored in UTC.
type RequestRepo struct {
	db *sql.DB
}

// NewRequestRepo returns a RequestRepo bound to the given database.
func NewRequestRepo(db *sql.DB) *RequestRepo { return &RequestRepo{db: db} }

// RequestFilter narrows Search.  Zero values disable a filter.  BudgetMin
// keeps requests whose upper budget reaches it; BudgetMax keeps requests
// whose lower budget does not exceed it.
type RequestFilter struct {
	Search    string
	DateMin   *time.Time
	DateMax   *time.Time
	Location  string
	Category  model.ServiceCategory
	Status    model.RequestStatus
	BudgetMin decimal.NullDecimal
	BudgetMax decimal.NullDecimal
}

// EligibleQuery selects the requests a provider may still apply to.  A Limit
// of zero returns every row.
type EligibleQuery struct {
	ProviderID uint64
	Search     string
	DateMin    *time.Time
	DateMax    *time.Time
	Location   string
	Limit      int
	Offset     int
}

// RequestStats aggregates the whole table.
type RequestStats struct {
	Total         int64
	ByStatus      map[model.RequestStatus]int64
	ByCategory    map[model.ServiceCategory]int64
	AverageBudget decimal.NullDecimal
}

const requestColumns = `r.id, r.client_id, r.title, r.description, r.category, r.specific_type, r.custom_label,
       r.departure_address, r.arrival_address, r.desired_date, r.time_slot, r.budget_min, r.budget_max,
       r.details, r.status, r.created_at, r.updated_at`

// newest first; id breaks ties between rows created in the same instant
const requestOrder = ` ORDER BY r.created_at DESC, r.id DESC`

// Create inserts a request and writes the generated id back.
func (r *RequestRepo) Create(ctx context.Context, req *model.ServiceRequest) error {
	const q = `INSERT INTO service_requests
		(client_id, title, description, category, specific_type, custom_label, departure_address,
		 arrival_address, desired_date, time_slot, budget_min, budget_max, details, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		req.ClientID, req.Title, req.Description, string(req.Category),
		nullString(req.SpecificType), nullString(req.CustomLabel),
		nullString(req.DepartureAddress), nullString(req.ArrivalAddress),
		nullTime(req.DesiredDate), nullString(req.TimeSlot),
		req.BudgetMin, req.BudgetMax, nullString(req.Details),
		string(req.Status), req.CreatedAt, req.UpdatedAt)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	return nil
}

// Update overwrites every mutable column of the request.  It returns
// ErrNotFound when no row has req.ID.
func (r *RequestRepo) Update(ctx context.Context, req *model.ServiceRequest) error {
	const q = `UPDATE service_requests SET title = ?, description = ?, category = ?, specific_type = ?,
		custom_label = ?, departure_address = ?, arrival_address = ?, desired_date = ?, time_slot = ?,
		budget_min = ?, budget_max = ?, details = ?, status = ?, updated_at = ?
		WHERE id = ?`
	res, err := r.db.ExecContext(ctx, q,
		req.Title, req.Description, string(req.Category),
		nullString(req.SpecificType), nullString(req.CustomLabel),
		nullString(req.DepartureAddress), nullString(req.ArrivalAddress),
		nullTime(req.DesiredDate), nullString(req.TimeSlot),
		req.BudgetMin, req.BudgetMax, nullString(req.Details),
		string(req.Status), req.UpdatedAt, req.ID)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// UpdateStatus sets the status of a request.
func (r *RequestRepo) UpdateStatus(ctx context.Context, id uint64, status model.RequestStatus, at time.Time) error {
	res, err := r.db.ExecContext(ctx,
		"UPDATE service_requests SET status = ?, updated_at = ? WHERE id = ?",
		string(status), at, id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// GetByID returns a single request or ErrNotFound.
func (r *RequestRepo) GetByID(ctx context.Context, id uint64) (*model.ServiceRequest, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+requestColumns+" FROM service_requests r WHERE r.id = ?", id)
	req, err := scanRequest(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return req, nil
}

// List returns every request ordered by id.
func (r *RequestRepo) List(ctx context.Context) ([]model.ServiceRequest, error) {
	return r.query(ctx, "SELECT "+requestColumns+" FROM service_requests r ORDER BY r.id")
}

// ListByClient returns the requests published by a client, newest first.
func (r *RequestRepo) ListByClient(ctx context.Context, clientID uint64) ([]model.ServiceRequest, error) {
	return r.query(ctx, "SELECT "+requestColumns+" FROM service_requests r WHERE r.client_id = ?"+requestOrder, clientID)
}

// ListByCategory returns the requests of a category, newest first.
func (r *RequestRepo) ListByCategory(ctx context.Context, category model.ServiceCategory) ([]model.ServiceRequest, error) {
	return r.query(ctx, "SELECT "+requestColumns+" FROM service_requests r WHERE r.category = ?"+requestOrder, string(category))
}

// ListByStatus returns the requests in a status, newest first.
func (r *RequestRepo) ListByStatus(ctx context.Context, status model.RequestStatus) ([]model.ServiceRequest, error) {
	return r.query(ctx, "SELECT "+requestColumns+" FROM service_requests r WHERE r.status = ?"+requestOrder, string(status))
}

// Search returns the requests matching every set filter, newest first.
func (r *RequestRepo) Search(ctx context.Context, f RequestFilter) ([]model.ServiceRequest, error) {
	where, args := filterClauses(f.Search, f.Location, f.DateMin, f.DateMax)
	if f.Category != "" {
		where = append(where, "r.category = ?")
		args = append(args, string(f.Category))
	}
	if f.Status != "" {
		where = append(where, "r.status = ?")
		args = append(args, string(f.Status))
	}
	if f.BudgetMin.Valid {
		where = append(where, "r.budget_max >= ?")
		args = append(args, f.BudgetMin.Decimal)
	}
	if f.BudgetMax.Valid {
		where = append(where, "r.budget_min <= ?")
		args = append(args, f.BudgetMax.Decimal)
	}
	cond := "1=1"
	if len(where) > 0 {
		cond = strings.Join(where, " AND ")
	}
	return r.query(ctx, "SELECT "+requestColumns+" FROM service_requests r WHERE "+cond+requestOrder, args...)
}

// eligibleFrom joins the provider's profile and validated categories with
// the published requests of its expertise, excluding requests it already
// applied to.  The provider id is bound twice.
const eligibleFrom = `
FROM service_requests r
JOIN provider_profiles p
  ON p.user_id = ? AND p.status = 'VALID' AND p.expertise = r.category
WHERE r.status = 'PUBLISHED'
  AND EXISTS (SELECT 1 FROM provider_categories pc
              WHERE pc.provider_id = p.user_id AND pc.status = 'VALID')
  AND NOT EXISTS (SELECT 1 FROM applications a
                  WHERE a.request_id = r.id AND a.provider_id = ?)`

// ListEligible returns one page of the requests the provider may apply to,
// newest first, and the total number of such requests.
func (r *RequestRepo) ListEligible(ctx context.Context, q EligibleQuery) ([]model.ServiceRequest, int64, error) {
	where, args := filterClauses(q.Search, q.Location, q.DateMin, q.DateMax)
	args = append([]any{q.ProviderID, q.ProviderID}, args...)
	cond := ""
	if len(where) > 0 {
		cond = " AND " + strings.Join(where, " AND ")
	}

	var total int64
	if err := r.db.QueryRowContext(ctx, "SELECT COUNT(*)"+eligibleFrom+cond, args...).Scan(&total); err != nil {
		return nil, 0, err
	}
	if total == 0 {
		return []model.ServiceRequest{}, 0, nil
	}

	dataSQL := "SELECT " + requestColumns + eligibleFrom + cond + requestOrder
	if q.Limit > 0 {
		dataSQL += " LIMIT ? OFFSET ?"
		args = append(args, q.Limit, q.Offset)
	}
	items, err := r.query(ctx, dataSQL, args...)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// Statistics counts requests per status and per category and averages the
// upper budget of the requests that have one.
func (r *RequestRepo) Statistics(ctx context.Context) (RequestStats, error) {
	st := RequestStats{
		ByStatus:   map[model.RequestStatus]int64{},
		ByCategory: map[model.ServiceCategory]int64{},
	}
	rows, err := r.db.QueryContext(ctx, "SELECT status, COUNT(*) FROM service_requests GROUP BY status")
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var (
			s string
			n int64
		)
		if err := rows.Scan(&s, &n); err != nil {
			rows.Close()
			return st, err
		}
		st.ByStatus[model.RequestStatus(s)] = n
		st.Total += n
	}
	if err := rows.Close(); err != nil {
		return st, err
	}

	rows, err = r.db.QueryContext(ctx, "SELECT category, COUNT(*) FROM service_requests GROUP BY category")
	if err != nil {
		return st, err
	}
	for rows.Next() {
		var (
			c string
			n int64
		)
		if err := rows.Scan(&c, &n); err != nil {
			rows.Close()
			return st, err
		}
		st.ByCategory[model.ServiceCategory(c)] = n
	}
	if err := rows.Close(); err != nil {
		return st, err
	}

	err = r.db.QueryRowContext(ctx,
		"SELECT AVG(budget_max) FROM service_requests WHERE budget_max IS NOT NULL").Scan(&st.AverageBudget)
	return st, err
}

func (r *RequestRepo) query(ctx context.Context, q string, args ...any) ([]model.ServiceRequest, error) {
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ServiceRequest{}
	for rows.Next() {
		req, err := scanRequest(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *req)
	}
	return out, rows.Err()
}

// filterClauses builds the free-text, location and desired-date conditions
// shared by Search and ListEligible.
func filterClauses(search, location string, dateMin, dateMax *time.Time) ([]string, []any) {
	where := []string{}
	args := []any{}
	if s := strings.TrimSpace(search); s != "" {
		like := "%" + strings.ToLower(s) + "%"
		where = append(where, "(LOWER(r.title) LIKE ? OR LOWER(r.description) LIKE ?)")
		args = append(args, like, like)
	}
	if l := strings.TrimSpace(location); l != "" {
		like := "%" + strings.ToLower(l) + "%"
		where = append(where, "(LOWER(r.departure_address) LIKE ? OR LOWER(r.arrival_address) LIKE ?)")
		args = append(args, like, like)
	}
	if dateMin != nil {
		where = append(where, "r.desired_date >= ?")
		args = append(args, dateMin.UTC())
	}
	if dateMax != nil {
		where = append(where, "r.desired_date <= ?")
		args = append(args, dateMax.UTC())
	}
	return where, args
}

func scanRequest(s scanner) (*model.ServiceRequest, error) {
	var (
		req                                  model.ServiceRequest
		category, status                     string
		specific, custom, departure, arrival sql.NullString
		timeSlot, details                    sql.NullString
		desired                              sql.NullTime
	)
	err := s.Scan(
		&req.ID, &req.ClientID, &req.Title, &req.Description, &category, &specific, &custom,
		&departure, &arrival, &desired, &timeSlot, &req.BudgetMin, &req.BudgetMax,
		&details, &status, &req.CreatedAt, &req.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	req.Category = model.ServiceCategory(category)
	req.Status = model.RequestStatus(status)
	req.SpecificType = specific.String
	req.CustomLabel = custom.String
	req.DepartureAddress = departure.String
	req.ArrivalAddress = arrival.String
	req.TimeSlot = timeSlot.String
	req.Details = details.String
	if desired.Valid {
		d := desired.Time.UTC()
		req.DesiredDate = &d
	}
	return &req, nil
}

func nullTime(t *time.Time) sql.NullTime {
	if t == nil {
		return sql.NullTime{}
	}
	return sql.NullTime{Time: t.UTC(), Valid: true}
}

// expectOneRow turns a zero-row UPDATE or DELETE into ErrNotFound.
func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
