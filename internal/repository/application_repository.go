package repository

import (
	"context"
	"database/sql"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

// ApplicationRepo persists provider applications.  The unique index on
// (provider_id, request_id) is what makes a double submit impossible; Create
// reports its violation as ErrDuplicate.
type ApplicationRepo struct {
	db *sql.DB
}

// NewApplicationRepo returns an ApplicationRepo bound to the given database.
func NewApplicationRepo(db *sql.DB) *ApplicationRepo { return &ApplicationRepo{db: db} }

// Create inserts an application and writes the generated id back.
func (r *ApplicationRepo) Create(ctx context.Context, a *model.Application) error {
	const q = `INSERT INTO applications
		(provider_id, request_id, proposed_price, provider_message, proposed_delay, status, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	var delay sql.NullInt64
	if a.ProposedDelay != nil {
		delay = sql.NullInt64{Int64: int64(*a.ProposedDelay), Valid: true}
	}
	res, err := r.db.ExecContext(ctx, q,
		a.ProviderID, a.RequestID, a.ProposedPrice, a.ProviderMessage, delay,
		string(a.Status), a.CreatedAt, a.UpdatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	a.ID = uint64(id)
	return nil
}

// Exists reports whether the provider already applied to the request.
func (r *ApplicationRepo) Exists(ctx context.Context, providerID, requestID uint64) (bool, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM applications WHERE provider_id = ? AND request_id = ?",
		providerID, requestID).Scan(&n)
	return n > 0, err
}

// ListByProvider returns the provider's applications, most recent first.
func (r *ApplicationRepo) ListByProvider(ctx context.Context, providerID uint64) ([]model.Application, error) {
	const q = `SELECT id, provider_id, request_id, proposed_price, provider_message, proposed_delay,
	                  status, created_at, updated_at
	           FROM applications WHERE provider_id = ?
	           ORDER BY created_at DESC, id DESC`
	rows, err := r.db.QueryContext(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Application{}
	for rows.Next() {
		var (
			a      model.Application
			delay  sql.NullInt64
			status string
		)
		if err := rows.Scan(&a.ID, &a.ProviderID, &a.RequestID, &a.ProposedPrice, &a.ProviderMessage,
			&delay, &status, &a.CreatedAt, &a.UpdatedAt); err != nil {
			return nil, err
		}
		a.Status = model.ApplicationStatus(status)
		if delay.Valid {
			d := int(delay.Int64)
			a.ProposedDelay = &d
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// CountByStatus groups the provider's applications by status.
func (r *ApplicationRepo) CountByStatus(ctx context.Context, providerID uint64) (map[model.ApplicationStatus]int64, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT status, COUNT(*) FROM applications WHERE provider_id = ? GROUP BY status", providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := map[model.ApplicationStatus]int64{}
	for rows.Next() {
		var (
			s string
			n int64
		)
		if err := rows.Scan(&s, &n); err != nil {
			return nil, err
		}
		out[model.ApplicationStatus(s)] = n
	}
	return out, rows.Err()
}
