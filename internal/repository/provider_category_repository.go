package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

// ProviderCategoryRepo gives read access to `provider_categories`.  Rows are
// produced by the admin validation workflow, which lives elsewhere.
type ProviderCategoryRepo struct{ db *sql.DB }

func NewProviderCategoryRepo(db *sql.DB) *ProviderCategoryRepo { return &ProviderCategoryRepo{db: db} }

// CountValidated returns how many categories of the provider are VALID.
func (r *ProviderCategoryRepo) CountValidated(ctx context.Context, providerID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM provider_categories WHERE provider_id = ? AND status = ?",
		providerID, string(model.ValidationValid)).Scan(&n)
	return n, err
}

// Find returns the row for (providerID, category) or ErrNotFound.
func (r *ProviderCategoryRepo) Find(ctx context.Context, providerID uint64, category model.ServiceCategory) (*model.ProviderCategory, error) {
	const q = `SELECT id, provider_id, category, status, hourly_rate
	           FROM provider_categories WHERE provider_id = ? AND category = ?`
	pc, err := scanProviderCategory(r.db.QueryRowContext(ctx, q, providerID, string(category)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return pc, nil
}

// ListByProvider returns every category row of the provider ordered by id.
func (r *ProviderCategoryRepo) ListByProvider(ctx context.Context, providerID uint64) ([]model.ProviderCategory, error) {
	const q = `SELECT id, provider_id, category, status, hourly_rate
	           FROM provider_categories WHERE provider_id = ? ORDER BY id`
	rows, err := r.db.QueryContext(ctx, q, providerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.ProviderCategory{}
	for rows.Next() {
		pc, err := scanProviderCategory(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *pc)
	}
	return out, rows.Err()
}

func scanProviderCategory(s scanner) (*model.ProviderCategory, error) {
	var (
		pc       model.ProviderCategory
		category string
		status   string
	)
	if err := s.Scan(&pc.ID, &pc.ProviderID, &category, &status, &pc.HourlyRate); err != nil {
		return nil, err
	}
	pc.Category = model.ServiceCategory(category)
	pc.Status = model.ValidationStatus(status)
	return &pc, nil
}

// scanner is satisfied by *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}
