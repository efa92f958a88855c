package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

// JustificationRepo persists metadata of uploaded provider documents.  The
// files themselves are managed by the vault.
type JustificationRepo struct {
	db *sql.DB
}

func NewJustificationRepo(db *sql.DB) *JustificationRepo { return &JustificationRepo{db: db} }

const justificationColumns = `id, user_id, file_path, type_label, comment, validated_by_admin, effective_from`

// Create inserts the row and writes the generated id back.
func (r *JustificationRepo) Create(ctx context.Context, j *model.Justification) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO justifications (user_id, file_path, type_label, comment, validated_by_admin, effective_from)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		j.UserID, j.FilePath, j.TypeLabel, j.Comment, j.ValidatedByAdmin, j.EffectiveFrom)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	j.ID = uint64(id)
	return nil
}

// GetByID returns a justification or ErrNotFound.
func (r *JustificationRepo) GetByID(ctx context.Context, id uint64) (*model.Justification, error) {
	var j model.Justification
	err := r.db.QueryRowContext(ctx,
		"SELECT "+justificationColumns+" FROM justifications WHERE id = ?", id).
		Scan(&j.ID, &j.UserID, &j.FilePath, &j.TypeLabel, &j.Comment, &j.ValidatedByAdmin, &j.EffectiveFrom)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &j, nil
}

// ListByUser returns every justification owned by the user ordered by id.
func (r *JustificationRepo) ListByUser(ctx context.Context, userID uint64) ([]model.Justification, error) {
	rows, err := r.db.QueryContext(ctx,
		"SELECT "+justificationColumns+" FROM justifications WHERE user_id = ? ORDER BY id", userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []model.Justification{}
	for rows.Next() {
		var j model.Justification
		if err := rows.Scan(&j.ID, &j.UserID, &j.FilePath, &j.TypeLabel, &j.Comment,
			&j.ValidatedByAdmin, &j.EffectiveFrom); err != nil {
			return nil, err
		}
		out = append(out, j)
	}
	return out, rows.Err()
}

// Delete removes the row.  It returns ErrNotFound when nothing was deleted.
func (r *JustificationRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, "DELETE FROM justifications WHERE id = ?", id)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}
