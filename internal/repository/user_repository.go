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

// UserRepo reads and writes the `users` table together with the
// `provider_profiles` table that carries the provider variant.
type UserRepo struct{ db *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{db: db} }

const userSelect = `SELECT u.id, u.role, u.first_name, u.last_name, u.email, u.password_hash, u.created_at,
       p.status, p.expertise, p.default_hourly_rate, p.company_name
FROM users u
LEFT JOIN provider_profiles p ON p.user_id = u.id`

// GetByID fetches a user and, for providers, its profile.  It returns
// ErrNotFound when no user has the given id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var (
		u         model.User
		role      string
		status    sql.NullString
		expertise sql.NullString
		rate      decimal.NullDecimal
		company   sql.NullString
	)
	err := r.db.QueryRowContext(ctx, userSelect+" WHERE u.id = ?", id).Scan(
		&u.ID, &role, &u.FirstName, &u.LastName, &u.Email, &u.PasswordHash, &u.CreatedAt,
		&status, &expertise, &rate, &company,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	u.Role = model.Role(role)
	if u.Role == model.RoleProvider && status.Valid {
		p := &model.ProviderProfile{
			Status:            model.ValidationStatus(status.String),
			DefaultHourlyRate: rate,
			CompanyName:       company.String,
		}
		if expertise.Valid && expertise.String != "" {
			cat := model.ServiceCategory(expertise.String)
			p.Expertise = &cat
		}
		u.Provider = p
	}
	return &u, nil
}

// Create inserts the user and, for providers, its profile in one
// transaction.  The generated id is written back on u.
func (r *UserRepo) Create(ctx context.Context, u *model.User) error {
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx,
		"INSERT INTO users (role, first_name, last_name, email, password_hash, created_at) VALUES (?,?,?,?,?,?)",
		string(u.Role), u.FirstName, u.LastName, u.Email, u.PasswordHash, u.CreatedAt)
	if err != nil {
		if isDuplicateKey(err) {
			return ErrEmailExists
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	u.ID = uint64(id)

	if u.Role == model.RoleProvider && u.Provider != nil {
		var expertise sql.NullString
		if u.Provider.Expertise != nil {
			expertise = sql.NullString{String: string(*u.Provider.Expertise), Valid: true}
		}
		if _, err := tx.ExecContext(ctx,
			"INSERT INTO provider_profiles (user_id, status, expertise, default_hourly_rate, company_name) VALUES (?,?,?,?,?)",
			u.ID, string(u.Provider.Status), expertise, u.Provider.DefaultHourlyRate, nullString(u.Provider.CompanyName)); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// nullString maps the empty string to SQL NULL.
func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
