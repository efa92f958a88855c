package service

import (
	"context"
	"errors"
	"net/mail"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/model"
	"github.com/ecodeli/ecodeli-backend/internal/queue"
	"github.com/ecodeli/ecodeli-backend/internal/repository"
	"github.com/ecodeli/ecodeli-backend/internal/utils"
)

const (
	minPasswordLength = 6
	maxPasswordLength = 72
)

// Registration is the payload of an account creation.
type Registration struct {
	FirstName string
	LastName  string
	Email     string
	Password  string
	Role      model.Role
}

// Accounts creates users and triggers the welcome email.
type Accounts struct {
	users      UserStore
	events     EventPublisher
	welcome    WelcomeSender
	bcryptCost int
	log        *zap.Logger
	now        func() time.Time
}

func NewAccounts(users UserStore, events EventPublisher, welcome WelcomeSender, bcryptCost int, log *zap.Logger, now func() time.Time) *Accounts {
	if now == nil {
		now = time.Now
	}
	return &Accounts{users: users, events: events, welcome: welcome, bcryptCost: utils.NormalizeCost(bcryptCost), log: log, now: now}
}

// Register stores a new user.  Providers start with a PENDING profile.  The
// welcome email is dispatched in the background; its outcome never reaches
// the caller.
func (a *Accounts) Register(ctx context.Context, r Registration) (*model.User, error) {
	r.FirstName = strings.TrimSpace(r.FirstName)
	r.LastName = strings.TrimSpace(r.LastName)
	r.Email = strings.ToLower(strings.TrimSpace(r.Email))
	if r.FirstName == "" || r.LastName == "" {
		return nil, Validation("prenom and nom are required")
	}
	if _, err := mail.ParseAddress(r.Email); err != nil || r.Email == "" {
		return nil, Validation("invalid email")
	}
	if len(r.Password) < minPasswordLength {
		return nil, Validation("motDePasse must have at least %d characters", minPasswordLength)
	}
	role := model.Role(strings.ToUpper(strings.TrimSpace(string(r.Role))))
	switch role {
	case "":
		role = model.RoleClient
	case model.RoleClient, model.RoleProvider:
	default:
		return nil, Validation("role must be CLIENT or PROVIDER")
	}

	if len(r.Password) > maxPasswordLength {
		return nil, Validation("motDePasse must have at most %d bytes", maxPasswordLength)
	}
	hash, err := utils.HashPassword(r.Password, a.bcryptCost)
	if err != nil {
		return nil, Internal("hash password", err)
	}
	u := &model.User{
		Role:         role,
		FirstName:    r.FirstName,
		LastName:     r.LastName,
		Email:        r.Email,
		PasswordHash: hash,
		CreatedAt:    a.now().UTC(),
	}
	if role == model.RoleProvider {
		u.Provider = &model.ProviderProfile{Status: model.ValidationPending}
	}
	if err := a.users.Create(ctx, u); err != nil {
		if errors.Is(err, repository.ErrEmailExists) {
			return nil, Conflict("email already registered")
		}
		return nil, Internal("create user", err)
	}
	a.log.Info("user registered", zap.Uint64("user_id", u.ID), zap.String("role", string(u.Role)))

	a.announce(ctx, u)
	return u, nil
}

// announce publishes user.created; when the broker is unavailable the
// welcome email is sent directly.
func (a *Accounts) announce(ctx context.Context, u *model.User) {
	ctx = context.WithoutCancel(ctx)
	snapshot := *u
	go func() {
		if a.events != nil {
			pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
			err := a.events.Publish(pctx, queue.UserCreatedQueue, queue.UserCreatedEvent{
				UserID:    snapshot.ID,
				Role:      string(snapshot.Role),
				FirstName: snapshot.FirstName,
				LastName:  snapshot.LastName,
				Email:     snapshot.Email,
				CreatedAt: snapshot.CreatedAt.Format(time.RFC3339),
			})
			cancel()
			if err == nil {
				return
			}
			a.log.Warn("publish user.created failed, sending welcome directly", zap.Uint64("user_id", snapshot.ID), zap.Error(err))
		}
		if a.welcome != nil {
			a.welcome.SendWelcome(ctx, &snapshot)
		}
	}()
}
