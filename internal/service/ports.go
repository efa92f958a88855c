package service

import (
	"context"
	"time"

	"github.com/ecodeli/ecodeli-backend/internal/model"
	"github.com/ecodeli/ecodeli-backend/internal/repository"
)

// The stores below are implemented by the repository package against MySQL
// and by servicetest in memory.

type UserStore interface {
	GetByID(ctx context.Context, id uint64) (*model.User, error)
	Create(ctx context.Context, u *model.User) error
}

type ProviderCategoryStore interface {
	CountValidated(ctx context.Context, providerID uint64) (int, error)
	Find(ctx context.Context, providerID uint64, category model.ServiceCategory) (*model.ProviderCategory, error)
	ListByProvider(ctx context.Context, providerID uint64) ([]model.ProviderCategory, error)
}

type RequestStore interface {
	Create(ctx context.Context, req *model.ServiceRequest) error
	Update(ctx context.Context, req *model.ServiceRequest) error
	UpdateStatus(ctx context.Context, id uint64, status model.RequestStatus, at time.Time) error
	GetByID(ctx context.Context, id uint64) (*model.ServiceRequest, error)
	List(ctx context.Context) ([]model.ServiceRequest, error)
	ListByClient(ctx context.Context, clientID uint64) ([]model.ServiceRequest, error)
	ListByCategory(ctx context.Context, category model.ServiceCategory) ([]model.ServiceRequest, error)
	ListByStatus(ctx context.Context, status model.RequestStatus) ([]model.ServiceRequest, error)
	Search(ctx context.Context, f repository.RequestFilter) ([]model.ServiceRequest, error)
	ListEligible(ctx context.Context, q repository.EligibleQuery) ([]model.ServiceRequest, int64, error)
	Statistics(ctx context.Context) (repository.RequestStats, error)
}

type ApplicationStore interface {
	Create(ctx context.Context, a *model.Application) error
	Exists(ctx context.Context, providerID, requestID uint64) (bool, error)
	ListByProvider(ctx context.Context, providerID uint64) ([]model.Application, error)
	CountByStatus(ctx context.Context, providerID uint64) (map[model.ApplicationStatus]int64, error)
}

type JustificationStore interface {
	Create(ctx context.Context, j *model.Justification) error
	GetByID(ctx context.Context, id uint64) (*model.Justification, error)
	ListByUser(ctx context.Context, userID uint64) ([]model.Justification, error)
	Delete(ctx context.Context, id uint64) error
}

// EventPublisher hands domain events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, queue string, payload any) error
}

// WelcomeSender dispatches the account welcome email.  Implementations log
// and swallow their own failures.
type WelcomeSender interface {
	SendWelcome(ctx context.Context, u *model.User)
}
