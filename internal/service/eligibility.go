package service

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"github.com/ecodeli/ecodeli-backend/internal/model"
	"github.com/ecodeli/ecodeli-backend/internal/repository"
)

// Eligibility answers whether a provider may apply to requests and which
// hourly rate it bids with.
type Eligibility struct {
	users      UserStore
	categories ProviderCategoryStore
}

func NewEligibility(users UserStore, categories ProviderCategoryStore) *Eligibility {
	return &Eligibility{users: users, categories: categories}
}

// Provider loads a user that must be a provider.
func (e *Eligibility) Provider(ctx context.Context, providerID uint64) (*model.User, error) {
	u, err := e.users.GetByID(ctx, providerID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("provider %d", providerID)
		}
		return nil, Internal("load provider", err)
	}
	if !u.IsProvider() {
		return nil, NotFound("provider %d", providerID)
	}
	return u, nil
}

// MayApply is true iff the provider is VALID and has at least one VALID
// category.
func (e *Eligibility) MayApply(ctx context.Context, providerID uint64) (bool, error) {
	p, err := e.Provider(ctx, providerID)
	if err != nil {
		return false, err
	}
	return e.mayApply(ctx, p)
}

func (e *Eligibility) mayApply(ctx context.Context, p *model.User) (bool, error) {
	if p.Provider.Status != model.ValidationValid {
		return false, nil
	}
	n, err := e.categories.CountValidated(ctx, p.ID)
	if err != nil {
		return false, Internal("count validated categories", err)
	}
	return n > 0, nil
}

// ResolveHourlyRate returns the category rate when the provider's category
// row is VALID with a positive rate, otherwise the provider default.  The
// result may be invalid (no rate at all).
func (e *Eligibility) ResolveHourlyRate(ctx context.Context, providerID uint64, category model.ServiceCategory) (decimal.NullDecimal, error) {
	p, err := e.Provider(ctx, providerID)
	if err != nil {
		return decimal.NullDecimal{}, err
	}
	return e.resolveHourlyRate(ctx, p, category)
}

func (e *Eligibility) resolveHourlyRate(ctx context.Context, p *model.User, category model.ServiceCategory) (decimal.NullDecimal, error) {
	pc, err := e.categories.Find(ctx, p.ID, category)
	switch {
	case err == nil:
		if pc.Status == model.ValidationValid && pc.HourlyRate.Valid && pc.HourlyRate.Decimal.IsPositive() {
			return pc.HourlyRate, nil
		}
	case !errors.Is(err, repository.ErrNotFound):
		return decimal.NullDecimal{}, Internal("load provider category", err)
	}
	return p.Provider.DefaultHourlyRate, nil
}
