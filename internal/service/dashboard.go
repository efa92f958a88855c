package service

import (
	"context"
	"math"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

// Dashboard aggregates a provider's applications and validation state.
type Dashboard struct {
	eligibility *Eligibility
	categories  ProviderCategoryStore
	apps        ApplicationStore
}

func NewDashboard(eligibility *Eligibility, categories ProviderCategoryStore, apps ApplicationStore) *Dashboard {
	return &Dashboard{eligibility: eligibility, categories: categories, apps: apps}
}

type ApplicationStats struct {
	Total          int64   `json:"totalCandidatures"`
	Pending        int64   `json:"enAttente"`
	Accepted       int64   `json:"acceptees"`
	Refused        int64   `json:"refusees"`
	AcceptanceRate float64 `json:"tauxAcceptation"`
}

type ValidationSnapshot struct {
	GlobalStatus model.ValidationStatus   `json:"statutGlobal"`
	Expertise    *model.ServiceCategory   `json:"domaineExpertise"`
	PerCategory  []model.ProviderCategory `json:"validationsCategories"`
	MayApply     bool                     `json:"peutCandidater"`
}

// ListApplications returns the provider's applications, newest first.
func (d *Dashboard) ListApplications(ctx context.Context, providerID uint64) ([]model.Application, error) {
	if _, err := d.eligibility.Provider(ctx, providerID); err != nil {
		return nil, err
	}
	out, err := d.apps.ListByProvider(ctx, providerID)
	if err != nil {
		return nil, Internal("list applications", err)
	}
	if out == nil {
		out = []model.Application{}
	}
	return out, nil
}

func (d *Dashboard) Stats(ctx context.Context, providerID uint64) (ApplicationStats, error) {
	if _, err := d.eligibility.Provider(ctx, providerID); err != nil {
		return ApplicationStats{}, err
	}
	counts, err := d.apps.CountByStatus(ctx, providerID)
	if err != nil {
		return ApplicationStats{}, Internal("count applications", err)
	}
	return computeStats(counts), nil
}

func computeStats(counts map[model.ApplicationStatus]int64) ApplicationStats {
	s := ApplicationStats{
		Pending:  counts[model.ApplicationPending],
		Accepted: counts[model.ApplicationAccepted],
		Refused:  counts[model.ApplicationRefused],
	}
	s.Total = s.Pending + s.Accepted + s.Refused
	if s.Total > 0 {
		s.AcceptanceRate = math.Round(float64(s.Accepted)/float64(s.Total)*100*100) / 100
	}
	return s
}

func (d *Dashboard) ValidationSnapshot(ctx context.Context, providerID uint64) (ValidationSnapshot, error) {
	p, err := d.eligibility.Provider(ctx, providerID)
	if err != nil {
		return ValidationSnapshot{}, err
	}
	cats, err := d.categories.ListByProvider(ctx, providerID)
	if err != nil {
		return ValidationSnapshot{}, Internal("list provider categories", err)
	}
	if cats == nil {
		cats = []model.ProviderCategory{}
	}
	may, err := d.eligibility.mayApply(ctx, p)
	if err != nil {
		return ValidationSnapshot{}, err
	}
	return ValidationSnapshot{
		GlobalStatus: p.Provider.Status,
		Expertise:    p.Provider.Expertise,
		PerCategory:  cats,
		MayApply:     may,
	}, nil
}
