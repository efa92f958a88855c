package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/model"
	"github.com/ecodeli/ecodeli-backend/internal/repository"
)

const (
	defaultPageSize = 10
	maxPageSize     = 100
)

// Catalog is the read and write side of client service requests, including
// the provider-facing eligible listings.
type Catalog struct {
	requests    RequestStore
	users       UserStore
	eligibility *Eligibility
	log         *zap.Logger
	now         func() time.Time
}

func NewCatalog(requests RequestStore, users UserStore, eligibility *Eligibility, log *zap.Logger, now func() time.Time) *Catalog {
	if now == nil {
		now = time.Now
	}
	return &Catalog{requests: requests, users: users, eligibility: eligibility, log: log, now: now}
}

// Page is one slice of an ordered result.  Page numbers start at zero.
type Page struct {
	Content       []model.ServiceRequest `json:"content"`
	Page          int                    `json:"page"`
	Size          int                    `json:"size"`
	TotalElements int64                  `json:"totalElements"`
	TotalPages    int                    `json:"totalPages"`
}

// EligibleFilter carries the optional filters of the paginated listing.
type EligibleFilter struct {
	Search   string
	DateMin  *time.Time
	DateMax  *time.Time
	Location string
}

// Statistics is the aggregate returned by GET /statistiques.
type Statistics struct {
	Total      int64                           `json:"total"`
	ByStatus   map[model.RequestStatus]int64   `json:"parStatut"`
	ByCategory map[model.ServiceCategory]int64 `json:"parCategorie"`
	AvgBudget  *float64                        `json:"budgetMoyen"`
}

func (c *Catalog) All(ctx context.Context) ([]model.ServiceRequest, error) {
	out, err := c.requests.List(ctx)
	if err != nil {
		return nil, Internal("list requests", err)
	}
	return out, nil
}

func (c *Catalog) ByID(ctx context.Context, id uint64) (*model.ServiceRequest, error) {
	req, err := c.requests.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("request %d", id)
		}
		return nil, Internal("load request", err)
	}
	return req, nil
}

func (c *Catalog) ByClient(ctx context.Context, clientID uint64) ([]model.ServiceRequest, error) {
	out, err := c.requests.ListByClient(ctx, clientID)
	if err != nil {
		return nil, Internal("list client requests", err)
	}
	return out, nil
}

func (c *Catalog) ByCategory(ctx context.Context, category model.ServiceCategory) ([]model.ServiceRequest, error) {
	if !category.Valid() {
		return nil, Validation("unknown category %q", category)
	}
	out, err := c.requests.ListByCategory(ctx, category)
	if err != nil {
		return nil, Internal("list category requests", err)
	}
	return out, nil
}

// Available returns the PUBLISHED requests, newest first.
func (c *Catalog) Available(ctx context.Context) ([]model.ServiceRequest, error) {
	out, err := c.requests.ListByStatus(ctx, model.RequestPublished)
	if err != nil {
		return nil, Internal("list available requests", err)
	}
	return out, nil
}

// Search applies the recognised keys of filters: search, dateMin, dateMax,
// localisation, categorie, budgetMin, budgetMax and statut.
func (c *Catalog) Search(ctx context.Context, filters map[string]any) ([]model.ServiceRequest, error) {
	var (
		f   repository.RequestFilter
		err error
	)
	if f.Search, _, err = bagString(filters, "search"); err != nil {
		return nil, err
	}
	if f.Location, _, err = bagString(filters, "localisation"); err != nil {
		return nil, err
	}
	if f.DateMin, _, err = bagDate(filters, "dateMin"); err != nil {
		return nil, err
	}
	if f.DateMax, _, err = bagDate(filters, "dateMax"); err != nil {
		return nil, err
	}
	cat, _, err := bagString(filters, "categorie")
	if err != nil {
		return nil, err
	}
	if cat != "" {
		f.Category = model.ServiceCategory(cat)
		if !f.Category.Valid() {
			return nil, Validation("unknown category %q", cat)
		}
	}
	st, _, err := bagString(filters, "statut")
	if err != nil {
		return nil, err
	}
	if st != "" {
		f.Status = model.RequestStatus(st)
		if !f.Status.Valid() {
			return nil, Validation("unknown status %q", st)
		}
	}
	if f.BudgetMin, _, err = bagDecimal(filters, "budgetMin"); err != nil {
		return nil, err
	}
	if f.BudgetMax, _, err = bagDecimal(filters, "budgetMax"); err != nil {
		return nil, err
	}
	out, err := c.requests.Search(ctx, f)
	if err != nil {
		return nil, Internal("search requests", err)
	}
	return out, nil
}

// EligibleForProvider lists the PUBLISHED requests of the provider's
// expertise it has not applied to yet, newest first.  Ineligible providers
// get an empty list.
func (c *Catalog) EligibleForProvider(ctx context.Context, providerID uint64) ([]model.ServiceRequest, error) {
	ok, err := c.providerCanBrowse(ctx, providerID)
	if err != nil || !ok {
		return []model.ServiceRequest{}, err
	}
	out, _, err := c.requests.ListEligible(ctx, repository.EligibleQuery{ProviderID: providerID})
	if err != nil {
		return nil, Internal("list eligible requests", err)
	}
	return out, nil
}

// EligiblePaginated is EligibleForProvider with filters and a zero-based
// page.  Filtering happens before the page is cut.
func (c *Catalog) EligiblePaginated(ctx context.Context, providerID uint64, page, size int, f EligibleFilter) (Page, error) {
	if page < 0 {
		page = 0
	}
	if size < 1 {
		size = defaultPageSize
	}
	if size > maxPageSize {
		size = maxPageSize
	}
	result := Page{Content: []model.ServiceRequest{}, Page: page, Size: size}

	ok, err := c.providerCanBrowse(ctx, providerID)
	if err != nil || !ok {
		return result, err
	}
	items, total, err := c.requests.ListEligible(ctx, repository.EligibleQuery{
		ProviderID: providerID,
		Search:     f.Search,
		DateMin:    f.DateMin,
		DateMax:    f.DateMax,
		Location:   f.Location,
		Limit:      size,
		Offset:     page * size,
	})
	if err != nil {
		return result, Internal("list eligible requests", err)
	}
	result.Content = items
	result.TotalElements = total
	result.TotalPages = int((total + int64(size) - 1) / int64(size))
	return result, nil
}

func (c *Catalog) providerCanBrowse(ctx context.Context, providerID uint64) (bool, error) {
	p, err := c.eligibility.Provider(ctx, providerID)
	if err != nil {
		return false, err
	}
	ok, err := c.eligibility.mayApply(ctx, p)
	if err != nil {
		return false, err
	}
	if !ok {
		c.log.Debug("provider not eligible", zap.Uint64("provider_id", providerID))
		return false, nil
	}
	if p.Provider.Expertise == nil {
		c.log.Debug("provider has no expertise", zap.Uint64("provider_id", providerID))
		return false, nil
	}
	return true, nil
}

// Create builds a request from a property bag.  The status defaults to
// PUBLISHED.
func (c *Catalog) Create(ctx context.Context, bag map[string]any) (*model.ServiceRequest, error) {
	clientID, ok, err := bagUint(bag, "clientId")
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Validation("clientId is required")
	}
	if _, err := c.users.GetByID(ctx, clientID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("client %d", clientID)
		}
		return nil, Internal("load client", err)
	}

	now := c.now().UTC()
	req := &model.ServiceRequest{ClientID: clientID, Status: model.RequestPublished, CreatedAt: now, UpdatedAt: now}
	if err := applyBag(req, bag); err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, Validation("titre is required")
	}
	if req.Category == "" {
		return nil, Validation("categorieService is required")
	}
	if err := c.requests.Create(ctx, req); err != nil {
		return nil, Internal("create request", err)
	}
	c.log.Info("service request created",
		zap.Uint64("request_id", req.ID), zap.Uint64("client_id", clientID), zap.String("category", string(req.Category)))
	return req, nil
}

// Update applies a partial property bag to an existing request.
func (c *Catalog) Update(ctx context.Context, id uint64, bag map[string]any) (*model.ServiceRequest, error) {
	req, err := c.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	prev := req.Status
	if err := applyBag(req, bag); err != nil {
		return nil, err
	}
	if req.Title == "" {
		return nil, Validation("titre cannot be empty")
	}
	if req.Status != prev && !prev.CanTransitionTo(req.Status) {
		return nil, Conflict("cannot move request from %s to %s", prev, req.Status)
	}
	req.UpdatedAt = c.now().UTC()
	if err := c.requests.Update(ctx, req); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("request %d", id)
		}
		return nil, Internal("update request", err)
	}
	return req, nil
}

// ChangeStatus moves a request along its state machine.  Setting the
// current status again is a no-op.
func (c *Catalog) ChangeStatus(ctx context.Context, id uint64, status model.RequestStatus) (*model.ServiceRequest, error) {
	if !status.Valid() {
		return nil, Validation("unknown status %q", status)
	}
	req, err := c.ByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req.Status == status {
		return req, nil
	}
	if !req.Status.CanTransitionTo(status) {
		return nil, Conflict("cannot move request from %s to %s", req.Status, status)
	}
	at := c.now().UTC()
	if err := c.requests.UpdateStatus(ctx, id, status, at); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("request %d", id)
		}
		return nil, Internal("update request status", err)
	}
	c.log.Info("service request status changed",
		zap.Uint64("request_id", id), zap.String("from", string(req.Status)), zap.String("to", string(status)))
	req.Status = status
	req.UpdatedAt = at
	return req, nil
}

// Cancel moves the request to CANCELLED.
func (c *Catalog) Cancel(ctx context.Context, id uint64) error {
	_, err := c.ChangeStatus(ctx, id, model.RequestCancelled)
	return err
}

func (c *Catalog) Statistics(ctx context.Context) (Statistics, error) {
	st, err := c.requests.Statistics(ctx)
	if err != nil {
		return Statistics{}, Internal("request statistics", err)
	}
	out := Statistics{Total: st.Total, ByStatus: st.ByStatus, ByCategory: st.ByCategory}
	if st.AverageBudget.Valid {
		avg, _ := st.AverageBudget.Decimal.Round(2).Float64()
		out.AvgBudget = &avg
	}
	return out, nil
}

// applyBag copies the recognised keys of bag onto req and validates the
// result.
func applyBag(req *model.ServiceRequest, bag map[string]any) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"titre", &req.Title},
		{"description", &req.Description},
		{"typeServiceSpecifique", &req.SpecificType},
		{"servicePersonnalise", &req.CustomLabel},
		{"adresseDepart", &req.DepartureAddress},
		{"adresseArrivee", &req.ArrivalAddress},
		{"creneauHoraire", &req.TimeSlot},
		{"detailsSpecifiques", &req.Details},
	}
	for _, s := range strs {
		v, ok, err := bagString(bag, s.key)
		if err != nil {
			return err
		}
		if ok {
			*s.dst = v
		}
	}
	if v, ok, err := bagString(bag, "categorieService"); err != nil {
		return err
	} else if ok {
		cat := model.ServiceCategory(v)
		if !cat.Valid() {
			return Validation("unknown category %q", v)
		}
		req.Category = cat
	}
	if v, ok, err := bagString(bag, "statut"); err != nil {
		return err
	} else if ok && v != "" {
		st := model.RequestStatus(v)
		if !st.Valid() {
			return Validation("unknown status %q", v)
		}
		req.Status = st
	}
	if d, ok, err := bagDate(bag, "dateSouhaitee"); err != nil {
		return err
	} else if ok {
		req.DesiredDate = d
	}
	if d, ok, err := bagDecimal(bag, "budgetMin"); err != nil {
		return err
	} else if ok {
		req.BudgetMin = d
	}
	if d, ok, err := bagDecimal(bag, "budgetMax"); err != nil {
		return err
	} else if ok {
		req.BudgetMax = d
	}
	if (req.BudgetMin.Valid && req.BudgetMin.Decimal.IsNegative()) || (req.BudgetMax.Valid && req.BudgetMax.Decimal.IsNegative()) {
		return Validation("budget cannot be negative")
	}
	if !req.BudgetConsistent() {
		return Validation("budgetMin must not exceed budgetMax")
	}
	return nil
}
