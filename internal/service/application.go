package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/model"
	"github.com/ecodeli/ecodeli-backend/internal/queue"
	"github.com/ecodeli/ecodeli-backend/internal/repository"
)

// Applications creates provider applications on published requests.
type Applications struct {
	eligibility *Eligibility
	users       UserStore
	requests    RequestStore
	apps        ApplicationStore
	events      EventPublisher
	log         *zap.Logger
	now         func() time.Time
}

func NewApplications(eligibility *Eligibility, users UserStore, requests RequestStore, apps ApplicationStore,
	events EventPublisher, log *zap.Logger, now func() time.Time) *Applications {
	if now == nil {
		now = time.Now
	}
	return &Applications{eligibility: eligibility, users: users, requests: requests, apps: apps, events: events, log: log, now: now}
}

// Create runs the precondition chain and stores a PENDING application whose
// price is the provider's resolved hourly rate.  The first failing check
// decides the error.
func (a *Applications) Create(ctx context.Context, providerID, requestID uint64, note string, delay *int) (*model.Application, error) {
	provider, err := a.eligibility.Provider(ctx, providerID)
	if err != nil {
		return nil, err
	}
	ok, err := a.eligibility.mayApply(ctx, provider)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, Forbidden("provider not validated")
	}

	req, err := a.requests.GetByID(ctx, requestID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, NotFound("request")
		}
		return nil, Internal("load request", err)
	}
	if !req.Status.AcceptsApplications() {
		return nil, Conflict("request closed")
	}

	exists, err := a.apps.Exists(ctx, providerID, requestID)
	if err != nil {
		return nil, Internal("check existing application", err)
	}
	if exists {
		return nil, Conflict("already applied")
	}

	category := tariffCategory(provider, req)
	rate, err := a.eligibility.resolveHourlyRate(ctx, provider, category)
	if err != nil {
		return nil, err
	}
	if !rate.Valid || !rate.Decimal.IsPositive() {
		return nil, PreconditionFailed("no tariff")
	}
	if delay != nil && *delay < 0 {
		return nil, Validation("delaiPropose cannot be negative")
	}

	client, err := a.users.GetByID(ctx, req.ClientID)
	if err != nil {
		return nil, Internal("load request client", err)
	}

	now := a.now().UTC()
	app := &model.Application{
		ProviderID:      providerID,
		RequestID:       requestID,
		ProposedPrice:   rate.Decimal,
		ProviderMessage: ApplicationMessage(client.FirstName, req.Title, rate.Decimal, category, note, provider),
		ProposedDelay:   delay,
		Status:          model.ApplicationPending,
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	if err := a.apps.Create(ctx, app); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, Conflict("already applied")
		}
		return nil, Internal("store application", err)
	}
	a.log.Info("application created",
		zap.Uint64("application_id", app.ID), zap.Uint64("provider_id", providerID), zap.Uint64("request_id", requestID))

	a.publish(ctx, queue.ApplicationCreatedEvent{
		ApplicationID: app.ID,
		ProviderID:    providerID,
		RequestID:     requestID,
		ClientID:      req.ClientID,
		RequestTitle:  req.Title,
		Category:      string(req.Category),
		ProposedPrice: app.ProposedPrice.StringFixed(2),
		ProposedDelay: delay,
		CreatedAt:     now.Format(time.RFC3339),
	})
	return app, nil
}

func (a *Applications) publish(ctx context.Context, ev queue.ApplicationCreatedEvent) {
	if a.events == nil {
		return
	}
	ctx = context.WithoutCancel(ctx)
	go func() {
		ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
		defer cancel()
		if err := a.events.Publish(ctx, queue.ApplicationCreatedQueue, ev); err != nil {
			a.log.Warn("publish application.created failed", zap.Uint64("application_id", ev.ApplicationID), zap.Error(err))
		}
	}()
}

// tariffCategory is the provider's expertise, or the request category for
// providers that have none.
func tariffCategory(provider *model.User, req *model.ServiceRequest) model.ServiceCategory {
	if provider.Provider.Expertise != nil {
		return *provider.Provider.Expertise
	}
	return req.Category
}

// ApplicationMessage renders the text sent to the client with an
// application.  The rate is printed truncated toward zero.
func ApplicationMessage(clientFirstName, title string, rate decimal.Decimal, category model.ServiceCategory, note string, provider *model.User) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Bonjour %s,\n\n", clientFirstName)
	fmt.Fprintf(&b, "Je suis disponible pour votre demande \"%s\".\n", title)
	fmt.Fprintf(&b, "Mon tarif est de %d€/h pour les services de %s.\n\n", rate.IntPart(), strings.ToLower(category.Label()))
	if n := strings.TrimSpace(note); n != "" {
		b.WriteString(n)
		b.WriteString("\n\n")
	}
	fmt.Fprintf(&b, "Cordialement,\n%s %s", provider.FirstName, provider.LastName)
	if provider.Provider != nil {
		if company := strings.TrimSpace(provider.Provider.CompanyName); company != "" {
			b.WriteString("\n")
			b.WriteString(company)
		}
	}
	return b.String()
}
