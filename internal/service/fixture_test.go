package service

import (
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/ecodeli/ecodeli-backend/internal/model"
	"github.com/ecodeli/ecodeli-backend/internal/service/servicetest"
)

var fixedNow = time.Date(2025, 6, 2, 14, 30, 0, 0, time.UTC)

type fixture struct {
	db     *servicetest.DB
	events *servicetest.Publisher
	fs     afero.Fs

	eligibility  *Eligibility
	catalog      *Catalog
	applications *Applications
	dashboard    *Dashboard
	vault        *Vault

	client   model.User
	provider model.User
	request  model.ServiceRequest
}

func category(c model.ServiceCategory) *model.ServiceCategory { return &c }

func rate(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// newFixture seeds a client Alice, a VALID provider with a VALID
// HOME_SERVICES category at 30/h, and a PUBLISHED HOME_SERVICES request.
func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := servicetest.New()
	f := &fixture{db: db, events: servicetest.NewPublisher(), fs: afero.NewMemMapFs()}
	log := zap.NewNop()
	clock := func() time.Time { return fixedNow }

	f.eligibility = NewEligibility(db.Users(), db.Categories())
	f.catalog = NewCatalog(db.Requests(), db.Users(), f.eligibility, log, clock)
	f.applications = NewApplications(f.eligibility, db.Users(), db.Requests(), db.Applications(), f.events, log, clock)
	f.dashboard = NewDashboard(f.eligibility, db.Categories(), db.Applications())
	f.vault = NewVault(f.fs, "uploads/justificatifs", f.eligibility, db.Justifications(), log, clock)

	f.client = db.AddClient("Alice", "Martin")
	f.provider = db.AddProvider("Paul", "Durand", model.ProviderProfile{
		Status:    model.ValidationValid,
		Expertise: category(model.CategoryHomeServices),
	})
	db.AddCategory(f.provider.ID, model.CategoryHomeServices, model.ValidationValid, "30.0")
	f.request = db.AddRequest(model.ServiceRequest{
		ClientID: f.client.ID,
		Title:    "Ménage 2h",
		Category: model.CategoryHomeServices,
		Status:   model.RequestPublished,
	})
	return f
}

func wantKind(t *testing.T, err error, kind Kind) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected %s error, got nil", kind)
	}
	if got := KindOf(err); got != kind {
		t.Fatalf("expected %s error, got %s (%v)", kind, got, err)
	}
}

func wantMessage(t *testing.T, err error, msg string) {
	t.Helper()
	var se *Error
	if !errors.As(err, &se) {
		t.Fatalf("expected *service.Error, got %T (%v)", err, err)
	}
	if se.Message != msg {
		t.Fatalf("expected message %q, got %q", msg, se.Message)
	}
}
