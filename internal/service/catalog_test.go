package service

import (
	"context"
	"testing"
	"time"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

func ids(rs []model.ServiceRequest) []uint64 {
	out := make([]uint64, len(rs))
	for i, r := range rs {
		out[i] = r.ID
	}
	return out
}

func contains(rs []model.ServiceRequest, id uint64) bool {
	for _, r := range rs {
		if r.ID == id {
			return true
		}
	}
	return false
}

func TestEligibleForProviderFiltersAndOrders(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	other := f.db.AddRequest(model.ServiceRequest{ClientID: f.client.ID, Title: "Fuite", Category: model.CategoryRepairs, Status: model.RequestPublished})
	draft := f.db.AddRequest(model.ServiceRequest{ClientID: f.client.ID, Title: "Brouillon", Category: model.CategoryHomeServices, Status: model.RequestDraft})
	applied := f.db.AddRequest(model.ServiceRequest{ClientID: f.client.ID, Title: "Déjà", Category: model.CategoryHomeServices, Status: model.RequestPublished})
	f.db.AddApplication(model.Application{ProviderID: f.provider.ID, RequestID: applied.ID, Status: model.ApplicationPending})
	newest := f.db.AddRequest(model.ServiceRequest{ClientID: f.client.ID, Title: "Repassage", Category: model.CategoryHomeServices, Status: model.RequestPublished})

	got, err := f.catalog.EligibleForProvider(ctx, f.provider.ID)
	if err != nil {
		t.Fatalf("eligible: %v", err)
	}
	if len(got) != 2 || got[0].ID != newest.ID || got[1].ID != f.request.ID {
		t.Fatalf("expected [%d %d], got %v", newest.ID, f.request.ID, ids(got))
	}
	for _, id := range []uint64{other.ID, draft.ID, applied.ID} {
		if contains(got, id) {
			t.Fatalf("request %d must not be eligible", id)
		}
	}
	for i := 1; i < len(got); i++ {
		if !got[i-1].CreatedAt.After(got[i].CreatedAt) {
			t.Fatalf("not strictly newest first: %v", ids(got))
		}
	}
}

func TestEligibleForProviderIneligibleIsEmpty(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	pending := f.db.AddProvider("P2", "P2", model.ProviderProfile{
		Status:    model.ValidationPending,
		Expertise: category(model.CategoryHomeServices),
	})
	f.db.AddCategory(pending.ID, model.CategoryHomeServices, model.ValidationValid, "20")
	got, err := f.catalog.EligibleForProvider(ctx, pending.ID)
	if err != nil || len(got) != 0 || got == nil {
		t.Fatalf("expected empty non-nil list, got %v %v", got, err)
	}

	noExpertise := f.db.AddProvider("P3", "P3", model.ProviderProfile{Status: model.ValidationValid})
	f.db.AddCategory(noExpertise.ID, model.CategoryHomeServices, model.ValidationValid, "20")
	got, err = f.catalog.EligibleForProvider(ctx, noExpertise.ID)
	if err != nil || len(got) != 0 {
		t.Fatalf("expected empty list, got %v %v", got, err)
	}

	page, err := f.catalog.EligiblePaginated(ctx, pending.ID, 0, 10, EligibleFilter{})
	if err != nil || len(page.Content) != 0 || page.TotalElements != 0 {
		t.Fatalf("expected empty page, got %+v %v", page, err)
	}
}

func TestEligiblePaginated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	day := time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 4; i++ {
		d := day.AddDate(0, 0, i)
		f.db.AddRequest(model.ServiceRequest{
			ClientID: f.client.ID, Title: "Nettoyage vitres", Category: model.CategoryHomeServices,
			Status: model.RequestPublished, DepartureAddress: "12 rue de Lyon, Paris", DesiredDate: &d,
		})
	}

	page, err := f.catalog.EligiblePaginated(ctx, f.provider.ID, 0, 2, EligibleFilter{})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if page.TotalElements != 5 || page.TotalPages != 3 || len(page.Content) != 2 || page.Page != 0 || page.Size != 2 {
		t.Fatalf("unexpected page %+v", page)
	}
	last, err := f.catalog.EligiblePaginated(ctx, f.provider.ID, 2, 2, EligibleFilter{})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if len(last.Content) != 1 || last.Content[0].ID != f.request.ID {
		t.Fatalf("expected oldest request alone on last page, got %v", ids(last.Content))
	}

	filtered, err := f.catalog.EligiblePaginated(ctx, f.provider.ID, 0, 10, EligibleFilter{Search: "VITRES", Location: "paris"})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if filtered.TotalElements != 4 {
		t.Fatalf("expected 4 matches, got %+v", filtered)
	}

	from := day.AddDate(0, 0, 2)
	dated, err := f.catalog.EligiblePaginated(ctx, f.provider.ID, 0, 10, EligibleFilter{DateMin: &from})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if dated.TotalElements != 2 {
		t.Fatalf("expected 2 requests from %v, got %d", from, dated.TotalElements)
	}

	clamped, err := f.catalog.EligiblePaginated(ctx, f.provider.ID, -3, 1000, EligibleFilter{})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if clamped.Page != 0 || clamped.Size != maxPageSize || len(clamped.Content) != 5 {
		t.Fatalf("unexpected clamped page %+v", clamped)
	}
}

func TestCreateRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.catalog.Create(ctx, map[string]any{
		"titre":            "Déménagement",
		"categorieService": "TRANSPORT_DELIVERY",
		"adresseDepart":    "Paris",
		"adresseArrivee":   "Lyon",
		"dateSouhaitee":    "2025-09-14",
		"budgetMin":        100.0,
		"budgetMax":        "250.50",
		"clientId":         float64(f.client.ID),
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if req.ID == 0 || req.Status != model.RequestPublished || req.ClientID != f.client.ID {
		t.Fatalf("unexpected request %+v", req)
	}
	if req.DesiredDate == nil || req.DesiredDate.Format("2006-01-02") != "2025-09-14" {
		t.Fatalf("unexpected desired date %v", req.DesiredDate)
	}
	if req.BudgetMax.Decimal.String() != "250.5" {
		t.Fatalf("unexpected budget max %v", req.BudgetMax)
	}

	stored, err := f.catalog.ByID(ctx, req.ID)
	if err != nil || stored.Title != "Déménagement" {
		t.Fatalf("stored request: %+v %v", stored, err)
	}

	bad := []map[string]any{
		{"categorieService": "REPAIRS", "clientId": float64(f.client.ID)},
		{"titre": "x", "categorieService": "GARDEN", "clientId": float64(f.client.ID)},
		{"titre": "x", "categorieService": "REPAIRS"},
		{"titre": "x", "categorieService": "REPAIRS", "clientId": float64(f.client.ID), "budgetMin": 300.0, "budgetMax": 200.0},
		{"titre": "x", "categorieService": "REPAIRS", "clientId": float64(f.client.ID), "dateSouhaitee": "demain"},
	}
	for i, bag := range bad {
		if _, err := f.catalog.Create(ctx, bag); KindOf(err) != KindValidation {
			t.Fatalf("bag %d: expected VALIDATION, got %v", i, err)
		}
	}

	_, err = f.catalog.Create(ctx, map[string]any{"titre": "x", "categorieService": "REPAIRS", "clientId": 777.0})
	wantKind(t, err, KindNotFound)
}

func TestUpdateRequest(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.catalog.Update(ctx, f.request.ID, map[string]any{"description": "2 pièces", "budgetMax": 60.0})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if req.Title != "Ménage 2h" || req.Description != "2 pièces" || !req.UpdatedAt.Equal(fixedNow) {
		t.Fatalf("unexpected request %+v", req)
	}

	_, err = f.catalog.Update(ctx, 5555, map[string]any{"titre": "x"})
	wantKind(t, err, KindNotFound)

	_, err = f.catalog.Update(ctx, f.request.ID, map[string]any{"budgetMin": 100.0})
	wantKind(t, err, KindValidation)
}

func TestChangeStatus(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req, err := f.catalog.ChangeStatus(ctx, f.request.ID, model.RequestAssigned)
	if err != nil || req.Status != model.RequestAssigned {
		t.Fatalf("assign: %+v %v", req, err)
	}
	if _, err := f.catalog.ChangeStatus(ctx, f.request.ID, model.RequestAssigned); err != nil {
		t.Fatalf("same status must be a no-op: %v", err)
	}
	_, err = f.catalog.ChangeStatus(ctx, f.request.ID, model.RequestPublished)
	wantKind(t, err, KindConflict)
	_, err = f.catalog.ChangeStatus(ctx, f.request.ID, model.RequestStatus("ARCHIVED"))
	wantKind(t, err, KindValidation)

	if err := f.catalog.Cancel(ctx, f.request.ID); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	stored, _ := f.catalog.ByID(ctx, f.request.ID)
	if stored.Status != model.RequestCancelled {
		t.Fatalf("expected CANCELLED, got %s", stored.Status)
	}
	wantKind(t, f.catalog.Cancel(ctx, 31337), KindNotFound)
}

func TestSearchAndListings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.db.AddRequest(model.ServiceRequest{
		ClientID: f.client.ID, Title: "Plomberie", Category: model.CategoryRepairs, Status: model.RequestPublished,
		ArrivalAddress: "Marseille", BudgetMin: rate("50"), BudgetMax: rate("80"),
	})
	f.db.AddRequest(model.ServiceRequest{
		ClientID: f.client.ID, Title: "Cours de maths", Category: model.CategoryEducation, Status: model.RequestDone,
		BudgetMin: rate("20"), BudgetMax: rate("30"),
	})

	got, err := f.catalog.Search(ctx, map[string]any{"localisation": "marseille"})
	if err != nil || len(got) != 1 || got[0].Title != "Plomberie" {
		t.Fatalf("location search: %v %v", got, err)
	}
	got, err = f.catalog.Search(ctx, map[string]any{"budgetMin": 40.0})
	if err != nil || len(got) != 1 || got[0].Title != "Plomberie" {
		t.Fatalf("budget search: %v %v", got, err)
	}
	got, err = f.catalog.Search(ctx, map[string]any{"budgetMax": 25.0, "statut": "DONE"})
	if err != nil || len(got) != 1 || got[0].Category != model.CategoryEducation {
		t.Fatalf("budget/status search: %v %v", got, err)
	}
	got, err = f.catalog.Search(ctx, map[string]any{})
	if err != nil || len(got) != 3 {
		t.Fatalf("empty filter should return everything: %v %v", got, err)
	}
	if _, err := f.catalog.Search(ctx, map[string]any{"categorie": "UNKNOWN"}); KindOf(err) != KindValidation {
		t.Fatalf("expected VALIDATION, got %v", err)
	}

	avail, err := f.catalog.Available(ctx)
	if err != nil || len(avail) != 2 || avail[0].Title != "Plomberie" {
		t.Fatalf("available: %v %v", ids(avail), err)
	}
	byCat, err := f.catalog.ByCategory(ctx, model.CategoryEducation)
	if err != nil || len(byCat) != 1 {
		t.Fatalf("by category: %v %v", byCat, err)
	}
	byClient, err := f.catalog.ByClient(ctx, f.client.ID)
	if err != nil || len(byClient) != 3 {
		t.Fatalf("by client: %v %v", byClient, err)
	}
	_, err = f.catalog.ByID(ctx, 8080)
	wantKind(t, err, KindNotFound)

	st, err := f.catalog.Statistics(ctx)
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if st.Total != 3 || st.ByStatus[model.RequestPublished] != 2 || st.ByCategory[model.CategoryRepairs] != 1 {
		t.Fatalf("unexpected statistics %+v", st)
	}
	if st.AvgBudget == nil || *st.AvgBudget != 55 {
		t.Fatalf("expected average budget 55, got %v", st.AvgBudget)
	}
}
