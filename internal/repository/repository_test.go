package repository

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/ecodeli/ecodeli-backend/internal/model"
)

// sqliteSchema mirrors database/schema.sql with the types SQLite understands.
var sqliteSchema = []string{
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		role TEXT NOT NULL DEFAULT 'CLIENT',
		first_name TEXT NOT NULL,
		last_name TEXT NOT NULL,
		email TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		created_at DATETIME NOT NULL)`,
	`CREATE TABLE provider_profiles (
		user_id INTEGER PRIMARY KEY,
		status TEXT NOT NULL DEFAULT 'PENDING',
		expertise TEXT NULL,
		default_hourly_rate DECIMAL(10,2) NULL,
		company_name TEXT NULL)`,
	`CREATE TABLE provider_categories (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_id INTEGER NOT NULL,
		category TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		hourly_rate DECIMAL(10,2) NULL,
		UNIQUE (provider_id, category))`,
	`CREATE TABLE service_requests (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		client_id INTEGER NOT NULL,
		title TEXT NOT NULL,
		description TEXT NOT NULL,
		category TEXT NOT NULL,
		specific_type TEXT NULL,
		custom_label TEXT NULL,
		departure_address TEXT NULL,
		arrival_address TEXT NULL,
		desired_date DATETIME NULL,
		time_slot TEXT NULL,
		budget_min DECIMAL(10,2) NULL,
		budget_max DECIMAL(10,2) NULL,
		details TEXT NULL,
		status TEXT NOT NULL DEFAULT 'PUBLISHED',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL)`,
	`CREATE TABLE applications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		provider_id INTEGER NOT NULL,
		request_id INTEGER NOT NULL,
		proposed_price DECIMAL(10,2) NOT NULL,
		provider_message TEXT NOT NULL,
		proposed_delay INTEGER NULL,
		status TEXT NOT NULL DEFAULT 'PENDING',
		created_at DATETIME NOT NULL,
		updated_at DATETIME NOT NULL,
		UNIQUE (provider_id, request_id))`,
	`CREATE TABLE justifications (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		user_id INTEGER NOT NULL,
		file_path TEXT NOT NULL,
		type_label TEXT NOT NULL,
		comment TEXT NOT NULL,
		validated_by_admin BOOLEAN NOT NULL DEFAULT 0,
		effective_from DATETIME NOT NULL)`,
}

var base = time.Date(2025, 4, 1, 8, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// every connection of :memory: is its own database
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = db.Close() })
	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			t.Fatalf("schema: %v", err)
		}
	}
	return db
}

func seedProvider(t *testing.T, db *sql.DB, email string, status model.ValidationStatus, expertise model.ServiceCategory) uint64 {
	t.Helper()
	u := &model.User{
		Role:      model.RoleProvider,
		FirstName: "Paul",
		LastName:  "Durand",
		Email:     email,
		CreatedAt: base,
		Provider: &model.ProviderProfile{
			Status:            status,
			Expertise:         &expertise,
			DefaultHourlyRate: decimal.NewNullDecimal(decimal.RequireFromString("25")),
		},
	}
	if err := NewUserRepo(db).Create(context.Background(), u); err != nil {
		t.Fatalf("create provider: %v", err)
	}
	return u.ID
}

func seedCategory(t *testing.T, db *sql.DB, providerID uint64, cat model.ServiceCategory, status model.ValidationStatus) {
	t.Helper()
	if _, err := db.Exec("INSERT INTO provider_categories (provider_id, category, status, hourly_rate) VALUES (?, ?, ?, ?)",
		providerID, string(cat), string(status), "30.00"); err != nil {
		t.Fatalf("seed category: %v", err)
	}
}

func seedRequest(t *testing.T, db *sql.DB, req model.ServiceRequest, minutes int) model.ServiceRequest {
	t.Helper()
	if req.ClientID == 0 {
		req.ClientID = 1
	}
	if req.Status == "" {
		req.Status = model.RequestPublished
	}
	req.CreatedAt = base.Add(time.Duration(minutes) * time.Minute)
	req.UpdatedAt = req.CreatedAt
	if err := NewRequestRepo(db).Create(context.Background(), &req); err != nil {
		t.Fatalf("create request: %v", err)
	}
	return req
}

func dec(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

func TestUserCreateAndGetProvider(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	users := NewUserRepo(db)

	id := seedProvider(t, db, "Paul@Example.com", model.ValidationValid, model.CategoryHomeServices)
	got, err := users.GetByID(ctx, id)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Email != "paul@example.com" {
		t.Fatalf("email must be normalised, got %q", got.Email)
	}
	if !got.IsProvider() || got.Provider.Status != model.ValidationValid {
		t.Fatalf("expected a valid provider, got %+v", got.Provider)
	}
	if got.Provider.Expertise == nil || *got.Provider.Expertise != model.CategoryHomeServices {
		t.Fatalf("unexpected expertise %v", got.Provider.Expertise)
	}
	if !got.Provider.DefaultHourlyRate.Valid || !got.Provider.DefaultHourlyRate.Decimal.Equal(decimal.NewFromInt(25)) {
		t.Fatalf("unexpected default rate %v", got.Provider.DefaultHourlyRate)
	}

	dup := &model.User{Role: model.RoleClient, FirstName: "X", LastName: "Y", Email: "paul@example.com", PasswordHash: "h"}
	if err := users.Create(ctx, dup); !errors.Is(err, ErrEmailExists) {
		t.Fatalf("expected ErrEmailExists, got %v", err)
	}

	if _, err := users.GetByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListEligible(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pid := seedProvider(t, db, "p@example.com", model.ValidationValid, model.CategoryHomeServices)
	seedCategory(t, db, pid, model.CategoryHomeServices, model.ValidationValid)

	oldest := seedRequest(t, db, model.ServiceRequest{Title: "Ménage", Description: "2h", Category: model.CategoryHomeServices, DepartureAddress: "Lyon"}, 1)
	applied := seedRequest(t, db, model.ServiceRequest{Title: "Repassage", Description: "linge", Category: model.CategoryHomeServices}, 2)
	seedRequest(t, db, model.ServiceRequest{Title: "Brouillon", Description: "", Category: model.CategoryHomeServices, Status: model.RequestDraft}, 3)
	seedRequest(t, db, model.ServiceRequest{Title: "Déménagement", Description: "", Category: model.CategoryTransportDelivery}, 4)
	newest := seedRequest(t, db, model.ServiceRequest{Title: "Jardinage", Description: "tonte", Category: model.CategoryHomeServices, ArrivalAddress: "Paris"}, 5)

	apps := NewApplicationRepo(db)
	if err := apps.Create(ctx, &model.Application{
		ProviderID: pid, RequestID: applied.ID, ProposedPrice: decimal.NewFromInt(30),
		ProviderMessage: "hello", Status: model.ApplicationPending, CreatedAt: base, UpdatedAt: base,
	}); err != nil {
		t.Fatalf("create application: %v", err)
	}

	requests := NewRequestRepo(db)
	items, total, err := requests.ListEligible(ctx, EligibleQuery{ProviderID: pid})
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if total != 2 || len(items) != 2 {
		t.Fatalf("expected 2 eligible requests, got total=%d len=%d", total, len(items))
	}
	if items[0].ID != newest.ID || items[1].ID != oldest.ID {
		t.Fatalf("expected newest first, got %d then %d", items[0].ID, items[1].ID)
	}

	page, total, err := requests.ListEligible(ctx, EligibleQuery{ProviderID: pid, Limit: 1, Offset: 1})
	if err != nil {
		t.Fatalf("page: %v", err)
	}
	if total != 2 || len(page) != 1 || page[0].ID != oldest.ID {
		t.Fatalf("unexpected second page: total=%d %+v", total, page)
	}

	byLocation, total, err := requests.ListEligible(ctx, EligibleQuery{ProviderID: pid, Location: "paris"})
	if err != nil {
		t.Fatalf("location: %v", err)
	}
	if total != 1 || byLocation[0].ID != newest.ID {
		t.Fatalf("location filter must match the arrival address, got %+v", byLocation)
	}
}

func TestListEligibleNeedsValidatedCategory(t *testing.T) {
	db := openTestDB(t)
	pid := seedProvider(t, db, "p@example.com", model.ValidationValid, model.CategoryHomeServices)
	seedCategory(t, db, pid, model.CategoryHomeServices, model.ValidationPending)
	seedRequest(t, db, model.ServiceRequest{Title: "Ménage", Category: model.CategoryHomeServices}, 1)

	items, total, err := NewRequestRepo(db).ListEligible(context.Background(), EligibleQuery{ProviderID: pid})
	if err != nil {
		t.Fatalf("list eligible: %v", err)
	}
	if total != 0 || len(items) != 0 {
		t.Fatalf("provider without a validated category must see nothing, got %d", total)
	}
}

func TestSearchFilters(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	day := func(d int) *time.Time {
		v := time.Date(2025, 5, d, 0, 0, 0, 0, time.UTC)
		return &v
	}
	cheap := seedRequest(t, db, model.ServiceRequest{
		Title: "Courses", Description: "supermarché", Category: model.CategoryErrands,
		DesiredDate: day(10), BudgetMin: dec("10"), BudgetMax: dec("20"),
	}, 1)
	pricey := seedRequest(t, db, model.ServiceRequest{
		Title: "Cours de maths", Description: "lycée", Category: model.CategoryEducation,
		DesiredDate: day(20), BudgetMin: dec("40"), BudgetMax: dec("80"),
	}, 2)

	requests := NewRequestRepo(db)
	got, err := requests.Search(ctx, RequestFilter{BudgetMin: dec("50")})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != pricey.ID {
		t.Fatalf("budgetMin must keep requests whose max reaches it, got %+v", got)
	}

	got, err = requests.Search(ctx, RequestFilter{DateMax: day(15)})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != cheap.ID {
		t.Fatalf("dateMax filter failed, got %+v", got)
	}

	got, err = requests.Search(ctx, RequestFilter{Search: "MATHS"})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].ID != pricey.ID {
		t.Fatalf("free text must be case-insensitive, got %+v", got)
	}

	got, err = requests.Search(ctx, RequestFilter{})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 || got[0].ID != pricey.ID {
		t.Fatalf("unfiltered search must return all, newest first, got %+v", got)
	}
}

func TestRequestUpdateAndStatus(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	requests := NewRequestRepo(db)
	req := seedRequest(t, db, model.ServiceRequest{Title: "Ménage", Category: model.CategoryHomeServices}, 1)

	req.Title = "Grand ménage"
	req.BudgetMax = dec("90.50")
	if err := requests.Update(ctx, &req); err != nil {
		t.Fatalf("update: %v", err)
	}
	if err := requests.UpdateStatus(ctx, req.ID, model.RequestAssigned, base.Add(time.Hour)); err != nil {
		t.Fatalf("update status: %v", err)
	}
	got, err := requests.GetByID(ctx, req.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Title != "Grand ménage" || got.Status != model.RequestAssigned {
		t.Fatalf("unexpected row %+v", got)
	}
	if !got.BudgetMax.Decimal.Equal(decimal.RequireFromString("90.5")) {
		t.Fatalf("unexpected budget %v", got.BudgetMax)
	}

	if err := requests.UpdateStatus(ctx, 999, model.RequestDone, base); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := requests.GetByID(ctx, 999); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRequestStatistics(t *testing.T) {
	db := openTestDB(t)
	seedRequest(t, db, model.ServiceRequest{Title: "a", Category: model.CategoryErrands, BudgetMax: dec("20")}, 1)
	seedRequest(t, db, model.ServiceRequest{Title: "b", Category: model.CategoryErrands, BudgetMax: dec("40"), Status: model.RequestDone}, 2)
	seedRequest(t, db, model.ServiceRequest{Title: "c", Category: model.CategoryRepairs}, 3)

	st, err := NewRequestRepo(db).Statistics(context.Background())
	if err != nil {
		t.Fatalf("statistics: %v", err)
	}
	if st.Total != 3 || st.ByStatus[model.RequestPublished] != 2 || st.ByStatus[model.RequestDone] != 1 {
		t.Fatalf("unexpected status counts %+v", st)
	}
	if st.ByCategory[model.CategoryErrands] != 2 || st.ByCategory[model.CategoryRepairs] != 1 {
		t.Fatalf("unexpected category counts %+v", st.ByCategory)
	}
	if !st.AverageBudget.Valid || !st.AverageBudget.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("average must ignore missing budgets, got %v", st.AverageBudget)
	}
}

func TestApplicationUniquePerProviderAndRequest(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	apps := NewApplicationRepo(db)
	delay := 3
	a := &model.Application{
		ProviderID: 7, RequestID: 9, ProposedPrice: decimal.NewFromInt(30), ProviderMessage: "m",
		ProposedDelay: &delay, Status: model.ApplicationPending, CreatedAt: base, UpdatedAt: base,
	}
	if err := apps.Create(ctx, a); err != nil {
		t.Fatalf("create: %v", err)
	}
	again := *a
	again.ID = 0
	if err := apps.Create(ctx, &again); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}

	ok, err := apps.Exists(ctx, 7, 9)
	if err != nil || !ok {
		t.Fatalf("expected existing application, got %v %v", ok, err)
	}
	list, err := apps.ListByProvider(ctx, 7)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ProposedDelay == nil || *list[0].ProposedDelay != 3 {
		t.Fatalf("unexpected list %+v", list)
	}
	counts, err := apps.CountByStatus(ctx, 7)
	if err != nil {
		t.Fatalf("count: %v", err)
	}
	if counts[model.ApplicationPending] != 1 {
		t.Fatalf("unexpected counts %v", counts)
	}
}

func TestProviderCategories(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	pid := seedProvider(t, db, "p@example.com", model.ValidationValid, model.CategoryRepairs)
	seedCategory(t, db, pid, model.CategoryRepairs, model.ValidationValid)
	seedCategory(t, db, pid, model.CategoryErrands, model.ValidationPending)

	repo := NewProviderCategoryRepo(db)
	n, err := repo.CountValidated(ctx, pid)
	if err != nil || n != 1 {
		t.Fatalf("expected one validated category, got %d %v", n, err)
	}
	pc, err := repo.Find(ctx, pid, model.CategoryRepairs)
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if !pc.HourlyRate.Valid || !pc.HourlyRate.Decimal.Equal(decimal.NewFromInt(30)) {
		t.Fatalf("unexpected rate %v", pc.HourlyRate)
	}
	if _, err := repo.Find(ctx, pid, model.CategoryEducation); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	all, err := repo.ListByProvider(ctx, pid)
	if err != nil || len(all) != 2 {
		t.Fatalf("expected 2 categories, got %d %v", len(all), err)
	}
}

func TestJustifications(t *testing.T) {
	db := openTestDB(t)
	ctx := context.Background()
	repo := NewJustificationRepo(db)
	j := &model.Justification{UserID: 4, FilePath: "uploads/justificatif_4_1.pdf", TypeLabel: "diplome.pdf", Comment: "diplôme", EffectiveFrom: base}
	if err := repo.Create(ctx, j); err != nil {
		t.Fatalf("create: %v", err)
	}
	list, err := repo.ListByUser(ctx, 4)
	if err != nil || len(list) != 1 || list[0].ValidatedByAdmin {
		t.Fatalf("unexpected list %+v %v", list, err)
	}
	if err := repo.Delete(ctx, j.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(ctx, j.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
