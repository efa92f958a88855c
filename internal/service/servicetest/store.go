// Package servicetest provides an in-memory implementation of the service
// stores with the same ordering and uniqueness rules as the SQL
// repositories.  It is meant for tests only.
package servicetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/ecodeli/ecodeli-backend/internal/model"
	"github.com/ecodeli/ecodeli-backend/internal/repository"
)

// DB is the shared state behind the store adapters.
type DB struct {
	mu             sync.Mutex
	seq            uint64
	users          map[uint64]model.User
	categories     []model.ProviderCategory
	requests       map[uint64]model.ServiceRequest
	applications   []model.Application
	justifications map[uint64]model.Justification
	clock          time.Time
}

func New() *DB {
	return &DB{
		users:          map[uint64]model.User{},
		requests:       map[uint64]model.ServiceRequest{},
		justifications: map[uint64]model.Justification{},
		clock:          time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (db *DB) nextID() uint64 {
	db.seq++
	return db.seq
}

// tick returns a strictly increasing creation time for seeded rows.
func (db *DB) tick() time.Time {
	db.clock = db.clock.Add(time.Minute)
	return db.clock
}

func (db *DB) Users() *Users                   { return &Users{db} }
func (db *DB) Categories() *Categories         { return &Categories{db} }
func (db *DB) Requests() *Requests             { return &Requests{db} }
func (db *DB) Applications() *Applications     { return &Applications{db} }
func (db *DB) Justifications() *Justifications { return &Justifications{db} }

// AddClient seeds a CLIENT user.
func (db *DB) AddClient(firstName, lastName string) model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	u := model.User{
		ID: db.nextID(), Role: model.RoleClient, FirstName: firstName, LastName: lastName,
		Email: strings.ToLower(firstName) + "@example.com", CreatedAt: db.tick(),
	}
	db.users[u.ID] = u
	return u
}

// AddProvider seeds a PROVIDER user with the given profile.
func (db *DB) AddProvider(firstName, lastName string, profile model.ProviderProfile) model.User {
	db.mu.Lock()
	defer db.mu.Unlock()
	p := profile
	u := model.User{
		ID: db.nextID(), Role: model.RoleProvider, FirstName: firstName, LastName: lastName,
		Email: strings.ToLower(firstName) + "@pro.example.com", CreatedAt: db.tick(), Provider: &p,
	}
	db.users[u.ID] = u
	return u
}

// AddCategory seeds a provider category row.  rate may be empty.
func (db *DB) AddCategory(providerID uint64, category model.ServiceCategory, status model.ValidationStatus, rate string) model.ProviderCategory {
	db.mu.Lock()
	defer db.mu.Unlock()
	pc := model.ProviderCategory{ID: db.nextID(), ProviderID: providerID, Category: category, Status: status}
	if rate != "" {
		pc.HourlyRate = decimal.NewNullDecimal(decimal.RequireFromString(rate))
	}
	db.categories = append(db.categories, pc)
	return pc
}

// AddRequest seeds a service request.  Missing timestamps are filled with
// increasing values so later seeds are newer.
func (db *DB) AddRequest(req model.ServiceRequest) model.ServiceRequest {
	db.mu.Lock()
	defer db.mu.Unlock()
	req.ID = db.nextID()
	if req.CreatedAt.IsZero() {
		req.CreatedAt = db.tick()
	}
	if req.UpdatedAt.IsZero() {
		req.UpdatedAt = req.CreatedAt
	}
	db.requests[req.ID] = req
	return req
}

// AddApplication seeds an application without any precondition check.
func (db *DB) AddApplication(a model.Application) model.Application {
	db.mu.Lock()
	defer db.mu.Unlock()
	a.ID = db.nextID()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = db.tick()
	}
	db.applications = append(db.applications, a)
	return a
}

// CountApplications counts the rows for (providerID, requestID).
func (db *DB) CountApplications(providerID, requestID uint64) int {
	db.mu.Lock()
	defer db.mu.Unlock()
	n := 0
	for _, a := range db.applications {
		if a.ProviderID == providerID && a.RequestID == requestID {
			n++
		}
	}
	return n
}

type Users struct{ db *DB }

func (s *Users) GetByID(_ context.Context, id uint64) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u, ok := s.db.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if u.Provider != nil {
		p := *u.Provider
		u.Provider = &p
	}
	return &u, nil
}

func (s *Users) Create(_ context.Context, u *model.User) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u.Email = strings.ToLower(strings.TrimSpace(u.Email))
	for _, existing := range s.db.users {
		if existing.Email == u.Email {
			return repository.ErrEmailExists
		}
	}
	u.ID = s.db.nextID()
	cp := *u
	if u.Provider != nil {
		p := *u.Provider
		cp.Provider = &p
	}
	s.db.users[u.ID] = cp
	return nil
}

type Categories struct{ db *DB }

func (s *Categories) CountValidated(_ context.Context, providerID uint64) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.countValidated(providerID), nil
}

func (db *DB) countValidated(providerID uint64) int {
	n := 0
	for _, pc := range db.categories {
		if pc.ProviderID == providerID && pc.Status == model.ValidationValid {
			n++
		}
	}
	return n
}

func (s *Categories) Find(_ context.Context, providerID uint64, category model.ServiceCategory) (*model.ProviderCategory, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, pc := range s.db.categories {
		if pc.ProviderID == providerID && pc.Category == category {
			cp := pc
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s *Categories) ListByProvider(_ context.Context, providerID uint64) ([]model.ProviderCategory, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.ProviderCategory{}
	for _, pc := range s.db.categories {
		if pc.ProviderID == providerID {
			out = append(out, pc)
		}
	}
	return out, nil
}

type Requests struct{ db *DB }

func (s *Requests) Create(_ context.Context, req *model.ServiceRequest) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	req.ID = s.db.nextID()
	s.db.requests[req.ID] = *req
	return nil
}

func (s *Requests) Update(_ context.Context, req *model.ServiceRequest) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.requests[req.ID]; !ok {
		return repository.ErrNotFound
	}
	s.db.requests[req.ID] = *req
	return nil
}

func (s *Requests) UpdateStatus(_ context.Context, id uint64, status model.RequestStatus, at time.Time) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	req, ok := s.db.requests[id]
	if !ok {
		return repository.ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = at
	s.db.requests[id] = req
	return nil
}

func (s *Requests) GetByID(_ context.Context, id uint64) (*model.ServiceRequest, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	req, ok := s.db.requests[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &req, nil
}

func (s *Requests) List(_ context.Context) ([]model.ServiceRequest, error) {
	out := s.filter(func(model.ServiceRequest) bool { return true })
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Requests) ListByClient(_ context.Context, clientID uint64) ([]model.ServiceRequest, error) {
	return newestFirst(s.filter(func(r model.ServiceRequest) bool { return r.ClientID == clientID })), nil
}

func (s *Requests) ListByCategory(_ context.Context, category model.ServiceCategory) ([]model.ServiceRequest, error) {
	return newestFirst(s.filter(func(r model.ServiceRequest) bool { return r.Category == category })), nil
}

func (s *Requests) ListByStatus(_ context.Context, status model.RequestStatus) ([]model.ServiceRequest, error) {
	return newestFirst(s.filter(func(r model.ServiceRequest) bool { return r.Status == status })), nil
}

func (s *Requests) Search(_ context.Context, f repository.RequestFilter) ([]model.ServiceRequest, error) {
	return newestFirst(s.filter(func(r model.ServiceRequest) bool {
		if !matchCommon(r, f.Search, f.Location, f.DateMin, f.DateMax) {
			return false
		}
		if f.Category != "" && r.Category != f.Category {
			return false
		}
		if f.Status != "" && r.Status != f.Status {
			return false
		}
		if f.BudgetMin.Valid && (!r.BudgetMax.Valid || r.BudgetMax.Decimal.LessThan(f.BudgetMin.Decimal)) {
			return false
		}
		if f.BudgetMax.Valid && (!r.BudgetMin.Valid || r.BudgetMin.Decimal.GreaterThan(f.BudgetMax.Decimal)) {
			return false
		}
		return true
	})), nil
}

func (s *Requests) ListEligible(_ context.Context, q repository.EligibleQuery) ([]model.ServiceRequest, int64, error) {
	s.db.mu.Lock()
	u, ok := s.db.users[q.ProviderID]
	applied := map[uint64]bool{}
	for _, a := range s.db.applications {
		if a.ProviderID == q.ProviderID {
			applied[a.RequestID] = true
		}
	}
	validCats := s.db.countValidated(q.ProviderID)
	s.db.mu.Unlock()

	if !ok || u.Provider == nil || u.Provider.Status != model.ValidationValid || u.Provider.Expertise == nil || validCats == 0 {
		return []model.ServiceRequest{}, 0, nil
	}
	expertise := *u.Provider.Expertise
	all := newestFirst(s.filter(func(r model.ServiceRequest) bool {
		return r.Status == model.RequestPublished && r.Category == expertise && !applied[r.ID] &&
			matchCommon(r, q.Search, q.Location, q.DateMin, q.DateMax)
	}))
	total := int64(len(all))
	if q.Limit <= 0 {
		return all, total, nil
	}
	if q.Offset >= len(all) {
		return []model.ServiceRequest{}, total, nil
	}
	end := q.Offset + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return all[q.Offset:end], total, nil
}

func (s *Requests) Statistics(_ context.Context) (repository.RequestStats, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	st := repository.RequestStats{
		ByStatus:   map[model.RequestStatus]int64{},
		ByCategory: map[model.ServiceCategory]int64{},
	}
	sum := decimal.Zero
	n := 0
	for _, r := range s.db.requests {
		st.Total++
		st.ByStatus[r.Status]++
		st.ByCategory[r.Category]++
		if r.BudgetMax.Valid {
			sum = sum.Add(r.BudgetMax.Decimal)
			n++
		}
	}
	if n > 0 {
		st.AverageBudget = decimal.NewNullDecimal(sum.Div(decimal.NewFromInt(int64(n))))
	}
	return st, nil
}

func (s *Requests) filter(keep func(model.ServiceRequest) bool) []model.ServiceRequest {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.ServiceRequest{}
	for _, r := range s.db.requests {
		if keep(r) {
			out = append(out, r)
		}
	}
	return out
}

func newestFirst(rs []model.ServiceRequest) []model.ServiceRequest {
	sort.Slice(rs, func(i, j int) bool {
		if !rs[i].CreatedAt.Equal(rs[j].CreatedAt) {
			return rs[i].CreatedAt.After(rs[j].CreatedAt)
		}
		return rs[i].ID > rs[j].ID
	})
	return rs
}

func matchCommon(r model.ServiceRequest, search, location string, dateMin, dateMax *time.Time) bool {
	if s := strings.ToLower(strings.TrimSpace(search)); s != "" {
		if !strings.Contains(strings.ToLower(r.Title), s) && !strings.Contains(strings.ToLower(r.Description), s) {
			return false
		}
	}
	if l := strings.ToLower(strings.TrimSpace(location)); l != "" {
		if !strings.Contains(strings.ToLower(r.DepartureAddress), l) && !strings.Contains(strings.ToLower(r.ArrivalAddress), l) {
			return false
		}
	}
	if dateMin != nil && (r.DesiredDate == nil || r.DesiredDate.Before(*dateMin)) {
		return false
	}
	if dateMax != nil && (r.DesiredDate == nil || r.DesiredDate.After(*dateMax)) {
		return false
	}
	return true
}

type Applications struct{ db *DB }

func (s *Applications) Create(_ context.Context, a *model.Application) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, existing := range s.db.applications {
		if existing.ProviderID == a.ProviderID && existing.RequestID == a.RequestID {
			return repository.ErrDuplicate
		}
	}
	a.ID = s.db.nextID()
	s.db.applications = append(s.db.applications, *a)
	return nil
}

func (s *Applications) Exists(_ context.Context, providerID, requestID uint64) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, a := range s.db.applications {
		if a.ProviderID == providerID && a.RequestID == requestID {
			return true, nil
		}
	}
	return false, nil
}

func (s *Applications) ListByProvider(_ context.Context, providerID uint64) ([]model.Application, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Application{}
	for _, a := range s.db.applications {
		if a.ProviderID == providerID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Applications) CountByStatus(_ context.Context, providerID uint64) (map[model.ApplicationStatus]int64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := map[model.ApplicationStatus]int64{}
	for _, a := range s.db.applications {
		if a.ProviderID == providerID {
			out[a.Status]++
		}
	}
	return out, nil
}

type Justifications struct{ db *DB }

func (s *Justifications) Create(_ context.Context, j *model.Justification) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	j.ID = s.db.nextID()
	s.db.justifications[j.ID] = *j
	return nil
}

func (s *Justifications) GetByID(_ context.Context, id uint64) (*model.Justification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	j, ok := s.db.justifications[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &j, nil
}

func (s *Justifications) ListByUser(_ context.Context, userID uint64) ([]model.Justification, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	out := []model.Justification{}
	for _, j := range s.db.justifications {
		if j.UserID == userID {
			out = append(out, j)
		}
	}
	sort.Slice(out, func(i, k int) bool { return out[i].ID < out[k].ID })
	return out, nil
}

func (s *Justifications) Delete(_ context.Context, id uint64) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if _, ok := s.db.justifications[id]; !ok {
		return repository.ErrNotFound
	}
	delete(s.db.justifications, id)
	return nil
}
