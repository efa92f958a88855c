package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// RequestStatus is the lifecycle state of a service request.
type RequestStatus string

const (
	RequestDraft      RequestStatus = "DRAFT"
	RequestPublished  RequestStatus = "PUBLISHED"
	RequestAssigned   RequestStatus = "ASSIGNED"
	RequestInProgress RequestStatus = "IN_PROGRESS"
	RequestDone       RequestStatus = "DONE"
	RequestCancelled  RequestStatus = "CANCELLED"
)

// RequestStatuses lists every request status.
var RequestStatuses = []RequestStatus{
	RequestDraft, RequestPublished, RequestAssigned, RequestInProgress, RequestDone, RequestCancelled,
}

// Valid reports whether s is a known status.
func (s RequestStatus) Valid() bool {
	for _, v := range RequestStatuses {
		if v == s {
			return true
		}
	}
	return false
}

// requestTransitions is the request state machine.  Terminal states have no
// entry.
var requestTransitions = map[RequestStatus][]RequestStatus{
	RequestDraft:      {RequestPublished, RequestCancelled},
	RequestPublished:  {RequestAssigned, RequestCancelled},
	RequestAssigned:   {RequestInProgress, RequestCancelled},
	RequestInProgress: {RequestDone},
}

// CanTransitionTo reports whether a request in state s may move to next.
func (s RequestStatus) CanTransitionTo(next RequestStatus) bool {
	for _, v := range requestTransitions[s] {
		if v == next {
			return true
		}
	}
	return false
}

// AcceptsApplications reports whether providers may apply to a request in
// this state.
func (s RequestStatus) AcceptsApplications() bool { return s == RequestPublished }

// ServiceRequest represents a job published by a client (`service_requests`
// table).  Optional text columns are empty strings when unset.
type ServiceRequest struct {
	ID               uint64              `json:"idDemande"`
	ClientID         uint64              `json:"idClient"`
	Title            string              `json:"titre"`
	Description      string              `json:"description"`
	Category         ServiceCategory     `json:"categorieService"`
	SpecificType     string              `json:"typeServiceSpecifique"`
	CustomLabel      string              `json:"servicePersonnalise"`
	DepartureAddress string              `json:"adresseDepart"`
	ArrivalAddress   string              `json:"adresseArrivee"`
	DesiredDate      *time.Time          `json:"dateSouhaitee"`
	TimeSlot         string              `json:"creneauHoraire"`
	BudgetMin        decimal.NullDecimal `json:"budgetMin"`
	BudgetMax        decimal.NullDecimal `json:"budgetMax"`
	Details          string              `json:"detailsSpecifiques"`
	Status           RequestStatus       `json:"statut"`
	CreatedAt        time.Time           `json:"dateCreation"`
	UpdatedAt        time.Time           `json:"dateModification"`
}

// BudgetConsistent reports whether budgetMin <= budgetMax when both are set.
func (r *ServiceRequest) BudgetConsistent() bool {
	if !r.BudgetMin.Valid || !r.BudgetMax.Valid {
		return true
	}
	return r.BudgetMin.Decimal.LessThanOrEqual(r.BudgetMax.Decimal)
}
