package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// ApplicationStatus is the state of a provider's bid.  ACCEPTED and REFUSED
// are terminal.
type ApplicationStatus string

const (
	ApplicationPending  ApplicationStatus = "PENDING"
	ApplicationAccepted ApplicationStatus = "ACCEPTED"
	ApplicationRefused  ApplicationStatus = "REFUSED"
)

// Application is a provider's bid on a service request (`applications`
// table).  (ProviderID, RequestID) is unique.
type Application struct {
	ID              uint64            `json:"idCandidature"`
	ProviderID      uint64            `json:"idPrestataire"`
	RequestID       uint64            `json:"idDemande"`
	ProposedPrice   decimal.Decimal   `json:"prixPropose"`
	ProviderMessage string            `json:"messagePrestataire"`
	ProposedDelay   *int              `json:"delaiPropose"`
	Status          ApplicationStatus `json:"statut"`
	CreatedAt       time.Time         `json:"dateCandidature"`
	UpdatedAt       time.Time         `json:"dateModification"`
}
