package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Role discriminates the user variants stored in the `users` table.
type Role string

const (
	RoleClient   Role = "CLIENT"
	RoleProvider Role = "PROVIDER"
	RoleAdmin    Role = "ADMIN"
)

// ValidationStatus is shared by provider profiles and provider categories.
type ValidationStatus string

const (
	ValidationPending  ValidationStatus = "PENDING"
	ValidationValid    ValidationStatus = "VALID"
	ValidationRejected ValidationStatus = "REJECTED"
)

// User represents a row of the `users` table.  Providers carry their
// professional data in Provider; it is nil for every other role.
//
// Fields:
//  ID           – primary key identifier.
//  Role         – CLIENT, PROVIDER or ADMIN.
//  FirstName    – given name, used in greetings.
//  LastName     – family name.
//  Email        – unique, lower-cased address.
//  PasswordHash – bcrypt hash, never serialised.
//  CreatedAt    – creation timestamp.
type User struct {
	ID           uint64           `json:"idUtilisateur"`
	Role         Role             `json:"role"`
	FirstName    string           `json:"prenom"`
	LastName     string           `json:"nom"`
	Email        string           `json:"email"`
	PasswordHash string           `json:"-"`
	CreatedAt    time.Time        `json:"dateCreation"`
	Provider     *ProviderProfile `json:"prestataire,omitempty"`
}

// IsProvider reports whether the user is a provider with a loaded profile.
func (u *User) IsProvider() bool {
	return u != nil && u.Role == RoleProvider && u.Provider != nil
}

// ProviderProfile mirrors the `provider_profiles` table (one row per
// provider user).
type ProviderProfile struct {
	Status            ValidationStatus    `json:"statutValidation"`
	Expertise         *ServiceCategory    `json:"domaineExpertise"`
	DefaultHourlyRate decimal.NullDecimal `json:"tarifHoraire"`
	CompanyName       string              `json:"nomEntreprise,omitempty"`
}

// ProviderCategory is the per (provider, category) validation record.  The
// pair is unique.
type ProviderCategory struct {
	ID         uint64              `json:"id"`
	ProviderID uint64              `json:"idPrestataire"`
	Category   ServiceCategory     `json:"categorieService"`
	Status     ValidationStatus    `json:"statutValidation"`
	HourlyRate decimal.NullDecimal `json:"tarifHoraire"`
}
