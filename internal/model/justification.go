package model

import "time"

// Justification is an identity or qualification document uploaded by a
// provider (`justifications` table).  FilePath points into the configured
// upload directory.
type Justification struct {
	ID               uint64    `json:"idJustificatif"`
	UserID           uint64    `json:"idUtilisateur"`
	FilePath         string    `json:"cheminFichier"`
	TypeLabel        string    `json:"typeJustificatif"`
	Comment          string    `json:"commentaire"`
	ValidatedByAdmin bool      `json:"validationParAd"`
	EffectiveFrom    time.Time `json:"dateDebut"`
}
