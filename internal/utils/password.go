// Package utils holds small helpers shared by the services.
package utils

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// NormalizeCost returns cost, or bcrypt.DefaultCost when it is out of range.
func NormalizeCost(cost int) int {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return bcrypt.DefaultCost
	}
	return cost
}

// HashPassword returns the bcrypt hash of plain.  bcrypt ignores bytes past
// the 72nd, so longer passwords are refused instead of silently truncated.
func HashPassword(plain string, cost int) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), NormalizeCost(cost))
	if err != nil {
		return "", fmt.Errorf("bcrypt: %w", err)
	}
	return string(b), nil
}

// VerifyPassword reports whether plain matches hash.
func VerifyPassword(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}
