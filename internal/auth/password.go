package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultBcryptCost = 12
	minPasswordLength = 8
	// bcrypt ignores everything past 72 bytes.
	maxPasswordBytes = 72
)

const (
	ruleMinLength = "Password must be at least 8 characters long"
	ruleUpper     = "Password must contain at least one uppercase letter"
	ruleLower     = "Password must contain at least one lowercase letter"
	ruleDigit     = "Password must contain at least one number"
	ruleMaxLength = "Password must be at most 72 bytes long"
)

type PasswordHasher struct {
	cost      int
	dummyHash []byte
}

func NewPasswordHasher(cost int) (*PasswordHasher, error) {
	if cost == 0 {
		cost = DefaultBcryptCost
	}
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		return nil, fmt.Errorf("bcrypt cost %d out of range", cost)
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("timing-equalizer"), cost)
	if err != nil {
		return nil, fmt.Errorf("prepare dummy hash: %w", err)
	}
	return &PasswordHasher{cost: cost, dummyHash: dummy}, nil
}

func (h *PasswordHasher) Hash(plain string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", NewValidationError("Invalid password format", ruleMaxLength)
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func (h *PasswordHasher) Matches(hash, plain string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) == nil
}

// Burn runs a comparison against a fixed hash so that a login for an unknown
// account costs the same as one for a known account.
func (h *PasswordHasher) Burn(plain string) {
	_ = bcrypt.CompareHashAndPassword(h.dummyHash, []byte(plain))
}

// CheckPasswordComplexity returns the rules plain fails, in a fixed order.
func CheckPasswordComplexity(plain string) []string {
	var upper, lower, digit bool
	for _, r := range plain {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}

	var failures []string
	if len([]rune(plain)) < minPasswordLength {
		failures = append(failures, ruleMinLength)
	}
	if !upper {
		failures = append(failures, ruleUpper)
	}
	if !lower {
		failures = append(failures, ruleLower)
	}
	if !digit {
		failures = append(failures, ruleDigit)
	}
	if len(plain) > maxPasswordBytes {
		failures = append(failures, ruleMaxLength)
	}
	return failures
}

// ValidateNewPassword enforces the full complexity policy.
func ValidateNewPassword(plain string) error {
	if failures := CheckPasswordComplexity(plain); len(failures) > 0 {
		return NewValidationError("Invalid password format", failures...)
	}
	return nil
}

// validatePasswordLength is the weaker check applied on password change.
func validatePasswordLength(plain string) error {
	if len([]rune(plain)) < minPasswordLength {
		return NewValidationError("New password must be at least 8 characters long")
	}
	if len(plain) > maxPasswordBytes {
		return NewValidationError("Invalid password format", ruleMaxLength)
	}
	return nil
}
