// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

package auth

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

// PasswordPolicy describes the minimum quality a passphrase must meet.
type PasswordPolicy struct {
	MinLength      int  `json:"min_length"`
	MaxLength      int  `json:"max_length"`
	RequireUpper   bool `json:"require_upper"`
	RequireLower   bool `json:"require_lower"`
	RequireDigit   bool `json:"require_digit"`
	RequireSpecial bool `json:"require_special"`
}

// PasswordValidation lists every rule a password violated. Valid is true
// only when Errors is empty.
type PasswordValidation struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors,omitempty"`
}

// DefaultPasswordPolicy requires 12 to 128 characters with at least one
// uppercase letter, lowercase letter, digit and special character.
func DefaultPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:      12,
		MaxLength:      128,
		RequireUpper:   true,
		RequireLower:   true,
		RequireDigit:   true,
		RequireSpecial: true,
	}
}

// Validate checks password against every rule and reports all violations,
// not just the first. Lengths are counted in characters.
func (p PasswordPolicy) Validate(password string) PasswordValidation {
	var errs []string

	length := utf8.RuneCountInString(password)
	if length < p.MinLength {
		errs = append(errs, fmt.Sprintf("At least %d characters", p.MinLength))
	}
	if p.MaxLength > 0 && length > p.MaxLength {
		errs = append(errs, fmt.Sprintf("At most %d characters", p.MaxLength))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case !unicode.IsLetter(r) && !unicode.IsSpace(r):
			special = true
		}
	}

	if p.RequireUpper && !upper {
		errs = append(errs, "At least one uppercase letter")
	}
	if p.RequireLower && !lower {
		errs = append(errs, "At least one lowercase letter")
	}
	if p.RequireDigit && !digit {
		errs = append(errs, "At least one digit")
	}
	if p.RequireSpecial && !special {
		errs = append(errs, "At least one special character")
	}

	return PasswordValidation{Valid: len(errs) == 0, Errors: errs}
}
