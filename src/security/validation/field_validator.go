// backend/src/security/validation/field_validator.go
package validation

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

var ErrValidationFailed = fmt.Errorf("validation failed")

const (
	MaxPortfolioNameLength = 100
	MaxDescriptionLength   = 1024
	MaxBriefLength         = 4000
)

// ValidateStringNotEmpty checks if a string is not empty after trimming.
func ValidateStringNotEmpty(s, fieldName string) error {
	if strings.TrimSpace(s) == "" {
		return fmt.Errorf("%w: %s cannot be empty", ErrValidationFailed, fieldName)
	}
	return nil
}

// ValidateStringMaxLength checks if a string's UTF-8 character count is within max bounds.
func ValidateStringMaxLength(s string, maxLength int, fieldName string) error {
	if utf8.RuneCountInString(s) > maxLength {
		return fmt.Errorf("%w: %s exceeds maximum length of %d characters", ErrValidationFailed, fieldName, maxLength)
	}
	return nil
}

// ValidatePercentage checks that a single allocation percentage is in (0, 100].
func ValidatePercentage(p float64, fieldName string) error {
	if p <= 0 || p > 100 {
		return fmt.Errorf("%w: %s must be greater than 0 and at most 100", ErrValidationFailed, fieldName)
	}
	return nil
}
