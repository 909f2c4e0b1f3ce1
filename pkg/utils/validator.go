package utils

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	emailRegex   = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	gradeRegex   = regexp.MustCompile(`^[Gg][1-9]$`)
	controlRegex = regexp.MustCompile(`[\x00-\x08\x0b-\x1f\x7f]`)
)

// ValidateEmail validates an email address
func ValidateEmail(email string) error {
	if !emailRegex.MatchString(strings.TrimSpace(email)) {
		return fmt.Errorf("invalid email format: %s", email)
	}
	return nil
}

// ValidateGrade validates an employee grade such as G3
func ValidateGrade(grade string) error {
	if !gradeRegex.MatchString(strings.TrimSpace(grade)) {
		return fmt.Errorf("invalid grade: %q", grade)
	}
	return nil
}

// ValidateAmount validates a cost or threshold; zero is allowed
func ValidateAmount(amount decimal.Decimal) error {
	if amount.IsNegative() {
		return fmt.Errorf("amount must not be negative: %s", amount.String())
	}
	return nil
}

// SanitizeString strips control characters except tab and newline and trims
// surrounding whitespace
func SanitizeString(s string) string {
	return strings.TrimSpace(controlRegex.ReplaceAllString(s, ""))
}
