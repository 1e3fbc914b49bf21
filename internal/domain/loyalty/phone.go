package loyalty

import (
	"regexp"
	"strings"
	"unicode"

	"github.com/erp/backoffice/internal/domain/shared"
)

var phonePattern = regexp.MustCompile(`^\+?[\d\-\(\)]+$`)

// NormalizePhone strips quotes and whitespace and adds the "+" prefix to
// numbers longer than nine digits that lack it.
func NormalizePhone(raw string) string {
	p := strings.Map(func(r rune) rune {
		if r == '"' || r == '\'' || unicode.IsSpace(r) {
			return -1
		}
		return r
	}, raw)
	if p == "" || strings.HasPrefix(p, "+") {
		return p
	}
	if countDigits(p) > 9 {
		return "+" + p
	}
	return p
}

// AlternatePhone returns the same number with the "+" prefix toggled
func AlternatePhone(phone string) string {
	if phone == "" {
		return ""
	}
	if strings.HasPrefix(phone, "+") {
		return strings.TrimPrefix(phone, "+")
	}
	return "+" + phone
}

// PhoneVariants returns the normalized form followed by its alternate form.
// Stored data is inconsistent about the "+" prefix, so lookups try both.
func PhoneVariants(raw string) []string {
	p := NormalizePhone(raw)
	if p == "" {
		return nil
	}
	alt := AlternatePhone(p)
	if alt == "" || alt == "+" {
		return []string{p}
	}
	return []string{p, alt}
}

// ValidatePhone checks a normalized phone number
func ValidatePhone(phone string) error {
	if phone == "" {
		return shared.NewValidationError("phone is required")
	}
	if len(phone) > 20 {
		return shared.NewValidationError("phone cannot exceed 20 characters")
	}
	if !phonePattern.MatchString(phone) {
		return shared.NewValidationError("phone %q contains invalid characters", phone)
	}
	if countDigits(phone) < 7 {
		return shared.NewValidationError("phone must have at least 7 digits")
	}
	return nil
}

func countDigits(s string) int {
	n := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			n++
		}
	}
	return n
}
