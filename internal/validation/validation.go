package validation

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/hyperengineering/pocportal/internal/types"
)

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}

// ValidateEmail returns an error if the value does not look like an email
// address. It checks shape only: one "@" with text on both sides and a dot
// in the domain.
func ValidateEmail(field, value string) *ValidationError {
	at := strings.LastIndex(value, "@")
	if at <= 0 || at == len(value)-1 || strings.ContainsAny(value, " \t\n") || !strings.Contains(value[at+1:], ".") {
		return &ValidationError{
			Field:   field,
			Message: "must be a valid email address",
		}
	}
	return nil
}

// ValidateDate returns an error if a non-empty value is not a date or
// timestamp. Empty values pass; combine with ValidateRequired when needed.
func ValidateDate(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	if _, ok := types.ParseDate(value); !ok {
		return &ValidationError{
			Field:   field,
			Message: "must be a date (YYYY-MM-DD) or RFC 3339 timestamp",
		}
	}
	return nil
}

// ValidatePOCUID returns an error if the value is not a POC identifier of
// the form POC-XXXXXXXXXXXX (12 hex characters).
func ValidatePOCUID(field, value string) *ValidationError {
	if !pocUIDPattern.MatchString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be a POC identifier like POC-ABC123DEF456",
		}
	}
	return nil
}

var pocUIDPattern = regexp.MustCompile(`^POC-[0-9A-Fa-f]{12}$`)

// ValidateRequired returns an error if the value is empty or whitespace-only.
func ValidateRequired(field, value string) *ValidationError {
	if strings.TrimSpace(value) == "" {
		return &ValidationError{
			Field:   field,
			Message: "is required",
		}
	}
	return nil
}

// ValidateEnum returns an error if the value is not in the allowed list.
func ValidateEnum(field, value string, allowed []string) *ValidationError {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return &ValidationError{
		Field:   field,
		Message: fmt.Sprintf("must be one of: %s", strings.Join(allowed, ", ")),
	}
}

// ValidateRange returns an error if the value is outside [min, max].
func ValidateRange(field string, value, min, max float64) *ValidationError {
	if value < min || value > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("must be between %.1f and %.1f", min, max),
		}
	}
	return nil
}
