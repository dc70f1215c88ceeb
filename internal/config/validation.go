package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dgnsrekt/gexdash/internal/api"
)

var (
	equityTicker  = regexp.MustCompile(`^[A-Z][A-Z0-9.\-]{0,9}$`)
	futuresTicker = regexp.MustCompile(`^/[A-Z0-9]{1,6}$`)
)

// ValidationErrors collects all validation errors
type ValidationErrors struct {
	InvalidTickers []string
}

// HasErrors returns true if any validation errors exist
func (e *ValidationErrors) HasErrors() bool {
	return len(e.InvalidTickers) > 0
}

// Error formats all validation errors into a clear message
func (e *ValidationErrors) Error() string {
	var sb strings.Builder
	sb.WriteString("ticker validation failed:\n")
	for _, t := range e.InvalidTickers {
		sb.WriteString(fmt.Sprintf("  - %q\n", t))
	}
	sb.WriteString("\nEquities look like SPY or BRK.B; futures carry a leading slash, e.g. /ES\n")
	return sb.String()
}

// Unwrap lets callers match on api.ErrInvalidTicker.
func (e *ValidationErrors) Unwrap() error {
	return api.ErrInvalidTicker
}

// NormalizeTicker trims and upper-cases a user-entered symbol.
func NormalizeTicker(ticker string) string {
	return strings.ToUpper(strings.TrimSpace(ticker))
}

// ValidateTicker checks a single normalized symbol.
func ValidateTicker(ticker string) error {
	return ValidateTickers([]string{ticker})
}

// ValidateTickers validates every symbol and reports all offenders at once.
func ValidateTickers(tickers []string) error {
	errs := &ValidationErrors{}
	for _, t := range tickers {
		n := NormalizeTicker(t)
		if !equityTicker.MatchString(n) && !futuresTicker.MatchString(n) {
			errs.InvalidTickers = append(errs.InvalidTickers, t)
		}
	}
	if errs.HasErrors() {
		return errs
	}
	return nil
}
