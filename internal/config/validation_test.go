package config

import (
	"errors"
	"strings"
	"testing"

	"github.com/dgnsrekt/gexdash/internal/api"
)

func TestValidateTicker_Valid(t *testing.T) {
	for _, ticker := range []string{"SPY", "spy", " QQQ ", "BRK.B", "/ES", "/nq"} {
		if err := ValidateTicker(ticker); err != nil {
			t.Errorf("expected %q to be valid, got: %v", ticker, err)
		}
	}
}

func TestValidateTicker_Invalid(t *testing.T) {
	for _, ticker := range []string{"", "/", "ES/", "$SPY", "SPY QQQ", "//ES", "TOOLONGTICKER"} {
		err := ValidateTicker(ticker)
		if err == nil {
			t.Errorf("expected %q to be rejected", ticker)
			continue
		}
		if !errors.Is(err, api.ErrInvalidTicker) {
			t.Errorf("error for %q should match ErrInvalidTicker, got: %v", ticker, err)
		}
	}
}

func TestValidateTickers_MultipleErrors(t *testing.T) {
	err := ValidateTickers([]string{"INVALID 1", "SPY", "$BAD"})
	if err == nil {
		t.Fatal("expected error for multiple issues")
	}

	errStr := err.Error()
	if !strings.Contains(errStr, "INVALID 1") || !strings.Contains(errStr, "$BAD") {
		t.Errorf("error should list all invalid tickers, got: %v", err)
	}
	if strings.Contains(errStr, `"SPY"`) {
		t.Errorf("valid ticker should not be listed, got: %v", err)
	}
}

func TestNormalizeTicker(t *testing.T) {
	if got := NormalizeTicker("  /es "); got != "/ES" {
		t.Errorf("unexpected normalized ticker: %q", got)
	}
}
