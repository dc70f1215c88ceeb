package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.uber.org/zap"
)

func TestGet_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Verify auth header
		if auth := r.Header.Get("Authorization"); auth != "Basic test-key" {
			t.Errorf("expected Basic test-key, got %s", auth)
		}

		if r.URL.Path != "/api/gex-levels/SPY" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.URL.Query().Get("expiry"); got != "2026-10-23" {
			t.Errorf("expected expiry query, got %q", got)
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"ok":true,"data":{}}`))
	}))
	defer server.Close()

	logger, _ := zap.NewDevelopment()
	client := NewClient(server.URL, "test-key", 10, 30*time.Second, logger)

	route := BuildRoute(SourceGexLevels, Params{Ticker: "spy", Expiry: "2026-10-23"})
	body, err := client.Get(context.Background(), route)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true,"data":{}}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestGet_NonSuccessIsFetchError(t *testing.T) {
	attempts := 0
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte("upstream down"))
	}))
	defer server.Close()

	client := NewClient(server.URL, "", 0, 5*time.Second, zap.NewNop())

	_, err := client.Get(context.Background(), BuildRoute(SourceMaxPain, Params{Ticker: "SPY"}))
	var fe *FetchError
	if !errors.As(err, &fe) {
		t.Fatalf("expected FetchError, got %v", err)
	}
	if fe.StatusCode != http.StatusBadGateway || fe.Source != SourceMaxPain {
		t.Errorf("unexpected fetch error: %+v", fe)
	}
	if StatusCode(err) != http.StatusBadGateway {
		t.Errorf("StatusCode helper returned %d", StatusCode(err))
	}

	// No automatic retries
	if attempts != 1 {
		t.Errorf("expected 1 attempt, got %d", attempts)
	}
}

func TestGet_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer server.Close()

	client := NewClient(server.URL, "bad", 0, 5*time.Second, zap.NewNop())
	_, err := client.Get(context.Background(), BuildRoute(SourceQuote, Params{Ticker: "SPY"}))
	if !errors.Is(err, ErrAuthFailed) {
		t.Errorf("expected ErrAuthFailed, got %v", err)
	}
}

func TestBuildRoute_Families(t *testing.T) {
	equity := BuildRoute(SourceCandles, Params{Ticker: "aapl", LookbackDays: 30})
	if equity.String() != "/api/candles/AAPL?days=30" {
		t.Errorf("unexpected equity route: %s", equity)
	}

	futures := BuildRoute(SourceCandles, Params{Ticker: "/ES", LookbackDays: 30})
	if futures.Path != "/api/futures/candles" {
		t.Errorf("unexpected futures path: %s", futures.Path)
	}
	if futures.Query.Get("symbol") != "/ES" || futures.Query.Get("days") != "30" {
		t.Errorf("unexpected futures query: %v", futures.Query)
	}

	exp := BuildRoute(SourceExpirations, Params{Ticker: "/NQ", Expiry: "ignored"})
	if exp.Query.Has("expiry") {
		t.Error("expirations route should not carry an expiry")
	}
}
