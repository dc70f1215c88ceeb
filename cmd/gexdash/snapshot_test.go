package main

import (
	"errors"
	"testing"

	"github.com/dgnsrekt/gexdash/internal/api"
)

func TestBuildTasks(t *testing.T) {
	tasks, err := buildTasks([]string{" spy", "SPY", "/es", "qqq "}, "2026-10-23", 30)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(tasks) != 3 {
		t.Fatalf("expected 3 deduplicated tasks, got %d: %+v", len(tasks), tasks)
	}
	want := []string{"SPY", "/ES", "QQQ"}
	for i, task := range tasks {
		if task.Ticker != want[i] || task.Expiry != "2026-10-23" || task.LookbackDays != 30 {
			t.Errorf("task %d: unexpected %+v", i, task)
		}
	}
}

func TestBuildTasks_Invalid(t *testing.T) {
	if _, err := buildTasks([]string{"SPY", "not a ticker!"}, "", 30); !errors.Is(err, api.ErrInvalidTicker) {
		t.Errorf("expected ErrInvalidTicker, got %v", err)
	}
	if _, err := buildTasks(nil, "", 30); err == nil {
		t.Error("expected error for empty ticker list")
	}
}
