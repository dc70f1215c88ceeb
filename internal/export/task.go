package export

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Task is one ticker to snapshot. An empty Expiry keeps the nearest
// expiration the session selects on its own.
type Task struct {
	Ticker       string
	Expiry       string
	LookbackDays int
}

// OutputDir is where the task's artifacts land under a run directory.
// Futures tickers lose their leading slash.
func (t Task) OutputDir(runDir string) string {
	return filepath.Join(runDir, strings.TrimPrefix(t.Ticker, "/"))
}

func (t Task) String() string {
	if t.Expiry == "" {
		return fmt.Sprintf("%s/%dd", t.Ticker, t.LookbackDays)
	}
	return fmt.Sprintf("%s/%s/%dd", t.Ticker, t.Expiry, t.LookbackDays)
}

type TaskResult struct {
	Task      Task
	Success   bool
	Skipped   bool
	Files     int
	BytesSize int64
	Error     error
}
