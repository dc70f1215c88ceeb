package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/gexdash/internal/export"
)

const maxListedErrors = 3

// Message is one ntfy post.
type Message struct {
	Title    string
	Body     string
	Tags     []string
	Priority string
}

// headerTags joins tags for the ntfy Tags header, skipping blanks.
func (m Message) headerTags() string {
	tags := make([]string, 0, len(m.Tags))
	for _, t := range m.Tags {
		if t = strings.TrimSpace(t); t != "" {
			tags = append(tags, t)
		}
	}
	return strings.Join(tags, ",")
}

// runStats writes the counters shared by both summaries, one per line.
func runStats(sb *strings.Builder, result *export.BatchResult, withFailed bool) {
	lines := []struct {
		label string
		n     int
	}{
		{"Tickers", result.Total},
		{"Success", result.Success},
		{"Failed", result.Failed},
		{"Skipped", result.Skipped},
	}
	for _, l := range lines {
		if l.label == "Failed" && !withFailed {
			continue
		}
		fmt.Fprintf(sb, "%s: %d\n", l.label, l.n)
	}
}

// SuccessMessage summarises a run in which every task was written or skipped.
func SuccessMessage(result *export.BatchResult, duration time.Duration, tags []string, priority string) Message {
	var sb strings.Builder
	runStats(&sb, result, false)
	fmt.Fprintf(&sb, "Written: %d KiB\n", result.Bytes/1024)
	fmt.Fprintf(&sb, "Took: %s", duration.Round(time.Second))

	return Message{
		Title:    "Snapshot Complete: " + result.Run,
		Body:     sb.String(),
		Tags:     append(append([]string(nil), tags...), "white_check_mark"),
		Priority: priority,
	}
}

// FailureMessage summarises a failed run and lists the first few task
// errors. Failures always go out at high priority.
func FailureMessage(result *export.BatchResult, duration time.Duration, err error, tags []string) Message {
	var sb strings.Builder
	runStats(&sb, result, true)
	fmt.Fprintf(&sb, "Took: %s", duration.Round(time.Second))

	if err != nil {
		fmt.Fprintf(&sb, "\n\nError: %v", err)
	}
	if n := len(result.Errors); n > 0 {
		sb.WriteString("\n\nErrors:\n")
		for _, e := range result.Errors[:min(n, maxListedErrors)] {
			fmt.Fprintf(&sb, "- %s\n", e)
		}
		if n > maxListedErrors {
			fmt.Fprintf(&sb, "... and %d more errors", n-maxListedErrors)
		}
	}

	return Message{
		Title:    "Snapshot Failed: " + result.Run,
		Body:     sb.String(),
		Tags:     append(append([]string(nil), tags...), "x"),
		Priority: "high",
	}
}
