// Package export snapshots dashboards for a batch of tickers: each task runs
// a full refresh cycle in a throwaway session and writes the view model,
// widget board and chart images into a staged run directory.
package export

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/render"
	"github.com/dgnsrekt/gexdash/internal/session"
	"github.com/dgnsrekt/gexdash/internal/staging"
)

const (
	viewFile  = "view.json"
	boardFile = "board.json"
)

// chartFiles maps chart containers to their output file names.
var chartFiles = map[string]string{
	render.ContainerPrice: "price.png",
	render.ContainerGex:   "gex.png",
}

type Manager struct {
	fetcher session.Fetcher
	staging *staging.Manager
	options session.Options
	workers int
	logger  *zap.Logger
}

type BatchResult struct {
	Run     string
	Total   int
	Success int
	Skipped int
	Failed  int
	Bytes   int64
	Errors  []string
}

func NewManager(fetcher session.Fetcher, staging *staging.Manager, opts session.Options, workers int, logger *zap.Logger) *Manager {
	if workers < 1 {
		workers = 1
	}
	return &Manager{
		fetcher: fetcher,
		staging: staging,
		options: opts,
		workers: workers,
		logger:  logger,
	}
}

// Execute runs every task into the staging tree for run and commits the run
// once all workers are done. Tasks whose output already exists are skipped.
func (m *Manager) Execute(ctx context.Context, run string, tasks []Task) (*BatchResult, error) {
	result := &BatchResult{Run: run, Total: len(tasks)}

	if len(tasks) == 0 {
		return result, nil
	}

	if err := m.staging.PrepareStaging(run); err != nil {
		return nil, fmt.Errorf("preparing staging: %w", err)
	}
	defer func() {
		if err := m.staging.CleanupStaging(run); err != nil {
			m.logger.Warn("cleaning staging failed", zap.String("run", run), zap.Error(err))
		}
	}()

	jobs := make(chan Task, len(tasks))
	results := make(chan TaskResult, len(tasks))

	// Start workers
	var wg sync.WaitGroup
	for i := 0; i < m.workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			m.worker(ctx, workerID, run, jobs, results)
		}(i)
	}

	// Send jobs
	go func() {
		defer close(jobs)
		for _, task := range tasks {
			select {
			case <-ctx.Done():
				return
			case jobs <- task:
			}
		}
	}()

	// Wait for workers and close results
	go func() {
		wg.Wait()
		close(results)
	}()

	for r := range results {
		switch {
		case r.Skipped:
			result.Skipped++
		case r.Success:
			result.Success++
			result.Bytes += r.BytesSize
		default:
			result.Failed++
			if r.Error != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", r.Task, r.Error))
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return result, err
	}

	if err := m.staging.CommitStaging(run); err != nil {
		return result, fmt.Errorf("committing run %s: %w", run, err)
	}
	return result, nil
}

func (m *Manager) worker(ctx context.Context, id int, run string, jobs <-chan Task, results chan<- TaskResult) {
	for task := range jobs {
		select {
		case <-ctx.Done():
			return
		default:
		}

		result := m.processTask(ctx, run, task)
		result.Task = task

		select {
		case <-ctx.Done():
			return
		case results <- result:
		}
	}
}

func (m *Manager) processTask(ctx context.Context, run string, task Task) TaskResult {
	var result TaskResult

	finalDir := task.OutputDir(filepath.Join(m.staging.FinalDir(), run))
	if _, err := os.Stat(filepath.Join(finalDir, viewFile)); err == nil {
		m.logger.Debug("skipping existing snapshot", zap.String("task", task.String()))
		result.Skipped = true
		return result
	}

	m.logger.Info("snapshotting", zap.String("task", task.String()))

	opts := m.options
	opts.ID = "export-" + task.String()
	if task.LookbackDays > 0 {
		opts.LookbackDays = task.LookbackDays
	}
	renderer := render.NewPNGRenderer(render.NewCanvas(), m.logger)
	sess := session.New(m.fetcher, renderer, opts)
	defer sess.Close()

	if err := sess.SubmitTicker(ctx, task.Ticker); err != nil {
		result.Error = err
		return result
	}
	if task.Expiry != "" && task.Expiry != sess.View().Model.Expiry {
		if err := sess.ChangeExpiry(ctx, task.Expiry); err != nil {
			result.Error = err
			return result
		}
	}

	dir := task.OutputDir(m.staging.StagingDir(run))
	view := sess.View()
	view.ID = ""

	n, err := m.staging.WriteJSON(filepath.Join(dir, viewFile), view)
	if err != nil {
		result.Error = err
		return result
	}
	result.add(n)

	if n, err = m.staging.WriteJSON(filepath.Join(dir, boardFile), renderer.Board()); err != nil {
		result.Error = err
		return result
	}
	result.add(n)

	for container, name := range chartFiles {
		img, ok := renderer.Canvas().Image(container)
		if !ok {
			m.logger.Warn("chart not drawn", zap.String("task", task.String()), zap.String("chart", container))
			continue
		}
		if n, err = m.staging.WriteBytes(filepath.Join(dir, name), img); err != nil {
			result.Error = err
			return result
		}
		result.add(n)
	}

	result.Success = true
	m.logger.Info("snapshot written",
		zap.String("task", task.String()),
		zap.Int("files", result.Files),
		zap.Int64("bytes", result.BytesSize),
	)
	return result
}

func (r *TaskResult) add(n int64) {
	r.Files++
	r.BytesSize += n
}
