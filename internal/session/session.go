// Package session drives one dashboard's refresh lifecycle: ticker and
// expiry selection, the concurrent data load, rendering, and the live
// quote poller. Every mutation of the view model, chart handles and poller
// goes through the Session's mutex.
package session

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/config"
	"github.com/dgnsrekt/gexdash/internal/fetch"
	"github.com/dgnsrekt/gexdash/internal/market"
	"github.com/dgnsrekt/gexdash/internal/metrics"
	"github.com/dgnsrekt/gexdash/internal/render"
	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

// State is the lifecycle phase of a session.
type State string

const (
	Idle               State = "idle"
	LoadingExpirations State = "loading_expirations"
	LoadingData        State = "loading_data"
	Rendered           State = "rendered"
	Failed             State = "failed"
)

var (
	// ErrSuperseded is returned by a trigger whose results were discarded
	// because a newer cycle started before they arrived.
	ErrSuperseded = errors.New("refresh superseded by a newer cycle")
	ErrNoTicker   = errors.New("no ticker selected")
	ErrClosed     = errors.New("session closed")

	// ErrInvalidSelection wraps rejected expiry, timeframe and overlay inputs.
	ErrInvalidSelection = errors.New("invalid selection")
)

// Fetcher is the upstream data source of a session.
type Fetcher interface {
	LoadExpirations(ctx context.Context, ticker string) ([]string, error)
	Load(ctx context.Context, req fetch.Request) (*fetch.Result, error)
	Quote(ctx context.Context, ticker string) (float64, error)
}

// Options tune a session. Zero values fall back to the dashboard defaults.
type Options struct {
	ID           string
	LookbackDays int
	PollInterval time.Duration
	CycleTimeout time.Duration
	Clock        market.Clock
	Logger       *zap.Logger
	Metrics      *metrics.Metrics
}

// View is a consistent read of a session for encoders.
type View struct {
	ID       string              `json:"id"`
	State    State               `json:"state"`
	Polling  bool                `json:"polling"`
	Error    string              `json:"error,omitempty"`
	Cycle    uint64              `json:"cycle"`
	Overlays map[string]bool     `json:"overlays"`
	Sort     viewmodel.SortKey   `json:"sort"`
	Desc     bool                `json:"desc"`
	Model    viewmodel.ViewModel `json:"model"`
}

type Session struct {
	id           string
	fetcher      Fetcher
	renderer     render.Renderer
	clock        market.Clock
	pollInterval time.Duration
	cycleTimeout time.Duration
	logger       *zap.Logger
	metrics      *metrics.Metrics

	mu      sync.Mutex
	vm      *viewmodel.ViewModel
	state   State
	lastErr error
	seq     uint64
	closed  bool

	hidden  map[string]bool
	sortKey viewmodel.SortKey
	desc    bool

	priceChart render.PriceChart
	gexChart   render.GexChart

	pollGen    uint64
	pollCancel context.CancelFunc
	pollDone   chan struct{}

	listeners []func(View)
}

func New(fetcher Fetcher, renderer render.Renderer, opts Options) *Session {
	if opts.LookbackDays <= 0 {
		opts.LookbackDays = 30
	}
	if opts.PollInterval <= 0 {
		opts.PollInterval = 5 * time.Second
	}
	if opts.Clock == nil {
		opts.Clock = market.NewExchangeClock("America/New_York")
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Metrics == nil {
		opts.Metrics = metrics.NewNop()
	}

	vm := viewmodel.New()
	vm.LookbackDays = opts.LookbackDays

	return &Session{
		id:           opts.ID,
		fetcher:      fetcher,
		renderer:     renderer,
		clock:        opts.Clock,
		pollInterval: opts.PollInterval,
		cycleTimeout: opts.CycleTimeout,
		logger:       opts.Logger.With(zap.String("session", opts.ID)),
		metrics:      opts.Metrics,
		vm:           vm,
		state:        Idle,
		hidden:       make(map[string]bool),
		sortKey:      viewmodel.SortStrike,
	}
}

func (s *Session) ID() string { return s.id }

func (s *Session) Renderer() render.Renderer { return s.renderer }

// Subscribe registers fn to receive a View after every render, failure and
// live quote. fn runs outside the session lock.
func (s *Session) Subscribe(fn func(View)) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Polling reports whether the live quote task is active.
func (s *Session) Polling() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pollCancel != nil
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.viewLocked()
}

// SubmitTicker switches the session to ticker: expirations load first, the
// nearest expiration on or after today is selected, then the data cycle runs.
func (s *Session) SubmitTicker(ctx context.Context, ticker string) error {
	ticker = config.NormalizeTicker(ticker)
	if err := config.ValidateTicker(ticker); err != nil {
		return err
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	seq := s.beginLocked(LoadingExpirations)
	s.disposeChartsLocked()
	s.vm.ResetForTicker(ticker)
	s.mu.Unlock()

	ctx, cancel := s.cycleContext(ctx)
	defer cancel()

	s.logger.Info("loading expirations", zap.String("ticker", ticker), zap.Uint64("cycle", seq))
	exps, err := s.fetcher.LoadExpirations(ctx, ticker)

	s.mu.Lock()
	if !s.currentLocked(seq) {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		s.failLocked(seq, err)
		s.mu.Unlock()
		s.emit()
		return err
	}
	s.vm.Expirations = exps
	s.vm.SetInstrument(ticker, market.NearestExpiration(exps, s.clock.Now()))
	s.state = LoadingData
	req := s.requestLocked()
	s.mu.Unlock()

	return s.load(ctx, seq, req)
}

// ChangeExpiry reloads data for another expiration of the current ticker.
func (s *Session) ChangeExpiry(ctx context.Context, expiry string) error {
	return s.reload(ctx, func(vm *viewmodel.ViewModel) error {
		if len(vm.Expirations) > 0 && !slices.Contains(vm.Expirations, expiry) {
			return fmt.Errorf("%w: expiration %q not listed for %s", ErrInvalidSelection, expiry, vm.Ticker)
		}
		vm.Expiry = expiry
		return nil
	})
}

// ChangeTimeframe reloads data with a new candle lookback window.
func (s *Session) ChangeTimeframe(ctx context.Context, days int) error {
	return s.reload(ctx, func(vm *viewmodel.ViewModel) error {
		if days <= 0 {
			return fmt.Errorf("%w: timeframe must be positive, got %d days", ErrInvalidSelection, days)
		}
		vm.LookbackDays = days
		return nil
	})
}

// Refresh reruns the data cycle with the current selection.
func (s *Session) Refresh(ctx context.Context) error {
	return s.reload(ctx, func(*viewmodel.ViewModel) error { return nil })
}

// SetOverlayVisible shows or hides one price-line metric without refetching.
func (s *Session) SetOverlayVisible(metric string, visible bool) error {
	if !render.IsMetric(metric) {
		return fmt.Errorf("%w: unknown overlay %q", ErrInvalidSelection, metric)
	}
	s.mu.Lock()
	if visible {
		delete(s.hidden, metric)
	} else {
		s.hidden[metric] = true
	}
	if s.priceChart != nil {
		s.priceChart.SetPriceLines(render.PriceLines(s.vm, s.hidden))
	}
	s.mu.Unlock()
	s.emit()
	return nil
}

// SetSort reorders the strike table without refetching.
func (s *Session) SetSort(key viewmodel.SortKey, desc bool) {
	s.mu.Lock()
	s.sortKey, s.desc = key, desc
	if s.state == Rendered {
		s.renderer.RenderTable(viewmodel.TableRows(s.vm.GexByStrike, s.sortKey, s.desc))
	}
	s.mu.Unlock()
	s.emit()
}

// Close stops the poller, disposes the charts and waits for the poller to
// exit. In-flight cycles are discarded when they return.
func (s *Session) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.seq++
	done := s.stopPollerLocked()
	s.disposeChartsLocked()
	s.state = Idle
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	s.logger.Debug("session closed")
}

func (s *Session) reload(ctx context.Context, mutate func(vm *viewmodel.ViewModel) error) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ErrClosed
	}
	if s.vm.Ticker == "" {
		s.mu.Unlock()
		return ErrNoTicker
	}
	if err := mutate(s.vm); err != nil {
		s.mu.Unlock()
		return err
	}
	seq := s.beginLocked(LoadingData)
	req := s.requestLocked()
	s.mu.Unlock()

	ctx, cancel := s.cycleContext(ctx)
	defer cancel()
	return s.load(ctx, seq, req)
}

// load runs the fan-out fetch for cycle seq and renders its result if no
// newer cycle has started meanwhile.
func (s *Session) load(ctx context.Context, seq uint64, req fetch.Request) error {
	s.logger.Info("loading data",
		zap.String("ticker", req.Ticker),
		zap.String("expiry", req.Expiry),
		zap.Int("lookback_days", req.LookbackDays),
		zap.Uint64("cycle", seq))

	res, err := s.fetcher.Load(ctx, req)

	s.mu.Lock()
	if !s.currentLocked(seq) {
		s.mu.Unlock()
		return ErrSuperseded
	}
	if err != nil {
		s.failLocked(seq, err)
		s.mu.Unlock()
		s.emit()
		return err
	}

	s.applyLocked(res)
	if err := s.renderLocked(); err != nil {
		s.failLocked(seq, err)
		s.mu.Unlock()
		s.emit()
		return err
	}
	s.startPollerLocked(req.Ticker)
	s.state = Rendered
	s.lastErr = nil
	s.mu.Unlock()

	s.metrics.RecordCycle("rendered")
	s.logger.Info("rendered",
		zap.String("ticker", req.Ticker),
		zap.Int("strikes", len(res.Strikes)),
		zap.Int("candles", len(res.Candles)),
		zap.Int("degraded_sources", len(res.Failures)),
		zap.Uint64("cycle", seq))
	s.emit()
	return nil
}

func (s *Session) applyLocked(res *fetch.Result) {
	now := s.clock.Now()
	s.vm.ApplyLevels(res.Levels)
	s.vm.ApplyStrikes(res.Strikes)
	s.vm.ApplyMaxPain(res.MaxPain)
	if res.Candles != nil {
		s.vm.ApplyCandles(res.Candles)
	}
	if res.VolumeProfile != nil {
		s.vm.ApplyVolumeProfile(*res.VolumeProfile)
	}
	s.vm.MarketDay = s.clock.IsMarketDay(now)
	s.vm.UpdatedAt = now
}

// renderLocked replaces both charts and redraws every widget. Old charts
// are always disposed before their replacements are created.
func (s *Session) renderLocked() error {
	s.disposeChartsLocked()

	pc, err := s.renderer.NewPriceChart(render.ContainerPrice)
	if err != nil {
		return fmt.Errorf("creating price chart: %w", err)
	}
	s.priceChart = pc
	s.metrics.LiveCharts.Inc()

	gc, err := s.renderer.NewGexChart(render.ContainerGex)
	if err != nil {
		return fmt.Errorf("creating gex chart: %w", err)
	}
	s.gexChart = gc
	s.metrics.LiveCharts.Inc()

	pc.SetCandles(s.vm.Candles)
	pc.SetPriceLines(render.PriceLines(s.vm, s.hidden))
	gc.SetBars(render.GexBars(s.vm.GexByStrike))
	s.renderer.RenderTable(viewmodel.TableRows(s.vm.GexByStrike, s.sortKey, s.desc))
	s.renderer.RenderVolumeProfile(render.BuildVolumeProfileBar(s.vm))
	s.renderer.RenderSummary(render.BuildSummary(s.vm))
	s.renderer.UpdatePriceLabel(s.vm.CurrentPrice)
	return nil
}

func (s *Session) disposeChartsLocked() {
	if s.priceChart != nil {
		s.priceChart.Dispose()
		s.priceChart = nil
		s.metrics.LiveCharts.Dec()
	}
	if s.gexChart != nil {
		s.gexChart.Dispose()
		s.gexChart = nil
		s.metrics.LiveCharts.Dec()
	}
}

func (s *Session) failLocked(seq uint64, err error) {
	s.stopPollerLocked()
	s.disposeChartsLocked()
	s.renderer.ShowError(err)
	s.state = Failed
	s.lastErr = err
	s.metrics.RecordCycle("failed")
	s.logger.Error("refresh cycle failed",
		zap.String("ticker", s.vm.Ticker),
		zap.Uint64("cycle", seq),
		zap.Error(err))
}

// beginLocked starts a new cycle. The previous poller is cancelled so no
// quote for the old selection lands in the view model.
func (s *Session) beginLocked(state State) uint64 {
	s.seq++
	s.stopPollerLocked()
	s.state = state
	return s.seq
}

func (s *Session) currentLocked(seq uint64) bool {
	if seq == s.seq && !s.closed {
		return true
	}
	s.metrics.RecordStale()
	s.logger.Debug("discarding stale cycle", zap.Uint64("cycle", seq), zap.Uint64("current", s.seq))
	return false
}

func (s *Session) requestLocked() fetch.Request {
	return fetch.Request{Ticker: s.vm.Ticker, Expiry: s.vm.Expiry, LookbackDays: s.vm.LookbackDays}
}

func (s *Session) cycleContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.cycleTimeout > 0 {
		return context.WithTimeout(ctx, s.cycleTimeout)
	}
	return context.WithCancel(ctx)
}

func (s *Session) viewLocked() View {
	overlays := make(map[string]bool)
	for _, m := range render.Metrics() {
		overlays[m] = !s.hidden[m]
	}
	v := View{
		ID:       s.id,
		State:    s.state,
		Polling:  s.pollCancel != nil,
		Cycle:    s.seq,
		Overlays: overlays,
		Sort:     s.sortKey,
		Desc:     s.desc,
		Model:    s.vm.Snapshot(),
	}
	if s.lastErr != nil {
		v.Error = s.lastErr.Error()
	}
	return v
}

func (s *Session) emit() {
	s.mu.Lock()
	if len(s.listeners) == 0 {
		s.mu.Unlock()
		return
	}
	v := s.viewLocked()
	fns := slices.Clone(s.listeners)
	s.mu.Unlock()

	for _, fn := range fns {
		fn(v)
	}
}
