package session

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/render"
)

// startPollerLocked cancels any running poller and starts a new one for
// ticker. Each poller carries a generation; ticks from an older generation
// are dropped even if they race with cancellation.
func (s *Session) startPollerLocked(ticker string) {
	s.stopPollerLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.pollGen++
	s.pollCancel = cancel
	s.pollDone = done

	go s.poll(ctx, s.pollGen, ticker, done)
}

// stopPollerLocked cancels the poller and returns a channel closed when its
// goroutine exits, or nil when no poller was running.
func (s *Session) stopPollerLocked() <-chan struct{} {
	if s.pollCancel == nil {
		return nil
	}
	s.pollCancel()
	done := s.pollDone
	s.pollCancel = nil
	s.pollDone = nil
	return done
}

func (s *Session) poll(ctx context.Context, gen uint64, ticker string, done chan struct{}) {
	defer close(done)

	tk := time.NewTicker(s.pollInterval)
	defer tk.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-tk.C:
			s.tick(ctx, gen, ticker)
		}
	}
}

// tick fetches one quote. Failures are silent: no state change, no error
// shown, the next tick simply tries again.
func (s *Session) tick(ctx context.Context, gen uint64, ticker string) {
	qctx, cancel := context.WithTimeout(ctx, s.pollInterval)
	price, err := s.fetcher.Quote(qctx, ticker)
	cancel()
	if err != nil {
		if ctx.Err() == nil {
			s.metrics.RecordPoll("failed")
			s.logger.Debug("quote poll failed", zap.String("ticker", ticker), zap.Error(err))
		}
		return
	}

	s.mu.Lock()
	if ctx.Err() != nil || gen != s.pollGen {
		s.mu.Unlock()
		return
	}
	now := s.clock.Now()
	patched := s.vm.ApplyQuote(price, now)
	s.renderer.UpdatePriceLabel(s.vm.CurrentPrice)
	s.renderer.RenderVolumeProfile(render.BuildVolumeProfileBar(s.vm))
	if patched && s.priceChart != nil {
		if last, ok := s.vm.LastCandle(); ok {
			s.priceChart.UpdateCandle(last)
		}
	}
	s.mu.Unlock()

	s.metrics.RecordPoll("ok")
	s.emit()
}
