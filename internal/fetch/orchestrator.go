// Package fetch issues the per-cycle upstream requests and turns their
// payloads into view model inputs.
package fetch

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/dgnsrekt/gexdash/internal/api"
	"github.com/dgnsrekt/gexdash/internal/metrics"
	"github.com/dgnsrekt/gexdash/internal/normalize"
	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

// Request selects the instrument and window of one data cycle.
type Request struct {
	Ticker       string
	Expiry       string
	LookbackDays int
}

// Result carries the normalized outputs of one cycle. Candles and
// VolumeProfile are nil when their optional source failed or returned
// nothing usable; Failures lists why.
type Result struct {
	Levels        viewmodel.Levels
	Strikes       []viewmodel.GexStrike
	MaxPain       float64
	Candles       []viewmodel.Candle
	VolumeProfile *viewmodel.VolumeProfile
	Failures      []*api.TransientSourceFailure
}

// Orchestrator fans requests out to the upstream API.
type Orchestrator struct {
	client  api.Client
	logger  *zap.Logger
	metrics *metrics.Metrics
}

func New(client api.Client, logger *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if m == nil {
		m = metrics.NewNop()
	}
	return &Orchestrator{client: client, logger: logger, metrics: m}
}

// LoadExpirations returns the expirations listed for ticker.
func (o *Orchestrator) LoadExpirations(ctx context.Context, ticker string) ([]string, error) {
	raw, err := o.get(ctx, api.SourceExpirations, api.Params{Ticker: ticker})
	if err != nil {
		return nil, err
	}
	exps, err := normalize.Expirations(raw)
	if err != nil {
		o.metrics.RecordSourceFailure(string(api.SourceExpirations), "schema")
		return nil, err
	}
	return exps, nil
}

// Load issues all five data requests concurrently and waits for every one
// of them. A mandatory failure (levels, by-strike, max pain) fails the
// cycle; optional failures (candles, volume profile) are recorded in
// Result.Failures and never returned as an error.
func (o *Orchestrator) Load(ctx context.Context, req Request) (*Result, error) {
	p := api.Params{Ticker: req.Ticker, Expiry: req.Expiry, LookbackDays: req.LookbackDays}
	res := &Result{}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		raw, err := o.mandatory(gctx, api.SourceGexLevels, p)
		if err != nil {
			return err
		}
		res.Levels, err = normalize.GexLevels(raw)
		return o.schema(api.SourceGexLevels, err)
	})
	g.Go(func() error {
		raw, err := o.mandatory(gctx, api.SourceGexByStrike, p)
		if err != nil {
			return err
		}
		res.Strikes, err = normalize.GexByStrike(raw)
		return o.schema(api.SourceGexByStrike, err)
	})
	g.Go(func() error {
		raw, err := o.mandatory(gctx, api.SourceMaxPain, p)
		if err != nil {
			return err
		}
		res.MaxPain, err = normalize.MaxPain(raw)
		return o.schema(api.SourceMaxPain, err)
	})

	var candleErr, vpErr error
	g.Go(func() error {
		raw, err := o.get(gctx, api.SourceCandles, p)
		if err != nil {
			candleErr = err
			return nil
		}
		if candles, ok := normalize.Candles(raw); ok {
			res.Candles = candles
		} else {
			candleErr = errors.New("payload not usable")
		}
		return nil
	})
	g.Go(func() error {
		raw, err := o.get(gctx, api.SourceVolumeProfile, p)
		if err != nil {
			vpErr = err
			return nil
		}
		if vp, ok := normalize.VolumeProfile(raw); ok {
			res.VolumeProfile = &vp
		} else {
			vpErr = errors.New("payload not usable")
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, err
	}

	optional := []struct {
		src api.Source
		err error
	}{{api.SourceCandles, candleErr}, {api.SourceVolumeProfile, vpErr}}
	for _, opt := range optional {
		src, err := opt.src, opt.err
		if err == nil {
			continue
		}
		f := &api.TransientSourceFailure{Source: src, Err: err}
		o.logger.Warn("optional source failed",
			zap.String("ticker", req.Ticker),
			zap.String("source", string(src)),
			zap.Error(err))
		o.metrics.RecordSourceFailure(string(src), "optional")
		res.Failures = append(res.Failures, f)
	}

	return res, nil
}

// Quote fetches the live price for ticker.
func (o *Orchestrator) Quote(ctx context.Context, ticker string) (float64, error) {
	raw, err := o.get(ctx, api.SourceQuote, api.Params{Ticker: ticker})
	if err != nil {
		return 0, err
	}
	return normalize.Quote(raw)
}

// mandatory fetches src and converts transport failures into FetchError so
// callers only see the two mandatory error kinds.
func (o *Orchestrator) mandatory(ctx context.Context, src api.Source, p api.Params) ([]byte, error) {
	raw, err := o.get(ctx, src, p)
	if err == nil {
		return raw, nil
	}
	var fe *api.FetchError
	if errors.As(err, &fe) {
		return nil, err
	}
	return nil, &api.FetchError{Source: src, Body: err.Error()}
}

func (o *Orchestrator) schema(src api.Source, err error) error {
	if err != nil {
		o.metrics.RecordSourceFailure(string(src), "schema")
	}
	return err
}

func (o *Orchestrator) get(ctx context.Context, src api.Source, p api.Params) ([]byte, error) {
	start := time.Now()
	raw, err := o.client.Get(ctx, api.BuildRoute(src, p))
	o.metrics.ObserveSource(string(src), time.Since(start).Seconds())
	if err != nil && ctx.Err() == nil {
		class := "transport"
		if api.StatusCode(err) != 0 {
			class = "http"
		}
		o.metrics.RecordSourceFailure(string(src), class)
	}
	return raw, err
}
