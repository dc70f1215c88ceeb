package render

import (
	"bytes"
	"strings"
	"sync"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

const (
	chartWidth  = 1024
	chartHeight = 480
)

// Canvas holds the latest PNG rendered into each container and tracks which
// containers are bound to a live chart.
type Canvas struct {
	mu     sync.RWMutex
	images map[string][]byte
	live   map[string]bool
}

func NewCanvas() *Canvas {
	return &Canvas{images: make(map[string][]byte), live: make(map[string]bool)}
}

// Image returns the last PNG drawn into container.
func (c *Canvas) Image(container string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	img, ok := c.images[container]
	return img, ok
}

// Live returns the number of containers bound to an undisposed chart.
func (c *Canvas) Live() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.live)
}

func (c *Canvas) bind(container string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.live[container] {
		return ErrContainerBusy
	}
	c.live[container] = true
	delete(c.images, container)
	return nil
}

func (c *Canvas) release(container string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.live, container)
	delete(c.images, container)
}

func (c *Canvas) store(container string, img []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.live[container] {
		return
	}
	if img == nil {
		delete(c.images, container)
		return
	}
	c.images[container] = img
}

// Board is the non-chart widget state drawn by a PNGRenderer.
type Board struct {
	Summary       Summary              `json:"summary"`
	Table         []viewmodel.TableRow `json:"table"`
	VolumeProfile VolumeProfileBar     `json:"volume_profile"`
	Price         string               `json:"price"`
	Error         string               `json:"error,omitempty"`
}

// PNGRenderer draws charts with go-chart into a Canvas and keeps the rest
// of the widgets as a Board for the HTTP and websocket surfaces.
type PNGRenderer struct {
	canvas *Canvas
	logger *zap.Logger

	mu    sync.RWMutex
	board Board
}

func NewPNGRenderer(canvas *Canvas, logger *zap.Logger) *PNGRenderer {
	return &PNGRenderer{canvas: canvas, logger: logger}
}

func (r *PNGRenderer) Canvas() *Canvas { return r.canvas }

// Board returns a copy of the current widget state.
func (r *PNGRenderer) Board() Board {
	r.mu.RLock()
	defer r.mu.RUnlock()
	b := r.board
	b.Table = append([]viewmodel.TableRow(nil), r.board.Table...)
	return b
}

func (r *PNGRenderer) NewPriceChart(container string) (PriceChart, error) {
	if err := r.canvas.bind(container); err != nil {
		return nil, err
	}
	return &pngPriceChart{renderer: r, container: container}, nil
}

func (r *PNGRenderer) NewGexChart(container string) (GexChart, error) {
	if err := r.canvas.bind(container); err != nil {
		return nil, err
	}
	return &pngGexChart{renderer: r, container: container}, nil
}

func (r *PNGRenderer) RenderSummary(s Summary) {
	r.update(func(b *Board) {
		b.Summary = s
		b.Error = ""
	})
}

func (r *PNGRenderer) RenderTable(rows []viewmodel.TableRow) {
	r.update(func(b *Board) { b.Table = append([]viewmodel.TableRow(nil), rows...) })
}

func (r *PNGRenderer) RenderVolumeProfile(bar VolumeProfileBar) {
	r.update(func(b *Board) { b.VolumeProfile = bar })
}

func (r *PNGRenderer) UpdatePriceLabel(price float64) {
	r.update(func(b *Board) { b.Price = viewmodel.FormatPrice(price) })
}

func (r *PNGRenderer) ShowError(err error) {
	r.update(func(b *Board) {
		b.Error = err.Error()
		b.Table = nil
	})
}

func (r *PNGRenderer) update(fn func(b *Board)) {
	r.mu.Lock()
	fn(&r.board)
	r.mu.Unlock()
}

type pngPriceChart struct {
	renderer  *PNGRenderer
	container string

	mu       sync.Mutex
	candles  []viewmodel.Candle
	lines    []PriceLine
	disposed bool
}

func (c *pngPriceChart) SetCandles(candles []viewmodel.Candle) {
	c.mu.Lock()
	c.candles = append([]viewmodel.Candle(nil), candles...)
	c.mu.Unlock()
	c.draw()
}

func (c *pngPriceChart) SetPriceLines(lines []PriceLine) {
	c.mu.Lock()
	c.lines = append([]PriceLine(nil), lines...)
	c.mu.Unlock()
	c.draw()
}

func (c *pngPriceChart) UpdateCandle(candle viewmodel.Candle) {
	c.mu.Lock()
	if n := len(c.candles); n > 0 && c.candles[n-1].Time.Equal(candle.Time) {
		c.candles[n-1] = candle
	} else {
		c.candles = append(c.candles, candle)
	}
	c.mu.Unlock()
	c.draw()
}

func (c *pngPriceChart) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.renderer.canvas.release(c.container)
}

func (c *pngPriceChart) draw() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	if len(c.candles) == 0 {
		c.renderer.canvas.store(c.container, nil)
		return
	}

	times := make([]time.Time, 0, len(c.candles)+1)
	closes := make([]float64, 0, len(c.candles)+1)
	highs := make([]float64, 0, len(c.candles)+1)
	lows := make([]float64, 0, len(c.candles)+1)
	for _, k := range c.candles {
		times = append(times, k.Time)
		closes = append(closes, k.Close)
		highs = append(highs, k.High)
		lows = append(lows, k.Low)
	}
	// go-chart needs a non-empty x range.
	if len(times) == 1 {
		times = append(times, times[0].Add(time.Minute))
		closes = append(closes, closes[0])
		highs = append(highs, highs[0])
		lows = append(lows, lows[0])
	}
	first, last := times[0], times[len(times)-1]

	series := []chart.Series{
		chart.TimeSeries{Name: "High", XValues: times, YValues: highs, Style: chart.Style{StrokeColor: color("#94a3b8"), StrokeWidth: 1}},
		chart.TimeSeries{Name: "Low", XValues: times, YValues: lows, Style: chart.Style{StrokeColor: color("#94a3b8"), StrokeWidth: 1}},
		chart.TimeSeries{Name: "Close", XValues: times, YValues: closes, Style: chart.Style{StrokeColor: color("#3b82f6"), StrokeWidth: 2}},
	}
	for _, l := range c.lines {
		series = append(series, chart.TimeSeries{
			Name:    l.Label,
			XValues: []time.Time{first, last},
			YValues: []float64{l.Price, l.Price},
			Style:   chart.Style{StrokeColor: color(l.Color), StrokeWidth: 1.5, StrokeDashArray: dashes(l.Style)},
		})
	}

	ch := chart.Chart{
		Width:      chartWidth,
		Height:     chartHeight,
		Background: chart.Style{Padding: chart.Box{Top: 20, Left: 16, Right: 16, Bottom: 16}},
		XAxis:      chart.XAxis{ValueFormatter: chart.TimeDateValueFormatter},
		YAxis:      chart.YAxis{Name: "Price"},
		Series:     series,
	}
	ch.Elements = []chart.Renderable{chart.Legend(&ch)}

	var buf bytes.Buffer
	if err := ch.Render(chart.PNG, &buf); err != nil {
		c.renderer.logger.Warn("price chart render failed",
			zap.String("container", c.container),
			zap.Int("candles", len(c.candles)),
			zap.Error(err))
		return
	}
	c.renderer.canvas.store(c.container, buf.Bytes())
}

type pngGexChart struct {
	renderer  *PNGRenderer
	container string

	mu       sync.Mutex
	disposed bool
}

func (c *pngGexChart) SetBars(bars []Bar) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	if len(bars) == 0 {
		c.renderer.canvas.store(c.container, nil)
		return
	}

	values := make([]chart.Value, 0, len(bars))
	for _, b := range bars {
		tone := viewmodel.GexTone(b.Value)
		values = append(values, chart.Value{
			Label: b.Label,
			Value: b.Value,
			Style: chart.Style{FillColor: color(tone.Color), StrokeColor: color(tone.Color)},
		})
	}
	bc := chart.BarChart{
		Title:        "Net GEX by strike ($M)",
		Width:        chartWidth,
		Height:       chartHeight,
		BarWidth:     barWidth(len(values)),
		BarSpacing:   1,
		UseBaseValue: true,
		BaseValue:    0,
		Background:   chart.Style{Padding: chart.Box{Top: 40, Left: 16, Right: 16, Bottom: 16}},
		Bars:         values,
	}

	var buf bytes.Buffer
	if err := bc.Render(chart.PNG, &buf); err != nil {
		c.renderer.logger.Warn("gex chart render failed",
			zap.String("container", c.container),
			zap.Int("bars", len(bars)),
			zap.Error(err))
		return
	}
	c.renderer.canvas.store(c.container, buf.Bytes())
}

func (c *pngGexChart) Dispose() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.disposed {
		return
	}
	c.disposed = true
	c.renderer.canvas.release(c.container)
}

func barWidth(n int) int {
	w := (chartWidth - 64) / n
	switch {
	case w > 40:
		return 40
	case w < 2:
		return 2
	default:
		return w - 1
	}
}

func color(hex string) drawing.Color {
	return drawing.ColorFromHex(strings.TrimPrefix(hex, "#"))
}

func dashes(s LineStyle) []float64 {
	switch s {
	case LineDashed:
		return []float64{6, 4}
	case LineDotted:
		return []float64{2, 3}
	default:
		return nil
	}
}
