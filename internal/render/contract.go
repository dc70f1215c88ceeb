// Package render defines the data contract between the refresh lifecycle
// and the chart, table and panel widgets, plus two widget implementations:
// PNG charts for the web surface and lipgloss panels for the terminal.
package render

import (
	"errors"

	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

// Containers the lifecycle binds charts to.
const (
	ContainerPrice = "price-chart"
	ContainerGex   = "gex-chart"
)

// ErrContainerBusy is returned when a chart is created on a container that
// still holds an undisposed chart.
var ErrContainerBusy = errors.New("container already holds a live chart")

// LineStyle is the stroke pattern of a horizontal price line.
type LineStyle string

const (
	LineSolid  LineStyle = "solid"
	LineDashed LineStyle = "dashed"
	LineDotted LineStyle = "dotted"
)

// PriceLine is one named horizontal overlay on the price chart.
type PriceLine struct {
	Metric string    `json:"metric"`
	Price  float64   `json:"price"`
	Color  string    `json:"color"`
	Style  LineStyle `json:"style"`
	Label  string    `json:"label"`
}

// Bar is one bar of the net GEX chart, value in millions.
type Bar struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
}

// Summary is the headline panel.
type Summary struct {
	Ticker     string               `json:"ticker"`
	Expiry     string               `json:"expiry"`
	Price      string               `json:"price"`
	CallWall   string               `json:"call_wall"`
	PutWall    string               `json:"put_wall"`
	GammaFlip  string               `json:"gamma_flip"`
	MaxPain    string               `json:"max_pain"`
	TotalGex   string               `json:"total_gex"`
	GexTone    viewmodel.Tone       `json:"gex_tone"`
	PCRatio    string               `json:"pc_ratio"`
	Sentiment  viewmodel.Sentiment  `json:"sentiment"`
	VPPosition viewmodel.VPPosition `json:"vp_position"`
	MarketDay  bool                 `json:"market_day"`
}

// VolumeProfileBar positions price and POC along the value-area range.
// Percentages are 0..100 across [min(VAL, price), max(VAH, price)].
type VolumeProfileBar struct {
	Ready    bool                 `json:"ready"`
	VAL      float64              `json:"val"`
	POC      float64              `json:"poc"`
	VAH      float64              `json:"vah"`
	Price    float64              `json:"price"`
	Position viewmodel.VPPosition `json:"position"`
	ValPct   float64              `json:"val_pct"`
	PocPct   float64              `json:"poc_pct"`
	VahPct   float64              `json:"vah_pct"`
	PricePct float64              `json:"price_pct"`
}

// PriceChart is a candlestick chart with horizontal overlays.
type PriceChart interface {
	SetCandles(candles []viewmodel.Candle)
	SetPriceLines(lines []PriceLine)
	// UpdateCandle replaces the last candle when times match, else appends.
	UpdateCandle(c viewmodel.Candle)
	Dispose()
}

// GexChart is the net-GEX-by-strike bar chart.
type GexChart interface {
	SetBars(bars []Bar)
	Dispose()
}

// Renderer creates charts and draws the non-chart widgets.
type Renderer interface {
	NewPriceChart(container string) (PriceChart, error)
	NewGexChart(container string) (GexChart, error)
	RenderSummary(s Summary)
	RenderTable(rows []viewmodel.TableRow)
	RenderVolumeProfile(bar VolumeProfileBar)
	UpdatePriceLabel(price float64)
	// ShowError replaces chart and table regions with an error state.
	ShowError(err error)
}
