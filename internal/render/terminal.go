package render

import (
	"fmt"
	"io"
	"math"
	"strings"
	"sync"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	labelStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	valueStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("15"))
	errorStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("9"))
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("245"))
	panelStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)

const (
	maxTableRows = 15
	barCells     = 30
)

func toneStyle(c string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(c))
}

// TerminalRenderer draws the dashboard as text panels on w.
type TerminalRenderer struct {
	mu   sync.Mutex
	w    io.Writer
	live map[string]bool
}

func NewTerminalRenderer(w io.Writer) *TerminalRenderer {
	return &TerminalRenderer{w: w, live: make(map[string]bool)}
}

// Live returns the number of undisposed charts.
func (r *TerminalRenderer) Live() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.live)
}

func (r *TerminalRenderer) NewPriceChart(container string) (PriceChart, error) {
	if err := r.bind(container); err != nil {
		return nil, err
	}
	return &termPriceChart{r: r, container: container}, nil
}

func (r *TerminalRenderer) NewGexChart(container string) (GexChart, error) {
	if err := r.bind(container); err != nil {
		return nil, err
	}
	return &termGexChart{r: r, container: container}, nil
}

func (r *TerminalRenderer) RenderSummary(s Summary) {
	rows := [][2]string{
		{"Price", s.Price},
		{"Call Wall", s.CallWall},
		{"Put Wall", s.PutWall},
		{"Gamma Flip", s.GammaFlip},
		{"Max Pain", s.MaxPain},
		{"P/C Ratio", s.PCRatio + " " + string(s.Sentiment)},
		{"VP", string(s.VPPosition)},
	}
	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s  %s", s.Ticker, s.Expiry)))
	if !s.MarketDay {
		b.WriteString(labelStyle.Render("  (market closed)"))
	}
	b.WriteString("\n")
	b.WriteString(labelStyle.Render(fmt.Sprintf("%-11s", "Total GEX")))
	b.WriteString(toneStyle(s.GexTone.Color).Render(s.TotalGex))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(labelStyle.Render(fmt.Sprintf("%-11s", row[0])))
		b.WriteString(valueStyle.Render(row[1]))
		b.WriteString("\n")
	}
	r.write(panelStyle.Render(strings.TrimRight(b.String(), "\n")))
}

func (r *TerminalRenderer) RenderTable(rows []viewmodel.TableRow) {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("%8s %10s %10s %10s %9s %9s", "Strike", "Call GEX", "Put GEX", "Net GEX", "Call OI", "Put OI")))
	b.WriteString("\n")
	for i, row := range rows {
		if i == maxTableRows {
			b.WriteString(labelStyle.Render(fmt.Sprintf("… %d more", len(rows)-maxTableRows)))
			b.WriteString("\n")
			break
		}
		color := viewmodel.GexTone(0).Color
		switch viewmodel.Sentiment(row.Tone) {
		case viewmodel.Bullish:
			color = viewmodel.GexTone(1).Color
		case viewmodel.Bearish:
			color = viewmodel.GexTone(-1).Color
		}
		b.WriteString(fmt.Sprintf("%8s %10s %10s ", row.Strike, row.CallGex, row.PutGex))
		b.WriteString(toneStyle(color).Render(fmt.Sprintf("%10s", row.NetGex)))
		b.WriteString(fmt.Sprintf(" %9s %9s\n", row.CallOI, row.PutOI))
	}
	r.write(strings.TrimRight(b.String(), "\n"))
}

func (r *TerminalRenderer) RenderVolumeProfile(bar VolumeProfileBar) {
	if !bar.Ready {
		r.write(labelStyle.Render("Volume profile: " + string(viewmodel.VPUnknown)))
		return
	}
	cells := []rune(strings.Repeat("─", barCells+1))
	mark := func(pct float64, ch rune) {
		i := int(math.Round(pct / 100 * barCells))
		if i >= 0 && i <= barCells {
			cells[i] = ch
		}
	}
	mark(bar.ValPct, '[')
	mark(bar.VahPct, ']')
	mark(bar.PocPct, '|')
	if bar.Price > 0 {
		mark(bar.PricePct, '●')
	}
	r.write(fmt.Sprintf("%s %s %s  %s",
		labelStyle.Render(viewmodel.FormatPrice(bar.VAL)),
		valueStyle.Render(string(cells)),
		labelStyle.Render(viewmodel.FormatPrice(bar.VAH)),
		valueStyle.Render(string(bar.Position))))
}

func (r *TerminalRenderer) UpdatePriceLabel(price float64) {
	r.write(labelStyle.Render("last ") + valueStyle.Render(viewmodel.FormatPrice(price)))
}

func (r *TerminalRenderer) ShowError(err error) {
	r.write(errorStyle.Render("error: " + err.Error()))
}

func (r *TerminalRenderer) bind(container string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.live[container] {
		return ErrContainerBusy
	}
	r.live[container] = true
	return nil
}

func (r *TerminalRenderer) release(container string) {
	r.mu.Lock()
	delete(r.live, container)
	r.mu.Unlock()
}

func (r *TerminalRenderer) write(s string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	fmt.Fprintln(r.w, s)
}

type termPriceChart struct {
	r         *TerminalRenderer
	container string
	disposed  bool
	last      viewmodel.Candle
}

func (c *termPriceChart) SetCandles(candles []viewmodel.Candle) {
	if c.disposed || len(candles) == 0 {
		return
	}
	c.last = candles[len(candles)-1]
	first := candles[0]
	c.r.write(fmt.Sprintf("%s %d candles %s → %s  close %s",
		titleStyle.Render("Price"),
		len(candles),
		first.Time.Format("2006-01-02"),
		c.last.Time.Format("2006-01-02"),
		viewmodel.FormatPrice(c.last.Close)))
}

func (c *termPriceChart) SetPriceLines(lines []PriceLine) {
	if c.disposed || len(lines) == 0 {
		return
	}
	parts := make([]string, 0, len(lines))
	for _, l := range lines {
		parts = append(parts, toneStyle(l.Color).Render(l.Label))
	}
	c.r.write(strings.Join(parts, "  "))
}

func (c *termPriceChart) UpdateCandle(k viewmodel.Candle) {
	if c.disposed {
		return
	}
	c.last = k
	c.r.write(labelStyle.Render(fmt.Sprintf("%s O %s H %s L %s C %s",
		k.Time.Format("2006-01-02"),
		viewmodel.FormatPrice(k.Open),
		viewmodel.FormatPrice(k.High),
		viewmodel.FormatPrice(k.Low),
		viewmodel.FormatPrice(k.Close))))
}

func (c *termPriceChart) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.r.release(c.container)
}

type termGexChart struct {
	r         *TerminalRenderer
	container string
	disposed  bool
}

// SetBars prints the largest absolute bars as horizontal strips.
func (c *termGexChart) SetBars(bars []Bar) {
	if c.disposed || len(bars) == 0 {
		return
	}
	var peak float64
	for _, b := range bars {
		peak = math.Max(peak, math.Abs(b.Value))
	}
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("Net GEX ($M)"))
	sb.WriteString("\n")
	for _, b := range bars {
		n := 0
		if peak > 0 {
			n = int(math.Round(math.Abs(b.Value) / peak * barCells))
		}
		tone := viewmodel.GexTone(b.Value)
		sb.WriteString(fmt.Sprintf("%8s ", b.Label))
		sb.WriteString(toneStyle(tone.Color).Render(strings.Repeat("█", n)))
		sb.WriteString(labelStyle.Render(fmt.Sprintf(" %.1f", b.Value)))
		sb.WriteString("\n")
	}
	c.r.write(strings.TrimRight(sb.String(), "\n"))
}

func (c *termGexChart) Dispose() {
	if c.disposed {
		return
	}
	c.disposed = true
	c.r.release(c.container)
}
