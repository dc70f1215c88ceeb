package render

import (
	"fmt"
	"sort"

	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

// Overlay metric names, also used as visibility toggle keys.
const (
	MetricCallWall  = "call_wall"
	MetricPutWall   = "put_wall"
	MetricGammaFlip = "gamma_flip"
	MetricMaxPain   = "max_pain"
	MetricVAL       = "val"
	MetricPOC       = "poc"
	MetricVAH       = "vah"
)

type overlay struct {
	metric string
	label  string
	color  string
	style  LineStyle
	value  func(vm *viewmodel.ViewModel) float64
}

var overlays = []overlay{
	{MetricCallWall, "Call Wall", "#22c55e", LineSolid, func(vm *viewmodel.ViewModel) float64 { return vm.CallWall }},
	{MetricPutWall, "Put Wall", "#ef4444", LineSolid, func(vm *viewmodel.ViewModel) float64 { return vm.PutWall }},
	{MetricGammaFlip, "Gamma Flip", "#f59e0b", LineDashed, func(vm *viewmodel.ViewModel) float64 { return vm.GammaFlip }},
	{MetricMaxPain, "Max Pain", "#a855f7", LineDashed, func(vm *viewmodel.ViewModel) float64 { return vm.MaxPain }},
	{MetricVAL, "VAL", "#64748b", LineDotted, func(vm *viewmodel.ViewModel) float64 { return vm.VAL }},
	{MetricPOC, "POC", "#0ea5e9", LineDotted, func(vm *viewmodel.ViewModel) float64 { return vm.POC }},
	{MetricVAH, "VAH", "#64748b", LineDotted, func(vm *viewmodel.ViewModel) float64 { return vm.VAH }},
}

// Metrics lists the overlay metric names in display order.
func Metrics() []string {
	names := make([]string, 0, len(overlays))
	for _, o := range overlays {
		names = append(names, o.metric)
	}
	return names
}

// IsMetric reports whether name is a known overlay metric.
func IsMetric(name string) bool {
	for _, o := range overlays {
		if o.metric == name {
			return true
		}
	}
	return false
}

// PriceLines builds the overlay set. Levels at the "unknown" sentinel are
// skipped, as are metrics toggled off in hidden.
func PriceLines(vm *viewmodel.ViewModel, hidden map[string]bool) []PriceLine {
	lines := make([]PriceLine, 0, len(overlays))
	for _, o := range overlays {
		if hidden[o.metric] {
			continue
		}
		p := o.value(vm)
		if p <= 0 {
			continue
		}
		lines = append(lines, PriceLine{
			Metric: o.metric,
			Price:  p,
			Color:  o.color,
			Style:  o.style,
			Label:  fmt.Sprintf("%s %s", o.label, viewmodel.FormatPrice(p)),
		})
	}
	return lines
}

// GexBars converts the strike profile to bars in millions, ordered by strike.
func GexBars(strikes []viewmodel.GexStrike) []Bar {
	sorted := append([]viewmodel.GexStrike(nil), strikes...)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Strike < sorted[j].Strike })

	bars := make([]Bar, 0, len(sorted))
	for _, s := range sorted {
		bars = append(bars, Bar{Label: viewmodel.FormatPrice(s.Strike), Value: s.NetGex / 1e6})
	}
	return bars
}

func BuildSummary(vm *viewmodel.ViewModel) Summary {
	pc := "-"
	if vm.PCRatio > 0 {
		pc = fmt.Sprintf("%.2f", vm.PCRatio)
	}
	return Summary{
		Ticker:     vm.Ticker,
		Expiry:     vm.Expiry,
		Price:      viewmodel.FormatPrice(vm.CurrentPrice),
		CallWall:   viewmodel.FormatPrice(vm.CallWall),
		PutWall:    viewmodel.FormatPrice(vm.PutWall),
		GammaFlip:  viewmodel.FormatPrice(vm.GammaFlip),
		MaxPain:    viewmodel.FormatPrice(vm.MaxPain),
		TotalGex:   viewmodel.FormatMagnitude(vm.TotalGex),
		GexTone:    viewmodel.GexTone(vm.TotalGex),
		PCRatio:    pc,
		Sentiment:  viewmodel.SentimentOf(vm.PCRatio),
		VPPosition: vm.VPPosition,
		MarketDay:  vm.MarketDay,
	}
}

func BuildVolumeProfileBar(vm *viewmodel.ViewModel) VolumeProfileBar {
	bar := VolumeProfileBar{
		VAL:      vm.VAL,
		POC:      vm.POC,
		VAH:      vm.VAH,
		Price:    vm.CurrentPrice,
		Position: vm.VPPosition,
	}
	if vm.VAL <= 0 || vm.VAH <= vm.VAL {
		return bar
	}

	lo, hi := vm.VAL, vm.VAH
	if vm.CurrentPrice > 0 && vm.CurrentPrice < lo {
		lo = vm.CurrentPrice
	}
	if vm.CurrentPrice > hi {
		hi = vm.CurrentPrice
	}
	pct := func(v float64) float64 {
		if v <= 0 {
			return 0
		}
		return (v - lo) / (hi - lo) * 100
	}

	bar.Ready = true
	bar.ValPct = pct(vm.VAL)
	bar.PocPct = pct(vm.POC)
	bar.VahPct = pct(vm.VAH)
	bar.PricePct = pct(vm.CurrentPrice)
	return bar
}
