package render

import (
	"bytes"
	"errors"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

func sampleVM() *viewmodel.ViewModel {
	vm := viewmodel.New()
	vm.SetInstrument("SPY", "2026-10-23")
	vm.ApplyLevels(viewmodel.Levels{CurrentPrice: 511.5, CallWall: 520, PutWall: 500, GammaFlip: 508, TotalGex: 2.5e9})
	vm.ApplyMaxPain(510)
	vm.ApplyVolumeProfile(viewmodel.VolumeProfile{VAL: 505, POC: 511, VAH: 515})
	vm.ApplyStrikes([]viewmodel.GexStrike{
		{Strike: 515, NetGex: 3e6, CallOI: 100, PutOI: 40},
		{Strike: 505, NetGex: -1.5e6, CallOI: 50, PutOI: 90},
	})
	return vm
}

func TestPriceLines(t *testing.T) {
	vm := sampleVM()
	lines := PriceLines(vm, nil)
	if len(lines) != 7 {
		t.Fatalf("expected 7 overlays, got %d", len(lines))
	}
	if lines[0].Metric != MetricCallWall || lines[0].Label != "Call Wall 520" {
		t.Errorf("unexpected first line: %+v", lines[0])
	}

	lines = PriceLines(vm, map[string]bool{MetricVAL: true, MetricPOC: true, MetricVAH: true})
	if len(lines) != 4 {
		t.Errorf("expected hidden overlays to be skipped, got %d lines", len(lines))
	}

	vm.ApplyMaxPain(0)
	for _, l := range PriceLines(vm, nil) {
		if l.Metric == MetricMaxPain {
			t.Error("unknown max pain must not be drawn")
		}
	}
}

func TestGexBars_SortedInMillions(t *testing.T) {
	bars := GexBars(sampleVM().GexByStrike)
	if len(bars) != 2 {
		t.Fatalf("expected 2 bars, got %d", len(bars))
	}
	if bars[0].Label != "505" || bars[0].Value != -1.5 {
		t.Errorf("unexpected first bar: %+v", bars[0])
	}
	if bars[1].Value != 3 {
		t.Errorf("unexpected second bar: %+v", bars[1])
	}
}

func TestBuildSummary(t *testing.T) {
	s := BuildSummary(sampleVM())
	if s.TotalGex != "$2.5B" || s.GexTone.Sentiment != viewmodel.Bullish {
		t.Errorf("unexpected gex: %s %+v", s.TotalGex, s.GexTone)
	}
	if s.PCRatio != "0.87" || s.Sentiment != viewmodel.Neutral {
		t.Errorf("unexpected pc ratio: %s %s", s.PCRatio, s.Sentiment)
	}
	if s.VPPosition != viewmodel.AtPOC {
		t.Errorf("expected AtPOC, got %s", s.VPPosition)
	}

	empty := BuildSummary(viewmodel.New())
	if empty.Price != "-" || empty.PCRatio != "-" || empty.TotalGex != "$0" {
		t.Errorf("unexpected empty summary: %+v", empty)
	}
}

func TestBuildVolumeProfileBar(t *testing.T) {
	bar := BuildVolumeProfileBar(sampleVM())
	if !bar.Ready {
		t.Fatal("expected ready bar")
	}
	if bar.ValPct != 0 || bar.VahPct != 100 {
		t.Errorf("unexpected edges: %v %v", bar.ValPct, bar.VahPct)
	}
	if bar.PricePct <= bar.ValPct || bar.PricePct >= bar.VahPct {
		t.Errorf("price should sit inside the value area: %v", bar.PricePct)
	}

	if BuildVolumeProfileBar(viewmodel.New()).Ready {
		t.Error("bar without value area must not be ready")
	}
}

func TestCanvas_SingleLiveChartPerContainer(t *testing.T) {
	r := NewPNGRenderer(NewCanvas(), zap.NewNop())

	pc, err := r.NewPriceChart(ContainerPrice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := r.NewPriceChart(ContainerPrice); !errors.Is(err, ErrContainerBusy) {
		t.Fatalf("expected ErrContainerBusy, got %v", err)
	}
	if r.Canvas().Live() != 1 {
		t.Errorf("expected 1 live chart, got %d", r.Canvas().Live())
	}

	pc.Dispose()
	pc.Dispose()
	if r.Canvas().Live() != 0 {
		t.Errorf("expected 0 live charts, got %d", r.Canvas().Live())
	}
	if _, err := r.NewPriceChart(ContainerPrice); err != nil {
		t.Errorf("container should be reusable after dispose: %v", err)
	}
}

func TestPNGRenderer_DrawsCharts(t *testing.T) {
	r := NewPNGRenderer(NewCanvas(), zap.NewNop())
	vm := sampleVM()
	vm.ApplyCandles([]viewmodel.Candle{{Time: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), Open: 510, High: 514, Low: 508, Close: 512}})

	pc, err := r.NewPriceChart(ContainerPrice)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	pc.SetCandles(vm.Candles)
	pc.SetPriceLines(PriceLines(vm, nil))
	img, ok := r.Canvas().Image(ContainerPrice)
	if !ok || !bytes.HasPrefix(img, []byte("\x89PNG")) {
		t.Fatal("expected a PNG for the price chart")
	}

	gc, err := r.NewGexChart(ContainerGex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gc.SetBars(GexBars(vm.GexByStrike))
	if _, ok := r.Canvas().Image(ContainerGex); !ok {
		t.Error("expected a PNG for the gex chart")
	}

	gc.Dispose()
	if _, ok := r.Canvas().Image(ContainerGex); ok {
		t.Error("disposed chart image should be cleared")
	}
}

func TestPNGRenderer_Board(t *testing.T) {
	r := NewPNGRenderer(NewCanvas(), zap.NewNop())

	r.RenderSummary(BuildSummary(sampleVM()))
	r.RenderTable(viewmodel.TableRows(sampleVM().GexByStrike, viewmodel.SortStrike, false))
	r.UpdatePriceLabel(513.5)

	b := r.Board()
	if b.Price != "513.5" || len(b.Table) != 2 || b.Summary.Ticker != "SPY" {
		t.Errorf("unexpected board: %+v", b)
	}

	r.ShowError(errors.New("boom"))
	b = r.Board()
	if b.Error != "boom" || len(b.Table) != 0 {
		t.Errorf("expected error state, got %+v", b)
	}
}

func TestTerminalRenderer(t *testing.T) {
	var out bytes.Buffer
	r := NewTerminalRenderer(&out)
	vm := sampleVM()

	gc, err := r.NewGexChart(ContainerGex)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	gc.SetBars(GexBars(vm.GexByStrike))
	r.RenderSummary(BuildSummary(vm))
	r.RenderTable(viewmodel.TableRows(vm.GexByStrike, viewmodel.SortStrike, false))
	r.RenderVolumeProfile(BuildVolumeProfileBar(vm))
	r.ShowError(errors.New("upstream down"))

	s := out.String()
	for _, want := range []string{"SPY", "$2.5B", "505", "AtPOC", "upstream down"} {
		if !strings.Contains(s, want) {
			t.Errorf("output missing %q", want)
		}
	}
	if r.Live() != 1 {
		t.Errorf("expected 1 live chart, got %d", r.Live())
	}
	gc.Dispose()
	if r.Live() != 0 {
		t.Errorf("expected 0 live charts, got %d", r.Live())
	}
}
