package viewmodel

import (
	"math"
	"reflect"
	"testing"
	"time"
)

func TestSentimentOf(t *testing.T) {
	tests := []struct {
		ratio float64
		want  Sentiment
	}{
		{0.5, Bullish},
		{0.85, Neutral},
		{1.2, Bearish},
		{0, Neutral},
		{0.7, Neutral},
		{1.0, Neutral},
	}
	for _, tt := range tests {
		if got := SentimentOf(tt.ratio); got != tt.want {
			t.Errorf("SentimentOf(%v) = %s, want %s", tt.ratio, got, tt.want)
		}
	}
}

func TestPosition(t *testing.T) {
	tests := []struct {
		price float64
		want  VPPosition
	}{
		{112, AboveVAH},
		{95, BelowVAL},
		{105.3, AtPOC},
		{103, InRange},
	}
	for _, tt := range tests {
		if got := Position(tt.price, 100, 105, 110); got != tt.want {
			t.Errorf("Position(%v) = %s, want %s", tt.price, got, tt.want)
		}
	}

	if got := Position(105, 0, 105, 110); got != VPUnknown {
		t.Errorf("expected unknown without VAL, got %s", got)
	}
	if got := Position(105, 100, 105, 0); got != VPUnknown {
		t.Errorf("expected unknown without VAH, got %s", got)
	}
}

func TestFormatMagnitude(t *testing.T) {
	tests := []struct {
		v    float64
		want string
	}{
		{2_500_000_000, "$2.5B"},
		{-750_000, "-$750000"},
		{1_000_000, "$1.0M"},
		{-12_340_000, "-$12.3M"},
		{999_999, "$999999"},
		{999_999.6, "$1.0M"},
		{999_960_000, "$1.0B"},
		{-999_949_999, "-$999.9M"},
		{0, "$0"},
	}
	for _, tt := range tests {
		if got := FormatMagnitude(tt.v); got != tt.want {
			t.Errorf("FormatMagnitude(%v) = %q, want %q", tt.v, got, tt.want)
		}
	}
}

func TestGexTone(t *testing.T) {
	if GexTone(1).Sentiment != Bullish {
		t.Error("positive GEX should be bullish")
	}
	if GexTone(-1).Sentiment != Bearish {
		t.Error("negative GEX should be bearish")
	}
	if GexTone(0).Sentiment != Neutral {
		t.Error("zero GEX should be neutral")
	}
}

func TestApplyStrikes_PCRatio(t *testing.T) {
	vm := New()
	vm.ApplyStrikes([]GexStrike{
		{Strike: 100, CallOI: 100, PutOI: 50},
		{Strike: 105, CallOI: 100, PutOI: 250},
	})
	if vm.PCRatio != 1.5 {
		t.Errorf("expected pc ratio 1.5, got %v", vm.PCRatio)
	}

	vm.ApplyStrikes([]GexStrike{{Strike: 100, PutOI: 10}})
	if vm.PCRatio != 0 {
		t.Errorf("expected 0 ratio with no call OI, got %v", vm.PCRatio)
	}
}

func TestApplyLevels_CoercesInvalidToZero(t *testing.T) {
	vm := New()
	vm.ApplyLevels(Levels{CurrentPrice: math.NaN(), CallWall: -5, PutWall: 90, GammaFlip: math.Inf(1), TotalGex: -3e9})
	if vm.CurrentPrice != 0 || vm.CallWall != 0 || vm.GammaFlip != 0 {
		t.Errorf("expected invalid levels to become 0, got %+v", vm)
	}
	if vm.PutWall != 90 {
		t.Errorf("expected put wall 90, got %v", vm.PutWall)
	}
	if vm.TotalGex != -3e9 {
		t.Errorf("total gex keeps its sign, got %v", vm.TotalGex)
	}
}

func TestApplyQuote_PatchesTodaysCandle(t *testing.T) {
	loc := time.UTC
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, loc)

	vm := New()
	vm.ApplyCandles([]Candle{
		{Time: now.AddDate(0, 0, -1), Open: 99, High: 101, Low: 98, Close: 100},
		{Time: now.Add(-2 * time.Hour), Open: 100, High: 102, Low: 99, Close: 101},
	})

	if !vm.ApplyQuote(103, now) {
		t.Fatal("expected today's candle to be patched")
	}
	last, _ := vm.LastCandle()
	if last.Open != 100 || last.High != 103 || last.Low != 99 || last.Close != 103 {
		t.Errorf("unexpected patched candle: %+v", last)
	}

	vm.ApplyQuote(97, now)
	last, _ = vm.LastCandle()
	if last.Low != 97 || last.High != 103 || last.Open != 100 {
		t.Errorf("unexpected candle after lower quote: %+v", last)
	}
	if vm.CurrentPrice != 97 {
		t.Errorf("expected current price 97, got %v", vm.CurrentPrice)
	}
}

func TestApplyQuote_StaleCandleOnlyUpdatesPrice(t *testing.T) {
	now := time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC)
	vm := New()
	vm.ApplyCandles([]Candle{{Time: now.AddDate(0, 0, -3), Open: 99, High: 101, Low: 98, Close: 100}})

	if vm.ApplyQuote(120, now) {
		t.Error("candle from a previous day must not be patched")
	}
	if vm.CurrentPrice != 120 {
		t.Errorf("current price should still update, got %v", vm.CurrentPrice)
	}
	last, _ := vm.LastCandle()
	if last.Close != 100 || last.High != 101 {
		t.Errorf("stale candle was modified: %+v", last)
	}
}

func TestApplyQuote_DailyCandleInExchangeZone(t *testing.T) {
	ny, err := time.LoadLocation("America/New_York")
	if err != nil {
		t.Skipf("no tzdata: %v", err)
	}
	now := time.Date(2026, 10, 19, 11, 0, 0, 0, ny)

	vm := New()
	vm.ApplyCandles([]Candle{
		{Time: time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC), Open: 99, High: 101, Low: 98, Close: 100},
		{Time: time.Date(2026, 10, 19, 0, 0, 0, 0, time.UTC), Open: 100, High: 102, Low: 99, Close: 101},
	})
	if !vm.ApplyQuote(104, now) {
		t.Fatal("expected today's daily candle to be patched in New York time")
	}
	if last, _ := vm.LastCandle(); last.High != 104 || last.Close != 104 || last.Open != 100 {
		t.Errorf("unexpected patched candle: %+v", last)
	}

	// An intraday bar from the previous New York evening is not today.
	vm.ApplyCandles([]Candle{{Time: time.Date(2026, 10, 19, 1, 30, 0, 0, time.UTC), Open: 100, High: 102, Low: 99, Close: 101}})
	if vm.ApplyQuote(105, now) {
		t.Error("bar from 2026-10-18 New York time must not be patched")
	}
}

func TestApplyLevels_KeepsPriceWhenMissing(t *testing.T) {
	vm := New()
	vm.ApplyQuote(512.5, time.Date(2026, 10, 19, 15, 0, 0, 0, time.UTC))
	vm.ApplyLevels(Levels{CallWall: 520})
	if vm.CurrentPrice != 512.5 {
		t.Errorf("levels without a price reset current price to %v", vm.CurrentPrice)
	}
	vm.ApplyLevels(Levels{CurrentPrice: 515})
	if vm.CurrentPrice != 515 {
		t.Errorf("expected 515, got %v", vm.CurrentPrice)
	}
}

func TestApplyVolumeProfile_UpdatesPosition(t *testing.T) {
	vm := New()
	vm.ApplyLevels(Levels{CurrentPrice: 112})
	if vm.VPPosition != VPUnknown {
		t.Errorf("expected unknown before profile, got %s", vm.VPPosition)
	}
	vm.ApplyVolumeProfile(VolumeProfile{VAL: 100, POC: 105, VAH: 110})
	if vm.VPPosition != AboveVAH {
		t.Errorf("expected AboveVAH, got %s", vm.VPPosition)
	}
}

func TestResetForTicker_KeepsPointer(t *testing.T) {
	vm := New()
	vm.LookbackDays = 30
	vm.ApplyLevels(Levels{CurrentPrice: 500, CallWall: 510})
	ref := vm

	vm.ResetForTicker("QQQ")
	if ref.CurrentPrice != 0 || ref.CallWall != 0 {
		t.Errorf("expected scalars reset, got %+v", ref)
	}
	if ref.Ticker != "QQQ" || ref.LookbackDays != 30 {
		t.Errorf("unexpected ticker/lookback after reset: %s/%d", ref.Ticker, ref.LookbackDays)
	}
}

func TestSnapshot_IsDeepCopy(t *testing.T) {
	vm := New()
	vm.ApplyStrikes([]GexStrike{{Strike: 100, NetGex: 1}})
	snap := vm.Snapshot()
	vm.GexByStrike[0].NetGex = 99
	if snap.GexByStrike[0].NetGex != 1 {
		t.Error("snapshot shares backing array with the view model")
	}
}

func TestTableRows_Deterministic(t *testing.T) {
	strikes := []GexStrike{
		{Strike: 110, NetGex: 5e6, CallOI: 10, PutOI: 3},
		{Strike: 100, NetGex: -2e6, CallOI: 20, PutOI: 7},
		{Strike: 105, NetGex: 5e6, CallOI: 5, PutOI: 9},
	}

	a := TableRows(strikes, SortNetGex, true)
	b := TableRows(strikes, SortNetGex, true)
	if !reflect.DeepEqual(a, b) {
		t.Fatal("table rows differ between identical calls")
	}
	if a[0].Strike != "105" || a[1].Strike != "110" || a[2].Strike != "100" {
		t.Errorf("unexpected order: %s, %s, %s", a[0].Strike, a[1].Strike, a[2].Strike)
	}
	if a[2].NetGex != "-$2.0M" || a[2].Tone != "Bearish" {
		t.Errorf("unexpected formatting: %+v", a[2])
	}

	byStrike := TableRows(strikes, ParseSortKey("bogus"), false)
	if byStrike[0].Strike != "100" {
		t.Errorf("expected strike order fallback, got %s", byStrike[0].Strike)
	}
}
