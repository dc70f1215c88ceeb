// Package viewmodel holds the dashboard's single aggregate of normalized
// analytics values and the pure functions that derive display fields from it.
package viewmodel

import (
	"math"
	"time"
)

// dateLayout is the calendar-day layout used for "is this candle today" checks.
const dateLayout = "2006-01-02"

// GexStrike is one strike row of the gamma exposure profile.
type GexStrike struct {
	Strike  float64 `json:"strike"`
	CallGex float64 `json:"call_gex"`
	PutGex  float64 `json:"put_gex"`
	NetGex  float64 `json:"net_gex"`
	CallOI  float64 `json:"call_oi"`
	PutOI   float64 `json:"put_oi"`
}

// Candle is one OHLC bar. All price fields are positive once normalized.
type Candle struct {
	Time  time.Time `json:"time"`
	Open  float64   `json:"open"`
	High  float64   `json:"high"`
	Low   float64   `json:"low"`
	Close float64   `json:"close"`
}

// Date returns the candle's calendar day in loc. Daily bars arrive stamped
// at midnight UTC (date-only strings, day-aligned unix times); they name a
// calendar day, not an instant, so they keep their UTC date.
func (c Candle) Date(loc *time.Location) string {
	if isDailyStamp(c.Time) {
		return c.Time.UTC().Format(dateLayout)
	}
	return c.Time.In(loc).Format(dateLayout)
}

func isDailyStamp(t time.Time) bool {
	u := t.UTC()
	return u.Hour() == 0 && u.Minute() == 0 && u.Second() == 0 && u.Nanosecond() == 0
}

// Levels are the scalar outputs of the GEX levels endpoint.
type Levels struct {
	CurrentPrice float64
	CallWall     float64
	PutWall      float64
	GammaFlip    float64
	TotalGex     float64
}

// VolumeProfile holds the value-area landmarks.
type VolumeProfile struct {
	VAL float64
	POC float64
	VAH float64
}

// ViewModel is the dashboard's unit of truth. A zero scalar means "not yet
// loaded", never a real price. It is mutated in place across refresh cycles
// and is not safe for concurrent use; the owning session serializes access.
type ViewModel struct {
	Ticker       string   `json:"ticker"`
	Expiry       string   `json:"expiry"`
	Expirations  []string `json:"expirations"`
	LookbackDays int      `json:"lookback_days"`

	CurrentPrice float64 `json:"current_price"`
	CallWall     float64 `json:"call_wall"`
	PutWall      float64 `json:"put_wall"`
	GammaFlip    float64 `json:"gamma_flip"`
	MaxPain      float64 `json:"max_pain"`
	TotalGex     float64 `json:"total_gex"`

	GexByStrike []GexStrike `json:"gex_by_strike"`
	PCRatio     float64     `json:"pc_ratio"`

	Candles []Candle `json:"candles"`

	VAL        float64    `json:"val"`
	POC        float64    `json:"poc"`
	VAH        float64    `json:"vah"`
	VPPosition VPPosition `json:"vp_position"`

	MarketDay bool      `json:"market_day"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New returns a view model with every field at its "unknown" default.
func New() *ViewModel {
	return &ViewModel{
		GexByStrike: []GexStrike{},
		Candles:     []Candle{},
		VPPosition:  VPUnknown,
	}
}

// SetInstrument records the selected ticker and expiry.
func (vm *ViewModel) SetInstrument(ticker, expiry string) {
	vm.Ticker = ticker
	vm.Expiry = expiry
}

// ResetForTicker clears everything tied to the previous instrument. The
// aggregate itself is kept so existing readers keep a valid reference.
func (vm *ViewModel) ResetForTicker(ticker string) {
	*vm = ViewModel{
		Ticker:       ticker,
		LookbackDays: vm.LookbackDays,
		GexByStrike:  []GexStrike{},
		Candles:      []Candle{},
		VPPosition:   VPUnknown,
	}
}

// ApplyLevels copies the GEX levels. A payload without a usable price keeps
// the current one, which the quote poller may have set.
func (vm *ViewModel) ApplyLevels(l Levels) {
	if p := price(l.CurrentPrice); p > 0 {
		vm.CurrentPrice = p
	}
	vm.CallWall = price(l.CallWall)
	vm.PutWall = price(l.PutWall)
	vm.GammaFlip = price(l.GammaFlip)
	vm.TotalGex = finite(l.TotalGex)
	vm.recomputePosition()
}

// ApplyStrikes replaces the strike profile and recomputes the put/call ratio.
func (vm *ViewModel) ApplyStrikes(strikes []GexStrike) {
	vm.GexByStrike = append(vm.GexByStrike[:0], strikes...)
	vm.PCRatio = PCRatio(strikes)
}

func (vm *ViewModel) ApplyMaxPain(v float64) {
	vm.MaxPain = price(v)
}

func (vm *ViewModel) ApplyCandles(candles []Candle) {
	vm.Candles = append(vm.Candles[:0], candles...)
}

func (vm *ViewModel) ApplyVolumeProfile(vp VolumeProfile) {
	vm.VAL = price(vp.VAL)
	vm.POC = price(vp.POC)
	vm.VAH = price(vp.VAH)
	vm.recomputePosition()
}

// ApplyQuote sets the current price and, when the most recent candle belongs
// to today, extends its high/low and moves its close. Open is never touched.
// It reports whether the last candle was patched.
func (vm *ViewModel) ApplyQuote(p float64, now time.Time) bool {
	p = price(p)
	if p == 0 {
		return false
	}
	vm.CurrentPrice = p
	vm.recomputePosition()

	if len(vm.Candles) == 0 {
		return false
	}
	last := &vm.Candles[len(vm.Candles)-1]
	if last.Date(now.Location()) != now.Format(dateLayout) {
		return false
	}
	last.Close = p
	if p > last.High {
		last.High = p
	}
	if p < last.Low {
		last.Low = p
	}
	return true
}

// LastCandle returns the most recent candle, if any.
func (vm *ViewModel) LastCandle() (Candle, bool) {
	if len(vm.Candles) == 0 {
		return Candle{}, false
	}
	return vm.Candles[len(vm.Candles)-1], true
}

// Snapshot returns a deep copy safe to hand to renderers and encoders.
func (vm *ViewModel) Snapshot() ViewModel {
	cp := *vm
	cp.Expirations = append([]string(nil), vm.Expirations...)
	cp.GexByStrike = append([]GexStrike{}, vm.GexByStrike...)
	cp.Candles = append([]Candle{}, vm.Candles...)
	return cp
}

func (vm *ViewModel) recomputePosition() {
	vm.VPPosition = Position(vm.CurrentPrice, vm.VAL, vm.POC, vm.VAH)
}

// price coerces anything that is not a positive finite number to 0.
func price(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) || v <= 0 {
		return 0
	}
	return v
}

func finite(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
