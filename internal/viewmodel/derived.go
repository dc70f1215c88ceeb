package viewmodel

import (
	"fmt"
	"math"
	"strings"
)

// Sentiment is the put/call ratio classification.
type Sentiment string

const (
	Bullish Sentiment = "Bullish"
	Neutral Sentiment = "Neutral"
	Bearish Sentiment = "Bearish"
)

const (
	bullishBelow = 0.7
	bearishAbove = 1.0
)

// SentimentOf classifies a put/call ratio. A ratio of 0 means "unknown" and
// falls into Neutral.
func SentimentOf(pcRatio float64) Sentiment {
	switch {
	case pcRatio == 0:
		return Neutral
	case pcRatio < bullishBelow:
		return Bullish
	case pcRatio > bearishAbove:
		return Bearish
	default:
		return Neutral
	}
}

// PCRatio is total put OI over total call OI, or 0 when call OI is 0.
func PCRatio(strikes []GexStrike) float64 {
	var calls, puts float64
	for _, s := range strikes {
		calls += s.CallOI
		puts += s.PutOI
	}
	if calls == 0 {
		return 0
	}
	return puts / calls
}

// VPPosition is where the current price sits relative to the value area.
type VPPosition string

const (
	AboveVAH  VPPosition = "AboveVAH"
	BelowVAL  VPPosition = "BelowVAL"
	AtPOC     VPPosition = "AtPOC"
	InRange   VPPosition = "InRange"
	VPUnknown VPPosition = "Loading"
)

// pocBand is the fraction of the value-area width counted as "at" the POC.
const pocBand = 0.1

// Position classifies price against VAL/POC/VAH. Without both value-area
// edges, or without a price, the position is unknown.
func Position(price, val, poc, vah float64) VPPosition {
	if val <= 0 || vah <= 0 || price <= 0 {
		return VPUnknown
	}
	switch {
	case price > vah:
		return AboveVAH
	case price < val:
		return BelowVAL
	case math.Abs(price-poc) < (vah-val)*pocBand:
		return AtPOC
	default:
		return InRange
	}
}

// Tone is the semantic color class of a signed exposure figure.
type Tone struct {
	Sentiment Sentiment `json:"sentiment"`
	Color     string    `json:"color"`
}

var (
	toneBullish = Tone{Sentiment: Bullish, Color: "#22c55e"}
	toneBearish = Tone{Sentiment: Bearish, Color: "#ef4444"}
	toneNeutral = Tone{Sentiment: Neutral, Color: "#9ca3af"}
)

// GexTone maps the sign of total GEX to a tone.
func GexTone(totalGex float64) Tone {
	switch {
	case totalGex > 0:
		return toneBullish
	case totalGex < 0:
		return toneBearish
	default:
		return toneNeutral
	}
}

// FormatMagnitude renders a dollar magnitude: billions and millions with one
// decimal, smaller values as whole dollars. The sign is kept in front of "$".
func FormatMagnitude(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	// Thresholds compare the rounded figure so 999.96M shows as 1.0B.
	var body string
	switch {
	case math.Round(v/1e5) >= 1e4:
		body = fmt.Sprintf("%.1fB", v/1e9)
	case math.Round(v) >= 1e6:
		body = fmt.Sprintf("%.1fM", v/1e6)
	default:
		body = fmt.Sprintf("%.0f", v)
	}
	return sign + "$" + body
}

// FormatPrice renders a price level, or a dash for the "unknown" sentinel.
func FormatPrice(v float64) string {
	if v <= 0 {
		return "-"
	}
	return strings.TrimSuffix(strings.TrimRight(fmt.Sprintf("%.2f", v), "0"), ".")
}
