package api

import (
	"net/url"
	"strconv"
	"strings"
)

// Source identifies one upstream endpoint.
type Source string

const (
	SourceExpirations   Source = "expirations"
	SourceGexLevels     Source = "gex_levels"
	SourceGexByStrike   Source = "gex_by_strike"
	SourceMaxPain       Source = "max_pain"
	SourceCandles       Source = "candles"
	SourceVolumeProfile Source = "volume_profile"
	SourceQuote         Source = "quote"
)

// Route is a fully resolved request path plus query.
type Route struct {
	Source Source
	Path   string
	Query  url.Values
}

// String renders the route as a relative URL.
func (r Route) String() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// IsFutures reports whether ticker is a futures-style symbol such as "/ES".
func IsFutures(ticker string) bool {
	return strings.HasPrefix(ticker, "/")
}

// Params are the inputs a route may need; unused fields are ignored.
type Params struct {
	Ticker       string
	Expiry       string
	LookbackDays int
}

// equityPaths and futuresPaths are the two upstream route families. Futures
// symbols carry a leading slash, so they travel as a query parameter.
var (
	equityPaths = map[Source]string{
		SourceExpirations:   "/api/expirations/",
		SourceGexLevels:     "/api/gex-levels/",
		SourceGexByStrike:   "/api/gex-by-strike/",
		SourceMaxPain:       "/api/max-pain/",
		SourceCandles:       "/api/candles/",
		SourceVolumeProfile: "/api/volume-profile/",
		SourceQuote:         "/api/quote/",
	}
	futuresPaths = map[Source]string{
		SourceExpirations:   "/api/futures/expirations",
		SourceGexLevels:     "/api/futures/gex-levels",
		SourceGexByStrike:   "/api/futures/gex-by-strike",
		SourceMaxPain:       "/api/futures/max-pain",
		SourceCandles:       "/api/futures/candles",
		SourceVolumeProfile: "/api/futures/volume-profile",
		SourceQuote:         "/api/futures/quote",
	}
)

// BuildRoute resolves the endpoint for src in the family selected by the ticker.
func BuildRoute(src Source, p Params) Route {
	q := url.Values{}
	switch src {
	case SourceGexLevels, SourceGexByStrike, SourceMaxPain:
		if p.Expiry != "" {
			q.Set("expiry", p.Expiry)
		}
	case SourceCandles, SourceVolumeProfile:
		if p.LookbackDays > 0 {
			q.Set("days", strconv.Itoa(p.LookbackDays))
		}
	}

	if IsFutures(p.Ticker) {
		q.Set("symbol", p.Ticker)
		return Route{Source: src, Path: futuresPaths[src], Query: q}
	}
	return Route{Source: src, Path: equityPaths[src] + url.PathEscape(strings.ToUpper(p.Ticker)), Query: q}
}
