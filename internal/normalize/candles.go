package normalize

import (
	"sort"
	"strconv"
	"time"

	"github.com/dgnsrekt/gexdash/internal/viewmodel"
)

// candlePaths lists where the candle array may live, most preferred first.
// The empty path is a bare top-level array.
var candlePaths = [][]string{
	{"data", "candles"},
	{"candles"},
	{},
}

// Candle field aliases, most preferred first.
var (
	candleTimeKeys  = []string{"time", "date", "t"}
	candleOpenKeys  = []string{"open", "o"}
	candleHighKeys  = []string{"high", "h"}
	candleLowKeys   = []string{"low", "l"}
	candleCloseKeys = []string{"close", "c"}
)

// candleTimeLayouts are the string forms accepted for a candle time.
var candleTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02",
}

// millisThreshold separates unix seconds from unix milliseconds.
const millisThreshold = 1e12

// Candles extracts OHLC bars from any of the known payload shapes. Candles
// with a missing time or a non-positive price are dropped. It reports false
// when the payload is not JSON or holds no candle array at all; an empty
// array is a valid, empty result.
func Candles(raw []byte) ([]viewmodel.Candle, bool) {
	root, err := decode(raw)
	if err != nil {
		return nil, false
	}

	var items []any
	found := false
	for _, path := range candlePaths {
		v, ok := lookup(root, path)
		if !ok {
			continue
		}
		if arr, ok := v.([]any); ok {
			items, found = arr, true
			break
		}
	}
	if !found {
		return nil, false
	}

	out := make([]viewmodel.Candle, 0, len(items))
	for _, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			continue
		}
		c, ok := candle(obj)
		if !ok {
			continue
		}
		out = append(out, c)
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Time.Before(out[j].Time)
	})
	return out, true
}

func candle(obj map[string]any) (viewmodel.Candle, bool) {
	ts, ok := candleTime(obj)
	if !ok {
		return viewmodel.Candle{}, false
	}
	c := viewmodel.Candle{Time: ts}
	for _, f := range []struct {
		keys []string
		dst  *float64
	}{
		{candleOpenKeys, &c.Open},
		{candleHighKeys, &c.High},
		{candleLowKeys, &c.Low},
		{candleCloseKeys, &c.Close},
	} {
		v, ok := field(obj, f.keys)
		if !ok || v <= 0 {
			return viewmodel.Candle{}, false
		}
		*f.dst = v
	}
	return c, true
}

// candleTime takes the first truthy time alias, mirroring "time || date || t".
func candleTime(obj map[string]any) (time.Time, bool) {
	for _, k := range candleTimeKeys {
		v, ok := obj[k]
		if !ok || !truthy(v) {
			continue
		}
		if n, ok := number(v); ok {
			return unixTime(n)
		}
		s, ok := v.(string)
		if !ok {
			return time.Time{}, false
		}
		if n, err := strconv.ParseFloat(s, 64); err == nil {
			return unixTime(n)
		}
		for _, layout := range candleTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, true
			}
		}
		return time.Time{}, false
	}
	return time.Time{}, false
}

func unixTime(n float64) (time.Time, bool) {
	if n <= 0 {
		return time.Time{}, false
	}
	if n >= millisThreshold {
		return time.UnixMilli(int64(n)).UTC(), true
	}
	return time.Unix(int64(n), 0).UTC(), true
}
