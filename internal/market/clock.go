// Package market provides the exchange clock used to decide what "today" is.
package market

import (
	"time"

	"github.com/scmhub/calendar"
)

const dateLayout = "2006-01-02"

// Clock reports the current time in the exchange timezone.
type Clock interface {
	Now() time.Time
	IsMarketDay(t time.Time) bool
}

// ExchangeClock is a Clock backed by the NYSE calendar.
type ExchangeClock struct {
	location *time.Location
	nyse     *calendar.Calendar
}

// NewExchangeClock creates a clock in timezone, falling back to UTC when the
// zone cannot be loaded.
func NewExchangeClock(timezone string) *ExchangeClock {
	loc, err := time.LoadLocation(timezone)
	if err != nil {
		loc = time.UTC
	}
	return &ExchangeClock{
		location: loc,
		nyse:     calendar.XNYS(),
	}
}

func (c *ExchangeClock) Now() time.Time {
	return time.Now().In(c.location)
}

// IsMarketDay checks if t falls on a trading day (not weekend/holiday).
func (c *ExchangeClock) IsMarketDay(t time.Time) bool {
	// Noon avoids edge effects around midnight in the calendar's zone
	y, m, d := t.In(c.location).Date()
	return c.nyse.IsBusinessDay(time.Date(y, m, d, 12, 0, 0, 0, c.location))
}

// Location returns the clock's timezone.
func (c *ExchangeClock) Location() *time.Location {
	return c.location
}

// NearestExpiration returns the first expiration on or after today's date,
// or the last one when every expiration is in the past. Expirations are
// YYYY-MM-DD strings; unparseable entries are ignored.
func NearestExpiration(expirations []string, now time.Time) string {
	today := now.Format(dateLayout)
	best := ""
	last := ""
	for _, e := range expirations {
		if _, err := time.Parse(dateLayout, e); err != nil {
			continue
		}
		if e > last {
			last = e
		}
		if e >= today && (best == "" || e < best) {
			best = e
		}
	}
	if best != "" {
		return best
	}
	return last
}
