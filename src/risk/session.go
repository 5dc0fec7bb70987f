package risk

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Session string

const (
	SessionWeekendHoliday Session = "weekend_holiday"
	SessionDeadZone       Session = "dead_zone"
	SessionAsia           Session = "asia_session"
	SessionLondon         Session = "london_session"
	SessionUS             Session = "us_session"
	SessionDefault        Session = "default"
	SessionNoTrade        Session = "no_trade"
)

type Config struct {
	// NoTradeWindow blocks new entries from Friday 09:00 NY until Sunday
	// 03:00 NY and on US market holidays.
	NoTradeWindow bool `envconfig:"RISK_NO_TRADE_WINDOW" default:"false"`
	// BlockDeadZone also blocks entries during the 17:00-20:00 NY lull.
	BlockDeadZone bool `envconfig:"RISK_BLOCK_DEAD_ZONE" default:"false"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config
}

// SessionAt labels now with its New York trading session.
func SessionAt(now time.Time) Session {
	et := getEasternTime(now)
	if isNoTradeWindowNY(et) {
		return SessionNoTrade
	}
	return detectSession(et)
}

// EntryAllowed reports whether a new position may be opened at now. Exits
// are never gated.
func EntryAllowed(now time.Time, cfg Config) (bool, Session) {
	et := getEasternTime(now)
	if cfg.NoTradeWindow && isNoTradeWindowNY(et) {
		return false, SessionNoTrade
	}
	sess := detectSession(et)
	if cfg.BlockDeadZone && sess == SessionDeadZone {
		return false, sess
	}
	return true, sess
}

func getEasternTime(t time.Time) time.Time {
	nyLocation, err := time.LoadLocation("America/New_York")
	if err != nil {
		return t.UTC()
	}
	return t.In(nyLocation)
}

// isNoTradeWindowNY covers Friday 09:00 to Sunday 03:00 NY and US holidays.
// Sunday London hours stay open even on a holiday.
func isNoTradeWindowNY(t time.Time) bool {
	if t.Weekday() == time.Sunday && isLondonSession(t) {
		return false
	}
	if isHoliday(t) {
		return true
	}

	h := t.Hour()
	switch t.Weekday() {
	case time.Friday:
		return h >= 9
	case time.Saturday:
		return true
	case time.Sunday:
		return h < 3
	default:
		return false
	}
}

// detectSession checks weekend and holidays before the intraday sessions.
func detectSession(t time.Time) Session {
	if t.Weekday() == time.Sunday && isLondonSession(t) {
		return SessionLondon
	}

	if t.Weekday() == time.Saturday || t.Weekday() == time.Sunday || isHoliday(t) {
		return SessionWeekendHoliday
	}

	switch {
	case isDeadZone(t):
		return SessionDeadZone
	case isAsiaSession(t):
		return SessionAsia
	case isLondonSession(t):
		return SessionLondon
	case isUSSession(t):
		return SessionUS
	default:
		return SessionDefault
	}
}

func isDeadZone(t time.Time) bool {
	return t.Hour() >= 17 && t.Hour() < 20
}

func isAsiaSession(t time.Time) bool {
	return t.Hour() >= 20 || t.Hour() < 3
}

func isLondonSession(t time.Time) bool {
	return t.Hour() >= 3 && t.Hour() < 9
}

func isUSSession(t time.Time) bool {
	return t.Hour() >= 9 && t.Hour() <= 17
}

func isHoliday(t time.Time) bool {
	day := t.Format(time.DateOnly)
	for _, h := range usHolidays(t.Year()) {
		if h.Format(time.DateOnly) == day {
			return true
		}
	}
	return false
}

// usHolidays lists the US market holidays of year. Fixed-date holidays
// falling on a Sunday move to Monday.
func usHolidays(year int) []time.Time {
	return []time.Time{
		sundayToMonday(time.Date(year, time.January, 1, 0, 0, 0, 0, time.UTC)),
		nthWeekday(year, time.January, time.Monday, 3),
		nthWeekday(year, time.February, time.Monday, 3),
		lastWeekday(year, time.May, time.Monday),
		sundayToMonday(time.Date(year, time.July, 4, 0, 0, 0, 0, time.UTC)),
		nthWeekday(year, time.September, time.Monday, 1),
		nthWeekday(year, time.November, time.Thursday, 4),
		sundayToMonday(time.Date(year, time.December, 25, 0, 0, 0, 0, time.UTC)),
	}
}

func sundayToMonday(d time.Time) time.Time {
	if d.Weekday() == time.Sunday {
		return d.AddDate(0, 0, 1)
	}
	return d
}

// nthWeekday returns the n-th (1-based) given weekday of month.
func nthWeekday(year int, month time.Month, wd time.Weekday, n int) time.Time {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd) - int(first.Weekday()) + 7) % 7
	return first.AddDate(0, 0, offset+(n-1)*7)
}

func lastWeekday(year int, month time.Month, wd time.Weekday) time.Time {
	last := time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC)
	offset := (int(last.Weekday()) - int(wd) + 7) % 7
	return last.AddDate(0, 0, -offset)
}
