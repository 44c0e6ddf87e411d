package flight

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// isoDate is the layout of normalised dates.
const isoDate = "2006-01-02"

// dateRe matches "D-Mon-YYYY" with "-", "/" or space separators.
var dateRe = regexp.MustCompile(`(\d{1,2})[-/ ]([A-Za-z]{3})[-/ ](\d{4})`)

// MonthTable maps lower-case three-letter month abbreviations to months.
type MonthTable struct {
	Name   string
	Months map[string]time.Month
}

// English month abbreviations.
var English = MonthTable{
	Name: "en",
	Months: map[string]time.Month{
		"jan": time.January, "feb": time.February, "mar": time.March,
		"apr": time.April, "may": time.May, "jun": time.June,
		"jul": time.July, "aug": time.August, "sep": time.September,
		"oct": time.October, "nov": time.November, "dec": time.December,
	},
}

// Portuguese month abbreviations.
var Portuguese = MonthTable{
	Name: "pt",
	Months: map[string]time.Month{
		"jan": time.January, "fev": time.February, "mar": time.March,
		"abr": time.April, "mai": time.May, "jun": time.June,
		"jul": time.July, "ago": time.August, "set": time.September,
		"out": time.October, "nov": time.November, "dez": time.December,
	},
}

// LocaleByName returns the month table registered under name ("en", "pt").
func LocaleByName(name string) (MonthTable, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case English.Name, "english":
		return English, nil
	case Portuguese.Name, "portuguese":
		return Portuguese, nil
	}
	return MonthTable{}, fmt.Errorf("unknown date locale %q", name)
}

// DateParser normalises abbreviated-month dates. Locales are consulted in
// order and the first table that knows an abbreviation wins.
type DateParser struct {
	Locales []MonthTable
}

// DefaultDateParser consults English before Portuguese.
var DefaultDateParser = DateParser{Locales: []MonthTable{English, Portuguese}}

func (p DateParser) month(abbr string) (time.Month, bool) {
	abbr = strings.ToLower(abbr)
	for _, l := range p.Locales {
		if m, ok := l.Months[abbr]; ok {
			return m, true
		}
	}
	return 0, false
}

// Normalise converts text such as "23-Jul-2025" or "5 fev 2024" into
// "YYYY-MM-DD". It reports false when the text has no recognisable date,
// the month is unknown, or the day does not exist in that month.
func (p DateParser) Normalise(text string) (string, bool) {
	m := dateRe.FindStringSubmatch(text)
	if m == nil {
		return "", false
	}

	month, ok := p.month(m[2])
	if !ok {
		return "", false
	}
	day, _ := strconv.Atoi(m[1])
	year, _ := strconv.Atoi(m[3])

	d := time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	if d.Day() != day || d.Month() != month {
		return "", false
	}
	return d.Format(isoDate), true
}

// NormaliseDate normalises text with the default English-then-Portuguese
// tables.
func NormaliseDate(text string) (string, bool) {
	return DefaultDateParser.Normalise(text)
}

// referenceDay resolves a reference date given either in ISO form or in the
// scraped abbreviated form.
func (p DateParser) referenceDay(text string) (time.Time, bool) {
	text = strings.TrimSpace(text)
	if d, err := time.Parse(isoDate, text); err == nil {
		return d, true
	}
	iso, ok := p.Normalise(text)
	if !ok {
		return time.Time{}, false
	}
	d, err := time.Parse(isoDate, iso)
	return d, err == nil
}

// InferDateFromTime picks the departure date of an airport-board row, which
// shows a time of day but no date.
//
// The time is placed on now's UTC calendar day and shifted by its UTC offset.
// If that instant lies in the future the flight departed on the previous UTC
// day, otherwise today. Reports false when the text has no time.
func InferDateFromTime(timeText string, now time.Time) (string, bool) {
	c, ok := parseClock(timeText)
	if !ok {
		return "", false
	}

	now = now.UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	departed := c.instant(today)

	if departed.After(now) {
		return today.AddDate(0, 0, -1).Format(isoDate), true
	}
	return today.Format(isoDate), true
}

// instant places the clock on day and converts it to UTC.
func (c clock) instant(day time.Time) time.Time {
	local := day.Add(time.Duration(c.hour)*time.Hour + time.Duration(c.minute)*time.Minute)
	return local.Add(-time.Duration(c.offset) * time.Hour)
}
