package flight

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// durationRe matches "H:MM" durations as printed by the tracking site.
var durationRe = regexp.MustCompile(`^(\d{1,3}):([0-5]\d)$`)

// ComputeDuration returns the elapsed time between departure and arrival as
// "H:MM".
//
// It returns "" when the arrival is empty or unknown, or when either time or
// the reference date cannot be parsed, and EnRoute when the arrival text says
// the aircraft is still airborne. Both times are placed on referenceDate
// (ISO or "23-Jul-2025" form) and converted to UTC using their offsets; an
// arrival before the departure is moved forward a day at a time until it is
// not. There is no upper bound.
func ComputeDuration(departure, arrival, referenceDate string) string {
	return DefaultDateParser.ComputeDuration(departure, arrival, referenceDate)
}

// ComputeDuration resolves referenceDate with p's month tables; otherwise it
// behaves like the package-level ComputeDuration.
func (p DateParser) ComputeDuration(departure, arrival, referenceDate string) string {
	lower := strings.ToLower(arrival)
	switch {
	case strings.TrimSpace(arrival) == "", strings.Contains(lower, "unknown"):
		return ""
	case strings.Contains(lower, "en route"):
		return EnRoute
	}

	dep, ok := parseClock(departure)
	if !ok {
		return ""
	}
	arr, ok := parseClock(arrival)
	if !ok {
		return ""
	}
	day, ok := p.referenceDay(referenceDate)
	if !ok {
		return ""
	}

	from := dep.instant(day)
	to := arr.instant(day)
	for to.Before(from) {
		to = to.Add(24 * time.Hour)
	}

	return FormatDuration(to.Sub(from))
}

// FormatDuration renders d as "H:MM", truncated to whole minutes.
func FormatDuration(d time.Duration) string {
	minutes := int(d / time.Minute)
	return fmt.Sprintf("%d:%02d", minutes/60, minutes%60)
}

// ParseDuration reads an "H:MM" duration. It reports false for anything else,
// including EnRoute.
func ParseDuration(text string) (time.Duration, bool) {
	m := durationRe.FindStringSubmatch(strings.TrimSpace(text))
	if m == nil {
		return 0, false
	}
	h, _ := strconv.Atoi(m[1])
	mins, _ := strconv.Atoi(m[2])
	return time.Duration(h)*time.Hour + time.Duration(mins)*time.Minute, true
}
