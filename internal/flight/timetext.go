package flight

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// timeRe matches a clock time with an optional meridiem marker (glued or
// spaced, "a", "AM", "p.m." ...) and an optional trailing numeric UTC offset.
var timeRe = regexp.MustCompile(`(\d{1,2}):(\d{2})\s*(?:([AaPp])\.?(?:[Mm]\.?)?)?\s*([+-]?\d{1,2})?\b`)

// canonicalRe splits canonical time text into clock and offset.
var canonicalRe = regexp.MustCompile(`^(\d{2}):(\d{2})(?: ([+-]?\d{1,2}))?$`)

// decorations are the prefixes and markers the tracking site adds to times.
var decorations = []string{"First seen ", "Last seen ", "(?)"}

// StripDecorations removes the "First seen"/"Last seen" prefixes and the
// "(?)" uncertainty marker, collapsing leftover whitespace.
func StripDecorations(text string) string {
	for _, d := range decorations {
		text = strings.ReplaceAll(text, d, "")
	}
	return strings.Join(strings.Fields(text), " ")
}

// NormaliseTime converts scraped time text into canonical "HH:MM ±OFFSET"
// form. The offset is carried over exactly as written and omitted when the
// text has none. Returns "" when no time can be found.
//
// For example "First seen 09:45AM -03" becomes "09:45 -03" and "9:05p" becomes
// "21:05". The function is idempotent.
func NormaliseTime(text string) string {
	text = StripDecorations(text)
	if !strings.Contains(text, ":") {
		return ""
	}

	m := timeRe.FindStringSubmatch(text)
	if m == nil {
		return ""
	}

	hour, _ := strconv.Atoi(m[1])
	minute, _ := strconv.Atoi(m[2])

	switch strings.ToLower(m[3]) {
	case "p":
		if hour < 12 {
			hour += 12
		}
	case "a":
		if hour == 12 {
			hour = 0
		}
	}

	if hour > 23 || minute > 59 {
		return ""
	}

	out := fmt.Sprintf("%02d:%02d", hour, minute)
	if m[4] != "" {
		out += " " + m[4]
	}
	return out
}

// clock is a parsed canonical time.
type clock struct {
	hour, minute int
	offset       int // Signed UTC offset in hours; 0 when absent.
}

// parseClock normalises text and splits it into wall-clock time and offset.
func parseClock(text string) (clock, bool) {
	m := canonicalRe.FindStringSubmatch(NormaliseTime(text))
	if m == nil {
		return clock{}, false
	}

	var c clock
	c.hour, _ = strconv.Atoi(m[1])
	c.minute, _ = strconv.Atoi(m[2])
	if m[3] != "" {
		c.offset, _ = strconv.Atoi(m[3])
	}
	return c, true
}
