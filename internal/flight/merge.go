package flight

import (
	"slices"
	"strings"
	"time"
)

// DefaultMaxFragment is the longest duration an offshore-origin leg may have
// and still be treated as a fragment of a longer flight.
const DefaultMaxFragment = time.Hour

// placeholderDay stands in for an unknown date when a merged duration is
// recomputed.
const placeholderDay = "2000-01-01"

// Merger reconstructs end-to-end flights from the partial legs an aircraft
// produces when it visits an untracked offshore platform: an airport to
// "near Platform X" leg followed by a "near Platform X" to airport leg becomes
// one airport to airport flight.
type Merger struct {
	// IsAirport classifies origins and destinations. Defaults to IsAirport.
	IsAirport LocationClassifier

	// Dates resolves record dates when durations are recomputed.
	Dates DateParser

	// MaxFragment is the offshore-origin leg duration above which the leg is
	// taken as a whole flight. Defaults to DefaultMaxFragment.
	MaxFragment time.Duration

	// EmitTrailing emits a merge still open after the last leg as an EnRoute
	// record instead of dropping it.
	EmitTrailing bool
}

// NewMerger returns a Merger with the default classifier, date tables and
// fragment threshold.
func NewMerger() Merger {
	return Merger{
		IsAirport:   IsAirport,
		Dates:       DefaultDateParser,
		MaxFragment: DefaultMaxFragment,
	}
}

// MergeOffshoreLegs merges legs with the default Merger.
func MergeOffshoreLegs(legs []Record) []Record {
	return NewMerger().Merge(legs)
}

// Merge merges the legs of a single aircraft. Legs may be ordered oldest or
// newest first; the output keeps the input's order. Legs without an origin
// are dropped. The input slice is not modified.
func (m Merger) Merge(legs []Record) []Record {
	out, _ := m.MergeCount(legs)
	return out
}

// MergeCount is Merge that also reports how many legs were folded into the
// flight opened by an earlier leg.
func (m Merger) MergeCount(legs []Record) ([]Record, int) {
	if m.IsAirport == nil {
		m.IsAirport = IsAirport
	}
	if len(m.Dates.Locales) == 0 {
		m.Dates = DefaultDateParser
	}
	if m.MaxFragment <= 0 {
		m.MaxFragment = DefaultMaxFragment
	}

	ordered := slices.Clone(legs)
	descending := isDescending(ordered)
	if descending {
		slices.Reverse(ordered)
	}

	acc := &mergeState{merger: m, out: make([]Record, 0, len(legs))}
	for _, leg := range ordered {
		acc.step(leg)
	}
	out := acc.finish()

	if descending {
		slices.Reverse(out)
	}
	return out, acc.folded
}

// isDescending reports whether legs run newest first, judged by the first and
// last legs that carry a date or departure.
func isDescending(legs []Record) bool {
	var first, last string
	for _, l := range legs {
		if k := l.sortKey(); k != "" {
			if first == "" {
				first = k
			}
			last = k
		}
	}
	return first > last
}

// mergeState is the fold accumulator: the open merge, if any, and the
// flights emitted so far.
type mergeState struct {
	merger  Merger
	pending *Record
	out     []Record
	folded  int
}

func (s *mergeState) step(leg Record) {
	if strings.TrimSpace(leg.Origin) == "" {
		return
	}

	fromAirport := s.merger.IsAirport(leg.Origin)
	toAirport := s.merger.IsAirport(leg.Destination)
	leg.Departure = StripDecorations(leg.Departure)
	leg.Arrival = StripDecorations(leg.Arrival)

	// A departure from an airport always starts a new flight, and a merge
	// never spans two dates.
	if fromAirport {
		s.flush()
	}
	if s.pending != nil && s.pending.Date != leg.Date {
		s.flush()
	}

	if s.whole(leg, fromAirport, toAirport) {
		s.out = append(s.out, leg)
		return
	}

	if fromAirport || s.pending == nil {
		p := leg
		s.pending = &p
		if toAirport {
			s.flush()
		}
		return
	}

	s.extend(leg)
	if toAirport {
		s.flush()
	}
}

// whole reports whether leg is a complete flight that takes no part in
// merging.
func (s *mergeState) whole(leg Record, fromAirport, toAirport bool) bool {
	switch {
	case leg.Duration == EnRoute:
		return true
	case fromAirport && toAirport:
		return true
	case !fromAirport:
		d, ok := ParseDuration(leg.Duration)
		return ok && d > s.merger.MaxFragment
	}
	return false
}

// extend moves the open merge's arrival end to leg and recomputes its
// duration from the original departure. Only the relative time of the two
// ends matters, so an undated merge is measured on placeholderDay.
func (s *mergeState) extend(leg Record) {
	ref := s.pending.Date
	if _, ok := s.merger.Dates.referenceDay(ref); !ok {
		ref = placeholderDay
	}

	s.pending.Destination = leg.Destination
	s.pending.Arrival = leg.Arrival
	s.pending.Duration = s.merger.Dates.ComputeDuration(s.pending.Departure, leg.Arrival, ref)
	s.folded++
}

func (s *mergeState) flush() {
	if s.pending == nil {
		return
	}
	s.out = append(s.out, *s.pending)
	s.pending = nil
}

func (s *mergeState) finish() []Record {
	if s.pending != nil && s.merger.EmitTrailing {
		p := *s.pending
		p.Arrival = ""
		p.Duration = EnRoute
		s.out = append(s.out, p)
	}
	s.pending = nil
	return s.out
}
