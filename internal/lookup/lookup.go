// Package lookup resolves airport and aircraft queries into normalised,
// merged and sorted flight lists.
package lookup

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"flightinfo/internal/flight"
	"flightinfo/internal/metrics"
	"flightinfo/internal/publish"
)

// DefaultRegistrationPrefixes are tried, in order, in front of a bare
// three-character tail such as "OHR".
var DefaultRegistrationPrefixes = []string{"PR", "PP", "PS"}

const defaultConcurrency = 8

// Lookup kinds, used for metrics and publish subjects.
const (
	KindAirport  = "airport"
	KindAircraft = "aircraft"
)

// Source provides the raw table rows of the tracking site. Each call also
// returns the URL it read.
type Source interface {
	Departures(ctx context.Context, airport string) ([]flight.RawLegRow, string, error)
	History(ctx context.Context, ident string) ([]flight.RawLegRow, string, error)
}

// Option configures the Service.
type Option func(*Service)

// WithClock sets the time source used to date airport-board rows.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithMerger sets the offshore leg merger for aircraft histories.
func WithMerger(m flight.Merger) Option {
	return func(s *Service) { s.merger = m }
}

// WithDateParser sets the month tables used for history dates.
func WithDateParser(p flight.DateParser) Option {
	return func(s *Service) { s.dates = p }
}

// WithRegistrationPrefixes sets the prefixes tried for bare tails.
func WithRegistrationPrefixes(prefixes []string) Option {
	return func(s *Service) {
		if len(prefixes) > 0 {
			s.prefixes = prefixes
		}
	}
}

// WithConcurrency caps the lookups running at once for a single query.
func WithConcurrency(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.concurrency = n
		}
	}
}

// WithPublisher sets where successful lookups are published.
func WithPublisher(p publish.Publisher) Option {
	return func(s *Service) { s.publisher = p }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithLogger sets the logger.
func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.log = l }
}

// Service runs lookups against a Source.
type Service struct {
	source      Source
	now         func() time.Time
	merger      flight.Merger
	dates       flight.DateParser
	prefixes    []string
	concurrency int
	publisher   publish.Publisher
	metrics     *metrics.Metrics
	log         zerolog.Logger
}

// New creates a Service reading from src.
func New(src Source, opts ...Option) *Service {
	s := &Service{
		source:      src,
		now:         time.Now,
		merger:      flight.NewMerger(),
		dates:       flight.DefaultDateParser,
		prefixes:    DefaultRegistrationPrefixes,
		concurrency: defaultConcurrency,
		publisher:   publish.Nop{},
		log:         zerolog.Nop(),
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Query runs every airport and aircraft lookup concurrently and aggregates the
// results. A failed lookup contributes an error string and no flights; it
// never affects the others.
func (s *Service) Query(ctx context.Context, airports, aircraft []string) flight.Response {
	airports = unique(airports, NormaliseAirport)
	aircraft = unique(aircraft, NormaliseAircraft)

	results := make([]flight.Result, len(airports)+len(aircraft))

	var g errgroup.Group
	g.SetLimit(s.concurrency)

	for i, code := range airports {
		g.Go(func() error {
			results[i] = s.guard(KindAirport, code, func() flight.Result { return s.Airport(ctx, code) })
			return nil
		})
	}
	for i, ident := range aircraft {
		g.Go(func() error {
			results[len(airports)+i] = s.guard(KindAircraft, ident, func() flight.Result { return s.Aircraft(ctx, ident) })
			return nil
		})
	}
	_ = g.Wait()

	resp := flight.Aggregate(results...)
	s.metrics.FlightsReturned(resp.Total)
	return resp
}

// guard turns a panicking lookup into a lookup error.
func (s *Service) guard(kind, key string, fn func() flight.Result) (res flight.Result) {
	defer func() {
		if r := recover(); r != nil {
			s.log.Error().Str("kind", kind).Str("key", key).Interface("panic", r).Msg("lookup panicked")
			s.metrics.Lookup(kind, "error")
			res = flight.Result{Errors: []string{fmt.Sprintf("%s %s: internal error", kind, key)}}
		}
	}()
	return fn()
}

// Airport returns the departures board of an airport. Board rows carry no
// date, so each is dated from its departure time and the service clock.
func (s *Service) Airport(ctx context.Context, code string) flight.Result {
	code = NormaliseAirport(code)

	rows, src, err := s.source.Departures(ctx, code)
	if err != nil {
		s.log.Warn().Err(err).Str("airport", code).Msg("departures lookup failed")
		s.metrics.Lookup(KindAirport, "error")
		return flight.Result{Errors: []string{fmt.Sprintf("airport %s: %v", code, err)}}
	}

	now := s.now()
	flights := make([]flight.Record, 0, len(rows))
	for _, row := range rows {
		flights = append(flights, s.boardRecord(code, row, now))
	}

	s.finish(ctx, KindAirport, code, flights)
	return flight.Result{Flights: flights, Sources: []string{src}}
}

// Aircraft returns the merged flight history of an aircraft. A bare
// three-character tail is tried behind each registration prefix until one
// has history; errors are reported only if no guess could be read.
func (s *Service) Aircraft(ctx context.Context, ident string) flight.Result {
	ident = NormaliseAircraft(ident)

	var (
		errs     []string
		emptySrc string
	)
	for _, cand := range s.candidates(ident) {
		rows, src, err := s.source.History(ctx, cand)
		if err != nil {
			s.log.Debug().Err(err).Str("aircraft", cand).Msg("history lookup failed")
			errs = append(errs, fmt.Sprintf("aircraft %s: %v", cand, err))
			continue
		}
		if len(rows) == 0 {
			if emptySrc == "" {
				emptySrc = src
			}
			continue
		}

		legs := make([]flight.Record, 0, len(rows))
		for _, row := range rows {
			legs = append(legs, s.historyRecord(cand, row))
		}
		flights, folded := s.merger.MergeCount(legs)
		s.metrics.MergedLegs(folded)

		s.finish(ctx, KindAircraft, cand, flights)
		return flight.Result{Flights: flights, Sources: []string{src}}
	}

	if emptySrc != "" {
		s.metrics.Lookup(KindAircraft, "empty")
		return flight.Result{Sources: []string{emptySrc}}
	}

	s.log.Warn().Str("aircraft", ident).Strs("errors", errs).Msg("aircraft lookup failed")
	s.metrics.Lookup(KindAircraft, "error")
	return flight.Result{Errors: errs}
}

// finish records and publishes a successful lookup.
func (s *Service) finish(ctx context.Context, kind, key string, flights []flight.Record) {
	if len(flights) == 0 {
		s.metrics.Lookup(kind, "empty")
		return
	}
	s.metrics.Lookup(kind, "ok")

	if err := s.publisher.Publish(ctx, kind, key, flights); err != nil {
		s.log.Warn().Err(err).Str("kind", kind).Str("key", key).Msg("publish failed")
	}
}

// candidates lists the identifiers to try for ident.
func (s *Service) candidates(ident string) []string {
	if len(ident) != 3 {
		return []string{ident}
	}
	out := make([]string, 0, len(s.prefixes))
	for _, p := range s.prefixes {
		out = append(out, NormaliseAircraft(p)+ident)
	}
	return out
}

// boardRecord converts a departures-board row of airport.
func (s *Service) boardRecord(airport string, row flight.RawLegRow, now time.Time) flight.Record {
	date, _ := flight.InferDateFromTime(row.Departure, now)
	return flight.Record{
		Date:         date,
		AircraftID:   NormaliseAircraft(row.AircraftID),
		AircraftType: row.AircraftType,
		Origin:       airport,
		Destination:  row.Destination,
		Departure:    flight.NormaliseTime(row.Departure),
		Arrival:      flight.NormaliseTime(row.Arrival),
		Duration:     s.dates.ComputeDuration(row.Departure, row.Arrival, date),
		Status:       row.Status,
	}
}

// historyRecord converts a flight history row of ident. The scraped duration
// is kept only when none can be computed.
func (s *Service) historyRecord(ident string, row flight.RawLegRow) flight.Record {
	date, _ := s.dates.Normalise(row.Date)

	duration := s.dates.ComputeDuration(row.Departure, row.Arrival, date)
	if duration == "" {
		if _, ok := flight.ParseDuration(row.Duration); ok {
			duration = strings.TrimSpace(row.Duration)
		}
	}

	return flight.Record{
		Date:         date,
		AircraftID:   ident,
		AircraftType: row.AircraftType,
		Origin:       row.Origin,
		Destination:  row.Destination,
		Departure:    flight.NormaliseTime(row.Departure),
		Arrival:      flight.NormaliseTime(row.Arrival),
		Duration:     duration,
		Status:       row.Status,
	}
}

// HistoryRecords converts and merges the history rows of one aircraft the way
// an aircraft lookup does, without fetching anything.
func (s *Service) HistoryRecords(ident string, rows []flight.RawLegRow) []flight.Record {
	ident = NormaliseAircraft(ident)
	legs := make([]flight.Record, 0, len(rows))
	for _, row := range rows {
		legs = append(legs, s.historyRecord(ident, row))
	}
	return s.merger.Merge(legs)
}

// NormaliseAirport upper-cases and trims an airport code.
func NormaliseAirport(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

// NormaliseAircraft upper-cases an aircraft identifier and drops dashes and
// spaces, so "PR-OHR" becomes "PROHR".
func NormaliseAircraft(ident string) string {
	return strings.ToUpper(strings.NewReplacer("-", "", " ", "").Replace(ident))
}

// unique normalises values and drops blanks and repeats, keeping order.
func unique(values []string, norm func(string) string) []string {
	seen := make(map[string]bool, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = norm(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
