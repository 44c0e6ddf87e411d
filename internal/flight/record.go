// Package flight normalises scraped flight-movement rows into flight records.
//
// It turns the free-text time and date cells of a tracking-site table into
// canonical values, computes elapsed flight time across UTC offsets and
// midnight, and stitches together the partial legs an aircraft produces when
// it lands at or departs from an untracked offshore platform.
package flight

// EnRoute is the duration value of a flight that has not landed yet.
const EnRoute = "En Route"

// RawLegRow is one scraped table row. All fields are free text and may be empty.
type RawLegRow struct {
	Date         string `json:"date,omitempty"`
	AircraftID   string `json:"aircraftId,omitempty"` // Only present on departures-board rows.
	AircraftType string `json:"aircraftType"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Departure    string `json:"departure"`
	Arrival      string `json:"arrival"`
	Duration     string `json:"duration,omitempty"`
	Status       string `json:"status"`
}

// Record is a normalised flight.
//
// Date is the ISO departure date. Departure and Arrival hold canonical time
// text ("HH:MM" optionally followed by a UTC offset). Duration is "H:MM",
// EnRoute, or empty when it could not be determined; an EnRoute record has no
// arrival time.
type Record struct {
	Date         string `json:"date"`
	AircraftID   string `json:"aircraftId"`
	AircraftType string `json:"aircraftType"`
	Origin       string `json:"origin"`
	Destination  string `json:"destination"`
	Departure    string `json:"departure"`
	Arrival      string `json:"arrival"`
	Duration     string `json:"duration"`
	Status       string `json:"status"`
}

// sortKey is the lexicographic ordering key used for recency sorting.
func (r Record) sortKey() string {
	return r.Date + r.Departure
}
