package flightaware

import (
	"errors"
	"io"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"flightinfo/internal/flight"
)

// Page-shape errors. A page without the expected section is not retried.
var (
	ErrSectionNotFound = errors.New("departures board not found")
	ErrTableNotFound   = errors.New("history table not found")
)

// Departures board columns.
const (
	boardIdent = iota
	boardType
	boardDestination
	boardDeparture
	boardStatus
	boardArrival
)

// History table columns.
const (
	histDate = iota
	histType
	histOrigin
	histDestination
	histDeparture
	histArrival
	histDuration
	histStatus
)

// ExtractDepartures reads the rows of the first table inside the
// #departures-board section. The origin is left empty: every row departs from
// the page's airport.
func ExtractDepartures(doc *goquery.Document) ([]flight.RawLegRow, error) {
	section := doc.Find("#departures-board")
	if section.Length() == 0 {
		return nil, ErrSectionNotFound
	}

	rows := make([]flight.RawLegRow, 0)
	for _, v := range tableRows(section.Find("table").First()) {
		rows = append(rows, flight.RawLegRow{
			AircraftID:   cell(v, boardIdent),
			AircraftType: cell(v, boardType),
			Destination:  cell(v, boardDestination),
			Departure:    cell(v, boardDeparture),
			Status:       cell(v, boardStatus),
			Arrival:      cell(v, boardArrival),
		})
	}
	return rows, nil
}

// ExtractHistory reads the rows of the first table.prettyTable, the flight
// history listing of an aircraft page.
func ExtractHistory(doc *goquery.Document) ([]flight.RawLegRow, error) {
	table := doc.Find("table.prettyTable").First()
	if table.Length() == 0 {
		return nil, ErrTableNotFound
	}

	rows := make([]flight.RawLegRow, 0)
	for _, v := range tableRows(table) {
		rows = append(rows, flight.RawLegRow{
			Date:         cell(v, histDate),
			AircraftType: cell(v, histType),
			Origin:       cell(v, histOrigin),
			Destination:  cell(v, histDestination),
			Departure:    cell(v, histDeparture),
			Arrival:      cell(v, histArrival),
			Duration:     cell(v, histDuration),
			Status:       cell(v, histStatus),
		})
	}
	return rows, nil
}

// ParseHistory extracts history rows from an HTML document.
func ParseHistory(r io.Reader) ([]flight.RawLegRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return ExtractHistory(doc)
}

// ParseDepartures extracts departures-board rows from an HTML document.
func ParseDepartures(r io.Reader) ([]flight.RawLegRow, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, err
	}
	return ExtractDepartures(doc)
}

// tableRows returns the cell texts of every row after the header. Rows whose
// data cells are all blank are skipped.
func tableRows(table *goquery.Selection) [][]string {
	var out [][]string
	table.Find("tr").Each(func(i int, tr *goquery.Selection) {
		if i == 0 {
			return
		}
		values := tr.Find("td").Map(func(_ int, td *goquery.Selection) string {
			return strings.Join(strings.Fields(td.Text()), " ")
		})
		if strings.Join(values, "") == "" {
			return
		}
		out = append(out, values)
	})
	return out
}

func cell(values []string, i int) string {
	if i < len(values) {
		return values[i]
	}
	return ""
}
