package main

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightinfo/internal/lookup"
)

const legsJSONL = `{"date":"23-Jul-2025","aircraftId":"PR-OHR","origin":"near Platform X","destination":"Macaé (SBME)","departure":"First seen 09:50AM -03","arrival":"10:15AM -03","duration":"0:25"}
{"date":"23-Jul-2025","aircraftId":"PR-OHR","origin":"Macaé (SBME)","destination":"near Platform X","departure":"09:00AM -03","arrival":"Last seen 09:30AM -03 (?)","duration":"0:30"}
not json

{"date":"22-Jul-2025","origin":"SBJR","destination":"SBME","departure":"04:10PM -03","arrival":"04:55PM -03","duration":"0:45"}
`

func TestMergeLegs(t *testing.T) {
	st := &Stats{}
	out, err := mergeLegs(strings.NewReader(legsJSONL), lookup.New(nil), "ps-abc", st)
	require.NoError(t, err)

	require.Len(t, out, 2)
	assert.Equal(t, "PROHR", out[0].AircraftID)
	assert.Equal(t, "1:15", out[0].Duration)
	assert.Equal(t, "09:00 -03", out[0].Departure)
	assert.Equal(t, "10:15 -03", out[0].Arrival)

	assert.Equal(t, "PSABC", out[1].AircraftID)
	assert.Equal(t, "2025-07-22", out[1].Date)
	assert.Equal(t, "0:45", out[1].Duration)

	assert.Equal(t, Stats{Lines: 5, Malformed: 1, Legs: 3, Aircraft: 2, Flights: 2}, *st)
}

func TestMarshalJSONPretty(t *testing.T) {
	b, err := marshalJSON([]int{1}, true)
	require.NoError(t, err)
	assert.Equal(t, "[\n  1\n]", string(b))
}
