package publish

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flightinfo/internal/flight"
)

func TestSubject(t *testing.T) {
	n := newNATS(nil, "")

	tests := []struct {
		kind, key string
		want      string
	}{
		{"airport", "SBME", "flightinfo.airport.SBME"},
		{"aircraft", "PROHR", "flightinfo.aircraft.PROHR"},
		{"aircraft", "PR.OHR", "flightinfo.aircraft.PR_OHR"},
		{"aircraft", "a*b>c d", "flightinfo.aircraft.a_b_c_d"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, n.Subject(tt.kind, tt.key))
	}
}

func TestSubjectCustomPrefix(t *testing.T) {
	n := newNATS(nil, "ops.flights.")
	assert.Equal(t, "ops.flights.airport.SBJR", n.Subject("airport", "SBJR"))
}

func TestNopPublisher(t *testing.T) {
	var p Publisher = Nop{}
	assert.NoError(t, p.Publish(context.Background(), "airport", "SBME", nil))
	assert.NoError(t, p.Close())
}

func TestMessageJSON(t *testing.T) {
	msg := Message{
		Kind: "aircraft",
		Key:  "PROHR",
		Flights: []flight.Record{{
			Date: "2025-07-23", AircraftID: "PROHR", Origin: "SBME",
			Destination: "SBME", Departure: "09:00 -03", Arrival: "10:15 -03", Duration: "1:15",
		}},
		Published: time.Date(2025, 7, 23, 14, 0, 0, 0, time.UTC),
	}

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, "aircraft", got["kind"])
	assert.Equal(t, "PROHR", got["key"])
	assert.Equal(t, "2025-07-23T14:00:00Z", got["published"])
	require.Len(t, got["flights"], 1)
	assert.Equal(t, "1:15", got["flights"].([]any)[0].(map[string]any)["duration"])
}

func TestOpenNATSUnreachable(t *testing.T) {
	_, err := OpenNATS(NATSConfig{URL: "nats://127.0.0.1:1"})
	assert.Error(t, err)
}
