package flightaware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile("testdata/" + name)
	require.NoError(t, err)
	return string(b)
}

func newTestClient(srv *httptest.Server, opts ...ClientOption) *Client {
	base := []ClientOption{
		WithBaseURL(srv.URL),
		WithRetry(2, time.Millisecond, 2*time.Millisecond),
	}
	return NewClient(append(base, opts...)...)
}

func TestExtractDepartures(t *testing.T) {
	rows, err := ParseDepartures(strings.NewReader(fixture(t, "departures.html")))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "PR-OHR", rows[0].AircraftID)
	assert.Equal(t, "S76", rows[0].AircraftType)
	assert.Equal(t, "near Plataforma P-51", rows[0].Destination)
	assert.Equal(t, "09:45a -03", rows[0].Departure)
	assert.Equal(t, "Landed", rows[0].Status)
	assert.Equal(t, "10:15a -03", rows[0].Arrival)
	assert.Empty(t, rows[0].Origin)

	assert.Equal(t, "En Route", rows[1].Arrival)
}

func TestExtractDeparturesMissingSection(t *testing.T) {
	_, err := ParseDepartures(strings.NewReader(`<html><body><table><tr><td>x</td></tr></table></body></html>`))
	assert.ErrorIs(t, err, ErrSectionNotFound)
}

func TestExtractDeparturesEmptyBoard(t *testing.T) {
	rows, err := ParseDepartures(strings.NewReader(`<div id="departures-board"></div>`))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestExtractHistory(t *testing.T) {
	rows, err := ParseHistory(strings.NewReader(fixture(t, "history.html")))
	require.NoError(t, err)
	require.Len(t, rows, 3)

	first := rows[0]
	assert.Equal(t, "23-Jul-2025", first.Date)
	assert.Equal(t, "near Platform X", first.Origin)
	assert.Equal(t, "Macaé (SBME)", first.Destination)
	assert.Equal(t, "First seen 09:50AM -03", first.Departure)
	assert.Equal(t, "0:25", first.Duration)
	assert.Equal(t, "Arrived", first.Status)

	assert.Equal(t, "Last seen 09:30AM -03 (?)", rows[1].Arrival)
}

func TestExtractHistoryMissingTable(t *testing.T) {
	_, err := ParseHistory(strings.NewReader(`<html><body><p>no flights</p></body></html>`))
	assert.ErrorIs(t, err, ErrTableNotFound)
}

func TestClientSendsBrowserHeaders(t *testing.T) {
	var gotUA, gotLang, gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUA = r.Header.Get("User-Agent")
		gotLang = r.Header.Get("Accept-Language")
		gotPath = r.URL.Path
		_, _ = w.Write([]byte(fixture(t, "departures.html")))
	}))
	defer srv.Close()

	c := newTestClient(srv)
	rows, u, err := c.Departures(context.Background(), "SBME")

	require.NoError(t, err)
	assert.Len(t, rows, 2)
	assert.Equal(t, srv.URL+"/live/airport/SBME", u)
	assert.Equal(t, "/live/airport/SBME", gotPath)
	assert.Equal(t, DefaultHeaders["User-Agent"], gotUA)
	assert.Equal(t, "en-US,en;q=0.9", gotLang)
}

func TestClientHistoryPath(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/live/flight/PROHR/history", r.URL.Path)
		_, _ = w.Write([]byte(fixture(t, "history.html")))
	}))
	defer srv.Close()

	rows, u, err := newTestClient(srv).History(context.Background(), "PROHR")

	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.True(t, strings.HasSuffix(u, "/live/flight/PROHR/history"))
}

func TestClientRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(fixture(t, "history.html")))
	}))
	defer srv.Close()

	rows, _, err := newTestClient(srv).History(context.Background(), "PROHR")

	require.NoError(t, err)
	assert.Len(t, rows, 3)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientGivesUpAfterRetryBudget(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv).History(context.Background(), "PROHR")

	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, http.StatusBadGateway, se.StatusCode)
	assert.Equal(t, int32(3), calls.Load())
}

func TestClientDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv).Departures(context.Background(), "XXXX")

	assert.ErrorIs(t, err, ErrUpstreamStatus)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientDoesNotRetryMissingSection(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`<html><body>maintenance</body></html>`))
	}))
	defer srv.Close()

	_, _, err := newTestClient(srv).Departures(context.Background(), "SBME")

	assert.ErrorIs(t, err, ErrSectionNotFound)
	assert.Equal(t, int32(1), calls.Load())
}

func TestClientHonoursContextCancellation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := newTestClient(srv, WithRetry(5, time.Second, time.Second))
	_, _, err := c.History(ctx, "PROHR")

	assert.ErrorIs(t, err, context.Canceled)
}

func TestClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	c := newTestClient(srv, WithTimeout(20*time.Millisecond), WithRetry(0, time.Millisecond, time.Millisecond))
	_, _, err := c.History(context.Background(), "PROHR")

	assert.Error(t, err)
}

func TestClientRateLimitOption(t *testing.T) {
	c := NewClient(WithRateLimit(5, 0))
	require.NotNil(t, c.limiter)
	assert.Equal(t, 1, c.limiter.Burst())

	c = NewClient(WithRateLimit(0, 3))
	assert.Nil(t, c.limiter)
}

func TestWithTimeoutDoesNotModifyCallerClient(t *testing.T) {
	hc := &http.Client{Timeout: time.Minute}

	c := NewClient(WithHTTPClient(hc), WithTimeout(3*time.Second))

	assert.Equal(t, time.Minute, hc.Timeout)
	assert.Equal(t, 3*time.Second, c.httpClient.Timeout)
	assert.NotSame(t, hc, c.httpClient)
}
