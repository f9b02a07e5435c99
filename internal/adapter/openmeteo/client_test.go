package openmeteo

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/observability"
)

const (
	contentTypeJSON   = "application/json"
	headerContentType = "Content-Type"
)

func testClient(baseURL string, timeout time.Duration) *Client {
	return NewClient(baseURL, timeout, observability.NewMetricsForTesting(),
		slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testRequest() Request {
	return Request{
		Latitude:  40.71,
		Longitude: -74.01,
		Start:     time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		End:       time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC),
	}
}

func TestStationID(t *testing.T) {
	assert.Equal(t, "OPEN4071_N7401", StationID(40.71, -74.01))
	assert.Equal(t, "OPENN3387_15121", StationID(-33.87, 151.21))
}

func TestClient_FetchDaily_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "40.71", q.Get("latitude"))
		assert.Equal(t, "-74.01", q.Get("longitude"))
		assert.Equal(t, "2024-01-01", q.Get("start_date"))
		assert.Equal(t, "2024-01-02", q.Get("end_date"))
		assert.Equal(t, dailyVars, q.Get("daily"))

		w.Header().Set(headerContentType, contentTypeJSON)
		_, _ = w.Write([]byte(`{
			"latitude": 40.71, "longitude": -74.01,
			"daily": {
				"time": ["2024-01-01", "2024-01-02"],
				"temperature_2m_max": [5.24, null],
				"temperature_2m_min": [-1.0, -2.55],
				"precipitation_sum": [0.0, 3.1]
			}
		}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	table, err := c.FetchDaily(context.Background(), testRequest())
	require.NoError(t, err)

	assert.Equal(t, domain.CanonicalColumns, table.Header)
	require.Len(t, table.Rows, 5)
	assert.Equal(t, []string{"OPEN4071_N7401", "2024-01-01", "TMAX", "5.2", "", "", "open-meteo"}, table.Rows[0])
	assert.Equal(t, "TMIN", table.Rows[3][2])
	assert.Equal(t, "2024-01-02", table.Rows[3][1])
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.SourceRequests.WithLabelValues(sourceName, "success")))
}

func TestClient_FetchDaily_APIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":true,"reason":"Parameter 'start_date' is out of range"}`))
	}))
	defer srv.Close()

	c := testClient(srv.URL, 5*time.Second)
	_, err := c.FetchDaily(context.Background(), testRequest())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "400")
	assert.Equal(t, 1.0, testutil.ToFloat64(c.metrics.SourceRequests.WithLabelValues(sourceName, "error")))
}

func TestClient_FetchDaily_Timeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		time.Sleep(200 * time.Millisecond)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c := testClient(srv.URL, 50*time.Millisecond)
	_, err := c.FetchDaily(context.Background(), testRequest())
	require.Error(t, err)
}

func TestClient_FetchDaily_InvertedRange(t *testing.T) {
	req := testRequest()
	req.Start, req.End = req.End, req.Start

	_, err := testClient("http://127.0.0.1:0", time.Second).FetchDaily(context.Background(), req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "precedes")
}
