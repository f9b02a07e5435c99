// Package openmeteo fetches daily historical weather from the Open-Meteo
// archive API and reshapes it into GHCN-Daily rows.
package openmeteo

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/climate-data-monitor/internal/domain"
	"github.com/couchcryptid/climate-data-monitor/internal/observability"
)

// DefaultBaseURL is the Open-Meteo historical archive endpoint.
const DefaultBaseURL = "https://archive-api.open-meteo.com/v1/archive"

const (
	sourceName = "open-meteo"
	dailyVars  = "temperature_2m_max,temperature_2m_min,precipitation_sum"
)

// Request selects a location and inclusive date range.
type Request struct {
	Latitude  float64
	Longitude float64
	Start     time.Time
	End       time.Time
}

// Client calls the Open-Meteo archive API.
type Client struct {
	httpClient *http.Client
	baseURL    string
	metrics    *observability.Metrics
	logger     *slog.Logger
}

// NewClient creates an archive client. An empty baseURL uses DefaultBaseURL.
func NewClient(baseURL string, timeout time.Duration, metrics *observability.Metrics, logger *slog.Logger) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: timeout,
		},
		baseURL: baseURL,
		metrics: metrics,
		logger:  logger,
	}
}

// StationID derives the synthetic station id used for a coordinate pair,
// e.g. 40.71,-74.01 becomes OPEN4071_N7401.
func StationID(lat, lon float64) string {
	id := fmt.Sprintf("OPEN%.2f_%.2f", lat, lon)
	id = strings.ReplaceAll(id, ".", "")
	return strings.ReplaceAll(id, "-", "N")
}

// FetchDaily downloads TMAX, TMIN and PRCP for req and returns them as a
// canonical RawTable. Days the API reports as null are skipped.
func (c *Client) FetchDaily(ctx context.Context, req Request) (domain.RawTable, error) {
	if req.End.Before(req.Start) {
		return domain.RawTable{}, fmt.Errorf("end date %s precedes start date %s",
			req.End.Format(domain.DateLayout), req.Start.Format(domain.DateLayout))
	}

	params := url.Values{
		"latitude":           {strconv.FormatFloat(req.Latitude, 'f', -1, 64)},
		"longitude":          {strconv.FormatFloat(req.Longitude, 'f', -1, 64)},
		"start_date":         {req.Start.Format(domain.DateLayout)},
		"end_date":           {req.End.Format(domain.DateLayout)},
		"daily":              {dailyVars},
		"temperature_unit":   {"celsius"},
		"precipitation_unit": {"mm"},
		"timezone":           {"auto"},
	}

	resp, err := c.doRequest(ctx, c.baseURL+"?"+params.Encode())
	if err != nil {
		return domain.RawTable{}, err
	}

	table := toRawTable(StationID(req.Latitude, req.Longitude), resp.Daily)
	c.logger.Info("fetched open-meteo data",
		"lat", req.Latitude,
		"lon", req.Longitude,
		"records", len(table.Rows),
	)
	return table, nil
}

func (c *Client) doRequest(ctx context.Context, fullURL string) (response, error) {
	start := time.Now()
	defer func() {
		c.metrics.SourceAPIDuration.WithLabelValues(sourceName).Observe(time.Since(start).Seconds())
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
	if err != nil {
		return response{}, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.SourceRequests.WithLabelValues(sourceName, "error").Inc()
		return response{}, fmt.Errorf("archive request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		c.metrics.SourceRequests.WithLabelValues(sourceName, "error").Inc()
		body, _ := io.ReadAll(resp.Body)
		return response{}, fmt.Errorf("open-meteo API error: status %d: %s", resp.StatusCode, body)
	}

	var out response
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		c.metrics.SourceRequests.WithLabelValues(sourceName, "error").Inc()
		return response{}, fmt.Errorf("decode response: %w", err)
	}
	c.metrics.SourceRequests.WithLabelValues(sourceName, "success").Inc()
	return out, nil
}

func toRawTable(stationID string, d daily) domain.RawTable {
	t := domain.RawTable{Header: append([]string(nil), domain.CanonicalColumns...)}
	series := []struct {
		element domain.Element
		values  []*float64
	}{
		{domain.ElementTMAX, d.TemperatureMax},
		{domain.ElementTMIN, d.TemperatureMin},
		{domain.ElementPRCP, d.PrecipitationSum},
	}
	for i, date := range d.Time {
		for _, s := range series {
			if i >= len(s.values) || s.values[i] == nil {
				continue
			}
			t.Rows = append(t.Rows, []string{
				stationID, date, string(s.element),
				strconv.FormatFloat(*s.values[i], 'f', 1, 64),
				"", "", sourceName,
			})
		}
	}
	return t
}

// Open-Meteo API response types.

type response struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
	Daily     daily   `json:"daily"`
}

type daily struct {
	Time             []string   `json:"time"`
	TemperatureMax   []*float64 `json:"temperature_2m_max"`
	TemperatureMin   []*float64 `json:"temperature_2m_min"`
	PrecipitationSum []*float64 `json:"precipitation_sum"`
}
