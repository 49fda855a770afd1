// Package sensors pulls radiation readings from the sensor.community
// archive API, keeps a rolling window of them in SQLite, and exports
// the newest reading per sensor as GeoJSON for the map client.
package sensors

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://data.sensor.community/airrohr/v1/filter/"

	userAgent = "radiationMap/1.0 (+https://github.com/digital-codes/radiationMap)"
)

// ErrNoData signals that the API answered with an empty batch. A
// round with nothing to store is not a failure.
var ErrNoData = errors.New("no readings returned")

// DefaultRadiationTypes are the Geiger tube sensor types the
// community network reports. A sensor-types file can override them.
var DefaultRadiationTypes = []string{
	"Radiation Si22G",
	"Radiation SBM-20",
	"Radiation SBM-19",
}

// Reading mirrors one record of the filter API. Coordinates and
// measurement values arrive as strings or numbers depending on the
// firmware, so values stay loosely typed until flattening.
type Reading struct {
	ID        int64  `json:"id"`
	Timestamp string `json:"timestamp"`
	Location  struct {
		Latitude  string `json:"latitude"`
		Longitude string `json:"longitude"`
	} `json:"location"`
	Sensor struct {
		ID         int64 `json:"id"`
		SensorType struct {
			Name         string `json:"name"`
			Manufacturer string `json:"manufacturer"`
		} `json:"sensor_type"`
	} `json:"sensor"`
	SensorDataValues []struct {
		ValueType string `json:"value_type"`
		Value     any    `json:"value"`
	} `json:"sensordatavalues"`
}

// Client queries the sensor.community filter API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(log *slog.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		log:        log,
	}
}

// Fetch retrieves the current readings for the given sensor types,
// optionally narrowed to countries.
func (c *Client) Fetch(ctx context.Context, types, countries []string) ([]Reading, error) {
	if len(types) == 0 {
		return nil, fmt.Errorf("no sensor types given")
	}
	query := "type=" + joinEscaped(types)
	if len(countries) > 0 {
		query += "&country=" + joinEscaped(countries)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch readings: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch readings: unexpected status %s", resp.Status)
	}

	var readings []Reading
	if err := json.NewDecoder(resp.Body).Decode(&readings); err != nil {
		return nil, fmt.Errorf("decode readings: %w", err)
	}
	if len(readings) == 0 {
		return nil, ErrNoData
	}
	c.log.Info("fetched readings", "count", len(readings), "types", len(types))
	return readings, nil
}

// joinEscaped percent-escapes each element (type names contain
// spaces) while keeping the commas the API expects between them.
func joinEscaped(elems []string) string {
	escaped := make([]string, len(elems))
	for i, e := range elems {
		escaped[i] = url.PathEscape(e)
	}
	return strings.Join(escaped, ",")
}

// LoadSensorTypes reads a JSON string-array file of sensor type names.
func LoadSensorTypes(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var types []string
	if err := json.Unmarshal(data, &types); err != nil {
		return nil, fmt.Errorf("parse sensor types %s: %w", path, err)
	}
	return types, nil
}

// RadiationTypes filters a type list down to the radiation sensors.
func RadiationTypes(all []string) []string {
	var out []string
	for _, t := range all {
		if strings.HasPrefix(strings.ToLower(t), "radiation") {
			out = append(out, t)
		}
	}
	return out
}
