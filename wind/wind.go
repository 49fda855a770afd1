// Package wind fetches ECMWF AIFS 100 m wind forecasts and archives
// them as compact grid fields for tiling.
package wind

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const (
	defaultBaseURL = "https://data.ecmwf.int/forecasts"
	forecastPath   = "aifs-single/0p25/oper"
	fileSuffix     = "-6h-oper-fc.grib2"

	userAgent = "radiationMap (https://github.com/digital-codes/radiationMap)"
)

// Slot is the start of a 6-hourly forecast cycle (00z, 06z, 12z or
// 18z UTC).
type Slot struct {
	time.Time
}

// SlotFor returns the cycle containing t.
func SlotFor(t time.Time) Slot {
	u := t.UTC()
	h := u.Hour() / 6 * 6
	return Slot{time.Date(u.Year(), u.Month(), u.Day(), h, 0, 0, 0, time.UTC)}
}

// Fallback returns the cycle 12 hours earlier, the customary lag when
// the current run is not published yet.
func (s Slot) Fallback() Slot {
	return Slot{s.Add(-12 * time.Hour)}
}

// FileName returns the base name of the remote forecast file.
func (s Slot) FileName() string {
	return s.Format("20060102150405") + fileSuffix
}

func (s Slot) path() string {
	return fmt.Sprintf("%s/%02dz/%s/%s", s.Format("20060102"), s.Hour(), forecastPath, s.FileName())
}

// Client resolves and downloads forecast files.
type Client struct {
	baseURL    string
	httpClient *http.Client
	log        *slog.Logger
}

func NewClient(log *slog.Logger) *Client {
	return &Client{
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: 5 * time.Minute},
		log:        log,
	}
}

// URL returns the download URL for slot s.
func (c *Client) URL(s Slot) string {
	return c.baseURL + "/" + s.path()
}

// probe reports whether url answers 200, preferring HEAD and falling
// back to a GET for servers that reject it.
func (c *Client) probe(ctx context.Context, url string) bool {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return false
		}
		req.Header.Set("User-Agent", userAgent)
		resp, err := c.httpClient.Do(req)
		if err != nil {
			continue
		}
		resp.Body.Close()
		if resp.StatusCode == http.StatusOK {
			return true
		}
	}
	return false
}

// Resolve picks the newest available cycle at now: the slot
// containing it when published, otherwise 12 hours back. When neither
// probes OK the primary is returned anyway and the download surfaces
// the failure.
func (c *Client) Resolve(ctx context.Context, now time.Time) Slot {
	primary := SlotFor(now)
	if c.probe(ctx, c.URL(primary)) {
		return primary
	}
	fallback := primary.Fallback()
	if c.probe(ctx, c.URL(fallback)) {
		c.log.Info("primary cycle not published, using fallback",
			"primary", primary.FileName(), "fallback", fallback.FileName())
		return fallback
	}
	c.log.Warn("no published cycle found, attempting primary", "url", c.URL(primary))
	return primary
}

// Download streams url into dest, creating parent directories as
// needed. It returns the number of bytes written.
func (c *Client) Download(ctx context.Context, url, dest string) (int64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("User-Agent", userAgent)
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("download %s: %w", url, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return 0, fmt.Errorf("download %s: unexpected status %s", url, resp.Status)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return 0, err
	}
	f, err := os.Create(dest)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, resp.Body)
	if err != nil {
		f.Close()
		return n, fmt.Errorf("download %s: %w", url, err)
	}
	if err := f.Close(); err != nil {
		return n, err
	}
	return n, nil
}
