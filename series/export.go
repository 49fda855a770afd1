package series

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/digital-codes/radiationMap/sensors"
)

type filePoint struct {
	Timestamp       string  `json:"timestamp"`
	CountsPerMinute float64 `json:"counts_per_minute"`
}

type filePayload struct {
	SensorID string      `json:"sensor_id"`
	Series   []filePoint `json:"series"`
}

// WriteSeries writes one resampled series as an indented JSON file
// named series_<window>_<id>.json under dir.
func WriteSeries(dir string, sensorID int64, w Window, points []Point) error {
	payload := filePayload{
		SensorID: strconv.FormatInt(sensorID, 10),
		Series:   make([]filePoint, len(points)),
	}
	for i, p := range points {
		payload.Series[i] = filePoint{
			Timestamp:       p.Time.Format(time.RFC3339),
			CountsPerMinute: p.Value,
		}
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	path := filepath.Join(dir, fmt.Sprintf("series_%s_%d.json", w.Name, sensorID))
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// ExportAll resamples every stored sensor over the given windows and
// writes the non-empty results under dir. It returns the number of
// files written.
func ExportAll(st *sensors.Store, dir string, windows []Window, now time.Time, loc *time.Location, log *slog.Logger) (int, error) {
	ids, err := st.SensorIDs()
	if err != nil {
		return 0, err
	}

	written := 0
	for _, id := range ids {
		samples, err := st.CountSeries(id)
		if err != nil {
			return written, err
		}
		obs := FromSamples(samples, loc)

		for _, w := range windows {
			points := Resample(obs, w, now, loc)
			if len(points) == 0 {
				log.Info("no recent data", "sensor", id, "window", w.Name)
				continue
			}
			if err := WriteSeries(dir, id, w, points); err != nil {
				return written, err
			}
			written++
		}
	}
	log.Info("exported series", "sensors", len(ids), "files", written)
	return written, nil
}
