package sensors

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// LatestFileName is the GeoJSON export consumed by the web client.
const LatestFileName = "radiationLatest.geojson"

// WriteLatestGeoJSON exports the newest reading of every sensor as an
// indented GeoJSON FeatureCollection. Rows without parseable
// coordinates are skipped. It returns the number of features written.
func WriteLatestGeoJSON(path string, rows []LatestRow) (int, error) {
	fc := geojson.NewFeatureCollection()
	for _, r := range rows {
		lat, latErr := strconv.ParseFloat(r.Latitude, 64)
		lon, lonErr := strconv.ParseFloat(r.Longitude, 64)
		if latErr != nil || lonErr != nil {
			continue
		}
		ft := geojson.NewFeature(orb.Point{lon, lat})
		ft.Properties = geojson.Properties{
			"sensor_id":   r.SensorID,
			"sensor_type": r.SensorType,
			// DB column counts_per_minute maps to the client's
			// count_per_minute property
			"count_per_minute": r.CountsPerMinute,
			"timestamp":        r.Timestamp,
		}
		fc.Append(ft)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return 0, fmt.Errorf("write %s: %w", path, err)
	}
	return len(fc.Features), nil
}

// WriteDumps writes the flattened batch as JSON lines and CSV under
// dir, sorted by sensor and time so diffs between runs stay readable.
func WriteDumps(dir string, ms []Measurement) error {
	sorted := make([]Measurement, len(ms))
	copy(sorted, ms)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].SensorID != sorted[j].SensorID {
			return sorted[i].SensorID < sorted[j].SensorID
		}
		return sorted[i].Timestamp < sorted[j].Timestamp
	})

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	if err := writeJSONLines(filepath.Join(dir, "radiation.json"), sorted); err != nil {
		return err
	}
	return writeCSV(filepath.Join(dir, "radiation.csv"), sorted)
}

func writeJSONLines(path string, ms []Measurement) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	enc := json.NewEncoder(f)
	for _, m := range ms {
		if err := enc.Encode(m); err != nil {
			f.Close()
			return fmt.Errorf("write %s: %w", path, err)
		}
	}
	return f.Close()
}

func writeCSV(path string, ms []Measurement) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	header := []string{"file_id", "sensor_id", "timestamp", "latitude", "longitude",
		"sensor_type", "manufacturer", "counts", "counts_per_minute", "hv_pulses", "sample_time_ms"}
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, m := range ms {
		row := []string{
			strconv.FormatInt(m.FileID, 10),
			strconv.FormatInt(m.SensorID, 10),
			m.Timestamp,
			m.Latitude,
			m.Longitude,
			m.SensorType,
			m.Manufacturer,
			formatNullable(m.Counts),
			formatNullable(m.CountsPerMinute),
			formatNullable(m.HVPulses),
			formatNullable(m.SampleTimeMS),
		}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

func formatNullable(v *float64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}
