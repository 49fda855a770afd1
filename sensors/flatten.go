package sensors

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Measurement is one flattened radiation reading. Timestamps and
// coordinates stay in their API string form; the numeric channels are
// nil when the sensor did not report them or sent garbage.
type Measurement struct {
	FileID       int64  `json:"file_id"`
	SensorID     int64  `json:"sensor_id"`
	Timestamp    string `json:"timestamp"`
	Latitude     string `json:"latitude"`
	Longitude    string `json:"longitude"`
	SensorType   string `json:"sensor_type"`
	Manufacturer string `json:"manufacturer"`

	Counts          *float64 `json:"counts"`
	CountsPerMinute *float64 `json:"counts_per_minute"`
	HVPulses        *float64 `json:"hv_pulses"`
	SampleTimeMS    *float64 `json:"sample_time_ms"`
}

// Flatten turns API readings into measurements, coercing the loosely
// typed measurement channels to floats.
func Flatten(readings []Reading) []Measurement {
	out := make([]Measurement, 0, len(readings))
	for _, r := range readings {
		values := map[string]any{}
		for _, v := range r.SensorDataValues {
			if v.ValueType != "" {
				values[v.ValueType] = v.Value
			}
		}
		out = append(out, Measurement{
			FileID:          r.ID,
			SensorID:        r.Sensor.ID,
			Timestamp:       r.Timestamp,
			Latitude:        r.Location.Latitude,
			Longitude:       r.Location.Longitude,
			SensorType:      r.Sensor.SensorType.Name,
			Manufacturer:    r.Sensor.SensorType.Manufacturer,
			Counts:          toFloat(values["counts"]),
			CountsPerMinute: toFloat(values["counts_per_minute"]),
			HVPulses:        toFloat(values["hv_pulses"]),
			SampleTimeMS:    toFloat(values["sample_time_ms"]),
		})
	}
	return out
}

// toFloat coerces a measurement value that may arrive as a string,
// number, or be absent. Anything unparseable becomes nil.
func toFloat(v any) *float64 {
	switch x := v.(type) {
	case float64:
		return &x
	case json.Number:
		f, err := x.Float64()
		if err != nil {
			return nil
		}
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(x), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}
