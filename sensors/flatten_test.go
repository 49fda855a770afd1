package sensors

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const samplePayload = `[
  {
    "id": 21997618001,
    "timestamp": "2026-08-22 11:55:02",
    "location": {"latitude": "48.800", "longitude": "9.200"},
    "sensor": {"id": 70001, "sensor_type": {"name": "Radiation Si22G", "manufacturer": "EcoCurious"}},
    "sensordatavalues": [
      {"value_type": "counts_per_minute", "value": "18.25"},
      {"value_type": "counts", "value": 1825},
      {"value_type": "hv_pulses", "value": "bogus"},
      {"value_type": "sample_time_ms", "value": "600000"}
    ]
  },
  {
    "id": 21997618002,
    "timestamp": "2026-08-22 11:57:40",
    "location": {"latitude": "N/A", "longitude": ""},
    "sensor": {"id": 70002, "sensor_type": {"name": "Radiation SBM-20", "manufacturer": "EcoCurious"}},
    "sensordatavalues": [
      {"value_type": "counts_per_minute", "value": "22"}
    ]
  }
]`

func sampleReadings(t *testing.T) []Reading {
	t.Helper()
	var readings []Reading
	require.NoError(t, json.Unmarshal([]byte(samplePayload), &readings))
	return readings
}

func TestFlatten(t *testing.T) {
	ms := Flatten(sampleReadings(t))
	require.Len(t, ms, 2)

	first := ms[0]
	assert.EqualValues(t, 21997618001, first.FileID)
	assert.EqualValues(t, 70001, first.SensorID)
	assert.Equal(t, "2026-08-22 11:55:02", first.Timestamp)
	assert.Equal(t, "48.800", first.Latitude)
	assert.Equal(t, "9.200", first.Longitude)
	assert.Equal(t, "Radiation Si22G", first.SensorType)
	assert.Equal(t, "EcoCurious", first.Manufacturer)
	require.NotNil(t, first.CountsPerMinute)
	assert.Equal(t, 18.25, *first.CountsPerMinute)
	require.NotNil(t, first.Counts)
	assert.Equal(t, 1825.0, *first.Counts)
	assert.Nil(t, first.HVPulses, "unparseable value must coerce to nil")
	require.NotNil(t, first.SampleTimeMS)
	assert.Equal(t, 600000.0, *first.SampleTimeMS)

	second := ms[1]
	assert.EqualValues(t, 70002, second.SensorID)
	assert.Equal(t, "N/A", second.Latitude)
	require.NotNil(t, second.CountsPerMinute)
	assert.Equal(t, 22.0, *second.CountsPerMinute)
	assert.Nil(t, second.Counts)
	assert.Nil(t, second.HVPulses)
	assert.Nil(t, second.SampleTimeMS)
}

func TestToFloat(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want *float64
	}{
		{"number", 18.25, fp(18.25)},
		{"numeric string", "22", fp(22)},
		{"padded string", " 7.5 ", fp(7.5)},
		{"json number", json.Number("3.5"), fp(3.5)},
		{"garbage string", "N/A", nil},
		{"absent", nil, nil},
		{"wrong type", true, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := toFloat(tt.in)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			require.NotNil(t, got)
			assert.Equal(t, *tt.want, *got)
		})
	}
}

func fp(v float64) *float64 { return &v }

func TestRadiationTypes(t *testing.T) {
	all := []string{"SDS011", "Radiation Si22G", "BME280", "radiation SBM-20", "DHT22"}
	assert.Equal(t, []string{"Radiation Si22G", "radiation SBM-20"}, RadiationTypes(all))
	assert.Nil(t, RadiationTypes([]string{"SDS011"}))
}

func TestJoinEscaped(t *testing.T) {
	got := joinEscaped([]string{"Radiation Si22G", "Radiation SBM-20"})
	assert.Equal(t, "Radiation%20Si22G,Radiation%20SBM-20", got)
}
