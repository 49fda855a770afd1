package grid

import (
	"math"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testField builds a small all-valid 2x3 grid.
func testField(t *testing.T) *Field {
	t.Helper()
	f, err := NewField(2, 3,
		[]float64{50.0, 50.0, 50.0, 50.1, 50.1, 50.1},
		[]float64{8.0, 8.1, 8.2, 8.0, 8.1, 8.2},
		[]float64{3, 4, 0, -3, 0, 1},
		[]float64{4, 3, 0, -4, 5, 0},
		nil)
	require.NoError(t, err)
	return f
}

func TestNewFieldShapeValidation(t *testing.T) {
	lat := []float64{1, 2, 3, 4}
	tests := []struct {
		name string
		rows int
		cols int
		lon  []float64
	}{
		{"short lon", 2, 2, []float64{1, 2, 3}},
		{"long lon", 2, 2, []float64{1, 2, 3, 4, 5}},
		{"zero rows", 0, 4, []float64{1, 2, 3, 4}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewField(tt.rows, tt.cols, lat, tt.lon, lat, lat, nil)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrInvalidGrid)
		})
	}
}

func TestNewFieldMaskValidation(t *testing.T) {
	lat := []float64{1, 2}
	_, err := NewField(1, 2, lat, lat, lat, lat, []bool{true})
	assert.ErrorIs(t, err, ErrInvalidGrid)
}

func TestDerivedValues(t *testing.T) {
	f := testField(t)
	assert.Equal(t, 6, f.Len())
	assert.InDelta(t, 5.0, f.Speed[0], 1e-12)
	assert.InDelta(t, 5.0, f.Speed[3], 1e-12)
	assert.InDelta(t, 0.0, f.Speed[2], 1e-12)

	// atan2(4,3) in degrees
	assert.InDelta(t, 53.13010235415598, f.Direction(0), 1e-9)
	// pure +v wind points along +90
	assert.InDelta(t, 90.0, f.Direction(4), 1e-9)
	// third quadrant
	assert.InDelta(t, -126.86989764584402, f.Direction(3), 1e-9)
}

func TestInvalidMaskUnion(t *testing.T) {
	f, err := NewField(1, 5,
		[]float64{50, 50, 90, 50, 50},          // index 2 beyond Mercator range
		[]float64{8, 8, 8, 200, 8},             // index 3 out of longitude range
		[]float64{1, math.NaN(), 1, 1, 1},      // index 1 NaN component
		[]float64{1, 1, 1, 1, 1},
		[]bool{true, false, false, false, false}) // index 0 flagged by source
	require.NoError(t, err)

	assert.Equal(t, []bool{true, true, true, true, false}, f.Invalid)
	assert.Equal(t, 1, f.ValidCount())
}

func TestBBoxIgnoresInvalidMask(t *testing.T) {
	// Pole point is invalid for tiling but still part of the geometry.
	f, err := NewField(1, 3,
		[]float64{50, 90, 40},
		[]float64{8, 9, 7},
		[]float64{1, 1, 1},
		[]float64{1, 1, 1},
		nil)
	require.NoError(t, err)

	b := f.BBox()
	assert.Equal(t, 40.0, b.Min[1])
	assert.Equal(t, 90.0, b.Max[1])
	assert.Equal(t, 7.0, b.Min[0])
	assert.Equal(t, 9.0, b.Max[0])
}

func TestBBoxSkipsNaNCoordinates(t *testing.T) {
	f, err := NewField(1, 3,
		[]float64{50, math.NaN(), 40},
		[]float64{8, 9, 7},
		[]float64{1, 1, 1},
		[]float64{1, 1, 1},
		nil)
	require.NoError(t, err)

	b := f.BBox()
	assert.Equal(t, 40.0, b.Min[1])
	assert.Equal(t, 50.0, b.Max[1])
}

func TestArchiveRoundTrip(t *testing.T) {
	f := testField(t)
	meta := Meta{
		Source:           "20260204000000-6h-oper-fc.grib2",
		OriginalUnits:    "m s**-1",
		ConversionFactor: 1.0,
		Slot:             time.Date(2026, 2, 4, 0, 0, 0, 0, time.UTC),
	}

	path := filepath.Join(t.TempDir(), "wind100m.msgpack.zst")
	n, err := WriteArchive(path, f, meta)
	require.NoError(t, err)
	assert.Greater(t, n, int64(0))

	got, gotMeta, err := ReadArchive(path)
	require.NoError(t, err)
	assert.Equal(t, f.Rows, got.Rows)
	assert.Equal(t, f.Cols, got.Cols)
	assert.Equal(t, f.Lat, got.Lat)
	assert.Equal(t, f.Lon, got.Lon)
	assert.Equal(t, f.U, got.U)
	assert.Equal(t, f.V, got.V)
	assert.Equal(t, f.Invalid, got.Invalid)
	assert.Equal(t, f.Speed, got.Speed)
	assert.Equal(t, meta.Source, gotMeta.Source)
	assert.Equal(t, meta.ConversionFactor, gotMeta.ConversionFactor)
	assert.True(t, meta.Slot.Equal(gotMeta.Slot))
}

func TestReadArchiveMissingFile(t *testing.T) {
	_, _, err := ReadArchive(filepath.Join(t.TempDir(), "nope.msgpack.zst"))
	require.Error(t, err)
}
