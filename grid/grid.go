// Package grid holds the validated wind field the tile pyramid is
// generated from.
package grid

import (
	"errors"
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/digital-codes/radiationMap/tiles"
)

// ErrInvalidGrid marks a field whose arrays cannot form a consistent
// grid. It is fatal at construction, before any tile work starts.
var ErrInvalidGrid = errors.New("invalid grid")

// Field is an immutable gridded wind vector field. Arrays are row-major
// with Rows*Cols entries each. Invalid marks points without usable
// data: missing source values, NaN components, or coordinates outside
// the projectable range. No method mutates the field once built; it is
// shared read-only by all tile workers.
type Field struct {
	Rows int
	Cols int

	Lat []float64
	Lon []float64
	U   []float64
	V   []float64

	Speed   []float64
	Invalid []bool
}

// NewField validates the arrays and derives speed and the combined
// invalid mask. The invalid argument carries per-point missing flags
// from the source decoder and may be nil. Points whose latitude lies
// outside the Mercator-projectable range (or longitude outside
// [-180, 180]) are marked invalid rather than failing the run, since
// source grids may include the poles.
func NewField(rows, cols int, lat, lon, u, v []float64, invalid []bool) (*Field, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("%w: non-positive shape %dx%d", ErrInvalidGrid, rows, cols)
	}
	n := rows * cols
	for name, arr := range map[string][]float64{"lat": lat, "lon": lon, "u": u, "v": v} {
		if len(arr) != n {
			return nil, fmt.Errorf("%w: %s has %d values, want %d", ErrInvalidGrid, name, len(arr), n)
		}
	}
	if invalid != nil && len(invalid) != n {
		return nil, fmt.Errorf("%w: mask has %d values, want %d", ErrInvalidGrid, len(invalid), n)
	}

	f := &Field{
		Rows:    rows,
		Cols:    cols,
		Lat:     lat,
		Lon:     lon,
		U:       u,
		V:       v,
		Speed:   make([]float64, n),
		Invalid: make([]bool, n),
	}
	if invalid != nil {
		copy(f.Invalid, invalid)
	}
	for i := 0; i < n; i++ {
		if math.IsNaN(u[i]) || math.IsNaN(v[i]) || math.IsNaN(lat[i]) || math.IsNaN(lon[i]) {
			f.Invalid[i] = true
		}
		if lat[i] < -tiles.MaxLat || lat[i] > tiles.MaxLat || lon[i] < -180 || lon[i] > 180 {
			f.Invalid[i] = true
		}
		f.Speed[i] = math.Hypot(u[i], v[i])
	}
	return f, nil
}

// Len returns the number of grid points.
func (f *Field) Len() int {
	return f.Rows * f.Cols
}

// ValidCount returns the number of usable points.
func (f *Field) ValidCount() int {
	n := 0
	for _, inv := range f.Invalid {
		if !inv {
			n++
		}
	}
	return n
}

// Direction returns the wind direction at point i in degrees,
// mathematical convention: 0 along +u, counter-clockwise positive.
func (f *Field) Direction(i int) float64 {
	return math.Atan2(f.V[i], f.U[i]) * 180 / math.Pi
}

// BBox returns the geometric bounding box over all grid points with
// finite coordinates. The invalid mask is deliberately ignored: the
// box describes where the grid is, not where it has data.
func (f *Field) BBox() orb.Bound {
	latMin, latMax := math.Inf(1), math.Inf(-1)
	lonMin, lonMax := math.Inf(1), math.Inf(-1)
	for i := 0; i < f.Len(); i++ {
		la, lo := f.Lat[i], f.Lon[i]
		if math.IsNaN(la) || math.IsNaN(lo) {
			continue
		}
		latMin = math.Min(latMin, la)
		latMax = math.Max(latMax, la)
		lonMin = math.Min(lonMin, lo)
		lonMax = math.Max(lonMax, lo)
	}
	return orb.Bound{Min: orb.Point{lonMin, latMin}, Max: orb.Point{lonMax, latMax}}
}
