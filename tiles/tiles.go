// Package tiles implements the Web-Mercator slippy tile scheme used for
// addressing the wind tile pyramid.
package tiles

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"

	"github.com/digital-codes/radiationMap/mathhelp"
)

// MaxLat is the highest latitude representable in the Web-Mercator
// projection. Points beyond it cannot be assigned a tile.
const MaxLat = 85.05112878

// Key addresses one tile at a zoom level. Valid range 0 <= X,Y < 2^Zoom.
type Key struct {
	Zoom int
	X    int
	Y    int
}

func (k Key) String() string {
	return fmt.Sprintf("%d/%d/%d", k.Zoom, k.X, k.Y)
}

// Seed packs the key into the PRNG seed for per-tile sampling. It must
// stay a pure function of (Zoom, X, Y): tile contents are reproducible
// across runs only as long as this mapping never changes.
func (k Key) Seed() uint64 {
	return uint64(k.Zoom&0xFFFF)<<32 ^ uint64(k.X&0xFFFF)<<16 ^ uint64(k.Y&0xFFFF)
}

// PointToTile returns the tile column and row containing the given
// coordinate. Callers must keep lon within [-180, 180] and lat within
// [-MaxLat, MaxLat]; out-of-range inputs yield undefined indices.
func PointToTile(lat, lon float64, zoom int) (x, y int) {
	n := math.Exp2(float64(zoom))
	latRad := lat * math.Pi / 180
	x = int(math.Floor((lon + 180) / 360 * n))
	y = int(math.Floor((1 - math.Asinh(math.Tan(latRad))/math.Pi) / 2 * n))
	return x, y
}

// Bounds returns the geographic extent of the tile. Min is the
// south-west corner, Max the north-east: row y maps to the northern
// edge, y+1 to the southern.
func (k Key) Bounds() orb.Bound {
	n := math.Exp2(float64(k.Zoom))
	lonMin := float64(k.X)/n*360 - 180
	lonMax := float64(k.X+1)/n*360 - 180
	latMax := math.Atan(math.Sinh(math.Pi*(1-2*float64(k.Y)/n))) * 180 / math.Pi
	latMin := math.Atan(math.Sinh(math.Pi*(1-2*float64(k.Y+1)/n))) * 180 / math.Pi
	return orb.Bound{Min: orb.Point{lonMin, latMin}, Max: orb.Point{lonMax, latMax}}
}

// Contains reports whether the coordinate lies within b, inclusive on
// all four edges. A point exactly on a shared tile boundary therefore
// belongs to every adjacent tile; the overlap is intentional and is
// not deduplicated downstream.
func Contains(b orb.Bound, lat, lon float64) bool {
	return mathhelp.BetweenInc(lat, b.Min[1], b.Max[1]) &&
		mathhelp.BetweenInc(lon, b.Min[0], b.Max[0])
}

// Range is the rectangle of tile addresses covering some extent at one
// zoom level.
type Range struct {
	Zoom int
	MinX int
	MaxX int
	MinY int
	MaxY int
}

// RangeForBound computes the tile rectangle covering the bound by
// projecting all four corners and taking the element-wise min/max,
// which handles the Mercator distortion asymmetry between corners.
// Corner coordinates are clamped into the projectable range so grids
// that include the poles still resolve.
func RangeForBound(b orb.Bound, zoom int) Range {
	latMin := mathhelp.Clamp(b.Min[1], -MaxLat, MaxLat)
	latMax := mathhelp.Clamp(b.Max[1], -MaxLat, MaxLat)
	lonMin := mathhelp.Clamp(b.Min[0], -180, 180)
	lonMax := mathhelp.Clamp(b.Max[0], -180, 180)

	x1, y1 := PointToTile(latMin, lonMin, zoom)
	x2, y2 := PointToTile(latMin, lonMax, zoom)
	x3, y3 := PointToTile(latMax, lonMin, zoom)
	x4, y4 := PointToTile(latMax, lonMax, zoom)

	max := int(mathhelp.Pow2(uint(zoom))) - 1
	return Range{
		Zoom: zoom,
		MinX: mathhelp.Clamp(min4(x1, x2, x3, x4), 0, max),
		MaxX: mathhelp.Clamp(max4(x1, x2, x3, x4), 0, max),
		MinY: mathhelp.Clamp(min4(y1, y2, y3, y4), 0, max),
		MaxY: mathhelp.Clamp(max4(y1, y2, y3, y4), 0, max),
	}
}

// Count returns the number of tile addresses in the range.
func (r Range) Count() int {
	return (r.MaxX - r.MinX + 1) * (r.MaxY - r.MinY + 1)
}

// Keys enumerates the range column-major (x outer, y inner).
func (r Range) Keys() []Key {
	keys := make([]Key, 0, r.Count())
	for x := r.MinX; x <= r.MaxX; x++ {
		for y := r.MinY; y <= r.MaxY; y++ {
			keys = append(keys, Key{Zoom: r.Zoom, X: x, Y: y})
		}
	}
	return keys
}

func min4(a, b, c, d int) int {
	return min(min(a, b), min(c, d))
}

func max4(a, b, c, d int) int {
	return max(max(a, b), max(c, d))
}
