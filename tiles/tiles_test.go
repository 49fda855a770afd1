package tiles

import (
	"fmt"
	"testing"

	"github.com/paulmach/orb"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPointToTile(t *testing.T) {
	tests := []struct {
		name     string
		lat, lon float64
		zoom     int
		wantX    int
		wantY    int
	}{
		{"origin zoom 0", 0.0, 0.0, 0, 0, 0},
		{"rhine-main zoom 6", 50.15, 8.15, 6, 33, 21},
		{"berlin zoom 10", 52.5200, 13.4050, 10, 550, 335},
		{"new york zoom 12", 40.7128, -74.0060, 12, 1205, 1540},
		{"sydney zoom 8", -33.8688, 151.2093, 8, 235, 153},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			x, y := PointToTile(tt.lat, tt.lon, tt.zoom)
			assert.EqualValues(t, tt.wantX, x)
			assert.EqualValues(t, tt.wantY, y)
		})
	}
}

func TestBounds(t *testing.T) {
	tests := []struct {
		name string
		key  Key
		want orb.Bound
	}{
		{
			"world tile",
			Key{Zoom: 0, X: 0, Y: 0},
			orb.Bound{Min: orb.Point{-180, -85.0511287798066}, Max: orb.Point{180, 85.0511287798066}},
		},
		{
			"south-east quadrant",
			Key{Zoom: 1, X: 1, Y: 1},
			orb.Bound{Min: orb.Point{0, -85.0511287798066}, Max: orb.Point{180, 0}},
		},
		{
			"rhine-main zoom 6",
			Key{Zoom: 6, X: 33, Y: 21},
			orb.Bound{Min: orb.Point{5.625, 48.92249926375824}, Max: orb.Point{11.25, 52.48278022207821}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.key.Bounds()
			assert.InDelta(t, tt.want.Min[0], got.Min[0], 1e-9)
			assert.InDelta(t, tt.want.Min[1], got.Min[1], 1e-9)
			assert.InDelta(t, tt.want.Max[0], got.Max[0], 1e-9)
			assert.InDelta(t, tt.want.Max[1], got.Max[1], 1e-9)
		})
	}
}

// The center of every tile's bounds must project back onto that tile.
func TestBoundsRoundTrip(t *testing.T) {
	for zoom := 0; zoom <= 8; zoom++ {
		n := 1 << zoom
		step := n/8 + 1
		for x := 0; x < n; x += step {
			for y := 0; y < n; y += step {
				key := Key{Zoom: zoom, X: x, Y: y}
				c := key.Bounds().Center()
				gotX, gotY := PointToTile(c[1], c[0], zoom)
				require.Equal(t, key.X, gotX, "key %s", key)
				require.Equal(t, key.Y, gotY, "key %s", key)
			}
		}
	}
}

func TestContains(t *testing.T) {
	b := Key{Zoom: 6, X: 33, Y: 21}.Bounds()
	tests := []struct {
		name     string
		lat, lon float64
		want     bool
	}{
		{"interior", 50.15, 8.15, true},
		{"west edge inclusive", 50.15, 5.625, true},
		{"east edge inclusive", 50.15, 11.25, true},
		{"north edge inclusive", 52.48278022207821, 8.15, true},
		{"outside west", 50.15, 5.624, false},
		{"outside north", 52.49, 8.15, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Contains(b, tt.lat, tt.lon))
		})
	}
}

func TestRangeForBound(t *testing.T) {
	tests := []struct {
		name  string
		bound orb.Bound
		zoom  int
		want  Range
	}{
		{
			"small extent single tile",
			orb.Bound{Min: orb.Point{8.0, 50.0}, Max: orb.Point{8.3, 50.3}},
			6,
			Range{Zoom: 6, MinX: 33, MaxX: 33, MinY: 21, MaxY: 21},
		},
		{
			"world extent with poles clamps to full range",
			orb.Bound{Min: orb.Point{-180, -90}, Max: orb.Point{180, 90}},
			1,
			Range{Zoom: 1, MinX: 0, MaxX: 1, MinY: 0, MaxY: 1},
		},
		{
			"zoom 0 is always the world tile",
			orb.Bound{Min: orb.Point{8.0, 50.0}, Max: orb.Point{8.3, 50.3}},
			0,
			Range{Zoom: 0, MinX: 0, MaxX: 0, MinY: 0, MaxY: 0},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, RangeForBound(tt.bound, tt.zoom))
		})
	}
}

// Every coordinate inside the source bound must fall inside the bounds
// of at least one tile of the computed range.
func TestRangeCoverage(t *testing.T) {
	bound := orb.Bound{Min: orb.Point{-10.25, 35.5}, Max: orb.Point{24.75, 62.0}}
	for zoom := 1; zoom <= 6; zoom++ {
		r := RangeForBound(bound, zoom)
		for i := 0; i <= 10; i++ {
			for j := 0; j <= 10; j++ {
				lon := bound.Min[0] + (bound.Max[0]-bound.Min[0])*float64(i)/10
				lat := bound.Min[1] + (bound.Max[1]-bound.Min[1])*float64(j)/10
				covered := false
				for _, key := range r.Keys() {
					if Contains(key.Bounds(), lat, lon) {
						covered = true
						break
					}
				}
				require.True(t, covered, "zoom %d point (%f, %f) not covered", zoom, lat, lon)
			}
		}
	}
}

func TestRangeKeys(t *testing.T) {
	r := Range{Zoom: 3, MinX: 2, MaxX: 3, MinY: 5, MaxY: 6}
	assert.Equal(t, 4, r.Count())
	assert.Equal(t, []Key{
		{Zoom: 3, X: 2, Y: 5},
		{Zoom: 3, X: 2, Y: 6},
		{Zoom: 3, X: 3, Y: 5},
		{Zoom: 3, X: 3, Y: 6},
	}, r.Keys())
}

func TestKeySeed(t *testing.T) {
	assert.EqualValues(t, uint64(21475491852), Key{Zoom: 5, X: 10, Y: 12}.Seed())
	assert.EqualValues(t, uint64(25771966485), Key{Zoom: 6, X: 33, Y: 21}.Seed())

	// neighbouring keys must never collide
	seen := map[uint64]Key{}
	for x := 0; x < 32; x++ {
		for y := 0; y < 32; y++ {
			k := Key{Zoom: 5, X: x, Y: y}
			s := k.Seed()
			if prev, ok := seen[s]; ok {
				t.Fatalf("seed collision between %s and %s", prev, k)
			}
			seen[s] = k
		}
	}
}

func TestKeyString(t *testing.T) {
	assert.Equal(t, "6/33/21", fmt.Sprint(Key{Zoom: 6, X: 33, Y: 21}))
}
