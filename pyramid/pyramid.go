// Package pyramid turns a wind grid into a slippy-map tile pyramid:
// gzipped GeoJSON vector tiles plus rendered PNG raster tiles, one
// pair per non-empty tile per configured zoom level.
//
// Output is deterministic: the same grid and configuration produce
// byte-identical tiles, including the downsampled ones.
package pyramid

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"runtime"
	"slices"
	"strconv"
	"sync/atomic"

	"github.com/klauspost/compress/gzip"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"golang.org/x/sync/errgroup"

	"github.com/digital-codes/radiationMap/grid"
	"github.com/digital-codes/radiationMap/mathhelp"
	"github.com/digital-codes/radiationMap/rand"
	"github.com/digital-codes/radiationMap/raster"
	"github.com/digital-codes/radiationMap/tiles"
)

// Result counts what Generate produced.
type Result struct {
	Written int64 // tiles written (vector+raster pairs)
	Skipped int64 // empty tiles skipped
}

// Select returns the flat indices of all valid grid points whose
// coordinates fall inside bounds. Points on the boundary belong to
// the tile; invalid points never select.
func Select(f *grid.Field, bounds orb.Bound) []int {
	var idx []int
	for i := 0; i < f.Len(); i++ {
		if f.Invalid[i] {
			continue
		}
		if tiles.Contains(bounds, f.Lat[i], f.Lon[i]) {
			idx = append(idx, i)
		}
	}
	return idx
}

// SampleTile applies the per-tile density cap: at most
// MaxFeaturesPerTile points pass through unchanged, above that a
// sample of TargetFeaturesPerTile is drawn with the tile key's seed
// so reruns pick the same points.
func SampleTile(idx []int, key tiles.Key, cfg Config) []int {
	if len(idx) <= cfg.MaxFeaturesPerTile {
		return idx
	}
	return rand.SampleN(rand.New(key.Seed()), idx, cfg.TargetFeaturesPerTile)
}

func buildFeatureCollection(f *grid.Field, idx []int, cfg Config) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, i := range idx {
		ft := geojson.NewFeature(orb.Point{
			mathhelp.RoundTo(f.Lon[i], cfg.CoordinatePrecision),
			mathhelp.RoundTo(f.Lat[i], cfg.CoordinatePrecision),
		})
		ft.Properties = geojson.Properties{
			"u":         mathhelp.RoundTo(f.U[i], cfg.ValuePrecision),
			"v":         mathhelp.RoundTo(f.V[i], cfg.ValuePrecision),
			"speed":     mathhelp.RoundTo(f.Speed[i], cfg.ValuePrecision),
			"direction": mathhelp.RoundTo(f.Direction(i), cfg.DirectionPrecision),
		}
		fc.Append(ft)
	}
	return fc
}

func writeVectorTile(path string, fc *geojson.FeatureCollection) error {
	data, err := json.Marshal(fc)
	if err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create tile dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	zw, err := gzip.NewWriterLevel(file, 6)
	if err != nil {
		file.Close()
		return err
	}
	if _, err := zw.Write(data); err != nil {
		zw.Close()
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := zw.Close(); err != nil {
		file.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func tilePath(root string, key tiles.Key, ext string) string {
	return filepath.Join(root, strconv.Itoa(key.Zoom), strconv.Itoa(key.X),
		strconv.Itoa(key.Y)+ext)
}

// generateTile writes the vector and raster tile for key. It reports
// whether anything was written; tiles with no valid points are
// skipped entirely.
func generateTile(f *grid.Field, key tiles.Key, cfg Config, vectorRoot, rasterRoot string) (bool, error) {
	bounds := key.Bounds()
	idx := Select(f, bounds)
	if len(idx) == 0 {
		return false, nil
	}
	idx = SampleTile(idx, key, cfg)

	fc := buildFeatureCollection(f, idx, cfg)
	if err := writeVectorTile(tilePath(vectorRoot, key, ".json.gz"), fc); err != nil {
		return false, fmt.Errorf("tile %s: %w", key, err)
	}

	img := raster.RenderTile(f, idx, bounds, key.Zoom, cfg.TilePixelSize)
	if err := raster.WritePNG(tilePath(rasterRoot, key, ".png"), img); err != nil {
		return false, fmt.Errorf("tile %s: %w", key, err)
	}
	return true, nil
}

// Generate builds the tile pyramid for f under vectorRoot and
// rasterRoot. Tiles within a zoom level are generated concurrently by
// at most workers goroutines (GOMAXPROCS when workers <= 0); the
// first tile error cancels the remaining work and is returned.
func Generate(ctx context.Context, f *grid.Field, cfg Config, vectorRoot, rasterRoot string, workers int) (Result, error) {
	var res Result
	if err := cfg.Validate(); err != nil {
		return res, fmt.Errorf("pyramid config: %w", err)
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	zooms := slices.Clone(cfg.ZoomLevels)
	slices.Sort(zooms)
	zooms = slices.Compact(zooms)

	bbox := f.BBox()
	for _, zoom := range zooms {
		r := tiles.RangeForBound(bbox, zoom)
		log.Printf("pyramid: zoom %d covers %d tile(s)", zoom, r.Count())

		var written, skipped atomic.Int64
		eg, ctx := errgroup.WithContext(ctx)
		sem := make(chan struct{}, workers)
		for _, key := range r.Keys() {
			key := key
			eg.Go(func() error {
				sem <- struct{}{}
				defer func() { <-sem }()
				select {
				case <-ctx.Done():
					return ctx.Err()
				default:
				}

				wrote, err := generateTile(f, key, cfg, vectorRoot, rasterRoot)
				if err != nil {
					return err
				}
				if wrote {
					written.Add(1)
				} else {
					skipped.Add(1)
				}
				return nil
			})
		}
		if err := eg.Wait(); err != nil {
			return res, err
		}
		log.Printf("pyramid: zoom %d wrote %d tile(s), skipped %d empty",
			zoom, written.Load(), skipped.Load())
		res.Written += written.Load()
		res.Skipped += skipped.Load()
	}
	return res, nil
}
