// Package raster renders wind points into transparent PNG tiles:
// speed-colored markers overlaid with directional barb glyphs.
package raster

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"math"
	"os"
	"path/filepath"

	"github.com/paulmach/orb"

	"github.com/digital-codes/radiationMap/grid"
)

var barbColor = color.RGBA{0, 0, 0, 255}

// BarbLength returns the staff length in pixels for a zoom level.
// Coarser zooms get shorter barbs to keep dense tiles legible.
func BarbLength(zoom int) int {
	return 2 * (6 + max(0, zoom-4))
}

// RenderTile draws the selected grid points onto a transparent
// sizePx x sizePx image whose geographic extent is exactly bounds.
// Latitude maps linearly onto pixel rows within the tile. The speed
// color scale is normalized per tile over the drawn points. The same
// inputs always produce the identical image.
func RenderTile(f *grid.Field, idx []int, bounds orb.Bound, zoom, sizePx int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, sizePx, sizePx))
	if len(idx) == 0 {
		return img
	}

	speedMin, speedMax := math.Inf(1), math.Inf(-1)
	for _, i := range idx {
		speedMin = math.Min(speedMin, f.Speed[i])
		speedMax = math.Max(speedMax, f.Speed[i])
	}
	speedSpan := speedMax - speedMin

	lonSpan := bounds.Max[0] - bounds.Min[0]
	latSpan := bounds.Max[1] - bounds.Min[1]
	staff := BarbLength(zoom)

	for _, i := range idx {
		px := int((f.Lon[i] - bounds.Min[0]) / lonSpan * float64(sizePx))
		py := int((bounds.Max[1] - f.Lat[i]) / latSpan * float64(sizePx))

		norm := 1.0
		if speedSpan > 0 {
			norm = (f.Speed[i] - speedMin) / speedSpan
		}
		fillSquare(img, px, py, 1, SpeedColor(norm))
		drawBarb(img, px, py, f.U[i], f.V[i], f.Speed[i], speedMax, staff)
	}
	return img
}

// RenderOverview draws the whole field decimated to roughly
// targetPoints along the longer grid axis, barbs only, extent = the
// field's bounding box.
func RenderOverview(f *grid.Field, width, height, targetPoints int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	bounds := f.BBox()
	lonSpan := bounds.Max[0] - bounds.Min[0]
	latSpan := bounds.Max[1] - bounds.Min[1]
	if lonSpan <= 0 || latSpan <= 0 {
		return img
	}

	stepRow := max(1, f.Rows/targetPoints)
	stepCol := max(1, f.Cols/targetPoints)
	speedMax := math.Inf(-1)
	for i, inv := range f.Invalid {
		if !inv {
			speedMax = math.Max(speedMax, f.Speed[i])
		}
	}

	for r := 0; r < f.Rows; r += stepRow {
		for c := 0; c < f.Cols; c += stepCol {
			i := r*f.Cols + c
			if f.Invalid[i] {
				continue
			}
			px := int((f.Lon[i] - bounds.Min[0]) / lonSpan * float64(width))
			py := int((bounds.Max[1] - f.Lat[i]) / latSpan * float64(height))
			drawBarb(img, px, py, f.U[i], f.V[i], f.Speed[i], speedMax, 12)
		}
	}
	return img
}

// WritePNG encodes img to path, creating directories as needed.
func WritePNG(path string, img image.Image) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create raster directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create raster tile: %w", err)
	}
	if err := png.Encode(file, img); err != nil {
		file.Close()
		return fmt.Errorf("encode raster tile: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("close raster tile: %w", err)
	}
	return nil
}

// drawBarb draws a staff through (px, py) along the wind direction,
// length scaled by speed relative to the tile maximum, with a feather
// tick at the tail. Wind with zero magnitude gets no glyph.
func drawBarb(img *image.RGBA, px, py int, u, v, speed, speedMax float64, staffPx int) {
	if speed == 0 || speedMax <= 0 {
		return
	}
	// half length at the low end so weak winds stay visible
	l := float64(staffPx) * (0.5 + 0.5*speed/speedMax)
	dir := math.Atan2(v, u)
	dx := math.Cos(dir)
	dy := -math.Sin(dir) // pixel rows grow southward

	tipX := px + int(math.Round(dx*l/2))
	tipY := py + int(math.Round(dy*l/2))
	tailX := px - int(math.Round(dx*l/2))
	tailY := py - int(math.Round(dy*l/2))
	drawLine(img, tailX, tailY, tipX, tipY, barbColor)

	// feather: short tick from the tail, rotated 120 degrees off the staff
	fLen := l / 3
	fDir := dir + 2*math.Pi/3
	fx := tailX + int(math.Round(math.Cos(fDir)*fLen))
	fy := tailY + int(math.Round(-math.Sin(fDir)*fLen))
	drawLine(img, tailX, tailY, fx, fy, barbColor)
}

func fillSquare(img *image.RGBA, cx, cy, half int, c color.RGBA) {
	for y := cy - half; y <= cy+half; y++ {
		for x := cx - half; x <= cx+half; x++ {
			setPixel(img, x, y, c)
		}
	}
}

// drawLine rasterizes a 1 px Bresenham segment, clipped to the image.
func drawLine(img *image.RGBA, x0, y0, x1, y1 int, c color.RGBA) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx := 1
	if x0 > x1 {
		sx = -1
	}
	sy := 1
	if y0 > y1 {
		sy = -1
	}
	err := dx + dy
	for {
		setPixel(img, x0, y0, c)
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * err
		if e2 >= dy {
			err += dy
			x0 += sx
		}
		if e2 <= dx {
			err += dx
			y0 += sy
		}
	}
}

func setPixel(img *image.RGBA, x, y int, c color.RGBA) {
	b := img.Bounds()
	if x < b.Min.X || x >= b.Max.X || y < b.Min.Y || y >= b.Max.Y {
		return
	}
	img.SetRGBA(x, y, c)
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
