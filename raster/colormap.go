package raster

import "image/color"

// viridis control points sampled at even intervals. Point colors are
// linearly interpolated between the two nearest stops.
var viridis = []struct {
	t float64
	c color.RGBA
}{
	{0.000, color.RGBA{68, 1, 84, 255}},
	{0.125, color.RGBA{72, 36, 117, 255}},
	{0.250, color.RGBA{65, 68, 135, 255}},
	{0.375, color.RGBA{53, 95, 141, 255}},
	{0.500, color.RGBA{42, 120, 142, 255}},
	{0.625, color.RGBA{33, 145, 140, 255}},
	{0.750, color.RGBA{34, 168, 132, 255}},
	{0.875, color.RGBA{68, 191, 112, 255}},
	{1.000, color.RGBA{253, 231, 37, 255}},
}

// SpeedColor maps a normalized magnitude in [0, 1] onto the viridis
// ramp. Values outside the range clamp to the ends.
func SpeedColor(norm float64) color.RGBA {
	if norm <= 0 {
		return viridis[0].c
	}
	if norm >= 1 {
		return viridis[len(viridis)-1].c
	}
	for i := 1; i < len(viridis); i++ {
		if norm <= viridis[i].t {
			lo, hi := viridis[i-1], viridis[i]
			f := (norm - lo.t) / (hi.t - lo.t)
			return color.RGBA{
				R: lerpByte(lo.c.R, hi.c.R, f),
				G: lerpByte(lo.c.G, hi.c.G, f),
				B: lerpByte(lo.c.B, hi.c.B, f),
				A: 255,
			}
		}
	}
	return viridis[len(viridis)-1].c
}

func lerpByte(a, b uint8, f float64) uint8 {
	return uint8(float64(a) + (float64(b)-float64(a))*f + 0.5)
}
