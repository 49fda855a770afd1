package wind

import (
	"errors"
	"fmt"
	"io"
	"math"
	"regexp"
	"strings"

	"github.com/mmp/squall"

	"github.com/digital-codes/radiationMap/grid"
)

// 1 knot in m/s.
const knotsToMS = 0.514444

var (
	knotsRe = regexp.MustCompile(`\b(knots?|kt|kn)\b`)
	msRe    = regexp.MustCompile(`m\s*/\s*s|m\s*s-?1`)
)

// conversionFactor maps a reported wind unit to the factor that
// normalizes values to m/s. Unknown units pass through unscaled; the
// second return reports whether the unit was recognized.
func conversionFactor(units string) (float64, bool) {
	u := strings.ToLower(strings.TrimSpace(units))
	switch {
	case knotsRe.MatchString(u):
		return knotsToMS, true
	case msRe.MatchString(u):
		return 1, true
	default:
		return 1, false
	}
}

type component int

const (
	compNone component = iota
	compU
	compV
)

// componentOf classifies a record as the u or v wind component at
// 100 m above ground, covering the namings the ECMWF and NOAA GRIB
// tables use for these fields.
func componentOf(shortName, level string, levelValue float64) component {
	sn := strings.ToLower(shortName)
	lv := strings.ToLower(level)
	at100m := levelValue == 100 &&
		(strings.Contains(lv, "above ground") || strings.Contains(lv, "height"))

	switch {
	case strings.Contains(sn, "100u"),
		at100m && (sn == "ugrd" || sn == "u" || strings.Contains(sn, "u_component")):
		return compU
	case strings.Contains(sn, "100v"),
		at100m && (sn == "vgrd" || sn == "v" || strings.Contains(sn, "v_component")):
		return compV
	}
	return compNone
}

// detectShape infers (rows, cols) of a regular row-major lat/lon grid
// from its flattened latitude sequence: a row ends where the latitude
// first changes. Irregular sequences collapse to a single row.
func detectShape(lats []float64) (rows, cols int) {
	n := len(lats)
	if n == 0 {
		return 0, 0
	}
	cols = n
	for i := 1; i < n; i++ {
		if lats[i] != lats[0] {
			cols = i
			break
		}
	}
	if n%cols != 0 {
		return 1, n
	}
	return n / cols, cols
}

// ParseField reads a GRIB2 stream and extracts the 100 m u/v wind
// field, normalized to m/s and with longitudes wrapped to [-180, 180].
// Points carrying the GRIB2 missing-value sentinel become invalid.
func ParseField(r io.Reader) (*grid.Field, grid.Meta, error) {
	records, err := squall.Read(r)
	if err != nil {
		return nil, grid.Meta{}, fmt.Errorf("parse grib2: %w", err)
	}

	var uRec, vRec *squall.GRIB2
	for _, rec := range records {
		comp := componentOf(rec.Parameter.ShortName(), rec.Level, float64(rec.LevelValue))
		switch {
		case comp == compU && uRec == nil:
			uRec = rec
		case comp == compV && vRec == nil:
			vRec = rec
		}
		if uRec != nil && vRec != nil {
			break
		}
	}
	if uRec == nil || vRec == nil {
		return nil, grid.Meta{}, errors.New("grib2: no 100m u/v wind records found")
	}
	if uRec.NumPoints != vRec.NumPoints {
		return nil, grid.Meta{}, fmt.Errorf("grib2: u/v point counts differ (%d vs %d)",
			uRec.NumPoints, vRec.NumPoints)
	}

	const units = "m/s" // GRIB2 code table 4.2 wind components
	factor, _ := conversionFactor(units)

	n := uRec.NumPoints
	lat := make([]float64, n)
	lon := make([]float64, n)
	u := make([]float64, n)
	v := make([]float64, n)
	invalid := make([]bool, n)
	for i := 0; i < n; i++ {
		lat[i] = float64(uRec.Latitudes[i])
		ln := float64(uRec.Longitudes[i])
		if ln > 180 {
			ln -= 360
		}
		lon[i] = ln

		uv, vv := float64(uRec.Data[i]), float64(vRec.Data[i])
		if uv > 9e20 || vv > 9e20 { // missing-value sentinel
			invalid[i] = true
			u[i], v[i] = math.NaN(), math.NaN()
			continue
		}
		u[i] = uv * factor
		v[i] = vv * factor
	}

	rows, cols := detectShape(lat)
	f, err := grid.NewField(rows, cols, lat, lon, u, v, invalid)
	if err != nil {
		return nil, grid.Meta{}, err
	}
	return f, grid.Meta{OriginalUnits: units, ConversionFactor: factor}, nil
}
