package wind

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/jonboulle/clockwork"

	"github.com/digital-codes/radiationMap/grid"
)

// ErrAlreadyPresent signals that the resolved cycle's file was
// downloaded by an earlier run; its archive is assumed current.
var ErrAlreadyPresent = errors.New("grib file already present")

// Options configure a fetch-and-archive run.
type Options struct {
	Dir      string          // output directory for GRIB and archive files
	KeepGRIB bool            // keep the downloaded GRIB instead of truncating it
	Clock    clockwork.Clock // time source for cycle resolution, real when nil
}

type sidecar struct {
	SourceGRIB         string  `json:"source_grib"`
	OriginalWindUnits  string  `json:"original_wind_units"`
	StoredWindUnits    string  `json:"stored_wind_units"`
	ConversionFactorMS float64 `json:"conversion_factor_to_m_s"`
}

// ArchiveName returns the archive file name for a cycle.
func ArchiveName(s Slot) string {
	stem := strings.TrimSuffix(s.FileName(), ".grib2")
	return "extracted_wind100m_" + stem + ".msgpack.zst"
}

// Ingest downloads the newest published cycle into opts.Dir, extracts
// the 100 m wind field, and writes it as a compressed archive next to
// the download. Afterwards the GRIB file is truncated to zero bytes:
// a rerun can tell the cycle was handled without hoarding the
// payload. A zero-length (or any existing) GRIB file for the resolved
// cycle short-circuits with ErrAlreadyPresent.
func (c *Client) Ingest(ctx context.Context, opts Options) (string, error) {
	if opts.Clock == nil {
		opts.Clock = clockwork.NewRealClock()
	}

	slot := c.Resolve(ctx, opts.Clock.Now())
	gribPath := filepath.Join(opts.Dir, slot.FileName())
	if _, err := os.Stat(gribPath); err == nil {
		c.log.Info("cycle already handled", "file", gribPath)
		return "", ErrAlreadyPresent
	}

	n, err := c.Download(ctx, c.URL(slot), gribPath)
	if err != nil {
		return "", err
	}
	c.log.Info("downloaded forecast", "file", gribPath, "bytes", n)

	f, err := os.Open(gribPath)
	if err != nil {
		return "", err
	}
	field, meta, err := ParseField(f)
	f.Close()
	if err != nil {
		return "", err
	}
	meta.Source = slot.FileName()
	meta.Slot = slot.Time

	metaPath := gribPath + ".meta.json"
	if err := writeSidecar(metaPath, meta); err != nil {
		return "", err
	}

	archivePath := filepath.Join(opts.Dir, ArchiveName(slot))
	size, err := grid.WriteArchive(archivePath, field, meta)
	if err != nil {
		return "", err
	}
	c.log.Info("archived wind field", "file", archivePath, "bytes", size,
		"points", field.Len(), "valid", field.ValidCount())

	if !opts.KeepGRIB {
		if err := os.Truncate(gribPath, 0); err != nil {
			return "", fmt.Errorf("truncate %s: %w", gribPath, err)
		}
		if err := os.Remove(metaPath); err != nil && !os.IsNotExist(err) {
			c.log.Warn("could not remove metadata sidecar", "file", metaPath, "err", err)
		}
	}
	return archivePath, nil
}

func writeSidecar(path string, meta grid.Meta) error {
	data, err := json.Marshal(sidecar{
		SourceGRIB:         meta.Source,
		OriginalWindUnits:  meta.OriginalUnits,
		StoredWindUnits:    "m/s",
		ConversionFactorMS: meta.ConversionFactor,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LatestArchive returns the newest archive in dir, going by the cycle
// timestamp embedded in the file name.
func LatestArchive(dir string) (string, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "extracted_wind100m_*.msgpack.zst"))
	if err != nil {
		return "", err
	}
	if len(matches) == 0 {
		return "", fmt.Errorf("no wind archive in %s", dir)
	}
	slices.Sort(matches)
	return matches[len(matches)-1], nil
}
