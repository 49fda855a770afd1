package grid

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/vmihailenco/msgpack/v5"
)

// Meta records the provenance of an archived field.
type Meta struct {
	Source           string    `msgpack:"source"`
	OriginalUnits    string    `msgpack:"original_units"`
	ConversionFactor float64   `msgpack:"conversion_factor"`
	Slot             time.Time `msgpack:"slot"`
}

// archive is the on-disk snapshot. Speed is not stored; NewField
// rederives it on load.
type archive struct {
	Rows    int       `msgpack:"rows"`
	Cols    int       `msgpack:"cols"`
	Lat     []float64 `msgpack:"lat"`
	Lon     []float64 `msgpack:"lon"`
	U       []float64 `msgpack:"u"`
	V       []float64 `msgpack:"v"`
	Invalid []bool    `msgpack:"invalid"`
	Meta    Meta      `msgpack:"meta"`
}

type countingWriter struct {
	io.Writer
	n int64
}

func (w *countingWriter) Write(b []byte) (int, error) {
	n, err := w.Writer.Write(b)
	w.n += int64(n)
	return n, err
}

// WriteArchive stores the field at path as zstd-compressed msgpack and
// returns the number of compressed bytes written.
func WriteArchive(path string, f *Field, meta Meta) (int64, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return 0, fmt.Errorf("create archive directory: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return 0, fmt.Errorf("create archive: %w", err)
	}
	defer file.Close()

	cw := &countingWriter{Writer: file}
	zw, err := zstd.NewWriter(cw, zstd.WithEncoderLevel(zstd.SpeedBestCompression))
	if err != nil {
		return 0, fmt.Errorf("create zstd writer: %w", err)
	}

	a := archive{
		Rows:    f.Rows,
		Cols:    f.Cols,
		Lat:     f.Lat,
		Lon:     f.Lon,
		U:       f.U,
		V:       f.V,
		Invalid: f.Invalid,
		Meta:    meta,
	}
	if err := msgpack.NewEncoder(zw).Encode(a); err != nil {
		zw.Close()
		return 0, fmt.Errorf("encode archive: %w", err)
	}
	if err := zw.Close(); err != nil {
		return 0, fmt.Errorf("flush archive: %w", err)
	}
	if err := file.Close(); err != nil {
		return 0, fmt.Errorf("close archive: %w", err)
	}
	return cw.n, nil
}

// ReadArchive loads a field archive. The field is revalidated through
// NewField so a tampered or stale archive cannot bypass construction
// checks.
func ReadArchive(path string) (*Field, Meta, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("open archive: %w", err)
	}
	defer file.Close()

	zr, err := zstd.NewReader(file)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("open zstd reader: %w", err)
	}
	defer zr.Close()

	var a archive
	if err := msgpack.NewDecoder(zr).Decode(&a); err != nil {
		return nil, Meta{}, fmt.Errorf("decode archive: %w", err)
	}
	f, err := NewField(a.Rows, a.Cols, a.Lat, a.Lon, a.U, a.V, a.Invalid)
	if err != nil {
		return nil, Meta{}, fmt.Errorf("archived field: %w", err)
	}
	return f, a.Meta, nil
}
