package sensors

import (
	"context"
	"errors"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/jonboulle/clockwork"
)

// DefaultRetentionDays bounds the rolling measurement window.
const DefaultRetentionDays = 40

// Daemon runs the fetch-store-export round, once or on an interval.
type Daemon struct {
	Client        *Client
	Store         *Store
	Types         []string
	Countries     []string
	DataDir       string
	RetentionDays int
	Interval      time.Duration
	Clock         clockwork.Clock
	Log           *slog.Logger
}

// RunOnce executes a single round: fetch readings, dump the batch,
// expire old rows, insert, dedupe, and refresh the latest-per-sensor
// GeoJSON.
func (d *Daemon) RunOnce(ctx context.Context) error {
	readings, err := d.Client.Fetch(ctx, d.Types, d.Countries)
	if errors.Is(err, ErrNoData) {
		d.Log.Info("no readings fetched")
		return nil
	}
	if err != nil {
		return err
	}
	ms := Flatten(readings)
	if len(ms) == 0 {
		d.Log.Info("no readings fetched")
		return nil
	}
	if err := WriteDumps(d.DataDir, ms); err != nil {
		return err
	}

	expired, err := d.Store.Retention(d.RetentionDays)
	if err != nil {
		return err
	}
	inserted, err := d.Store.Insert(ms)
	if err != nil {
		return err
	}
	duplicates, err := d.Store.Dedupe()
	if err != nil {
		return err
	}

	rows, err := d.Store.Latest()
	if err != nil {
		return err
	}
	features, err := WriteLatestGeoJSON(filepath.Join(d.DataDir, LatestFileName), rows)
	if err != nil {
		return err
	}

	d.Log.Info("round complete",
		"fetched", len(ms), "inserted", inserted, "expired", expired,
		"duplicates", duplicates, "features", features)
	return nil
}

// Run executes rounds on the configured interval until ctx is done.
// A failed round is logged and retried on the next tick.
func (d *Daemon) Run(ctx context.Context) error {
	if d.Clock == nil {
		d.Clock = clockwork.NewRealClock()
	}
	if err := d.RunOnce(ctx); err != nil {
		d.Log.Error("round failed", "err", err)
	}

	ticker := d.Clock.NewTicker(d.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.Chan():
			if err := d.RunOnce(ctx); err != nil {
				d.Log.Error("round failed", "err", err)
			}
		}
	}
}
