package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/carlmjohnson/versioninfo"

	"github.com/iancoleman/strcase"
	"github.com/urfave/cli/v2"

	"github.com/digital-codes/radiationMap/facilities"
	"github.com/digital-codes/radiationMap/grid"
	"github.com/digital-codes/radiationMap/logging"
	"github.com/digital-codes/radiationMap/pyramid"
	"github.com/digital-codes/radiationMap/raster"
	"github.com/digital-codes/radiationMap/sensors"
	"github.com/digital-codes/radiationMap/series"
	"github.com/digital-codes/radiationMap/wind"
)

const LOGLEVEL string = `loglevel`
const LOGDIR string = `logdir`
const DATADIR string = `datadir`
const KEEPGRIB string = `keepgrib`
const ARCHIVE string = `archive`
const FETCH string = `fetch`
const CONFIG string = `config`
const ZOOMLEVELS string = `zoomlevels`
const TILEPIXELSIZE string = `tilepixelsize`
const VECTORDIR string = `vectordir`
const RASTERDIR string = `rasterdir`
const WORKERS string = `workers`
const OUT string = `out`
const WIDTH string = `width`
const HEIGHT string = `height`
const POINTS string = `points`
const DB string = `db`
const TYPESFILE string = `typesfile`
const COUNTRIES string = `countries`
const LOOP string = `loop`
const INTERVAL string = `interval`
const RETENTION string = `retention`
const TIMEZONE string = `timezone`
const CLUSTERDISTANCE string = `clusterdistance`

func main() {
	app := cli.NewApp()
	app.Name = "radiationMap"
	app.Usage = "Builds the wind, radiation and nuclear facility layers for the map client"
	app.Version = versioninfo.Short()

	app.Flags = []cli.Flag{
		&cli.StringFlag{
			Name:    LOGLEVEL,
			Usage:   "log level: debug, info, warn or error",
			Value:   "info",
			EnvVars: []string{strcase.ToScreamingSnake(LOGLEVEL)},
		},
		&cli.StringFlag{
			Name:    LOGDIR,
			Usage:   "write rotating JSON logs to this directory instead of stderr",
			EnvVars: []string{strcase.ToScreamingSnake(LOGDIR)},
		},
	}
	app.Commands = []*cli.Command{
		fetchCommand(),
		tilesCommand(),
		overviewCommand(),
		sensorsCommand(),
		seriesCommand(),
		facilitiesCommand(),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := app.RunContext(ctx, os.Args); err != nil {
		log.Fatal(err)
	}
}

func newLogger(c *cli.Context) *slog.Logger {
	return logging.New(c.String(LOGLEVEL), c.String(LOGDIR))
}

func dataDirFlag(usage string) *cli.StringFlag {
	return &cli.StringFlag{
		Name:    DATADIR,
		Aliases: []string{"d"},
		Usage:   usage,
		Value:   "data",
		EnvVars: []string{strcase.ToScreamingSnake(DATADIR)},
	}
}

func archiveFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    ARCHIVE,
		Aliases: []string{"a"},
		Usage:   "wind archive to use instead of the newest one under the data directory",
		EnvVars: []string{strcase.ToScreamingSnake(ARCHIVE)},
	}
}

func dbFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    DB,
		Usage:   "SQLite database path",
		Value:   filepath.Join("data", "radiation.db"),
		EnvVars: []string{strcase.ToScreamingSnake(DB)},
	}
}

// archivePath returns the archive named by --archive, or the newest
// one in the data directory.
func archivePath(c *cli.Context) (string, error) {
	if path := c.String(ARCHIVE); path != "" {
		return path, nil
	}
	return wind.LatestArchive(c.String(DATADIR))
}

func loadArchive(c *cli.Context) (*grid.Field, grid.Meta, error) {
	path, err := archivePath(c)
	if err != nil {
		return nil, grid.Meta{}, err
	}
	return grid.ReadArchive(path)
}

func fetchCommand() *cli.Command {
	return &cli.Command{
		Name:  "fetch",
		Usage: "Download the newest published ECMWF AIFS cycle and archive its 100 m wind field",
		Flags: []cli.Flag{
			dataDirFlag("directory for GRIB downloads and wind archives"),
			&cli.BoolFlag{
				Name:    KEEPGRIB,
				Usage:   "keep the downloaded GRIB instead of truncating it after extraction",
				EnvVars: []string{strcase.ToScreamingSnake(KEEPGRIB)},
			},
		},
		Action: func(c *cli.Context) error {
			logger := newLogger(c)
			_, err := wind.NewClient(logger).Ingest(c.Context, wind.Options{
				Dir:      c.String(DATADIR),
				KeepGRIB: c.Bool(KEEPGRIB),
			})
			if errors.Is(err, wind.ErrAlreadyPresent) {
				logger.Info("cycle already ingested, nothing to do")
				return nil
			}
			return err
		},
	}
}

func tilesCommand() *cli.Command {
	return &cli.Command{
		Name:  "tiles",
		Usage: "Build the vector and raster tile pyramid from a wind archive",
		Flags: []cli.Flag{
			dataDirFlag("directory searched for the newest wind archive"),
			archiveFlag(),
			&cli.BoolFlag{
				Name:    FETCH,
				Usage:   "ingest the newest ECMWF cycle before building the pyramid",
				EnvVars: []string{strcase.ToScreamingSnake(FETCH)},
			},
			&cli.StringFlag{
				Name:    CONFIG,
				Aliases: []string{"c"},
				Usage:   "pyramid config JSON, built-in defaults when omitted",
				EnvVars: []string{strcase.ToScreamingSnake(CONFIG)},
			},
			&cli.StringFlag{
				Name:    ZOOMLEVELS,
				Aliases: []string{"z"},
				Usage:   "zoom levels to generate, JSON array of integers. E.g.: [1,2,3]",
				EnvVars: []string{strcase.ToScreamingSnake(ZOOMLEVELS)},
			},
			&cli.IntFlag{
				Name:    TILEPIXELSIZE,
				Usage:   "edge length of a raster tile in pixels",
				EnvVars: []string{strcase.ToScreamingSnake(TILEPIXELSIZE)},
			},
			&cli.StringFlag{
				Name:    VECTORDIR,
				Usage:   "output root for the gzipped GeoJSON tiles",
				Value:   "wind_tiles",
				EnvVars: []string{strcase.ToScreamingSnake(VECTORDIR)},
			},
			&cli.StringFlag{
				Name:    RASTERDIR,
				Usage:   "output root for the PNG tiles",
				Value:   "raster_tiles",
				EnvVars: []string{strcase.ToScreamingSnake(RASTERDIR)},
			},
			&cli.IntFlag{
				Name:    WORKERS,
				Usage:   "parallel tile workers, all cores when 0",
				EnvVars: []string{strcase.ToScreamingSnake(WORKERS)},
			},
		},
		Action: func(c *cli.Context) error {
			logger := newLogger(c)

			if c.Bool(FETCH) {
				_, err := wind.NewClient(logger).Ingest(c.Context, wind.Options{
					Dir: c.String(DATADIR),
				})
				if err != nil && !errors.Is(err, wind.ErrAlreadyPresent) {
					return err
				}
			}

			cfg := pyramid.DefaultConfig()
			if path := c.String(CONFIG); path != "" {
				var err error
				if cfg, err = pyramid.LoadConfig(path); err != nil {
					return err
				}
				if len(cfg.Unknown) > 0 {
					logger.Warn("ignoring unknown config options",
						"options", strings.Join(cfg.Unknown, ", "))
				}
			}
			if v := c.String(ZOOMLEVELS); v != "" {
				if err := json.Unmarshal([]byte(v), &cfg.ZoomLevels); err != nil {
					return err
				}
			}
			if c.IsSet(TILEPIXELSIZE) {
				cfg.TilePixelSize = c.Int(TILEPIXELSIZE)
			}

			field, meta, err := loadArchive(c)
			if err != nil {
				return err
			}
			logger.Info("loaded wind field",
				"source", meta.Source, "points", field.Len(), "valid", field.ValidCount())

			res, err := pyramid.Generate(c.Context, field, cfg,
				c.String(VECTORDIR), c.String(RASTERDIR), c.Int(WORKERS))
			if err != nil {
				return err
			}
			logger.Info("pyramid generated", "written", res.Written, "skipped", res.Skipped)
			return nil
		},
	}
}

func overviewCommand() *cli.Command {
	return &cli.Command{
		Name:  "overview",
		Usage: "Render the whole wind field into a single PNG",
		Flags: []cli.Flag{
			dataDirFlag("directory searched for the newest wind archive"),
			archiveFlag(),
			&cli.StringFlag{
				Name:    OUT,
				Aliases: []string{"o"},
				Usage:   "output PNG path, next to the archive when omitted",
				EnvVars: []string{strcase.ToScreamingSnake(OUT)},
			},
			&cli.IntFlag{
				Name:    WIDTH,
				Usage:   "image width in pixels",
				Value:   1600,
				EnvVars: []string{strcase.ToScreamingSnake(WIDTH)},
			},
			&cli.IntFlag{
				Name:    HEIGHT,
				Usage:   "image height in pixels",
				Value:   800,
				EnvVars: []string{strcase.ToScreamingSnake(HEIGHT)},
			},
			&cli.IntFlag{
				Name:    POINTS,
				Usage:   "wind barbs along the longer grid axis",
				Value:   90,
				EnvVars: []string{strcase.ToScreamingSnake(POINTS)},
			},
		},
		Action: func(c *cli.Context) error {
			logger := newLogger(c)
			path, err := archivePath(c)
			if err != nil {
				return err
			}
			field, meta, err := grid.ReadArchive(path)
			if err != nil {
				return err
			}
			out := c.String(OUT)
			if out == "" {
				out = strings.TrimSuffix(path, ".msgpack.zst") + ".png"
			}
			img := raster.RenderOverview(field, c.Int(WIDTH), c.Int(HEIGHT), c.Int(POINTS))
			if err := raster.WritePNG(out, img); err != nil {
				return err
			}
			logger.Info("overview rendered", "file", out, "source", meta.Source)
			return nil
		},
	}
}

func sensorsCommand() *cli.Command {
	return &cli.Command{
		Name:  "sensors",
		Usage: "Fetch radiation readings, maintain the rolling database and export the latest layer",
		Flags: []cli.Flag{
			dataDirFlag("directory for dumps and the GeoJSON export"),
			dbFlag(),
			&cli.StringFlag{
				Name:    TYPESFILE,
				Usage:   "JSON file with sensor type names, built-in radiation tubes when omitted",
				EnvVars: []string{strcase.ToScreamingSnake(TYPESFILE)},
			},
			&cli.StringFlag{
				Name:    COUNTRIES,
				Usage:   "comma-separated country codes to filter by",
				EnvVars: []string{strcase.ToScreamingSnake(COUNTRIES)},
			},
			&cli.BoolFlag{
				Name:    LOOP,
				Usage:   "keep running on an interval instead of once",
				EnvVars: []string{strcase.ToScreamingSnake(LOOP)},
			},
			&cli.DurationFlag{
				Name:    INTERVAL,
				Usage:   "fetch interval in loop mode",
				Value:   30 * time.Minute,
				EnvVars: []string{strcase.ToScreamingSnake(INTERVAL)},
			},
			&cli.IntFlag{
				Name:    RETENTION,
				Usage:   "days of history to keep",
				Value:   sensors.DefaultRetentionDays,
				EnvVars: []string{strcase.ToScreamingSnake(RETENTION)},
			},
		},
		Action: func(c *cli.Context) error {
			logger := newLogger(c)

			types := sensors.DefaultRadiationTypes
			if path := c.String(TYPESFILE); path != "" {
				all, err := sensors.LoadSensorTypes(path)
				if err != nil {
					return err
				}
				types = sensors.RadiationTypes(all)
			}

			store, err := openStore(c)
			if err != nil {
				return err
			}
			defer store.Close()

			var countries []string
			if v := c.String(COUNTRIES); v != "" {
				countries = strings.Split(v, ",")
			}

			d := &sensors.Daemon{
				Client:        sensors.NewClient(logger),
				Store:         store,
				Types:         types,
				Countries:     countries,
				DataDir:       c.String(DATADIR),
				RetentionDays: c.Int(RETENTION),
				Interval:      c.Duration(INTERVAL),
				Log:           logger,
			}
			if c.Bool(LOOP) {
				if err := d.Run(c.Context); !errors.Is(err, context.Canceled) {
					return err
				}
				return nil
			}
			return d.RunOnce(c.Context)
		},
	}
}

func seriesCommand() *cli.Command {
	return &cli.Command{
		Name:  "series",
		Usage: "Export per-sensor day and month series for the charts",
		Flags: []cli.Flag{
			dataDirFlag("output directory for the series files"),
			dbFlag(),
			&cli.StringFlag{
				Name:    TIMEZONE,
				Usage:   "IANA zone the sensor timestamps are interpreted in",
				Value:   "Europe/Berlin",
				EnvVars: []string{strcase.ToScreamingSnake(TIMEZONE)},
			},
		},
		Action: func(c *cli.Context) error {
			logger := newLogger(c)
			loc, err := time.LoadLocation(c.String(TIMEZONE))
			if err != nil {
				return err
			}
			store, err := openStore(c)
			if err != nil {
				return err
			}
			defer store.Close()

			_, err = series.ExportAll(store, c.String(DATADIR),
				[]series.Window{series.Day, series.Month}, time.Now(), loc, logger)
			return err
		},
	}
}

func facilitiesCommand() *cli.Command {
	return &cli.Command{
		Name:  "facilities",
		Usage: "Refresh the nuclear facility layer from Wikidata",
		Flags: []cli.Flag{
			dataDirFlag("output directory for the facility files"),
			&cli.Float64Flag{
				Name:    CLUSTERDISTANCE,
				Usage:   "metres within which facility points merge into one site",
				Value:   facilities.DefaultClusterDistance,
				EnvVars: []string{strcase.ToScreamingSnake(CLUSTERDISTANCE)},
			},
		},
		Action: func(c *cli.Context) error {
			logger := newLogger(c)
			_, err := facilities.NewClient(logger).Run(c.Context, facilities.Options{
				Dir:             c.String(DATADIR),
				ClusterDistance: c.Float64(CLUSTERDISTANCE),
			})
			return err
		},
	}
}

func openStore(c *cli.Context) (*sensors.Store, error) {
	path := c.String(DB)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, err
		}
	}
	return sensors.OpenStore(path)
}
