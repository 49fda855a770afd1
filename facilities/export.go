package facilities

import (
	"context"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

const (
	// GeoJSONFileName is the merged site layer for the web client.
	GeoJSONFileName = "facilities.geojson"
	// CSVFileName is the raw query result, one row per Wikidata item.
	CSVFileName = "facilities.csv"

	// DefaultClusterDistance is how close two coordinates must be, in
	// metres, to count as the same physical site.
	DefaultClusterDistance = 1000.0
)

// Site is one merged cluster of facility rows.
type Site struct {
	Point orb.Point
	// Name and Types hold the distinct values of the cluster joined
	// with "; ". The remaining attributes come from the first row of
	// the cluster that has them.
	Name              string
	Types             string
	Country           string
	Item              string
	ItemType          string
	Inception         string
	StartTime         string
	ServiceEntry      string
	ServiceRetirement string
	EndTime           string
	Merged            int
}

// MergeSites collapses each cluster into a single site at the
// centroid of its points. rows, points and ids run in parallel; ids
// come from Cluster, so the returned slice is ordered by first
// appearance.
func MergeSites(rows []Facility, points []orb.Point, ids []int) []Site {
	type acc struct {
		lonSum, latSum float64
		n              int
		names, types   []string
		rest           Facility
	}

	accs := make([]*acc, 0)
	for i, id := range ids {
		for id >= len(accs) {
			accs = append(accs, &acc{})
		}
		a := accs[id]
		a.lonSum += points[i][0]
		a.latSum += points[i][1]
		a.n++
		if v := rows[i].Name; v != "" && !slices.Contains(a.names, v) {
			a.names = append(a.names, v)
		}
		if v := rows[i].Types; v != "" && !slices.Contains(a.types, v) {
			a.types = append(a.types, v)
		}
		fillEmpty(&a.rest, rows[i])
	}

	sites := make([]Site, len(accs))
	for id, a := range accs {
		sites[id] = Site{
			Point:             orb.Point{a.lonSum / float64(a.n), a.latSum / float64(a.n)},
			Name:              strings.Join(a.names, "; "),
			Types:             strings.Join(a.types, "; "),
			Country:           a.rest.Country,
			Item:              a.rest.Item,
			ItemType:          a.rest.ItemType,
			Inception:         a.rest.Inception,
			StartTime:         a.rest.StartTime,
			ServiceEntry:      a.rest.ServiceEntry,
			ServiceRetirement: a.rest.ServiceRetirement,
			EndTime:           a.rest.EndTime,
			Merged:            a.n,
		}
	}
	return sites
}

func fillEmpty(dst *Facility, src Facility) {
	if dst.Country == "" {
		dst.Country = src.Country
	}
	if dst.Item == "" {
		dst.Item = src.Item
	}
	if dst.ItemType == "" {
		dst.ItemType = src.ItemType
	}
	if dst.Inception == "" {
		dst.Inception = src.Inception
	}
	if dst.StartTime == "" {
		dst.StartTime = src.StartTime
	}
	if dst.ServiceEntry == "" {
		dst.ServiceEntry = src.ServiceEntry
	}
	if dst.ServiceRetirement == "" {
		dst.ServiceRetirement = src.ServiceRetirement
	}
	if dst.EndTime == "" {
		dst.EndTime = src.EndTime
	}
}

// WriteGeoJSON exports merged sites as an indented FeatureCollection.
// Missing attributes become null properties.
func WriteGeoJSON(path string, sites []Site) error {
	fc := geojson.NewFeatureCollection()
	for _, s := range sites {
		ft := geojson.NewFeature(s.Point)
		ft.Properties = geojson.Properties{
			"name":               prop(s.Name),
			"country":            prop(s.Country),
			"types":              prop(s.Types),
			"item":               prop(s.Item),
			"item_type":          prop(s.ItemType),
			"inception":          prop(s.Inception),
			"start_time":         prop(s.StartTime),
			"service_entry":      prop(s.ServiceEntry),
			"service_retirement": prop(s.ServiceRetirement),
			"end_time":           prop(s.EndTime),
			"merged_rows":        s.Merged,
		}
		fc.Append(ft)
	}

	data, err := json.MarshalIndent(fc, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

func prop(v string) any {
	if v == "" {
		return nil
	}
	return v
}

// WriteCSV dumps the raw rows, including ones without a coordinate.
func WriteCSV(path string, rows []Facility) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	w := csv.NewWriter(f)

	header := []string{"country", "name", "item", "geo", "item_type", "types",
		"inception", "start_time", "service_entry", "service_retirement", "end_time"}
	if err := w.Write(header); err != nil {
		f.Close()
		return err
	}
	for _, r := range rows {
		row := []string{r.Country, r.Name, r.Item, r.Geo, r.ItemType, r.Types,
			r.Inception, r.StartTime, r.ServiceEntry, r.ServiceRetirement, r.EndTime}
		if err := w.Write(row); err != nil {
			f.Close()
			return err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		f.Close()
		return fmt.Errorf("write %s: %w", path, err)
	}
	return f.Close()
}

// Options configure a facility refresh.
type Options struct {
	// Dir is the output directory for both files.
	Dir string
	// ClusterDistance overrides DefaultClusterDistance when positive.
	ClusterDistance float64
}

// Result summarizes a refresh.
type Result struct {
	Rows    int // raw rows fetched
	Dropped int // rows without a parseable coordinate
	Sites   int // merged features written
}

// Run fetches the inventory, writes the raw CSV, merges nearby points
// into sites and writes the GeoJSON layer.
func (c *Client) Run(ctx context.Context, opts Options) (Result, error) {
	rows, err := c.Fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	res := Result{Rows: len(rows)}

	if err := os.MkdirAll(opts.Dir, 0o755); err != nil {
		return res, err
	}
	if err := WriteCSV(filepath.Join(opts.Dir, CSVFileName), rows); err != nil {
		return res, err
	}

	kept := make([]Facility, 0, len(rows))
	points := make([]orb.Point, 0, len(rows))
	for _, r := range rows {
		p, err := r.point()
		if err != nil {
			res.Dropped++
			continue
		}
		kept = append(kept, r)
		points = append(points, p)
	}
	if res.Dropped > 0 {
		c.log.Warn("rows without a parseable coordinate", "rows", res.Dropped)
	}

	maxDist := opts.ClusterDistance
	if maxDist <= 0 {
		maxDist = DefaultClusterDistance
	}
	sites := MergeSites(kept, points, Cluster(points, maxDist))
	res.Sites = len(sites)

	if err := WriteGeoJSON(filepath.Join(opts.Dir, GeoJSONFileName), sites); err != nil {
		return res, err
	}

	c.log.Info("facility layer written",
		"rows", res.Rows, "dropped", res.Dropped, "sites", res.Sites, "dir", opts.Dir)
	return res, nil
}
