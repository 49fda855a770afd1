// Package series turns the raw per-sensor measurement history into
// aligned, gap-free time series for the web client's charts.
package series

import (
	"sort"
	"time"

	orderedmap "github.com/wk8/go-ordered-map/v2"

	"github.com/digital-codes/radiationMap/sensors"
)

// Observation is one raw timestamped value.
type Observation struct {
	Time  time.Time
	Value float64
}

// Point is one aligned bin of a resampled series.
type Point struct {
	Time  time.Time
	Value float64
}

// Window describes one export flavor: how far back to look and how
// wide the mean bins are.
type Window struct {
	Name string
	Days int
	Step time.Duration
}

var (
	// Day is the short window backing the 2-day chart.
	Day = Window{Name: "day", Days: 2, Step: 15 * time.Minute}
	// Month is the long window backing the 30-day chart.
	Month = Window{Name: "month", Days: 30, Step: 6 * time.Hour}
)

// apiTimeLayout is the timestamp format the sensor network reports.
const apiTimeLayout = "2006-01-02 15:04:05"

// FromSamples parses stored samples into observations, interpreting
// the naive timestamps in loc. Rows with unparseable timestamps or
// missing values are dropped.
func FromSamples(samples []sensors.Sample, loc *time.Location) []Observation {
	out := make([]Observation, 0, len(samples))
	for _, s := range samples {
		if s.CountsPerMinute == nil {
			continue
		}
		t, err := time.ParseInLocation(apiTimeLayout, s.Timestamp, loc)
		if err != nil {
			continue
		}
		out = append(out, Observation{Time: t, Value: *s.CountsPerMinute})
	}
	return out
}

// Resample aggregates observations newer than the window cutoff into
// mean bins aligned to midnight of the earliest kept observation.
// Bins between the first and last observed one that caught no
// observation are interpolated linearly in time, so the result has no
// gaps. An empty result means no recent data.
func Resample(obs []Observation, w Window, now time.Time, loc *time.Location) []Point {
	cutoff := now.In(loc).AddDate(0, 0, -w.Days)
	kept := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if !o.Time.Before(cutoff) {
			kept = append(kept, o)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Time.Before(kept[j].Time) })

	first := kept[0].Time.In(loc)
	origin := time.Date(first.Year(), first.Month(), first.Day(), 0, 0, 0, 0, loc)

	type acc struct {
		sum float64
		n   int
	}
	// keys arrive in increasing order because kept is sorted, so the
	// map's insertion order is chronological
	bins := orderedmap.New[int64, *acc]()
	for _, o := range kept {
		idx := int64(o.Time.Sub(origin) / w.Step)
		if a, ok := bins.Get(idx); ok {
			a.sum += o.Value
			a.n++
		} else {
			bins.Set(idx, &acc{sum: o.Value, n: 1})
		}
	}

	mean := func(a *acc) float64 { return a.sum / float64(a.n) }
	binTime := func(idx int64) time.Time { return origin.Add(time.Duration(idx) * w.Step) }

	oldest := bins.Oldest()
	out := make([]Point, 0, bins.Newest().Key-oldest.Key+1)
	out = append(out, Point{Time: binTime(oldest.Key), Value: mean(oldest.Value)})

	prev := oldest
	for p := oldest.Next(); p != nil; p = p.Next() {
		prevVal, curVal := mean(prev.Value), mean(p.Value)
		span := p.Key - prev.Key
		for k := prev.Key + 1; k < p.Key; k++ {
			frac := float64(k-prev.Key) / float64(span)
			out = append(out, Point{Time: binTime(k), Value: prevVal + (curVal-prevVal)*frac})
		}
		out = append(out, Point{Time: binTime(p.Key), Value: curVal})
		prev = p
	}
	return out
}
