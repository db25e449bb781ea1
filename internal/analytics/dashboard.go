package analytics

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"golang.org/x/sync/errgroup"
)

type Range string

const (
	Range7D  Range = "7D"
	Range30D Range = "30D"
	Range1Y  Range = "1Y"
)

var ErrUnknownRange = errors.New("unknown range")

// ParseRange accepts 7D, 30D or 1Y. The empty string means 7D.
func ParseRange(s string) (Range, error) {
	switch Range(s) {
	case "", Range7D:
		return Range7D, nil
	case Range30D:
		return Range30D, nil
	case Range1Y:
		return Range1Y, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownRange, s)
}

func (r Range) Days() int {
	switch r {
	case Range30D:
		return 30
	case Range1Y:
		return 365
	}
	return 7
}

const topLocationLimit = 5

// Source is the read side the dashboard aggregates over.
type Source interface {
	CountCreated(ctx context.Context) (int, error)
	CountPlayed(ctx context.Context) (int, error)
	CountCompleted(ctx context.Context) (int, error)
	CountWins(ctx context.Context) (int, error)
	CountVisitors(ctx context.Context) (int, error)
	CreatedSince(ctx context.Context, since time.Time) ([]time.Time, error)
	PlayedSince(ctx context.Context, since time.Time) ([]time.Time, error)
	VisitsSince(ctx context.Context, since time.Time) ([]time.Time, error)
	TopLocations(ctx context.Context, since time.Time, limit int) ([]LocationCount, error)
}

type Totals struct {
	Created   int `json:"created"`
	Played    int `json:"played"`
	Completed int `json:"completed"`
	Wins      int `json:"wins"`
	Visitors  int `json:"visitors"`
}

type DailyPoint struct {
	Date     string `json:"date"`
	Label    string `json:"label"`
	Created  int    `json:"created"`
	Played   int    `json:"played"`
	Visitors int    `json:"visitors"`
}

type Location struct {
	Label string `json:"label"`
	Count int    `json:"count"`
}

type Summary struct {
	Range          Range        `json:"range"`
	Totals         Totals       `json:"totals"`
	CompletionRate int          `json:"completionRate"`
	WinRate        int          `json:"winRate"`
	Series         []DailyPoint `json:"series"`
	TopLocations   []Location   `json:"topLocations"`
}

// Dashboard builds summaries. Totals are all-time; the series and locations
// cover the selected range. Days are bucketed in loc.
type Dashboard struct {
	src Source
	loc *time.Location
}

func NewDashboard(src Source, loc *time.Location) *Dashboard {
	if loc == nil {
		loc = time.UTC
	}
	return &Dashboard{src: src, loc: loc}
}

func (d *Dashboard) Summary(ctx context.Context, rng Range, now time.Time) (Summary, error) {
	since := now.AddDate(0, 0, -rng.Days())

	var (
		totals                  Totals
		created, played, visits []time.Time
		locations               []LocationCount
	)

	g, gctx := errgroup.WithContext(ctx)
	counts := []struct {
		dst *int
		fn  func(context.Context) (int, error)
	}{
		{&totals.Created, d.src.CountCreated},
		{&totals.Played, d.src.CountPlayed},
		{&totals.Completed, d.src.CountCompleted},
		{&totals.Wins, d.src.CountWins},
		{&totals.Visitors, d.src.CountVisitors},
	}
	for _, c := range counts {
		g.Go(func() error {
			n, err := c.fn(gctx)
			if err != nil {
				return err
			}
			*c.dst = n
			return nil
		})
	}
	g.Go(func() (err error) {
		created, err = d.src.CreatedSince(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		played, err = d.src.PlayedSince(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		visits, err = d.src.VisitsSince(gctx, since)
		return err
	})
	g.Go(func() (err error) {
		locations, err = d.src.TopLocations(gctx, since, topLocationLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return Summary{}, fmt.Errorf("loading dashboard: %w", err)
	}

	s := Summary{
		Range:          rng,
		Totals:         totals,
		CompletionRate: percent(totals.Completed, totals.Played),
		WinRate:        percent(totals.Wins, totals.Completed),
		Series:         d.series(since, now, created, played, visits),
		TopLocations:   make([]Location, 0, len(locations)),
	}
	for _, lc := range locations {
		s.TopLocations = append(s.TopLocations, Location{Label: locationLabel(lc), Count: lc.Count})
	}
	return s, nil
}

// series returns one zero-filled point per calendar day from since to now.
func (d *Dashboard) series(since, now time.Time, created, played, visits []time.Time) []DailyPoint {
	var points []DailyPoint
	index := make(map[string]int)

	start := since.In(d.loc)
	day := time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, d.loc)
	end := now.In(d.loc)
	for !day.After(end) {
		key := day.Format(time.DateOnly)
		index[key] = len(points)
		points = append(points, DailyPoint{Date: key, Label: day.Format("2 Jan")})
		day = day.AddDate(0, 0, 1)
	}

	bump := func(ts []time.Time, field func(*DailyPoint)) {
		for _, t := range ts {
			if i, ok := index[t.In(d.loc).Format(time.DateOnly)]; ok {
				field(&points[i])
			}
		}
	}
	bump(created, func(p *DailyPoint) { p.Created++ })
	bump(played, func(p *DailyPoint) { p.Played++ })
	bump(visits, func(p *DailyPoint) { p.Visitors++ })
	return points
}

func percent(n, d int) int {
	if d == 0 {
		return 0
	}
	return int(math.Round(float64(n) * 100 / float64(d)))
}

func locationLabel(lc LocationCount) string {
	if lc.Country == "" {
		return lc.City
	}
	return lc.City + ", " + lc.Country
}
