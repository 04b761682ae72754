// Package stats turns collections of entries into totals, percentages and
// chart series. Everything here is pure: no I/O and no mutation of input.
package stats

import (
	"math"
	"sort"

	"github.com/studylog/core/internal/domain/entities"
)

// Summarize sums every category across entries and computes each
// category's share of the grand total. Percentages are only defined when
// the grand total is positive.
func Summarize(entries []entities.Entry) entities.Stats {
	var totals entities.Tally
	for _, e := range entries {
		totals = totals.Add(e.Tally)
	}

	result := entities.Stats{
		Totals:      totals,
		GrandTotal:  totals.Total(),
		Percentages: make(map[entities.Category]float64),
	}
	if result.GrandTotal <= 0 {
		return result
	}

	for _, c := range entities.Categories {
		result.Percentages[c] = Round1(100 * float64(totals.Get(c)) / float64(result.GrandTotal))
	}
	return result
}

// RunningTotals returns one point per entry, ordered by date, holding the
// cumulative minutes per category up to and including that entry.
func RunningTotals(entries []entities.Entry) []entities.SeriesPoint {
	sorted := make([]entities.Entry, len(entries))
	copy(sorted, entries)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date < sorted[j].Date
	})

	points := make([]entities.SeriesPoint, 0, len(sorted))
	var cumulative entities.Tally
	for _, e := range sorted {
		cumulative = cumulative.Add(e.Tally)
		points = append(points, point(e.Date, cumulative, 1))
	}
	return points
}

// DailyAverages merges same-date entries, then returns for each distinct
// date the cumulative minutes divided by the number of days seen so far.
func DailyAverages(entries []entities.Entry) []entities.SeriesPoint {
	daily := make(map[string]entities.Tally)
	for _, e := range entries {
		daily[e.Date] = daily[e.Date].Add(e.Tally)
	}

	dates := make([]string, 0, len(daily))
	for d := range daily {
		dates = append(dates, d)
	}
	sort.Strings(dates)

	points := make([]entities.SeriesPoint, 0, len(dates))
	var cumulative entities.Tally
	for i, d := range dates {
		cumulative = cumulative.Add(daily[d])
		points = append(points, point(d, cumulative, i+1))
	}
	return points
}

func point(date string, t entities.Tally, divisor int) entities.SeriesPoint {
	p := entities.SeriesPoint{
		Date:       date,
		Categories: make(map[entities.Category]float64, len(entities.Categories)),
	}
	for _, c := range entities.Categories {
		p.Categories[c] = Round1(float64(t.Get(c)) / float64(divisor))
	}
	p.Total = Round1(float64(t.Total()) / float64(divisor))
	return p
}

// Round1 rounds to one decimal place.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}
