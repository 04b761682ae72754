package stats_test

import (
	"math"
	"testing"

	"github.com/studylog/core/internal/domain/entities"
	"github.com/studylog/core/internal/domain/stats"
)

func entry(date string, t entities.Tally) entities.Entry {
	return entities.Entry{Date: date, Tally: t}
}

func TestSummarizeAllZero(t *testing.T) {
	entries := []entities.Entry{
		entry("2024-01-01", entities.Tally{}),
		entry("2024-01-02", entities.Tally{}),
	}
	got := stats.Summarize(entries)
	if got.GrandTotal != 0 {
		t.Fatalf("GrandTotal = %d, want 0", got.GrandTotal)
	}
	for _, c := range entities.Categories {
		if _, ok := got.Percentage(c); ok {
			t.Errorf("percentage for %s defined on zero total", c)
		}
	}
}

func TestSummarizeEmpty(t *testing.T) {
	got := stats.Summarize(nil)
	if got.GrandTotal != 0 || len(got.Percentages) != 0 {
		t.Fatalf("Summarize(nil) = %+v, want zero stats", got)
	}
}

func TestSummarizeExample(t *testing.T) {
	entries := []entities.Entry{
		entry("2024-01-01", entities.Tally{Textbook: 30, Podcast: 10}),
	}
	got := stats.Summarize(entries)
	if got.GrandTotal != 40 {
		t.Fatalf("GrandTotal = %d, want 40", got.GrandTotal)
	}
	tests := []struct {
		category entities.Category
		want     float64
	}{
		{entities.CategoryTextbook, 75.0},
		{entities.CategoryPodcast, 25.0},
		{entities.CategoryNotes, 0},
		{entities.CategoryLecture, 0},
	}
	for _, tt := range tests {
		p, ok := got.Percentage(tt.category)
		if !ok {
			t.Errorf("percentage for %s undefined", tt.category)
			continue
		}
		if p != tt.want {
			t.Errorf("percentage[%s] = %v, want %v", tt.category, p, tt.want)
		}
	}
}

func TestSummarizePercentagesSumToHundred(t *testing.T) {
	inputs := [][]entities.Entry{
		{entry("2024-01-01", entities.Tally{Textbook: 1, Podcast: 1, Notes: 1})},
		{entry("2024-01-01", entities.Tally{Textbook: 7, Podcast: 13, Notes: 29, Flashcards: 3, Practice: 11, InPerson: 17, Lecture: 19})},
		{
			entry("2024-01-01", entities.Tally{Textbook: 5}),
			entry("2024-01-02", entities.Tally{Lecture: 90, Practice: 1}),
			entry("2024-01-02", entities.Tally{InPerson: 333}),
		},
	}
	// Seven values each rounded to one decimal can drift by at most 7*0.05.
	const tolerance = 0.35 + 1e-9
	for i, entries := range inputs {
		got := stats.Summarize(entries)
		sum := 0.0
		for _, p := range got.Percentages {
			sum += p
		}
		if math.Abs(sum-100) > tolerance {
			t.Errorf("case %d: percentages sum to %v", i, sum)
		}
	}
}

func TestSummarizeDoesNotMutateInput(t *testing.T) {
	entries := []entities.Entry{
		entry("2024-01-02", entities.Tally{Notes: 5}),
		entry("2024-01-01", entities.Tally{Notes: 7}),
	}
	_ = stats.Summarize(entries)
	_ = stats.RunningTotals(entries)
	if entries[0].Date != "2024-01-02" || entries[0].Notes != 5 {
		t.Fatalf("input mutated: %+v", entries)
	}
}

func TestRunningTotals(t *testing.T) {
	entries := []entities.Entry{
		entry("2024-01-03", entities.Tally{Textbook: 10}),
		entry("2024-01-01", entities.Tally{Textbook: 30, Podcast: 10}),
		entry("2024-01-02", entities.Tally{Lecture: 5}),
	}
	points := stats.RunningTotals(entries)
	if len(points) != 3 {
		t.Fatalf("len(points) = %d, want 3", len(points))
	}
	wantDates := []string{"2024-01-01", "2024-01-02", "2024-01-03"}
	wantTotals := []float64{40, 45, 55}
	for i, p := range points {
		if p.Date != wantDates[i] {
			t.Errorf("points[%d].Date = %q, want %q", i, p.Date, wantDates[i])
		}
		if p.Total != wantTotals[i] {
			t.Errorf("points[%d].Total = %v, want %v", i, p.Total, wantTotals[i])
		}
	}
	if got := points[2].Categories[entities.CategoryTextbook]; got != 40 {
		t.Errorf("cumulative textbook = %v, want 40", got)
	}
}

func TestDailyAveragesMergesSameDay(t *testing.T) {
	entries := []entities.Entry{
		entry("2024-01-01", entities.Tally{Textbook: 30}),
		entry("2024-01-01", entities.Tally{Textbook: 10}),
		entry("2024-01-02", entities.Tally{Podcast: 25}),
		entry("2024-01-04", entities.Tally{}),
	}
	points := stats.DailyAverages(entries)
	if len(points) != 3 {
		t.Fatalf("len(points) = %d, want 3", len(points))
	}
	// day 1: 40/1, day 2: 65/2, day 3: 65/3
	want := []float64{40, 32.5, 21.7}
	for i, p := range points {
		if p.Total != want[i] {
			t.Errorf("points[%d].Total = %v, want %v", i, p.Total, want[i])
		}
	}
	if got := points[1].Categories[entities.CategoryTextbook]; got != 20 {
		t.Errorf("day 2 textbook average = %v, want 20", got)
	}
}
