package entities

import (
	"errors"
	"time"
)

// Common errors
var (
	ErrCollectionNotFound    = errors.New("database not found")
	ErrCollectionExists      = errors.New("database already exists")
	ErrInvalidCollectionName = errors.New("invalid database name")
	ErrLastCollection        = errors.New("cannot delete the last database")
	ErrCollectionCorrupt     = errors.New("database file is corrupt")
	ErrDateRequired          = errors.New("date is required")
	ErrPersist               = errors.New("failed to save data")
)

// Category is one of the fixed study activity types.
type Category string

const (
	CategoryTextbook   Category = "textbook"
	CategoryPodcast    Category = "podcast"
	CategoryNotes      Category = "notes"
	CategoryFlashcards Category = "flashcards"
	CategoryPractice   Category = "practice"
	CategoryInPerson   Category = "inperson"
	CategoryLecture    Category = "lecture"
)

// Categories lists every category in display order.
var Categories = []Category{
	CategoryTextbook,
	CategoryPodcast,
	CategoryNotes,
	CategoryFlashcards,
	CategoryPractice,
	CategoryInPerson,
	CategoryLecture,
}

var categoryLabels = map[Category]string{
	CategoryTextbook:   "Textbook Reading",
	CategoryPodcast:    "Podcast Listening",
	CategoryNotes:      "Note Writing",
	CategoryFlashcards: "Flashcard Questions",
	CategoryPractice:   "Practice Questions",
	CategoryInPerson:   "In-Person Study",
	CategoryLecture:    "Lecture",
}

// Label returns the human readable name of the category.
func (c Category) Label() string {
	if label, ok := categoryLabels[c]; ok {
		return label
	}
	return string(c)
}

// Tally holds minutes for each category. It is embedded in Entry so the
// category fields sit at the top level of the JSON object.
type Tally struct {
	Textbook   Minutes `json:"textbook" form:"textbook"`
	Podcast    Minutes `json:"podcast" form:"podcast"`
	Notes      Minutes `json:"notes" form:"notes"`
	Flashcards Minutes `json:"flashcards" form:"flashcards"`
	Practice   Minutes `json:"practice" form:"practice"`
	InPerson   Minutes `json:"inperson" form:"inperson"`
	Lecture    Minutes `json:"lecture" form:"lecture"`
}

// Get returns the minutes recorded for a category.
func (t Tally) Get(c Category) int {
	switch c {
	case CategoryTextbook:
		return int(t.Textbook)
	case CategoryPodcast:
		return int(t.Podcast)
	case CategoryNotes:
		return int(t.Notes)
	case CategoryFlashcards:
		return int(t.Flashcards)
	case CategoryPractice:
		return int(t.Practice)
	case CategoryInPerson:
		return int(t.InPerson)
	case CategoryLecture:
		return int(t.Lecture)
	}
	return 0
}

// Add returns the element-wise sum of two tallies.
func (t Tally) Add(o Tally) Tally {
	return Tally{
		Textbook:   t.Textbook + o.Textbook,
		Podcast:    t.Podcast + o.Podcast,
		Notes:      t.Notes + o.Notes,
		Flashcards: t.Flashcards + o.Flashcards,
		Practice:   t.Practice + o.Practice,
		InPerson:   t.InPerson + o.InPerson,
		Lecture:    t.Lecture + o.Lecture,
	}
}

// Total returns the sum over all categories.
func (t Tally) Total() int {
	total := 0
	for _, c := range Categories {
		total += t.Get(c)
	}
	return total
}

// Entry is one dated submission of study minutes.
type Entry struct {
	Date string `json:"date"`
	Tally
	Timestamp time.Time `json:"timestamp"`
}

// Collection is the content of one database file.
type Collection struct {
	Entries []Entry `json:"entries"`
}

// NewCollection returns an empty collection whose entries marshal as [].
func NewCollection() *Collection {
	return &Collection{Entries: []Entry{}}
}

// Stats is the summary of a collection.
type Stats struct {
	Totals      Tally                `json:"totals"`
	GrandTotal  int                  `json:"grandTotal"`
	Percentages map[Category]float64 `json:"percentages"`
}

// Percentage returns the share of a category and whether one is defined.
func (s Stats) Percentage(c Category) (float64, bool) {
	p, ok := s.Percentages[c]
	return p, ok
}

// SeriesPoint is one step of a cumulative chart series.
type SeriesPoint struct {
	Date       string               `json:"date"`
	Categories map[Category]float64 `json:"categories"`
	Total      float64              `json:"total"`
}

// CollectionEvent is published when a database changes.
type CollectionEvent struct {
	Type      string    `json:"type"`
	Database  string    `json:"database"`
	Entry     *Entry    `json:"entry,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// Event types
const (
	EventCollectionUpdated = "collection.updated"
	EventCollectionDeleted = "collection.deleted"
)
