package ports

import (
	"github.com/studylog/core/internal/domain/entities"
)

// Notifier receives database change events, e.g. to push them to open pages.
type Notifier interface {
	Publish(event entities.CollectionEvent)
}

// StudyMetrics records domain counters.
type StudyMetrics interface {
	EntrySubmitted(database string, entry entities.Entry)
	CollectionCount(n int)
	CorruptRead(database string)
}

// Study related types
type SubmitEntryRequest struct {
	Date string `json:"date" form:"date" validate:"required"`
	entities.Tally
}

type SwitchCollectionRequest struct {
	Database string `json:"database" form:"database" validate:"required"`
}

type CreateCollectionRequest struct {
	Name string `json:"name" form:"name" validate:"required,collectionname"`
}

type DeleteCollectionRequest struct {
	Database string `json:"database" form:"database" validate:"required"`
}

type SubmitEntryResponse struct {
	Message string          `json:"message"`
	Entry   *entities.Entry `json:"entry"`
}

type CreateCollectionResponse struct {
	Message  string `json:"message"`
	Database string `json:"database"`
}

type CollectionsResponse struct {
	Current   string   `json:"current"`
	Databases []string `json:"databases"`
}

type StatsResponse struct {
	Database string         `json:"database"`
	Stats    entities.Stats `json:"stats"`
}

type SeriesResponse struct {
	Database string                 `json:"database"`
	Running  []entities.SeriesPoint `json:"running"`
	Averages []entities.SeriesPoint `json:"averages"`
}

// PageData is everything the index page renders.
type PageData struct {
	Current    string
	Databases  []string
	Stats      entities.Stats
	EntryCount int
	Today      string
	Warning    string
	Categories []CategoryRow
}

// CategoryRow is one line of the totals table.
type CategoryRow struct {
	Key        entities.Category
	Label      string
	Minutes    int
	Percentage float64
	// HasPercentage is false while the database holds no minutes
	HasPercentage bool
}
