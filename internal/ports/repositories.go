package ports

import (
	"context"

	"github.com/studylog/core/internal/domain/entities"
)

// CollectionRepository defines the flat-file database store. Every method
// takes a database file name such as "data.json".
type CollectionRepository interface {
	Ensure(ctx context.Context, file string) error
	Read(ctx context.Context, file string) (*entities.Collection, error)
	Write(ctx context.Context, file string, collection *entities.Collection) error
	List(ctx context.Context) ([]string, error)
	Exists(ctx context.Context, file string) (bool, error)
	Remove(ctx context.Context, file string) error
	Dir() string
}

// SelectionRepository persists which database each session has selected.
// Set must not return before the change is durable.
type SelectionRepository interface {
	Get(ctx context.Context, sessionID string) (string, bool, error)
	Set(ctx context.Context, sessionID, collection string) error
	Reassign(ctx context.Context, from, to string) (int64, error)
	Ping(ctx context.Context) error
	Close() error
}
