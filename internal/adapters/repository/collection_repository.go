package repository

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/studylog/core/internal/domain/entities"
	"github.com/studylog/core/internal/infrastructure/logger"
)

// CollectionRepository stores each database as one JSON file in a directory.
// Reads and writes always move the whole file; there is no locking here.
type CollectionRepository struct {
	dir     string
	exclude map[string]struct{}
	logger  *logger.Logger
}

// NewCollectionRepository creates a new flat-file store rooted at dir
func NewCollectionRepository(dir string, exclude []string, logger *logger.Logger) *CollectionRepository {
	ex := make(map[string]struct{}, len(exclude))
	for _, name := range exclude {
		if name != "" {
			ex[name] = struct{}{}
		}
	}
	return &CollectionRepository{
		dir:     dir,
		exclude: ex,
		logger:  logger.WithComponent("store"),
	}
}

// Dir returns the data directory
func (r *CollectionRepository) Dir() string {
	return r.dir
}

func (r *CollectionRepository) path(file string) (string, error) {
	if !entities.IsCollectionFile(file) {
		return "", fmt.Errorf("%w: %q", entities.ErrInvalidCollectionName, file)
	}
	if _, excluded := r.exclude[file]; excluded {
		return "", fmt.Errorf("%w: %q is not a database file", entities.ErrInvalidCollectionName, file)
	}
	return filepath.Join(r.dir, file), nil
}

// Ensure creates an empty database file if none exists
func (r *CollectionRepository) Ensure(ctx context.Context, file string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := r.path(file)
	if err != nil {
		return err
	}

	_, err = os.Stat(p)
	if err == nil {
		return nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("store error checking %s: %w", file, err)
	}

	if err := r.Write(ctx, file, entities.NewCollection()); err != nil {
		return err
	}
	r.logger.Infow("Created database file", "database", file, "path", p)
	return nil
}

// Read loads a database. It always returns a usable collection: a missing
// file reads as empty, and unparseable content reads as empty together with
// ErrCollectionCorrupt after the original bytes are copied aside.
func (r *CollectionRepository) Read(ctx context.Context, file string) (*entities.Collection, error) {
	if err := ctx.Err(); err != nil {
		return entities.NewCollection(), err
	}
	p, err := r.path(file)
	if err != nil {
		return entities.NewCollection(), err
	}

	data, err := os.ReadFile(p)
	if errors.Is(err, fs.ErrNotExist) {
		r.logger.Debugw("Database file absent, reading as empty", "database", file)
		return entities.NewCollection(), nil
	}
	if err != nil {
		return entities.NewCollection(), fmt.Errorf("store error reading %s: %w", file, err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		r.logger.Debugw("Database file empty, reading as empty", "database", file)
		return entities.NewCollection(), nil
	}

	collection, decodeErr := decodeCollection(data)
	if decodeErr == nil {
		return collection, nil
	}

	backup, backupErr := r.backupCorrupt(p, data)
	if backupErr != nil {
		r.logger.Errorw("Failed to back up corrupt database file", "database", file, "error", backupErr)
	}
	r.logger.Warnw("Database file is corrupt, reading as empty",
		"database", file,
		"backup", backup,
		"error", decodeErr,
	)
	return entities.NewCollection(), fmt.Errorf("%w: %s: %v", entities.ErrCollectionCorrupt, file, decodeErr)
}

func decodeCollection(data []byte) (*entities.Collection, error) {
	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(data, &envelope); err != nil {
		return nil, fmt.Errorf("not a JSON object: %w", err)
	}
	raw, ok := envelope["entries"]
	if !ok {
		return nil, errors.New(`missing "entries" field`)
	}
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || raw[0] != '[' {
		return nil, errors.New(`"entries" is not an array`)
	}

	collection := entities.NewCollection()
	if err := json.Unmarshal(raw, &collection.Entries); err != nil {
		return nil, fmt.Errorf("invalid entries: %w", err)
	}
	return collection, nil
}

// backupCorrupt copies unreadable content next to the original so a later
// write cannot destroy it. An existing backup is never overwritten.
func (r *CollectionRepository) backupCorrupt(p string, data []byte) (string, error) {
	backup := p + ".corrupt"
	if _, err := os.Stat(backup); err == nil {
		existing, readErr := os.ReadFile(backup)
		if readErr == nil && bytes.Equal(existing, data) {
			return backup, nil
		}
		backup = fmt.Sprintf("%s.corrupt-%s", p, time.Now().UTC().Format("20060102T150405.000"))
	}
	if err := os.WriteFile(backup, data, 0o600); err != nil {
		return "", err
	}
	return backup, nil
}

// Write replaces the database file with the given collection
func (r *CollectionRepository) Write(ctx context.Context, file string, collection *entities.Collection) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := r.path(file)
	if err != nil {
		return err
	}
	if collection == nil {
		collection = entities.NewCollection()
	}
	if collection.Entries == nil {
		collection.Entries = []entities.Entry{}
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("store error creating data directory: %w", err)
	}

	data, err := json.MarshalIndent(collection, "", "  ")
	if err != nil {
		return fmt.Errorf("store error marshalling %s: %w", file, err)
	}

	// Atomic write: write to temp file then rename.
	tmp, err := os.CreateTemp(r.dir, file+".tmp-*")
	if err != nil {
		return fmt.Errorf("store error creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	cleanup := func() { _ = os.Remove(tmpPath) }

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		cleanup()
		return fmt.Errorf("store error writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		cleanup()
		return fmt.Errorf("store error closing temp file: %w", err)
	}
	if err := os.Chmod(tmpPath, 0o644); err != nil {
		cleanup()
		return fmt.Errorf("store error setting permissions: %w", err)
	}
	if err := os.Rename(tmpPath, p); err != nil {
		cleanup()
		return fmt.Errorf("store error renaming temp file: %w", err)
	}
	return nil
}

// List returns the database files in the data directory
func (r *CollectionRepository) List(ctx context.Context) ([]string, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	dirEntries, err := os.ReadDir(r.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("store error listing %s: %w", r.dir, err)
	}

	names := make([]string, 0, len(dirEntries))
	for _, e := range dirEntries {
		if !e.Type().IsRegular() {
			continue
		}
		name := e.Name()
		if !entities.IsCollectionFile(name) {
			continue
		}
		if _, excluded := r.exclude[name]; excluded {
			continue
		}
		names = append(names, name)
	}
	return names, nil
}

// Exists reports whether a database file is present
func (r *CollectionRepository) Exists(ctx context.Context, file string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	p, err := r.path(file)
	if err != nil {
		return false, err
	}
	info, err := os.Stat(p)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("store error checking %s: %w", file, err)
	}
	return info.Mode().IsRegular(), nil
}

// Remove deletes a database file unless it is the last one
func (r *CollectionRepository) Remove(ctx context.Context, file string) error {
	exists, err := r.Exists(ctx, file)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", entities.ErrCollectionNotFound, file)
	}

	names, err := r.List(ctx)
	if err != nil {
		return err
	}
	if len(names) <= 1 {
		return fmt.Errorf("%w: %s", entities.ErrLastCollection, file)
	}

	if err := os.Remove(filepath.Join(r.dir, file)); err != nil {
		return fmt.Errorf("store error removing %s: %w", file, err)
	}
	r.logger.Infow("Removed database file", "database", file)
	return nil
}
