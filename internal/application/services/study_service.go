package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/studylog/core/internal/domain/entities"
	"github.com/studylog/core/internal/domain/stats"
	"github.com/studylog/core/internal/infrastructure/logger"
	"github.com/studylog/core/internal/ports"
)

const corruptWarning = "The selected database file could not be read and was backed up with a .corrupt suffix. It is shown as empty; new entries start a fresh file."

// StudyService handles study log operations for the session's selected database
type StudyService struct {
	store    ports.CollectionRepository
	sessions *SessionService
	notifier ports.Notifier
	metrics  ports.StudyMetrics
	logger   *logger.Logger
	locks    *keyedMutex
	// layout serializes create and delete so the last-database check and
	// the reassignment that follows see a stable directory
	layout sync.Mutex
	now    func() time.Time
}

// NewStudyService creates a new study service. notifier and metrics may be nil.
func NewStudyService(store ports.CollectionRepository, sessions *SessionService, notifier ports.Notifier, metrics ports.StudyMetrics, logger *logger.Logger) *StudyService {
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if metrics == nil {
		metrics = nopMetrics{}
	}
	return &StudyService{
		store:    store,
		sessions: sessions,
		notifier: notifier,
		metrics:  metrics,
		logger:   logger.WithComponent("study"),
		locks:    newKeyedMutex(),
		now:      time.Now,
	}
}

// Sessions returns the session service the study service resolves selections with
func (s *StudyService) Sessions() *SessionService {
	return s.sessions
}

// ensure creates the database file if needed. Failures are only logged.
func (s *StudyService) ensure(ctx context.Context, file string) {
	unlock := s.locks.Lock(file)
	defer unlock()
	if err := s.store.Ensure(ctx, file); err != nil {
		s.logger.Errorw("Failed to create database file", "database", file, "error", err)
	}
}

// read loads a database. Corrupt content reads as empty and is reported
// through the flag rather than as an error.
func (s *StudyService) read(ctx context.Context, file string) (*entities.Collection, bool, error) {
	collection, err := s.store.Read(ctx, file)
	if errors.Is(err, entities.ErrCollectionCorrupt) {
		s.metrics.CorruptRead(file)
		return collection, true, nil
	}
	if err != nil {
		return collection, false, err
	}
	return collection, false, nil
}

func (s *StudyService) load(ctx context.Context, file string) (*entities.Collection, bool, error) {
	s.ensure(ctx, file)
	return s.read(ctx, file)
}

// Page gathers everything the index page shows
func (s *StudyService) Page(ctx context.Context, sessionID string) (*ports.PageData, error) {
	current := s.sessions.Current(ctx, sessionID)

	collection, corrupt, err := s.load(ctx, current)
	if err != nil {
		s.logger.Errorw("Failed to read database for page", "database", current, "error", err)
	}

	databases, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	s.metrics.CollectionCount(len(databases))

	summary := stats.Summarize(collection.Entries)
	rows := make([]ports.CategoryRow, 0, len(entities.Categories))
	for _, c := range entities.Categories {
		pct, ok := summary.Percentage(c)
		rows = append(rows, ports.CategoryRow{
			Key:           c,
			Label:         c.Label(),
			Minutes:       summary.Totals.Get(c),
			Percentage:    pct,
			HasPercentage: ok,
		})
	}

	page := &ports.PageData{
		Current:    current,
		Databases:  databases,
		Stats:      summary,
		EntryCount: len(collection.Entries),
		Today:      s.now().Format("2006-01-02"),
		Categories: rows,
	}
	if corrupt {
		page.Warning = corruptWarning
	}
	return page, nil
}

// SubmitEntry appends an entry to the session's database
func (s *StudyService) SubmitEntry(ctx context.Context, sessionID string, req ports.SubmitEntryRequest) (*entities.Entry, error) {
	date := strings.TrimSpace(req.Date)
	if date == "" {
		return nil, entities.ErrDateRequired
	}
	current := s.sessions.Current(ctx, sessionID)

	entry := entities.Entry{
		Date:      date,
		Tally:     req.Tally,
		Timestamp: s.now().UTC().Truncate(time.Millisecond),
	}

	s.ensure(ctx, current)
	unlock := s.locks.Lock(current)
	collection, _, err := s.read(ctx, current)
	if err != nil {
		unlock()
		s.logger.Errorw("Failed to read database before write", "database", current, "error", err)
		return nil, fmt.Errorf("%w: %v", entities.ErrPersist, err)
	}
	collection.Entries = append(collection.Entries, entry)
	err = s.store.Write(ctx, current, collection)
	unlock()
	if err != nil {
		s.logger.Errorw("Failed to save entry", "database", current, "error", err)
		return nil, fmt.Errorf("%w: %v", entities.ErrPersist, err)
	}

	s.logger.LogCollectionAction(sessionID, "submit", current, map[string]interface{}{
		"date":    entry.Date,
		"minutes": entry.Total(),
	})
	s.metrics.EntrySubmitted(current, entry)
	s.notifier.Publish(entities.CollectionEvent{
		Type:      entities.EventCollectionUpdated,
		Database:  current,
		Entry:     &entry,
		Timestamp: entry.Timestamp,
	})
	return &entry, nil
}

// Data returns the full content of the session's database
func (s *StudyService) Data(ctx context.Context, sessionID string) (*entities.Collection, string, error) {
	current := s.sessions.Current(ctx, sessionID)
	collection, _, err := s.load(ctx, current)
	if err != nil {
		return nil, current, fmt.Errorf("failed to read %s: %w", current, err)
	}
	return collection, current, nil
}

// Stats summarizes the session's database
func (s *StudyService) Stats(ctx context.Context, sessionID string) (*ports.StatsResponse, error) {
	collection, current, err := s.Data(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &ports.StatsResponse{
		Database: current,
		Stats:    stats.Summarize(collection.Entries),
	}, nil
}

// Series returns the running total and daily average chart series
func (s *StudyService) Series(ctx context.Context, sessionID string) (*ports.SeriesResponse, error) {
	collection, current, err := s.Data(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return &ports.SeriesResponse{
		Database: current,
		Running:  stats.RunningTotals(collection.Entries),
		Averages: stats.DailyAverages(collection.Entries),
	}, nil
}

// ListCollections returns the available databases and the session's selection
func (s *StudyService) ListCollections(ctx context.Context, sessionID string) (*ports.CollectionsResponse, error) {
	databases, err := s.store.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list databases: %w", err)
	}
	s.metrics.CollectionCount(len(databases))
	return &ports.CollectionsResponse{
		Current:   s.sessions.Current(ctx, sessionID),
		Databases: databases,
	}, nil
}

// SwitchCollection selects an existing database for the session
func (s *StudyService) SwitchCollection(ctx context.Context, sessionID, file string) error {
	if !entities.IsCollectionFile(file) {
		return fmt.Errorf("%w: %q", entities.ErrInvalidCollectionName, file)
	}
	exists, err := s.store.Exists(ctx, file)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("%w: %s", entities.ErrCollectionNotFound, file)
	}

	if err := s.sessions.Select(ctx, sessionID, file); err != nil {
		return err
	}
	s.logger.LogCollectionAction(sessionID, "switch", file, nil)
	return nil
}

// CreateCollection creates an empty database and selects it. A trailing
// extension on name is accepted. The created file name is returned.
func (s *StudyService) CreateCollection(ctx context.Context, sessionID, name string) (string, error) {
	base := entities.CollectionBaseName(strings.TrimSpace(name))
	if !entities.ValidCollectionName(base) {
		return "", fmt.Errorf("%w: %q", entities.ErrInvalidCollectionName, name)
	}
	file := entities.CollectionFileName(base)

	s.layout.Lock()
	defer s.layout.Unlock()

	unlock := s.locks.Lock(file)
	exists, err := s.store.Exists(ctx, file)
	if err != nil {
		unlock()
		return "", err
	}
	if exists {
		unlock()
		return "", fmt.Errorf("%w: %s", entities.ErrCollectionExists, file)
	}
	err = s.store.Ensure(ctx, file)
	unlock()
	if err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrPersist, err)
	}

	if sessionID != "" {
		if err := s.sessions.Select(ctx, sessionID, file); err != nil {
			return "", err
		}
	}

	s.logger.LogCollectionAction(sessionID, "create", file, nil)
	s.countCollections(ctx)
	return file, nil
}

// DeleteCollection removes a database. Every session that had it selected,
// including the caller's, moves to a remaining database. The database the
// caller ends up on is returned. An empty sessionID deletes on behalf of no
// session, as the CLI does.
func (s *StudyService) DeleteCollection(ctx context.Context, sessionID, file string) (string, error) {
	if !entities.IsCollectionFile(file) {
		return "", fmt.Errorf("%w: %q", entities.ErrInvalidCollectionName, file)
	}
	wasCurrent := sessionID != "" && s.sessions.Current(ctx, sessionID) == file

	s.layout.Lock()
	defer s.layout.Unlock()

	replacement, err := s.removeAndReassign(ctx, file)
	if err != nil {
		return "", err
	}
	if wasCurrent {
		if err := s.sessions.Select(ctx, sessionID, replacement); err != nil {
			return "", err
		}
	}

	s.logger.LogCollectionAction(sessionID, "delete", file, map[string]interface{}{
		"replacement": replacement,
	})
	s.countCollections(ctx)
	s.notifier.Publish(entities.CollectionEvent{
		Type:      entities.EventCollectionDeleted,
		Database:  file,
		Timestamp: s.now().UTC(),
	})
	return s.sessions.Current(ctx, sessionID), nil
}

// removeAndReassign deletes file and moves its sessions while holding the
// file's lock, so a write queued on it waits until the sessions have moved.
func (s *StudyService) removeAndReassign(ctx context.Context, file string) (string, error) {
	unlock := s.locks.Lock(file)
	defer unlock()

	if err := s.store.Remove(ctx, file); err != nil {
		return "", err
	}
	replacement, err := s.replacementFor(ctx, file)
	if err != nil {
		return "", err
	}
	if _, err := s.sessions.Reassign(ctx, file, replacement); err != nil {
		s.logger.Errorw("Failed to move sessions off deleted database", "database", file, "error", err)
	}
	return replacement, nil
}

// replacementFor picks the database that takes over from a deleted one: the
// default when it still exists, otherwise the first listed, otherwise a
// freshly created default.
func (s *StudyService) replacementFor(ctx context.Context, deleted string) (string, error) {
	def := s.sessions.DefaultCollection()
	databases, err := s.store.List(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to list databases: %w", err)
	}
	for _, name := range databases {
		if name == def && name != deleted {
			return def, nil
		}
	}
	for _, name := range databases {
		if name != deleted {
			return name, nil
		}
	}
	if err := s.store.Ensure(ctx, def); err != nil {
		return "", fmt.Errorf("%w: %v", entities.ErrPersist, err)
	}
	return def, nil
}

func (s *StudyService) countCollections(ctx context.Context) {
	databases, err := s.store.List(ctx)
	if err != nil {
		return
	}
	s.metrics.CollectionCount(len(databases))
}

type nopNotifier struct{}

func (nopNotifier) Publish(entities.CollectionEvent) {}

type nopMetrics struct{}

func (nopMetrics) EntrySubmitted(string, entities.Entry) {}
func (nopMetrics) CollectionCount(int)                   {}
func (nopMetrics) CorruptRead(string)                    {}
