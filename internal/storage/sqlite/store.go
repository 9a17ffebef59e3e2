// Package sqlite provides the synced store: a project scoped session document
// table and an object table holding the serialized models.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/drakos74/draw-guess/internal/model"
	"github.com/drakos74/draw-guess/internal/storage"
	"github.com/drakos74/draw-guess/internal/storage/sqlite/migrations"
	_ "modernc.org/sqlite"
)

const (
	// ModelContentType is the content type of the stored model objects.
	ModelContentType = "application/json"
	minKeyLength     = 16
)

var (
	ErrInvalidConfig = errors.New("invalid sync configuration")
	projectPattern   = regexp.MustCompile(`^[a-z0-9][a-z0-9-]{2,62}$`)
)

// Config is the configuration triple of the synced store.
type Config struct {
	Project  string
	Database string
	APIKey   string
}

// Validate checks that all parts of the configuration are present and well formed.
func (c Config) Validate() error {
	if !projectPattern.MatchString(c.Project) {
		return fmt.Errorf("project '%s': %w", c.Project, ErrInvalidConfig)
	}
	if strings.TrimSpace(c.Database) == "" {
		return fmt.Errorf("database path is required: %w", ErrInvalidConfig)
	}
	if len(strings.TrimSpace(c.APIKey)) < minKeyLength {
		return fmt.Errorf("api key must have at least %d characters: %w", minKeyLength, ErrInvalidConfig)
	}
	return nil
}

// Document is the stored session record.
type Document struct {
	model.Stats
	LastUpdated time.Time
	ModelSaved  time.Time
}

// Store persists session documents and model objects in SQLite.
type Store struct {
	project string
	sqlDB   *sql.DB
	now     func() time.Time
}

func toMillis(value time.Time) int64 {
	return value.UTC().UnixMilli()
}

func fromMillis(value sql.NullInt64) time.Time {
	if !value.Valid {
		return time.Time{}
	}
	return time.UnixMilli(value.Int64).UTC()
}

// Open validates the configuration, opens the database and applies the embedded migrations.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	dsn := filepath.Clean(cfg.Database) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if err := applyMigrations(ctx, sqlDB, migrations.FS); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}
	return &Store{
		project: cfg.Project,
		sqlDB:   sqlDB,
		now:     time.Now,
	}, nil
}

// WithClock replaces the time source of the store.
func (s *Store) WithClock(now func() time.Time) *Store {
	s.now = now
	return s
}

// Close closes the SQLite handle.
func (s *Store) Close() error {
	if s == nil || s.sqlDB == nil {
		return nil
	}
	return s.sqlDB.Close()
}

func (s *Store) check(ctx context.Context, id string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s == nil || s.sqlDB == nil {
		return fmt.Errorf("store is not open: %w", storage.UnavailableErr)
	}
	return storage.CheckSession(id)
}

// Document returns the session document or NotFoundErr.
func (s *Store) Document(ctx context.Context, id string) (Document, error) {
	if err := s.check(ctx, id); err != nil {
		return Document{}, err
	}
	var (
		doc         Document
		lastUpdated sql.NullInt64
		modelSaved  sql.NullInt64
	)
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT total_samples, correct_predictions, last_updated, model_saved
		   FROM draw_guess
		  WHERE project = ? AND session_id = ?`,
		s.project, id,
	).Scan(&doc.TotalSamples, &doc.CorrectPredictions, &lastUpdated, &modelSaved)
	if errors.Is(err, sql.ErrNoRows) {
		return Document{}, fmt.Errorf("document '%s': %w", id, storage.NotFoundErr)
	}
	if err != nil {
		return Document{}, fmt.Errorf("query document '%s': %s: %w", id, err.Error(), storage.CouldNotLoadErr)
	}
	doc.LastUpdated = fromMillis(lastUpdated)
	doc.ModelSaved = fromMillis(modelSaved)
	return doc, nil
}

func (s *Store) LoadStats(ctx context.Context, id string) (model.Stats, error) {
	doc, err := s.Document(ctx, id)
	if errors.Is(err, storage.NotFoundErr) {
		return model.Stats{}, nil
	}
	if err != nil {
		return model.Stats{}, err
	}
	if err := doc.Stats.Validate(); err != nil {
		return model.Stats{}, fmt.Errorf("document '%s': %s: %w", id, err.Error(), storage.CouldNotLoadErr)
	}
	return doc.Stats, nil
}

// SaveStats merges the counts into the session document, keeping the model stamp.
func (s *Store) SaveStats(ctx context.Context, id string, stats model.Stats) error {
	if err := s.check(ctx, id); err != nil {
		return err
	}
	if err := stats.Validate(); err != nil {
		return err
	}
	_, err := s.sqlDB.ExecContext(ctx,
		`INSERT INTO draw_guess (project, session_id, total_samples, correct_predictions, last_updated)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project, session_id) DO UPDATE SET
		   total_samples = excluded.total_samples,
		   correct_predictions = excluded.correct_predictions,
		   last_updated = excluded.last_updated`,
		s.project, id, stats.TotalSamples, stats.CorrectPredictions, toMillis(s.now()),
	)
	if err != nil {
		return fmt.Errorf("save stats '%s': %w", id, err)
	}
	return nil
}

func (s *Store) LoadModel(ctx context.Context, id string) ([]byte, error) {
	if err := s.check(ctx, id); err != nil {
		return nil, err
	}
	var data []byte
	err := s.sqlDB.QueryRowContext(ctx,
		`SELECT data FROM objects WHERE project = ? AND path = ?`,
		s.project, storage.ModelPath(id),
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("model '%s': %w", storage.ModelPath(id), storage.NotFoundErr)
	}
	if err != nil {
		return nil, fmt.Errorf("query model '%s': %s: %w", id, err.Error(), storage.CouldNotLoadErr)
	}
	return data, nil
}

// SaveModel uploads the model object and stamps the session document in one transaction.
// The counts of an existing document are kept.
func (s *Store) SaveModel(ctx context.Context, id string, blob []byte) error {
	if err := s.check(ctx, id); err != nil {
		return err
	}
	now := toMillis(s.now())
	tx, err := s.sqlDB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save model '%s': %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO objects (project, path, content_type, data, updated_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(project, path) DO UPDATE SET
		   content_type = excluded.content_type,
		   data = excluded.data,
		   updated_at = excluded.updated_at`,
		s.project, storage.ModelPath(id), ModelContentType, blob, now,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("upload model '%s': %w", id, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO draw_guess (project, session_id, last_updated, model_saved)
		 VALUES (?, ?, ?, ?)
		 ON CONFLICT(project, session_id) DO UPDATE SET
		   last_updated = excluded.last_updated,
		   model_saved = excluded.model_saved`,
		s.project, id, now, now,
	); err != nil {
		_ = tx.Rollback()
		return fmt.Errorf("stamp model '%s': %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit model '%s': %w", id, err)
	}
	return nil
}

func (s *Store) DeleteModel(ctx context.Context, id string) error {
	if err := s.check(ctx, id); err != nil {
		return err
	}
	res, err := s.sqlDB.ExecContext(ctx,
		`DELETE FROM objects WHERE project = ? AND path = ?`,
		s.project, storage.ModelPath(id),
	)
	if err != nil {
		return fmt.Errorf("delete model '%s': %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete model '%s': %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("model '%s': %w", storage.ModelPath(id), storage.NotFoundErr)
	}
	return nil
}
