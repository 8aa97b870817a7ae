package snapshot

import (
	"bytes"
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/leapstack-labs/tmlineage/internal/lineage"
)

//go:embed migrations/*.sql
var migrations embed.FS

// SQLiteStore keeps snapshots in a SQLite catalog, one row per snapshot.
type SQLiteStore struct {
	db     *sql.DB
	path   string
	logger *slog.Logger
}

// NewSQLiteStore creates an unopened store. A nil logger discards output.
func NewSQLiteStore(logger *slog.Logger) *SQLiteStore {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &SQLiteStore{logger: logger}
}

// OpenSQLiteStore opens the catalog at path and applies pending migrations.
func OpenSQLiteStore(path string, logger *slog.Logger) (*SQLiteStore, error) {
	s := NewSQLiteStore(logger)
	if err := s.Open(path); err != nil {
		return nil, err
	}
	if err := s.Migrate(); err != nil {
		_ = s.Close()
		return nil, err
	}
	return s, nil
}

// Open opens a connection to the SQLite database.
// Use ":memory:" for an in-memory database.
func (s *SQLiteStore) Open(path string) error {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// One connection keeps an in-memory catalog alive and serialises writers.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return fmt.Errorf("failed to ping sqlite database: %w", err)
	}
	s.db = db
	s.path = path
	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Migrate runs all pending migrations.
func (s *SQLiteStore) Migrate() error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	goose.SetBaseFS(migrations)
	goose.SetLogger(goose.NopLogger())
	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("failed to set dialect: %w", err)
	}
	if err := goose.Up(s.db, "migrations"); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}

// MigrationVersion returns the current migration version.
func (s *SQLiteStore) MigrationVersion() (int64, error) {
	if s.db == nil {
		return 0, fmt.Errorf("database not opened")
	}
	goose.SetBaseFS(migrations)
	if err := goose.SetDialect("sqlite"); err != nil {
		return 0, fmt.Errorf("failed to set dialect: %w", err)
	}
	return goose.GetDBVersion(s.db)
}

// Save upserts the snapshot row.
func (s *SQLiteStore) Save(ctx context.Context, e Entry) error {
	if s.db == nil {
		return fmt.Errorf("database not opened")
	}
	var payload bytes.Buffer
	if err := encode(&payload, newBlob(e)); err != nil {
		return fmt.Errorf("saving %s: %w", e.Name, err)
	}
	info := infoOf(e, time.Now().UTC())
	var trackID sql.NullInt64
	if info.TrackID != nil {
		trackID = sql.NullInt64{Int64: *info.TrackID, Valid: true}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, document, run_id, track_id, nodes, edges, payload, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			document = excluded.document,
			run_id = excluded.run_id,
			track_id = excluded.track_id,
			nodes = excluded.nodes,
			edges = excluded.edges,
			payload = excluded.payload,
			created_at = excluded.created_at
	`, info.Name, info.Document, info.RunID, trackID, info.Nodes, info.Edges, payload.Bytes(), info.CreatedAt.UnixNano())
	if err != nil {
		return fmt.Errorf("saving %s: %w", e.Name, err)
	}
	s.logger.Debug("snapshot saved", "name", e.Name, "db", s.path)
	return nil
}

// Load decodes the payload saved under name.
func (s *SQLiteStore) Load(ctx context.Context, name string) (*lineage.Graph, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	var payload []byte
	err := s.db.QueryRowContext(ctx, `SELECT payload FROM snapshots WHERE name = ?`, name).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", name, err)
	}
	b, err := decode(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return b.graph()
}

// List reads the catalog columns without decoding payloads.
func (s *SQLiteStore) List(ctx context.Context) ([]Info, error) {
	if s.db == nil {
		return nil, fmt.Errorf("database not opened")
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT name, document, run_id, track_id, nodes, edges, created_at
		FROM snapshots
		ORDER BY name
	`)
	if err != nil {
		return nil, fmt.Errorf("listing snapshots: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []Info
	for rows.Next() {
		var (
			info    Info
			trackID sql.NullInt64
			created int64
		)
		if err := rows.Scan(&info.Name, &info.Document, &info.RunID, &trackID, &info.Nodes, &info.Edges, &created); err != nil {
			return nil, fmt.Errorf("listing snapshots: %w", err)
		}
		if trackID.Valid {
			id := trackID.Int64
			info.TrackID = &id
		}
		info.CreatedAt = time.Unix(0, created).UTC()
		out = append(out, info)
	}
	return out, rows.Err()
}
