// Package postgres provides a PostgreSQL-backed catalog store with metrics.
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/VintageWander/filey/internal/logging"
	"github.com/VintageWander/filey/internal/metrics"
	"github.com/VintageWander/filey/pkg/models"
)

//go:embed migrations/*.up.sql
var migrations embed.FS

const selectColumns = `SELECT id, name, mime, visibility, path FROM files`

// Store is a PostgreSQL catalog store.
type Store struct {
	db *sql.DB
}

// New opens and pings the database.
func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Store{db: db}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate runs the embedded SQL migrations in name order.
func (s *Store) Migrate(ctx context.Context) error {
	names, err := fs.Glob(migrations, "migrations/*.up.sql")
	if err != nil {
		return fmt.Errorf("glob migrations: %w", err)
	}
	sort.Strings(names)

	for _, name := range names {
		logging.Info("running migration", zap.String("file", name))
		content, err := migrations.ReadFile(name)
		if err != nil {
			return fmt.Errorf("read migration %s: %w", name, err)
		}
		if _, err := s.db.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("exec migration %s: %w", name, err)
		}
	}
	return nil
}

func (s *Store) Get(ctx context.Context, id uuid.UUID) (*models.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_file", time.Since(start)) }()

	return scanOne(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1`, id))
}

func (s *Store) GetPublic(ctx context.Context, id uuid.UUID) (*models.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("get_public_file", time.Since(start)) }()

	return scanOne(s.db.QueryRowContext(ctx, selectColumns+` WHERE id = $1 AND visibility = 'public'`, id))
}

// Insert relies on ON CONFLICT so concurrent inserts of one id never fail.
func (s *Store) Insert(ctx context.Context, rec models.FileRecord) error {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("insert_file", time.Since(start)) }()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, name, mime, visibility, path)
		 VALUES ($1, $2, $3, $4, $5)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Name, rec.Mime, string(rec.Visibility), rec.Path)
	if err != nil {
		return fmt.Errorf("insert file %s: %w", rec.ID, err)
	}
	return nil
}

func (s *Store) SetVisibility(ctx context.Context, id uuid.UUID, v models.Visibility) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("set_visibility", time.Since(start)) }()

	res, err := s.db.ExecContext(ctx, `UPDATE files SET visibility = $1 WHERE id = $2`, string(v), id)
	if err != nil {
		return false, fmt.Errorf("update visibility %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) Delete(ctx context.Context, id uuid.UUID) (bool, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("delete_file", time.Since(start)) }()

	res, err := s.db.ExecContext(ctx, `DELETE FROM files WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("delete file %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

func (s *Store) List(ctx context.Context) ([]models.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_files", time.Since(start)) }()

	return s.query(ctx, selectColumns+` ORDER BY seq`)
}

func (s *Store) ListPublic(ctx context.Context) ([]models.FileRecord, error) {
	start := time.Now()
	defer func() { metrics.RecordDBQuery("list_public_files", time.Since(start)) }()

	return s.query(ctx, selectColumns+` WHERE visibility = 'public' ORDER BY seq`)
}

func (s *Store) query(ctx context.Context, q string, args ...any) ([]models.FileRecord, error) {
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("query files: %w", err)
	}
	defer rows.Close()

	var out []models.FileRecord
	for rows.Next() {
		rec, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate files: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scan(row scanner) (models.FileRecord, error) {
	var rec models.FileRecord
	var vis string
	if err := row.Scan(&rec.ID, &rec.Name, &rec.Mime, &vis, &rec.Path); err != nil {
		return rec, err
	}
	v, err := models.ParseVisibility(vis)
	if err != nil {
		return rec, fmt.Errorf("file %s: %w", rec.ID, err)
	}
	rec.Visibility = v
	return rec, nil
}

func scanOne(row *sql.Row) (*models.FileRecord, error) {
	rec, err := scan(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}
	return &rec, nil
}
