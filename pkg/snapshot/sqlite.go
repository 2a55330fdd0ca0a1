package snapshot

import (
	"context"
	"database/sql"
	stderrors "errors"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/lithe-dev/lithe/internal/errors"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS snapshots (
	name       TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	rev        INTEGER NOT NULL,
	updated_at TIMESTAMP NOT NULL
);`

// SQLite is a snapshot backend over a single SQLite file. The driver
// is pure Go (modernc.org/sqlite), so the backend works without cgo.
type SQLite struct {
	db *sqlx.DB
}

type snapshotRow struct {
	Name      string    `db:"name"`
	Data      []byte    `db:"data"`
	Rev       uint64    `db:"rev"`
	UpdatedAt time.Time `db:"updated_at"`
}

// NewSQLite opens (or creates) the database at path and ensures the
// schema exists. Use ":memory:" for an ephemeral database.
func NewSQLite(path string) (*SQLite, error) {
	db, err := sqlx.Connect("sqlite", path)
	if err != nil {
		return nil, errors.New("E201").WithDetail("open sqlite %q: %v", path, err).Wrap(err)
	}
	// SQLite handles one writer at a time.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(sqliteSchema); err != nil {
		db.Close()
		return nil, errors.New("E201").WithDetail("create snapshot schema: %v", err).Wrap(err)
	}
	return &SQLite{db: db}, nil
}

// Save implements Store.
func (s *SQLite) Save(ctx context.Context, name string, data []byte, rev uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO snapshots (name, data, rev, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			data = excluded.data,
			rev = excluded.rev,
			updated_at = excluded.updated_at`,
		name, data, rev, time.Now().UTC())
	if err != nil {
		return errors.New("E201").WithDetail("save %q: %v", name, err).Wrap(err)
	}
	return nil
}

// Load implements Store.
func (s *SQLite) Load(ctx context.Context, name string) ([]byte, uint64, error) {
	var row snapshotRow
	err := s.db.GetContext(ctx, &row,
		`SELECT name, data, rev, updated_at FROM snapshots WHERE name = ?`, name)
	if stderrors.Is(err, sql.ErrNoRows) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, errors.New("E201").WithDetail("load %q: %v", name, err).Wrap(err)
	}
	return row.Data, row.Rev, nil
}

// LoadAll implements Store.
func (s *SQLite) LoadAll(ctx context.Context) (map[string]Record, error) {
	var rows []snapshotRow
	if err := s.db.SelectContext(ctx, &rows,
		`SELECT name, data, rev, updated_at FROM snapshots`); err != nil {
		return nil, errors.New("E201").WithDetail("load all: %v", err).Wrap(err)
	}

	out := make(map[string]Record, len(rows))
	for _, row := range rows {
		out[row.Name] = Record{Data: row.Data, Rev: row.Rev}
	}
	return out, nil
}

// Delete implements Store.
func (s *SQLite) Delete(ctx context.Context, name string) error {
	if _, err := s.db.ExecContext(ctx,
		`DELETE FROM snapshots WHERE name = ?`, name); err != nil {
		return errors.New("E201").WithDetail("delete %q: %v", name, err).Wrap(err)
	}
	return nil
}

// Close implements Store.
func (s *SQLite) Close() error {
	return s.db.Close()
}
