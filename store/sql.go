package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	_ "github.com/go-sql-driver/mysql"

	"github.com/stashpipe/stashpipe/core"
)

// SQL is a MySQL backed core.EntryStore. The metadata document is stored as a
// JSON column and merged in Go inside a SELECT ... FOR UPDATE transaction so
// the version check and the merge are atomic.
//
// Expected schema:
//
//	CREATE TABLE entries (
//	    id         VARCHAR(36)  PRIMARY KEY,
//	    type       VARCHAR(16)  NOT NULL,
//	    url        TEXT         NULL,
//	    user_id    VARCHAR(64)  NULL,
//	    state      VARCHAR(16)  NOT NULL,
//	    progress   INT          NOT NULL DEFAULT 0,
//	    metadata   JSON         NOT NULL,
//	    version    BIGINT       NOT NULL DEFAULT 1,
//	    created_at DATETIME(6)  NOT NULL,
//	    updated_at DATETIME(6)  NOT NULL
//	);
//
// The connection must be opened with parseTime=true so the DATETIME columns
// scan into time.Time.
type SQL struct {
	db    *sql.DB
	table string
}

// NewSQL constructs an entry store over an existing connection pool.
func NewSQL(db *sql.DB) *SQL {
	return &SQL{db: db, table: "entries"}
}

// Get loads one entry or returns core.ErrNotFound.
func (s *SQL) Get(ctx context.Context, id string) (*core.Entry, error) {
	query, args, err := s.selectCols().Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get query: %w", err)
	}
	return s.scanOne(s.db.QueryRowContext(ctx, query, args...))
}

// Create inserts a new entry row.
func (s *SQL) Create(ctx context.Context, entry *core.Entry) error {
	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return fmt.Errorf("marshal metadata: %w", err)
	}
	query, args, err := sq.Insert(s.table).
		Columns("id", "type", "url", "user_id", "state", "progress", "metadata", "version", "created_at", "updated_at").
		Values(entry.ID, entry.Type, entry.URL, entry.UserID, entry.State, entry.Progress, meta, entry.Version, entry.Created, entry.Updated).
		ToSql()
	if err != nil {
		return fmt.Errorf("build create query: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("create entry %s: %w", entry.ID, err)
	}
	return nil
}

// Update applies the patch under the optimistic version check. The current
// row is locked, the metadata merge happens in Go, and the write carries
// version+1. A stale version aborts with core.ErrStaleEntry.
func (s *SQL) Update(ctx context.Context, id string, patch core.EntryPatch, version int64) (*core.Entry, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin update tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query, args, err := s.selectCols().Where(sq.Eq{"id": id}).Suffix("FOR UPDATE").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update select: %w", err)
	}
	entry, err := s.scanOne(tx.QueryRowContext(ctx, query, args...))
	if err != nil {
		return nil, err
	}
	if entry.Version != version {
		return nil, core.ErrStaleEntry
	}

	applyPatch(entry, patch)
	entry.Version++
	entry.Updated = time.Now().UTC()

	meta, err := json.Marshal(entry.Metadata)
	if err != nil {
		return nil, fmt.Errorf("marshal metadata: %w", err)
	}
	update, uargs, err := sq.Update(s.table).
		Set("url", entry.URL).
		Set("state", entry.State).
		Set("progress", entry.Progress).
		Set("metadata", meta).
		Set("version", entry.Version).
		Set("updated_at", entry.Updated).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build update query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, update, uargs...); err != nil {
		return nil, fmt.Errorf("update entry %s: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit update: %w", err)
	}
	return entry, nil
}

// Delete removes the entry row.
func (s *SQL) Delete(ctx context.Context, id string) error {
	query, args, err := sq.Delete(s.table).Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return fmt.Errorf("build delete query: %w", err)
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("delete entry %s: %w", id, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

func (s *SQL) selectCols() sq.SelectBuilder {
	return sq.Select("id", "type", "url", "user_id", "state", "progress", "metadata", "version", "created_at", "updated_at").
		From(s.table)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *SQL) scanOne(row rowScanner) (*core.Entry, error) {
	var (
		e    core.Entry
		url  sql.NullString
		user sql.NullString
		meta []byte
	)
	err := row.Scan(&e.ID, &e.Type, &url, &user, &e.State, &e.Progress, &meta, &e.Version, &e.Created, &e.Updated)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, core.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan entry: %w", err)
	}
	e.URL = url.String
	e.UserID = user.String
	if err := json.Unmarshal(meta, &e.Metadata); err != nil {
		return nil, fmt.Errorf("unmarshal metadata: %w", err)
	}
	if e.Metadata == nil {
		e.Metadata = core.Metadata{}
	}
	return &e, nil
}
