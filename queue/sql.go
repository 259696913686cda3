package queue

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	// Registers the "mysql" driver used by callers opening the pool.
	_ "github.com/go-sql-driver/mysql"

	"github.com/stashpipe/stashpipe/core"
)

const (
	rowActive    = "active"
	rowCompleted = "completed"
	rowFailed    = "failed"
)

// SQL is a MySQL backed core.Queue. Messages live in a single table scoped by
// queue name; the lease is a locked_until column checked inside a
// SELECT ... FOR UPDATE transaction, so concurrent poppers on separate
// connections cannot double-lease a row.
//
// Expected schema:
//
//	CREATE TABLE queue_items (
//	    id           VARCHAR(36)  PRIMARY KEY,
//	    queue        VARCHAR(64)  NOT NULL,
//	    payload      JSON         NOT NULL,
//	    row_status   VARCHAR(16)  NOT NULL DEFAULT 'active',
//	    attempts     INT          NOT NULL DEFAULT 0,
//	    locked_until DATETIME(6)  NULL,
//	    reason       TEXT         NULL,
//	    created_at   DATETIME(6)  NOT NULL,
//	    updated_at   DATETIME(6)  NOT NULL,
//	    KEY idx_queue_visible (queue, row_status, locked_until, created_at)
//	);
//
// The connection must be opened with parseTime=true so the DATETIME columns
// scan into time.Time.
type SQL struct {
	db    *sql.DB
	name  string
	table string
}

// NewSQL constructs a queue over an existing connection pool. The name scopes
// this queue's rows within the shared table.
func NewSQL(db *sql.DB, name string) *SQL {
	return &SQL{db: db, name: name, table: "queue_items"}
}

// Enqueue inserts a pending message row.
func (q *SQL) Enqueue(ctx context.Context, msg core.Message) (string, error) {
	msg.Status = core.ItemPending
	payload, err := msg.Encode()
	if err != nil {
		return "", err
	}
	id := core.NewID()
	now := time.Now().UTC()
	query, args, err := sq.Insert(q.table).
		Columns("id", "queue", "payload", "row_status", "attempts", "created_at", "updated_at").
		Values(id, q.name, payload, rowActive, 0, now, now).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("build enqueue query: %w", err)
	}
	if _, err := q.db.ExecContext(ctx, query, args...); err != nil {
		return "", fmt.Errorf("%w: enqueue: %v", core.ErrQueueUnavailable, err)
	}
	return id, nil
}

// PopNext leases the oldest visible row inside a transaction. The row lock
// taken by FOR UPDATE serializes concurrent poppers; the lease itself
// (locked_until) serializes across pop transactions.
func (q *SQL) PopNext(ctx context.Context, visibility time.Duration) (*core.QueueItem, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: begin pop tx: %v", core.ErrQueueUnavailable, err)
	}
	defer func() { _ = tx.Rollback() }()

	now := time.Now().UTC()
	query, args, err := sq.Select("id", "payload", "attempts").
		From(q.table).
		Where(sq.Eq{"queue": q.name, "row_status": rowActive}).
		Where(sq.Or{sq.Eq{"locked_until": nil}, sq.Lt{"locked_until": now}}).
		OrderBy("created_at").
		Limit(1).
		Suffix("FOR UPDATE").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build pop query: %w", err)
	}

	var (
		id       string
		payload  []byte
		attempts int
	)
	err = tx.QueryRowContext(ctx, query, args...).Scan(&id, &payload, &attempts)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: pop select: %v", core.ErrQueueUnavailable, err)
	}

	leasedUntil := now.Add(visibility)
	update, uargs, err := sq.Update(q.table).
		Set("locked_until", leasedUntil).
		Set("attempts", attempts+1).
		Set("updated_at", now).
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build lease query: %w", err)
	}
	if _, err := tx.ExecContext(ctx, update, uargs...); err != nil {
		return nil, fmt.Errorf("%w: lease: %v", core.ErrQueueUnavailable, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("%w: commit lease: %v", core.ErrQueueUnavailable, err)
	}

	msg, err := core.DecodeMessage(payload)
	if err != nil {
		return nil, err
	}
	msg.Status = core.ItemProcessing
	msg.Attempts = attempts + 1
	return &core.QueueItem{
		ID:          id,
		Message:     msg,
		Attempts:    attempts + 1,
		LeasedUntil: leasedUntil,
	}, nil
}

// Archive marks the row completed. The row stays in the table as history.
func (q *SQL) Archive(ctx context.Context, id string) error {
	return q.finish(ctx, id, rowCompleted, "")
}

// Drop marks the row failed with a reason. No retry follows.
func (q *SQL) Drop(ctx context.Context, id, reason string) error {
	return q.finish(ctx, id, rowFailed, reason)
}

func (q *SQL) finish(ctx context.Context, id, status, reason string) error {
	now := time.Now().UTC()
	builder := sq.Update(q.table).
		Set("row_status", status).
		Set("locked_until", nil).
		Set("updated_at", now).
		Where(sq.Eq{"id": id, "queue": q.name, "row_status": rowActive})
	if reason != "" {
		builder = builder.Set("reason", reason)
	}
	query, args, err := builder.ToSql()
	if err != nil {
		return fmt.Errorf("build finish query: %w", err)
	}
	res, err := q.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%w: finish: %v", core.ErrQueueUnavailable, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return core.ErrNotFound
	}
	return nil
}

// PeekAll lists active rows without touching leases.
func (q *SQL) PeekAll(ctx context.Context) ([]core.QueueItem, error) {
	return q.list(ctx, rowActive)
}

// History lists completed and failed rows, oldest first.
func (q *SQL) History(ctx context.Context) ([]core.QueueItem, error) {
	completed, err := q.list(ctx, rowCompleted)
	if err != nil {
		return nil, err
	}
	failed, err := q.list(ctx, rowFailed)
	if err != nil {
		return nil, err
	}
	return append(completed, failed...), nil
}

func (q *SQL) list(ctx context.Context, status string) ([]core.QueueItem, error) {
	query, args, err := sq.Select("id", "payload", "attempts", "locked_until", "reason").
		From(q.table).
		Where(sq.Eq{"queue": q.name, "row_status": status}).
		OrderBy("created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build list query: %w", err)
	}
	rows, err := q.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("%w: list: %v", core.ErrQueueUnavailable, err)
	}
	defer rows.Close()

	var out []core.QueueItem
	for rows.Next() {
		var (
			id          string
			payload     []byte
			attempts    int
			lockedUntil sql.NullTime
			reason      sql.NullString
		)
		if err := rows.Scan(&id, &payload, &attempts, &lockedUntil, &reason); err != nil {
			return nil, fmt.Errorf("scan queue row: %w", err)
		}
		msg, err := core.DecodeMessage(payload)
		if err != nil {
			return nil, err
		}
		msg.Attempts = attempts
		switch status {
		case rowCompleted:
			msg.Status = core.ItemCompleted
		case rowFailed:
			msg.Status = core.ItemFailed
			if reason.Valid {
				msg.Error = reason.String
			}
		}
		item := core.QueueItem{ID: id, Message: msg, Attempts: attempts}
		if lockedUntil.Valid {
			item.LeasedUntil = lockedUntil.Time
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
