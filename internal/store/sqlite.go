package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	appLog "taskflow/internal/log"
	"taskflow/internal/model"
)

const schema = `
CREATE TABLE IF NOT EXISTS tasks (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	title             TEXT    NOT NULL,
	description       TEXT    NOT NULL DEFAULT '',
	due_at            INTEGER NOT NULL,
	recurrence        TEXT    NOT NULL DEFAULT 'none',
	priority          TEXT    NOT NULL DEFAULT 'medium',
	progress          INTEGER NOT NULL DEFAULT 0,
	status            TEXT    NOT NULL DEFAULT 'pending',
	estimated_minutes INTEGER,
	checklist         TEXT    NOT NULL DEFAULT '[]',
	created_at        INTEGER NOT NULL,
	updated_at        INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_tasks_due_at ON tasks(due_at);
`

const taskColumns = `id, title, description, due_at, recurrence, priority, progress, status,
	estimated_minutes, checklist, created_at, updated_at`

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db  *sql.DB
	loc *time.Location
	now func() time.Time
}

// Option configures a SQLiteStore.
type Option func(*SQLiteStore)

// WithLocation sets the zone stored timestamps are returned in. Defaults to
// time.Local.
func WithLocation(loc *time.Location) Option {
	return func(s *SQLiteStore) {
		if loc != nil {
			s.loc = loc
		}
	}
}

// WithClock overrides the clock used for created/updated stamps.
func WithClock(now func() time.Time) Option {
	return func(s *SQLiteStore) {
		if now != nil {
			s.now = now
		}
	}
}

// NewSQLiteStore opens (creating if needed) the database at path. Use
// ":memory:" for a throwaway database.
func NewSQLiteStore(path string, opts ...Option) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.New("database path is empty")
	}
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
			return nil, fmt.Errorf("create database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	// One connection: SQLite serializes writers anyway and ":memory:"
	// databases are per-connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("configure database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	s := &SQLiteStore{db: db, loc: time.Local, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	appLog.Debug("task store opened", "path", path, "location", s.loc.String())
	return s, nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) ListTasks(ctx context.Context, rng *model.CalendarRange) ([]model.Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if rng != nil {
		query += ` WHERE (recurrence = 'none' AND due_at >= ? AND due_at < ?)
			OR (recurrence <> 'none' AND due_at < ?)`
		end := rng.End.UnixNano()
		args = append(args, rng.Start.UnixNano(), end, end)
	}
	query += ` ORDER BY due_at, id`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	tasks := make([]model.Task, 0)
	for rows.Next() {
		t, err := s.scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	return tasks, nil
}

func (s *SQLiteStore) GetTask(ctx context.Context, id int64) (model.Task, error) {
	return s.getTask(ctx, s.db, id)
}

func (s *SQLiteStore) CreateTask(ctx context.Context, t model.Task) (model.Task, error) {
	now := s.now()
	t.CreatedAt = now
	t.UpdatedAt = now
	t.Checklist = withItemIDs(t.Checklist)

	checklist, err := json.Marshal(t.Checklist)
	if err != nil {
		return model.Task{}, fmt.Errorf("encode checklist: %w", err)
	}

	res, err := s.db.ExecContext(ctx, `
		INSERT INTO tasks (title, description, due_at, recurrence, priority, progress, status,
			estimated_minutes, checklist, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		t.Title, t.Description, t.DueDate.UnixNano(), t.Recurrence.String(), string(t.Priority),
		t.Progress, string(t.Status), nullInt(t.EstimatedMinutes), string(checklist),
		now.UnixNano(), now.UnixNano())
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task %q: %w", t.Title, err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return model.Task{}, fmt.Errorf("insert task %q: %w", t.Title, err)
	}

	appLog.Info("task created", "id", id, "recurrence", t.Recurrence.String())
	return s.GetTask(ctx, id)
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, id int64, p Patch) (model.Task, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Task{}, fmt.Errorf("begin update: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t, err := s.getTask(ctx, tx, id)
	if err != nil {
		return model.Task{}, err
	}
	p.Apply(&t)
	t.Checklist = withItemIDs(t.Checklist)
	t.UpdatedAt = s.now()

	checklist, err := json.Marshal(t.Checklist)
	if err != nil {
		return model.Task{}, fmt.Errorf("encode checklist: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE tasks SET title = ?, description = ?, due_at = ?, recurrence = ?, priority = ?,
			progress = ?, status = ?, estimated_minutes = ?, checklist = ?, updated_at = ?
		WHERE id = ?`,
		t.Title, t.Description, t.DueDate.UnixNano(), t.Recurrence.String(), string(t.Priority),
		t.Progress, string(t.Status), nullInt(t.EstimatedMinutes), string(checklist),
		t.UpdatedAt.UnixNano(), id)
	if err != nil {
		return model.Task{}, fmt.Errorf("update task %d: %w", id, err)
	}
	if err := tx.Commit(); err != nil {
		return model.Task{}, fmt.Errorf("commit update %d: %w", id, err)
	}

	appLog.Info("task updated", "id", id)
	return s.GetTask(ctx, id)
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, id int64) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete task %d: %w", id, err)
	}
	if n == 0 {
		return fmt.Errorf("delete task %d: %w", id, ErrNotFound)
	}
	appLog.Info("task deleted", "id", id)
	return nil
}

type queryer interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func (s *SQLiteStore) getTask(ctx context.Context, q queryer, id int64) (model.Task, error) {
	row := q.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id)
	t, err := s.scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Task{}, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	return t, err
}

func (s *SQLiteStore) scanTask(row scanner) (model.Task, error) {
	var (
		t                           model.Task
		dueAt, createdAt, updatedAt int64
		recurrence, checklist       string
		priority, status            string
		estimate                    sql.NullInt64
	)
	err := row.Scan(&t.ID, &t.Title, &t.Description, &dueAt, &recurrence, &priority,
		&t.Progress, &status, &estimate, &checklist, &createdAt, &updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Task{}, err
		}
		return model.Task{}, fmt.Errorf("scan task: %w", err)
	}

	if t.Recurrence, err = model.ParseRecurrence(recurrence); err != nil {
		return model.Task{}, fmt.Errorf("task %d: %w", t.ID, err)
	}
	t.Priority = model.Priority(priority)
	t.Status = model.Status(status)
	t.DueDate = time.Unix(0, dueAt).In(s.loc)
	t.CreatedAt = time.Unix(0, createdAt).In(s.loc)
	t.UpdatedAt = time.Unix(0, updatedAt).In(s.loc)
	if estimate.Valid {
		v := int(estimate.Int64)
		t.EstimatedMinutes = &v
	}
	if err := json.NewDecoder(strings.NewReader(checklist)).Decode(&t.Checklist); err != nil {
		return model.Task{}, fmt.Errorf("task %d: decode checklist: %w", t.ID, err)
	}
	if t.Checklist == nil {
		t.Checklist = []model.ChecklistItem{}
	}
	return t, nil
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

// withItemIDs returns items with an id assigned to every entry lacking one.
func withItemIDs(items []model.ChecklistItem) []model.ChecklistItem {
	out := make([]model.ChecklistItem, len(items))
	for i, it := range items {
		if it.ID == "" {
			it.ID = uuid.NewString()
		}
		out[i] = it
	}
	return out
}
