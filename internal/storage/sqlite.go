package storage

import (
	"database/sql"
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// Store wraps a SQLite database holding the task queue and the answered
// question history. The task queue is the shared job store between the web
// tier (enqueue, poll) and the worker tier (claim, complete, fail).
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "askd.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	// Set busy timeout so concurrent access waits briefly instead of failing
	// immediately. Multiple worker processes share this database.
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB exposes the underlying connection for packages that need raw access
// (CLI reporting, tests).
func (s *Store) DB() *sql.DB {
	return s.db
}

// migrate reads embedded SQL migration files and applies any that haven't
// been run yet.
func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("beginning transaction for migration %d: %w", version, err)
		}

		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(filename string) (int, error) {
	var version int
	if _, err := fmt.Sscanf(filename, "%d_", &version); err != nil {
		return 0, fmt.Errorf("parsing migration version from %q: %w", filename, err)
	}
	return version, nil
}

// --- Tasks ---

const taskColumns = "id, question, identity, status, answer, error, attempts, lease_until, created_at, updated_at"

// EnqueueTask creates a pending task for the given question and identity.
// The store assigns the opaque task ID.
func (s *Store) EnqueueTask(question, identity string) (Task, error) {
	now := time.Now().UTC()
	t := Task{
		ID:        uuid.New().String(),
		Question:  question,
		Identity:  identity,
		Status:    StatusPending,
		CreatedAt: now,
		UpdatedAt: now,
	}
	_, err := s.db.Exec(`
		INSERT INTO tasks (id, question, identity, status, created_at, updated_at)
		VALUES (?, ?, ?, 'pending', ?, ?)`,
		t.ID, t.Question, t.Identity, formatTime(now), formatTime(now),
	)
	if err != nil {
		return Task{}, err
	}
	return t, nil
}

// ClaimNextTask atomically claims the oldest pending task: status becomes
// running, attempts is incremented, and a lease is taken until now+leaseTTL.
// Returns (nil, nil) when no task is claimable.
func (s *Store) ClaimNextTask(leaseTTL time.Duration) (*Task, error) {
	now := time.Now().UTC()

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("beginning claim transaction: %w", err)
	}

	var t Task
	var leaseUntil, createdAt, updatedAt string
	err = tx.QueryRow(`SELECT `+taskColumns+` FROM tasks
		WHERE status = 'pending'
		ORDER BY created_at ASC, rowid ASC
		LIMIT 1`).Scan(
		&t.ID, &t.Question, &t.Identity, &t.Status, &t.Answer, &t.Error,
		&t.Attempts, &leaseUntil, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		tx.Rollback()
		return nil, nil
	}
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("selecting next task: %w", err)
	}

	lease := now.Add(leaseTTL)
	res, err := tx.Exec(`UPDATE tasks
		SET status = 'running', attempts = attempts + 1, lease_until = ?, updated_at = ?
		WHERE id = ? AND status = 'pending'`,
		formatTime(lease), formatTime(now), t.ID,
	)
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("claiming task %s: %w", t.ID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		tx.Rollback()
		return nil, fmt.Errorf("checking claimed rows: %w", err)
	}
	if n != 1 {
		tx.Rollback()
		return nil, nil
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing claim: %w", err)
	}

	t.Status = StatusRunning
	t.Attempts++
	t.LeaseUntil = lease
	t.UpdatedAt = now
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at for task %s: %w", t.ID, err)
	}
	return &t, nil
}

// CompleteTask records a successful answer for a running task. This is the
// late acknowledgment: the task leaves the running state only once the
// result is durably stored.
func (s *Store) CompleteTask(id, answer string) error {
	return s.finishTask(id, StatusSuccess, answer, "")
}

// FailTask records a terminal failure with a descriptive error message.
func (s *Store) FailTask(id, errMsg string) error {
	return s.finishTask(id, StatusFailure, "", errMsg)
}

func (s *Store) finishTask(id, status, answer, errMsg string) error {
	now := formatTime(time.Now().UTC())
	res, err := s.db.Exec(`UPDATE tasks
		SET status = ?, answer = ?, error = ?, lease_until = '', updated_at = ?
		WHERE id = ? AND status = 'running'`,
		status, answer, errMsg, now, id,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		var current string
		err := s.db.QueryRow(`SELECT status FROM tasks WHERE id = ?`, id).Scan(&current)
		if err == sql.ErrNoRows {
			return ErrNotFound
		}
		if err != nil {
			return err
		}
		return fmt.Errorf("%w (status %q)", ErrNotRunning, current)
	}
	return nil
}

// GetTask returns the task with the given ID.
func (s *Store) GetTask(id string) (Task, error) {
	var t Task
	var leaseUntil, createdAt, updatedAt string
	err := s.db.QueryRow(`SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id).Scan(
		&t.ID, &t.Question, &t.Identity, &t.Status, &t.Answer, &t.Error,
		&t.Attempts, &leaseUntil, &createdAt, &updatedAt,
	)
	if err == sql.ErrNoRows {
		return Task{}, ErrNotFound
	}
	if err != nil {
		return Task{}, err
	}
	return t.withTimes(leaseUntil, createdAt, updatedAt)
}

// ReapExpiredLeases returns lost running tasks to the queue. A task whose
// lease expired is requeued as pending for redelivery; once it has used up
// maxAttempts claims it is failed terminally instead.
func (s *Store) ReapExpiredLeases(maxAttempts int) (requeued, failed int, err error) {
	now := formatTime(time.Now().UTC())

	tx, err := s.db.Begin()
	if err != nil {
		return 0, 0, fmt.Errorf("beginning reap transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.Exec(`UPDATE tasks
		SET status = 'failure', error = 'task lost: worker did not complete within lease', lease_until = '', updated_at = ?
		WHERE status = 'running' AND lease_until != '' AND lease_until <= ? AND attempts >= ?`,
		now, now, maxAttempts,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("failing lost tasks: %w", err)
	}
	nFailed, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	res, err = tx.Exec(`UPDATE tasks
		SET status = 'pending', lease_until = '', updated_at = ?
		WHERE status = 'running' AND lease_until != '' AND lease_until <= ?`,
		now, now,
	)
	if err != nil {
		return 0, 0, fmt.Errorf("requeueing lost tasks: %w", err)
	}
	nRequeued, err := res.RowsAffected()
	if err != nil {
		return 0, 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, 0, fmt.Errorf("committing reap: %w", err)
	}
	return int(nRequeued), int(nFailed), nil
}

// ListRecentTasks returns tasks ordered newest first.
func (s *Store) ListRecentTasks(limit int) ([]Task, error) {
	rows, err := s.db.Query(`SELECT `+taskColumns+` FROM tasks
		ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []Task
	for rows.Next() {
		var t Task
		var leaseUntil, createdAt, updatedAt string
		if err := rows.Scan(&t.ID, &t.Question, &t.Identity, &t.Status, &t.Answer, &t.Error,
			&t.Attempts, &leaseUntil, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		t, err = t.withTimes(leaseUntil, createdAt, updatedAt)
		if err != nil {
			return nil, err
		}
		results = append(results, t)
	}
	return results, rows.Err()
}

// CountTasksByStatus returns task counts keyed by status.
func (s *Store) CountTasksByStatus() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT status, COUNT(*) FROM tasks GROUP BY status`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// --- Questions ---

// SaveQuestion persists an answered question. Callers treat failures as
// non-fatal; answer delivery does not depend on this write.
func (s *Store) SaveQuestion(q QuestionRecord) error {
	createdAt := q.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now().UTC()
	}
	_, err := s.db.Exec(`
		INSERT INTO questions (id, question, answer, identity, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		q.ID, q.Question, q.Answer, q.Identity, formatTime(createdAt),
	)
	return err
}

// ListQuestions returns answered questions, newest first.
func (s *Store) ListQuestions(limit int) ([]QuestionRecord, error) {
	rows, err := s.db.Query(`
		SELECT id, question, answer, identity, created_at
		FROM questions ORDER BY created_at DESC, rowid DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []QuestionRecord
	for rows.Next() {
		var q QuestionRecord
		var createdAt string
		if err := rows.Scan(&q.ID, &q.Question, &q.Answer, &q.Identity, &createdAt); err != nil {
			return nil, err
		}
		if q.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		results = append(results, q)
	}
	return results, rows.Err()
}

// --- helpers ---

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}

func (t Task) withTimes(leaseUntil, createdAt, updatedAt string) (Task, error) {
	var err error
	if t.LeaseUntil, err = parseTime(leaseUntil); err != nil {
		return Task{}, fmt.Errorf("parsing lease_until: %w", err)
	}
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return Task{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return Task{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return t, nil
}
