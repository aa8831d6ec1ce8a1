// Package history persists past interactions in sqlite and turns the most
// recent ones into a context block for new queries.
package history

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// DefaultWindow is how many past exchanges feed the context block.
const DefaultWindow = 5

const maxContextReply = 600

const schema = `
CREATE TABLE IF NOT EXISTS interactions (
	id            TEXT PRIMARY KEY,
	query_id      TEXT NOT NULL,
	query         TEXT NOT NULL,
	response      TEXT NOT NULL,
	backend_id    TEXT NOT NULL,
	intent        TEXT NOT NULL DEFAULT '',
	source        TEXT NOT NULL DEFAULT '',
	success       INTEGER NOT NULL,
	error_kind    TEXT NOT NULL DEFAULT '',
	attempts      INTEGER NOT NULL DEFAULT 0,
	fallback_used INTEGER NOT NULL DEFAULT 0,
	created_at    TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_interactions_created ON interactions(created_at);
`

// Interaction is one answered query.
type Interaction struct {
	ID           string    `json:"id"`
	QueryID      string    `json:"query_id"`
	Query        string    `json:"query"`
	Response     string    `json:"response"`
	BackendID    string    `json:"backend_id"`
	Intent       string    `json:"intent,omitempty"`
	Source       string    `json:"source,omitempty"`
	Success      bool      `json:"success"`
	ErrorKind    string    `json:"error_kind,omitempty"`
	Attempts     int       `json:"attempts"`
	FallbackUsed bool      `json:"fallback_used"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store is a sqlite-backed interaction log. It is safe for concurrent use.
type Store struct {
	db     *sql.DB
	path   string
	window int
	now    func() time.Time
}

// Open opens or creates the database at path.
func Open(path string, window int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history dir: %w", err)
	}

	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping history db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate history db: %w", err)
	}

	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{db: db, path: path, window: window, now: time.Now}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// Record appends an interaction, assigning an id and timestamp when unset.
func (s *Store) Record(ctx context.Context, in Interaction) error {
	if in.ID == "" {
		in.ID = uuid.NewString()
	}
	if in.CreatedAt.IsZero() {
		in.CreatedAt = s.now()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO interactions
		 (id, query_id, query, response, backend_id, intent, source, success, error_kind, attempts, fallback_used, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		in.ID, in.QueryID, in.Query, in.Response, in.BackendID, in.Intent, in.Source,
		boolInt(in.Success), in.ErrorKind, in.Attempts, boolInt(in.FallbackUsed),
		in.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("record interaction: %w", err)
	}
	return nil
}

const selectColumns = `SELECT id, query_id, query, response, backend_id, intent, source, success, error_kind, attempts, fallback_used, created_at
	FROM interactions`

// Recent returns up to n interactions, oldest first.
func (s *Store) Recent(ctx context.Context, n int) ([]Interaction, error) {
	if n <= 0 {
		n = s.window
	}
	return s.latest(ctx, selectColumns+` ORDER BY rowid DESC LIMIT ?`, n)
}

// Context formats the last successful non-command exchanges as a context
// block. The window counts only those exchanges, so a run of commands does
// not push real conversation out of it. The query is ignored.
func (s *Store) Context(ctx context.Context, _ string) (string, error) {
	turns, err := s.latest(ctx,
		selectColumns+` WHERE success = 1 AND intent <> 'command' ORDER BY rowid DESC LIMIT ?`, s.window)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	for _, in := range turns {
		fmt.Fprintf(&sb, "User: %s\nAssistant: %s\n", in.Query, clip(in.Response, maxContextReply))
	}
	return strings.TrimSpace(sb.String()), nil
}

// latest runs a newest-first query and returns its rows oldest first.
func (s *Store) latest(ctx context.Context, query string, args ...any) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query interactions: %w", err)
	}
	defer rows.Close()

	var out []Interaction
	for rows.Next() {
		var (
			in                Interaction
			success, fallback int
			created           string
		)
		if err := rows.Scan(&in.ID, &in.QueryID, &in.Query, &in.Response, &in.BackendID, &in.Intent,
			&in.Source, &success, &in.ErrorKind, &in.Attempts, &fallback, &created); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Success = success != 0
		in.FallbackUsed = fallback != 0
		in.CreatedAt, _ = time.Parse(time.RFC3339Nano, created)
		out = append(out, in)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	slices.Reverse(out)
	return out, nil
}

// Count returns the number of stored interactions.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM interactions`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count interactions: %w", err)
	}
	return n, nil
}

// Clear deletes every interaction and reports how many were removed.
func (s *Store) Clear(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM interactions`)
	if err != nil {
		return 0, fmt.Errorf("clear interactions: %w", err)
	}
	return res.RowsAffected()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func clip(s string, n int) string {
	s = strings.TrimSpace(s)
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
