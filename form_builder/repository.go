package form_builder

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
)

var ErrFormNotFound = errors.New("form not found")

type SavedForm struct {
	ID        string         `json:"id"`
	Name      string         `json:"form_name"`
	Query     string         `json:"query,omitempty"`
	Source    string         `json:"source"`
	Form      map[string]any `json:"form,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Repository stores generated forms in a local SQLite database.
type Repository struct {
	db  *sql.DB
	now func() time.Time
}

func OpenRepository(path string) (*Repository, error) {
	p := filepath.Clean(strings.TrimSpace(path))
	if p == "" || p == "." {
		return nil, errors.New("missing form database path")
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", p)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(`
CREATE TABLE IF NOT EXISTS forms (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	query TEXT NOT NULL DEFAULT '',
	source TEXT NOT NULL,
	body TEXT NOT NULL,
	created_at_unix_ms INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS forms_created_at ON forms(created_at_unix_ms);
`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initializing form database: %w", err)
	}
	return &Repository{db: db, now: time.Now}, nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

// Save stores form under a new id. source is "query" or the uploaded file name.
func (r *Repository) Save(ctx context.Context, query, source string, form map[string]any) (SavedForm, error) {
	body, err := json.Marshal(form)
	if err != nil {
		return SavedForm{}, fmt.Errorf("encoding form: %w", err)
	}
	name, _ := form["form_name"].(string)
	saved := SavedForm{
		ID:        uuid.New().String(),
		Name:      name,
		Query:     query,
		Source:    source,
		Form:      form,
		CreatedAt: r.now().UTC().Truncate(time.Millisecond),
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO forms (id, name, query, source, body, created_at_unix_ms) VALUES (?, ?, ?, ?, ?, ?)`,
		saved.ID, saved.Name, saved.Query, saved.Source, string(body), saved.CreatedAt.UnixMilli())
	if err != nil {
		return SavedForm{}, fmt.Errorf("saving form: %w", err)
	}
	return saved, nil
}

func (r *Repository) Get(ctx context.Context, id string) (SavedForm, error) {
	var (
		f       SavedForm
		body    string
		created int64
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT id, name, query, source, body, created_at_unix_ms FROM forms WHERE id = ?`, id).
		Scan(&f.ID, &f.Name, &f.Query, &f.Source, &body, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return SavedForm{}, ErrFormNotFound
	}
	if err != nil {
		return SavedForm{}, err
	}
	if err := json.Unmarshal([]byte(body), &f.Form); err != nil {
		return SavedForm{}, fmt.Errorf("decoding form %s: %w", id, err)
	}
	f.CreatedAt = time.UnixMilli(created).UTC()
	return f, nil
}

// List returns form summaries, newest first, without their bodies.
func (r *Repository) List(ctx context.Context, limit int) ([]SavedForm, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := r.db.QueryContext(ctx,
		`SELECT id, name, query, source, created_at_unix_ms FROM forms ORDER BY created_at_unix_ms DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SavedForm
	for rows.Next() {
		var (
			f       SavedForm
			created int64
		)
		if err := rows.Scan(&f.ID, &f.Name, &f.Query, &f.Source, &created); err != nil {
			return nil, err
		}
		f.CreatedAt = time.UnixMilli(created).UTC()
		out = append(out, f)
	}
	return out, rows.Err()
}
