package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// Store is a hosted-style document database addressed by slash separated paths
// such as users/{id} or logbookEntries/{studentId}/{entryId}.
type Store interface {
	Close() error

	// Get returns nil and no error when nothing is stored at path.
	Get(ctx context.Context, path string) (Document, error)
	Set(ctx context.Context, path string, doc Document) error
	// Update applies all patches atomically. Missing documents are created.
	Update(ctx context.Context, patches ...Patch) error
	Remove(ctx context.Context, path string) error

	// List returns the immediate children of a collection keyed by id.
	List(ctx context.Context, parent string) (map[string]Document, error)
	// FindEqual returns children of parent whose string field equals value.
	FindEqual(ctx context.Context, parent, field, value string) (map[string]Document, error)

	NewKey() string
}

// BaseStore provides common functionality for the SQL implementations
type BaseStore struct {
	DB        *sqlx.DB
	Converter func(string) string
	// LockClause is appended to reads made inside Update, e.g. FOR UPDATE.
	LockClause string
}

type documentRow struct {
	Path   string `db:"path"`
	Parent string `db:"parent"`
	ID     string `db:"id"`
	Body   string `db:"body"`
}

func (s *BaseStore) Close() error {
	if s.DB != nil {
		return s.DB.Close()
	}
	return nil
}

// ApplyMigrations applies SQL migrations from a directory, translating dialect if needed
func (s *BaseStore) ApplyMigrations(dir string, translateSQL func(string) string) error {
	files, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read migrations directory: %w", err)
	}

	for _, file := range files {
		if !strings.HasSuffix(file.Name(), ".sql") {
			continue
		}

		content, err := os.ReadFile(fmt.Sprintf("%s/%s", dir, file.Name()))
		if err != nil {
			return fmt.Errorf("failed to read migration %s: %w", file.Name(), err)
		}

		sql := string(content)
		if translateSQL != nil {
			sql = translateSQL(sql)
		}

		if _, err := s.DB.Exec(sql); err != nil {
			return fmt.Errorf("failed to apply migration %s: %w", file.Name(), err)
		}
	}

	return nil
}

func (s *BaseStore) NewKey() string {
	return uuid.NewString()
}

func (s *BaseStore) Get(ctx context.Context, path string) (Document, error) {
	return s.get(ctx, s.DB, path, "")
}

func (s *BaseStore) get(ctx context.Context, q sqlx.QueryerContext, path, lock string) (Document, error) {
	var body string
	query := s.Converter(`SELECT body FROM documents WHERE path = ?` + lock)

	err := sqlx.GetContext(ctx, q, &body, query, path)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document %s: %w", path, err)
	}

	var doc Document
	if err := json.Unmarshal([]byte(body), &doc); err != nil {
		return nil, fmt.Errorf("corrupt document %s: %w", path, err)
	}
	return doc, nil
}

func (s *BaseStore) Set(ctx context.Context, path string, doc Document) error {
	if err := ValidatePath(path); err != nil {
		return err
	}
	return s.put(ctx, s.DB, path, doc)
}

func (s *BaseStore) put(ctx context.Context, e sqlx.ExecerContext, path string, doc Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document %s: %w", path, err)
	}

	parent, id := Split(path)
	_, err = e.ExecContext(ctx, s.Converter(`
		INSERT INTO documents (path, parent, id, body, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
		body = excluded.body,
		updated_at = excluded.updated_at
	`), path, parent, id, string(body), time.Now().UTC().Unix())
	if err != nil {
		return fmt.Errorf("failed to write document %s: %w", path, err)
	}
	return nil
}

func (s *BaseStore) Update(ctx context.Context, patches ...Patch) error {
	if len(patches) == 0 {
		return nil
	}
	for _, p := range patches {
		if err := ValidatePath(p.Path); err != nil {
			return err
		}
	}

	// stable lock order
	ordered := append([]Patch(nil), patches...)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Path < ordered[j].Path })

	tx, err := s.DB.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin update: %w", err)
	}
	defer tx.Rollback()

	for _, p := range ordered {
		if s.LockClause != "" {
			// a row must exist for FOR UPDATE to serialize writers creating the same document
			parent, id := Split(p.Path)
			_, err := tx.ExecContext(ctx, s.Converter(`
				INSERT INTO documents (path, parent, id, body, updated_at)
				VALUES (?, ?, ?, '{}', ?)
				ON CONFLICT(path) DO NOTHING
			`), p.Path, parent, id, time.Now().UTC().Unix())
			if err != nil {
				return fmt.Errorf("failed to reserve document %s: %w", p.Path, err)
			}
		}

		current, err := s.get(ctx, tx, p.Path, " "+s.LockClause)
		if err != nil {
			return err
		}
		next, err := p.Apply(current)
		if err != nil {
			return fmt.Errorf("failed to patch %s: %w", p.Path, err)
		}
		if err := s.put(ctx, tx, p.Path, next); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit update: %w", err)
	}
	return nil
}

func (s *BaseStore) Remove(ctx context.Context, path string) error {
	_, err := s.DB.ExecContext(ctx, s.Converter(`DELETE FROM documents WHERE path = ?`), path)
	if err != nil {
		return fmt.Errorf("failed to remove document %s: %w", path, err)
	}
	return nil
}

func (s *BaseStore) List(ctx context.Context, parent string) (map[string]Document, error) {
	var rows []documentRow
	query := s.Converter(`
		SELECT path, parent, id, body
		FROM documents
		WHERE parent = ?
		ORDER BY id
	`)

	if err := s.DB.SelectContext(ctx, &rows, query, parent); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", parent, err)
	}
	return decodeRows(rows)
}

// FindEqual relies on the ->> operator, which both postgres JSONB and sqlite >= 3.38
// provide. The field is written into the query as a literal, a bound parameter
// keeps postgres off the body->>'field' indexes.
func (s *BaseStore) FindEqual(ctx context.Context, parent, field, value string) (map[string]Document, error) {
	if err := ValidateField(field); err != nil {
		return nil, err
	}

	var rows []documentRow
	query := s.Converter(fmt.Sprintf(`
		SELECT path, parent, id, body
		FROM documents
		WHERE parent = ?
		AND body->>'%s' = ?
		ORDER BY id
	`, field))

	if err := s.DB.SelectContext(ctx, &rows, query, parent, value); err != nil {
		return nil, fmt.Errorf("failed to query %s by %s: %w", parent, field, err)
	}
	return decodeRows(rows)
}

func decodeRows(rows []documentRow) (map[string]Document, error) {
	out := make(map[string]Document, len(rows))
	for _, row := range rows {
		var doc Document
		if err := json.Unmarshal([]byte(row.Body), &doc); err != nil {
			return nil, fmt.Errorf("corrupt document %s: %w", row.Path, err)
		}
		out[row.ID] = doc
	}
	return out, nil
}
