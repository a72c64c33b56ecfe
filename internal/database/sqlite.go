package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/leca/cardvault/internal/model"
	_ "modernc.org/sqlite"
)

// Compile-time check that SQLiteDB implements Database.
var _ Database = (*SQLiteDB)(nil)

// timeLayout is fixed width so created/updated sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLiteDB implements Database backed by SQLite.
type SQLiteDB struct {
	db *sql.DB

	// MaxDocumentBytes rejects larger bodies with ErrTooLarge. Zero disables the check.
	MaxDocumentBytes int
}

// NewSQLiteDB opens (or creates) an SQLite database at dsn and runs migrations.
// For in-memory use pass "file::memory:?cache=shared".
func NewSQLiteDB(dsn string) (*SQLiteDB, error) {
	if !strings.Contains(dsn, "?") {
		dsn += "?_journal_mode=WAL&_busy_timeout=5000"
	} else if !strings.Contains(dsn, "_journal_mode") {
		dsn += "&_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	return &SQLiteDB{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteDB) Close() error {
	return s.db.Close()
}

// List returns every document in creation order.
func (s *SQLiteDB) List(ctx context.Context) ([]model.Document, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id, body FROM documents ORDER BY created ASC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	var docs []model.Document
	for rows.Next() {
		var id, body string
		if err := rows.Scan(&id, &body); err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		docs = append(docs, model.Document{ID: id, Body: json.RawMessage(body)})
	}
	return docs, rows.Err()
}

// Create stores body under a new random id.
func (s *SQLiteDB) Create(ctx context.Context, body json.RawMessage) (string, error) {
	if err := s.check(body); err != nil {
		return "", err
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(timeLayout)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO documents (id, kind, body, created, updated)
		VALUES (?, ?, ?, ?, ?)`,
		id, model.Document{Body: body}.Kind(), string(body), now, now,
	)
	if err != nil {
		return "", fmt.Errorf("insert document: %w", err)
	}
	return id, nil
}

// Replace overwrites the body of an existing document.
func (s *SQLiteDB) Replace(ctx context.Context, id string, body json.RawMessage) error {
	if err := s.check(body); err != nil {
		return err
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE documents SET kind = ?, body = ?, updated = ?
		WHERE id = ?`,
		model.Document{Body: body}.Kind(), string(body), time.Now().UTC().Format(timeLayout), id,
	)
	if err != nil {
		return fmt.Errorf("update document: %w", err)
	}
	return checkRowsAffected(res)
}

// Delete removes a document.
func (s *SQLiteDB) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	return checkRowsAffected(res)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (s *SQLiteDB) check(body json.RawMessage) error {
	if !validBody(body) {
		return ErrInvalidDocument
	}
	if s.MaxDocumentBytes > 0 && len(body) > s.MaxDocumentBytes {
		return fmt.Errorf("%w: %d bytes > %d", ErrTooLarge, len(body), s.MaxDocumentBytes)
	}
	return nil
}

func checkRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
