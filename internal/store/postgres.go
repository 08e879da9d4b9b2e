package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
	"github.com/MangalKhundongbam/exe-semge/pkg/models"
)

const schema = `
CREATE TABLE IF NOT EXISTS documents (
	id          TEXT PRIMARY KEY,
	source_file TEXT NOT NULL,
	language    TEXT NOT NULL,
	page_count  INTEGER NOT NULL,
	created_at  TIMESTAMPTZ NOT NULL,
	updated_at  TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS document_pages (
	document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
	page_number INTEGER NOT NULL,
	text        TEXT NOT NULL,
	status      TEXT NOT NULL,
	PRIMARY KEY (document_id, page_number)
);
`

// PostgresStore keeps documents in PostgreSQL, one row per page.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore connects to databaseURL and verifies the connection.
func NewPostgresStore(ctx context.Context, databaseURL string) (*PostgresStore, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Migrate creates the tables if they do not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

// Save upserts the document row and replaces its pages in one transaction.
func (s *PostgresStore) Save(ctx context.Context, doc *models.Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO documents (id, source_file, language, page_count, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (id) DO UPDATE SET
			source_file = EXCLUDED.source_file,
			language = EXCLUDED.language,
			page_count = EXCLUDED.page_count,
			updated_at = EXCLUDED.updated_at`,
		doc.ID, doc.SourceFile, doc.Language, doc.PageCount, doc.CreatedAt, doc.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to upsert document %s: %w", doc.ID, err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM document_pages WHERE document_id = $1`, doc.ID); err != nil {
		return fmt.Errorf("failed to clear pages of %s: %w", doc.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, pq.CopyIn("document_pages", "document_id", "page_number", "text", "status"))
	if err != nil {
		return fmt.Errorf("failed to prepare page copy: %w", err)
	}
	for _, p := range doc.Pages {
		if _, err := stmt.ExecContext(ctx, doc.ID, p.Number, p.Text, string(p.Status)); err != nil {
			stmt.Close()
			return fmt.Errorf("failed to copy page %d: %w", p.Number, err)
		}
	}
	if _, err := stmt.ExecContext(ctx); err != nil {
		stmt.Close()
		return fmt.Errorf("failed to flush page copy: %w", err)
	}
	if err := stmt.Close(); err != nil {
		return fmt.Errorf("failed to close page copy: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit document %s: %w", doc.ID, err)
	}
	return nil
}

func (s *PostgresStore) Get(ctx context.Context, id string) (*models.Document, error) {
	doc := &models.Document{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, source_file, language, page_count, created_at, updated_at
		FROM documents WHERE id = $1`, id).
		Scan(&doc.ID, &doc.SourceFile, &doc.Language, &doc.PageCount, &doc.CreatedAt, &doc.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ocr.NewOCRError("Get", ocr.ErrDocumentNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load document %s: %w", id, err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT page_number, text, status FROM document_pages
		WHERE document_id = $1 ORDER BY page_number`, id)
	if err != nil {
		return nil, fmt.Errorf("failed to load pages of %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var p models.Page
		var status string
		if err := rows.Scan(&p.Number, &p.Text, &status); err != nil {
			return nil, fmt.Errorf("failed to scan page: %w", err)
		}
		p.Status = models.PageStatus(status)
		doc.Pages = append(doc.Pages, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to read pages of %s: %w", id, err)
	}
	return doc, nil
}

func (s *PostgresStore) List(ctx context.Context) ([]models.Summary, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, source_file, page_count FROM documents
		ORDER BY created_at DESC, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	var out []models.Summary
	for rows.Next() {
		var sm models.Summary
		if err := rows.Scan(&sm.ID, &sm.SourceFile, &sm.PageCount); err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

func (s *PostgresStore) Search(ctx context.Context, query string) ([]models.Match, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.source_file, d.page_count, p.page_number, p.text, p.status
		FROM document_pages p JOIN documents d ON d.id = p.document_id
		WHERE p.text ILIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY d.created_at DESC, d.id, p.page_number`, escapeLike(query))
	if err != nil {
		return nil, fmt.Errorf("failed to search pages: %w", err)
	}
	defer rows.Close()

	var out []models.Match
	for rows.Next() {
		var sm models.Summary
		var p models.Page
		var status string
		if err := rows.Scan(&sm.ID, &sm.SourceFile, &sm.PageCount, &p.Number, &p.Text, &status); err != nil {
			return nil, fmt.Errorf("failed to scan match: %w", err)
		}
		p.Status = models.PageStatus(status)

		if n := len(out); n > 0 && out[n-1].ID == sm.ID {
			out[n-1].Pages = append(out[n-1].Pages, p)
			continue
		}
		out = append(out, models.Match{Summary: sm, Pages: []models.Page{p}})
	}
	return out, rows.Err()
}

func (s *PostgresStore) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to delete document %s: %w", id, err)
	}
	if n == 0 {
		return ocr.NewOCRError("Delete", ocr.ErrDocumentNotFound, id)
	}
	return nil
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}

// escapeLike escapes LIKE wildcards so the query matches literally.
func escapeLike(q string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(q)
}
