// Package store persists extracted documents.
//
// Two backends are provided: a single JSON file for local use and PostgreSQL
// for shared deployments. Both return ocr.ErrDocumentNotFound for unknown ids.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/MangalKhundongbam/exe-semge/pkg/models"
)

// Store is the document persistence boundary.
type Store interface {
	// Save inserts or replaces a document.
	Save(ctx context.Context, doc *models.Document) error

	// Get returns a stored document by id.
	Get(ctx context.Context, id string) (*models.Document, error)

	// List returns summaries of all documents, newest first.
	List(ctx context.Context) ([]models.Summary, error)

	// Search returns documents with at least one page whose text contains
	// query, case-insensitively. Only the matching pages are included.
	Search(ctx context.Context, query string) ([]models.Match, error)

	// Delete removes a document by id.
	Delete(ctx context.Context, id string) error

	Close() error
}

// Config selects and configures a backend.
type Config struct {
	// Backend is "file" (default) or "postgres".
	Backend string

	// Path is the JSON file used by the file backend.
	Path string

	// DatabaseURL is the PostgreSQL connection string.
	DatabaseURL string
}

// Open constructs the configured backend.
func Open(ctx context.Context, cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Backend) {
	case "", "file":
		return NewFileStore(cfg.Path)
	case "postgres", "postgresql":
		s, err := NewPostgresStore(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := s.Migrate(ctx); err != nil {
			s.Close()
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Backend)
	}
}

func validateDocument(doc *models.Document) error {
	if doc == nil {
		return fmt.Errorf("document is nil")
	}
	if doc.ID == "" {
		return fmt.Errorf("document ID is required")
	}
	if doc.PageCount != len(doc.Pages) {
		return fmt.Errorf("document %s: page count %d does not match %d pages", doc.ID, doc.PageCount, len(doc.Pages))
	}
	return nil
}

// matchPages returns the pages whose text contains query, case-insensitively.
func matchPages(pages []models.Page, query string) []models.Page {
	q := strings.ToLower(query)
	var out []models.Page
	for _, p := range pages {
		if strings.Contains(strings.ToLower(p.Text), q) {
			out = append(out, p)
		}
	}
	return out
}

func sortSummaries(docs []*models.Document) []models.Summary {
	sort.SliceStable(docs, func(i, j int) bool {
		if !docs[i].CreatedAt.Equal(docs[j].CreatedAt) {
			return docs[i].CreatedAt.After(docs[j].CreatedAt)
		}
		return docs[i].ID < docs[j].ID
	})
	out := make([]models.Summary, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.Summary())
	}
	return out
}
