package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
	"github.com/MangalKhundongbam/exe-semge/pkg/models"
)

// DefaultFilePath is where the file backend keeps its records.
const DefaultFilePath = "documents.json"

// fileRecords is the on-disk layout: a table of documents keyed by id.
type fileRecords struct {
	Documents map[string]*models.Document `json:"documents"`
}

// FileStore keeps all documents in one JSON file. Writes replace the file
// atomically via a temp file and rename.
type FileStore struct {
	path string
	mu   sync.RWMutex
}

// NewFileStore opens (or lazily creates) the JSON store at path.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		path = DefaultFilePath
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}
	s := &FileStore{path: path}
	if _, err := s.load(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *FileStore) Save(ctx context.Context, doc *models.Document) error {
	if err := validateDocument(doc); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	records.Documents[doc.ID] = doc.Clone()
	return s.write(records)
}

func (s *FileStore) Get(ctx context.Context, id string) (*models.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	doc, ok := records.Documents[id]
	if !ok {
		return nil, ocr.NewOCRError("Get", ocr.ErrDocumentNotFound, id)
	}
	return doc, nil
}

func (s *FileStore) List(ctx context.Context) ([]models.Summary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	docs := make([]*models.Document, 0, len(records.Documents))
	for _, d := range records.Documents {
		docs = append(docs, d)
	}
	return sortSummaries(docs), nil
}

func (s *FileStore) Search(ctx context.Context, query string) ([]models.Match, error) {
	if query == "" {
		return nil, fmt.Errorf("search query is required")
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	records, err := s.load()
	if err != nil {
		return nil, err
	}
	docs := make([]*models.Document, 0, len(records.Documents))
	for _, d := range records.Documents {
		docs = append(docs, d)
	}

	var matches []models.Match
	for _, summary := range sortSummaries(docs) {
		pages := matchPages(records.Documents[summary.ID].Pages, query)
		if len(pages) > 0 {
			matches = append(matches, models.Match{Summary: summary, Pages: pages})
		}
	}
	return matches, nil
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.load()
	if err != nil {
		return err
	}
	if _, ok := records.Documents[id]; !ok {
		return ocr.NewOCRError("Delete", ocr.ErrDocumentNotFound, id)
	}
	delete(records.Documents, id)
	return s.write(records)
}

func (s *FileStore) Close() error { return nil }

func (s *FileStore) load() (*fileRecords, error) {
	records := &fileRecords{Documents: map[string]*models.Document{}}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read store: %w", err)
	}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, records); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", s.path, err)
	}
	if records.Documents == nil {
		records.Documents = map[string]*models.Document{}
	}
	return records, nil
}

func (s *FileStore) write(records *fileRecords) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal store: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".documents-*.json")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("failed to replace store: %w", err)
	}
	return nil
}
