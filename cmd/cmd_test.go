package cmd

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MangalKhundongbam/exe-semge/internal/config"
	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
	"github.com/MangalKhundongbam/exe-semge/internal/store"
	"github.com/MangalKhundongbam/exe-semge/pkg/models"
)

func sampleDocument(id string, texts ...string) *models.Document {
	created := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	doc := &models.Document{
		ID:         id,
		SourceFile: id + ".pdf",
		Language:   "mni+eng",
		PageCount:  len(texts),
		CreatedAt:  created,
		UpdatedAt:  created,
	}
	for i, text := range texts {
		status := models.PageStatusSuccess
		if text == "" {
			status = models.PageStatusOCRFailed
		}
		doc.Pages = append(doc.Pages, models.Page{Number: i + 1, Text: text, Status: status})
	}
	return doc
}

// useFileStore points the commands at a fresh file store seeded with docs.
func useFileStore(t *testing.T, docs ...*models.Document) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "documents.json")

	s, err := store.NewFileStore(path)
	require.NoError(t, err)
	for _, d := range docs {
		require.NoError(t, s.Save(context.Background(), d))
	}

	prev := appConfig
	appConfig = &config.Config{StoreBackend: "file", StorePath: path}
	t.Cleanup(func() { appConfig = prev })
	return path
}

func resetFlags(c *cobra.Command) {
	c.Flags().VisitAll(func(f *pflag.Flag) {
		_ = f.Value.Set(f.DefValue)
		f.Changed = false
	})
	for _, sub := range c.Commands() {
		resetFlags(sub)
	}
}

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	resetFlags(rootCmd)
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	t.Cleanup(func() {
		resetFlags(rootCmd)
		rootCmd.SetOut(nil)
		rootCmd.SetErr(nil)
		rootCmd.SetArgs(nil)
	})
	err := rootCmd.Execute()
	return out.String(), err
}

func TestHandleExtractError(t *testing.T) {
	log := zerolog.Nop()

	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			name: "timeout with partial document",
			err:  fmt.Errorf("%w with 2 of 5 pages unstarted: %w", ocr.ErrExtractionCanceled, context.DeadlineExceeded),
			want: "extraction timed out; finished pages were kept",
		},
		{
			name: "canceled with partial document",
			err:  fmt.Errorf("%w with 2 of 5 pages unstarted: %w", ocr.ErrExtractionCanceled, context.Canceled),
			want: "extraction was canceled; finished pages were kept",
		},
		{
			name: "plain deadline",
			err:  context.DeadlineExceeded,
			want: "extraction timed out",
		},
		{
			name: "rasterization",
			err:  ocr.Wrapf(ocr.ErrRasterization, errors.New("bad xref"), "scan.pdf"),
			want: "could not read the source document",
		},
		{
			name: "no languages",
			err:  ocr.ErrNoLanguageAvailable,
			want: "no languages installed",
		},
		{
			name: "engine missing",
			err:  ocr.ErrEngineUnavailable,
			want: "recognition engine unavailable",
		},
		{
			name: "unknown document",
			err:  ocr.NewOCRError("Get", ocr.ErrDocumentNotFound, "abc"),
			want: "document not found",
		},
		{
			name: "vision auth",
			err:  errors.New("rpc error: code = PERMISSION_DENIED"),
			want: "Google Cloud authentication failed",
		},
		{
			name: "anything else",
			err:  errors.New("boom"),
			want: "extraction failed: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := handleExtractError(tt.err, log)
			require.Error(t, got)
			assert.Contains(t, got.Error(), tt.want)
		})
	}
}

func TestHandleExtractErrorKeepsSentinel(t *testing.T) {
	err := handleExtractError(ocr.ErrDocumentNotFound, zerolog.Nop())

	assert.ErrorIs(t, err, ocr.ErrDocumentNotFound)
}

func TestFormatDocumentText(t *testing.T) {
	doc := sampleDocument("doc-1", "first line\nsecond line\n", "", "no newline")

	got := formatDocumentText(doc)

	want := "=== doc-1.pdf (doc-1) ===\n" +
		"\n--- Page 1 [success] ---\nfirst line\nsecond line\n" +
		"\n--- Page 2 [ocr_failed] ---\n" +
		"\n--- Page 3 [success] ---\nno newline\n"
	assert.Equal(t, want, got)
}

func TestOutputDocumentToFile(t *testing.T) {
	doc := sampleDocument("doc-1", "hello\n")
	path := filepath.Join(t.TempDir(), "out.json")
	var stdout bytes.Buffer

	require.NoError(t, outputDocument(&stdout, doc, path, true, zerolog.Nop()))

	assert.Empty(t, stdout.String())
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"page_number": 1`)
	assert.Contains(t, string(data), `"status": "success"`)
}

func TestOutputDocumentToStdout(t *testing.T) {
	var stdout bytes.Buffer

	require.NoError(t, outputDocument(&stdout, sampleDocument("doc-1", "hello\n"), "", false, zerolog.Nop()))

	assert.Contains(t, stdout.String(), "--- Page 1 [success] ---\nhello\n")
}

func TestValidateSourceFile(t *testing.T) {
	dir := t.TempDir()
	empty := filepath.Join(dir, "empty.pdf")
	require.NoError(t, os.WriteFile(empty, nil, 0o644))
	full := filepath.Join(dir, "scan.pdf")
	require.NoError(t, os.WriteFile(full, []byte("%PDF-1.4"), 0o644))

	assert.NoError(t, validateSourceFile(full, zerolog.Nop()))
	assert.ErrorContains(t, validateSourceFile(empty, zerolog.Nop()), "empty")
	assert.ErrorContains(t, validateSourceFile(dir, zerolog.Nop()), "not a regular file")
	assert.ErrorContains(t, validateSourceFile(filepath.Join(dir, "missing.pdf"), zerolog.Nop()), "not found")
}

func TestListCommand(t *testing.T) {
	useFileStore(t, sampleDocument("doc-a", "one"), sampleDocument("doc-b", "one", "two"))

	out, err := execute(t, "list")
	require.NoError(t, err)

	assert.Contains(t, out, "ID")
	assert.Contains(t, out, "doc-a.pdf")
	assert.Contains(t, out, "doc-b.pdf")
}

func TestListCommandEmpty(t *testing.T) {
	useFileStore(t)

	out, err := execute(t, "list")
	require.NoError(t, err)

	assert.Equal(t, "No documents stored\n", out)
}

func TestShowCommandPage(t *testing.T) {
	useFileStore(t, sampleDocument("doc-a", "alpha\n", "beta\n"))

	out, err := execute(t, "show", "doc-a", "--page", "2")
	require.NoError(t, err)
	assert.Equal(t, "--- Page 2 [success] ---\nbeta\n", out)

	_, err = execute(t, "show", "doc-a", "--page", "3")
	assert.ErrorContains(t, err, "page 3 not found")
}

func TestShowCommandUnknownDocument(t *testing.T) {
	useFileStore(t)

	_, err := execute(t, "show", "missing")

	assert.ErrorIs(t, err, ocr.ErrDocumentNotFound)
}

func TestEditCommand(t *testing.T) {
	path := useFileStore(t, sampleDocument("doc-a", "alpha\n", ""))

	out, err := execute(t, "edit", "doc-a", "2", "--text", "typed by hand")
	require.NoError(t, err)
	assert.Contains(t, out, "Page 2 of doc-a updated")

	s, err := store.NewFileStore(path)
	require.NoError(t, err)
	doc, err := s.Get(context.Background(), "doc-a")
	require.NoError(t, err)
	assert.Equal(t, "typed by hand", doc.Pages[1].Text)
	assert.Equal(t, models.PageStatusEdited, doc.Pages[1].Status)
	assert.Equal(t, "alpha\n", doc.Pages[0].Text)
}

func TestEditCommandFromFile(t *testing.T) {
	path := useFileStore(t, sampleDocument("doc-a", "alpha\n"))
	textFile := filepath.Join(t.TempDir(), "page.txt")
	require.NoError(t, os.WriteFile(textFile, []byte("from file\n"), 0o644))

	_, err := execute(t, "edit", "doc-a", "1", "--file", textFile)
	require.NoError(t, err)

	s, err := store.NewFileStore(path)
	require.NoError(t, err)
	doc, err := s.Get(context.Background(), "doc-a")
	require.NoError(t, err)
	assert.Equal(t, "from file\n", doc.Pages[0].Text)
}

func TestEditCommandErrors(t *testing.T) {
	useFileStore(t, sampleDocument("doc-a", "alpha\n"))

	_, err := execute(t, "edit", "doc-a", "7", "--text", "x")
	assert.ErrorIs(t, err, ocr.ErrPageNotFound)

	_, err = execute(t, "edit", "doc-a", "one", "--text", "x")
	assert.ErrorContains(t, err, "page must be a number")

	_, err = execute(t, "edit", "doc-a", "1")
	assert.Error(t, err)
}

func TestSearchCommand(t *testing.T) {
	useFileStore(t,
		sampleDocument("doc-a", "Order No. 12", "nothing here", "order copy"),
		sampleDocument("doc-b", "unrelated"),
	)

	out, err := execute(t, "search", "ORDER")
	require.NoError(t, err)
	assert.Equal(t, "doc-a  doc-a.pdf  pages 1, 3\n", out)

	out, err = execute(t, "search", "absent")
	require.NoError(t, err)
	assert.Contains(t, out, `No pages contain "absent"`)
}

func TestDeleteCommand(t *testing.T) {
	useFileStore(t, sampleDocument("doc-a", "alpha"))

	out, err := execute(t, "delete", "doc-a")
	require.NoError(t, err)
	assert.Equal(t, "Deleted doc-a\n", out)

	_, err = execute(t, "delete", "doc-a")
	assert.ErrorIs(t, err, ocr.ErrDocumentNotFound)
}

func TestLanguagesCommandHasNoRefreshFlag(t *testing.T) {
	assert.Nil(t, languagesCmd.Flags().Lookup("refresh"))

	_, err := execute(t, "languages", "--refresh")
	assert.ErrorContains(t, err, "unknown flag: --refresh")
}

type closingEngine struct {
	ocr.Engine
	closed int
	err    error
}

func (e *closingEngine) Close() error {
	e.closed++
	return e.err
}

func TestCloseEngine(t *testing.T) {
	failing := &closingEngine{err: errors.New("connection reset")}
	closeEngine(failing)
	assert.Equal(t, 1, failing.closed)

	// Engines without Close are left alone
	assert.NotPanics(t, func() { closeEngine(struct{ ocr.Engine }{}) })
}
