package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/MangalKhundongbam/exe-semge/internal/extract"
	"github.com/MangalKhundongbam/exe-semge/internal/logger"
	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
	"github.com/MangalKhundongbam/exe-semge/internal/raster"
	"github.com/MangalKhundongbam/exe-semge/pkg/models"
)

var extractCmd = &cobra.Command{
	Use:   "extract [file]",
	Short: "Extract text from a scanned PDF or page image",
	Long: `Rasterize a PDF (or read a single page image) and recognize every page.

With --lang auto the script of each page is detected and mapped to a
language. An explicit list such as mni+eng is filtered to the installed
languages. When the list contains both hybrid languages (eng and mni by
default) each line is classified and non-English lines are re-recognized
from a crop of the page.

Required tools:
  tesseract with the requested traineddata packs (and osd for --lang auto)
  pdftoppm from poppler-utils for PDF sources`,
	Example: `  # Extract with script detection and print the text
  semge extract order.pdf

  # Mixed English and Meitei Mayek, saved as JSON
  semge extract order.pdf --lang mni+eng --json -o order.json

  # Process without saving to the document store
  semge extract scan.png --lang eng --no-store`,
	Args: cobra.ExactArgs(1),
	RunE: runExtract,
}

func init() {
	rootCmd.AddCommand(extractCmd)

	extractCmd.Flags().StringP("lang", "l", extract.AutoLanguage, `Recognition languages: "auto" or codes joined by "+"`)
	extractCmd.Flags().String("id", "", "Document ID (default: generated UUID)")
	extractCmd.Flags().String("name", "", "Display name recorded for the source (default: file name)")
	extractCmd.Flags().StringP("output", "o", "", "Output file path (default: stdout)")
	extractCmd.Flags().Bool("json", false, "Output the document as JSON")
	extractCmd.Flags().Bool("no-store", false, "Do not save the document to the store")
	extractCmd.Flags().Int("timeout", 1800, "Overall processing timeout in seconds")
}

func runExtract(cmd *cobra.Command, args []string) error {
	log := logger.WithComponent("extract")

	lang, _ := cmd.Flags().GetString("lang")
	docID, _ := cmd.Flags().GetString("id")
	name, _ := cmd.Flags().GetString("name")
	outputPath, _ := cmd.Flags().GetString("output")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	noStore, _ := cmd.Flags().GetBool("no-store")
	timeoutSecs, _ := cmd.Flags().GetInt("timeout")

	source := args[0]

	log.Info().
		Str("file", source).
		Str("lang", lang).
		Bool("json", jsonOutput).
		Int("timeout", timeoutSecs).
		Msg("Starting extraction")

	if err := validateSourceFile(source, log); err != nil {
		return err
	}

	cfg, err := getConfig()
	if err != nil {
		return err
	}

	ctx, cancel := createContextWithTimeout(timeoutSecs, log)
	defer cancel()

	engine, err := openEngine(ctx)
	if err != nil {
		return err
	}
	defer closeEngine(engine)

	opts, err := cfg.GetPipelineOptions()
	if err != nil {
		return fmt.Errorf("failed to load vocabulary: %w", err)
	}
	opts = append(opts,
		extract.WithLogger(log),
		extract.WithCatalog(ocr.NewLanguageCatalog(engine, cfg.LanguageCacheTTL)),
	)
	pipeline := extract.NewPipeline(engine, raster.Auto{Options: cfg.GetRasterOptions()}, opts...)

	startTime := time.Now()
	doc, err := pipeline.Extract(ctx, extract.ExtractRequest{
		Source:      source,
		Language:    lang,
		DocumentID:  docID,
		DisplayName: name,
	})
	if err != nil && doc == nil {
		return handleExtractError(err, log)
	}
	if err != nil {
		// Partial document after cancellation; keep what finished
		log.Warn().Err(err).Int("failed_pages", len(doc.FailedPages())).Msg("Extraction interrupted")
	}

	log.Info().
		Str("document_id", doc.ID).
		Int("page_count", doc.PageCount).
		Ints("failed_pages", doc.FailedPages()).
		Dur("duration", time.Since(startTime)).
		Msg("Extraction completed")

	if !noStore {
		saveCtx, saveCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer saveCancel()

		s, storeErr := openStore(saveCtx)
		if storeErr != nil {
			return storeErr
		}
		defer s.Close()
		if storeErr := s.Save(saveCtx, doc); storeErr != nil {
			return fmt.Errorf("failed to save document: %w", storeErr)
		}
		log.Info().Str("document_id", doc.ID).Msg("Document saved")
	}

	if outErr := outputDocument(cmd.OutOrStdout(), doc, outputPath, jsonOutput, log); outErr != nil {
		return outErr
	}
	if err != nil {
		return handleExtractError(err, log)
	}
	return nil
}

// validateSourceFile checks that the source exists, is a readable regular file and is not empty
func validateSourceFile(path string, log zerolog.Logger) error {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			log.Error().Str("file", path).Msg("Source file not found")
			return fmt.Errorf("source file not found: %s", path)
		}
		if os.IsPermission(err) {
			log.Error().Str("file", path).Msg("Permission denied accessing source file")
			return fmt.Errorf("permission denied accessing source file: %s", path)
		}
		return fmt.Errorf("error accessing source file: %w", err)
	}

	if !info.Mode().IsRegular() {
		log.Error().Str("file", path).Msg("Path is not a regular file")
		return fmt.Errorf("path is not a regular file: %s", path)
	}

	if info.Size() == 0 {
		log.Error().Str("file", path).Msg("Source file is empty")
		return fmt.Errorf("source file is empty: %s", path)
	}

	return nil
}

// createContextWithTimeout creates a context with timeout and signal handling
func createContextWithTimeout(timeoutSecs int, log zerolog.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(timeoutSecs)*time.Second)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		defer signal.Stop(sigChan)
		select {
		case sig := <-sigChan:
			log.Info().
				Str("signal", sig.String()).
				Msg("Received interrupt signal, canceling extraction")
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, cancel
}

// handleExtractError provides user-friendly error messages for extraction failures
func handleExtractError(err error, log zerolog.Logger) error {
	log.Error().Err(err).Msg("Extraction failed")

	switch {
	case errors.Is(err, ocr.ErrExtractionCanceled) && errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out; finished pages were kept. Try increasing --timeout")
	case errors.Is(err, ocr.ErrExtractionCanceled):
		return fmt.Errorf("extraction was canceled; finished pages were kept")
	case errors.Is(err, context.DeadlineExceeded):
		return fmt.Errorf("extraction timed out. Try increasing --timeout or processing a smaller file")
	case errors.Is(err, context.Canceled):
		return fmt.Errorf("extraction was canceled")
	case errors.Is(err, ocr.ErrRasterization):
		return fmt.Errorf("could not read the source document. Check that it is a valid PDF or image and that pdftoppm is installed: %w", err)
	case errors.Is(err, ocr.ErrNoLanguageAvailable):
		return fmt.Errorf("the recognition engine has no languages installed. Install traineddata packs, for example:\n\n" +
			"   apt install tesseract-ocr-eng tesseract-ocr-mni\n\n" +
			"or point TESSDATA_PREFIX at a directory containing eng.traineddata and mni.traineddata")
	case errors.Is(err, ocr.ErrEngineUnavailable):
		return fmt.Errorf("recognition engine unavailable. Install tesseract, set TESSERACT_PATH, or use OCR_ENGINE=vision with Google Cloud credentials: %w", err)
	case errors.Is(err, ocr.ErrPageNotFound):
		return fmt.Errorf("page not found: %w", err)
	case errors.Is(err, ocr.ErrDocumentNotFound):
		return fmt.Errorf("document not found: %w", err)
	case strings.Contains(err.Error(), "PERMISSION_DENIED") || strings.Contains(err.Error(), "Unauthenticated"):
		return fmt.Errorf("Google Cloud authentication failed. Check GOOGLE_APPLICATION_CREDENTIALS or GOOGLE_CREDENTIALS: %v", err)
	default:
		return fmt.Errorf("extraction failed: %w", err)
	}
}

// outputDocument writes the document as JSON or as page-separated text
func outputDocument(stdout io.Writer, doc *models.Document, outputPath string, jsonOutput bool, log zerolog.Logger) error {
	var data []byte
	if jsonOutput {
		var err error
		data, err = json.MarshalIndent(doc, "", "  ")
		if err != nil {
			log.Error().Err(err).Msg("Failed to marshal JSON output")
			return fmt.Errorf("failed to create JSON output: %w", err)
		}
		data = append(data, '\n')
	} else {
		data = []byte(formatDocumentText(doc))
	}

	if outputPath == "" {
		if _, err := stdout.Write(data); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}

	if err := os.WriteFile(outputPath, data, 0o644); err != nil {
		log.Error().Err(err).Str("output_file", outputPath).Msg("Failed to write output file")
		return fmt.Errorf("failed to write output file: %w", err)
	}
	log.Info().
		Str("output_file", outputPath).
		Int("bytes", len(data)).
		Msg("Results written to file")
	return nil
}

func formatDocumentText(doc *models.Document) string {
	var b strings.Builder
	fmt.Fprintf(&b, "=== %s (%s) ===\n", doc.SourceFile, doc.ID)
	for _, p := range doc.Pages {
		fmt.Fprintf(&b, "\n--- Page %d [%s] ---\n", p.Number, p.Status)
		b.WriteString(p.Text)
		if p.Text != "" && !strings.HasSuffix(p.Text, "\n") {
			b.WriteByte('\n')
		}
	}
	return b.String()
}
