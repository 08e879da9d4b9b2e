package ocr

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"image"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/otiai10/gosseract/v2"

	"github.com/MangalKhundongbam/exe-semge/internal/imaging"
)

// TesseractConfig holds configuration for the Tesseract engine.
type TesseractConfig struct {
	// BinaryPath is the tesseract executable used for --list-langs and OSD.
	// Default: "tesseract" resolved on PATH.
	BinaryPath string

	// TessdataPrefix overrides the traineddata directory (TESSDATA_PREFIX).
	TessdataPrefix string

	// PageSegMode is the tesseract page segmentation mode for recognition.
	// Zero keeps the library default (fully automatic).
	PageSegMode int
}

// TesseractEngine implements Engine with gosseract for recognition and the
// tesseract CLI for language listing and script detection.
type TesseractEngine struct {
	cfg           TesseractConfig
	clientFactory func() *gosseract.Client
	runCommand    func(ctx context.Context, name string, args ...string) ([]byte, error)
}

// NewTesseractEngine constructs a Tesseract-backed engine. It fails with
// ErrEngineUnavailable when the tesseract binary cannot be found.
func NewTesseractEngine(cfg TesseractConfig) (*TesseractEngine, error) {
	const op = "NewTesseractEngine"

	if cfg.BinaryPath == "" {
		cfg.BinaryPath = "tesseract"
	}
	path, err := exec.LookPath(cfg.BinaryPath)
	if err != nil {
		return nil, WrapOCRError(op, ErrEngineUnavailable, fmt.Sprintf("tesseract binary %q not found", cfg.BinaryPath))
	}
	cfg.BinaryPath = path

	if cfg.TessdataPrefix != "" {
		// Read by both libtesseract and the CLI.
		if err := os.Setenv("TESSDATA_PREFIX", cfg.TessdataPrefix); err != nil {
			return nil, WrapOCRError(op, err, "failed to set TESSDATA_PREFIX")
		}
	}

	return &TesseractEngine{
		cfg:           cfg,
		clientFactory: gosseract.NewClient,
		runCommand:    runCommand,
	}, nil
}

func (e *TesseractEngine) Name() string { return "tesseract" }

// InstalledLanguages lists traineddata packs via `tesseract --list-langs`.
// The osd pack is not a recognition language and is left out.
func (e *TesseractEngine) InstalledLanguages(ctx context.Context) ([]string, error) {
	out, err := e.runCommand(ctx, e.cfg.BinaryPath, "--list-langs")
	if err != nil {
		return nil, WrapOCRError("InstalledLanguages", err, "tesseract --list-langs failed")
	}
	return parseLanguageList(string(out)), nil
}

// DetectScript runs tesseract in OSD-only mode (--psm 0) on the image.
func (e *TesseractEngine) DetectScript(ctx context.Context, img image.Image) (ScriptLabel, error) {
	const op = "DetectScript"

	data, err := imaging.EncodePNG(img)
	if err != nil {
		return ScriptUnknown, WrapOCRError(op, err, "failed to encode image")
	}

	tmp, err := os.CreateTemp("", "osd-*.png")
	if err != nil {
		return ScriptUnknown, WrapOCRError(op, err, "failed to create temp image")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return ScriptUnknown, WrapOCRError(op, err, "failed to write temp image")
	}
	if err := tmp.Close(); err != nil {
		return ScriptUnknown, WrapOCRError(op, err, "failed to close temp image")
	}

	out, err := e.runCommand(ctx, e.cfg.BinaryPath, tmp.Name(), "stdout", "--psm", "0")
	if err != nil {
		return ScriptUnknown, WrapOCRError(op, fmt.Errorf("%w: %v", ErrScriptDetection, err), "tesseract OSD failed")
	}
	return ParseScriptReport(string(out))
}

// RecognizeText performs whole-image recognition with the given languages.
func (e *TesseractEngine) RecognizeText(ctx context.Context, img image.Image, langs []string) (string, error) {
	const op = "RecognizeText"

	if len(langs) == 0 {
		return "", NewOCRError(op, ErrNoLanguageAvailable, "empty language list")
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	c, err := e.prepare(img, langs...)
	if err != nil {
		return "", WrapOCRError(op, err, strings.Join(langs, "+"))
	}
	defer c.Close()

	text, err := c.Text()
	if err != nil {
		return "", WrapOCRError(op, err, "recognize text")
	}
	return text, nil
}

// RecognizeStructured returns word-level boxes with block/paragraph/line numbers.
func (e *TesseractEngine) RecognizeStructured(ctx context.Context, img image.Image, lang string) ([]Word, error) {
	const op = "RecognizeStructured"

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	c, err := e.prepare(img, lang)
	if err != nil {
		return nil, WrapOCRError(op, err, lang)
	}
	defer c.Close()

	boxes, err := c.GetBoundingBoxesVerbose()
	if err != nil {
		return nil, WrapOCRError(op, err, "get bounding boxes")
	}

	words := make([]Word, 0, len(boxes))
	for _, b := range boxes {
		words = append(words, Word{
			Text:       b.Word,
			Block:      b.BlockNum,
			Paragraph:  b.ParNum,
			Line:       b.LineNum,
			Box:        b.Box,
			Confidence: tesseractConfidence(b.Confidence),
		})
	}
	return words, nil
}

func (e *TesseractEngine) prepare(img image.Image, langs ...string) (*gosseract.Client, error) {
	data, err := imaging.EncodePNG(img)
	if err != nil {
		return nil, fmt.Errorf("encode image: %w", err)
	}

	c := e.clientFactory()
	if err := c.SetLanguage(langs...); err != nil {
		c.Close()
		return nil, fmt.Errorf("set languages: %w", err)
	}
	if e.cfg.PageSegMode > 0 {
		if err := c.SetPageSegMode(gosseract.PageSegMode(e.cfg.PageSegMode)); err != nil {
			c.Close()
			return nil, fmt.Errorf("set page segmentation mode: %w", err)
		}
	}
	if err := c.SetImageFromBytes(data); err != nil {
		c.Close()
		return nil, fmt.Errorf("set image: %w", err)
	}
	return c, nil
}

// tesseractConfidence translates tesseract's -1 "not text" convention.
func tesseractConfidence(conf float64) Confidence {
	if conf < 0 {
		return NotText
	}
	return TextConfidence(conf)
}

// parseLanguageList parses `tesseract --list-langs` output.
func parseLanguageList(out string) []string {
	var langs []string
	scanner := bufio.NewScanner(strings.NewReader(out))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of available languages") {
			continue
		}
		// Packs may live in subdirectories (script/Latin).
		code := filepath.ToSlash(line)
		if code == "osd" || strings.ContainsAny(code, " :") {
			continue
		}
		langs = append(langs, code)
	}
	return langs
}

func runCommand(ctx context.Context, name string, args ...string) ([]byte, error) {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	out, err := cmd.Output()
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return out, fmt.Errorf("%s: %w: %s", filepath.Base(name), err, msg)
		}
		return out, fmt.Errorf("%s: %w", filepath.Base(name), err)
	}
	return out, nil
}
