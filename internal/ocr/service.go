// Package ocr defines the recognition-engine boundary used by the extraction
// pipeline and provides two engines behind it.
//
// This package supports Tesseract (via gosseract) for local, offline
// recognition with installable language packs, and Google Cloud Vision for
// hosted recognition with language hints.
//
// Required for the Tesseract engine:
//   - a tesseract binary on PATH or TESSERACT_PATH (used for --list-langs and OSD)
//   - traineddata files for every language code requested, plus osd.traineddata
//
// Required for the Vision engine:
//   - GOOGLE_APPLICATION_CREDENTIALS: Path to service account JSON file, OR
//   - GOOGLE_CREDENTIALS: Inline JSON credentials string
//
// Engine contract:
//   - InstalledLanguages is queried once per document through a LanguageCatalog
//   - DetectScript is advisory; callers substitute Latin on any error
//   - RecognizeStructured reports non-text detections with the NotText confidence
package ocr

import (
	"context"
	"image"
	"strings"
)

// Engine is the recognition-engine collaborator.
type Engine interface {
	// InstalledLanguages returns the language codes the engine can recognize.
	InstalledLanguages(ctx context.Context) ([]string, error)

	// DetectScript runs whole-page orientation/script detection.
	DetectScript(ctx context.Context, img image.Image) (ScriptLabel, error)

	// RecognizeText performs single-pass whole-image recognition.
	// langs is a non-empty ordered set; engines combine it their own way.
	RecognizeText(ctx context.Context, img image.Image, langs []string) (string, error)

	// RecognizeStructured performs layout-aware recognition and returns one
	// entry per detected token in engine order.
	RecognizeStructured(ctx context.Context, img image.Image, lang string) ([]Word, error)
}

// Confidence is a per-token engine confidence. A token the engine marked as
// non-text carries NotText instead of a numeric score.
type Confidence struct {
	value float64
	valid bool
}

// NotText is the confidence of detections that are not text (whitespace,
// layout-only rows).
var NotText = Confidence{}

// TextConfidence returns a valid confidence with the given score.
func TextConfidence(v float64) Confidence {
	return Confidence{value: v, valid: true}
}

// IsText reports whether the token carries a real confidence.
func (c Confidence) IsText() bool { return c.valid }

// Value returns the score and whether it is set.
func (c Confidence) Value() (float64, bool) { return c.value, c.valid }

// Word is one token of structured recognition output.
type Word struct {
	Text       string
	Block      int
	Paragraph  int
	Line       int
	Box        image.Rectangle
	Confidence Confidence
}

// ScriptLabel is a coarse writing-system classification from detection.
type ScriptLabel string

const (
	ScriptLatin       ScriptLabel = "Latin"
	ScriptMeeteiMayek ScriptLabel = "Meetei_Mayek"
	ScriptDevanagari  ScriptLabel = "Devanagari"
	ScriptBengali     ScriptLabel = "Bengali"
	ScriptUnknown     ScriptLabel = "Unknown"
)

var knownScripts = map[string]ScriptLabel{
	"latin":        ScriptLatin,
	"meetei_mayek": ScriptMeeteiMayek,
	"devanagari":   ScriptDevanagari,
	"bengali":      ScriptBengali,
}

// ParseScriptLabel maps an engine script name to a label. Unrecognized names
// map to ScriptUnknown.
func ParseScriptLabel(s string) ScriptLabel {
	key := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", "_"))
	if label, ok := knownScripts[key]; ok {
		return label
	}
	return ScriptUnknown
}
