package ocr

import (
	"context"
	"fmt"
	"strings"
)

// EngineConfig selects and configures a recognition engine.
type EngineConfig struct {
	// Kind is "tesseract" (default) or "vision".
	Kind string

	Tesseract TesseractConfig

	// VisionLanguages is the capability set advertised by the Vision engine.
	VisionLanguages []string
}

// New constructs the engine named by cfg.Kind.
func New(ctx context.Context, cfg EngineConfig) (Engine, error) {
	switch strings.ToLower(cfg.Kind) {
	case "", "tesseract":
		return NewTesseractEngine(cfg.Tesseract)
	case "vision", "google-vision":
		return NewVisionEngine(ctx, cfg.VisionLanguages)
	default:
		return nil, NewOCRError("New", ErrEngineUnavailable, fmt.Sprintf("unknown engine %q", cfg.Kind))
	}
}
