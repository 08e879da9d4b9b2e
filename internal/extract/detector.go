package extract

import (
	"context"
	"image"

	"github.com/rs/zerolog"

	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
)

// ScriptDetector classifies a whole page's writing system. Detection is
// advisory: any failure yields Latin.
type ScriptDetector struct {
	Engine ocr.Engine
	Log    zerolog.Logger
}

// Detect returns the page's script label, never failing.
func (d ScriptDetector) Detect(ctx context.Context, img image.Image) ocr.ScriptLabel {
	label, err := d.Engine.DetectScript(ctx, img)
	if err != nil {
		d.Log.Debug().Err(err).Msg("Script detection failed, assuming Latin")
		return ocr.ScriptLatin
	}
	if label == "" || label == ocr.ScriptUnknown {
		d.Log.Debug().Str("script", string(label)).Msg("Unrecognized script, assuming Latin")
		return ocr.ScriptLatin
	}
	return label
}
