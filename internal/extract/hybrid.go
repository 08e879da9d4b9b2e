package extract

import (
	"context"
	"image"
	"strings"

	"github.com/rs/zerolog"

	"github.com/MangalKhundongbam/exe-semge/internal/imaging"
	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
)

// DefaultCropPadding is the per-side padding around a re-recognized line.
const DefaultCropPadding = 5

// LineResult is the final text of one line.
type LineResult struct {
	Key     LineKey
	Text    string
	Verdict Verdict
}

// CropRect returns the padded line box clamped to the image bounds.
func CropRect(box, bounds image.Rectangle, padding int) image.Rectangle {
	return imaging.PadRect(box, bounds, padding)
}

// HybridRecognizer keeps primary-language lines and re-recognizes the
// others from a crop of the page with the secondary language.
type HybridRecognizer struct {
	Engine     ocr.Engine
	Classifier LineClassifier
	Padding    int
	Primary    string
	Secondary  string
	Log        zerolog.Logger
}

// Recognize produces one result per non-empty region, in region order.
// A failed line re-recognition yields empty text for that line only.
func (h HybridRecognizer) Recognize(ctx context.Context, img image.Image, regions []LineRegion) []LineResult {
	results := make([]LineResult, 0, len(regions))
	for _, region := range regions {
		c := h.Classifier.Classify(region)
		switch c.Verdict {
		case VerdictSkip:
			continue
		case VerdictPrimary:
			results = append(results, LineResult{Key: region.Key, Text: region.Text(), Verdict: c.Verdict})
		default:
			results = append(results, LineResult{Key: region.Key, Text: h.recognizeLine(ctx, img, region), Verdict: c.Verdict})
		}
	}
	return results
}

func (h HybridRecognizer) recognizeLine(ctx context.Context, img image.Image, region LineRegion) string {
	crop, rect, err := imaging.Crop(img, region.Box, h.Padding)
	if err != nil {
		h.Log.Warn().Err(ocr.Wrapf(ocr.ErrLineRecognition, err, "crop")).Interface("line", region.Key).Msg("Line crop failed")
		return ""
	}

	text, err := h.Engine.RecognizeText(ctx, crop, []string{h.Secondary})
	if err != nil {
		h.Log.Warn().
			Err(ocr.Wrapf(ocr.ErrLineRecognition, err, "RecognizeText")).
			Interface("line", region.Key).
			Str("rect", rect.String()).
			Msg("Line re-recognition failed, keeping empty text")
		return ""
	}
	return strings.TrimSpace(text)
}
