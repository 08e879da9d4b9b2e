package extract

import (
	"context"
	"image"
	"sort"
	"strings"

	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
)

// LineKey orders lines by block, then paragraph, then line.
type LineKey struct {
	Block     int
	Paragraph int
	Line      int
}

// Less reports whether k sorts before o.
func (k LineKey) Less(o LineKey) bool {
	if k.Block != o.Block {
		return k.Block < o.Block
	}
	if k.Paragraph != o.Paragraph {
		return k.Paragraph < o.Paragraph
	}
	return k.Line < o.Line
}

// LineRegion is one reconstructed text line of a page.
type LineRegion struct {
	Key         LineKey
	Box         image.Rectangle
	Tokens      []string
	Confidences []ocr.Confidence
}

// Text is the space-joined provisional text of the line, trimmed.
func (l LineRegion) Text() string {
	return strings.TrimSpace(strings.Join(l.Tokens, " "))
}

// Segment groups structured recognition output into lines. Non-text
// detections are dropped, and so are lines left without tokens. The result
// is sorted by key.
func Segment(words []ocr.Word) []LineRegion {
	index := make(map[LineKey]int)
	var lines []LineRegion

	for _, w := range words {
		if !w.Confidence.IsText() {
			continue
		}
		key := LineKey{Block: w.Block, Paragraph: w.Paragraph, Line: w.Line}
		i, ok := index[key]
		if !ok {
			i = len(lines)
			index[key] = i
			lines = append(lines, LineRegion{Key: key, Box: w.Box})
		}
		l := &lines[i]
		l.Tokens = append(l.Tokens, w.Text)
		l.Confidences = append(l.Confidences, w.Confidence)
		l.Box = unionBox(l.Box, w.Box)
	}

	sort.SliceStable(lines, func(i, j int) bool { return lines[i].Key.Less(lines[j].Key) })
	return lines
}

// unionBox takes min left/top and max right/bottom. Unlike
// image.Rectangle.Union it keeps zero-area boxes.
func unionBox(a, b image.Rectangle) image.Rectangle {
	return image.Rect(
		min(a.Min.X, b.Min.X), min(a.Min.Y, b.Min.Y),
		max(a.Max.X, b.Max.X), max(a.Max.Y, b.Max.Y),
	)
}

// LineSegmenter obtains line regions from the engine's layout mode.
type LineSegmenter struct {
	Engine ocr.Engine
}

// SegmentPage runs structured recognition with lang and segments the result.
func (s LineSegmenter) SegmentPage(ctx context.Context, img image.Image, lang string) ([]LineRegion, error) {
	words, err := s.Engine.RecognizeStructured(ctx, img, lang)
	if err != nil {
		return nil, err
	}
	return Segment(words), nil
}
