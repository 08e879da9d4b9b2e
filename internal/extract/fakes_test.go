package extract

import (
	"context"
	"errors"
	"image"
	"sync"

	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
)

type textCall struct {
	langs  []string
	bounds image.Rectangle
}

// fakeEngine is a goroutine-safe in-memory ocr.Engine.
type fakeEngine struct {
	mu sync.Mutex

	languages []string
	langErr   error
	langCalls int

	script    ocr.ScriptLabel
	scriptErr error

	words         []ocr.Word
	structuredErr error

	text func(ctx context.Context, img image.Image, langs []string) (string, error)

	textCalls       []textCall
	structuredLangs []string
}

func (f *fakeEngine) InstalledLanguages(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.langCalls++
	return append([]string(nil), f.languages...), f.langErr
}

func (f *fakeEngine) DetectScript(ctx context.Context, img image.Image) (ocr.ScriptLabel, error) {
	return f.script, f.scriptErr
}

func (f *fakeEngine) RecognizeText(ctx context.Context, img image.Image, langs []string) (string, error) {
	f.mu.Lock()
	f.textCalls = append(f.textCalls, textCall{langs: append([]string(nil), langs...), bounds: img.Bounds()})
	fn := f.text
	f.mu.Unlock()

	if fn == nil {
		return "", errors.New("no text configured")
	}
	return fn(ctx, img, langs)
}

func (f *fakeEngine) RecognizeStructured(ctx context.Context, img image.Image, lang string) ([]ocr.Word, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.structuredLangs = append(f.structuredLangs, lang)
	if f.structuredErr != nil {
		return nil, f.structuredErr
	}
	return append([]ocr.Word(nil), f.words...), nil
}

func (f *fakeEngine) calls() []textCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]textCall(nil), f.textCalls...)
}

func (f *fakeEngine) languageCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.langCalls
}

// fakeRasterizer returns fixed pages or an error.
type fakeRasterizer struct {
	pages []image.Image
	err   error
}

func (r fakeRasterizer) Rasterize(ctx context.Context, source string) ([]image.Image, error) {
	return r.pages, r.err
}

// whitePage returns a blank page whose width identifies it in fakes.
func whitePage(width, height int) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, width, height))
	for i := range img.Pix {
		img.Pix[i] = 255
	}
	return img
}

func word(text string, block, par, line int, box image.Rectangle, conf float64) ocr.Word {
	return ocr.Word{
		Text:       text,
		Block:      block,
		Paragraph:  par,
		Line:       line,
		Box:        box,
		Confidence: ocr.TextConfidence(conf),
	}
}
