package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
	"github.com/MangalKhundongbam/exe-semge/pkg/models"
)

var fixedNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newTestPipeline(engine ocr.Engine, pages []image.Image, opts ...Option) *Pipeline {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewPipeline(engine, fakeRasterizer{pages: pages}, opts...)
}

func TestExtractTwoPagesWithPageFailure(t *testing.T) {
	engine := &fakeEngine{
		languages: []string{"eng"},
		text: func(ctx context.Context, img image.Image, langs []string) (string, error) {
			if img.Bounds().Dx() == 200 {
				return "", errors.New("engine crashed")
			}
			return "the court of imphal\n", nil
		},
	}
	p := newTestPipeline(engine, []image.Image{whitePage(100, 50), whitePage(200, 50)})

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "/uploads/order.pdf", Language: "eng", DocumentID: "doc-1"})
	require.NoError(t, err)

	assert.Equal(t, 2, doc.PageCount)
	require.Len(t, doc.Pages, 2)
	assert.Equal(t, models.Page{Number: 1, Text: "the court of imphal\n", Status: models.PageStatusSuccess}, doc.Pages[0])
	assert.Equal(t, models.Page{Number: 2, Text: "", Status: models.PageStatusOCRFailed}, doc.Pages[1])
	assert.Equal(t, "doc-1", doc.ID)
	assert.Equal(t, "order.pdf", doc.SourceFile)
	assert.Equal(t, "eng", doc.Language)
	assert.Equal(t, fixedNow, doc.CreatedAt)
	assert.Equal(t, []int{2}, doc.FailedPages())
}

func TestExtractHybridMixedPage(t *testing.T) {
	engine := &fakeEngine{
		languages: []string{"eng", "mni"},
		words: []ocr.Word{
			word("the", 1, 1, 1, image.Rect(10, 10, 30, 20), 95),
			word("court", 1, 1, 1, image.Rect(35, 10, 80, 20), 95),
			word("of", 1, 1, 1, image.Rect(85, 10, 95, 20), 95),
			word("imphal", 1, 1, 1, image.Rect(100, 10, 150, 20), 95),
			{Text: "", Block: 1, Paragraph: 1, Line: 1, Confidence: ocr.NotText},
			word("xyzabc", 1, 1, 2, image.Rect(10, 40, 40, 50), 40),
			word("qqrrss", 1, 1, 2, image.Rect(45, 40, 60, 50), 35),
		},
		text: func(ctx context.Context, img image.Image, langs []string) (string, error) {
			return "ꯃꯅꯤꯄꯨꯔ", nil
		},
	}
	p := newTestPipeline(engine, []image.Image{whitePage(200, 100)})

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "mixed.pdf", Language: "mni+eng"})
	require.NoError(t, err)

	require.Len(t, doc.Pages, 1)
	assert.Equal(t, "the court of imphal\nꯃꯅꯤꯄꯨꯔ\n", doc.Pages[0].Text)
	assert.Equal(t, models.PageStatusSuccess, doc.Pages[0].Status)
	assert.Equal(t, []string{"eng"}, engine.structuredLangs)

	calls := engine.calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []string{"mni"}, calls[0].langs)
	assert.Equal(t, image.Rect(0, 0, 60, 20), calls[0].bounds)
}

func TestExtractHybridPairIsConfigurable(t *testing.T) {
	engine := &fakeEngine{
		languages: []string{"eng", "ben"},
		words:     []ocr.Word{word("qqq", 1, 1, 1, image.Rect(0, 0, 10, 10), 50)},
		text: func(ctx context.Context, img image.Image, langs []string) (string, error) {
			return "বাংলা", nil
		},
	}
	p := newTestPipeline(engine, []image.Image{whitePage(40, 40)}, WithHybridPair("eng", "ben"))

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf", Language: "eng+ben"})
	require.NoError(t, err)

	assert.Equal(t, "বাংলা\n", doc.Pages[0].Text)
	assert.Equal(t, []string{"ben"}, engine.calls()[0].langs)
}

func TestExtractHybridLayoutFailureMarksPageFailed(t *testing.T) {
	engine := &fakeEngine{languages: []string{"eng", "mni"}, structuredErr: errors.New("layout failed")}
	p := newTestPipeline(engine, []image.Image{whitePage(40, 40)})

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf", Language: "eng+mni"})
	require.NoError(t, err)

	assert.Equal(t, models.PageStatusOCRFailed, doc.Pages[0].Status)
}

func TestExtractAutoUsesDetectedScript(t *testing.T) {
	engine := &fakeEngine{
		languages: []string{"eng", "mni"},
		script:    ocr.ScriptMeeteiMayek,
		text: func(ctx context.Context, img image.Image, langs []string) (string, error) {
			return "ꯃꯤꯇꯩ", nil
		},
	}
	p := newTestPipeline(engine, []image.Image{whitePage(40, 40)})

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf"})
	require.NoError(t, err)

	assert.Equal(t, "auto", doc.Language)
	assert.Equal(t, []string{"mni"}, engine.calls()[0].langs)
	assert.Empty(t, engine.structuredLangs)
}

func TestExtractAutoDetectionFailureUsesEnglish(t *testing.T) {
	engine := &fakeEngine{
		languages: []string{"eng", "mni"},
		scriptErr: errors.New("osd missing"),
		text: func(ctx context.Context, img image.Image, langs []string) (string, error) {
			return "text", nil
		},
	}
	p := newTestPipeline(engine, []image.Image{whitePage(40, 40)})

	_, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf", Language: "auto"})
	require.NoError(t, err)

	assert.Equal(t, []string{"eng"}, engine.calls()[0].langs)
}

func TestExtractPageNumbering(t *testing.T) {
	const n = 23
	pages := make([]image.Image, n)
	for i := range pages {
		pages[i] = whitePage(10+i, 10)
	}
	engine := &fakeEngine{
		languages: []string{"eng"},
		text: func(ctx context.Context, img image.Image, langs []string) (string, error) {
			return fmt.Sprintf("width %d", img.Bounds().Dx()), nil
		},
	}
	p := newTestPipeline(engine, pages, WithWorkers(4))

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf", Language: "eng"})
	require.NoError(t, err)

	assert.Equal(t, n, doc.PageCount)
	require.Len(t, doc.Pages, n)
	for i, page := range doc.Pages {
		assert.Equal(t, i+1, page.Number)
		assert.Equal(t, fmt.Sprintf("width %d", 10+i), page.Text)
	}
	assert.Equal(t, 1, engine.languageCalls(), "languages are queried once per document")
}

func TestExtractGeneratesID(t *testing.T) {
	engine := &fakeEngine{
		languages: []string{"eng"},
		text:      func(context.Context, image.Image, []string) (string, error) { return "x", nil },
	}
	p := newTestPipeline(engine, []image.Image{whitePage(10, 10)})

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf", DisplayName: "Order 12.pdf"})
	require.NoError(t, err)

	_, parseErr := uuid.Parse(doc.ID)
	assert.NoError(t, parseErr)
	assert.Equal(t, "Order 12.pdf", doc.SourceFile)
}

func TestExtractRasterizationFailure(t *testing.T) {
	engine := &fakeEngine{languages: []string{"eng"}}
	p := NewPipeline(engine, fakeRasterizer{err: errors.New("corrupt xref")})

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "bad.pdf"})

	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ocr.ErrRasterization)
	assert.Equal(t, 0, engine.languageCalls())
}

func TestExtractNoLanguages(t *testing.T) {
	engine := &fakeEngine{}
	p := newTestPipeline(engine, []image.Image{whitePage(10, 10)})

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf"})

	assert.Nil(t, doc)
	assert.ErrorIs(t, err, ocr.ErrNoLanguageAvailable)
}

func TestExtractPageTimeout(t *testing.T) {
	engine := &fakeEngine{
		languages: []string{"eng"},
		text: func(ctx context.Context, img image.Image, langs []string) (string, error) {
			if img.Bounds().Dx() == 10 {
				<-ctx.Done()
				return "too late", nil
			}
			return "fast", nil
		},
	}
	p := newTestPipeline(engine, []image.Image{whitePage(10, 10), whitePage(20, 10)}, WithPageTimeout(20*time.Millisecond))

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf", Language: "eng"})
	require.NoError(t, err)

	assert.Equal(t, models.PageStatusOCRFailed, doc.Pages[0].Status)
	assert.Equal(t, "", doc.Pages[0].Text)
	assert.Equal(t, models.PageStatusSuccess, doc.Pages[1].Status)
}

func TestExtractRecoversPagePanic(t *testing.T) {
	engine := &fakeEngine{
		languages: []string{"eng"},
		text: func(ctx context.Context, img image.Image, langs []string) (string, error) {
			if img.Bounds().Dx() == 20 {
				panic("nil pointer in engine")
			}
			return "ok", nil
		},
	}
	p := newTestPipeline(engine, []image.Image{whitePage(10, 10), whitePage(20, 10), whitePage(30, 10)})

	doc, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf", Language: "eng"})
	require.NoError(t, err)

	assert.Equal(t, []int{2}, doc.FailedPages())
	assert.Equal(t, 3, doc.PageCount)
}

func TestExtractCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var calls atomic.Int32
	engine := &fakeEngine{
		languages: []string{"eng"},
		text: func(context.Context, image.Image, []string) (string, error) {
			calls.Add(1)
			cancel()
			time.Sleep(50 * time.Millisecond)
			return "first", nil
		},
	}
	pages := []image.Image{whitePage(10, 10), whitePage(20, 10), whitePage(30, 10), whitePage(40, 10)}
	p := newTestPipeline(engine, pages, WithWorkers(1))

	doc, err := p.Extract(ctx, ExtractRequest{Source: "a.pdf", Language: "eng"})

	require.Error(t, err)
	assert.ErrorIs(t, err, ocr.ErrExtractionCanceled)
	assert.ErrorIs(t, err, context.Canceled)
	require.NotNil(t, doc)
	assert.Equal(t, 4, doc.PageCount)
	assert.Equal(t, int32(1), calls.Load(), "no page starts after cancellation")
	assert.Equal(t, models.Page{Number: 1, Text: "first", Status: models.PageStatusSuccess}, doc.Pages[0],
		"a page running at cancellation keeps its result")
	for _, page := range doc.Pages[1:] {
		assert.Equal(t, models.PageStatusOCRFailed, page.Status)
	}
	assert.Equal(t, []int{2, 3, 4}, doc.FailedPages())
}

func TestExtractTimedOutCallHoldsWorkerSlot(t *testing.T) {
	release := make(chan struct{})
	var running, peak atomic.Int32
	engine := &fakeEngine{
		languages: []string{"eng"},
		text: func(ctx context.Context, img image.Image, langs []string) (string, error) {
			n := running.Add(1)
			defer running.Add(-1)
			for {
				cur := peak.Load()
				if n <= cur || peak.CompareAndSwap(cur, n) {
					break
				}
			}
			if img.Bounds().Dx() == 10 {
				// Ignores ctx, like a stuck engine
				<-release
				return "late", nil
			}
			return "second", nil
		},
	}
	p := newTestPipeline(engine, []image.Image{whitePage(10, 10), whitePage(20, 10)},
		WithWorkers(1), WithPageTimeout(20*time.Millisecond))

	type result struct {
		doc *models.Document
		err error
	}
	finished := make(chan result, 1)
	go func() {
		doc, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf", Language: "eng"})
		finished <- result{doc, err}
	}()

	time.Sleep(100 * time.Millisecond)
	assert.Len(t, engine.calls(), 1, "page 2 waits for the stuck call to return")
	close(release)

	var res result
	select {
	case res = <-finished:
	case <-time.After(5 * time.Second):
		t.Fatal("extraction did not finish")
	}
	require.NoError(t, res.err)
	assert.Equal(t, models.PageStatusOCRFailed, res.doc.Pages[0].Status)
	assert.Equal(t, "second", res.doc.Pages[1].Text)
	assert.Equal(t, int32(1), peak.Load())
}

func TestExtractSharesCatalog(t *testing.T) {
	engine := &fakeEngine{
		languages: []string{"eng"},
		text:      func(context.Context, image.Image, []string) (string, error) { return "x", nil },
	}
	catalog := ocr.NewLanguageCatalog(engine, 0)
	p := newTestPipeline(engine, []image.Image{whitePage(10, 10)}, WithCatalog(catalog))

	for i := 0; i < 3; i++ {
		_, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf", Language: "eng"})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, engine.languageCalls())

	catalog.Invalidate()
	_, err := p.Extract(context.Background(), ExtractRequest{Source: "a.pdf", Language: "eng"})
	require.NoError(t, err)
	assert.Equal(t, 2, engine.languageCalls())
}
