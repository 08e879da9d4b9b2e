package extract

import (
	"context"
	"errors"
	"fmt"
	"image"
	"path/filepath"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/MangalKhundongbam/exe-semge/internal/imaging"
	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
	"github.com/MangalKhundongbam/exe-semge/internal/raster"
	"github.com/MangalKhundongbam/exe-semge/pkg/models"
)

// DefaultPageTimeout bounds the recognition time of a single page.
const DefaultPageTimeout = 5 * time.Minute

// ExtractRequest describes one extraction.
type ExtractRequest struct {
	// Source is the path of the paged document to rasterize.
	Source string

	// Language is "auto" (default) or a "+"-joined list such as "mni+eng".
	Language string

	// DocumentID is used as the document id; a UUID is generated when empty.
	DocumentID string

	// DisplayName is recorded as the source file name. Default: base of Source.
	DisplayName string
}

// Pipeline orchestrates extraction across all pages of a document.
type Pipeline struct {
	engine     ocr.Engine
	rasterizer raster.Rasterizer
	catalog    *ocr.LanguageCatalog
	resolver   LanguageResolver
	vocabulary Vocabulary

	primary     string
	secondary   string
	padding     int
	workers     int
	pageTimeout time.Duration

	log   zerolog.Logger
	now   func() time.Time
	newID func() string
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithWorkers sets the number of pages processed concurrently.
func WithWorkers(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.workers = n
		}
	}
}

// WithPageTimeout bounds each page's processing. Zero disables the bound.
func WithPageTimeout(d time.Duration) Option {
	return func(p *Pipeline) { p.pageTimeout = d }
}

// WithVocabulary replaces the line classifier's reference vocabulary.
func WithVocabulary(v Vocabulary) Option {
	return func(p *Pipeline) { p.vocabulary = v }
}

// WithHybridPair sets the language pair that triggers line-level switching.
func WithHybridPair(primary, secondary string) Option {
	return func(p *Pipeline) {
		p.primary = primary
		p.secondary = secondary
	}
}

// WithCropPadding sets the padding around re-recognized lines.
func WithCropPadding(px int) Option {
	return func(p *Pipeline) {
		if px >= 0 {
			p.padding = px
		}
	}
}

// WithResolver replaces the script-to-language resolver.
func WithResolver(r LanguageResolver) Option {
	return func(p *Pipeline) { p.resolver = r }
}

// WithCatalog shares a language catalog between pipelines.
func WithCatalog(c *ocr.LanguageCatalog) Option {
	return func(p *Pipeline) { p.catalog = c }
}

// WithLogger sets the logger used for page and classifier events.
func WithLogger(log zerolog.Logger) Option {
	return func(p *Pipeline) { p.log = log }
}

// WithClock overrides the document timestamp source.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// NewPipeline creates a pipeline over engine and rasterizer.
func NewPipeline(engine ocr.Engine, rasterizer raster.Rasterizer, opts ...Option) *Pipeline {
	p := &Pipeline{
		engine:      engine,
		rasterizer:  rasterizer,
		resolver:    NewLanguageResolver(),
		vocabulary:  DefaultVocabulary(),
		primary:     "eng",
		secondary:   "mni",
		padding:     DefaultCropPadding,
		workers:     runtime.NumCPU(),
		pageTimeout: DefaultPageTimeout,
		log:         zerolog.Nop(),
		now:         func() time.Time { return time.Now().UTC() },
		newID:       uuid.NewString,
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.catalog == nil {
		p.catalog = ocr.NewLanguageCatalog(engine, 0)
	}
	return p
}

// Catalog returns the pipeline's language catalog.
func (p *Pipeline) Catalog() *ocr.LanguageCatalog { return p.catalog }

// Extract rasterizes the source and recognizes every page.
//
// Rasterization and capability failures abort with no document. Page
// failures are recorded as OcrFailed pages. If ctx is canceled, pages not
// yet started are recorded as OcrFailed and the partial document is returned
// with an error wrapping ocr.ErrExtractionCanceled.
func (p *Pipeline) Extract(ctx context.Context, req ExtractRequest) (*models.Document, error) {
	start := time.Now()

	images, err := p.rasterizer.Rasterize(ctx, req.Source)
	if err != nil {
		if !errors.Is(err, ocr.ErrRasterization) {
			err = ocr.Wrapf(ocr.ErrRasterization, err, "Rasterize %s", req.Source)
		}
		return nil, err
	}
	if len(images) == 0 {
		return nil, ocr.NewOCRError("Rasterize", ocr.ErrRasterization, "source produced no pages")
	}

	installed, err := p.catalog.Languages(ctx)
	if err != nil {
		return nil, err
	}
	if len(installed) == 0 {
		return nil, ocr.NewOCRError("Extract", ocr.ErrNoLanguageAvailable, "engine reports no installed languages")
	}

	doc := &models.Document{
		ID:         req.DocumentID,
		SourceFile: req.DisplayName,
		Language:   req.Language,
	}
	if doc.ID == "" {
		doc.ID = p.newID()
	}
	if doc.SourceFile == "" {
		doc.SourceFile = filepath.Base(req.Source)
	}
	if IsAuto(doc.Language) {
		doc.Language = AutoLanguage
	}

	log := p.log.With().Str("document_id", doc.ID).Logger()
	log.Info().
		Str("source", doc.SourceFile).
		Str("language", doc.Language).
		Int("pages", len(images)).
		Strs("installed", installed).
		Msg("Starting extraction")

	pages, skipped := p.processPages(ctx, images, doc.Language, installed, log)

	doc.Pages = pages
	doc.PageCount = len(pages)
	doc.CreatedAt = p.now()
	doc.UpdatedAt = doc.CreatedAt

	log.Info().
		Int("failed", len(doc.FailedPages())).
		Int("skipped", skipped).
		Dur("duration", time.Since(start)).
		Msg("Extraction finished")

	if err := ctx.Err(); err != nil {
		return doc, fmt.Errorf("%w with %d of %d pages unstarted: %w", ocr.ErrExtractionCanceled, skipped, len(pages), err)
	}
	return doc, nil
}

type pageJob struct {
	index int
	image image.Image
}

// processPages fans pages out to a bounded worker pool. Results are written
// by index so page order never depends on completion order.
func (p *Pipeline) processPages(ctx context.Context, images []image.Image, requested string, installed []string, log zerolog.Logger) ([]models.Page, int) {
	jobs := make(chan pageJob, len(images))
	pages := make([]models.Page, len(images))
	skipped := make([]bool, len(images))

	workers := min(p.workers, len(images))
	if workers < 1 {
		workers = 1
	}

	// A slot is held until the engine call returns, even past a page timeout,
	// so abandoned calls still count against the worker limit.
	slots := make(chan struct{}, workers)

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()

			for job := range jobs {
				number := job.index + 1
				if !acquireSlot(ctx, slots) {
					pages[job.index] = AssemblePage(number, "", ctx.Err())
					skipped[job.index] = true
					continue
				}
				log.Debug().Int("worker", workerID).Int("page", number).Msg("Worker processing page")
				pages[job.index] = p.processPage(ctx, number, job.image, requested, installed, log, func() { <-slots })
			}
		}(w)
	}

	for i, img := range images {
		jobs <- pageJob{index: i, image: img}
	}
	close(jobs)

	wg.Wait()

	n := 0
	for _, s := range skipped {
		if s {
			n++
		}
	}
	return pages, n
}

type pageOutcome struct {
	text      string
	languages LanguageSet
	hybrid    bool
	err       error
}

// acquireSlot blocks until a worker slot is free. It reports false once ctx
// is done, which is the only point where cancellation stops a page.
func acquireSlot(ctx context.Context, slots chan struct{}) bool {
	select {
	case slots <- struct{}{}:
	case <-ctx.Done():
		return false
	}
	if ctx.Err() != nil {
		<-slots
		return false
	}
	return true
}

// processPage recognizes one page under the page timeout. Recognition runs
// in its own goroutine so an engine that ignores ctx cannot hold the worker
// past the deadline; release is called when that goroutine returns.
//
// The page context is detached from the caller's cancellation. A page that
// has started runs to completion (or to its own timeout) and keeps its result.
func (p *Pipeline) processPage(ctx context.Context, number int, img image.Image, requested string, installed []string, log zerolog.Logger, release func()) models.Page {
	start := time.Now()
	pageCtx := context.WithoutCancel(ctx)
	if p.pageTimeout > 0 {
		var cancel context.CancelFunc
		pageCtx, cancel = context.WithTimeout(pageCtx, p.pageTimeout)
		defer cancel()
	}

	done := make(chan pageOutcome, 1)
	go func() {
		defer release()
		defer func() {
			if r := recover(); r != nil {
				done <- pageOutcome{err: ocr.NewOCRError("processPage", ocr.ErrPageOCRFailed, fmt.Sprintf("panic: %v", r))}
			}
		}()
		done <- p.recognizePage(pageCtx, img, requested, installed, log.With().Int("page", number).Logger())
	}()

	var out pageOutcome
	select {
	case out = <-done:
		// Text that arrives after the page deadline is discarded
		if out.err == nil && pageCtx.Err() != nil {
			out.err = pageCtx.Err()
		}
	case <-pageCtx.Done():
		out.err = pageCtx.Err()
	}

	page := AssemblePage(number, out.text, out.err)

	event := log.Info()
	if page.Status == models.PageStatusOCRFailed {
		event = log.Warn().Err(out.err)
	}
	event.
		Int("page", number).
		Str("languages", out.languages.String()).
		Bool("hybrid", out.hybrid).
		Str("status", string(page.Status)).
		Dur("duration", time.Since(start)).
		Msg("Page processed")

	return page
}

func (p *Pipeline) recognizePage(ctx context.Context, img image.Image, requested string, installed []string, log zerolog.Logger) pageOutcome {
	bin := imaging.Binarize(img)

	script := ocr.ScriptUnknown
	if IsAuto(requested) {
		script = ScriptDetector{Engine: p.engine, Log: log}.Detect(ctx, bin)
	}

	set, err := p.resolver.Resolve(requested, script, installed)
	if err != nil {
		return pageOutcome{err: err}
	}
	out := pageOutcome{languages: set}

	if p.hybridApplies(set) {
		out.hybrid = true
		regions, err := LineSegmenter{Engine: p.engine}.SegmentPage(ctx, bin, p.primary)
		if err != nil {
			out.err = err
			return out
		}
		recognizer := HybridRecognizer{
			Engine:     p.engine,
			Classifier: LineClassifier{Vocabulary: p.vocabulary, Log: log},
			Padding:    p.padding,
			Primary:    p.primary,
			Secondary:  p.secondary,
			Log:        log,
		}
		out.text = AssembleLines(recognizer.Recognize(ctx, bin, regions))
		return out
	}

	out.text, out.err = p.engine.RecognizeText(ctx, bin, set.Codes())
	return out
}

func (p *Pipeline) hybridApplies(set LanguageSet) bool {
	return p.primary != "" && p.secondary != "" && p.primary != p.secondary &&
		set.Contains(p.primary) && set.Contains(p.secondary)
}
