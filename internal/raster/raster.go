// Package raster turns paged source documents into ordered page images.
//
// PDFs are validated and counted with pdfcpu, then rendered with poppler's
// pdftoppm. Single-image sources (PNG, JPEG, TIFF, BMP) are decoded directly.
// Every failure wraps ocr.ErrRasterization and is fatal for the document.
package raster

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/jpeg"
	"image/png"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"

	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
)

// DefaultDPI is the render resolution for PDF pages.
const DefaultDPI = 300

// Rasterizer converts a source document into page images in source order.
type Rasterizer interface {
	Rasterize(ctx context.Context, source string) ([]image.Image, error)
}

// Options configures rasterization.
type Options struct {
	// PdftoppmPath is the poppler renderer binary. Default: "pdftoppm".
	PdftoppmPath string

	// DPI is the render resolution. Default: DefaultDPI.
	DPI int

	// TempDir is where rendered pages are written. Default: os.TempDir().
	TempDir string
}

// ForSource returns a rasterizer suited to the source's file extension.
func ForSource(source string, opts Options) Rasterizer {
	switch strings.ToLower(filepath.Ext(source)) {
	case ".png", ".jpg", ".jpeg", ".tif", ".tiff", ".bmp":
		return ImageRasterizer{}
	default:
		return NewPDFRasterizer(opts)
	}
}

// Auto dispatches on each source's extension.
type Auto struct {
	Options Options
}

func (a Auto) Rasterize(ctx context.Context, source string) ([]image.Image, error) {
	return ForSource(source, a.Options).Rasterize(ctx, source)
}

// PDFRasterizer renders PDF pages with pdftoppm.
type PDFRasterizer struct {
	opts       Options
	pageCount  func(path string) (int, error)
	lookPath   func(file string) (string, error)
	runCommand func(ctx context.Context, name string, args ...string) error
}

// NewPDFRasterizer creates a PDF rasterizer with defaults applied.
func NewPDFRasterizer(opts Options) *PDFRasterizer {
	if opts.PdftoppmPath == "" {
		opts.PdftoppmPath = "pdftoppm"
	}
	if opts.DPI <= 0 {
		opts.DPI = DefaultDPI
	}
	return &PDFRasterizer{
		opts:       opts,
		pageCount:  api.PageCountFile,
		lookPath:   exec.LookPath,
		runCommand: runCommand,
	}
}

// Rasterize renders every page of the PDF at source.
func (p *PDFRasterizer) Rasterize(ctx context.Context, source string) ([]image.Image, error) {
	const op = "Rasterize"

	if _, err := os.Stat(source); err != nil {
		return nil, ocr.Wrapf(ocr.ErrRasterization, err, "%s %s", op, source)
	}

	count, err := p.pageCount(source)
	if err != nil {
		return nil, ocr.Wrapf(ocr.ErrRasterization, err, "%s %s: read PDF", op, source)
	}
	if count == 0 {
		return nil, ocr.Wrapf(ocr.ErrRasterization, fmt.Errorf("document has no pages"), "%s %s", op, source)
	}

	renderer, err := p.lookPath(p.opts.PdftoppmPath)
	if err != nil {
		return nil, ocr.Wrapf(ocr.ErrRasterization, err, "%s: renderer unavailable", op)
	}

	workDir, err := os.MkdirTemp(p.opts.TempDir, "raster-*")
	if err != nil {
		return nil, ocr.Wrapf(ocr.ErrRasterization, err, "%s: create work dir", op)
	}
	defer os.RemoveAll(workDir)

	prefix := filepath.Join(workDir, "page")
	args := []string{"-png", "-r", strconv.Itoa(p.opts.DPI), source, prefix}
	if err := p.runCommand(ctx, renderer, args...); err != nil {
		return nil, ocr.Wrapf(ocr.ErrRasterization, err, "%s %s: render", op, source)
	}

	paths, err := renderedPages(prefix)
	if err != nil {
		return nil, ocr.Wrapf(ocr.ErrRasterization, err, "%s %s", op, source)
	}
	if len(paths) != count {
		return nil, ocr.Wrapf(ocr.ErrRasterization,
			fmt.Errorf("rendered %d pages, document has %d", len(paths), count), "%s %s", op, source)
	}

	images := make([]image.Image, 0, len(paths))
	for _, path := range paths {
		img, err := decodeFile(path, png.Decode)
		if err != nil {
			return nil, ocr.Wrapf(ocr.ErrRasterization, err, "%s %s: decode %s", op, source, filepath.Base(path))
		}
		images = append(images, img)
	}
	return images, nil
}

// renderedPages returns pdftoppm output files sorted by numeric page index.
func renderedPages(prefix string) ([]string, error) {
	matches, err := filepath.Glob(prefix + "-*.png")
	if err != nil {
		return nil, err
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no rendered pages found")
	}
	sort.Slice(matches, func(i, j int) bool {
		return pageIndexFromName(matches[i]) < pageIndexFromName(matches[j])
	})
	return matches, nil
}

func pageIndexFromName(path string) int {
	base := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	idx := strings.LastIndex(base, "-")
	if idx < 0 {
		return -1
	}
	n, err := strconv.Atoi(base[idx+1:])
	if err != nil {
		return -1
	}
	return n
}

// ImageRasterizer treats a single image file as a one-page document.
type ImageRasterizer struct{}

func (ImageRasterizer) Rasterize(ctx context.Context, source string) ([]image.Image, error) {
	img, err := decodeFile(source, func(r io.Reader) (image.Image, error) {
		img, _, err := image.Decode(r)
		return img, err
	})
	if err != nil {
		return nil, ocr.Wrapf(ocr.ErrRasterization, err, "Rasterize %s", source)
	}
	return []image.Image{img}, nil
}

func decodeFile(path string, decode func(io.Reader) (image.Image, error)) (image.Image, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return decode(bytes.NewReader(data))
}

func runCommand(ctx context.Context, name string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, msg)
		}
		return fmt.Errorf("%s failed: %w", filepath.Base(name), err)
	}
	return nil
}
