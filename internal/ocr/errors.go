package ocr

import (
	"errors"
	"fmt"
)

// Extraction errors. Only ErrRasterization, ErrNoLanguageAvailable and
// ErrExtractionCanceled abort a whole document; line and page failures are
// absorbed into page status.
var (
	// ErrRasterization is returned when the source document cannot be opened
	// or the page renderer is unavailable.
	ErrRasterization = errors.New("source document could not be rasterized")

	// ErrNoLanguageAvailable is returned when the recognition engine reports
	// zero installed languages.
	ErrNoLanguageAvailable = errors.New("no recognition language available")

	// ErrScriptDetection marks a failed orientation/script detection run.
	// It never leaves the extract package; the detector falls back to Latin.
	ErrScriptDetection = errors.New("script detection failed")

	// ErrLineRecognition marks a failed re-recognition of a single line crop.
	ErrLineRecognition = errors.New("line re-recognition failed")

	// ErrPageOCRFailed marks a page that produced no usable text.
	ErrPageOCRFailed = errors.New("page produced no text")

	// ErrPageNotFound is returned when an edit targets a page outside 1..PageCount.
	ErrPageNotFound = errors.New("page not found in document")

	// ErrDocumentNotFound is returned by stores for unknown document ids.
	ErrDocumentNotFound = errors.New("document not found")

	// ErrExtractionCanceled is returned when the caller aborts an extraction.
	ErrExtractionCanceled = errors.New("extraction was canceled")

	// ErrEngineUnavailable is returned when the recognition engine cannot be
	// constructed or its binary is missing.
	ErrEngineUnavailable = errors.New("recognition engine unavailable")
)

// OCRError wraps errors with additional context about the failing operation.
type OCRError struct {
	// Op is the operation that failed (e.g., "Rasterize", "RecognizeText").
	Op string

	// Err is the underlying error.
	Err error

	// Details provides additional context about the failure.
	Details string
}

// Error implements the error interface.
func (e *OCRError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("ocr: %s failed: %s: %v", e.Op, e.Details, e.Err)
	}
	return fmt.Sprintf("ocr: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error for error unwrapping.
func (e *OCRError) Unwrap() error {
	return e.Err
}

// Is implements error matching for Go 1.13+ error handling.
func (e *OCRError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewOCRError creates a new OCRError with the specified operation and underlying error.
func NewOCRError(op string, err error, details string) *OCRError {
	return &OCRError{
		Op:      op,
		Err:     err,
		Details: details,
	}
}

// WrapOCRError wraps an error as an OCRError if it isn't already one.
func WrapOCRError(op string, err error, details string) error {
	if err == nil {
		return nil
	}

	var ocrErr *OCRError
	if errors.As(err, &ocrErr) {
		return err // Already wrapped
	}

	return NewOCRError(op, err, details)
}

// Wrapf attaches a sentinel to a cause so both match with errors.Is.
func Wrapf(sentinel, cause error, format string, args ...any) error {
	return &OCRError{
		Op:      fmt.Sprintf(format, args...),
		Err:     fmt.Errorf("%w: %w", sentinel, cause),
		Details: "",
	}
}
