package models

import "time"

// PageStatus records how a page's text was produced.
type PageStatus string

const (
	PageStatusSuccess   PageStatus = "success"    // Text came from recognition
	PageStatusOCRFailed PageStatus = "ocr_failed" // Recognition produced no usable text
	PageStatusEdited    PageStatus = "edited"     // Text was replaced by a user edit
)

// Page is one rasterized page of an extracted document.
type Page struct {
	Number int        `json:"page_number"` // 1-based, contiguous
	Text   string     `json:"text"`        // Assembled text, one recognized line per row
	Status PageStatus `json:"status"`
}

// Document is the result of one extraction: every page of one source, in order.
type Document struct {
	// Core identifiers
	ID         string `json:"id"`          // Opaque document identifier
	SourceFile string `json:"source_file"` // Display name of the uploaded source
	Language   string `json:"language"`    // Requested language spec ("auto" or "mni+eng")

	// Content
	PageCount int    `json:"page_count"` // Always equals len(Pages)
	Pages     []Page `json:"pages"`

	// Timestamps
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Summary is the listing view of a stored document.
type Summary struct {
	ID         string `json:"id"`
	SourceFile string `json:"source_file"`
	PageCount  int    `json:"page_count"`
}

// Match is a document with the pages whose text matched a search query.
type Match struct {
	Summary
	Pages []Page `json:"matches"`
}

// Page returns the page with the given 1-based number.
func (d *Document) Page(number int) (*Page, bool) {
	if number < 1 || number > len(d.Pages) {
		return nil, false
	}
	return &d.Pages[number-1], true
}

// Clone returns a deep copy of the document.
func (d *Document) Clone() *Document {
	if d == nil {
		return nil
	}
	out := *d
	out.Pages = make([]Page, len(d.Pages))
	copy(out.Pages, d.Pages)
	return &out
}

func (d *Document) Summary() Summary {
	return Summary{ID: d.ID, SourceFile: d.SourceFile, PageCount: d.PageCount}
}

// FailedPages returns the numbers of pages whose recognition failed.
func (d *Document) FailedPages() []int {
	var failed []int
	for _, p := range d.Pages {
		if p.Status == PageStatusOCRFailed {
			failed = append(failed, p.Number)
		}
	}
	return failed
}
