package extract

import (
	"fmt"
	"time"

	"github.com/MangalKhundongbam/exe-semge/internal/ocr"
	"github.com/MangalKhundongbam/exe-semge/pkg/models"
)

// EditPageText returns a copy of doc with page n's text replaced and its
// status set to Edited. doc itself is never modified.
func EditPageText(doc *models.Document, n int, text string) (*models.Document, error) {
	if doc == nil {
		return nil, ocr.NewOCRError("EditPageText", ocr.ErrDocumentNotFound, "nil document")
	}
	if n < 1 || n > doc.PageCount || n > len(doc.Pages) {
		return nil, ocr.NewOCRError("EditPageText", ocr.ErrPageNotFound,
			fmt.Sprintf("page %d outside 1..%d", n, doc.PageCount))
	}

	out := doc.Clone()
	page, _ := out.Page(n)
	page.Text = text
	page.Status = models.PageStatusEdited
	out.UpdatedAt = time.Now().UTC()
	return out, nil
}
