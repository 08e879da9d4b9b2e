package extract

import (
	"strings"

	"github.com/MangalKhundongbam/exe-semge/pkg/models"
)

// AssembleLines joins line texts, each followed by a newline.
func AssembleLines(lines []LineResult) string {
	var b strings.Builder
	for _, l := range lines {
		b.WriteString(l.Text)
		b.WriteByte('\n')
	}
	return b.String()
}

// AssemblePage records a page outcome. A recognition error or text that is
// blank after trimming marks the page OcrFailed with empty text.
func AssemblePage(number int, text string, err error) models.Page {
	if err != nil || strings.TrimSpace(text) == "" {
		return models.Page{Number: number, Text: "", Status: models.PageStatusOCRFailed}
	}
	return models.Page{Number: number, Text: text, Status: models.PageStatusSuccess}
}
