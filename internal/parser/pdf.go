package parser

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/ledongthuc/pdf"
	"github.com/rs/zerolog/log"

	"pdf-rag/internal/models"
)

const opExtract = "extract pdf"

// ExtractPDFBytes extracts the text of an in-memory PDF.
func ExtractPDFBytes(data []byte) (*models.Document, error) {
	if len(data) == 0 {
		return nil, models.Errorf(models.KindFormat, opExtract, "empty file")
	}
	return ExtractPDF(bytes.NewReader(data), int64(len(data)))
}

// ExtractPDF concatenates the plain text of every page in document order.
// Pages without a text layer contribute an empty string. Input that is not a
// parseable PDF fails with a FormatError.
func ExtractPDF(r io.ReaderAt, size int64) (doc *models.Document, err error) {
	defer func() {
		if p := recover(); p != nil {
			doc = nil
			err = models.Errorf(models.KindFormat, opExtract, "malformed pdf: %v", p)
		}
	}()

	reader, err := pdf.NewReader(r, size)
	if err != nil {
		return nil, models.NewError(models.KindFormat, opExtract, err)
	}

	doc = &models.Document{}
	var text strings.Builder
	offset := 0
	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		pageText := extractPage(reader, i)
		doc.Pages = append(doc.Pages, models.Page{Number: i, Text: pageText, Offset: offset})
		text.WriteString(pageText)
		offset += utf8.RuneCountInString(pageText)
	}
	doc.Text = text.String()
	return doc, nil
}

// extractPage never fails: a page that cannot be read contributes nothing.
func extractPage(reader *pdf.Reader, num int) (text string) {
	defer func() {
		if p := recover(); p != nil {
			log.Warn().Int("page", num).Str("panic", fmt.Sprint(p)).Msg("Skipping unreadable page")
			text = ""
		}
	}()

	page := reader.Page(num)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		log.Warn().Err(err).Int("page", num).Msg("Skipping page without extractable text")
		return ""
	}
	return text
}
