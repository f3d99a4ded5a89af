package extract

import (
	"bytes"
	"fmt"

	"github.com/ledongthuc/pdf"
)

// extractPDF concatenates the text of every page in order. Pages without a text layer,
// or whose content stream cannot be decoded, contribute nothing.
func extractPDF(content []byte) (string, error) {
	r, err := pdf.NewReader(bytes.NewReader(content), int64(len(content)))
	if err != nil {
		return "", fmt.Errorf("open PDF: %w", err)
	}
	var buf bytes.Buffer
	numPages := r.NumPage()
	for i := 1; i <= numPages; i++ {
		buf.WriteString(pageText(r, i))
	}
	return buf.String(), nil
}

// pageText returns the plain text of page i, or "" when it has none.
// The pdf package panics on some malformed content streams.
func pageText(r *pdf.Reader, i int) (text string) {
	defer func() {
		if recover() != nil {
			text = ""
		}
	}()
	page := r.Page(i)
	if page.V.IsNull() {
		return ""
	}
	text, err := page.GetPlainText(nil)
	if err != nil {
		return ""
	}
	return text
}
