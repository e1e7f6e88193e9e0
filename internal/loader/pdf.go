package loader

import (
	"fmt"

	"github.com/ledongthuc/pdf"
)

// loadPDF extracts text from a PDF file, producing one Document per page.
// The page index is recorded in the metadata, 0-based. The pdf package can
// panic on malformed files, so extraction is guarded with a recover that
// turns the panic into an error (the caller skips the file with a warning).
func loadPDF(absPath, relPath string) (docs []Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			docs = nil
			err = fmt.Errorf("pdf extraction panicked: %v", r)
		}
	}()

	f, reader, err := pdf.Open(absPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open pdf: %w", err)
	}
	defer func() {
		_ = f.Close()
	}()

	numPages := reader.NumPage()
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}

		pageText, err := page.GetPlainText(nil)
		if err != nil {
			return nil, fmt.Errorf("failed to extract text from page %d: %w", i, err)
		}

		docs = append(docs, Document{
			Text:     pageText,
			Metadata: pageMetadata(relPath, i-1),
		})
	}

	return docs, nil
}
