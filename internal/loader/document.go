package loader

// Metadata keys set by the loader.
const (
	MetaSource = "source"
	MetaPage   = "page"
	MetaTitle  = "title"
)

// Document is a unit of loaded text together with its source metadata.
// Plain-text files produce one Document per file; PDF files produce one
// Document per page. Documents are immutable once created.
type Document struct {
	Text     string
	Metadata map[string]string
}
