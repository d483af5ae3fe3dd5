// Package assembler turns an open PDF into Markdown text plus the ordered
// list of image attachments referenced from it by placeholder.
package assembler

import (
	"fmt"

	"github.com/rs/zerolog"

	"github.com/local/llmarxiv/internal/imaging"
	"github.com/local/llmarxiv/internal/markdown"
	"github.com/local/llmarxiv/internal/selection"
)

// Ref identifies the paper a document is assembled for.
type Ref struct {
	// ID is the arXiv identifier used in placeholders.
	ID string
	// Source is the canonical entry URL reported with the document.
	Source string
	// Path is the local PDF path, used in errors.
	Path string
}

// Options control image selection and processing.
type Options struct {
	// Criteria selects images; nil means no images at all.
	Criteria selection.Criteria
	Resize   imaging.Resize
	Logger   zerolog.Logger
	// Converter defaults to markdown.NewConverter().
	Converter *markdown.Converter
	// ProbeText runs the extractable-text check in AssembleFile.
	ProbeText bool
}

// Attachment is a processed image referenced from the text by Placeholder.
type Attachment struct {
	Placeholder string
	Name        string
	MediaType   string
	Data        []byte
	GlobalIndex int
	Page        int
	Width       int
	Height      int
}

// Stats counts what happened to the images of one document.
type Stats struct {
	Pages      int `json:"pages"`
	Discovered int `json:"discovered"`
	Selected   int `json:"selected"`
	Kept       int `json:"kept"`
	Dropped    int `json:"dropped"`
}

// Skipped is the number of discovered images the criteria did not select.
func (s Stats) Skipped() int { return s.Discovered - s.Selected }

// Document is the assembled result. Every attachment placeholder occurs in
// Text exactly once, in attachment order.
type Document struct {
	Text        string
	Attachments []Attachment
	Source      string
	Stats       Stats
	// ScannedHint is set when the text probe found almost no text.
	ScannedHint bool
}

// ExtractionError reports that the PDF could not be opened or read.
type ExtractionError struct {
	Path string
	Err  error
}

func (e *ExtractionError) Error() string {
	return fmt.Sprintf("failed to extract content from PDF %s: %v", e.Path, e.Err)
}

func (e *ExtractionError) Unwrap() error { return e.Err }

// Placeholder is the token that stands for an image in the text.
func Placeholder(id string, page, index int) string {
	return fmt.Sprintf("[IMAGE: %s/page_%d_img_%d]", id, page, index)
}
