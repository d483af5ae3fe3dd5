// Package mupdf reads PDF pages as HTML markup plus their embedded raster
// images. The default backend is go-fitz (MuPDF); the interfaces let tests
// and alternate backends stand in.
package mupdf

// RawImage is an embedded image as found on a page.
type RawImage struct {
	// Index is the 1-based position of the image on its page, in discovery order.
	Index int
	// Format is the declared source encoding as an extension ("jpeg", "png", ...).
	// Empty when unknown.
	Format string
	Data   []byte
}

// Page is one page of a document.
type Page struct {
	// Number is 1-based.
	Number int
	// Markup is the page HTML. Each embedded image appears as one <img> marker,
	// in the same order as Images.
	Markup string
	Images []RawImage
}

// Document is an open PDF.
type Document interface {
	NumPage() int
	// Page returns the 1-based page n.
	Page(n int) (*Page, error)
	Close() error
}

// Opener abstracts opening a PDF path into a Document.
type Opener interface {
	Open(path string) (Document, error)
}

// OpenerFunc adapts a function to Opener.
type OpenerFunc func(path string) (Document, error)

func (f OpenerFunc) Open(path string) (Document, error) { return f(path) }
