package mupdf

import (
	"fmt"

	"github.com/gen2brain/go-fitz"
	"github.com/rs/zerolog"
)

// FitzOpener opens documents with go-fitz (embedded MuPDF, no external tools needed).
type FitzOpener struct {
	Logger zerolog.Logger
}

// Open implements Opener.
func (o FitzOpener) Open(path string) (Document, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open PDF: %w", err)
	}
	return &fitzDocument{doc: doc, path: path, log: o.Logger}, nil
}

type fitzDocument struct {
	doc  *fitz.Document
	path string
	log  zerolog.Logger
}

func (d *fitzDocument) NumPage() int { return d.doc.NumPage() }

func (d *fitzDocument) Close() error { return d.doc.Close() }

// Page renders page n as HTML. MuPDF inlines every embedded image as an
// <img> with a data: URI, which is where the raw image bytes come from.
func (d *fitzDocument) Page(n int) (*Page, error) {
	// go-fitz uses 0-based indexing
	if n < 1 || n > d.doc.NumPage() {
		return nil, fmt.Errorf("page %d out of range (document has %d pages)", n, d.doc.NumPage())
	}
	html, err := d.doc.HTML(n-1, false)
	if err != nil {
		return nil, fmt.Errorf("failed to render page %d: %w", n, err)
	}
	images, err := imagesFromMarkup(html, d.log)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page %d markup: %w", n, err)
	}

	d.log.Debug().
		Str("pdf", d.path).
		Int("page", n).
		Int("markup_chars", len(html)).
		Int("images", len(images)).
		Msg("rendered page with go-fitz")

	return &Page{Number: n, Markup: html, Images: images}, nil
}

// Version is the MuPDF version go-fitz was built against.
func Version() string { return fitz.FzVersion }
