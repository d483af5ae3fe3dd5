package assembler

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/local/llmarxiv/internal/imaging"
	"github.com/local/llmarxiv/internal/mupdf"
	"github.com/local/llmarxiv/internal/selection"
)

func jpegBytes(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetRGBA(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, nil))
	return buf.Bytes()
}

type pdfImage struct {
	w, h int
	data []byte
}

// writePDF builds a PDF with one text line and the given DCT images per page.
func writePDF(t *testing.T, pages [][]pdfImage) string {
	t.Helper()
	var (
		buf     bytes.Buffer
		offsets []int
	)
	obj := func(body string, stream []byte) int {
		offsets = append(offsets, buf.Len())
		n := len(offsets)
		fmt.Fprintf(&buf, "%d 0 obj\n%s\n", n, body)
		if stream != nil {
			buf.WriteString("stream\n")
			buf.Write(stream)
			buf.WriteString("\nendstream\n")
		}
		buf.WriteString("endobj\n")
		return n
	}

	buf.WriteString("%PDF-1.4\n")
	obj("<< /Type /Catalog /Pages 2 0 R >>", nil)
	// Kids are known only after the pages are written, so the Pages
	// object is reserved here and rewritten below.
	pagesAt := buf.Len()
	offsets = append(offsets, pagesAt)
	placeholder := strings.Repeat(" ", 200)
	fmt.Fprintf(&buf, "2 0 obj\n%s\nendobj\n", placeholder)

	var kids []string
	for p, imgs := range pages {
		var xobjs, content strings.Builder
		fmt.Fprintf(&content, "BT /F1 12 Tf 72 760 Td (Text of page %d with enough words to count as real text.) Tj ET\n", p+1)
		for i, im := range imgs {
			ref := obj(fmt.Sprintf("<< /Type /XObject /Subtype /Image /Width %d /Height %d /ColorSpace /DeviceRGB /BitsPerComponent 8 /Filter /DCTDecode /Length %d >>",
				im.w, im.h, len(im.data)), im.data)
			fmt.Fprintf(&xobjs, "/Im%d %d 0 R ", i+1, ref)
			fmt.Fprintf(&content, "q 200 0 0 100 72 %d cm /Im%d Do Q\n", 600-i*150, i+1)
		}
		cs := content.String()
		contents := obj(fmt.Sprintf("<< /Length %d >>", len(cs)), []byte(cs))
		page := obj(fmt.Sprintf("<< /Type /Page /Parent 2 0 R /MediaBox [0 0 612 792] /Contents %d 0 R /Resources << /Font << /F1 << /Type /Font /Subtype /Type1 /BaseFont /Helvetica >> >> /XObject << %s>> >> >>",
			contents, xobjs.String()), nil)
		kids = append(kids, fmt.Sprintf("%d 0 R", page))
	}

	pagesBody := fmt.Sprintf("<< /Type /Pages /Kids [%s] /Count %d >>", strings.Join(kids, " "), len(kids))
	require.LessOrEqual(t, len(pagesBody), len(placeholder))
	out := buf.Bytes()
	copy(out[pagesAt+len("2 0 obj\n"):], pagesBody+strings.Repeat(" ", len(placeholder)-len(pagesBody)))

	xref := buf.Len()
	fmt.Fprintf(&buf, "xref\n0 %d\n0000000000 65535 f \n", len(offsets)+1)
	for _, off := range offsets {
		fmt.Fprintf(&buf, "%010d 00000 n \n", off)
	}
	fmt.Fprintf(&buf, "trailer\n<< /Size %d /Root 1 0 R >>\nstartxref\n%d\n%%%%EOF\n", len(offsets)+1, xref)

	path := filepath.Join(t.TempDir(), "2310.06825.pdf")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
	return path
}

func threePagePDF(t *testing.T) string {
	t.Helper()
	red := color.RGBA{R: 220, G: 20, B: 20, A: 255}
	blue := color.RGBA{R: 20, G: 20, B: 220, A: 255}
	var pages [][]pdfImage
	for p := 0; p < 3; p++ {
		pages = append(pages, []pdfImage{
			{w: 1000, h: 500, data: jpegBytes(t, 1000, 500, red)},
			{w: 64, h: 32, data: jpegBytes(t, 64, 32, blue)},
		})
	}
	return writePDF(t, pages)
}

func TestAssembleFileWithFitz(t *testing.T) {
	path := threePagePDF(t)
	fileRef := Ref{ID: "2310.06825", Source: ref.Source, Path: path}

	tests := []struct {
		name     string
		criteria selection.Criteria
		global   []int
		names    []string
	}{
		{
			name:     "all",
			criteria: selection.All{},
			global:   []int{1, 2, 3, 4, 5, 6},
		},
		{
			name:     "page 2",
			criteria: selection.Pages{Pages: selection.NewSet(2)},
			global:   []int{3, 4},
			names:    []string{"page_2_img_1.jpg", "page_2_img_2.jpg"},
		},
		{
			name:     "global 2 and 5",
			criteria: selection.Global{Indices: selection.NewSet(2, 5)},
			global:   []int{2, 5},
			names:    []string{"page_1_img_2.jpg", "page_3_img_1.jpg"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := AssembleFile(mupdf.FitzOpener{}, fileRef, Options{
				Criteria:  tt.criteria,
				Resize:    imaging.Resize{Enabled: true, MaxSize: 512},
				ProbeText: true,
			})
			require.NoError(t, err)
			assert.Equal(t, 3, out.Stats.Pages)
			assert.Equal(t, 6, out.Stats.Discovered)
			assert.Zero(t, out.Stats.Dropped)
			assert.NotContains(t, out.Text, "data:image")
			assert.Contains(t, out.Text, "Text of page 2")

			var global []int
			var names []string
			for _, a := range out.Attachments {
				global = append(global, a.GlobalIndex)
				names = append(names, a.Name)
				assert.Equal(t, "image/jpeg", a.MediaType)
				if a.Width > 64 {
					assert.Equal(t, 512, a.Width)
					assert.Equal(t, 256, a.Height)
				}
			}
			assert.Equal(t, tt.global, global)
			if tt.names != nil {
				assert.Equal(t, tt.names, names)
			}
			requireInvariant(t, out)
		})
	}
}
