package assembler

import (
	"fmt"
	"html"
	"slices"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/local/llmarxiv/internal/imaging"
	"github.com/local/llmarxiv/internal/markdown"
	"github.com/local/llmarxiv/internal/mupdf"
	"github.com/local/llmarxiv/internal/selection"
)

// AssembleFile opens ref.Path with opener and assembles it.
func AssembleFile(opener mupdf.Opener, ref Ref, opts Options) (*Document, error) {
	doc, err := opener.Open(ref.Path)
	if err != nil {
		return nil, &ExtractionError{Path: ref.Path, Err: err}
	}
	defer doc.Close()

	scanned := false
	if opts.ProbeText {
		diag := mupdf.ProbeText(doc, 0)
		if !diag.HasExtractableText {
			scanned = true
			opts.Logger.Warn().
				Str("paper", ref.ID).
				Int("chars_in_sample", diag.TotalCharsInSample).
				Ints("sampled_pages", diag.SampledPages).
				Msg("pdf has little extractable text, it may be a scan")
		}
	}

	out, err := Assemble(doc, ref, opts)
	if err != nil {
		return nil, err
	}
	out.ScannedHint = scanned
	return out, nil
}

// Assemble walks every page of doc in order and builds the document.
func Assemble(doc mupdf.Document, ref Ref, opts Options) (*Document, error) {
	conv := opts.Converter
	if conv == nil {
		conv = markdown.NewConverter()
	}
	log := opts.Logger.With().Str("paper", ref.ID).Logger()

	var (
		markup      strings.Builder
		attachments []Attachment
		stats       Stats
		counter     int
	)

	total := doc.NumPage()
	for n := 1; n <= total; n++ {
		page, err := doc.Page(n)
		if err != nil {
			return nil, &ExtractionError{Path: ref.Path, Err: err}
		}
		stats.Pages++
		stats.Discovered += len(page.Images)

		if opts.Criteria == nil {
			markup.WriteString(page.Markup)
			markup.WriteByte('\n')
			continue
		}

		var pageAttachments []Attachment
		for _, raw := range page.Images {
			counter++
			if !opts.Criteria.Eligible(counter, page.Number) {
				continue
			}
			stats.Selected++

			res, err := imaging.Process(raw.Data, raw.Format, opts.Resize)
			if err != nil {
				stats.Dropped++
				log.Warn().Err(err).
					Int("page", page.Number).
					Int("image", raw.Index).
					Int("global_index", counter).
					Msg("dropping image")
				continue
			}
			pageAttachments = append(pageAttachments, Attachment{
				Placeholder: Placeholder(ref.ID, page.Number, raw.Index),
				Name:        imageName(page.Number, raw.Index, res.Ext),
				MediaType:   res.MediaType,
				Data:        res.Data,
				GlobalIndex: counter,
				Page:        page.Number,
				Width:       res.Width,
				Height:      res.Height,
			})
			log.Debug().
				Int("page", page.Number).
				Int("image", raw.Index).
				Int("global_index", counter).
				Int("width", res.Width).
				Int("height", res.Height).
				Str("mode", res.Mode.String()).
				Msg("kept image")
		}

		rewritten, err := replaceMarkers(page.Markup, placeholders(pageAttachments))
		if err != nil {
			return nil, &ExtractionError{Path: ref.Path, Err: err}
		}
		markup.WriteString(rewritten)
		markup.WriteByte('\n')
		attachments = append(attachments, pageAttachments...)
		stats.Kept += len(pageAttachments)
	}

	text, err := conv.Convert(markup.String())
	if err != nil {
		return nil, &ExtractionError{Path: ref.Path, Err: err}
	}

	log.Debug().
		Int("pages", stats.Pages).
		Int("discovered", stats.Discovered).
		Int("selected", stats.Selected).
		Int("kept", stats.Kept).
		Int("dropped", stats.Dropped).
		Str("criteria", selection.Describe(opts.Criteria)).
		Msg("assembled document")

	return &Document{Text: text, Attachments: attachments, Source: ref.Source, Stats: stats}, nil
}

func placeholders(atts []Attachment) []string {
	out := make([]string, len(atts))
	for i, a := range atts {
		out[i] = a.Placeholder
	}
	return out
}

func imageName(page, index int, ext string) string {
	return fmt.Sprintf("page_%d_img_%d.%s", page, index, ext)
}

// replaceMarkers swaps the k-th <img> of markup for the k-th token and
// removes markers beyond the last token. Tokens left without a marker are
// appended so that every token occurs once.
func replaceMarkers(markup string, tokens []string) (string, error) {
	if len(tokens) == 0 && !strings.Contains(strings.ToLower(markup), "<img") {
		return markup, nil
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return "", err
	}
	tokens = slices.Clone(tokens)
	doc.Find("img").Each(func(_ int, s *goquery.Selection) {
		if len(tokens) == 0 {
			s.Remove()
			return
		}
		s.ReplaceWithHtml(" " + html.EscapeString(tokens[0]) + " ")
		tokens = tokens[1:]
	})
	body := doc.Find("body")
	for _, t := range tokens {
		body.AppendHtml("<p>" + html.EscapeString(t) + "</p>")
	}
	return body.Html()
}
