package mupdf

import (
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
)

// PageProbe captures the result of probing a single page.
type PageProbe struct {
	Page      int    `json:"page"`
	CharCount int    `json:"char_count"`
	Err       string `json:"err,omitempty"`
}

// Diagnostics describes a text-extractability check.
type Diagnostics struct {
	TotalPages         int         `json:"total_pages"`
	SampledPages       []int       `json:"sampled_pages"`
	TotalCharsInSample int         `json:"total_chars_in_sample"`
	Threshold          int         `json:"threshold"`
	Probes             []PageProbe `json:"probes"`
	HasExtractableText bool        `json:"has_extractable_text"`
	DurationMs         int64       `json:"duration_ms"`
}

// DefaultThreshold is used when a non-positive threshold is passed in.
const DefaultThreshold = 300

var whitespaceRegex = regexp.MustCompile(`\s+`)

// ProbeText samples a few pages of doc and reports whether they carry enough
// visible text. A scanned PDF renders to markup with images and almost no
// text, which later yields an empty fragment.
func ProbeText(doc Document, threshold int) *Diagnostics {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	start := time.Now()
	total := doc.NumPage()
	diag := &Diagnostics{TotalPages: total, Threshold: threshold, SampledPages: sampleIndices(total)}

	for _, n := range diag.SampledPages {
		probe := PageProbe{Page: n}
		page, err := doc.Page(n)
		if err != nil {
			probe.Err = err.Error()
			diag.Probes = append(diag.Probes, probe)
			continue
		}
		probe.CharCount = visibleChars(page.Markup)
		diag.TotalCharsInSample += probe.CharCount
		diag.Probes = append(diag.Probes, probe)
		if diag.TotalCharsInSample >= threshold {
			break
		}
	}

	diag.HasExtractableText = diag.TotalCharsInSample >= threshold
	diag.DurationMs = time.Since(start).Milliseconds()
	return diag
}

// visibleChars counts non-whitespace runes in the text content of markup.
func visibleChars(markup string) int {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return 0
	}
	doc.Find("style, script").Remove()
	return len([]rune(whitespaceRegex.ReplaceAllString(doc.Text(), "")))
}

// sampleIndices picks 1-based pages: all of them up to 5, otherwise first,
// middle and last plus two random distinct pages.
func sampleIndices(total int) []int {
	if total <= 0 {
		return []int{}
	}
	if total <= 5 {
		idx := make([]int, total)
		for i := range idx {
			idx[i] = i + 1
		}
		return idx
	}

	base := map[int]struct{}{1: {}, total/2 + 1: {}, total: {}}
	rnd := rand.New(rand.NewSource(time.Now().UnixNano()))
	for len(base) < 5 {
		base[rnd.Intn(total)+1] = struct{}{}
	}

	out := make([]int, 0, len(base))
	for i := range base {
		out = append(out, i)
	}
	sort.Ints(out)
	return out
}
