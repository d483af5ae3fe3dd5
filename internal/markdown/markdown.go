// Package markdown turns page HTML into Markdown with image embeds removed.
package markdown

import (
	"fmt"
	"regexp"
	"strings"

	md "github.com/JohannesKaufmann/html-to-markdown"
)

// DefaultStripTags are removed from the markup before conversion.
var DefaultStripTags = []string{"img"}

// imageEmbed matches Markdown image syntax that survived tag stripping.
var imageEmbed = regexp.MustCompile(`!\[[^\]]*\]\([^)]*\)`)

var blankRuns = regexp.MustCompile(`\n{3,}`)

// Converter converts HTML to Markdown.
type Converter struct {
	conv *md.Converter
}

// NewConverter returns a converter that drops the given tags (DefaultStripTags
// when none are given). Escaping is disabled so placeholder brackets and
// paper text come through verbatim.
func NewConverter(stripTags ...string) *Converter {
	if len(stripTags) == 0 {
		stripTags = DefaultStripTags
	}
	conv := md.NewConverter("", true, &md.Options{EscapeMode: "disabled"})
	conv.Remove(stripTags...)
	return &Converter{conv: conv}
}

// Convert renders html as Markdown.
func (c *Converter) Convert(html string) (string, error) {
	if strings.TrimSpace(html) == "" {
		return "", nil
	}
	out, err := c.conv.ConvertString(html)
	if err != nil {
		return "", fmt.Errorf("markdown conversion failed: %w", err)
	}
	out = imageEmbed.ReplaceAllString(out, "")
	out = blankRuns.ReplaceAllString(out, "\n\n")
	return strings.TrimSpace(out), nil
}
