package arxiv

import (
	"fmt"
	"strings"
	"time"
)

// Paper is the metadata of one arXiv entry.
type Paper struct {
	ID              string    `json:"id"`
	EntryID         string    `json:"entry_id"`
	Title           string    `json:"title"`
	Summary         string    `json:"summary"`
	Authors         []string  `json:"authors"`
	Categories      []string  `json:"categories"`
	PrimaryCategory string    `json:"primary_category,omitempty"`
	Published       time.Time `json:"published"`
	Updated         time.Time `json:"updated"`
	Comment         string    `json:"comment,omitempty"`
	JournalRef      string    `json:"journal_ref,omitempty"`
	DOI             string    `json:"doi,omitempty"`
	PDF             string    `json:"pdf_url,omitempty"`
}

// PDFURL returns the link to the paper's PDF.
func (p *Paper) PDFURL() string {
	if p.PDF != "" {
		return p.PDF
	}
	return fmt.Sprintf("https://arxiv.org/pdf/%s", p.ID)
}

// AbstractURL returns the abs page of the paper.
func (p *Paper) AbstractURL() string {
	return fmt.Sprintf("https://arxiv.org/abs/%s", p.ID)
}

// Source is the canonical reference used to tag content extracted from the
// paper: the entry id when known, the abs page otherwise.
func (p *Paper) Source() string {
	if p.EntryID != "" {
		return p.EntryID
	}
	return p.AbstractURL()
}

// FileName is the PDF file name used for downloads, e.g. "2310.06825v1.pdf".
// Old style ids have their slash replaced.
func (p *Paper) FileName() string {
	return strings.ReplaceAll(p.ID, "/", "_") + ".pdf"
}

// idFromEntry extracts "2310.06825v1" from "http://arxiv.org/abs/2310.06825v1".
// The version suffix is kept so downloads are reproducible.
func idFromEntry(entryID string) string {
	if idx := strings.LastIndex(entryID, "/abs/"); idx >= 0 {
		return entryID[idx+len("/abs/"):]
	}
	return ""
}
