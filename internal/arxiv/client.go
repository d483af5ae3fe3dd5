// Package arxiv talks to the arXiv Atom API: identifier parsing, metadata
// lookup, keyword search and PDF download.
package arxiv

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/local/llmarxiv/internal/metrics"
)

const (
	// DefaultBaseURL is the arXiv query endpoint.
	DefaultBaseURL = "https://export.arxiv.org/api/query"
	// DefaultInterval is the delay between requests asked for by arXiv.
	DefaultInterval = 3 * time.Second
	defaultUA       = "llm-arxiv/1.0"
)

// Options configures a Client.
type Options struct {
	BaseURL    string
	HTTPClient *http.Client
	// Interval is the minimum delay between two requests; <= 0 disables limiting.
	Interval  time.Duration
	UserAgent string
	// Logger is used when the request context carries no logger.
	Logger zerolog.Logger
}

// Client is a rate-limited arXiv API client.
type Client struct {
	baseURL   string
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
	log       zerolog.Logger
}

// NewClient builds a client from options, filling defaults.
func NewClient(opts Options) *Client {
	c := &Client{
		baseURL:   opts.BaseURL,
		http:      opts.HTTPClient,
		userAgent: opts.UserAgent,
		log:       opts.Logger,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 60 * time.Second}
	}
	if c.userAgent == "" {
		c.userAgent = defaultUA
	}
	if opts.Interval > 0 {
		c.limiter = rate.NewLimiter(rate.Every(opts.Interval), 1)
	} else {
		c.limiter = rate.NewLimiter(rate.Inf, 1)
	}
	return c
}

// Lookup fetches the metadata of a single paper by identifier.
func (c *Client) Lookup(ctx context.Context, id string) (*Paper, error) {
	q := url.Values{}
	q.Set("id_list", id)
	q.Set("max_results", "1")

	feed, err := c.query(ctx, "lookup", q)
	if err != nil {
		return nil, err
	}
	papers, rejected := feed.papers(c.logger(ctx))
	if len(papers) == 0 {
		if feed.TotalResults > 0 && rejected == 0 {
			metrics.ObserveArxiv("lookup", "empty_page")
			return nil, ErrEmptyPage
		}
		metrics.ObserveArxiv("lookup", "not_found")
		return nil, ErrNotFound
	}
	metrics.ObserveArxiv("lookup", "ok")
	p := papers[0]
	c.logger(ctx).Debug().Str("id", p.ID).Str("title", p.Title).Msg("arxiv lookup")
	return &p, nil
}

// Search runs a keyword query.
func (c *Client) Search(ctx context.Context, sq Query) ([]Paper, error) {
	sq = sq.withDefaults()
	q := url.Values{}
	q.Set("search_query", sq.Terms)
	q.Set("start", "0")
	q.Set("max_results", strconv.Itoa(sq.MaxResults))
	q.Set("sortBy", string(sq.SortBy))
	q.Set("sortOrder", string(sq.SortOrder))

	feed, err := c.query(ctx, "search", q)
	if err != nil {
		return nil, err
	}
	papers, _ := feed.papers(c.logger(ctx))
	metrics.ObserveArxiv("search", "ok")
	c.logger(ctx).Debug().Str("query", sq.Terms).Int("results", len(papers)).Int("total", feed.TotalResults).Msg("arxiv search")
	return papers, nil
}

// DownloadPDF saves the paper's PDF into dir and returns the file path.
func (c *Client) DownloadPDF(ctx context.Context, p *Paper, dir string) (string, error) {
	resp, err := c.get(ctx, p.PDFURL())
	if err != nil {
		metrics.ObserveArxiv("download", "error")
		return "", err
	}
	defer resp.Body.Close()

	path := filepath.Join(dir, p.FileName())
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("create pdf file: %w", err)
	}
	n, err := io.Copy(f, resp.Body)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		metrics.ObserveArxiv("download", "error")
		return "", fmt.Errorf("write pdf %s: %w", path, err)
	}
	metrics.ObserveArxiv("download", "ok")
	c.logger(ctx).Debug().Str("id", p.ID).Str("file", path).Int64("bytes", n).Msg("downloaded pdf")
	return path, nil
}

// logger prefers the logger attached to ctx (zerolog.Logger.WithContext) so
// lines carry the caller's paper and run fields.
func (c *Client) logger(ctx context.Context) *zerolog.Logger {
	if l := zerolog.Ctx(ctx); l.GetLevel() != zerolog.Disabled {
		return l
	}
	return &c.log
}

func (c *Client) query(ctx context.Context, endpoint string, q url.Values) (*atomFeed, error) {
	u := c.baseURL + "?" + q.Encode()
	resp, err := c.get(ctx, u)
	if err != nil {
		metrics.ObserveArxiv(endpoint, "error")
		return nil, err
	}
	defer resp.Body.Close()

	var feed atomFeed
	if err := xml.NewDecoder(resp.Body).Decode(&feed); err != nil {
		metrics.ObserveArxiv(endpoint, "error")
		return nil, fmt.Errorf("parse arxiv feed: %w", err)
	}
	return &feed, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", u, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		resp.Body.Close()
		c.logger(ctx).Warn().Str("url", u).Int("status", resp.StatusCode).Msg("arxiv request failed")
		return nil, newHTTPError(u, resp.StatusCode)
	}
	return resp, nil
}

// Atom feed structures for the arXiv API.

type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"`
	Entries      []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID              string         `xml:"id"`
	Title           string         `xml:"title"`
	Summary         string         `xml:"summary"`
	Authors         []atomAuthor   `xml:"author"`
	Categories      []atomCategory `xml:"category"`
	PrimaryCategory atomCategory   `xml:"primary_category"`
	Links           []atomLink     `xml:"link"`
	Published       string         `xml:"published"`
	Updated         string         `xml:"updated"`
	Comment         string         `xml:"comment"`
	JournalRef      string         `xml:"journal_ref"`
	DOI             string         `xml:"doi"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

type atomCategory struct {
	Term string `xml:"term,attr"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// papers converts feed entries. API error entries and entries without an
// abs id are dropped and counted in rejected.
func (f *atomFeed) papers(log *zerolog.Logger) (out []Paper, rejected int) {
	out = make([]Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		if strings.Contains(e.ID, "/api/errors") {
			log.Debug().Str("entry", e.ID).Str("summary", strings.TrimSpace(e.Summary)).Msg("arxiv error entry")
			rejected++
			continue
		}
		p := parseAtomEntry(e)
		if p.ID == "" {
			rejected++
			continue
		}
		out = append(out, p)
	}
	return out, rejected
}

func parseAtomEntry(e atomEntry) Paper {
	p := Paper{
		ID:              idFromEntry(strings.TrimSpace(e.ID)),
		EntryID:         strings.TrimSpace(e.ID),
		Title:           collapse(e.Title),
		Summary:         strings.TrimSpace(e.Summary),
		PrimaryCategory: e.PrimaryCategory.Term,
		Comment:         collapse(e.Comment),
		JournalRef:      collapse(e.JournalRef),
		DOI:             strings.TrimSpace(e.DOI),
	}
	for _, a := range e.Authors {
		p.Authors = append(p.Authors, strings.TrimSpace(a.Name))
	}
	for _, c := range e.Categories {
		p.Categories = append(p.Categories, c.Term)
	}
	for _, l := range e.Links {
		if l.Title == "pdf" || l.Type == "application/pdf" {
			p.PDF = l.Href
			break
		}
	}
	p.Published, _ = time.Parse(time.RFC3339, strings.TrimSpace(e.Published))
	p.Updated, _ = time.Parse(time.RFC3339, strings.TrimSpace(e.Updated))
	return p
}

func collapse(s string) string { return strings.Join(strings.Fields(s), " ") }
