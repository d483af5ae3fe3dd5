// Package loader runs the whole paper pipeline for one argument: identifier
// extraction, metadata lookup, download, verification, assembly and export.
package loader

import (
	"context"
	"errors"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/local/llmarxiv/internal/arxiv"
	"github.com/local/llmarxiv/internal/assembler"
	"github.com/local/llmarxiv/internal/filetype"
	"github.com/local/llmarxiv/internal/imaging"
	"github.com/local/llmarxiv/internal/markdown"
	"github.com/local/llmarxiv/internal/metrics"
	"github.com/local/llmarxiv/internal/mupdf"
	"github.com/local/llmarxiv/internal/selection"
	"github.com/local/llmarxiv/internal/store"
)

// Source finds papers and downloads their PDFs. *arxiv.Client implements it.
type Source interface {
	Lookup(ctx context.Context, id string) (*arxiv.Paper, error)
	DownloadPDF(ctx context.Context, p *arxiv.Paper, dir string) (string, error)
}

// Cache stores paper metadata between runs. *store.PaperCache implements it.
type Cache interface {
	Get(ctx context.Context, id string) (*arxiv.Paper, error)
	Put(ctx context.Context, id string, p *arxiv.Paper) error
}

// Exporter persists an assembled document. *storage.Exporter implements it.
type Exporter interface {
	Export(ctx context.Context, runID string, p *arxiv.Paper, doc *assembler.Document) (string, error)
	Encrypted() bool
}

// ExportIndex records the latest export of a paper. *store.ExportIndex implements it.
type ExportIndex interface {
	Record(ctx context.Context, rec store.ExportRecord) error
}

// Deps are the collaborators of a Loader. Source is required; the rest are
// optional. A nil Opener means go-fitz, logging with the run logger.
type Deps struct {
	Source    Source
	Opener    mupdf.Opener
	Cache     Cache
	Exporter  Exporter
	Index     ExportIndex
	Converter *markdown.Converter
	Logger    zerolog.Logger
	// TempRoot is where per-run directories are created; empty means os.TempDir().
	TempRoot string
	// VerifyPDF checks downloads by magic bytes. Defaults to filetype.RequirePDF.
	VerifyPDF func(path string) error
	// PageCount cross-checks the renderer page count. Defaults to mupdf.PageCount.
	PageCount func(path string) (int, error)
}

// Request is one pipeline invocation.
type Request struct {
	Argument string
	Criteria selection.Criteria
	Resize   imaging.Resize
	NoCache  bool
	Export   bool
}

// Result is the output of a successful Load.
type Result struct {
	RunID     string
	Paper     *arxiv.Paper
	Document  *assembler.Document
	ExportKey string
}

type Loader struct {
	deps Deps
}

func New(deps Deps) *Loader {
	if deps.Converter == nil {
		deps.Converter = markdown.NewConverter()
	}
	if deps.VerifyPDF == nil {
		deps.VerifyPDF = filetype.RequirePDF
	}
	if deps.PageCount == nil {
		deps.PageCount = mupdf.PageCount
	}
	return &Loader{deps: deps}
}

// Load runs the pipeline. The downloaded PDF lives in a per-run temporary
// directory that is removed before Load returns.
func (l *Loader) Load(ctx context.Context, req Request) (*Result, error) {
	id, ok := arxiv.ExtractID(req.Argument)
	if !ok {
		metrics.IncPaper("invalid_id")
		return nil, invalidIdentifier(req.Argument)
	}

	runID := uuid.NewString()
	log := l.deps.Logger.With().Str("paper", id).Str("run_id", runID).Logger()
	ctx = log.WithContext(ctx)

	res, err := l.load(ctx, log, id, runID, req)
	if err != nil {
		metrics.IncPaper(failureResult(err))
		log.Debug().Err(err).Msg("paper pipeline failed")
		return nil, wrapFailure(id, err)
	}
	metrics.IncPaper("ok")
	return res, nil
}

func (l *Loader) load(ctx context.Context, log zerolog.Logger, id, runID string, req Request) (*Result, error) {
	paper, err := l.lookup(ctx, log, id, req.NoCache)
	if err != nil {
		return nil, err
	}

	dir, err := os.MkdirTemp(l.deps.TempRoot, TempPrefix+"*")
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := os.RemoveAll(dir); err != nil {
			log.Warn().Err(err).Str("dir", dir).Msg("failed to remove temp dir")
		}
	}()

	pdfPath, err := l.deps.Source.DownloadPDF(ctx, paper, dir)
	if err != nil {
		return nil, err
	}
	if err := l.deps.VerifyPDF(pdfPath); err != nil {
		return nil, err
	}
	if n, err := l.deps.PageCount(pdfPath); err != nil {
		log.Warn().Err(err).Msg("pdf page count unavailable")
	} else {
		log.Debug().Int("pages", n).Str("pdf", pdfPath).Msg("downloaded pdf")
	}

	opener := l.deps.Opener
	if opener == nil {
		opener = mupdf.FitzOpener{Logger: log}
	}
	start := time.Now()
	doc, err := assembler.AssembleFile(opener, assembler.Ref{ID: id, Source: paper.Source(), Path: pdfPath}, assembler.Options{
		Criteria:  req.Criteria,
		Resize:    req.Resize,
		Logger:    log,
		Converter: l.deps.Converter,
		ProbeText: true,
	})
	if err != nil {
		return nil, err
	}
	metrics.ObserveAssemble(time.Since(start))
	metrics.AddImages("selected", doc.Stats.Selected)
	metrics.AddImages("kept", doc.Stats.Kept)
	metrics.AddImages("dropped", doc.Stats.Dropped)
	metrics.AddImages("skipped", doc.Stats.Skipped())

	res := &Result{RunID: runID, Paper: paper, Document: doc}
	if req.Export {
		key, err := l.export(ctx, log, runID, paper, doc)
		if err != nil {
			return nil, err
		}
		res.ExportKey = key
	}
	return res, nil
}

func (l *Loader) lookup(ctx context.Context, log zerolog.Logger, id string, noCache bool) (*arxiv.Paper, error) {
	useCache := l.deps.Cache != nil && !noCache
	if useCache {
		p, err := l.deps.Cache.Get(ctx, id)
		if err != nil {
			log.Warn().Err(err).Msg("paper cache unavailable")
		} else if p != nil {
			log.Debug().Msg("paper metadata from cache")
			return p, nil
		}
	}

	p, err := l.deps.Source.Lookup(ctx, id)
	if err != nil {
		return nil, err
	}
	if useCache {
		if err := l.deps.Cache.Put(ctx, id, p); err != nil {
			log.Warn().Err(err).Msg("failed to cache paper metadata")
		}
	}
	return p, nil
}

func (l *Loader) export(ctx context.Context, log zerolog.Logger, runID string, p *arxiv.Paper, doc *assembler.Document) (string, error) {
	if l.deps.Exporter == nil {
		return "", errors.New("export requested but no export bucket is configured")
	}
	key, err := l.deps.Exporter.Export(ctx, runID, p, doc)
	if err != nil {
		return "", err
	}
	if l.deps.Index != nil {
		rec := store.ExportRecord{
			PaperID:     p.ID,
			RunID:       runID,
			Key:         key,
			Attachments: len(doc.Attachments),
			Encrypted:   l.deps.Exporter.Encrypted(),
		}
		if err := l.deps.Index.Record(ctx, rec); err != nil {
			log.Warn().Err(err).Msg("failed to record export")
		}
	}
	return key, nil
}
