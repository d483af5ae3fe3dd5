// Package logger configures the process-wide zerolog logger. Logs go to
// stderr so that stdout only carries command output.
package logger

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/axiomhq/axiom-go/axiom"
	"github.com/axiomhq/axiom-go/axiom/ingest"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const service = "llm-arxiv"

// Options defines logger initialization parameters.
type Options struct {
	Level      string
	Pretty     bool
	File       string
	MaxSizeMB  int
	MaxBackups int
	MaxAgeDays int
	Compress   bool

	SendToAxiom  bool
	AxiomAPIKey  string
	AxiomOrgID   string
	AxiomDataset string
	AxiomFlush   time.Duration

	// Console overrides stderr, for tests.
	Console io.Writer
}

var (
	global = zerolog.Nop()
	fwd    *forwarder
)

// Init sets up the global logger: console on stderr, optional file rotation,
// optional Axiom forwarding of info and above.
func Init(opts Options) error {
	writers := []io.Writer{consoleWriter(opts)}

	if opts.File != "" {
		w, err := fileWriter(opts)
		if err != nil {
			return err
		}
		writers = append(writers, w)
	}

	if opts.SendToAxiom && opts.AxiomAPIKey != "" {
		f, err := newForwarder(opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Axiom disabled: %v\n", err)
		} else {
			fwd = f
			writers = append(writers, f)
		}
	}

	lvl, err := zerolog.ParseLevel(opts.Level)
	if err != nil || opts.Level == "" {
		lvl = zerolog.InfoLevel
	}
	zerolog.TimeFieldFormat = time.RFC3339

	global = zerolog.New(zerolog.MultiLevelWriter(writers...)).
		Level(lvl).
		With().
		Timestamp().
		Logger()
	log.Logger = global
	return nil
}

func consoleWriter(opts Options) io.Writer {
	out := opts.Console
	if out == nil {
		out = os.Stderr
	}
	if !opts.Pretty {
		return out
	}
	return zerolog.ConsoleWriter{Out: out, TimeFormat: time.Kitchen}
}

func fileWriter(opts Options) (io.Writer, error) {
	if err := os.MkdirAll(filepath.Dir(opts.File), 0o755); err != nil {
		return nil, fmt.Errorf("create logs dir: %w", err)
	}
	return &lumberjack.Logger{
		Filename:   opts.File,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
		MaxAge:     opts.MaxAgeDays,
		Compress:   opts.Compress,
	}, nil
}

// Close flushes the Axiom forwarder, if any.
func Close() {
	if fwd != nil {
		fwd.Close()
		fwd = nil
	}
}

// Get returns the global logger. It discards everything until Init runs.
func Get() zerolog.Logger { return global }

// axiomEvent turns one log line into an Axiom event; debug and trace lines
// are not forwarded.
func axiomEvent(p []byte) (axiom.Event, bool) {
	var ev map[string]any
	if err := json.Unmarshal(p, &ev); err != nil {
		ev = map[string]any{"message": string(p), "level": "info"}
	}
	if lvl, ok := ev["level"].(string); ok && (lvl == "debug" || lvl == "trace") {
		return nil, false
	}
	ev["service"] = service
	if _, ok := ev[ingest.TimestampField]; !ok {
		ev[ingest.TimestampField] = time.Now()
	}
	return axiom.Event(ev), true
}

const (
	forwardQueue = 1000
	forwardBatch = 200
)

// forwarder is an io.Writer that batches log lines into Axiom ingest calls
// from a single goroutine. Lines are dropped when the queue is full.
type forwarder struct {
	client  *axiom.Client
	dataset string
	every   time.Duration
	events  chan axiom.Event
	stop    chan struct{}
	wg      sync.WaitGroup
}

func newForwarder(opts Options) (*forwarder, error) {
	aopts := []axiom.Option{axiom.SetToken(opts.AxiomAPIKey)}
	if opts.AxiomOrgID != "" {
		aopts = append(aopts, axiom.SetOrganizationID(opts.AxiomOrgID))
	}
	client, err := axiom.NewClient(aopts...)
	if err != nil {
		return nil, err
	}
	f := &forwarder{
		client:  client,
		dataset: opts.AxiomDataset,
		every:   opts.AxiomFlush,
		events:  make(chan axiom.Event, forwardQueue),
		stop:    make(chan struct{}),
	}
	if f.dataset == "" {
		f.dataset = "dev_llm_arxiv"
	}
	if f.every <= 0 {
		f.every = 10 * time.Second
	}
	f.wg.Add(1)
	go f.run()
	return f, nil
}

func (f *forwarder) Write(p []byte) (int, error) {
	if ev, ok := axiomEvent(p); ok {
		select {
		case f.events <- ev:
		default:
		}
	}
	return len(p), nil
}

func (f *forwarder) run() {
	defer f.wg.Done()
	ticker := time.NewTicker(f.every)
	defer ticker.Stop()

	batch := make([]axiom.Event, 0, forwardBatch)
	for {
		select {
		case ev := <-f.events:
			batch = append(batch, ev)
			if len(batch) >= forwardBatch {
				batch = f.ingest(batch)
			}
		case <-ticker.C:
			batch = f.ingest(batch)
		case <-f.stop:
			// a CLI run exits right after Close, so take what is still queued
			for len(f.events) > 0 {
				batch = append(batch, <-f.events)
			}
			f.ingest(batch)
			return
		}
	}
}

func (f *forwarder) ingest(batch []axiom.Event) []axiom.Event {
	if len(batch) == 0 {
		return batch
	}
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if _, err := f.client.IngestEvents(ctx, f.dataset, batch); err != nil {
		fmt.Fprintf(os.Stderr, "axiom ingest failed: %v\n", err)
	}
	return batch[:0]
}

func (f *forwarder) Close() {
	close(f.stop)
	f.wg.Wait()
}
