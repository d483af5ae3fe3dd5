package metrics

import (
	"fmt"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/push"
)

const namespace = "llm_arxiv"

var (
	papersProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "papers_processed_total",
			Help:      "Papers processed by result (ok, invalid_id, not_found, fetch_error, extract_error, error)",
		},
		[]string{"result"},
	)

	imagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "images_total",
			Help:      "Embedded images by outcome (selected, skipped, kept, dropped)",
		},
		[]string{"outcome"},
	)

	arxivRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "arxiv_requests_total",
			Help:      "arXiv API requests by endpoint and result",
		},
		[]string{"endpoint", "result"},
	)

	llmRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM requests by provider, model and result",
		},
		[]string{"provider", "model", "result"},
	)

	llmLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "Duration of LLM requests by provider and model",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"provider", "model"},
	)

	assembleLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "assemble_duration_seconds",
			Help:      "Time spent turning a PDF into a document",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		},
	)

	cacheLookups = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Paper metadata cache lookups by result (hit, miss, error)",
		},
		[]string{"result"},
	)

	registry = prometheus.NewRegistry()
	initOnce sync.Once
)

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		registry.MustRegister(papersProcessed, imagesTotal, arxivRequests, llmRequests, llmLatency, assembleLatency, cacheLookups)
	})
}

func IncPaper(result string) { papersProcessed.WithLabelValues(result).Inc() }

func AddImages(outcome string, n int) {
	if n > 0 {
		imagesTotal.WithLabelValues(outcome).Add(float64(n))
	}
}

func ObserveArxiv(endpoint, result string) { arxivRequests.WithLabelValues(endpoint, result).Inc() }

func ObserveLLM(provider, model, result string, dur time.Duration) {
	llmRequests.WithLabelValues(provider, model, result).Inc()
	llmLatency.WithLabelValues(provider, model).Observe(dur.Seconds())
}

func ObserveAssemble(dur time.Duration) { assembleLatency.Observe(dur.Seconds()) }

func IncCache(result string) { cacheLookups.WithLabelValues(result).Inc() }

// Flush writes the registry to a node-exporter textfile and/or pushes it to a
// Pushgateway. Empty arguments skip the corresponding sink.
func Flush(textfile, pushURL, job string) error {
	if textfile != "" {
		if err := prometheus.WriteToTextfile(textfile, registry); err != nil {
			return fmt.Errorf("write metrics textfile: %w", err)
		}
	}
	if pushURL != "" {
		if job == "" {
			job = "llm_arxiv"
		}
		if err := push.New(pushURL, job).Gatherer(registry).Push(); err != nil {
			return fmt.Errorf("push metrics: %w", err)
		}
	}
	return nil
}
