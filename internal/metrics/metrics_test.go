package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCounters(t *testing.T) {
	Init()
	Init()

	before := testutil.ToFloat64(papersProcessed.WithLabelValues("ok"))
	IncPaper("ok")
	assert.Equal(t, before+1, testutil.ToFloat64(papersProcessed.WithLabelValues("ok")))

	kept := testutil.ToFloat64(imagesTotal.WithLabelValues("kept"))
	AddImages("kept", 3)
	AddImages("kept", 0)
	assert.Equal(t, kept+3, testutil.ToFloat64(imagesTotal.WithLabelValues("kept")))

	lookups := testutil.ToFloat64(arxivRequests.WithLabelValues("lookup", "ok"))
	ObserveArxiv("lookup", "ok")
	assert.Equal(t, lookups+1, testutil.ToFloat64(arxivRequests.WithLabelValues("lookup", "ok")))

	ObserveLLM("anthropic", "m", "ok", 2*time.Second)
	assert.GreaterOrEqual(t, testutil.ToFloat64(llmRequests.WithLabelValues("anthropic", "m", "ok")), float64(1))

	IncCache("hit")
	assert.GreaterOrEqual(t, testutil.ToFloat64(cacheLookups.WithLabelValues("hit")), float64(1))
}

func TestFlushTextfile(t *testing.T) {
	Init()
	ObserveAssemble(150 * time.Millisecond)

	path := filepath.Join(t.TempDir(), "llm_arxiv.prom")
	require.NoError(t, Flush(path, "", ""))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "llm_arxiv_assemble_duration_seconds")
}

func TestFlushPush(t *testing.T) {
	Init()
	var gotPath string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		_, _ = io.Copy(io.Discard, r.Body)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	require.NoError(t, Flush("", srv.URL, "nightly"))
	assert.Equal(t, "/metrics/job/nightly", gotPath)
}
