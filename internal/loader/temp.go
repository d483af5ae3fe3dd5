package loader

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/local/llmarxiv/internal/assembler"
)

// TempPrefix names the per-run working directories.
const TempPrefix = "llm-arxiv-"

// SweepStale removes llm-arxiv working directories under root (os.TempDir()
// when empty) that are older than maxAge. Directories of a live run are much
// younger than any sensible maxAge; leftovers come from killed processes.
func SweepStale(root string, maxAge time.Duration) (int, error) {
	if root == "" {
		root = os.TempDir()
	}
	entries, err := os.ReadDir(root)
	if err != nil {
		return 0, err
	}
	now := time.Now()
	removed := 0
	for _, e := range entries {
		if !e.IsDir() || !strings.HasPrefix(e.Name(), TempPrefix) {
			continue
		}
		info, err := e.Info()
		if err != nil || now.Sub(info.ModTime()) < maxAge {
			continue
		}
		p := filepath.Join(root, e.Name())
		if err := os.RemoveAll(p); err != nil {
			log.Warn().Err(err).Str("dir", p).Msg("failed to remove stale temp dir")
			continue
		}
		removed++
	}
	return removed, nil
}

// SaveAttachments writes each attachment to dir under its own name and
// returns the written paths in attachment order.
func SaveAttachments(dir string, atts []assembler.Attachment) ([]string, error) {
	if len(atts) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	paths := make([]string, 0, len(atts))
	for _, a := range atts {
		p := filepath.Join(dir, a.Name)
		if err := os.WriteFile(p, a.Data, 0o644); err != nil {
			return paths, fmt.Errorf("write %s: %w", a.Name, err)
		}
		paths = append(paths, p)
	}
	return paths, nil
}
