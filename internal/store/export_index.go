package store

import (
	"context"
	"fmt"
	"strconv"
	"time"
)

// ExportRecord describes the latest export of a paper.
type ExportRecord struct {
	PaperID     string
	RunID       string
	Key         string
	Attachments int
	Encrypted   bool
	At          time.Time
}

// ExportIndex maps paper identifiers to their latest export.
type ExportIndex struct {
	client Backend
	ttl    time.Duration
}

func NewExportIndex(client Backend, ttl time.Duration) *ExportIndex {
	return &ExportIndex{client: client, ttl: ttl}
}

func (s *ExportIndex) key(paperID string) string { return fmt.Sprintf("arxiv:export:%s", paperID) }

func (s *ExportIndex) Record(ctx context.Context, rec ExportRecord) error {
	if rec.At.IsZero() {
		rec.At = time.Now().UTC()
	}
	m := map[string]interface{}{
		"run_id":      rec.RunID,
		"key":         rec.Key,
		"attachments": rec.Attachments,
		"encrypted":   strconv.FormatBool(rec.Encrypted),
		"at":          rec.At.Format(time.RFC3339Nano),
	}
	k := s.key(rec.PaperID)
	if err := s.client.HSet(ctx, k, m).Err(); err != nil {
		return err
	}
	if s.ttl > 0 {
		return s.client.Expire(ctx, k, s.ttl).Err()
	}
	return nil
}

// Lookup returns the latest export for paperID; ok is false when there is none.
func (s *ExportIndex) Lookup(ctx context.Context, paperID string) (ExportRecord, bool, error) {
	res, err := s.client.HGetAll(ctx, s.key(paperID)).Result()
	if err != nil {
		return ExportRecord{}, false, err
	}
	if len(res) == 0 || res["key"] == "" {
		return ExportRecord{}, false, nil
	}
	rec := ExportRecord{PaperID: paperID, RunID: res["run_id"], Key: res["key"]}
	// ignore parse errors; fields default to zero
	rec.Attachments, _ = strconv.Atoi(res["attachments"])
	rec.Encrypted, _ = strconv.ParseBool(res["encrypted"])
	if t, err := time.Parse(time.RFC3339Nano, res["at"]); err == nil {
		rec.At = t
	}
	return rec, true, nil
}
