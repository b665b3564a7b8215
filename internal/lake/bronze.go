package lake

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// snapshotLine is one bronze record: the API payload as received, with the
// ingest timestamp alongside.
type snapshotLine struct {
	IngestedAt string          `json:"ingested_at"`
	Payload    json.RawMessage `json:"payload"`
}

// AppendSnapshot appends raw API payloads as JSON lines under
// <dataDir>/bronze/<source>/<YYYY-MM-DD>.jsonl. Bronze files are append-only
// and never read by the pipeline; they exist so any silver table can be
// rebuilt after a parser fix.
func AppendSnapshot(dataDir, source string, now time.Time, payloads []json.RawMessage) error {
	if len(payloads) == 0 {
		return nil
	}
	dir := filepath.Join(dataDir, "bronze", source)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create bronze directory %s: %w", dir, err)
	}
	path := filepath.Join(dir, now.UTC().Format("2006-01-02")+".jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open bronze file %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	ingestedAt := formatTime(now)
	for _, p := range payloads {
		if err := enc.Encode(snapshotLine{IngestedAt: ingestedAt, Payload: p}); err != nil {
			return fmt.Errorf("failed to write bronze line: %w", err)
		}
	}
	return w.Flush()
}
