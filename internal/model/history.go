package model

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// HistoryEntry is one recorded turn of a human experiment.
type HistoryEntry struct {
	ExperimentID string   `json:"experiment_id"`
	Attempt      int      `json:"attempt"`
	ElapsedMs    int64    `json:"elapsed_ms"`
	Log          EventLog `json:"log"`
}

// History keeps every recorded log for the lifetime of the process.
type History struct {
	mu      sync.RWMutex
	entries []HistoryEntry
}

func NewHistory() *History {
	return &History{entries: []HistoryEntry{}}
}

func (h *History) Record(e HistoryEntry) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.entries = append(h.entries, e)
}

func (h *History) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.entries)
}

func (h *History) Entries() []HistoryEntry {
	h.mu.RLock()
	defer h.mu.RUnlock()
	out := make([]HistoryEntry, len(h.entries))
	copy(out, h.entries)
	return out
}

// WriteJSON writes the whole history as one JSON array.
func (h *History) WriteJSON(w io.Writer) error {
	return json.NewEncoder(w).Encode(h.Entries())
}

// WriteJSONLZstd writes one JSON line per entry through a zstd encoder.
func (h *History) WriteJSONLZstd(w io.Writer) error {
	enc, err := zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		return fmt.Errorf("zstd writer: %w", err)
	}
	bw := bufio.NewWriter(enc)
	for _, e := range h.Entries() {
		b, err := json.Marshal(e)
		if err != nil {
			_ = enc.Close()
			return err
		}
		if _, err := bw.Write(b); err != nil {
			_ = enc.Close()
			return err
		}
		if err := bw.WriteByte('\n'); err != nil {
			_ = enc.Close()
			return err
		}
	}
	if err := bw.Flush(); err != nil {
		_ = enc.Close()
		return err
	}
	return enc.Close()
}

// ReadJSONLZstd decodes a stream written by WriteJSONLZstd.
func ReadJSONLZstd(r io.Reader) ([]HistoryEntry, error) {
	dec, err := zstd.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("zstd reader: %w", err)
	}
	defer dec.Close()

	var out []HistoryEntry
	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		if len(sc.Bytes()) == 0 {
			continue
		}
		var e HistoryEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, sc.Err()
}
