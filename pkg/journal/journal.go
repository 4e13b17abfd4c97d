package journal

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/starsarenaorg/arena-perps-agent-cli/pkg/copytrade"
)

// Entry is one mirrored-trade attempt as written to disk.
type Entry struct {
	ID         string                    `json:"id"`
	Seq        int                       `json:"seq"`
	RecordedAt time.Time                 `json:"recorded_at"`
	Action     copytrade.Action          `json:"action"`
	DryRun     bool                      `json:"dry_run"`
	OurEquity  float64                   `json:"our_equity"`
	Price      float64                   `json:"price"`
	Fill       copytrade.FillEvent       `json:"fill"`
	Params     copytrade.CopyTradeParams `json:"params"`
	Success    bool                      `json:"success"`
	OrderID    string                    `json:"order_id,omitempty"`
	Error      string                    `json:"error,omitempty"`
}

// Writer persists trade records to a directory as JSON files (journal style).
type Writer struct {
	dir   string
	nowFn func() time.Time
	newID func() string

	mu  sync.Mutex
	seq int
}

var _ copytrade.Recorder = (*Writer)(nil)

// NewWriter constructs a journal writer, creating dir if needed.
func NewWriter(dir string) (*Writer, error) {
	if dir == "" {
		dir = "journal"
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("journal: create %s: %w", dir, err)
	}
	return &Writer{dir: dir, nowFn: time.Now, newID: uuid.NewString}, nil
}

// Dir is the journal directory.
func (w *Writer) Dir() string { return w.dir }

// Record implements copytrade.Recorder.
func (w *Writer) Record(_ context.Context, rec copytrade.TradeRecord) error {
	_, err := w.Write(rec)
	return err
}

// Write stores rec in a timestamped JSON file and returns its path.
func (w *Writer) Write(rec copytrade.TradeRecord) (string, error) {
	if rec.RecordedAt.IsZero() {
		rec.RecordedAt = w.nowFn()
	}
	w.mu.Lock()
	w.seq++
	seq := w.seq
	w.mu.Unlock()

	entry := Entry{
		ID:         w.newID(),
		Seq:        seq,
		RecordedAt: rec.RecordedAt,
		Action:     rec.Action,
		DryRun:     rec.DryRun,
		OurEquity:  rec.OurEquity,
		Price:      rec.Price,
		Fill:       rec.Fill,
		Params:     rec.Result.Params,
		Success:    rec.Result.Success,
		OrderID:    rec.Result.OrderID,
		Error:      rec.Result.Error,
	}
	name := fmt.Sprintf("trade_%s_%05d.json", entry.RecordedAt.UTC().Format("20060102_150405"), seq)
	path := filepath.Join(w.dir, name)
	data, err := json.MarshalIndent(entry, "", "  ")
	if err != nil {
		return "", err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("journal: write %s: %w", path, err)
	}
	return path, nil
}
