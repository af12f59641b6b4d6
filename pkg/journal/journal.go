package journal

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/vmihailenco/msgpack/v5"

	"clmm-lp-agent/pkg/clmm"
)

// CycleRecord captures one end-to-end decision cycle for audit and replay:
// the state transition it produced, the reason, the actions dispatched, and
// any realized PnL/volume, keyed by controller rather than by trader.
type CycleRecord struct {
	Timestamp   time.Time     `msgpack:"timestamp"`
	ControllerID string       `msgpack:"controller_id"`
	CycleNumber int           `msgpack:"cycle_number"`
	FromState   string        `msgpack:"from_state"`
	ToState     string        `msgpack:"to_state"`
	Reason      string        `msgpack:"reason"`
	Actions     []clmm.Action `msgpack:"actions,omitempty"`
	RealizedPnLDeltaQuote    string `msgpack:"realized_pnl_delta_quote,omitempty"`
	RealizedVolumeDeltaQuote string `msgpack:"realized_volume_delta_quote,omitempty"`
	Success      bool          `msgpack:"success"`
	ErrorMessage string        `msgpack:"error_message,omitempty"`
}

// Writer persists cycle records to a directory as msgpack files, one per
// cycle, named so a directory listing already sorts in cycle order.
type Writer struct {
	dir   string
	seq   int
	nowFn func() time.Time
}

// NewWriter constructs a journal writer, creating dir if it doesn't exist.
func NewWriter(dir string) *Writer {
	if dir == "" {
		dir = "journal"
	}
	_ = os.MkdirAll(dir, 0o755)
	return &Writer{dir: dir, nowFn: time.Now}
}

// WriteCycle persists a cycle record to a timestamped msgpack file.
func (w *Writer) WriteCycle(rec *CycleRecord) (string, error) {
	if rec == nil {
		return "", fmt.Errorf("journal: nil record")
	}
	if rec.Timestamp.IsZero() {
		rec.Timestamp = w.nowFn()
	}
	w.seq++
	rec.CycleNumber = w.seq

	name := fmt.Sprintf("cycle_%s_%05d.msgpack", rec.Timestamp.UTC().Format("20060102_150405"), w.seq)
	path := filepath.Join(w.dir, name)

	data, err := msgpack.Marshal(rec)
	if err != nil {
		return "", fmt.Errorf("journal: marshal cycle record: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("journal: write cycle record: %w", err)
	}
	return path, nil
}
