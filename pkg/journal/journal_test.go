package journal

import (
	"os"
	"testing"

	"github.com/vmihailenco/msgpack/v5"
)

func TestWriteCycleAssignsSequenceAndPersistsMsgpack(t *testing.T) {
	dir := t.TempDir()
	w := NewWriter(dir)

	path1, err := w.WriteCycle(&CycleRecord{ControllerID: "pool-1", FromState: "IDLE", ToState: "ENTRY_OPEN", Success: true})
	if err != nil {
		t.Fatalf("WriteCycle: %v", err)
	}
	path2, err := w.WriteCycle(&CycleRecord{ControllerID: "pool-1", FromState: "ENTRY_OPEN", ToState: "ACTIVE", Success: true})
	if err != nil {
		t.Fatalf("WriteCycle: %v", err)
	}
	if path1 == path2 {
		t.Fatalf("expected distinct file paths, got %s twice", path1)
	}

	data, err := os.ReadFile(path2)
	if err != nil {
		t.Fatalf("read written cycle: %v", err)
	}
	var rec CycleRecord
	if err := msgpack.Unmarshal(data, &rec); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if rec.CycleNumber != 2 {
		t.Fatalf("expected cycle number 2, got %d", rec.CycleNumber)
	}
	if rec.ToState != "ACTIVE" {
		t.Fatalf("expected to_state ACTIVE, got %s", rec.ToState)
	}
}

func TestWriteCycleRejectsNilRecord(t *testing.T) {
	w := NewWriter(t.TempDir())
	if _, err := w.WriteCycle(nil); err == nil {
		t.Fatalf("expected error for nil record")
	}
}
