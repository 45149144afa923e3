package control_test

import (
	"strings"
	"testing"

	"github.com/momentics/xenstore-go/internal/control"
	"github.com/momentics/xenstore-go/internal/store"
)

func TestMetricsRegistryIncrAndSet(t *testing.T) {
	mr := control.NewMetricsRegistry()
	mr.Incr("writes", 1)
	mr.Incr("writes", 2)
	mr.Set("domains", 5)

	snap := mr.Snapshot()
	if snap["writes"] != 3 {
		t.Errorf("writes = %d, want 3", snap["writes"])
	}
	if snap["domains"] != 5 {
		t.Errorf("domains = %d, want 5", snap["domains"])
	}
}

func TestMetricsSnapshotIsACopy(t *testing.T) {
	mr := control.NewMetricsRegistry()
	mr.Incr("a", 1)
	snap := mr.Snapshot()
	snap["a"] = 999
	if got := mr.Snapshot()["a"]; got != 1 {
		t.Errorf("mutating a Snapshot() result should not affect the registry, got %d", got)
	}
}

func TestDebugDumpTreeIncludesWrittenPaths(t *testing.T) {
	tree := store.New()
	tree.Write("/local/domain/1/example", []byte("hello"))

	dbg := control.NewDebug(tree)
	dump := dbg.DumpTree()

	if !strings.Contains(dump, "example") {
		t.Errorf("DumpTree() = %q, want it to mention the written node name", dump)
	}
}
