package journal

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"testing"
	"time"

	"github.com/klauspost/compress/zstd"

	"skyrise.dev/internal/sim/world"
)

func readAllEntries(t *testing.T, dir, prefix string) []world.TickLogEntry {
	t.Helper()
	paths, err := filepath.Glob(filepath.Join(dir, prefix+"-*.jsonl.zst"))
	if err != nil {
		t.Fatalf("glob: %v", err)
	}
	sort.Strings(paths)

	var out []world.TickLogEntry
	for _, p := range paths {
		f, err := os.Open(p)
		if err != nil {
			t.Fatalf("open %s: %v", p, err)
		}
		dec, err := zstd.NewReader(f)
		if err != nil {
			t.Fatalf("zstd reader: %v", err)
		}
		sc := bufio.NewScanner(dec)
		for sc.Scan() {
			var e world.TickLogEntry
			if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			out = append(out, e)
		}
		if err := sc.Err(); err != nil {
			t.Fatalf("scan: %v", err)
		}
		dec.Close()
		_ = f.Close()
	}
	return out
}

func TestJSONLZstdWriter_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	w := NewJSONLZstdWriter(dir, "events")

	if err := w.Write(world.TickLogEntry{Tick: 1, Digest: "aa", Funds: 100}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Write(world.TickLogEntry{Tick: 2, Digest: "bb", Funds: 90, Population: 3}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	got := readAllEntries(t, dir, "events")
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
	if got[0].Tick != 1 || got[0].Digest != "aa" || got[0].Funds != 100 {
		t.Fatalf("entry 0 = %+v", got[0])
	}
	if got[1].Tick != 2 || got[1].Population != 3 {
		t.Fatalf("entry 1 = %+v", got[1])
	}
}

func TestJSONLZstdWriter_RotatesAndNotifiesOnClose(t *testing.T) {
	dir := t.TempDir()
	var closed []string
	w := NewJSONLZstdWriterWithOptions(dir, "events", LoggerOptions{
		RotateLayout: "2006-01-02-15-04-05",
		OnClose:      func(path string) { closed = append(closed, path) },
	})

	if err := w.Write(world.TickLogEntry{Tick: 1, Digest: "aa"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	time.Sleep(1100 * time.Millisecond)
	if err := w.Write(world.TickLogEntry{Tick: 2, Digest: "bb"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	if len(closed) != 1 {
		t.Fatalf("rotation should close the first segment, closed = %v", closed)
	}
	if err := w.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if len(closed) != 2 {
		t.Fatalf("close should hand over the live segment, closed = %v", closed)
	}
	for _, p := range closed {
		if _, err := os.Stat(p); err != nil {
			t.Fatalf("closed segment missing: %v", err)
		}
	}
	if closed[0] == closed[1] {
		t.Fatalf("expected distinct segments, got %q twice", closed[0])
	}

	got := readAllEntries(t, dir, "events")
	if len(got) != 2 {
		t.Fatalf("entries = %d, want 2", len(got))
	}
}

func TestLoggers_WriteUnderTowerDir(t *testing.T) {
	towerDir := t.TempDir()

	tl := NewTickLogger(towerDir)
	if err := tl.WriteTick(world.TickLogEntry{Tick: 7, Digest: "cc"}); err != nil {
		t.Fatalf("write tick: %v", err)
	}
	if err := tl.Close(); err != nil {
		t.Fatalf("close tick logger: %v", err)
	}
	if got := readAllEntries(t, filepath.Join(towerDir, "events"), "events"); len(got) != 1 || got[0].Tick != 7 {
		t.Fatalf("tick entries = %+v", got)
	}

	al := NewAuditLogger(towerDir)
	if err := al.WriteAudit(world.AuditEntry{Tick: 7, Actor: "S1", Action: "BUILD", FundsAfter: 500}); err != nil {
		t.Fatalf("write audit: %v", err)
	}
	if err := al.Close(); err != nil {
		t.Fatalf("close audit logger: %v", err)
	}
	paths, err := filepath.Glob(filepath.Join(towerDir, "audit", "audit-*.jsonl.zst"))
	if err != nil || len(paths) != 1 {
		t.Fatalf("audit segments = %v (err %v)", paths, err)
	}
}
