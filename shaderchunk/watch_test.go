package shaderchunk

import (
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"
)

func TestLoadDir(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, filepath.Join(dir, "a.wgsl"), "// a")
	writeFile(t, filepath.Join(dir, "notes.txt"), "ignored")

	r := NewRegistry()
	n, err := LoadDir(r, dir)
	if err != nil {
		t.Fatalf("LoadDir() error = %v", err)
	}
	if n != 1 {
		t.Errorf("LoadDir() = %d, want 1", n)
	}
	if src, ok := r.Get("a"); !ok || src != "// a" {
		t.Errorf("Get(a) = %q, %v", src, ok)
	}

	if _, err := LoadDir(r, filepath.Join(dir, "missing")); err == nil {
		t.Error("LoadDir(missing) error = nil")
	}
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "chunk.wgsl")
	writeFile(t, path, "v1")

	r := NewRegistry()
	var changes atomic.Int32
	w, err := Watch(r, dir, func(string) { changes.Add(1) })
	if err != nil {
		t.Fatalf("Watch() error = %v", err)
	}
	defer w.Close()
	if src, _ := r.Get("chunk"); src != "v1" {
		t.Fatalf("Get(chunk) = %q after Watch, want v1", src)
	}

	writeFile(t, path, "v2")
	eventually(t, "reload after write", func() bool {
		src, _ := r.Get("chunk")
		return src == "v2"
	})

	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	eventually(t, "removal", func() bool {
		_, ok := r.Get("chunk")
		return !ok
	})
	if changes.Load() < 2 {
		t.Errorf("onChange called %d times, want at least 2", changes.Load())
	}

	if err := w.Close(); err != nil {
		t.Errorf("Close() error = %v", err)
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close() error = %v", err)
	}
}

func TestChunkName(t *testing.T) {
	if got := ChunkName("/tmp/x/shadow.vs.wgsl"); got != "shadow.vs" {
		t.Errorf("ChunkName() = %q, want shadow.vs", got)
	}
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
}

func eventually(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(10 * time.Millisecond)
	}
}
