package main

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/render"
)

func execute(t *testing.T, args ...string) string {
	t.Helper()
	t.Cleanup(func() { gfx.SetLogger(nil) })

	var out bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(append([]string{"--log-level", "error"}, args...))
	if err := cmd.Execute(); err != nil {
		t.Fatalf("gfxdemo %v: %v\n%s", args, err, out.String())
	}
	return out.String()
}

func TestBackendsListsSoftware(t *testing.T) {
	out := execute(t, "backends")
	if !strings.Contains(out, "software") {
		t.Errorf("backends output = %q, want software listed", out)
	}
}

func TestShadowWritesPNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "shadow.png")
	out := execute(t, "--backend", "software", "shadow",
		"--light", "point", "--face", "2", "--vsm", "--size", "16", "-o", path)
	if !strings.Contains(out, "filter runs 1") {
		t.Errorf("shadow output = %q, want one filter run", out)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	img, err := png.Decode(f)
	if err != nil {
		t.Fatalf("png.Decode() error = %v", err)
	}
	if b := img.Bounds(); b.Dx() != 16 || b.Dy() != 16 {
		t.Errorf("image bounds = %v, want 16x16", b)
	}
}

func TestComposeChunks(t *testing.T) {
	list := execute(t, "compose", "--list")
	if !strings.Contains(list, render.ChunkShadowVS) {
		t.Errorf("compose --list = %q, want %s", list, render.ChunkShadowVS)
	}

	src := execute(t, "compose", render.ChunkShadowUniforms, render.ChunkShadowVS,
		render.ChunkShadowMomentsFS, "-t", "DEPTH=0.5")
	if strings.Contains(src, "$DEPTH") || !strings.Contains(src, "0.5") {
		t.Errorf("composed source still has tokens or lacks the value:\n%s", src)
	}
}

func TestParseLightType(t *testing.T) {
	for _, s := range []string{"directional", "spot", "point"} {
		lt, err := parseLightType(s)
		if err != nil || lt.String() != s {
			t.Errorf("parseLightType(%q) = %v, %v", s, lt, err)
		}
	}
	if _, err := parseLightType("area"); err == nil {
		t.Error("parseLightType(area) error = nil")
	}
}
