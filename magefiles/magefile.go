//go:build mage

// Build targets for gfx. Run "mage -l" to list them.
package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/magefile/mage/mg"
	"github.com/magefile/mage/sh"
)

// Default runs the tests.
var Default = Test

const wasmOut = "bin/webgl.test.wasm"

// Test runs the unit tests with the race detector.
func Test() error {
	return sh.RunV("go", "test", "-race", "./...")
}

// TestRust runs the tests with the wgpu-native backend compiled in.
func TestRust() error {
	return sh.RunV("go", "test", "-tags", "rust", "./backend/rust/...", "./render/...")
}

// Lint vets every package, including the tagged backends.
func Lint() error {
	if err := sh.RunV("go", "vet", "./..."); err != nil {
		return err
	}
	if err := sh.RunV("go", "vet", "-tags", "rust", "./backend/rust/..."); err != nil {
		return err
	}
	return sh.RunWithV(wasmEnv(), "go", "vet", "./backend/webgl/...")
}

// Wasm builds the WebGL2 backend tests into a wasm binary.
func Wasm() error {
	if err := os.MkdirAll(filepath.Dir(wasmOut), 0o755); err != nil {
		return err
	}
	return sh.RunWithV(wasmEnv(), "go", "test", "-c", "-o", wasmOut, "./backend/webgl")
}

// Demo renders a VSM shadow face with the software backend.
func Demo() error {
	mg.Deps(Test)
	out := os.Getenv("GFX_DEMO_OUT")
	if out == "" {
		out = "shadow.png"
	}
	fmt.Println("writing", out)
	return sh.RunV("go", "run", "./cmd/gfxdemo", "--backend", "software",
		"shadow", "--light", "point", "--face", "2", "--vsm", "-o", out)
}

// Clean removes build output.
func Clean() error {
	return sh.Rm("bin")
}

func wasmEnv() map[string]string {
	return map[string]string{"GOOS": "js", "GOARCH": "wasm"}
}
