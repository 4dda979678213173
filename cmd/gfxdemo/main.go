// Command gfxdemo exercises gfx from the command line: it lists the
// available backends, renders a shadow map headlessly and composes shader
// programs from chunks.
package main

import (
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
