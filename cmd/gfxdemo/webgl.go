//go:build js && wasm

package main

import _ "github.com/gogpu/gfx/backend/webgl"
