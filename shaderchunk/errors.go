package shaderchunk

import "errors"

var (
	// ErrChunkNotFound is returned when a program names an unknown chunk.
	ErrChunkNotFound = errors.New("shaderchunk: chunk not found")

	// ErrUnresolvedToken is returned when a $TOKEN has no value.
	ErrUnresolvedToken = errors.New("shaderchunk: unresolved token")

	// ErrCompile is returned when a composed program fails to compile.
	ErrCompile = errors.New("shaderchunk: compile failed")
)
