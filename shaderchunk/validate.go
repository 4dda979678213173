package shaderchunk

import (
	"fmt"

	"github.com/gogpu/naga"
)

// Validate compiles WGSL source and reports any error as ErrCompile.
func Validate(source string) error {
	if _, err := naga.Compile(source); err != nil {
		return fmt.Errorf("%w: %w", ErrCompile, err)
	}
	return nil
}

// ComposeValidated composes p and validates the result.
func (r *Registry) ComposeValidated(p Program) (string, error) {
	src, err := r.Compose(p)
	if err != nil {
		return "", err
	}
	if err := Validate(src); err != nil {
		return "", fmt.Errorf("program %q: %w", p.Name, err)
	}
	return src, nil
}
