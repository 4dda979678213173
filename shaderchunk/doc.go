// Package shaderchunk composes WGSL programs from named chunks.
//
// A Registry maps chunk names to source text. A Program is an ordered list of
// chunk names plus token values; Compose concatenates the chunks and replaces
// every $TOKEN placeholder (an uppercase identifier after a dollar sign, such
// as $DECODE, $UV or $CH) with the program's value for it, falling back to
// the registry globals. Substitution is a single pass: replacement text is
// not scanned again. A placeholder with no value fails with
// ErrUnresolvedToken.
//
// Composed sources are cached per program and registry revision, so editing
// a chunk (for example through a Watcher) invalidates every program that
// could have used it.
//
//	reg := shaderchunk.NewRegistry()
//	reg.Set("common", commonWGSL)
//	reg.Set("blur.fs", blurWGSL)
//	src, err := reg.Compose(shaderchunk.Program{
//		Name:   "blur",
//		Chunks: []string{"common", "blur.fs"},
//		Tokens: map[string]string{"CH": "xy"},
//	})
package shaderchunk
