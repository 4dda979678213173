package shaderchunk

import (
	"fmt"
	"log/slog"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"sync"

	"github.com/gogpu/gfx"
	"github.com/gogpu/gfx/cache"
)

// tokenPattern matches a $TOKEN placeholder.
var tokenPattern = regexp.MustCompile(`\$[A-Z][A-Z0-9_]*`)

// Program is an ordered list of chunks and the token values used to
// specialize them.
type Program struct {
	// Name identifies the program in logs and errors.
	Name string

	// Chunks are concatenated in order, separated by newlines.
	Chunks []string

	// Tokens maps a token name, without the leading '$', to its value.
	Tokens map[string]string
}

// key identifies a composed program at a registry revision. Every field is
// length-prefixed, so names and values may hold any byte.
func (p Program) key(revision uint64) string {
	var b strings.Builder
	field := func(s string) {
		b.WriteString(strconv.Itoa(len(s)))
		b.WriteByte(':')
		b.WriteString(s)
	}
	field(p.Name)
	field(strconv.FormatUint(revision, 10))
	field(strconv.Itoa(len(p.Chunks)))
	for _, c := range p.Chunks {
		field(c)
	}
	keys := slices.Sorted(maps.Keys(p.Tokens))
	field(strconv.Itoa(len(keys)))
	for _, k := range keys {
		field(k)
		field(p.Tokens[k])
	}
	return b.String()
}

// Registry holds named chunks and global token values. It is safe for
// concurrent use.
type Registry struct {
	mu       sync.RWMutex
	chunks   map[string]string
	globals  map[string]string
	revision uint64

	programs *cache.Sharded[string]
	log      *slog.Logger
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		chunks:   make(map[string]string),
		globals:  make(map[string]string),
		programs: cache.NewSharded[string](0),
		log:      gfx.ComponentLogger("shaderchunk"),
	}
}

// Set adds or replaces a chunk.
func (r *Registry) Set(name, source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.chunks[name]; ok && old == source {
		return
	}
	r.chunks[name] = source
	r.revision++
}

// Get returns the source of a chunk.
func (r *Registry) Get(name string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	src, ok := r.chunks[name]
	return src, ok
}

// Delete removes a chunk and reports whether it existed.
func (r *Registry) Delete(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.chunks[name]; !ok {
		return false
	}
	delete(r.chunks, name)
	r.revision++
	return true
}

// Names returns the chunk names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Sorted(maps.Keys(r.chunks))
}

// SetGlobal sets the fallback value of a token for every program. The token
// is given without the leading '$'.
func (r *Registry) SetGlobal(token, value string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if old, ok := r.globals[token]; ok && old == value {
		return
	}
	r.globals[token] = value
	r.revision++
}

// Revision increases every time a chunk or global changes.
func (r *Registry) Revision() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.revision
}

// CacheStats returns the composed program cache counters.
func (r *Registry) CacheStats() cache.Stats { return r.programs.Stats() }

// Compose assembles the program's source.
func (r *Registry) Compose(p Program) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	key := p.key(r.revision)
	if src, ok := r.programs.Get(key); ok {
		return src, nil
	}

	var b strings.Builder
	for i, name := range p.Chunks {
		src, ok := r.chunks[name]
		if !ok {
			return "", fmt.Errorf("%w: %q in program %q", ErrChunkNotFound, name, p.Name)
		}
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(src)
	}

	var missing []string
	out := tokenPattern.ReplaceAllStringFunc(b.String(), func(tok string) string {
		name := tok[1:]
		if v, ok := p.Tokens[name]; ok {
			return v
		}
		if v, ok := r.globals[name]; ok {
			return v
		}
		if !slices.Contains(missing, tok) {
			missing = append(missing, tok)
		}
		return tok
	})
	if len(missing) > 0 {
		slices.Sort(missing)
		return "", fmt.Errorf("%w: %s in program %q", ErrUnresolvedToken, strings.Join(missing, ", "), p.Name)
	}

	r.programs.Set(key, out)
	r.log.Debug("shaderchunk: composed", "program", p.Name, "chunks", len(p.Chunks), "bytes", len(out))
	return out, nil
}

// Tokens returns the distinct placeholders in src, without the '$', in
// order of first appearance.
func Tokens(src string) []string {
	var out []string
	for _, m := range tokenPattern.FindAllString(src, -1) {
		if name := m[1:]; !slices.Contains(out, name) {
			out = append(out, name)
		}
	}
	return out
}
