package shaderchunk

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// ChunkExt is the file extension of chunk files.
const ChunkExt = ".wgsl"

// ChunkName returns the chunk name for a chunk file path: the base name
// without ChunkExt.
func ChunkName(path string) string {
	return strings.TrimSuffix(filepath.Base(path), ChunkExt)
}

// LoadDir registers every *.wgsl file in dir (not recursively) and returns
// the number of chunks loaded.
func LoadDir(r *Registry, dir string) (int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("shaderchunk: load %s: %w", dir, err)
	}
	n := 0
	for _, e := range entries {
		if e.IsDir() || filepath.Ext(e.Name()) != ChunkExt {
			continue
		}
		if err := loadFile(r, filepath.Join(dir, e.Name())); err != nil {
			return n, err
		}
		n++
	}
	return n, nil
}

func loadFile(r *Registry, path string) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("shaderchunk: load %s: %w", path, err)
	}
	r.Set(ChunkName(path), string(src))
	return nil
}

// Watcher keeps a registry in sync with a directory of chunk files.
type Watcher struct {
	reg      *Registry
	dir      string
	fs       *fsnotify.Watcher
	onChange func(name string)

	done      chan struct{}
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// Watch loads dir into r and then reloads chunks as files are written,
// created, removed or renamed. onChange, if non-nil, is called from the
// watcher goroutine with the name of each changed chunk.
func Watch(r *Registry, dir string, onChange func(name string)) (*Watcher, error) {
	if _, err := LoadDir(r, dir); err != nil {
		return nil, err
	}
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("shaderchunk: watch %s: %w", dir, err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("shaderchunk: watch %s: %w", dir, err)
	}

	w := &Watcher{reg: r, dir: dir, fs: fw, onChange: onChange, done: make(chan struct{})}
	w.wg.Add(1)
	go w.run()
	r.log.Info("shaderchunk: watching", "dir", dir)
	return w, nil
}

func (w *Watcher) run() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case e, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handle(e)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.reg.log.Warn("shaderchunk: watch error", "dir", w.dir, "err", err)
		}
	}
}

func (w *Watcher) handle(e fsnotify.Event) {
	if filepath.Ext(e.Name) != ChunkExt {
		return
	}
	name := ChunkName(e.Name)
	switch {
	case e.Has(fsnotify.Create) || e.Has(fsnotify.Write):
		if err := loadFile(w.reg, e.Name); err != nil {
			// Editors often replace files in several steps; the next
			// event reloads it.
			if !errors.Is(err, os.ErrNotExist) {
				w.reg.log.Warn("shaderchunk: reload failed", "chunk", name, "err", err)
			}
			return
		}
		w.reg.log.Debug("shaderchunk: reloaded", "chunk", name)
	case e.Has(fsnotify.Remove) || e.Has(fsnotify.Rename):
		if !w.reg.Delete(name) {
			return
		}
		w.reg.log.Debug("shaderchunk: removed", "chunk", name)
	default:
		return
	}
	if w.onChange != nil {
		w.onChange(name)
	}
}

// Close stops watching. It is safe to call more than once.
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		close(w.done)
		err = w.fs.Close()
		w.wg.Wait()
	})
	return err
}
