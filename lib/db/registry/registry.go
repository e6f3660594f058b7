// Package registry manages multiple named engines rooted in one directory.
// It is a thin, thread-safe map from database name to engine: each name owns
// exactly one file inside the registry directory, engines are opened lazily
// on first use and shared afterwards.
package registry

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/ValentinKolb/fsKV/lib/db"
)

// FileSuffix is appended to the database name to form its file name.
const FileSuffix = ".birch"

// EngineFactory opens the engine backing a database file.
// This abstracts the engine construction from the registry so callers can
// inject per-registry default options or a different engine implementation.
type EngineFactory func(path string) (db.Engine, error)

// Registry is a directory-scoped map of named engines.
type Registry struct {
	dir     string
	factory EngineFactory

	mu      sync.Mutex
	engines map[string]db.Engine
}

// New creates a registry rooted at dir, creating the directory if needed.
func New(dir string, factory EngineFactory) (*Registry, error) {
	if factory == nil {
		return nil, fmt.Errorf("registry requires an engine factory")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create registry directory: %w", err)
	}
	return &Registry{
		dir:     dir,
		factory: factory,
		engines: make(map[string]db.Engine),
	}, nil
}

// validName rejects names that would escape the registry directory.
func validName(name string) error {
	if name == "" {
		return fmt.Errorf("empty database name")
	}
	if strings.ContainsAny(name, "/\\") || name == "." || name == ".." {
		return fmt.Errorf("invalid database name %q", name)
	}
	return nil
}

// Path returns the file path a database name maps to.
func (r *Registry) Path(name string) string {
	return filepath.Join(r.dir, name+FileSuffix)
}

// Open returns the engine for name, opening it on first use.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *Registry) Open(name string) (db.Engine, error) {
	if err := validName(name); err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if eng, ok := r.engines[name]; ok {
		return eng, nil
	}

	eng, err := r.factory(r.Path(name))
	if err != nil {
		return nil, err
	}
	r.engines[name] = eng
	return eng, nil
}

// Get returns the engine for name if it is currently open.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *Registry) Get(name string) (db.Engine, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	eng, ok := r.engines[name]
	return eng, ok
}

// Names lists all databases in the directory, open or not.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *Registry) Names() ([]string, error) {
	files, err := os.ReadDir(r.dir)
	if err != nil {
		return nil, fmt.Errorf("read registry directory: %w", err)
	}

	var names []string
	for _, f := range files {
		if f.IsDir() || !strings.HasSuffix(f.Name(), FileSuffix) {
			continue
		}
		names = append(names, strings.TrimSuffix(f.Name(), FileSuffix))
	}
	return names, nil
}

// Close closes the engine for name, if open.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *Registry) Close(name string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	eng, ok := r.engines[name]
	if !ok {
		return nil
	}
	delete(r.engines, name)
	return eng.Close()
}

// CloseAll closes every open engine, returning the first error encountered.
//
// Thread-safety: This method is thread-safe and can be called concurrently.
func (r *Registry) CloseAll() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for name, eng := range r.engines {
		if err := eng.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(r.engines, name)
	}
	return firstErr
}
