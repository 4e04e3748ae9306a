// ABOUTME: Engine multiplexes multiple named trees over one base directory
// ABOUTME: Each tree is an independent KV file opened lazily on first use

package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// Engine owns a set of named physical trees rooted under a single base
// directory. A keyspace.Tree binds to one Engine tree by name; several
// keyspace.View values can share the same physical tree by tagging their
// keys with disjoint prefixes.
type Engine struct {
	baseDir string

	mu    sync.Mutex
	trees map[string]*KV
}

// NewEngine returns an Engine rooted at baseDir. baseDir is created lazily
// the first time a tree is opened.
func NewEngine(baseDir string) *Engine {
	return &Engine{
		baseDir: baseDir,
		trees:   make(map[string]*KV),
	}
}

// Tree returns the named physical tree, opening its backing file if this
// is the first reference to it in the process.
func (e *Engine) Tree(name string) (*KV, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if kv, ok := e.trees[name]; ok {
		return kv, nil
	}

	if err := os.MkdirAll(e.baseDir, 0o755); err != nil {
		return nil, newError(ErrStorageEngine, fmt.Sprintf("create base directory %q", e.baseDir), err)
	}

	kv := &KV{Path: filepath.Join(e.baseDir, name+".db")}
	if err := kv.Open(); err != nil {
		return nil, newError(ErrStorageEngine, fmt.Sprintf("open tree %q", name), err)
	}

	e.trees[name] = kv
	return kv, nil
}

// Trees returns the names of every tree opened so far, sorted.
func (e *Engine) Trees() []string {
	e.mu.Lock()
	defer e.mu.Unlock()

	names := make([]string, 0, len(e.trees))
	for name := range e.trees {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close closes every tree this Engine has opened.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var firstErr error
	for name, kv := range e.trees {
		if err := kv.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close tree %q: %w", name, err)
		}
		delete(e.trees, name)
	}
	return firstErr
}
