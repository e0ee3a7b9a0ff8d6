package localstore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/fxamacker/cbor/v2"
)

const (
	fileName       = "state.cbor"
	dirPermission  = 0o700
	filePermission = 0o600
)

// File keeps every value in a single CBOR-encoded map under dir. Each write
// replaces the file atomically.
type File struct {
	mu     sync.Mutex
	path   string
	values map[string]string
}

// OpenFile loads dir/state.cbor, creating dir when needed. A missing file is
// an empty store.
func OpenFile(dir string) (*File, error) {
	if err := os.MkdirAll(dir, dirPermission); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	f := &File{
		path:   filepath.Join(dir, fileName),
		values: make(map[string]string),
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return f, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read state file: %w", err)
	}
	if len(data) > 0 {
		if err := cbor.Unmarshal(data, &f.values); err != nil {
			return nil, fmt.Errorf("failed to decode state file %s: %w", f.path, err)
		}
	}
	return f, nil
}

// Path returns the state file location.
func (f *File) Path() string { return f.path }

func (f *File) Get(_ context.Context, key string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.values[key]
	return v, ok, nil
}

func (f *File) Set(_ context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := maps.Clone(f.values)
	next[key] = value
	return f.commit(next)
}

func (f *File) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	next := maps.Clone(f.values)
	for _, k := range keys {
		delete(next, k)
	}
	return f.commit(next)
}

// commit writes next to disk and adopts it only when the write succeeded.
func (f *File) commit(next map[string]string) error {
	data, err := cbor.Marshal(next)
	if err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.path), fileName+".*")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Chmod(filePermission); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write state: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	f.values = next
	return nil
}
