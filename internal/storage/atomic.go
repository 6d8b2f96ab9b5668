// Package storage implements the Storage Facade: the
// directory-per-team on-disk layout, atomic writes, and per-path operation
// locks that back team/orchestrator/prompt persistence.
package storage

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"
)

// Now is overridable by tests.
var Now = time.Now

// lockTable hands out one *flock.Flock per target path so operations on the
// same file serialize even across goroutines in this process.
type pathLock struct {
	inProcess sync.Mutex // serializes goroutines within this process
	fl        *flock.Flock
}

type lockTable struct {
	mu    sync.Mutex
	locks map[string]*pathLock
}

var locks = &lockTable{locks: make(map[string]*pathLock)}

func (t *lockTable) acquire(path string) (*pathLock, error) {
	t.mu.Lock()
	pl, ok := t.locks[path]
	if !ok {
		pl = &pathLock{fl: flock.New(path + ".lock")}
		t.locks[path] = pl
	}
	t.mu.Unlock()

	pl.inProcess.Lock()
	if err := pl.fl.Lock(); err != nil {
		pl.inProcess.Unlock()
		return nil, fmt.Errorf("%w: lock %s: %v", ErrStorageIO, path, err)
	}
	return pl, nil
}

func (pl *pathLock) release() {
	pl.fl.Unlock()
	pl.inProcess.Unlock()
}

// withLock runs fn while holding the operation lock for path: a per-process
// mutex plus an flock-backed file lock, so both concurrent goroutines in
// this process and concurrent other processes serialize on the same path.
func withLock(path string, fn func() error) error {
	// The lock file lives beside path, so its directory must exist first.
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("%w: mkdir %s: %v", ErrStorageIO, dir, err)
		}
	}
	pl, err := locks.acquire(path)
	if err != nil {
		return err
	}
	defer pl.release()
	return fn()
}

// atomicWrite writes data to target via a temp-file-then-rename so external
// readers never observe a partially written file. Caller must already hold target's operation lock.
func atomicWrite(target string, data []byte) error {
	dir := filepath.Dir(target)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("%w: mkdir %s: %v", ErrStorageIO, dir, err)
	}
	tmp := fmt.Sprintf("%s.tmp.%d.%d", target, Now().UnixNano(), os.Getpid())
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("%w: create temp file: %v", ErrStorageIO, err)
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: write temp file: %v", ErrStorageIO, err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(tmp)
		return fmt.Errorf("%w: fsync temp file: %v", ErrStorageIO, err)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: close temp file: %v", ErrStorageIO, err)
	}
	if err := os.Rename(tmp, target); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("%w: rename into place: %v", ErrStorageIO, err)
	}
	return nil
}

// writeJSONAtomic writes the already-serialized data to target under
// target's operation lock.
func writeJSONAtomic(target string, data []byte) error {
	return withLock(target, func() error {
		return atomicWrite(target, data)
	})
}

// WriteJSONAtomic marshals v and atomically writes it to path under path's
// operation lock. Exported so other documents living directly under the
// agentmux home (runtime.json, scheduled-messages.json, and similarly
// shaped records owned by other packages) reuse the same lock/rename
// machinery instead of duplicating it.
func WriteJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: marshal: %v", ErrStorageIO, err)
	}
	return writeJSONAtomic(path, data)
}

// ReadJSON reads and unmarshals the document at path into v. A missing file
// is not an error: v is left unmodified and ok is false.
func ReadJSON(path string, v interface{}) (ok bool, err error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, fmt.Errorf("%w: read %s: %v", ErrStorageIO, path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, fmt.Errorf("%w: parse %s: %v", ErrStorageIO, path, err)
	}
	return true, nil
}
