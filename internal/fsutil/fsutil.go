// Package fsutil holds the file-system primitives shared by the history and
// key binding stores: atomic replacement of small files and the data
// directory lock that keeps a second daemon from writing the same files.
package fsutil

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/gofrs/flock"
)

// ErrLocked is returned by Lock when another process holds the data directory.
var ErrLocked = errors.New("data directory is in use by another clipkeep instance")

// WriteFile replaces path with data. The bytes go to a temporary file in the
// same directory which is synced and then renamed over path, so readers see
// either the old or the new content, never a partial write.
func WriteFile(path string, data []byte, perm os.FileMode) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp: %w", err)
	}
	if err = tmp.Chmod(perm); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("chmod temp: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename: %w", err)
	}
	return nil
}

// Lock takes an exclusive, non-blocking lock on dir/name. The returned
// function releases it. ErrLocked means another process already holds it.
func Lock(dir, name string) (func() error, error) {
	fl := flock.New(filepath.Join(dir, name))
	ok, err := fl.TryLock()
	if err != nil {
		return nil, fmt.Errorf("lock %s: %w", fl.Path(), err)
	}
	if !ok {
		return nil, ErrLocked
	}
	return fl.Unlock, nil
}

// EnsureDir creates dir (mode 0700) and checks that it is writable.
func EnsureDir(dir string) error {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("create %s: %w", dir, err)
	}
	probe, err := os.CreateTemp(dir, ".probe-*")
	if err != nil {
		return fmt.Errorf("%s is not writable: %w", dir, err)
	}
	name := probe.Name()
	_ = probe.Close()
	return os.Remove(name)
}
