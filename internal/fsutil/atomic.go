// Package fsutil writes generated files in place without exposing a partial
// file to nginx or to the issuer container reading the domain file.
package fsutil

import (
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// WriteFileAtomic stages data in a temp file next to path and renames it over
// path. nginx -t or a concurrent reload sees either the previous nginx.conf
// or the new one. The target keeps its current permissions when it exists;
// otherwise it is created with mode.
func WriteFileAtomic(path string, data []byte, mode os.FileMode) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return errors.New("empty path")
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return err
	}
	switch info, err := os.Stat(path); {
	case err == nil:
		mode = info.Mode().Perm()
	case !errors.Is(err, os.ErrNotExist):
		return err
	}

	staged, err := os.CreateTemp(dir, "."+filepath.Base(path)+".nginxgen-*")
	if err != nil {
		return err
	}
	stagedPath := staged.Name()
	if err := writeStaged(staged, data, mode); err != nil {
		_ = os.Remove(stagedPath)
		return err
	}
	if err := os.Rename(stagedPath, path); err != nil {
		_ = os.Remove(stagedPath)
		return err
	}
	return syncDir(dir)
}

// writeStaged fills f and closes it. The data must be on disk before the
// rename publishes it.
func writeStaged(f *os.File, data []byte, mode os.FileMode) error {
	err := f.Chmod(mode)
	if err == nil {
		_, err = f.Write(data)
	}
	if err == nil {
		err = f.Sync()
	}
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	return err
}

func syncDir(dir string) error {
	if runtime.GOOS == "windows" {
		return nil
	}
	f, err := os.Open(dir)
	if err != nil {
		return err
	}
	defer f.Close()
	return f.Sync()
}
