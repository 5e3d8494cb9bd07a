// Package fileutil holds small filesystem helpers shared by the job store and
// the draft file writer.
package fileutil

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

// WriteFile replaces path with data via a synced temp file in the same
// directory and a rename, so readers see either the old or the new content.
// perm is used when path does not exist yet; otherwise its mode is kept.
func WriteFile(path string, data []byte, perm os.FileMode) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "create %s", dir)
	}
	if fi, err := os.Stat(path); err == nil {
		perm = fi.Mode().Perm()
	}

	out, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	tmp := out.Name()
	if _, err := out.Write(data); err != nil {
		_ = out.Close()
		_ = os.Remove(tmp)
		return errors.Wrap(err, "write temp file")
	}
	_ = out.Sync()
	if err := out.Close(); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "close temp file")
	}
	if err := os.Chmod(tmp, perm); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrap(err, "chmod temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return errors.Wrapf(err, "replace %s", path)
	}
	return nil
}
