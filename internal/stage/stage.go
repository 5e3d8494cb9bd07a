// Package stage moves draft files between the drafts/, scheduled/ and posted/
// directories of a project.
//
// A project looks like:
//
//	project/
//	  drafts/     work in progress
//	  scheduled/  every draft has a pending job
//	  posted/     archive
//
// Targets are always siblings of the file's current directory. When the
// sibling does not exist nothing is moved.
package stage

import (
	"os"
	"path/filepath"

	"github.com/cockroachdb/errors"
)

type Name string

const (
	Drafts    Name = "drafts"
	Scheduled Name = "scheduled"
	Posted    Name = "posted"
	Unknown   Name = "unknown"
)

// All lists the stages in lifecycle order.
var All = []Name{Drafts, Scheduled, Posted}

// Of infers the stage from the name of the file's parent directory.
func Of(path string) Name {
	switch n := Name(filepath.Base(filepath.Dir(path))); n {
	case Drafts, Scheduled, Posted:
		return n
	default:
		return Unknown
	}
}

// targetDir returns the sibling directory named target, or the parent itself
// when the file already lives there.
func targetDir(path string, target Name) (string, bool) {
	parent := filepath.Dir(path)
	sibling := filepath.Join(filepath.Dir(parent), string(target))
	if fi, err := os.Stat(sibling); err == nil && fi.IsDir() {
		return sibling, true
	}
	if filepath.Base(parent) == string(target) {
		return parent, true
	}
	return "", false
}

// Move relocates path into the target stage directory and returns the new path.
// moved is false when no target directory exists or the file is already there.
func Move(path string, target Name) (newPath string, moved bool, err error) {
	dir, ok := targetDir(path, target)
	if !ok {
		return path, false, nil
	}
	if filepath.Clean(filepath.Dir(path)) == filepath.Clean(dir) {
		return path, false, nil
	}
	newPath = filepath.Join(dir, filepath.Base(path))
	if _, err := os.Stat(newPath); err == nil {
		return path, false, errors.Newf("%s already exists", newPath)
	}
	if err := os.Rename(path, newPath); err != nil {
		return path, false, errors.Wrapf(err, "move %s to %s", path, target)
	}
	return newPath, true, nil
}

func MoveToScheduled(path string) (string, bool, error) { return Move(path, Scheduled) }

func MoveToPosted(path string) (string, bool, error) { return Move(path, Posted) }

// Locate finds a file that left its stage directory by looking for the same
// name in the sibling stage directories. ok is false when path is not inside a
// stage directory or no sibling holds the file.
func Locate(path string) (found string, ok bool) {
	if Of(path) == Unknown {
		return "", false
	}
	root := filepath.Dir(filepath.Dir(path))
	for _, n := range All {
		candidate := filepath.Join(root, string(n), filepath.Base(path))
		if fi, err := os.Stat(candidate); err == nil && !fi.IsDir() {
			return candidate, true
		}
	}
	return "", false
}

// EnsureProjectDirs creates the three stage directories under base.
func EnsureProjectDirs(base string) (map[Name]string, error) {
	out := make(map[Name]string, len(All))
	for _, n := range All {
		dir := filepath.Join(base, string(n))
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "create %s", dir)
		}
		out[n] = dir
	}
	return out, nil
}
