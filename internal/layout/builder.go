package layout

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/scaffold/api"
)

// Scaffold lists what Build created, in creation order. Paths are relative
// to the root of the filesystem Build was given.
type Scaffold struct {
	Directories []string
	Files       []string
}

// Build creates the directories and empty placeholder files described by tree,
// depth-first in declared order. The top node maps onto base itself when its
// name is the root marker (or empty); otherwise it becomes a directory below base.
// Existing directories and files are left untouched.
//
// On error the returned Scaffold still lists what was created before the failure.
func Build(fsys billy.Filesystem, base string, tree *api.DirNode) (Scaffold, error) {
	var sc Scaffold
	if tree == nil {
		return sc, nil
	}
	top := base
	if !tree.IsDir() || !IsRootAlias(tree.Name) {
		top = filepath.Join(base, tree.Name)
	}
	err := sc.walk(fsys, top, tree)
	return sc, err
}

func (sc *Scaffold) walk(fsys billy.Filesystem, p string, n *api.DirNode) error {
	if !n.IsDir() {
		if n.Name == "" {
			return fmt.Errorf("file node under %s has no name", p)
		}
		return sc.placeholder(fsys, p)
	}
	if err := sc.mkdir(fsys, p); err != nil {
		return err
	}
	for i := range n.Children {
		child := &n.Children[i]
		if err := sc.walk(fsys, filepath.Join(p, child.Name), child); err != nil {
			return err
		}
	}
	return nil
}

func (sc *Scaffold) mkdir(fsys billy.Filesystem, dir string) error {
	created, err := EnsureDir(fsys, dir)
	if err != nil {
		return err
	}
	if created {
		sc.Directories = append(sc.Directories, dir)
	}
	return nil
}

func (sc *Scaffold) placeholder(fsys billy.Filesystem, p string) error {
	if err := sc.mkdir(fsys, filepath.Dir(p)); err != nil {
		return err
	}
	ok, err := Exists(fsys, p)
	if err != nil || ok {
		return err
	}
	f, err := fsys.Create(p)
	if err != nil {
		return fmt.Errorf("create placeholder %s: %w", p, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close placeholder %s: %w", p, err)
	}
	sc.Files = append(sc.Files, p)
	return nil
}

// EnsureDir creates dir (and parents) if it is missing and reports whether it did.
func EnsureDir(fsys billy.Filesystem, dir string) (bool, error) {
	info, err := fsys.Stat(dir)
	switch {
	case err == nil && info.IsDir():
		return false, nil
	case err == nil:
		return false, fmt.Errorf("mkdir %s: exists and is not a directory", dir)
	case !errors.Is(err, os.ErrNotExist):
		return false, fmt.Errorf("stat %s: %w", dir, err)
	}
	if err := fsys.MkdirAll(dir, 0o755); err != nil {
		return false, fmt.Errorf("mkdir %s: %w", dir, err)
	}
	return true, nil
}

// Exists reports whether p exists. Errors other than "not exist" are returned.
func Exists(fsys billy.Basic, p string) (bool, error) {
	_, err := fsys.Stat(p)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", p, err)
}
