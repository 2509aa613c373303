package writeback

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"
	"github.com/google/uuid"
)

// DefaultPerm is the mode given to files that did not exist before.
const DefaultPerm os.FileMode = 0o644

// WriteFile replaces the content of p with data. The bytes go to a temp file
// in the same directory which is then renamed over p, so readers never see a
// half-written file. An existing file keeps its permissions; new files get
// DefaultPerm (minus umask).
func WriteFile(fsys billy.Filesystem, p string, data []byte) error {
	perm := DefaultPerm
	if info, err := fsys.Stat(p); err == nil {
		perm = info.Mode().Perm()
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("stat %s: %w", p, err)
	}

	tmpName := filepath.Join(filepath.Dir(p), ".scaffold-write-"+uuid.NewString())
	tmp, err := fsys.OpenFile(tmpName, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return fmt.Errorf("create temp file for %s: %w", p, err)
	}

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = fsys.Remove(tmpName)
		return fmt.Errorf("write temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		_ = fsys.Remove(tmpName)
		return fmt.Errorf("close temp: %w", err)
	}

	if err := fsys.Rename(tmpName, p); err != nil {
		_ = fsys.Remove(tmpName)
		return fmt.Errorf("rename temp to %s: %w", p, err)
	}
	return nil
}
