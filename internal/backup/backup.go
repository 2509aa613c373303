// Package backup keeps a copy of a file's previous content before it is overwritten.
package backup

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/scaffold/internal/layout"
)

// Dir is the backup area inside a session root.
const Dir = ".backup"

// Policy decides which existing files are backed up before a write.
type Policy string

const (
	// OnChange backs up only when the new content differs from the file on disk.
	OnChange Policy = "changed"
	// Always backs up every existing file that is about to be written.
	Always Policy = "always"
)

// ParsePolicy accepts "changed" (or "") and "always".
func ParsePolicy(s string) (Policy, error) {
	switch Policy(strings.ToLower(strings.TrimSpace(s))) {
	case "", OnChange:
		return OnChange, nil
	case Always:
		return Always, nil
	default:
		return "", fmt.Errorf("unknown backup policy %q (want %q or %q)", s, OnChange, Always)
	}
}

// Copy describes one backup that was taken.
type Copy struct {
	Source string
	Path   string
	// Directories lists directories created to hold the copy.
	Directories []string
}

// Manager copies files into <sessionRoot>/.backup, mirroring their path
// relative to the session root. A later backup of the same file replaces
// the earlier copy; there is no history chain.
type Manager struct {
	FS billy.Filesystem
}

func NewManager(fsys billy.Filesystem) *Manager {
	return &Manager{FS: fsys}
}

// PathFor returns where filePath would be backed up.
func PathFor(filePath, sessionRoot string) (string, error) {
	rel, err := filepath.Rel(sessionRoot, filePath)
	if err != nil {
		return "", fmt.Errorf("backup path for %s: %w", filePath, err)
	}
	if rel == "." || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("backup path for %s: outside session root %s", filePath, sessionRoot)
	}
	return filepath.Join(sessionRoot, Dir, rel), nil
}

// Backup copies the current bytes of filePath into the backup area.
// It must be called before the new content is written.
func (m *Manager) Backup(filePath, sessionRoot string) (Copy, error) {
	dst, err := PathFor(filePath, sessionRoot)
	if err != nil {
		return Copy{}, err
	}
	c := Copy{Source: filePath, Path: dst}

	for _, dir := range []string{filepath.Join(sessionRoot, Dir), filepath.Dir(dst)} {
		created, err := layout.EnsureDir(m.FS, dir)
		if err != nil {
			return c, err
		}
		if created {
			c.Directories = append(c.Directories, dir)
		}
	}

	if err := m.copyFile(filePath, dst); err != nil {
		return c, err
	}
	return c, nil
}

func (m *Manager) copyFile(src, dst string) error {
	in, err := m.FS.Open(src)
	if err != nil {
		return fmt.Errorf("open %s: %w", src, err)
	}
	defer func() { _ = in.Close() }()

	out, err := m.FS.Create(dst)
	if err != nil {
		return fmt.Errorf("create backup %s: %w", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return fmt.Errorf("copy %s to %s: %w", src, dst, err)
	}
	if err := out.Close(); err != nil {
		return fmt.Errorf("close backup %s: %w", dst, err)
	}
	return nil
}
