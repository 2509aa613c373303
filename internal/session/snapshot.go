package session

import (
	"path/filepath"

	billy "github.com/go-git/go-billy/v5"

	"github.com/agentic-research/scaffold/internal/content"
	"github.com/agentic-research/scaffold/internal/layout"
	"github.com/agentic-research/scaffold/internal/writeback"
)

// MetaDir holds bookkeeping files inside a session directory.
const MetaDir = ".scaffold"

// PayloadFile is the stored copy of the last input payload.
const PayloadFile = "payload.json"

// PayloadPath returns where the payload of sessionDir is stored.
func PayloadPath(sessionDir string) string {
	return filepath.Join(sessionDir, MetaDir, PayloadFile)
}

// Snapshot stores raw as the session's payload copy unless the stored copy
// already has the same digest. It reports whether it wrote.
func Snapshot(fsys billy.Filesystem, sessionDir string, raw []byte) (bool, error) {
	p := PayloadPath(sessionDir)
	old, err := content.DigestFile(fsys, p)
	if err != nil {
		return false, err
	}
	if old == content.Digest(raw) {
		return false, nil
	}
	if _, err := layout.EnsureDir(fsys, filepath.Dir(p)); err != nil {
		return false, err
	}
	if err := writeback.WriteFile(fsys, p, raw); err != nil {
		return false, err
	}
	return true, nil
}
