// Package engine materializes a declared project structure into a
// session-scoped output directory.
//
// A run validates the structure, scaffolds the folder tree, then writes each
// code file in order. Files whose content digest matches what is on disk are
// skipped; files that change are backed up under <session>/.backup first.
// Runs are sequential and not transactional: a failure stops the run and
// keeps whatever was already written.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"strings"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/osfs"

	"github.com/agentic-research/scaffold/api"
	"github.com/agentic-research/scaffold/internal/backup"
	"github.com/agentic-research/scaffold/internal/content"
	"github.com/agentic-research/scaffold/internal/layout"
	"github.com/agentic-research/scaffold/internal/linter"
	"github.com/agentic-research/scaffold/internal/session"
	"github.com/agentic-research/scaffold/internal/writeback"
)

// DefaultOutputRoot is used when no output root is configured.
const DefaultOutputRoot = "generatedOutput"

// maxSyntaxWarnings caps the per-file syntax diagnostics echoed to the log.
const maxSyntaxWarnings = 5

// Options configures an Engine. The zero value is usable.
type Options struct {
	// OutputRoot is the directory sessions are created in.
	OutputRoot string
	// FS overrides the filesystem rooted at OutputRoot (tests use memfs).
	FS billy.Filesystem

	RequireSessionID bool
	// ForceOverwrite writes every code file even when its content is unchanged.
	ForceOverwrite bool
	BackupPolicy   backup.Policy

	// FormatGo runs gofumpt over .go files before they are compared and written.
	FormatGo bool
	// ValidateSyntax logs tree-sitter syntax errors as warnings.
	ValidateSyntax bool
	// StrictSyntax turns the first syntax error into a run failure.
	StrictSyntax bool
	// Lint logs suspicious Go patterns as warnings.
	Lint bool

	VersionControl VersionControl
	// VersionControlRequired makes a version-control failure fail the run.
	VersionControlRequired bool
	CommitMessage          string

	Recorder Recorder
	Sink     Sink

	// NewSessionID generates ids for structures without one.
	NewSessionID func() string
}

// Engine drives materialization runs. It holds no per-run state.
type Engine struct {
	opts    Options
	fs      billy.Filesystem
	backups *backup.Manager
}

func New(opts Options) *Engine {
	if opts.OutputRoot == "" {
		opts.OutputRoot = DefaultOutputRoot
	}
	if opts.FS == nil {
		opts.FS = osfs.New(opts.OutputRoot)
	}
	if opts.BackupPolicy == "" {
		opts.BackupPolicy = backup.OnChange
	}
	if opts.Sink == nil {
		opts.Sink = nopSink{}
	}
	if opts.NewSessionID == nil {
		opts.NewSessionID = func() string { return session.NewID(session.DefaultPrefix) }
	}
	return &Engine{
		opts:    opts,
		fs:      opts.FS,
		backups: backup.NewManager(opts.FS),
	}
}

// OutputRoot returns the directory sessions are created in.
func (e *Engine) OutputRoot() string { return e.opts.OutputRoot }

// SessionDir returns the on-disk directory of a session.
func (e *Engine) SessionDir(sessionID string) string {
	return filepath.Join(e.opts.OutputRoot, sessionID)
}

// Materialize runs the full pipeline for s and always returns a Result;
// failures are reported in it rather than as an error.
func (e *Engine) Materialize(ctx context.Context, s *api.ProjectStructure) api.Result {
	sessionID := ""
	if s != nil {
		sessionID = s.SessionID
	}
	if sessionID == "" {
		sessionID = e.opts.NewSessionID()
	}

	if problems := Validate(s, e.opts.RequireSessionID); len(problems) > 0 {
		return e.Reject(sessionID, problems)
	}

	r := newRun(sessionID, e.opts.Sink)
	if err := e.write(r, s, sessionID); err != nil {
		r.error("Error creating project structure: %v", err)
		res := r.result(false, fmt.Sprintf("Error creating project structure: %v", err))
		e.record(ctx, &res)
		return res
	}

	if err := e.commit(ctx, r, sessionID, commitMessage(s)); err != nil {
		res := r.result(false, fmt.Sprintf("Error committing project structure: %v", err))
		e.record(ctx, &res)
		return res
	}

	r.info("Project structure created successfully at %s", e.SessionDir(sessionID))
	res := r.result(true, "Project structure created successfully.")
	e.record(ctx, &res)
	return res
}

// Reject builds the failed Result for a structure that did not validate.
// Nothing is written. An empty sessionID is replaced by a generated one.
func (e *Engine) Reject(sessionID string, problems []string) api.Result {
	if sessionID == "" {
		sessionID = e.opts.NewSessionID()
	}
	r := newRun(sessionID, e.opts.Sink)
	for _, p := range problems {
		r.error("%s", p)
	}
	return r.result(false, (&ValidationError{Problems: problems}).Error())
}

func (e *Engine) write(r *run, s *api.ProjectStructure, sessionDir string) error {
	sc, err := layout.Build(e.fs, sessionDir, s.FolderStructure)
	for _, d := range sc.Directories {
		r.dir(e.display(d))
		r.info("Directory created: %s", e.display(d))
	}
	placeholders := make(map[string]bool, len(sc.Files))
	for _, f := range sc.Files {
		placeholders[f] = true
		r.file(e.display(f))
		r.info("File created: %s", e.display(f))
	}
	if err != nil {
		return err
	}

	for i := range s.Code {
		if err := e.writeFile(r, &s.Code[i], sessionDir, placeholders); err != nil {
			return err
		}
	}
	if s.Changes != nil {
		return e.applyChanges(r, s, sessionDir)
	}
	return nil
}

// applyChanges handles the payload's change list once the code files are in
// place: added files are created empty if absent, modified files are checked
// against the code list, deleted files are backed up and removed.
func (e *Engine) applyChanges(r *run, s *api.ProjectStructure, sessionDir string) error {
	for _, ref := range s.Changes.AddedFiles {
		if err := e.addFile(r, ref, sessionDir); err != nil {
			return err
		}
	}
	for _, ref := range s.Changes.ModifiedFiles {
		if !hasCode(s.Code, ref) {
			r.warn("Modified file has no code entry: %s", e.display(layout.Resolve(sessionDir, ref.Path, ref.Name)))
		}
	}
	for _, ref := range s.Changes.DeletedFiles {
		if err := e.deleteFile(r, ref, sessionDir); err != nil {
			return err
		}
	}
	return nil
}

func (e *Engine) addFile(r *run, ref api.FileRef, sessionDir string) error {
	p := layout.Resolve(sessionDir, ref.Path, ref.Name)
	shown := e.display(p)
	ok, err := layout.Exists(e.fs, p)
	if err != nil {
		return err
	}
	if ok {
		r.info("File already exists: %s", shown)
		return nil
	}
	created, err := layout.EnsureDir(e.fs, filepath.Dir(p))
	if err != nil {
		return err
	}
	if created {
		r.dir(e.display(filepath.Dir(p)))
		r.info("Directory created: %s", e.display(filepath.Dir(p)))
	}
	if err := writeback.WriteFile(e.fs, p, nil); err != nil {
		return err
	}
	r.file(shown)
	r.outcomes = append(r.outcomes, api.FileOutcome{
		Path: shown, Status: api.StatusCreated, Digest: content.Digest(nil), Written: true,
	})
	r.info("Added file: %s", shown)
	return nil
}

func (e *Engine) deleteFile(r *run, ref api.FileRef, sessionDir string) error {
	p := layout.Resolve(sessionDir, ref.Path, ref.Name)
	shown := e.display(p)
	fi, err := e.fs.Lstat(p)
	if errors.Is(err, fs.ErrNotExist) {
		r.info("Nothing to delete: %s", shown)
		return nil
	}
	if err != nil {
		return err
	}
	if fi.IsDir() {
		r.warn("Not deleting directory: %s", shown)
		return nil
	}
	digest, err := content.DigestFile(e.fs, p)
	if err != nil {
		return err
	}

	c, err := e.backups.Backup(p, sessionDir)
	for _, d := range c.Directories {
		r.dir(e.display(d))
	}
	if err != nil {
		return err
	}
	outcome := api.FileOutcome{Path: shown, Status: api.StatusDeleted, Digest: digest, Size: fi.Size(), Backup: e.display(c.Path)}
	r.file(outcome.Backup)
	r.info("File backed up: %s to %s", shown, outcome.Backup)

	if err := e.fs.Remove(p); err != nil {
		return fmt.Errorf("delete %s: %w", shown, err)
	}
	r.outcomes = append(r.outcomes, outcome)
	r.info("Deleted file: %s", shown)
	return nil
}

func hasCode(code []api.CodeFile, ref api.FileRef) bool {
	want := layout.Resolve("", ref.Path, ref.Name)
	for _, f := range code {
		if layout.Resolve("", f.Path, f.Name) == want {
			return true
		}
	}
	return false
}

func (e *Engine) writeFile(r *run, f *api.CodeFile, sessionDir string, placeholders map[string]bool) error {
	p := layout.Resolve(sessionDir, f.Path, f.Name)
	shown := e.display(p)
	data := []byte(content.Decode(f.SourceCode))

	if e.opts.FormatGo {
		formatted, err := writeback.FormatGo(data, p)
		if err != nil {
			r.warn("Formatting skipped: %v", err)
		}
		data = formatted
	}
	if err := e.checkSyntax(r, data, p, shown); err != nil {
		return err
	}
	if e.opts.Lint {
		e.lint(r, data, p, shown)
	}

	created, err := layout.EnsureDir(e.fs, filepath.Dir(p))
	if err != nil {
		return err
	}
	if created {
		r.dir(e.display(filepath.Dir(p)))
		r.info("Directory created: %s", e.display(filepath.Dir(p)))
	}

	digest := content.Digest(data)
	existing, err := content.DigestFile(e.fs, p)
	if err != nil {
		return err
	}
	outcome := api.FileOutcome{Path: shown, Digest: digest, Size: int64(len(data))}

	switch {
	case existing == "" || placeholders[p]:
		outcome.Status = api.StatusCreated
		r.info("File created: %s", shown)
	case existing == digest && !e.opts.ForceOverwrite && e.opts.BackupPolicy != backup.Always:
		outcome.Status = api.StatusUnchanged
		r.info("File unchanged: %s", shown)
		r.outcomes = append(r.outcomes, outcome)
		return nil
	default:
		changed := existing != digest
		if changed {
			outcome.Status = api.StatusModified
			r.info("File modified: %s", shown)
		} else {
			outcome.Status = api.StatusUnchanged
			r.info("File overwritten: %s", shown)
		}
		if changed || e.opts.BackupPolicy == backup.Always {
			c, err := e.backups.Backup(p, sessionDir)
			for _, d := range c.Directories {
				r.dir(e.display(d))
			}
			if err != nil {
				return err
			}
			outcome.Backup = e.display(c.Path)
			r.file(outcome.Backup)
			r.info("File backed up: %s to %s", shown, outcome.Backup)
		}
	}

	if err := writeback.WriteFile(e.fs, p, data); err != nil {
		return err
	}
	// Later entries for the same path compare against what was just written.
	delete(placeholders, p)
	r.file(shown)
	outcome.Written = true
	r.outcomes = append(r.outcomes, outcome)
	r.info("File written: %s", shown)
	return nil
}

func (e *Engine) checkSyntax(r *run, data []byte, p, shown string) error {
	if !e.opts.ValidateSyntax && !e.opts.StrictSyntax {
		return nil
	}
	diags := writeback.Diagnostics(data, p)
	if len(diags) == 0 {
		return nil
	}
	if e.opts.StrictSyntax {
		d := diags[0]
		d.FilePath = shown
		return &d
	}
	for i, d := range diags {
		if i == maxSyntaxWarnings {
			r.warn("%s: %d more syntax errors", shown, len(diags)-i)
			break
		}
		d.FilePath = shown
		r.warn("%v", &d)
	}
	return nil
}

func (e *Engine) lint(r *run, data []byte, p, shown string) {
	diags, err := linter.Lint(data, p)
	if err != nil {
		r.warn("Lint skipped for %s: %v", shown, err)
		return
	}
	for _, d := range diags {
		r.warn("%s: %s", shown, d)
	}
}

func commitMessage(s *api.ProjectStructure) string {
	if s.Changes != nil {
		return strings.TrimSpace(s.Changes.Summary)
	}
	return ""
}

// commit snapshots the session directory. msg falls back to the configured
// commit message, then to a generated one.
func (e *Engine) commit(ctx context.Context, r *run, sessionID, msg string) error {
	vc := e.opts.VersionControl
	if vc == nil {
		return nil
	}
	dir := e.SessionDir(sessionID)
	if msg == "" {
		msg = e.opts.CommitMessage
	}
	if msg == "" {
		msg = "Materialize session " + sessionID
	}

	hash := ""
	err := vc.Init(ctx, dir)
	if err == nil {
		hash, err = vc.StageAndCommit(ctx, dir, msg)
	}
	if err != nil {
		r.error("Version control step failed: %v", err)
		if e.opts.VersionControlRequired {
			return err
		}
		return nil
	}
	if hash == "" {
		r.info("Nothing to commit in %s", dir)
		return nil
	}
	r.info("Committed changes: %s (%s)", msg, hash)
	return nil
}

func (e *Engine) record(ctx context.Context, res *api.Result) {
	if e.opts.Recorder == nil {
		return
	}
	if err := e.opts.Recorder.Record(ctx, *res); err != nil {
		msg := fmt.Sprintf("Journal write failed: %v", err)
		res.Errors = append(res.Errors, "[ERROR] "+msg)
		e.opts.Sink.Error(msg)
	}
}

func (e *Engine) display(p string) string {
	return filepath.Join(e.opts.OutputRoot, p)
}
