package engine

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	billy "github.com/go-git/go-billy/v5"
	"github.com/go-git/go-billy/v5/memfs"
	"github.com/go-git/go-billy/v5/util"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentic-research/scaffold/api"
	"github.com/agentic-research/scaffold/internal/backup"
)

type captureSink struct {
	infos, warns, errs []string
}

func (s *captureSink) Info(msg string)  { s.infos = append(s.infos, msg) }
func (s *captureSink) Warn(msg string)  { s.warns = append(s.warns, msg) }
func (s *captureSink) Error(msg string) { s.errs = append(s.errs, msg) }

func newTestEngine(t *testing.T, opts Options) (*Engine, billy.Filesystem) {
	t.Helper()
	fsys := memfs.New()
	opts.FS = fsys
	opts.OutputRoot = "out"
	return New(opts), fsys
}

func scenario(source string) *api.ProjectStructure {
	return &api.ProjectStructure{
		SessionID: "sess_test",
		Language:  "ts",
		Runtime:   "node",
		FolderStructure: &api.DirNode{
			Name: "ROOT",
			Type: api.TypeDirectory,
			Children: []api.DirNode{
				{Name: "a.txt", Type: api.TypeFile},
			},
		},
		Code: []api.CodeFile{
			{Name: "a.txt", Path: "ROOT", SourceCode: source},
		},
	}
}

func readFile(t *testing.T, fsys billy.Filesystem, p string) string {
	t.Helper()
	b, err := util.ReadFile(fsys, p)
	require.NoError(t, err)
	return string(b)
}

func logsContain(logs []string, substr string) bool {
	for _, l := range logs {
		if strings.Contains(l, substr) {
			return true
		}
	}
	return false
}

func TestMaterialize_CreatesFile(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{})
	res := eng.Materialize(context.Background(), scenario(`hi\nthere`))

	require.True(t, res.Success, res.Message)
	assert.Equal(t, "sess_test", res.SessionID)
	assert.Equal(t, "hi\nthere", readFile(t, fsys, filepath.Join("sess_test", "a.txt")))

	want := filepath.Join("out", "sess_test", "a.txt")
	assert.Equal(t, []string{want}, res.CreatedFiles, "placeholder and write count once")
	assert.Equal(t, []string{filepath.Join("out", "sess_test")}, res.CreatedDirectories)
	assert.Empty(t, res.Errors)
	require.Len(t, res.Files, 1)
	assert.Equal(t, api.StatusCreated, res.Files[0].Status)
	assert.Empty(t, res.Files[0].Backup)

	_, err := fsys.Stat(filepath.Join("sess_test", backup.Dir))
	assert.Error(t, err, "creating a file never takes a backup")
}

func TestMaterialize_RerunUnchanged(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{})
	require.True(t, eng.Materialize(context.Background(), scenario(`hi\nthere`)).Success)

	res := eng.Materialize(context.Background(), scenario(`hi\nthere`))
	require.True(t, res.Success)
	assert.Empty(t, res.CreatedDirectories)
	assert.Empty(t, res.CreatedFiles)
	assert.True(t, logsContain(res.Logs, "File unchanged: "+filepath.Join("out", "sess_test", "a.txt")))
	require.Len(t, res.Files, 1)
	assert.Equal(t, api.StatusUnchanged, res.Files[0].Status)

	_, err := fsys.Stat(filepath.Join("sess_test", backup.Dir))
	assert.Error(t, err)
}

func TestMaterialize_ModifiedTakesBackup(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{})
	require.True(t, eng.Materialize(context.Background(), scenario(`hi\nthere`)).Success)

	res := eng.Materialize(context.Background(), scenario("bye"))
	require.True(t, res.Success, res.Message)

	assert.Equal(t, "bye", readFile(t, fsys, filepath.Join("sess_test", "a.txt")))
	assert.Equal(t, "hi\nthere", readFile(t, fsys, filepath.Join("sess_test", ".backup", "a.txt")))

	require.Len(t, res.Files, 1)
	assert.Equal(t, api.StatusModified, res.Files[0].Status)
	assert.Equal(t, filepath.Join("out", "sess_test", ".backup", "a.txt"), res.Files[0].Backup)
	assert.Contains(t, res.CreatedDirectories, filepath.Join("out", "sess_test", ".backup"))
	assert.True(t, logsContain(res.Logs, "File modified"))
}

func TestMaterialize_BackupKeepsOnlyLatest(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{})
	for _, src := range []string{"one", "two", "three"} {
		require.True(t, eng.Materialize(context.Background(), scenario(src)).Success)
	}
	assert.Equal(t, "two", readFile(t, fsys, filepath.Join("sess_test", ".backup", "a.txt")))
	assert.Equal(t, "three", readFile(t, fsys, filepath.Join("sess_test", "a.txt")))
}

func TestMaterialize_ValidationReportsAllProblems(t *testing.T) {
	sink := &captureSink{}
	eng, fsys := newTestEngine(t, Options{Sink: sink})
	s := scenario("x")
	s.Language = ""
	s.Code = nil

	res := eng.Materialize(context.Background(), s)
	assert.False(t, res.Success)
	assert.Equal(t, "sess_test", res.SessionID)
	assert.Contains(t, res.Message, `Missing "code" field.`)
	assert.Contains(t, res.Message, `Missing "language" field.`)
	assert.Len(t, res.Errors, 2)
	assert.Len(t, sink.errs, 2)
	assert.Empty(t, res.CreatedDirectories)

	_, err := fsys.Stat("sess_test")
	assert.Error(t, err, "validation failure must not touch the filesystem")
}

func TestMaterialize_NilStructure(t *testing.T) {
	eng, _ := newTestEngine(t, Options{NewSessionID: func() string { return "sess_gen" }})
	res := eng.Materialize(context.Background(), nil)
	assert.False(t, res.Success)
	assert.Equal(t, "sess_gen", res.SessionID)
	assert.Len(t, res.Errors, 4)
}

func TestMaterialize_RequireSessionID(t *testing.T) {
	eng, _ := newTestEngine(t, Options{RequireSessionID: true})
	s := scenario("x")
	s.SessionID = ""
	res := eng.Materialize(context.Background(), s)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, `Missing "sessionId" field.`)
	assert.True(t, strings.HasPrefix(res.SessionID, "sess_"))
}

func TestMaterialize_GeneratesSessionID(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{NewSessionID: func() string { return "sess_abc" }})
	s := scenario("x")
	s.SessionID = ""
	res := eng.Materialize(context.Background(), s)
	require.True(t, res.Success, res.Message)
	assert.Equal(t, "sess_abc", res.SessionID)
	assert.Equal(t, "x", readFile(t, fsys, filepath.Join("sess_abc", "a.txt")))
}

func TestMaterialize_RejectsSessionIDWithSeparator(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})
	s := scenario("x")
	s.SessionID = "../escape"
	res := eng.Materialize(context.Background(), s)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "single path segment")
}

func TestMaterialize_RootMarkerPathsAreEquivalent(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{})
	s := scenario("x")
	s.Code = []api.CodeFile{
		{Name: "index.ts", Path: "ROOT/src", SourceCode: "first"},
		{Name: "index.ts", Path: "src", SourceCode: "second"},
	}
	res := eng.Materialize(context.Background(), s)
	require.True(t, res.Success, res.Message)

	assert.Equal(t, "second", readFile(t, fsys, filepath.Join("sess_test", "src", "index.ts")))
	assert.Equal(t, "first", readFile(t, fsys, filepath.Join("sess_test", ".backup", "src", "index.ts")))
	assert.Contains(t, res.CreatedDirectories, filepath.Join("out", "sess_test", "src"))
}

func TestMaterialize_ForceOverwrite(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{ForceOverwrite: true})
	require.True(t, eng.Materialize(context.Background(), scenario("same")).Success)

	res := eng.Materialize(context.Background(), scenario("same"))
	require.True(t, res.Success)
	assert.Equal(t, []string{filepath.Join("out", "sess_test", "a.txt")}, res.CreatedFiles)
	assert.True(t, logsContain(res.Logs, "File overwritten"))

	_, err := fsys.Stat(filepath.Join("sess_test", backup.Dir))
	assert.Error(t, err, "identical content is not backed up under the change policy")
}

func TestMaterialize_BackupAlwaysPolicy(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{BackupPolicy: backup.Always})
	require.True(t, eng.Materialize(context.Background(), scenario("same")).Success)
	res := eng.Materialize(context.Background(), scenario("same"))
	require.True(t, res.Success)

	assert.Equal(t, "same", readFile(t, fsys, filepath.Join("sess_test", ".backup", "a.txt")))
	assert.True(t, logsContain(res.Logs, "File overwritten"))
	require.Len(t, res.Files, 1)
	assert.True(t, res.Files[0].Written)
	assert.Equal(t, filepath.Join("out", "sess_test", ".backup", "a.txt"), res.Files[0].Backup)
}

func TestMaterialize_DuplicatePlaceholderEntryIsBackedUp(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{})
	s := scenario("first")
	s.Code = append(s.Code, api.CodeFile{Name: "a.txt", Path: "ROOT", SourceCode: "second"})

	res := eng.Materialize(context.Background(), s)
	require.True(t, res.Success, res.Message)

	assert.Equal(t, "second", readFile(t, fsys, filepath.Join("sess_test", "a.txt")))
	assert.Equal(t, "first", readFile(t, fsys, filepath.Join("sess_test", ".backup", "a.txt")))
	require.Len(t, res.Files, 2)
	assert.Equal(t, api.StatusCreated, res.Files[0].Status)
	assert.Equal(t, api.StatusModified, res.Files[1].Status)
	assert.Equal(t, filepath.Join("out", "sess_test", ".backup", "a.txt"), res.Files[1].Backup)
}

func TestMaterialize_DuplicatePlaceholderEntrySameContent(t *testing.T) {
	eng, _ := newTestEngine(t, Options{})
	s := scenario("same")
	s.Code = append(s.Code, api.CodeFile{Name: "a.txt", Path: "ROOT", SourceCode: "same"})

	res := eng.Materialize(context.Background(), s)
	require.True(t, res.Success, res.Message)
	require.Len(t, res.Files, 2)
	assert.Equal(t, api.StatusUnchanged, res.Files[1].Status)
	assert.False(t, res.Files[1].Written)
}

func TestMaterialize_ChangesAddAndDelete(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{})
	s := scenario("x")
	s.Code = append(s.Code, api.CodeFile{Name: "legacy.go", Path: "ROOT", SourceCode: "package legacy\n"})
	require.True(t, eng.Materialize(context.Background(), s).Success)

	s = scenario("x")
	s.Changes = &api.Changes{
		Summary:       "Drop legacy",
		AddedFiles:    []api.FileRef{{Name: "NOTES.md", Path: "ROOT/docs"}, {Name: "a.txt", Path: "ROOT"}},
		ModifiedFiles: []api.FileRef{{Name: "a.txt", Path: "ROOT"}, {Name: "ghost.txt", Path: "ROOT"}},
		DeletedFiles:  []api.FileRef{{Name: "legacy.go", Path: "ROOT"}, {Name: "missing.go", Path: "ROOT"}},
	}
	res := eng.Materialize(context.Background(), s)
	require.True(t, res.Success, res.Message)

	assert.Equal(t, "", readFile(t, fsys, filepath.Join("sess_test", "docs", "NOTES.md")))
	_, err := fsys.Stat(filepath.Join("sess_test", "legacy.go"))
	assert.Error(t, err)
	assert.Equal(t, "package legacy\n", readFile(t, fsys, filepath.Join("sess_test", ".backup", "legacy.go")))

	shownLegacy := filepath.Join("out", "sess_test", "legacy.go")
	assert.True(t, logsContain(res.Logs, "[INFO] Added file: "+filepath.Join("out", "sess_test", "docs", "NOTES.md")))
	assert.True(t, logsContain(res.Logs, "[INFO] File already exists: "+filepath.Join("out", "sess_test", "a.txt")))
	assert.True(t, logsContain(res.Logs, "[WARNING] Modified file has no code entry: "+filepath.Join("out", "sess_test", "ghost.txt")))
	assert.True(t, logsContain(res.Logs, "[INFO] Deleted file: "+shownLegacy))
	assert.True(t, logsContain(res.Logs, "[INFO] Nothing to delete: "+filepath.Join("out", "sess_test", "missing.go")))
	assert.Contains(t, res.CreatedFiles, filepath.Join("out", "sess_test", ".backup", "legacy.go"))
	assert.Contains(t, res.CreatedDirectories, filepath.Join("out", "sess_test", "docs"))

	var deleted *api.FileOutcome
	for i := range res.Files {
		if res.Files[i].Path == shownLegacy {
			deleted = &res.Files[i]
		}
	}
	require.NotNil(t, deleted)
	assert.Equal(t, api.StatusDeleted, deleted.Status)
	assert.False(t, deleted.Written)
	assert.Equal(t, filepath.Join("out", "sess_test", ".backup", "legacy.go"), deleted.Backup)
}

func TestMaterialize_ChangesRejectUnnamedRefs(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{})
	s := scenario("x")
	s.Changes = &api.Changes{DeletedFiles: []api.FileRef{{Path: "ROOT"}}}
	res := eng.Materialize(context.Background(), s)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, `"changes.deletedFiles[0].name" must be a non-empty string.`)
	_, err := fsys.Stat("sess_test")
	assert.Error(t, err)
}

func TestMaterialize_FilesystemFailureKeepsPartialWork(t *testing.T) {
	sink := &captureSink{}
	eng, fsys := newTestEngine(t, Options{Sink: sink})
	s := scenario("x")
	s.Code = []api.CodeFile{
		{Name: "ok.txt", Path: "ROOT", SourceCode: "ok"},
		{Name: "bad.txt", Path: "ROOT/a.txt", SourceCode: "blocked by a file"},
		{Name: "never.txt", Path: "ROOT", SourceCode: "never"},
	}
	res := eng.Materialize(context.Background(), s)

	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "Error creating project structure")
	require.Len(t, res.Errors, 1)
	assert.Len(t, sink.errs, 1)
	assert.Equal(t, "ok", readFile(t, fsys, filepath.Join("sess_test", "ok.txt")))
	_, err := fsys.Stat(filepath.Join("sess_test", "never.txt"))
	assert.Error(t, err)
	assert.Contains(t, res.CreatedFiles, filepath.Join("out", "sess_test", "ok.txt"))
}

func TestMaterialize_StrictSyntaxFails(t *testing.T) {
	eng, _ := newTestEngine(t, Options{StrictSyntax: true})
	s := scenario("x")
	s.Code = []api.CodeFile{{Name: "main.go", Path: "ROOT", SourceCode: `package main\n\nfunc main() {\n`}}
	res := eng.Materialize(context.Background(), s)
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "main.go")
}

func TestMaterialize_SyntaxWarningsDoNotFail(t *testing.T) {
	sink := &captureSink{}
	eng, fsys := newTestEngine(t, Options{ValidateSyntax: true, Sink: sink})
	s := scenario("x")
	s.Code = []api.CodeFile{{Name: "main.go", Path: "ROOT", SourceCode: `package main\n\nfunc main() {\n`}}
	res := eng.Materialize(context.Background(), s)
	require.True(t, res.Success, res.Message)
	assert.NotEmpty(t, sink.warns)
	assert.True(t, logsContain(res.Logs, "[WARNING]"))
	assert.Equal(t, "package main\n\nfunc main() {\n", readFile(t, fsys, filepath.Join("sess_test", "main.go")))
}

func TestMaterialize_FormatGo(t *testing.T) {
	eng, fsys := newTestEngine(t, Options{FormatGo: true})
	s := scenario("x")
	s.Code = []api.CodeFile{{Name: "main.go", Path: "ROOT/cmd", SourceCode: `package main\n\nfunc main()  {\nreturn\n}\n`}}
	require.True(t, eng.Materialize(context.Background(), s).Success)
	assert.Equal(t, "package main\n\nfunc main() {\n\treturn\n}\n",
		readFile(t, fsys, filepath.Join("sess_test", "cmd", "main.go")))

	res := eng.Materialize(context.Background(), s)
	require.True(t, res.Success)
	assert.Empty(t, res.CreatedFiles, "formatted output compares equal on re-run")
}

func TestMaterialize_LintWarnings(t *testing.T) {
	sink := &captureSink{}
	eng, _ := newTestEngine(t, Options{Lint: true, Sink: sink})
	s := scenario("x")
	s.Code = []api.CodeFile{{Name: "main.go", Path: "ROOT", SourceCode: `package main\n\nvar names []string\n\nfunc main() {}\n`}}
	res := eng.Materialize(context.Background(), s)
	require.True(t, res.Success, res.Message)
	assert.True(t, logsContain(res.Logs, "[WARNING] "+filepath.Join("out", "sess_test", "main.go")+": line 3: Nil slice declaration"))
	assert.Len(t, sink.warns, 1)
}

type fakeVCS struct {
	initErr, commitErr error
	dirs               []string
	messages           []string
	hash               string
}

func (f *fakeVCS) Init(_ context.Context, dir string) error {
	f.dirs = append(f.dirs, dir)
	return f.initErr
}

func (f *fakeVCS) StageAndCommit(_ context.Context, _ string, message string) (string, error) {
	f.messages = append(f.messages, message)
	return f.hash, f.commitErr
}

func TestMaterialize_VersionControlCommit(t *testing.T) {
	vcs := &fakeVCS{hash: "abc1234"}
	eng, _ := newTestEngine(t, Options{VersionControl: vcs, CommitMessage: "initial"})
	res := eng.Materialize(context.Background(), scenario("x"))
	require.True(t, res.Success)
	assert.Equal(t, []string{filepath.Join("out", "sess_test")}, vcs.dirs)
	assert.Equal(t, []string{"initial"}, vcs.messages)
	assert.True(t, logsContain(res.Logs, "abc1234"))
}

func TestMaterialize_ChangesSummaryIsCommitMessage(t *testing.T) {
	vcs := &fakeVCS{hash: "abc1234"}
	eng, _ := newTestEngine(t, Options{VersionControl: vcs, CommitMessage: "initial"})
	s := scenario("x")
	s.Changes = &api.Changes{Summary: "  Add greeting  "}
	require.True(t, eng.Materialize(context.Background(), s).Success)

	s.Changes.Summary = ""
	require.True(t, eng.Materialize(context.Background(), s).Success)
	assert.Equal(t, []string{"Add greeting", "initial"}, vcs.messages)
}

func TestMaterialize_VersionControlFailureIsWarning(t *testing.T) {
	vcs := &fakeVCS{commitErr: errors.New("git exploded")}
	eng, _ := newTestEngine(t, Options{VersionControl: vcs})
	res := eng.Materialize(context.Background(), scenario("x"))
	assert.True(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "git exploded")
}

func TestMaterialize_VersionControlRequired(t *testing.T) {
	vcs := &fakeVCS{initErr: errors.New("no git")}
	eng, _ := newTestEngine(t, Options{VersionControl: vcs, VersionControlRequired: true})
	res := eng.Materialize(context.Background(), scenario("x"))
	assert.False(t, res.Success)
	assert.Contains(t, res.Message, "no git")
	assert.Empty(t, vcs.messages)
}

type fakeRecorder struct {
	results []api.Result
	err     error
}

func (f *fakeRecorder) Record(_ context.Context, res api.Result) error {
	f.results = append(f.results, res)
	return f.err
}

func TestMaterialize_Recorder(t *testing.T) {
	rec := &fakeRecorder{}
	eng, _ := newTestEngine(t, Options{Recorder: rec})
	require.True(t, eng.Materialize(context.Background(), scenario("x")).Success)

	s := scenario("x")
	s.Runtime = ""
	eng.Materialize(context.Background(), s)

	require.Len(t, rec.results, 1, "rejected structures are not journaled")
	assert.True(t, rec.results[0].Success)
}

func TestMaterialize_RecorderFailureIsReported(t *testing.T) {
	rec := &fakeRecorder{err: errors.New("disk full")}
	eng, _ := newTestEngine(t, Options{Recorder: rec})
	res := eng.Materialize(context.Background(), scenario("x"))
	assert.True(t, res.Success)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "disk full")
}

func TestReject_GeneratesSessionIDAndWritesNothing(t *testing.T) {
	sink := &captureSink{}
	eng, fsys := newTestEngine(t, Options{Sink: sink, NewSessionID: func() string { return "sess_gen" }})

	res := eng.Reject("", []string{MissingField("language")})
	assert.False(t, res.Success)
	assert.Equal(t, "sess_gen", res.SessionID)
	assert.Equal(t, []string{`[ERROR] Missing "language" field.`}, res.Errors)
	assert.Equal(t, []string{`Missing "language" field.`}, sink.errs)
	assert.Empty(t, res.CreatedFiles)

	_, err := fsys.Stat("sess_gen")
	assert.Error(t, err)
}
