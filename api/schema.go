package api

// ProjectStructure is the declared layout handed to the engine.
// It is decoded once per run and never mutated while materializing.
type ProjectStructure struct {
	// SessionID scopes the output directory. Generated when empty.
	SessionID string `json:"sessionId,omitempty"`
	// Language of the generated project (e.g. "ts").
	Language string `json:"language"`
	// Runtime of the generated project (e.g. "node").
	Runtime string `json:"runtime"`
	// FolderStructure is the scaffolding tree. Only used to pre-create
	// directories and empty placeholder files.
	FolderStructure *DirNode `json:"folderStructure"`
	// Code lists the files to materialize, in write order.
	Code []CodeFile `json:"code"`
	// Changes optionally describes the edit this payload makes to an
	// existing session.
	Changes *Changes `json:"changes,omitempty"`
}

// Node kinds used in DirNode.Type.
const (
	TypeDirectory = "directory"
	TypeFile      = "file"
)

// DirNode is one entry of the scaffolding tree.
type DirNode struct {
	Name string `json:"name"`
	// Type is TypeDirectory or TypeFile.
	Type string `json:"type"`
	// Children is only meaningful for directories.
	Children []DirNode `json:"children,omitempty"`
}

// IsDir reports whether the node describes a directory.
func (n *DirNode) IsDir() bool { return n.Type == TypeDirectory }

// CodeFile is a source file with escaped content.
type CodeFile struct {
	Name string `json:"name"`
	// Path is relative to the session root and may start with the ROOT marker.
	Path string `json:"path"`
	// SourceCode is escaped text (\n, \t, \", \\, \r).
	SourceCode string `json:"sourceCode"`
}

// FileRef names a file relative to the session root, like CodeFile without content.
type FileRef struct {
	Name string `json:"name"`
	Path string `json:"path"`
}

// Changes is the change list attached to a payload. AddedFiles are created
// empty when absent, DeletedFiles are backed up and removed after the code
// files are written. ModifiedFiles must each have a matching Code entry.
type Changes struct {
	// Summary becomes the commit message when version control is enabled.
	Summary       string    `json:"summary,omitempty"`
	AddedFiles    []FileRef `json:"addedFiles,omitempty"`
	ModifiedFiles []FileRef `json:"modifiedFiles,omitempty"`
	DeletedFiles  []FileRef `json:"deletedFiles,omitempty"`
}

// File statuses reported in FileOutcome.Status.
const (
	StatusCreated   = "created"
	StatusModified  = "modified"
	StatusUnchanged = "unchanged"
	StatusDeleted   = "deleted"
)

// FileOutcome records what happened to one code file.
type FileOutcome struct {
	Path   string `json:"path"`
	Status string `json:"status"`
	Digest string `json:"digest"`
	Size   int64  `json:"size"`
	// Written is false when the file was left untouched.
	Written bool `json:"written"`
	// Backup is the path of the pre-change copy, if one was taken.
	Backup string `json:"backup,omitempty"`
}

// Result is the single return value of a materialization run.
type Result struct {
	Success            bool          `json:"success"`
	Message            string        `json:"message"`
	SessionID          string        `json:"sessionId"`
	Logs               []string      `json:"logs"`
	Errors             []string      `json:"errors"`
	CreatedDirectories []string      `json:"createdDirectories"`
	CreatedFiles       []string      `json:"createdFiles"`
	Files              []FileOutcome `json:"files,omitempty"`
}
