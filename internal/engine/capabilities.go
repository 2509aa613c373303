package engine

import (
	"context"

	"github.com/agentic-research/scaffold/api"
)

// Sink receives human-readable progress lines as they happen.
// The same lines are also returned in the Result.
type Sink interface {
	Info(msg string)
	Warn(msg string)
	Error(msg string)
}

// VersionControl is an optional collaborator that snapshots the session
// directory after a successful write phase.
type VersionControl interface {
	// Init prepares a repository in dir. Calling it on an existing repository is a no-op.
	Init(ctx context.Context, dir string) error
	// StageAndCommit records every change under dir. It returns the new
	// commit id, or "" when there was nothing to commit.
	StageAndCommit(ctx context.Context, dir, message string) (string, error)
}

// Recorder persists the outcome of a run (see internal/journal).
type Recorder interface {
	Record(ctx context.Context, res api.Result) error
}

type nopSink struct{}

func (nopSink) Info(string)  {}
func (nopSink) Warn(string)  {}
func (nopSink) Error(string) {}
