package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/go-git/go-billy/v5/osfs"
	"go.uber.org/zap"

	"github.com/agentic-research/scaffold/api"
	"github.com/agentic-research/scaffold/internal/config"
	"github.com/agentic-research/scaffold/internal/engine"
	"github.com/agentic-research/scaffold/internal/journal"
	"github.com/agentic-research/scaffold/internal/logging"
	"github.com/agentic-research/scaffold/internal/payload"
	"github.com/agentic-research/scaffold/internal/session"
	"github.com/agentic-research/scaffold/internal/vcs"
)

// app is one configured invocation: resolved config, logger and the optional
// collaborators (journal, git) shared by every run it performs.
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	out     io.Writer
	jsonOut bool

	journal *journal.Journal
	git     *vcs.Git
}

func newApp(cfg *config.Config, log *zap.Logger, out io.Writer, jsonOut bool) (*app, error) {
	a := &app{cfg: cfg, log: log, out: out, jsonOut: jsonOut}

	if cfg.Git {
		g := vcs.New()
		switch {
		case g.Available():
			a.git = g
		case cfg.GitRequired:
			return nil, fmt.Errorf("git is required but the git binary was not found")
		default:
			log.Warn("git binary not found, version control disabled")
		}
	}

	// The journal opens on its first record, so a rejected payload leaves the
	// output directory untouched.
	if cfg.Journal {
		a.journal = journal.New(cfg.JournalPath)
	}
	return a, nil
}

func (a *app) Close() {
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			a.log.Warn("Closing journal failed", zap.Error(err))
		}
	}
	logging.Sync(a.log)
}

// engineAt builds an engine writing under outputDir, or the configured
// output directory when outputDir is empty.
func (a *app) engineAt(outputDir string) *engine.Engine {
	opts := a.cfg.EngineOptions()
	if outputDir != "" {
		opts.OutputRoot = outputDir
	}
	opts.Sink = logging.NewSink(a.log)
	if a.git != nil {
		opts.VersionControl = a.git
	}
	if a.journal != nil {
		opts.Recorder = a.journal
	}
	return engine.New(opts)
}

// materialize loads the payload at path and runs it. Only an unreadable or
// malformed payload is returned as an error; everything else is in the Result.
func (a *app) materialize(ctx context.Context, path, sessionOverride string) (api.Result, error) {
	eng := a.engineAt("")

	s, raw, err := payload.Load(path)
	var verr *engine.ValidationError
	switch {
	case errors.As(err, &verr):
		sessionID := sessionOverride
		if sessionID == "" && s != nil {
			sessionID = s.SessionID
		}
		return eng.Reject(sessionID, verr.Problems), nil
	case err != nil:
		return api.Result{}, err
	}

	if sessionOverride != "" {
		s.SessionID = sessionOverride
	}
	res := eng.Materialize(ctx, s)

	if res.Success && a.cfg.SnapshotPayload {
		changed, err := session.Snapshot(osfs.New(eng.OutputRoot()), res.SessionID, raw)
		switch {
		case err != nil:
			a.log.Warn("Payload snapshot failed", zap.Error(err))
		case changed:
			a.log.Debug("Payload snapshot updated", zap.String("path", session.PayloadPath(eng.SessionDir(res.SessionID))))
		}
	}
	return res, nil
}

// report prints the closing line (and the JSON result when asked) and maps a
// failed run to errRunFailed.
func (a *app) report(res api.Result) error {
	if a.jsonOut {
		enc := json.NewEncoder(a.out)
		enc.SetIndent("", "  ")
		if err := enc.Encode(res); err != nil {
			return fmt.Errorf("encode result: %w", err)
		}
	}
	if !res.Success {
		a.log.Error("Failed to create project structure",
			zap.String("session", res.SessionID), zap.String("message", res.Message))
		return errRunFailed
	}
	a.log.Info("Project structure created successfully", zap.String("session", res.SessionID))
	return nil
}
