package engine

import (
	"fmt"

	"github.com/agentic-research/scaffold/api"
)

// run accumulates everything one invocation reports. It is created per
// Materialize call and passed explicitly; nothing is shared between runs.
type run struct {
	sessionID string
	sink      Sink

	logs     []string
	errors   []string
	dirs     []string
	files    []string
	outcomes []api.FileOutcome
	seen     map[string]bool
}

func newRun(sessionID string, sink Sink) *run {
	return &run{sessionID: sessionID, sink: sink, seen: make(map[string]bool)}
}

func (r *run) info(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logs = append(r.logs, "[INFO] "+msg)
	r.sink.Info(msg)
}

func (r *run) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.logs = append(r.logs, "[WARNING] "+msg)
	r.sink.Warn(msg)
}

func (r *run) error(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	r.errors = append(r.errors, "[ERROR] "+msg)
	r.sink.Error(msg)
}

func (r *run) dir(p string) {
	r.dirs = append(r.dirs, p)
}

// file records a created or written path once, however often it is touched.
func (r *run) file(p string) {
	if r.seen[p] {
		return
	}
	r.seen[p] = true
	r.files = append(r.files, p)
}

func (r *run) result(success bool, message string) api.Result {
	return api.Result{
		Success:            success,
		Message:            message,
		SessionID:          r.sessionID,
		Logs:               nonNil(r.logs),
		Errors:             nonNil(r.errors),
		CreatedDirectories: nonNil(r.dirs),
		CreatedFiles:       nonNil(r.files),
		Files:              r.outcomes,
	}
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
