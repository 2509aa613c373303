package engine

import (
	"fmt"
	"strings"

	"github.com/agentic-research/scaffold/api"
)

// ValidationError lists every problem found in a project structure.
type ValidationError struct {
	Problems []string
}

func (e *ValidationError) Error() string {
	return "Invalid project structure:\n" + strings.Join(e.Problems, "\n")
}

// Validate checks the required fields of s and returns one message per problem.
// It never stops at the first problem.
func Validate(s *api.ProjectStructure, requireSessionID bool) []string {
	if s == nil {
		s = &api.ProjectStructure{}
	}
	var problems []string
	if requireSessionID && s.SessionID == "" {
		problems = append(problems, MissingField("sessionId"))
	}
	if s.SessionID != "" && !validSessionID(s.SessionID) {
		problems = append(problems, `"sessionId" must be a single path segment.`)
	}
	if s.Language == "" {
		problems = append(problems, MissingField("language"))
	}
	if s.Runtime == "" {
		problems = append(problems, MissingField("runtime"))
	}
	if s.FolderStructure == nil {
		problems = append(problems, MissingField("folderStructure"))
	}
	if s.Code == nil {
		problems = append(problems, MissingField("code"))
	}
	if c := s.Changes; c != nil {
		problems = append(problems, refProblems("changes.addedFiles", c.AddedFiles)...)
		problems = append(problems, refProblems("changes.modifiedFiles", c.ModifiedFiles)...)
		problems = append(problems, refProblems("changes.deletedFiles", c.DeletedFiles)...)
	}
	return problems
}

func refProblems(field string, refs []api.FileRef) []string {
	var problems []string
	for i, ref := range refs {
		if ref.Name == "" {
			problems = append(problems, fmt.Sprintf("%q must be a non-empty string.", fmt.Sprintf("%s[%d].name", field, i)))
		}
	}
	return problems
}

// MissingField is the problem text for an absent required field.
func MissingField(name string) string {
	return fmt.Sprintf("Missing %q field.", name)
}

func validSessionID(id string) bool {
	return id != "." && id != ".." && !strings.ContainsAny(id, `/\`)
}
