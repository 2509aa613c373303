// Package payload turns a JSON project description into an api.ProjectStructure,
// reporting every missing or mis-shaped field at once.
package payload

import (
	"fmt"
	"os"

	"github.com/ohler55/ojg/jp"
	"github.com/ohler55/ojg/oj"

	"github.com/agentic-research/scaffold/api"
	"github.com/agentic-research/scaffold/internal/engine"
)

// DefaultFile is read when no input file is named.
const DefaultFile = "data.json"

var (
	sessionIDPath = jp.MustParseString("$.sessionId")
	languagePath  = jp.MustParseString("$.language")
	runtimePath   = jp.MustParseString("$.runtime")
	folderPath    = jp.MustParseString("$.folderStructure")
	codePath      = jp.MustParseString("$.code")
	changesPath   = jp.MustParseString("$.changes")
)

// Load reads and parses the payload file at path.
func Load(path string) (*api.ProjectStructure, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read payload %s: %w", path, err)
	}
	s, err := Parse(raw)
	return s, raw, err
}

// Parse decodes data. Malformed JSON is a plain error. Structural problems
// come back together as *engine.ValidationError, alongside whatever could be
// decoded (so callers can still read the session id).
func Parse(data []byte) (*api.ProjectStructure, error) {
	root, err := oj.Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse payload: %w", err)
	}
	if _, ok := root.(map[string]any); !ok {
		return nil, fmt.Errorf("parse payload: top level must be a JSON object")
	}

	d := &decoder{}
	s := &api.ProjectStructure{
		SessionID: d.str(root, sessionIDPath, "sessionId", false),
		Language:  d.str(root, languagePath, "language", true),
		Runtime:   d.str(root, runtimePath, "runtime", true),
	}

	switch v := first(root, folderPath).(type) {
	case nil:
		d.problem(engine.MissingField("folderStructure"))
	case map[string]any:
		s.FolderStructure = d.dirNode(v, "folderStructure")
	default:
		d.problem(`"folderStructure" must be an object.`)
	}

	switch v := first(root, codePath).(type) {
	case nil:
		d.problem(engine.MissingField("code"))
	case []any:
		s.Code = make([]api.CodeFile, 0, len(v))
		for i, item := range v {
			s.Code = append(s.Code, d.codeFile(item, fmt.Sprintf("code[%d]", i)))
		}
	default:
		d.problem(`"code" must be an array.`)
	}

	switch v := first(root, changesPath).(type) {
	case nil:
	case map[string]any:
		s.Changes = d.changes(v)
	default:
		d.problem(`"changes" must be an object.`)
	}

	if len(d.problems) > 0 {
		return s, &engine.ValidationError{Problems: d.problems}
	}
	return s, nil
}

func first(root any, x jp.Expr) any {
	if got := x.Get(root); len(got) > 0 {
		return got[0]
	}
	return nil
}

type decoder struct {
	problems []string
}

func (d *decoder) problem(format string, args ...any) {
	d.problems = append(d.problems, fmt.Sprintf(format, args...))
}

// str reads a string field. Missing, null and (when required) empty values
// are reported as missing; other types as mis-shaped.
func (d *decoder) str(root any, x jp.Expr, field string, required bool) string {
	switch v := first(root, x).(type) {
	case nil:
		if required {
			d.problem("%s", engine.MissingField(field))
		}
		return ""
	case string:
		if required && v == "" {
			d.problem("%s", engine.MissingField(field))
		}
		return v
	default:
		d.problem("%q must be a string.", field)
		return ""
	}
}

func (d *decoder) dirNode(m map[string]any, at string) *api.DirNode {
	n := &api.DirNode{}
	name, ok := m["name"].(string)
	if !ok {
		d.problem("%q must be a string.", at+".name")
	}
	n.Name = name

	typ, _ := m["type"].(string)
	switch typ {
	case api.TypeDirectory, api.TypeFile:
		n.Type = typ
	default:
		d.problem("%q must be %q or %q.", at+".type", api.TypeDirectory, api.TypeFile)
		return n
	}

	children, present := m["children"]
	if !present || children == nil {
		return n
	}
	list, ok := children.([]any)
	if !ok {
		d.problem("%q must be an array.", at+".children")
		return n
	}
	if typ == api.TypeFile {
		if len(list) > 0 {
			d.problem("%q is a file and cannot have children.", at)
		}
		return n
	}
	for i, c := range list {
		cat := fmt.Sprintf("%s.children[%d]", at, i)
		cm, ok := c.(map[string]any)
		if !ok {
			d.problem("%q must be an object.", cat)
			continue
		}
		n.Children = append(n.Children, *d.dirNode(cm, cat))
	}
	return n
}

func (d *decoder) codeFile(item any, at string) api.CodeFile {
	m, ok := item.(map[string]any)
	if !ok {
		d.problem("%q must be an object.", at)
		return api.CodeFile{}
	}
	var f api.CodeFile
	if f.Name, ok = m["name"].(string); !ok || f.Name == "" {
		d.problem("%q must be a non-empty string.", at+".name")
	}
	if v, present := m["path"]; present && v != nil {
		if f.Path, ok = v.(string); !ok {
			d.problem("%q must be a string.", at+".path")
		}
	}
	if f.SourceCode, ok = m["sourceCode"].(string); !ok {
		d.problem("%q must be a string.", at+".sourceCode")
	}
	return f
}

func (d *decoder) changes(m map[string]any) *api.Changes {
	c := &api.Changes{
		AddedFiles:    d.refs(m, "addedFiles"),
		ModifiedFiles: d.refs(m, "modifiedFiles"),
		DeletedFiles:  d.refs(m, "deletedFiles"),
	}
	if v, present := m["summary"]; present && v != nil {
		summary, ok := v.(string)
		if !ok {
			d.problem("%q must be a string.", "changes.summary")
		}
		c.Summary = summary
	}
	return c
}

func (d *decoder) refs(m map[string]any, key string) []api.FileRef {
	at := "changes." + key
	v, present := m[key]
	if !present || v == nil {
		return nil
	}
	list, ok := v.([]any)
	if !ok {
		d.problem("%q must be an array.", at)
		return nil
	}
	refs := make([]api.FileRef, 0, len(list))
	for i, item := range list {
		iat := fmt.Sprintf("%s[%d]", at, i)
		im, ok := item.(map[string]any)
		if !ok {
			d.problem("%q must be an object.", iat)
			continue
		}
		var ref api.FileRef
		if ref.Name, ok = im["name"].(string); !ok || ref.Name == "" {
			d.problem("%q must be a non-empty string.", iat+".name")
		}
		if p, present := im["path"]; present && p != nil {
			if ref.Path, ok = p.(string); !ok {
				d.problem("%q must be a string.", iat+".path")
			}
		}
		refs = append(refs, ref)
	}
	return refs
}
