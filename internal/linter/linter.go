// Package linter flags patterns in generated Go code that compile but are
// usually mistakes.
package linter

import (
	"context"
	"fmt"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
)

type Diagnostic struct {
	Rule    string
	Message string
	Line    uint32
}

func (d Diagnostic) String() string {
	return fmt.Sprintf("line %d: %s (%s)", d.Line+1, d.Message, d.Rule)
}

type rule struct {
	id    string
	query string
	// check inspects one match; it returns the message to report or "".
	check func(m *sitter.QueryMatch, q *sitter.Query, src []byte) string
}

var goRules = []rule{
	{
		// var x []T with no value marshals to JSON null.
		id: "nil-slice",
		query: `
			(var_declaration
				(var_spec
					name: (identifier)
					type: (slice_type)
				) @decl
			)
		`,
		check: func(m *sitter.QueryMatch, _ *sitter.Query, _ []byte) string {
			for _, c := range m.Captures {
				if c.Node.ChildByFieldName("value") != nil {
					return ""
				}
			}
			return "Nil slice declaration. Consider 'make([]T, 0)' for JSON compatibility."
		},
	},
	{
		id: "placeholder-panic",
		query: `
			(call_expression
				function: (identifier) @fn
				arguments: (argument_list (interpreted_string_literal) @msg)
			)
		`,
		check: func(m *sitter.QueryMatch, q *sitter.Query, src []byte) string {
			var fn, msg string
			for _, c := range m.Captures {
				switch q.CaptureNameForId(c.Index) {
				case "fn":
					fn = c.Node.Content(src)
				case "msg":
					msg = strings.ToLower(strings.Trim(c.Node.Content(src), `"`))
				}
			}
			if fn != "panic" {
				return ""
			}
			if strings.Contains(msg, "not implemented") || strings.Contains(msg, "todo") || strings.Contains(msg, "unimplemented") {
				return "Placeholder panic left in generated code."
			}
			return ""
		},
	},
}

// Lint checks Go sources at filePath. Other languages return no diagnostics.
func Lint(content []byte, filePath string) ([]Diagnostic, error) {
	if !strings.HasSuffix(filePath, ".go") {
		return nil, nil
	}

	lang := golang.GetLanguage()
	parser := sitter.NewParser()
	parser.SetLanguage(lang)
	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, err
	}

	var diags []Diagnostic
	for _, r := range goRules {
		q, err := sitter.NewQuery([]byte(r.query), lang)
		if err != nil {
			return nil, fmt.Errorf("rule %s: %w", r.id, err)
		}
		qc := sitter.NewQueryCursor()
		qc.Exec(q, tree.RootNode())
		for {
			m, ok := qc.NextMatch()
			if !ok {
				break
			}
			if len(m.Captures) == 0 {
				continue
			}
			if msg := r.check(m, q, content); msg != "" {
				diags = append(diags, Diagnostic{
					Rule:    r.id,
					Message: msg,
					Line:    m.Captures[0].Node.StartPoint().Row,
				})
			}
		}
		qc.Close()
	}
	return diags, nil
}
