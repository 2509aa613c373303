package writeback

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/golang"
	"github.com/smacker/go-tree-sitter/hcl"
	"github.com/smacker/go-tree-sitter/javascript"
	"github.com/smacker/go-tree-sitter/python"
	"github.com/smacker/go-tree-sitter/rust"
	sqllang "github.com/smacker/go-tree-sitter/sql"
	"github.com/smacker/go-tree-sitter/typescript/tsx"
	"github.com/smacker/go-tree-sitter/typescript/typescript"
	"github.com/smacker/go-tree-sitter/yaml"
)

// ValidationError locates a syntax error in a materialized source file.
type ValidationError struct {
	FilePath string
	Line     uint32 // 0-indexed
	Column   uint32 // 0-indexed
	Message  string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s:%d:%d: %s", e.FilePath, e.Line+1, e.Column+1, e.Message)
}

// Supported reports whether filePath has a grammar Validate can check.
func Supported(filePath string) bool {
	return languageForPath(filePath) != nil
}

// Validate parses content with tree-sitter and returns the first syntax error.
// Files without a known grammar pass (nil).
func Validate(content []byte, filePath string) error {
	root, err := parse(content, filePath)
	if err != nil || root == nil || !root.HasError() {
		return err
	}
	if errNode := findFirstError(root); errNode != nil {
		return newValidationError(errNode, filePath)
	}
	return &ValidationError{FilePath: filePath, Message: "AST contains errors"}
}

// Diagnostics returns every ERROR/MISSING node location in content.
// Returns nil for valid content or unknown languages.
func Diagnostics(content []byte, filePath string) []ValidationError {
	root, err := parse(content, filePath)
	if err != nil || root == nil || !root.HasError() {
		return nil
	}
	var errs []ValidationError
	collectErrors(root, filePath, &errs)
	return errs
}

func parse(content []byte, filePath string) (*sitter.Node, error) {
	lang := languageForPath(filePath)
	if lang == nil {
		return nil, nil
	}
	parser := sitter.NewParser()
	parser.SetLanguage(lang)

	tree, err := parser.ParseCtx(context.Background(), nil, content)
	if err != nil {
		return nil, fmt.Errorf("tree-sitter parse failed for %s: %w", filePath, err)
	}
	root := tree.RootNode()
	if root == nil {
		return nil, fmt.Errorf("tree-sitter returned nil root for %s", filePath)
	}
	return root, nil
}

func newValidationError(n *sitter.Node, filePath string) *ValidationError {
	msg := "syntax error"
	if n.IsMissing() {
		msg = fmt.Sprintf("missing %s", n.Type())
	}
	return &ValidationError{
		FilePath: filePath,
		Line:     n.StartPoint().Row,
		Column:   n.StartPoint().Column,
		Message:  msg,
	}
}

func findFirstError(node *sitter.Node) *sitter.Node {
	if node.IsError() || node.IsMissing() {
		return node
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			if found := findFirstError(child); found != nil {
				return found
			}
		}
	}
	return nil
}

func collectErrors(node *sitter.Node, filePath string, errs *[]ValidationError) {
	if node.IsError() || node.IsMissing() {
		*errs = append(*errs, *newValidationError(node, filePath))
		return
	}
	for i := 0; i < int(node.ChildCount()); i++ {
		child := node.Child(i)
		if child.HasError() || child.IsError() || child.IsMissing() {
			collectErrors(child, filePath, errs)
		}
	}
}

func languageForPath(filePath string) *sitter.Language {
	switch strings.ToLower(filepath.Ext(filePath)) {
	case ".go":
		return golang.GetLanguage()
	case ".py":
		return python.GetLanguage()
	case ".js", ".mjs", ".cjs", ".jsx":
		return javascript.GetLanguage()
	case ".ts", ".mts", ".cts":
		return typescript.GetLanguage()
	case ".tsx":
		return tsx.GetLanguage()
	case ".sql":
		return sqllang.GetLanguage()
	case ".hcl", ".tf":
		return hcl.GetLanguage()
	case ".yaml", ".yml":
		return yaml.GetLanguage()
	case ".rs":
		return rust.GetLanguage()
	default:
		return nil
	}
}
