package writeback

import (
	"fmt"
	"strings"

	"mvdan.cc/gofumpt/format"
)

// FormatGo formats Go source with gofumpt. Non-Go paths are returned as is.
// When formatting fails the original content is returned with the error.
func FormatGo(content []byte, filePath string) ([]byte, error) {
	if !strings.HasSuffix(filePath, ".go") {
		return content, nil
	}
	formatted, err := format.Source(content, format.Options{})
	if err != nil {
		return content, fmt.Errorf("gofumpt %s: %w", filePath, err)
	}
	return formatted, nil
}
