// Package content decodes escaped source payloads and digests bytes for
// change detection.
package content

import "strings"

var unescapes = map[byte]byte{
	'n':  '\n',
	't':  '\t',
	'"':  '"',
	'\\': '\\',
	'r':  '\r',
}

// Decode reverses the payload escaping (\n, \t, \", \\, \r) in a single pass,
// so an escaped backslash is never re-read as the start of another escape.
// Any other backslash sequence, including a trailing lone backslash, is kept literally.
func Decode(escaped string) string {
	if strings.IndexByte(escaped, '\\') < 0 {
		return escaped
	}
	var b strings.Builder
	b.Grow(len(escaped))
	for i := 0; i < len(escaped); i++ {
		c := escaped[i]
		if c == '\\' && i+1 < len(escaped) {
			if r, ok := unescapes[escaped[i+1]]; ok {
				b.WriteByte(r)
				i++
				continue
			}
		}
		b.WriteByte(c)
	}
	return b.String()
}
