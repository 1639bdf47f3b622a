package ingest

import (
	"bytes"
	"strings"
	"unicode/utf8"
)

// normalizeUTF8 replaces invalid byte sequences with U+FFFD and converts
// \r\n and \r line endings to \n.
func normalizeUTF8(content []byte) string {
	if !utf8.Valid(content) {
		content = []byte(strings.ToValidUTF8(string(content), "\uFFFD"))
	}
	content = bytes.ReplaceAll(content, []byte("\r\n"), []byte("\n"))
	content = bytes.ReplaceAll(content, []byte("\r"), []byte("\n"))
	return string(content)
}
