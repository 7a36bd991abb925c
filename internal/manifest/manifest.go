// Package manifest parses the line-oriented playlist bodies served by an nsync server.
package manifest

import "strings"

// StreamPrefix marks server-relative entries that need the server URL prepended.
const StreamPrefix = "/stream/"

// Parse returns the entries of a manifest in order.
//
// Lines may end in "\n", "\r\n" or a bare "\r". Blank lines and lines starting with '#'
// are skipped and trailing spaces and tabs are trimmed. Entries beginning with
// [StreamPrefix] are made absolute with serverURL; anything else passes through as is.
// Duplicates are kept.
func Parse(content, serverURL string) []string {
	entries := []string{}
	for _, line := range splitLines(content) {
		line = strings.TrimRight(line, " \t")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if strings.HasPrefix(line, StreamPrefix) {
			line = serverURL + line
		}
		entries = append(entries, line)
	}
	return entries
}

func splitLines(content string) []string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")
	return strings.Split(content, "\n")
}
