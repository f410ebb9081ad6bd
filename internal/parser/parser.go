// Package parser extracts front-matter publishing directives from Markdown content.
package parser

import (
	"strings"
)

// Front-matter keys recognised by the publisher.
const (
	KeyPageID   = "confluence_page_id"
	KeyTitle    = "confluence_title"
	KeySpaceKey = "confluence_space_key"
	KeyParentID = "confluence_parent_id"
)

// Result holds the output of parsing a Markdown file.
type Result struct {
	// Fields contains every front-matter key/value pair, comment- and
	// quote-stripped. Recognised keys are also exposed as typed fields.
	Fields   map[string]string
	PageID   string
	Title    string
	SpaceKey string
	ParentID string
	Body     string
}

// Parse separates the front-matter block (between leading --- delimiter lines)
// from the Markdown body. Each front-matter line is a "key: value" pair; a
// trailing "#"-started comment is stripped from the value, as are surrounding
// quotes. Files without front-matter yield an empty Fields map and the whole
// content as body.
func Parse(data []byte) *Result {
	fields, body := splitFrontmatter(string(data))
	return &Result{
		Fields:   fields,
		PageID:   fields[KeyPageID],
		Title:    fields[KeyTitle],
		SpaceKey: fields[KeySpaceKey],
		ParentID: fields[KeyParentID],
		Body:     body,
	}
}

// splitFrontmatter returns the parsed front-matter fields and the body.
// The opening delimiter must be the first line of the file.
func splitFrontmatter(content string) (map[string]string, string) {
	const delim = "---"

	firstLine, rest, found := strings.Cut(content, "\n")
	if !found || strings.TrimRight(firstLine, " \t\r") != delim {
		return map[string]string{}, content
	}

	// Scan for the closing delimiter line.
	lines := strings.Split(rest, "\n")
	end := -1
	for i, line := range lines {
		if strings.TrimRight(line, " \t\r") == delim {
			end = i
			break
		}
	}
	if end < 0 {
		// No closing delimiter: treat everything as body.
		return map[string]string{}, content
	}

	fields := parseFields(lines[:end])
	body := strings.Join(lines[end+1:], "\n")
	return fields, body
}

// parseFields parses "key: value" lines. Lines without a colon are ignored.
func parseFields(lines []string) map[string]string {
	fields := make(map[string]string, len(lines))
	for _, line := range lines {
		key, value, found := strings.Cut(line, ":")
		if !found {
			continue
		}
		// Strip a trailing comment, then surrounding quotes.
		value, _, _ = strings.Cut(value, "#")
		value = strings.TrimSpace(value)
		value = strings.Trim(value, `"'`)
		key = strings.TrimSpace(key)
		if key == "" {
			continue
		}
		fields[key] = value
	}
	return fields
}
