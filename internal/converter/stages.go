package converter

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	fenceRe       = regexp.MustCompile("(?s)```(\\w*)\n(.*?)```")
	imageRe       = regexp.MustCompile(`!\[(.*?)\]\((.*?)\)`)
	boldStarRe    = regexp.MustCompile(`\*\*(.*?)\*\*`)
	boldUnderRe   = regexp.MustCompile(`__(.*?)__`)
	italicStarRe  = regexp.MustCompile(`\*(.*?)\*`)
	italicUnderRe = regexp.MustCompile(`_(.*?)_`)
	inlineCodeRe  = regexp.MustCompile("`(.*?)`")
	ruleRe        = regexp.MustCompile(`(?m)^---+$`)

	// Longest hash run first so "###" is never caught by the "##" rule.
	headingRes = []struct {
		re  *regexp.Regexp
		tag string
	}{
		{regexp.MustCompile(`(?m)^######\s+(.*)$`), "h6"},
		{regexp.MustCompile(`(?m)^#####\s+(.*)$`), "h5"},
		{regexp.MustCompile(`(?m)^####\s+(.*)$`), "h4"},
		{regexp.MustCompile(`(?m)^###\s+(.*)$`), "h3"},
		{regexp.MustCompile(`(?m)^##\s+(.*)$`), "h2"},
		{regexp.MustCompile(`(?m)^#\s+(.*)$`), "h1"},
	}
)

func fencePlaceholder(i int) string {
	return fmt.Sprintf("<!--ansuz:code:%d-->", i)
}

// extractFences replaces each fenced code block with a one-line placeholder
// and returns the rendered code macros for later restoration. Protecting
// fences up front keeps every following stage away from code content.
func extractFences(content string) (string, []string) {
	var fences []string
	out := fenceRe.ReplaceAllStringFunc(content, func(match string) string {
		m := fenceRe.FindStringSubmatch(match)
		fences = append(fences, codeMacro(m[1], m[2]))
		return fencePlaceholder(len(fences) - 1)
	})
	return out, fences
}

// restoreFences swaps placeholders back for the rendered code macros.
// Runs last, after paragraph wrapping, so CDATA content is never re-split.
func restoreFences(content string, fences []string) string {
	for i, macro := range fences {
		content = strings.Replace(content, fencePlaceholder(i), macro, 1)
	}
	return content
}

// convertImages rewrites ![alt](path) references. External URLs become
// external-image markup; existing local files become attachment references by
// base name and are recorded; missing local files become an inline note and
// are recorded separately.
func convertImages(content, baseDir string) (string, []ImageRef, []string) {
	var images []ImageRef
	var missing []string
	out := imageRe.ReplaceAllStringFunc(content, func(match string) string {
		m := imageRe.FindStringSubmatch(match)
		src := m[2]

		if isExternal(src) {
			return externalImage(src)
		}

		abs, ok := resolveImage(src, baseDir)
		if !ok {
			missing = append(missing, src)
			return missingImage(src)
		}
		ref := ImageRef{Source: src, Path: abs}
		images = append(images, ref)
		return attachmentImage(ref.Filename())
	})
	return out, images, missing
}

func convertHeadings(content string) string {
	for _, h := range headingRes {
		content = h.re.ReplaceAllString(content, "<"+h.tag+">$1</"+h.tag+">")
	}
	return content
}

func convertBold(content string) string {
	content = boldStarRe.ReplaceAllString(content, "<strong>$1</strong>")
	return boldUnderRe.ReplaceAllString(content, "<strong>$1</strong>")
}

// convertItalic must run after convertBold; the single-delimiter patterns
// would otherwise eat the double delimiters. The interaction on inputs like
// ***text*** is inherited from the delimiter grammar and left as is.
func convertItalic(content string) string {
	content = italicStarRe.ReplaceAllString(content, "<em>$1</em>")
	return italicUnderRe.ReplaceAllString(content, "<em>$1</em>")
}

func convertInlineCode(content string) string {
	return inlineCodeRe.ReplaceAllString(content, "<code>$1</code>")
}

// convertTables groups contiguous lines starting with "|" and converts each
// group: first line is the header row, the second (alignment separator) is
// discarded, the rest are data rows. Groups of fewer than two lines are left
// unconverted.
func convertTables(content string) string {
	lines := strings.Split(content, "\n")
	var out []string
	var table []string

	flush := func() {
		if len(table) == 0 {
			return
		}
		out = append(out, convertTable(table))
		table = nil
	}

	for _, line := range lines {
		if strings.HasPrefix(strings.TrimSpace(line), "|") {
			table = append(table, line)
			continue
		}
		flush()
		out = append(out, line)
	}
	flush()

	return strings.Join(out, "\n")
}

func convertTable(rows []string) string {
	if len(rows) < 2 {
		return strings.Join(rows, "\n")
	}

	var b strings.Builder
	b.WriteString("<table><tbody>")

	b.WriteString("<tr>")
	for _, cell := range splitRow(rows[0]) {
		b.WriteString("<th>" + cell + "</th>")
	}
	b.WriteString("</tr>")

	for _, row := range rows[2:] {
		b.WriteString("<tr>")
		for _, cell := range splitRow(row) {
			b.WriteString("<td>" + cell + "</td>")
		}
		b.WriteString("</tr>")
	}

	b.WriteString("</tbody></table>")
	return b.String()
}

// splitRow splits a pipe-delimited row and drops the outer empty cells
// produced by the leading and trailing "|".
func splitRow(row string) []string {
	cells := strings.Split(row, "|")
	if len(cells) < 2 {
		return nil
	}
	cells = cells[1 : len(cells)-1]
	for i, c := range cells {
		cells[i] = strings.TrimSpace(c)
	}
	return cells
}

func convertRules(content string) string {
	return ruleRe.ReplaceAllString(content, "<hr />")
}

// wrapParagraphs splits on blank-line boundaries and wraps any block that
// does not already start with markup in a paragraph tag.
func wrapParagraphs(content string) string {
	blocks := strings.Split(content, "\n\n")
	for i, block := range blocks {
		block = strings.TrimSpace(block)
		if block != "" && !strings.HasPrefix(block, "<") {
			block = "<p>" + block + "</p>"
		}
		blocks[i] = block
	}
	return strings.Join(blocks, "\n")
}
