// Package converter turns Markdown into Confluence storage-format markup.
//
// Conversion is an ordered pipeline of pure text stages over a single buffer.
// Fenced code blocks are pulled out first and restored last, so no other
// stage ever rewrites code content. The pipeline is deterministic: the same
// input always produces byte-identical output.
package converter

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// ImageRef is a local image discovered during conversion.
type ImageRef struct {
	// Source is the path exactly as written in the Markdown.
	Source string
	// Path is the resolved absolute filesystem path.
	Path string
}

// Filename returns the base name used to reference the image as an attachment.
// Uploads must use the same name; duplicate base names across different source
// paths collide (last one wins).
func (r ImageRef) Filename() string {
	return filepath.Base(r.Path)
}

// Result holds the converted markup and the images discovered along the way.
type Result struct {
	Markup string
	Images []ImageRef
	// Missing lists local image paths referenced in the Markdown that do not
	// exist on disk. Their references are replaced with an inline note.
	Missing []string
}

// Discover returns the local images a document references, without rendering.
// It applies the same fence protection as Render, so images inside code
// blocks are never reported.
func Discover(body, baseDir string) []ImageRef {
	stripped, _ := extractFences(body)
	_, images, _ := convertImages(stripped, baseDir)
	return images
}

// Render converts Markdown to storage-format markup. baseDir is the directory
// of the source file; relative image paths are resolved against it.
func Render(body, baseDir string) Result {
	content, fences := extractFences(body)

	content, images, missing := convertImages(content, baseDir)
	content = convertHeadings(content)
	content = convertBold(content)
	content = convertItalic(content)
	content = convertInlineCode(content)
	content = convertTables(content)
	content = convertRules(content)
	content = wrapParagraphs(content)
	content = restoreFences(content, fences)

	return Result{Markup: content, Images: images, Missing: missing}
}

// resolveImage resolves an image path from the Markdown against baseDir and
// reports whether the file exists.
func resolveImage(src, baseDir string) (string, bool) {
	abs := src
	if !filepath.IsAbs(src) {
		abs = filepath.Join(baseDir, src)
	}
	abs = filepath.Clean(abs)
	if _, err := os.Stat(abs); err != nil {
		return abs, false
	}
	return abs, true
}

// codeMacro renders the Confluence code macro. The body goes into a CDATA
// section literally, with no escaping.
func codeMacro(lang, code string) string {
	if lang == "" {
		lang = "none"
	}
	return fmt.Sprintf(`<ac:structured-macro ac:name="code"><ac:parameter ac:name="language">%s</ac:parameter><ac:plain-text-body><![CDATA[%s]]></ac:plain-text-body></ac:structured-macro>`, lang, code)
}

func externalImage(url string) string {
	return fmt.Sprintf(`<ac:image><ri:url ri:value="%s" /></ac:image>`, url)
}

func attachmentImage(filename string) string {
	return fmt.Sprintf(`<ac:image><ri:attachment ri:filename="%s" /></ac:image>`, filename)
}

func missingImage(src string) string {
	return fmt.Sprintf(`<p><em>Image not found: %s</em></p>`, src)
}

func isExternal(src string) bool {
	return strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://")
}
