// ABOUTME: Loader constructors for static strings, embedded files and rendered markdown.
// ABOUTME: Markdown is converted to a minimal HTML document with goldmark.

package resources

import (
	"bytes"
	"fmt"
	"html"
	"io/fs"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/extension"
)

// StaticLoader returns content that is already in memory.
func StaticLoader(text string) Loader {
	return func() (string, error) {
		return text, nil
	}
}

// FSLoader reads a file from fsys.
func FSLoader(fsys fs.FS, path string) Loader {
	return func() (string, error) {
		data, err := fs.ReadFile(fsys, path)
		if err != nil {
			return "", err
		}
		return string(data), nil
	}
}

var markdown = goldmark.New(goldmark.WithExtensions(extension.GFM))

// MarkdownLoader renders a markdown file from fsys into an HTML document
// titled with title.
func MarkdownLoader(fsys fs.FS, path, title string) Loader {
	return func() (string, error) {
		src, err := fs.ReadFile(fsys, path)
		if err != nil {
			return "", err
		}

		var body bytes.Buffer
		if err := markdown.Convert(src, &body); err != nil {
			return "", fmt.Errorf("render %s: %w", path, err)
		}

		var doc bytes.Buffer
		doc.WriteString("<!DOCTYPE html>\n<html>\n<head>\n<meta charset=\"utf-8\">\n<title>")
		doc.WriteString(html.EscapeString(title))
		doc.WriteString("</title>\n</head>\n<body>\n")
		doc.Write(body.Bytes())
		doc.WriteString("</body>\n</html>\n")
		return doc.String(), nil
	}
}
