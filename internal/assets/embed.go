// Package assets holds the bundled widget documents shipped with the gateway
// and registers them as ui:// resources. Widgets are embedded via go:embed;
// a directory on disk can replace the embedded set for development.
package assets

import (
	"embed"
	"fmt"
	"io/fs"
	"os"
	"path"
	"strings"

	"github.com/2389/widget-gateway/internal/resources"
)

//go:embed all:dist
var distFS embed.FS

const (
	// CalendarWidgetURI is the template for the goal tools.
	CalendarWidgetURI = "ui://widget/calendar-widget.html"

	// HelpURI is the rendered help page.
	HelpURI = "ui://docs/help.html"
)

// descriptions for widgets we know about; other files get a generic one.
var descriptions = map[string]struct{ name, description string }{
	"calendar-widget.html": {"Goal countdown widget", "Calendar view of the current goal with days remaining."},
	"help.md":              {"Help", "How to use the goal tools."},
}

// FS returns the widget filesystem. An empty dir selects the embedded
// bundle; otherwise dir on disk is used as is.
func FS(dir string) (fs.FS, error) {
	if dir == "" {
		return fs.Sub(distFS, "dist")
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("widgets dir: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("widgets dir %s is not a directory", dir)
	}
	return os.DirFS(dir), nil
}

// resourceFor maps a file in the widget filesystem to its resource entry
// and loader. ok is false for files that are not served.
func resourceFor(fsys fs.FS, p string) (entry resources.Entry, loader resources.Loader, ok bool) {
	base := path.Base(p)
	meta, known := descriptions[base]
	if !known {
		meta.name = strings.TrimSuffix(base, path.Ext(base))
	}

	switch strings.ToLower(path.Ext(p)) {
	case ".html", ".htm":
		return resources.Entry{
			URI:         "ui://widget/" + p,
			Name:        meta.name,
			Description: meta.description,
			MIMEType:    resources.WidgetMIMEType,
		}, resources.FSLoader(fsys, p), true

	case ".md", ".markdown":
		stem := strings.TrimSuffix(p, path.Ext(p))
		return resources.Entry{
			URI:         "ui://docs/" + stem + ".html",
			Name:        meta.name,
			Description: meta.description,
			MIMEType:    "text/html",
		}, resources.MarkdownLoader(fsys, p, meta.name), true
	}
	return resources.Entry{}, nil, false
}

// RegisterWidgets registers every HTML widget and markdown page in fsys.
// Returns the number of resources registered.
func RegisterWidgets(reg *resources.Registry, fsys fs.FS) (int, error) {
	count := 0
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if p != "." && strings.HasPrefix(d.Name(), ".") {
				return fs.SkipDir
			}
			return nil
		}
		entry, loader, ok := resourceFor(fsys, p)
		if !ok {
			return nil
		}
		if err := reg.Register(entry, loader); err != nil {
			return err
		}
		count++
		return nil
	})
	if err != nil {
		return count, fmt.Errorf("registering widgets: %w", err)
	}
	return count, nil
}
