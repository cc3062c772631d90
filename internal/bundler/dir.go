// ABOUTME: Bundles every HTML file in a build output directory in place.
// ABOUTME: Consumed script and stylesheet files are removed once all documents are rewritten.

package bundler

import (
	"bytes"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
)

// DirSummary reports what BundleDir changed.
type DirSummary struct {
	Rewritten []string
	Removed   []string
}

// BundleDir bundles every *.html file under dir. All documents are bundled
// in memory first, so a missing asset leaves the directory untouched.
func BundleDir(dir string, logger *slog.Logger) (*DirSummary, error) {
	if logger == nil {
		logger = slog.Default()
	}
	logger = logger.With("component", "bundler", "dir", dir)

	fsys := os.DirFS(dir)

	var pages []string
	err := fs.WalkDir(fsys, ".", func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && strings.EqualFold(path.Ext(p), ".html") {
			pages = append(pages, p)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", dir, err)
	}
	sort.Strings(pages)

	type rewrite struct {
		page string
		html []byte
		mode fs.FileMode
	}
	var rewrites []rewrite
	consumed := make(map[string]bool)

	for _, p := range pages {
		src, err := fs.ReadFile(fsys, p)
		if err != nil {
			return nil, fmt.Errorf("read %s: %w", p, err)
		}
		res, err := Bundle(src, fsys, path.Dir(p))
		if err != nil {
			return nil, fmt.Errorf("bundle %s: %w", p, err)
		}
		for _, asset := range res.Inlined {
			consumed[asset] = true
		}
		if bytes.Equal(src, res.HTML) {
			logger.Debug("already self-contained", "page", p)
			continue
		}
		info, err := fs.Stat(fsys, p)
		if err != nil {
			return nil, err
		}
		rewrites = append(rewrites, rewrite{page: p, html: res.HTML, mode: info.Mode().Perm()})
	}

	summary := &DirSummary{}
	for _, rw := range rewrites {
		target := filepath.Join(dir, filepath.FromSlash(rw.page))
		if err := os.WriteFile(target, rw.html, rw.mode); err != nil {
			return nil, fmt.Errorf("write %s: %w", rw.page, err)
		}
		summary.Rewritten = append(summary.Rewritten, rw.page)
		logger.Info("bundled page", "page", rw.page, "bytes", len(rw.html))
	}

	removed := make([]string, 0, len(consumed))
	for asset := range consumed {
		removed = append(removed, asset)
	}
	sort.Strings(removed)
	for _, asset := range removed {
		if err := os.Remove(filepath.Join(dir, filepath.FromSlash(asset))); err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("remove %s: %w", asset, err)
		}
		logger.Debug("removed inlined asset", "asset", asset)
	}
	summary.Removed = removed

	return summary, nil
}
