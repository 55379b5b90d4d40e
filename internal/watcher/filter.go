package watcher

import (
	"path/filepath"
	"strings"
)

// isHidden reports whether any component of path starts with a dot.
// The "." and ".." components are not considered hidden.
func isHidden(path string) bool {
	for _, part := range strings.Split(filepath.ToSlash(path), "/") {
		if part == "" || part == "." || part == ".." {
			continue
		}
		if strings.HasPrefix(part, ".") {
			return true
		}
	}
	return false
}

// excludedDir reports whether a directory name is on the deny-list.
func (w *Watcher) excludedDir(name string) bool {
	for _, d := range w.cfg.ExcludeDirs {
		if name == d {
			return true
		}
	}
	return false
}

// eligiblePath applies the path-level filters: hidden components,
// excluded directories, and the extension allow-list. Size is checked
// separately because deletions cannot be stat'd.
func (w *Watcher) eligiblePath(path string) bool {
	rel, err := filepath.Rel(w.root, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return false
	}
	if isHidden(rel) {
		return false
	}
	for _, part := range strings.Split(filepath.ToSlash(rel), "/") {
		if w.excludedDir(part) {
			return false
		}
	}
	if len(w.extensions) == 0 {
		return true
	}
	ext := strings.ToLower(filepath.Ext(path))
	for _, allowed := range w.extensions {
		if ext == allowed {
			return true
		}
	}
	return false
}

// normaliseExtensions lowercases the allow-list and guarantees each
// entry carries a leading dot, so "go" and ".Go" both match ".go".
func normaliseExtensions(exts []string) []string {
	if len(exts) == 0 {
		return nil
	}
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}
