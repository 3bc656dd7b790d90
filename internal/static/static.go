// Package static serves the path-prefix file tier that sits between
// literal and dynamic route matching. Each mount confines requests to
// one root directory and answers GET and HEAD only.
package static

import (
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/courier-http/courier/internal/config"
)

// Mount serves files for one URL prefix.
type Mount struct {
	prefix       string
	root         string
	index        string
	cacheControl string
	fileServer   http.Handler
	served       atomic.Int64
}

// NewMount creates a Mount from config, verifying the root directory
// at startup.
func NewMount(cfg config.StaticMount) (*Mount, error) {
	prefix := cfg.Prefix
	if !strings.HasPrefix(prefix, "/") {
		prefix = "/" + prefix
	}
	prefix = strings.TrimSuffix(prefix, "/")

	absRoot, err := filepath.Abs(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("resolving static root: %w", err)
	}
	info, err := os.Stat(absRoot)
	if err != nil {
		return nil, fmt.Errorf("static root %q: %w", absRoot, err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("static root %q is not a directory", absRoot)
	}

	index := cfg.Index
	if index == "" {
		index = "index.html"
	}

	return &Mount{
		prefix:       prefix,
		root:         absRoot,
		index:        index,
		cacheControl: cfg.CacheControl,
		fileServer:   http.FileServer(http.Dir(absRoot)),
	}, nil
}

// Prefix returns the normalized URL prefix.
func (m *Mount) Prefix() string { return m.prefix }

// Served returns how many files this mount has served.
func (m *Mount) Served() int64 { return m.served.Load() }

// Matches reports whether the path falls under this mount.
func (m *Mount) Matches(path string) bool {
	if m.prefix == "" {
		return true
	}
	return path == m.prefix || strings.HasPrefix(path, m.prefix+"/")
}

// ServeHTTP serves the file under the mount, or 404/403/405.
func (m *Mount) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.Header().Set("Allow", "GET, HEAD")
		http.Error(w, "Method Not Allowed", http.StatusMethodNotAllowed)
		return
	}
	if strings.Contains(r.URL.Path, "..") {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	rel := strings.TrimPrefix(r.URL.Path, m.prefix)
	if rel == "" {
		rel = "/"
	}
	cleanRel := filepath.Clean(rel)
	if cleanRel == "." {
		cleanRel = "/"
	}
	fullPath := filepath.Join(m.root, cleanRel)
	if !strings.HasPrefix(fullPath, m.root) {
		http.Error(w, "Forbidden", http.StatusForbidden)
		return
	}

	info, err := os.Stat(fullPath)
	if err != nil {
		http.NotFound(w, r)
		return
	}
	if info.IsDir() {
		// Directory listings are never exposed; only an index file.
		if _, err := os.Stat(filepath.Join(fullPath, m.index)); err != nil {
			http.NotFound(w, r)
			return
		}
	}

	if m.cacheControl != "" {
		w.Header().Set("Cache-Control", m.cacheControl)
	}
	m.served.Add(1)

	// Rebase the request path onto the mount root for FileServer.
	r2 := r.Clone(r.Context())
	r2.URL.Path = cleanRel
	m.fileServer.ServeHTTP(w, r2)
}

// Tier is the ordered set of mounts consulted during dispatch.
type Tier struct {
	mounts []*Mount
}

// NewTier builds all configured mounts, failing startup on a bad root.
func NewTier(cfgs []config.StaticMount) (*Tier, error) {
	t := &Tier{}
	for _, cfg := range cfgs {
		m, err := NewMount(cfg)
		if err != nil {
			return nil, err
		}
		t.mounts = append(t.mounts, m)
	}
	return t, nil
}

// Lookup returns the first mount whose prefix covers the path.
func (t *Tier) Lookup(path string) *Mount {
	for _, m := range t.mounts {
		if m.Matches(path) {
			return m
		}
	}
	return nil
}

// Len returns the number of configured mounts.
func (t *Tier) Len() int { return len(t.mounts) }
