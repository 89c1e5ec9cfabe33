// Package repo holds the single shared record of which repository
// checkout is currently active. Exactly one Context exists per server
// process; the clone action is its only writer, every repository-aware
// tool is a reader.
package repo

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
)

// ErrNoRepository is returned when no checkout is active.
var ErrNoRepository = errors.New("no repository is currently cloned")

// Snapshot is a point-in-time copy of the context fields.
type Snapshot struct {
	Path string
	URL  string
	Name string
}

// Context tracks the active checkout. The server dispatch loop is
// single-threaded, but the supervisor sweep runs concurrently, so
// access stays mutex-guarded.
type Context struct {
	mu   sync.Mutex
	path string
	url  string
	name string
}

// NewContext returns an empty context.
func NewContext() *Context {
	return &Context{}
}

// Set commits a confirmed successful clone. It must only be called
// after the clone command exited cleanly.
func (c *Context) Set(path, url string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.path = path
	c.url = url
	c.name = NameFromURL(url)
}

// Clear drops the active checkout, removing its directory if present.
func (c *Context) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path != "" {
		_ = os.RemoveAll(c.path)
	}
	c.path = ""
	c.url = ""
	c.name = ""
}

// Snapshot returns a copy of the current fields and whether a checkout
// is active.
func (c *Context) Snapshot() (Snapshot, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" {
		return Snapshot{}, false
	}
	return Snapshot{Path: c.path, URL: c.url, Name: c.name}, true
}

// Validate checks that the context references a live checkout. With
// needGit it additionally requires a .git entry, for tools that invoke
// the version-control client.
func (c *Context) Validate(needGit bool) error {
	snap, ok := c.Snapshot()
	if !ok {
		return ErrNoRepository
	}
	info, err := os.Stat(snap.Path)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("repository path %s no longer exists", snap.Path)
	}
	if needGit {
		if _, err := os.Stat(filepath.Join(snap.Path, ".git")); err != nil {
			return fmt.Errorf("%s is not a git working tree", snap.Path)
		}
	}
	return nil
}

// NameFromURL derives a repository name from the last path segment of
// its URL, stripping a trailing .git suffix.
func NameFromURL(url string) string {
	trimmed := strings.TrimRight(url, "/")
	name := trimmed
	if idx := strings.LastIndex(trimmed, "/"); idx != -1 {
		name = trimmed[idx+1:]
	}
	return strings.TrimSuffix(name, ".git")
}
