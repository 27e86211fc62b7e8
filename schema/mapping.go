package schema

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gobwas/glob"
)

// ResourceMapping resolves a URI to its raw document bytes, or reports
// ok=false if it doesn't claim that URI (spec §4.E, "Resolution").
// Registry tries every installed mapping in order until one claims the
// URI.
type ResourceMapping interface {
	Resolve(uri string) (data []byte, ok bool, err error)
}

// DirectoryMapping serves URIs under urlPrefix from files rooted at dir,
// only for URIs whose suffix (the part after urlPrefix) matches pattern
// (a glob, e.g. "**/*.yaml") — the directory-backed mapping named in
// spec §4.E.
type DirectoryMapping struct {
	URLPrefix string
	Dir       string
	Pattern   glob.Glob
}

// NewDirectoryMapping builds a DirectoryMapping, compiling pattern once.
func NewDirectoryMapping(urlPrefix, dir, pattern string) (*DirectoryMapping, error) {
	g, err := glob.Compile(pattern, '/')
	if err != nil {
		return nil, fmt.Errorf("schema: invalid directory mapping pattern %q: %w", pattern, err)
	}

	return &DirectoryMapping{URLPrefix: urlPrefix, Dir: dir, Pattern: g}, nil
}

func (m *DirectoryMapping) Resolve(uri string) ([]byte, bool, error) {
	suffix, ok := strings.CutPrefix(uri, m.URLPrefix)
	if !ok {
		return nil, false, nil
	}

	suffix = strings.TrimPrefix(suffix, "/")
	if m.Pattern != nil && !m.Pattern.Match(suffix) {
		return nil, false, nil
	}

	data, err := os.ReadFile(filepath.Join(m.Dir, filepath.FromSlash(suffix)))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, false, nil
		}

		return nil, false, fmt.Errorf("schema: directory mapping: %w", err)
	}

	return data, true, nil
}

// MemoryMapping serves a fixed, in-process set of URI -> bytes entries,
// used for schemas embedded in the binary or registered at runtime by a
// manifest (spec §4.E, "in-memory" mapping).
type MemoryMapping map[string][]byte

func (m MemoryMapping) Resolve(uri string) ([]byte, bool, error) {
	data, ok := m[uri]
	return data, ok, nil
}

// HTTPMapping fetches URIs under urlPrefix by substituting baseURL and
// issuing a plain GET (spec §4.E, "HTTP" mapping).
type HTTPMapping struct {
	URLPrefix string
	BaseURL   string
	Client    *http.Client
}

func (m *HTTPMapping) Resolve(uri string) ([]byte, bool, error) {
	suffix, ok := strings.CutPrefix(uri, m.URLPrefix)
	if !ok {
		return nil, false, nil
	}

	client := m.Client
	if client == nil {
		client = http.DefaultClient
	}

	resp, err := client.Get(m.BaseURL + suffix)
	if err != nil {
		return nil, false, fmt.Errorf("schema: http mapping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("schema: http mapping: %s: status %d", uri, resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("schema: http mapping: %w", err)
	}

	return data, true, nil
}
