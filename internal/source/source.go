// Package source defines the narrow document capability the pipeline
// depends on. Anything that can hand over its text and a display name can
// feed the extractor, whether it came from the vault or over the API.
package source

import (
	"path"
	"strings"

	"github.com/veleth/ansuz/internal/storage"
)

// Source is a readable document with a human-facing name.
type Source interface {
	Text() string
	DisplayName() string
}

// FileSource adapts a vault file read through a storage.Provider.
type FileSource struct {
	path string
	text string
}

// NewFileSource reads the file at the given vault-relative path.
func NewFileSource(store storage.Provider, relPath string) (*FileSource, error) {
	data, err := store.Read(relPath)
	if err != nil {
		return nil, err
	}
	return &FileSource{path: relPath, text: string(data)}, nil
}

func (f *FileSource) Text() string { return f.text }

// DisplayName is the file name without directory or .md extension.
func (f *FileSource) DisplayName() string {
	base := path.Base(f.path)
	return strings.TrimSuffix(base, ".md")
}

// Path returns the vault-relative path of the backing file.
func (f *FileSource) Path() string { return f.path }

// InlineSource adapts text submitted directly, e.g. through the HTTP
// extract-preview endpoint or an MCP tool call.
type InlineSource struct {
	Name    string
	Content string
}

func (s InlineSource) Text() string        { return s.Content }
func (s InlineSource) DisplayName() string { return s.Name }
