package assets

import (
	"errors"
	"html/template"
	"io"
	"io/fs"
	"maps"
	"sync"
)

// BuildMetadata is the subset of the esbuild metafile needed to resolve script tags.
type BuildMetadata struct {
	Outputs map[string]OutputInfo `json:"outputs"`
}

type OutputInfo struct {
	EntryPoint string       `json:"entryPoint"`
	Imports    []ImportInfo `json:"imports"`
}

type ImportInfo struct {
	Path string `json:"path"`
}

// Pipeline owns the page templates and the script bundles they reference.
type Pipeline struct {
	config Config

	mu       sync.RWMutex
	metadata *BuildMetadata
	tmpl     *template.Template
}

// New creates a pipeline without templates.
func New(config Config) *Pipeline {
	return &Pipeline{config: config}
}

// NewWithTemplateFS parses every template matching patterns from fsys. Templates can call
// {{script "entry.ts"}} to list the bundle URLs for an entry point, plus any of funcs.
func NewWithTemplateFS(config Config, fsys fs.FS, patterns []string, funcs template.FuncMap) (*Pipeline, error) {
	p := New(config)

	all := template.FuncMap{"script": p.Scripts}
	maps.Copy(all, funcs)

	tmpl, err := template.New("pages").Funcs(all).ParseFS(fsys, patterns...)
	if err != nil {
		return nil, err
	}
	p.tmpl = tmpl
	return p, nil
}

// Built reports whether Build has completed successfully.
func (p *Pipeline) Built() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.metadata != nil
}

// Render executes the named template with data.
func (p *Pipeline) Render(w io.Writer, name string, data any) error {
	if p.tmpl == nil {
		return errors.New("no templates loaded")
	}
	return p.tmpl.ExecuteTemplate(w, name, data)
}
