package assets

import (
	"bytes"
	"path/filepath"
	"testing"
	"testing/fstest"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/stretchr/testify/require"
)

func TestLoadScripts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PublicPrefix = "/public/"

	p := New(cfg)
	p.metadata = &BuildMetadata{Outputs: map[string]OutputInfo{
		"public/properties.js": {
			EntryPoint: "ui/scripts/properties.ts",
			Imports:    []ImportInfo{{Path: "public/chunk-ABC.js"}},
		},
		"public/chunk-ABC.js": {},
	}}

	scripts, entry, err := p.LoadScripts("ui/scripts/properties.ts")
	require.NoError(t, err)
	require.Equal(t, "/public/properties.js", entry)
	require.Equal(t, []string{"/public/properties.js", "/public/chunk-ABC.js"}, scripts)

	_, _, err = p.LoadScripts("ui/scripts/missing.ts")
	require.ErrorContains(t, err, "not found in build metadata")
}

func TestScripts_NotBuilt(t *testing.T) {
	p := New(DefaultConfig())
	require.False(t, p.Built())
	require.Nil(t, p.Scripts("ui/scripts/properties.ts"))

	_, _, err := p.LoadScripts("ui/scripts/properties.ts")
	require.ErrorIs(t, err, ErrNotBuilt)
}

func TestBuild_NoEntryPoints(t *testing.T) {
	cfg := DefaultConfig()
	cfg.EntryPointGlob = filepath.Join(t.TempDir(), "*.ts")

	err := New(cfg).Build()
	require.ErrorContains(t, err, "no entry points match")
}

func TestBuildError(t *testing.T) {
	err := buildError([]api.Message{
		{Text: "Could not resolve \"./missing\"", Location: &api.Location{File: "ui/scripts/properties.ts", Line: 3}},
		{Text: "unexpected end of file"},
	})
	require.ErrorContains(t, err, "ui/scripts/properties.ts:3: Could not resolve")
	require.ErrorContains(t, err, "unexpected end of file")
}

func TestNewWithTemplateFS(t *testing.T) {
	fsys := fstest.MapFS{
		"templates/page.html": {Data: []byte(`{{define "page"}}<h1>{{.}}</h1>{{range script "ui/scripts/page.ts"}}<script src="{{.}}"></script>{{end}}{{end}}`)},
	}

	p, err := NewWithTemplateFS(DefaultConfig(), fsys, []string{"templates/*.html"}, nil)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, p.Render(&buf, "page", "Properties"))
	require.Equal(t, "<h1>Properties</h1>", buf.String())

	require.Error(t, New(DefaultConfig()).Render(&buf, "page", nil))
}
