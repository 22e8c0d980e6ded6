package assets

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/evanw/esbuild/pkg/api"
	"github.com/rs/zerolog/log"
)

// ErrNotBuilt is returned by LoadScripts before a successful Build.
var ErrNotBuilt = errors.New("assets not built")

// Build bundles every entry point matching the configured glob and caches the resulting metafile.
func (p *Pipeline) Build() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	entryPoints, err := filepath.Glob(p.config.EntryPointGlob)
	if err != nil {
		return fmt.Errorf("invalid entry point glob: %w", err)
	}
	if len(entryPoints) == 0 {
		return fmt.Errorf("no entry points match %q", p.config.EntryPointGlob)
	}

	opts := api.BuildOptions{
		EntryPoints:       entryPoints,
		Bundle:            true,
		Splitting:         true,
		Write:             true,
		Outdir:            p.config.OutputDir,
		Format:            api.FormatESModule,
		Target:            api.ES2020,
		MinifyWhitespace:  p.config.Minify,
		MinifyIdentifiers: p.config.Minify,
		MinifySyntax:      p.config.Minify,
		TreeShaking:       api.TreeShakingTrue,
		Sourcemap:         api.SourceMapNone,
		Metafile:          true,
		LogLevel:          api.LogLevelSilent,
	}
	if p.config.SourceMap {
		opts.Sourcemap = api.SourceMapLinked
	}
	if p.config.HashNames {
		opts.EntryNames = "[name]-[hash]"
		opts.ChunkNames = "chunks/[name]-[hash]"
	}

	result := api.Build(opts)
	if len(result.Errors) > 0 {
		return buildError(result.Errors)
	}
	for _, msg := range result.Warnings {
		log.Warn().Str("warning", msg.Text).Msg("esbuild warning")
	}

	var metadata BuildMetadata
	if err := json.Unmarshal([]byte(result.Metafile), &metadata); err != nil {
		return fmt.Errorf("failed to parse esbuild metafile: %w", err)
	}

	if p.config.MetafilePath != "" {
		if err := os.MkdirAll(filepath.Dir(p.config.MetafilePath), 0o755); err != nil {
			return err
		}
		if err := os.WriteFile(p.config.MetafilePath, []byte(result.Metafile), 0o600); err != nil {
			return err
		}
	}

	log.Info().Strs("entrypoints", entryPoints).Int("outputs", len(result.OutputFiles)).Msg("Built browser scripts")

	p.metadata = &metadata
	return nil
}

// LoadScripts returns the URLs a page needs for entryPointPath, the entry bundle first
// followed by its chunks in import order, plus the entry bundle URL on its own.
func (p *Pipeline) LoadScripts(entryPointPath string) ([]string, string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.metadata == nil {
		return nil, "", ErrNotBuilt
	}

	for outputPath, info := range p.metadata.Outputs {
		if info.EntryPoint != entryPointPath {
			continue
		}

		entry := p.publicURL(outputPath)
		scripts := []string{entry}
		seen := map[string]bool{outputPath: true}

		queue := info.Imports
		for len(queue) > 0 {
			imp := queue[0]
			queue = queue[1:]
			if seen[imp.Path] {
				continue
			}
			seen[imp.Path] = true
			scripts = append(scripts, p.publicURL(imp.Path))
			queue = append(queue, p.metadata.Outputs[imp.Path].Imports...)
		}

		return scripts, entry, nil
	}

	return nil, "", fmt.Errorf("entry point %q not found in build metadata", entryPointPath)
}

// Scripts is LoadScripts for templates. Pages render without scripts when assets were not built.
func (p *Pipeline) Scripts(entryPointPath string) []string {
	scripts, _, err := p.LoadScripts(entryPointPath)
	if err != nil {
		log.Debug().Err(err).Str("entrypoint", entryPointPath).Msg("No scripts for entrypoint")
		return nil
	}
	return scripts
}

// publicURL maps an esbuild output path (relative to the working directory) to the URL it is served under.
func (p *Pipeline) publicURL(outputPath string) string {
	rel, err := filepath.Rel(p.config.OutputDir, outputPath)
	if err != nil {
		rel = outputPath
	}
	prefix := p.config.PublicPrefix
	if prefix == "" {
		prefix = "/"
	}
	return path.Join(prefix, filepath.ToSlash(rel))
}

func buildError(msgs []api.Message) error {
	errs := make([]error, 0, len(msgs))
	for _, msg := range msgs {
		if msg.Location != nil {
			errs = append(errs, fmt.Errorf("%s:%d: %s", msg.Location.File, msg.Location.Line, msg.Text))
			continue
		}
		errs = append(errs, errors.New(msg.Text))
	}
	return fmt.Errorf("esbuild failed: %w", errors.Join(errs...))
}
