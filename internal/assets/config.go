package assets

// Config locates the dashboard's browser scripts and where the bundles are served from.
type Config struct {
	EntryPointGlob string // source entry points, e.g. "ui/scripts/*.ts"
	OutputDir      string // bundle output; served under PublicPrefix
	MetafilePath   string
	PublicPrefix   string

	Minify    bool
	SourceMap bool

	// HashNames appends a content hash to bundle file names so cached listing pages
	// never reference a stale script.
	HashNames bool
}

// DefaultConfig bundles ui/scripts into public/ for the /public/ file server.
func DefaultConfig() Config {
	return Config{
		EntryPointGlob: "ui/scripts/*.ts",
		OutputDir:      "public",
		MetafilePath:   "public/meta.json",
		PublicPrefix:   "/public/",
		Minify:         true,
		SourceMap:      true,
		HashNames:      true,
	}
}
