package web

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sync"

	"github.com/rs/zerolog/log"
)

// Views tracks a version per rendered path. Invalidating a path bumps its version so the next
// navigation targets a URL the browser has not cached.
type Views struct {
	mu       sync.RWMutex
	versions map[string]uint64
}

// NewViews creates an empty view registry.
func NewViews() *Views {
	return &Views{versions: make(map[string]uint64)}
}

// Invalidate marks the view at path stale.
func (v *Views) Invalidate(ctx context.Context, path string) {
	v.mu.Lock()
	v.versions[path]++
	version := v.versions[path]
	v.mu.Unlock()

	log.Ctx(ctx).Debug().Str("path", path).Uint64("version", version).Msg("View invalidated")
}

// Version returns the current version of path. A nil Views reports version 0 for every path.
func (v *Views) Version(path string) uint64 {
	if v == nil {
		return 0
	}

	v.mu.RLock()
	defer v.mu.RUnlock()

	return v.versions[path]
}

// URL returns path with its version as a query parameter once it has been invalidated.
func (v *Views) URL(path string) string {
	version := v.Version(path)
	if version == 0 {
		return path
	}
	return fmt.Sprintf("%s?v=%d", path, version)
}

// writeCached writes a listing the browser may store but must revalidate before every reuse.
// The ETag is derived from the body, so a conditional request only gets 304 when nothing changed.
func writeCached(w http.ResponseWriter, r *http.Request, body []byte) {
	sum := sha256.Sum256(body)
	etag := `"` + hex.EncodeToString(sum[:8]) + `"`

	h := w.Header()
	h.Set("Cache-Control", "private, no-cache")
	h.Set("ETag", etag)
	h.Add("Vary", "Cookie")
	h.Add("Vary", "Authorization")

	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}

	writeHTML(w, http.StatusOK, body)
}

func writeUncached(w http.ResponseWriter, status int, body []byte) {
	w.Header().Set("Cache-Control", "no-store")
	writeHTML(w, status, body)
}
