package chat

import (
	"sync"

	"github.com/google/uuid"
)

// PreviewRegistry hands out local preview URLs for selected files.
// Every URL must be revoked once the message holding it goes away.
type PreviewRegistry struct {
	mu      sync.Mutex
	entries map[string]File
}

// NewPreviewRegistry creates an empty registry.
func NewPreviewRegistry() *PreviewRegistry {
	return &PreviewRegistry{entries: make(map[string]File)}
}

// Create registers f and returns its preview URL.
func (r *PreviewRegistry) Create(f File) string {
	url := "blob:" + uuid.NewString()
	r.mu.Lock()
	r.entries[url] = f
	r.mu.Unlock()
	return url
}

// Resolve returns the file behind url.
func (r *PreviewRegistry) Resolve(url string) (File, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	f, ok := r.entries[url]
	return f, ok
}

// Revoke releases url. Unknown URLs are ignored.
func (r *PreviewRegistry) Revoke(url string) {
	r.mu.Lock()
	delete(r.entries, url)
	r.mu.Unlock()
}

// RevokeAll releases every URL and returns how many were live.
func (r *PreviewRegistry) RevokeAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := len(r.entries)
	r.entries = make(map[string]File)
	return n
}

// Len returns the number of live URLs.
func (r *PreviewRegistry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.entries)
}
