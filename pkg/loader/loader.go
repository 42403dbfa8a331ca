// Package loader turns document locations (local paths, URLs, object
// keys) into plain text for the summarization pipeline.
package loader

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/util"

	"golang.org/x/sync/singleflight"
)

// SourceKind tells where a source is read from.
type SourceKind string

const (
	SourceFile SourceKind = "file"
	SourceWeb  SourceKind = "web"
	SourceS3   SourceKind = "s3"
)

const s3Scheme = "s3://"

// Source represents a document whose text is retrieved through its Loader.
type Source struct {
	ID       string
	Location string
	Kind     SourceKind
	Loader   SourceLoader
}

// SourceLoader retrieves the raw bytes or text of a source. Implementations
// may read from disk, the web or object storage.
type SourceLoader interface {
	GetText(ctx context.Context, src Source) ([]byte, error)
}

// NewSource creates a Source, deriving its kind from the location.
func NewSource(id, location string, l SourceLoader) Source {
	return Source{
		ID:       id,
		Location: location,
		Kind:     DetectKind(location),
		Loader:   l,
	}
}

// Text loads the source and returns its cleaned text.
//
// Example:
//
//	src := loader.NewSource("1", "article.txt", io.NewFileLoader())
//	text, err := src.Text(ctx)
func (s Source) Text(ctx context.Context) (string, error) {
	if s.Loader == nil {
		return "", fmt.Errorf("no loader for source %s", s.Location)
	}
	b, err := s.Loader.GetText(ctx, s)
	if err != nil {
		return "", err
	}
	return util.CleanText(string(b)), nil
}

// DetectKind classifies a location: http(s) URLs are web sources, s3://
// keys object storage, anything else a local path.
func DetectKind(location string) SourceKind {
	lower := strings.ToLower(location)
	switch {
	case strings.HasPrefix(lower, "http://"), strings.HasPrefix(lower, "https://"):
		return SourceWeb
	case strings.HasPrefix(lower, s3Scheme):
		return SourceS3
	}
	return SourceFile
}

// ObjectKey strips the s3:// scheme from a location.
func ObjectKey(location string) string {
	if len(location) >= len(s3Scheme) && strings.EqualFold(location[:len(s3Scheme)], s3Scheme) {
		return location[len(s3Scheme):]
	}
	return location
}

// Ext returns the lower case extension of a location without the dot,
// ignoring any URL query.
func Ext(location string) string {
	if i := strings.IndexAny(location, "?#"); i >= 0 && DetectKind(location) == SourceWeb {
		location = location[:i]
	}
	return strings.TrimPrefix(strings.ToLower(filepath.Ext(location)), ".")
}

// CacheKey generates a unique cache key for a Source based on its ID and location.
func CacheKey(src Source) string {
	return src.ID + ":" + src.Location
}

// Cache memoizes loaded bytes per key. Concurrent loads of the same key
// share one call.
type Cache struct {
	mu      sync.RWMutex
	entries map[string][]byte
	group   singleflight.Group
}

// NewCache returns an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string][]byte)}
}

func (c *Cache) lookup(key string) ([]byte, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	b, ok := c.entries[key]
	return b, ok
}

// Get returns the cached bytes for key or calls load once to fill them.
// Failed loads are not cached.
func (c *Cache) Get(key string, load func() ([]byte, error)) ([]byte, error) {
	if b, ok := c.lookup(key); ok {
		return b, nil
	}

	result, err, _ := c.group.Do(key, func() (any, error) {
		if b, ok := c.lookup(key); ok {
			return b, nil
		}
		b, err := load()
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = b
		c.mu.Unlock()
		return b, nil
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}
