package io

import (
	"context"
	"fmt"
	"os"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader"
)

// FileLoader loads sources directly from the local filesystem with caching.
type FileLoader struct {
	cache *loader.Cache
}

// NewFileLoader creates a new filesystem-based loader.
func NewFileLoader() *FileLoader {
	return &FileLoader{cache: loader.NewCache()}
}

// GetText reads the file at src.Location. Results are cached.
func (l *FileLoader) GetText(ctx context.Context, src loader.Source) ([]byte, error) {
	return l.cache.Get(loader.CacheKey(src), func() ([]byte, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		b, err := os.ReadFile(src.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", src.Location, err)
		}
		return b, nil
	})
}
