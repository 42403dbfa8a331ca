// Package doc extracts text from Word (.docx) documents fetched through
// another loader.
package doc

import (
	"context"
	"io"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader"
)

// DocxLoader reads raw document bytes through an underlying loader and
// returns the document text.
type DocxLoader struct {
	raw   loader.SourceLoader
	cache *loader.Cache
}

// NewDocxLoader wraps raw, which must return the unmodified .docx bytes.
func NewDocxLoader(raw loader.SourceLoader) *DocxLoader {
	return &DocxLoader{raw: raw, cache: loader.NewCache()}
}

// GetText loads and parses the document. Results are cached.
func (l *DocxLoader) GetText(ctx context.Context, src loader.Source) ([]byte, error) {
	return l.cache.Get(loader.CacheKey(src), func() ([]byte, error) {
		content, err := l.raw.GetText(ctx, src)
		if err != nil {
			return nil, err
		}
		return ParseDocx(content)
	})
}

// TextFromReader parses a .docx document read from r.
func TextFromReader(r io.Reader) ([]byte, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return ParseDocx(content)
}
