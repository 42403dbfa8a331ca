// Package auto picks a loader for a location by its scheme and extension.
package auto

import (
	"context"
	"fmt"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/doc"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/io"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/web"
)

// Router dispatches sources to the file, web or S3 loader. A nil S3 loader
// makes s3:// locations fail.
type Router struct {
	file loader.SourceLoader
	web  loader.SourceLoader
	s3   loader.SourceLoader
	docx map[loader.SourceKind]loader.SourceLoader
}

// NewRouterParams configures a Router. Nil File and Web loaders get the
// package defaults.
type NewRouterParams struct {
	File loader.SourceLoader
	Web  loader.SourceLoader
	S3   loader.SourceLoader
}

// NewRouter creates a Router.
func NewRouter(params NewRouterParams) *Router {
	r := &Router{
		file: params.File,
		web:  params.Web,
		s3:   params.S3,
		docx: make(map[loader.SourceKind]loader.SourceLoader),
	}
	if r.file == nil {
		r.file = io.NewFileLoader()
	}
	if r.web == nil {
		r.web = web.NewWebLoader(web.NewWebLoaderParams{})
	}
	r.docx[loader.SourceFile] = doc.NewDocxLoader(r.file)
	r.docx[loader.SourceWeb] = doc.NewDocxLoader(r.web)
	if r.s3 != nil {
		r.docx[loader.SourceS3] = doc.NewDocxLoader(r.s3)
	}
	return r
}

// LoaderFor returns the loader that handles location.
func (r *Router) LoaderFor(location string) (loader.SourceLoader, error) {
	kind := loader.DetectKind(location)
	if loader.Ext(location) == "docx" {
		if l, ok := r.docx[kind]; ok {
			return l, nil
		}
	}
	switch kind {
	case loader.SourceWeb:
		return r.web, nil
	case loader.SourceS3:
		if r.s3 == nil {
			return nil, fmt.Errorf("no s3 loader configured for %s", location)
		}
		return r.s3, nil
	default:
		return r.file, nil
	}
}

// Source builds a Source for location with the matching loader.
func (r *Router) Source(id, location string) (loader.Source, error) {
	l, err := r.LoaderFor(location)
	if err != nil {
		return loader.Source{}, err
	}
	return loader.NewSource(id, location, l), nil
}

// Load returns the cleaned text at location.
func (r *Router) Load(ctx context.Context, location string) (string, error) {
	src, err := r.Source(location, location)
	if err != nil {
		return "", err
	}
	return src.Text(ctx)
}
