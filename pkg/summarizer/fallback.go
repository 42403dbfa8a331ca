package summarizer

import (
	"context"
	"errors"
	"fmt"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
)

// Fallback runs primary and switches to fallback when primary is
// unavailable or fails. Fallbacks nest, so WithFallback(a, WithFallback(b, c))
// tries a, then b, then c.
type Fallback struct {
	primary  Summarizer
	fallback Summarizer
}

// WithFallback chains primary and fallback.
func WithFallback(primary, fallback Summarizer) *Fallback {
	return &Fallback{primary: primary, fallback: fallback}
}

func (f *Fallback) Name() string {
	return f.primary.Name()
}

func (f *Fallback) Method() Method {
	return f.primary.Method()
}

func (f *Fallback) IsAvailable() bool {
	return f.primary.IsAvailable() || f.fallback.IsAvailable()
}

func (f *Fallback) Summarize(ctx context.Context, text string, opts Options) (Summary, error) {
	var primaryErr error
	if f.primary.IsAvailable() {
		s, err := f.primary.Summarize(ctx, text, opts)
		if err == nil {
			return s, nil
		}
		primaryErr = err
		logger.Warn("[Summarizer] Primary failed, using fallback",
			"primary", f.primary.Name(), "fallback", f.fallback.Name(), "err", err)
	} else {
		primaryErr = fmt.Errorf("%s: %w", f.primary.Name(), ErrUnavailable)
		logger.Debug("[Summarizer] Primary unavailable, using fallback",
			"primary", f.primary.Name(), "fallback", f.fallback.Name())
	}

	if !f.fallback.IsAvailable() {
		return Summary{}, errors.Join(primaryErr, fmt.Errorf("%s: %w", f.fallback.Name(), ErrUnavailable))
	}
	s, err := f.fallback.Summarize(ctx, text, opts)
	if err != nil {
		return Summary{}, errors.Join(primaryErr, err)
	}
	return s, nil
}

// Select returns the first candidate implementing method, or nil.
func Select(method Method, candidates ...Summarizer) Summarizer {
	for _, c := range candidates {
		if c != nil && c.Method() == method {
			return c
		}
	}
	return nil
}
