package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/util"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader"

	"codeberg.org/readeck/go-readability/v2"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (compatible; graphsum/1.0)"
	defaultTries     = 3
	defaultBackoff   = 500 * time.Millisecond
	maxBodySize      = 20 << 20
)

// WebLoader fetches URLs and extracts readable text. HTML pages go through
// readability; other content types are returned as is, or handed to the
// fallback loader when one is set.
type WebLoader struct {
	client    *http.Client
	userAgent string
	tries     int
	backoff   time.Duration
	fallback  loader.SourceLoader
	cache     *loader.Cache
}

// NewWebLoaderParams configures a WebLoader. Zero values use defaults.
type NewWebLoaderParams struct {
	Client    *http.Client
	Timeout   time.Duration
	UserAgent string
	Tries     int
	Backoff   time.Duration
	Fallback  loader.SourceLoader
}

// NewWebLoader creates a web loader.
func NewWebLoader(params NewWebLoaderParams) *WebLoader {
	client := params.Client
	if client == nil {
		timeout := params.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}
	ua := params.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	tries := params.Tries
	if tries <= 0 {
		tries = defaultTries
	}
	backoff := params.Backoff
	if backoff < 0 {
		backoff = 0
	} else if backoff == 0 {
		backoff = defaultBackoff
	}

	return &WebLoader{
		client:    client,
		userAgent: ua,
		tries:     tries,
		backoff:   backoff,
		fallback:  params.Fallback,
		cache:     loader.NewCache(),
	}
}

type page struct {
	contentType string
	body        []byte
}

// GetText fetches src.Location and extracts its text. Network errors and
// 5xx responses are retried; other HTTP errors fail immediately.
func (l *WebLoader) GetText(ctx context.Context, src loader.Source) ([]byte, error) {
	return l.cache.Get(loader.CacheKey(src), func() ([]byte, error) {
		u, err := url.Parse(src.Location)
		if err != nil {
			return nil, fmt.Errorf("failed to parse url: %w", err)
		}

		p, err := util.RetryWithContext(ctx, l.tries, l.backoff, func(ctx context.Context) (page, error) {
			return l.fetch(ctx, src.Location)
		})
		if err != nil {
			return nil, err
		}

		if strings.Contains(p.contentType, "text/html") {
			article, err := readability.FromReader(bytes.NewReader(p.body), u)
			if err != nil {
				return nil, fmt.Errorf("failed to parse html: %w", err)
			}
			var builder strings.Builder
			if err := article.RenderText(&builder); err != nil {
				return nil, fmt.Errorf("failed to render article text: %w", err)
			}
			return []byte(builder.String()), nil
		}

		if l.fallback != nil {
			return l.fallback.GetText(ctx, src)
		}
		return p.body, nil
	})
}

func (l *WebLoader) fetch(ctx context.Context, location string) (page, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return page{}, util.Permanent(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("User-Agent", l.userAgent)
	req.Header.Set("Accept", "text/html,text/plain;q=0.9,*/*;q=0.8")

	resp, err := l.client.Do(req)
	if err != nil {
		return page{}, fmt.Errorf("failed to fetch url: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return page{}, fmt.Errorf("failed to fetch url: %s", resp.Status)
	}
	if resp.StatusCode >= 400 {
		return page{}, util.Permanent(fmt.Errorf("failed to fetch url: %s", resp.Status))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		return page{}, fmt.Errorf("failed to read response: %w", err)
	}
	return page{contentType: resp.Header.Get("Content-Type"), body: body}, nil
}
