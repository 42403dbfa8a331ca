package web

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articleHTML = `<!DOCTYPE html>
<html><head><title>新闻</title></head>
<body>
<nav><a href="/">首页</a></nav>
<article>
<h1>城市交通发布新规划</h1>
<p>北京市交通委员会今天发布了新的城市交通规划，计划在未来五年内新增多条地铁线路，以缓解日益严重的交通拥堵问题。</p>
<p>根据规划，新线路将连接主要的居住区和商业中心，预计每天可以服务超过一百万名乘客，同时减少私家车的使用。</p>
<p>专家表示，这一规划对于改善城市空气质量和提高居民生活质量具有重要意义，但同时也需要大量的资金投入和长期的建设时间。</p>
</article>
<footer>版权所有</footer>
</body></html>`

func newTestLoader() *WebLoader {
	return NewWebLoader(NewWebLoaderParams{Backoff: time.Millisecond, Tries: 3})
}

func TestWebLoader_HTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Contains(t, r.Header.Get("User-Agent"), "graphsum")
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(articleHTML))
	}))
	defer srv.Close()

	l := newTestLoader()
	text, err := loader.NewSource("1", srv.URL+"/news", l).Text(context.Background())
	require.NoError(t, err)
	assert.Contains(t, text, "新增多条地铁线路")
	assert.NotContains(t, text, "<p>")
}

func TestWebLoader_PlainText(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("plain body"))
	}))
	defer srv.Close()

	l := newTestLoader()
	src := loader.NewSource("1", srv.URL, l)
	for range 2 {
		b, err := l.GetText(context.Background(), src)
		require.NoError(t, err)
		assert.Equal(t, "plain body", string(b))
	}
	assert.Equal(t, int32(1), hits.Load())
}

func TestWebLoader_RetriesServerErrors(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if hits.Add(1) < 3 {
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte("finally"))
	}))
	defer srv.Close()

	b, err := newTestLoader().GetText(context.Background(), loader.NewSource("1", srv.URL, nil))
	require.NoError(t, err)
	assert.Equal(t, "finally", string(b))
	assert.Equal(t, int32(3), hits.Load())
}

func TestWebLoader_ClientErrorIsNotRetried(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	_, err := newTestLoader().GetText(context.Background(), loader.NewSource("1", srv.URL, nil))
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "404"))
	assert.Equal(t, int32(1), hits.Load())
}

type fixedLoader string

func (f fixedLoader) GetText(context.Context, loader.Source) ([]byte, error) {
	return []byte(f), nil
}

func TestWebLoader_FallbackForNonHTML(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		_, _ = w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	l := NewWebLoader(NewWebLoaderParams{Fallback: fixedLoader("converted")})
	b, err := l.GetText(context.Background(), loader.NewSource("1", srv.URL, nil))
	require.NoError(t, err)
	assert.Equal(t, "converted", string(b))
}
