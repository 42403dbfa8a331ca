package doc

import (
	"archive/zip"
	"bytes"
	"context"
	"testing"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func buildDocx(t *testing.T, body string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	w, err := zw.Create(documentPart)
	require.NoError(t, err)
	_, err = w.Write([]byte(`<?xml version="1.0" encoding="UTF-8"?>` +
		`<w:document xmlns:w="http://schemas.openxmlformats.org/wordprocessingml/2006/main"><w:body>` +
		body + `</w:body></w:document>`))
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestParseDocx(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "paragraphs",
			body: `<w:p><w:r><w:t>第一段</w:t></w:r></w:p><w:p><w:r><w:t>第二段</w:t></w:r></w:p>`,
			want: "第一段\n第二段\n",
		},
		{
			name: "deleted revision skipped",
			body: `<w:p><w:r><w:t>保留</w:t></w:r><w:del><w:r><w:t>删除</w:t></w:r></w:del></w:p>`,
			want: "保留\n",
		},
		{
			name: "tab and break",
			body: `<w:p><w:r><w:t>a</w:t><w:tab/><w:t>b</w:t><w:br/><w:t>c</w:t></w:r></w:p>`,
			want: "a\tb\nc\n",
		},
		{
			name: "table",
			body: `<w:tbl><w:tr><w:tc><w:p><w:r><w:t>x</w:t></w:r></w:p></w:tc><w:tc><w:p><w:r><w:t>y</w:t></w:r></w:p></w:tc></w:tr></w:tbl>`,
			want: "x\n\ty\n\n\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDocx(buildDocx(t, tt.body))
			require.NoError(t, err)
			assert.Equal(t, tt.want, string(got))
		})
	}
}

func TestParseDocx_Invalid(t *testing.T) {
	_, err := ParseDocx([]byte("not a zip"))
	assert.Error(t, err)

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	_, err = zw.Create("word/other.xml")
	require.NoError(t, err)
	require.NoError(t, zw.Close())
	_, err = ParseDocx(buf.Bytes())
	assert.ErrorIs(t, err, ErrNoDocument)
}

type bytesLoader []byte

func (b bytesLoader) GetText(context.Context, loader.Source) ([]byte, error) {
	return b, nil
}

func TestDocxLoader(t *testing.T) {
	raw := bytesLoader(buildDocx(t, `<w:p><w:r><w:t>报告正文</w:t></w:r></w:p>`))
	l := NewDocxLoader(raw)
	text, err := loader.NewSource("1", "report.docx", l).Text(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "报告正文", text)

	b, err := TextFromReader(bytes.NewReader(raw))
	require.NoError(t, err)
	assert.Equal(t, "报告正文\n", string(b))
}
