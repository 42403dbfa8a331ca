package graph

import (
	"reflect"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

func TestSplitIntoSentences(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{
			name: "empty input",
			text: "",
			want: []string(nil),
		},
		{
			name: "single sentence",
			text: "Hello world.",
			want: []string{"Hello world."},
		},
		{
			name: "multiple sentences",
			text: "Hello world. This is a test! How are you?",
			want: []string{
				"Hello world. ",
				"This is a test! ",
				"How are you?",
			},
		},
		{
			name: "chinese terminals",
			text: "张三是工程师。李四是设计师！他们合作吗？",
			want: []string{
				"张三是工程师。",
				"李四是设计师！",
				"他们合作吗？",
			},
		},
		{
			name: "closing quote stays with sentence",
			text: "他说：“好。”然后走了。",
			want: []string{
				"他说：“好。”",
				"然后走了。",
			},
		},
		{
			name: "newlines end sentences",
			text: "第一行\n第二行",
			want: []string{"第一行\n", "第二行"},
		},
		{
			name: "blank lines attach to previous sentence",
			text: "First.\n\nSecond.",
			want: []string{"First.\n\n", "Second."},
		},
		{
			name: "decimal point is not a terminal",
			text: "Pi is 3.14 today.",
			want: []string{"Pi is 3.14 today."},
		},
		{
			name: "numeric listing stays in same sentence",
			text: "Points:\n1. First item\n2. Second.",
			want: []string{
				"Points:\n",
				"1. First item\n",
				"2. Second.",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := splitIntoSentences(tt.text)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("splitIntoSentences() = %#v, want %#v", got, tt.want)
			}
			if joined := strings.Join(got, ""); joined != tt.text {
				t.Errorf("joined sentences = %q, want %q", joined, tt.text)
			}
		})
	}
}

func TestChunk(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		want      []string
	}{
		{
			name:      "empty text",
			text:      "",
			chunkSize: 10,
			want:      nil,
		},
		{
			name:      "blank text",
			text:      "  \n ",
			chunkSize: 10,
			want:      nil,
		},
		{
			name:      "one sentence per chunk",
			text:      "张三是工程师。李四是设计师！他们合作吗？",
			chunkSize: 10,
			want:      []string{"张三是工程师。", "李四是设计师！", "他们合作吗？"},
		},
		{
			name:      "sentences accumulate up to the budget",
			text:      "张三是工程师。李四是设计师！他们合作吗？",
			chunkSize: 14,
			want:      []string{"张三是工程师。李四是设计师！", "他们合作吗？"},
		},
		{
			name:      "oversized sentence is hard split",
			text:      "一二三四五六七八九十",
			chunkSize: 4,
			want:      []string{"一二三四", "五六七八", "九十"},
		},
		{
			name:      "whole text fits",
			text:      "Short text. Another one.",
			chunkSize: 2000,
			want:      []string{"Short text. Another one."},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := NewGraphClient(NewGraphClientParams{ChunkSize: tt.chunkSize})
			units, err := client.Chunk(tt.text)
			if err != nil {
				t.Fatalf("Chunk() error = %v", err)
			}

			var got []string
			for i, u := range units {
				if u.Index != i {
					t.Errorf("unit %d has index %d", i, u.Index)
				}
				if u.ID == "" {
					t.Errorf("unit %d has no id", i)
				}
				if n := utf8.RuneCountInString(u.Text); n > tt.chunkSize {
					t.Errorf("unit %d has %d runes, budget %d", i, n, tt.chunkSize)
				}
				if i > 0 && u.Start != units[i-1].End {
					t.Errorf("unit %d starts at %d, previous ends at %d", i, u.Start, units[i-1].End)
				}
				got = append(got, u.Text)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Chunk() = %#v, want %#v", got, tt.want)
			}
			if len(units) > 0 && strings.Join(got, "") != tt.text {
				t.Errorf("chunks do not reconstruct the input")
			}
		})
	}
}

func TestChunkTokenCap(t *testing.T) {
	enc, err := tiktoken.GetEncoding("o200k_base")
	if err != nil {
		t.Skipf("encoding not available: %v", err)
	}

	text := strings.Repeat("The quick brown fox jumps over the lazy dog. ", 40)
	client := NewGraphClient(NewGraphClientParams{ChunkSize: 100000, MaxChunkTokens: 50})
	units, err := client.Chunk(text)
	if err != nil {
		t.Fatalf("Chunk() error = %v", err)
	}
	if len(units) < 2 {
		t.Fatalf("expected the token cap to produce several units, got %d", len(units))
	}

	var b strings.Builder
	for _, u := range units {
		if n := len(enc.Encode(u.Text, nil, nil)); n > 50 {
			t.Errorf("unit %d has %d tokens, cap 50", u.Index, n)
		}
		b.WriteString(u.Text)
	}
	if b.String() != text {
		t.Error("chunks do not reconstruct the input")
	}
}
