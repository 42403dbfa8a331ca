package graph

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/pkoukk/tiktoken-go"
)

func isCJKTerminal(r rune) bool {
	return r == '。' || r == '！' || r == '？'
}

func isLatinTerminal(r rune) bool {
	return r == '.' || r == '!' || r == '?'
}

func isClosing(r rune) bool {
	switch r {
	case '"', '\'', ')', ']', '}', '”', '’', '」', '』', '）', '》':
		return true
	}
	return false
}

// splitIntoSentences cuts text after sentence terminals and newlines. Every
// sentence keeps its terminator and trailing whitespace, so joining the
// result gives back the input.
func splitIntoSentences(text string) []string {
	runes := []rune(text)
	var sentences []string
	start := 0

	cut := func(end int) {
		for end < len(runes) && unicode.IsSpace(runes[end]) {
			end++
		}
		if end > start {
			sentences = append(sentences, string(runes[start:end]))
		}
		start = end
	}

	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case r == '\n':
			cut(i + 1)
			i = start - 1
		case isCJKTerminal(r):
			j := i + 1
			for j < len(runes) && (isCJKTerminal(runes[j]) || isClosing(runes[j])) {
				j++
			}
			cut(j)
			i = start - 1
		case isLatinTerminal(r):
			j := i + 1
			for j < len(runes) && isLatinTerminal(runes[j]) {
				j++
			}
			for j < len(runes) && isClosing(runes[j]) {
				j++
			}
			if j < len(runes) && !unicode.IsSpace(runes[j]) {
				// 3.14, e.g., example.com
				continue
			}
			// "1. item" is a list marker, not a sentence end
			if r == '.' && i > 0 && unicode.IsDigit(runes[i-1]) && isListMarker(runes, i) {
				continue
			}
			cut(j)
			i = start - 1
		}
	}
	if start < len(runes) {
		sentences = append(sentences, string(runes[start:]))
	}

	return sentences
}

// isListMarker reports whether the '.' at dot ends a leading number on its line.
func isListMarker(runes []rune, dot int) bool {
	k := dot - 1
	for k >= 0 && unicode.IsDigit(runes[k]) {
		k--
	}
	for k >= 0 && runes[k] != '\n' {
		if !unicode.IsSpace(runes[k]) {
			return false
		}
		k--
	}
	return true
}

// hardSplit cuts s into pieces of at most size runes.
func hardSplit(s string, size int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > size {
		out = append(out, string(runes[:size]))
		runes = runes[size:]
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}

// splitByTokens cuts s into the longest rune prefixes that stay within maxTokens.
func splitByTokens(s string, enc *tiktoken.Tiktoken, maxTokens int) []string {
	runes := []rune(s)
	var out []string
	for len(runes) > 0 {
		lo, hi := 1, len(runes)
		for lo < hi {
			mid := (lo + hi + 1) / 2
			if len(enc.Encode(string(runes[:mid]), nil, nil)) <= maxTokens {
				lo = mid
			} else {
				hi = mid - 1
			}
		}
		out = append(out, string(runes[:lo]))
		runes = runes[lo:]
	}
	return out
}

// Chunk splits text into sentence aligned units of at most ChunkSize runes
// (and MaxChunkTokens tokens when configured). Concatenating the unit texts
// reproduces text. Blank text yields no units.
func (g *GraphClient) Chunk(text string) ([]common.Unit, error) {
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	var enc *tiktoken.Tiktoken
	if g.maxChunkTokens > 0 {
		var err error
		enc, err = g.encoding()
		if err != nil {
			return nil, fmt.Errorf("failed to load token encoder %s: %w", g.tokenEncoder, err)
		}
	}
	fits := func(s string) bool {
		if utf8.RuneCountInString(s) > g.chunkSize {
			return false
		}
		return enc == nil || len(enc.Encode(s, nil, nil)) <= g.maxChunkTokens
	}

	var pieces []string
	for _, s := range splitIntoSentences(text) {
		if fits(s) {
			pieces = append(pieces, s)
			continue
		}
		for _, p := range hardSplit(s, g.chunkSize) {
			if enc != nil && !fits(p) {
				pieces = append(pieces, splitByTokens(p, enc, g.maxChunkTokens)...)
				continue
			}
			pieces = append(pieces, p)
		}
	}

	var units []common.Unit
	var cur strings.Builder
	start := 0

	flush := func() error {
		if cur.Len() == 0 {
			return nil
		}
		id, err := gonanoid.New()
		if err != nil {
			return err
		}
		chunk := cur.String()
		end := start + utf8.RuneCountInString(chunk)
		units = append(units, common.Unit{
			ID:    id,
			Index: len(units),
			Start: start,
			End:   end,
			Text:  chunk,
		})
		cur.Reset()
		start = end
		return nil
	}

	for _, p := range pieces {
		if cur.Len() > 0 && !fits(cur.String()+p) {
			if err := flush(); err != nil {
				return nil, err
			}
		}
		cur.WriteString(p)
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return units, nil
}
