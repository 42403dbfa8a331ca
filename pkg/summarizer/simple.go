package summarizer

import (
	"context"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	maxKeyPoints      = 5
	maxKeyPointLength = 100
	maxSimpleTags     = 5
	keyPointScanDepth = 10
)

var (
	listItem         = regexp.MustCompile(`^[\d一二三四五六七八九十①②③④⑤][.、)]`)
	sentenceBoundary = regexp.MustCompile(`[。！？]`)
	keySentenceWords = []string{"重要", "关键", "核心", "总结", "结论", "因此", "所以", "总之", "首先", "其次"}
)

// Simple summarizes with rules only and is always available.
type Simple struct{}

// NewSimple returns the rule based summarizer.
func NewSimple() *Simple {
	return &Simple{}
}

func (s *Simple) Name() string { return "simple" }

func (s *Simple) Method() Method { return MethodSimple }

func (s *Simple) IsAvailable() bool { return true }

// Summarize takes the leading paragraphs (or key sentences for the bullet
// style), list items as key points and the most frequent words as tags.
func (s *Simple) Summarize(ctx context.Context, text string, opts Options) (Summary, error) {
	opts = opts.normalize()
	paragraphs := splitParagraphs(text)

	var content string
	if opts.Style == StyleBullet {
		content = keySentences(paragraphs, opts.MaxLength)
	} else {
		content = firstParagraphs(paragraphs, opts.MaxLength)
	}

	return Summary{
		Content:      content,
		KeyPoints:    simpleKeyPoints(paragraphs),
		Tags:         Keywords(text, maxSimpleTags),
		Method:       MethodSimple,
		Style:        opts.Style,
		ModelName:    s.Name(),
		InputTokens:  CountTokens(text),
		OutputTokens: CountTokens(content),
		CreatedAt:    time.Now(),
	}, nil
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// firstParagraphs keeps whole paragraphs while they fit maxLength. A first
// paragraph that is already too long is cut and marked with "...".
func firstParagraphs(paragraphs []string, maxLength int) string {
	var result []string
	length := 0
	for _, p := range paragraphs {
		n := utf8.RuneCountInString(p)
		if length+n > maxLength {
			if len(result) == 0 {
				result = append(result, truncateRunes(p, maxLength)+"...")
			}
			break
		}
		result = append(result, p)
		length += n
	}
	return strings.Join(result, "\n\n")
}

func keySentences(paragraphs []string, maxLength int) string {
	var found []string
	for _, p := range paragraphs {
		for _, sentence := range sentenceBoundary.Split(p, -1) {
			sentence = strings.TrimSpace(sentence)
			if sentence == "" {
				continue
			}
			for _, kw := range keySentenceWords {
				if strings.Contains(sentence, kw) {
					found = append(found, sentence+"。")
					break
				}
			}
		}
	}
	if len(found) == 0 {
		return firstParagraphs(paragraphs, maxLength)
	}

	var result []string
	length := 0
	for _, sentence := range found {
		n := utf8.RuneCountInString(sentence)
		if length+n > maxLength {
			break
		}
		result = append(result, sentence)
		length += n
	}
	return strings.Join(result, "\n")
}

// simpleKeyPoints prefers list items among the first paragraphs and falls
// back to their first sentences.
func simpleKeyPoints(paragraphs []string) []string {
	var points []string
	for i, p := range paragraphs {
		if i >= keyPointScanDepth || len(points) >= maxKeyPoints {
			break
		}
		if !listItem.MatchString(p) {
			continue
		}
		point := strings.TrimSpace(listItem.ReplaceAllString(p, ""))
		if point != "" && utf8.RuneCountInString(point) < maxKeyPointLength {
			points = append(points, point)
		}
	}

	if len(points) == 0 {
		for i, p := range paragraphs {
			if i >= maxKeyPoints {
				break
			}
			first := strings.TrimSpace(sentenceBoundary.Split(p, 2)[0])
			if first != "" && utf8.RuneCountInString(first) < maxKeyPointLength {
				points = append(points, first)
			}
		}
	}

	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	return points
}
