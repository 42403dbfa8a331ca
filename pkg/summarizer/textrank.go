package summarizer

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	textRankDamping       = 0.85
	textRankMaxIterations = 100
	textRankThreshold     = 1e-4
	minSentenceRunes      = 5
	keyPointRunes         = 50
)

var textRankBoundary = regexp.MustCompile(`[。！？；\n]+`)

// TextRank is an extractive summarizer that ranks sentences by TF-IDF
// cosine similarity with a PageRank style iteration. Always available.
type TextRank struct{}

// NewTextRank returns the TextRank summarizer.
func NewTextRank() *TextRank {
	return &TextRank{}
}

func (t *TextRank) Name() string { return "textrank" }

func (t *TextRank) Method() Method { return MethodTextRank }

func (t *TextRank) IsAvailable() bool { return true }

func (t *TextRank) Summarize(ctx context.Context, text string, opts Options) (Summary, error) {
	opts = opts.normalize()
	summary := Summary{
		Method:      MethodTextRank,
		Style:       opts.Style,
		ModelName:   t.Name(),
		InputTokens: CountTokens(text),
		CreatedAt:   time.Now(),
	}

	sentences := rankSentences(text)
	switch {
	case len(sentences) == 0:
		return summary, nil
	case len(sentences) <= 3:
		summary.Content = strings.Join(sentences, "\n")
		summary.KeyPoints = sentences
	default:
		tokens := make([][]string, len(sentences))
		for i, s := range sentences {
			tokens[i] = sentenceTerms(s)
		}
		scores := textRankScores(similarityMatrix(tokens))
		summary.Content, summary.KeyPoints = selectSentences(sentences, scores, opts)
	}

	summary.Tags = Keywords(text, maxSimpleTags)
	summary.OutputTokens = CountTokens(summary.Content)
	return summary, nil
}

func rankSentences(text string) []string {
	var out []string
	for _, s := range textRankBoundary.Split(text, -1) {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) >= minSentenceRunes {
			out = append(out, s)
		}
	}
	return out
}

func sentenceTerms(sentence string) []string {
	var out []string
	for _, w := range words(sentence) {
		if isKeyword(w) {
			out = append(out, strings.ToLower(w))
		}
	}
	return out
}

// similarityMatrix returns the symmetric TF-IDF cosine similarity of all
// sentence pairs, with a smoothed idf of ln((n+1)/(df+1))+1.
func similarityMatrix(tokens [][]string) [][]float64 {
	n := len(tokens)
	df := make(map[string]int)
	for _, ts := range tokens {
		seen := make(map[string]struct{}, len(ts))
		for _, t := range ts {
			if _, ok := seen[t]; !ok {
				seen[t] = struct{}{}
				df[t]++
			}
		}
	}

	vectors := make([]map[string]float64, n)
	norms := make([]float64, n)
	for i, ts := range tokens {
		v := make(map[string]float64, len(ts))
		for _, t := range ts {
			v[t]++
		}
		var sq float64
		for t, tf := range v {
			idf := math.Log(float64(n+1)/float64(df[t]+1)) + 1
			w := tf / float64(len(ts)) * idf
			v[t] = w
			sq += w * w
		}
		vectors[i] = v
		norms[i] = math.Sqrt(sq)
	}

	m := make([][]float64, n)
	for i := range m {
		m[i] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if norms[i] == 0 || norms[j] == 0 {
				continue
			}
			var dot float64
			for t, w := range vectors[i] {
				dot += w * vectors[j][t]
			}
			sim := dot / (norms[i] * norms[j])
			m[i][j], m[j][i] = sim, sim
		}
	}
	return m
}

func textRankScores(m [][]float64) []float64 {
	n := len(m)
	if n == 0 {
		return nil
	}
	scores := make([]float64, n)
	for i := range scores {
		scores[i] = 1 / float64(n)
	}
	outSum := make([]float64, n)
	for i, row := range m {
		for _, v := range row {
			outSum[i] += v
		}
		if outSum[i] == 0 {
			outSum[i] = 1
		}
	}

	next := make([]float64, n)
	for range textRankMaxIterations {
		var diff float64
		for i := 0; i < n; i++ {
			var sum float64
			for j := 0; j < n; j++ {
				if i != j && m[j][i] > 0 {
					sum += m[j][i] * scores[j] / outSum[j]
				}
			}
			next[i] = (1-textRankDamping)/float64(n) + textRankDamping*sum
			diff += math.Abs(next[i] - scores[i])
		}
		scores, next = next, scores
		if diff < textRankThreshold {
			break
		}
	}
	return scores
}

func sentenceRatio(style Style) float64 {
	switch style {
	case StyleConcise:
		return 0.2
	case StyleDetailed:
		return 0.4
	default:
		return 0.3
	}
}

// selectSentences picks the best scored sentences within the length budget
// and returns them in document order.
func selectSentences(sentences []string, scores []float64, opts Options) (string, []string) {
	order := make([]int, len(sentences))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return scores[order[a]] > scores[order[b]]
	})

	limit := max(3, int(float64(len(sentences))*sentenceRatio(opts.Style)))
	type picked struct {
		idx  int
		text string
	}
	var selected []picked
	var points []string
	length := 0
	for _, idx := range order {
		if len(selected) >= limit {
			break
		}
		s := sentences[idx]
		n := utf8.RuneCountInString(s)
		if length+n > opts.MaxLength {
			if len(selected) == 0 {
				selected = append(selected, picked{idx, truncateRunes(s, opts.MaxLength) + "..."})
				points = append(points, truncateRunes(s, keyPointRunes)+"...")
			}
			break
		}
		selected = append(selected, picked{idx, s})
		if n <= keyPointRunes {
			points = append(points, s)
		} else {
			points = append(points, truncateRunes(s, keyPointRunes-3)+"...")
		}
		length += n + 1
	}
	sort.Slice(selected, func(a, b int) bool { return selected[a].idx < selected[b].idx })

	parts := make([]string, len(selected))
	for i, p := range selected {
		parts[i] = p.text
	}
	var content string
	if opts.Style == StyleBullet {
		for i := range parts {
			parts[i] = "• " + parts[i]
		}
		content = strings.Join(parts, "\n")
	} else {
		content = strings.Join(parts, "。")
		if content != "" && !strings.HasSuffix(content, "。") {
			content += "。"
		}
	}

	if len(points) > maxKeyPoints {
		points = points[:maxKeyPoints]
	}
	return content, points
}
