package summarizer

import (
	_ "embed"
	"os"
	"regexp"
	"sort"
	"strings"
	"sync"
	"unicode"
	"unicode/utf8"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"

	"github.com/huichen/sego"
)

//go:embed dictionary/dictionary.txt
var dictionaryData []byte

var (
	segOnce        sync.Once
	segmenter      *sego.Segmenter
	segErr         error
	dictionaryLock sync.Mutex
	dictionaryPath string
)

var cjkRun = regexp.MustCompile(`\p{Han}+`)

var tagStopwords = map[string]struct{}{
	"的": {}, "是": {}, "在": {}, "有": {}, "和": {}, "与": {}, "了": {},
	"等": {}, "也": {}, "都": {}, "而": {}, "及": {}, "或": {},
	"我们": {}, "他们": {}, "这个": {}, "那个": {}, "一个": {}, "可以": {},
	"已经": {}, "没有": {}, "因为": {}, "所以": {}, "但是": {}, "而且": {},
	"如果": {}, "以及": {}, "通过": {}, "进行": {}, "同时": {}, "其中": {},
	"the": {}, "and": {}, "for": {}, "with": {}, "that": {}, "this": {},
	"are": {}, "was": {}, "were": {}, "from": {},
}

// SetDictionary points the segmenter at a sego dictionary file. It only
// has an effect before the first segmentation; a missing file keeps the
// embedded dictionary.
func SetDictionary(path string) {
	dictionaryLock.Lock()
	dictionaryPath = path
	dictionaryLock.Unlock()
}

func getSegmenter() (*sego.Segmenter, error) {
	segOnce.Do(func() {
		dictionaryLock.Lock()
		path := dictionaryPath
		dictionaryLock.Unlock()

		if path != "" {
			if _, err := os.Stat(path); err == nil {
				segmenter = &sego.Segmenter{}
				segmenter.LoadDictionary(path)
				return
			}
			logger.Warn("[Summarizer] Dictionary not found, using embedded one", "path", path)
		}

		tmpFile, err := os.CreateTemp("", "graphsum-dict-*.txt")
		if err != nil {
			segErr = err
			return
		}
		defer os.Remove(tmpFile.Name())

		if _, err := tmpFile.Write(dictionaryData); err != nil {
			tmpFile.Close()
			segErr = err
			return
		}
		if err := tmpFile.Close(); err != nil {
			segErr = err
			return
		}

		segmenter = &sego.Segmenter{}
		segmenter.LoadDictionary(tmpFile.Name())
	})
	return segmenter, segErr
}

// words splits text into words with sego, or into CJK runs of at most four
// runes when the segmenter could not be loaded.
func words(text string) []string {
	seg, err := getSegmenter()
	if err != nil {
		logger.Debug("[Summarizer] Segmenter unavailable", "err", err)
		return cjkWords(text)
	}

	segments := seg.Segment([]byte(text))
	out := make([]string, 0, len(segments))
	for _, s := range segments {
		w := strings.TrimSpace(s.Token().Text())
		if w != "" {
			out = append(out, w)
		}
	}
	return out
}

func cjkWords(text string) []string {
	var out []string
	for _, run := range cjkRun.FindAllString(text, -1) {
		r := []rune(run)
		for len(r) >= 2 {
			n := min(4, len(r))
			out = append(out, string(r[:n]))
			r = r[n:]
		}
	}
	return out
}

func isKeyword(w string) bool {
	if utf8.RuneCountInString(w) < 2 {
		return false
	}
	if _, stop := tagStopwords[strings.ToLower(w)]; stop {
		return false
	}
	for _, r := range w {
		if unicode.Is(unicode.Han, r) || unicode.IsLetter(r) {
			return true
		}
	}
	return false
}

// Keywords returns the n most frequent words of text, ties broken by
// first appearance.
func Keywords(text string, n int) []string {
	if n <= 0 {
		return nil
	}

	counts := make(map[string]int)
	var order []string
	for _, w := range words(text) {
		if !isKeyword(w) {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}

	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > n {
		order = order[:n]
	}
	return order
}
