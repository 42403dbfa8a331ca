package graph

import (
	"context"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
)

const maxRuleEntities = 50

// name characters: anything but whitespace and CJK punctuation
const nameChar = `[^\s,，。！？、：；“”‘’]`

var (
	personPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:由|被|让|使|向|对|跟|同|和|与|给|替|为|把|将|得|的)(` + nameChar + `{2,4})[说道讲表示认为提出]`),
		regexp.MustCompile(`(` + nameChar + `{2,4})(?:先生|女士|教授|博士|老师|同学|院士|专家)`),
	}
	orgPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(` + nameChar + `+(?:公司|集团|大学|学院|研究院|中心|组织|协会|委员会|政府|部门))`),
	}
	techPatterns = []*regexp.Regexp{
		regexp.MustCompile(`([A-Za-z][A-Za-z0-9\-\.]+(?:\s+[A-Za-z][A-Za-z0-9\-\.]+)*)`),
	}

	techStopwords = map[string]struct{}{
		"the": {}, "a": {}, "an": {}, "is": {}, "are": {}, "was": {}, "were": {},
	}
)

// RuleExtractor finds people, organizations and technical terms with
// regular expressions. It produces entities only and is always available.
type RuleExtractor struct{}

// NewRuleExtractor returns a RuleExtractor.
func NewRuleExtractor() *RuleExtractor {
	return &RuleExtractor{}
}

// Name returns "rule-extractor".
func (e *RuleExtractor) Name() string {
	return "rule-extractor"
}

// IsAvailable always returns true.
func (e *RuleExtractor) IsAvailable() bool {
	return true
}

// Extract returns at most 50 entities. Vocabularies are ignored.
func (e *RuleExtractor) Extract(
	_ context.Context,
	text string,
	_ []string,
	_ []string,
) common.ExtractionResult {
	result := common.ExtractionResult{SourceText: text}
	seen := make(map[string]struct{})

	collect := func(patterns []*regexp.Regexp, entType string, minLen int, accept func(string) bool) {
		for _, re := range patterns {
			for _, m := range re.FindAllStringSubmatch(text, -1) {
				if len(result.Entities) >= maxRuleEntities {
					return
				}
				name := strings.TrimSpace(m[1])
				if utf8.RuneCountInString(name) < minLen {
					continue
				}
				if _, ok := seen[name]; ok {
					continue
				}
				if accept != nil && !accept(name) {
					continue
				}
				seen[name] = struct{}{}
				result.Entities = append(result.Entities, common.NewEntity(name, entType, ""))
			}
		}
	}

	collect(personPatterns, "人物", 2, nil)
	collect(orgPatterns, "组织", 3, nil)
	collect(techPatterns, "技术", 2, func(name string) bool {
		_, stop := techStopwords[strings.ToLower(name)]
		return !stop
	})

	return result
}
