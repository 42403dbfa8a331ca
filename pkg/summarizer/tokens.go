package summarizer

import (
	"fmt"
	"sync"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

var (
	encMu sync.RWMutex
	enc   *tiktoken.Tiktoken
)

// SetTokenEncoding loads the named tiktoken encoding for Summary token
// counts. Until it succeeds, counts fall back to the rune count.
func SetTokenEncoding(name string) error {
	e, err := tiktoken.GetEncoding(name)
	if err != nil {
		return fmt.Errorf("failed to load token encoding %s: %w", name, err)
	}
	encMu.Lock()
	enc = e
	encMu.Unlock()
	return nil
}

// CountTokens returns the number of tokens in text.
func CountTokens(text string) int {
	if text == "" {
		return 0
	}
	encMu.RLock()
	e := enc
	encMu.RUnlock()
	if e == nil {
		return utf8.RuneCountInString(text)
	}
	return len(e.Encode(text, nil, nil))
}
