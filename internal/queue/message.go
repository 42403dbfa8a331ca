package queue

import (
	"encoding/json"
	"fmt"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/summarizer"
)

// SummarizeMsg requests a summary of Text, or of the document at URL when
// Text is empty.
type SummarizeMsg struct {
	ID         string `json:"id"`
	Text       string `json:"text,omitempty"`
	URL        string `json:"url,omitempty"`
	Method     string `json:"method,omitempty"`
	Style      string `json:"style,omitempty"`
	MaxLength  int    `json:"max_length,omitempty"`
	SearchMode string `json:"search_mode,omitempty"`
}

// ResultMsg is published for every finished job.
type ResultMsg struct {
	ID         string              `json:"id"`
	Status     store.JobStatus     `json:"status"`
	Summary    *summarizer.Summary `json:"summary,omitempty"`
	Graph      store.GraphStats    `json:"graph"`
	Mode       string              `json:"mode,omitempty"`
	ExportKey  string              `json:"export_key,omitempty"`
	Error      string              `json:"error,omitempty"`
	DurationMs int64               `json:"duration_ms"`
}

// DecodeSummarizeMsg parses and checks a request body.
func DecodeSummarizeMsg(body []byte) (SummarizeMsg, error) {
	var msg SummarizeMsg
	if err := json.Unmarshal(body, &msg); err != nil {
		return msg, fmt.Errorf("invalid message: %w", err)
	}
	if msg.ID == "" {
		return msg, fmt.Errorf("invalid message: missing id")
	}
	if msg.Text == "" && msg.URL == "" {
		return msg, fmt.Errorf("invalid message %s: text or url required", msg.ID)
	}
	return msg, nil
}

// Request converts the message into a method and options.
func (m SummarizeMsg) Request() (summarizer.Method, summarizer.Options, error) {
	var method summarizer.Method
	if m.Method != "" {
		var ok bool
		if method, ok = summarizer.ParseMethod(m.Method); !ok {
			return "", summarizer.Options{}, fmt.Errorf("unknown method %q", m.Method)
		}
	}
	var style summarizer.Style
	if m.Style != "" {
		var ok bool
		if style, ok = summarizer.ParseStyle(m.Style); !ok {
			return "", summarizer.Options{}, fmt.Errorf("unknown style %q", m.Style)
		}
	}
	mode := summarizer.SearchMode(m.SearchMode)
	switch mode {
	case summarizer.SearchDefault, summarizer.SearchLocal, summarizer.SearchGlobal:
	default:
		return "", summarizer.Options{}, fmt.Errorf("unknown search mode %q", m.SearchMode)
	}
	return method, summarizer.Options{Style: style, MaxLength: m.MaxLength, SearchMode: mode}, nil
}

// Source names where the text comes from.
func (m SummarizeMsg) Source() string {
	if m.URL != "" {
		return m.URL
	}
	return "text"
}
