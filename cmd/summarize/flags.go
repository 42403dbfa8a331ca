package main

import (
	"flag"
	"fmt"
	"io"
)

// cliOptions holds command-line configuration
type cliOptions struct {
	ConfigPath string
	URL        string
	File       string
	Method     string
	Style      string
	MaxLength  int
	Global     bool
	Local      bool
	JSON       bool
	Graph      bool
	Debug      bool
}

func parseFlags(args []string, stderr io.Writer) (*cliOptions, error) {
	opts := &cliOptions{}
	fs := flag.NewFlagSet("summarize", flag.ContinueOnError)
	fs.SetOutput(stderr)

	fs.StringVar(&opts.ConfigPath, "config", "", "Path to a TOML configuration file (env: GRAPHSUM_CONFIG)")
	fs.StringVar(&opts.URL, "url", "", "Summarize the document at this URL or s3:// key")
	fs.StringVar(&opts.File, "file", "", "Summarize this local file (.txt, .md or .docx)")
	fs.StringVar(&opts.Method, "method", "", "Summary method: simple, textrank, openai, deepseek, zhipu, ollama, anthropic, graphrag")
	fs.StringVar(&opts.Style, "style", "", "Summary style: concise, detailed, academic, business, bullet")
	fs.IntVar(&opts.MaxLength, "max-length", 0, "Maximum summary length in characters")
	fs.BoolVar(&opts.Global, "global", false, "Force Global Search over community summaries")
	fs.BoolVar(&opts.Local, "local", false, "Force Local Search over entities and relationships")
	fs.BoolVar(&opts.JSON, "json", false, "Print the result as JSON")
	fs.BoolVar(&opts.Graph, "graph", false, "Include the knowledge graph in JSON output")
	fs.BoolVar(&opts.Debug, "debug", false, "Enable debug logging")

	fs.Usage = func() {
		_, _ = fmt.Fprintf(stderr, `summarize - knowledge graph augmented summaries

Usage:
  summarize [flags] [-url URL | -file PATH]

Without -url or -file the text is read from stdin.

Flags:
`)
		fs.PrintDefaults()
	}

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.URL != "" && opts.File != "" {
		return nil, fmt.Errorf("use either -url or -file, not both")
	}
	if opts.Global && opts.Local {
		return nil, fmt.Errorf("use either -global or -local, not both")
	}
	if opts.MaxLength < 0 {
		return nil, fmt.Errorf("invalid max length: %d", opts.MaxLength)
	}
	return opts, nil
}
