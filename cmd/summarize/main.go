package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/config"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/pipeline"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/queue"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/util"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/auto"
	loaders3 "github.com/OFFIS-RIT/kiwi/graphsum/pkg/loader/s3"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger/console"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/summarizer"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

func main() {
	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if errors.Is(err, flag.ErrHelp) {
		return
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(2)
	}

	util.LoadEnv()
	path := opts.ConfigPath
	if path == "" {
		path = util.GetEnv("GRAPHSUM_CONFIG")
	}
	cfg, err := config.Load(path)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}

	logger.Init(console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: opts.Debug || cfg.Log.Debug,
		JSON:  cfg.Log.JSON,
	}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, cfg, os.Stdin, os.Stdout); err != nil {
		logger.Error("Summarization failed", "err", err)
		os.Exit(1)
	}
}

type cliResult struct {
	ID             string                 `json:"id"`
	Summary        summarizer.Summary     `json:"summary"`
	Graph          store.GraphStats       `json:"graph"`
	Mode           string                 `json:"mode,omitempty"`
	KnowledgeGraph *common.KnowledgeGraph `json:"knowledge_graph,omitempty"`
}

func run(ctx context.Context, opts *cliOptions, cfg *config.Config, stdin io.Reader, stdout io.Writer) error {
	id, err := gonanoid.New()
	if err != nil {
		return err
	}

	text, err := readInput(ctx, opts, cfg, stdin)
	if err != nil {
		return err
	}
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("no input text")
	}

	msg := queue.SummarizeMsg{
		ID:        id,
		Text:      text,
		Method:    opts.Method,
		Style:     opts.Style,
		MaxLength: opts.MaxLength,
	}
	switch {
	case opts.Global:
		msg.SearchMode = string(summarizer.SearchGlobal)
	case opts.Local:
		msg.SearchMode = string(summarizer.SearchLocal)
	}
	method, sopts, err := msg.Request()
	if err != nil {
		return err
	}

	pipe, err := pipeline.FromConfig(cfg, nil)
	if err != nil {
		return err
	}
	logger.Debug("[CLI] Summarizing", "id", id, "method", method, "chars", len(text))

	out, err := pipe.Summarize(ctx, method, text, sopts)
	if err != nil {
		return err
	}

	res := cliResult{
		ID:      id,
		Summary: out.Summary,
		Graph:   out.GraphStats(),
		Mode:    string(out.Mode),
	}
	if opts.JSON {
		if opts.Graph {
			res.KnowledgeGraph = out.Graph
		}
		enc := json.NewEncoder(stdout)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		return enc.Encode(res)
	}
	return printText(stdout, res)
}

func readInput(ctx context.Context, opts *cliOptions, cfg *config.Config, stdin io.Reader) (string, error) {
	location := opts.URL
	if location == "" {
		location = opts.File
	}
	if location == "" {
		b, err := io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("failed to read stdin: %w", err)
		}
		return util.CleanText(string(b)), nil
	}
	params := auto.NewRouterParams{}
	if cfg.Storage.Bucket != "" {
		s3Loader, err := loaders3.NewS3Loader(ctx, loaders3.NewS3LoaderParams{
			Bucket:    cfg.Storage.Bucket,
			Endpoint:  cfg.Storage.Endpoint,
			Region:    cfg.Storage.Region,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
		})
		if err != nil {
			return "", err
		}
		params.S3 = s3Loader
	}
	return auto.NewRouter(params).Load(ctx, location)
}

func printText(w io.Writer, res cliResult) error {
	var b strings.Builder
	b.WriteString(res.Summary.Content)
	b.WriteString("\n")
	if len(res.Summary.KeyPoints) > 0 {
		b.WriteString("\nKey points:\n")
		for _, p := range res.Summary.KeyPoints {
			fmt.Fprintf(&b, "  - %s\n", p)
		}
	}
	if len(res.Summary.Tags) > 0 {
		fmt.Fprintf(&b, "\nTags: %s\n", strings.Join(res.Summary.Tags, ", "))
	}
	fmt.Fprintf(&b, "\nmethod=%s", res.Summary.Method)
	if res.Mode != "" {
		fmt.Fprintf(&b, " mode=%s entities=%d relationships=%d communities=%d",
			res.Mode, res.Graph.Entities, res.Graph.Relationships, res.Graph.Communities)
	}
	b.WriteString("\n")
	_, err := io.WriteString(w, b.String())
	return err
}
