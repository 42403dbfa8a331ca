// Package pipeline wires the configured summarizers together and is the
// single entry point used by the server, the worker and the CLI.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/config"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/community"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/graph"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/summarizer"
)

// ErrUnsupportedMethod is returned for methods without an implementation.
var ErrUnsupportedMethod = errors.New("summary method not supported")

// Output is the outcome of one pipeline call. Graph and Mode are set for
// the graphrag method only.
type Output struct {
	Summary summarizer.Summary     `json:"summary"`
	Graph   *common.KnowledgeGraph `json:"-"`
	Mode    summarizer.Mode        `json:"mode,omitempty"`
}

// GraphStats summarizes the size of the output graph.
func (o Output) GraphStats() store.GraphStats {
	if o.Graph == nil {
		return store.GraphStats{}
	}
	return store.GraphStats{
		Entities:      o.Graph.EntityCount(),
		Relationships: o.Graph.RelationshipCount(),
		Communities:   o.Graph.CommunityCount(),
	}
}

// Pipeline dispatches requests to a summarization strategy. Every strategy
// falls back to the rule based summarizer.
type Pipeline struct {
	client   ai.GraphAIClient
	simple   *summarizer.Simple
	textrank *summarizer.TextRank
	llm      *summarizer.LLM
	graphrag *summarizer.GraphRAG
	method   summarizer.Method
	defaults summarizer.Options
	stats    store.JobStore
}

// NewPipelineParams configures a Pipeline.
//
// Client may be nil, in which case LLM methods fall back to rules and
// graphrag runs on rule extraction with statistical synthesis. Stats, when
// set, receives processing times.
type NewPipelineParams struct {
	Client        ai.GraphAIClient
	Method        summarizer.Method
	Defaults      summarizer.Options
	Graph         graph.NewGraphClientParams
	Detector      *community.Detector
	DetectOptions *community.DetectOptions
	Global        bool
	Level         int
	Timeout       time.Duration
	Prompts       config.PromptConfig
	Stats         store.JobStore
}

// New builds a pipeline.
func New(params NewPipelineParams) (*Pipeline, error) {
	p := &Pipeline{
		client:   params.Client,
		simple:   summarizer.NewSimple(),
		textrank: summarizer.NewTextRank(),
		method:   params.Method,
		defaults: params.Defaults,
		stats:    params.Stats,
	}
	if p.method == "" {
		p.method = summarizer.MethodGraphRAG
	}

	var base summarizer.Summarizer = p.simple
	if params.Client != nil {
		p.llm = summarizer.NewLLM(params.Client, summarizer.NewLLMParams{
			Prompt:  params.Prompts.Summary,
			Timeout: params.Timeout,
		})
		base = p.llm
	}

	extractor := graph.NewLLMExtractor(params.Client, graph.NewLLMExtractorParams{
		Prompt:  params.Prompts.Extract,
		Timeout: params.Timeout,
	})
	communities := community.NewSummarizer(params.Client, community.NewSummarizerParams{
		Prompt:  params.Prompts.CommunitySummary,
		Timeout: params.Timeout,
	})

	rag, err := summarizer.NewGraphRAG(summarizer.NewGraphRAGParams{
		Base:            base,
		Client:          params.Client,
		Graph:           graph.NewGraphClient(params.Graph),
		Extractor:       extractor,
		Detector:        params.Detector,
		DetectOptions:   params.DetectOptions,
		Communities:     communities,
		UseGlobalSearch: params.Global,
		CommunityLevel:  params.Level,
		GenerateTimeout: params.Timeout,
		LocalPrompt:     params.Prompts.LocalSearch,
		GlobalPrompt:    params.Prompts.GlobalSearch,
	})
	if err != nil {
		return nil, err
	}
	p.graphrag = rag
	return p, nil
}

// FromConfig builds the AI client and a pipeline from cfg.
func FromConfig(cfg *config.Config, stats store.JobStore) (*Pipeline, error) {
	if err := config.ApplyGlobals(cfg); err != nil {
		return nil, err
	}
	client, err := config.NewAIClient(cfg)
	if err != nil {
		return nil, err
	}
	opts := cfg.DetectOptions()
	return New(NewPipelineParams{
		Client:   client,
		Method:   cfg.Method(),
		Defaults: cfg.Options(),
		Graph: graph.NewGraphClientParams{
			TokenEncoder:   cfg.Pipeline.TokenEncoding,
			ChunkSize:      cfg.Pipeline.ChunkSize,
			MaxChunkTokens: cfg.Pipeline.MaxChunkTokens,
		},
		Detector:      config.NewDetector(cfg),
		DetectOptions: &opts,
		Global:        cfg.Pipeline.UseGlobalSearch,
		Level:         cfg.Pipeline.CommunityLevel,
		Timeout:       time.Duration(cfg.Pipeline.GenerateTimeout),
		Prompts:       cfg.Prompts,
		Stats:         stats,
	})
}

// Client returns the AI client, nil when none is configured.
func (p *Pipeline) Client() ai.GraphAIClient { return p.client }

// DefaultMethod returns the method used for requests without one.
func (p *Pipeline) DefaultMethod() summarizer.Method { return p.method }

// Options fills unset fields of opts from the configured defaults.
func (p *Pipeline) Options(opts summarizer.Options) summarizer.Options {
	if opts.Style == "" {
		opts.Style = p.defaults.Style
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = p.defaults.MaxLength
	}
	if opts.SearchMode == "" {
		opts.SearchMode = p.defaults.SearchMode
	}
	return opts
}

// Strategy returns the summarizer for method, wrapped with the rule based
// fallback.
func (p *Pipeline) Strategy(method summarizer.Method) (summarizer.Summarizer, error) {
	switch method {
	case summarizer.MethodSimple:
		return p.simple, nil
	case summarizer.MethodTextRank:
		return summarizer.WithFallback(p.textrank, p.simple), nil
	case summarizer.MethodGraphRAG:
		return summarizer.WithFallback(p.graphrag, p.simple), nil
	case summarizer.MethodOpenAI, summarizer.MethodDeepSeek, summarizer.MethodZhipu,
		summarizer.MethodOllama, summarizer.MethodAnthropic:
		if p.llm == nil {
			return p.simple, nil
		}
		return summarizer.WithFallback(p.llm, p.simple), nil
	}
	return nil, fmt.Errorf("%w: %s", ErrUnsupportedMethod, method)
}

// Summarize runs method (or the default) over text.
func (p *Pipeline) Summarize(ctx context.Context, method summarizer.Method, text string, opts summarizer.Options) (Output, error) {
	if method == "" {
		method = p.method
	}
	opts = p.Options(opts)
	start := time.Now()

	var (
		out Output
		err error
	)
	if method == summarizer.MethodGraphRAG {
		out, err = p.runGraphRAG(ctx, text, opts)
	} else {
		var s summarizer.Summarizer
		s, err = p.Strategy(method)
		if err != nil {
			return Output{}, err
		}
		out.Summary, err = s.Summarize(ctx, text, opts)
	}
	if err != nil {
		return Output{}, err
	}

	p.record(ctx, out.Summary.InputTokens, time.Since(start))
	return out, nil
}

func (p *Pipeline) runGraphRAG(ctx context.Context, text string, opts summarizer.Options) (Output, error) {
	res, err := p.graphrag.Run(ctx, text, opts)
	if err == nil {
		return Output{Summary: res.Summary, Graph: res.Graph, Mode: res.Mode}, nil
	}
	logger.Warn("[Pipeline] GraphRAG failed, using rules", "err", err)
	s, err := p.simple.Summarize(ctx, text, opts)
	if err != nil {
		return Output{}, err
	}
	return Output{Summary: s, Graph: common.NewKnowledgeGraph(), Mode: summarizer.ModeFallback}, nil
}

func (p *Pipeline) record(ctx context.Context, tokens int, d time.Duration) {
	if p.stats == nil || tokens <= 0 {
		return
	}
	if err := p.stats.AddProcessingTime(ctx, tokens, d, store.StatSummarize); err != nil {
		logger.Warn("[Pipeline] Failed to record processing time", "err", err)
	}
}

// Estimate predicts how long summarizing text will take from recorded
// history. It returns zero without history or stats store.
func (p *Pipeline) Estimate(ctx context.Context, text string) time.Duration {
	if p.stats == nil {
		return 0
	}
	d, err := p.stats.PredictProcessingTime(ctx, summarizer.CountTokens(text), store.StatSummarize)
	if err != nil {
		logger.Warn("[Pipeline] Failed to predict processing time", "err", err)
		return 0
	}
	return d
}
