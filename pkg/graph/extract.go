package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
)

const (
	defaultMaxTextLength    = 4000
	syntheticEntityType     = "概念"
	defaultRelationshipType = "相关"
)

// Extractor turns one chunk of text into entities and relationships.
// Implementations never fail: problems degrade to an empty result.
type Extractor interface {
	Name() string
	IsAvailable() bool
	Extract(ctx context.Context, text string, entityTypes, relationshipTypes []string) common.ExtractionResult
}

type extractEntity struct {
	Name        string `json:"name" jsonschema_description:"Name of the entity"`
	Type        string `json:"type" jsonschema_description:"One of the provided entity types"`
	Description string `json:"description" jsonschema_description:"Short description of the entity"`
}

type extractRelationship struct {
	Source      string `json:"source" jsonschema_description:"Name of the source entity"`
	Target      string `json:"target" jsonschema_description:"Name of the target entity"`
	Type        string `json:"type" jsonschema_description:"One of the provided relationship types"`
	Description string `json:"description" jsonschema_description:"Short description of the relationship"`
}

type extractResponse struct {
	Entities      []extractEntity       `json:"entities" jsonschema_description:"Entities identified in the text"`
	Relationships []extractRelationship `json:"relationships" jsonschema_description:"Relationships identified in the text"`
}

// LLMExtractor extracts entities and relationships with a text generation
// client. While the client is unavailable it delegates to its fallback.
type LLMExtractor struct {
	client            ai.GraphAIClient
	fallback          Extractor
	prompt            string
	maxTextLength     int
	entityTypes       []string
	relationshipTypes []string
	timeout           time.Duration
}

// NewLLMExtractorParams configures an LLMExtractor.
//
// Prompt overrides ai.ExtractPrompt and must keep its three %s verbs.
// Fallback defaults to a RuleExtractor.
type NewLLMExtractorParams struct {
	Prompt            string
	MaxTextLength     int
	EntityTypes       []string
	RelationshipTypes []string
	Timeout           time.Duration
	Fallback          Extractor
}

// NewLLMExtractor returns an extractor backed by client.
func NewLLMExtractor(client ai.GraphAIClient, params NewLLMExtractorParams) *LLMExtractor {
	e := &LLMExtractor{
		client:            client,
		fallback:          params.Fallback,
		prompt:            params.Prompt,
		maxTextLength:     params.MaxTextLength,
		entityTypes:       params.EntityTypes,
		relationshipTypes: params.RelationshipTypes,
		timeout:           params.Timeout,
	}
	if e.fallback == nil {
		e.fallback = NewRuleExtractor()
	}
	if e.prompt == "" {
		e.prompt = ai.ExtractPrompt
	}
	if e.maxTextLength <= 0 {
		e.maxTextLength = defaultMaxTextLength
	}
	if len(e.entityTypes) == 0 {
		e.entityTypes = DefaultEntityTypes
	}
	if len(e.relationshipTypes) == 0 {
		e.relationshipTypes = DefaultRelationshipTypes
	}
	return e
}

// Name returns "llm-extractor-" followed by the client name.
func (e *LLMExtractor) Name() string {
	if e.client == nil {
		return "llm-extractor"
	}
	return "llm-extractor-" + e.client.Name()
}

// IsAvailable reports whether the underlying client can be used.
func (e *LLMExtractor) IsAvailable() bool {
	return ai.Available(e.client)
}

// Extract asks the client for a JSON object of entities and relationships,
// using structured output first and parsing a plain completion when the
// backend rejects it. Nil vocabularies select the configured defaults.
func (e *LLMExtractor) Extract(
	ctx context.Context,
	text string,
	entityTypes []string,
	relationshipTypes []string,
) common.ExtractionResult {
	if strings.TrimSpace(text) == "" {
		return common.ExtractionResult{SourceText: text}
	}
	if !e.IsAvailable() {
		logger.Debug("[Extract] Client unavailable, using fallback", "fallback", e.fallback.Name())
		return e.fallback.Extract(ctx, text, entityTypes, relationshipTypes)
	}

	if len(entityTypes) == 0 {
		entityTypes = e.entityTypes
	}
	if len(relationshipTypes) == 0 {
		relationshipTypes = e.relationshipTypes
	}

	if runes := []rune(text); len(runes) > e.maxTextLength {
		text = string(runes[:e.maxTextLength])
		logger.Debug("[Extract] Truncated input", "runes", e.maxTextLength)
	}

	prompt := fmt.Sprintf(
		e.prompt,
		strings.Join(entityTypes, ", "),
		strings.Join(relationshipTypes, ", "),
		text,
	)

	callCtx, cancel := ai.TimeoutContext(ctx, e.timeout)
	defer cancel()

	var data extractResponse
	err := e.client.GenerateCompletionWithFormat(
		callCtx,
		"extract_entities_and_relationships",
		"Extract entities and relationships from the provided text.",
		prompt,
		&data,
		ai.WithTemperature(0.1),
	)
	if err == nil {
		return toExtractionResult(data, text)
	}
	if callCtx.Err() != nil || errors.Is(err, ai.ErrUnavailable) {
		logger.Error("[Extract] Generation failed", "client", e.client.Name(), "err", err)
		return common.ExtractionResult{SourceText: text}
	}

	logger.Debug("[Extract] Structured output failed, parsing plain completion", "client", e.client.Name(), "err", err)
	response, err := e.client.GenerateCompletion(callCtx, prompt, ai.WithTemperature(0.1))
	if err != nil {
		logger.Error("[Extract] Generation failed", "client", e.client.Name(), "err", err)
		return common.ExtractionResult{SourceText: text}
	}

	return parseExtractResponse(response, text)
}

// parseExtractResponse decodes the first JSON object in response. Malformed
// or missing data gives an empty result.
func parseExtractResponse(response string, source string) common.ExtractionResult {
	var data extractResponse
	if err := ai.ParseJSONResponse(response, &data); err != nil {
		logger.Warn("[Extract] Could not parse extraction response", "err", err)
		return common.ExtractionResult{SourceText: source}
	}
	return toExtractionResult(data, source)
}

// toExtractionResult turns a decoded response into entities and
// relationships. Relationship endpoints without an entity become concepts.
func toExtractionResult(data extractResponse, source string) common.ExtractionResult {
	result := common.ExtractionResult{SourceText: source}

	nameToID := make(map[string]string)
	for _, ent := range data.Entities {
		name := strings.TrimSpace(ent.Name)
		if name == "" {
			continue
		}
		entType := strings.TrimSpace(ent.Type)
		if entType == "" {
			entType = syntheticEntityType
		}
		entity := common.NewEntity(name, entType, strings.TrimSpace(ent.Description))
		nameToID[name] = entity.ID
		result.Entities = append(result.Entities, entity)
	}

	endpoint := func(name string) string {
		if id, ok := nameToID[name]; ok {
			return id
		}
		entity := common.NewEntity(name, syntheticEntityType, "")
		nameToID[name] = entity.ID
		result.Entities = append(result.Entities, entity)
		return entity.ID
	}

	for _, rel := range data.Relationships {
		source := strings.TrimSpace(rel.Source)
		target := strings.TrimSpace(rel.Target)
		if source == "" || target == "" {
			continue
		}
		relType := strings.TrimSpace(rel.Type)
		if relType == "" {
			relType = defaultRelationshipType
		}
		result.Relationships = append(result.Relationships, common.NewRelationship(
			endpoint(source),
			endpoint(target),
			relType,
			strings.TrimSpace(rel.Description),
		))
	}

	logger.Debug("[Extract] Parsed extraction", "entities", len(result.Entities), "relationships", len(result.Relationships))
	return result
}
