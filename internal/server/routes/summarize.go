package routes

import (
	"errors"
	"net/http"
	"time"

	"github.com/OFFIS-RIT/kiwi/graphsum/internal/pipeline"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/queue"
	"github.com/OFFIS-RIT/kiwi/graphsum/internal/server/middleware"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/common"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/logger"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/store"
	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/summarizer"

	"github.com/labstack/echo/v4"
)

type summarizeBody struct {
	Text         string `json:"text" form:"text"`
	URL          string `json:"url" form:"url" validate:"omitempty,url"`
	Method       string `json:"method" form:"method"`
	Style        string `json:"style" form:"style" validate:"omitempty,oneof=concise detailed academic business bullet"`
	MaxLength    int    `json:"max_length" form:"max_length" validate:"omitempty,min=1,max=20000"`
	SearchMode   string `json:"search_mode" form:"search_mode" validate:"omitempty,oneof=local global"`
	IncludeGraph bool   `json:"include_graph" form:"include_graph"`
}

func (b summarizeBody) message(id string) queue.SummarizeMsg {
	return queue.SummarizeMsg{
		ID:         id,
		Text:       b.Text,
		URL:        b.URL,
		Method:     b.Method,
		Style:      b.Style,
		MaxLength:  b.MaxLength,
		SearchMode: b.SearchMode,
	}
}

type summarizeResponse struct {
	Message        string                 `json:"message,omitempty"`
	Summary        *summarizer.Summary    `json:"summary,omitempty"`
	Graph          *store.GraphStats      `json:"graph,omitempty"`
	KnowledgeGraph *common.KnowledgeGraph `json:"knowledge_graph,omitempty"`
	Mode           string                 `json:"mode,omitempty"`
	DurationMs     int64                  `json:"duration_ms,omitempty"`
}

// SummarizeHandler summarizes the posted text, or the document at url,
// and answers with the summary and the size of the graph built for it.
func SummarizeHandler(c echo.Context) error {
	data := new(summarizeBody)
	if err := c.Bind(data); err != nil {
		return c.JSON(http.StatusBadRequest, summarizeResponse{
			Message: "Invalid request body",
		})
	}
	if err := c.Validate(data); err != nil || (data.Text == "" && data.URL == "") {
		return c.JSON(http.StatusBadRequest, summarizeResponse{
			Message: "Invalid request body",
		})
	}

	app := c.(*middleware.AppContext).App
	text := data.Text
	if text == "" {
		if app.Loader == nil {
			return c.JSON(http.StatusBadRequest, summarizeResponse{
				Message: "Loading URLs is not enabled",
			})
		}
		var err error
		text, err = app.Loader.Load(c.Request().Context(), data.URL)
		if err != nil {
			logger.Error("Failed to load document", "url", data.URL, "err", err)
			return c.JSON(http.StatusUnprocessableEntity, summarizeResponse{
				Message: "Failed to load document",
			})
		}
	}

	return summarize(c, data.message(""), text, data.IncludeGraph)
}

func summarize(c echo.Context, msg queue.SummarizeMsg, text string, includeGraph bool) error {
	method, opts, err := msg.Request()
	if err != nil {
		return c.JSON(http.StatusBadRequest, summarizeResponse{
			Message: err.Error(),
		})
	}

	start := time.Now()
	app := c.(*middleware.AppContext).App
	out, err := app.Pipeline.Summarize(c.Request().Context(), method, text, opts)
	if errors.Is(err, pipeline.ErrUnsupportedMethod) {
		return c.JSON(http.StatusBadRequest, summarizeResponse{
			Message: err.Error(),
		})
	}
	if err != nil {
		logger.Error("Failed to summarize", "method", method, "err", err)
		return c.JSON(http.StatusInternalServerError, summarizeResponse{
			Message: "Internal server error",
		})
	}

	stats := out.GraphStats()
	res := summarizeResponse{
		Summary:    &out.Summary,
		Graph:      &stats,
		Mode:       string(out.Mode),
		DurationMs: time.Since(start).Milliseconds(),
	}
	if includeGraph {
		res.KnowledgeGraph = out.Graph
	}
	return c.JSON(http.StatusOK, res)
}
