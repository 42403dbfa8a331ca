package ollama

import (
	"net/http"
	"net/url"
	"sync"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"

	"github.com/ollama/ollama/api"
	"golang.org/x/sync/semaphore"
)

// GraphOllamaClient implements the ai.GraphAIClient interface using a
// locally hosted Ollama server as the backend.
type GraphOllamaClient struct {
	model           string
	extractionModel string

	reqLock *semaphore.Weighted

	metricsLock sync.Mutex
	metrics     ai.ModelMetrics

	baseURL *url.URL

	Client *api.Client
}

// NewGraphOllamaClientParams contains configuration options for creating a new GraphOllamaClient.
type NewGraphOllamaClientParams struct {
	Model           string
	ExtractionModel string

	BaseURL string
	ApiKey  string

	MaxConcurrentRequests int64
}

type headerTransport struct {
	headers map[string]string
	rt      http.RoundTripper
}

func (t *headerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	// clone so original request isn't modified
	r := req.Clone(req.Context())
	for k, v := range t.headers {
		// don't overwrite if already set
		if r.Header.Get(k) == "" {
			r.Header.Set(k, v)
		}
	}
	return t.rt.RoundTrip(r)
}

// NewGraphOllamaClient creates a new Ollama-based AI client with the specified configuration.
// It connects to the Ollama server at the given BaseURL (or the default if empty).
// An empty ApiKey sends no Authorization header.
func NewGraphOllamaClient(
	params NewGraphOllamaClientParams,
) (*GraphOllamaClient, error) {
	var (
		u   *url.URL
		err error
	)

	if params.BaseURL != "" {
		u, err = url.Parse(params.BaseURL)
		if err != nil {
			return nil, err
		}
	}

	headers := map[string]string{}
	if params.ApiKey != "" {
		headers["Authorization"] = "Bearer " + params.ApiKey
	}
	httpClient := &http.Client{
		Transport: &headerTransport{
			headers: headers,
			rt:      http.DefaultTransport,
		},
	}

	maxReq := params.MaxConcurrentRequests
	if maxReq <= 0 {
		maxReq = 1
	}

	extractionModel := params.ExtractionModel
	if extractionModel == "" {
		extractionModel = params.Model
	}

	return &GraphOllamaClient{
		model:           params.Model,
		extractionModel: extractionModel,

		reqLock: semaphore.NewWeighted(maxReq),

		metricsLock: sync.Mutex{},
		metrics:     ai.ModelMetrics{},

		baseURL: u,

		Client: api.NewClient(u, httpClient),
	}, nil
}

// Name returns "ollama".
func (c *GraphOllamaClient) Name() string {
	return "ollama"
}

// IsAvailable reports whether a model is configured. Reachability of the
// server is tracked by the circuit breaker wrapping this client.
func (c *GraphOllamaClient) IsAvailable() bool {
	return c.Client != nil && c.model != ""
}
