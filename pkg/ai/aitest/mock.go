// Package aitest provides a scriptable GraphAIClient for tests.
package aitest

import (
	"context"
	"sync"

	"github.com/OFFIS-RIT/kiwi/graphsum/pkg/ai"
)

// Method names recorded by MockClient.Calls.
const (
	MethodCompletion = "GenerateCompletion"
	MethodFormat     = "GenerateCompletionWithFormat"
)

// MockClient answers every prompt with Respond, or Response/Err when
// Respond is nil. Structured calls decode the first JSON object of the
// answer, or fail with FormatErr when it is set. Prompts records every
// prompt it received.
type MockClient struct {
	Unavailable bool
	Response    string
	Err         error
	FormatErr   error
	Respond     func(prompt string) (string, error)

	mu      sync.Mutex
	prompts []string
	calls   []string
	metrics ai.ModelMetrics
}

// NewMockClient returns an available client that always answers response.
func NewMockClient(response string) *MockClient {
	return &MockClient{Response: response}
}

// NewUnavailableClient returns a client that reports itself unavailable.
func NewUnavailableClient() *MockClient {
	return &MockClient{Unavailable: true, Err: ai.ErrUnavailable}
}

func (m *MockClient) Name() string { return "mock" }

func (m *MockClient) IsAvailable() bool { return !m.Unavailable }

func (m *MockClient) GenerateCompletion(
	ctx context.Context,
	prompt string,
	opts ...ai.GenerateOption,
) (string, error) {
	return m.respond(ctx, MethodCompletion, prompt)
}

func (m *MockClient) respond(ctx context.Context, method, prompt string) (string, error) {
	m.mu.Lock()
	m.calls = append(m.calls, method)
	m.prompts = append(m.prompts, prompt)
	m.metrics = ai.AddMetrics(m.metrics, ai.ModelMetrics{InputTokens: len(prompt)})
	m.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	if m.Respond != nil {
		return m.Respond(prompt)
	}
	if m.Err != nil {
		return "", m.Err
	}
	return m.Response, nil
}

func (m *MockClient) GenerateCompletionWithFormat(
	ctx context.Context,
	name string,
	description string,
	prompt string,
	out any,
	opts ...ai.GenerateOption,
) error {
	if m.FormatErr != nil {
		m.mu.Lock()
		m.calls = append(m.calls, MethodFormat)
		m.prompts = append(m.prompts, prompt)
		m.mu.Unlock()
		return m.FormatErr
	}
	resp, err := m.respond(ctx, MethodFormat, prompt)
	if err != nil {
		return err
	}
	return ai.ParseJSONResponse(resp, out)
}

func (m *MockClient) ResetMetrics() {
	m.mu.Lock()
	m.metrics = ai.ModelMetrics{}
	m.mu.Unlock()
}

func (m *MockClient) GetMetrics() ai.ModelMetrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.metrics
}

// Calls returns the names of the generation methods called so far, in order.
func (m *MockClient) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.calls))
	copy(out, m.calls)
	return out
}

// Prompts returns a copy of all prompts received so far.
func (m *MockClient) Prompts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.prompts))
	copy(out, m.prompts)
	return out
}
