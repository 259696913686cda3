package capability

import (
	"context"
	"fmt"
	"strings"
	"sync"
)

// MockClient is a lightweight in-memory implementation of every capability
// interface, useful for tests and examples. Responses are deterministic and
// derived from the input; individual calls can be forced to fail via the Fail*
// fields. All methods are safe for concurrent use.
type MockClient struct {
	mu sync.Mutex

	FailFetch     error
	FailSummarize error
	FailResearch  error
	FailEmbed     error

	// FetchContent overrides the canned extraction content when non-empty.
	FetchContent string

	// Calls counts invocations per method name for idempotency assertions.
	Calls map[string]int
}

// NewMockClient constructs a mock with canned responses.
func NewMockClient() *MockClient {
	return &MockClient{Calls: map[string]int{}}
}

func (m *MockClient) record(method string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Calls == nil {
		m.Calls = map[string]int{}
	}
	m.Calls[method]++
}

// CallCount returns how often the named method has been invoked.
func (m *MockClient) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Calls[method]
}

// Fetch implements Extractor.
func (m *MockClient) Fetch(_ context.Context, url string) (*Extraction, error) {
	m.record("Fetch")
	if m.FailFetch != nil {
		return nil, m.FailFetch
	}
	content := m.FetchContent
	if content == "" {
		content = fmt.Sprintf("Extracted content of %s. It spans several paragraphs of readable text.", url)
	}
	return &Extraction{
		Content:       content,
		Title:         "Mock Article Title",
		Author:        "A. Author",
		PublishedDate: "2025-06-01",
		Description:   "Mock description",
		Raw:           []byte("<html><body>" + content + "</body></html>"),
	}, nil
}

// Summarize implements Summarizer.
func (m *MockClient) Summarize(_ context.Context, content string) (*Summary, error) {
	m.record("Summarize")
	if m.FailSummarize != nil {
		return nil, m.FailSummarize
	}
	head := content
	if len(head) > 40 {
		head = head[:40]
	}
	return &Summary{
		Title:     "Mock Article Title",
		Summary:   fmt.Sprintf("The article begins: %q. It develops the idea further. It closes with a conclusion.", head),
		KeyPoints: []string{"first point", "second point", "third point"},
		Author:    "A. Author",
	}, nil
}

// Title implements Summarizer.
func (m *MockClient) Title(_ context.Context, text string) (string, error) {
	m.record("Title")
	if m.FailSummarize != nil {
		return "", m.FailSummarize
	}
	words := strings.Fields(text)
	if len(words) > 6 {
		words = words[:6]
	}
	return strings.Join(words, " "), nil
}

// Research implements Researcher.
func (m *MockClient) Research(_ context.Context, name, url string) (*CompanyProfile, error) {
	m.record("Research")
	if m.FailResearch != nil {
		return nil, m.FailResearch
	}
	if name == "" {
		name = strings.TrimPrefix(strings.TrimPrefix(url, "https://"), "www.")
	}
	return &CompanyProfile{
		Name:        name,
		Description: fmt.Sprintf("%s builds developer tooling.", name),
		Industry:    "software",
		Products:    []string{"platform", "api"},
		Competitors: []string{"acme corp"},
	}, nil
}

// Embed implements Embedder.
func (m *MockClient) Embed(_ context.Context, text string) ([]float64, error) {
	m.record("Embed")
	if m.FailEmbed != nil {
		return nil, m.FailEmbed
	}
	// Cheap deterministic vector derived from the text length.
	v := make([]float64, 8)
	for i := range v {
		v[i] = float64((len(text)+i)%7) / 7
	}
	return v, nil
}
