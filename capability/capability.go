// Package capability defines the narrow contracts of the external providers
// the agents call: content extraction, structured summarization, company
// research and vector embedding. Each provider either produces structured
// output or fails; the orchestration core treats them as opaque. Concrete
// adapters live in the extract, openai and anthropic subpackages; MockClient
// serves tests and examples.
package capability

import (
	"context"
	"errors"
)

// ErrSchemaValidation wraps failures where a provider returned data that does
// not match the expected structure. Such responses are never partially
// accepted; callers log the raw payload for diagnosis.
var ErrSchemaValidation = errors.New("capability returned malformed structured data")

// Extraction is the normalized output of the content-extraction provider.
type Extraction struct {
	Content       string `json:"content"`
	Title         string `json:"title,omitempty"`
	Author        string `json:"author,omitempty"`
	PublishedDate string `json:"publishedDate,omitempty"`
	Description   string `json:"description,omitempty"`
	Raw           []byte `json:"-"` // original payload, for archival
}

// Extractor turns a URL into readable content plus page metadata.
type Extractor interface {
	Fetch(ctx context.Context, url string) (*Extraction, error)
}

// Summary is the schema-validated output of the summarization provider.
type Summary struct {
	Title         string   `json:"title" description:"Concise title of the content"`
	Summary       string   `json:"summary" description:"3-5 sentence summary"`
	KeyPoints     []string `json:"keyPoints" description:"3-5 key takeaways"`
	Author        string   `json:"author,omitempty" description:"Author if identifiable"`
	PublishedDate string   `json:"publishedDate,omitempty" description:"Publication date if identifiable"`
}

// Summarizer produces structured summaries and short titles from text.
type Summarizer interface {
	Summarize(ctx context.Context, content string) (*Summary, error)
	// Title generates a short descriptive title for free-form text. Used for
	// note entries, which need no further enrichment.
	Title(ctx context.Context, text string) (string, error)
}

// CompanyProfile is the schema-validated output of the research provider.
type CompanyProfile struct {
	Name         string   `json:"name" description:"Company name"`
	Description  string   `json:"description" description:"What the company does"`
	Industry     string   `json:"industry" description:"Primary industry"`
	Products     []string `json:"products,omitempty" description:"Main products or services"`
	Competitors  []string `json:"competitors,omitempty" description:"Notable competitors"`
	Funding      string   `json:"funding,omitempty" description:"Funding stage or notable rounds"`
	Leadership   []string `json:"leadership,omitempty" description:"Key executives"`
	Headquarters string   `json:"headquarters,omitempty" description:"Headquarters location"`
	Founded      string   `json:"founded,omitempty" description:"Founding year"`
}

// Researcher builds a wide structured profile from a company name and/or URL.
type Researcher interface {
	Research(ctx context.Context, name, url string) (*CompanyProfile, error)
}

// Embedder turns text into a vector. Consumed by the optional embed step.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float64, error)
}
