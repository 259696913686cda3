// Package openai implements the summarization and embedding capabilities
// using the OpenAI API. Structured output is requested via a strict JSON
// instruction derived from the target schema and validated before acceptance;
// malformed responses surface as capability.ErrSchemaValidation with the raw
// payload logged, never partially accepted.
package openai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openai/openai-go"

	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/internal/util"
	"github.com/stashpipe/stashpipe/logging"
)

const summarizePrompt = `Summarize the following content. Respond with a single JSON object matching this schema, no prose, no code fences:
{{.schema}}

The summary must be 3-5 sentences and keyPoints must contain 3-5 items.

Content:
{{.content}}`

const titlePrompt = `Generate a short descriptive title (at most 8 words) for the following text. Respond with only the title, no quotes.

Text:
{{.text}}`

// Options configure the OpenAI capability client.
type Options struct {
	Model          string
	EmbeddingModel string
	Temperature    float64
	MaxTokens      int64
	// MaxContentChars truncates input content before prompting.
	MaxContentChars int
	Logger          logging.Logger
}

// Client wraps the OpenAI API behind the capability.Summarizer and
// capability.Embedder interfaces.
type Client struct {
	client *openai.Client
	opts   Options
}

// New creates a client using ambient credentials (OPENAI_API_KEY).
func New(optFns ...func(o *Options)) *Client {
	c := openai.NewClient()
	return NewFromClient(&c, optFns...)
}

// NewFromClient creates a capability client from an existing SDK client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:           openai.ChatModelGPT4oMini,
		EmbeddingModel:  string(openai.EmbeddingModelTextEmbedding3Small),
		Temperature:     0.2,
		MaxTokens:       1024,
		MaxContentChars: 24000,
		Logger:          logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

// Summarize requests a structured summary and validates it against the
// capability.Summary schema.
func (c *Client) Summarize(ctx context.Context, content string) (*capability.Summary, error) {
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("summarize: empty content")
	}
	if len(content) > c.opts.MaxContentChars {
		content = content[:c.opts.MaxContentChars]
	}

	schema, err := json.MarshalIndent(util.SchemaFor(&capability.Summary{}), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("summarize: render schema: %w", err)
	}
	prompt, err := util.RenderTemplate(summarizePrompt, map[string]any{
		"schema":  string(schema),
		"content": content,
	})
	if err != nil {
		return nil, fmt.Errorf("summarize: render prompt: %w", err)
	}

	raw, err := c.complete(ctx, "You are a careful summarizer. You output only valid JSON.", prompt)
	if err != nil {
		return nil, fmt.Errorf("summarize: %w", err)
	}

	var summary capability.Summary
	if err := util.DecodeValidated(stripFences(raw), &summary); err != nil {
		c.opts.Logger.Error("summarizer returned malformed payload", "payload", raw, "error", err)
		return nil, fmt.Errorf("%w: %v", capability.ErrSchemaValidation, err)
	}
	if n := len(summary.KeyPoints); n < 3 || n > 5 {
		c.opts.Logger.Error("summarizer returned malformed payload", "payload", raw, "error", "keyPoints count out of range")
		return nil, fmt.Errorf("%w: expected 3-5 key points, got %d", capability.ErrSchemaValidation, n)
	}
	return &summary, nil
}

// Title generates a short title for free-form text (note entries).
func (c *Client) Title(ctx context.Context, text string) (string, error) {
	if len(text) > 2000 {
		text = text[:2000]
	}
	prompt, err := util.RenderTemplate(titlePrompt, map[string]any{"text": text})
	if err != nil {
		return "", fmt.Errorf("title: render prompt: %w", err)
	}
	title, err := c.complete(ctx, "You title short notes.", prompt)
	if err != nil {
		return "", fmt.Errorf("title: %w", err)
	}
	return strings.Trim(strings.TrimSpace(title), `"`), nil
}

// Embed returns a vector for the text using the configured embedding model.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("embed: empty text")
	}
	resp, err := c.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Model: openai.EmbeddingModel(c.opts.EmbeddingModel),
		Input: openai.EmbeddingNewParamsInputUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("embed: openai api error: %w", err)
	}
	if len(resp.Data) == 0 {
		return nil, fmt.Errorf("embed: empty embedding response")
	}
	return resp.Data[0].Embedding, nil
}

func (c *Client) complete(ctx context.Context, system, user string) (string, error) {
	resp, err := c.client.Chat.Completions.New(ctx, openai.ChatCompletionNewParams{
		Model: c.opts.Model,
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(system),
			openai.UserMessage(user),
		},
		Temperature:         openai.Float(c.opts.Temperature),
		MaxCompletionTokens: openai.Int(c.opts.MaxTokens),
	})
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("empty completion response")
	}
	return resp.Choices[0].Message.Content, nil
}

// stripFences removes a markdown code fence if the model wrapped its JSON in
// one despite instructions.
func stripFences(s string) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return []byte(strings.TrimSpace(s))
}
