// Package anthropic implements the company-research capability using the
// Anthropic Messages API. The model is asked for a single JSON object
// matching the capability.CompanyProfile schema; the response is validated
// before acceptance and malformed payloads surface as
// capability.ErrSchemaValidation.
package anthropic

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/stashpipe/stashpipe/capability"
	"github.com/stashpipe/stashpipe/internal/util"
	"github.com/stashpipe/stashpipe/logging"
)

const researchPrompt = `Research the company {{default "at the given website" .name}}{{if .url}} (website: {{.url}}){{end}}.
Respond with a single JSON object matching this schema, no prose, no code fences:
{{.schema}}

Use only widely known information; leave optional fields out if unsure.`

// Options configure the Anthropic research client.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	Logger      logging.Logger
}

// Client wraps the Anthropic Messages API behind capability.Researcher.
type Client struct {
	client *anthropic.Client
	opts   Options
}

// New creates a research client using the official SDK client.
func New(optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.3,
		MaxTokens:   2048,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Client{client: &client, opts: opts}
}

// NewFromClient creates a research client from an existing SDK client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Client {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.3,
		MaxTokens:   2048,
		Logger:      logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Client{client: client, opts: opts}
}

// Research builds a structured company profile from a name and/or URL.
func (c *Client) Research(ctx context.Context, name, url string) (*capability.CompanyProfile, error) {
	if name == "" && url == "" {
		return nil, fmt.Errorf("research: need a company name or url")
	}

	schema, err := json.MarshalIndent(util.SchemaFor(&capability.CompanyProfile{}), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("research: render schema: %w", err)
	}
	prompt, err := util.RenderTemplate(researchPrompt, map[string]any{
		"name":   name,
		"url":    url,
		"schema": string(schema),
	})
	if err != nil {
		return nil, fmt.Errorf("research: render prompt: %w", err)
	}

	resp, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       c.opts.Model,
		MaxTokens:   c.opts.MaxTokens,
		Temperature: anthropic.Float(c.opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: "You research companies. You output only valid JSON."},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("research: anthropic api error: %w", err)
	}

	var text strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			text.WriteString(block.AsText().Text)
		}
	}
	raw := strings.TrimSpace(text.String())
	if raw == "" {
		return nil, fmt.Errorf("research: empty response")
	}

	var profile capability.CompanyProfile
	if err := util.DecodeValidated(stripFences(raw), &profile); err != nil {
		c.opts.Logger.Error("researcher returned malformed payload", "payload", raw, "error", err)
		return nil, fmt.Errorf("%w: %v", capability.ErrSchemaValidation, err)
	}
	return &profile, nil
}

func stripFences(s string) []byte {
	s = strings.TrimSpace(s)
	if strings.HasPrefix(s, "```") {
		s = strings.TrimPrefix(s, "```json")
		s = strings.TrimPrefix(s, "```")
		s = strings.TrimSuffix(s, "```")
	}
	return []byte(strings.TrimSpace(s))
}
