// Package anthropic implements completion.Completer using the Anthropic
// Messages API.
package anthropic

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/flowmesh/flowmesh/completion"
)

// Options configure the Anthropic completer adapter (model id, temperature,
// max tokens, API key). Per-call completion.Options override model,
// temperature and token budget when set.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	System      string
	APIKey      string
}

// Completer wraps the Anthropic Messages API behind the generic
// completion.Completer interface.
type Completer struct {
	client *anthropic.Client
	opts   Options
}

// New creates a new Anthropic completer using the official client.
func New(optFns ...func(o *Options)) *Completer {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	var clientOpts []option.RequestOption
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	client := anthropic.NewClient(clientOpts...)

	return &Completer{client: &client, opts: opts}
}

// NewFromClient creates a new Anthropic completer from an existing client.
func NewFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Completer {
	opts := Options{
		Model:       anthropic.ModelClaude3_5Sonnet20241022,
		Temperature: 0.7,
		MaxTokens:   4096,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Completer{client: client, opts: opts}
}

// Complete implements completion.Completer.
func (c *Completer) Complete(ctx context.Context, prompt string, opts completion.Options) (string, error) {
	blocks := []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(prompt)}
	for _, img := range opts.Images {
		switch {
		case img.Data != "":
			blocks = append(blocks, anthropic.NewImageBlockBase64(img.MediaType, img.Data))
		case img.URL != "":
			blocks = append(blocks, anthropic.NewTextBlock(fmt.Sprintf("Attached media: %s", img.URL)))
		}
	}

	params := anthropic.MessageNewParams{
		Model:       c.model(opts),
		Messages:    []anthropic.MessageParam{anthropic.NewUserMessage(blocks...)},
		MaxTokens:   c.maxTokens(opts),
		Temperature: anthropic.Float(c.temperature(opts)),
	}
	if c.opts.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: c.opts.System}}
	}

	resp, err := c.client.Messages.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var text string
	for _, block := range resp.Content {
		if block.Type == "text" {
			text += block.AsText().Text
		}
	}
	return text, nil
}

func (c *Completer) model(opts completion.Options) anthropic.Model {
	if opts.Model != "" {
		return anthropic.Model(opts.Model)
	}
	return c.opts.Model
}

func (c *Completer) temperature(opts completion.Options) float64 {
	if opts.Temperature != 0 {
		return opts.Temperature
	}
	return c.opts.Temperature
}

func (c *Completer) maxTokens(opts completion.Options) int64 {
	if opts.MaxTokens != 0 {
		return opts.MaxTokens
	}
	return c.opts.MaxTokens
}
