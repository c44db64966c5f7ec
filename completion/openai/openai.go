// Package openai implements completion.Completer using the OpenAI Chat
// Completions API. It adapts FlowMesh's narrow prompt/options contract into
// the SDK's message format.
package openai

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/shared"

	"github.com/flowmesh/flowmesh/completion"
)

// Options configure the OpenAI completer adapter. Fields mirror a subset of
// Chat Completion parameters intentionally kept minimal; per-call
// completion.Options override them when set.
type Options struct {
	Model       string
	Temperature float64
	MaxTokens   int64
	System      string
}

// Completer wraps the OpenAI Chat Completions API behind the generic
// completion.Completer interface.
type Completer struct {
	client *openai.Client
	opts   Options
}

// New creates a new OpenAI completer using the official client.
func New(optFns ...func(o *Options)) *Completer {
	client := openai.NewClient()
	return NewFromClient(&client, optFns...)
}

// NewFromClient creates a new OpenAI completer from an existing client.
func NewFromClient(client *openai.Client, optFns ...func(o *Options)) *Completer {
	opts := Options{
		Model:       openai.ChatModelGPT4oMini,
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
	var messages []openai.ChatCompletionMessageParamUnion
	if c.opts.System != "" {
		messages = append(messages, openai.SystemMessage(c.opts.System))
	}
	messages = append(messages, openai.UserMessage(buildUserText(prompt, opts.Images)))

	params := openai.ChatCompletionNewParams{
		Messages:            messages,
		Model:               c.model(opts),
		Temperature:         openai.Float(c.temperature(opts)),
		MaxCompletionTokens: openai.Int(c.maxTokens(opts)),
	}
	if opts.ReasoningEffort != "" {
		params.ReasoningEffort = shared.ReasoningEffort(opts.ReasoningEffort)
	}

	resp, err := c.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("openai api error: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai api error: no choices returned")
	}
	return resp.Choices[0].Message.Content, nil
}

func (c *Completer) model(opts completion.Options) string {
	if opts.Model != "" {
		return opts.Model
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

// buildUserText appends image references to the prompt as annotated lines.
func buildUserText(prompt string, images []completion.Image) string {
	if len(images) == 0 {
		return prompt
	}
	var b strings.Builder
	b.WriteString(prompt)
	b.WriteString("\n\nAttached media:")
	for _, img := range images {
		if img.URL != "" {
			fmt.Fprintf(&b, "\n- %s", img.URL)
		}
	}
	return b.String()
}
