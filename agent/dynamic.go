package agent

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/flowmesh/flowmesh/completion"
	"github.com/flowmesh/flowmesh/core"
	"github.com/flowmesh/flowmesh/internal/util"
	"github.com/flowmesh/flowmesh/logging"
	"github.com/flowmesh/flowmesh/memory"
)

// DynamicOptions configure a Dynamic agent. NewDynamicFromSpec fills them
// from the agent spec's configuration blob.
type DynamicOptions struct {
	// PromptTemplate is static template text rendered against the node's
	// inputs before the live context sections are appended.
	PromptTemplate string
	// Model, Temperature, MaxTokens and ReasoningEffort are forwarded to the
	// completion service per call.
	Model           string
	Temperature     float64
	MaxTokens       int64
	ReasoningEffort string
	// RequiredInputs lists the input keys validated before execution.
	RequiredInputs []string
	// MaxHistory bounds how many conversation entries are replayed into the
	// prompt context.
	MaxHistory int
	// Memory is the working memory owned by this instance.
	Memory *memory.AgentMemory
	// Logger defaults to NoOpLogger when nil.
	Logger logging.Logger
}

// Dynamic is the metadata-driven agent variant: it builds an analysis prompt
// from its configured template plus live context (prior step outputs,
// conversation history, attached media references), calls the completion
// service and parses the response into {analysis, recommendations,
// confidence}.
//
// A completion failure does not propagate as an error: it yields a degraded
// low-confidence result so a single flaky AI call does not abort the whole
// execution. Engine-level errors (missing inputs) still fail normally.
type Dynamic struct {
	Base
	completer completion.Completer
	opts      DynamicOptions

	mu       sync.Mutex
	step     int
	apiCalls int
}

// NewDynamic constructs a metadata-driven agent for the given node.
func NewDynamic(id, agentType string, completer completion.Completer, optFns ...func(o *DynamicOptions)) *Dynamic {
	opts := DynamicOptions{
		Temperature: 0.7,
		MaxTokens:   4096,
		MaxHistory:  10,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Memory == nil {
		opts.Memory = memory.New()
	}
	if opts.Logger == nil {
		opts.Logger = logging.NoOpLogger{}
	}
	return &Dynamic{
		Base: NewBase(id, agentType, func(o *BaseOptions) {
			o.RequiredInputs = opts.RequiredInputs
			o.Memory = opts.Memory
			o.Logger = opts.Logger
		}),
		completer: completer,
		opts:      opts,
	}
}

// NewDynamicFromSpec constructs a Dynamic agent from a workflow agent spec,
// reading promptTemplate, model, temperature, maxTokens, reasoningEffort,
// requiredInputs and maxHistory from the spec's configuration blob.
func NewDynamicFromSpec(spec core.AgentSpec, completer completion.Completer, logger logging.Logger) *Dynamic {
	return NewDynamic(spec.ID, spec.Type, completer, func(o *DynamicOptions) {
		o.Logger = logger
		if s, ok := spec.Config["promptTemplate"].(string); ok {
			o.PromptTemplate = s
		}
		if s, ok := spec.Config["model"].(string); ok {
			o.Model = s
		}
		if t, ok := toFloat(spec.Config["temperature"]); ok {
			o.Temperature = t
		}
		if n, ok := toFloat(spec.Config["maxTokens"]); ok {
			o.MaxTokens = int64(n)
		}
		if s, ok := spec.Config["reasoningEffort"].(string); ok {
			o.ReasoningEffort = s
		}
		if n, ok := toFloat(spec.Config["maxHistory"]); ok {
			o.MaxHistory = int(n)
		}
		o.RequiredInputs = stringSlice(spec.Config["requiredInputs"])
	})
}

// Execute builds the prompt, calls the completion service and parses the
// response. Completion failures are converted into a degraded result.
func (d *Dynamic) Execute(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	d.mu.Lock()
	d.step++
	step := fmt.Sprintf("step-%d", d.step)
	d.apiCalls = 0
	d.mu.Unlock()

	prompt, err := d.buildPrompt(inputs)
	if err != nil {
		return nil, fmt.Errorf("building prompt for agent %s: %w", d.ID(), err)
	}

	opts := completion.Options{
		Model:           d.opts.Model,
		Temperature:     d.opts.Temperature,
		MaxTokens:       d.opts.MaxTokens,
		ReasoningEffort: d.opts.ReasoningEffort,
		Images:          extractImages(inputs),
	}

	d.Memory().AddInteraction("user", prompt, step)

	start := time.Now()
	text, err := d.completer.Complete(ctx, prompt, opts)
	d.mu.Lock()
	d.apiCalls++
	d.mu.Unlock()
	if err != nil {
		// Degraded, not fatal: the engine treats this node as succeeded with
		// low confidence rather than failing the execution.
		d.Logger().Warn("completion call failed, returning degraded result",
			"agent_id", d.ID(), "model", d.opts.Model, "error", err)
		degraded := map[string]any{
			"analysis":   fmt.Sprintf("Error processing %s: %v", d.Type(), err),
			"confidence": 0.1,
			"error":      true,
		}
		d.Memory().AddInteraction("assistant", degraded["analysis"].(string), step)
		return degraded, nil
	}

	d.Logger().Debug("completion call succeeded",
		"agent_id", d.ID(), "model", d.opts.Model, "duration", time.Since(start))
	d.Memory().AddInteraction("assistant", text, step)

	result := ParseResponse(text)
	d.Memory().SetStepData(step, result)
	return result, nil
}

// APICalls implements APICallReporter.
func (d *Dynamic) APICalls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.apiCalls
}

// buildPrompt merges the static template text with live context: rendered
// inputs, prior step outputs, recent conversation history and attached
// media references.
func (d *Dynamic) buildPrompt(inputs map[string]any) (string, error) {
	var b strings.Builder

	if d.opts.PromptTemplate != "" {
		rendered, err := util.RenderTemplate(d.opts.PromptTemplate, inputs)
		if err != nil {
			return "", err
		}
		b.WriteString(rendered)
	} else {
		fmt.Fprintf(&b, "You are a %s agent. Analyze the provided context and respond with your findings.", d.Type())
	}

	if ctxSection := formatContext(inputs); ctxSection != "" {
		b.WriteString("\n\nContext:\n")
		b.WriteString(ctxSection)
	}

	if prior := d.Memory().StepDataSnapshot(); len(prior) > 0 {
		b.WriteString("\n\nPrior step results:\n")
		b.WriteString(formatContext(prior))
	}

	if history := d.Memory().RecentHistory(d.opts.MaxHistory); len(history) > 0 {
		b.WriteString("\n\nConversation so far:\n")
		for _, entry := range history {
			fmt.Fprintf(&b, "%s: %s\n", entry.Role, util.Truncate(entry.Content, 500))
		}
	}

	if images := extractImages(inputs); len(images) > 0 {
		fmt.Fprintf(&b, "\n\n%d image(s) attached for visual analysis.", len(images))
	}

	return b.String(), nil
}

// formatContext renders a state map as stable key/value lines. Media keys
// are skipped; they are carried separately as image attachments.
func formatContext(state map[string]any) string {
	var lines []string
	for _, k := range util.SortedKeys(state) {
		if k == "images" {
			continue
		}
		lines = append(lines, fmt.Sprintf("- %s: %s", k, util.Truncate(fmt.Sprintf("%v", state[k]), 300)))
	}
	return strings.Join(lines, "\n")
}

// extractImages pulls media references out of the inputs under the "images"
// key, accepting either string URLs or structured references.
func extractImages(inputs map[string]any) []completion.Image {
	raw, ok := inputs["images"]
	if !ok {
		return nil
	}
	var images []completion.Image
	switch v := raw.(type) {
	case []string:
		for _, u := range v {
			images = append(images, completion.Image{URL: u})
		}
	case []any:
		for _, item := range v {
			switch img := item.(type) {
			case string:
				images = append(images, completion.Image{URL: img})
			case map[string]any:
				ref := completion.Image{}
				if s, ok := img["url"].(string); ok {
					ref.URL = s
				}
				if s, ok := img["mediaType"].(string); ok {
					ref.MediaType = s
				}
				if s, ok := img["data"].(string); ok {
					ref.Data = s
				}
				if ref.URL != "" || ref.Data != "" {
					images = append(images, ref)
				}
			}
		}
	}
	return images
}

func stringSlice(v any) []string {
	switch s := v.(type) {
	case []string:
		return s
	case []any:
		var out []string
		for _, item := range s {
			if str, ok := item.(string); ok {
				out = append(out, str)
			}
		}
		return out
	default:
		return nil
	}
}
