// Package llm wraps an OpenAI-compatible model runtime (llama.cpp server,
// Ollama, vLLM) behind the capabilities the conversation agent needs:
// completion generation, personal-data flagging, instruction classification,
// operation-schema extraction and a few text utilities.
package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bluevi/agent/internal/history"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

// Grammar constrains the shape of model output.
type Grammar int

const (
	GrammarNone Grammar = iota
	// GrammarJSON forces the runtime into JSON mode so the completion is a
	// single well-formed JSON value.
	GrammarJSON
)

// Choice is one candidate completion returned by the runtime.
type Choice struct {
	Content string
}

// Completion is the normalized result of a generation call. An empty Choices
// slice is a valid outcome meaning "no answer produced", not an error.
type Completion struct {
	Choices []Choice
}

// First returns the content of the first choice, if any.
func (c Completion) First() (string, bool) {
	if len(c.Choices) == 0 {
		return "", false
	}
	return c.Choices[0].Content, true
}

type Runtime struct {
	model   llms.Model
	logger  *zap.Logger
	timeout time.Duration
	budget  int
	counter history.TokenCounter
}

type Option func(*Runtime)

// WithTimeout bounds every call to the underlying runtime.
func WithTimeout(d time.Duration) Option {
	return func(r *Runtime) { r.timeout = d }
}

// WithTokenBudget overrides the history token budget.
func WithTokenBudget(budget int) Option {
	return func(r *Runtime) { r.budget = budget }
}

// WithTokenCounter overrides the word-count token approximation.
func WithTokenCounter(count history.TokenCounter) Option {
	return func(r *Runtime) { r.counter = count }
}

// New connects to an OpenAI-compatible endpoint.
func New(baseURL, apiKey, model string, logger *zap.Logger, opts ...Option) (*Runtime, error) {
	client, err := openai.New(
		openai.WithToken(apiKey),
		openai.WithBaseURL(baseURL),
		openai.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize model client: %w", err)
	}
	return NewWithModel(client, logger, opts...), nil
}

// NewWithModel wraps an already constructed model, which tests use to inject
// fakes.
func NewWithModel(model llms.Model, logger *zap.Logger, opts ...Option) *Runtime {
	r := &Runtime{
		model:   model,
		logger:  logger,
		timeout: 60 * time.Second,
		budget:  history.DefaultTokenBudget,
		counter: history.WordCount,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func chatMessages(entries []history.Entry) []llms.MessageContent {
	msgs := make([]llms.MessageContent, 0, len(entries))
	for _, e := range entries {
		var role schema.ChatMessageType
		switch e.Role {
		case "assistant":
			role = schema.ChatMessageTypeAI
		case "system":
			role = schema.ChatMessageTypeSystem
		default:
			role = schema.ChatMessageTypeHuman
		}
		msgs = append(msgs, llms.TextParts(role, e.Content))
	}
	return msgs
}

func (r *Runtime) generate(ctx context.Context, msgs []llms.MessageContent, opts ...llms.CallOption) (*llms.ContentResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()
	return r.model.GenerateContent(ctx, msgs, opts...)
}

// prepare validates and trims conversation entries down to the wire shape.
func (r *Runtime) prepare(entries []history.Entry) []history.Entry {
	return history.TrimToBudget(history.FormatMessages(entries, r.logger), r.budget, r.counter)
}

// GenerateChatCompletion asks the runtime for a completion over the
// conversation, optionally constrained by a grammar. It never returns an
// error: transport failures and empty conversations both yield an empty
// Completion, which callers must treat as "no answer produced".
func (r *Runtime) GenerateChatCompletion(ctx context.Context, entries []history.Entry, grammar Grammar) Completion {
	msgs := r.prepare(entries)
	if len(msgs) == 0 {
		r.logger.Warn("no valid messages to send to the model")
		return Completion{}
	}

	var opts []llms.CallOption
	if grammar == GrammarJSON {
		opts = append(opts, llms.WithJSONMode())
	}

	resp, err := r.generate(ctx, chatMessages(msgs), opts...)
	if err != nil {
		r.logger.Error("model completion failed", zap.Error(err))
		return Completion{}
	}
	return toCompletion(resp)
}

func toCompletion(resp *llms.ContentResponse) Completion {
	if resp == nil {
		return Completion{}
	}
	var c Completion
	for _, choice := range resp.Choices {
		if choice == nil {
			continue
		}
		c.Choices = append(c.Choices, Choice{Content: choice.Content})
	}
	return c
}

// instruct runs the conversation under a system instruction and returns the
// first completion choice. Unlike GenerateChatCompletion, failures propagate.
func (r *Runtime) instruct(ctx context.Context, instruction string, entries []history.Entry, opts ...llms.CallOption) (string, error) {
	msgs := append([]llms.MessageContent{llms.TextParts(schema.ChatMessageTypeSystem, instruction)},
		chatMessages(r.prepare(entries))...)

	resp, err := r.generate(ctx, msgs, opts...)
	if err != nil {
		return "", err
	}
	if resp == nil || len(resp.Choices) == 0 || resp.Choices[0] == nil {
		return "", errors.New("model returned no completion choices")
	}
	return resp.Choices[0].Content, nil
}

func (r *Runtime) instructText(ctx context.Context, instruction, text string, opts ...llms.CallOption) (string, error) {
	return r.instruct(ctx, instruction, []history.Entry{{Role: "user", Content: text}}, opts...)
}

// CheckPersonalData reports whether text contains personal data. Failures
// propagate: a flagging error must never be read as "not personal".
func (r *Runtime) CheckPersonalData(ctx context.Context, text string) (bool, error) {
	out, err := r.instructText(ctx, instructionPersonalData, text)
	if err != nil {
		return false, fmt.Errorf("personal data check failed: %w", err)
	}

	answer := strings.ToLower(strings.TrimSpace(out))
	switch {
	case strings.HasPrefix(answer, "true"), strings.HasPrefix(answer, "yes"):
		return true, nil
	case strings.HasPrefix(answer, "false"), strings.HasPrefix(answer, "no"):
		return false, nil
	}
	return false, fmt.Errorf("unexpected personal data classification %q", out)
}

// IdentifyInstructionType classifies the conversation's intent. The returned
// value is normalized but not restricted to the known constants; callers
// branch on equality with InstructionOperation.
func (r *Runtime) IdentifyInstructionType(ctx context.Context, entries []history.Entry) (InstructionType, error) {
	out, err := r.instruct(ctx, instructionIdentifyType, entries)
	if err != nil {
		return "", fmt.Errorf("instruction classification failed: %w", err)
	}

	fields := strings.Fields(strings.ToLower(strings.Trim(strings.TrimSpace(out), `"'.`)))
	if len(fields) == 0 {
		return InstructionDefault, nil
	}
	return InstructionType(strings.Trim(fields[0], `"'.`)), nil
}

// ExtractOperationSchema asks the runtime for a structured description of the
// operation the conversation requests. A nil map with nil error means no
// operation was recognized.
func (r *Runtime) ExtractOperationSchema(ctx context.Context, entries []history.Entry) (map[string]any, error) {
	out, err := r.instruct(ctx, instructionOperationSchema, entries, llms.WithJSONMode())
	if err != nil {
		return nil, fmt.Errorf("operation schema extraction failed: %w", err)
	}

	var schema map[string]any
	if err := json.Unmarshal([]byte(strings.TrimSpace(out)), &schema); err != nil {
		return nil, fmt.Errorf("operation schema is not valid JSON: %w", err)
	}
	if len(schema) == 0 {
		return nil, nil
	}
	return schema, nil
}

// GenerateWithInstruction produces a reply for the conversation under the
// given system instruction, falling back to the default assistant behavior
// when instruction is empty. Failures propagate to the calling strategy.
func (r *Runtime) GenerateWithInstruction(ctx context.Context, entries []history.Entry, instruction string) (string, error) {
	if instruction == "" {
		instruction = instructionGeneral
	}
	return r.instruct(ctx, instruction, entries)
}

// OperationConfirmation generates the user-facing confirmation message once an
// operation schema has been extracted.
func (r *Runtime) OperationConfirmation(ctx context.Context, entries []history.Entry) (string, error) {
	return r.instruct(ctx, instructionOperationSuccess, entries)
}

// CorrectGrammar rewrites text with spelling and grammar fixed. It rides the
// degrade-gracefully completion path: an empty completion is reported so the
// caller can fall back to the raw text.
func (r *Runtime) CorrectGrammar(ctx context.Context, text string) (string, error) {
	c := r.GenerateChatCompletion(ctx, []history.Entry{
		{Role: "system", Content: instructionGrammarCorrection},
		{Role: "user", Content: text},
	}, GrammarNone)

	out, ok := c.First()
	if !ok {
		return "", errors.New("grammar correction produced no completion")
	}
	return out, nil
}

// Anonymize replaces personal data in text with neutral placeholders.
func (r *Runtime) Anonymize(ctx context.Context, text string) (string, error) {
	return r.instructText(ctx, instructionAnonymize, text)
}

type embedder interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// Embed returns an embedding vector for text. Only available when the
// underlying client supports embeddings (the OpenAI-compatible one does).
func (r *Runtime) Embed(ctx context.Context, text string) ([]float32, error) {
	e, ok := r.model.(embedder)
	if !ok {
		return nil, errors.New("model runtime does not support embeddings")
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	vectors, err := e.CreateEmbedding(ctx, []string{text})
	if err != nil {
		return nil, fmt.Errorf("failed to create embedding: %w", err)
	}
	if len(vectors) == 0 {
		return nil, errors.New("embedding call returned no vectors")
	}
	return vectors[0], nil
}
