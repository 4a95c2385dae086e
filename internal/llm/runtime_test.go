package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/bluevi/agent/internal/history"
	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/schema"
	"go.uber.org/zap"
)

type fakeModel struct {
	resp  *llms.ContentResponse
	err   error
	calls [][]llms.MessageContent
}

func (m *fakeModel) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.calls = append(m.calls, messages)
	return m.resp, m.err
}

func (m *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return "", errors.New("not implemented")
}

func respondWith(contents ...string) *llms.ContentResponse {
	resp := &llms.ContentResponse{}
	for _, c := range contents {
		resp.Choices = append(resp.Choices, &llms.ContentChoice{Content: c})
	}
	return resp
}

func validConversation() []history.Entry {
	return []history.Entry{{Role: "user", Content: "hello"}}
}

func TestGenerateChatCompletionSkipsModelWhenNothingValid(t *testing.T) {
	model := &fakeModel{resp: respondWith("should never be seen")}
	r := NewWithModel(model, zap.NewNop())

	entries := []history.Entry{
		{Role: "narrator", Content: "invalid role"},
		{Role: "user", Content: ""},
	}
	c := r.GenerateChatCompletion(context.Background(), entries, GrammarNone)

	if len(model.calls) != 0 {
		t.Errorf("model must not be invoked with no valid messages, got %d calls", len(model.calls))
	}
	if _, ok := c.First(); ok {
		t.Errorf("expected an empty completion, got %v", c)
	}
}

func TestGenerateChatCompletionSwallowsRuntimeFailure(t *testing.T) {
	model := &fakeModel{err: errors.New("connection refused")}
	r := NewWithModel(model, zap.NewNop())

	c := r.GenerateChatCompletion(context.Background(), validConversation(), GrammarNone)

	if len(c.Choices) != 0 {
		t.Errorf("a failed generation must yield an empty completion, got %v", c)
	}
}

func TestGenerateChatCompletionMapsChoices(t *testing.T) {
	model := &fakeModel{resp: respondWith("first answer", "second answer")}
	r := NewWithModel(model, zap.NewNop())

	c := r.GenerateChatCompletion(context.Background(), validConversation(), GrammarNone)

	first, ok := c.First()
	if !ok || first != "first answer" {
		t.Errorf("First() = %q, %v; want the first choice", first, ok)
	}
	if len(c.Choices) != 2 {
		t.Errorf("expected 2 choices, got %d", len(c.Choices))
	}
}

func TestCheckPersonalData(t *testing.T) {
	cases := []struct {
		answer  string
		want    bool
		wantErr bool
	}{
		{"true", true, false},
		{"True.", true, false},
		{"yes", true, false},
		{"false", false, false},
		{"No, this is fine", false, false},
		{"perhaps", false, true},
	}
	for _, tc := range cases {
		r := NewWithModel(&fakeModel{resp: respondWith(tc.answer)}, zap.NewNop())
		got, err := r.CheckPersonalData(context.Background(), "call me on 555-0117")
		if (err != nil) != tc.wantErr {
			t.Errorf("answer %q: err = %v, wantErr %v", tc.answer, err, tc.wantErr)
			continue
		}
		if got != tc.want {
			t.Errorf("answer %q: got %v, want %v", tc.answer, got, tc.want)
		}
	}
}

func TestCheckPersonalDataPropagatesFailure(t *testing.T) {
	r := NewWithModel(&fakeModel{err: errors.New("runtime down")}, zap.NewNop())
	if _, err := r.CheckPersonalData(context.Background(), "text"); err == nil {
		t.Error("flagging failure must propagate, got nil error")
	}
}

func TestIdentifyInstructionType(t *testing.T) {
	cases := []struct {
		answer string
		want   InstructionType
	}{
		{"operation", InstructionOperation},
		{`"Operation"`, InstructionOperation},
		{"default", InstructionDefault},
		{"", InstructionDefault},
		{"smalltalk", InstructionType("smalltalk")},
	}
	for _, tc := range cases {
		r := NewWithModel(&fakeModel{resp: respondWith(tc.answer)}, zap.NewNop())
		got, err := r.IdentifyInstructionType(context.Background(), validConversation())
		if err != nil {
			t.Errorf("answer %q: unexpected error %v", tc.answer, err)
			continue
		}
		if got != tc.want {
			t.Errorf("answer %q: got %q, want %q", tc.answer, got, tc.want)
		}
	}
}

func TestIdentifyInstructionTypePropagatesFailure(t *testing.T) {
	r := NewWithModel(&fakeModel{err: errors.New("runtime down")}, zap.NewNop())
	if _, err := r.IdentifyInstructionType(context.Background(), validConversation()); err == nil {
		t.Error("classification failure must propagate, got nil error")
	}
}

func TestExtractOperationSchema(t *testing.T) {
	r := NewWithModel(&fakeModel{resp: respondWith(`{"operation":"create_invoice","amount":12}`)}, zap.NewNop())

	schema, err := r.ExtractOperationSchema(context.Background(), validConversation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema["operation"] != "create_invoice" {
		t.Errorf("schema = %v, want the extracted operation", schema)
	}
}

func TestExtractOperationSchemaEmptyObjectMeansNone(t *testing.T) {
	r := NewWithModel(&fakeModel{resp: respondWith("{}")}, zap.NewNop())

	schema, err := r.ExtractOperationSchema(context.Background(), validConversation())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if schema != nil {
		t.Errorf("empty object must mean no operation, got %v", schema)
	}
}

func TestExtractOperationSchemaInvalidJSON(t *testing.T) {
	r := NewWithModel(&fakeModel{resp: respondWith("sure, here is the JSON you asked for")}, zap.NewNop())

	if _, err := r.ExtractOperationSchema(context.Background(), validConversation()); err == nil {
		t.Error("non-JSON output must be an error for the strategy to absorb")
	}
}

func TestGenerateWithInstructionNoChoices(t *testing.T) {
	r := NewWithModel(&fakeModel{resp: &llms.ContentResponse{}}, zap.NewNop())

	if _, err := r.GenerateWithInstruction(context.Background(), validConversation(), ""); err == nil {
		t.Error("an empty completion must be an error on the instructed path")
	}
}

func TestCorrectGrammar(t *testing.T) {
	r := NewWithModel(&fakeModel{resp: respondWith("Hello, how are you?")}, zap.NewNop())

	out, err := r.CorrectGrammar(context.Background(), "helo, how r u")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if out != "Hello, how are you?" {
		t.Errorf("CorrectGrammar = %q", out)
	}
}

func TestCorrectGrammarReportsEmptyCompletion(t *testing.T) {
	// Transport failures surface as empty completions on this path; the
	// caller falls back to the raw text.
	r := NewWithModel(&fakeModel{err: errors.New("connection refused")}, zap.NewNop())

	if _, err := r.CorrectGrammar(context.Background(), "helo"); err == nil {
		t.Error("expected an error for an empty completion")
	}
}

func TestInstructPrependsSystemInstruction(t *testing.T) {
	model := &fakeModel{resp: respondWith("fine")}
	r := NewWithModel(model, zap.NewNop())

	if _, err := r.GenerateWithInstruction(context.Background(), validConversation(), "be brief"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(model.calls) != 1 {
		t.Fatalf("expected one model call, got %d", len(model.calls))
	}
	sent := model.calls[0]
	if len(sent) != 2 {
		t.Fatalf("expected system instruction plus one turn, got %d messages", len(sent))
	}
	if sent[0].Role != schema.ChatMessageTypeSystem {
		t.Errorf("first message role = %q, want system", sent[0].Role)
	}
}
