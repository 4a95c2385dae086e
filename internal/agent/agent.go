// Package agent is the conversation orchestrator: it assembles a bounded
// history window for an incoming message, flags personal data, classifies the
// conversation's intent and dispatches to a response strategy.
package agent

import (
	"context"
	"fmt"

	"github.com/bluevi/agent/internal/history"
	"github.com/bluevi/agent/internal/llm"
	"github.com/bluevi/agent/internal/models"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// DefaultWindowSize bounds how many recent messages are considered before
// token trimming.
const DefaultWindowSize = 20

// HistoryStore is the persistence the agent needs: reading a conversation's
// messages and marking one as containing personal data. Implementations must
// be safe for concurrent use.
type HistoryStore interface {
	MessagesByConversation(ctx context.Context, conversationID int64, limit int) ([]models.Message, error)
	FlagMessage(ctx context.Context, messageID int64) error
}

// ModelRuntime is the slice of the model runtime the agent and its strategies
// depend on.
type ModelRuntime interface {
	CheckPersonalData(ctx context.Context, text string) (bool, error)
	IdentifyInstructionType(ctx context.Context, conversation []history.Entry) (llm.InstructionType, error)
	ExtractOperationSchema(ctx context.Context, conversation []history.Entry) (map[string]any, error)
	OperationConfirmation(ctx context.Context, conversation []history.Entry) (string, error)
	GenerateWithInstruction(ctx context.Context, conversation []history.Entry, instruction string) (string, error)
}

type Agent struct {
	runtime    ModelRuntime
	store      HistoryStore
	logger     *zap.Logger
	windowSize int
	budget     int
	counter    history.TokenCounter
	operation  Strategy
	general    Strategy
}

type Option func(*Agent)

// WithWindowSize sets how many recent messages are fetched per request.
func WithWindowSize(n int) Option {
	return func(a *Agent) { a.windowSize = n }
}

// WithTokenBudget sets the approximate token budget for the history window.
func WithTokenBudget(budget int) Option {
	return func(a *Agent) { a.budget = budget }
}

// WithTokenCounter overrides the word-count token approximation.
func WithTokenCounter(count history.TokenCounter) Option {
	return func(a *Agent) { a.counter = count }
}

// WithStrategies replaces the response strategies; tests use this to observe
// dispatch.
func WithStrategies(operation, general Strategy) Option {
	return func(a *Agent) {
		a.operation = operation
		a.general = general
	}
}

func New(runtime ModelRuntime, store HistoryStore, logger *zap.Logger, opts ...Option) *Agent {
	a := &Agent{
		runtime:    runtime,
		store:      store,
		logger:     logger,
		windowSize: DefaultWindowSize,
		budget:     history.DefaultTokenBudget,
		counter:    history.WordCount,
	}
	a.operation = &operationStrategy{runtime: runtime, logger: logger}
	a.general = &generalStrategy{runtime: runtime, logger: logger}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// HandleConversation runs the full pipeline for one incoming message:
// preprocess (concurrent personal-data flagging and history retrieval),
// classify, dispatch. It always returns a well-formed Response; failures
// outside the strategies become internal-error responses, never panics or
// raw errors.
func (a *Agent) HandleConversation(ctx context.Context, msg models.Message) (resp Response) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic while handling conversation", zap.Any("panic", r))
			resp = internalError(fmt.Errorf("unexpected failure: %v", r))
		}
	}()

	conversation, err := a.preprocess(ctx, msg)
	if err != nil {
		a.logger.Error("preprocessing failed", zap.Error(err),
			zap.Int64("conversation_id", msg.ConversationID))
		return internalError(err)
	}

	instructionType, err := a.runtime.IdentifyInstructionType(ctx, conversation)
	if err != nil {
		a.logger.Error("instruction classification failed", zap.Error(err),
			zap.Int64("conversation_id", msg.ConversationID))
		return internalError(err)
	}
	a.logger.Info("instruction type identified",
		zap.String("instruction_type", string(instructionType)),
		zap.Int64("conversation_id", msg.ConversationID))

	// Anything that is not an operation request, including unrecognized
	// classifier output, is general conversation.
	if instructionType == llm.InstructionOperation {
		return a.operation.Handle(ctx, conversation)
	}
	return a.general.Handle(ctx, conversation)
}

// preprocess runs personal-data flagging and history retrieval concurrently,
// then marks the message in the store when flagged and returns the trimmed
// history window. Both tasks must finish before the request proceeds.
func (a *Agent) preprocess(ctx context.Context, msg models.Message) ([]history.Entry, error) {
	var (
		flagged bool
		recent  []models.Message
	)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		var err error
		flagged, err = a.runtime.CheckPersonalData(gctx, msg.Content)
		return err
	})
	g.Go(func() error {
		var err error
		recent, err = a.store.MessagesByConversation(gctx, msg.ConversationID, a.windowSize)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if flagged {
		if err := a.store.FlagMessage(ctx, msg.ID); err != nil {
			return nil, fmt.Errorf("failed to flag message %d: %w", msg.ID, err)
		}
		a.logger.Info("message flagged for personal data", zap.Int64("message_id", msg.ID))
	}

	entries := history.FormatMessages(history.FromMessages(recent), a.logger)
	return history.TrimToBudget(entries, a.budget, a.counter), nil
}
