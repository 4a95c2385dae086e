package agent

import (
	"context"
	"net/http"

	"github.com/bluevi/agent/internal/history"
	"go.uber.org/zap"
)

// Strategy produces the normalized response for a prepared conversation.
type Strategy interface {
	Handle(ctx context.Context, conversation []history.Entry) Response
}

// operationStrategy extracts a structured operation schema and confirms it to
// the user. Every failure on this path, including runtime errors, degrades to
// the OK-status OperationFallback message: a missed operation is recoverable
// conversation flow, not a fault the user should see.
type operationStrategy struct {
	runtime ModelRuntime
	logger  *zap.Logger
}

func (s *operationStrategy) Handle(ctx context.Context, conversation []history.Entry) Response {
	schema, err := s.runtime.ExtractOperationSchema(ctx, conversation)
	if err != nil {
		s.logger.Error("operation schema extraction failed", zap.Error(err))
		return TextResponse(http.StatusOK, OperationFallback)
	}
	if len(schema) == 0 {
		return TextResponse(http.StatusOK, OperationFallback)
	}

	confirmation, err := s.runtime.OperationConfirmation(ctx, conversation)
	if err != nil {
		s.logger.Error("operation confirmation failed", zap.Error(err))
		return TextResponse(http.StatusOK, OperationFallback)
	}
	return OperationResponse(confirmation, schema)
}

// generalStrategy generates a free-form reply. Unlike the operation path, its
// failures surface as internal-error responses carrying the error text.
type generalStrategy struct {
	runtime ModelRuntime
	logger  *zap.Logger
}

func (s *generalStrategy) Handle(ctx context.Context, conversation []history.Entry) Response {
	reply, err := s.runtime.GenerateWithInstruction(ctx, conversation, "")
	if err != nil {
		s.logger.Error("general reply generation failed", zap.Error(err))
		return internalError(err)
	}
	return TextResponse(http.StatusOK, reply)
}
