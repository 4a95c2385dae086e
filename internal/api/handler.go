// Package api is the HTTP transport: a thin adapter between JSON requests and
// the conversation agent.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/bluevi/agent/internal/agent"
	"github.com/bluevi/agent/internal/models"
	"go.uber.org/zap"
)

// ConversationAgent handles one incoming message end to end.
type ConversationAgent interface {
	HandleConversation(ctx context.Context, msg models.Message) agent.Response
}

// Runtime is the slice of the model runtime the transport uses directly.
type Runtime interface {
	CorrectGrammar(ctx context.Context, text string) (string, error)
	Anonymize(ctx context.Context, text string) (string, error)
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Store is the persistence surface of the transport layer.
type Store interface {
	SaveMessage(ctx context.Context, msg *models.Message) error
	SaveMessageVector(ctx context.Context, messageID int64, embedding []float32) error
	CreateUser(ctx context.Context) (*models.User, error)
	CreateConversation(ctx context.Context, userID int64) (*models.Conversation, error)
	Conversations(ctx context.Context) ([]models.Conversation, error)
	MessagesByConversation(ctx context.Context, conversationID int64, limit int) ([]models.Message, error)
	EndConversation(ctx context.Context, conversationID int64) error
}

type Handler struct {
	store      Store
	agent      ConversationAgent
	runtime    Runtime
	logger     *zap.Logger
	embeddings bool
}

func NewHandler(store Store, conversationAgent ConversationAgent, runtime Runtime, logger *zap.Logger, embeddings bool) *Handler {
	return &Handler{
		store:      store,
		agent:      conversationAgent,
		runtime:    runtime,
		logger:     logger,
		embeddings: embeddings,
	}
}

type ChatRequest struct {
	Prompt         string `json:"prompt"`
	ConversationID int64  `json:"conversation_id,omitempty"`
}

type ChatResponse struct {
	Response       string         `json:"response"`
	ConversationID int64          `json:"conversation_id,omitempty"`
	DynamicJSON    map[string]any `json:"dynamic_json,omitempty"`
}

func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ChatRequest
	_ = json.NewDecoder(r.Body).Decode(&req)

	prompt := strings.TrimSpace(req.Prompt)
	if prompt == "" {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Response: "No input provided."})
		return
	}

	// Normalize the prompt before orchestration; a failed correction falls
	// back to the raw input.
	corrected, err := h.runtime.CorrectGrammar(r.Context(), prompt)
	if err != nil || strings.TrimSpace(corrected) == "" {
		h.logger.Warn("grammar correction failed, using raw prompt", zap.Error(err))
		corrected = prompt
	}

	conversationID := req.ConversationID
	if conversationID == 0 {
		user, err := h.store.CreateUser(r.Context())
		if err != nil {
			h.internalError(w, "failed to create user", err)
			return
		}
		conv, err := h.store.CreateConversation(r.Context(), user.ID)
		if err != nil {
			h.internalError(w, "failed to create conversation", err)
			return
		}
		conversationID = conv.ID
	}

	userMsg := &models.Message{
		ConversationID: conversationID,
		Role:           models.RoleUser,
		Content:        corrected,
		Type:           models.MessagePrompt,
	}
	if err := h.store.SaveMessage(r.Context(), userMsg); err != nil {
		h.internalError(w, "failed to save user message", err)
		return
	}
	h.saveEmbedding(r.Context(), userMsg)

	resp := h.agent.HandleConversation(r.Context(), *userMsg)

	if resp.Status == http.StatusOK && resp.Response != "" {
		reply := &models.Message{
			ConversationID: conversationID,
			Role:           models.RoleAssistant,
			Content:        resp.Response,
			Type:           models.MessageResponse,
		}
		// The user already has their answer; a failed reply write costs
		// history, not the response.
		if err := h.store.SaveMessage(r.Context(), reply); err != nil {
			h.logger.Error("failed to save assistant message", zap.Error(err),
				zap.Int64("conversation_id", conversationID))
		} else {
			h.saveEmbedding(r.Context(), reply)
		}
	}

	writeJSON(w, resp.Status, ChatResponse{
		Response:       resp.Response,
		ConversationID: conversationID,
		DynamicJSON:    resp.DynamicJSON,
	})
}

func (h *Handler) saveEmbedding(ctx context.Context, msg *models.Message) {
	if !h.embeddings {
		return
	}
	vector, err := h.runtime.Embed(ctx, msg.Content)
	if err != nil {
		h.logger.Warn("failed to embed message", zap.Error(err), zap.Int64("message_id", msg.ID))
		return
	}
	if err := h.store.SaveMessageVector(ctx, msg.ID, vector); err != nil {
		h.logger.Warn("failed to store message vector", zap.Error(err), zap.Int64("message_id", msg.ID))
	}
}

type AnonymizeRequest struct {
	Text string `json:"text"`
}

func (h *Handler) HandleAnonymize(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req AnonymizeRequest
	_ = json.NewDecoder(r.Body).Decode(&req)
	if strings.TrimSpace(req.Text) == "" {
		writeJSON(w, http.StatusBadRequest, ChatResponse{Response: "No input provided."})
		return
	}

	anonymized, err := h.runtime.Anonymize(r.Context(), req.Text)
	if err != nil {
		h.internalError(w, "anonymization failed", err)
		return
	}
	writeJSON(w, http.StatusOK, ChatResponse{Response: anonymized})
}

type CreateConversationRequest struct {
	UserID int64 `json:"user_id,omitempty"`
}

func (h *Handler) HandleConversations(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		conversations, err := h.store.Conversations(r.Context())
		if err != nil {
			h.internalError(w, "failed to list conversations", err)
			return
		}
		writeJSON(w, http.StatusOK, conversations)

	case http.MethodPost:
		var req CreateConversationRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		userID := req.UserID
		if userID == 0 {
			user, err := h.store.CreateUser(r.Context())
			if err != nil {
				h.internalError(w, "failed to create user", err)
				return
			}
			userID = user.ID
		}
		conversation, err := h.store.CreateConversation(r.Context(), userID)
		if err != nil {
			h.internalError(w, "failed to create conversation", err)
			return
		}
		writeJSON(w, http.StatusOK, conversation)

	default:
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	}
}

func (h *Handler) HandleMessages(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	conversationID, err := strconv.ParseInt(r.URL.Query().Get("conversation_id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	messages, err := h.store.MessagesByConversation(r.Context(), conversationID, 0)
	if err != nil {
		h.internalError(w, "failed to list messages", err)
		return
	}
	writeJSON(w, http.StatusOK, messages)
}

type EndConversationRequest struct {
	ConversationID int64 `json:"conversation_id"`
}

func (h *Handler) HandleEndConversation(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req EndConversationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.ConversationID == 0 {
		http.Error(w, "Invalid conversation ID", http.StatusBadRequest)
		return
	}

	if err := h.store.EndConversation(r.Context(), req.ConversationID); err != nil {
		h.internalError(w, "failed to end conversation", err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h *Handler) internalError(w http.ResponseWriter, msg string, err error) {
	h.logger.Error(msg, zap.Error(err))
	writeJSON(w, http.StatusInternalServerError,
		ChatResponse{Response: fmt.Sprintf("An error occurred: %v", err)})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
