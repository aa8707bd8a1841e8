package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/surya-d-naidu/HealthCareBot/conversation"
	"github.com/surya-d-naidu/HealthCareBot/modelapi"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

const genericError = "An error occurred while processing your request"

// ChatRequest is the body of both chat endpoints.
type ChatRequest struct {
	ConversationID string `json:"conversationId,omitempty"`
	Topic          string `json:"topic"`
	UserMessage    string `json:"userMessage"`
	// Image is a data URL or bare base64 payload.
	Image string `json:"image,omitempty"`
}

type ChatResponse struct {
	Result         string                           `json:"result"`
	Emergency      bool                             `json:"emergency"`
	Resources      *conversation.EmergencyResources `json:"resources,omitempty"`
	ConversationID string                           `json:"conversationId"`
	Timestamp      string                           `json:"timestamp"`
	Escalated      bool                             `json:"escalated,omitempty"`
	Stage          string                           `json:"stage,omitempty"`
	Error          string                           `json:"error,omitempty"`
}

type TopicResponse struct {
	Topic     conversation.Topic `json:"topic"`
	Questions []string           `json:"questions"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleTopics(w http.ResponseWriter, r *http.Request) {
	scripts := s.engine.Scripts()
	topics := make([]TopicResponse, 0, len(conversation.Topics))
	for _, t := range conversation.Topics {
		topics = append(topics, TopicResponse{Topic: t, Questions: scripts.Questions(t)})
	}
	writeJSON(w, http.StatusOK, topics)
}

// decodeTurn reads and validates a chat body. A missing conversation id gets
// a fresh one.
func (s *Server) decodeTurn(w http.ResponseWriter, r *http.Request) (conversation.TurnRequest, error) {
	var body ChatRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(&body); err != nil {
		return conversation.TurnRequest{}, fmt.Errorf("%w: malformed body: %w", conversation.ErrInvalidInput, err)
	}

	topic, err := conversation.ParseTopic(body.Topic)
	if err != nil {
		return conversation.TurnRequest{}, err
	}
	if body.ConversationID == "" {
		body.ConversationID = uuid.NewString()
	}

	return conversation.TurnRequest{
		ConversationID: body.ConversationID,
		Topic:          topic,
		Message:        body.UserMessage,
		Image:          body.Image,
	}, nil
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	tracer := otel.Tracer("httpapi/handleChat")
	ctx, span := tracer.Start(r.Context(), "handleChat")
	defer span.End()

	req, err := s.decodeTurn(w, r)
	if err != nil {
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	span.SetAttributes(
		attribute.String("conversation.id", req.ConversationID),
		attribute.String("conversation.topic", string(req.Topic)),
	)

	reply, err := s.engine.Turn(ctx, req)
	if err != nil {
		span.RecordError(err)
		status := statusFor(err)
		s.logger.Logger(ctx).Error("[HTTP] Turn failed", zap.Error(err), zap.Int("status", status))
		if status == http.StatusBadRequest {
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
		writeJSON(w, status, ChatResponse{
			Result:         modelapi.APOLOGY_MESSAGE,
			ConversationID: req.ConversationID,
			Timestamp:      s.now().UTC().Format(time.RFC3339),
			Error:          genericError,
		})
		return
	}

	writeJSON(w, http.StatusOK, toResponse(reply))
}

func (s *Server) handleChatStream(w http.ResponseWriter, r *http.Request) {
	tracer := otel.Tracer("httpapi/handleChatStream")
	ctx, span := tracer.Start(r.Context(), "handleChatStream")
	defer span.End()

	req, err := s.decodeTurn(w, r)
	if err != nil {
		span.RecordError(err)
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	span.SetAttributes(attribute.String("conversation.id", req.ConversationID))

	sse, err := newSSEWriter(w)
	if err != nil {
		span.RecordError(err)
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: genericError})
		return
	}

	reply, err := s.engine.TurnStream(ctx, req, sse.Data)
	if err != nil {
		span.RecordError(err)
		status := statusFor(err)
		s.logger.Logger(ctx).Error("[HTTP] Streamed turn failed", zap.Error(err), zap.Bool("started", sse.Started()))
		// Nothing sent yet: a plain JSON error is still possible.
		if !sse.Started() && status == http.StatusBadRequest {
			writeJSON(w, status, errorResponse{Error: err.Error()})
			return
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, conversation.ErrRelayAborted) {
			return
		}
		_ = sse.Event("error", modelapi.APOLOGY_MESSAGE)
		return
	}

	meta, err := json.Marshal(toResponse(reply))
	if err != nil {
		s.logger.Logger(ctx).Error("[HTTP] Could not encode stream metadata", zap.Error(err))
		return
	}
	if err := sse.Event("meta", string(meta)); err != nil {
		s.logger.Logger(ctx).Warn("[HTTP] Client went away before metadata", zap.Error(err))
	}
}

func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.engine.Snapshot(chi.URLParam(r, "id"))
	if !ok {
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "conversation not found"})
		return
	}
	writeJSON(w, http.StatusOK, sess)
}

func (s *Server) handleClearConversation(w http.ResponseWriter, r *http.Request) {
	s.engine.Clear(r.Context(), chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

func toResponse(reply *conversation.Reply) ChatResponse {
	return ChatResponse{
		Result:         reply.Text,
		Emergency:      reply.Emergency,
		Resources:      reply.Resources,
		ConversationID: reply.ConversationID,
		Timestamp:      reply.Timestamp.UTC().Format(time.RFC3339),
		Escalated:      reply.Escalated,
		Stage:          reply.Stage.String(),
	}
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, conversation.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, conversation.ErrGatewayFailure):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	case errors.Is(err, context.Canceled):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
