// Package handler exposes the chat pipeline and the admin surface over HTTP.
package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/orchestrator"
	"github.com/atapcerdas/atapbot/internal/schema"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	Message      string                    `json:"message"`
	History      []schema.ConversationTurn `json:"history,omitempty"`
	TopK         int                       `json:"top_k,omitempty"`
	HasImage     bool                      `json:"has_image,omitempty"`
	FilterDocIDs []string                  `json:"filter_doc_ids,omitempty"`
}

// ChatHandler serves chat queries in three shapes: plain JSON, SSE and
// websocket. All three run the same pipeline.
type ChatHandler struct {
	pipeline *orchestrator.Orchestrator
	logger   *zap.Logger
}

// NewChatHandler creates the chat handler.
func NewChatHandler(pipeline *orchestrator.Orchestrator, logger *zap.Logger) *ChatHandler {
	return &ChatHandler{pipeline: pipeline, logger: logger}
}

// Chat handles POST /api/chat. With ?stream=true the answer is delivered as
// an SSE event sequence instead of a single JSON body.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message must not be empty"})
		return
	}

	oreq := orchestrator.Request{
		Query:        req.Message,
		TopK:         req.TopK,
		HasImage:     req.HasImage,
		FilterDocIDs: req.FilterDocIDs,
		History:      req.History,
	}

	if c.Query("stream") == "true" {
		h.streamChat(c, oreq)
		return
	}

	result, err := h.pipeline.Resolve(c.Request.Context(), oreq)
	if err != nil {
		if errors.Is(err, orchestrator.ErrEmptyQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("query resolution failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, result)
}

// Classify handles POST /api/classify, exposing the intent stage for
// tooling and the admin console.
func (h *ChatHandler) Classify(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message must not be empty"})
		return
	}
	c.JSON(http.StatusOK, h.pipeline.ClassifyIntent(c.Request.Context(), req.Message, req.History))
}

// MatchKnowledge handles POST /api/qa/match, exposing the lexical matcher
// for tooling. A no-match is a 200 with a null match, not an error.
func (h *ChatHandler) MatchKnowledge(c *gin.Context) {
	var req ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.Message == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "message must not be empty"})
		return
	}
	match, err := h.pipeline.MatchKnowledge(c.Request.Context(), req.Message, req.HasImage)
	if err != nil {
		h.logger.Error("knowledge match failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"match": match})
}

// streamChat runs the pipeline in streaming mode, writing each event as an
// SSE frame and flushing after every write.
func (h *ChatHandler) streamChat(c *gin.Context, req orchestrator.Request) {
	c.Writer.Header().Set("Content-Type", "text/event-stream")
	c.Writer.Header().Set("Cache-Control", "no-cache")
	c.Writer.Header().Set("Connection", "keep-alive")

	flusher, ok := c.Writer.(http.Flusher)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "streaming unsupported"})
		return
	}

	emit := func(ev schema.StreamEvent) error {
		data, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(c.Writer, "event: %s\ndata: %s\n\n", ev.Type, data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	}

	if err := h.pipeline.ResolveStream(c.Request.Context(), req, emit); err != nil {
		h.logger.Error("streaming resolution failed", zap.Error(err))
		// Best effort: the stream may be mid-flight, so errors ride the
		// event channel rather than the status line.
		_ = emit(schema.StreamEvent{Type: schema.EventError, Text: "internal error"})
	}
}
