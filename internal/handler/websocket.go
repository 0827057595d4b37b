package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/orchestrator"
	"github.com/atapcerdas/atapbot/internal/schema"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		// TODO: restrict to the storefront origin once it is fixed
		return true
	},
}

// wsRequest is one inbound chat frame.
type wsRequest struct {
	Message      string                    `json:"message"`
	History      []schema.ConversationTurn `json:"history,omitempty"`
	TopK         int                       `json:"top_k,omitempty"`
	HasImage     bool                      `json:"has_image,omitempty"`
	FilterDocIDs []string                  `json:"filter_doc_ids,omitempty"`
}

// WebSocketHandler serves the chat pipeline over a websocket. Each inbound
// frame is one query; the reply is the same event sequence the SSE endpoint
// produces, delivered as JSON frames.
type WebSocketHandler struct {
	pipeline *orchestrator.Orchestrator
	logger   *zap.Logger
}

// NewWebSocketHandler creates the websocket handler.
func NewWebSocketHandler(pipeline *orchestrator.Orchestrator, logger *zap.Logger) *WebSocketHandler {
	return &WebSocketHandler{pipeline: pipeline, logger: logger}
}

// Handle upgrades the connection and serves queries until the peer closes.
func (h *WebSocketHandler) Handle(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.logger.Error("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	connID := uuid.New().String()
	h.logger.Info("websocket connected",
		zap.String("connId", connID),
		zap.String("clientIp", c.ClientIP()))

	for {
		var req wsRequest
		if err := conn.ReadJSON(&req); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.logger.Warn("websocket read failed", zap.String("connId", connID), zap.Error(err))
			}
			break
		}
		h.serveQuery(c, conn, req)
	}

	h.logger.Info("websocket disconnected", zap.String("connId", connID))
}

func (h *WebSocketHandler) serveQuery(c *gin.Context, conn *websocket.Conn, req wsRequest) {
	if req.Message == "" {
		_ = conn.WriteJSON(schema.StreamEvent{Type: schema.EventError, Text: "message must not be empty"})
		return
	}

	err := h.pipeline.ResolveStream(c.Request.Context(), orchestrator.Request{
		Query:        req.Message,
		TopK:         req.TopK,
		HasImage:     req.HasImage,
		FilterDocIDs: req.FilterDocIDs,
		History:      req.History,
	}, func(ev schema.StreamEvent) error {
		return conn.WriteJSON(ev)
	})
	if err != nil {
		h.logger.Error("websocket query failed", zap.Error(err))
		_ = conn.WriteJSON(schema.StreamEvent{Type: schema.EventError, Text: "internal error"})
	}
}
