package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/atapcerdas/atapbot/internal/schema"
	"github.com/atapcerdas/atapbot/internal/store"
)

// AdminHandler serves the back-office surface: Q&A curation, the document
// catalog, query logs and contact settings.
type AdminHandler struct {
	store  *store.Store
	logger *zap.Logger
}

// NewAdminHandler creates the admin handler.
func NewAdminHandler(st *store.Store, logger *zap.Logger) *AdminHandler {
	return &AdminHandler{store: st, logger: logger}
}

// ListQA handles GET /api/admin/qa.
func (h *AdminHandler) ListQA(c *gin.Context) {
	entries, err := h.store.ListQAEntries(c.Request.Context())
	if err != nil {
		h.logger.Error("list qa entries failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": entries})
}

// CreateQA handles POST /api/admin/qa.
func (h *AdminHandler) CreateQA(c *gin.Context) {
	var e schema.QAEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if e.Question == "" || e.Answer == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "question and answer are required"})
		return
	}
	created, err := h.store.CreateQAEntry(c.Request.Context(), e)
	if err != nil {
		h.logger.Error("create qa entry failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusCreated, created)
}

// UpdateQA handles PUT /api/admin/qa/:id.
func (h *AdminHandler) UpdateQA(c *gin.Context) {
	var e schema.QAEntry
	if err := c.ShouldBindJSON(&e); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	e.ID = c.Param("id")
	if err := h.store.UpdateQAEntry(c.Request.Context(), e); err != nil {
		h.logger.Error("update qa entry failed", zap.String("id", e.ID), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// DeleteQA handles DELETE /api/admin/qa/:id.
func (h *AdminHandler) DeleteQA(c *gin.Context) {
	id := c.Param("id")
	if err := h.store.DeleteQAEntry(c.Request.Context(), id); err != nil {
		h.logger.Error("delete qa entry failed", zap.String("id", id), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// ListDocuments handles GET /api/admin/documents.
func (h *AdminHandler) ListDocuments(c *gin.Context) {
	docs, err := h.store.ListDocuments(c.Request.Context())
	if err != nil {
		h.logger.Error("list documents failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"documents": docs})
}

// ListQueryLogs handles GET /api/admin/logs?limit=N.
func (h *AdminHandler) ListQueryLogs(c *gin.Context) {
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
			return
		}
		limit = n
	}
	logs, err := h.store.ListQueryLogs(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("list query logs failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"logs": logs})
}

// GetContacts handles GET /api/admin/contacts.
func (h *AdminHandler) GetContacts(c *gin.Context) {
	contacts, err := h.store.GetContactSettings(c.Request.Context())
	if err != nil {
		// Defaults are still returned; the caller sees a usable value.
		h.logger.Warn("contact settings lookup failed", zap.Error(err))
	}
	c.JSON(http.StatusOK, contacts)
}

// SetContact handles PUT /api/admin/contacts.
func (h *AdminHandler) SetContact(c *gin.Context) {
	var req struct {
		Key   string `json:"key"`
		Value string `json:"value"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if req.Key == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "key is required"})
		return
	}
	if err := h.store.SetContactSetting(c.Request.Context(), req.Key, req.Value); err != nil {
		h.logger.Error("set contact setting failed", zap.String("key", req.Key), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Health handles GET /health.
func (h *AdminHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "UP"})
}
