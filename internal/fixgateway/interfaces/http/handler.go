// Package http exposes the admin surface over the fix session engine:
// session listing/status and the operator actions spec §7 calls for
// (forced logout, resend, test request) plus recent message lookup.
package http

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/wyfcoding/fixsession/internal/fixgateway/application"
	"github.com/wyfcoding/fixsession/pkg/logger"
)

// SessionHandler serves the fixgateway admin API over FixApplicationService.
type SessionHandler struct {
	svc *application.FixApplicationService
}

func NewSessionHandler(svc *application.FixApplicationService) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// RegisterRoutes wires the admin endpoints under /api/v1/fix/sessions.
func (h *SessionHandler) RegisterRoutes(router *gin.RouterGroup) {
	api := router.Group("/api/v1/fix/sessions")
	{
		api.GET("", h.ListSessions)
		api.GET("/:id", h.GetSession)
		api.GET("/:id/messages", h.GetMessages)
		api.POST("/:id/logout", h.ForceLogout)
		api.POST("/:id/resend", h.ForceResendRequest)
		api.POST("/:id/test-request", h.ForceTestRequest)
	}
}

func (h *SessionHandler) ListSessions(c *gin.Context) {
	sessions, err := h.svc.ListActiveSessions(c.Request.Context())
	if err != nil {
		logger.Error(c.Request.Context(), "failed to list active sessions", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

func (h *SessionHandler) GetSession(c *gin.Context) {
	id := c.Param("id")
	session, err := h.svc.GetSession(c.Request.Context(), id)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get session", "session", id, "error", err)
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *SessionHandler) GetMessages(c *gin.Context) {
	id := c.Param("id")
	limit := 100
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}
	messages, err := h.svc.GetMessages(c.Request.Context(), id, limit)
	if err != nil {
		logger.Error(c.Request.Context(), "failed to get messages", "session", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"messages": messages})
}

type forceLogoutRequest struct {
	Reason string `json:"reason"`
}

func (h *SessionHandler) ForceLogout(c *gin.Context) {
	id := c.Param("id")
	var req forceLogoutRequest
	_ = c.ShouldBindJSON(&req)
	if req.Reason == "" {
		req.Reason = "operator requested logout"
	}
	if err := h.svc.ForceLogout(c.Request.Context(), id, req.Reason); err != nil {
		logger.Error(c.Request.Context(), "failed to force logout", "session", id, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "logout_sent", "session_id": id})
}

type forceResendRequest struct {
	BeginSeq int `json:"begin_seq" binding:"required"`
	EndSeq   int `json:"end_seq"`
}

func (h *SessionHandler) ForceResendRequest(c *gin.Context) {
	id := c.Param("id")
	var req forceResendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := h.svc.ForceResendRequest(c.Request.Context(), id, req.BeginSeq, req.EndSeq); err != nil {
		logger.Error(c.Request.Context(), "failed to force resend request", "session", id, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "resend_request_sent", "session_id": id})
}

type forceTestRequestBody struct {
	TestReqID string `json:"test_req_id"`
}

func (h *SessionHandler) ForceTestRequest(c *gin.Context) {
	id := c.Param("id")
	var req forceTestRequestBody
	_ = c.ShouldBindJSON(&req)
	if err := h.svc.ForceTestRequest(c.Request.Context(), id, req.TestReqID); err != nil {
		logger.Error(c.Request.Context(), "failed to force test request", "session", id, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "test_request_sent", "session_id": id})
}
