// Package handler exposes the voice pipeline over HTTP for the app shell.
package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/deca/lifetrack-voice/internal/capture"
	"github.com/deca/lifetrack-voice/internal/history"
	"github.com/deca/lifetrack-voice/internal/nlu"
	"github.com/deca/lifetrack-voice/internal/session"
)

// Handler handles HTTP requests.
type Handler struct {
	controller *session.Controller
	history    *history.Manager
}

// NewHandler creates a new handler.
func NewHandler(controller *session.Controller, hist *history.Manager) *Handler {
	return &Handler{controller: controller, history: hist}
}

// HealthCheck reports service liveness.
func (h *Handler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":  "ok",
		"service": "lifetrack-voice",
	})
}

// StartVoice begins a capture session.
func (h *Handler) StartVoice(c *gin.Context) {
	log.Println("Received voice start request")

	if err := h.controller.Start(c.Request.Context()); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, capture.ErrPermissionDenied) {
			status = http.StatusForbidden
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   h.controller.State(),
	})
}

// StopVoice finalizes the capture and returns the run summary.
func (h *Handler) StopVoice(c *gin.Context) {
	log.Println("Received voice stop request")

	summary, err := h.controller.Stop(c.Request.Context())
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, nlu.ErrPollTimeout) {
			status = http.StatusGatewayTimeout
		}
		c.JSON(status, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	if summary == nil {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error":   "no active voice session",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": summary,
	})
}

// CancelVoice abandons the current session without executing anything.
func (h *Handler) CancelVoice(c *gin.Context) {
	h.controller.Cancel()
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"state":   h.controller.State(),
	})
}

// VoiceStatus reports the session state and any partial transcript.
func (h *Handler) VoiceStatus(c *gin.Context) {
	resp := gin.H{
		"state":      h.controller.State(),
		"transcript": h.controller.Transcript(),
	}
	if summary := h.controller.LastSummary(); summary != nil {
		resp["lastSummary"] = summary
	}
	c.JSON(http.StatusOK, resp)
}

// TextCommand runs a typed command through understanding and execution,
// skipping capture entirely.
func (h *Handler) TextCommand(c *gin.Context) {
	var req struct {
		Text string `json:"text" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "text field is required",
		})
		return
	}

	summary, err := h.controller.RunTranscript(c.Request.Context(), req.Text)
	if err != nil {
		log.Printf("Text command failed: %v", err)
		c.JSON(http.StatusBadGateway, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"summary": summary,
	})
}

// History returns recent voice runs, newest first.
func (h *Handler) History(c *gin.Context) {
	limit := 20
	if raw := c.Query("limit"); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 {
			limit = n
		}
	}

	c.JSON(http.StatusOK, gin.H{
		"records": h.history.Recent(limit),
	})
}

// ClearHistory drops every stored run record.
func (h *Handler) ClearHistory(c *gin.Context) {
	if err := h.history.Clear(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error":   err.Error(),
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"success": true})
}
