package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/requestdata"
	"github.com/nestplan/nestplan-backend/internal/services"
)

type ChatHandler struct {
	chat services.ChatService
	log  *logger.Logger
}

func NewChatHandler(chat services.ChatService, log *logger.Logger) *ChatHandler {
	return &ChatHandler{chat: chat, log: log.With("handler", "ChatHandler")}
}

// POST /api/chat/messages
// The engine runs in the background; events stream to the user's SSE channel.
// The response carries the thread id so a first message can open the stream.
func (h *ChatHandler) SendMessage(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	var req struct {
		ThreadID      string   `json:"thread_id"`
		Text          string   `json:"text"`
		AttachmentIDs []string `json:"attachment_ids"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if strings.TrimSpace(req.Text) == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "text is required"})
		return
	}

	var threadID uuid.UUID
	if strings.TrimSpace(req.ThreadID) != "" {
		parsed, err := uuid.Parse(req.ThreadID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread_id"})
			return
		}
		if _, err := h.chat.GetThread(c.Request.Context(), userID, parsed); err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
			return
		}
		threadID = parsed
	} else {
		thread, err := h.chat.CreateThread(c.Request.Context(), userID, "", nil)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		threadID = thread.ID
	}

	in := services.SendMessageInput{
		UserID:        userID,
		ThreadID:      &threadID,
		Text:          req.Text,
		AttachmentIDs: req.AttachmentIDs,
	}
	go func() {
		// Detached from the request: the run outlives this HTTP response.
		if _, err := h.chat.SendMessage(context.Background(), in); err != nil {
			h.log.Error("Chat run failed", "thread_id", threadID, "error", err)
		}
	}()

	c.JSON(http.StatusAccepted, gin.H{"thread_id": threadID})
}

// POST /api/chat/threads
func (h *ChatHandler) CreateThread(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	var req struct {
		Title  string `json:"title"`
		RoomID string `json:"room_id"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	var roomID *uuid.UUID
	if strings.TrimSpace(req.RoomID) != "" {
		parsed, err := uuid.Parse(req.RoomID)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room_id"})
			return
		}
		roomID = &parsed
	}
	thread, err := h.chat.CreateThread(c.Request.Context(), userID, req.Title, roomID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"thread": thread})
}

// GET /api/chat/threads
func (h *ChatHandler) ListThreads(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	threads, err := h.chat.ListThreads(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	RespondOK(c, gin.H{"threads": threads})
}

// GET /api/chat/threads/:id
func (h *ChatHandler) GetThread(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}
	thread, err := h.chat.GetThread(c.Request.Context(), userID, threadID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	RespondOK(c, gin.H{"thread": thread})
}

// GET /api/chat/threads/:id/turns
func (h *ChatHandler) ListTurns(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	threadID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid thread id"})
		return
	}
	turns, err := h.chat.ListTurns(c.Request.Context(), userID, threadID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	RespondOK(c, gin.H{"turns": turns})
}
