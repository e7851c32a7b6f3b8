package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/requestdata"
	"github.com/nestplan/nestplan-backend/internal/services"
)

type RoomHandler struct {
	rooms services.RoomService
}

func NewRoomHandler(rooms services.RoomService) *RoomHandler {
	return &RoomHandler{rooms: rooms}
}

// POST /api/rooms
func (h *RoomHandler) Create(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	var req struct {
		Name       string         `json:"name"`
		Kind       string         `json:"kind"`
		Dimensions map[string]any `json:"dimensions"`
		Notes      string         `json:"notes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	room, err := h.rooms.Create(c.Request.Context(), userID, services.CreateRoomInput{
		Name:       req.Name,
		Kind:       req.Kind,
		Dimensions: req.Dimensions,
		Notes:      req.Notes,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"room": room})
}

// GET /api/rooms
func (h *RoomHandler) List(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	rooms, err := h.rooms.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	RespondOK(c, gin.H{"rooms": rooms})
}

// GET /api/rooms/:id
func (h *RoomHandler) Get(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	room, err := h.rooms.GetByID(c.Request.Context(), userID, roomID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	RespondOK(c, gin.H{"room": room})
}

// PATCH /api/rooms/:id
func (h *RoomHandler) Update(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	var updates map[string]interface{}
	if err := c.ShouldBindJSON(&updates); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	room, err := h.rooms.Update(c.Request.Context(), userID, roomID, updates)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	RespondOK(c, gin.H{"room": room})
}

// DELETE /api/rooms/:id
func (h *RoomHandler) Delete(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	roomID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid room id"})
		return
	}
	if err := h.rooms.Delete(c.Request.Context(), userID, roomID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
