package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/requestdata"
	"github.com/nestplan/nestplan-backend/internal/services"
)

type StyleHandler struct {
	styles services.StyleService
}

func NewStyleHandler(styles services.StyleService) *StyleHandler {
	return &StyleHandler{styles: styles}
}

// POST /api/styles
func (h *StyleHandler) Create(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	var req struct {
		Name    string         `json:"name"`
		Palette map[string]any `json:"palette"`
		Tags    []string       `json:"tags"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	style, err := h.styles.Create(c.Request.Context(), userID, services.CreateStyleInput{
		Name:    req.Name,
		Palette: req.Palette,
		Tags:    req.Tags,
	})
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"style": style})
}

// GET /api/styles
func (h *StyleHandler) List(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	styles, err := h.styles.ListByUser(c.Request.Context(), userID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	RespondOK(c, gin.H{"styles": styles})
}

// GET /api/styles/:id
func (h *StyleHandler) Get(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	styleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid style id"})
		return
	}
	style, err := h.styles.GetByID(c.Request.Context(), userID, styleID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
		return
	}
	RespondOK(c, gin.H{"style": style})
}

// DELETE /api/styles/:id
func (h *StyleHandler) Delete(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	styleID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid style id"})
		return
	}
	if err := h.styles.Delete(c.Request.Context(), userID, styleID); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	RespondOK(c, gin.H{"deleted": true})
}
