package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/requestdata"
	"github.com/nestplan/nestplan-backend/internal/services"
)

type UploadHandler struct {
	assets services.AssetService
	jobs   services.JobService
	log    *logger.Logger
}

func NewUploadHandler(assets services.AssetService, jobs services.JobService, log *logger.Logger) *UploadHandler {
	return &UploadHandler{assets: assets, jobs: jobs, log: log.With("handler", "UploadHandler")}
}

// POST /api/uploads
func (h *UploadHandler) CreateSignedUpload(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	var req struct {
		Filename    string `json:"filename"`
		ContentType string `json:"content_type"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	upload, err := h.assets.CreateSignedUpload(c.Request.Context(), userID, req.Filename, req.ContentType)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"upload": upload})
}

// POST /api/uploads/:id/confirm
// Confirming an upload kicks off the optimize job; a failed kick-off does not
// fail the confirmation.
func (h *UploadHandler) ConfirmUpload(c *gin.Context) {
	userID := requestdata.UserID(c.Request.Context())
	assetID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid asset id"})
		return
	}
	var req struct {
		SizeBytes int64 `json:"size_bytes"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	if err := h.assets.ConfirmUpload(c.Request.Context(), userID, assetID, req.SizeBytes); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var jobID *uuid.UUID
	if job, jErr := h.jobs.EnqueueOptimizeImage(c.Request.Context(), userID, assetID); jErr != nil {
		h.log.Warn("Optimize job not enqueued", "asset_id", assetID, "error", jErr)
	} else {
		jobID = &job.ID
	}

	RespondOK(c, gin.H{"confirmed": true, "optimize_job_id": jobID})
}
