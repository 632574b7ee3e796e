package handlers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"golang-object-generation/internal/config"
	"golang-object-generation/internal/models"
	"golang-object-generation/internal/services/generation"
)

const defaultWaitTimeout = 30 * time.Second

type ObjectHandler struct {
	registry *generation.Registry
	logger   *logrus.Logger
	cfg      *config.Config
}

func NewObjectHandler(registry *generation.Registry, logger *logrus.Logger, cfg *config.Config) *ObjectHandler {
	return &ObjectHandler{
		registry: registry,
		logger:   logger,
		cfg:      cfg,
	}
}

// HealthCheck handles GET /health
func (h *ObjectHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"timestamp": time.Now().Format(time.RFC3339),
		"service":   "object-generation",
	})
}

// CreateGeneration handles POST /obj-dsgn/generations
func (h *ObjectHandler) CreateGeneration(c *gin.Context) {
	var req models.CreateGenerationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, models.APIResponse{Success: false, Error: err.Error()})
		return
	}

	entity, err := h.registry.Submit(c.Request.Context(), req)
	if err != nil {
		h.logger.WithError(err).Error("Failed to submit generation")
		c.JSON(http.StatusInternalServerError, models.APIResponse{Success: false, Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: gin.H{
		"id":      entity.ID,
		"version": entity.Version,
		"name":    entity.Name,
	}})
}

// GetObject handles GET /obj-dsgn/objects/:id with optional long-poll
// (?wait=true&timeout_sec=N).
func (h *ObjectHandler) GetObject(c *gin.Context) {
	taskID := c.Param("id")

	var (
		state *models.ObjectStateView
		err   error
	)
	if c.Query("wait") == "true" {
		timeout := defaultWaitTimeout
		if raw := c.Query("timeout_sec"); raw != "" {
			if sec, parseErr := strconv.Atoi(raw); parseErr == nil && sec > 0 {
				timeout = time.Duration(sec) * time.Second
			}
		}
		state, err = h.registry.WaitForState(c.Request.Context(), taskID, timeout)
	} else {
		state, err = h.registry.GetState(c.Request.Context(), taskID)
	}

	if err != nil {
		h.respondError(c, err, "Failed to get object state")
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Success: true, Data: state})
}

// CancelGeneration handles POST /obj-dsgn/objects/:id/cancel
func (h *ObjectHandler) CancelGeneration(c *gin.Context) {
	if err := h.registry.Cancel(c.Param("id")); err != nil {
		h.respondError(c, err, "Failed to cancel generation")
		return
	}
	c.JSON(http.StatusOK, models.APIResponse{Success: true})
}

// GetVersionContent handles GET /obj-dsgn/objects/:id/versions/:version/content
func (h *ObjectHandler) GetVersionContent(c *gin.Context) {
	content, mimeType, err := h.registry.ResultContent(c.Request.Context(), c.Param("id"), c.Param("version"))
	if err != nil {
		h.respondError(c, err, "Failed to get version content")
		return
	}
	if mimeType == "" {
		mimeType = models.MimeTypeGLB
	}
	c.Data(http.StatusOK, mimeType, content)
}

// GetVersionCode handles GET /obj-dsgn/objects/:id/versions/:version/code
func (h *ObjectHandler) GetVersionCode(c *gin.Context) {
	code, err := h.registry.ResultCode(c.Request.Context(), c.Param("id"), c.Param("version"))
	if err != nil {
		h.respondError(c, err, "Failed to get version code")
		return
	}
	c.Data(http.StatusOK, "text/javascript; charset=utf-8", []byte(code))
}

// GetVersionSnapshot handles GET /obj-dsgn/objects/:id/versions/:version/snapshot
func (h *ObjectHandler) GetVersionSnapshot(c *gin.Context) {
	image, err := h.registry.Snapshot(c.Request.Context(), c.Param("id"), c.Param("version"))
	if err != nil {
		h.respondError(c, err, "Failed to get version snapshot")
		return
	}
	c.Data(http.StatusOK, "image/png", image)
}

func (h *ObjectHandler) respondError(c *gin.Context, err error, logMsg string) {
	switch {
	case errors.Is(err, generation.ErrTaskNotFound):
		c.JSON(http.StatusNotFound, models.APIResponse{Success: false, Error: "Object not found"})
	case errors.Is(err, generation.ErrNoSnapshot):
		c.JSON(http.StatusNotFound, models.APIResponse{Success: false, Error: generation.ErrNoSnapshot.Error()})
	default:
		h.logger.WithError(err).Error(logMsg)
		c.JSON(http.StatusInternalServerError, models.APIResponse{Success: false, Error: err.Error()})
	}
}
