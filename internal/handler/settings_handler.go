package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/walkaround-go/internal/service"
	"github.com/jengzang/walkaround-go/pkg/response"
)

var settingsErrors = response.ErrorMap{
	{Target: service.ErrInvalidSettings, Status: http.StatusBadRequest},
}

// SettingsHandler handles HTTP requests for the runtime settings
type SettingsHandler struct {
	settingsService *service.SettingsService
}

// NewSettingsHandler creates a new settings handler
func NewSettingsHandler(settingsService *service.SettingsService) *SettingsHandler {
	return &SettingsHandler{
		settingsService: settingsService,
	}
}

// GetSettings handles GET /api/v1/settings
func (h *SettingsHandler) GetSettings(c *gin.Context) {
	settings, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, settings)
}

// UpdateSettings handles PUT /api/v1/settings. Fields missing from the body
// keep their current values.
func (h *SettingsHandler) UpdateSettings(c *gin.Context) {
	current, err := h.settingsService.Get(c.Request.Context())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	next := current
	if err := c.ShouldBindJSON(&next); err != nil {
		response.BadRequest(c, "Invalid settings body")
		return
	}

	saved, err := h.settingsService.Update(c.Request.Context(), next)
	if err != nil {
		settingsErrors.Write(c, err)
		return
	}

	response.Success(c, saved)
}
