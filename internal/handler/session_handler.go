package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/walkaround-go/internal/models"
	"github.com/jengzang/walkaround-go/internal/service"
	"github.com/jengzang/walkaround-go/internal/tracking"
	"github.com/jengzang/walkaround-go/pkg/response"
)

// maxBatch caps the number of events accepted per push request
const maxBatch = 500

// SessionHandler handles HTTP requests for the recording session
type SessionHandler struct {
	sessionService *service.SessionService
}

// NewSessionHandler creates a new session handler
func NewSessionHandler(sessionService *service.SessionService) *SessionHandler {
	return &SessionHandler{
		sessionService: sessionService,
	}
}

// Start handles POST /api/v1/session/start
func (h *SessionHandler) Start(c *gin.Context) {
	status, err := h.sessionService.Start(c.Request.Context())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, status)
}

// Stop handles POST /api/v1/session/stop
func (h *SessionHandler) Stop(c *gin.Context) {
	summary, err := h.sessionService.Stop(c.Request.Context())
	if err != nil && summary == nil {
		response.InternalError(c, err.Error())
		return
	}

	// stop-time persistence errors still return the session to idle
	data := gin.H{"summary": summary}
	if err != nil {
		data["warning"] = err.Error()
	}
	response.Success(c, data)
}

// Status handles GET /api/v1/session/status
func (h *SessionHandler) Status(c *gin.Context) {
	response.Success(c, h.sessionService.Status())
}

// PushLocations handles POST /api/v1/session/locations
func (h *SessionHandler) PushLocations(c *gin.Context) {
	var req struct {
		Fixes []models.Fix `json:"fixes" binding:"required,min=1,dive"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid location batch")
		return
	}
	if len(req.Fixes) > maxBatch {
		response.BadRequest(c, "Too many fixes in one request")
		return
	}

	result, err := h.sessionService.PushLocations(req.Fixes)
	if err != nil {
		sessionErrors.Write(c, err)
		return
	}

	response.Success(c, result)
}

// PushSteps handles POST /api/v1/session/steps
func (h *SessionHandler) PushSteps(c *gin.Context) {
	var req struct {
		Events []tracking.StepEvent `json:"events" binding:"required,min=1"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "Invalid step batch")
		return
	}
	if len(req.Events) > maxBatch {
		response.BadRequest(c, "Too many step events in one request")
		return
	}

	result, err := h.sessionService.PushSteps(req.Events)
	if err != nil {
		sessionErrors.Write(c, err)
		return
	}

	response.Success(c, result)
}

// CurrentAddress handles GET /api/v1/address/current
func (h *SessionHandler) CurrentAddress(c *gin.Context) {
	rec, err := h.sessionService.CurrentAddress(c.Request.Context())
	if err != nil {
		sessionErrors.Write(c, err)
		return
	}

	city, _ := rec.CityDisplayWithFeature()
	address, _ := rec.AddressDisplayWithFeature()
	response.Success(c, gin.H{
		"record":  rec,
		"city":    city,
		"address": address,
	})
}

var sessionErrors = response.ErrorMap{
	{Target: service.ErrNotRecording, Status: http.StatusConflict},
	{Target: tracking.ErrSourceUnavailable, Status: http.StatusServiceUnavailable, Message: "Step source is not available"},
	{Target: service.ErrNoFix, Status: http.StatusNotFound},
	{Target: service.ErrNoAddress, Status: http.StatusNotFound},
}
