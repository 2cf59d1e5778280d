package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/jengzang/walkaround-go/internal/repository"
	"github.com/jengzang/walkaround-go/internal/service"
	"github.com/jengzang/walkaround-go/internal/timeutil"
	"github.com/jengzang/walkaround-go/pkg/response"
)

// SectionHandler handles HTTP requests for recorded sections
type SectionHandler struct {
	sectionService *service.SectionService
	clock          timeutil.Clock
}

// NewSectionHandler creates a new section handler
func NewSectionHandler(sectionService *service.SectionService, clock timeutil.Clock) *SectionHandler {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	return &SectionHandler{
		sectionService: sectionService,
		clock:          clock,
	}
}

func sectionID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		response.BadRequest(c, "Invalid section ID")
		return 0, false
	}
	return id, true
}

var sectionErrors = response.ErrorMap{
	{Target: repository.ErrSectionNotFound, Status: http.StatusNotFound, Message: "Section not found"},
	{Target: service.ErrSectionRecording, Status: http.StatusConflict},
}

// ListSections handles GET /api/v1/sections
func (h *SectionHandler) ListSections(c *gin.Context) {
	groups, err := h.sectionService.ListSections(c.Request.Context())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.List(c, groups, len(groups))
}

// Summaries handles GET /api/v1/sections/summaries
func (h *SectionHandler) Summaries(c *gin.Context) {
	summaries, err := h.sectionService.Summaries(c.Request.Context())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.List(c, summaries, len(summaries))
}

// GetTrack handles GET /api/v1/sections/:id/track
func (h *SectionHandler) GetTrack(c *gin.Context) {
	id, ok := sectionID(c)
	if !ok {
		return
	}

	track, err := h.sectionService.PrepareTrack(c.Request.Context(), id)
	if err != nil {
		sectionErrors.Write(c, err)
		return
	}

	response.Success(c, track)
}

// Rebuild handles POST /api/v1/sections/:id/rebuild
func (h *SectionHandler) Rebuild(c *gin.Context) {
	id, ok := sectionID(c)
	if !ok {
		return
	}

	result, err := h.sectionService.Rebuild(c.Request.Context(), id)
	if err != nil {
		sectionErrors.Write(c, err)
		return
	}

	response.Success(c, result)
}

// DeleteSection handles DELETE /api/v1/sections/:id
func (h *SectionHandler) DeleteSection(c *gin.Context) {
	id, ok := sectionID(c)
	if !ok {
		return
	}

	if err := h.sectionService.DeleteSection(c.Request.Context(), id); err != nil {
		sectionErrors.Write(c, err)
		return
	}

	response.Success(c, gin.H{"sectionId": id})
}

// TodaySteps handles GET /api/v1/steps/today
func (h *SectionHandler) TodaySteps(c *gin.Context) {
	steps, err := h.sectionService.TodaySteps(c.Request.Context(), h.clock.Now())
	if err != nil {
		response.InternalError(c, err.Error())
		return
	}

	response.Success(c, steps)
}
