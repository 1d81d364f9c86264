package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/nitro-academy/turma-scheduler/internal/dto"
	"github.com/nitro-academy/turma-scheduler/internal/middleware"
	"github.com/nitro-academy/turma-scheduler/internal/models"
	appErrors "github.com/nitro-academy/turma-scheduler/pkg/errors"
	"github.com/nitro-academy/turma-scheduler/pkg/export"
	"github.com/nitro-academy/turma-scheduler/pkg/response"
)

type courseSlotService interface {
	List(ctx context.Context, courseID string) (*dto.CourseSlotList, error)
	Add(ctx context.Context, courseID string, req dto.AddSlotRequest) (*dto.CourseSlotList, error)
	Reorder(ctx context.Context, courseID string, req dto.ReorderSlotsRequest) (*dto.CourseSlotList, error)
	Delete(ctx context.Context, courseID string, req dto.DeleteSlotRequest) (*dto.CourseSlotList, error)
	CheckAdmission(ctx context.Context, courseID string, displayNumber int) (*dto.AdmissionResult, error)
}

type scheduleOptionsService interface {
	Options(ctx context.Context, courseID string) *dto.ScheduleOptions
	Refresh(ctx context.Context, courseID string) *dto.ScheduleOptions
}

type slotExportService interface {
	Export(ctx context.Context, courseID, format string) (*export.File, error)
}

type slotHistoryService interface {
	History(ctx context.Context, courseID string, limit int) ([]models.SlotAuditLog, error)
}

// CourseSlotHandler exposes the class slot endpoints of a course.
type CourseSlotHandler struct {
	slots    courseSlotService
	options  scheduleOptionsService
	exporter slotExportService
	history  slotHistoryService
}

// NewCourseSlotHandler builds the handler. history may be nil when the audit trail is disabled.
func NewCourseSlotHandler(slots courseSlotService, options scheduleOptionsService, exporter slotExportService, history slotHistoryService) *CourseSlotHandler {
	return &CourseSlotHandler{slots: slots, options: options, exporter: exporter, history: history}
}

// List godoc
// @Summary List course slots
// @Description Slots in display order with their capacity state. The ETag carries the course version.
// @Tags Slots
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /courses/{courseId}/slots [get]
func (h *CourseSlotHandler) List(c *gin.Context) {
	list, err := h.slots.List(c.Request.Context(), c.Param("courseId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	writeSlotList(c, http.StatusOK, list)
}

// Add godoc
// @Summary Add a slot
// @Tags Slots
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param If-Match header string false "Course version last read"
// @Param payload body dto.AddSlotRequest true "Slot payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{courseId}/slots [post]
func (h *CourseSlotHandler) Add(c *gin.Context) {
	var req dto.AddSlotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid slot payload"))
		return
	}
	req.IfMatch = c.GetHeader("If-Match")
	req.ActorID = actorID(c)

	list, err := h.slots.Add(c.Request.Context(), c.Param("courseId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeSlotList(c, http.StatusCreated, list)
}

// Reorder godoc
// @Summary Reorder slots
// @Description order[i] is the current index of the slot moving to position i.
// @Tags Slots
// @Accept json
// @Produce json
// @Param courseId path string true "Course ID"
// @Param If-Match header string false "Course version last read"
// @Param payload body dto.ReorderSlotsRequest true "New order"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /courses/{courseId}/slots/order [put]
func (h *CourseSlotHandler) Reorder(c *gin.Context) {
	var req dto.ReorderSlotsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reorder payload"))
		return
	}
	req.IfMatch = c.GetHeader("If-Match")
	req.ActorID = actorID(c)

	list, err := h.slots.Reorder(c.Request.Context(), c.Param("courseId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeSlotList(c, http.StatusOK, list)
}

// Delete godoc
// @Summary Delete a slot
// @Tags Slots
// @Produce json
// @Param courseId path string true "Course ID"
// @Param index path int true "Zero-based slot index"
// @Param If-Match header string false "Course version last read"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 412 {object} response.Envelope
// @Router /courses/{courseId}/slots/{index} [delete]
func (h *CourseSlotHandler) Delete(c *gin.Context) {
	index, err := strconv.Atoi(c.Param("index"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrMissingIndex.Code, appErrors.ErrMissingIndex.Status, appErrors.ErrMissingIndex.Message))
		return
	}
	req := dto.DeleteSlotRequest{Index: &index, IfMatch: c.GetHeader("If-Match"), ActorID: actorID(c)}

	list, err := h.slots.Delete(c.Request.Context(), c.Param("courseId"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	writeSlotList(c, http.StatusOK, list)
}

// Admission godoc
// @Summary Check whether a student may join a slot
// @Tags Slots
// @Produce json
// @Param courseId path string true "Course ID"
// @Param displayNumber path int true "1-based class number"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /courses/{courseId}/slots/{displayNumber}/admission [get]
func (h *CourseSlotHandler) Admission(c *gin.Context) {
	displayNumber, err := strconv.Atoi(c.Param("displayNumber"))
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "class number must be an integer"))
		return
	}
	result, err := h.slots.CheckAdmission(c.Request.Context(), c.Param("courseId"), displayNumber)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result)
}

// ScheduleOptions godoc
// @Summary List offerable start times
// @Tags Slots
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/schedule-options [get]
func (h *CourseSlotHandler) ScheduleOptions(c *gin.Context) {
	options := h.options.Options(c.Request.Context(), c.Param("courseId"))
	middleware.SetCacheHit(c, options.Source == dto.ScheduleOptionsSourceCache)
	middleware.SetMeta(c, "source", options.Source)
	response.JSON(c, http.StatusOK, options, middleware.ExtractMeta(c))
}

// RefreshScheduleOptions godoc
// @Summary Reload offerable start times, bypassing the cache
// @Tags Slots
// @Produce json
// @Param courseId path string true "Course ID"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/schedule-options/refresh [post]
func (h *CourseSlotHandler) RefreshScheduleOptions(c *gin.Context) {
	options := h.options.Refresh(c.Request.Context(), c.Param("courseId"))
	middleware.SetCacheHit(c, false)
	middleware.SetMeta(c, "source", options.Source)
	response.JSON(c, http.StatusOK, options, middleware.ExtractMeta(c))
}

// Export godoc
// @Summary Download the slot sheet of a course
// @Tags Slots
// @Produce text/csv
// @Produce application/pdf
// @Param courseId path string true "Course ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {file} file
// @Failure 400 {object} response.Envelope
// @Router /courses/{courseId}/slots/export [get]
func (h *CourseSlotHandler) Export(c *gin.Context) {
	file, err := h.exporter.Export(c.Request.Context(), c.Param("courseId"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+safeFilename(file.Filename)+`"`)
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Data)
}

// History godoc
// @Summary Slot change history
// @Tags Slots
// @Produce json
// @Param courseId path string true "Course ID"
// @Param limit query int false "Max entries (default 50, max 200)"
// @Success 200 {object} response.Envelope
// @Router /courses/{courseId}/slots/history [get]
func (h *CourseSlotHandler) History(c *gin.Context) {
	if h.history == nil {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "slot history is disabled"))
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))
	entries, err := h.history.History(c.Request.Context(), c.Param("courseId"), limit)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, entries, map[string]interface{}{"count": len(entries)})
}

func writeSlotList(c *gin.Context, status int, list *dto.CourseSlotList) {
	c.Header("ETag", `"`+strconv.FormatInt(list.Version, 10)+`"`)
	response.JSON(c, status, list)
}

func actorID(c *gin.Context) string {
	if claims := claimsFromContext(c); claims != nil {
		return claims.UserID
	}
	return ""
}

// safeFilename keeps letters, digits, dot, dash and underscore; anything else becomes an underscore.
func safeFilename(name string) string {
	cleaned := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, name)
	if strings.Trim(cleaned, "._") == "" {
		return "export"
	}
	return cleaned
}
