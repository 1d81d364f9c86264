package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitro-academy/turma-scheduler/internal/dto"
	"github.com/nitro-academy/turma-scheduler/internal/middleware"
	"github.com/nitro-academy/turma-scheduler/internal/models"
	appErrors "github.com/nitro-academy/turma-scheduler/pkg/errors"
	"github.com/nitro-academy/turma-scheduler/pkg/export"
)

type courseSlotServiceMock struct {
	list       *dto.CourseSlotList
	err        error
	admission  *dto.AdmissionResult
	lastCourse string
	lastAdd    dto.AddSlotRequest
	lastOrder  dto.ReorderSlotsRequest
	lastDelete dto.DeleteSlotRequest
	lastNumber int
	calls      int
}

func (m *courseSlotServiceMock) List(ctx context.Context, courseID string) (*dto.CourseSlotList, error) {
	m.calls++
	m.lastCourse = courseID
	return m.list, m.err
}

func (m *courseSlotServiceMock) Add(ctx context.Context, courseID string, req dto.AddSlotRequest) (*dto.CourseSlotList, error) {
	m.calls++
	m.lastCourse = courseID
	m.lastAdd = req
	return m.list, m.err
}

func (m *courseSlotServiceMock) Reorder(ctx context.Context, courseID string, req dto.ReorderSlotsRequest) (*dto.CourseSlotList, error) {
	m.calls++
	m.lastOrder = req
	return m.list, m.err
}

func (m *courseSlotServiceMock) Delete(ctx context.Context, courseID string, req dto.DeleteSlotRequest) (*dto.CourseSlotList, error) {
	m.calls++
	m.lastDelete = req
	return m.list, m.err
}

func (m *courseSlotServiceMock) CheckAdmission(ctx context.Context, courseID string, displayNumber int) (*dto.AdmissionResult, error) {
	m.calls++
	m.lastNumber = displayNumber
	return m.admission, m.err
}

type scheduleOptionsMock struct {
	options *dto.ScheduleOptions
}

func (m scheduleOptionsMock) Options(ctx context.Context, courseID string) *dto.ScheduleOptions {
	return m.options
}

func (m scheduleOptionsMock) Refresh(ctx context.Context, courseID string) *dto.ScheduleOptions {
	refreshed := *m.options
	refreshed.Source = dto.ScheduleOptionsSourceStore
	return &refreshed
}

type slotHistoryMock struct {
	entries   []models.SlotAuditLog
	lastLimit int
}

func (m *slotHistoryMock) History(ctx context.Context, courseID string, limit int) ([]models.SlotAuditLog, error) {
	m.lastLimit = limit
	return m.entries, nil
}

type slotExportMock struct {
	lastFormat string
}

func (m *slotExportMock) Export(ctx context.Context, courseID, format string) (*export.File, error) {
	m.lastFormat = format
	if format == "xlsx" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
	return &export.File{Filename: "course-" + courseID + "-slots.csv", ContentType: "text/csv; charset=utf-8", Data: []byte("Class\n1\n")}, nil
}

func newSlotRouter(svc *courseSlotServiceMock, history slotHistoryService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewCourseSlotHandler(svc, scheduleOptionsMock{options: &dto.ScheduleOptions{
		CourseID:   "c1",
		TimeLabels: []string{"14:00", "15:00"},
		Source:     dto.ScheduleOptionsSourceCache,
	}}, &slotExportMock{}, history)

	r := gin.New()
	r.Use(middleware.WithResponseMeta())
	r.Use(func(c *gin.Context) {
		c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})
		c.Next()
	})
	r.GET("/courses/:courseId/slots", h.List)
	r.POST("/courses/:courseId/slots", h.Add)
	r.PUT("/courses/:courseId/slots/order", h.Reorder)
	r.GET("/courses/:courseId/slots/history", h.History)
	r.GET("/courses/:courseId/slots/export", h.Export)
	r.DELETE("/courses/:courseId/slots/:index", h.Delete)
	r.GET("/courses/:courseId/slots/:displayNumber/admission", h.Admission)
	r.GET("/courses/:courseId/schedule-options", h.ScheduleOptions)
	r.POST("/courses/:courseId/schedule-options/refresh", h.RefreshScheduleOptions)
	return r
}

func doRequest(r *gin.Engine, method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	var reader *bytes.Buffer
	if body != "" {
		reader = bytes.NewBufferString(body)
	} else {
		reader = &bytes.Buffer{}
	}
	req, _ := http.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var envelope map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &envelope))
	return envelope
}

func TestCourseSlotHandlerListSetsETag(t *testing.T) {
	svc := &courseSlotServiceMock{list: &dto.CourseSlotList{CourseID: "c1", Version: 4}}
	r := newSlotRouter(svc, nil)

	w := doRequest(r, http.MethodGet, "/courses/c1/slots", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `"4"`, w.Header().Get("ETag"))
	assert.Equal(t, "c1", svc.lastCourse)
}

func TestCourseSlotHandlerAdd(t *testing.T) {
	svc := &courseSlotServiceMock{list: &dto.CourseSlotList{CourseID: "c1", Version: 5}}
	r := newSlotRouter(svc, nil)

	w := doRequest(r, http.MethodPost, "/courses/c1/slots", `{"day_of_week":"monday","start_time":"14:00"}`, map[string]string{"If-Match": `"4"`})
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "monday", svc.lastAdd.DayOfWeek)
	assert.Equal(t, "14:00", svc.lastAdd.StartTime)
	assert.Equal(t, `"4"`, svc.lastAdd.IfMatch)
	assert.Equal(t, "admin-1", svc.lastAdd.ActorID)
	assert.Equal(t, `"5"`, w.Header().Get("ETag"))
}

func TestCourseSlotHandlerAddInvalidBody(t *testing.T) {
	svc := &courseSlotServiceMock{}
	r := newSlotRouter(svc, nil)

	w := doRequest(r, http.MethodPost, "/courses/c1/slots", `{"day_of_week":`, nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Zero(t, svc.calls)
}

func TestCourseSlotHandlerMapsDomainErrors(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{appErrors.Clone(appErrors.ErrDuplicateSlot, "slot monday 14:00 already exists"), http.StatusConflict},
		{appErrors.ErrUnknownTimeSlot, http.StatusUnprocessableEntity},
		{appErrors.ErrUpstreamTimeout, http.StatusGatewayTimeout},
		{errors.New("unexpected"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		svc := &courseSlotServiceMock{err: tc.err}
		r := newSlotRouter(svc, nil)
		w := doRequest(r, http.MethodPost, "/courses/c1/slots", `{"day_of_week":"monday","start_time":"14:00"}`, nil)
		assert.Equal(t, tc.want, w.Code)
	}
}

func TestCourseSlotHandlerConflictIsRetryable(t *testing.T) {
	svc := &courseSlotServiceMock{err: appErrors.ErrConflict}
	r := newSlotRouter(svc, nil)

	w := doRequest(r, http.MethodPut, "/courses/c1/slots/order", `{"order":[1,0]}`, nil)
	require.Equal(t, http.StatusConflict, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.JSONEq(t, `{"retryable":true}`, string(envelope["meta"]))
	assert.Equal(t, []int{1, 0}, svc.lastOrder.Order)
}

func TestCourseSlotHandlerDelete(t *testing.T) {
	svc := &courseSlotServiceMock{list: &dto.CourseSlotList{CourseID: "c1", Version: 2}}
	r := newSlotRouter(svc, nil)

	w := doRequest(r, http.MethodDelete, "/courses/c1/slots/abc", "", nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Contains(t, string(envelope["error"]), "MISSING_INDEX")
	assert.Zero(t, svc.calls)

	w = doRequest(r, http.MethodDelete, "/courses/c1/slots/1", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, svc.lastDelete.Index)
	assert.Equal(t, 1, *svc.lastDelete.Index)
}

func TestCourseSlotHandlerAdmission(t *testing.T) {
	svc := &courseSlotServiceMock{admission: &dto.AdmissionResult{CourseID: "c1", DisplayNumber: 2, Admissible: true}}
	r := newSlotRouter(svc, nil)

	w := doRequest(r, http.MethodGet, "/courses/c1/slots/2/admission", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 2, svc.lastNumber)

	svc.err = appErrors.ErrSlotFull
	w = doRequest(r, http.MethodGet, "/courses/c1/slots/2/admission", "", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestCourseSlotHandlerScheduleOptions(t *testing.T) {
	r := newSlotRouter(&courseSlotServiceMock{}, nil)

	w := doRequest(r, http.MethodGet, "/courses/c1/schedule-options", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)

	var meta map[string]interface{}
	require.NoError(t, json.Unmarshal(envelope["meta"], &meta))
	assert.Equal(t, true, meta["cache_hit"])
	assert.Equal(t, "cache", meta["source"])
	assert.JSONEq(t, `{"course_id":"c1","time_labels":["14:00","15:00"],"source":"cache"}`, string(envelope["data"]))
}

func TestCourseSlotHandlerRefreshScheduleOptions(t *testing.T) {
	r := newSlotRouter(&courseSlotServiceMock{}, nil)

	w := doRequest(r, http.MethodPost, "/courses/c1/schedule-options/refresh", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	envelope := decodeEnvelope(t, w)
	assert.Contains(t, string(envelope["data"]), `"source":"content_store"`)
	assert.Contains(t, string(envelope["meta"]), `"cache_hit":false`)
}

func TestCourseSlotHandlerHistory(t *testing.T) {
	r := newSlotRouter(&courseSlotServiceMock{}, nil)
	w := doRequest(r, http.MethodGet, "/courses/c1/slots/history", "", nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	history := &slotHistoryMock{entries: []models.SlotAuditLog{{CourseID: "c1", Action: models.SlotAuditAdded}}}
	r = newSlotRouter(&courseSlotServiceMock{}, history)
	w = doRequest(r, http.MethodGet, "/courses/c1/slots/history?limit=10", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 10, history.lastLimit)
}

func TestCourseSlotHandlerExport(t *testing.T) {
	r := newSlotRouter(&courseSlotServiceMock{}, nil)

	w := doRequest(r, http.MethodGet, "/courses/c1/slots/export?format=csv", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/csv; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="course-c1-slots.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "Class\n1\n", w.Body.String())

	w = doRequest(r, http.MethodGet, "/courses/c1/slots/export?format=xlsx", "", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestCourseSlotHandlerExportSanitizesFilename(t *testing.T) {
	r := newSlotRouter(&courseSlotServiceMock{}, nil)

	w := doRequest(r, http.MethodGet, `/courses/c1%22%3B%20x=%22y/slots/export`, "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, `attachment; filename="course-c1___x__y-slots.csv"`, w.Header().Get("Content-Disposition"))

	assert.Equal(t, "export", safeFilename(`".."`))
	assert.Equal(t, "course-a_b-slots.pdf", safeFilename("course-a/b-slots.pdf"))
}

func TestCourseSlotHandlerCommittedErrorHasNoRetryableMeta(t *testing.T) {
	committed := appErrors.WithDetails(appErrors.Clone(appErrors.ErrUpstream, "slots saved but reloading them failed"), map[string]interface{}{
		appErrors.DetailPersisted: true,
		"version":                 3,
	})
	r := newSlotRouter(&courseSlotServiceMock{err: committed}, nil)

	w := doRequest(r, http.MethodDelete, "/courses/c1/slots/1", "", nil)
	require.Equal(t, http.StatusBadGateway, w.Code)
	envelope := decodeEnvelope(t, w)
	_, hasMeta := envelope["meta"]
	assert.False(t, hasMeta)
	assert.Contains(t, string(envelope["error"]), `"persisted":true`)
}
