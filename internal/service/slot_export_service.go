package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/nitro-academy/turma-scheduler/internal/dto"
	appErrors "github.com/nitro-academy/turma-scheduler/pkg/errors"
	"github.com/nitro-academy/turma-scheduler/pkg/export"
)

type slotLister interface {
	List(ctx context.Context, courseID string) (*dto.CourseSlotList, error)
}

var slotExportColumns = []string{"Class", "Day", "Start", "Start date", "End date", "Enrolled", "Capacity", "Availability", "Join link"}

// SlotExportService renders the projected slot list of a course as a downloadable sheet.
type SlotExportService struct {
	slots  slotLister
	now    func() time.Time
	logger *zap.Logger
}

// NewSlotExportService constructs a SlotExportService.
func NewSlotExportService(slots slotLister, logger *zap.Logger) *SlotExportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SlotExportService{slots: slots, now: time.Now, logger: logger}
}

// Export renders the slots of courseID as csv or pdf.
func (s *SlotExportService) Export(ctx context.Context, courseID, format string) (*export.File, error) {
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = export.FormatCSV
	}
	if format != export.FormatCSV && format != export.FormatPDF {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	list, err := s.slots.List(ctx, courseID)
	if err != nil {
		return nil, err
	}

	table := export.Table{
		Title:   fmt.Sprintf("Course %s - class slots (version %d)", courseID, list.Version),
		Columns: slotExportColumns,
		Rows:    make([][]string, 0, len(list.Slots)),
		Footer:  "Generated " + s.now().UTC().Format(time.RFC3339),
	}
	for _, slot := range list.Slots {
		table.Rows = append(table.Rows, []string{
			strconv.Itoa(slot.DisplayNumber),
			slot.DayKey,
			slot.StartTime,
			deref(slot.StartDate),
			deref(slot.EndDate),
			strconv.Itoa(slot.CurrentEnrollment),
			strconv.Itoa(slot.MaxCapacity),
			string(slot.Availability),
			deref(slot.JoinLink),
		})
	}

	file, err := export.Render(table, format, "course-"+courseID+"-slots")
	if err != nil {
		s.logger.Error("render slot export failed", zap.String("course_id", courseID), zap.String("format", format), zap.Error(err))
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render export")
	}
	return file, nil
}

func deref(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}
