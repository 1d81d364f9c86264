package contentstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nitro-academy/turma-scheduler/internal/models"
)

// slotNamespace seeds deterministic ids for slots written before ids existed.
var slotNamespace = uuid.MustParse("7b0e8a52-3c1f-4f7e-9a55-2f1d0c6b9e41")

// SlotStore keeps course slots on the remote content store. The course updatedAt timestamp, in
// Unix milliseconds, is the version token.
type SlotStore struct {
	client *Client
}

// NewSlotStore wraps a content store client.
func NewSlotStore(client *Client) *SlotStore {
	return &SlotStore{client: client}
}

// ListSlots reads the course record and decodes its slots in stored order.
func (s *SlotStore) ListSlots(ctx context.Context, courseID string) (*models.CourseSchedule, error) {
	record, err := s.getCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	return decodeSchedule(courseID, record)
}

// CountEnrollmentsPerSlot tallies enabled enrollments by display number, ignoring missing or
// out-of-range assignments.
func (s *SlotStore) CountEnrollmentsPerSlot(ctx context.Context, courseID string) (map[int]int, error) {
	schedule, err := s.ListSlots(ctx, courseID)
	if err != nil {
		return nil, err
	}
	enrollments, err := s.client.ListEnabledEnrollments(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list enrollments of %s: %w", courseID, err)
	}

	counts := make(map[int]int)
	for _, e := range enrollments {
		if !e.Habilitado || e.Turma == nil {
			continue
		}
		if n := *e.Turma; n >= 1 && n <= len(schedule.Slots) {
			counts[n]++
		}
	}
	return counts, nil
}

// Persist writes the slot list back with a cleaned payload. The stored record must still carry
// expectedVersion; callers hold the course lock across the read and the write.
func (s *SlotStore) Persist(ctx context.Context, courseID string, expectedVersion int64, slots []models.CourseSlot) (int64, error) {
	record, err := s.getCourse(ctx, courseID)
	if err != nil {
		return 0, err
	}
	current, err := versionOf(record)
	if err != nil {
		return 0, err
	}
	if current != expectedVersion {
		return 0, models.ErrVersionConflict
	}

	turmas := make([]Turma, len(slots))
	for i, slot := range slots {
		turmas[i] = Turma{
			UID:        slot.ID,
			DiaSemana:  string(slot.DayOfWeek),
			Horario:    slot.StartTime,
			DataInicio: slot.StartDate,
			DataFim:    slot.EndDate,
			LinkAula:   slot.JoinLink,
		}
	}
	encoded, err := json.Marshal(turmas)
	if err != nil {
		return 0, fmt.Errorf("encode turmas: %w", err)
	}

	payload := record.Clean()
	payload[fieldTurmas] = encoded

	updated, err := s.client.UpdateCourse(ctx, courseID, payload)
	if err != nil {
		if errors.Is(err, ErrConflict) {
			return 0, models.ErrVersionConflict
		}
		return 0, fmt.Errorf("update course %s: %w", courseID, err)
	}
	return versionOf(updated)
}

func (s *SlotStore) getCourse(ctx context.Context, courseID string) (Record, error) {
	record, err := s.client.GetCourse(ctx, courseID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, models.ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course %s: %w", courseID, err)
	}
	return record, nil
}

func decodeSchedule(courseID string, record Record) (*models.CourseSchedule, error) {
	version, err := versionOf(record)
	if err != nil {
		return nil, err
	}

	schedule := &models.CourseSchedule{CourseID: courseID, Version: version, Slots: []models.CourseSlot{}}
	optional := map[string]interface{}{
		fieldTitle:          &schedule.Title,
		fieldStartsOn:       &schedule.StartsOn,
		fieldPromoEnabled:   &schedule.PromoBadgeEnabled,
		fieldPromoBadgeText: &schedule.PromoBadgeText,
	}
	for field, dest := range optional {
		raw, ok := record[field]
		if !ok || string(raw) == "null" {
			continue
		}
		if err := json.Unmarshal(raw, dest); err != nil {
			return nil, fmt.Errorf("%w: course %s field %s: %v", ErrInvalidResponse, courseID, field, err)
		}
	}

	raw, ok := record[fieldTurmas]
	if !ok || string(raw) == "null" {
		return schedule, nil
	}
	var turmas []Turma
	if err := json.Unmarshal(raw, &turmas); err != nil {
		return nil, fmt.Errorf("%w: course %s turmas: %v", ErrInvalidResponse, courseID, err)
	}
	for _, t := range turmas {
		id := t.UID
		if id == "" {
			id = uuid.NewSHA1(slotNamespace, []byte(courseID+"|"+t.DiaSemana+"|"+t.Horario)).String()
		}
		schedule.Slots = append(schedule.Slots, models.CourseSlot{
			ID:        id,
			DayOfWeek: models.Weekday(t.DiaSemana),
			StartTime: t.Horario,
			StartDate: t.DataInicio,
			EndDate:   t.DataFim,
			JoinLink:  t.LinkAula,
		})
	}
	return schedule, nil
}

func versionOf(record Record) (int64, error) {
	raw, ok := record[fieldUpdatedAt]
	if !ok {
		return 0, fmt.Errorf("%w: record has no %s", ErrInvalidResponse, fieldUpdatedAt)
	}
	var stamp time.Time
	if err := json.Unmarshal(raw, &stamp); err != nil {
		return 0, fmt.Errorf("%w: parse %s: %v", ErrInvalidResponse, fieldUpdatedAt, err)
	}
	return stamp.UnixMilli(), nil
}
