package scheduling

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/nitro-academy/turma-scheduler/internal/models"
)

// Rejection kinds. Match them with errors.Is against a *SlotError.
var (
	ErrDuplicateSlot      = errors.New("duplicate slot")
	ErrOverlappingSlot    = errors.New("overlapping slot")
	ErrSlotHasStudents    = errors.New("slot has enrolled students")
	ErrInvalidPermutation = errors.New("invalid permutation")
	ErrUnknownTimeSlot    = errors.New("unknown time slot")
)

// SlotError describes why a candidate change was rejected.
type SlotError struct {
	Kind    error
	Message string
	// DisplayNumbers lists the slots involved, 1-based.
	DisplayNumbers []int
}

func (e *SlotError) Error() string {
	if e == nil {
		return "<nil>"
	}
	return e.Message
}

// Unwrap exposes Kind to errors.Is.
func (e *SlotError) Unwrap() error {
	return e.Kind
}

// Validator enforces the slot invariants of one course.
type Validator struct {
	duration int
}

// NewValidator builds a Validator for sessions of the given length in minutes.
func NewValidator(durationMinutes int) Validator {
	if durationMinutes <= 0 {
		durationMinutes = SessionDurationMinutes
	}
	return Validator{duration: durationMinutes}
}

// CheckNoDuplicate rejects a candidate sharing (day, start) with an existing slot.
func (v Validator) CheckNoDuplicate(existing []models.CourseSlot, candidate models.CourseSlot) error {
	want := DisplayTimeLabel(candidate.StartTime)
	for i, slot := range existing {
		if slot.DayOfWeek == candidate.DayOfWeek && DisplayTimeLabel(slot.StartTime) == want {
			return &SlotError{
				Kind:           ErrDuplicateSlot,
				Message:        fmt.Sprintf("slot %s %s already exists as class %d", UIKey(candidate.DayOfWeek), want, i+1),
				DisplayNumbers: []int{i + 1},
			}
		}
	}
	return nil
}

// CheckNoOverlap rejects a candidate whose session intersects a same-day session.
func (v Validator) CheckNoOverlap(existing []models.CourseSlot, candidate models.CourseSlot) error {
	for i, slot := range existing {
		if slot.DayOfWeek != candidate.DayOfWeek {
			continue
		}
		overlap, err := Overlaps(slot.StartTime, candidate.StartTime, v.duration)
		if err != nil {
			return err
		}
		if overlap {
			return &SlotError{
				Kind: ErrOverlappingSlot,
				Message: fmt.Sprintf("slot %s %s overlaps class %d at %s",
					UIKey(candidate.DayOfWeek), DisplayTimeLabel(candidate.StartTime), i+1, DisplayTimeLabel(slot.StartTime)),
				DisplayNumbers: []int{i + 1},
			}
		}
	}
	return nil
}

// CheckNoEnrolledStudentsAffected rejects the change when any affected index has students.
// counts is keyed by display number.
func (v Validator) CheckNoEnrolledStudentsAffected(slots []models.CourseSlot, counts map[int]int, affected []int) error {
	var blocked []int
	for _, idx := range affected {
		if idx < 0 || idx >= len(slots) {
			continue
		}
		if counts[idx+1] > 0 {
			blocked = append(blocked, idx+1)
		}
	}
	if len(blocked) == 0 {
		return nil
	}
	sort.Ints(blocked)
	return &SlotError{
		Kind:           ErrSlotHasStudents,
		Message:        fmt.Sprintf("class %s has enrolled students", joinInts(blocked)),
		DisplayNumbers: blocked,
	}
}

// CheckValidPermutation requires newOrder to hold every index in [0, slotCount) exactly once.
func (v Validator) CheckValidPermutation(newOrder []int, slotCount int) error {
	if len(newOrder) != slotCount {
		return &SlotError{
			Kind:    ErrInvalidPermutation,
			Message: fmt.Sprintf("order has %d entries, course has %d slots", len(newOrder), slotCount),
		}
	}
	seen := make([]bool, slotCount)
	for _, idx := range newOrder {
		if idx < 0 || idx >= slotCount {
			return &SlotError{
				Kind:    ErrInvalidPermutation,
				Message: fmt.Sprintf("index %d is out of range [0, %d)", idx, slotCount),
			}
		}
		if seen[idx] {
			return &SlotError{
				Kind:    ErrInvalidPermutation,
				Message: fmt.Sprintf("index %d appears more than once", idx),
			}
		}
		seen[idx] = true
	}
	return nil
}

// CheckKnownTime requires the candidate start time to be one of the offerable labels.
func (v Validator) CheckKnownTime(candidate string, validTimes []string) error {
	want := DisplayTimeLabel(candidate)
	for _, label := range validTimes {
		if DisplayTimeLabel(label) == want {
			return nil
		}
	}
	return &SlotError{
		Kind:    ErrUnknownTimeSlot,
		Message: fmt.Sprintf("start time %q is not offered", want),
	}
}

// CheckSchedule verifies a whole slot list: no duplicates and no same-day overlaps.
func (v Validator) CheckSchedule(slots []models.CourseSlot) error {
	for i := 1; i < len(slots); i++ {
		if err := v.CheckNoDuplicate(slots[:i], slots[i]); err != nil {
			return err
		}
		if err := v.CheckNoOverlap(slots[:i], slots[i]); err != nil {
			return err
		}
	}
	return nil
}

// AffectedByReorder returns the positions whose slot changes under newOrder.
func AffectedByReorder(newOrder []int) []int {
	var affected []int
	for i, src := range newOrder {
		if src != i {
			affected = append(affected, i)
		}
	}
	return affected
}

// ApplyOrder builds the reordered list. newOrder must already be a valid permutation.
func ApplyOrder(slots []models.CourseSlot, newOrder []int) []models.CourseSlot {
	out := make([]models.CourseSlot, len(newOrder))
	for pos, src := range newOrder {
		out[pos] = slots[src]
	}
	return out
}

// RemoveAt returns a copy of slots without the element at idx.
func RemoveAt(slots []models.CourseSlot, idx int) []models.CourseSlot {
	out := make([]models.CourseSlot, 0, len(slots)-1)
	out = append(out, slots[:idx]...)
	return append(out, slots[idx+1:]...)
}

func joinInts(values []int) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = fmt.Sprint(v)
	}
	return strings.Join(parts, ", ")
}
