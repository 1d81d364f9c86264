package scheduling

import (
	"errors"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitro-academy/turma-scheduler/internal/models"
)

func slot(day models.Weekday, start string) models.CourseSlot {
	return models.CourseSlot{DayOfWeek: day, StartTime: InternalTimeLabel(start)}
}

func threeSlots() []models.CourseSlot {
	return []models.CourseSlot{
		slot(models.WeekdayMonday, "14:00"),
		slot(models.WeekdayWednesday, "16:00"),
		slot(models.WeekdayFriday, "18:00"),
	}
}

func TestCheckNoDuplicate(t *testing.T) {
	v := NewValidator(SessionDurationMinutes)
	existing := []models.CourseSlot{slot(models.WeekdayMonday, "14:00")}

	err := v.CheckNoDuplicate(existing, slot(models.WeekdayMonday, "14:00"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrDuplicateSlot))

	var slotErr *SlotError
	require.True(t, errors.As(err, &slotErr))
	assert.Equal(t, []int{1}, slotErr.DisplayNumbers)

	assert.NoError(t, v.CheckNoDuplicate(existing, slot(models.WeekdayTuesday, "14:00")))
}

func TestCheckNoOverlap(t *testing.T) {
	v := NewValidator(SessionDurationMinutes)
	existing := []models.CourseSlot{slot(models.WeekdayMonday, "14:00")}

	err := v.CheckNoOverlap(existing, slot(models.WeekdayMonday, "14:30"))
	assert.True(t, errors.Is(err, ErrOverlappingSlot))

	assert.NoError(t, v.CheckNoOverlap(existing, slot(models.WeekdayMonday, "15:00")))
	assert.NoError(t, v.CheckNoOverlap(existing, slot(models.WeekdayTuesday, "14:30")))
}

func TestCheckNoEnrolledStudentsAffected(t *testing.T) {
	v := NewValidator(SessionDurationMinutes)
	slots := threeSlots()
	counts := map[int]int{2: 1}

	err := v.CheckNoEnrolledStudentsAffected(slots, counts, []int{1})
	assert.True(t, errors.Is(err, ErrSlotHasStudents))

	assert.NoError(t, v.CheckNoEnrolledStudentsAffected(slots, counts, []int{0}))
	assert.NoError(t, v.CheckNoEnrolledStudentsAffected(slots, counts, []int{0, 2}))
	assert.NoError(t, v.CheckNoEnrolledStudentsAffected(slots, counts, nil))
}

func TestCheckValidPermutation(t *testing.T) {
	v := NewValidator(SessionDurationMinutes)

	assert.NoError(t, v.CheckValidPermutation([]int{2, 0, 1}, 3))
	assert.NoError(t, v.CheckValidPermutation([]int{}, 0))

	for _, order := range [][]int{{0, 1}, {0, 1, 1}, {0, 1, 3}, {-1, 0, 1}, {0, 1, 2, 3}} {
		err := v.CheckValidPermutation(order, 3)
		assert.True(t, errors.Is(err, ErrInvalidPermutation), "%v", order)
	}
}

func TestCheckKnownTime(t *testing.T) {
	v := NewValidator(SessionDurationMinutes)
	valid := []string{"14:00", "BRT_15:00"}

	assert.NoError(t, v.CheckKnownTime("14:00", valid))
	assert.NoError(t, v.CheckKnownTime("BRT_15:00", valid))
	assert.True(t, errors.Is(v.CheckKnownTime("16:00", valid), ErrUnknownTimeSlot))
}

func TestAffectedByReorder(t *testing.T) {
	assert.Equal(t, []int{0, 1, 2}, AffectedByReorder([]int{2, 0, 1}))
	assert.Equal(t, []int{1, 2}, AffectedByReorder([]int{0, 2, 1}))
	assert.Empty(t, AffectedByReorder([]int{0, 1, 2}))
}

func TestApplyOrderAndRemoveAt(t *testing.T) {
	slots := threeSlots()

	reordered := ApplyOrder(slots, []int{2, 0, 1})
	assert.Equal(t, []models.CourseSlot{slots[2], slots[0], slots[1]}, reordered)

	removed := RemoveAt(slots, 1)
	assert.Equal(t, []models.CourseSlot{slots[0], slots[2]}, removed)
	assert.Len(t, slots, 3)
}

// Random add sequences that pass every check must never produce duplicates or same-day overlaps.
func TestAcceptedAddsKeepScheduleConsistent(t *testing.T) {
	v := NewValidator(SessionDurationMinutes)
	rng := rand.New(rand.NewSource(42))
	starts := []string{"14:00", "14:30", "15:00", "15:20", "16:00", "16:45", "17:00"}

	for run := 0; run < 200; run++ {
		var slots []models.CourseSlot
		for i := 0; i < 15; i++ {
			candidate := slot(models.Weekdays[rng.Intn(len(models.Weekdays))], starts[rng.Intn(len(starts))])
			if v.CheckNoDuplicate(slots, candidate) != nil || v.CheckNoOverlap(slots, candidate) != nil {
				continue
			}
			slots = append(slots, candidate)
		}
		require.NoError(t, v.CheckSchedule(slots))
		for i := range slots {
			for j := i + 1; j < len(slots); j++ {
				if slots[i].DayOfWeek != slots[j].DayOfWeek {
					continue
				}
				assert.NotEqual(t, slots[i].StartTime, slots[j].StartTime)
				overlap, err := Overlaps(slots[i].StartTime, slots[j].StartTime, SessionDurationMinutes)
				require.NoError(t, err)
				assert.False(t, overlap)
			}
		}
	}
}
