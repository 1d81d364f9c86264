package main

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitro-academy/turma-scheduler/internal/models"
)

type readerStub struct {
	slots  []models.CourseSlot
	counts map[int]int
	err    error
}

func (r readerStub) ListSlots(ctx context.Context, courseID string) (*models.CourseSchedule, error) {
	if r.err != nil {
		return nil, r.err
	}
	return &models.CourseSchedule{CourseID: courseID, Slots: r.slots}, nil
}

func (r readerStub) CountEnrollmentsPerSlot(ctx context.Context, courseID string) (map[int]int, error) {
	return r.counts, nil
}

func TestCompareCourse(t *testing.T) {
	monday := models.CourseSlot{ID: "a", DayOfWeek: models.WeekdayMonday, StartTime: "BRT_14:00"}
	mondayOtherID := models.CourseSlot{ID: "b", DayOfWeek: models.WeekdayMonday, StartTime: "BRT_14:00"}
	friday := models.CourseSlot{ID: "c", DayOfWeek: models.WeekdayFriday, StartTime: "BRT_16:00"}

	same := compareCourse(context.Background(),
		readerStub{slots: []models.CourseSlot{monday}, counts: map[int]int{1: 2}},
		readerStub{slots: []models.CourseSlot{mondayOtherID}, counts: map[int]int{1: 2}},
		"course-1")
	require.NoError(t, same.Error)
	assert.Empty(t, same.Differences)

	diff := compareCourse(context.Background(),
		readerStub{slots: []models.CourseSlot{monday, friday}, counts: map[int]int{1: 2}},
		readerStub{slots: []models.CourseSlot{friday}, counts: map[int]int{1: 3}},
		"course-1")
	require.NoError(t, diff.Error)
	assert.Equal(t, []string{
		"slot count: postgres=2 content_store=1",
		"class 1: postgres=monday|14:00|-|-|- content_store=friday|16:00|-|-|-",
		"class 1 enrollments: postgres=2 content_store=3",
	}, diff.Differences)

	failed := compareCourse(context.Background(), readerStub{}, readerStub{err: errors.New("boom")}, "course-1")
	assert.Error(t, failed.Error)
}

func TestSplitIDs(t *testing.T) {
	assert.Equal(t, []string{"a", "b"}, splitIDs(" a, ,b "))
	assert.Empty(t, splitIDs(""))
}
