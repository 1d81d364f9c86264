package service

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitro-academy/turma-scheduler/internal/models"
	appErrors "github.com/nitro-academy/turma-scheduler/pkg/errors"
)

func TestSlotExportServiceCSV(t *testing.T) {
	link := "https://meet.example.com/a"
	first := slotAt(models.WeekdayMonday, "14:00")
	first.JoinLink = &link
	store := newMemorySlotStore(first, slotAt(models.WeekdayWednesday, "16:00"))
	store.counts = map[int]int{1: 15, 2: 3}

	svc := NewSlotExportService(newSlotServiceForTest(store, nil), nil)
	file, err := svc.Export(context.Background(), "course-1", "CSV")
	require.NoError(t, err)
	assert.Equal(t, "course-course-1-slots.csv", file.Filename)

	lines := strings.Split(strings.TrimSpace(string(file.Data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "Class,Day,Start,Start date,End date,Enrolled,Capacity,Availability,Join link", lines[0])
	assert.Equal(t, "1,monday,14:00,,,15,15,full,https://meet.example.com/a", lines[1])
	assert.Equal(t, "2,wednesday,16:00,,,3,15,open,", lines[2])
}

func TestSlotExportServiceErrors(t *testing.T) {
	svc := NewSlotExportService(newSlotServiceForTest(newMemorySlotStore(), nil), nil)

	_, err := svc.Export(context.Background(), "course-1", "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Export(context.Background(), "missing", "pdf")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}
