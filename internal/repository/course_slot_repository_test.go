package repository

import (
	"context"
	"database/sql"
	"errors"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitro-academy/turma-scheduler/internal/models"
)

func newCourseSlotRepoMock(t *testing.T) (*CourseSlotRepository, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return NewCourseSlotRepository(sqlx.NewDb(db, "sqlmock")), mock, func() { db.Close() }
}

func TestCourseSlotRepositoryListSlots(t *testing.T) {
	repo, mock, cleanup := newCourseSlotRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, title, starts_on, promo_badge_enabled, promo_badge_text, version FROM courses WHERE id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "starts_on", "promo_badge_enabled", "promo_badge_text", "version"}).
			AddRow("course-1", "Go 101", "2026-03-02", false, "", int64(4)))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, day_of_week, start_time, start_date, end_date, join_link FROM course_slots WHERE course_id = $1 ORDER BY position ASC")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "day_of_week", "start_time", "start_date", "end_date", "join_link"}).
			AddRow("slot-a", "segunda", "BRT_14:00", nil, nil, nil).
			AddRow("slot-b", "quarta", "BRT_16:00", "2026-03-04", "2026-06-24", "https://meet.example.com/b"))

	schedule, err := repo.ListSlots(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, int64(4), schedule.Version)
	require.Len(t, schedule.Slots, 2)
	assert.Equal(t, "slot-a", schedule.Slots[0].ID)
	assert.Equal(t, models.WeekdayWednesday, schedule.Slots[1].DayOfWeek)
	require.NotNil(t, schedule.Slots[1].JoinLink)
	assert.Equal(t, "https://meet.example.com/b", *schedule.Slots[1].JoinLink)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseSlotRepositoryListSlotsNotFound(t *testing.T) {
	repo, mock, cleanup := newCourseSlotRepoMock(t)
	defer cleanup()

	mock.ExpectQuery("SELECT id, title").WithArgs("missing").WillReturnError(sql.ErrNoRows)

	_, err := repo.ListSlots(context.Background(), "missing")
	assert.True(t, errors.Is(err, models.ErrCourseNotFound))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseSlotRepositoryCountEnrollments(t *testing.T) {
	repo, mock, cleanup := newCourseSlotRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT class_assignment, COUNT(*) AS total FROM course_enrollments WHERE course_id = $1 AND enabled = $2 AND class_assignment BETWEEN 1 AND (SELECT COUNT(*) FROM course_slots WHERE course_id = $3) GROUP BY class_assignment")).
		WithArgs("course-1", true, "course-1").
		WillReturnRows(sqlmock.NewRows([]string{"class_assignment", "total"}).AddRow(1, 3).AddRow(2, 15))

	counts, err := repo.CountEnrollmentsPerSlot(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 3, 2: 15}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseSlotRepositoryPersist(t *testing.T) {
	repo, mock, cleanup := newCourseSlotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery(regexp.QuoteMeta("UPDATE courses SET version = version + 1, updated_at = NOW() WHERE id = $1 AND version = $2 RETURNING version")).
		WithArgs("course-1", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(5)))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM course_slots WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO course_slots (id,course_id,position,day_of_week,start_time,start_date,end_date,join_link) VALUES ($1,$2,$3,$4,$5,$6,$7,$8),($9,$10,$11,$12,$13,$14,$15,$16)")).
		WithArgs("slot-a", "course-1", 0, "segunda", "BRT_14:00", nil, nil, nil,
			sqlmock.AnyArg(), "course-1", 1, "quarta", "BRT_16:00", nil, nil, nil).
		WillReturnResult(sqlmock.NewResult(0, 2))
	mock.ExpectCommit()

	slots := []models.CourseSlot{
		{ID: "slot-a", DayOfWeek: models.WeekdayMonday, StartTime: "BRT_14:00"},
		{DayOfWeek: models.WeekdayWednesday, StartTime: "BRT_16:00"},
	}
	version, err := repo.Persist(context.Background(), "course-1", 4, slots)
	require.NoError(t, err)
	assert.Equal(t, int64(5), version)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseSlotRepositoryPersistVersionConflict(t *testing.T) {
	repo, mock, cleanup := newCourseSlotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE courses SET version").
		WithArgs("course-1", int64(3)).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(true))
	mock.ExpectRollback()

	_, err := repo.Persist(context.Background(), "course-1", 3, nil)
	assert.True(t, errors.Is(err, models.ErrVersionConflict))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseSlotRepositoryPersistRollsBackOnInsertFailure(t *testing.T) {
	repo, mock, cleanup := newCourseSlotRepoMock(t)
	defer cleanup()

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE courses SET version").
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow(int64(2)))
	mock.ExpectExec("DELETE FROM course_slots").WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("INSERT INTO course_slots").WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	_, err := repo.Persist(context.Background(), "course-1", 1, []models.CourseSlot{{ID: "s", DayOfWeek: models.WeekdayMonday, StartTime: "BRT_14:00"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "insert course slots")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCourseSlotRepositoryListScheduleTimes(t *testing.T) {
	repo, mock, cleanup := newCourseSlotRepoMock(t)
	defer cleanup()

	mock.ExpectQuery(regexp.QuoteMeta("SELECT start_time FROM course_schedule_options WHERE course_id = $1")).
		WithArgs("course-1").
		WillReturnRows(sqlmock.NewRows([]string{"start_time"}).AddRow("BRT_14:00").AddRow("BRT_15:00"))

	labels, err := repo.ListScheduleTimes(context.Background(), "course-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"BRT_14:00", "BRT_15:00"}, labels)
	assert.NoError(t, mock.ExpectationsWereMet())
}
