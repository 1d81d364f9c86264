package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/nitro-academy/turma-scheduler/internal/models"
)

// CourseSlotRepository stores course slot lists in PostgreSQL. The courses.version column is
// the optimistic concurrency token.
type CourseSlotRepository struct {
	db   *sqlx.DB
	psql squirrel.StatementBuilderType
}

// NewCourseSlotRepository creates a new course slot repository.
func NewCourseSlotRepository(db *sqlx.DB) *CourseSlotRepository {
	return &CourseSlotRepository{
		db:   db,
		psql: squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}
}

// ListSlots loads the course header and its slots in stored order.
func (r *CourseSlotRepository) ListSlots(ctx context.Context, courseID string) (*models.CourseSchedule, error) {
	const courseQuery = `SELECT id, title, starts_on, promo_badge_enabled, promo_badge_text, version FROM courses WHERE id = $1`
	var schedule models.CourseSchedule
	if err := r.db.GetContext(ctx, &schedule, courseQuery, courseID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, models.ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course %s: %w", courseID, err)
	}

	const slotsQuery = `SELECT id, day_of_week, start_time, start_date, end_date, join_link FROM course_slots WHERE course_id = $1 ORDER BY position ASC`
	slots := make([]models.CourseSlot, 0)
	if err := r.db.SelectContext(ctx, &slots, slotsQuery, courseID); err != nil {
		return nil, fmt.Errorf("list course slots: %w", err)
	}
	schedule.Slots = slots
	return &schedule, nil
}

type slotTally struct {
	ClassAssignment int `db:"class_assignment"`
	Total           int `db:"total"`
}

// CountEnrollmentsPerSlot tallies enabled enrollments by display number. Assignments that are
// null or outside the current slot range are not counted.
func (r *CourseSlotRepository) CountEnrollmentsPerSlot(ctx context.Context, courseID string) (map[int]int, error) {
	query, args, err := r.psql.
		Select("class_assignment", "COUNT(*) AS total").
		From("course_enrollments").
		Where(squirrel.Eq{"course_id": courseID, "enabled": true}).
		Where(squirrel.Expr("class_assignment BETWEEN 1 AND (SELECT COUNT(*) FROM course_slots WHERE course_id = ?)", courseID)).
		GroupBy("class_assignment").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build enrollment tally query: %w", err)
	}

	var rows []slotTally
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count enrollments per slot: %w", err)
	}

	counts := make(map[int]int, len(rows))
	for _, row := range rows {
		counts[row.ClassAssignment] = row.Total
	}
	return counts, nil
}

// Persist replaces the slot list in one transaction, provided the course is still at
// expectedVersion. It returns the new version.
func (r *CourseSlotRepository) Persist(ctx context.Context, courseID string, expectedVersion int64, slots []models.CourseSlot) (version int64, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin persist course slots: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const bumpQuery = `UPDATE courses SET version = version + 1, updated_at = NOW() WHERE id = $1 AND version = $2 RETURNING version`
	if err = tx.GetContext(ctx, &version, bumpQuery, courseID, expectedVersion); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = r.versionMismatch(ctx, tx, courseID)
			return 0, err
		}
		err = fmt.Errorf("bump course version: %w", err)
		return 0, err
	}

	if _, err = tx.ExecContext(ctx, `DELETE FROM course_slots WHERE course_id = $1`, courseID); err != nil {
		err = fmt.Errorf("clear course slots: %w", err)
		return 0, err
	}

	if len(slots) > 0 {
		insert := r.psql.Insert("course_slots").
			Columns("id", "course_id", "position", "day_of_week", "start_time", "start_date", "end_date", "join_link")
		for i, slot := range slots {
			id := slot.ID
			if id == "" {
				id = uuid.NewString()
			}
			insert = insert.Values(id, courseID, i, string(slot.DayOfWeek), slot.StartTime, slot.StartDate, slot.EndDate, slot.JoinLink)
		}
		query, args, buildErr := insert.ToSql()
		if buildErr != nil {
			err = fmt.Errorf("build insert course slots: %w", buildErr)
			return 0, err
		}
		if _, err = tx.ExecContext(ctx, query, args...); err != nil {
			err = fmt.Errorf("insert course slots: %w", err)
			return 0, err
		}
	}

	if err = tx.Commit(); err != nil {
		err = fmt.Errorf("commit course slots: %w", err)
		return 0, err
	}
	return version, nil
}

func (r *CourseSlotRepository) versionMismatch(ctx context.Context, tx *sqlx.Tx, courseID string) error {
	var exists bool
	if err := tx.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM courses WHERE id = $1)`, courseID); err != nil {
		return fmt.Errorf("check course %s: %w", courseID, err)
	}
	if !exists {
		return models.ErrCourseNotFound
	}
	return models.ErrVersionConflict
}

// ListScheduleTimes returns the start times a course may offer, earliest first.
func (r *CourseSlotRepository) ListScheduleTimes(ctx context.Context, courseID string) ([]string, error) {
	const query = `SELECT start_time FROM course_schedule_options WHERE course_id = $1 ORDER BY start_time ASC`
	labels := make([]string, 0)
	if err := r.db.SelectContext(ctx, &labels, query, courseID); err != nil {
		return nil, fmt.Errorf("list schedule options: %w", err)
	}
	return labels, nil
}
