package models

import (
	"errors"
	"time"

	"github.com/jmoiron/sqlx/types"
)

// Weekday is the internal day key stored on a slot.
type Weekday string

// Offerable weekdays. Weekend slots are not supported.
const (
	WeekdayMonday    Weekday = "segunda"
	WeekdayTuesday   Weekday = "terca"
	WeekdayWednesday Weekday = "quarta"
	WeekdayThursday  Weekday = "quinta"
	WeekdayFriday    Weekday = "sexta"
)

// Weekdays lists the offerable weekdays in calendar order.
var Weekdays = []Weekday{WeekdayMonday, WeekdayTuesday, WeekdayWednesday, WeekdayThursday, WeekdayFriday}

var (
	// ErrCourseNotFound is returned by slot stores when the course does not exist.
	ErrCourseNotFound = errors.New("course not found")
	// ErrVersionConflict is returned by Persist when another writer committed first.
	ErrVersionConflict = errors.New("course schedule version conflict")
)

// CourseSlot is one weekly class session ("turma") of a course. Its position in
// CourseSchedule.Slots is its index; the display number is index+1.
type CourseSlot struct {
	ID        string  `db:"id" json:"id"`
	DayOfWeek Weekday `db:"day_of_week" json:"day_of_week"`
	StartTime string  `db:"start_time" json:"start_time"`
	StartDate *string `db:"start_date" json:"start_date,omitempty"`
	EndDate   *string `db:"end_date" json:"end_date,omitempty"`
	JoinLink  *string `db:"join_link" json:"join_link,omitempty"`
}

// CourseSchedule is the ordered slot list of a course together with the version token
// used for optimistic concurrency.
type CourseSchedule struct {
	CourseID          string       `db:"id" json:"course_id"`
	Title             string       `db:"title" json:"title"`
	StartsOn          *string      `db:"starts_on" json:"starts_on,omitempty"`
	PromoBadgeEnabled bool         `db:"promo_badge_enabled" json:"promo_badge_enabled"`
	PromoBadgeText    string       `db:"promo_badge_text" json:"promo_badge_text"`
	Version           int64        `db:"version" json:"version"`
	Slots             []CourseSlot `db:"-" json:"slots"`
}

// SlotEnrollment is a student's active registration on a course. ClassAssignment holds the
// 1-based display number of the slot the student attends.
type SlotEnrollment struct {
	StudentID       string `db:"student_id" json:"student_id"`
	ClassAssignment *int   `db:"class_assignment" json:"class_assignment,omitempty"`
	Enabled         bool   `db:"enabled" json:"enabled"`
}

// SlotAuditAction names a slot mutation recorded in the audit trail.
type SlotAuditAction string

// Audited slot mutations.
const (
	SlotAuditAdded     SlotAuditAction = "SLOT_ADDED"
	SlotAuditReordered SlotAuditAction = "SLOTS_REORDERED"
	SlotAuditDeleted   SlotAuditAction = "SLOT_DELETED"
)

// SlotAuditLog is a persisted record of a successful slot mutation.
type SlotAuditLog struct {
	ID        string          `db:"id" json:"id"`
	CourseID  string          `db:"course_id" json:"course_id"`
	Action    SlotAuditAction `db:"action" json:"action"`
	ActorID   *string         `db:"actor_id" json:"actor_id,omitempty"`
	Version   int64           `db:"version" json:"version"`
	Before    types.JSONText  `db:"before_json" json:"before,omitempty"`
	After     types.JSONText  `db:"after_json" json:"after,omitempty"`
	CreatedAt time.Time       `db:"created_at" json:"created_at"`
}
