package dto

import "github.com/nitro-academy/turma-scheduler/internal/scheduling"

// AddSlotRequest creates a slot from UI-facing day and time keys.
type AddSlotRequest struct {
	DayOfWeek string  `json:"day_of_week" validate:"required"`
	StartTime string  `json:"start_time" validate:"required"`
	StartDate *string `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate   *string `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	JoinLink  *string `json:"join_link,omitempty" validate:"omitempty,url"`
	// IfMatch carries the version the caller last saw; empty skips the check.
	IfMatch string `json:"-"`
	ActorID string `json:"-"`
}

// ReorderSlotsRequest lists, for each new position, the current index of the slot that moves there.
type ReorderSlotsRequest struct {
	Order   []int  `json:"order" validate:"required"`
	IfMatch string `json:"-"`
	ActorID string `json:"-"`
}

// DeleteSlotRequest removes the slot at a zero-based index.
type DeleteSlotRequest struct {
	Index   *int   `json:"index" validate:"required"`
	IfMatch string `json:"-"`
	ActorID string `json:"-"`
}

// CourseSlotView is the external representation of one slot.
type CourseSlotView struct {
	DisplayNumber     int                     `json:"display_number"`
	Index             int                     `json:"index"`
	SlotID            string                  `json:"slot_id"`
	DayOfWeek         string                  `json:"day_of_week"`
	DayKey            string                  `json:"day_key"`
	StartTime         string                  `json:"start_time"`
	StartDate         *string                 `json:"start_date,omitempty"`
	EndDate           *string                 `json:"end_date,omitempty"`
	JoinLink          *string                 `json:"join_link,omitempty"`
	CurrentEnrollment int                     `json:"current_enrollment"`
	MaxCapacity       int                     `json:"max_capacity"`
	IsFull            bool                    `json:"is_full"`
	Availability      scheduling.Availability `json:"availability"`
}

// CourseSlotList is the projected slot list of a course.
type CourseSlotList struct {
	CourseID    string           `json:"course_id"`
	Version     int64            `json:"version"`
	Slots       []CourseSlotView `json:"slots"`
	FullyBooked bool             `json:"fully_booked"`
	// AutoSelectedSlot is the display number preselected for students, if any.
	AutoSelectedSlot *int             `json:"auto_selected_slot,omitempty"`
	Badge            scheduling.Badge `json:"badge"`
}

// ScheduleOptions lists the start times a course may offer.
type ScheduleOptions struct {
	CourseID   string   `json:"course_id"`
	TimeLabels []string `json:"time_labels"`
	Source     string   `json:"source"`
}

// Schedule option sources.
const (
	ScheduleOptionsSourceStore    = "content_store"
	ScheduleOptionsSourceCache    = "cache"
	ScheduleOptionsSourceFallback = "fallback"
)

// AdmissionResult tells enrollment flows whether a student may join a slot.
type AdmissionResult struct {
	CourseID      string                   `json:"course_id"`
	DisplayNumber int                      `json:"display_number"`
	Capacity      scheduling.CapacityState `json:"capacity"`
	Admissible    bool                     `json:"admissible"`
}
