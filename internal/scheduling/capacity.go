package scheduling

import "math"

// Capacity defaults.
const (
	DefaultMaxCapacity     = 15
	DefaultNearlyFullRatio = 0.8
)

// Availability is the coarse state shown to enrollment flows.
type Availability string

// Availability states.
const (
	AvailabilityOpen       Availability = "open"
	AvailabilityNearlyFull Availability = "nearly_full"
	AvailabilityFull       Availability = "full"
)

// CapacityState is the derived occupancy of one slot. It is recomputed on every read.
type CapacityState struct {
	CurrentEnrollment int          `json:"current_enrollment"`
	MaxCapacity       int          `json:"max_capacity"`
	IsFull            bool         `json:"is_full"`
	Availability      Availability `json:"availability"`
}

// Projector turns enrollment counts into CapacityState using one capacity for every slot.
type Projector struct {
	maxCapacity     int
	nearlyFullRatio float64
}

// NewProjector builds a Projector. Non-positive capacities fall back to DefaultMaxCapacity and
// ratios outside (0, 1] to DefaultNearlyFullRatio.
func NewProjector(maxCapacity int, nearlyFullRatio float64) Projector {
	if maxCapacity <= 0 {
		maxCapacity = DefaultMaxCapacity
	}
	if nearlyFullRatio <= 0 || nearlyFullRatio > 1 {
		nearlyFullRatio = DefaultNearlyFullRatio
	}
	return Projector{maxCapacity: maxCapacity, nearlyFullRatio: nearlyFullRatio}
}

// MaxCapacity returns the configured seats per slot.
func (p Projector) MaxCapacity() int {
	return p.maxCapacity
}

// Project derives the state of a slot holding enrollment students.
func (p Projector) Project(enrollment int) CapacityState {
	if enrollment < 0 {
		enrollment = 0
	}
	state := CapacityState{
		CurrentEnrollment: enrollment,
		MaxCapacity:       p.maxCapacity,
		IsFull:            enrollment >= p.maxCapacity,
		Availability:      AvailabilityOpen,
	}
	threshold := int(math.Ceil(float64(p.maxCapacity) * p.nearlyFullRatio))
	switch {
	case state.IsFull:
		state.Availability = AvailabilityFull
	case enrollment >= threshold:
		state.Availability = AvailabilityNearlyFull
	}
	return state
}

// Project is a convenience for callers that only need the fullness flag.
func Project(enrollment, maxCapacity int) CapacityState {
	return NewProjector(maxCapacity, DefaultNearlyFullRatio).Project(enrollment)
}

// AggregateCourseFullness is true iff the course has slots and every one of them is full.
func AggregateCourseFullness(states []CapacityState) bool {
	if len(states) == 0 {
		return false
	}
	for _, s := range states {
		if !s.IsFull {
			return false
		}
	}
	return true
}

// AutoSelectSlot returns the index to preselect for a student: only when the course offers a
// single slot and it still has seats.
func AutoSelectSlot(states []CapacityState) (int, bool) {
	if len(states) != 1 || states[0].IsFull {
		return 0, false
	}
	return 0, true
}
