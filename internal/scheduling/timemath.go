// Package scheduling holds the side-effect-free rules of the class-slot engine: time arithmetic,
// weekday keys, invariant checks and capacity projection. Nothing here performs I/O.
package scheduling

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SessionDurationMinutes is the fixed length of every class session.
const SessionDurationMinutes = 50

// RegionalPrefix marks stored start times as regional wall-clock labels.
const RegionalPrefix = "BRT_"

// ErrInvalidTimeFormat is returned when a label is not HH:MM.
var ErrInvalidTimeFormat = errors.New("invalid time format")

var timeLabelPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):([0-5][0-9])$`)

// ToMinutes converts an HH:MM label, with or without the regional prefix, into minutes since midnight.
func ToMinutes(label string) (int, error) {
	m := timeLabelPattern.FindStringSubmatch(DisplayTimeLabel(label))
	if m == nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidTimeFormat, label)
	}
	hours, _ := strconv.Atoi(m[1])
	minutes, _ := strconv.Atoi(m[2])
	return hours*60 + minutes, nil
}

// Overlaps reports whether [a, a+duration) intersects [b, b+duration).
func Overlaps(a, b string, duration int) (bool, error) {
	startA, err := ToMinutes(a)
	if err != nil {
		return false, err
	}
	startB, err := ToMinutes(b)
	if err != nil {
		return false, err
	}
	return startA < startB+duration && startB < startA+duration, nil
}

// InternalTimeLabel returns the stored form of a start time ("14:00" -> "BRT_14:00").
func InternalTimeLabel(label string) string {
	label = strings.TrimSpace(label)
	if strings.HasPrefix(label, RegionalPrefix) {
		return label
	}
	return RegionalPrefix + label
}

// DisplayTimeLabel strips the regional prefix ("BRT_14:00" -> "14:00").
func DisplayTimeLabel(label string) string {
	return strings.TrimPrefix(strings.TrimSpace(label), RegionalPrefix)
}

// FallbackTimeLabels are offered when the schedule options of a course cannot be read.
var FallbackTimeLabels = []string{"14:00", "15:00", "16:00", "17:00", "18:00", "19:00", "20:00"}
