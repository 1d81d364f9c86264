package scheduling

import (
	"errors"
	"fmt"
	"strings"

	"github.com/nitro-academy/turma-scheduler/internal/models"
)

// ErrUnknownWeekday is returned for day keys outside the five offerable weekdays.
var ErrUnknownWeekday = errors.New("unknown weekday")

var uiKeys = map[models.Weekday]string{
	models.WeekdayMonday:    "monday",
	models.WeekdayTuesday:   "tuesday",
	models.WeekdayWednesday: "wednesday",
	models.WeekdayThursday:  "thursday",
	models.WeekdayFriday:    "friday",
}

var weekdayAliases = map[string]models.Weekday{
	"segunda":   models.WeekdayMonday,
	"terca":     models.WeekdayTuesday,
	"terça":     models.WeekdayTuesday,
	"quarta":    models.WeekdayWednesday,
	"quinta":    models.WeekdayThursday,
	"sexta":     models.WeekdayFriday,
	"monday":    models.WeekdayMonday,
	"tuesday":   models.WeekdayTuesday,
	"wednesday": models.WeekdayWednesday,
	"thursday":  models.WeekdayThursday,
	"friday":    models.WeekdayFriday,
}

// ParseWeekday accepts either the internal key or the UI key, case-insensitively.
func ParseWeekday(raw string) (models.Weekday, error) {
	day, ok := weekdayAliases[strings.ToLower(strings.TrimSpace(raw))]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrUnknownWeekday, raw)
	}
	return day, nil
}

// UIKey returns the UI-facing key of a weekday, or the raw value when it is not recognised.
func UIKey(day models.Weekday) string {
	if key, ok := uiKeys[day]; ok {
		return key
	}
	return string(day)
}
