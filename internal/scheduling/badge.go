package scheduling

import "time"

// RegionalZone is the fixed offset used for calendar arithmetic.
var RegionalZone = time.FixedZone("BRT", -3*60*60)

// BadgeKind identifies which badge a course shows. At most one is shown.
type BadgeKind string

// Badge kinds in precedence order.
const (
	BadgeNone          BadgeKind = ""
	BadgeFullyBooked   BadgeKind = "fully_booked"
	BadgePromotional   BadgeKind = "promotional"
	BadgeDaysRemaining BadgeKind = "days_remaining"
)

// Badge is the label chosen for a course card.
type Badge struct {
	Kind          BadgeKind `json:"kind"`
	Label         string    `json:"label,omitempty"`
	DaysRemaining int       `json:"days_remaining,omitempty"`
}

// BadgeInput carries the course facts the badge depends on.
type BadgeInput struct {
	FullyBooked      bool
	PromotionEnabled bool
	PromotionText    string
	StartsOn         *time.Time
	Now              time.Time
}

// ChooseBadge applies the precedence: fully booked, then promotional, then days remaining
// when the course starts in the future.
func ChooseBadge(in BadgeInput) Badge {
	if in.FullyBooked {
		return Badge{Kind: BadgeFullyBooked}
	}
	if in.PromotionEnabled && in.PromotionText != "" {
		return Badge{Kind: BadgePromotional, Label: in.PromotionText}
	}
	if in.StartsOn != nil {
		if days := DaysUntil(*in.StartsOn, in.Now); days > 0 {
			return Badge{Kind: BadgeDaysRemaining, DaysRemaining: days}
		}
	}
	return Badge{Kind: BadgeNone}
}

// DaysUntil counts calendar days from now to start in the regional zone.
func DaysUntil(start, now time.Time) int {
	s := start.In(RegionalZone)
	n := now.In(RegionalZone)
	startDay := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)
	nowDay := time.Date(n.Year(), n.Month(), n.Day(), 0, 0, 0, 0, time.UTC)
	return int(startDay.Sub(nowDay).Hours() / 24)
}

// ParseCourseDate reads a YYYY-MM-DD date as midnight in the regional zone.
func ParseCourseDate(raw string) (time.Time, error) {
	return time.ParseInLocation("2006-01-02", raw, RegionalZone)
}
