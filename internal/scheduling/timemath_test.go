package scheduling

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nitro-academy/turma-scheduler/internal/models"
)

func TestToMinutes(t *testing.T) {
	cases := map[string]int{
		"00:00":     0,
		"14:00":     840,
		"BRT_14:30": 870,
		"23:59":     1439,
	}
	for label, want := range cases {
		got, err := ToMinutes(label)
		require.NoError(t, err, label)
		assert.Equal(t, want, got, label)
	}
}

func TestToMinutesRejectsMalformedLabels(t *testing.T) {
	for _, label := range []string{"", "9:00", "24:00", "14:60", "14h00", "BRT_", "14:00:00"} {
		_, err := ToMinutes(label)
		assert.True(t, errors.Is(err, ErrInvalidTimeFormat), label)
	}
}

func TestOverlaps(t *testing.T) {
	cases := []struct {
		a, b string
		want bool
	}{
		{"14:00", "14:30", true},
		{"14:30", "14:00", true},
		{"14:00", "14:49", true},
		{"14:00", "14:50", false},
		{"14:00", "15:00", false},
		{"BRT_14:00", "14:00", true},
	}
	for _, tc := range cases {
		got, err := Overlaps(tc.a, tc.b, SessionDurationMinutes)
		require.NoError(t, err)
		assert.Equal(t, tc.want, got, "%s vs %s", tc.a, tc.b)
	}

	_, err := Overlaps("bad", "14:00", SessionDurationMinutes)
	assert.Error(t, err)
}

func TestTimeLabels(t *testing.T) {
	assert.Equal(t, "BRT_14:00", InternalTimeLabel("14:00"))
	assert.Equal(t, "BRT_14:00", InternalTimeLabel("BRT_14:00"))
	assert.Equal(t, "14:00", DisplayTimeLabel("BRT_14:00"))
	assert.Equal(t, "14:00", DisplayTimeLabel("14:00"))
}

func TestParseWeekday(t *testing.T) {
	day, err := ParseWeekday("Monday")
	require.NoError(t, err)
	assert.Equal(t, models.WeekdayMonday, day)

	day, err = ParseWeekday("terça")
	require.NoError(t, err)
	assert.Equal(t, models.WeekdayTuesday, day)
	assert.Equal(t, "tuesday", UIKey(day))

	_, err = ParseWeekday("saturday")
	assert.True(t, errors.Is(err, ErrUnknownWeekday))
}
