package schedule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remind-server/models"
)

func mustTime(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.UTC)
	require.NoError(t, err)
	return ts
}

func notifiable(date, start string, minutes int) models.Reminder {
	return models.Reminder{
		ID:                        "rem-1",
		Date:                      date,
		StartTime:                 start,
		Title:                     "dentist",
		EnableNotification:        true,
		NotificationMinutesBefore: minutes,
	}
}

func TestTrigger(t *testing.T) {
	engine := NewEngine(time.UTC)

	tests := []struct {
		name     string
		reminder models.Reminder
		now      string
		wantAt   string
		wantPast PastKind
		wantErr  error
	}{
		{
			name:     "lead time subtracted from start",
			reminder: notifiable("2025-06-01", "09:00", 10),
			now:      "2025-06-01T08:00:00",
			wantAt:   "2025-06-01T08:50:00",
			wantPast: PastNone,
		},
		{
			name:     "zero lead fires at start time",
			reminder: notifiable("2025-06-01", "09:00", 0),
			now:      "2025-06-01T08:00:00",
			wantAt:   "2025-06-01T09:00:00",
			wantPast: PastNone,
		},
		{
			name:     "lead elapsed while reminder still future",
			reminder: notifiable("2025-06-01", "09:00", 10),
			now:      "2025-06-01T08:55:00",
			wantAt:   "2025-06-01T08:50:00",
			wantPast: PastLeadOnly,
		},
		{
			name:     "reminder instant one second in the past",
			reminder: notifiable("2025-06-01", "09:00", 0),
			now:      "2025-06-01T09:00:01",
			wantAt:   "2025-06-01T09:00:00",
			wantPast: PastReminder,
		},
		{
			name:     "reminder instant exactly now is past",
			reminder: notifiable("2025-06-01", "09:00", 0),
			now:      "2025-06-01T09:00:00",
			wantAt:   "2025-06-01T09:00:00",
			wantPast: PastReminder,
		},
		{
			name:     "trigger instant exactly now is past",
			reminder: notifiable("2025-06-01", "09:00", 10),
			now:      "2025-06-01T08:50:00",
			wantAt:   "2025-06-01T08:50:00",
			wantPast: PastLeadOnly,
		},
		{
			name:     "lead clamped to one day",
			reminder: notifiable("2025-06-02", "09:00", 99999),
			now:      "2025-06-01T08:00:00",
			wantAt:   "2025-06-01T09:00:00",
			wantPast: PastNone,
		},
		{
			name:     "notification disabled",
			reminder: models.Reminder{Date: "2025-06-01", StartTime: "09:00"},
			now:      "2025-06-01T08:00:00",
			wantErr:  ErrNotificationDisabled,
		},
		{
			name:     "no start time disables scheduling",
			reminder: models.Reminder{Date: "2025-06-01", EnableNotification: true},
			now:      "2025-06-01T08:00:00",
			wantErr:  ErrNotificationDisabled,
		},
		{
			name:     "unparseable date",
			reminder: notifiable("06/01/2025", "09:00", 5),
			now:      "2025-06-01T08:00:00",
			wantErr:  ErrInvalidSchedule,
		},
		{
			name:     "unparseable time",
			reminder: notifiable("2025-06-01", "9 o'clock", 5),
			now:      "2025-06-01T08:00:00",
			wantErr:  ErrInvalidSchedule,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			trig, err := engine.Trigger(tt.reminder, mustTime(t, tt.now))
			if tt.wantErr != nil {
				require.Error(t, err)
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, mustTime(t, tt.wantAt), trig.At)
			assert.Equal(t, tt.wantPast, trig.Past)
			assert.Equal(t, tt.wantPast == PastNone, trig.Schedulable())
		})
	}
}

func TestTriggerLeadExactlyBeforeStart(t *testing.T) {
	engine := NewEngine(time.UTC)

	rem := notifiable("2025-06-01", "09:00", 25)
	trig, err := engine.Trigger(rem, mustTime(t, "2025-06-01T00:00:00"))
	require.NoError(t, err)
	assert.Equal(t, 25*time.Minute, trig.ReminderAt.Sub(trig.At))
	assert.Equal(t, mustTime(t, "2025-06-01T09:00:00"), trig.ReminderAt)
}

func TestNextOccurrence(t *testing.T) {
	engine := NewEngine(time.UTC)

	repeating := func(repeat string) models.Reminder {
		rem := notifiable("2025-01-15", "09:00", 5)
		rem.RepeatType = repeat
		return rem
	}

	tests := []struct {
		name    string
		repeat  string
		now     string
		want    string
		wantErr error
	}{
		{
			name:   "daily rolls one day past now",
			repeat: models.RepeatDaily,
			now:    "2025-06-01T09:00:00",
			want:   "2025-06-02",
		},
		{
			name:   "daily ignores the stale stored date",
			repeat: models.RepeatDaily,
			now:    "2025-06-15T21:30:00",
			want:   "2025-06-16",
		},
		{
			name:   "weekly rolls one week past now",
			repeat: models.RepeatWeekly,
			now:    "2025-06-01T09:00:00",
			want:   "2025-06-08",
		},
		{
			name:   "monthly rolls one month past now",
			repeat: models.RepeatMonthly,
			now:    "2025-06-01T09:00:00",
			want:   "2025-07-01",
		},
		{
			name:   "yearly rolls one year past now",
			repeat: models.RepeatYearly,
			now:    "2025-06-01T09:00:00",
			want:   "2026-06-01",
		},
		{
			name:    "no repeat",
			repeat:  models.RepeatNone,
			now:     "2025-06-01T09:00:00",
			wantErr: ErrNoRepeat,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next, err := engine.NextOccurrence(repeating(tt.repeat), mustTime(t, tt.now))
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, next)
		})
	}
}

func TestNextOccurrencePreservesStartTime(t *testing.T) {
	engine := NewEngine(time.UTC)

	// NextOccurrence hands back a date; the caller keeps the reminder's
	// startTime. Rolling forward and recomputing the trigger must land
	// exactly one interval after today's start instant.
	rem := notifiable("2025-01-01", "07:45", 0)
	rem.RepeatType = models.RepeatDaily

	now := mustTime(t, "2025-06-01T07:45:00")
	next, err := engine.NextOccurrence(rem, now)
	require.NoError(t, err)
	require.Equal(t, "2025-06-02", next)

	rem.Date = next
	trig, err := engine.Trigger(rem, now)
	require.NoError(t, err)
	assert.True(t, trig.Schedulable())
	assert.Equal(t, mustTime(t, "2025-06-02T07:45:00"), trig.At)
	assert.Equal(t, 24*time.Hour, trig.At.Sub(now))
}

func TestNextOccurrenceUnknownRepeatType(t *testing.T) {
	engine := NewEngine(time.UTC)

	rem := notifiable("2025-06-01", "09:00", 5)
	rem.RepeatType = "FORTNIGHTLY"

	_, err := engine.NextOccurrence(rem, mustTime(t, "2025-06-01T09:00:00"))
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}

func TestNextOccurrenceBadStartTime(t *testing.T) {
	engine := NewEngine(time.UTC)

	rem := notifiable("2025-06-01", "later", 5)
	rem.RepeatType = models.RepeatDaily

	_, err := engine.NextOccurrence(rem, mustTime(t, "2025-06-01T09:00:00"))
	assert.ErrorIs(t, err, ErrInvalidSchedule)
}
