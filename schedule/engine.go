package schedule

import (
	"errors"
	"fmt"
	"time"

	"remind-server/models"
)

var (
	// ErrNotificationDisabled means the reminder cannot carry an alarm at all:
	// notifications are off or there is no start time.
	ErrNotificationDisabled = errors.New("notification disabled or no start time")

	// ErrInvalidSchedule wraps unparseable date/time data.
	ErrInvalidSchedule = errors.New("invalid schedule data")

	// ErrNoRepeat is returned by NextOccurrence for a non-repeating reminder.
	ErrNoRepeat = errors.New("reminder does not repeat")
)

// PastKind classifies a trigger instant against "now". Both past kinds mean
// "do not schedule"; they are distinguished for diagnostics only.
type PastKind int

const (
	// PastNone: the trigger is in the future and can be scheduled.
	PastNone PastKind = iota
	// PastReminder: the reminder instant itself has elapsed. Expected when
	// alarms are re-registered after a restart.
	PastReminder
	// PastLeadOnly: only the lead-adjusted trigger has elapsed while the
	// reminder instant is still in the future. Inconsistent input, worth
	// surfacing distinctly.
	PastLeadOnly
)

func (k PastKind) String() string {
	switch k {
	case PastReminder:
		return "reminder elapsed"
	case PastLeadOnly:
		return "lead window elapsed"
	default:
		return "future"
	}
}

// Trigger is the computed alarm instant for a reminder.
type Trigger struct {
	At         time.Time // instant to hand to the alarm dispatcher
	ReminderAt time.Time // nominal date+startTime instant
	Past       PastKind
}

// Schedulable reports whether the trigger is still in the future.
func (t Trigger) Schedulable() bool { return t.Past == PastNone }

// Engine computes trigger instants and repeat rollovers. It is a pure
// function over calendar data: no clock of its own, no I/O, no mutation of
// the reminder it is handed. The location is explicit so there is no shared
// formatter or global timezone state.
type Engine struct {
	loc *time.Location
}

func NewEngine(loc *time.Location) Engine {
	if loc == nil {
		loc = time.Local
	}
	return Engine{loc: loc}
}

// Trigger combines the reminder's date and start time at second zero,
// subtracts the notification lead time and classifies the result against now.
func (e Engine) Trigger(rem models.Reminder, now time.Time) (Trigger, error) {
	if !rem.EnableNotification || rem.StartTime == "" {
		return Trigger{}, ErrNotificationDisabled
	}

	reminderAt, err := e.instant(rem.Date, rem.StartTime)
	if err != nil {
		return Trigger{}, err
	}

	minutes := rem.NotificationMinutesBefore
	if minutes < 0 {
		minutes = 0
	}
	if minutes > models.MaxNotificationMinutes {
		minutes = models.MaxNotificationMinutes
	}

	trig := Trigger{
		At:         reminderAt.Add(-time.Duration(minutes) * time.Minute),
		ReminderAt: reminderAt,
	}

	// Boundary is <= now: an instant equal to now is already past.
	switch {
	case !reminderAt.After(now):
		trig.Past = PastReminder
	case !trig.At.After(now):
		trig.Past = PastLeadOnly
	}
	return trig, nil
}

// NextOccurrence computes the date of the next firing for a repeating
// reminder. The base is the current date with the reminder's original
// hour:minute, not the stale stored date: adding one interval to "now"
// guarantees the next occurrence is strictly in the future even if several
// intervals were missed while the process was down. No compounding for
// missed intervals beyond this single step.
func (e Engine) NextOccurrence(rem models.Reminder, now time.Time) (string, error) {
	if !rem.Repeats() {
		return "", ErrNoRepeat
	}

	st, err := time.ParseInLocation(models.TimeLayout, rem.StartTime, e.loc)
	if err != nil {
		return "", fmt.Errorf("%w: start time %q: %v", ErrInvalidSchedule, rem.StartTime, err)
	}

	local := now.In(e.loc)
	base := time.Date(local.Year(), local.Month(), local.Day(), st.Hour(), st.Minute(), 0, 0, e.loc)

	var next time.Time
	switch rem.RepeatType {
	case models.RepeatDaily:
		next = base.AddDate(0, 0, 1)
	case models.RepeatWeekly:
		next = base.AddDate(0, 0, 7)
	case models.RepeatMonthly:
		next = base.AddDate(0, 1, 0)
	case models.RepeatYearly:
		next = base.AddDate(1, 0, 0)
	default:
		return "", fmt.Errorf("%w: unknown repeat type %q", ErrInvalidSchedule, rem.RepeatType)
	}
	return next.Format(models.DateLayout), nil
}

func (e Engine) instant(date, timeOfDay string) (time.Time, error) {
	d, err := time.ParseInLocation(models.DateLayout, date, e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q: %v", ErrInvalidSchedule, date, err)
	}
	t, err := time.ParseInLocation(models.TimeLayout, timeOfDay, e.loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: time %q: %v", ErrInvalidSchedule, timeOfDay, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), t.Hour(), t.Minute(), 0, 0, e.loc), nil
}
