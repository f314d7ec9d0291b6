package delivery

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"remind-server/models"
	"remind-server/schedule"
)

type fakeStore struct {
	reminders map[string]models.Reminder
	upserts   []models.Reminder
	failSave  bool
}

func newFakeStore(reminders ...models.Reminder) *fakeStore {
	f := &fakeStore{reminders: make(map[string]models.Reminder)}
	for _, r := range reminders {
		f.reminders[r.ID] = r
	}
	return f
}

func (f *fakeStore) Get(id string) (models.Reminder, bool) {
	r, ok := f.reminders[id]
	return r, ok
}

func (f *fakeStore) Upsert(r models.Reminder) error {
	if f.failSave {
		return errors.New("disk full")
	}
	f.reminders[r.ID] = r
	f.upserts = append(f.upserts, r)
	return nil
}

func (f *fakeStore) All() []models.Reminder {
	var out []models.Reminder
	for _, r := range f.reminders {
		out = append(out, r)
	}
	return out
}

type fakeScheduler struct {
	scheduled map[string]time.Time
	err       error
}

func newFakeScheduler() *fakeScheduler {
	return &fakeScheduler{scheduled: make(map[string]time.Time)}
}

func (f *fakeScheduler) Schedule(id string, at time.Time) error {
	if f.err != nil {
		return f.err
	}
	f.scheduled[id] = at
	return nil
}

type fakeNotifier struct {
	shown []models.ReminderNotification
	panic bool
}

func (f *fakeNotifier) Show(title, body, targetID string) {
	if f.panic {
		panic("renderer blew up")
	}
	f.shown = append(f.shown, models.ReminderNotification{Title: title, Body: body, TargetID: targetID})
}

func fixedNow(t *testing.T, value string) time.Time {
	t.Helper()
	ts, err := time.ParseInLocation("2006-01-02T15:04:05", value, time.UTC)
	require.NoError(t, err)
	return ts
}

func newTestHandler(store *fakeStore, sched *fakeScheduler, notifier *fakeNotifier, now time.Time) *Handler {
	h := NewHandler(store, schedule.NewEngine(time.UTC), sched, notifier, zap.NewNop().Sugar())
	h.now = func() time.Time { return now }
	return h
}

func activeReminder() models.Reminder {
	return models.Reminder{
		ID:                 "rem-1",
		Date:               "2025-06-01",
		Title:              "water the plants",
		Content:            "back garden too",
		StartTime:          "09:00",
		EnableNotification: true,
		RepeatType:         models.RepeatNone,
	}
}

func TestHandleFireDeliversNotification(t *testing.T) {
	store := newFakeStore(activeReminder())
	sched := newFakeScheduler()
	notifier := &fakeNotifier{}
	h := newTestHandler(store, sched, notifier, fixedNow(t, "2025-06-01T09:00:00"))

	h.HandleFire("rem-1")

	require.Len(t, notifier.shown, 1)
	assert.Equal(t, "water the plants", notifier.shown[0].Title)
	assert.Equal(t, "back garden too", notifier.shown[0].Body)
	assert.Equal(t, "rem-1", notifier.shown[0].TargetID)
	assert.Empty(t, sched.scheduled, "non-repeating reminder must not reschedule")
	assert.Empty(t, store.upserts)
}

func TestHandleFireUsesContentWhenTitleEmpty(t *testing.T) {
	rem := activeReminder()
	rem.Title = ""
	store := newFakeStore(rem)
	notifier := &fakeNotifier{}
	h := newTestHandler(store, newFakeScheduler(), notifier, fixedNow(t, "2025-06-01T09:00:00"))

	h.HandleFire("rem-1")

	require.Len(t, notifier.shown, 1)
	assert.Equal(t, "back garden too", notifier.shown[0].Title)
}

func TestHandleFireUnknownIDIsNoop(t *testing.T) {
	store := newFakeStore()
	sched := newFakeScheduler()
	notifier := &fakeNotifier{}
	h := newTestHandler(store, sched, notifier, fixedNow(t, "2025-06-01T09:00:00"))

	h.HandleFire("gone")

	assert.Empty(t, notifier.shown)
	assert.Empty(t, sched.scheduled)
}

func TestHandleFireSkipsIneligible(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*models.Reminder)
	}{
		{"deleted", func(r *models.Reminder) { r.IsDeleted = true }},
		{"completed", func(r *models.Reminder) { r.IsCompleted = true }},
		{"notification disabled", func(r *models.Reminder) { r.EnableNotification = false }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rem := activeReminder()
			rem.RepeatType = models.RepeatWeekly
			tt.mutate(&rem)

			store := newFakeStore(rem)
			sched := newFakeScheduler()
			notifier := &fakeNotifier{}
			h := newTestHandler(store, sched, notifier, fixedNow(t, "2025-06-01T09:00:00"))

			h.HandleFire("rem-1")

			assert.Empty(t, notifier.shown, "no notification for ineligible reminder")
			assert.Empty(t, sched.scheduled, "no reschedule for ineligible reminder")
			assert.Empty(t, store.upserts)
		})
	}
}

func TestHandleFireWeeklyReschedules(t *testing.T) {
	rem := activeReminder()
	rem.RepeatType = models.RepeatWeekly
	rem.NotificationMinutesBefore = 0

	store := newFakeStore(rem)
	sched := newFakeScheduler()
	notifier := &fakeNotifier{}
	now := fixedNow(t, "2025-06-01T09:00:00")
	h := newTestHandler(store, sched, notifier, now)

	h.HandleFire("rem-1")

	// Notification delivered for the original firing first.
	require.Len(t, notifier.shown, 1)

	// Date rolled one week past now, written back, alarm re-registered.
	require.Len(t, store.upserts, 1)
	assert.Equal(t, "2025-06-08", store.upserts[0].Date)
	assert.Equal(t, now.UnixMilli(), store.upserts[0].Timestamp)

	at, ok := sched.scheduled["rem-1"]
	require.True(t, ok)
	assert.Equal(t, fixedNow(t, "2025-06-08T09:00:00"), at)
}

func TestHandleFireRescheduleFailureKeepsNotification(t *testing.T) {
	rem := activeReminder()
	rem.RepeatType = models.RepeatDaily

	store := newFakeStore(rem)
	sched := newFakeScheduler()
	sched.err = errors.New("no permission")
	notifier := &fakeNotifier{}
	h := newTestHandler(store, sched, notifier, fixedNow(t, "2025-06-01T09:00:00"))

	h.HandleFire("rem-1")

	assert.Len(t, notifier.shown, 1, "delivery is not rolled back on reschedule failure")
}

func TestHandleFireSaveFailureStopsReschedule(t *testing.T) {
	rem := activeReminder()
	rem.RepeatType = models.RepeatDaily

	store := newFakeStore(rem)
	store.failSave = true
	sched := newFakeScheduler()
	notifier := &fakeNotifier{}
	h := newTestHandler(store, sched, notifier, fixedNow(t, "2025-06-01T09:00:00"))

	h.HandleFire("rem-1")

	assert.Len(t, notifier.shown, 1)
	assert.Empty(t, sched.scheduled, "no alarm without the persisted rollover")
}

func TestHandleFireRecoversFromPanic(t *testing.T) {
	store := newFakeStore(activeReminder())
	notifier := &fakeNotifier{panic: true}
	h := newTestHandler(store, newFakeScheduler(), notifier, fixedNow(t, "2025-06-01T09:00:00"))

	assert.NotPanics(t, func() { h.HandleFire("rem-1") })
}

func TestReconcile(t *testing.T) {
	future := activeReminder()
	future.ID = "future"
	future.Date = "2025-06-02"

	elapsed := activeReminder()
	elapsed.ID = "elapsed"
	elapsed.Date = "2025-05-01"

	silent := activeReminder()
	silent.ID = "silent"
	silent.StartTime = ""

	done := activeReminder()
	done.ID = "done"
	done.Date = "2025-06-02"
	done.IsCompleted = true

	store := newFakeStore(future, elapsed, silent, done)
	sched := newFakeScheduler()
	h := newTestHandler(store, sched, &fakeNotifier{}, fixedNow(t, "2025-06-01T12:00:00"))

	scheduled := h.Reconcile()

	assert.Equal(t, 1, scheduled)
	_, ok := sched.scheduled["future"]
	assert.True(t, ok)
	assert.Len(t, sched.scheduled, 1)
}
