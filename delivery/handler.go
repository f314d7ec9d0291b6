package delivery

import (
	"time"

	"go.uber.org/zap"

	"remind-server/models"
	"remind-server/schedule"
)

// Storage is the slice of the persistence store the delivery handler needs.
// The record is always re-read at fire time; the copy that existed when the
// alarm was scheduled is never trusted.
type Storage interface {
	Get(id string) (models.Reminder, bool)
	Upsert(rem models.Reminder) error
	All() []models.Reminder
}

// Scheduler registers the next occurrence of a repeating reminder.
type Scheduler interface {
	Schedule(id string, at time.Time) error
}

// Notifier renders a notification. Fire-and-forget: a failed or dropped
// notification is not recoverable by this system.
type Notifier interface {
	Show(title, body, targetID string)
}

// Handler processes alarm firings: re-validate, deliver, reschedule repeats.
// Each firing is a single short-lived invocation and must be idempotent
// against duplicate or late delivery.
type Handler struct {
	store    Storage
	engine   schedule.Engine
	alarms   Scheduler
	notifier Notifier
	now      func() time.Time
	log      *zap.SugaredLogger
}

func NewHandler(store Storage, engine schedule.Engine, alarms Scheduler, notifier Notifier, log *zap.SugaredLogger) *Handler {
	return &Handler{
		store:    store,
		engine:   engine,
		alarms:   alarms,
		notifier: notifier,
		now:      time.Now,
		log:      log,
	}
}

// HandleFire is the entry point for an elapsed alarm. It never lets a panic
// or error escape: a crash here cannot be recovered by anyone upstream.
func (h *Handler) HandleFire(id string) {
	defer func() {
		if rec := recover(); rec != nil {
			h.log.Errorf("[delivery] panic handling firing for %s: %v", id, rec)
		}
	}()

	rem, ok := h.store.Get(id)
	if !ok {
		// Deleted between scheduling and firing.
		h.log.Infof("[delivery] reminder %s not found, ignoring firing", id)
		return
	}

	if rem.IsCompleted || rem.IsDeleted || !rem.EnableNotification {
		h.log.Infof("[delivery] reminder %s no longer eligible, skipping", id)
		return
	}

	title := rem.Title
	if title == "" {
		title = rem.Content
	}
	h.notifier.Show(title, rem.Content, rem.ID)

	if rem.Repeats() {
		h.reschedule(rem)
	}
}

// reschedule rolls a repeating reminder forward and registers its next alarm.
// Any failure is logged; the notification already delivered is not undone.
func (h *Handler) reschedule(rem models.Reminder) {
	now := h.now()

	next, err := h.engine.NextOccurrence(rem, now)
	if err != nil {
		h.log.Warnf("[delivery] cannot compute next occurrence for %s: %v", rem.ID, err)
		return
	}

	rem.Date = next
	rem.Timestamp = now.UnixMilli()
	if err := h.store.Upsert(rem); err != nil {
		h.log.Errorf("[delivery] failed to persist next occurrence for %s: %v", rem.ID, err)
		return
	}

	trig, err := h.engine.Trigger(rem, now)
	if err != nil {
		h.log.Warnf("[delivery] cannot compute trigger for %s: %v", rem.ID, err)
		return
	}
	if !trig.Schedulable() {
		h.log.Warnf("[delivery] next trigger for %s already past (%s), not scheduling", rem.ID, trig.Past)
		return
	}
	if err := h.alarms.Schedule(rem.ID, trig.At); err != nil {
		h.log.Warnf("[delivery] failed to schedule next firing for %s: %v", rem.ID, err)
		return
	}
	h.log.Infof("[delivery] reminder %s rolled to %s, next firing %s", rem.ID, next, trig.At.Format(time.RFC3339))
}

// Reconcile re-registers alarms for every eligible reminder. Called once at
// startup: pending timers do not survive a restart, the collection does.
// Returns the number of alarms scheduled.
func (h *Handler) Reconcile() int {
	now := h.now()
	scheduled := 0

	for _, rem := range h.store.All() {
		if !rem.IsActive() || !rem.EnableNotification || rem.StartTime == "" {
			continue
		}

		trig, err := h.engine.Trigger(rem, now)
		if err != nil {
			h.log.Warnf("[delivery] reconcile: bad schedule data for %s: %v", rem.ID, err)
			continue
		}
		switch trig.Past {
		case schedule.PastReminder:
			// The usual case after downtime; nothing to do.
			h.log.Debugf("[delivery] reconcile: reminder %s already elapsed", rem.ID)
			continue
		case schedule.PastLeadOnly:
			h.log.Warnf("[delivery] reconcile: lead window for %s elapsed while reminder is still future", rem.ID)
			continue
		}

		if err := h.alarms.Schedule(rem.ID, trig.At); err != nil {
			h.log.Warnf("[delivery] reconcile: cannot schedule %s: %v", rem.ID, err)
			continue
		}
		scheduled++
	}

	h.log.Infof("[delivery] reconcile complete, %d alarm(s) scheduled", scheduled)
	return scheduled
}
