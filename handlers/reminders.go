package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"remind-server/alarm"
	"remind-server/models"
	"remind-server/schedule"
	"remind-server/store"
)

type ReminderHandler struct {
	store    *store.Store
	engine   schedule.Engine
	alarms   *alarm.Dispatcher
	hub      *Hub
	validate *validator.Validate
	log      *zap.SugaredLogger
	now      func() time.Time
}

func NewReminderHandler(s *store.Store, engine schedule.Engine, alarms *alarm.Dispatcher, hub *Hub, log *zap.SugaredLogger) *ReminderHandler {
	return &ReminderHandler{
		store:    s,
		engine:   engine,
		alarms:   alarms,
		hub:      hub,
		validate: validator.New(),
		log:      log,
		now:      time.Now,
	}
}

func (h *ReminderHandler) List(w http.ResponseWriter, r *http.Request) {
	reminders := h.store.ListActive(h.now())
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}

func (h *ReminderHandler) History(w http.ResponseWriter, r *http.Request) {
	reminders := h.store.ListHistory()
	if reminders == nil {
		reminders = []models.Reminder{}
	}
	writeJSON(w, http.StatusOK, reminders)
}

func (h *ReminderHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req models.CreateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid reminder: "+err.Error(), http.StatusBadRequest)
		return
	}
	if req.Title == "" && req.Content == "" {
		http.Error(w, "Title or content is required", http.StatusBadRequest)
		return
	}

	rem := models.Reminder{
		ID:                        uuid.New().String(),
		Date:                      req.Date,
		Title:                     req.Title,
		Content:                   req.Content,
		StartTime:                 req.StartTime,
		EndTime:                   req.EndTime,
		Timestamp:                 h.now().UnixMilli(),
		EnableNotification:        req.EnableNotification,
		NotificationMinutesBefore: req.NotificationMinutesBefore,
		RepeatType:                req.RepeatType,
	}
	rem.Normalize()

	if err := h.store.Upsert(rem); err != nil {
		http.Error(w, "Failed to save reminder", http.StatusInternalServerError)
		return
	}

	outcome := h.syncAlarm(rem)
	h.hub.NotifyCollectionChanged()
	writeJSON(w, http.StatusCreated, models.ReminderResponse{Reminder: rem, Alarm: outcome})
}

func (h *ReminderHandler) Update(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	rem, ok := h.store.Get(id)
	if !ok {
		http.Error(w, "Reminder not found", http.StatusNotFound)
		return
	}

	var req models.UpdateReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if err := h.validate.Struct(req); err != nil {
		http.Error(w, "Invalid reminder: "+err.Error(), http.StatusBadRequest)
		return
	}

	if req.Date != nil {
		rem.Date = *req.Date
	}
	if req.Title != nil {
		rem.Title = *req.Title
	}
	if req.Content != nil {
		rem.Content = *req.Content
	}
	if req.StartTime != nil {
		rem.StartTime = *req.StartTime
	}
	if req.EndTime != nil {
		rem.EndTime = *req.EndTime
	}
	if req.EnableNotification != nil {
		rem.EnableNotification = *req.EnableNotification
	}
	if req.NotificationMinutesBefore != nil {
		rem.NotificationMinutesBefore = *req.NotificationMinutesBefore
	}
	if req.RepeatType != nil {
		rem.RepeatType = *req.RepeatType
	}
	if rem.Title == "" && rem.Content == "" {
		http.Error(w, "Title or content is required", http.StatusBadRequest)
		return
	}
	rem.Timestamp = h.now().UnixMilli()
	rem.Normalize()

	if err := h.store.Upsert(rem); err != nil {
		http.Error(w, "Failed to save reminder", http.StatusInternalServerError)
		return
	}

	outcome := h.syncAlarm(rem)
	h.hub.NotifyCollectionChanged()
	writeJSON(w, http.StatusOK, models.ReminderResponse{Reminder: rem, Alarm: outcome})
}

func (h *ReminderHandler) Complete(w http.ResponseWriter, r *http.Request) {
	h.flagFlip(w, r, h.store.Complete)
}

func (h *ReminderHandler) Restore(w http.ResponseWriter, r *http.Request) {
	h.flagFlip(w, r, h.store.Restore)
}

func (h *ReminderHandler) Delete(w http.ResponseWriter, r *http.Request) {
	h.flagFlip(w, r, h.store.SoftDelete)
}

// flagFlip applies a store flag mutation, then re-syncs the alarm from the
// resulting state: complete/delete cancel, restore may schedule again.
func (h *ReminderHandler) flagFlip(w http.ResponseWriter, r *http.Request, op func(string) error) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Reminder ID required", http.StatusBadRequest)
		return
	}

	if err := op(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Reminder not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to update reminder", http.StatusInternalServerError)
		return
	}

	rem, ok := h.store.Get(id)
	if !ok {
		http.Error(w, "Reminder not found", http.StatusNotFound)
		return
	}

	outcome := h.syncAlarm(rem)
	h.hub.NotifyCollectionChanged()
	writeJSON(w, http.StatusOK, models.ReminderResponse{Reminder: rem, Alarm: outcome})
}

func (h *ReminderHandler) Purge(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if id == "" {
		http.Error(w, "Reminder ID required", http.StatusBadRequest)
		return
	}

	h.alarms.Cancel(id)
	if err := h.store.Purge(id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, "Reminder not found", http.StatusNotFound)
			return
		}
		http.Error(w, "Failed to delete reminder", http.StatusInternalServerError)
		return
	}

	h.hub.NotifyCollectionChanged()
	writeJSON(w, http.StatusOK, map[string]string{"status": "purged"})
}

func (h *ReminderHandler) ClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := h.store.ClearHistory(); err != nil {
		http.Error(w, "Failed to clear history", http.StatusInternalServerError)
		return
	}

	h.hub.NotifyCollectionChanged()
	writeJSON(w, http.StatusOK, map[string]string{"status": "cleared"})
}

// syncAlarm cancels any pending alarm for the reminder and schedules a new
// one when the current state calls for it. The returned outcome is reported
// to the caller; scheduling failures never surface as request errors.
func (h *ReminderHandler) syncAlarm(rem models.Reminder) models.AlarmOutcome {
	h.alarms.Cancel(rem.ID)

	if !rem.IsActive() || !rem.EnableNotification || rem.StartTime == "" {
		return models.AlarmDisabled
	}

	trig, err := h.engine.Trigger(rem, h.now())
	if err != nil {
		if errors.Is(err, schedule.ErrNotificationDisabled) {
			return models.AlarmDisabled
		}
		h.log.Warnf("[api] invalid schedule data for %s: %v", rem.ID, err)
		return models.AlarmInvalid
	}
	if !trig.Schedulable() {
		h.log.Infof("[api] trigger for %s already past (%s)", rem.ID, trig.Past)
		return models.AlarmPast
	}

	if err := h.alarms.Schedule(rem.ID, trig.At); err != nil {
		if errors.Is(err, alarm.ErrPermissionDenied) {
			return models.AlarmPermissionDenied
		}
		h.log.Warnf("[api] failed to schedule alarm for %s: %v", rem.ID, err)
		return models.AlarmInvalid
	}
	return models.AlarmScheduled
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
