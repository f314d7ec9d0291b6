package models

import "encoding/json"

// Date and time-of-day layouts used across the whole collection.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

// Repeat types.
const (
	RepeatNone    = "NONE"
	RepeatDaily   = "DAILY"
	RepeatWeekly  = "WEEKLY"
	RepeatMonthly = "MONTHLY"
	RepeatYearly  = "YEARLY"
)

const (
	DefaultNotificationMinutes = 5
	MaxNotificationMinutes     = 1440
)

// Reminder is the sole persisted entity: a dated task with an optional
// time range, notification lead time and repeat policy.
type Reminder struct {
	ID                        string `json:"id"`
	Date                      string `json:"date"` // 2006-01-02
	Title                     string `json:"title"`
	Content                   string `json:"content"`
	StartTime                 string `json:"startTime"` // 15:04, empty = no specific time
	EndTime                   string `json:"endTime"`
	Timestamp                 int64  `json:"timestamp"` // last modified, unix millis
	IsCompleted               bool   `json:"isCompleted"`
	IsDeleted                 bool   `json:"isDeleted"`
	EnableNotification        bool   `json:"enableNotification"`
	NotificationMinutesBefore int    `json:"notificationMinutesBefore"`
	RepeatType                string `json:"repeatType"`
}

// UnmarshalJSON applies constructor defaults for fields absent from older
// persisted blobs (there is no schema version field).
func (r *Reminder) UnmarshalJSON(data []byte) error {
	type alias Reminder
	aux := alias{
		NotificationMinutesBefore: DefaultNotificationMinutes,
		RepeatType:                RepeatNone,
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*r = Reminder(aux)
	r.Normalize()
	return nil
}

// Normalize clamps the notification lead time into [0, 1440] and fixes up
// an empty or unknown repeat type. Called on every load and store write.
func (r *Reminder) Normalize() {
	if r.NotificationMinutesBefore < 0 {
		r.NotificationMinutesBefore = 0
	}
	if r.NotificationMinutesBefore > MaxNotificationMinutes {
		r.NotificationMinutesBefore = MaxNotificationMinutes
	}
	if !ValidRepeatType(r.RepeatType) {
		r.RepeatType = RepeatNone
	}
}

// IsActive reports whether the reminder belongs in active views and is
// eligible for alarm scheduling.
func (r *Reminder) IsActive() bool {
	return !r.IsCompleted && !r.IsDeleted
}

// Repeats reports whether the reminder has a repeat policy.
func (r *Reminder) Repeats() bool {
	return r.RepeatType != "" && r.RepeatType != RepeatNone
}

func ValidRepeatType(t string) bool {
	switch t {
	case RepeatNone, RepeatDaily, RepeatWeekly, RepeatMonthly, RepeatYearly:
		return true
	}
	return false
}

type CreateReminderRequest struct {
	Date                      string `json:"date" validate:"required,datetime=2006-01-02"`
	Title                     string `json:"title"`
	Content                   string `json:"content"`
	StartTime                 string `json:"startTime" validate:"omitempty,datetime=15:04"`
	EndTime                   string `json:"endTime" validate:"omitempty,datetime=15:04"`
	EnableNotification        bool   `json:"enableNotification"`
	NotificationMinutesBefore int    `json:"notificationMinutesBefore" validate:"min=0,max=1440"`
	RepeatType                string `json:"repeatType" validate:"omitempty,oneof=NONE DAILY WEEKLY MONTHLY YEARLY"`
}

// UpdateReminderRequest carries optional fields for a partial edit.
// Nil pointers leave the stored value untouched.
type UpdateReminderRequest struct {
	Date                      *string `json:"date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Title                     *string `json:"title,omitempty"`
	Content                   *string `json:"content,omitempty"`
	StartTime                 *string `json:"startTime,omitempty" validate:"omitempty,datetime=15:04"`
	EndTime                   *string `json:"endTime,omitempty" validate:"omitempty,datetime=15:04"`
	EnableNotification        *bool   `json:"enableNotification,omitempty"`
	NotificationMinutesBefore *int    `json:"notificationMinutesBefore,omitempty" validate:"omitempty,min=0,max=1440"`
	RepeatType                *string `json:"repeatType,omitempty" validate:"omitempty,oneof=NONE DAILY WEEKLY MONTHLY YEARLY"`
}

// AlarmOutcome tells the caller what happened to the reminder's alarm after a
// mutation, so the UI can phrase the message accordingly.
type AlarmOutcome string

const (
	AlarmScheduled        AlarmOutcome = "scheduled"
	AlarmPast             AlarmOutcome = "past"
	AlarmPermissionDenied AlarmOutcome = "permission_denied"
	AlarmInvalid          AlarmOutcome = "invalid"
	AlarmDisabled         AlarmOutcome = "disabled"
)

// ReminderResponse is the envelope returned by every mutating reminder route.
type ReminderResponse struct {
	Reminder Reminder     `json:"reminder"`
	Alarm    AlarmOutcome `json:"alarm"`
}
