package notify

import (
	"context"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

// Channel is a delivery transport for a notification.
type Channel string

const (
	ChannelPush  Channel = "push"
	ChannelSMS   Channel = "sms"
	ChannelEmail Channel = "email"
)

// EventType identifies what happened to a booking. Event types double as
// AMQP routing-key suffixes and as email template keys.
type EventType string

const (
	EventSuitableJob        EventType = "job.suitable"
	EventJobAccepted        EventType = "job.accepted"
	EventJobAssigned        EventType = "job.assigned"
	EventJobCancelled       EventType = "job.cancelled"
	EventJobReopened        EventType = "job.reopened"
	EventJobExpired         EventType = "job.expired"
	EventSessionStartRemind EventType = "session.start_remind"
	EventSessionEnded       EventType = "session.ended"
	EventDateChanged        EventType = "job.date_changed"
	EventTranslatorChanged  EventType = "job.translator_changed"
	EventLanguageChanged    EventType = "job.language_changed"
)

// Recipient addresses one user on one delivery attempt.
type Recipient struct {
	UserID string `json:"user_id"`
	Name   string `json:"name,omitempty"`
	Email  string `json:"email,omitempty"`
	Mobile string `json:"mobile,omitempty"`

	// DelayUntilNextBusinessTime is set on push recipients who opted out
	// of nighttime notifications when the dispatch happens at night.
	DelayUntilNextBusinessTime bool `json:"delay_until_next_business_time,omitempty"`
}

// Payload carries the booking facts a channel needs to render a message.
// Wording is the delivery side's concern; the workflow core only states
// what happened.
type Payload struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status,omitempty"`
	FromLanguageID string `json:"from_language_id,omitempty"`
	Due            string `json:"due,omitempty"`
	Duration       int    `json:"duration,omitempty"`
	Immediate      bool   `json:"immediate,omitempty"`
	PhoneJob       bool   `json:"phone_job,omitempty"`
	PhysicalJob    bool   `json:"physical_job,omitempty"`
	Town           string `json:"town,omitempty"`
	SessionTime    string `json:"session_time,omitempty"`
	ForText        string `json:"for_text,omitempty"` // "faktura" or "lön" on session.ended
	OldDue         string `json:"old_due,omitempty"`
	OldLanguageID  string `json:"old_language_id,omitempty"`
}

// DeliveryResult reports the outcome of handing an event to a channel.
type DeliveryResult struct {
	Accepted int
	Err      error
}

// Dispatcher is the boundary to the external delivery transport. Dispatch
// must never block the workflow on downstream delivery; implementations
// report failures in the result and the caller only logs them.
type Dispatcher interface {
	Dispatch(ctx context.Context, channel Channel, recipients []Recipient, event EventType, payload Payload) DeliveryResult
}

// RecipientSource yields the translators a fan-out event should reach.
// The matcher implements it.
type RecipientSource interface {
	PushRecipients(ctx context.Context, job *domain.Job, excludeTranslatorID string) ([]Recipient, error)
	SMSRecipients(ctx context.Context, job *domain.Job) ([]Recipient, error)
}

// RecipientFor builds a single-user recipient with the push delay flag
// resolved against the user's nighttime preference.
func RecipientFor(u *domain.User, nightNow bool) Recipient {
	return Recipient{
		UserID:                     u.ID,
		Name:                       u.Name,
		Email:                      u.Email,
		Mobile:                     u.Mobile,
		DelayUntilNextBusinessTime: nightNow && u.SuppressNighttime,
	}
}

// PayloadFor extracts the standard booking payload for job.
func PayloadFor(job *domain.Job) Payload {
	p := Payload{
		JobID:          job.ID,
		Status:         string(job.Status),
		FromLanguageID: job.FromLanguageID,
		Due:            job.Due.Format("2006-01-02 15:04"),
		Duration:       job.Duration,
		Immediate:      job.Immediate,
		PhoneJob:       job.PhoneEnabled,
		PhysicalJob:    job.PhysicalEnabled,
		Town:           job.Town,
	}
	if job.SessionTime > 0 {
		p.SessionTime = domain.FormatSessionTime(job.SessionTime)
	}
	return p
}
