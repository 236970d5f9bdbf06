package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

// Nighttime window for push suppression. Recipients who opted out of
// nighttime notifications get their push delayed to the next business time.
const (
	nightStartHour    = 22
	nightEndHour      = 8
	businessStartHour = 9
)

// IsNightTime reports whether t falls inside the nighttime window.
func IsNightTime(t time.Time) bool {
	h := t.Hour()
	return h >= nightStartHour || h < nightEndHour
}

// NextBusinessTime returns the first business-hours instant at or after t.
func NextBusinessTime(t time.Time) time.Time {
	if !IsNightTime(t) {
		return t
	}
	next := time.Date(t.Year(), t.Month(), t.Day(), businessStartHour, 0, 0, 0, t.Location())
	if t.Hour() >= nightStartHour {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// UserLookup resolves the accounts notification events address.
type UserLookup interface {
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Events produces the notification side effects of workflow operations.
// Every method is fire-and-forget: delivery problems are logged at this
// boundary and never surface to the triggering operation.
type Events struct {
	dispatcher Dispatcher
	source     RecipientSource
	users      UserLookup
	logger     *slog.Logger
	now        func() time.Time
}

// NewEvents wires the event producer. now may be nil, in which case
// time.Now is used.
func NewEvents(dispatcher Dispatcher, source RecipientSource, users UserLookup, logger *slog.Logger, now func() time.Time) *Events {
	if now == nil {
		now = time.Now
	}
	return &Events{
		dispatcher: dispatcher,
		source:     source,
		users:      users,
		logger:     logger,
		now:        now,
	}
}

// JobAccepted tells the customer a translator took the booking.
func (e *Events) JobAccepted(ctx context.Context, job *domain.Job) {
	customer, ok := e.user(ctx, job.OwnerUserID)
	if !ok {
		return
	}
	payload := PayloadFor(job)
	e.email(ctx, EventJobAccepted, payload, customer)
	e.push(ctx, EventJobAccepted, payload, customer)
}

// JobAssigned announces a fresh assignment to the customer and the new
// translator and schedules session-start reminders for both.
func (e *Events) JobAssigned(ctx context.Context, job *domain.Job, translatorID string) {
	customer, okC := e.user(ctx, job.OwnerUserID)
	translator, okT := e.user(ctx, translatorID)
	payload := PayloadFor(job)

	if okC {
		e.email(ctx, EventJobAccepted, payload, customer)
	}
	if okT {
		e.email(ctx, EventJobAssigned, payload, translator)
	}
	if okC {
		e.push(ctx, EventSessionStartRemind, payload, customer)
	}
	if okT {
		e.push(ctx, EventSessionStartRemind, payload, translator)
	}
}

// JobCancelled tells the customer, and the active translator when there is
// one, that the booking will not happen.
func (e *Events) JobCancelled(ctx context.Context, job *domain.Job, translatorID string) {
	payload := PayloadFor(job)
	if customer, ok := e.user(ctx, job.OwnerUserID); ok {
		e.email(ctx, EventJobCancelled, payload, customer)
		e.push(ctx, EventJobCancelled, payload, customer)
	}
	if translatorID == "" {
		return
	}
	if translator, ok := e.user(ctx, translatorID); ok {
		e.email(ctx, EventJobCancelled, payload, translator)
		e.push(ctx, EventJobCancelled, payload, translator)
	}
}

// JobReopened tells the customer their booking is pending again and fans
// the booking out to suitable translators.
func (e *Events) JobReopened(ctx context.Context, job *domain.Job) {
	if customer, ok := e.user(ctx, job.OwnerUserID); ok {
		e.email(ctx, EventJobReopened, PayloadFor(job), customer)
	}
	e.PushToSuitable(ctx, job, "")
}

// JobExpired tells the customer nobody accepted before the expiry window
// closed.
func (e *Events) JobExpired(ctx context.Context, job *domain.Job) {
	if customer, ok := e.user(ctx, job.OwnerUserID); ok {
		e.push(ctx, EventJobExpired, PayloadFor(job), customer)
	}
}

// SessionEnded sends the end-of-session notifications: the customer gets
// the invoice variant, the translator the salary variant.
func (e *Events) SessionEnded(ctx context.Context, job *domain.Job, translatorID string) {
	payload := PayloadFor(job)
	if customer, ok := e.user(ctx, job.OwnerUserID); ok {
		p := payload
		p.ForText = "faktura"
		e.email(ctx, EventSessionEnded, p, customer)
	}
	if translatorID == "" {
		return
	}
	if translator, ok := e.user(ctx, translatorID); ok {
		p := payload
		p.ForText = "lön"
		e.email(ctx, EventSessionEnded, p, translator)
	}
}

// PushToSuitable pushes a new-booking notification to every eligible
// translator, excluding excludeTranslatorID (the one who just cancelled).
func (e *Events) PushToSuitable(ctx context.Context, job *domain.Job, excludeTranslatorID string) {
	recipients, err := e.source.PushRecipients(ctx, job, excludeTranslatorID)
	if err != nil {
		e.logger.Error("Failed to resolve push recipients",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return
	}
	if len(recipients) == 0 {
		e.logger.Info("No suitable translators to push",
			slog.String("job_id", job.ID),
		)
		return
	}
	e.dispatch(ctx, ChannelPush, recipients, EventSuitableJob, PayloadFor(job))
}

// SMSToSuitable texts every eligible translator about the booking and
// returns how many were addressed.
func (e *Events) SMSToSuitable(ctx context.Context, job *domain.Job) int {
	recipients, err := e.source.SMSRecipients(ctx, job)
	if err != nil {
		e.logger.Error("Failed to resolve SMS recipients",
			slog.String("job_id", job.ID),
			slog.Any("error", err),
		)
		return 0
	}
	if len(recipients) > 0 {
		e.dispatch(ctx, ChannelSMS, recipients, EventSuitableJob, PayloadFor(job))
	}
	return len(recipients)
}

// DateChanged notifies the customer and the current translator that the
// due time moved.
func (e *Events) DateChanged(ctx context.Context, job *domain.Job, oldDue time.Time, translatorID string) {
	payload := PayloadFor(job)
	payload.OldDue = oldDue.Format("2006-01-02 15:04")
	e.toCustomerAndTranslator(ctx, EventDateChanged, payload, job.OwnerUserID, translatorID)
}

// TranslatorChanged notifies the customer, the replaced translator and the
// replacement.
func (e *Events) TranslatorChanged(ctx context.Context, job *domain.Job, oldTranslatorID, newTranslatorID string) {
	payload := PayloadFor(job)
	if customer, ok := e.user(ctx, job.OwnerUserID); ok {
		e.email(ctx, EventTranslatorChanged, payload, customer)
	}
	if oldTranslatorID != "" {
		if old, ok := e.user(ctx, oldTranslatorID); ok {
			e.email(ctx, EventTranslatorChanged, payload, old)
		}
	}
	if newTranslatorID != "" {
		if next, ok := e.user(ctx, newTranslatorID); ok {
			e.email(ctx, EventJobAssigned, payload, next)
		}
	}
}

// LanguageChanged notifies the customer and current translator that the
// source language moved.
func (e *Events) LanguageChanged(ctx context.Context, job *domain.Job, oldLanguageID, translatorID string) {
	payload := PayloadFor(job)
	payload.OldLanguageID = oldLanguageID
	e.toCustomerAndTranslator(ctx, EventLanguageChanged, payload, job.OwnerUserID, translatorID)
}

func (e *Events) toCustomerAndTranslator(ctx context.Context, event EventType, payload Payload, customerID, translatorID string) {
	if customer, ok := e.user(ctx, customerID); ok {
		e.email(ctx, event, payload, customer)
	}
	if translatorID == "" {
		return
	}
	if translator, ok := e.user(ctx, translatorID); ok {
		e.email(ctx, event, payload, translator)
	}
}

func (e *Events) user(ctx context.Context, id string) (*domain.User, bool) {
	u, err := e.users.GetUser(ctx, id)
	if err != nil {
		e.logger.Error("Failed to resolve notification recipient",
			slog.String("user_id", id),
			slog.Any("error", err),
		)
		return nil, false
	}
	return u, true
}

func (e *Events) email(ctx context.Context, event EventType, payload Payload, u *domain.User) {
	e.dispatch(ctx, ChannelEmail, []Recipient{RecipientFor(u, false)}, event, payload)
}

func (e *Events) push(ctx context.Context, event EventType, payload Payload, u *domain.User) {
	if u.SuppressAll {
		return
	}
	r := RecipientFor(u, IsNightTime(e.now()))
	e.dispatch(ctx, ChannelPush, []Recipient{r}, event, payload)
}

func (e *Events) dispatch(ctx context.Context, channel Channel, recipients []Recipient, event EventType, payload Payload) {
	res := e.dispatcher.Dispatch(ctx, channel, recipients, event, payload)
	if res.Err != nil {
		e.logger.Error("Notification dispatch failed",
			slog.String("channel", string(channel)),
			slog.String("event", string(event)),
			slog.String("job_id", payload.JobID),
			slog.Any("error", res.Err),
		)
		return
	}
	e.logger.Debug("Notification dispatched",
		slog.String("channel", string(channel)),
		slog.String("event", string(event)),
		slog.String("job_id", payload.JobID),
		slog.Int("recipients", res.Accepted),
	)
}
