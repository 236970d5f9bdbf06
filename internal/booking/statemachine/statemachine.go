// Package statemachine enforces the legal status transitions of a booking.
//
// Each (old, new) status pair maps to one handler with an explicit
// precondition. Handlers mutate the job in memory and describe their
// notification side effects declaratively; the caller persists the job
// first and dispatches the effects only after the mutation committed.
package statemachine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

// Request carries everything a transition may need beyond the job itself.
type Request struct {
	NewStatus     domain.JobStatus
	AdminComments string

	// SessionTime is required for started -> completed.
	SessionTime time.Duration

	// TranslatorAttached is set when an assignment was created as part of
	// the same operation, which is what legitimizes a transition into
	// assigned.
	TranslatorAttached bool

	// TranslatorID is the translator relevant to the transition: the newly
	// attached one for transitions into assigned, the active one for
	// cancellations and session endings. Empty when there is none.
	TranslatorID string
}

// EffectKind enumerates the notification side effects a transition can
// require.
type EffectKind string

const (
	// EffectAccepted sends the acceptance confirmation to the customer.
	EffectAccepted EffectKind = "accepted"
	// EffectAssigned announces the new assignment to customer and
	// translator and schedules session-start reminders for both.
	EffectAssigned EffectKind = "assigned"
	// EffectCancelled notifies the customer, and the translator when one
	// is attached, that the booking will not happen.
	EffectCancelled EffectKind = "cancelled"
	// EffectReopened notifies the customer and re-runs the suitable-job
	// push fan-out.
	EffectReopened EffectKind = "reopened"
	// EffectSessionEnded sends the end-of-session notifications.
	EffectSessionEnded EffectKind = "session_ended"
)

// Effect is one notification side effect owed after the transition commits.
type Effect struct {
	Kind         EffectKind
	TranslatorID string
}

// Result reports what a transition did.
type Result struct {
	Changed bool
	Old     domain.JobStatus
	New     domain.JobStatus
	Effects []Effect
}

// Machine validates and applies status transitions.
type Machine struct {
	logger *slog.Logger
	now    func() time.Time
}

// New builds a Machine. now may be nil, in which case time.Now is used.
func New(logger *slog.Logger, now func() time.Time) *Machine {
	if now == nil {
		now = time.Now
	}
	return &Machine{logger: logger, now: now}
}

type handler func(m *Machine, job *domain.Job, req Request) ([]Effect, error)

// transitions is the table of every legal (old, new) pair.
var transitions = map[domain.JobStatus]map[domain.JobStatus]handler{
	domain.StatusTimedout: {
		domain.StatusPending:  (*Machine).timedoutToPending,
		domain.StatusAssigned: (*Machine).timedoutToAssigned,
	},
	domain.StatusCompleted: {
		domain.StatusTimedout: (*Machine).adminTimeout,
	},
	domain.StatusStarted: {
		domain.StatusCompleted: (*Machine).startedToCompleted,
	},
	domain.StatusPending: {
		domain.StatusAssigned:              (*Machine).pendingToAssigned,
		domain.StatusStarted:               (*Machine).pendingToCancelled,
		domain.StatusCompleted:             (*Machine).pendingToCancelled,
		domain.StatusTimedout:              (*Machine).pendingToCancelled,
		domain.StatusWithdrawBefore24:      (*Machine).pendingToCancelled,
		domain.StatusWithdrawAfter24:       (*Machine).pendingToCancelled,
		domain.StatusNotCarriedOutCustomer: (*Machine).pendingToCancelled,
	},
	domain.StatusWithdrawAfter24: {
		domain.StatusTimedout: (*Machine).adminTimeout,
	},
	domain.StatusAssigned: {
		domain.StatusWithdrawBefore24: (*Machine).assignedToWithdrawn,
		domain.StatusWithdrawAfter24:  (*Machine).assignedToWithdrawn,
		domain.StatusTimedout:         (*Machine).assignedToTimedout,
	},
}

// Transition applies req to job. A rejected transition mutates nothing and
// owes no side effects; the rejection is reported as a typed error, never
// a panic. Requesting the current status is itself a rejection.
func (m *Machine) Transition(_ context.Context, job *domain.Job, req Request) (Result, error) {
	result := Result{Old: job.Status, New: req.NewStatus}

	if !req.NewStatus.IsValid() {
		return result, &domain.ValidationError{Field: "status", Message: "unknown job status: " + string(req.NewStatus)}
	}

	if job.Status == req.NewStatus {
		return result, &domain.StateError{
			Reason:  domain.ReasonTransitionNotAllowed,
			Message: fmt.Sprintf("job %s already has status %s", job.ID, job.Status),
		}
	}

	byNew, ok := transitions[job.Status]
	if !ok {
		if !job.Status.IsValid() {
			m.logger.Warn("Attempted status change from an unrecognized status",
				slog.String("job_id", job.ID),
				slog.String("old_status", string(job.Status)),
			)
			return result, &domain.StateError{
				Reason:  domain.ReasonUnrecognizedStatus,
				Message: fmt.Sprintf("job %s has unrecognized status %q", job.ID, job.Status),
			}
		}
		return result, &domain.StateError{
			Reason:  domain.ReasonTransitionNotAllowed,
			Message: fmt.Sprintf("no transitions allowed from %s", job.Status),
		}
	}

	h, ok := byNew[req.NewStatus]
	if !ok {
		return result, &domain.StateError{
			Reason:  domain.ReasonTransitionNotAllowed,
			Message: fmt.Sprintf("cannot transition from %s to %s", job.Status, req.NewStatus),
		}
	}

	effects, err := h(m, job, req)
	if err != nil {
		return result, err
	}

	m.logger.Info("Job status changed",
		slog.String("job_id", job.ID),
		slog.String("old_status", string(result.Old)),
		slog.String("new_status", string(req.NewStatus)),
	)

	result.Changed = true
	result.Effects = effects
	return result, nil
}

// timedoutToPending reopens an expired booking: the pending window restarts
// from now and the prior reminder bookkeeping is cleared.
func (m *Machine) timedoutToPending(job *domain.Job, req Request) ([]Effect, error) {
	now := m.now()
	job.Status = domain.StatusPending
	job.CreatedAt = now
	job.WillExpireAt = domain.WillExpireAt(job.Due, now)
	job.ExpiryRemindersSent = 0
	job.AdminComments = req.AdminComments

	return []Effect{{Kind: EffectReopened}}, nil
}

func (m *Machine) timedoutToAssigned(job *domain.Job, req Request) ([]Effect, error) {
	if !req.TranslatorAttached {
		return nil, &domain.StateError{
			Reason:  domain.ReasonTransitionNotAllowed,
			Message: "cannot mark a timedout job assigned without attaching a translator",
		}
	}
	job.Status = domain.StatusAssigned
	job.AdminComments = req.AdminComments

	return []Effect{{Kind: EffectAccepted, TranslatorID: req.TranslatorID}}, nil
}

// adminTimeout handles the admin-only moves into timedout, which always
// demand an explanation and owe no notifications.
func (m *Machine) adminTimeout(job *domain.Job, req Request) ([]Effect, error) {
	if req.AdminComments == "" {
		return nil, &domain.ValidationError{Field: "admin_comments"}
	}
	job.Status = domain.StatusTimedout
	job.AdminComments = req.AdminComments
	return nil, nil
}

func (m *Machine) startedToCompleted(job *domain.Job, req Request) ([]Effect, error) {
	if req.AdminComments == "" {
		return nil, &domain.ValidationError{Field: "admin_comments"}
	}
	if req.SessionTime <= 0 {
		return nil, &domain.ValidationError{Field: "session_time"}
	}

	now := m.now()
	job.Status = domain.StatusCompleted
	job.AdminComments = req.AdminComments
	job.SessionTime = req.SessionTime
	job.EndAt = &now

	return []Effect{{Kind: EffectSessionEnded, TranslatorID: req.TranslatorID}}, nil
}

func (m *Machine) pendingToAssigned(job *domain.Job, req Request) ([]Effect, error) {
	if !req.TranslatorAttached {
		return nil, &domain.StateError{
			Reason:  domain.ReasonTransitionNotAllowed,
			Message: "cannot mark a pending job assigned without attaching a translator",
		}
	}
	job.Status = domain.StatusAssigned
	job.AdminComments = req.AdminComments

	return []Effect{{Kind: EffectAssigned, TranslatorID: req.TranslatorID}}, nil
}

// pendingToCancelled covers every move out of pending that is not an
// assignment. Timing out a pending booking demands an explanation.
func (m *Machine) pendingToCancelled(job *domain.Job, req Request) ([]Effect, error) {
	if req.NewStatus == domain.StatusTimedout && req.AdminComments == "" {
		return nil, &domain.ValidationError{Field: "admin_comments"}
	}
	job.Status = req.NewStatus
	job.AdminComments = req.AdminComments

	return []Effect{{Kind: EffectCancelled}}, nil
}

func (m *Machine) assignedToWithdrawn(job *domain.Job, req Request) ([]Effect, error) {
	job.Status = req.NewStatus
	job.AdminComments = req.AdminComments

	return []Effect{{Kind: EffectCancelled, TranslatorID: req.TranslatorID}}, nil
}

// assignedToTimedout is the admin force-expiry of a booking that already
// has a translator; both parties hear about the cancellation.
func (m *Machine) assignedToTimedout(job *domain.Job, req Request) ([]Effect, error) {
	if req.AdminComments == "" {
		return nil, &domain.ValidationError{Field: "admin_comments"}
	}
	job.Status = domain.StatusTimedout
	job.AdminComments = req.AdminComments
	return []Effect{{Kind: EffectCancelled, TranslatorID: req.TranslatorID}}, nil
}
