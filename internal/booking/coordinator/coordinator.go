// Package coordinator orchestrates the booking workflow: acceptance,
// cancellation, session ending, reopening and admin updates. It owns the
// ordering guarantee that state is persisted before any notification is
// dispatched, and it translates the state machine's declarative effects
// into concrete notification events.
package coordinator

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/statemachine"
)

// translatorCancelWindow is how close to the session start a translator
// may still withdraw. At or under this margin the cancellation is refused
// and the translator has to call in instead.
const translatorCancelWindow = 24 * time.Hour

// immediateLeadTime is how far ahead an immediate booking's session is
// scheduled to start.
const immediateLeadTime = 5 * time.Minute

// AssignmentClose carries the fields that close out an assignment row.
type AssignmentClose struct {
	CancelAt    *time.Time
	CompletedAt *time.Time
	CompletedBy string
}

// Store is the persistence surface the coordinator drives.
type Store interface {
	GetJob(ctx context.Context, id string) (*domain.Job, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)

	// GetActiveAssignment returns domain.ErrAssignmentNotFound when the job
	// has no live translator relation.
	GetActiveAssignment(ctx context.Context, jobID string) (*domain.Assignment, error)

	// AcceptJob atomically flips a pending job to assigned and records the
	// assignment in one transaction. When the job is no longer pending or
	// already carries an active assignment it returns a ConflictError and
	// changes nothing.
	AcceptJob(ctx context.Context, jobID, translatorID string, at time.Time) (*domain.Assignment, error)

	// IsTranslatorBooked reports whether the translator already holds an
	// assigned booking overlapping [due, due+duration minutes).
	IsTranslatorBooked(ctx context.Context, translatorID string, due time.Time, durationMinutes int) (bool, error)

	CreateJob(ctx context.Context, job *domain.Job) error

	// UpdateJobFrom persists job only if its stored status still equals
	// fromStatus, returning a ConflictError otherwise.
	UpdateJobFrom(ctx context.Context, job *domain.Job, fromStatus domain.JobStatus) error

	CreateAssignment(ctx context.Context, a *domain.Assignment) error

	// CloseActiveAssignment closes the live assignment of jobID and returns
	// it, or domain.ErrAssignmentNotFound when there is none.
	CloseActiveAssignment(ctx context.Context, jobID string, close AssignmentClose) (*domain.Assignment, error)
}

// Notifier is the notification fan-out surface, satisfied by
// *notify.Events. Every method is fire-and-forget.
type Notifier interface {
	JobAccepted(ctx context.Context, job *domain.Job)
	JobAssigned(ctx context.Context, job *domain.Job, translatorID string)
	JobCancelled(ctx context.Context, job *domain.Job, translatorID string)
	JobReopened(ctx context.Context, job *domain.Job)
	JobExpired(ctx context.Context, job *domain.Job)
	SessionEnded(ctx context.Context, job *domain.Job, translatorID string)
	PushToSuitable(ctx context.Context, job *domain.Job, excludeTranslatorID string)
	SMSToSuitable(ctx context.Context, job *domain.Job) int
	DateChanged(ctx context.Context, job *domain.Job, oldDue time.Time, translatorID string)
	TranslatorChanged(ctx context.Context, job *domain.Job, oldTranslatorID, newTranslatorID string)
	LanguageChanged(ctx context.Context, job *domain.Job, oldLanguageID, translatorID string)
}

// Coordinator wires the store, the state machine and the notifier into
// the workflow operations the API exposes.
type Coordinator struct {
	store    Store
	machine  *statemachine.Machine
	notifier Notifier
	logger   *slog.Logger
	now      func() time.Time
}

// New builds a Coordinator. now may be nil, in which case time.Now is used.
func New(store Store, machine *statemachine.Machine, notifier Notifier, logger *slog.Logger, now func() time.Time) *Coordinator {
	if now == nil {
		now = time.Now
	}
	return &Coordinator{
		store:    store,
		machine:  machine,
		notifier: notifier,
		logger:   logger,
		now:      now,
	}
}

// CreateBooking registers a new booking in pending state, derives the
// job type from the owning customer's consumer category, stamps the
// expiry window and fans the booking out to suitable translators by push
// and SMS.
func (c *Coordinator) CreateBooking(ctx context.Context, job *domain.Job) (*domain.Job, error) {
	now := c.now()

	if !job.Immediate && job.Due.Before(now) {
		return nil, &domain.ValidationError{Field: "due", Message: "due time must not be in the past"}
	}
	if job.FromLanguageID == "" {
		return nil, &domain.ValidationError{Field: "from_language_id"}
	}
	if job.Duration <= 0 {
		return nil, &domain.ValidationError{Field: "duration"}
	}

	owner, err := c.store.GetUser(ctx, job.OwnerUserID)
	if err != nil {
		return nil, err
	}

	if job.ID == "" {
		job.ID = uuid.NewString()
	}
	job.Status = domain.StatusPending
	job.JobType = domain.JobTypeForConsumer(owner.ConsumerType)
	job.CreatedAt = now
	if job.Immediate {
		job.Due = now.Add(immediateLeadTime)
	}
	job.WillExpireAt = domain.WillExpireAt(job.Due, now)

	if err := c.store.CreateJob(ctx, job); err != nil {
		return nil, err
	}

	c.logger.Info("Booking created",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.JobType)),
		slog.Bool("immediate", job.Immediate),
		slog.Time("will_expire_at", job.WillExpireAt),
	)

	c.notifier.PushToSuitable(ctx, job, "")
	c.notifier.SMSToSuitable(ctx, job)
	return job, nil
}

// AcceptJob lets a translator claim a pending booking. The status flip and
// the assignment insert happen atomically in the store; when two
// translators race, exactly one wins and the loser gets a ConflictError.
func (c *Coordinator) AcceptJob(ctx context.Context, jobID, translatorID string) (*domain.Job, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	booked, err := c.store.IsTranslatorBooked(ctx, translatorID, job.Due, job.Duration)
	if err != nil {
		return nil, fmt.Errorf("failed to check translator availability: %w", err)
	}
	if booked {
		return nil, &domain.ConflictError{
			Message: fmt.Sprintf("translator %s already has a booking overlapping %s", translatorID, job.Due.Format("2006-01-02 15:04")),
		}
	}

	if job.Status != domain.StatusPending {
		return nil, &domain.StateError{
			Reason:  domain.ReasonJobNotPending,
			Message: fmt.Sprintf("job %s is %s, only pending bookings can be accepted", jobID, job.Status),
		}
	}

	if _, err := c.store.AcceptJob(ctx, jobID, translatorID, c.now()); err != nil {
		return nil, err
	}
	job.Status = domain.StatusAssigned

	c.logger.Info("Job accepted",
		slog.String("job_id", jobID),
		slog.String("translator_id", translatorID),
	)

	c.notifier.JobAccepted(ctx, job)
	return job, nil
}

// AcceptJobWithID assigns a translator picked by an admin. The translator
// account is resolved first so a bad id reads as not-found instead of
// ending up as a dangling assignment.
func (c *Coordinator) AcceptJobWithID(ctx context.Context, jobID, translatorID string) (*domain.Job, error) {
	translator, err := c.store.GetUser(ctx, translatorID)
	if err != nil {
		return nil, err
	}
	return c.AcceptJob(ctx, jobID, translator.ID)
}

// CancelJob cancels a booking on behalf of actorID, who is either the
// customer or the active translator.
//
// A customer cancellation withdraws the booking: before24 when at least
// 24 hours remain until the session, after24 otherwise. A translator
// cancellation is only allowed while more than 24 hours remain; it
// releases the booking back to pending with a fresh expiry window and
// fans it out to the other suitable translators.
func (c *Coordinator) CancelJob(ctx context.Context, jobID, actorID string) (*domain.Job, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	active, err := c.store.GetActiveAssignment(ctx, jobID)
	if err != nil && !domain.IsNotFound(err) {
		return nil, err
	}

	if actorID == job.OwnerUserID {
		return c.cancelByCustomer(ctx, job, active)
	}
	return c.cancelByTranslator(ctx, job, active, actorID)
}

func (c *Coordinator) cancelByCustomer(ctx context.Context, job *domain.Job, active *domain.Assignment) (*domain.Job, error) {
	now := c.now()

	newStatus := domain.StatusWithdrawAfter24
	if job.Due.Sub(now) >= 24*time.Hour {
		newStatus = domain.StatusWithdrawBefore24
	}

	var translatorID string
	if active != nil {
		translatorID = active.TranslatorUserID
	}

	old := job.Status
	result, err := c.machine.Transition(ctx, job, statemachine.Request{
		NewStatus:    newStatus,
		TranslatorID: translatorID,
	})
	if err != nil {
		return nil, err
	}

	job.WithdrawAt = &now
	if err := c.store.UpdateJobFrom(ctx, job, old); err != nil {
		return nil, err
	}

	c.logger.Info("Job withdrawn by customer",
		slog.String("job_id", job.ID),
		slog.String("new_status", string(job.Status)),
	)

	c.applyEffects(ctx, job, result.Effects)
	return job, nil
}

func (c *Coordinator) cancelByTranslator(ctx context.Context, job *domain.Job, active *domain.Assignment, actorID string) (*domain.Job, error) {
	if active == nil || active.TranslatorUserID != actorID {
		return nil, domain.ErrAssignmentNotFound
	}

	now := c.now()
	if job.Due.Sub(now) <= translatorCancelWindow {
		return nil, &domain.StateError{
			Reason:  domain.ReasonCancelWindowClosed,
			Message: "you can not cancel a booking within 24 hours of the session, please call the office to cancel",
		}
	}

	if _, err := c.store.CloseActiveAssignment(ctx, job.ID, AssignmentClose{CancelAt: &now}); err != nil {
		return nil, err
	}

	// Release the booking back to the pool with a fresh pending window.
	old := job.Status
	job.Status = domain.StatusPending
	job.CreatedAt = now
	job.WillExpireAt = domain.WillExpireAt(job.Due, now)
	job.ExpiryRemindersSent = 0
	if err := c.store.UpdateJobFrom(ctx, job, old); err != nil {
		return nil, err
	}

	c.logger.Info("Job released by translator",
		slog.String("job_id", job.ID),
		slog.String("translator_id", actorID),
	)

	c.notifier.JobCancelled(ctx, job, "")
	c.notifier.PushToSuitable(ctx, job, actorID)
	return job, nil
}

// EndJob closes out a session that took place: the booking completes,
// session time is recorded as the span from due to now, the assignment is
// marked completed and both parties get their end-of-session mail.
func (c *Coordinator) EndJob(ctx context.Context, jobID, actorID string) (*domain.Job, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusStarted {
		return nil, &domain.StateError{
			Reason:  domain.ReasonJobNotStarted,
			Message: fmt.Sprintf("job %s is %s, only started sessions can be ended", jobID, job.Status),
		}
	}

	now := c.now()

	// The assignment closes before the booking persists as completed: if
	// the status update fails afterwards the job is still started, and a
	// retry walks the no-active-assignment branch to finish the close-out.
	closed, err := c.store.CloseActiveAssignment(ctx, jobID, AssignmentClose{
		CompletedAt: &now,
		CompletedBy: actorID,
	})
	var translatorID string
	switch {
	case err == nil:
		translatorID = closed.TranslatorUserID
	case domain.IsNotFound(err):
		c.logger.Warn("Ended a session with no active assignment",
			slog.String("job_id", jobID),
		)
	default:
		return nil, err
	}

	old := job.Status
	job.Status = domain.StatusCompleted
	job.EndAt = &now
	job.SessionTime = sessionSpan(job.Due, now)

	if err := c.store.UpdateJobFrom(ctx, job, old); err != nil {
		return nil, err
	}

	c.logger.Info("Session ended",
		slog.String("job_id", jobID),
		slog.Duration("session_time", job.SessionTime),
	)

	c.notifier.SessionEnded(ctx, job, translatorID)
	return job, nil
}

// CustomerNotCall records that the customer never showed up: the booking
// terminates as not carried out, the assignment completes on the
// translator's behalf and both parties get their end-of-session mail.
func (c *Coordinator) CustomerNotCall(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	active, err := c.store.GetActiveAssignment(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := c.now()
	old := job.Status
	job.Status = domain.StatusNotCarriedOutCustomer
	job.EndAt = &now
	job.SessionTime = sessionSpan(job.Due, now)

	if err := c.store.UpdateJobFrom(ctx, job, old); err != nil {
		return nil, err
	}
	if _, err := c.store.CloseActiveAssignment(ctx, jobID, AssignmentClose{
		CompletedAt: &now,
		CompletedBy: active.TranslatorUserID,
	}); err != nil {
		return nil, err
	}

	c.logger.Info("Session closed as customer no-show",
		slog.String("job_id", jobID),
	)

	c.notifier.SessionEnded(ctx, job, active.TranslatorUserID)
	return job, nil
}

// Reopen makes a cancelled or expired booking available again. A booking
// that is not yet timedout reopens in place; a timedout booking is cloned
// into a brand-new pending booking so the expired one stays on record,
// annotated with a pointer back to the original. Either way any active
// assignment is closed and an audit row records who asked for the reopen.
func (c *Coordinator) Reopen(ctx context.Context, jobID, actorID string) (*domain.Job, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	now := c.now()

	reopened := job
	if job.Status == domain.StatusTimedout {
		clone := *job
		clone.ID = uuid.NewString()
		clone.Status = domain.StatusPending
		clone.CreatedAt = now
		clone.WillExpireAt = domain.WillExpireAt(clone.Due, now)
		clone.ExpiryRemindersSent = 0
		clone.EndAt = nil
		clone.WithdrawAt = nil
		clone.SessionTime = 0
		clone.AdminComments = fmt.Sprintf("This booking is a reopening of booking #%s", jobID)
		if err := c.store.CreateJob(ctx, &clone); err != nil {
			return nil, err
		}
		reopened = &clone
	} else {
		old := job.Status
		job.Status = domain.StatusPending
		job.CreatedAt = now
		job.WillExpireAt = domain.WillExpireAt(job.Due, now)
		job.ExpiryRemindersSent = 0
		job.WithdrawAt = &now
		if err := c.store.UpdateJobFrom(ctx, job, old); err != nil {
			return nil, err
		}
	}

	if _, err := c.store.CloseActiveAssignment(ctx, jobID, AssignmentClose{CancelAt: &now}); err != nil && !domain.IsNotFound(err) {
		return nil, err
	}

	// Audit row: who triggered the reopen, recorded as an already-closed
	// assignment so it never counts as a live translator relation.
	audit := &domain.Assignment{
		ID:               uuid.NewString(),
		JobID:            jobID,
		TranslatorUserID: actorID,
		CreatedAt:        now,
		CancelAt:         &now,
	}
	if err := c.store.CreateAssignment(ctx, audit); err != nil {
		return nil, err
	}

	c.logger.Info("Job reopened",
		slog.String("job_id", jobID),
		slog.String("reopened_job_id", reopened.ID),
		slog.Bool("cloned", reopened.ID != jobID),
	)

	c.notifier.JobReopened(ctx, reopened)
	return reopened, nil
}

// TransitionStatus applies an admin-requested status change through the
// state machine, persists the result and dispatches the owed
// notifications. A rejected transition mutates nothing.
func (c *Coordinator) TransitionStatus(ctx context.Context, jobID string, req statemachine.Request) (*domain.Job, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	if req.TranslatorID == "" {
		if active, aerr := c.store.GetActiveAssignment(ctx, jobID); aerr == nil {
			req.TranslatorID = active.TranslatorUserID
		}
	}

	old := job.Status
	result, err := c.machine.Transition(ctx, job, req)
	if err != nil {
		return nil, err
	}
	if !result.Changed {
		return job, nil
	}

	if err := c.store.UpdateJobFrom(ctx, job, old); err != nil {
		return nil, err
	}

	c.applyEffects(ctx, job, result.Effects)
	return job, nil
}

// UpdateJob applies an admin patch. The due time, the translator and the
// source language are tracked independently: each changed axis dispatches
// its own notification, layered on top of whatever a requested status
// transition owes. Axis notifications are skipped for bookings already in
// the past.
func (c *Coordinator) UpdateJob(ctx context.Context, jobID string, patch UpdatePatch) (*domain.Job, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}

	var activeTranslatorID string
	active, err := c.store.GetActiveAssignment(ctx, jobID)
	switch {
	case err == nil:
		activeTranslatorID = active.TranslatorUserID
	case domain.IsNotFound(err):
	default:
		return nil, err
	}

	changes := TrackChanges(job, patch, activeTranslatorID)

	old := job.Status
	var effects []statemachine.Effect
	if patch.Status != nil && *patch.Status != job.Status {
		req := statemachine.Request{
			NewStatus:          *patch.Status,
			TranslatorAttached: changes.TranslatorChanged || activeTranslatorID != "",
			TranslatorID:       activeTranslatorID,
		}
		if changes.TranslatorChanged {
			req.TranslatorID = changes.NewTranslatorID
		}
		if patch.AdminComments != nil {
			req.AdminComments = *patch.AdminComments
		}
		if patch.SessionTime != nil {
			req.SessionTime = *patch.SessionTime
		}
		result, terr := c.machine.Transition(ctx, job, req)
		if terr != nil {
			return nil, terr
		}
		effects = result.Effects
	}

	if patch.Due != nil {
		job.Due = *patch.Due
	}
	if patch.FromLanguageID != nil {
		job.FromLanguageID = *patch.FromLanguageID
	}
	if patch.AdminComments != nil {
		job.AdminComments = *patch.AdminComments
	}
	if patch.Reference != nil {
		job.Reference = *patch.Reference
	}

	if err := c.store.UpdateJobFrom(ctx, job, old); err != nil {
		return nil, err
	}

	if changes.TranslatorChanged {
		now := c.now()
		if activeTranslatorID != "" {
			if _, err := c.store.CloseActiveAssignment(ctx, jobID, AssignmentClose{CancelAt: &now}); err != nil && !domain.IsNotFound(err) {
				return nil, err
			}
		}
		if err := c.store.CreateAssignment(ctx, &domain.Assignment{
			ID:               uuid.NewString(),
			JobID:            jobID,
			TranslatorUserID: changes.NewTranslatorID,
			CreatedAt:        now,
		}); err != nil {
			return nil, err
		}
	}

	c.applyEffects(ctx, job, effects)

	// A booking whose session is already past gets no axis notifications.
	if changes.Any() && job.Due.After(c.now()) {
		translatorID := activeTranslatorID
		if changes.TranslatorChanged {
			translatorID = changes.NewTranslatorID
		}
		if changes.DateChanged {
			c.notifier.DateChanged(ctx, job, changes.OldDue, translatorID)
		}
		if changes.TranslatorChanged {
			c.notifier.TranslatorChanged(ctx, job, changes.OldTranslatorID, changes.NewTranslatorID)
		}
		if changes.LanguageChanged {
			c.notifier.LanguageChanged(ctx, job, changes.OldLanguageID, translatorID)
		}
	}

	return job, nil
}

// MarkExpired times out a pending booking whose expiry window closed and
// tells the customer nobody took it. The expiry sweep calls this.
func (c *Coordinator) MarkExpired(ctx context.Context, jobID string) (*domain.Job, error) {
	job, err := c.store.GetJob(ctx, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != domain.StatusPending {
		return nil, &domain.StateError{
			Reason:  domain.ReasonJobNotPending,
			Message: fmt.Sprintf("job %s is %s, only pending bookings expire", jobID, job.Status),
		}
	}

	old := job.Status
	job.Status = domain.StatusTimedout
	if err := c.store.UpdateJobFrom(ctx, job, old); err != nil {
		return nil, err
	}

	c.logger.Info("Job expired unaccepted",
		slog.String("job_id", jobID),
		slog.Time("will_expire_at", job.WillExpireAt),
	)

	c.notifier.JobExpired(ctx, job)
	return job, nil
}

// applyEffects turns the state machine's declarative effects into
// notification events, strictly after the mutation was persisted.
func (c *Coordinator) applyEffects(ctx context.Context, job *domain.Job, effects []statemachine.Effect) {
	for _, eff := range effects {
		switch eff.Kind {
		case statemachine.EffectAccepted:
			c.notifier.JobAccepted(ctx, job)
		case statemachine.EffectAssigned:
			c.notifier.JobAssigned(ctx, job, eff.TranslatorID)
		case statemachine.EffectCancelled:
			c.notifier.JobCancelled(ctx, job, eff.TranslatorID)
		case statemachine.EffectReopened:
			c.notifier.JobReopened(ctx, job)
		case statemachine.EffectSessionEnded:
			c.notifier.SessionEnded(ctx, job, eff.TranslatorID)
		default:
			c.logger.Warn("Unknown transition effect",
				slog.String("job_id", job.ID),
				slog.String("kind", string(eff.Kind)),
			)
		}
	}
}

// sessionSpan is the recorded length of a session: the absolute distance
// between the scheduled start and the moment it was closed out.
func sessionSpan(due, endedAt time.Time) time.Duration {
	d := endedAt.Sub(due)
	if d < 0 {
		d = -d
	}
	return d
}
