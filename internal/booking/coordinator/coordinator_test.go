package coordinator

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/statemachine"
)

var testTime = time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

// fakeStore keeps jobs and assignments in memory with the same atomicity
// contract the SQL store provides: AcceptJob is a single check-and-set.
type fakeStore struct {
	mu          sync.Mutex
	jobs        map[string]*domain.Job
	users       map[string]*domain.User
	assignments []*domain.Assignment
	booked      map[string]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		jobs:   map[string]*domain.Job{},
		users:  map[string]*domain.User{},
		booked: map[string]bool{},
	}
}

func (s *fakeStore) GetJob(_ context.Context, id string) (*domain.Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	cp := *job
	return &cp, nil
}

func (s *fakeStore) GetUser(_ context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *fakeStore) GetActiveAssignment(_ context.Context, jobID string) (*domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeLocked(jobID)
}

func (s *fakeStore) activeLocked(jobID string) (*domain.Assignment, error) {
	for _, a := range s.assignments {
		if a.JobID == jobID && a.Active() {
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrAssignmentNotFound
}

func (s *fakeStore) AcceptJob(_ context.Context, jobID, translatorID string, at time.Time) (*domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, ok := s.jobs[jobID]
	if !ok {
		return nil, domain.ErrJobNotFound
	}
	if job.Status != domain.StatusPending {
		return nil, &domain.ConflictError{Message: "job already taken"}
	}
	if _, err := s.activeLocked(jobID); err == nil {
		return nil, &domain.ConflictError{Message: "job already taken"}
	}

	job.Status = domain.StatusAssigned
	a := &domain.Assignment{
		ID:               uuid.NewString(),
		JobID:            jobID,
		TranslatorUserID: translatorID,
		CreatedAt:        at,
	}
	s.assignments = append(s.assignments, a)
	cp := *a
	return &cp, nil
}

func (s *fakeStore) IsTranslatorBooked(_ context.Context, translatorID string, _ time.Time, _ int) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.booked[translatorID], nil
}

func (s *fakeStore) CreateJob(_ context.Context, job *domain.Job) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeStore) UpdateJobFrom(_ context.Context, job *domain.Job, fromStatus domain.JobStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored, ok := s.jobs[job.ID]
	if !ok {
		return domain.ErrJobNotFound
	}
	if stored.Status != fromStatus {
		return &domain.ConflictError{Message: fmt.Sprintf("job %s changed concurrently", job.ID)}
	}
	cp := *job
	s.jobs[job.ID] = &cp
	return nil
}

func (s *fakeStore) CreateAssignment(_ context.Context, a *domain.Assignment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *a
	s.assignments = append(s.assignments, &cp)
	return nil
}

func (s *fakeStore) CloseActiveAssignment(_ context.Context, jobID string, close AssignmentClose) (*domain.Assignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, a := range s.assignments {
		if a.JobID == jobID && a.Active() {
			a.CancelAt = close.CancelAt
			a.CompletedAt = close.CompletedAt
			if close.CompletedBy != "" {
				by := close.CompletedBy
				a.CompletedBy = &by
			}
			cp := *a
			return &cp, nil
		}
	}
	return nil, domain.ErrAssignmentNotFound
}

func (s *fakeStore) activeAssignments(jobID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, a := range s.assignments {
		if a.JobID == jobID && a.Active() {
			n++
		}
	}
	return n
}

// recordingNotifier logs every fan-out call so tests can assert on the
// side effects an operation owed.
type recordingNotifier struct {
	mu    sync.Mutex
	calls []string
}

func (n *recordingNotifier) record(format string, args ...any) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, fmt.Sprintf(format, args...))
}

func (n *recordingNotifier) JobAccepted(_ context.Context, job *domain.Job) {
	n.record("accepted:%s", job.ID)
}
func (n *recordingNotifier) JobAssigned(_ context.Context, job *domain.Job, translatorID string) {
	n.record("assigned:%s:%s", job.ID, translatorID)
}
func (n *recordingNotifier) JobCancelled(_ context.Context, job *domain.Job, translatorID string) {
	n.record("cancelled:%s:%s", job.ID, translatorID)
}
func (n *recordingNotifier) JobReopened(_ context.Context, job *domain.Job) {
	n.record("reopened:%s", job.ID)
}
func (n *recordingNotifier) JobExpired(_ context.Context, job *domain.Job) {
	n.record("expired:%s", job.ID)
}
func (n *recordingNotifier) SessionEnded(_ context.Context, job *domain.Job, translatorID string) {
	n.record("session_ended:%s:%s", job.ID, translatorID)
}
func (n *recordingNotifier) PushToSuitable(_ context.Context, job *domain.Job, exclude string) {
	n.record("push_suitable:%s:exclude=%s", job.ID, exclude)
}
func (n *recordingNotifier) SMSToSuitable(_ context.Context, job *domain.Job) int {
	n.record("sms_suitable:%s", job.ID)
	return 0
}
func (n *recordingNotifier) DateChanged(_ context.Context, job *domain.Job, oldDue time.Time, translatorID string) {
	n.record("date_changed:%s:%s", job.ID, oldDue.Format("15:04"))
}
func (n *recordingNotifier) TranslatorChanged(_ context.Context, job *domain.Job, oldID, newID string) {
	n.record("translator_changed:%s:%s->%s", job.ID, oldID, newID)
}
func (n *recordingNotifier) LanguageChanged(_ context.Context, job *domain.Job, oldLang, translatorID string) {
	n.record("language_changed:%s:%s", job.ID, oldLang)
}

func (n *recordingNotifier) has(prefix string) bool {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.calls {
		if len(c) >= len(prefix) && c[:len(prefix)] == prefix {
			return true
		}
	}
	return false
}

func newTestCoordinator(store *fakeStore) (*Coordinator, *recordingNotifier) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	machine := statemachine.New(logger, func() time.Time { return testTime })
	notifier := &recordingNotifier{}
	return New(store, machine, notifier, logger, func() time.Time { return testTime }), notifier
}

func seedJob(store *fakeStore, status domain.JobStatus, due time.Time) *domain.Job {
	job := &domain.Job{
		ID:             "job-1",
		OwnerUserID:    "customer-1",
		Status:         status,
		Due:            due,
		FromLanguageID: "lang-ar",
		Duration:       60,
		JobType:        domain.JobTypePaid,
		CreatedAt:      testTime.Add(-time.Hour),
		WillExpireAt:   testTime.Add(15 * time.Hour),
	}
	cp := *job
	store.jobs[job.ID] = &cp
	return job
}

func seedAssignment(store *fakeStore, jobID, translatorID string) {
	store.assignments = append(store.assignments, &domain.Assignment{
		ID:               uuid.NewString(),
		JobID:            jobID,
		TranslatorUserID: translatorID,
		CreatedAt:        testTime.Add(-time.Hour),
	})
}

func TestCoordinator_CreateBooking(t *testing.T) {
	t.Run("scheduled booking gets pending status, expiry and fan-out", func(t *testing.T) {
		store := newFakeStore()
		store.users["customer-1"] = &domain.User{ID: "customer-1", Role: domain.RoleCustomer, ConsumerType: "rwsconsumer"}
		c, notifier := newTestCoordinator(store)

		job, err := c.CreateBooking(context.Background(), &domain.Job{
			OwnerUserID:    "customer-1",
			Due:            testTime.Add(48 * time.Hour),
			FromLanguageID: "lang-ar",
			Duration:       60,
		})

		require.NoError(t, err)
		assert.NotEmpty(t, job.ID)
		assert.Equal(t, domain.StatusPending, job.Status)
		assert.Equal(t, domain.JobTypeRWS, job.JobType)
		assert.Equal(t, domain.WillExpireAt(job.Due, testTime), job.WillExpireAt)
		assert.True(t, notifier.has("push_suitable:"+job.ID))
		assert.True(t, notifier.has("sms_suitable:"+job.ID))
	})

	t.Run("immediate booking is due shortly after creation", func(t *testing.T) {
		store := newFakeStore()
		store.users["customer-1"] = &domain.User{ID: "customer-1", Role: domain.RoleCustomer}
		c, _ := newTestCoordinator(store)

		job, err := c.CreateBooking(context.Background(), &domain.Job{
			OwnerUserID:    "customer-1",
			Immediate:      true,
			FromLanguageID: "lang-ar",
			Duration:       30,
		})

		require.NoError(t, err)
		assert.Equal(t, testTime.Add(immediateLeadTime), job.Due)
		assert.Equal(t, domain.JobTypePaid, job.JobType)
	})

	t.Run("past due on a scheduled booking rejected", func(t *testing.T) {
		store := newFakeStore()
		store.users["customer-1"] = &domain.User{ID: "customer-1", Role: domain.RoleCustomer}
		c, _ := newTestCoordinator(store)

		_, err := c.CreateBooking(context.Background(), &domain.Job{
			OwnerUserID:    "customer-1",
			Due:            testTime.Add(-time.Hour),
			FromLanguageID: "lang-ar",
			Duration:       60,
		})

		assert.True(t, domain.IsValidation(err))
	})

	t.Run("unknown owner rejected", func(t *testing.T) {
		store := newFakeStore()
		c, _ := newTestCoordinator(store)

		_, err := c.CreateBooking(context.Background(), &domain.Job{
			OwnerUserID:    "nobody",
			Due:            testTime.Add(48 * time.Hour),
			FromLanguageID: "lang-ar",
			Duration:       60,
		})

		assert.True(t, domain.IsNotFound(err))
	})
}

func TestCoordinator_AcceptJob(t *testing.T) {
	t.Run("pending job gets assigned and customer notified", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusPending, testTime.Add(48*time.Hour))
		c, notifier := newTestCoordinator(store)

		job, err := c.AcceptJob(context.Background(), "job-1", "translator-1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusAssigned, job.Status)
		assert.Equal(t, 1, store.activeAssignments("job-1"))
		assert.True(t, notifier.has("accepted:job-1"))
	})

	t.Run("non-pending job rejected with state error", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(48*time.Hour))
		c, _ := newTestCoordinator(store)

		_, err := c.AcceptJob(context.Background(), "job-1", "translator-1")

		var se *domain.StateError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, domain.ReasonJobNotPending, se.Reason)
	})

	t.Run("translator with overlapping booking rejected", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusPending, testTime.Add(48*time.Hour))
		store.booked["translator-1"] = true
		c, notifier := newTestCoordinator(store)

		_, err := c.AcceptJob(context.Background(), "job-1", "translator-1")

		assert.True(t, domain.IsConflict(err))
		assert.Empty(t, notifier.calls)
	})

	t.Run("unknown job reports not found", func(t *testing.T) {
		store := newFakeStore()
		c, _ := newTestCoordinator(store)

		_, err := c.AcceptJob(context.Background(), "missing", "translator-1")

		assert.True(t, domain.IsNotFound(err))
	})
}

func TestCoordinator_AcceptJobWithID(t *testing.T) {
	t.Run("admin assignment resolves the translator account first", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusPending, testTime.Add(48*time.Hour))
		store.users["translator-1"] = &domain.User{ID: "translator-1", Role: domain.RoleTranslator}
		c, notifier := newTestCoordinator(store)

		job, err := c.AcceptJobWithID(context.Background(), "job-1", "translator-1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusAssigned, job.Status)
		assert.True(t, notifier.has("accepted:job-1"))
	})

	t.Run("unknown translator reports not found before any claim", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusPending, testTime.Add(48*time.Hour))
		c, _ := newTestCoordinator(store)

		_, err := c.AcceptJobWithID(context.Background(), "job-1", "ghost")

		assert.True(t, domain.IsNotFound(err))
		assert.Zero(t, store.activeAssignments("job-1"))
	})
}

// Two translators racing for the same booking: exactly one wins, the
// loser sees a conflict, and only one active assignment exists after.
func TestCoordinator_AcceptJob_RaceHasOneWinner(t *testing.T) {
	store := newFakeStore()
	seedJob(store, domain.StatusPending, testTime.Add(48*time.Hour))
	c, _ := newTestCoordinator(store)

	const racers = 8
	errs := make([]error, racers)
	var wg sync.WaitGroup
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.AcceptJob(context.Background(), "job-1", fmt.Sprintf("translator-%d", i))
		}(i)
	}
	wg.Wait()

	winners := 0
	for _, err := range errs {
		if err == nil {
			winners++
			continue
		}
		assert.True(t, domain.IsConflict(err) || domain.IsStateError(err), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, winners)
	assert.Equal(t, 1, store.activeAssignments("job-1"))
}

func TestCoordinator_CancelJob_Customer(t *testing.T) {
	tests := []struct {
		name       string
		due        time.Time
		wantStatus domain.JobStatus
	}{
		{
			name:       "more than 24 hours out withdraws before24",
			due:        testTime.Add(48 * time.Hour),
			wantStatus: domain.StatusWithdrawBefore24,
		},
		{
			name:       "exactly 24 hours out withdraws before24",
			due:        testTime.Add(24 * time.Hour),
			wantStatus: domain.StatusWithdrawBefore24,
		},
		{
			name:       "under 24 hours withdraws after24",
			due:        testTime.Add(6 * time.Hour),
			wantStatus: domain.StatusWithdrawAfter24,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := newFakeStore()
			seedJob(store, domain.StatusAssigned, tt.due)
			seedAssignment(store, "job-1", "translator-1")
			c, notifier := newTestCoordinator(store)

			job, err := c.CancelJob(context.Background(), "job-1", "customer-1")

			require.NoError(t, err)
			assert.Equal(t, tt.wantStatus, job.Status)
			require.NotNil(t, job.WithdrawAt)
			assert.Equal(t, testTime, *job.WithdrawAt)
			assert.True(t, notifier.has("cancelled:job-1:translator-1"))
		})
	}
}

func TestCoordinator_CancelJob_Translator(t *testing.T) {
	t.Run("over 24 hours out releases the booking back to the pool", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(48*time.Hour))
		seedAssignment(store, "job-1", "translator-1")
		c, notifier := newTestCoordinator(store)

		job, err := c.CancelJob(context.Background(), "job-1", "translator-1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, job.Status)
		assert.Equal(t, testTime, job.CreatedAt)
		assert.Equal(t, domain.WillExpireAt(job.Due, testTime), job.WillExpireAt)
		assert.Zero(t, store.activeAssignments("job-1"))
		assert.True(t, notifier.has("cancelled:job-1:"))
		assert.True(t, notifier.has("push_suitable:job-1:exclude=translator-1"))
	})

	t.Run("at exactly 24 hours the window is already closed", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(24*time.Hour))
		seedAssignment(store, "job-1", "translator-1")
		c, notifier := newTestCoordinator(store)

		_, err := c.CancelJob(context.Background(), "job-1", "translator-1")

		var se *domain.StateError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, domain.ReasonCancelWindowClosed, se.Reason)
		assert.Equal(t, 1, store.activeAssignments("job-1"))
		assert.Empty(t, notifier.calls)
	})

	t.Run("within 24 hours the window is closed", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(6*time.Hour))
		seedAssignment(store, "job-1", "translator-1")
		c, notifier := newTestCoordinator(store)

		_, err := c.CancelJob(context.Background(), "job-1", "translator-1")

		var se *domain.StateError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, domain.ReasonCancelWindowClosed, se.Reason)
		assert.Equal(t, 1, store.activeAssignments("job-1"))
		assert.Empty(t, notifier.calls)
	})

	t.Run("translator who is not the active one rejected", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(48*time.Hour))
		seedAssignment(store, "job-1", "translator-1")
		c, _ := newTestCoordinator(store)

		_, err := c.CancelJob(context.Background(), "job-1", "translator-2")

		assert.True(t, domain.IsNotFound(err))
	})
}

func TestCoordinator_EndJob(t *testing.T) {
	t.Run("started session completes with recorded span", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusStarted, testTime.Add(-85*time.Minute))
		seedAssignment(store, "job-1", "translator-1")
		c, notifier := newTestCoordinator(store)

		job, err := c.EndJob(context.Background(), "job-1", "translator-1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, job.Status)
		assert.Equal(t, 85*time.Minute, job.SessionTime)
		require.NotNil(t, job.EndAt)
		assert.Zero(t, store.activeAssignments("job-1"))
		assert.True(t, notifier.has("session_ended:job-1:translator-1"))
	})

	t.Run("not started rejected", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(-time.Hour))
		c, _ := newTestCoordinator(store)

		_, err := c.EndJob(context.Background(), "job-1", "translator-1")

		var se *domain.StateError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, domain.ReasonJobNotStarted, se.Reason)
	})

	// The assignment closes before the completion persists, so a run that
	// died between the two leaves a started job with a closed assignment.
	// Ending it again must finish the booking instead of wedging it.
	t.Run("retry after an interrupted completion still closes the booking", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusStarted, testTime.Add(-85*time.Minute))
		completedAt := testTime.Add(-time.Minute)
		store.assignments = append(store.assignments, &domain.Assignment{
			ID:               uuid.NewString(),
			JobID:            "job-1",
			TranslatorUserID: "translator-1",
			CreatedAt:        testTime.Add(-2 * time.Hour),
			CompletedAt:      &completedAt,
		})
		c, notifier := newTestCoordinator(store)

		job, err := c.EndJob(context.Background(), "job-1", "translator-1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusCompleted, job.Status)
		assert.Equal(t, 85*time.Minute, job.SessionTime)
		assert.True(t, notifier.has("session_ended:job-1:"))
	})
}

func TestCoordinator_CustomerNotCall(t *testing.T) {
	t.Run("no-show closes out on the translator's behalf", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusStarted, testTime.Add(-30*time.Minute))
		seedAssignment(store, "job-1", "translator-1")
		c, notifier := newTestCoordinator(store)

		job, err := c.CustomerNotCall(context.Background(), "job-1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusNotCarriedOutCustomer, job.Status)
		assert.Zero(t, store.activeAssignments("job-1"))
		assert.True(t, notifier.has("session_ended:job-1:translator-1"))
	})

	t.Run("requires an active assignment", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusStarted, testTime.Add(-30*time.Minute))
		c, _ := newTestCoordinator(store)

		_, err := c.CustomerNotCall(context.Background(), "job-1")

		assert.True(t, domain.IsNotFound(err))
	})
}

func TestCoordinator_Reopen(t *testing.T) {
	t.Run("withdrawn booking reopens in place", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusWithdrawBefore24, testTime.Add(48*time.Hour))
		c, notifier := newTestCoordinator(store)

		job, err := c.Reopen(context.Background(), "job-1", "customer-1")

		require.NoError(t, err)
		assert.Equal(t, "job-1", job.ID)
		assert.Equal(t, domain.StatusPending, job.Status)
		assert.Equal(t, testTime, job.CreatedAt)
		assert.Equal(t, domain.WillExpireAt(job.Due, testTime), job.WillExpireAt)
		assert.True(t, notifier.has("reopened:job-1"))
	})

	t.Run("timedout booking is cloned, the original stays on record", func(t *testing.T) {
		store := newFakeStore()
		original := seedJob(store, domain.StatusTimedout, testTime.Add(48*time.Hour))
		c, notifier := newTestCoordinator(store)

		job, err := c.Reopen(context.Background(), "job-1", "customer-1")

		require.NoError(t, err)
		assert.NotEqual(t, original.ID, job.ID)
		assert.Equal(t, domain.StatusPending, job.Status)
		assert.Contains(t, job.AdminComments, "reopening of booking #job-1")
		assert.Equal(t, original.Due, job.Due)

		stored, err := store.GetJob(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusTimedout, stored.Status)

		assert.True(t, notifier.has("reopened:"+job.ID))
	})

	t.Run("active assignment closed and audit row recorded", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(48*time.Hour))
		seedAssignment(store, "job-1", "translator-1")
		c, _ := newTestCoordinator(store)

		_, err := c.Reopen(context.Background(), "job-1", "admin-1")

		require.NoError(t, err)
		assert.Zero(t, store.activeAssignments("job-1"))

		// The audit row is created pre-closed so it never reads as a live
		// translator relation.
		var audit *domain.Assignment
		for _, a := range store.assignments {
			if a.TranslatorUserID == "admin-1" {
				audit = a
			}
		}
		require.NotNil(t, audit)
		assert.NotNil(t, audit.CancelAt)
	})

	t.Run("unknown job fails", func(t *testing.T) {
		store := newFakeStore()
		c, _ := newTestCoordinator(store)

		_, err := c.Reopen(context.Background(), "missing", "admin-1")

		assert.True(t, domain.IsNotFound(err))
	})
}

func TestCoordinator_UpdateJob(t *testing.T) {
	t.Run("due change fires date-changed", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(48*time.Hour))
		seedAssignment(store, "job-1", "translator-1")
		c, notifier := newTestCoordinator(store)

		newDue := testTime.Add(72 * time.Hour)
		job, err := c.UpdateJob(context.Background(), "job-1", UpdatePatch{Due: &newDue})

		require.NoError(t, err)
		assert.True(t, job.Due.Equal(newDue))
		assert.True(t, notifier.has("date_changed:job-1"))
	})

	t.Run("several axes changing fire independent events", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(48*time.Hour))
		seedAssignment(store, "job-1", "translator-1")
		c, notifier := newTestCoordinator(store)

		newDue := testTime.Add(72 * time.Hour)
		newLang := "lang-fi"
		newTranslator := "translator-2"
		_, err := c.UpdateJob(context.Background(), "job-1", UpdatePatch{
			Due:            &newDue,
			FromLanguageID: &newLang,
			TranslatorID:   &newTranslator,
		})

		require.NoError(t, err)
		assert.True(t, notifier.has("date_changed:job-1"))
		assert.True(t, notifier.has("language_changed:job-1:lang-ar"))
		assert.True(t, notifier.has("translator_changed:job-1:translator-1->translator-2"))
	})

	t.Run("translator change swaps the active assignment", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(48*time.Hour))
		seedAssignment(store, "job-1", "translator-1")
		c, _ := newTestCoordinator(store)

		newTranslator := "translator-2"
		_, err := c.UpdateJob(context.Background(), "job-1", UpdatePatch{TranslatorID: &newTranslator})

		require.NoError(t, err)
		assert.Equal(t, 1, store.activeAssignments("job-1"))
		active, err := store.GetActiveAssignment(context.Background(), "job-1")
		require.NoError(t, err)
		assert.Equal(t, "translator-2", active.TranslatorUserID)
	})

	t.Run("past bookings get no axis notifications", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(-time.Hour))
		seedAssignment(store, "job-1", "translator-1")
		c, notifier := newTestCoordinator(store)

		past := testTime.Add(-2 * time.Hour)
		_, err := c.UpdateJob(context.Background(), "job-1", UpdatePatch{Due: &past})

		require.NoError(t, err)
		assert.False(t, notifier.has("date_changed:job-1"))
	})

	t.Run("rejected status transition leaves the job untouched", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusCompleted, testTime.Add(-48*time.Hour))
		c, notifier := newTestCoordinator(store)

		pending := domain.StatusPending
		newDue := testTime.Add(72 * time.Hour)
		_, err := c.UpdateJob(context.Background(), "job-1", UpdatePatch{Status: &pending, Due: &newDue})

		require.Error(t, err)
		assert.True(t, domain.IsStateError(err))

		stored, gerr := store.GetJob(context.Background(), "job-1")
		require.NoError(t, gerr)
		assert.Equal(t, domain.StatusCompleted, stored.Status)
		assert.False(t, stored.Due.Equal(newDue))
		assert.Empty(t, notifier.calls)
	})
}

func TestCoordinator_TransitionStatus(t *testing.T) {
	t.Run("reopening a timedout booking dispatches the reopen fan-out", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusTimedout, testTime.Add(48*time.Hour))
		c, notifier := newTestCoordinator(store)

		job, err := c.TransitionStatus(context.Background(), "job-1", statemachine.Request{
			NewStatus: domain.StatusPending,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusPending, job.Status)
		assert.True(t, notifier.has("reopened:job-1"))
	})

	t.Run("active translator resolved for the effect when not supplied", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(48*time.Hour))
		seedAssignment(store, "job-1", "translator-1")
		c, notifier := newTestCoordinator(store)

		_, err := c.TransitionStatus(context.Background(), "job-1", statemachine.Request{
			NewStatus: domain.StatusWithdrawAfter24,
		})

		require.NoError(t, err)
		assert.True(t, notifier.has("cancelled:job-1:translator-1"))
	})

	t.Run("illegal transition dispatches nothing", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusCompleted, testTime.Add(-48*time.Hour))
		c, notifier := newTestCoordinator(store)

		_, err := c.TransitionStatus(context.Background(), "job-1", statemachine.Request{
			NewStatus: domain.StatusStarted,
		})

		require.Error(t, err)
		assert.Empty(t, notifier.calls)
	})
}

func TestCoordinator_MarkExpired(t *testing.T) {
	t.Run("pending booking times out and customer is told", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusPending, testTime.Add(time.Hour))
		c, notifier := newTestCoordinator(store)

		job, err := c.MarkExpired(context.Background(), "job-1")

		require.NoError(t, err)
		assert.Equal(t, domain.StatusTimedout, job.Status)
		assert.True(t, notifier.has("expired:job-1"))
	})

	t.Run("non-pending booking rejected", func(t *testing.T) {
		store := newFakeStore()
		seedJob(store, domain.StatusAssigned, testTime.Add(time.Hour))
		c, _ := newTestCoordinator(store)

		_, err := c.MarkExpired(context.Background(), "job-1")

		var se *domain.StateError
		require.ErrorAs(t, err, &se)
		assert.Equal(t, domain.ReasonJobNotPending, se.Reason)
	})
}

func TestTrackChanges(t *testing.T) {
	base := &domain.Job{
		ID:             "job-1",
		Due:            testTime.Add(48 * time.Hour),
		FromLanguageID: "lang-ar",
	}

	t.Run("no patch fields means no changes", func(t *testing.T) {
		cs := TrackChanges(base, UpdatePatch{}, "translator-1")
		assert.False(t, cs.Any())
	})

	t.Run("same values mean no changes", func(t *testing.T) {
		due := base.Due
		lang := base.FromLanguageID
		tr := "translator-1"
		cs := TrackChanges(base, UpdatePatch{Due: &due, FromLanguageID: &lang, TranslatorID: &tr}, "translator-1")
		assert.False(t, cs.Any())
	})

	t.Run("each axis tracked independently", func(t *testing.T) {
		due := base.Due.Add(time.Hour)
		lang := "lang-fi"
		tr := "translator-2"
		cs := TrackChanges(base, UpdatePatch{Due: &due, FromLanguageID: &lang, TranslatorID: &tr}, "translator-1")

		assert.True(t, cs.DateChanged)
		assert.True(t, cs.OldDue.Equal(base.Due))
		assert.True(t, cs.LanguageChanged)
		assert.Equal(t, "lang-ar", cs.OldLanguageID)
		assert.True(t, cs.TranslatorChanged)
		assert.Equal(t, "translator-1", cs.OldTranslatorID)
		assert.Equal(t, "translator-2", cs.NewTranslatorID)
	})

	t.Run("empty translator id is not a change", func(t *testing.T) {
		tr := ""
		cs := TrackChanges(base, UpdatePatch{TranslatorID: &tr}, "translator-1")
		assert.False(t, cs.Any())
	})
}
