// Package storage is the PostgreSQL persistence layer for bookings,
// assignments and user accounts.
package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/nordtolk/booking-be/internal/booking/coordinator"
	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/shared/postgresql"
)

type Storage struct {
	db *sqlx.DB
}

func NewStorage(pg *postgresql.Client) *Storage {
	return &Storage{
		db: pg.GetDB(),
	}
}

const jobColumns = `
	id, owner_user_id, status, due, immediate, from_language_id, duration,
	gender, certification, job_type, phone_enabled, physical_enabled, town,
	admin_comments, session_time, reference, expiry_reminders_sent,
	created_at, will_expire_at, end_at, withdraw_at
`

func (s *Storage) GetJob(ctx context.Context, id string) (*domain.Job, error) {
	var job domain.Job
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE id = $1`

	err := s.db.GetContext(ctx, &job, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

func (s *Storage) CreateJob(ctx context.Context, job *domain.Job) error {
	query := `
		INSERT INTO jobs (` + jobColumns + `)
		VALUES (
			:id, :owner_user_id, :status, :due, :immediate, :from_language_id, :duration,
			:gender, :certification, :job_type, :phone_enabled, :physical_enabled, :town,
			:admin_comments, :session_time, :reference, :expiry_reminders_sent,
			:created_at, :will_expire_at, :end_at, :withdraw_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, job); err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

// UpdateJobFrom persists job only if its stored status still equals
// fromStatus. The guard serializes concurrent mutations of the same
// booking: a caller working from a stale snapshot gets a ConflictError
// instead of silently overwriting the other writer.
func (s *Storage) UpdateJobFrom(ctx context.Context, job *domain.Job, fromStatus domain.JobStatus) error {
	query := `
		UPDATE jobs SET
			status = :status,
			due = :due,
			from_language_id = :from_language_id,
			admin_comments = :admin_comments,
			session_time = :session_time,
			reference = :reference,
			expiry_reminders_sent = :expiry_reminders_sent,
			created_at = :created_at,
			will_expire_at = :will_expire_at,
			end_at = :end_at,
			withdraw_at = :withdraw_at
		WHERE id = :id AND status = :from_status
	`

	arg := struct {
		*domain.Job
		FromStatus domain.JobStatus `db:"from_status"`
	}{Job: job, FromStatus: fromStatus}

	res, err := s.db.NamedExecContext(ctx, query, arg)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read update result: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := s.db.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, job.ID); err != nil {
			return fmt.Errorf("failed to check job existence: %w", err)
		}
		if !exists {
			return domain.ErrJobNotFound
		}
		return &domain.ConflictError{
			Message: fmt.Sprintf("job %s was modified concurrently", job.ID),
		}
	}
	return nil
}

// AcceptJob is the one operation that must be atomic: the status flip and
// the assignment insert run in a single transaction, and the UPDATE only
// matches while the job is still pending with no live assignment. A
// concurrent acceptance that lost the race matches zero rows and gets a
// ConflictError.
func (s *Storage) AcceptJob(ctx context.Context, jobID, translatorID string, at time.Time) (*domain.Assignment, error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `
		UPDATE jobs SET status = $1
		WHERE id = $2
		  AND status = $3
		  AND NOT EXISTS (
			SELECT 1 FROM assignments
			WHERE job_id = $2 AND cancel_at IS NULL AND completed_at IS NULL
		  )
	`, domain.StatusAssigned, jobID, domain.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("failed to claim job: %w", err)
	}

	rows, err := res.RowsAffected()
	if err != nil {
		return nil, fmt.Errorf("failed to read claim result: %w", err)
	}
	if rows == 0 {
		var exists bool
		if err := tx.GetContext(ctx, &exists, `SELECT EXISTS (SELECT 1 FROM jobs WHERE id = $1)`, jobID); err != nil {
			return nil, fmt.Errorf("failed to check job existence: %w", err)
		}
		if !exists {
			return nil, domain.ErrJobNotFound
		}
		return nil, &domain.ConflictError{
			Message: fmt.Sprintf("job %s was already taken", jobID),
		}
	}

	assignment := &domain.Assignment{
		JobID:            jobID,
		TranslatorUserID: translatorID,
		CreatedAt:        at,
	}
	err = tx.GetContext(ctx, &assignment.ID, `
		INSERT INTO assignments (id, job_id, translator_user_id, created_at)
		VALUES (gen_random_uuid(), $1, $2, $3)
		RETURNING id
	`, jobID, translatorID, at)
	if err != nil {
		return nil, fmt.Errorf("failed to create assignment: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit acceptance: %w", err)
	}
	return assignment, nil
}

// IsTranslatorBooked reports whether the translator already holds a live
// assignment whose session window overlaps [due, due+duration).
func (s *Storage) IsTranslatorBooked(ctx context.Context, translatorID string, due time.Time, durationMinutes int) (bool, error) {
	var booked bool
	query := `
		SELECT EXISTS (
			SELECT 1
			FROM assignments a
			JOIN jobs j ON j.id = a.job_id
			WHERE a.translator_user_id = $1
			  AND a.cancel_at IS NULL AND a.completed_at IS NULL
			  AND j.status IN ($2, $3)
			  AND j.due < $4 + make_interval(mins => $5)
			  AND j.due + make_interval(mins => j.duration) > $4
		)
	`

	err := s.db.GetContext(ctx, &booked, query,
		translatorID, domain.StatusAssigned, domain.StatusStarted, due, durationMinutes)
	if err != nil {
		return false, fmt.Errorf("failed to check translator bookings: %w", err)
	}
	return booked, nil
}

const assignmentColumns = `id, job_id, translator_user_id, created_at, cancel_at, completed_at, completed_by`

func (s *Storage) GetActiveAssignment(ctx context.Context, jobID string) (*domain.Assignment, error) {
	var a domain.Assignment
	query := `
		SELECT ` + assignmentColumns + `
		FROM assignments
		WHERE job_id = $1 AND cancel_at IS NULL AND completed_at IS NULL
	`

	err := s.db.GetContext(ctx, &a, query, jobID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get active assignment: %w", err)
	}
	return &a, nil
}

func (s *Storage) CreateAssignment(ctx context.Context, a *domain.Assignment) error {
	query := `
		INSERT INTO assignments (` + assignmentColumns + `)
		VALUES (:id, :job_id, :translator_user_id, :created_at, :cancel_at, :completed_at, :completed_by)
	`

	if _, err := s.db.NamedExecContext(ctx, query, a); err != nil {
		return fmt.Errorf("failed to create assignment: %w", err)
	}
	return nil
}

func (s *Storage) CloseActiveAssignment(ctx context.Context, jobID string, close coordinator.AssignmentClose) (*domain.Assignment, error) {
	var completedBy *string
	if close.CompletedBy != "" {
		completedBy = &close.CompletedBy
	}

	var a domain.Assignment
	query := `
		UPDATE assignments
		SET cancel_at = $2, completed_at = $3, completed_by = $4
		WHERE job_id = $1 AND cancel_at IS NULL AND completed_at IS NULL
		RETURNING ` + assignmentColumns

	err := s.db.GetContext(ctx, &a, query, jobID, close.CancelAt, close.CompletedAt, completedBy)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrAssignmentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to close assignment: %w", err)
	}
	return &a, nil
}

// userRow mirrors the users table; array columns need pq wrappers before
// they become the domain types.
type userRow struct {
	ID                string                 `db:"id"`
	Role              domain.Role            `db:"role"`
	Name              string                 `db:"name"`
	Email             string                 `db:"email"`
	Mobile            string                 `db:"mobile"`
	Gender            *domain.Gender         `db:"gender"`
	City              string                 `db:"city"`
	ConsumerType      string                 `db:"consumer_type"`
	TranslatorType    *domain.TranslatorType `db:"translator_type"`
	Levels            pq.StringArray         `db:"levels"`
	LanguageIDs       pq.StringArray         `db:"language_ids"`
	SuppressAll       bool                   `db:"suppress_all"`
	SuppressNighttime bool                   `db:"suppress_nighttime"`
	SuppressEmergency bool                   `db:"suppress_emergency"`
}

func (r *userRow) toDomain() domain.User {
	levels := make([]domain.TranslatorLevel, 0, len(r.Levels))
	for _, l := range r.Levels {
		levels = append(levels, domain.TranslatorLevel(l))
	}
	return domain.User{
		ID:                r.ID,
		Role:              r.Role,
		Name:              r.Name,
		Email:             r.Email,
		Mobile:            r.Mobile,
		Gender:            r.Gender,
		City:              r.City,
		ConsumerType:      r.ConsumerType,
		TranslatorType:    r.TranslatorType,
		Levels:            levels,
		LanguageIDs:       []string(r.LanguageIDs),
		SuppressAll:       r.SuppressAll,
		SuppressNighttime: r.SuppressNighttime,
		SuppressEmergency: r.SuppressEmergency,
	}
}

const userColumns = `
	id, role, name, email, mobile, gender, city, consumer_type,
	translator_type, levels, language_ids,
	suppress_all, suppress_nighttime, suppress_emergency
`

func (s *Storage) GetUser(ctx context.Context, id string) (*domain.User, error) {
	var row userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	err := s.db.GetContext(ctx, &row, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	u := row.toDomain()
	return &u, nil
}

// TranslatorCandidates loads every translator account; eligibility
// filtering happens in the matcher, against one consistent snapshot.
func (s *Storage) TranslatorCandidates(ctx context.Context) ([]domain.User, error) {
	var rows []userRow
	query := `SELECT ` + userColumns + ` FROM users WHERE role = $1`

	if err := s.db.SelectContext(ctx, &rows, query, domain.RoleTranslator); err != nil {
		return nil, fmt.Errorf("failed to list translators: %w", err)
	}

	users := make([]domain.User, 0, len(rows))
	for i := range rows {
		users = append(users, rows[i].toDomain())
	}
	return users, nil
}

func (s *Storage) BlacklistedTranslators(ctx context.Context, customerID string) ([]string, error) {
	var ids []string
	query := `SELECT translator_user_id FROM user_blacklist WHERE customer_user_id = $1`

	if err := s.db.SelectContext(ctx, &ids, query, customerID); err != nil {
		return nil, fmt.Errorf("failed to load blacklist: %w", err)
	}
	return ids, nil
}

// JobFilter narrows ListJobs; zero values mean "no constraint".
type JobFilter struct {
	OwnerUserID string
	Status      domain.JobStatus
	PageSize    int
	Cursor      *JobCursor
}

// JobCursor is keyset-pagination state: the caller hands back the
// created_at and id of the last row it saw.
type JobCursor struct {
	CreatedAt time.Time
	ID        string
}

func (s *Storage) ListJobs(ctx context.Context, filter JobFilter) ([]domain.Job, error) {
	query := `SELECT ` + jobColumns + ` FROM jobs WHERE 1=1`
	args := []interface{}{}
	argIdx := 1

	if filter.OwnerUserID != "" {
		query += fmt.Sprintf(" AND owner_user_id = $%d", argIdx)
		args = append(args, filter.OwnerUserID)
		argIdx++
	}

	if filter.Status != "" {
		query += fmt.Sprintf(" AND status = $%d", argIdx)
		args = append(args, filter.Status)
		argIdx++
	}

	if filter.Cursor != nil {
		query += fmt.Sprintf(" AND (created_at, id) < ($%d, $%d)", argIdx, argIdx+1)
		args = append(args, filter.Cursor.CreatedAt, filter.Cursor.ID)
		argIdx += 2
	}

	query += " ORDER BY created_at DESC, id DESC"

	// One extra row tells the caller whether more pages exist.
	query += fmt.Sprintf(" LIMIT $%d", argIdx)
	args = append(args, filter.PageSize+1)

	var jobs []domain.Job
	if err := s.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	return jobs, nil
}

// ExpiredPendingJobIDs returns pending bookings whose expiry window
// closed before cutoff. The expiry sweep feeds these into MarkExpired.
func (s *Storage) ExpiredPendingJobIDs(ctx context.Context, cutoff time.Time) ([]string, error) {
	var ids []string
	query := `SELECT id FROM jobs WHERE status = $1 AND will_expire_at <= $2`

	if err := s.db.SelectContext(ctx, &ids, query, domain.StatusPending, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list expired jobs: %w", err)
	}
	return ids, nil
}
