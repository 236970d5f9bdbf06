package domain

import (
	"fmt"
	"time"
)

// Job is a single interpretation booking request.
type Job struct {
	ID             string        `db:"id"`
	OwnerUserID    string        `db:"owner_user_id"`
	Status         JobStatus     `db:"status"`
	Due            time.Time     `db:"due"`
	Immediate      bool          `db:"immediate"`
	FromLanguageID string        `db:"from_language_id"`
	Duration       int           `db:"duration"` // minutes
	Gender         *Gender       `db:"gender"`
	Certification  *Certification `db:"certification"`
	JobType        JobType       `db:"job_type"`
	PhoneEnabled   bool          `db:"phone_enabled"`
	PhysicalEnabled bool         `db:"physical_enabled"`
	Town           string        `db:"town"`
	AdminComments  string        `db:"admin_comments"`
	SessionTime    time.Duration `db:"session_time"` // zero until completed
	Reference      string        `db:"reference"`

	// ExpiryRemindersSent counts the unaccepted-booking reminder emails
	// already sent for the current pending window; reopening resets it.
	ExpiryRemindersSent int `db:"expiry_reminders_sent"`

	CreatedAt      time.Time     `db:"created_at"`
	WillExpireAt   time.Time     `db:"will_expire_at"`
	EndAt          *time.Time    `db:"end_at"`
	WithdrawAt     *time.Time    `db:"withdraw_at"`
}

// PhysicalOnly reports whether the booking requires on-site presence and
// cannot fall back to a phone session.
func (j *Job) PhysicalOnly() bool {
	return j.PhysicalEnabled && !j.PhoneEnabled
}

// AcceptedLevels returns the translator level tags that satisfy this
// booking's certification requirement.
func (j *Job) AcceptedLevels() []TranslatorLevel {
	if j.Certification == nil {
		return AllTranslatorLevels
	}
	return j.Certification.AcceptedLevels()
}

// Assignment links a translator to a job. An assignment is active while
// neither CancelAt nor CompletedAt is set; closed assignments are kept as
// append-only history.
type Assignment struct {
	ID               string     `db:"id"`
	JobID            string     `db:"job_id"`
	TranslatorUserID string     `db:"translator_user_id"`
	CreatedAt        time.Time  `db:"created_at"`
	CancelAt         *time.Time `db:"cancel_at"`
	CompletedAt      *time.Time `db:"completed_at"`
	CompletedBy      *string    `db:"completed_by"`
}

// Active reports whether the assignment is still the live translator
// relation for its job.
func (a *Assignment) Active() bool {
	return a.CancelAt == nil && a.CompletedAt == nil
}

// FormatSessionTime renders a session duration the way end-of-session
// notifications present it, e.g. "1 tim 25 min".
func FormatSessionTime(d time.Duration) string {
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	return fmt.Sprintf("%d tim %d min", h, m)
}
