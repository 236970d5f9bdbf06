package coordinator

import (
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

// UpdatePatch is the partial update an admin can apply to a booking. Nil
// fields are left untouched.
type UpdatePatch struct {
	Due            *time.Time
	FromLanguageID *string
	TranslatorID   *string
	Status         *domain.JobStatus
	AdminComments  *string
	Reference      *string
	SessionTime    *time.Duration
}

// ChangeSet records which of the independently tracked axes of a booking
// an update touches. Each changed axis owes its own notification event on
// top of any status-transition side effect.
type ChangeSet struct {
	DateChanged bool
	OldDue      time.Time

	TranslatorChanged bool
	OldTranslatorID   string
	NewTranslatorID   string

	LanguageChanged bool
	OldLanguageID   string
}

// TrackChanges diffs the proposed patch against the current job snapshot.
// It is a pure comparison: nothing is mutated here.
func TrackChanges(job *domain.Job, patch UpdatePatch, activeTranslatorID string) ChangeSet {
	var cs ChangeSet

	if patch.Due != nil && !patch.Due.Equal(job.Due) {
		cs.DateChanged = true
		cs.OldDue = job.Due
	}

	if patch.TranslatorID != nil && *patch.TranslatorID != "" && *patch.TranslatorID != activeTranslatorID {
		cs.TranslatorChanged = true
		cs.OldTranslatorID = activeTranslatorID
		cs.NewTranslatorID = *patch.TranslatorID
	}

	if patch.FromLanguageID != nil && *patch.FromLanguageID != job.FromLanguageID {
		cs.LanguageChanged = true
		cs.OldLanguageID = job.FromLanguageID
	}

	return cs
}

// Any reports whether the update touched at least one tracked axis.
func (cs ChangeSet) Any() bool {
	return cs.DateChanged || cs.TranslatorChanged || cs.LanguageChanged
}
