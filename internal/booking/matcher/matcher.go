package matcher

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/notify"
)

// Directory is the user lookup surface the matcher needs.
type Directory interface {
	TranslatorCandidates(ctx context.Context) ([]domain.User, error)
	BlacklistedTranslators(ctx context.Context, customerID string) ([]string, error)
	GetUser(ctx context.Context, id string) (*domain.User, error)
}

// Matcher computes the set of translators eligible for a booking. The
// result is deterministic for a fixed job and user snapshot: no randomness
// and no time dependency in eligibility itself.
type Matcher struct {
	directory Directory
	logger    *slog.Logger
	now       func() time.Time
}

func New(directory Directory, logger *slog.Logger, now func() time.Time) *Matcher {
	if now == nil {
		now = time.Now
	}
	return &Matcher{
		directory: directory,
		logger:    logger,
		now:       now,
	}
}

// PotentialTranslators returns every translator eligible to accept job:
// correct employment category for the job type, a certification level the
// booking accepts, covers the source language, matches a gender
// constraint when one is set, is not on the customer's blacklist, and for
// physical-only bookings shares the customer's town.
func (m *Matcher) PotentialTranslators(ctx context.Context, job *domain.Job) ([]domain.User, error) {
	candidates, err := m.directory.TranslatorCandidates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load translator candidates: %w", err)
	}

	blacklistIDs, err := m.directory.BlacklistedTranslators(ctx, job.OwnerUserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load blacklist for customer %s: %w", job.OwnerUserID, err)
	}
	blacklist := make(map[string]struct{}, len(blacklistIDs))
	for _, id := range blacklistIDs {
		blacklist[id] = struct{}{}
	}

	customerTown, err := m.customerTown(ctx, job)
	if err != nil {
		return nil, err
	}

	requiredType := job.JobType.RequiredTranslatorType()
	acceptedLevels := job.AcceptedLevels()

	var eligible []domain.User
	for _, candidate := range candidates {
		if _, blocked := blacklist[candidate.ID]; blocked {
			continue
		}
		if !m.isEligible(job, &candidate, requiredType, acceptedLevels, customerTown) {
			continue
		}
		eligible = append(eligible, candidate)
	}

	m.logger.Debug("Matched potential translators",
		slog.String("job_id", job.ID),
		slog.String("job_type", string(job.JobType)),
		slog.Int("candidates", len(candidates)),
		slog.Int("eligible", len(eligible)),
	)

	return eligible, nil
}

func (m *Matcher) isEligible(job *domain.Job, u *domain.User, requiredType domain.TranslatorType, acceptedLevels []domain.TranslatorLevel, customerTown string) bool {
	if u.Role != domain.RoleTranslator || u.TranslatorType == nil {
		return false
	}
	if *u.TranslatorType != requiredType {
		return false
	}
	if !u.HasLevel(acceptedLevels) {
		return false
	}
	if !u.SpeaksLanguage(job.FromLanguageID) {
		return false
	}
	if job.Gender != nil && (u.Gender == nil || *u.Gender != *job.Gender) {
		return false
	}
	if job.PhysicalOnly() && !sameTown(customerTown, u.City) {
		return false
	}
	return true
}

// customerTown resolves where a physical session takes place: the town on
// the booking when set, otherwise the customer's registered city.
func (m *Matcher) customerTown(ctx context.Context, job *domain.Job) (string, error) {
	if !job.PhysicalOnly() {
		return "", nil
	}
	if job.Town != "" {
		return job.Town, nil
	}
	owner, err := m.directory.GetUser(ctx, job.OwnerUserID)
	if err != nil {
		return "", fmt.Errorf("failed to load booking owner %s: %w", job.OwnerUserID, err)
	}
	return owner.City, nil
}

func sameTown(a, b string) bool {
	return a != "" && a == b
}

// PushRecipients narrows the eligible set down to translators who should
// get a push for this booking right now: suppress-all opt-outs are
// skipped, emergency opt-outs are skipped for immediate bookings, and
// nighttime opt-outs get the delay flag instead of being dropped.
func (m *Matcher) PushRecipients(ctx context.Context, job *domain.Job, excludeTranslatorID string) ([]notify.Recipient, error) {
	eligible, err := m.PotentialTranslators(ctx, job)
	if err != nil {
		return nil, err
	}

	night := notify.IsNightTime(m.now())
	var recipients []notify.Recipient
	for _, u := range eligible {
		if u.ID == excludeTranslatorID {
			continue
		}
		if u.SuppressAll {
			continue
		}
		if job.Immediate && u.SuppressEmergency {
			continue
		}
		recipients = append(recipients, notify.RecipientFor(&u, night))
	}
	return recipients, nil
}

// SMSRecipients returns the eligible translators reachable by SMS.
func (m *Matcher) SMSRecipients(ctx context.Context, job *domain.Job) ([]notify.Recipient, error) {
	eligible, err := m.PotentialTranslators(ctx, job)
	if err != nil {
		return nil, err
	}

	var recipients []notify.Recipient
	for _, u := range eligible {
		if u.Mobile == "" {
			continue
		}
		recipients = append(recipients, notify.RecipientFor(&u, false))
	}
	return recipients, nil
}
