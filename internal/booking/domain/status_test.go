package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJobStatus(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    JobStatus
		wantErr bool
	}{
		{name: "pending", raw: "pending", want: StatusPending},
		{name: "assigned", raw: "assigned", want: StatusAssigned},
		{name: "withdraw before 24", raw: "withdrawbefore24", want: StatusWithdrawBefore24},
		{name: "customer no-show", raw: "not_carried_out_customer", want: StatusNotCarriedOutCustomer},
		{name: "unknown status", raw: "cancelled", wantErr: true},
		{name: "empty status", raw: "", wantErr: true},
		{name: "case sensitive", raw: "Pending", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NewJobStatus(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, IsValidation(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestJobStatus_IsTerminal(t *testing.T) {
	terminal := []JobStatus{StatusCompleted, StatusWithdrawBefore24, StatusWithdrawAfter24, StatusNotCarriedOutCustomer}
	for _, s := range terminal {
		assert.True(t, s.IsTerminal(), "%s should be terminal", s)
	}

	// Timedout is deliberately not terminal: expired bookings can be
	// reopened or assigned by an admin.
	open := []JobStatus{StatusPending, StatusAssigned, StatusStarted, StatusTimedout}
	for _, s := range open {
		assert.False(t, s.IsTerminal(), "%s should not be terminal", s)
	}
}

func TestJobTypeForConsumer(t *testing.T) {
	tests := []struct {
		consumerType string
		want         JobType
	}{
		{consumerType: "rwsconsumer", want: JobTypeRWS},
		{consumerType: "ngo", want: JobTypeUnpaid},
		{consumerType: "paid", want: JobTypePaid},
		{consumerType: "", want: JobTypePaid},
		{consumerType: "anything-else", want: JobTypePaid},
	}

	for _, tt := range tests {
		t.Run(tt.consumerType, func(t *testing.T) {
			assert.Equal(t, tt.want, JobTypeForConsumer(tt.consumerType))
		})
	}
}

func TestJobType_RequiredTranslatorType(t *testing.T) {
	assert.Equal(t, TranslatorProfessional, JobTypePaid.RequiredTranslatorType())
	assert.Equal(t, TranslatorRWS, JobTypeRWS.RequiredTranslatorType())
	assert.Equal(t, TranslatorVolunteer, JobTypeUnpaid.RequiredTranslatorType())
}

func TestCertification_AcceptedLevels(t *testing.T) {
	tests := []struct {
		name          string
		certification Certification
		want          []TranslatorLevel
	}{
		{
			name:          "certified requirement accepts all certified tags",
			certification: CertificationCertified,
			want:          []TranslatorLevel{LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth},
		},
		{
			name:          "both behaves like certified",
			certification: CertificationBoth,
			want:          []TranslatorLevel{LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth},
		},
		{
			name:          "law requires the law tag",
			certification: CertificationLaw,
			want:          []TranslatorLevel{LevelCertifiedLaw},
		},
		{
			name:          "health requires the health tag",
			certification: CertificationNormalHealth,
			want:          []TranslatorLevel{LevelCertifiedHealth},
		},
		{
			name:          "normal accepts the uncertified tags",
			certification: CertificationNormal,
			want:          []TranslatorLevel{LevelLayman, LevelCourseTrained},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.certification.AcceptedLevels())
		})
	}
}

func TestJob_AcceptedLevels(t *testing.T) {
	t.Run("no certification constraint accepts every level", func(t *testing.T) {
		job := &Job{}
		assert.Equal(t, AllTranslatorLevels, job.AcceptedLevels())
	})

	t.Run("constraint narrows the set", func(t *testing.T) {
		cert := CertificationLaw
		job := &Job{Certification: &cert}
		assert.Equal(t, []TranslatorLevel{LevelCertifiedLaw}, job.AcceptedLevels())
	})
}

func TestJob_PhysicalOnly(t *testing.T) {
	assert.True(t, (&Job{PhysicalEnabled: true}).PhysicalOnly())
	assert.False(t, (&Job{PhysicalEnabled: true, PhoneEnabled: true}).PhysicalOnly())
	assert.False(t, (&Job{PhoneEnabled: true}).PhysicalOnly())
	assert.False(t, (&Job{}).PhysicalOnly())
}

func TestFormatSessionTime(t *testing.T) {
	assert.Equal(t, "1 tim 25 min", FormatSessionTime(85*time.Minute))
	assert.Equal(t, "0 tim 45 min", FormatSessionTime(45*time.Minute))
	assert.Equal(t, "2 tim 0 min", FormatSessionTime(2*time.Hour))
}

func TestAssignment_Active(t *testing.T) {
	now := time.Now()
	assert.True(t, (&Assignment{}).Active())
	assert.False(t, (&Assignment{CancelAt: &now}).Active())
	assert.False(t, (&Assignment{CompletedAt: &now}).Active())
}
