package domain

// JobStatus is the closed set of workflow states a booking can be in.
type JobStatus string

const (
	StatusPending               JobStatus = "pending"
	StatusAssigned              JobStatus = "assigned"
	StatusStarted               JobStatus = "started"
	StatusCompleted             JobStatus = "completed"
	StatusWithdrawBefore24      JobStatus = "withdrawbefore24"
	StatusWithdrawAfter24       JobStatus = "withdrawafter24"
	StatusTimedout              JobStatus = "timedout"
	StatusNotCarriedOutCustomer JobStatus = "not_carried_out_customer"
)

// IsValid reports whether s is one of the known workflow states.
func (s JobStatus) IsValid() bool {
	switch s {
	case StatusPending, StatusAssigned, StatusStarted, StatusCompleted,
		StatusWithdrawBefore24, StatusWithdrawAfter24, StatusTimedout,
		StatusNotCarriedOutCustomer:
		return true
	}
	return false
}

// IsTerminal reports whether a job in s can never transition again
// through the normal workflow.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case StatusCompleted, StatusWithdrawBefore24, StatusWithdrawAfter24,
		StatusNotCarriedOutCustomer:
		return true
	}
	return false
}

// NewJobStatus validates a raw status string at the data-model boundary.
func NewJobStatus(raw string) (JobStatus, error) {
	s := JobStatus(raw)
	if !s.IsValid() {
		return "", &ValidationError{Field: "status", Message: "unknown job status: " + raw}
	}
	return s, nil
}

// JobType classifies who pays for the interpretation. It is derived from
// the consumer category of the customer who owns the booking.
type JobType string

const (
	JobTypePaid   JobType = "paid"
	JobTypeRWS    JobType = "rws"
	JobTypeUnpaid JobType = "unpaid"
)

func (t JobType) IsValid() bool {
	switch t {
	case JobTypePaid, JobTypeRWS, JobTypeUnpaid:
		return true
	}
	return false
}

// JobTypeForConsumer maps a customer consumer category to the job type
// its bookings get.
func JobTypeForConsumer(consumerType string) JobType {
	switch consumerType {
	case "rwsconsumer":
		return JobTypeRWS
	case "ngo":
		return JobTypeUnpaid
	default:
		return JobTypePaid
	}
}

// TranslatorType is the employment category of a translator.
type TranslatorType string

const (
	TranslatorProfessional TranslatorType = "professional"
	TranslatorRWS          TranslatorType = "rwstranslator"
	TranslatorVolunteer    TranslatorType = "volunteer"
)

// RequiredTranslatorType returns the translator category eligible for
// jobs of type t.
func (t JobType) RequiredTranslatorType() TranslatorType {
	switch t {
	case JobTypePaid:
		return TranslatorProfessional
	case JobTypeRWS:
		return TranslatorRWS
	default:
		return TranslatorVolunteer
	}
}

// TranslatorLevel is a certification capability tag on a translator.
type TranslatorLevel string

const (
	LevelCertified       TranslatorLevel = "certified"
	LevelCertifiedLaw    TranslatorLevel = "certified-law"
	LevelCertifiedHealth TranslatorLevel = "certified-health"
	LevelLayman          TranslatorLevel = "layman"
	LevelCourseTrained   TranslatorLevel = "course-trained"
)

// AllTranslatorLevels lists every capability tag, used when a job does not
// constrain certification.
var AllTranslatorLevels = []TranslatorLevel{
	LevelCertified,
	LevelCertifiedLaw,
	LevelCertifiedHealth,
	LevelLayman,
	LevelCourseTrained,
}

// Certification is the certification requirement a customer can put on
// a booking.
type Certification string

const (
	CertificationNormal        Certification = "normal"
	CertificationCertified     Certification = "certified"
	CertificationLaw           Certification = "law"
	CertificationHealth        Certification = "health"
	CertificationBoth          Certification = "both"
	CertificationNormalLaw     Certification = "n_law"
	CertificationNormalHealth  Certification = "n_health"
)

func (c Certification) IsValid() bool {
	switch c {
	case CertificationNormal, CertificationCertified, CertificationLaw,
		CertificationHealth, CertificationBoth, CertificationNormalLaw,
		CertificationNormalHealth:
		return true
	}
	return false
}

// AcceptedLevels maps a certification requirement to the translator level
// tags that satisfy it. A nil receiver or unmapped value accepts all tags.
func (c Certification) AcceptedLevels() []TranslatorLevel {
	switch c {
	case CertificationCertified, CertificationBoth:
		return []TranslatorLevel{LevelCertified, LevelCertifiedLaw, LevelCertifiedHealth}
	case CertificationLaw, CertificationNormalLaw:
		return []TranslatorLevel{LevelCertifiedLaw}
	case CertificationHealth, CertificationNormalHealth:
		return []TranslatorLevel{LevelCertifiedHealth}
	case CertificationNormal:
		return []TranslatorLevel{LevelLayman, LevelCourseTrained}
	default:
		return AllTranslatorLevels
	}
}

// Gender constrains which translators a customer wants for a booking.
type Gender string

const (
	GenderMale   Gender = "male"
	GenderFemale Gender = "female"
)

func (g Gender) IsValid() bool {
	return g == GenderMale || g == GenderFemale
}

// Role separates the user kinds that interact with bookings.
type Role string

const (
	RoleCustomer   Role = "customer"
	RoleTranslator Role = "translator"
	RoleAdmin      Role = "admin"
)
