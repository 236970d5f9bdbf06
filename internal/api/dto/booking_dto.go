package dto

import (
	"time"

	"github.com/nordtolk/booking-be/internal/booking/domain"
)

type CreateBookingRequest struct {
	OwnerUserID     string `json:"owner_user_id" binding:"required"`
	Due             string `json:"due"`
	Immediate       bool   `json:"immediate"`
	FromLanguageID  string `json:"from_language_id" binding:"required"`
	Duration        int    `json:"duration" binding:"required"`
	Gender          string `json:"gender"`
	Certification   string `json:"certification"`
	PhoneEnabled    bool   `json:"phone_enabled"`
	PhysicalEnabled bool   `json:"physical_enabled"`
	Town            string `json:"town"`
	Reference       string `json:"reference"`
}

type AcceptBookingRequest struct {
	TranslatorID string `json:"translator_id" binding:"required"`
}

type CancelBookingRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

type EndBookingRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

type ReopenBookingRequest struct {
	ActorID string `json:"actor_id" binding:"required"`
}

type TransitionStatusRequest struct {
	Status             string `json:"status" binding:"required"`
	AdminComments      string `json:"admin_comments"`
	SessionTimeMinutes int    `json:"session_time_minutes"`
	TranslatorID       string `json:"translator_id"`
}

// UpdateBookingRequest is a partial admin update; absent fields stay
// untouched.
type UpdateBookingRequest struct {
	Due                *string `json:"due"`
	FromLanguageID     *string `json:"from_language_id"`
	TranslatorID       *string `json:"translator_id"`
	Status             *string `json:"status"`
	AdminComments      *string `json:"admin_comments"`
	Reference          *string `json:"reference"`
	SessionTimeMinutes *int    `json:"session_time_minutes"`
}

type ListBookingsRequest struct {
	OwnerUserID string `form:"owner_user_id"`
	Status      string `form:"status"`
	PageSize    int    `form:"page_size"`
	Cursor      string `form:"cursor"`
}

type ListBookingsResponse struct {
	Bookings   []BookingDTO `json:"bookings"`
	NextCursor string       `json:"next_cursor,omitempty"`
}

type BookingDTO struct {
	ID              string `json:"id"`
	OwnerUserID     string `json:"owner_user_id"`
	Status          string `json:"status"`
	Due             string `json:"due"`
	Immediate       bool   `json:"immediate"`
	FromLanguageID  string `json:"from_language_id"`
	Duration        int    `json:"duration"`
	Gender          string `json:"gender,omitempty"`
	Certification   string `json:"certification,omitempty"`
	JobType         string `json:"job_type"`
	PhoneEnabled    bool   `json:"phone_enabled"`
	PhysicalEnabled bool   `json:"physical_enabled"`
	Town            string `json:"town,omitempty"`
	AdminComments   string `json:"admin_comments,omitempty"`
	SessionTime     string `json:"session_time,omitempty"`
	Reference       string `json:"reference,omitempty"`
	CreatedAt       string `json:"created_at"`
	WillExpireAt    string `json:"will_expire_at"`
	EndAt           string `json:"end_at,omitempty"`
	WithdrawAt      string `json:"withdraw_at,omitempty"`
}

type TranslatorDTO struct {
	ID     string   `json:"id"`
	Name   string   `json:"name"`
	Email  string   `json:"email"`
	City   string   `json:"city,omitempty"`
	Levels []string `json:"levels,omitempty"`
}

func BookingFromDomain(job *domain.Job) BookingDTO {
	d := BookingDTO{
		ID:              job.ID,
		OwnerUserID:     job.OwnerUserID,
		Status:          string(job.Status),
		Due:             job.Due.Format(time.RFC3339),
		Immediate:       job.Immediate,
		FromLanguageID:  job.FromLanguageID,
		Duration:        job.Duration,
		JobType:         string(job.JobType),
		PhoneEnabled:    job.PhoneEnabled,
		PhysicalEnabled: job.PhysicalEnabled,
		Town:            job.Town,
		AdminComments:   job.AdminComments,
		Reference:       job.Reference,
		CreatedAt:       job.CreatedAt.Format(time.RFC3339),
		WillExpireAt:    job.WillExpireAt.Format(time.RFC3339),
	}
	if job.Gender != nil {
		d.Gender = string(*job.Gender)
	}
	if job.Certification != nil {
		d.Certification = string(*job.Certification)
	}
	if job.SessionTime > 0 {
		d.SessionTime = domain.FormatSessionTime(job.SessionTime)
	}
	if job.EndAt != nil {
		d.EndAt = job.EndAt.Format(time.RFC3339)
	}
	if job.WithdrawAt != nil {
		d.WithdrawAt = job.WithdrawAt.Format(time.RFC3339)
	}
	return d
}

func TranslatorFromDomain(u *domain.User) TranslatorDTO {
	levels := make([]string, 0, len(u.Levels))
	for _, l := range u.Levels {
		levels = append(levels, string(l))
	}
	return TranslatorDTO{
		ID:     u.ID,
		Name:   u.Name,
		Email:  u.Email,
		City:   u.City,
		Levels: levels,
	}
}
