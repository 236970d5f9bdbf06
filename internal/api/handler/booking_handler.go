package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/nordtolk/booking-be/internal/api/dto"
	"github.com/nordtolk/booking-be/internal/booking/coordinator"
	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/statemachine"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// CreateBooking handles POST /api/v1/bookings
func (h *BookingHandler) CreateBooking(c *gin.Context) {
	var req dto.CreateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	job := &domain.Job{
		OwnerUserID:     req.OwnerUserID,
		Immediate:       req.Immediate,
		FromLanguageID:  req.FromLanguageID,
		Duration:        req.Duration,
		PhoneEnabled:    req.PhoneEnabled,
		PhysicalEnabled: req.PhysicalEnabled,
		Town:            req.Town,
		Reference:       req.Reference,
	}

	if !req.Immediate {
		due, err := time.Parse(time.RFC3339, req.Due)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due must be RFC3339"})
			return
		}
		job.Due = due
	}

	if req.Gender != "" {
		g := domain.Gender(req.Gender)
		if !g.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown gender"})
			return
		}
		job.Gender = &g
	}

	if req.Certification != "" {
		cert := domain.Certification(req.Certification)
		if !cert.IsValid() {
			c.JSON(http.StatusBadRequest, gin.H{"error": "unknown certification"})
			return
		}
		job.Certification = &cert
	}

	created, err := h.coordinator.CreateBooking(c.Request.Context(), job)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, dto.BookingFromDomain(created))
}

// GetBooking handles GET /api/v1/bookings/:booking_id
func (h *BookingHandler) GetBooking(c *gin.Context) {
	job, err := h.storage.GetJob(c.Request.Context(), c.Param("booking_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingFromDomain(job))
}

// ListBookings handles GET /api/v1/bookings
func (h *BookingHandler) ListBookings(c *gin.Context) {
	var req dto.ListBookingsRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid query parameters"})
		return
	}

	if req.PageSize <= 0 {
		req.PageSize = defaultPageSize
	}
	if req.PageSize > maxPageSize {
		req.PageSize = maxPageSize
	}

	cursor, err := DecodeBookingCursor(req.Cursor)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid cursor"})
		return
	}

	jobs, err := h.storage.ListJobs(c.Request.Context(), storageFilter(req, cursor))
	if err != nil {
		h.respondError(c, err)
		return
	}

	resp := dto.ListBookingsResponse{}
	hasMore := len(jobs) > req.PageSize
	if hasMore {
		jobs = jobs[:req.PageSize]
	}
	for i := range jobs {
		resp.Bookings = append(resp.Bookings, dto.BookingFromDomain(&jobs[i]))
	}
	if hasMore {
		last := jobs[len(jobs)-1]
		resp.NextCursor = EncodeBookingCursor(last.CreatedAt, last.ID)
	}

	c.JSON(http.StatusOK, resp)
}

// AcceptBooking handles POST /api/v1/bookings/:booking_id/accept
func (h *BookingHandler) AcceptBooking(c *gin.Context) {
	var req dto.AcceptBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "translator_id is required"})
		return
	}

	job, err := h.coordinator.AcceptJob(c.Request.Context(), c.Param("booking_id"), req.TranslatorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingFromDomain(job))
}

// AssignBooking handles POST /api/v1/bookings/:booking_id/assign. Unlike
// accept, the translator is picked by an admin, so the account is checked
// before the claim.
func (h *BookingHandler) AssignBooking(c *gin.Context) {
	var req dto.AcceptBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "translator_id is required"})
		return
	}

	job, err := h.coordinator.AcceptJobWithID(c.Request.Context(), c.Param("booking_id"), req.TranslatorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingFromDomain(job))
}

// CancelBooking handles POST /api/v1/bookings/:booking_id/cancel
func (h *BookingHandler) CancelBooking(c *gin.Context) {
	var req dto.CancelBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor_id is required"})
		return
	}

	job, err := h.coordinator.CancelJob(c.Request.Context(), c.Param("booking_id"), req.ActorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingFromDomain(job))
}

// EndBooking handles POST /api/v1/bookings/:booking_id/end
func (h *BookingHandler) EndBooking(c *gin.Context) {
	var req dto.EndBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor_id is required"})
		return
	}

	job, err := h.coordinator.EndJob(c.Request.Context(), c.Param("booking_id"), req.ActorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingFromDomain(job))
}

// CustomerNotCall handles POST /api/v1/bookings/:booking_id/not-carried-out
func (h *BookingHandler) CustomerNotCall(c *gin.Context) {
	job, err := h.coordinator.CustomerNotCall(c.Request.Context(), c.Param("booking_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingFromDomain(job))
}

// ReopenBooking handles POST /api/v1/bookings/:booking_id/reopen
func (h *BookingHandler) ReopenBooking(c *gin.Context) {
	var req dto.ReopenBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actor_id is required"})
		return
	}

	job, err := h.coordinator.Reopen(c.Request.Context(), c.Param("booking_id"), req.ActorID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingFromDomain(job))
}

// TransitionStatus handles POST /api/v1/bookings/:booking_id/status
func (h *BookingHandler) TransitionStatus(c *gin.Context) {
	var req dto.TransitionStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "status is required"})
		return
	}

	newStatus, err := domain.NewJobStatus(req.Status)
	if err != nil {
		h.respondError(c, err)
		return
	}

	job, err := h.coordinator.TransitionStatus(c.Request.Context(), c.Param("booking_id"), statemachine.Request{
		NewStatus:          newStatus,
		AdminComments:      req.AdminComments,
		SessionTime:        time.Duration(req.SessionTimeMinutes) * time.Minute,
		TranslatorAttached: req.TranslatorID != "",
		TranslatorID:       req.TranslatorID,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingFromDomain(job))
}

// UpdateBooking handles PATCH /api/v1/bookings/:booking_id
func (h *BookingHandler) UpdateBooking(c *gin.Context) {
	var req dto.UpdateBookingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
		return
	}

	patch := coordinator.UpdatePatch{
		FromLanguageID: req.FromLanguageID,
		TranslatorID:   req.TranslatorID,
		AdminComments:  req.AdminComments,
		Reference:      req.Reference,
	}

	if req.Due != nil {
		due, err := time.Parse(time.RFC3339, *req.Due)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "due must be RFC3339"})
			return
		}
		patch.Due = &due
	}

	if req.Status != nil {
		status, err := domain.NewJobStatus(*req.Status)
		if err != nil {
			h.respondError(c, err)
			return
		}
		patch.Status = &status
	}

	if req.SessionTimeMinutes != nil {
		st := time.Duration(*req.SessionTimeMinutes) * time.Minute
		patch.SessionTime = &st
	}

	job, err := h.coordinator.UpdateJob(c.Request.Context(), c.Param("booking_id"), patch)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingFromDomain(job))
}

// PotentialTranslators handles GET /api/v1/bookings/:booking_id/potential-translators
func (h *BookingHandler) PotentialTranslators(c *gin.Context) {
	job, err := h.storage.GetJob(c.Request.Context(), c.Param("booking_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	translators, err := h.matcher.PotentialTranslators(c.Request.Context(), job)
	if err != nil {
		h.respondError(c, err)
		return
	}

	out := make([]dto.TranslatorDTO, 0, len(translators))
	for i := range translators {
		out = append(out, dto.TranslatorFromDomain(&translators[i]))
	}

	c.JSON(http.StatusOK, gin.H{"translators": out})
}

// ExpireBooking handles POST /api/v1/bookings/:booking_id/expire. The
// expiry sweep calls this for every pending booking past its window.
func (h *BookingHandler) ExpireBooking(c *gin.Context) {
	job, err := h.coordinator.MarkExpired(c.Request.Context(), c.Param("booking_id"))
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.BookingFromDomain(job))
}
