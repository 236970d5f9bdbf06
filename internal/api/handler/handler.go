package handler

import (
	"log/slog"

	"github.com/nordtolk/booking-be/internal/booking/coordinator"
	"github.com/nordtolk/booking-be/internal/booking/matcher"
	"github.com/nordtolk/booking-be/internal/booking/storage"
	"github.com/nordtolk/booking-be/shared/postgresql"
)

// Dependencies holds all dependencies needed by handlers
type Dependencies struct {
	Logger      *slog.Logger
	DB          *postgresql.Client
	Storage     *storage.Storage
	Coordinator *coordinator.Coordinator
	Matcher     *matcher.Matcher
}

// BookingHandler handles booking-related HTTP requests
type BookingHandler struct {
	logger      *slog.Logger
	storage     *storage.Storage
	coordinator *coordinator.Coordinator
	matcher     *matcher.Matcher
}

// NewBookingHandler creates a new BookingHandler instance
func NewBookingHandler(deps *Dependencies) *BookingHandler {
	return &BookingHandler{
		logger:      deps.Logger,
		storage:     deps.Storage,
		coordinator: deps.Coordinator,
		matcher:     deps.Matcher,
	}
}
