package router

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/nordtolk/booking-be/internal/api/handler"
)

// SetupRouter configures and returns the Gin router with all routes
func SetupRouter(deps *handler.Dependencies) *gin.Engine {
	r := gin.New()

	// Middleware
	r.Use(gin.Recovery())
	r.Use(LoggerMiddleware(deps.Logger))
	r.Use(CORSMiddleware())

	// Health check endpoint
	r.GET("/health", func(c *gin.Context) {
		if deps.DB != nil {
			if err := deps.DB.HealthCheck(c.Request.Context()); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{
					"status":  "degraded",
					"service": "booking-api-service",
					"error":   err.Error(),
				})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"service": "booking-api-service",
		})
	})

	bookingHandler := handler.NewBookingHandler(deps)

	// API v1 routes
	v1 := r.Group("/api/v1")
	{
		bookings := v1.Group("/bookings")
		{
			// POST /api/v1/bookings - Create a new booking
			bookings.POST("", bookingHandler.CreateBooking)

			// GET /api/v1/bookings - List bookings with filtering and pagination
			bookings.GET("", bookingHandler.ListBookings)

			// GET /api/v1/bookings/:booking_id - Get booking details
			bookings.GET("/:booking_id", bookingHandler.GetBooking)

			// PATCH /api/v1/bookings/:booking_id - Admin update
			bookings.PATCH("/:booking_id", bookingHandler.UpdateBooking)

			// POST /api/v1/bookings/:booking_id/accept - Translator claims the booking
			bookings.POST("/:booking_id/accept", bookingHandler.AcceptBooking)

			// POST /api/v1/bookings/:booking_id/assign - Admin picks the translator
			bookings.POST("/:booking_id/assign", bookingHandler.AssignBooking)

			// POST /api/v1/bookings/:booking_id/cancel - Customer or translator cancels
			bookings.POST("/:booking_id/cancel", bookingHandler.CancelBooking)

			// POST /api/v1/bookings/:booking_id/end - Close a finished session
			bookings.POST("/:booking_id/end", bookingHandler.EndBooking)

			// POST /api/v1/bookings/:booking_id/not-carried-out - Customer no-show
			bookings.POST("/:booking_id/not-carried-out", bookingHandler.CustomerNotCall)

			// POST /api/v1/bookings/:booking_id/reopen - Make the booking available again
			bookings.POST("/:booking_id/reopen", bookingHandler.ReopenBooking)

			// POST /api/v1/bookings/:booking_id/status - Admin status transition
			bookings.POST("/:booking_id/status", bookingHandler.TransitionStatus)

			// POST /api/v1/bookings/:booking_id/expire - Expiry sweep entry point
			bookings.POST("/:booking_id/expire", bookingHandler.ExpireBooking)

			// GET /api/v1/bookings/:booking_id/potential-translators - Matching preview
			bookings.GET("/:booking_id/potential-translators", bookingHandler.PotentialTranslators)
		}
	}

	return r
}
