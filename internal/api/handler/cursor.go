package handler

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"time"

	"github.com/nordtolk/booking-be/internal/api/dto"
	"github.com/nordtolk/booking-be/internal/booking/domain"
	"github.com/nordtolk/booking-be/internal/booking/storage"
)

type cursorPayload struct {
	CreatedAt time.Time `json:"created_at"`
	ID        string    `json:"id"`
}

// DecodeBookingCursor parses an opaque pagination cursor. An empty
// cursor means the first page.
func DecodeBookingCursor(raw string) (*storage.JobCursor, error) {
	if raw == "" {
		return nil, nil
	}

	data, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		return nil, fmt.Errorf("failed to decode cursor: %w", err)
	}

	var p cursorPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("failed to parse cursor: %w", err)
	}

	return &storage.JobCursor{CreatedAt: p.CreatedAt, ID: p.ID}, nil
}

// EncodeBookingCursor builds the opaque cursor for the next page.
func EncodeBookingCursor(createdAt time.Time, id string) string {
	data, _ := json.Marshal(cursorPayload{CreatedAt: createdAt, ID: id})
	return base64.URLEncoding.EncodeToString(data)
}

func storageFilter(req dto.ListBookingsRequest, cursor *storage.JobCursor) storage.JobFilter {
	return storage.JobFilter{
		OwnerUserID: req.OwnerUserID,
		Status:      domain.JobStatus(req.Status),
		PageSize:    req.PageSize,
		Cursor:      cursor,
	}
}
