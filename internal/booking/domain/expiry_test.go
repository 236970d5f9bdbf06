package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestWillExpireAt(t *testing.T) {
	createdAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		due  time.Time
		want time.Time
	}{
		{
			name: "due within 24 hours expires 90 minutes after creation",
			due:  createdAt.Add(4 * time.Hour),
			want: createdAt.Add(90 * time.Minute),
		},
		{
			name: "due just under 24 hours expires 90 minutes after creation",
			due:  createdAt.Add(24*time.Hour - time.Second),
			want: createdAt.Add(90 * time.Minute),
		},
		{
			name: "due at exactly 24 hours expires 16 hours after creation",
			due:  createdAt.Add(24 * time.Hour),
			want: createdAt.Add(16 * time.Hour),
		},
		{
			name: "due within 72 hours expires 16 hours after creation",
			due:  createdAt.Add(48 * time.Hour),
			want: createdAt.Add(16 * time.Hour),
		},
		{
			name: "due at exactly 72 hours expires at due",
			due:  createdAt.Add(72 * time.Hour),
			want: createdAt.Add(72 * time.Hour),
		},
		{
			name: "due within 90 hours expires at due",
			due:  createdAt.Add(80 * time.Hour),
			want: createdAt.Add(80 * time.Hour),
		},
		{
			name: "due at exactly 90 hours expires at due",
			due:  createdAt.Add(90 * time.Hour),
			want: createdAt.Add(90 * time.Hour),
		},
		{
			name: "due beyond 90 hours expires 48 hours before due",
			due:  createdAt.Add(96 * time.Hour),
			want: createdAt.Add(96 * time.Hour).Add(-48 * time.Hour),
		},
		{
			name: "due far in the future expires 48 hours before due",
			due:  createdAt.Add(30 * 24 * time.Hour),
			want: createdAt.Add(30 * 24 * time.Hour).Add(-48 * time.Hour),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := WillExpireAt(tt.due, createdAt)
			assert.True(t, tt.want.Equal(got), "want %s, got %s", tt.want, got)
		})
	}
}

// Every possible gap between creation and due must land in exactly one
// expiry bucket, so sweeping the gap minute by minute must never produce a
// jump backwards past the creation time or an unset result.
func TestWillExpireAt_EveryGapResolves(t *testing.T) {
	createdAt := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)

	for minutes := 1; minutes <= 120*60; minutes += 30 {
		due := createdAt.Add(time.Duration(minutes) * time.Minute)
		got := WillExpireAt(due, createdAt)

		assert.False(t, got.IsZero(), "gap %dm produced a zero expiry", minutes)
		assert.False(t, got.Before(createdAt), "gap %dm expires before creation", minutes)
		assert.False(t, got.After(due.Add(90*time.Minute)), "gap %dm expires long after due", minutes)
	}
}
