package domain

import "time"

// WillExpireAt computes the deadline after which a pending, unaccepted
// booking is considered timed out. The buckets depend on how far in the
// future the due time lies at the moment the pending window opens; the
// rules are evaluated in order and the first match wins:
//
//	< 24h out  -> createdAt + 90 minutes
//	< 72h out  -> createdAt + 16 hours
//	<= 90h out -> due (unchanged)
//	> 90h out  -> due - 48 hours
func WillExpireAt(due, createdAt time.Time) time.Time {
	diff := due.Sub(createdAt).Hours()

	switch {
	case diff < 24:
		return createdAt.Add(90 * time.Minute)
	case diff < 72:
		return createdAt.Add(16 * time.Hour)
	case diff <= 90:
		return due
	default:
		return due.Add(-48 * time.Hour)
	}
}
