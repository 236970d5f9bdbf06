package notifier

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/nordtolk/booking-be/internal/booking/notify"
	"github.com/nordtolk/booking-be/internal/config"
)

const emergencySound = "emergency"

// PushSender delivers envelopes through the push gateway. Recipients who
// opted out of nighttime notifications carry a delay flag; their message is
// scheduled for the next business time instead of being dropped.
type PushSender struct {
	gateway httpGateway
	appID   string
	now     func() time.Time
}

// NewPushSender wires the push gateway sender. now may be nil, in which
// case time.Now is used.
func NewPushSender(cfg config.PushConfig, client *http.Client, now func() time.Time) *PushSender {
	if now == nil {
		now = time.Now
	}
	return &PushSender{
		gateway: httpGateway{
			client:   client,
			endpoint: cfg.Endpoint,
			headers:  map[string]string{"Authorization": "Bearer " + cfg.AppKey},
		},
		appID: cfg.AppID,
		now:   now,
	}
}

type pushRequest struct {
	AppID         string             `json:"app_id"`
	Notifications []pushNotification `json:"notifications"`
}

type pushNotification struct {
	UserID    string `json:"user_id"`
	Title     string `json:"title"`
	Message   string `json:"message"`
	Sound     string `json:"sound,omitempty"`
	SendAfter string `json:"send_after,omitempty"`
}

func (s *PushSender) Send(ctx context.Context, env *notify.Envelope) error {
	if len(env.Recipients) == 0 {
		return nil
	}

	title, message := pushText(env.Event, env.Payload)

	req := pushRequest{AppID: s.appID}
	for _, r := range env.Recipients {
		n := pushNotification{
			UserID:  r.UserID,
			Title:   title,
			Message: message,
		}
		// An immediate booking offer has to cut through silent mode.
		if env.Event == notify.EventSuitableJob && env.Payload.Immediate {
			n.Sound = emergencySound
		}
		if r.DelayUntilNextBusinessTime {
			n.SendAfter = notify.NextBusinessTime(s.now()).Format(time.RFC3339)
		}
		req.Notifications = append(req.Notifications, n)
	}

	return s.gateway.post(ctx, req)
}

// pushText renders the push title and body for an event.
func pushText(event notify.EventType, p notify.Payload) (title, message string) {
	switch event {
	case notify.EventSuitableJob:
		if p.Immediate {
			return "Immediate interpretation", fmt.Sprintf("Immediate %s, %d min. Open the app to accept.", sessionKind(p), p.Duration)
		}
		return "New interpretation", fmt.Sprintf("%s on %s, %d min. Open the app to accept.", sessionKind(p), p.Due, p.Duration)
	case notify.EventJobAccepted:
		return "Interpreter found", fmt.Sprintf("An interpreter accepted your booking for %s.", p.Due)
	case notify.EventJobCancelled:
		return "Booking cancelled", fmt.Sprintf("The booking for %s has been cancelled.", p.Due)
	case notify.EventJobExpired:
		return "No interpreter found", fmt.Sprintf("No interpreter accepted your booking for %s. Please contact the office.", p.Due)
	case notify.EventSessionStartRemind:
		return "Upcoming session", fmt.Sprintf("Your interpretation session starts at %s.", p.Due)
	default:
		return "Booking update", fmt.Sprintf("Your booking for %s was updated.", p.Due)
	}
}

// sessionKind names the session form for message texts.
func sessionKind(p notify.Payload) string {
	if p.PhysicalJob && !p.PhoneJob {
		return fmt.Sprintf("On-site interpretation in %s", p.Town)
	}
	return "Phone interpretation"
}
