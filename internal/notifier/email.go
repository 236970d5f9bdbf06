package notifier

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nordtolk/booking-be/internal/booking/notify"
	"github.com/nordtolk/booking-be/internal/config"
)

// EmailSender delivers envelopes through the mail relay.
type EmailSender struct {
	gateway    httpGateway
	sender     string
	senderName string
}

func NewEmailSender(cfg config.EmailConfig, client *http.Client) *EmailSender {
	return &EmailSender{
		gateway: httpGateway{
			client:   client,
			endpoint: cfg.Endpoint,
			headers:  map[string]string{"X-Api-Key": cfg.APIKey},
		},
		sender:     cfg.Sender,
		senderName: cfg.SenderName,
	}
}

type emailRequest struct {
	Sender     string         `json:"sender"`
	SenderName string         `json:"sender_name"`
	Messages   []emailMessage `json:"messages"`
}

type emailMessage struct {
	To      string `json:"to"`
	ToName  string `json:"to_name,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (s *EmailSender) Send(ctx context.Context, env *notify.Envelope) error {
	subject := emailSubject(env.Event, env.Payload)
	body := emailBody(env.Event, env.Payload)

	req := emailRequest{Sender: s.sender, SenderName: s.senderName}
	for _, r := range env.Recipients {
		if r.Email == "" {
			continue
		}
		req.Messages = append(req.Messages, emailMessage{
			To:      r.Email,
			ToName:  r.Name,
			Subject: subject,
			Body:    body,
		})
	}
	if len(req.Messages) == 0 {
		return nil
	}

	return s.gateway.post(ctx, req)
}

func emailSubject(event notify.EventType, p notify.Payload) string {
	switch event {
	case notify.EventJobAccepted:
		return fmt.Sprintf("Interpreter found for your booking %s", p.Due)
	case notify.EventJobAssigned:
		return fmt.Sprintf("You are booked for an interpretation %s", p.Due)
	case notify.EventJobCancelled:
		return fmt.Sprintf("Booking %s cancelled", p.Due)
	case notify.EventJobReopened:
		return fmt.Sprintf("Booking %s is open again", p.Due)
	case notify.EventSessionEnded:
		return fmt.Sprintf("Session report for %s", p.Due)
	case notify.EventDateChanged:
		return "Your booking has a new time"
	case notify.EventTranslatorChanged:
		return "Your booking has a new interpreter"
	case notify.EventLanguageChanged:
		return "Your booking has a new language"
	default:
		return "Booking update"
	}
}

func emailBody(event notify.EventType, p notify.Payload) string {
	switch event {
	case notify.EventSessionEnded:
		return fmt.Sprintf("The %s on %s has ended. Reported session time: %s (%s).",
			sessionKind(p), p.Due, p.SessionTime, p.ForText)
	case notify.EventDateChanged:
		return fmt.Sprintf("The %s previously scheduled for %s has been moved to %s.",
			sessionKind(p), p.OldDue, p.Due)
	case notify.EventLanguageChanged:
		return fmt.Sprintf("The language of the %s on %s has changed.", sessionKind(p), p.Due)
	default:
		return fmt.Sprintf("%s on %s, %d min. Booking reference %s.", sessionKind(p), p.Due, p.Duration, p.JobID)
	}
}
