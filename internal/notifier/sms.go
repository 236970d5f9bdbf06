package notifier

import (
	"context"
	"fmt"
	"net/http"

	"github.com/nordtolk/booking-be/internal/booking/notify"
	"github.com/nordtolk/booking-be/internal/config"
)

// SMSSender delivers envelopes through the SMS gateway. Only recipients
// with a mobile number are addressed; the fan-out side already filters
// them, this is the last line of defence.
type SMSSender struct {
	gateway httpGateway
	from    string
}

func NewSMSSender(cfg config.SMSConfig, client *http.Client) *SMSSender {
	return &SMSSender{
		gateway: httpGateway{
			client:   client,
			endpoint: cfg.Endpoint,
			headers:  map[string]string{"X-Api-Key": cfg.APIKey},
		},
		from: cfg.From,
	}
}

type smsRequest struct {
	From     string       `json:"from"`
	Messages []smsMessage `json:"messages"`
}

type smsMessage struct {
	To   string `json:"to"`
	Body string `json:"body"`
}

func (s *SMSSender) Send(ctx context.Context, env *notify.Envelope) error {
	body := smsBody(env.Payload)

	req := smsRequest{From: s.from}
	for _, r := range env.Recipients {
		if r.Mobile == "" {
			continue
		}
		req.Messages = append(req.Messages, smsMessage{To: r.Mobile, Body: body})
	}
	if len(req.Messages) == 0 {
		return nil
	}

	return s.gateway.post(ctx, req)
}

// smsBody renders the new-booking text. The wording differs between phone
// and on-site sessions because the latter needs the town.
func smsBody(p notify.Payload) string {
	if p.PhysicalJob && !p.PhoneJob {
		return fmt.Sprintf("New on-site interpretation in %s on %s, %d min. Open the app to accept.", p.Town, p.Due, p.Duration)
	}
	return fmt.Sprintf("New phone interpretation on %s, %d min. Open the app to accept.", p.Due, p.Duration)
}
