package notify

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"grievance/backend/internal/config"

	"github.com/twilio/twilio-go"
	"github.com/twilio/twilio-go/client"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// TwilioSender delivers WhatsApp messages through Twilio.
type TwilioSender struct {
	client      *twilio.RestClient
	accountSID  string
	from        string
	countryCode string
}

// NewTwilioSender builds a client whose HTTP calls are bounded by timeout.
func NewTwilioSender(cfg config.TwilioConfig, timeout time.Duration) *TwilioSender {
	base := &client.Client{
		Credentials: client.NewCredentials(cfg.AccountSID, cfg.AuthToken),
		HTTPClient:  &http.Client{Timeout: timeout},
	}
	base.SetAccountSid(cfg.AccountSID)

	from := cfg.WhatsAppFrom
	if !strings.HasPrefix(from, "whatsapp:") {
		from = "whatsapp:" + from
	}

	return &TwilioSender{
		client:      twilio.NewRestClientWithParams(twilio.ClientParams{Client: base}),
		accountSID:  cfg.AccountSID,
		from:        from,
		countryCode: config.DefaultCountryCode,
	}
}

// SendWhatsApp returns the provider message SID.
func (s *TwilioSender) SendWhatsApp(ctx context.Context, to, body string) (string, error) {
	addr, err := WhatsAppAddress(to, s.countryCode)
	if err != nil {
		return "", err
	}

	params := &openapi.CreateMessageParams{}
	params.SetTo(addr)
	params.SetFrom(s.from)
	params.SetBody(body)

	// twilio-go не приймає context, тому чекаємо результат або скасування
	type result struct {
		sid string
		err error
	}
	done := make(chan result, 1)
	go func() {
		resp, err := s.client.Api.CreateMessage(params)
		if err != nil {
			done <- result{err: err}
			return
		}
		sid := ""
		if resp.Sid != nil {
			sid = *resp.Sid
		}
		done <- result{sid: sid}
	}()

	select {
	case r := <-done:
		if r.err != nil {
			return "", fmt.Errorf("twilio create message: %w", r.err)
		}
		return r.sid, nil
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

// AccountStatus fetches the account to check that the credentials work.
func (s *TwilioSender) AccountStatus(ctx context.Context) (string, error) {
	type result struct {
		status string
		err    error
	}
	done := make(chan result, 1)
	go func() {
		acct, err := s.client.Api.FetchAccount(s.accountSID)
		if err != nil {
			done <- result{err: err}
			return
		}
		status := "unknown"
		if acct.Status != nil {
			status = *acct.Status
		}
		done <- result{status: status}
	}()

	select {
	case r := <-done:
		return r.status, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}
