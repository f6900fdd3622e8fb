package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// SMSGateway posts OTP messages to an external HTTP SMS provider. The
// provider is a collaborator; only the request shape and the bounded
// timeout live here.
type SMSGateway struct {
	url    string
	apiKey string
	sender string
	client *http.Client
}

func NewSMSGateway(url, apiKey, sender string, timeout time.Duration) *SMSGateway {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &SMSGateway{
		url:    url,
		apiKey: apiKey,
		sender: sender,
		client: &http.Client{Timeout: timeout},
	}
}

type smsMessage struct {
	To   string `json:"to"`
	From string `json:"from"`
	Body string `json:"body"`
}

func (g *SMSGateway) SendOTPSMS(ctx context.Context, to, code string) error {
	if g.url == "" {
		return fmt.Errorf("SMS gateway not configured")
	}

	payload, err := json.Marshal(smsMessage{
		To:   to,
		From: g.sender,
		Body: fmt.Sprintf("Your class portal sign-in code is %s. It expires in 10 minutes.", code),
	})
	if err != nil {
		return fmt.Errorf("encode sms payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build sms request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("sms gateway: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("sms gateway returned %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (g *SMSGateway) SendOTPEmail(ctx context.Context, to, code string) error {
	return fmt.Errorf("SMS gateway cannot send email")
}
