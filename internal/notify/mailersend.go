package notify

import (
	"context"
	"fmt"
	"time"

	"github.com/mailersend/mailersend-go"
)

type MailerSendDispatcher struct {
	client  *mailersend.Mailersend
	from    mailersend.From
	sms     Dispatcher
	enabled bool
}

// NewMailerSend sends OTP emails through MailerSend and delegates SMS
// delivery to the given dispatcher.
func NewMailerSend(apiKey, fromName, fromEmail string, sms Dispatcher) *MailerSendDispatcher {
	m := &MailerSendDispatcher{
		enabled: apiKey != "" && fromEmail != "",
		sms:     sms,
		from: mailersend.From{
			Name:  fromName,
			Email: fromEmail,
		},
	}

	if m.enabled {
		m.client = mailersend.NewMailersend(apiKey)
	}

	return m
}

func (m *MailerSendDispatcher) SendOTPEmail(ctx context.Context, to, code string) error {
	if !m.enabled {
		return fmt.Errorf("MailerSend not configured")
	}

	subject := "Your class portal sign-in code"
	html := fmt.Sprintf(`
		<h2>Sign in to your class portal</h2>
		<p>Your sign-in code is: <strong style="font-size: 24px;">%s</strong></p>
		<p>The code expires in 10 minutes.</p>
		<p>If you did not request this code, you can ignore this email.</p>
	`, code)

	text := fmt.Sprintf("Your class portal sign-in code is: %s\n\nThe code expires in 10 minutes.", code)

	ctx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()

	msg := m.client.Email.NewMessage()
	msg.SetFrom(m.from)
	msg.SetRecipients([]mailersend.Recipient{{Email: to}})
	msg.SetSubject(subject)
	msg.SetText(text)
	msg.SetHTML(html)

	_, err := m.client.Email.Send(ctx, msg)
	return err
}

func (m *MailerSendDispatcher) SendOTPSMS(ctx context.Context, to, code string) error {
	return m.sms.SendOTPSMS(ctx, to, code)
}
