package notify

import (
	"context"

	"github.com/brightdesk/classportal/pkg/logger"
)

// DevDispatcher logs codes instead of sending them.
type DevDispatcher struct{}

func NewDevDispatcher() *DevDispatcher {
	return &DevDispatcher{}
}

func (d *DevDispatcher) SendOTPEmail(ctx context.Context, to, code string) error {
	logger.InfoContext(ctx, "[DEV MAIL] sign-in code",
		"to", to,
		"code", code,
	)
	return nil
}

func (d *DevDispatcher) SendOTPSMS(ctx context.Context, to, code string) error {
	logger.InfoContext(ctx, "[DEV SMS] sign-in code",
		"to", to,
		"code", code,
	)
	return nil
}
