package notify

import "context"

// Dispatcher delivers one-time sign-in codes. Failures return the
// provider's error so operators can diagnose them; callers show end
// users a generic message instead.
type Dispatcher interface {
	SendOTPEmail(ctx context.Context, to, code string) error
	SendOTPSMS(ctx context.Context, to, code string) error
}
