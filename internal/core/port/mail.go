package port

import "context"

// MailSender delivers transactional mail. Delivery is best effort:
// callers log failures and never surface them to the end user.
type MailSender interface {
	SendOTP(ctx context.Context, email, firstName, code string) error
	SendWelcome(ctx context.Context, email, firstName string) error
}
