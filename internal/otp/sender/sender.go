// Package sender abstracts the notification providers that deliver codes.
// The gate treats any provider uniformly: a false return or an error both
// mean the code did not go out.
package sender

import "context"

// Sender dispatches one-time codes. Implementations report delivery as a
// boolean so providers without a useful error taxonomy can still integrate.
type Sender interface {
	SendSMS(ctx context.Context, destination, code string) (bool, error)
	SendEmail(ctx context.Context, destination, code string) (bool, error)
}
