package otp

import "context"

//go:generate mockgen -source=store.go -destination=mocks/store_mock.go -package=mocks

// Store persists challenges. Pure I/O; issuance and redemption rules live in
// the service.
type Store interface {
	// Replace deletes every challenge row for the card number and inserts the
	// new one as a single atomic unit.
	Replace(ctx context.Context, challenge *Challenge) (*Challenge, error)

	// ListByCard returns every challenge row for the card number, newest
	// first.
	ListByCard(ctx context.Context, cardNumber string) ([]Challenge, error)

	// MarkUsed consumes one challenge by id.
	MarkUsed(ctx context.Context, id int64) error

	// IncrementAttempts bumps the attempt counter on every row for the card
	// number and returns the highest counter afterwards. Per-card throttling
	// is deliberate: a new challenge does not reset a live lockout window on
	// its siblings until the rows are deleted.
	IncrementAttempts(ctx context.Context, cardNumber string) (int, error)

	// DeleteByCard removes every challenge row for the card number.
	DeleteByCard(ctx context.Context, cardNumber string) error
}
