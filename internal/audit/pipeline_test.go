package audit_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coritp27/sysga-sub001/internal/audit"
	"github.com/Coritp27/sysga-sub001/pkg/requestcontext"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type failingSink struct {
	calls int
}

func (f *failingSink) Append(context.Context, audit.Event) error {
	f.calls++
	return errors.New("sink down")
}

func TestWorker_FansOutToAllSinks(t *testing.T) {
	inbox := make(chan audit.Event, 4)
	first := audit.NewInMemoryStore()
	second := audit.NewInMemoryStore()
	worker := audit.NewWorker(inbox, discardLogger(), first, second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		_ = worker.Run(ctx)
		close(done)
	}()

	inbox <- audit.Event{Action: audit.ActionCardCreated, CardNumber: "CARD-100"}
	inbox <- audit.Event{Action: audit.ActionOTPIssued, CardNumber: "CARD-100"}

	require.Eventually(t, func() bool {
		return len(second.All()) == 2
	}, time.Second, 10*time.Millisecond)

	cancel()
	<-done

	events, err := first.ListByCard(context.Background(), "CARD-100")
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, audit.ActionCardCreated, events[0].Action)
	assert.Equal(t, audit.ActionOTPIssued, events[1].Action)
}

func TestWorker_SinkFailureDoesNotStopFanOut(t *testing.T) {
	inbox := make(chan audit.Event, 1)
	broken := &failingSink{}
	healthy := audit.NewInMemoryStore()
	worker := audit.NewWorker(inbox, discardLogger(), broken, healthy)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		_ = worker.Run(ctx)
	}()

	inbox <- audit.Event{Action: audit.ActionVerification}

	require.Eventually(t, func() bool {
		return len(healthy.All()) == 1
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, broken.calls)
}

func TestChannelPublisher_DropsWhenInboxFull(t *testing.T) {
	inbox := make(chan audit.Event, 1)
	publisher := audit.NewChannelPublisher(inbox, discardLogger())

	err := publisher.Emit(context.Background(), audit.Event{Action: audit.ActionOTPIssued})
	require.NoError(t, err)

	// Inbox is full; the second emit must not block and must not error.
	err = publisher.Emit(context.Background(), audit.Event{Action: audit.ActionOTPVerified})
	require.NoError(t, err)

	assert.Len(t, inbox, 1)
	got := <-inbox
	assert.Equal(t, audit.ActionOTPIssued, got.Action)
	assert.False(t, got.Timestamp.IsZero())
}

func TestLog_EnrichesFromRequestContext(t *testing.T) {
	inbox := make(chan audit.Event, 1)
	publisher := audit.NewChannelPublisher(inbox, discardLogger())

	issuedAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	ctx := requestcontext.WithPrincipal(context.Background(), "admin")
	ctx = requestcontext.WithClientMetadata(ctx, "10.0.0.1", "agent", "Desktop")
	ctx = requestcontext.WithRequestID(ctx, "req-42")
	ctx = requestcontext.WithTime(ctx, issuedAt)

	audit.Log(ctx, discardLogger(), publisher, audit.Event{
		Action:     audit.ActionCardCreated,
		CardNumber: "CARD-100",
	})

	got := <-inbox
	assert.Equal(t, "admin", got.Principal)
	assert.Equal(t, "10.0.0.1", got.ClientIP)
	assert.Equal(t, "Desktop", got.Device)
	assert.Equal(t, "req-42", got.RequestID)
	assert.Equal(t, issuedAt, got.Timestamp)
}

func TestLog_NilPublisherIsNoOp(t *testing.T) {
	audit.Log(context.Background(), discardLogger(), nil, audit.Event{Action: audit.ActionOTPLocked})
}
