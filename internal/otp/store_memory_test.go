package otp

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
)

func TestInMemoryStore_ReplaceDeletesPriorRows(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	store.Seed(Challenge{CardNumber: "CARD-1", CodeHash: "old-1"})
	store.Seed(Challenge{CardNumber: "CARD-1", CodeHash: "old-2"})
	store.Seed(Challenge{CardNumber: "CARD-2", CodeHash: "other"})

	_, err := store.Replace(ctx, &Challenge{CardNumber: "CARD-1", CodeHash: "fresh"})
	require.NoError(t, err)

	rows, err := store.ListByCard(ctx, "CARD-1")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "fresh", rows[0].CodeHash)

	other, err := store.ListByCard(ctx, "CARD-2")
	require.NoError(t, err)
	assert.Len(t, other, 1, "other cards' challenges must survive")
}

func TestInMemoryStore_IncrementAttemptsIsPerCard(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	store.Seed(Challenge{CardNumber: "CARD-1", Attempts: 1})
	store.Seed(Challenge{CardNumber: "CARD-1", Attempts: 0})

	highest, err := store.IncrementAttempts(ctx, "CARD-1")
	require.NoError(t, err)
	assert.Equal(t, 2, highest)

	rows, err := store.ListByCard(ctx, "CARD-1")
	require.NoError(t, err)
	for _, row := range rows {
		assert.GreaterOrEqual(t, row.Attempts, 1, "every row gets the bump")
	}
}

func TestInMemoryStore_MarkUsedIsOneShot(t *testing.T) {
	store := NewInMemory()
	ctx := context.Background()

	seeded := store.Seed(Challenge{CardNumber: "CARD-1"})

	require.NoError(t, store.MarkUsed(ctx, seeded.ID))
	err := store.MarkUsed(ctx, seeded.ID)
	require.ErrorIs(t, err, sentinel.ErrAlreadyUsed)
}

func TestChallenge_Live(t *testing.T) {
	now := time.Now()
	c := Challenge{ExpiresAt: now.Add(time.Minute)}

	assert.True(t, c.Live(now))
	assert.False(t, c.Live(now.Add(2*time.Minute)))

	c.Used = true
	assert.False(t, c.Live(now))
}

func TestParseDestination(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		method  Method
		wantErr bool
	}{
		{name: "phone", raw: "+33612345678", method: MethodSMS},
		{name: "short phone", raw: "+1", method: MethodSMS},
		{name: "email", raw: "patient@clinic.example", method: MethodEmail},
		{name: "trimmed", raw: "  +33612345678  ", method: MethodSMS},
		{name: "empty", raw: "", wantErr: true},
		{name: "missing plus", raw: "33612345678", wantErr: true},
		{name: "too long", raw: "+123456789012345", wantErr: true},
		{name: "letters in phone", raw: "+33ABC", wantErr: true},
		{name: "bare at sign", raw: "@", wantErr: true},
		{name: "display name", raw: "Someone <a@b.example>", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			destination, method, err := ParseDestination(tt.raw)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.method, method)
			assert.NotEmpty(t, destination)
		})
	}
}
