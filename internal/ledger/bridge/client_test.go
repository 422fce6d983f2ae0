package bridge_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Coritp27/sysga-sub001/internal/ledger"
	"github.com/Coritp27/sysga-sub001/internal/ledger/bridge"
	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
)

func TestAppend_SubmitsAndReturnsPendingTx(t *testing.T) {
	var gotBody map[string]any
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/transactions", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusAccepted)
		_ = json.NewEncoder(w).Encode(map[string]string{"tx_hash": "0xabc"})
	}))
	defer server.Close()

	client := bridge.New(server.URL)
	tx, err := client.Append(context.Background(), "CARD-001", 1700000000, "active", "0xorg")
	require.NoError(t, err)
	assert.Equal(t, "0xabc", tx.Hash)
	assert.Equal(t, "CARD-001", gotBody["card_number"])
	assert.Equal(t, "0xorg", gotBody["organization"])
}

func TestAppend_ForbiddenIsWalletRejection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()

	client := bridge.New(server.URL)
	_, err := client.Append(context.Background(), "CARD-001", 1700000000, "active", "0xorg")
	assert.ErrorIs(t, err, ledger.ErrRejected)
}

func TestAppend_BridgeErrorIsUnavailable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	client := bridge.New(server.URL)
	_, err := client.Append(context.Background(), "CARD-001", 1700000000, "active", "0xorg")
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
}

func TestWaitConfirmed_PollsUntilConfirmed(t *testing.T) {
	var polls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/transactions/0xabc", r.URL.Path)
		status := "pending"
		if polls.Add(1) >= 3 {
			status = "confirmed"
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"status": status, "ledger_id": 42})
	}))
	defer server.Close()

	client := bridge.New(server.URL, bridge.WithPollInterval(5*time.Millisecond))
	confirmation, err := client.WaitConfirmed(context.Background(), ledger.PendingTx{Hash: "0xabc"})
	require.NoError(t, err)
	assert.Equal(t, int64(42), confirmation.LedgerID)
	assert.Equal(t, "0xabc", confirmation.TxHash)
	assert.GreaterOrEqual(t, polls.Load(), int32(3))
}

func TestWaitConfirmed_RevertedTransaction(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "reverted"})
	}))
	defer server.Close()

	client := bridge.New(server.URL, bridge.WithPollInterval(5*time.Millisecond))
	_, err := client.WaitConfirmed(context.Background(), ledger.PendingTx{Hash: "0xabc"})
	assert.ErrorIs(t, err, ledger.ErrReverted)
}

func TestWaitConfirmed_ContextDeadline(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"status": "pending"})
	}))
	defer server.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	client := bridge.New(server.URL, bridge.WithPollInterval(5*time.Millisecond))
	_, err := client.WaitConfirmed(ctx, ledger.PendingTx{Hash: "0xabc"})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestList_DecodesEntries(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/cards", r.URL.Path)
		require.Equal(t, "0xorg", r.URL.Query().Get("organization"))
		_ = json.NewEncoder(w).Encode([]map[string]any{
			{"id": 1, "card_number": "CARD-001", "issued_on": 1700000000, "status": "active", "organization": "0xorg"},
			{"id": 2, "card_number": "CARD-002", "issued_on": 1700000100, "status": "revoked", "organization": "0xorg"},
		})
	}))
	defer server.Close()

	client := bridge.New(server.URL)
	entries, err := client.List(context.Background(), "0xorg")
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, int64(1), entries[0].ID)
	assert.Equal(t, "revoked", entries[1].Status)
}

func TestList_FailureIsUnavailableNotEmpty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	client := bridge.New(server.URL)
	entries, err := client.List(context.Background(), "0xorg")
	assert.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.Nil(t, entries)
}
