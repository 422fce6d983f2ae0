package ledger

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// FakeClient is a deterministic in-memory ledger used by tests and local
// development. Flags make the failure paths reachable without a chain.
type FakeClient struct {
	Latency time.Duration
	// RejectAppends simulates the wallet holder declining the signature.
	RejectAppends bool
	// RevertAppends simulates the chain reverting the transaction.
	RevertAppends bool
	// FailList simulates an unreachable ledger on reads.
	FailList bool
	// ConfirmDelay holds WaitConfirmed until the delay elapses or ctx dies,
	// which is how the timeout path is exercised.
	ConfirmDelay time.Duration

	mu      sync.Mutex
	nextID  int64
	pending map[string]Entry
	chain   map[string][]Entry
}

func NewFakeClient() *FakeClient {
	return &FakeClient{
		pending: make(map[string]Entry),
		chain:   make(map[string][]Entry),
	}
}

func (f *FakeClient) Append(_ context.Context, cardNumber string, issuedOn int64, status string, orgAddress string) (PendingTx, error) {
	time.Sleep(f.Latency)
	if f.RejectAppends {
		return PendingTx{}, ErrRejected
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	hash := fmt.Sprintf("0xfake%08d", len(f.pending)+1)
	f.pending[hash] = Entry{
		CardNumber:   cardNumber,
		IssuedOn:     issuedOn,
		Status:       status,
		Organization: orgAddress,
	}
	return PendingTx{Hash: hash}, nil
}

func (f *FakeClient) WaitConfirmed(ctx context.Context, tx PendingTx) (Confirmation, error) {
	if f.ConfirmDelay > 0 {
		select {
		case <-ctx.Done():
			return Confirmation{}, ctx.Err()
		case <-time.After(f.ConfirmDelay):
		}
	}
	if f.RevertAppends {
		return Confirmation{}, ErrReverted
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	entry, ok := f.pending[tx.Hash]
	if !ok {
		return Confirmation{}, fmt.Errorf("unknown transaction %s", tx.Hash)
	}
	delete(f.pending, tx.Hash)

	f.nextID++
	entry.ID = f.nextID
	f.chain[entry.Organization] = append(f.chain[entry.Organization], entry)
	return Confirmation{LedgerID: entry.ID, TxHash: tx.Hash}, nil
}

func (f *FakeClient) List(_ context.Context, orgAddress string) ([]Entry, error) {
	time.Sleep(f.Latency)
	if f.FailList {
		return nil, fmt.Errorf("fake ledger: listing unavailable")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	entries := make([]Entry, len(f.chain[orgAddress]))
	copy(entries, f.chain[orgAddress])
	return entries, nil
}

// Seed places an entry directly on the fake chain, bypassing the append
// protocol. Tests use it to build divergence scenarios.
func (f *FakeClient) Seed(orgAddress string, entry Entry) Entry {
	f.mu.Lock()
	defer f.mu.Unlock()
	if entry.ID == 0 {
		f.nextID++
		entry.ID = f.nextID
	} else if entry.ID > f.nextID {
		f.nextID = entry.ID
	}
	entry.Organization = orgAddress
	f.chain[orgAddress] = append(f.chain[orgAddress], entry)
	return entry
}
