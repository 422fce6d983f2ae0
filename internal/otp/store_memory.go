package otp

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
)

// InMemoryStore mirrors the Postgres store for unit tests and local
// development.
type InMemoryStore struct {
	mu         sync.Mutex
	nextID     int64
	challenges map[string][]*Challenge // by card number
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{challenges: make(map[string][]*Challenge)}
}

func (s *InMemoryStore) Replace(_ context.Context, challenge *Challenge) (*Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.challenges, challenge.CardNumber)

	s.nextID++
	challenge.ID = s.nextID
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now()
	}
	stored := *challenge
	s.challenges[challenge.CardNumber] = []*Challenge{&stored}
	out := stored
	return &out, nil
}

func (s *InMemoryStore) ListByCard(_ context.Context, cardNumber string) ([]Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.challenges[cardNumber]
	out := make([]Challenge, 0, len(rows))
	for _, c := range rows {
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *InMemoryStore) MarkUsed(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rows := range s.challenges {
		for _, c := range rows {
			if c.ID != id {
				continue
			}
			if c.Used {
				return fmt.Errorf("challenge %d: %w", id, sentinel.ErrAlreadyUsed)
			}
			c.Used = true
			return nil
		}
	}
	return fmt.Errorf("challenge %d: %w", id, sentinel.ErrAlreadyUsed)
}

func (s *InMemoryStore) IncrementAttempts(_ context.Context, cardNumber string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var highest int
	for _, c := range s.challenges[cardNumber] {
		c.Attempts++
		if c.Attempts > highest {
			highest = c.Attempts
		}
	}
	return highest, nil
}

func (s *InMemoryStore) DeleteByCard(_ context.Context, cardNumber string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.challenges, cardNumber)
	return nil
}

// Seed inserts a row without deleting siblings, bypassing the single-liveness
// rule. Tests use it to build multi-row histories.
func (s *InMemoryStore) Seed(challenge Challenge) Challenge {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	challenge.ID = s.nextID
	if challenge.CreatedAt.IsZero() {
		challenge.CreatedAt = time.Now()
	}
	stored := challenge
	s.challenges[challenge.CardNumber] = append(s.challenges[challenge.CardNumber], &stored)
	return stored
}
