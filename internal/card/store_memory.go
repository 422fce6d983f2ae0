package card

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
)

// InMemoryStore mirrors the Postgres store for unit tests and local
// development. Same sentinel errors, same ordering guarantees.
type InMemoryStore struct {
	mu     sync.RWMutex
	nextID int64
	cards  map[string]*WithRef     // by card number
	orgs   map[int64]*Organization // by id
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{
		cards: make(map[string]*WithRef),
		orgs:  make(map[int64]*Organization),
	}
}

// SeedOrganization registers an issuing organization.
func (s *InMemoryStore) SeedOrganization(org Organization) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orgs[org.ID] = &org
}

func (s *InMemoryStore) CreateWithRef(_ context.Context, c *Card, ref *LedgerReference) (*WithRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.cards[c.CardNumber]; exists {
		return nil, fmt.Errorf("card %s: %w", c.CardNumber, sentinel.ErrConflict)
	}

	s.nextID++
	c.ID = s.nextID
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now()
	}

	record := &WithRef{Card: *c}
	if ref != nil {
		s.nextID++
		ref.ID = s.nextID
		ref.CardID = c.ID
		if ref.CreatedAt.IsZero() {
			ref.CreatedAt = time.Now()
		}
		refCopy := *ref
		record.Ref = &refCopy
	}

	s.cards[c.CardNumber] = record
	out := cloneWithRef(record)
	return &out, nil
}

func (s *InMemoryStore) ExistsByNumber(_ context.Context, cardNumber string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, exists := s.cards[cardNumber]
	return exists, nil
}

func (s *InMemoryStore) GetByNumber(_ context.Context, cardNumber string) (*WithRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, exists := s.cards[cardNumber]
	if !exists {
		return nil, fmt.Errorf("card %s: %w", cardNumber, sentinel.ErrNotFound)
	}
	out := cloneWithRef(record)
	return &out, nil
}

func (s *InMemoryStore) Search(_ context.Context, term string, organizationID int64) (*WithRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(term)
	var matches []*WithRef
	for _, record := range s.cards {
		if organizationID != 0 && record.Card.OrganizationID != organizationID {
			continue
		}
		if matchesTerm(&record.Card, needle) {
			matches = append(matches, record)
		}
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("no card matching %q: %w", term, sentinel.ErrNotFound)
	}

	sortMostRecentFirst(matches)
	out := cloneWithRef(matches[0])
	return &out, nil
}

func (s *InMemoryStore) ListByOrganization(_ context.Context, organizationID int64) ([]WithRef, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matches []*WithRef
	for _, record := range s.cards {
		if record.Card.OrganizationID == organizationID {
			matches = append(matches, record)
		}
	}
	sortMostRecentFirst(matches)

	out := make([]WithRef, 0, len(matches))
	for _, record := range matches {
		out = append(out, cloneWithRef(record))
	}
	return out, nil
}

func (s *InMemoryStore) UpdateStatus(_ context.Context, cardNumber string, status Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.cards[cardNumber]
	if !exists {
		return fmt.Errorf("card %s: %w", cardNumber, sentinel.ErrNotFound)
	}
	record.Card.Status = status
	return nil
}

func (s *InMemoryStore) UpdateDependents(_ context.Context, cardNumber string, hasDependent bool, count int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	record, exists := s.cards[cardNumber]
	if !exists {
		return fmt.Errorf("card %s: %w", cardNumber, sentinel.ErrNotFound)
	}
	record.Card.HasDependent = hasDependent
	record.Card.DependentCount = count
	return nil
}

func (s *InMemoryStore) Organization(_ context.Context, organizationID int64) (*Organization, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	org, exists := s.orgs[organizationID]
	if !exists {
		return nil, fmt.Errorf("organization %d: %w", organizationID, sentinel.ErrNotFound)
	}
	orgCopy := *org
	return &orgCopy, nil
}

func matchesTerm(c *Card, needle string) bool {
	return strings.Contains(strings.ToLower(c.CardNumber), needle) ||
		strings.Contains(strings.ToLower(c.HolderFirstName), needle) ||
		strings.Contains(strings.ToLower(c.HolderLastName), needle) ||
		strings.Contains(strings.ToLower(c.NationalID), needle)
}

func sortMostRecentFirst(records []*WithRef) {
	sort.Slice(records, func(i, j int) bool {
		if !records[i].Card.CreatedAt.Equal(records[j].Card.CreatedAt) {
			return records[i].Card.CreatedAt.After(records[j].Card.CreatedAt)
		}
		return records[i].Card.ID > records[j].Card.ID
	})
}

func cloneWithRef(record *WithRef) WithRef {
	out := WithRef{Card: record.Card}
	if record.Ref != nil {
		refCopy := *record.Ref
		out.Ref = &refCopy
	}
	return out
}
