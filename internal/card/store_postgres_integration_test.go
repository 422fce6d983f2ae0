//go:build integration

package card_test

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Coritp27/sysga-sub001/internal/card"
	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
	"github.com/Coritp27/sysga-sub001/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *card.PostgresStore
	orgID    int64
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = card.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	ctx := context.Background()
	err := s.postgres.TruncateTables(ctx, "ledger_references", "cards", "organizations")
	s.Require().NoError(err)

	err = s.postgres.DB.QueryRowContext(ctx,
		`INSERT INTO organizations (name, ledger_address) VALUES ($1, $2) RETURNING id`,
		"Acme Health", "0xabc123",
	).Scan(&s.orgID)
	s.Require().NoError(err)
}

func (s *PostgresStoreSuite) newCard(number string) *card.Card {
	now := time.Now().UTC().Truncate(time.Second)
	return &card.Card{
		CardNumber:      number,
		HolderFirstName: "Marie",
		HolderLastName:  "Joseph",
		NationalID:      "NID-" + number,
		PolicyNumber:    9001,
		DateOfBirth:     now.AddDate(-30, 0, 0),
		EffectiveDate:   now,
		ValidUntil:      now.AddDate(1, 0, 0),
		Status:          card.StatusActive,
		OrganizationID:  s.orgID,
		Phone:           "+50937000001",
		Email:           "marie@example.com",
		CreatedBy:       "admin",
	}
}

func (s *PostgresStoreSuite) TestCreateWithRefRoundTrip() {
	ctx := context.Background()

	c := s.newCard("CARD-001")
	ref := &card.LedgerReference{
		LedgerID:            42,
		CardNumber:          c.CardNumber,
		IssuedOn:            time.Now().Unix(),
		Status:              "active",
		OrganizationAddress: "0xabc123",
		TxHash:              "0xdeadbeef",
	}

	created, err := s.store.CreateWithRef(ctx, c, ref)
	s.Require().NoError(err)
	s.NotZero(created.Card.ID)
	s.Require().NotNil(created.Ref)
	s.Equal(created.Card.ID, created.Ref.CardID)

	found, err := s.store.GetByNumber(ctx, "CARD-001")
	s.Require().NoError(err)
	s.Equal("Marie", found.Card.HolderFirstName)
	s.Require().NotNil(found.Ref)
	s.Equal(int64(42), found.Ref.LedgerID)
	s.Equal("0xdeadbeef", found.Ref.TxHash)
}

func (s *PostgresStoreSuite) TestCreateWithoutRef() {
	ctx := context.Background()

	_, err := s.store.CreateWithRef(ctx, s.newCard("CARD-002"), nil)
	s.Require().NoError(err)

	found, err := s.store.GetByNumber(ctx, "CARD-002")
	s.Require().NoError(err)
	s.Nil(found.Ref)
}

func (s *PostgresStoreSuite) TestDuplicateNumberIsConflict() {
	ctx := context.Background()

	_, err := s.store.CreateWithRef(ctx, s.newCard("CARD-003"), nil)
	s.Require().NoError(err)

	_, err = s.store.CreateWithRef(ctx, s.newCard("CARD-003"), nil)
	s.ErrorIs(err, sentinel.ErrConflict)
}

// TestConcurrentDuplicateCreates drives the uniqueness constraint directly:
// exactly one of many concurrent inserts for the same number may win.
func (s *PostgresStoreSuite) TestConcurrentDuplicateCreates() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	var successes atomic.Int32

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := s.store.CreateWithRef(ctx, s.newCard("CARD-RACE"), nil); err == nil {
				successes.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(1), successes.Load(), "exactly one insert should win")
}

func (s *PostgresStoreSuite) TestExistsByNumber() {
	ctx := context.Background()

	exists, err := s.store.ExistsByNumber(ctx, "CARD-004")
	s.Require().NoError(err)
	s.False(exists)

	_, err = s.store.CreateWithRef(ctx, s.newCard("CARD-004"), nil)
	s.Require().NoError(err)

	exists, err = s.store.ExistsByNumber(ctx, "CARD-004")
	s.Require().NoError(err)
	s.True(exists)
}

func (s *PostgresStoreSuite) TestSearchMostRecentWins() {
	ctx := context.Background()

	older := s.newCard("CARD-005")
	older.HolderLastName = "Petion"
	_, err := s.store.CreateWithRef(ctx, older, nil)
	s.Require().NoError(err)

	newer := s.newCard("CARD-006")
	newer.HolderLastName = "Petion"
	_, err = s.store.CreateWithRef(ctx, newer, nil)
	s.Require().NoError(err)

	found, err := s.store.Search(ctx, "petion", 0)
	s.Require().NoError(err)
	s.Equal("CARD-006", found.Card.CardNumber)
}

func (s *PostgresStoreSuite) TestSearchScopedToOrganization() {
	ctx := context.Background()

	var otherOrg int64
	err := s.postgres.DB.QueryRowContext(ctx,
		`INSERT INTO organizations (name) VALUES ($1) RETURNING id`, "Other Insurer",
	).Scan(&otherOrg)
	s.Require().NoError(err)

	c := s.newCard("CARD-007")
	_, err = s.store.CreateWithRef(ctx, c, nil)
	s.Require().NoError(err)

	_, err = s.store.Search(ctx, "CARD-007", otherOrg)
	s.ErrorIs(err, sentinel.ErrNotFound)

	found, err := s.store.Search(ctx, "CARD-007", s.orgID)
	s.Require().NoError(err)
	s.Equal("CARD-007", found.Card.CardNumber)
}

func (s *PostgresStoreSuite) TestListByOrganization() {
	ctx := context.Background()

	for _, number := range []string{"CARD-010", "CARD-011", "CARD-012"} {
		_, err := s.store.CreateWithRef(ctx, s.newCard(number), nil)
		s.Require().NoError(err)
	}

	records, err := s.store.ListByOrganization(ctx, s.orgID)
	s.Require().NoError(err)
	s.Len(records, 3)
}

func (s *PostgresStoreSuite) TestUpdateStatus() {
	ctx := context.Background()

	_, err := s.store.CreateWithRef(ctx, s.newCard("CARD-020"), nil)
	s.Require().NoError(err)

	err = s.store.UpdateStatus(ctx, "CARD-020", card.StatusRevoked)
	s.Require().NoError(err)

	found, err := s.store.GetByNumber(ctx, "CARD-020")
	s.Require().NoError(err)
	s.Equal(card.StatusRevoked, found.Card.Status)

	err = s.store.UpdateStatus(ctx, "CARD-MISSING", card.StatusRevoked)
	s.ErrorIs(err, sentinel.ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateDependents() {
	ctx := context.Background()

	_, err := s.store.CreateWithRef(ctx, s.newCard("CARD-021"), nil)
	s.Require().NoError(err)

	err = s.store.UpdateDependents(ctx, "CARD-021", true, 2)
	s.Require().NoError(err)

	found, err := s.store.GetByNumber(ctx, "CARD-021")
	s.Require().NoError(err)
	s.True(found.Card.HasDependent)
	s.Equal(2, found.Card.DependentCount)
}

func (s *PostgresStoreSuite) TestOrganization() {
	ctx := context.Background()

	org, err := s.store.Organization(ctx, s.orgID)
	s.Require().NoError(err)
	s.Equal("Acme Health", org.Name)
	s.Equal("0xabc123", org.LedgerAddress)

	_, err = s.store.Organization(ctx, 99999)
	s.ErrorIs(err, sentinel.ErrNotFound)
}
