//go:build integration

package otp_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"github.com/Coritp27/sysga-sub001/internal/otp"
	"github.com/Coritp27/sysga-sub001/pkg/platform/sentinel"
	"github.com/Coritp27/sysga-sub001/pkg/testutil/containers"
)

type PostgresStoreSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *otp.PostgresStore
}

func TestPostgresStoreSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoreSuite))
}

func (s *PostgresStoreSuite) SetupSuite() {
	s.postgres = containers.NewPostgresContainer(s.T())
	s.store = otp.NewPostgres(s.postgres.DB)
}

func (s *PostgresStoreSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "otp_challenges")
	s.Require().NoError(err)
}

func newChallenge(cardNumber string) *otp.Challenge {
	return &otp.Challenge{
		CardNumber:  cardNumber,
		Destination: "+50937000001",
		Method:      otp.MethodSMS,
		CodeHash:    "$2a$10$fakehashfortesting",
		ExpiresAt:   time.Now().Add(5 * time.Minute),
		MaxAttempts: 3,
	}
}

func (s *PostgresStoreSuite) TestReplaceSupersedesPriorRows() {
	ctx := context.Background()

	first, err := s.store.Replace(ctx, newChallenge("CARD-100"))
	s.Require().NoError(err)
	s.NotZero(first.ID)

	second, err := s.store.Replace(ctx, newChallenge("CARD-100"))
	s.Require().NoError(err)
	s.NotEqual(first.ID, second.ID)

	live, err := s.store.ListByCard(ctx, "CARD-100")
	s.Require().NoError(err)
	s.Require().Len(live, 1)
	s.Equal(second.ID, live[0].ID)
}

func (s *PostgresStoreSuite) TestReplaceIsScopedToCard() {
	ctx := context.Background()

	_, err := s.store.Replace(ctx, newChallenge("CARD-100"))
	s.Require().NoError(err)
	_, err = s.store.Replace(ctx, newChallenge("CARD-200"))
	s.Require().NoError(err)

	live, err := s.store.ListByCard(ctx, "CARD-100")
	s.Require().NoError(err)
	s.Len(live, 1)
}

func (s *PostgresStoreSuite) TestMarkUsedIsOneShot() {
	ctx := context.Background()

	created, err := s.store.Replace(ctx, newChallenge("CARD-100"))
	s.Require().NoError(err)

	err = s.store.MarkUsed(ctx, created.ID)
	s.Require().NoError(err)

	err = s.store.MarkUsed(ctx, created.ID)
	s.ErrorIs(err, sentinel.ErrAlreadyUsed)
}

func (s *PostgresStoreSuite) TestIncrementAttempts() {
	ctx := context.Background()

	_, err := s.store.Replace(ctx, newChallenge("CARD-100"))
	s.Require().NoError(err)
	_, err = s.store.Replace(ctx, newChallenge("CARD-200"))
	s.Require().NoError(err)

	attempts, err := s.store.IncrementAttempts(ctx, "CARD-100")
	s.Require().NoError(err)
	s.Equal(1, attempts)

	attempts, err = s.store.IncrementAttempts(ctx, "CARD-100")
	s.Require().NoError(err)
	s.Equal(2, attempts)

	// The other card's counter is untouched.
	attempts, err = s.store.IncrementAttempts(ctx, "CARD-200")
	s.Require().NoError(err)
	s.Equal(1, attempts)
}

func (s *PostgresStoreSuite) TestDeleteByCard() {
	ctx := context.Background()

	_, err := s.store.Replace(ctx, newChallenge("CARD-100"))
	s.Require().NoError(err)

	err = s.store.DeleteByCard(ctx, "CARD-100")
	s.Require().NoError(err)

	live, err := s.store.ListByCard(ctx, "CARD-100")
	s.Require().NoError(err)
	s.Empty(live)

	// Deleting an empty set is not an error.
	err = s.store.DeleteByCard(ctx, "CARD-100")
	s.NoError(err)
}
