//go:build integration

package kafka_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"github.com/twmb/franz-go/pkg/kadm"
	"github.com/twmb/franz-go/pkg/kgo"

	"github.com/Coritp27/sysga-sub001/internal/audit"
	"github.com/Coritp27/sysga-sub001/internal/audit/kafka"
	"github.com/Coritp27/sysga-sub001/pkg/testutil/containers"
)

const testTopic = "audit-events-test"

type KafkaSinkSuite struct {
	suite.Suite
	redpanda *containers.RedpandaContainer
	sink     *kafka.Sink
}

func TestKafkaSinkSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(KafkaSinkSuite))
}

func (s *KafkaSinkSuite) SetupSuite() {
	s.redpanda = containers.NewRedpandaContainer(s.T())

	admin, err := kgo.NewClient(kgo.SeedBrokers(s.redpanda.Broker))
	s.Require().NoError(err)
	defer admin.Close()

	_, err = kadm.NewClient(admin).CreateTopic(context.Background(), 1, 1, nil, testTopic)
	s.Require().NoError(err)

	s.sink, err = kafka.NewSink([]string{s.redpanda.Broker}, testTopic)
	s.Require().NoError(err)
	s.T().Cleanup(s.sink.Close)
}

func (s *KafkaSinkSuite) consumeAll(expected int) []*kgo.Record {
	consumer, err := kgo.NewClient(
		kgo.SeedBrokers(s.redpanda.Broker),
		kgo.ConsumeTopics(testTopic),
		kgo.ConsumeResetOffset(kgo.NewOffset().AtStart()),
	)
	s.Require().NoError(err)
	defer consumer.Close()

	deadline := time.Now().Add(15 * time.Second)
	var records []*kgo.Record
	for len(records) < expected && time.Now().Before(deadline) {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		fetches := consumer.PollFetches(ctx)
		cancel()
		fetches.EachRecord(func(r *kgo.Record) {
			records = append(records, r)
		})
	}
	return records
}

func (s *KafkaSinkSuite) TestAppendPublishesEvent() {
	ctx := context.Background()

	event := audit.Event{
		Timestamp:  time.Now().UTC(),
		Action:     audit.ActionCardCreated,
		Principal:  "admin",
		CardNumber: "CARD-100",
		TxHash:     "0xdeadbeef",
		RequestID:  "req-1",
	}
	err := s.sink.Append(ctx, event)
	s.Require().NoError(err)

	records := s.consumeAll(1)
	s.Require().Len(records, 1)
	s.Equal("CARD-100", string(records[0].Key))

	var got audit.Event
	err = json.Unmarshal(records[0].Value, &got)
	s.Require().NoError(err)
	s.Equal(audit.ActionCardCreated, got.Action)
	s.Equal("0xdeadbeef", got.TxHash)
}

// TestCardEventsStayOrdered relies on the card-number key landing all events
// for one card in the same partition.
func (s *KafkaSinkSuite) TestCardEventsStayOrdered() {
	ctx := context.Background()

	actions := []string{audit.ActionOTPIssued, audit.ActionOTPVerified, audit.ActionOTPLocked}
	for _, action := range actions {
		event := audit.Event{
			Timestamp:  time.Now().UTC(),
			Action:     action,
			CardNumber: "CARD-200",
		}
		err := s.sink.Append(ctx, event)
		s.Require().NoError(err)
	}

	records := s.consumeAll(4)

	var got []string
	for _, r := range records {
		if string(r.Key) != "CARD-200" {
			continue
		}
		var e audit.Event
		s.Require().NoError(json.Unmarshal(r.Value, &e))
		got = append(got, e.Action)
	}
	s.Equal(actions, got)
}
