//go:build integration

package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	kafkaContainer "github.com/testcontainers/testcontainers-go/modules/kafka"

	"example.com/gym/internal/domain"
	"example.com/gym/internal/events"
	"example.com/gym/internal/outbox"
	"example.com/gym/internal/persistence/memory"
)

func TestKafkaCheckInEventRecordsAttendance(t *testing.T) {
	t.Parallel()
	ctx, cancel := context.WithTimeout(context.Background(), 4*time.Minute)
	defer cancel()

	kafkaC, err := kafkaContainer.Run(ctx, "confluentinc/confluent-local:7.5.0", testcontainers.WithEnv(map[string]string{
		"KAFKA_AUTO_CREATE_TOPICS_ENABLE": "true",
	}))
	require.NoError(t, err)
	t.Cleanup(func() { _ = kafkaC.Terminate(context.Background()) })

	brokers, err := kafkaC.Brokers(ctx)
	require.NoError(t, err)
	require.NotEmpty(t, brokers)
	broker := brokers[0]

	topic := "gym.checkins"

	conn, err := kafka.Dial("tcp", broker)
	require.NoError(t, err)
	defer conn.Close()
	require.NoError(t, conn.CreateTopics(kafka.TopicConfig{
		Topic:             topic,
		NumPartitions:     1,
		ReplicationFactor: 1,
	}))

	store := memory.NewStore()
	store.AddMember(domain.Member{ID: "m-1", AdminID: "admin-1", Name: "Alice"})
	service := domain.NewAttendanceService(store, store, domain.NewSettingsService(store))

	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     []string{broker},
		GroupID:     "gym-integration",
		Topic:       topic,
		MinBytes:    1,
		MaxBytes:    10e6,
		StartOffset: kafka.FirstOffset,
	})
	defer reader.Close()

	consumerCtx, stop := context.WithCancel(ctx)
	defer stop()

	proc := NewProcessor(reader, NewCheckInHandler(service))
	go func() {
		_ = proc.Run(consumerCtx)
	}()

	publisher := outbox.NewKafkaPublisher([]string{broker}, topic)
	defer publisher.Close()

	at := time.Date(2025, time.December, 3, 7, 0, 0, 0, time.UTC)
	err = publisher.Publish(ctx, events.TypeMemberCheckedIn, "admin-1", "m-1", events.MemberCheckedIn{
		RecordID:    "turnstile-42",
		AdminID:     "admin-1",
		MemberID:    "m-1",
		CheckedInAt: at,
	})
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		overview, err := service.Overview(ctx, "admin-1", "2025-12")
		if err != nil {
			return false
		}
		return overview.Entries["m-1"].Days[3] == 1
	}, 30*time.Second, 500*time.Millisecond)

	records, err := store.ListByPeriod(ctx, "admin-1", at.Add(-time.Hour), at.Add(time.Hour))
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, domain.CheckInRecordID("admin-1", "turnstile-42"), records[0].ID)
}
