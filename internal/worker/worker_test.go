package worker

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/alicebob/miniredis/v2"
	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/pkg/database"
)

// setupTestWorker creates a worker with mocked dependencies.
func setupTestWorker(t *testing.T) (*Worker, sqlmock.Sqlmock, *miniredis.Miniredis) {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	db := sqlx.NewDb(sqlDB, "sqlmock")

	miniRedis := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: miniRedis.Addr()})

	cfg := &config.Config{
		Kafka: config.KafkaConfig{Topic: "usage-events", Group: "usage-workers"},
	}

	w := NewWorker(cfg, &database.Clients{DB: db, Redis: redisClient}, nil)
	return w, mock, miniRedis
}

func TestProcessEvent(t *testing.T) {
	w, mock, miniRedis := setupTestWorker(t)

	event := models.UsageEvent{
		ID:         "5e0640b4-46d2-4f0b-a8b7-1f78d3a46d11",
		UserID:     "user-1",
		Email:      "demo@example.com",
		UsageType:  models.UsageKeywordsAnalyzed,
		Amount:     1,
		Tier:       models.TierFree,
		OccurredAt: time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO usage_events").
		WithArgs(event.ID, event.UserID, event.Email, string(event.UsageType), event.Amount, string(event.Tier), event.OccurredAt).
		WillReturnResult(sqlmock.NewResult(1, 1))

	require.NoError(t, w.ProcessEvent(context.Background(), payload))
	assert.NoError(t, mock.ExpectationsWereMet())

	count, err := miniRedis.Get("usage:user-1:keywordsAnalyzed:2026-08")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}

func TestProcessEventAccumulates(t *testing.T) {
	w, mock, miniRedis := setupTestWorker(t)

	occurred := time.Date(2026, 8, 15, 12, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		event := models.UsageEvent{
			ID:         "00000000-0000-0000-0000-00000000000" + string(rune('1'+i)),
			UserID:     "user-1",
			Email:      "demo@example.com",
			UsageType:  models.UsageContentGenerated,
			Amount:     2,
			Tier:       models.TierProfessional,
			OccurredAt: occurred,
		}
		payload, err := json.Marshal(event)
		require.NoError(t, err)

		mock.ExpectExec("INSERT INTO usage_events").
			WillReturnResult(sqlmock.NewResult(1, 1))
		require.NoError(t, w.ProcessEvent(context.Background(), payload))
	}

	count, err := miniRedis.Get("usage:user-1:contentGenerated:2026-08")
	require.NoError(t, err)
	assert.Equal(t, "6", count)
}

func TestProcessEventDefaultsAmount(t *testing.T) {
	w, mock, miniRedis := setupTestWorker(t)

	event := models.UsageEvent{
		ID:         "5e0640b4-46d2-4f0b-a8b7-1f78d3a46d12",
		UserID:     "user-2",
		Email:      "demo@example.com",
		UsageType:  models.UsageAttributionQueries,
		Tier:       models.TierFree,
		OccurredAt: time.Date(2026, 8, 1, 0, 0, 0, 0, time.UTC),
	}
	payload, err := json.Marshal(event)
	require.NoError(t, err)

	mock.ExpectExec("INSERT INTO usage_events").
		WillReturnResult(sqlmock.NewResult(1, 1))
	require.NoError(t, w.ProcessEvent(context.Background(), payload))

	count, err := miniRedis.Get("usage:user-2:attributionQueries:2026-08")
	require.NoError(t, err)
	assert.Equal(t, "1", count)
}

func TestProcessEventBadPayload(t *testing.T) {
	w, _, _ := setupTestWorker(t)

	err := w.ProcessEvent(context.Background(), []byte("not json"))
	assert.Error(t, err)
}
