package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/IBM/sarama"

	"github.com/marketlens/marketlens/internal/config"
	"github.com/marketlens/marketlens/internal/models"
	"github.com/marketlens/marketlens/pkg/database"
)

// Worker consumes usage events and persists them for conversion tracking:
// one row per event in Postgres plus a per-month running count in Redis.
type Worker struct {
	cfg      *config.Config
	db       *database.Clients
	consumer sarama.ConsumerGroup
	ready    chan bool
}

func NewWorker(cfg *config.Config, db *database.Clients, consumer sarama.ConsumerGroup) *Worker {
	slog.Info("Initializing usage worker")
	return &Worker{
		cfg:      cfg,
		db:       db,
		consumer: consumer,
		ready:    make(chan bool),
	}
}

func (w *Worker) Start(ctx context.Context) error {
	topics := []string{w.cfg.Kafka.Topic}
	slog.Info("Starting usage worker", "topics", topics)

	if err := w.db.CreateUsageEventsTable(); err != nil {
		return err
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		for err := range w.consumer.Errors() {
			slog.Error("Kafka consumer error received", "error", err)
		}
	}()

	go func() {
		for {
			if err := w.consumer.Consume(ctx, topics, w); err != nil {
				slog.Error("Error from consumer.Consume", "error", err)
			}
			if ctx.Err() != nil {
				return
			}
			// Reset the ready channel after a new session is created
			w.ready = make(chan bool)
		}
	}()

	<-w.ready
	slog.Info("Usage worker setup complete; consumer ready")

	select {
	case sig := <-sigChan:
		slog.Info("Received shutdown signal", "signal", sig)
	case <-ctx.Done():
		slog.Info("Context cancelled; shutting down worker")
	}

	slog.Info("Usage worker shutting down gracefully")
	return nil
}

// Setup is run at the beginning of a new session, before ConsumeClaim.
func (w *Worker) Setup(sarama.ConsumerGroupSession) error {
	close(w.ready)
	return nil
}

// Cleanup is run at the end of a session, once all ConsumeClaim goroutines have exited.
func (w *Worker) Cleanup(sarama.ConsumerGroupSession) error {
	return nil
}

// ConsumeClaim must start a consumer loop of ConsumerGroupClaim's Messages().
func (w *Worker) ConsumeClaim(session sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for message := range claim.Messages() {
		if err := w.ProcessEvent(session.Context(), message.Value); err != nil {
			slog.Error("Failed to process usage event", "error", err, "offset", message.Offset)
		}
		session.MarkMessage(message, "")
	}
	return nil
}

// ProcessEvent stores one usage event and bumps its monthly Redis counter.
func (w *Worker) ProcessEvent(ctx context.Context, payload []byte) error {
	var event models.UsageEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		return fmt.Errorf("failed to decode usage event: %w", err)
	}
	if event.Amount <= 0 {
		event.Amount = 1
	}

	_, err := w.db.DB.ExecContext(ctx,
		`INSERT INTO usage_events (id, user_id, email, usage_type, amount, tier, occurred_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 ON CONFLICT (id) DO NOTHING`,
		event.ID, event.UserID, event.Email, event.UsageType, event.Amount, event.Tier, event.OccurredAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert usage event: %w", err)
	}

	// Month-scoped key so counters roll over without a cleanup job.
	key := fmt.Sprintf("usage:%s:%s:%s", event.UserID, event.UsageType, event.OccurredAt.Format("2006-01"))
	if err := w.db.Redis.IncrBy(ctx, key, int64(event.Amount)).Err(); err != nil {
		slog.Error("Failed to update usage counter cache", "error", err, "key", key)
	}

	slog.Info("Usage event recorded", "user_id", event.UserID, "usage_type", event.UsageType)
	return nil
}
