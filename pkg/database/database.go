package database

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
)

type Clients struct {
	DB    *sqlx.DB
	Redis *redis.Client
}

func NewClients(dbURL, redisAddr string) (*Clients, error) {
	// Connect to PostgreSQL
	db, err := sqlx.Connect("postgres", dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Initialize Redis client
	redisClient := redis.NewClient(&redis.Options{
		Addr:     redisAddr,
		Password: "",
		DB:       0,
	})

	ctx := context.Background()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &Clients{
		DB:    db,
		Redis: redisClient,
	}, nil
}

// CreateUsageEventsTable ensures the analytics-side event table exists.
func (c *Clients) CreateUsageEventsTable() error {
	schema := `CREATE TABLE IF NOT EXISTS usage_events (
		id UUID PRIMARY KEY,
		user_id TEXT NOT NULL,
		email TEXT NOT NULL,
		usage_type TEXT NOT NULL,
		amount INT NOT NULL DEFAULT 1,
		tier TEXT NOT NULL,
		occurred_at TIMESTAMP NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS usage_events_user_idx ON usage_events (user_id, usage_type, occurred_at);`

	if _, err := c.DB.Exec(schema); err != nil {
		return fmt.Errorf("failed to create usage_events table: %w", err)
	}

	slog.Info("✅ Usage events table is ready!")
	return nil
}
