package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	goredis "github.com/redis/go-redis/v9"
	"github.com/spf13/viper"

	"github.com/queued-dev/queued/store"
	"github.com/queued-dev/queued/store/file"
	"github.com/queued-dev/queued/store/memory"
	"github.com/queued-dev/queued/store/postgres"
	redisstore "github.com/queued-dev/queued/store/redis"
	"github.com/queued-dev/queued/store/sqlite"
)

func newLogger() *slog.Logger {
	var level slog.Level
	switch strings.ToLower(viper.GetString("log-level")) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// redisStore pairs the store with the client it rides on so Close tears
// down the connection pool too.
type redisStore struct {
	*redisstore.Store
	client *goredis.Client
}

func (s *redisStore) Close() error { return s.client.Close() }

// openStore builds the configured backend and runs its migration, which
// is idempotent everywhere.
func openStore(ctx context.Context, logger *slog.Logger) (store.Store, error) {
	var (
		s   store.Store
		err error
	)
	switch backend := viper.GetString("store"); backend {
	case "memory":
		s = memory.New()
	case "file":
		s, err = file.Open(viper.GetString("path"), file.WithLogger(logger))
	case "sqlite":
		s, err = sqlite.Open(viper.GetString("path"), sqlite.WithLogger(logger))
	case "postgres":
		dsn := viper.GetString("dsn")
		if dsn == "" {
			return nil, fmt.Errorf("the postgres backend needs --dsn or QUEUED_DSN")
		}
		s, err = postgres.New(ctx, dsn, postgres.WithLogger(logger))
	case "redis":
		client := goredis.NewClient(&goredis.Options{Addr: viper.GetString("redis-addr")})
		s = &redisStore{
			Store:  redisstore.New(client, redisstore.WithLogger(logger)),
			client: client,
		}
	default:
		return nil, fmt.Errorf("unknown store backend %q", backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s store: %w", viper.GetString("store"), err)
	}

	if err := s.Migrate(ctx); err != nil {
		s.Close()
		return nil, fmt.Errorf("migrate %s store: %w", viper.GetString("store"), err)
	}
	return s, nil
}
