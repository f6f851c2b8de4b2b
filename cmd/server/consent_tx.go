package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	consentservice "consentwindow/internal/consent/service"
	consentstore "consentwindow/internal/consent/store"
	"consentwindow/internal/platform/config"
	"consentwindow/internal/platform/postgres"
	platformredis "consentwindow/internal/platform/redis"
)

// consentBackend bundles the store and the transaction runner of one backend.
type consentBackend struct {
	store  consentservice.Store
	tx     consentservice.ConsentStoreTx
	health func(context.Context) error
	close  func() error

	// db is set on the postgres backend, where the outbox and the audit table live.
	db *sql.DB
	// redis is set on the redis backend and reused for shared rate limits.
	redis *platformredis.Client
}

func openConsentBackend(ctx context.Context, cfg config.Server, log *slog.Logger) (*consentBackend, error) {
	switch cfg.Backend {
	case config.BackendPostgres:
		db, err := postgres.Open(ctx, cfg.Database)
		if err != nil {
			return nil, err
		}
		store := consentstore.NewPostgres(db)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = db.Close()
			return nil, err
		}
		log.InfoContext(ctx, "consent store ready", "backend", cfg.Backend)
		return &consentBackend{
			store:  store,
			tx:     consentstore.NewPostgresTx(db, cfg.TxTimeout),
			health: store.Health,
			close:  db.Close,
			db:     db,
		}, nil

	case config.BackendRedis:
		client, err := platformredis.New(ctx, cfg.Redis)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("redis backend selected but REDIS_URL is empty")
		}
		store := consentstore.NewRedis(client.Client, consentstore.WithLockTTL(cfg.Redis.LockTTL))
		log.InfoContext(ctx, "consent store ready", "backend", cfg.Backend)
		return &consentBackend{
			store:  store,
			tx:     store,
			health: store.Health,
			close:  client.Close,
			redis:  client,
		}, nil

	default:
		store := consentstore.NewInMemoryStore()
		log.WarnContext(ctx, "using in-memory consent store; state is lost on restart")
		return &consentBackend{
			store:  store,
			tx:     store,
			health: store.Health,
			close:  func() error { return nil },
		}, nil
	}
}
