package main

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"taskflow-backend/internal/analytics"
	"taskflow-backend/internal/config"
	"taskflow-backend/internal/db"
	"taskflow-backend/internal/logging"
	"taskflow-backend/internal/store"
	"taskflow-backend/internal/tasks"
)

type backend struct {
	store  tasks.Store
	events analytics.Sink
	close  func()
}

func setup() (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	log, err := logging.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return nil, nil, err
	}
	return cfg, log, nil
}

// openBackend connects the configured record store. Analytics go to
// postgres when it is the store, otherwise to the log.
func openBackend(ctx context.Context, cfg *config.Config, log *zap.Logger) (*backend, error) {
	switch cfg.Store.Backend {
	case config.BackendPostgres:
		database, err := db.Connect(cfg.ConnString())
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if err := db.EnsureSchema(ctx, database); err != nil {
			database.Close()
			return nil, err
		}
		log.Info("connected to postgres", zap.String("host", cfg.DB.Host), zap.String("db", cfg.DB.Name))
		return &backend{
			store:  store.NewPostgres(database),
			events: analytics.PostgresSink{DB: database},
			close:  func() { database.Close() },
		}, nil

	case config.BackendNeo4j:
		g, err := store.OpenGraph(ctx, cfg.Neo4j.URI, cfg.Neo4j.User, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			return nil, err
		}
		log.Info("connected to neo4j", zap.String("uri", cfg.Neo4j.URI))
		return &backend{
			store:  g,
			events: analytics.LogSink{Log: log.Named("analytics")},
			close:  func() { _ = g.Close(context.Background()) },
		}, nil

	default:
		log.Info("using in-memory store")
		return &backend{
			store:  store.NewMemory(),
			events: analytics.LogSink{Log: log.Named("analytics")},
			close:  func() {},
		}, nil
	}
}
