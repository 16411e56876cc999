package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/Joseda-hg/dashtrack/internal/auth"
	"github.com/Joseda-hg/dashtrack/internal/config"
	"github.com/Joseda-hg/dashtrack/internal/db"
	"github.com/Joseda-hg/dashtrack/internal/filestore"
	"github.com/Joseda-hg/dashtrack/internal/graph"
	"github.com/Joseda-hg/dashtrack/internal/model"
	"github.com/Joseda-hg/dashtrack/internal/session"
)

const closeTimeout = 10 * time.Second

// loadConfig reads the config file, applies flag overrides and saves the result back.
func loadConfig(flags *rootFlags) (config.Config, string, error) {
	cfgPath := flags.configPath
	if cfgPath == "" {
		defaultPath, err := config.DefaultConfigPath()
		if err != nil {
			return config.Config{}, "", err
		}
		cfgPath = defaultPath
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return config.Config{}, "", err
	}

	if flags.dbPath != "" {
		cfg.DBPath = flags.dbPath
	}
	if flags.backend != "" {
		cfg.Backend = strings.ToLower(flags.backend)
	}
	if flags.variant != "" {
		cfg.Variant = flags.variant
	}
	if cfg.DBPath == "" {
		cfg.DBPath = filepath.Join(filepath.Dir(cfgPath), "dashtrack.db")
	}
	if cfg.DataDir == "" {
		cfg.DataDir = filepath.Join(filepath.Dir(cfgPath), "boards")
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, "", err
	}

	if err := config.Save(cfgPath, cfg); err != nil {
		return config.Config{}, "", err
	}
	return cfg, cfgPath, nil
}

// app holds the stores and services shared by every command.
type app struct {
	cfg     config.Config
	schema  model.Schema
	store   session.Store
	history *db.Store
	manager *session.Manager
	auth    *auth.Service
	closers []func(context.Context) error
}

func openApp(ctx context.Context, cfg config.Config, logger *log.Logger) (*app, error) {
	schema, err := model.SchemaByName(cfg.Variant, cfg.KeyPrefix)
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, schema: schema}

	var sqlDB *sql.DB
	if cfg.Backend != config.BackendMemory {
		if err := config.EnsureDir(cfg.DBPath); err != nil {
			return nil, err
		}
		sqlDB, err = db.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func(context.Context) error { return sqlDB.Close() })
	}

	switch cfg.Backend {
	case config.BackendSQLite:
		a.history = db.NewStore(sqlDB)
		a.store = a.history
	case config.BackendFile:
		store, err := filestore.New(cfg.DataDir)
		if err != nil {
			a.close()
			return nil, err
		}
		a.store = store
	case config.BackendNeo4j:
		store, err := graph.Open(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, cfg.Neo4j.Database)
		if err != nil {
			a.close()
			return nil, fmt.Errorf("connect neo4j: %w", err)
		}
		a.store = store
		a.closers = append(a.closers, store.Close)
	case config.BackendMemory:
		a.store = session.NewMemoryStore()
	default:
		a.close()
		return nil, fmt.Errorf("unknown backend %q", cfg.Backend)
	}

	var repo auth.Repo = auth.NewMemoryRepo()
	if sqlDB != nil {
		repo = auth.NewSQLRepo(sqlDB)
	}
	a.auth = auth.NewService(repo, logger, auth.WithSessionTTL(time.Duration(cfg.SessionTTLHours)*time.Hour))
	a.manager = session.NewManager(a.store, session.WithLogger(logger))
	return a, nil
}

// close flushes open boards before releasing the stores behind them.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), closeTimeout)
	defer cancel()

	if a.manager != nil {
		if err := a.manager.Close(ctx); err != nil {
			log.Printf("close boards: %v", err)
		}
	}
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](ctx); err != nil {
			log.Printf("close: %v", err)
		}
	}
}
