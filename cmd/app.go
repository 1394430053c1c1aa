package main

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"pulse/api"
	"pulse/config"
	"pulse/db"
	"pulse/lexicon"
	"pulse/llm"
	"pulse/logger"
)

// app is the process-wide wiring shared by every command.
type app struct {
	cfg    config.Config
	log    zerolog.Logger
	stores db.Stores
	gen    llm.Generator
	lex    *lexicon.Lexicon
	close  func()
}

func bootstrap(ctx context.Context, memory bool) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	log := logger.Setup(cfg)

	a := &app{cfg: cfg, log: log, close: func() {}}

	a.lex = lexicon.Default()
	if cfg.LexiconPath != "" {
		if a.lex, err = lexicon.Load(cfg.LexiconPath); err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.LexiconPath).Msg("loaded lexicon")
	}

	if a.gen, err = llm.New(ctx, cfg.LLM, logger.Component(log, "llm")); err != nil {
		return nil, fmt.Errorf("failed to init LLM provider: %w", err)
	}

	if memory {
		log.Warn().Msg("using in-memory store, data is lost on exit")
		a.stores = db.Bundle(db.NewMemory())
		return a, nil
	}

	conn, err := db.InitDB(cfg.DB, logger.Component(log, "db"))
	if err != nil {
		return nil, err
	}
	sqlDB, err := conn.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying *sql.DB: %w", err)
	}
	a.close = func() { _ = sqlDB.Close() }

	pg, err := db.NewPostgres(conn)
	if err != nil {
		a.close()
		return nil, err
	}
	if err := pg.EnsureVectorIndex(ctx); err != nil {
		log.Warn().Err(err).Msg("similarity search will scan without an index")
	}
	a.stores = db.Bundle(pg)
	return a, nil
}

func (a *app) services() *api.Services {
	return api.NewServices(api.Deps{
		Stores:       a.stores,
		Generator:    a.gen,
		Lexicon:      a.lex,
		AutoAnnotate: a.cfg.AutoAnnotate,
		Concurrency:  a.cfg.LLM.MaxConcurrent,
	}, a.log)
}
