package main

import (
	"context"

	"harbor-backend/internal/config"
	"harbor-backend/internal/infrastructure/database"
	"harbor-backend/internal/interfaces/router"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Config load failed")
	}
	if cfg.Env != "production" {
		log.Logger = log.Output(zerolog.NewConsoleWriter())
	}

	app, db, rdb, err := router.CreateApp(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("App create failed")
	}

	if db != nil {
		sqlDB, errDB := db.DB()
		if errDB != nil {
			log.Fatal().Err(errDB).Msg("Record store handle failed")
		}
		if errDB := sqlDB.Ping(); errDB != nil {
			log.Fatal().Err(errDB).Msg("Record store connection failed")
		}
		if errDB := database.AutoMigrate(db); errDB != nil {
			log.Fatal().Err(errDB).Msg("Record store migration failed")
		}
		log.Info().Msg("Record store connected")
	} else {
		log.Warn().Msg("No DATABASE_URL configured, API routes disabled")
	}
	if rdb != nil {
		if errRdb := rdb.Ping(context.Background()).Err(); errRdb != nil {
			log.Fatal().Err(errRdb).Msg("Redis connection failed")
		}
		log.Info().Msg("Redis connected")
	}
	if cfg.LedgerRPCURL == "" {
		log.Warn().Msg("No LEDGER_RPC_URL configured, using in-memory ledger")
	}

	log.Info().Str("port", cfg.Port).Str("env", cfg.Env).Msg("Harbor API listening")
	if err := app.Listen(":" + cfg.Port); err != nil {
		log.Fatal().Err(err).Msg("Server stopped")
	}
}
