package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"alawein/internal/engine/mailer"
	"alawein/internal/pkg/logger"
	"alawein/internal/platform/config"
	"alawein/internal/platform/database"
	"alawein/internal/platform/repositories"
	"alawein/internal/workers"
)

func main() {
	configPath := flag.String("config", "configs/config.yaml", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load config")
	}

	logger.Init(cfg.Logging)
	log.Info().Msg("Starting background workers")

	db, err := database.Open(cfg.Database)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	templates, err := mailer.LoadTemplates()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to parse email templates")
	}
	sender, err := mailer.NewSender(cfg.Email)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to configure email provider")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	interval := cfg.Worker.InviteInterval
	if interval <= 0 {
		interval = time.Minute
	}

	dispatcher := workers.NewInviteDispatcher(
		repositories.NewWaitlistRepository(db.DB),
		mailer.NewService(sender, templates, cfg.Email),
		cfg.Email.SiteURL,
		cfg.Worker.InviteBatch,
	)
	dispatcher.Run(ctx, interval)

	log.Info().Msg("Workers stopped")
}
