package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/blueray32/bimcalc/internal/classify"
	"github.com/blueray32/bimcalc/internal/config"
	"github.com/blueray32/bimcalc/internal/db"
	"github.com/blueray32/bimcalc/internal/domain"
	"github.com/blueray32/bimcalc/internal/match"
	"github.com/blueray32/bimcalc/internal/repository"
)

func main() {
	var (
		configPath = flag.String("config", ".", "directory containing config.yaml")
		tenantFlag = flag.String("tenant", "", "tenant id")
		projectFlag = flag.String("project", "", "project id")
		actor      = flag.String("actor", "batch", "actor recorded on match results")
		batchSize  = flag.Int("batch", 500, "max items per run")
	)
	flag.Parse()

	logger := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()

	tenantID, err := uuid.Parse(*tenantFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid tenant id")
	}
	projectID, err := uuid.Parse(*projectFlag)
	if err != nil {
		logger.Fatal().Err(err).Msg("invalid project id")
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	conn, err := db.NewConnection(ctx, cfg.DB, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer conn.Close()

	if err := db.RunMigrations(cfg.DB, cfg.MigrationsPath, logger); err != nil {
		logger.Fatal().Err(err).Msg("failed to run migrations")
	}

	classifier, err := classify.New(cfg.RuleFile, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to load classification rules")
	}

	items := repository.NewItemRepository(conn)
	engine := match.NewEngine(
		classifier,
		cfg.Matching,
		items,
		repository.NewPriceItemRepository(conn),
		repository.NewMappingRepository(conn),
		repository.NewMatchResultRepository(conn),
		logger,
	)

	pending, err := items.ListUnmatched(ctx, tenantID, projectID, *batchSize)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to list unmatched items")
	}

	counts := map[domain.Decision]int{}
	for i := range pending {
		item := pending[i]
		result, _, err := engine.Match(ctx, &item, *actor)
		if err != nil {
			logger.Error().Err(err).Str("item_id", item.ID.String()).Msg("match failed")
			continue
		}
		counts[result.Decision]++
	}

	logger.Info().
		Int("items", len(pending)).
		Int("auto_accepted", counts[domain.DecisionAutoAccepted]).
		Int("manual_review", counts[domain.DecisionManualReview]).
		Int("rejected", counts[domain.DecisionRejected]).
		Msg("batch complete")
}
