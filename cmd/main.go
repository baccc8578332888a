package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/teampulse/teampulse-backend/internal/batch"
	githubconn "github.com/teampulse/teampulse-backend/internal/connector/github"
	msgraphconn "github.com/teampulse/teampulse-backend/internal/connector/msgraph"
	"github.com/teampulse/teampulse-backend/internal/data/db"
	identityrepo "github.com/teampulse/teampulse-backend/internal/data/repos/identity"
	reportrepo "github.com/teampulse/teampulse-backend/internal/data/repos/report"
	"github.com/teampulse/teampulse-backend/internal/domain"
	"github.com/teampulse/teampulse-backend/internal/ingest"
	"github.com/teampulse/teampulse-backend/internal/normalize"
	"github.com/teampulse/teampulse-backend/internal/pkg/logger"
	"github.com/teampulse/teampulse-backend/internal/pkg/observability"
	githubapi "github.com/teampulse/teampulse-backend/internal/platform/github"
	graphapi "github.com/teampulse/teampulse-backend/internal/platform/msgraph"
	"github.com/teampulse/teampulse-backend/internal/platform/openai"
	"github.com/teampulse/teampulse-backend/internal/platform/qdrant"
	"github.com/teampulse/teampulse-backend/internal/report"
	"github.com/teampulse/teampulse-backend/internal/utils"
)

func main() {
	// Logger
	logMode := os.Getenv("LOG_MODE")
	if logMode == "" {
		logMode = "development"
	}
	log, err := logger.New(logMode)
	if err != nil {
		fmt.Printf("Failed to init logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	// Tracing
	otelShutdown := observability.InitOTel(context.Background(), log, observability.OtelConfig{
		ServiceName: "teampulse-backend",
		Environment: os.Getenv("APP_ENV"),
		Version:     os.Getenv("APP_VERSION"),
	})
	if otelShutdown != nil {
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := otelShutdown(ctx); err != nil {
				log.Warn("otel shutdown failed", "error", err)
			}
		}()
	}

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Fatal("Postgres init failed", "error", err)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Fatal("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	identityRepo := identityrepo.NewRepo(thePG, log)
	reportRepo := reportrepo.NewRepo(thePG, log)

	// Vector store
	qdrantCfg, err := qdrant.ResolveConfigFromEnv()
	if err != nil {
		log.Fatal("Qdrant config failed", "error", err)
	}
	qdrantClient, err := qdrant.NewClient(log, qdrantCfg)
	if err != nil {
		log.Fatal("Qdrant init failed", "error", err)
	}

	// Embeddings
	embedder, err := openai.NewClient(log)
	if err != nil {
		log.Fatal("OpenAI init failed", "error", err)
	}

	// GitHub
	log.Info("Setting up GitHub connector from main...")
	ghTokens, err := githubapi.NewAppAuth(log)
	if err != nil {
		log.Fatal("GitHub app auth failed", "error", err)
	}
	ghClient, err := githubapi.NewClient(log)
	if err != nil {
		log.Fatal("GitHub client init failed", "error", err)
	}
	gitConnector, err := githubconn.NewConnector(ghClient, ghTokens, qdrantClient, log)
	if err != nil {
		log.Fatal("GitHub connector init failed", "error", err)
	}

	// Microsoft Graph
	log.Info("Setting up Graph connector from main...")
	graphTokens, err := graphapi.NewClientCredentialSource(log)
	if err != nil {
		log.Fatal("Graph auth failed", "error", err)
	}
	graphClient, err := graphapi.NewClient(graphTokens, log)
	if err != nil {
		log.Fatal("Graph client init failed", "error", err)
	}
	redisClient := graphapi.NewRedisFromEnv(log)
	directory, err := graphapi.NewDirectory(graphClient, redisClient, log)
	if err != nil {
		log.Fatal("Graph directory init failed", "error", err)
	}
	graphConnector, err := msgraphconn.NewConnector(graphClient, directory, msgraphconn.PlainTextExtractor{}, log)
	if err != nil {
		log.Fatal("Graph connector init failed", "error", err)
	}

	// Pipeline stages
	normalizer, err := normalize.New(log)
	if err != nil {
		log.Fatal("Normalizer init failed", "error", err)
	}
	uploader, err := ingest.NewUploader(embedder, qdrantClient, log)
	if err != nil {
		log.Fatal("Uploader init failed", "error", err)
	}
	aggregator, err := report.NewAggregator(qdrantClient, log)
	if err != nil {
		log.Fatal("Aggregator init failed", "error", err)
	}
	materializer, err := report.NewMaterializer(reportRepo, log)
	if err != nil {
		log.Fatal("Materializer init failed", "error", err)
	}

	// Batch
	batchCfg, err := batch.LoadConfig(log)
	if err != nil {
		log.Fatal("Batch config failed", "error", err)
	}
	notifier := batch.NewNotifier(batchCfg.Notify, log)

	sources := []batch.SourceSpec{
		{Name: domain.SourceGit, Collect: gitConnector.Collect},
		{Name: domain.SourceTeams, Collect: graphConnector.CollectTeams},
		{Name: domain.SourceEmail, Collect: graphConnector.CollectMail},
		{Name: domain.SourceDocs, Collect: graphConnector.CollectDocs},
	}
	runner, err := batch.NewRunner(identityRepo, sources, normalizer, uploader, aggregator, materializer, notifier, log)
	if err != nil {
		log.Fatal("Runner init failed", "error", err)
	}

	if utils.GetEnv("BATCH_RUN_ON_START", "false", log) == "true" {
		ctx, cancel := context.WithTimeout(context.Background(), 6*time.Hour)
		if err := runner.Run(ctx, time.Now()); err != nil {
			log.Error("startup run failed", "error", err)
		}
		cancel()
	}

	scheduler, err := batch.NewScheduler(batchCfg, runner, log)
	if err != nil {
		log.Fatal("Scheduler init failed", "error", err)
	}
	scheduler.Start()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down...")
	scheduler.Stop()
}
