package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/nestplan/nestplan-backend/internal/db"
	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/sendgrid"
	"github.com/nestplan/nestplan-backend/internal/services"
	"github.com/nestplan/nestplan-backend/internal/sse"
	"github.com/nestplan/nestplan-backend/internal/temporalx"
	"github.com/nestplan/nestplan-backend/internal/temporalx/renderjob"
	"github.com/nestplan/nestplan-backend/internal/temporalx/temporalworker"
)

func main() {
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

	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	thePG := postgresService.DB()

	jobRunRepo := repos.NewJobRunRepo(thePG, log)
	roomRepo := repos.NewRoomRepo(thePG, log)
	assetRepo := repos.NewAssetRepo(thePG, log)
	userRepo := repos.NewUserRepo(thePG, log)

	bucketService, err := services.NewBucketService(log)
	if err != nil {
		log.Error("Bucket init failed", "error", err)
		os.Exit(1)
	}
	openaiClient, err := services.NewOpenAIClient(log)
	if err != nil {
		log.Error("OpenAI init failed", "error", err)
		os.Exit(1)
	}
	sendgridClient, err := sendgrid.NewFromEnv(log)
	if err != nil {
		log.Warn("SendGrid disabled", "error", err)
		sendgridClient = nil
	}
	emailService := services.NewEmailService(sendgridClient, log)

	// Job events go over the bus; API processes forward them to clients.
	var emitter services.SSEEmitter
	sseBus, err := services.NewRedisSSEBus(log)
	if err != nil {
		log.Warn("SSE bus disabled; job events will not reach clients", "error", err)
		emitter = noopEmitter{}
	} else {
		defer sseBus.Close()
		emitter = &services.BusEmitter{Bus: sseBus}
	}

	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Error("Temporal init failed", "error", err)
		os.Exit(1)
	}
	if temporalClient == nil {
		log.Error("TEMPORAL_ADDRESS is required for the worker")
		os.Exit(1)
	}
	defer temporalClient.Close()

	activities := renderjob.NewActivities(
		jobRunRepo,
		roomRepo,
		assetRepo,
		userRepo,
		bucketService,
		openaiClient,
		emitter,
		emailService,
		log,
	)

	runner, err := temporalworker.NewRunner(log, temporalClient, activities)
	if err != nil {
		log.Error("Worker init failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := runner.Start(ctx); err != nil {
		log.Error("Worker start failed", "error", err)
		os.Exit(1)
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Info("Shutting down worker")
}

type noopEmitter struct{}

func (noopEmitter) Emit(ctx context.Context, msg sse.SSEMessage) {}
