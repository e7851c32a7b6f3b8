package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/nestplan/nestplan-backend/internal/agent"
	"github.com/nestplan/nestplan-backend/internal/db"
	"github.com/nestplan/nestplan-backend/internal/handlers"
	"github.com/nestplan/nestplan-backend/internal/logger"
	"github.com/nestplan/nestplan-backend/internal/middleware"
	"github.com/nestplan/nestplan-backend/internal/repos"
	"github.com/nestplan/nestplan-backend/internal/sendgrid"
	"github.com/nestplan/nestplan-backend/internal/server"
	"github.com/nestplan/nestplan-backend/internal/services"
	"github.com/nestplan/nestplan-backend/internal/sse"
	"github.com/nestplan/nestplan-backend/internal/temporalx"
	"github.com/nestplan/nestplan-backend/internal/utils"
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

	// Env
	log.Info("Loading environment variables from main...")
	jwtSecretKey := utils.GetEnv("JWT_SECRET_KEY", "defaultsecret", log)
	accessTokenTTL := utils.GetEnvAsInt("ACCESS_TOKEN_TTL", 3600, log)
	maxSteps := utils.GetEnvAsInt("AGENT_MAX_STEPS", 10, log)
	historyWindow := utils.GetEnvAsInt("AGENT_HISTORY_WINDOW", 20, log)

	// Postgres
	postgresService, err := db.NewPostgresService(log)
	if err != nil {
		log.Error("Postgres init failed", "error", err)
		os.Exit(1)
	}
	if err = postgresService.AutoMigrateAll(); err != nil {
		log.Warn("Postgres auto migration failed", "error", err)
	}
	thePG := postgresService.DB()

	// Repos
	log.Info("Setting up repos from main...")
	userRepo := repos.NewUserRepo(thePG, log)
	chatThreadRepo := repos.NewChatThreadRepo(thePG, log)
	chatTurnRepo := repos.NewChatTurnRepo(thePG, log)
	roomRepo := repos.NewRoomRepo(thePG, log)
	styleProfileRepo := repos.NewStyleProfileRepo(thePG, log)
	productRepo := repos.NewProductRepo(thePG, log)
	assetRepo := repos.NewAssetRepo(thePG, log)
	jobRunRepo := repos.NewJobRunRepo(thePG, log)

	// SSE
	sseHub := sse.NewSSEHub(log)
	emitter := &services.HubEmitter{Hub: sseHub}

	// Forward worker-published events into the local hub.
	if os.Getenv("REDIS_ADDR") != "" {
		sseBus, bErr := services.NewRedisSSEBus(log)
		if bErr != nil {
			log.Warn("SSE bus disabled", "error", bErr)
		} else if fErr := sseBus.StartForwarder(context.Background(), sseHub.Broadcast); fErr != nil {
			log.Warn("SSE forwarder failed to start", "error", fErr)
		}
	}

	// Platform clients
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

	// Checkpoints: Redis when configured, in-memory otherwise.
	var checkpoints agent.CheckpointStore = agent.NewMemoryCheckpointStore()
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		rdb := redis.NewClient(&redis.Options{Addr: addr, DialTimeout: 5 * time.Second})
		ttl := utils.GetEnvAsInt("CHECKPOINT_TTL_SECONDS", 86400, log)
		store, cErr := agent.NewRedisCheckpointStore(rdb, log, ttl)
		if cErr != nil {
			log.Warn("Redis checkpoint store init failed; using in-memory", "error", cErr)
		} else {
			checkpoints = store
		}
	}
	initCtx, cancelInit := context.WithTimeout(context.Background(), 5*time.Second)
	if err := checkpoints.Initialize(initCtx); err != nil {
		log.Warn("Checkpoint store unreachable; using in-memory", "error", err)
		checkpoints = agent.NewMemoryCheckpointStore()
	}
	cancelInit()

	// Temporal (optional; render/optimize jobs disabled when unset)
	temporalClient, err := temporalx.NewClient(log)
	if err != nil {
		log.Warn("Temporal init failed", "error", err)
	}
	temporalCfg := temporalx.LoadConfig()

	// Services
	log.Info("Setting up services from main...")
	authService := services.NewAuthService(thePG, log, userRepo, emailService, jwtSecretKey, time.Duration(accessTokenTTL)*time.Second)
	userService := services.NewUserService(userRepo, log)
	roomService := services.NewRoomService(roomRepo, log)
	styleService := services.NewStyleService(styleProfileRepo, log)
	productService := services.NewProductService(productRepo, bucketService, log)
	assetService := services.NewAssetService(assetRepo, bucketService, log)
	jobService := services.NewJobService(thePG, log, jobRunRepo, emitter, temporalClient, temporalCfg.TaskQueue)
	sessionState := services.NewSessionStateService(chatThreadRepo, log)
	turnStore := services.NewTurnStore(chatTurnRepo, log)

	toolRegistry, err := services.NewAgentToolRegistry(services.AgentToolDeps{
		Styles:   styleService,
		Products: productService,
		Rooms:    roomService,
		Threads:  chatThreadRepo,
		Users:    userRepo,
		Jobs:     jobService,
		Emails:   emailService,
		Log:      log,
	})
	if err != nil {
		log.Error("Tool registry init failed", "error", err)
		os.Exit(1)
	}

	engine, err := agent.NewEngine(log, openaiClient, toolRegistry, checkpoints, turnStore, sessionState, assetService, agent.Config{
		MaxSteps:      maxSteps,
		HistoryWindow: historyWindow,
	})
	if err != nil {
		log.Error("Engine init failed", "error", err)
		os.Exit(1)
	}

	chatNotifier := services.NewChatNotifier(emitter)
	chatService := services.NewChatService(engine, chatThreadRepo, chatTurnRepo, chatNotifier, log)

	// Handlers
	log.Info("Setting up handlers from main...")
	authHandler := handlers.NewAuthHandler(authService)
	userHandler := handlers.NewUserHandler(userService)
	chatHandler := handlers.NewChatHandler(chatService, log)
	roomHandler := handlers.NewRoomHandler(roomService)
	styleHandler := handlers.NewStyleHandler(styleService)
	productHandler := handlers.NewProductHandler(productService)
	uploadHandler := handlers.NewUploadHandler(assetService, jobService, log)
	jobsHandler := handlers.NewJobsHandler(jobService)
	sseHandler := handlers.NewSSEHandler(log, sseHub)

	// Middleware
	authMiddleware := middleware.NewAuthMiddleware(log, authService)

	// Router
	log.Info("Setting up router from main...")
	router := server.NewRouter(server.RouterConfig{
		AuthHandler:    authHandler,
		AuthMiddleware: authMiddleware,
		UserHandler:    userHandler,
		ChatHandler:    chatHandler,
		RoomHandler:    roomHandler,
		StyleHandler:   styleHandler,
		ProductHandler: productHandler,
		UploadHandler:  uploadHandler,
		JobsHandler:    jobsHandler,
		SSEHandler:     sseHandler,
	})

	port := utils.GetEnv("PORT", "8080", log)
	fmt.Printf("Server listening on :%s\n", port)
	if err := router.Run(":" + port); err != nil {
		log.Error("Server failed", "error", err)
	}
}
