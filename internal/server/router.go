package server

import (
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/nestplan/nestplan-backend/internal/handlers"
	"github.com/nestplan/nestplan-backend/internal/middleware"
)

type RouterConfig struct {
	AuthHandler    *handlers.AuthHandler
	AuthMiddleware *middleware.AuthMiddleware
	UserHandler    *handlers.UserHandler
	ChatHandler    *handlers.ChatHandler
	RoomHandler    *handlers.RoomHandler
	StyleHandler   *handlers.StyleHandler
	ProductHandler *handlers.ProductHandler
	UploadHandler  *handlers.UploadHandler
	JobsHandler    *handlers.JobsHandler
	SSEHandler     *handlers.SSEHandler
}

func NewRouter(cfg RouterConfig) *gin.Engine {
	router := gin.Default()

	router.Use(cors.New(cors.Config{
		AllowOrigins: []string{
			"http://localhost:80",
			"http://localhost:3000",
			"http://localhost:5174",
		},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "PATCH", "OPTIONS"},
		AllowHeaders:     []string{"Authorization", "Content-Type", "X-Requested-With"},
		AllowCredentials: true,
	}))

	// Public
	router.GET("/healthcheck", handlers.HealthCheck)
	router.POST("/api/register", cfg.AuthHandler.Register)
	router.POST("/api/login", cfg.AuthHandler.Login)

	// Protected
	api := router.Group("/api")
	api.Use(cfg.AuthMiddleware.RequireAuth())

	api.GET("/user", cfg.UserHandler.GetMe)

	api.GET("/sse/stream", cfg.SSEHandler.SSEStream)

	api.POST("/chat/messages", cfg.ChatHandler.SendMessage)
	api.POST("/chat/threads", cfg.ChatHandler.CreateThread)
	api.GET("/chat/threads", cfg.ChatHandler.ListThreads)
	api.GET("/chat/threads/:id", cfg.ChatHandler.GetThread)
	api.GET("/chat/threads/:id/turns", cfg.ChatHandler.ListTurns)

	api.POST("/rooms", cfg.RoomHandler.Create)
	api.GET("/rooms", cfg.RoomHandler.List)
	api.GET("/rooms/:id", cfg.RoomHandler.Get)
	api.PATCH("/rooms/:id", cfg.RoomHandler.Update)
	api.DELETE("/rooms/:id", cfg.RoomHandler.Delete)

	api.POST("/styles", cfg.StyleHandler.Create)
	api.GET("/styles", cfg.StyleHandler.List)
	api.GET("/styles/:id", cfg.StyleHandler.Get)
	api.DELETE("/styles/:id", cfg.StyleHandler.Delete)

	api.POST("/products", cfg.ProductHandler.Create)
	api.GET("/products", cfg.ProductHandler.Search)

	api.POST("/uploads", cfg.UploadHandler.CreateSignedUpload)
	api.POST("/uploads/:id/confirm", cfg.UploadHandler.ConfirmUpload)

	api.GET("/jobs", cfg.JobsHandler.ListJobs)
	api.GET("/jobs/:id", cfg.JobsHandler.GetJobByID)

	return router
}
