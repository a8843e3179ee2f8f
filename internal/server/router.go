package server

import (
	"log/slog"

	"task-manager/server/internal/config"
	"task-manager/server/internal/handlers"
	"task-manager/server/internal/middleware"
	"task-manager/server/internal/monitoring"
	"task-manager/server/internal/services"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

type RouterDeps struct {
	Config   *config.Config
	Logger   *slog.Logger
	Users    services.UserService
	Tasks    services.TaskService
	Notifier handlers.Subscriber
	Monitor  *monitoring.Monitor
}

func NewRouter(deps RouterDeps) *gin.Engine {
	if deps.Config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.New()
	router.Use(
		middleware.RequestID(),
		middleware.RequestLogger(deps.Logger),
		middleware.RecoveryWithLog(deps.Logger),
		corsMiddleware(deps.Config.CORS),
		deps.Monitor.Middleware(),
	)

	router.GET("/", handlers.Root)
	router.GET("/health", deps.Monitor.HealthHandler())
	router.GET("/metrics", deps.Monitor.MetricsHandler())

	api := router.Group("/")
	if rl := deps.Config.RateLimit; rl.Enabled {
		api.Use(middleware.NewRateLimiter(rl.RequestsPerMin, rl.BurstSize, rl.CleanupInterval).Middleware())
	}

	userHandler := handlers.NewUserHandler(deps.Users, deps.Logger)
	api.POST("/users", userHandler.CreateUser)
	api.GET("/users", userHandler.ListUsers)

	taskHandler := handlers.NewTaskHandler(deps.Tasks, deps.Logger)
	api.POST("/tasks", taskHandler.CreateTask)
	api.GET("/tasks", taskHandler.ListTasks)
	api.PUT("/tasks/:id", taskHandler.UpdateTaskCategory)
	api.DELETE("/tasks/:id", taskHandler.DeleteTask)

	streamHandler := handlers.NewStreamHandler(deps.Notifier, deps.Monitor, deps.Logger)
	api.GET("/task-updates", streamHandler.TaskUpdates)

	return router
}

func corsMiddleware(cfg config.CORSConfig) gin.HandlerFunc {
	corsConfig := cors.Config{
		AllowMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders: []string{"Origin", "Content-Type", "Accept", middleware.RequestIDHeader},
	}
	if len(cfg.AllowOrigins) == 0 || (len(cfg.AllowOrigins) == 1 && cfg.AllowOrigins[0] == "*") {
		corsConfig.AllowAllOrigins = true
	} else {
		corsConfig.AllowOrigins = cfg.AllowOrigins
	}
	return cors.New(corsConfig)
}
