package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/hibiken/asynq"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	httpHandler "github.com/JojayD/codecanvas-sub000/internal/handler/http"
	wsHandler "github.com/JojayD/codecanvas-sub000/internal/handler/websocket"
	"github.com/JojayD/codecanvas-sub000/internal/hub"
	gormpersistence "github.com/JojayD/codecanvas-sub000/internal/infra/persistence/gorm"
	"github.com/JojayD/codecanvas-sub000/internal/infra/setup"
	redisstate "github.com/JojayD/codecanvas-sub000/internal/infra/state/redis"
	"github.com/JojayD/codecanvas-sub000/internal/middleware"
	"github.com/JojayD/codecanvas-sub000/internal/service"
	"github.com/JojayD/codecanvas-sub000/internal/tasks"
	"github.com/JojayD/codecanvas-sub000/internal/worker"
)

// Config holds everything loaded from the environment at startup.
type Config struct {
	DBUser          string
	DBPassword      string
	DBHost          string
	DBPort          string
	DBName          string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	JWTSecret       string
	ServerPort      string
	LogLevel        string
	RateLimitMax    int
	RateLimitWindow time.Duration
	JWTExpiryHours  int
	RoomIdleTTL     time.Duration
	AppEnv          string
	KeyPrefix       string
}

// LoadConfig reads configuration from the environment, preferring a local
// .env file when present.
func LoadConfig() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		DBUser:        os.Getenv("DB_USER"),
		DBPassword:    os.Getenv("DB_PASSWORD"),
		DBHost:        os.Getenv("DB_HOST"),
		DBPort:        os.Getenv("DB_PORT"),
		DBName:        os.Getenv("DB_NAME"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		JWTSecret:     os.Getenv("JWT_SECRET"),
		ServerPort:    os.Getenv("SERVER_PORT"),
		LogLevel:      os.Getenv("LOG_LEVEL"),
		AppEnv:        os.Getenv("APP_ENV"),
		KeyPrefix:     os.Getenv("REDIS_KEY_PREFIX"),

		RateLimitMax:    100,
		RateLimitWindow: 1 * time.Second,
		JWTExpiryHours:  24,
		RoomIdleTTL:     24 * time.Hour,
	}

	cfg.RedisDB, _ = strconv.Atoi(os.Getenv("REDIS_DB"))

	if hours, err := strconv.Atoi(os.Getenv("ROOM_IDLE_TTL_HOURS")); err == nil && hours > 0 {
		cfg.RoomIdleTTL = time.Duration(hours) * time.Hour
	}

	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "cc:"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}

	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

// App holds the assembled application components.
type App struct {
	Config      *Config
	Log         *logrus.Logger
	DB          *gorm.DB
	RedisClient *redis.Client
	AsynqClient *asynq.Client
	AsynqServer *worker.WorkerServer
	Hub         *hub.Hub
	HttpServer  *http.Server

	redisClientOpt asynq.RedisClientOpt
	scheduler      *asynq.Scheduler
}

// NewApp builds and wires every component of the application.
func NewApp() (*App, error) {
	cfg, err := LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return nil, err
	}

	log := logrus.New()
	if cfg.AppEnv == "production" {
		log.SetFormatter(&logrus.JSONFormatter{TimestampFormat: time.RFC3339Nano})
	} else {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, ForceColors: true})
	}
	logLevel, _ := logrus.ParseLevel(cfg.LogLevel)
	log.SetLevel(logLevel)
	log.SetOutput(os.Stdout)
	log.Infof("Logger initialized (Level: %s)", logLevel.String())

	log.Info("Initializing infrastructure...")
	db, err := setup.InitDB(cfg.DBUser, cfg.DBPassword, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return nil, fmt.Errorf("failed to init DB: %w", err)
	}
	if err := setup.MigrateDB(db); err != nil {
		return nil, fmt.Errorf("failed to migrate DB: %w", err)
	}
	log.Info("Database initialized and migrated")

	redisClient, err := setup.InitRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		return nil, fmt.Errorf("failed to init Redis: %w", err)
	}
	log.Info("Redis client initialized")

	redisClientOpt := asynq.RedisClientOpt{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}
	asynqClient := asynq.NewClient(redisClientOpt)
	log.Info("Asynq client initialized")

	log.Info("Initializing repositories...")
	userRepo := gormpersistence.NewGormUserRepository(db)
	roomRepo := gormpersistence.NewGormRoomRepository(db)
	wbRepo := gormpersistence.NewGormWhiteboardRepository(db)
	stateRepo := redisstate.NewRedisStateRepository(redisClient, cfg.KeyPrefix)
	log.Info("Repositories initialized")

	log.Info("Initializing services...")
	authService, err := service.NewAuthService(userRepo, cfg.JWTSecret, cfg.JWTExpiryHours)
	if err != nil {
		return nil, fmt.Errorf("failed to create AuthService: %w", err)
	}
	resolver := service.NewIdentityResolver(stateRepo)
	roomService := service.NewRoomService(roomRepo, wbRepo, stateRepo, resolver)
	wbService := service.NewWhiteboardService(wbRepo, stateRepo)
	log.Info("Services initialized")

	log.Info("Initializing hub...")
	hubInstance := hub.NewHub(redisClient, cfg.KeyPrefix, asynqClient)
	log.Info("Hub initialized")

	log.Info("Initializing handlers...")
	authHandler := httpHandler.NewAuthHandler(authService)
	roomHandler := httpHandler.NewRoomHandler(roomService)
	whiteboardHandler := httpHandler.NewWhiteboardHandler(roomService, wbService)
	socketHandler := wsHandler.NewHandler(hubInstance, roomService, log)
	log.Info("Handlers initialized")

	log.Info("Initializing worker server...")
	workerServer := worker.NewWorkerServer(redisClientOpt, wbService, roomService, cfg.RoomIdleTTL, log)
	log.Info("Worker server initialized")

	log.Info("Setting up Gin router...")
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(LoggerMiddleware(log))

	router.Use(func(c *gin.Context) {
		allowedOrigin := os.Getenv("CORS_ALLOWED_ORIGIN")
		if allowedOrigin == "" {
			allowedOrigin = "http://localhost:3000"
		}
		c.Writer.Header().Set("Access-Control-Allow-Origin", allowedOrigin)
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization, X-Requested-With")
		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	})
	router.Use(middleware.RateLimit(redisClient, cfg.RateLimitMax, cfg.RateLimitWindow))

	api := router.Group("/api")
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/guest", authHandler.Guest)
		authRoutes.GET("/me", middleware.Auth(cfg.JWTSecret), authHandler.Me)
	}

	// Rooms admit guests, so auth is optional here. Handlers fall back
	// to the request-supplied user id when no token is present.
	roomRoutes := api.Group("/rooms")
	roomRoutes.Use(middleware.OptionalAuth(cfg.JWTSecret))
	{
		roomRoutes.POST("", roomHandler.CreateRoom)
		roomRoutes.GET("/leave", roomHandler.LeaveRoomLegacy)
		roomRoutes.GET("/:roomId", roomHandler.GetRoom)
		roomRoutes.POST("/:roomId/join", roomHandler.JoinRoom)
		roomRoutes.POST("/:roomId/leave", roomHandler.LeaveRoom)
		roomRoutes.GET("/:roomId/host-check", roomHandler.HostCheck)
		roomRoutes.POST("/:roomId/force-close", roomHandler.ForceClose)
		roomRoutes.PUT("/:roomId/content", roomHandler.UpdateContent)
		roomRoutes.GET("/:roomId/whiteboard", whiteboardHandler.GetWhiteboard)
		roomRoutes.PUT("/:roomId/whiteboard", whiteboardHandler.UpdateWhiteboard)
		roomRoutes.DELETE("/:roomId", roomHandler.DeleteRoom)
	}

	wsRoutes := router.Group("/ws")
	wsRoutes.Use(middleware.OptionalAuth(cfg.JWTSecret))
	{
		wsRoutes.GET("/rooms/:roomId", socketHandler.Serve)
	}

	router.GET("/ping", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"message": "pong"}) })
	log.Info("Router setup complete")

	httpServer := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	app := &App{
		Config:         cfg,
		Log:            log,
		DB:             db,
		RedisClient:    redisClient,
		AsynqClient:    asynqClient,
		AsynqServer:    workerServer,
		Hub:            hubInstance,
		HttpServer:     httpServer,
		redisClientOpt: redisClientOpt,
	}
	log.Info("Application assembled successfully")

	return app, nil
}

// Start launches the background routines and the HTTP server.
func (a *App) Start() {
	a.Log.Info("Starting application background routines...")
	go a.Hub.Run()
	a.Log.Info("Hub routine started")

	go a.AsynqServer.Start()
	a.Log.Info("Asynq worker server routine started")

	a.registerPeriodicTasks()

	go func() {
		a.Log.Infof("HTTP server starting to listen on %s", a.HttpServer.Addr)
		if err := a.HttpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.Log.Fatalf("Failed to start HTTP server: %v", err)
		}
		a.Log.Info("HTTP server stopped listening.")
	}()
}

func (a *App) registerPeriodicTasks() {
	a.scheduler = asynq.NewScheduler(a.redisClientOpt, &asynq.SchedulerOpts{})

	payload, err := tasks.NewRoomSweepTask()
	if err != nil {
		a.Log.Errorf("Failed to create room sweep task payload: %v", err)
		return
	}
	task := asynq.NewTask(tasks.TypeRoomSweep, payload)

	schedule := "@every 10m"
	entryID, err := a.scheduler.Register(schedule, task, asynq.Queue("low"))
	if err != nil {
		a.Log.Errorf("Could not register periodic room sweep task: %v", err)
	} else {
		a.Log.Infof("Periodic room sweep task registered with schedule '%s' (EntryID: %s)", schedule, entryID)
	}

	go func() {
		a.Log.Info("Asynq scheduler starting...")
		if err := a.scheduler.Run(); err != nil {
			if !errors.Is(err, asynq.ErrServerClosed) {
				a.Log.Errorf("Asynq scheduler Run() failed: %v", err)
			} else {
				a.Log.Info("Asynq scheduler stopped.")
			}
		}
	}()
}

// Shutdown tears the application down gracefully.
func (a *App) Shutdown() {
	a.Log.Info("Shutting down application...")

	if a.Hub != nil {
		a.Hub.StopAllSubscriptions()
	}

	if a.scheduler != nil {
		a.scheduler.Shutdown()
	}

	if a.AsynqServer != nil {
		a.AsynqServer.Shutdown()
	}

	a.Log.Info("Shutting down HTTP server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.HttpServer.Shutdown(ctx); err != nil {
		a.Log.Errorf("Error shutting down HTTP server: %v", err)
	} else {
		a.Log.Info("HTTP server shut down gracefully.")
	}

	if a.AsynqClient != nil {
		if err := a.AsynqClient.Close(); err != nil {
			a.Log.Errorf("Error closing Asynq client: %v", err)
		}
	}

	if a.RedisClient != nil {
		if err := a.RedisClient.Close(); err != nil {
			a.Log.Errorf("Error closing Redis connection: %v", err)
		}
	}

	a.Log.Info("Application shutdown complete.")
}

// LoggerMiddleware logs each request with latency and status.
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		startTime := time.Now()
		c.Next()
		latency := time.Since(startTime)
		statusCode := c.Writer.Status()
		clientIP := c.ClientIP()
		method := c.Request.Method
		path := c.Request.URL.Path
		if c.Request.URL.RawQuery != "" {
			path = path + "?" + c.Request.URL.RawQuery
		}
		errorMessage := c.Errors.ByType(gin.ErrorTypePrivate).String()

		entry := log.WithFields(logrus.Fields{
			"status_code": statusCode,
			"latency_ms":  float64(latency.Nanoseconds()) / 1e6,
			"client_ip":   clientIP,
			"method":      method,
			"path":        path,
		})
		if errorMessage != "" {
			entry.Error(errorMessage)
		} else if statusCode >= http.StatusInternalServerError {
			entry.Error("Server error")
		} else if statusCode >= http.StatusBadRequest {
			entry.Warn("Client error")
		} else {
			entry.Info("Request handled")
		}
	}
}
