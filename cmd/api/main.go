package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"github.com/Akhilsri/SheetSolver-sub000/internal/config"
	"github.com/Akhilsri/SheetSolver-sub000/internal/handler"
	"github.com/Akhilsri/SheetSolver-sub000/internal/middleware"
	pgRepo "github.com/Akhilsri/SheetSolver-sub000/internal/repository/postgres"
	redisRepo "github.com/Akhilsri/SheetSolver-sub000/internal/repository/redis"
	"github.com/Akhilsri/SheetSolver-sub000/internal/service"
	ws "github.com/Akhilsri/SheetSolver-sub000/internal/websocket"
	"github.com/Akhilsri/SheetSolver-sub000/pkg/auth"
	"github.com/Akhilsri/SheetSolver-sub000/pkg/database"
)

func main() {
	// Загружаем конфигурацию
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config/config.yaml"
	}
	log.Printf("Загрузка конфигурации из %s", configPath)

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Printf("Failed to load config: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к PostgreSQL
	db, err := database.NewPostgresDB(cfg.Database.PostgresConnectionString())
	if err != nil {
		log.Printf("Failed to connect to database: %v", err)
		os.Exit(1)
	}

	// Применяем миграции
	if err := database.MigrateDB(db, cfg.Database.MigrationsPath); err != nil {
		log.Printf("Failed to migrate database: %v", err)
		os.Exit(1)
	}

	// Инициализируем подключение к Redis с использованием унифицированной конфигурации
	redisClient, err := database.NewUniversalRedisClient(cfg.Redis)
	if err != nil {
		log.Printf("Failed to connect to Redis: %v", err)
		os.Exit(1)
	}
	log.Println("Successfully connected to Redis")

	// Инициализируем репозитории
	questionRepo := pgRepo.NewQuestionRepo(db)
	duelRepo := pgRepo.NewDuelRepo(db)
	ratingRepo := pgRepo.NewDuelRatingRepo(db)

	cacheRepo, err := redisRepo.NewCacheRepo(redisClient)
	if err != nil {
		log.Printf("Failed to initialize CacheRepo: %v", err)
		os.Exit(1)
	}

	// Публикация duel.finished для внешних сервисов включается флагом cluster.enabled
	var pubSubProvider ws.PubSubProvider
	if cfg.WebSocket.Cluster.Enabled {
		redisProvider, errProv := ws.NewRedisPubSub(redisClient)
		if errProv != nil {
			log.Printf("Ошибка при создании Redis PubSub провайдера: %v. События дуэлей публиковаться не будут.", errProv)
		} else {
			log.Println("Redis PubSub провайдер успешно инициализирован")
			pubSubProvider = redisProvider
		}
	}

	// Тикеты WebSocket. Пустой секрет - режим разработки.
	var ticketService *auth.TicketService
	if cfg.JWT.WSTicketSecret != "" {
		ticketService, err = auth.NewTicketService(cfg.JWT.WSTicketSecret, 0)
		if err != nil {
			log.Printf("Failed to initialize TicketService: %v", err)
			os.Exit(1)
		}
	} else {
		log.Println("WebSocket: JWT_WS_TICKET_SECRET не задан, включен режим разработки (?user_id=)")
	}

	// WebSocket Hub и Manager
	wsLimits := cfg.WebSocket.Limits
	clientConfig := ws.ClientConfig{
		BufferSize:     cfg.WebSocket.Buffers.ClientSendBuffer,
		PingInterval:   time.Duration(cfg.WebSocket.Ping.Interval) * time.Second,
		PongWait:       time.Duration(wsLimits.PongWait) * time.Second,
		WriteWait:      time.Duration(wsLimits.WriteWait) * time.Second,
		MaxMessageSize: int64(wsLimits.MaxMessageSize),
	}
	wsHub := ws.NewHub(time.Minute, 2*time.Duration(wsLimits.PongWait)*time.Second)
	wsManager := ws.NewManager(wsHub)

	// Инициализируем сервисы
	topicService := service.NewTopicService(questionRepo, cacheRepo, cfg.Duel.Topics, cfg.Duel.TopicsRefresh)
	ratingService := service.NewRatingService(ratingRepo)
	duelService := service.NewDuelService(duelRepo)
	duelManager, err := service.NewDuelManager(cfg.Duel, duelRepo, questionRepo, ratingService, topicService, wsManager, pubSubProvider)
	if err != nil {
		log.Printf("Failed to initialize DuelManager: %v", err)
		os.Exit(1)
	}

	// Обработчики. WSHandler подписывается на отключения до запуска хаба.
	wsHandler := handler.NewWSHandler(wsManager, duelManager.Engine(), ticketService, cfg.Server.AllowedOrigins, clientConfig)
	duelHandler := handler.NewDuelHandler(duelService, ratingService, duelManager)

	go wsHub.Run()
	duelManager.Start()

	rateLimiter := middleware.NewRateLimiter(redisClient)

	// Инициализируем роутер Gin
	router := gin.Default()

	isProduction := gin.Mode() == gin.ReleaseMode
	if isProduction {
		// Production: не доверять прокси-заголовкам
		if err := router.SetTrustedProxies(nil); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	} else {
		if err := router.SetTrustedProxies([]string{"127.0.0.1", "::1"}); err != nil {
			log.Printf("Warning: failed to set trusted proxies: %v", err)
		}
	}

	// Настройка CORS (тот же список, что и для Origin WebSocket)
	router.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.Server.AllowedOrigins,
		AllowMethods:     []string{"GET", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length", "Content-Disposition"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	api := router.Group("/api")
	api.Use(rateLimiter.LimitByIP(middleware.APIRateLimitConfig(cfg.RateLimit.APIPerMinute)))
	duelHandler.RegisterRoutes(api.Group("/duels"))

	// WebSocket маршрут
	router.GET("/ws", rateLimiter.LimitByIP(middleware.WSConnectRateLimitConfig(cfg.RateLimit.WSPerMinute)), wsHandler.HandleConnection)

	// Настраиваем HTTP сервер с тайм-аутами для защиты от slow client attacks
	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	go func() {
		log.Printf("Starting server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Printf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	// Движок останавливается раньше хаба: отключения при остановке хаба уже не меняют результаты
	duelManager.Shutdown(10 * time.Second)
	wsHub.Stop()

	if pubSubProvider != nil {
		if err := pubSubProvider.Close(); err != nil {
			log.Printf("Error closing PubSub provider: %v", err)
		}
	}
	if err := redisClient.Close(); err != nil {
		log.Printf("Error closing Redis client: %v", err)
	}
	if sqlDB, err := db.DB(); err == nil {
		sqlDB.Close()
	}

	log.Println("Server exited properly")
}
