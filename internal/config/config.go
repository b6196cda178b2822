package config

import (
	"fmt"
	"log"
	"os"
	"time"

	"github.com/spf13/viper"
)

// Config хранит все настройки приложения
type Config struct {
	Server    ServerConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	JWT       JWTConfig
	WebSocket WebSocketConfig
	Duel      DuelConfig
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// ServerConfig содержит настройки HTTP сервера
type ServerConfig struct {
	Port         string
	ReadTimeout  int
	WriteTimeout int
	// AllowedOrigins: список разрешенных Origin для CORS и WebSocket
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// DatabaseConfig содержит настройки подключения к PostgreSQL
type DatabaseConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
	// MigrationsPath: путь к SQL-миграциям в формате golang-migrate
	MigrationsPath string `mapstructure:"migrations_path"`
}

// RedisConfig содержит унифицированные настройки подключения к Redis
// Поддерживает режимы: single, sentinel, cluster
type RedisConfig struct {
	// Mode: Режим работы Redis ("single", "sentinel", "cluster"). По умолчанию "single".
	Mode string `mapstructure:"mode"`

	// Addrs: Список адресов Redis (хост:порт). Используется для всех режимов.
	Addrs []string `mapstructure:"addrs"`

	// Addr: Альтернативный адрес для режима 'single'.
	Addr string `mapstructure:"addr"`

	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`

	// MasterName: Имя мастер-сервера Redis (только для режима "sentinel")
	MasterName string `mapstructure:"master_name"`

	MaxRetries      int `mapstructure:"max_retries"`
	MinRetryBackoff int `mapstructure:"min_retry_backoff"` // мс
	MaxRetryBackoff int `mapstructure:"max_retry_backoff"` // мс

	// Пул и таймауты. Redis стоит на пути find_match (каталог тем) и каждого запроса (rate limit),
	// поэтому таймауты короче, чем у go-redis по умолчанию.
	PoolSize     int           `mapstructure:"pool_size"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// JWTConfig содержит настройки проверки WebSocket-тикетов.
// Тикеты выпускает основное приложение, здесь они только проверяются.
type JWTConfig struct {
	// WSTicketSecret: HS256-секрет тикетов. Пустое значение включает режим разработки (?user_id=).
	WSTicketSecret string `mapstructure:"ws_ticket_secret"`
}

// WebSocketConfig содержит настройки WebSocket-подсистемы
type WebSocketConfig struct {
	Buffers BuffersConfig
	Ping    PingConfig
	Cluster ClusterConfig
	Limits  LimitsConfig
}

// BuffersConfig содержит настройки буферов
type BuffersConfig struct {
	ClientSendBuffer int `mapstructure:"client_send_buffer"`
}

// PingConfig содержит настройки пингов (в секундах)
type PingConfig struct {
	Interval int
	Timeout  int
}

// ClusterConfig содержит настройки публикации событий в Redis
type ClusterConfig struct {
	Enabled    bool
	InstanceID string `mapstructure:"instance_id"`
}

// LimitsConfig содержит настройки ограничений
type LimitsConfig struct {
	MaxMessageSize int `mapstructure:"max_message_size"`
	WriteWait      int `mapstructure:"write_wait"`
	PongWait       int `mapstructure:"pong_wait"`
}

// DuelConfig содержит параметры дуэлей
type DuelConfig struct {
	QuestionCount    int           `mapstructure:"question_count"`
	QuestionDuration time.Duration `mapstructure:"question_duration"`
	RevealGrace      time.Duration `mapstructure:"reveal_grace"`
	ReadyTimeout     time.Duration `mapstructure:"ready_timeout"`
	CorrectReward    int           `mapstructure:"correct_reward"`
	StoreTimeout     time.Duration `mapstructure:"store_timeout"`
	PersistRetries   int           `mapstructure:"persist_retries"`
	Topics           []string      `mapstructure:"topics"`
	TopicsRefresh    time.Duration `mapstructure:"topics_refresh"`
	EventsChannel    string        `mapstructure:"events_channel"`
}

// RateLimitConfig содержит лимиты запросов (запросов в окно)
type RateLimitConfig struct {
	WSPerMinute  int `mapstructure:"ws_per_minute"`
	APIPerMinute int `mapstructure:"api_per_minute"`
}

// PostgresConnectionString формирует строку подключения к PostgreSQL
func (d *DatabaseConfig) PostgresConnectionString() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.DBName, d.SSLMode,
	)
}

func setDefaults(vip *viper.Viper) {
	vip.SetDefault("server.port", "8080")
	vip.SetDefault("server.readtimeout", 10)
	vip.SetDefault("server.writetimeout", 10)
	vip.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	vip.SetDefault("database.port", "5432")
	vip.SetDefault("database.sslmode", "disable")
	vip.SetDefault("database.migrations_path", "file://migrations")

	vip.SetDefault("redis.mode", "single")
	vip.SetDefault("redis.addr", "localhost:6379")
	vip.SetDefault("redis.pool_size", 20)
	vip.SetDefault("redis.dial_timeout", "2s")
	vip.SetDefault("redis.read_timeout", "1s")
	vip.SetDefault("redis.write_timeout", "1s")

	vip.SetDefault("websocket.buffers.client_send_buffer", 64)
	vip.SetDefault("websocket.ping.interval", 54)
	vip.SetDefault("websocket.limits.max_message_size", 4096)
	vip.SetDefault("websocket.limits.write_wait", 10)
	vip.SetDefault("websocket.limits.pong_wait", 60)

	vip.SetDefault("duel.question_count", 10)
	vip.SetDefault("duel.question_duration", 10*time.Second)
	vip.SetDefault("duel.reveal_grace", 3*time.Second)
	vip.SetDefault("duel.ready_timeout", 30*time.Second)
	vip.SetDefault("duel.correct_reward", 10)
	vip.SetDefault("duel.store_timeout", 5*time.Second)
	vip.SetDefault("duel.persist_retries", 3)
	vip.SetDefault("duel.topics", []string{"Arrays", "Strings", "Linked List", "Trees", "Graphs", "Dynamic Programming"})
	vip.SetDefault("duel.topics_refresh", 5*time.Minute)
	vip.SetDefault("duel.events_channel", "duel:events")

	vip.SetDefault("rate_limit.ws_per_minute", 30)
	vip.SetDefault("rate_limit.api_per_minute", 120)
}

// Load загружает конфигурацию из файла
func Load(configPath string) (*Config, error) {
	vip := viper.New() // Используем новый экземпляр Viper, чтобы избежать глобального состояния

	// 1. Значения по умолчанию
	setDefaults(vip)

	// 2. Привязываем переменные окружения ЯВНО
	vip.BindEnv("database.host", "DATABASE_HOST")
	vip.BindEnv("database.port", "DATABASE_PORT")
	vip.BindEnv("database.user", "DATABASE_USER")
	vip.BindEnv("database.password", "DATABASE_PASSWORD")
	vip.BindEnv("database.dbname", "DATABASE_DBNAME")
	vip.BindEnv("database.sslmode", "DATABASE_SSLMODE")
	vip.BindEnv("database.migrations_path", "DATABASE_MIGRATIONS_PATH")

	vip.BindEnv("redis.mode", "REDIS_MODE")
	vip.BindEnv("redis.addrs", "REDIS_ADDRS")
	vip.BindEnv("redis.addr", "REDIS_ADDR")
	vip.BindEnv("redis.password", "REDIS_PASSWORD")
	vip.BindEnv("redis.db", "REDIS_DB")
	vip.BindEnv("redis.master_name", "REDIS_MASTER_NAME")
	vip.BindEnv("redis.pool_size", "REDIS_POOL_SIZE")
	vip.BindEnv("redis.dial_timeout", "REDIS_DIAL_TIMEOUT")
	vip.BindEnv("redis.read_timeout", "REDIS_READ_TIMEOUT")
	vip.BindEnv("redis.write_timeout", "REDIS_WRITE_TIMEOUT")

	vip.BindEnv("jwt.ws_ticket_secret", "JWT_WS_TICKET_SECRET")

	vip.BindEnv("server.port", "SERVER_PORT")
	vip.BindEnv("server.allowed_origins", "SERVER_ALLOWED_ORIGINS")

	vip.BindEnv("websocket.cluster.enabled", "WEBSOCKET_CLUSTER_ENABLED")
	vip.BindEnv("websocket.cluster.instance_id", "WEBSOCKET_CLUSTER_INSTANCE_ID")

	vip.BindEnv("duel.question_count", "DUEL_QUESTION_COUNT")
	vip.BindEnv("duel.question_duration", "DUEL_QUESTION_DURATION")
	vip.BindEnv("duel.reveal_grace", "DUEL_REVEAL_GRACE")
	vip.BindEnv("duel.ready_timeout", "DUEL_READY_TIMEOUT")
	vip.BindEnv("duel.correct_reward", "DUEL_CORRECT_REWARD")
	vip.BindEnv("duel.store_timeout", "DUEL_STORE_TIMEOUT")
	vip.BindEnv("duel.persist_retries", "DUEL_PERSIST_RETRIES")
	vip.BindEnv("duel.topics", "DUEL_TOPICS")
	vip.BindEnv("duel.topics_refresh", "DUEL_TOPICS_REFRESH")
	vip.BindEnv("duel.events_channel", "DUEL_EVENTS_CHANNEL")

	vip.BindEnv("rate_limit.ws_per_minute", "RATE_LIMIT_WS_PER_MINUTE")
	vip.BindEnv("rate_limit.api_per_minute", "RATE_LIMIT_API_PER_MINUTE")

	// 3. Файл конфигурации (не страшно, если его нет, т.к. есть BindEnv)
	if configPath != "" {
		vip.SetConfigFile(configPath)
		if err := vip.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); ok || os.IsNotExist(err) {
				log.Printf("Файл конфигурации '%s' не найден, используются переменные окружения/умолчания.", configPath)
			} else {
				log.Printf("Предупреждение: не удалось прочитать файл конфигурации '%s': %v", configPath, err)
			}
		}
	}

	// 4. Анмаршалим конфигурацию (Viper объединит значения из файла и привязанных env vars)
	var cfg Config
	if err := vip.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if os.Getenv("GIN_MODE") != "release" {
		log.Printf("--- Загруженные значения конфигурации ---")
		log.Printf("Database Host: %s", cfg.Database.Host)
		log.Printf("Database Name: %s", cfg.Database.DBName)
		log.Printf("Redis Addr: %s (mode: %s)", cfg.Redis.Addr, cfg.Redis.Mode)
		log.Printf("Server Port: %s", cfg.Server.Port)
		log.Printf("WS ticket secret set: %t", cfg.JWT.WSTicketSecret != "")
		log.Printf("Duel: %d questions, %s per question, topics=%v", cfg.Duel.QuestionCount, cfg.Duel.QuestionDuration, cfg.Duel.Topics)
		log.Printf("-----------------------------------------")
	}

	// 5. Проверка обязательных параметров
	if cfg.Database.Host == "" || cfg.Database.DBName == "" || cfg.Database.User == "" {
		return nil, fmt.Errorf("database configuration (host, dbname, user) is incomplete in config (check DATABASE_HOST, DATABASE_DBNAME, DATABASE_USER env vars)")
	}
	if cfg.Duel.QuestionCount <= 0 {
		return nil, fmt.Errorf("duel.question_count must be positive, got %d", cfg.Duel.QuestionCount)
	}
	if cfg.Duel.QuestionDuration <= 0 || cfg.Duel.RevealGrace < 0 {
		return nil, fmt.Errorf("duel timings are invalid (question_duration=%s, reveal_grace=%s)", cfg.Duel.QuestionDuration, cfg.Duel.RevealGrace)
	}
	if len(cfg.Duel.Topics) == 0 {
		return nil, fmt.Errorf("duel.topics must not be empty (check DUEL_TOPICS env var)")
	}
	if os.Getenv("GIN_MODE") == "release" && cfg.JWT.WSTicketSecret == "" {
		log.Println("Warning: JWT_WS_TICKET_SECRET is not set in release mode, WebSocket connections accept ?user_id= without verification.")
	}

	return &cfg, nil
}
