package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"

	"github.com/aifightclub/arena/internal/api"
	"github.com/aifightclub/arena/internal/cache"
	"github.com/aifightclub/arena/internal/conversation"
	"github.com/aifightclub/arena/internal/evaluation"
	"github.com/aifightclub/arena/internal/genai"
	"github.com/aifightclub/arena/internal/journey"
	"github.com/aifightclub/arena/internal/store"
	"github.com/aifightclub/arena/internal/util"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for arena state data
	DefaultStateDir = "/var/lib/arena"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "arena.db"
	// DefaultAPIAddr is the default API listen address
	DefaultAPIAddr = ":8080"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	slog.Info("Bootstrapping arena backend")
	if err := run(flags); err != nil {
		slog.Error("arena failed to run", "error", err)
		os.Exit(1)
	}
}

// Config holds environment configuration
type Config struct {
	DbDriver       string
	DatabaseURL    string
	StateDir       string
	OpenAIKey      string
	OpenAIModel    string
	APIAddr        string
	RedisAddr      string
	SessionTimeout time.Duration
	InsightsTTL    time.Duration
}

// Flags holds command line flag values
type Flags struct {
	stateDir       *string
	dbDriver       *string
	dbDSN          *string
	openaiKey      *string
	openaiModel    *string
	apiAddr        *string
	redisAddr      *string
	sessionTimeout time.Duration
	insightsTTL    time.Duration
}

// initializeLogger sets up structured logging. DEBUG_LOG enables debug level.
func initializeLogger() {
	level := slog.LevelInfo
	if util.ParseBoolEnv("DEBUG_LOG", false) {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DbDriver:       os.Getenv("DB_DRIVER"),
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		StateDir:       os.Getenv("ARENA_STATE_DIR"),
		OpenAIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIModel:    os.Getenv("OPENAI_MODEL"),
		APIAddr:        os.Getenv("API_ADDR"),
		RedisAddr:      os.Getenv("REDIS_ADDR"),
		SessionTimeout: time.Duration(util.ParseIntEnv("SESSION_TIMEOUT_MINUTES", 30)) * time.Minute,
		InsightsTTL:    util.ParseDurationEnv("INSIGHTS_CACHE_TTL", journey.DefaultInsightsTTL),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No ARENA_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.APIAddr == "" {
		config.APIAddr = DefaultAPIAddr
	}

	slog.Debug("environment variables loaded",
		"DB_DRIVER", config.DbDriver,
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"ARENA_STATE_DIR", config.StateDir,
		"OPENAI_API_KEY_SET", config.OpenAIKey != "",
		"OPENAI_MODEL", config.OpenAIModel,
		"API_ADDR", config.APIAddr,
		"REDIS_ADDR", config.RedisAddr,
		"SESSION_TIMEOUT", config.SessionTimeout,
		"INSIGHTS_CACHE_TTL", config.InsightsTTL)

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:       flag.String("state-dir", config.StateDir, "Directory for arena state data"),
		dbDriver:       flag.String("db-driver", config.DbDriver, "Database driver (postgres or sqlite3)"),
		dbDSN:          flag.String("db-dsn", config.DatabaseURL, "Database connection string"),
		openaiKey:      flag.String("openai-api-key", config.OpenAIKey, "OpenAI API key"),
		openaiModel:    flag.String("openai-model", config.OpenAIModel, "OpenAI model for evaluations"),
		apiAddr:        flag.String("api-addr", config.APIAddr, "API server listen address"),
		redisAddr:      flag.String("redis-addr", config.RedisAddr, "Redis address for the insights cache"),
		sessionTimeout: config.SessionTimeout,
		insightsTTL:    config.InsightsTTL,
	}
	flag.Parse()
	return flags
}

// ensureDirectoriesExist creates the state directory when SQLite is used.
func ensureDirectoriesExist(flags Flags) error {
	if *flags.dbDSN != "" && *flags.dbDriver != "sqlite3" {
		return nil
	}
	return os.MkdirAll(*flags.stateDir, 0o755)
}

// buildStore selects the storage backend: Postgres when a DSN is configured,
// SQLite in the state directory otherwise.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN != "" && *flags.dbDriver != "sqlite3" {
		slog.Info("Using Postgres store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	path := *flags.dbDSN
	if path == "" {
		path = filepath.Join(*flags.stateDir, DefaultDBFileName)
	}
	slog.Info("Using SQLite store", "path", path)
	return store.NewSQLiteStore(store.WithSQLitePath(path))
}

// buildCache connects the insights cache, falling back to a no-op cache when
// Redis is not configured or unreachable.
func buildCache(flags Flags) cache.Cache {
	if *flags.redisAddr == "" {
		slog.Debug("No REDIS_ADDR configured, insights caching disabled")
		return cache.NewNoopCache()
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := cache.NewRedisCache(ctx, *flags.redisAddr)
	if err != nil {
		slog.Warn("Redis unavailable, insights caching disabled", "error", err)
		return cache.NewNoopCache()
	}
	return c
}

// run wires the modules together and starts the API server.
func run(flags Flags) error {
	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	genaiOpts := []genai.Option{}
	if *flags.openaiKey != "" {
		genaiOpts = append(genaiOpts, genai.WithAPIKey(*flags.openaiKey))
	}
	if *flags.openaiModel != "" {
		genaiOpts = append(genaiOpts, genai.WithModel(*flags.openaiModel))
	}
	llm, err := genai.NewClient(genaiOpts...)
	if err != nil {
		return err
	}

	states := conversation.NewStoreBasedStateManager(st)
	journeySvc := journey.NewService(st, buildCache(flags), journey.Config{SessionTimeout: flags.sessionTimeout}, flags.insightsTTL)
	evalSvc := evaluation.NewService(states, llm, st, journeySvc)

	server := api.NewServer(evalSvc, journeySvc, states, st)
	return server.Run(*flags.apiAddr)
}
