package main

// @title           Aide Core API
// @version         1.0
// @description     OAuth integration layer for the Aide personal assistant. Manages provider authorizations, token lifecycle, and user-scoped provider clients.

// @contact.name   Aide OSS
// @contact.url    https://github.com/custodia-labs/aide-core/issues

// @host      localhost:8080
// @BasePath  /api/v1
// @schemes   http https

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token. Format: "Bearer {token}"

import (
	"context"
	"errors"
	"flag"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/custodia-labs/aide-core/internal/adapters/driven/auth"
	"github.com/custodia-labs/aide-core/internal/adapters/driven/postgres"
	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers"
	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers/google"
	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers/microsoft"
	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers/notion"
	"github.com/custodia-labs/aide-core/internal/adapters/driven/providers/youtube"
	redisadapter "github.com/custodia-labs/aide-core/internal/adapters/driven/redis"
	httpserver "github.com/custodia-labs/aide-core/internal/adapters/driving/http"
	"github.com/custodia-labs/aide-core/internal/config"
	"github.com/custodia-labs/aide-core/internal/core/ports/driven"
	"github.com/custodia-labs/aide-core/internal/core/services"
	"github.com/custodia-labs/aide-core/internal/tools"
)

var version = "dev"

func main() {
	reencrypt := flag.Bool("reencrypt", false,
		"rotate the token encryption key: re-encrypt stored token records from ENCRYPTION_SECRET_OLD to ENCRYPTION_SECRET, then exit")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Setup context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if *reencrypt {
		if err := runReencrypt(ctx, cfg); err != nil {
			log.Fatalf("Key rotation failed: %v", err)
		}
		return
	}

	log.Printf("aide-core %s starting", version)

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		log.Println("Shutdown signal received, stopping...")
		cancel()
	}()

	// ===== Initialize PostgreSQL =====
	log.Println("Connecting to PostgreSQL...")
	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: time.Minute,
	})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer db.Close()

	// Initialize schema (idempotent)
	if err := db.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}
	log.Println("PostgreSQL connected and schema initialized")

	// ===== Initialize Redis (optional) =====
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		log.Println("Connecting to Redis...")
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			log.Fatalf("Failed to parse Redis URL: %v", err)
		}
		redisClient = redis.NewClient(opts)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Fatalf("Failed to connect to Redis: %v", err)
		}
		defer redisClient.Close()
		log.Println("Redis connected")
	}

	// ===== Token encryption =====
	key, err := postgres.DeriveKey(cfg.EncryptionSecret)
	if err != nil {
		log.Fatalf("Failed to derive encryption key: %v", err)
	}
	encryptor, err := postgres.NewSecretEncryptor(key)
	if err != nil {
		log.Fatalf("Failed to create encryptor: %v", err)
	}

	// ===== PostgreSQL Stores =====
	integrationStore := postgres.NewIntegrationStore(db)
	tokenStore := postgres.NewTokenStore(db, encryptor)
	auditLog := postgres.NewAuditLog(db)

	// ===== Auth State Store (Redis if available, otherwise PostgreSQL) =====
	var stateStore driven.AuthStateStore
	if redisClient != nil {
		stateStore = redisadapter.NewAuthStateStore(redisClient, postgres.DefaultAuthStateTTL)
		log.Println("Using Redis auth state store")
	} else {
		stateStore = postgres.NewAuthStateStore(db)
		log.Println("Using PostgreSQL auth state store")
	}

	// ===== Distributed Lock (Redis if available, otherwise PostgreSQL advisory locks) =====
	var distributedLock driven.DistributedLock
	if redisClient != nil {
		distributedLock = redisadapter.NewLock(redisClient)
		log.Println("Using Redis distributed lock")
	} else {
		distributedLock = postgres.NewAdvisoryLock(db)
		log.Println("Using PostgreSQL advisory lock")
	}

	// ===== Driven adapters =====
	authAdapter := auth.NewAdapter(cfg.JWTSecret)

	registry := providers.NewRegistry()
	registry.Register(google.New(cfg.Google.Credentials()))
	registry.Register(microsoft.New(cfg.Microsoft.Credentials()))
	registry.Register(notion.New(cfg.Notion.Credentials()))
	registry.Register(youtube.New(cfg.YouTube.Credentials()))
	for _, provider := range registry.Supported() {
		adapter := registry.Get(provider)
		log.Printf("Provider %s registered (configured=%t)", provider, adapter.Configured())
	}

	// Services (core business logic)
	logger := slog.Default()
	tokenService := services.NewTokenService(services.TokenServiceConfig{
		IntegrationStore: integrationStore,
		TokenStore:       tokenStore,
		AuditLog:         auditLog,
		Registry:         registry,
		Logger:           logger,
	})
	securityService := services.NewSecurityService(services.SecurityServiceConfig{
		StateStore: stateStore,
		AuditLog:   auditLog,
		Logger:     logger,
	})
	integrationService := services.NewIntegrationService(services.IntegrationServiceConfig{
		IntegrationStore: integrationStore,
		TokenStore:       tokenStore,
		AuditLog:         auditLog,
		TokenService:     tokenService,
		Logger:           logger,
	})
	oauthService := services.NewOAuthService(services.OAuthServiceConfig{
		Registry:     registry,
		Security:     securityService,
		Integrations: integrationService,
		BaseURL:      cfg.BaseURL,
		Logger:       logger,
	})
	clientFactory := services.NewClientFactory(services.ClientFactoryConfig{
		IntegrationStore: integrationStore,
		TokenService:     tokenService,
		Logger:           logger,
	})
	// Token changes must drop cached clients; both sides exist now.
	tokenService.SetInvalidator(clientFactory)

	toolRegistry := tools.NewRegistry(clientFactory)

	// ===== Sweeper =====
	if cfg.SweepEnabled {
		sweeper := services.NewSweeper(services.SweeperConfig{
			IntegrationStore:   integrationStore,
			AuthStateStore:     stateStore,
			TokenService:       tokenService,
			IntegrationService: integrationService,
			Lock:               distributedLock,
			Logger:             logger,
			Interval:           cfg.SweepInterval,
			RefreshAhead:       cfg.RefreshAhead,
		})
		if err := sweeper.Start(ctx); err != nil {
			log.Fatalf("Failed to start sweeper: %v", err)
		}
		defer sweeper.Stop()
		log.Printf("Sweeper enabled (interval=%s)", cfg.SweepInterval)
	} else {
		log.Println("Sweeper disabled via SWEEP_ENABLED=false")
	}

	// ===== HTTP server =====
	var redisPinger httpserver.Pinger
	if redisClient != nil {
		redisPinger = redisadapter.NewLock(redisClient)
	}
	server := httpserver.NewServer(
		httpserver.Config{
			Host:    cfg.Host,
			Port:    cfg.Port,
			Version: version,
			Logger:  logger,
		},
		oauthService,
		integrationService,
		tokenService,
		securityService,
		toolRegistry,
		authAdapter,
		db,
		redisPinger,
	)

	log.Printf("API server starting on :%d", cfg.Port)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}
}

// runReencrypt is the offline key-rotation pass: decrypt every stored token
// blob with the old secret's key and rewrite it under the current one.
func runReencrypt(ctx context.Context, cfg *config.Config) error {
	if cfg.EncryptionSecretOld == "" {
		return errors.New("ENCRYPTION_SECRET_OLD must be set to the secret the stored blobs were written under")
	}
	if cfg.EncryptionSecretOld == cfg.EncryptionSecret {
		return errors.New("ENCRYPTION_SECRET_OLD and ENCRYPTION_SECRET are identical; nothing to rotate")
	}

	oldKey, err := postgres.DeriveKey(cfg.EncryptionSecretOld)
	if err != nil {
		return err
	}
	oldEncryptor, err := postgres.NewSecretEncryptor(oldKey)
	if err != nil {
		return err
	}
	newKey, err := postgres.DeriveKey(cfg.EncryptionSecret)
	if err != nil {
		return err
	}
	newEncryptor, err := postgres.NewSecretEncryptor(newKey)
	if err != nil {
		return err
	}

	db, err := postgres.Connect(ctx, postgres.Config{
		URL:             cfg.DatabaseURL,
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: time.Minute,
	})
	if err != nil {
		return err
	}
	defer db.Close()

	n, err := postgres.NewTokenStore(db, oldEncryptor).ReencryptAll(ctx, newEncryptor)
	if err != nil {
		return err
	}
	log.Printf("Re-encrypted %d token records", n)
	return nil
}
