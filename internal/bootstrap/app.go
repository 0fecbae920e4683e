package bootstrap

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	googleauth "protected-docs/internal/auth"
	"protected-docs/internal/documents"
	"protected-docs/internal/downloads"
	"protected-docs/internal/filestore"
	"protected-docs/internal/notify"
	"protected-docs/internal/queue"
	"protected-docs/internal/requests"
	"protected-docs/internal/services/health"
	"protected-docs/internal/shared/auth"
	"protected-docs/internal/shared/config"
	"protected-docs/internal/shared/lock"
	"protected-docs/internal/shared/metrics"
	"protected-docs/internal/shared/server"
	"protected-docs/internal/shared/server/middleware"
	"protected-docs/internal/shared/storage/db"
	"protected-docs/internal/shared/storage/object"
	localstore "protected-docs/internal/shared/storage/object/local"
	s3store "protected-docs/internal/shared/storage/object/s3"
	"protected-docs/internal/tokens"
)

const downloadRateGroup = "DOWNLOAD"

// App holds shared dependencies.
type App struct {
	Config           config.Config
	Router           *gin.Engine
	DB               *sql.DB
	Redis            *redis.Client
	ProtectedStore   filestore.ProtectedStore
	LegacyStore      object.ObjectStore
	Locker           lock.Locker
	Notifier         requests.Notifier
	Signer           *auth.Signer
	DocumentsRepo    documents.Repo
	RequestsRepo     requests.Repo
	FileStore        *filestore.Service
	DocumentsService *documents.Service
	RequestsService  *requests.Service
	TokenIssuer      *tokens.Issuer
	Health           *health.Service
	GoogleAuth       *googleauth.GoogleService
}

// Build prepares shared dependencies and the router.
func Build(cfg config.Config) (*App, error) {
	if strings.TrimSpace(cfg.Env) == "" {
		cfg.Env = "dev"
	}
	if strings.TrimSpace(cfg.ObjectStoreType) == "" {
		cfg.ObjectStoreType = "local"
	}
	ctx := context.Background()

	sqlDB, err := buildDB(ctx, cfg)
	if err != nil {
		return nil, err
	}

	protected, err := buildStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	redisClient, locker, err := buildLocker(ctx, cfg)
	if err != nil {
		return nil, err
	}

	notifier, err := buildNotifier(ctx, cfg)
	if err != nil {
		return nil, err
	}

	signer, err := auth.NewSigner(cfg.JWTSecret, cfg.Env)
	if err != nil {
		return nil, err
	}

	app := &App{
		Config:         cfg,
		DB:             sqlDB,
		Redis:          redisClient,
		ProtectedStore: protected,
		LegacyStore:    localstore.New(cfg.LegacyDir),
		Locker:         locker,
		Notifier:       notifier,
		Signer:         signer,
	}
	if err := buildServices(app); err != nil {
		return nil, err
	}
	if err := app.FileStore.Provision(ctx); err != nil {
		log.Printf("bootstrap: protected root not provisioned; health reports unavailable until it is: %v", err)
	}
	return app, nil
}

// Close releases pooled connections.
func (a *App) Close() error {
	var errs []error
	if a.DB != nil {
		errs = append(errs, a.DB.Close())
	}
	if a.Redis != nil {
		errs = append(errs, a.Redis.Close())
	}
	return errors.Join(errs...)
}

func buildDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if strings.TrimSpace(cfg.DatabaseURL) == "" {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: DATABASE_URL empty; using in-memory repositories")
			return nil, nil
		}
		return nil, fmt.Errorf("DATABASE_URL is required")
	}

	opts := db.OptionsFromEnv(db.DefaultServerOptions())
	sqlDB, err := db.Connect(ctx, cfg.DatabaseURL, opts)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: database connect failed; using in-memory repositories: %v", err)
			return nil, nil
		}
		return nil, err
	}
	return sqlDB, nil
}

func buildStore(ctx context.Context, cfg config.Config) (filestore.ProtectedStore, error) {
	switch cfg.ObjectStoreType {
	case "s3":
		if strings.TrimSpace(cfg.S3Bucket) == "" {
			return nil, fmt.Errorf("OBJECT_STORE=s3 requires S3_BUCKET")
		}
		cc := s3store.ClientConfig{
			Region:          cfg.AWSRegion,
			Endpoint:        cfg.S3Endpoint,
			AccessKeyID:     cfg.S3AccessKeyID,
			SecretAccessKey: cfg.S3SecretAccessKey,
		}
		return s3store.New(ctx, cc, cfg.S3Bucket, cfg.S3Prefix, cfg.SSEKMSKeyID)
	default:
		return localstore.New(cfg.ProtectedDir), nil
	}
}

func buildLocker(ctx context.Context, cfg config.Config) (*redis.Client, lock.Locker, error) {
	if strings.TrimSpace(cfg.RedisURL) == "" {
		return nil, lock.NewMemoryLocker(), nil
	}
	client, err := lock.Connect(ctx, cfg.RedisURL)
	if err != nil {
		if config.IsDevLike(cfg.Env) {
			log.Printf("bootstrap: redis connect failed; using in-process lock: %v", err)
			return nil, lock.NewMemoryLocker(), nil
		}
		return nil, nil, err
	}
	return client, lock.NewRedisLocker(client), nil
}

func buildNotifier(ctx context.Context, cfg config.Config) (requests.Notifier, error) {
	if strings.TrimSpace(cfg.NotifyQueueURL) == "" {
		log.Printf("bootstrap: NOTIFY_SQS_QUEUE_URL empty; notifications are logged only")
		return notify.LogNotifier{}, nil
	}
	client, err := queue.NewSQSClient(ctx, cfg.AWSRegion, cfg.NotifyQueueURL)
	if err != nil {
		return nil, err
	}
	return notify.NewQueueNotifier(client), nil
}

func buildServices(app *App) error {
	if app.DB != nil {
		app.DocumentsRepo = &documents.PGRepo{DB: app.DB}
		app.RequestsRepo = &requests.PGRepo{DB: app.DB}
	} else {
		app.DocumentsRepo = documents.NewMemoryRepo()
		app.RequestsRepo = requests.NewMemoryRepo()
	}

	app.FileStore = &filestore.Service{
		Protected:   app.ProtectedStore,
		Legacy:      app.LegacyStore,
		Docs:        app.DocumentsRepo,
		Locker:      app.Locker,
		Concurrency: app.Config.MigrationConcurrency,
	}
	app.DocumentsService = &documents.Service{Repo: app.DocumentsRepo, Files: app.FileStore}
	app.TokenIssuer = tokens.NewIssuer(app.RequestsRepo, app.Config.PublicBaseURL)
	app.RequestsService = &requests.Service{
		Repo:       app.RequestsRepo,
		Documents:  app.DocumentsService,
		Tokens:     app.TokenIssuer,
		Notifier:   app.Notifier,
		AdminEmail: app.Config.AdminNotifyEmail,
	}
	app.Health = health.NewService(app.DB, app.ProtectedStore)
	app.GoogleAuth = googleauth.NewGoogleService(
		app.Config.GoogleClientID,
		app.Config.GoogleClientSecret,
		app.Config.GoogleRedirectURL,
		app.Config.UIRedirectURL,
		app.Signer,
		app.Config.AdminEmails,
	)

	downloadHandler := &downloads.Handler{
		Tokens:    app.TokenIssuer,
		Documents: app.DocumentsService,
		Files:     app.FileStore,
		Limit: middleware.RateLimit(middleware.RateLimitConfig{
			DefaultGroup: downloadRateGroup,
			Rules: map[string]middleware.RateLimitRule{
				downloadRateGroup: {Rate: app.Config.DownloadRatePerSec, Burst: app.Config.DownloadBurst},
			},
			OnLimited: func(*gin.Context) { metrics.ObserveDownload("rate_limited") },
		}),
	}

	app.Router = server.NewRouter(server.RouterDeps{
		Config:          app.Config,
		Verifier:        app.Signer,
		Health:          app.Health,
		GoogleAuth:      app.GoogleAuth,
		DocumentHandler: documents.NewHandler(app.DocumentsService),
		RequestHandler:  requests.NewHandler(app.RequestsService),
		DownloadHandler: downloadHandler,
		FileHandler:     filestore.NewHandler(app.FileStore),
	})
	if app.Router == nil {
		return errors.New("failed to initialize router")
	}
	return nil
}
