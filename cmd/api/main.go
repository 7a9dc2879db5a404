package main

import (
	"context"
	"database/sql"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/bryanwahyu/deepfake-detector/internal/application"
	appdet "github.com/bryanwahyu/deepfake-detector/internal/application/detection"
	"github.com/bryanwahyu/deepfake-detector/internal/config"
	domain "github.com/bryanwahyu/deepfake-detector/internal/domain/detection"
	openaic "github.com/bryanwahyu/deepfake-detector/internal/infra/ai/openai"
	"github.com/bryanwahyu/deepfake-detector/internal/infra/db/migrations"
	mysqlp "github.com/bryanwahyu/deepfake-detector/internal/infra/db/mysql"
	pgp "github.com/bryanwahyu/deepfake-detector/internal/infra/db/postgres"
	sqlitep "github.com/bryanwahyu/deepfake-detector/internal/infra/db/sqlite"
	"github.com/bryanwahyu/deepfake-detector/internal/infra/httpserver"
	"github.com/bryanwahyu/deepfake-detector/internal/infra/provider/mock"
	"github.com/bryanwahyu/deepfake-detector/internal/infra/storage"
	"github.com/bryanwahyu/deepfake-detector/internal/middleware"
)

func main() {
	// path config.yaml
	path := "config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		path = v
	}

	cfg, err := config.Load(path)
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	checkers := map[string]middleware.HealthChecker{}

	// history database
	db, repo, err := openRepository(ctx, cfg)
	if err != nil {
		log.Fatalf("database init error: %v", err)
	}
	if db != nil {
		defer db.Close()
		checkers["database"] = &middleware.DatabaseHealthChecker{DB: db}
	}

	// preview store
	var previews domain.PreviewStore
	var blobs httpserver.BlobSource
	if cfg.Minio.Enabled {
		store, err := storage.NewMinio(ctx,
			cfg.Minio.Endpoint,
			cfg.Minio.Region,
			cfg.Minio.BucketName,
			cfg.Minio.AccessKey,
			cfg.Minio.SecretKey,
			cfg.Minio.UseSSL,
			cfg.Minio.Prefix,
			cfg.PresignExpiry(),
		)
		if err != nil {
			log.Fatalf("minio init error: %v", err)
		}
		previews = store
		checkers["storage"] = store
	} else {
		store := storage.NewMemoryStore(cfg.Server.PublicBaseURL)
		previews = store
		blobs = store
		checkers["storage"] = store
	}

	// result providers
	providers := mock.Providers()
	if cfg.AI.Provider == "openai" {
		providers[domain.KindImage] = openaic.NewClientWithBaseURL(cfg.AI.APIKey, cfg.AI.Model, cfg.AI.BaseURL)
		log.Printf("image provider=openai model=%s", cfg.AI.Model)
	}

	svc := &appdet.Service{
		Providers: providers,
		Previews:  previews,
		Repo:      repo,
		Clock:     application.SystemClock{},
		Simulation: appdet.SimulationConfig{
			Tick:   cfg.Tick(),
			Settle: cfg.Settle(),
		},
		SessionTTL: cfg.SessionTTL(),
		Observer:   middleware.Recorder{},
	}
	go svc.RunJanitor(ctx, time.Minute)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.RequestsPerMinute)
	defer limiter.Close()

	mux := chi.NewRouter()
	mux.Mount("/", httpserver.NewRouter(svc, httpserver.Options{
		Blobs:       blobs,
		Checkers:    checkers,
		CORSOrigins: cfg.Server.CORSOrigins,
		APIKeys:     middleware.KeysFromList(cfg.Server.APIKeys),
		Limiter:     limiter,
	}))

	addr := fmt.Sprintf(":%d", cfg.Server.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		// uploads up to 50 MiB
		ReadTimeout: 2 * time.Minute,
		IdleTimeout: 60 * time.Second,
		// no WriteTimeout: websocket event streams are long-lived
	}

	go func() {
		log.Printf("server listening on %s db=%s ai=%s minio=%t", addr, cfg.Database.Driver, cfg.AI.Provider, cfg.Minio.Enabled)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down server...")

	ctx2, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx2); err != nil {
		log.Printf("shutdown error: %v", err)
	}
	svc.Shutdown(ctx2)
}

func openRepository(ctx context.Context, cfg *config.Config) (*sql.DB, domain.Repository, error) {
	var (
		db   *sql.DB
		err  error
		repo domain.Repository
	)
	switch cfg.Database.Driver {
	case "none":
		return nil, nil, nil
	case "sqlite":
		db, err = sqlitep.Open(ctx, cfg.Database.Path)
		if err == nil {
			repo = sqlitep.NewAnalysisRepository(db)
		}
	case "mysql":
		db, err = mysqlp.Connect(ctx, mysqlp.Options{
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			Name:     cfg.Database.Name,
		})
		if err == nil {
			repo = mysqlp.NewAnalysisRepository(db)
		}
	case "postgres":
		db, err = pgp.Connect(ctx, cfg.PostgresDSN())
		if err == nil {
			repo = pgp.NewAnalysisRepository(db)
		}
	default:
		return nil, nil, fmt.Errorf("unsupported database driver %q", cfg.Database.Driver)
	}
	if err != nil {
		return nil, nil, fmt.Errorf("%s connect: %w", cfg.Database.Driver, err)
	}
	if err := migrations.Up(ctx, db, cfg.Database.Driver); err != nil {
		db.Close()
		return nil, nil, err
	}
	return db, repo, nil
}
