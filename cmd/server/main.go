package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/Africahassucceed/celebsbridgenew/internal/auth"
	"github.com/Africahassucceed/celebsbridgenew/internal/blob"
	"github.com/Africahassucceed/celebsbridgenew/internal/catalog"
	"github.com/Africahassucceed/celebsbridgenew/internal/config"
	"github.com/Africahassucceed/celebsbridgenew/internal/logger"
	"github.com/Africahassucceed/celebsbridgenew/internal/metrics"
	"github.com/Africahassucceed/celebsbridgenew/internal/notify"
	"github.com/Africahassucceed/celebsbridgenew/internal/repo"
	"github.com/Africahassucceed/celebsbridgenew/internal/service"
	httptransport "github.com/Africahassucceed/celebsbridgenew/internal/transport/http"

	"github.com/go-redis/redis/v8"
	"golang.org/x/sync/errgroup"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func main() {
	cfgPath := flag.String("config", "internal/config/config.yaml", "path to the YAML config file")
	flag.Parse()

	// 1. load config
	cfg, err := config.Load(*cfgPath)
	if err != nil {
		panic(fmt.Errorf("load config: %w", err))
	}

	// 2. init logger
	log, err := logger.NewLogger(cfg.Log.Level)
	if err != nil {
		panic(fmt.Errorf("init logger: %w", err))
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// 3. postgres
	gdb, err := gorm.Open(postgres.Open(cfg.Postgres.DSN), repo.GormConfig())
	if err != nil {
		log.Fatalf("open postgres: %v", err)
	}
	if err := repo.Migrate(gdb); err != nil {
		log.Fatalf("auto-migrate: %v", err)
	}

	// 4. redis, only used as the catalog cache
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		log.Fatalf("redis ping: %v", err)
	}
	defer rdb.Close()

	// 5. collaborators
	store, err := blob.NewStore(cfg.Blob.Dir, cfg.Blob.BaseURL, cfg.Blob.Secret)
	if err != nil {
		log.Fatalf("blob store: %v", err)
	}
	repository := repo.NewRepository(gdb, log)
	cat := catalog.NewService(gdb, rdb, cfg.Redis.CacheTTL, log)
	emitter := notify.NewOutboxEmitter(repository, log)
	m := metrics.New()

	// 6. service
	opts, err := service.OptionsFromConfig(cfg, m)
	if err != nil {
		log.Fatalf("service options: %v", err)
	}
	svc := service.NewShoutoutService(repository, cat, store, emitter, opts, log)

	// 7. gin router
	handler := httptransport.NewHandler(svc, cat, store, cfg.Blob.MaxUploadB, log)
	tokens := auth.NewTokenService(cfg.Auth.Secret, cfg.Auth.TokenTTL)
	router := httptransport.NewRouter(handler, tokens, m, cfg.RateLimit, log)

	// 8. serve until a signal arrives
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: router,
	}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Infof("shoutout-server listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down")
		return srv.Shutdown(shutdownCtx)
	})
	if err := g.Wait(); err != nil {
		log.Fatalf("server: %v", err)
	}
}
