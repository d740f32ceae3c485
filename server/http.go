package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"
	"voice-relay/config"
	"voice-relay/constant"
	"voice-relay/handler"
	"voice-relay/pkg/github"
	"voice-relay/pkg/rabbitmq"
	"voice-relay/pkg/storage"
	"voice-relay/repository"
	"voice-relay/service"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

func RunHttp(cfg *config.Config) {
	ctx, cancel := signal.NotifyContext(setupLogger(cfg), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Bool("isProduction", cfg.App.Environment == constant.EnvironmentProduction.String()).Send()
	if cfg.App.Environment == constant.EnvironmentProduction.String() {
		gin.SetMode(gin.ReleaseMode)
	}

	conn, err := config.NewRabbitMQConn(ctx, cfg.Queue)
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Msg("NewRabbitMQConn")
	}

	repo := repository.NewRepo(cfg.DB)
	store := storage.NewMinioStore(cfg.Storage, cfg.MinIOBucket)
	ghClient := github.NewClient(github.Config{
		ClientId:     cfg.Github.ClientId,
		ClientSecret: cfg.Github.ClientSecret,
		WorkflowFile: cfg.Github.WorkflowFile,
		WorkflowRef:  cfg.Github.WorkflowRef,
	})
	publisher := rabbitmq.NewPublisher(conn, cfg.Queue)

	deps := Dependencies{
		Repo:         repo,
		Recordings:   service.NewRecordingService(repo, store, publisher),
		Github:       service.NewGithubService(repo, ghClient, publisher),
		DeviceTokens: service.NewDeviceTokenService(repo),
		Auth:         cfg.Auth,
		BaseURL:      cfg.App.BaseURL(),
	}

	// Dispatch worker pool, fed by the same queue both trigger paths
	// publish to.
	if conn != nil {
		workerDeps := handler.WorkerDependencies{
			DispatchService: service.NewDispatchService(repo, ghClient),
		}
		dispatchConsumer := rabbitmq.NewConsumer(conn, cfg.Queue, cfg.Server.Workers, handler.DispatchHandler)
		go func() {
			if err := dispatchConsumer.Consume(ctx, workerDeps); err != nil {
				zerolog.Ctx(ctx).Error().Err(err).Msg("Dispatch consumer error")
			}
		}()
	}

	r := NewRouter(deps)

	srv := http.Server{
		Handler:           r,
		Addr:              fmt.Sprintf(":%s", cfg.Server.HttpPort),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("start http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
		}
	}()

	<-ctx.Done()
	zerolog.Ctx(ctx).Info().Msg("shutting down server")
	if err := srv.Shutdown(ctx); err != nil {
		zerolog.Ctx(ctx).Error().Str("env", cfg.App.Environment).Msg(err.Error())
	}

	zerolog.Ctx(ctx).Info().Str("env", cfg.App.Environment).Msg("server shutdown")
}

func setupLogger(cfg *config.Config) context.Context {
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
	if cfg.App.Environment == constant.EnvironmentDevelop.String() {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	logger := zerolog.New(os.Stdout).With().Timestamp().Logger()
	ctx := logger.WithContext(context.Background())

	return ctx
}
