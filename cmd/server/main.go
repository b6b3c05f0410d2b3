package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awscfg "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"account-service/internal/config"
	apphttp "account-service/internal/http"
	"account-service/internal/repository"
	"account-service/internal/repository/mongodb"
	"account-service/internal/repository/sqlite"
	"account-service/internal/service"
	"account-service/internal/storage"
)

func main() {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}
	if level, err := logrus.ParseLevel(cfg.Log.Level); err == nil {
		logger.SetLevel(level)
	} else {
		logger.Warnf("unknown log level %q, using info", cfg.Log.Level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	userRepo, closeRepo, err := buildUserRepository(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup user repository: %v", err)
	}
	defer closeRepo()

	if err := userRepo.Init(ctx); err != nil {
		logger.Fatalf("init user repository: %v", err)
	}

	authService, err := service.NewAuthService(userRepo, service.AuthConfig{
		Token: service.TokenConfig{
			Secret: cfg.Auth.JWTSecret,
			TTL:    cfg.Auth.TokenTTL,
			Issuer: cfg.Auth.Issuer,
		},
		PasswordCost: cfg.Auth.PasswordCost,
	}, logger)
	if err != nil {
		logger.Fatalf("setup auth service: %v", err)
	}

	archive, err := buildArchive(ctx, cfg, logger)
	if err != nil {
		logger.Fatalf("setup archive: %v", err)
	}
	userService := service.NewUserService(userRepo, archive, logger)

	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	apphttp.NewHandler(authService, userService, logger).RegisterRoutes(router)

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("listening on %s", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("http server: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("http shutdown: %v", err)
	}

	logger.Info("bye")
}

func buildUserRepository(ctx context.Context, cfg config.Config, logger *logrus.Logger) (repository.UserRepository, func(), error) {
	switch cfg.Database.Driver {
	case config.DriverMongo:
		client, err := mongodb.Open(ctx, cfg.Database.URI)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using mongo database %s", cfg.Database.Name)
		closeFn := func() {
			disconnectCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := client.Disconnect(disconnectCtx); err != nil {
				logger.Warnf("mongo disconnect: %v", err)
			}
		}
		return mongodb.NewUserRepository(client.Database(cfg.Database.Name)), closeFn, nil
	default:
		db, err := sqlite.Open(cfg.Database.Path)
		if err != nil {
			return nil, nil, err
		}
		logger.Infof("using sqlite database %s", cfg.Database.Path)
		return sqlite.NewUserRepository(db), func() { db.Close() }, nil
	}
}

func buildArchive(ctx context.Context, cfg config.Config, logger *logrus.Logger) (*service.AccountArchive, error) {
	if cfg.Storage.Bucket == "" {
		logger.Info("storage bucket not set, deleted accounts will not be archived")
		return nil, nil
	}

	loadOpts := []func(*awscfg.LoadOptions) error{
		awscfg.WithRegion(cfg.Storage.Region),
	}
	if cfg.AWS.Profile != "" {
		loadOpts = append(loadOpts, awscfg.WithSharedConfigProfile(cfg.AWS.Profile))
	}

	awsCfg, err := awscfg.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Storage.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Storage.Endpoint)
			o.UsePathStyle = true
		}
	})
	logger.Infof("archiving deleted accounts to s3 bucket %s (region %s)", cfg.Storage.Bucket, cfg.Storage.Region)
	return service.NewAccountArchive(storage.NewS3Service(client), cfg.Storage.Bucket, cfg.Storage.KeyPrefix), nil
}
