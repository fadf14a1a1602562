package main

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/iliyamo/albaranes/internal/artifact"
	"github.com/iliyamo/albaranes/internal/config"
	"github.com/iliyamo/albaranes/internal/database"
	"github.com/iliyamo/albaranes/internal/handler"
	"github.com/iliyamo/albaranes/internal/logs"
	"github.com/iliyamo/albaranes/internal/middleware"
	"github.com/iliyamo/albaranes/internal/queue"
	"github.com/iliyamo/albaranes/internal/repository"
	"github.com/iliyamo/albaranes/internal/repository/memory"
	"github.com/iliyamo/albaranes/internal/router"
	"github.com/iliyamo/albaranes/internal/service"
)

// stores groups the persistence backends chosen by DB_DRIVER.
type stores struct {
	users    repository.UserStore
	tokens   repository.TokenStore
	clients  repository.ClientStore
	projects repository.ProjectStore
	notes    repository.DeliveryNoteStore
	db       *sql.DB
}

func main() {
	if err := run(); err != nil {
		logs.Logger.WithError(err).Fatal("server stopped")
	}
}

func run() error {
	cfg := config.Load()
	if err := logs.Init(logs.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile}); err != nil {
		return err
	}
	storageCfg := config.LoadStorageConfig()
	brokerCfg := config.LoadBrokerConfig()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg)
	if err != nil {
		return err
	}
	if st.db != nil {
		defer st.db.Close()
	}

	files, err := openArtifactStore(ctx, storageCfg)
	if err != nil {
		return err
	}

	var mail service.Sender = queue.LogSender{}
	if brokerCfg.URL != "" {
		mail = queue.NewPublisher(brokerCfg.URL, brokerCfg.MailQueue)
		go func() {
			if err := queue.StartMailConsumer(ctx, brokerCfg.URL, brokerCfg.MailQueue, brokerCfg.ConsumerLog); err != nil {
				logs.Logger.WithError(err).Error("mail consumer stopped")
			}
		}()
	}

	rdb := config.NewRedisClient()
	if rdb == nil {
		logs.Logger.Warn("redis unreachable: rate limiting and artifact cache disabled")
	} else {
		defer rdb.Close()
	}

	users := service.NewUserService(st.users, st.tokens, mail, files, service.AuthConfig{
		JWTSecret: cfg.JWTSecret, AccessTTLMin: cfg.AccessTTLMin, RefreshTTLDays: cfg.RefreshTTLDays,
		BcryptCost: cfg.BcryptCost, ResetCodeTTL: cfg.ResetCodeTTL, InviteCodeTTL: cfg.InviteCodeTTL,
		MaxLogoBytes: storageCfg.MaxLogoBytes,
	})
	notes := service.NewDeliveryNoteService(st.notes, st.clients, st.projects, st.users,
		artifact.PDFRenderer{}, files, storageCfg.UploadTimeout)

	deps := router.Deps{
		Users:    handler.NewUserHandler(users, storageCfg.MaxLogoBytes),
		Clients:  handler.NewClientHandler(service.NewClientService(st.clients)),
		Projects: handler.NewProjectHandler(service.NewProjectService(st.projects, st.clients)),
		Notes:    handler.NewDeliveryNoteHandler(notes),
		Auth:     users,
		Limiter:  middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb),
		Cache:    middleware.NewArtifactCache(config.LoadCacheConfig(), rdb),
	}
	if st.db != nil {
		deps.DB = st.db
	}
	e := router.New(deps)

	errc := make(chan error, 1)
	go func() {
		logs.Logger.WithFields(logrus.Fields{"port": cfg.Port, "env": cfg.Env, "driver": cfg.DBDriver}).Info("listening")
		errc <- e.Start(":" + cfg.Port)
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	logs.Logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

func openStores(ctx context.Context, cfg config.Config) (stores, error) {
	if cfg.DBDriver == "memory" {
		logs.Logger.Warn("using the in-memory store: data is lost on restart")
		mem := memory.New()
		return stores{
			users: mem.Users(), tokens: mem.Tokens(), clients: mem.Clients(),
			projects: mem.Projects(), notes: mem.DeliveryNotes(),
		}, nil
	}

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return stores{}, err
	}
	if cfg.MigrateOnStart {
		if err := database.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return stores{}, err
		}
	}
	return stores{
		users:    repository.NewUserRepo(db),
		tokens:   repository.NewTokenRepo(db),
		clients:  repository.NewClientRepo(db),
		projects: repository.NewProjectRepo(db),
		notes:    repository.NewDeliveryNoteRepo(db),
		db:       db,
	}, nil
}

func openArtifactStore(ctx context.Context, cfg config.StorageConfig) (artifact.Store, error) {
	if cfg.Mock() {
		logs.Logger.WithField("gateway", cfg.GatewayURL).Warn("no S3 bucket configured: using the mock artifact store")
		return artifact.NewMockStore(cfg.GatewayURL), nil
	}
	s3, err := artifact.NewS3Store(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return s3, nil
}
