package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	contracts "mailroom/contracts/mq"
	"mailroom/internal/google"
	"mailroom/internal/handler"
	"mailroom/internal/httpserver"
	"mailroom/internal/mqhandler"
	"mailroom/internal/repository"
	"mailroom/internal/service/auth"
	"mailroom/internal/service/grants"
	"mailroom/internal/service/labels"
	syncengine "mailroom/internal/service/sync"
	"mailroom/pkg/config"
	"mailroom/pkg/db"
	"mailroom/pkg/logger"
	"mailroom/pkg/mq"
	"mailroom/pkg/redisc"
	"mailroom/pkg/util"
)

// The three pipeline stages each need a different slice of the provider
// client, so the shared factory is adapted per consumer.
type syncMailboxes struct{ f *google.ClientFactory }

func (m syncMailboxes) Mailbox(ctx context.Context) (syncengine.Mailbox, error) {
	return m.f.Client(ctx)
}

type labelMailboxes struct{ f *google.ClientFactory }

func (m labelMailboxes) Mailbox(ctx context.Context) (labels.Mailbox, error) {
	return m.f.Client(ctx)
}

type writerMailboxes struct{ f *google.ClientFactory }

func (m writerMailboxes) Mailbox(ctx context.Context) (mqhandler.LabelWriter, error) {
	return m.f.Client(ctx)
}

func main() {
	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		panic(err)
	}

	log := logger.NewLogger()
	defer log.Sync()

	log.Info("Starting mailroom...",
		zap.String("db_host", cfg.DB.Host),
		zap.Int("db_port", cfg.DB.Port),
		zap.String("mq_url", cfg.MQ.URL),
	)

	// DB
	dbConn, err := db.NewConnection(cfg.DB, log)
	if err != nil {
		log.Fatal("Failed to init DB", zap.Error(err))
	}
	defer dbConn.Close()
	log.Info("Database connection established successfully")

	emailRepo := repository.NewEmailRepository(dbConn)
	userRepo := repository.NewUserRepository(dbConn)
	settingRepo := repository.NewSettingRepository(dbConn)

	// Redis
	rdb := redisc.NewClient(cfg.Redis)
	defer rdb.Close()
	deduper := util.NewDeduper(rdb, 24*time.Hour)
	retries := util.NewRetryCounter(rdb, time.Hour)

	// Google
	oauth, err := google.NewOAuth(cfg.Google)
	if err != nil {
		log.Fatal("Failed to init google oauth", zap.Error(err))
	}
	clientFactory := google.NewClientFactory(oauth, settingRepo)

	// MQ publisher
	publisher, err := mq.NewPublisher(cfg.MQ.URL)
	if err != nil {
		log.Fatal("Failed to init MQ publisher", zap.Error(err))
	}
	defer publisher.Close()

	// Services
	authService := auth.NewService(userRepo, cfg.JWT.Secret)
	grantService := grants.NewService(oauth, clientFactory, settingRepo, log)
	labelRegistry := labels.NewRegistry(labelMailboxes{clientFactory}, settingRepo, log)
	engine := syncengine.NewEngine(
		syncMailboxes{clientFactory},
		emailRepo,
		userRepo,
		settingRepo,
		publisher,
		cfg.Sync.MaxPages,
		log,
	)

	// MQ consumer for classification results
	log.Info("Initializing MQ consumer for email.nlp.labeled...",
		zap.String("queue", contracts.QueueNlpLabeled),
		zap.String("routing_key", contracts.RoutingKeyEmailNlpLabeled),
	)
	consumer, err := mq.NewConsumer(cfg.MQ.URL, contracts.QueueNlpLabeled, contracts.RoutingKeyEmailNlpLabeled, retries, log)
	if err != nil {
		log.Fatal("Failed to init consumer", zap.Error(err))
	}
	defer consumer.Close()

	nlpHandler := mqhandler.NewNlpLabeledHandler(emailRepo, labelRegistry, writerMailboxes{clientFactory}, deduper, log)
	consumer.SetHandler(nlpHandler.Handle)

	go func() {
		log.Info("Starting email.nlp.labeled consumer...")
		if err := consumer.StartConsuming(); err != nil {
			log.Fatal("Classification consumer failed", zap.Error(err))
		}
	}()

	// Scheduler
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	scheduler := syncengine.NewScheduler(engine, time.Duration(cfg.Sync.IntervalSeconds)*time.Second, log)
	go scheduler.Run(ctx)

	// HTTP
	authHandler := handler.NewAuthHandler(authService, log)
	grantHandler := handler.NewGrantHandler(grantService, log)
	labelHandler := handler.NewLabelHandler(labelRegistry, log)
	emailHandler := handler.NewEmailHandler(emailRepo, log)
	syncHandler := handler.NewSyncHandler(engine, log)

	router := httpserver.NewRouter(
		authHandler,
		grantHandler,
		labelHandler,
		emailHandler,
		syncHandler,
		cfg.JWT.Secret,
		log,
		dbConn,
		consumer,
	)

	go func() {
		log.Info("HTTP server listening", zap.String("port", cfg.Server.Port))
		if err := router.Run(":" + cfg.Server.Port); err != nil {
			log.Fatal("HTTP server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	log.Info("Shutting down...")
}
