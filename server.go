package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/katariastoneworld/stoneworld_backend/config"
	"github.com/katariastoneworld/stoneworld_backend/middlewares"
	"github.com/katariastoneworld/stoneworld_backend/models"
	"github.com/katariastoneworld/stoneworld_backend/notify"
	"github.com/katariastoneworld/stoneworld_backend/utils"
	"github.com/katariastoneworld/stoneworld_backend/workflow"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

const defaultPort = "8080"

// lazyIssuer lets the router exist before the database does.
type lazyIssuer struct {
	issuer atomic.Pointer[workflow.BillIssuer]
}

func (l *lazyIssuer) Issue(ctx context.Context, req *workflow.BillRequest) (*models.BillView, error) {
	issuer := l.issuer.Load()
	if issuer == nil {
		return nil, utils.InternalError(errors.New("bill issuer not ready"), "service is starting")
	}
	return issuer.Issue(ctx, req)
}

type lazyProcessor struct {
	consumer atomic.Pointer[notify.PushConsumer]
}

func (l *lazyProcessor) Process(ctx context.Context, msg config.NotificationMessage) error {
	consumer := l.consumer.Load()
	if consumer == nil {
		return errors.New("notification consumer not ready")
	}
	return consumer.Process(ctx, msg)
}

func registerValidators() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("phone", utils.PhoneValidator)
	}
}

// notificationStack is what NOTIFICATION_MODE selects.
type notificationStack struct {
	notifier   workflow.Notifier
	async      *notify.AsyncNotifier
	dispatcher *workflow.OutboxDispatcher
}

func buildNotifications(db *gorm.DB, sender *notify.Sender, logger *logrus.Logger) notificationStack {
	if config.NotificationMode() == config.NotificationModeOutbox {
		var deliverer workflow.OutboxDeliverer = notify.DirectDeliverer{Sender: sender}
		if config.PubSubEnabled() {
			deliverer = notify.PubSubDeliverer{}
		}
		return notificationStack{
			notifier:   notify.NewOutboxNotifier(db, logger),
			dispatcher: workflow.NewOutboxDispatcher(db, logger, deliverer),
		}
	}
	async := notify.NewAsyncNotifier(sender, logger)
	return notificationStack{notifier: async, async: async}
}

func newMailer(logger *logrus.Logger) notify.Mailer {
	if mailer, ok := notify.SMTPMailerFromEnv(); ok {
		return mailer
	}
	logger.WithFields(logrus.Fields{"field": "mail"}).Warn("SMTP_HOST not set; bill emails are logged, not sent")
	return notify.LogMailer{}
}

func main() {
	port := os.Getenv("API_PORT")
	if port == "" {
		port = os.Getenv("PORT")
	}
	if port == "" {
		port = defaultPort
	}

	logger := config.GetLogger()
	decimal.MarshalJSONWithoutQuotes = true
	registerValidators()
	if config.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	sender := notify.NewSender(newMailer(logger), logger)
	var ready atomic.Bool
	issuer := &lazyIssuer{}
	processor := &lazyProcessor{}
	deps := routeDeps{
		bills: &billHandler{
			issuer:   issuer,
			store:    modelBillStore{},
			renderer: sender,
		},
		notifications: processor,
		ready:         ready.Load,
		logger:        logger,
	}
	if config.EnvBool("RATE_LIMIT_ENABLED") {
		deps.rateLimiter = middlewares.RateLimiterFromEnv()
	}
	r := setupRouter(deps)

	// The port opens first; the readiness gate answers 503 until everything below is wired.
	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}
	serverErrCh := make(chan error, 1)
	go func() {
		serverErrCh <- srv.ListenAndServe()
	}()

	config.ConnectDatabaseWithRetry()
	config.ConnectRedisWithRetry()

	db := config.GetDB()
	sqlDB, _ := db.DB()
	defer func() {
		if sqlDB != nil {
			_ = sqlDB.Close()
		}
	}()
	if !config.EnvBool("SKIP_MIGRATIONS") {
		models.MigrateTable()
	} else {
		logger.WithFields(logrus.Fields{"field": "migrations"}).Warn("SKIP_MIGRATIONS=true; skipping AutoMigrate on startup")
	}

	notifications := buildNotifications(db, sender, logger)
	if notifications.async != nil {
		notifications.async.Start()
	}
	dispatcherCtx, cancelDispatcher := context.WithCancel(context.Background())
	defer cancelDispatcher()
	if notifications.dispatcher != nil {
		go notifications.dispatcher.Run(dispatcherCtx)
	}
	issuer.issuer.Store(workflow.NewBillIssuer(workflow.NewGormBillingStore(db), workflow.NewDefaultSeriesLocker(db), notifications.notifier))
	processor.consumer.Store(notify.NewPushConsumer(db, sender, logger))
	ready.Store(config.GetDB() != nil && config.GetRedisDB() != nil)

	logger.WithFields(logrus.Fields{
		"info":              "Connection Established",
		"notification_mode": config.NotificationMode(),
	}).Info("listening on port ", port)
	log.Println("Server started successfully")

	select {
	case <-sigCtx.Done():
	case err := <-serverErrCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithFields(logrus.Fields{"field": "http"}).Error("server stopped unexpectedly: " + err.Error())
		}
	}

	// Background workers stop before HTTP drains.
	cancelDispatcher()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if notifications.async != nil {
		if err := notifications.async.Shutdown(shutdownCtx); err != nil {
			logger.WithFields(logrus.Fields{"field": "notify"}).Warn("notification queue not drained: " + err.Error())
		}
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.WithFields(logrus.Fields{"field": "http"}).Error("graceful shutdown failed: " + err.Error())
	}
	config.ClosePubSub()
	if rdb := config.GetRedisDB(); rdb != nil {
		_ = rdb.Close()
	}
}
