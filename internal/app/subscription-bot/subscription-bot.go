// Package subscriptionbot собирает процесс бота: хранилище, кэш, очередь уведомлений,
// сервисы, обработчик Telegram и HTTP-сервер.
package subscriptionbot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-bot/internal/cache"
	"github.com/magabrotheeeer/subscription-bot/internal/catalog"
	"github.com/magabrotheeeer/subscription-bot/internal/config"
	"github.com/magabrotheeeer/subscription-bot/internal/directory"
	"github.com/magabrotheeeer/subscription-bot/internal/http/handlers/health"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-bot/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-bot/internal/metrics"
	"github.com/magabrotheeeer/subscription-bot/internal/migrations"
	"github.com/magabrotheeeer/subscription-bot/internal/notify"
	"github.com/magabrotheeeer/subscription-bot/internal/services/account"
	"github.com/magabrotheeeer/subscription-bot/internal/services/freeclaim"
	"github.com/magabrotheeeer/subscription-bot/internal/services/moderation"
	"github.com/magabrotheeeer/subscription-bot/internal/services/purchase"
	"github.com/magabrotheeeer/subscription-bot/internal/services/reminder"
	"github.com/magabrotheeeer/subscription-bot/internal/session"
	"github.com/magabrotheeeer/subscription-bot/internal/storage"
	"github.com/magabrotheeeer/subscription-bot/internal/telegram"
)

const shutdownTimeout = 15 * time.Second

// App процесс бота.
type App struct {
	cfg    *config.Config
	logger *slog.Logger
	server *http.Server
	db     *storage.Storage
	cache  *cache.Cache
	api    *tgbotapi.BotAPI
	bot    *telegram.Bot
	remind *reminder.Service
	mqConn *amqp.Connection
	mqCh   *amqp.Channel
	sender *telegram.Sender
	m      *metrics.Metrics
}

// New подключает зависимости и собирает сервисы.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	const op = "subscriptionbot.New"

	db, err := storage.New(ctx, cfg.StorageConnectionString)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = migrations.Run(db.SQLDB(), cfg.MigrationsPath); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	app := &App{cfg: cfg, logger: logger, db: db}

	checks := map[string]health.Pinger{"postgres": db}
	var (
		sessions     session.Store
		accountCache account.Cache
	)
	if cfg.Redis.AddressRedis != "" {
		c, err := cache.InitServer(ctx, cfg.Redis)
		if err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.cache = c
		sessions = session.NewRedisStore(c, cfg.Purchase.SessionTTL)
		accountCache = c
		checks["redis"] = c
	} else {
		logger.Warn("redis is not configured, purchase sessions are kept in memory")
		sessions = session.NewMemoryStore(cfg.Purchase.SessionTTL)
	}

	api, err := tgbotapi.NewBotAPI(cfg.Telegram.Token)
	if err != nil {
		app.closeStores()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	app.api = api
	logger.Info("authorized on telegram", slog.String("bot", api.Self.UserName))

	cat := catalog.Default()
	app.m = metrics.New(prometheus.DefaultRegisterer)
	app.sender = telegram.NewSender(api, cfg.AdminID, cat)

	var notifier notify.Notifier
	if cfg.RabbitMQ.URL != "" {
		conn, err := rabbitmq.Dial(ctx, cfg.RabbitMQ.URL, cfg.RabbitMQ.MaxRetries, cfg.RabbitMQ.RetryDelay)
		if err != nil {
			app.closeStores()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		ch, err := rabbitmq.Open(conn, rabbitmq.NotificationTopology())
		if err != nil {
			_ = conn.Close()
			app.closeStores()
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		app.mqConn, app.mqCh = conn, ch
		notifier = notify.NewQueue(ch, logger, app.m)
	} else {
		logger.Warn("rabbitmq is not configured, notifications are sent directly")
		notifier = notify.NewDirect(app.sender, logger, app.m)
	}

	resolver := directory.NewChain(logger, app.sender, directory.NewStored(db))

	accountService := account.New(db, accountCache, logger)
	freeService := freeclaim.New(db, accountService, cfg.FreeGrant, logger, app.m)
	purchaseService := purchase.New(cat, sessions, db, app.sender, logger, app.m)
	moderationService := moderation.New(cfg.AdminID, cat, db, resolver, notifier, accountService, logger, app.m)

	app.remind = reminder.New(db, notifier, cfg.Reminder.Interval, logger)

	app.bot = telegram.New(api, cat, cfg.Purchase, accountService, freeService, purchaseService,
		moderationService, cfg.Telegram.Workers, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, cfg.AdminID,
		jwt.NewJWTMaker(cfg.JWT.JWTSecretKey, cfg.JWT.TokenTTL), moderationService, checks)

	app.server = &http.Server{
		Addr:         cfg.HTTP.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.HTTP.TimeoutHTTP,
		WriteTimeout: cfg.HTTP.TimeoutHTTP,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}

	return app, nil
}

// Run запускает long polling, потребителя уведомлений и HTTP-сервер.
// Возвращает управление после отмены ctx или падения сервера.
func (a *App) Run(ctx context.Context) error {
	const op = "subscriptionbot.Run"
	defer a.closeStores()
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	if a.mqCh != nil {
		err := rabbitmq.ConsumerMessage(ctx, a.mqCh, rabbitmq.UserNotificationsQueue,
			notify.Handler(a.sender, a.logger, a.m), a.logger)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}
	}

	go a.remind.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	u := tgbotapi.NewUpdate(0)
	u.Timeout = a.cfg.Telegram.PollTimeout
	updates := a.api.GetUpdatesChan(u)

	botDone := make(chan struct{})
	go func() {
		defer close(botDone)
		a.bot.Run(ctx, updates)
	}()
	a.logger.Info("telegram polling started", slog.Int("workers", a.cfg.Telegram.Workers))

	var runErr error
	select {
	case runErr = <-errCh:
		if runErr != nil {
			a.logger.Error("HTTP server failed", sl.Err(runErr))
		}
	case <-ctx.Done():
	}

	a.logger.Info("shutting down gracefully")
	a.api.StopReceivingUpdates()
	<-botDone

	timeoutCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := a.server.Shutdown(timeoutCtx); err != nil {
		a.logger.Error("failed to shutdown HTTP server", sl.Err(err))
	}
	return runErr
}

func (a *App) closeStores() {
	if a.mqCh != nil {
		if err := a.mqCh.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq channel", sl.Err(err))
		}
	}
	if a.mqConn != nil {
		if err := a.mqConn.Close(); err != nil {
			a.logger.Warn("failed to close rabbitmq connection", sl.Err(err))
		}
	}
	if a.cache != nil {
		if err := a.cache.Close(); err != nil {
			a.logger.Warn("failed to close redis", sl.Err(err))
		}
	}
	a.db.Close()
}
