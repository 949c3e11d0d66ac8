package reviewhub

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/review-hub/internal/billing"
	"github.com/magabrotheeeer/review-hub/internal/cache"
	"github.com/magabrotheeeer/review-hub/internal/config"
	"github.com/magabrotheeeer/review-hub/internal/lib/jwt"
	"github.com/magabrotheeeer/review-hub/internal/lib/online"
	"github.com/magabrotheeeer/review-hub/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/review-hub/internal/lib/sl"
	"github.com/magabrotheeeer/review-hub/internal/migrations"
	"github.com/magabrotheeeer/review-hub/internal/models"
	"github.com/magabrotheeeer/review-hub/internal/realtime"
	checkoutservice "github.com/magabrotheeeer/review-hub/internal/services/checkout"
	entitlementservice "github.com/magabrotheeeer/review-hub/internal/services/entitlement"
	notificationservice "github.com/magabrotheeeer/review-hub/internal/services/notification"
	qrcodeservice "github.com/magabrotheeeer/review-hub/internal/services/qrcode"
	reviewservice "github.com/magabrotheeeer/review-hub/internal/services/review"
	sessionservice "github.com/magabrotheeeer/review-hub/internal/services/session"
	"github.com/magabrotheeeer/review-hub/internal/storage/repository"
)

// App основное приложение: HTTP-сервер и его зависимости.
type App struct {
	server *http.Server
	logger *slog.Logger
	db     *repository.Storage
	cache  *cache.Cache
	rabbit *amqp.Connection
	feed   *realtime.Listener
}

// New собирает приложение: хранилище, кеш, брокер, сервисы и маршруты.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, "./migrations"); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	rabbitConn, err := rabbitmq.Connect(cfg.RabbitConnection, 5, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rabbitCh, err := rabbitmq.SetupChannel(rabbitConn, rabbitmq.GetNotificationQueues())
	if err != nil {
		return nil, err
	}

	maker := jwt.NewJWTMaker(cfg.JWTSecretKey, cfg.TokenTTL)
	checker := online.NewFlag()

	sessionManager := sessionservice.New(logger, db, maker, cacheRedis, checker, cfg.Session)
	entitlements := entitlementservice.New(logger, db, db, cacheRedis, checker,
		cfg.Entitlement.RefreshCooldown)

	billingClient := billing.NewClient(cfg.Billing.BaseURL, cfg.Billing.Secret,
		cfg.Billing.RequestTimeout)
	checkoutService := checkoutservice.New(logger, billingClient, entitlements,
		sessionManager, cacheRedis, db)

	changePublisher := realtime.NewPublisher(rabbitCh)
	notificationService := notificationservice.New(logger, db, changePublisher, cacheRedis)
	qrService := qrcodeservice.New(logger, db)
	reviewService := reviewservice.New(logger, db, qrService, notificationService)

	feed := realtime.New(logger, realtime.NewAMQPSubscriber(rabbitConn, logger), entitlements,
		notificationService)

	sessions := newLiveSessions(ctx, logger, sessionManager, feed, entitlements, maker,
		cfg.Entitlement.RefreshInterval)
	sessionManager.OnExpire = sessions.stop

	router := chi.NewRouter()
	RegisterRoutes(router, logger, maker, db, sessions, sessionManager, entitlements,
		checkoutService, qrService, reviewService, notificationService)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server: srv,
		logger: logger,
		db:     db,
		cache:  cacheRedis,
		rabbit: rabbitConn,
		feed:   feed,
	}, nil
}

// Run запускает HTTP-сервер и останавливает его по отмене контекста.
func (a *App) Run(ctx context.Context) error {
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

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		a.feed.CloseAll()
		_ = a.rabbit.Close()
		_ = a.db.DB.Close()
		return err
	}
}

// liveSessions связывает вход и возобновление сессии с фоновыми
// контурами пользователя: подпиской на ленту изменений, периодической
// перепроверкой сессии и плановой сверкой состояния доступа. Выход и
// истечение сессии снимают все контуры.
type liveSessions struct {
	*sessionservice.Manager

	log             *slog.Logger
	feed            *realtime.Listener
	ents            *entitlementservice.Service
	maker           jwt.Maker
	refreshInterval time.Duration
	base            context.Context

	mu      sync.Mutex
	cancels map[string]context.CancelFunc
}

func newLiveSessions(base context.Context, log *slog.Logger, manager *sessionservice.Manager,
	feed *realtime.Listener, ents *entitlementservice.Service, maker jwt.Maker,
	refreshInterval time.Duration) *liveSessions {
	return &liveSessions{
		Manager:         manager,
		log:             log,
		feed:            feed,
		ents:            ents,
		maker:           maker,
		refreshInterval: refreshInterval,
		base:            base,
		cancels:         make(map[string]context.CancelFunc),
	}
}

// Login выполняет вход и поднимает фоновые контуры пользователя.
func (s *liveSessions) Login(ctx context.Context, req models.DummyLogin) (string, error) {
	token, err := s.Manager.Login(ctx, req)
	if err != nil {
		return "", err
	}
	if claims, perr := s.maker.ParseToken(token); perr == nil {
		s.open(claims.UserUID)
	}
	return token, nil
}

// Resume перепроверяет сессию и переоткрывает ленту изменений, если
// сессия ещё жива.
func (s *liveSessions) Resume(ctx context.Context, userUID, token string) (sessionservice.State, error) {
	state, err := s.Manager.Resume(ctx, userUID, token)
	if err != nil || state == sessionservice.StateExpired {
		s.stop(userUID)
		return state, err
	}
	s.open(userUID)
	return state, nil
}

// SignOut завершает сессию и снимает фоновые контуры.
func (s *liveSessions) SignOut(ctx context.Context, userUID string) {
	s.Manager.SignOut(ctx, userUID)
	s.stop(userUID)
}

func (s *liveSessions) open(userUID string) {
	ctx, cancel := context.WithCancel(s.base)

	s.mu.Lock()
	if old, ok := s.cancels[userUID]; ok {
		old()
	}
	s.cancels[userUID] = cancel
	s.mu.Unlock()

	go func() {
		if _, err := s.feed.Open(ctx, userUID); err != nil {
			s.log.Warn("failed to open change feed",
				slog.String("uid", userUID), sl.Err(err))
		}
	}()
	go s.Manager.RunRevalidation(ctx, userUID)
	go s.ents.RunPeriodicRefresh(ctx, userUID, s.refreshInterval)
}

func (s *liveSessions) stop(userUID string) {
	s.mu.Lock()
	if cancel, ok := s.cancels[userUID]; ok {
		cancel()
		delete(s.cancels, userUID)
	}
	s.mu.Unlock()
	s.feed.Close(userUID)
}
