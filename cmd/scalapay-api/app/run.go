package app

import (
	"context"
	"database/sql"
	"fmt"
	nethttp "net/http"
	"time"

	"github.com/aq2208/gorder-scalapay/configs"
	"github.com/aq2208/gorder-scalapay/internal/adapter/cache"
	"github.com/aq2208/gorder-scalapay/internal/adapter/http"
	"github.com/aq2208/gorder-scalapay/internal/adapter/http/middleware"
	"github.com/aq2208/gorder-scalapay/internal/adapter/kafka"
	"github.com/aq2208/gorder-scalapay/internal/adapter/queue"
	"github.com/aq2208/gorder-scalapay/internal/adapter/repo"
	"github.com/aq2208/gorder-scalapay/internal/adapter/scalapay"
	domain "github.com/aq2208/gorder-scalapay/internal/entity"
	"github.com/aq2208/gorder-scalapay/internal/logging"
	"github.com/aq2208/gorder-scalapay/internal/usecase"
	_ "github.com/go-sql-driver/mysql"
	"github.com/rabbitmq/amqp091-go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/cors"
)

type App struct {
	Server *nethttp.Server
}

func InitWithConfig(ctx context.Context, cfg configs.Config) (*App, func(), error) {
	l := logging.New("bootstrap")
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}
	fail := func(err error) (*App, func(), error) {
		cleanup()
		return nil, nil, err
	}

	// init database
	db, err := sql.Open("mysql", cfg.MySQL.DSN)
	if err != nil {
		return fail(err)
	}
	closers = append(closers, func() { _ = db.Close() })
	db.SetConnMaxLifetime(cfg.MySQL.ConnMaxLifetime)
	db.SetMaxOpenConns(cfg.MySQL.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MySQL.MaxIdleConns)

	pctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pctx); err != nil {
		return fail(fmt.Errorf("mysql ping: %w", err))
	}

	// init redis
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	closers = append(closers, func() { _ = rdb.Close() })
	if err := rdb.Ping(pctx).Err(); err != nil {
		return fail(fmt.Errorf("redis ping: %w", err))
	}

	// init rabbitmq
	conn, err := amqp091.Dial(cfg.Rabbit.URL)
	if err != nil {
		return fail(fmt.Errorf("rabbitmq dial: %w", err))
	}
	closers = append(closers, func() { _ = conn.Close() })
	pubCh, consumeCh, err := openChannels(conn)
	if err != nil {
		return fail(err)
	}
	producer, err := queue.NewRabbitProducer(pubCh)
	if err != nil {
		return fail(err)
	}

	// scalapay
	client := scalapay.NewClient(scalapay.Environment(cfg.Scalapay.Environment), cfg.Scalapay.APIKey,
		scalapay.WithHTTPClient(&nethttp.Client{Timeout: cfg.Scalapay.Timeout}),
		scalapay.WithRateLimit(cfg.Scalapay.RateLimit.RPS, cfg.Scalapay.RateLimit.Burst),
	)
	gw := scalapay.NewGateway(client, cfg.Scalapay.BaseURL)
	l.Info("scalapay client ready", "environment", cfg.Scalapay.Environment, "api_key", logging.Mask(cfg.Scalapay.APIKey))

	// infra
	engine := repo.NewMySQLOrderEngine(db)
	methods := cache.NewPaymentMethods(repo.NewMySQLPaymentMethodRepo(db), cfg.Cache.PaymentMethodsTTL)
	statusCache := cache.NewRedisCache(rdb, cfg.Cache.StatusTTL)
	idem := cache.NewRedisIdempotencyStore(rdb, cfg.Idempotency.TTL)

	// usecases
	fallback, _ := domain.ParseOrderState(cfg.Scalapay.FallbackState) // checked by cfg.Validate
	settleUC := usecase.NewSettlePayment(engine, methods, gw,
		usecase.WithFallbackState(fallback),
		usecase.WithEvents(producer),
		usecase.WithCache(statusCache),
	)
	checkoutUC := usecase.NewCreatePayment(engine, gw)
	refundUC := usecase.NewRefundPayment(gw, idem)
	statusUC := usecase.NewOrderStatus(engine, statusCache)

	// register queue-handler
	if err := setupQueue(consumeCh, cfg, refundUC); err != nil {
		return fail(err)
	}

	// register kafka-listener
	if cfg.Kafka.Enabled {
		stopKafka, err := setupKafkaListener(ctx, cfg, checkoutUC)
		if err != nil {
			return fail(err)
		}
		closers = append(closers, stopKafka)
	}

	// init handlers + routers + middleware
	h := http.NewPaymentHandler(settleUC, checkoutUC, refundUC, statusUC,
		usecase.Redirects{SuccessURL: cfg.Scalapay.SuccessURL, FailureURL: cfg.Scalapay.FailureURL},
		cfg.HTTP.RequestTimeout,
		http.WithRefundQueue(producer),
	)
	th := http.NewTokenHandler(http.TokenConfig{
		JWTSecret: cfg.Security.JWTSecret,
		Issuer:    cfg.Security.Issuer,
		Audience:  cfg.Security.Audience,
		TTL:       cfg.Security.TTL,
		Clients:   cfg.Security.Clients,
	})
	auth := middleware.NewAuthz(middleware.AuthzConfig{
		JWTSecret:     cfg.Security.JWTSecret,
		Issuer:        cfg.Security.Issuer,
		Audience:      cfg.Security.Audience,
		SessionCookie: cfg.Security.SessionCookie,
	})
	router := http.NewRouter(h, th, auth)

	var handler nethttp.Handler = router
	if len(cfg.HTTP.CORSOrigins) > 0 {
		handler = cors.New(cors.Options{
			AllowedOrigins:   cfg.HTTP.CORSOrigins,
			AllowedMethods:   []string{nethttp.MethodGet, nethttp.MethodPost},
			AllowedHeaders:   []string{"Authorization", "Content-Type", "X-Idempotency-Key", "X-Request-Id"},
			AllowCredentials: true,
		}).Handler(router)
	}

	srv := &nethttp.Server{
		Addr:         cfg.App.HTTPAddr,
		Handler:      handler,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
		IdleTimeout:  cfg.HTTP.IdleTimeout,
	}
	return &App{Server: srv}, cleanup, nil
}

type channelOpener interface {
	Channel() (*amqp091.Channel, error)
}

// openChannels gives the publisher and the consumers their own channels,
// so a channel exception on one side leaves the other running.
// On error the connection cleanup closes whatever was opened.
func openChannels(conn channelOpener) (pub, consume *amqp091.Channel, err error) {
	if pub, err = conn.Channel(); err != nil {
		return nil, nil, fmt.Errorf("rabbitmq publish channel: %w", err)
	}
	if consume, err = conn.Channel(); err != nil {
		return nil, nil, fmt.Errorf("rabbitmq consume channel: %w", err)
	}
	return pub, consume, nil
}

func setupQueue(ch *amqp091.Channel, cfg configs.Config, uc queue.Refunder) error {
	h := queue.NewRefundRequestedHandler(uc)

	router := queue.NewRouter(ch, queue.WithPrefetch(cfg.Rabbit.Prefetch))
	router.Register(queue.RefundQueue, queue.JSONHandler[usecase.RefundRequestedMsg]{HandleFunc: h.HandleRefund})
	return router.Start()
}

func setupKafkaListener(ctx context.Context, cfg configs.Config, uc kafka.CheckoutCreator) (func(), error) {
	grp, err := kafka.NewGroup(kafka.GroupConfig{
		Brokers: cfg.Kafka.Brokers,
		GroupID: cfg.Kafka.GroupID,
		Version: cfg.Kafka.Version,
	})
	if err != nil {
		return nil, err
	}

	h := kafka.NewCheckoutRequestedHandler(uc)
	consumer := kafka.NewConsumer(grp, []string{cfg.Kafka.Topic}, h.Handle)

	kctx, cancel := context.WithCancel(ctx)
	l := logging.New("kafka")
	go func() {
		if err := consumer.Start(kctx); err != nil && kctx.Err() == nil {
			l.Error("kafka consumer stopped", "err", err)
		}
	}()
	return func() {
		cancel()
		_ = grp.Close()
	}, nil
}
