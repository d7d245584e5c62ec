package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/iliyamo/ticket-sales/internal/config"
	"github.com/iliyamo/ticket-sales/internal/database"
	"github.com/iliyamo/ticket-sales/internal/handler"
	"github.com/iliyamo/ticket-sales/internal/idempotency"
	"github.com/iliyamo/ticket-sales/internal/queue"
	"github.com/iliyamo/ticket-sales/internal/repository"
	"github.com/iliyamo/ticket-sales/internal/router"
	"github.com/iliyamo/ticket-sales/internal/service"
)

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("env: %v", err)
	}
	cfg := config.Load()
	payCfg := config.LoadPaymentConfig()
	brokerCfg := config.LoadBrokerConfig()

	db, err := openDB(cfg)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := db.Migrate(ctx); err != nil {
		log.Fatalf("migrate: %v", err)
	}

	rdb := config.NewRedisClient()
	if rdb != nil {
		defer rdb.Close()
	}

	e := echo.New()
	e.HideBanner = true
	if cfg.Env != "prod" {
		e.Logger.SetLevel(glog.DEBUG)
	}
	e.Use(echomw.RequestID())
	e.Use(echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogStatus:    true,
		LogURI:       true,
		LogMethod:    true,
		LogLatency:   true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			log.Printf("http: %s %s %d %s id=%s", v.Method, v.URI, v.Status, v.Latency, v.RequestID)
			return nil
		},
	}))
	e.Use(echomw.Recover())

	events := repository.NewEventRepo(db)
	tickets := repository.NewTicketTypeRepo(db)
	reservations := repository.NewReservationRepo(db)
	payments := repository.NewPaymentRepo(db)

	var (
		client   service.PaymentClient
		verifier service.WebhookVerifier
	)
	switch payCfg.Provider {
	case config.ProviderStripe:
		sc := service.NewStripeClient(payCfg.SecretKey, payCfg.WebhookSecret)
		client, verifier = sc, sc
	default:
		log.Printf("payments: using sandbox processor")
		client = service.NewSandboxClient()
		// the sandbox has no webhooks; signatures are still checked
		verifier = service.NewStripeClient("", payCfg.WebhookSecret)
	}

	var publisher service.Publisher = service.NopPublisher{}
	if brokerCfg.Enabled {
		publisher = service.NewAMQPPublisher(brokerCfg.URL)
		if brokerCfg.ConsumerEnabled {
			go func() {
				if err := queue.NewConsumer(brokerCfg.URL, brokerCfg.LogDir).Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
					log.Printf("reservation-consumer: %v", err)
				}
			}()
		}
	}

	ledger := service.NewLedger(tickets)
	manager := service.NewReservationManager(db, ledger, tickets, reservations, payments, events, client)
	manager.SetLogger(e.Logger)
	reconciler := service.NewPaymentReconciler(db, reservations, tickets, payments, client, publisher, payCfg.Currency)
	reconciler.SetLogger(e.Logger)
	catalog := service.NewCatalog(db, events, tickets)

	if cfg.ReservationTTL > 0 {
		go service.NewSweeper(manager, reconciler, cfg.ReservationTTL, cfg.SweepInterval).Run(ctx)
	}

	router.Register(e, db.DB, router.Deps{
		JWTSecret: cfg.JWTSecret,
		Redis:     rdb,
		Cache:     config.LoadCacheConfig(),
		RateLimit: config.LoadRateLimitConfig(),
		Catalog:   handler.NewCatalogHandler(catalog, manager),
		Participant: &handler.ParticipantHandler{
			Manager:        manager,
			Reconciler:     reconciler,
			StrictQuantity: cfg.StrictQuantity,
			PublishableKey: payCfg.PublicKey,
		},
		Payments: &handler.PaymentHandler{
			Reconciler: reconciler,
			Verifier:   verifier,
			Guard:      idempotency.New(rdb, "webhook", payCfg.WebhookDedupeTTL),
		},
	})

	addr := ":" + cfg.Port
	go func() {
		log.Printf("listening on %s (env=%s, db=%s, payments=%s)", addr, cfg.Env, db.Dialect, payCfg.Provider)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal(err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}

func openDB(cfg config.Config) (*database.DB, error) {
	if cfg.DatabaseURL != "" {
		return database.OpenURL(cfg.DatabaseURL)
	}
	return database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
}
