package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mercadolocal/mercadito-backend/api/routes"
	authsvc "github.com/mercadolocal/mercadito-backend/internal/auth"
	"github.com/mercadolocal/mercadito-backend/internal/cart"
	checkoutsvc "github.com/mercadolocal/mercadito-backend/internal/checkout"
	"github.com/mercadolocal/mercadito-backend/internal/eligibility"
	"github.com/mercadolocal/mercadito-backend/internal/onboarding"
	"github.com/mercadolocal/mercadito-backend/internal/orders"
	"github.com/mercadolocal/mercadito-backend/internal/products"
	"github.com/mercadolocal/mercadito-backend/internal/reviews"
	"github.com/mercadolocal/mercadito-backend/internal/shops"
	subscriptionsvc "github.com/mercadolocal/mercadito-backend/internal/subscriptions"
	"github.com/mercadolocal/mercadito-backend/internal/users"
	"github.com/mercadolocal/mercadito-backend/internal/vendors"
	"github.com/mercadolocal/mercadito-backend/internal/webhooks"
	"github.com/mercadolocal/mercadito-backend/pkg/auth/session"
	"github.com/mercadolocal/mercadito-backend/pkg/config"
	"github.com/mercadolocal/mercadito-backend/pkg/db"
	"github.com/mercadolocal/mercadito-backend/pkg/logger"
	"github.com/mercadolocal/mercadito-backend/pkg/metrics"
	"github.com/mercadolocal/mercadito-backend/pkg/migrate"
	"github.com/mercadolocal/mercadito-backend/pkg/redis"
	pkgstripe "github.com/mercadolocal/mercadito-backend/pkg/stripe"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	sessionManager, err := session.NewManager(redisClient, cfg.JWT)
	if err != nil {
		logg.Error(context.Background(), "failed to create session manager", err)
		os.Exit(1)
	}

	stripeClient, err := pkgstripe.NewClient(context.Background(), cfg.Stripe, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap stripe", err)
		os.Exit(1)
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	webhookMetrics := metrics.NewWebhookMetrics(registry)

	gormDB := dbClient.DB()
	usersRepo := users.NewRepository(gormDB)
	shopsRepo := shops.NewRepository(gormDB)
	productsRepo := products.NewRepository(gormDB)
	ordersRepo := orders.NewRepository(gormDB)
	cartRepo := cart.NewRepository(gormDB)
	reviewsRepo := reviews.NewRepository(gormDB)
	onboardingRepo := onboarding.NewRepository(gormDB)
	subscriptionsRepo := subscriptionsvc.NewRepository(gormDB)
	webhookLedger := webhooks.NewLedger(gormDB)

	authService, err := authsvc.NewService(authsvc.ServiceParams{
		UserRepo:       usersRepo,
		SessionManager: sessionManager,
		JWTConfig:      cfg.JWT,
		PasswordConfig: cfg.Password,
	})
	fatalIf(logg, "auth service", err)

	eligibilityService, err := eligibility.NewService(shopsRepo, subscriptionsRepo, productsRepo)
	fatalIf(logg, "eligibility service", err)

	shopsService, err := shops.NewService(shopsRepo, eligibilityService)
	fatalIf(logg, "shops service", err)

	productsService, err := products.NewService(productsRepo, ordersRepo)
	fatalIf(logg, "products service", err)

	cartService, err := cart.NewService(cartRepo, productsRepo, shopsRepo)
	fatalIf(logg, "cart service", err)

	checkoutService, err := checkoutsvc.NewService(cartService, cartRepo, ordersRepo, dbClient)
	fatalIf(logg, "checkout service", err)

	ordersService, err := orders.NewService(ordersRepo, dbClient)
	fatalIf(logg, "orders service", err)

	reviewsService, err := reviews.NewService(reviewsRepo, productsRepo)
	fatalIf(logg, "reviews service", err)

	onboardingService, err := onboarding.NewService(onboardingRepo, usersRepo, shopsRepo, subscriptionsRepo, eligibilityService)
	fatalIf(logg, "onboarding service", err)

	subscriptionsService, err := subscriptionsvc.NewService(
		subscriptionsRepo,
		shopsRepo,
		subscriptionsvc.NewStripeClient(stripeClient),
		cfg.Stripe,
	)
	fatalIf(logg, "subscriptions service", err)

	vendorResolver, err := vendors.NewResolver(usersRepo, shopsRepo, cfg.Shops)
	fatalIf(logg, "vendor resolver", err)

	webhookProcessor, err := webhooks.NewProcessor(
		webhookLedger,
		subscriptionsRepo,
		shopsRepo,
		stripeClient.SigningSecret(),
		logg,
		webhookMetrics,
	)
	fatalIf(logg, "webhook processor", err)

	router := routes.NewRouter(routes.Deps{
		Config:        cfg,
		Logger:        logg,
		DB:            dbClient,
		Redis:         redisClient,
		Sessions:      sessionManager,
		Auth:          authService,
		Shops:         shopsService,
		Products:      productsService,
		Cart:          cartService,
		Checkout:      checkoutService,
		Orders:        ordersService,
		Reviews:       reviewsService,
		Onboarding:    onboardingService,
		Subscriptions: subscriptionsService,
		Eligibility:   eligibilityService,
		Vendors:       vendorResolver,
		Webhooks:      webhookProcessor,
		Metrics:       promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			logg.Error(ctx, "api server stopped unexpectedly", err)
			os.Exit(1)
		}
	case sig := <-stop:
		logg.Info(logg.WithField(ctx, "signal", sig.String()), "shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(ctx, "graceful shutdown failed", err)
		}
	}
}

func fatalIf(logg *logger.Logger, what string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+what, err)
	os.Exit(1)
}
