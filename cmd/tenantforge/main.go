package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/riandyrn/otelchi"
	"go.uber.org/zap"

	"github.com/neomorfeo/tenantforge/internal/adapter/fsm"
	"github.com/neomorfeo/tenantforge/internal/adapter/gateway"
	"github.com/neomorfeo/tenantforge/internal/adapter/mail"
	oteladapter "github.com/neomorfeo/tenantforge/internal/adapter/otel"
	"github.com/neomorfeo/tenantforge/internal/adapter/pdf"
	riveradapter "github.com/neomorfeo/tenantforge/internal/adapter/river"
	"github.com/neomorfeo/tenantforge/internal/adapter/sqlite"
	"github.com/neomorfeo/tenantforge/internal/app"
	"github.com/neomorfeo/tenantforge/internal/clock"
	"github.com/neomorfeo/tenantforge/internal/config"
	"github.com/neomorfeo/tenantforge/internal/credential"
	"github.com/neomorfeo/tenantforge/internal/domain"
	"github.com/neomorfeo/tenantforge/internal/logger"
	"github.com/neomorfeo/tenantforge/internal/pricing"

	handler "github.com/neomorfeo/tenantforge/internal/adapter/http"
)

const serviceVersion = "0.1.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "tenantforge: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}

	log, err := logger.New(cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// --- Observability ---
	otelCfg := oteladapter.ConfigFromEnv()
	otelCfg.ServiceVersion = serviceVersion
	providers, err := oteladapter.Setup(ctx, otelCfg)
	if err != nil {
		return fmt.Errorf("otel: %w", err)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn("otel shutdown", zap.Error(err))
		}
	}()

	observer, err := oteladapter.NewProvisioningObserver()
	if err != nil {
		return fmt.Errorf("otel observer: %w", err)
	}

	// --- Adapters (out) ---
	db, err := oteladapter.OpenDB(oteladapter.DBConfig{Path: cfg.DBPath, BusyTimeout: cfg.DBBusy})
	if err != nil {
		return fmt.Errorf("database: %w", err)
	}
	repo, err := sqlite.NewFromDB(db)
	if err != nil {
		db.Close()
		return fmt.Errorf("database: %w", err)
	}
	defer repo.Close()

	clk := clock.System{}
	tenants := oteladapter.NewTracingRepository(repo)

	var sealer domain.SecretSealer
	if cfg.Recovery.Enabled() {
		s, err := credential.NewSealerFromBase64(cfg.Recovery.Key)
		if err != nil {
			return fmt.Errorf("credential recovery key: %w", err)
		}
		sealer = s
	} else {
		log.Info("credential recovery disabled, CREDENTIAL_RECOVERY_KEY is empty")
	}

	stripe := gateway.NewStripe(gateway.StripeConfig{
		BaseURL:    cfg.Payment.BaseURL,
		SecretKey:  cfg.Payment.SecretKey,
		SuccessURL: cfg.Payment.SuccessURL,
		CancelURL:  cfg.Payment.CancelURL,
		Timeout:    cfg.StepTimeout,
	}, log.Named("stripe"))

	mailer := mail.NewClient(mail.ClientConfig{
		BaseURL:  cfg.Mail.BaseURL,
		APIKey:   cfg.Mail.APIKey,
		From:     cfg.Mail.From,
		FromName: cfg.Mail.FromName,
		Timeout:  cfg.StepTimeout,
	})
	composer, err := mail.NewComposer(cfg.Platform.Name, cfg.Payment.Currency)
	if err != nil {
		return fmt.Errorf("mail templates: %w", err)
	}

	renderer := pdf.New(pdf.Issuer{
		Name:     cfg.Platform.Name,
		Email:    cfg.Mail.From,
		Currency: cfg.Payment.Currency,
	})

	notifier := app.NewNotifier(composer, mailer, repo, clk, cfg.Platform.StaffEmail, log)
	payments := app.NewPaymentOpener(stripe, repo, tenants, notifier, clk, cfg.Payment.Currency)

	// --- Background jobs ---
	jobs, err := riveradapter.Setup(ctx, db, riveradapter.Deps{
		Payments:      payments,
		Purger:        app.NewRecoveryPurger(repo, clk, log),
		PurgeInterval: cfg.Recovery.PurgeInterval,
		Logger:        log.Named("jobs"),
	})
	if err != nil {
		return fmt.Errorf("river: %w", err)
	}
	if err := jobs.Start(ctx); err != nil {
		return fmt.Errorf("starting river: %w", err)
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := jobs.Stop(stopCtx); err != nil {
			log.Warn("river stop", zap.Error(err))
		}
	}()

	publisher, err := oteladapter.NewTracingPublisher(riveradapter.NewPublisher(jobs), "river", riveradapter.QueueEvents)
	if err != nil {
		return fmt.Errorf("otel publisher: %w", err)
	}

	// --- Application ---
	provisioner := app.NewProvisioner(app.ProvisionerDeps{
		Tenants:     tenants,
		Credentials: repo,
		Calculator:  pricing.NewCalculator(pricing.DefaultCatalog()),
		Generator:   credential.NewGenerator(),
		Hasher:      credential.Argon2id{},
		Sealer:      sealer,
		Documents: app.NewDocumentIssuer(repo, renderer, clk, app.DocumentPrefixes{
			Invoice:  cfg.Docs.InvoicePrefix,
			Contract: cfg.Docs.ContractPrefix,
		}, log),
		Payments:  payments,
		Retries:   riveradapter.NewScheduler(jobs, cfg.Payment.RetryDelay),
		Notifier:  notifier,
		Publisher: publisher,
		Clock:     clk,
		Runner:    app.NewRunner(log, observer),
		Logger:    log,
	}, app.ProvisionerConfig{
		PersistTimeout:  cfg.PersistTimeout,
		StepTimeout:     cfg.StepTimeout,
		RecoveryWindow:  cfg.Recovery.Window,
		PaymentProvider: stripe.Provider(),
		Currency:        cfg.Payment.Currency,
		TenantDomain:    cfg.Platform.TenantDomain,
		LoginURL:        cfg.Platform.LoginURL,
	})

	svc := app.NewTenantService(app.TenantServiceDeps{
		Repo:        tenants,
		Publisher:   publisher,
		Validator:   fsm.New(),
		Payments:    payments,
		Documents:   repo,
		Credentials: repo,
		Sealer:      sealer,
		Clock:       clk,
		Logger:      log,
	})

	// --- Adapters (in) ---
	limiterStop := make(chan struct{})
	defer close(limiterStop)

	router := chi.NewMux()
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Logger)
	router.Use(middleware.Recoverer)
	router.Use(otelchi.Middleware(otelCfg.ServiceName, otelchi.WithChiRoutes(router)))
	router.Use(handler.RateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst, limiterStop))

	api := humachi.New(router, huma.DefaultConfig("tenantforge", serviceVersion))
	api.UseMiddleware(handler.OperatorAuth(api, cfg.OperatorTokens))
	handler.Register(api, provisioner, svc)

	// --- Server ---
	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("tenantforge listening", zap.String("addr", srv.Addr), zap.String("docs", "/docs"))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server: %w", err)
		}
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}

	log.Info("stopped")
	return nil
}
