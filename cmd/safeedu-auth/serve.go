package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	auth "github.com/safeedu/go-auth"
	"github.com/safeedu/go-auth/activitymap"
	"github.com/safeedu/go-auth/config"
	"github.com/safeedu/go-auth/metrics"
	"github.com/safeedu/go-auth/middleware/ratelimit"
	"github.com/safeedu/go-auth/repository"
	"github.com/safeedu/go-auth/social/google"
)

const shutdownTimeout = 10 * time.Second

// NewServeCmd creates the serve subcommand.
func NewServeCmd() *cobra.Command {
	var autoMigrate bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Start the HTTP API serving sign-in, sign-up, Google sign-in, OTP
verification, token refresh and sign-out.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, autoMigrate)
		},
	}

	cmd.Flags().BoolVar(&autoMigrate, "migrate", false, "create missing tables before serving")

	return cmd
}

// server groups what runServe builds so tests can drive the app directly
type server struct {
	app      *fiber.App
	provider *config.Provider
	cleanup  []func()
}

func (s *server) close() {
	for i := len(s.cleanup) - 1; i >= 0; i-- {
		s.cleanup[i]()
	}
}

func runServe(cmd *cobra.Command, autoMigrate bool) error {
	provider, logger, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	srv, err := newServer(cmd.Context(), provider, logger, autoMigrate)
	if err != nil {
		return err
	}
	defer srv.close()

	if configFile != "" {
		if err := provider.Watch(); err != nil {
			logger.Warn("config watch disabled", "error", err)
		} else {
			defer provider.Close()
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	addr := provider.Settings().HTTPAddress
	errCh := make(chan error, 1)
	go func() {
		logger.Info("http server listening", "addr", addr)
		errCh <- srv.app.Listen(addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		logger.Info("shutting down http server")
		return srv.app.ShutdownWithTimeout(shutdownTimeout)
	}
}

func newServer(ctx context.Context, provider *config.Provider, logger auth.Logger, autoMigrate bool) (*server, error) {
	settings := provider.Settings()
	srv := &server{provider: provider}

	db, err := repository.Open(settings.DatabaseDSN)
	if err != nil {
		return nil, err
	}
	srv.cleanup = append(srv.cleanup, func() { _ = db.Close() })

	if autoMigrate {
		if err := repository.CreateSchema(ctx, db); err != nil {
			srv.close()
			return nil, err
		}
	}

	repo := auth.NewRepositoryManager(db)
	if err := repo.Validate(); err != nil {
		srv.close()
		return nil, err
	}

	m := metrics.New(prometheus.NewRegistry())

	auther := auth.NewAuthenticator(repo, provider).
		WithLogger(logger).
		WithActivitySink(auth.ActivitySinks{m, activitymap.NewLogSink(logger)}).
		WithOTPVerifier(auth.NewStaticOTPVerifier(settings.OTPCode))

	if len(settings.GoogleClientIDs) > 0 {
		verifier, err := google.New(google.Config{
			ClientIDs: settings.GoogleClientIDs,
			JWKSURL:   settings.GoogleJWKSURL,
			Logger:    logger,
		})
		if err != nil {
			srv.close()
			return nil, err
		}
		srv.cleanup = append(srv.cleanup, verifier.Close)
		auther.WithFederatedIdentityVerifier(verifier)
	} else {
		logger.Warn("no google client ids configured, federated sign-in is disabled")
	}

	var mailer auth.Mailer
	if settings.SMTPAddr != "" {
		mailer = auth.NewSMTPMailer(settings.SMTPAddr, settings.SMTPUsername, settings.SMTPPassword)
	}
	auther.WithMailer(mailer, settings.MailFrom)

	app := fiber.New(fiber.Config{
		AppName:               "safeedu-auth",
		ErrorHandler:          auth.NewErrorHandler(logger),
		DisableStartupMessage: true,
	})

	if settings.MetricsEnabled {
		app.Use(m.Middleware())
		app.Get(settings.MetricsPath, m.Handler())
	}

	app.Get("/healthz", func(c *fiber.Ctx) error {
		if err := db.PingContext(c.UserContext()); err != nil {
			return fiber.NewError(fiber.StatusServiceUnavailable, "database unavailable")
		}
		return c.JSON(fiber.Map{"status": "ok"})
	})

	opts := []auth.AuthControllerOption{auth.WithControllerLogger(logger)}
	if settings.RateLimit > 0 {
		limiter := ratelimit.NewLimiter(ratelimit.Config{
			PerSecond: settings.RateLimit,
			Burst:     settings.RateBurst,
		})
		srv.cleanup = append(srv.cleanup, limiter.StartCleanup(ratelimit.DefaultCleanupInterval))
		opts = append(opts, auth.WithRateLimit(limiter.Handler()))
	}

	auth.NewAuthController(auther, provider, opts...).Register(app)

	srv.app = app
	return srv, nil
}
