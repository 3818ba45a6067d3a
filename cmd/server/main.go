package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"go.opentelemetry.io/otel"
	"golang.org/x/sync/errgroup"

	"checkin/internal/checkin/handler"
	checkinmetrics "checkin/internal/checkin/metrics"
	"checkin/internal/checkin/reader"
	"checkin/internal/checkin/seed"
	"checkin/internal/checkin/service/ledger"
	registrysvc "checkin/internal/checkin/service/registry"
	"checkin/internal/checkin/service/session"
	jwttoken "checkin/internal/jwt_token"
	"checkin/internal/platform/config"
	"checkin/internal/platform/httpserver"
	"checkin/internal/platform/logger"
	platformmetrics "checkin/internal/platform/metrics"
	httptransport "checkin/internal/transport/http"
	id "checkin/pkg/domain"
	dErrors "checkin/pkg/domain-errors"
	"checkin/pkg/platform/audit/publisher"
)

// main wires dependencies, serves the HTTP router and shuts everything down
// in order on SIGINT or SIGTERM. Business logic lives in internal/checkin.
func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg := config.FromEnv()
	log := logger.New(cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Error("checkin server exited", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, log *slog.Logger) error {
	defaultMode, err := reader.ParseMode(cfg.Scanner.DefaultMode)
	if err != nil {
		return fmt.Errorf("CHECKIN_SCANNER_MODE: %w", err)
	}

	infra := newInfra(log)
	defer infra.close()

	stores, err := infra.buildStores(ctx, cfg)
	if err != nil {
		return err
	}

	pub := publisher.NewPublisher(stores.audit,
		publisher.WithAsyncBuffer(cfg.Kafka.AuditBuffer),
		publisher.WithLogger(log),
	)
	defer pub.Close()

	metrics := checkinmetrics.New()

	reg, err := registrysvc.New(stores.registry, stores.entities,
		registrysvc.WithLogger(log),
		registrysvc.WithAuditPublisher(pub),
		registrysvc.WithMetrics(metrics),
	)
	if err != nil {
		return fmt.Errorf("build registry service: %w", err)
	}
	led, err := ledger.New(stores.entities,
		ledger.WithLogger(log),
		ledger.WithAuditPublisher(pub),
		ledger.WithMetrics(metrics),
		ledger.WithBindingImporter(reg),
	)
	if err != nil {
		return fmt.Errorf("build ledger service: %w", err)
	}

	if cfg.SeedDemo {
		if err := seedDemo(ctx, led, log); err != nil {
			return err
		}
	}

	tracer := otel.Tracer("checkin/session")
	sessions, err := session.NewManager(func(deviceID id.DeviceID) (*session.Session, error) {
		readers := reader.NewSet(
			reader.NewSimulated(reader.WithDelay(cfg.Scanner.SimulatedDelay)),
			reader.NewHardware(hardwareDriver(cfg.Scanner), reader.WithHardwareLogger(log)),
		)
		return session.New(readers, reg, led,
			session.WithDeviceID(deviceID),
			session.WithLogger(log),
			session.WithAuditPublisher(pub),
			session.WithMetrics(metrics),
			session.WithTracer(tracer),
			session.WithSubscriberBuffer(cfg.Scanner.SubscriberBuffer),
		)
	})
	if err != nil {
		return fmt.Errorf("build session manager: %w", err)
	}
	defer sessions.StopAll()

	jwtService := jwttoken.NewJWTService(cfg.Auth.JWTSigningKey, cfg.Auth.Issuer, cfg.Auth.Audience)
	h := handler.New(led, reg, sessions, log, metrics,
		handler.WithDefaultMode(defaultMode),
		handler.WithOriginPatterns(cfg.Server.FeedOrigins...),
		handler.WithTokenIssuer(jwtService),
	)
	if cfg.Server.AdminToken == "" {
		log.Warn("CHECKIN_ADMIN_TOKEN not set, guest import and device enrollment are disabled")
	}

	router := httptransport.NewRouter(httptransport.Deps{
		Handler:      h,
		Validator:    jwttoken.NewJWTServiceAdapter(jwtService),
		AdminToken:   cfg.Server.AdminToken,
		Logger:       log,
		HTTPMetrics:  platformmetrics.New(),
		HealthChecks: infra.healthChecks(),
	})

	srv := httpserver.New(cfg.Server.Addr, router, cfg.Server.ReadHeaderTimeout)
	srv.RegisterOnShutdown(h.Shutdown)

	log.Info("starting checkin",
		"addr", cfg.Server.Addr,
		"default_mode", defaultMode.String(),
		"registry_store", cfg.Stores.Registry,
		"entity_store", cfg.Stores.Entities,
		"audit_store", cfg.Stores.Audit,
		"hardware_device", cfg.Scanner.HardwareDevice,
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return httpserver.Run(gctx, srv, cfg.Server.ShutdownTimeout, log)
	})
	g.Go(func() error {
		<-gctx.Done()
		// Cancel scans still listening so their outcomes are reported
		// before the stores close.
		sessions.StopAll()
		return nil
	})
	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	log.Info("checkin stopped")
	return nil
}

// hardwareDriver returns the line driver for the configured device, or a
// driver that reports hardware as unsupported.
func hardwareDriver(cfg config.Scanner) reader.Driver {
	if cfg.HardwareDevice == "" {
		return reader.UnsupportedDriver{}
	}
	return reader.NewLineDriver(cfg.HardwareDevice)
}

func seedDemo(ctx context.Context, led *ledger.Service, log *slog.Logger) error {
	guests, err := seed.DemoGuests()
	if err != nil {
		return err
	}
	summary, err := led.ImportGuests(ctx, guests)
	if dErrors.HasCode(err, dErrors.CodeConflict) {
		// Persistent stores keep the list across restarts.
		log.Info("demo guest list already loaded")
		return nil
	}
	if err != nil {
		return fmt.Errorf("seed demo guests: %w", err)
	}
	log.Info("demo guest list loaded", "entities", summary.Entities, "bindings", summary.Bindings)
	return nil
}
