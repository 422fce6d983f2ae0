package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/Coritp27/sysga-sub001/internal/audit"
	auditkafka "github.com/Coritp27/sysga-sub001/internal/audit/kafka"
	"github.com/Coritp27/sysga-sub001/internal/card"
	cardhandler "github.com/Coritp27/sysga-sub001/internal/card/handler"
	cardservice "github.com/Coritp27/sysga-sub001/internal/card/service"
	httpapi "github.com/Coritp27/sysga-sub001/internal/http"
	jwttoken "github.com/Coritp27/sysga-sub001/internal/jwt_token"
	"github.com/Coritp27/sysga-sub001/internal/ledger/bridge"
	"github.com/Coritp27/sysga-sub001/internal/otp"
	otphandler "github.com/Coritp27/sysga-sub001/internal/otp/handler"
	"github.com/Coritp27/sysga-sub001/internal/otp/ratelimit"
	"github.com/Coritp27/sysga-sub001/internal/otp/sender"
	otpservice "github.com/Coritp27/sysga-sub001/internal/otp/service"
	"github.com/Coritp27/sysga-sub001/internal/platform/config"
	"github.com/Coritp27/sysga-sub001/internal/platform/httpserver"
	"github.com/Coritp27/sysga-sub001/internal/platform/logger"
	"github.com/Coritp27/sysga-sub001/internal/platform/metrics"
	redisclient "github.com/Coritp27/sysga-sub001/internal/platform/redis"
	"github.com/Coritp27/sysga-sub001/internal/storage"
	"github.com/Coritp27/sysga-sub001/internal/verify"
	verifyhandler "github.com/Coritp27/sysga-sub001/internal/verify/handler"
)

const auditInboxSize = 1024

// main wires the dependency graph and owns the process lifecycle. Business
// logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New()

	if err := run(cfg, log); err != nil {
		log.Error("server exited", "error", err)
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := sql.Open("postgres", cfg.PostgresDSN)
	if err != nil {
		return err
	}
	defer db.Close()
	if err := db.PingContext(ctx); err != nil {
		return err
	}
	if err := storage.Apply(ctx, db); err != nil {
		return err
	}

	redis, err := redisclient.New(cfg.RedisURL)
	if err != nil {
		return err
	}
	if redis != nil {
		defer redis.Close()
	}

	m := metrics.New()

	// Audit pipeline: services emit into the inbox, the worker fans out to
	// whichever sinks are configured.
	inbox := make(chan audit.Event, auditInboxSize)
	publisher := audit.NewChannelPublisher(inbox, log)

	sinks := []audit.Sink{audit.NewPostgresStore(db)}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaSink, err := auditkafka.NewSink(cfg.KafkaBrokers, cfg.AuditTopic)
		if err != nil {
			return err
		}
		defer kafkaSink.Close()
		sinks = append(sinks, kafkaSink)
	}
	worker := audit.NewWorker(inbox, log, sinks...)
	go func() {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error("audit worker stopped", "error", err)
		}
	}()

	cardStore := card.NewPostgres(db)
	ledgerClient := bridge.New(cfg.LedgerBridgeURL)

	cards, err := cardservice.New(cardStore, ledgerClient,
		cardservice.WithLogger(log),
		cardservice.WithAuditPublisher(publisher),
		cardservice.WithMetrics(m),
		cardservice.WithConfirmTimeout(cfg.LedgerConfirmTimeout),
	)
	if err != nil {
		return err
	}

	verifier, err := verify.New(cardStore, ledgerClient,
		verify.WithLogger(log),
		verify.WithAuditPublisher(publisher),
		verify.WithMetrics(m),
	)
	if err != nil {
		return err
	}

	var limiter ratelimit.Limiter = ratelimit.NewInMemory()
	if redis != nil {
		limiter = ratelimit.NewRedis(redis.Client)
	}
	gate, err := otpservice.New(otp.NewPostgres(db), cardStore, limiter,
		sender.NewLogSender(log),
		otpservice.WithLogger(log),
		otpservice.WithAuditPublisher(publisher),
		otpservice.WithMetrics(m),
		otpservice.WithConfig(cfg.OTP),
	)
	if err != nil {
		return err
	}

	jwtService := jwttoken.NewJWTService(cfg.JWTSigningKey, "sysga", "sysga-api")
	jwtValidator := jwttoken.NewJWTServiceAdapter(jwtService)

	router := httpapi.New(httpapi.Deps{
		Logger:  log,
		Metrics: m,
		DB:      db,
		Redis:   redis,
		Handlers: []httpapi.Registrar{
			cardhandler.New(cards, log, m, jwtValidator),
			verifyhandler.New(verifier, log, m, jwtValidator),
			otphandler.New(gate, log),
		},
	})

	srv := httpserver.New(cfg.Addr, router)

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	log.Info("server stopped")
	return nil
}
