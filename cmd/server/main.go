package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"gridconsent/internal/audit"
	documentmetrics "gridconsent/internal/document/metrics"
	"gridconsent/internal/document/render"
	"gridconsent/internal/document/signer"
	documentservice "gridconsent/internal/document/service"
	grantmetrics "gridconsent/internal/grant/metrics"
	grantservice "gridconsent/internal/grant/service"
	"gridconsent/internal/party"
	"gridconsent/internal/party/directory"
	"gridconsent/internal/platform/config"
	"gridconsent/internal/platform/httpserver"
	"gridconsent/internal/platform/logger"
	"gridconsent/internal/platform/postgres"
	platformredis "gridconsent/internal/platform/redis"
	"gridconsent/internal/platform/telemetry"
	"gridconsent/internal/request"
	requestmetrics "gridconsent/internal/request/metrics"
	requestservice "gridconsent/internal/request/service"
	"gridconsent/internal/storage"
	httpapi "gridconsent/internal/transport/http"
)

// main wires dependencies and runs the server plus the expiry sweeper.
// Business logic lives in the internal services.
func main() {
	cfg := config.FromEnv()
	log := logger.New(slog.LevelInfo)

	if err := run(cfg, log); err != nil {
		log.Error("server exited", slog.Any("error", err))
		os.Exit(1)
	}
}

func run(cfg config.Config, log *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdownTelemetry, err := telemetry.Init(ctx, "gridconsent")
	if err != nil {
		return err
	}
	defer func() { _ = shutdownTelemetry(context.Background()) }()

	runner, err := buildRunner(ctx, cfg, log)
	if err != nil {
		return err
	}

	personDirectory, err := buildDirectory(ctx, cfg, log)
	if err != nil {
		return err
	}
	resolver := party.NewResolver(personDirectory)

	// The designated system actor is resolved once at startup; its internal
	// id anchors the consume/getScopes authorization checks.
	systemParty, err := resolveSystemActor(ctx, runner, resolver, cfg.SystemActorName)
	if err != nil {
		return err
	}
	log.Info("system actor resolved", slog.String("party_id", systemParty.String()))

	auditor, closeAuditor, err := buildAuditor(cfg, log)
	if err != nil {
		return err
	}
	defer closeAuditor()

	orch := request.NewOrchestrator()
	grants := grantservice.NewService(runner, systemParty, log,
		grantservice.WithMetrics(grantmetrics.New()))
	requests := requestservice.NewService(runner, orch, resolver, grants, log,
		requestservice.WithMetrics(requestmetrics.New()),
		requestservice.WithAuditor(auditor))
	documents := documentservice.NewService(runner, orch, render.NewRenderer("gridconsent"),
		buildSigner(cfg, log), grants, log,
		documentservice.WithMetrics(documentmetrics.New()))

	handler := httpapi.NewHandler(requests, grants, documents, auditor, log)
	srv := httpserver.New(cfg.Addr, httpapi.NewRouter(handler, []byte(cfg.JWTSigningKey)))

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting gridconsent", slog.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	// Expired is derived internally: the sweeper periodically closes Pending
	// requests whose validity window has passed.
	g.Go(func() error {
		ticker := time.NewTicker(cfg.ExpiryInterval)
		defer ticker.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-ticker.C:
				if _, err := requests.ExpireOverdue(gctx); err != nil {
					log.Error("expiry sweep failed", slog.Any("error", err))
				}
			}
		}
	})

	return g.Wait()
}

func buildRunner(ctx context.Context, cfg config.Config, log *slog.Logger) (storage.Runner, error) {
	if cfg.PostgresDSN == "" {
		log.Warn("POSTGRES_DSN not set, using the in-memory store")
		return storage.NewMemoryRunner(), nil
	}
	db, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return nil, err
	}
	return storage.NewPostgresRunner(db), nil
}

func buildDirectory(ctx context.Context, cfg config.Config, log *slog.Logger) (party.Directory, error) {
	client := directory.NewClient(cfg.PersonDirectoryURL)
	if cfg.RedisAddr == "" {
		return client, nil
	}
	redisClient, err := platformredis.Open(ctx, cfg.RedisAddr, cfg.RedisPassword)
	if err != nil {
		return nil, err
	}
	log.Info("person directory cache enabled", slog.String("addr", cfg.RedisAddr))
	return directory.NewCache(client, directory.NewRedisKV(redisClient), 24*time.Hour, log), nil
}

func buildSigner(cfg config.Config, log *slog.Logger) signer.Signer {
	if cfg.VaultAddr == "" {
		log.Warn("VAULT_ADDR not set, using the dummy signer")
		return signer.Dummy{}
	}
	return signer.NewVault(cfg.VaultAddr, cfg.VaultToken, cfg.VaultKeyName)
}

func buildAuditor(cfg config.Config, log *slog.Logger) (audit.Publisher, func(), error) {
	if len(cfg.KafkaBrokers) == 0 {
		return audit.Noop{}, func() {}, nil
	}
	publisher, err := audit.NewKafkaPublisher(cfg.KafkaBrokers, cfg.KafkaTopic, log)
	if err != nil {
		return nil, nil, err
	}
	closer := func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := publisher.Close(ctx); err != nil {
			log.Error("audit publisher close failed", slog.Any("error", err))
		}
	}
	return publisher, closer, nil
}

func resolveSystemActor(ctx context.Context, runner storage.Runner, resolver *party.Resolver, name string) (party.ID, error) {
	var id party.ID
	err := runner.RunInTx(ctx, func(tx storage.Tx) error {
		p, err := resolver.Resolve(ctx, tx.Parties(), party.ExternalIdentifier{
			Kind:  party.KindSystemName,
			Value: name,
		})
		if err != nil {
			return err
		}
		id = p.ID
		return nil
	})
	return id, err
}
