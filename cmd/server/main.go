package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Mintimate/open-kounter/internal/config"
	"github.com/Mintimate/open-kounter/internal/httpapi"
	"github.com/Mintimate/open-kounter/internal/logging"
	"github.com/Mintimate/open-kounter/internal/metrics"
	"github.com/Mintimate/open-kounter/internal/passkey"
	"github.com/Mintimate/open-kounter/internal/store"
	"github.com/Mintimate/open-kounter/internal/store/memory"
	"github.com/Mintimate/open-kounter/internal/store/postgres"
	"github.com/Mintimate/open-kounter/internal/store/sqlite"
	"github.com/Mintimate/open-kounter/internal/systemtoken"

	"github.com/sirupsen/logrus"
)

type kvStore interface {
	store.KV
	store.Sweeper
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("load config: %v", err)
	}
	log := logging.New("open-kounter", cfg.LogLevel, os.Stdout)

	rootCtx, cancelRoot := context.WithCancel(context.Background())
	defer cancelRoot()

	kv, closer, err := openStore(cfg)
	if err != nil {
		log.Fatalf("failed to init %s store: %v", cfg.Backend(), err)
	}
	defer closer()
	log.Infof("using %s store", cfg.Backend())

	go store.RunSweeper(rootCtx, kv, cfg.SweepInterval, func(n int, err error) {
		metrics.RecordSweep(cfg.Backend(), n, err)
		if err != nil {
			log.WithError(err).Warn("expiry sweep failed")
			return
		}
		if n > 0 {
			log.Debugf("expiry sweep removed %d entries", n)
		}
	})

	tokens := systemtoken.NewSource(kv, cfg.AdminToken)
	passkeys := passkey.NewService(kv, tokens,
		passkey.WithLogger(log),
		passkey.WithChallengeTTL(cfg.ChallengeTTL),
		passkey.WithManagementTokenTTL(cfg.ManagementTokenTTL),
	)
	auth := systemtoken.NewAuth(tokens, passkeys, log)
	srv := httpapi.NewServer(cfg, log, passkeys, auth)

	httpServer := &http.Server{
		Addr:              cfg.ListenAddr(),
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Infof("open-kounter listening on %s", cfg.ListenAddr())
		errCh <- httpServer.ListenAndServe()
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	select {
	case <-stop:
		log.Info("shutdown requested")
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			log.WithError(err).Error("server error")
		}
	}

	cancelRoot()

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	_ = httpServer.Shutdown(ctxShutdown)
}

func openStore(cfg config.Config) (kvStore, func(), error) {
	switch cfg.Backend() {
	case config.BackendPostgres:
		pg, err := postgres.NewStore(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return pg, pg.Close, nil
	case config.BackendSQLite:
		db, err := sqlite.Open(cfg.DBPath)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { _ = db.Close() }, nil
	default:
		return memory.NewStore(), func() {}, nil
	}
}
