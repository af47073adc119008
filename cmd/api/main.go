package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"schoolbus/internal/api"
	"schoolbus/internal/buildinfo"
	"schoolbus/internal/config"
	"schoolbus/internal/metrics"
	"schoolbus/internal/webhooks"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	settings, err := config.FromEnv()
	if err != nil {
		_, _ = os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log, err := config.NewLogger(settings.LogLevel)
	if err != nil {
		_, _ = os.Stderr.WriteString(err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(settings, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}

func run(settings config.Settings, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	metrics.RegisterDefault()

	calib, err := config.LoadModel(settings.ModelConfigPath)
	if err != nil {
		return err
	}
	st, closeStore, err := api.OpenStore(settings, log)
	if err != nil {
		return err
	}
	defer func() { _ = closeStore() }()

	broker := api.OpenBroker(ctx, settings, log)
	if c, ok := broker.(interface{ Close() error }); ok {
		defer func() { _ = c.Close() }()
	}

	deps := api.Deps{Store: st, Broker: broker, Model: calib, Logger: log}
	if settings.WebhookURL != "" {
		n := webhooks.NewNotifier(settings.WebhookURL, settings.WebhookSecret, settings.WebhookMaxAttempts, log.Named("webhooks"))
		n.Start()
		defer func() { _ = n.Close() }()
		deps.Webhooks = n
	}
	srv := api.NewServer(settings, deps)
	hs := &http.Server{
		Addr:              ":" + settings.Port,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("listening",
			zap.String("addr", hs.Addr),
			zap.String("version", buildinfo.String()),
			zap.String("authMode", settings.AuthMode),
			zap.Int("calibratedDistricts", calib.Districts()))
		errc <- hs.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}
	log.Info("shutting down")
	sctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return hs.Shutdown(sctx)
}
