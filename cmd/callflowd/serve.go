package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	backend "github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"

	"github.com/sprucehealth/callflow/config"
	"github.com/sprucehealth/callflow/executor"
	"github.com/sprucehealth/callflow/logging"
	"github.com/sprucehealth/callflow/metrics"
	"github.com/sprucehealth/callflow/orchestrator"
	"github.com/sprucehealth/callflow/provider"
	"github.com/sprucehealth/callflow/simclock"
	"github.com/sprucehealth/callflow/store"
	"github.com/sprucehealth/callflow/webhook"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook server",
	Long:  `Starts the call-flow engine, listening for provider callbacks.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		path, _ := cmd.Flags().GetString("config")
		cfg, err := config.Load(path)
		if err != nil {
			return err
		}
		return serve(cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func serve(cfg *config.Config) error {
	log := logging.New(logging.ParseLevel(cfg.Log.Level), cfg.Log.JSON)
	clock := simclock.NewWallClock()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	met := metrics.New(reg)

	var st store.Store
	switch cfg.Store.Backend {
	case "redis":
		client := backend.NewClient(&backend.Options{
			Addr:     cfg.Store.Redis.Addr,
			Password: cfg.Store.Redis.Password,
			DB:       cfg.Store.Redis.DB,
		})
		defer client.Close()
		st = store.NewRedisStore(client, store.WithTerminalTTL(cfg.Store.Redis.TerminalTTL.Std()))
	default:
		mem := store.NewMemoryStore(clock, cfg.Store.TerminalGrace.Std(), cfg.Store.SweepInterval.Std())
		defer mem.Close()
		st = mem
	}

	sink, err := executor.NewDirSink(cfg.Recordings.Dir)
	if err != nil {
		return err
	}

	client := provider.NewHTTPClient(
		cfg.Provider.BaseURL,
		cfg.Provider.AccountID,
		cfg.Provider.Username,
		cfg.Provider.Password,
		cfg.Provider.Timeout.Std(),
	)

	orch := orchestrator.New(cfg.FlowConfig(), st, client, sink, log, met, clock)

	srv := &http.Server{
		Addr:    cfg.Server.Addr,
		Handler: webhook.NewRouter(orch, st, log, reg),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("starting webhook server", "addr", srv.Addr, "store", cfg.Store.Backend)
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)

	case sig := <-shutdown:
		log.Info("shutting down", "signal", sig.String())
		ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Std())
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Warn("graceful shutdown did not complete", "error", err)
			if err := srv.Close(); err != nil {
				return fmt.Errorf("closing server: %w", err)
			}
		}
		log.Info("server stopped")
	}
	return nil
}
