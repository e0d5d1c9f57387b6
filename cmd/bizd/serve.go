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

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rsahai/bizkeeper/cmd/bizd/handlers"
	"github.com/rsahai/bizkeeper/internal/connectivity"
	"github.com/rsahai/bizkeeper/internal/db"
	"github.com/rsahai/bizkeeper/internal/remote"
	"github.com/rsahai/bizkeeper/internal/store"
	syncpkg "github.com/rsahai/bizkeeper/internal/sync"
	"github.com/rsahai/bizkeeper/internal/sync/scheduler"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local data layer with background sync",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	baseURL := viper.GetString("remote.base_url")
	if baseURL == "" {
		return errors.New("remote.base_url is not configured")
	}
	probeURL := viper.GetString("connectivity.probe_url")
	if probeURL == "" {
		probeURL = baseURL + "/api/health"
	}

	database, err := db.Open(viper.GetString("data_dir"))
	if err != nil {
		return err
	}
	defer database.Close()

	st := store.NewManager(database)
	if err := st.Init(); err != nil {
		return err
	}

	hub := NewWSHub()
	defer hub.Close()

	client := remote.NewHTTPClient(baseURL, 0)
	engine := syncpkg.NewEngine(st, client, syncpkg.Config{
		MaxRetries:     viper.GetInt("sync.max_retries"),
		RequestTimeout: viper.GetDuration("remote.request_timeout"),
		Events:         hub,
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	monitor := connectivity.NewMonitor(probeURL, viper.GetDuration("connectivity.probe_interval"))
	monitor.Start(ctx)
	defer monitor.Stop()

	sched := scheduler.NewScheduler(engine, monitor, viper.GetDuration("sync.interval"))
	sched.Start(ctx)
	defer sched.Stop()

	mux := http.NewServeMux()
	handlers.NewLocalHandler(st).Register(mux)
	handlers.NewSyncHandler(st, engine, monitor).Register(mux)
	mux.HandleFunc("GET /api/health", handlers.Health)
	mux.HandleFunc("GET /ws", hub.ServeWS)

	addr := viper.GetString("server.addr")
	server := &http.Server{
		Addr:         addr,
		Handler:      mux,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Msg("bizd listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("serve: %w", err)
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
