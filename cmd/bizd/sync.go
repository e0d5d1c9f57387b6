package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/rsahai/bizkeeper/internal/db"
	"github.com/rsahai/bizkeeper/internal/remote"
	"github.com/rsahai/bizkeeper/internal/store"
	syncpkg "github.com/rsahai/bizkeeper/internal/sync"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Drain the pending sync queue once and exit",
	RunE:  runSync,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending and failed sync queue counts",
	RunE:  runStatus,
}

func openStore() (*store.Manager, func(), error) {
	database, err := db.Open(viper.GetString("data_dir"))
	if err != nil {
		return nil, nil, err
	}
	st := store.NewManager(database)
	if err := st.Init(); err != nil {
		database.Close()
		return nil, nil, err
	}
	return st, func() { database.Close() }, nil
}

func runSync(cmd *cobra.Command, args []string) error {
	baseURL := viper.GetString("remote.base_url")
	if baseURL == "" {
		return errors.New("remote.base_url is not configured")
	}

	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	engine := syncpkg.NewEngine(st, remote.NewHTTPClient(baseURL, 0), syncpkg.Config{
		MaxRetries:     viper.GetInt("sync.max_retries"),
		RequestTimeout: viper.GetDuration("remote.request_timeout"),
	})

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Minute)
	defer cancel()
	if err := engine.SyncWithServer(ctx); err != nil {
		return err
	}

	result := engine.LastResult()
	fmt.Printf("delivered %d, evicted %d, remaining %d (%.1fs)\n",
		result.Delivered, result.Evicted, result.Remaining, result.Duration.Seconds())
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	st, closeStore, err := openStore()
	if err != nil {
		return err
	}
	defer closeStore()

	ctx := cmd.Context()
	pending, err := st.PendingSyncCount(ctx)
	if err != nil {
		return err
	}
	failed, err := st.FailedSyncCount(ctx)
	if err != nil {
		return err
	}

	fmt.Printf("pending: %d\nfailed:  %d\n", pending, failed)
	if failed > 0 {
		items, err := st.FailedSyncItems(ctx)
		if err != nil {
			return err
		}
		for _, item := range items {
			fmt.Printf("  #%d %s %s/%s: %s\n",
				item.LocalSeq, item.Op, item.Collection, item.EntityID, item.LastError)
		}
	}
	return nil
}
