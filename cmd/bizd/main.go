// Command bizd runs the bizkeeper local data layer: an embedded store with
// an offline-first sync queue, a localhost REST/WebSocket surface for the
// desktop client, and a background sync scheduler.
package main

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/natefinch/lumberjack.v2"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "bizd",
	Short: "Offline-first local data layer for bizkeeper",
	Long: `bizd keeps projects, tasks, time entries, invoices and clients in a
local embedded store. Writes land locally first and are replayed to the
server in the background whenever it is reachable.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		return initConfig()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default bizkeeper.yaml in the data dir)")
	rootCmd.PersistentFlags().String("data-dir", defaultDataDir(), "directory for the database and logs")
	rootCmd.PersistentFlags().String("log-level", "info", "log level (trace, debug, info, warn, error)")
	viper.BindPFlag("data_dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	viper.BindPFlag("log.level", rootCmd.PersistentFlags().Lookup("log-level"))

	rootCmd.AddCommand(serveCmd, syncCmd, statusCmd)
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".bizkeeper"
	}
	return home + "/.bizkeeper"
}

func initConfig() error {
	viper.SetDefault("server.addr", "localhost:8091")
	viper.SetDefault("remote.base_url", "")
	viper.SetDefault("remote.request_timeout", 15*time.Second)
	viper.SetDefault("sync.interval", time.Minute)
	viper.SetDefault("sync.max_retries", 3)
	viper.SetDefault("connectivity.probe_url", "")
	viper.SetDefault("connectivity.probe_interval", 30*time.Second)
	viper.SetDefault("log.file", "")
	viper.SetDefault("log.level", "info")
	viper.SetDefault("data_dir", defaultDataDir())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("bizkeeper")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(viper.GetString("data_dir"))
		viper.AddConfigPath(".")
	}

	viper.SetEnvPrefix("BIZKEEPER")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// A missing default config file is fine; an explicit one is not.
		if _, notFound := err.(viper.ConfigFileNotFoundError); !notFound || cfgFile != "" {
			return fmt.Errorf("read config: %w", err)
		}
	}

	return setupLogging()
}

func setupLogging() error {
	level, err := zerolog.ParseLevel(viper.GetString("log.level"))
	if err != nil {
		return fmt.Errorf("parse log level: %w", err)
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	if logFile := viper.GetString("log.file"); logFile != "" {
		log.Logger = zerolog.New(&lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		}).With().Timestamp().Logger()
	} else {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen}).
			With().Timestamp().Logger()
	}
	return nil
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
