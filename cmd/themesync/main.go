package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/fatih/color"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syncforge/themesync/internal/config"
	"github.com/syncforge/themesync/internal/utils"
	"github.com/syncforge/themesync/internal/version"
)

var cyan = color.New(color.FgHiCyan, color.Bold).SprintFunc()

var rootCmd = &cobra.Command{
	Use:     "themesync",
	Short:   "Keep board templates and theme stylesheets in sync with disk",
	Version: version.Detailed(),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := configFromViper()
		if err != nil {
			return err
		}

		cmd.SilenceUsage = true
		fmt.Printf("%s %s\n", cyan(version.AppName), version.Short())

		return runDaemon(cmd.Context(), cfg)
	},
}

func init() {
	rootCmd.Flags().SortFlags = false
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultConfigPath, "config file")
	rootCmd.PersistentFlags().StringP("root", "r", config.DefaultSyncRoot, "sync root directory")
	rootCmd.PersistentFlags().StringP("board-db", "d", "", "path to the board database")
	rootCmd.PersistentFlags().StringP("board-url", "u", config.DefaultBoardURL, "base URL of the board application")
	rootCmd.PersistentFlags().String("control", config.DefaultControl, "control plane listen address")
}

func main() {
	setupLogging()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

func setupLogging() {
	stdoutHandler := tint.NewHandler(os.Stdout, &tint.Options{
		Level:      slog.LevelInfo,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
		NoColor:    !isatty.IsTerminal(os.Stdout.Fd()),
	})

	handlers := []slog.Handler{stdoutHandler}

	logFile := config.DefaultLogPath
	if err := os.MkdirAll(filepath.Dir(logFile), 0o755); err == nil {
		if file, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644); err == nil {
			handlers = append(handlers, slog.NewTextHandler(file, &slog.HandlerOptions{
				Level: slog.LevelDebug,
			}))
		}
	}

	slog.SetDefault(slog.New(utils.NewMultiLogHandler(handlers...)))
}

func loadConfig(cmd *cobra.Command) error {
	if cmd.Flags().Lookup("config").Changed {
		configFilePath, _ := cmd.Flags().GetString("config")
		viper.SetConfigFile(configFilePath)
	} else {
		home, _ := os.UserHomeDir()
		viper.AddConfigPath(filepath.Join(home, ".themesync"))
		viper.AddConfigPath(filepath.Join(home, ".config", "themesync"))
		viper.SetConfigName("config")
		viper.SetConfigType("json")
	}

	if err := viper.ReadInConfig(); err != nil {
		enoent := errors.Is(err, os.ErrNotExist)
		_, notFound := err.(viper.ConfigFileNotFoundError)
		if !enoent && !notFound {
			return fmt.Errorf("config read '%s': %w", viper.ConfigFileUsed(), err)
		}
	}

	viper.BindPFlag("sync_root", cmd.Flags().Lookup("root"))
	viper.BindPFlag("board_db", cmd.Flags().Lookup("board-db"))
	viper.BindPFlag("board_url", cmd.Flags().Lookup("board-url"))
	viper.BindPFlag("control_addr", cmd.Flags().Lookup("control"))

	viper.SetEnvPrefix("THEMESYNC")
	viper.AutomaticEnv()

	return nil
}

func configFromViper() (*config.Config, error) {
	cfg := &config.Config{
		Path:        viper.ConfigFileUsed(),
		SyncRoot:    viper.GetString("sync_root"),
		BoardDB:     viper.GetString("board_db"),
		BoardURL:    viper.GetString("board_url"),
		ControlAddr: viper.GetString("control_addr"),
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
