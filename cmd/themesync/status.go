package main

import (
	"fmt"

	"github.com/imroc/req/v3"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/syncforge/themesync/internal/sync"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Query a running daemon's status",
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true

		addr := viper.GetString("control_addr")
		var status sync.Status
		res, err := req.C().R().
			SetContext(cmd.Context()).
			SetSuccessResult(&status).
			Get(fmt.Sprintf("http://%s/v1/status", addr))
		if err != nil {
			return fmt.Errorf("daemon not reachable at %s: %w", addr, err)
		}
		if res.IsErrorState() {
			return fmt.Errorf("daemon returned status %d", res.StatusCode)
		}

		fmt.Printf("watcher running: %v\n", status.WatcherRunning)
		fmt.Printf("paused:          %v\n", status.Paused)
		fmt.Printf("sync root:       %s\n", status.SyncRoot)
		fmt.Printf("board url:       %s\n", status.BoardURL)
		fmt.Printf("queue length:    %d\n", status.QueueLength)
		fmt.Printf("tracked files:   %d\n", status.TrackedFiles)
		for _, path := range status.DeletedFiles {
			fmt.Printf("deleted on disk: %s\n", path)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
