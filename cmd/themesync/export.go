package main

import (
	"fmt"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/syncforge/themesync/internal/db"
	"github.com/syncforge/themesync/internal/sync"
)

var green = color.New(color.FgHiGreen).SprintFunc()

var exportCmd = &cobra.Command{
	Use:   "export <template-set>",
	Short: "Export a template set from the board database to disk",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runExport(cmd, args[0], false)
	},
}

var exportThemeCmd = &cobra.Command{
	Use:   "export-theme <theme>",
	Short: "Export a theme's stylesheets from the board database to disk",
	Args:  cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return loadConfig(cmd)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		return runExport(cmd, args[0], true)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(exportThemeCmd)
}

func runExport(cmd *cobra.Command, name string, theme bool) error {
	cfg, err := configFromViper()
	if err != nil {
		return err
	}

	// One-shot exports only read the board; the manifest on disk is the
	// only thing they update.
	boardDB, err := db.NewSqliteDb(db.WithPath(cfg.BoardDB), db.WithReadOnly())
	if err != nil {
		return err
	}
	defer boardDB.Close()

	engine, err := sync.NewEngine(cfg, boardDB)
	if err != nil {
		return err
	}

	var result *sync.ExportResult
	if theme {
		result, err = engine.ExportTheme(cmd.Context(), name)
	} else {
		result, err = engine.ExportTemplateSet(cmd.Context(), name)
	}
	if err != nil {
		return err
	}

	fmt.Printf("%s %s: %d written, %d skipped, %d conflicts\n",
		green("exported"), result.Container, len(result.Written), len(result.Skipped), len(result.Conflicts))

	if len(result.Conflicts) > 0 {
		yellow := color.New(color.FgHiYellow).SprintFunc()
		sort.Strings(result.Conflicts)
		for _, path := range result.Conflicts {
			fmt.Printf("  %s %s (edited locally, left in place)\n", yellow("conflict"), path)
		}
	}

	if len(result.Groups) > 0 {
		groups := make([]string, 0, len(result.Groups))
		for group := range result.Groups {
			groups = append(groups, group)
		}
		sort.Strings(groups)
		for _, group := range groups {
			fmt.Printf("  %-28s %d\n", group, result.Groups[group])
		}
	}
	return nil
}
