package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/Joseda-hg/dashtrack/internal/auth"
	"github.com/Joseda-hg/dashtrack/internal/tui"
)

type rootFlags struct {
	configPath string
	dbPath     string
	backend    string
	variant    string
}

func newRootCmd(version string) *cobra.Command {
	flags := &rootFlags{}
	cmd := &cobra.Command{
		Use:          "dashtrack",
		Short:        "Kanban task board for the terminal and the browser",
		Version:      version,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runTUI(cmd.Context(), flags)
		},
	}

	persistent := cmd.PersistentFlags()
	persistent.StringVar(&flags.configPath, "config", "", "config file path")
	persistent.StringVar(&flags.dbPath, "db", "", "sqlite db path")
	persistent.StringVar(&flags.backend, "backend", "", "board storage: sqlite, file, neo4j or memory")
	persistent.StringVar(&flags.variant, "variant", "", "board variant: tracker or planner")

	cmd.AddCommand(newServeCmd(flags))
	cmd.AddCommand(newExportCmd(flags))
	cmd.AddCommand(newVersionCmd(version))
	return cmd
}

func newVersionCmd(version string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "dashtrack %s\n", version)
		},
	}
}

func runTUI(ctx context.Context, flags *rootFlags) error {
	cfg, cfgPath, err := loadConfig(flags)
	if err != nil {
		return err
	}

	// The terminal belongs to gocui while it runs.
	logFile, err := os.OpenFile(filepath.Join(filepath.Dir(cfgPath), "dashtrack.log"), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}
	defer logFile.Close()
	logger := log.New(logFile, "", log.LstdFlags)

	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	provider := auth.NewLocalProvider(a.auth, filepath.Join(filepath.Dir(cfgPath), "session"))
	defer provider.Close()

	opts := tui.Options{
		Schema:   a.schema,
		Manager:  a.manager,
		Sessions: provider,
		Now:      time.Now,
	}
	if a.history != nil {
		opts.History = a.history
	}
	return tui.Run(opts)
}
