package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	rcron "github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/Joseda-hg/dashtrack/internal/web"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(flags *rootFlags) *cobra.Command {
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the web server",
		Long: `Serve the HTML board and the JSON API.

Examples:
  dashtrack serve
  dashtrack serve --port 9090 --backend file`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), flags, port)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "web server port (default from config)")
	return cmd
}

func runServe(ctx context.Context, flags *rootFlags, port int) error {
	cfg, _, err := loadConfig(flags)
	if err != nil {
		return err
	}
	if port != 0 {
		cfg.WebPort = port
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger := log.New(os.Stderr, "", log.LstdFlags)
	a, err := openApp(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.close()

	sweeper := rcron.New()
	if _, err := sweeper.AddFunc("@hourly", func() {
		removed, err := a.auth.PruneExpired(context.Background())
		if err != nil {
			logger.Printf("[auth] prune sessions: %v", err)
			return
		}
		if removed > 0 {
			logger.Printf("[auth] pruned %d expired sessions", removed)
		}
	}); err != nil {
		return err
	}
	sweeper.Start()
	defer func() {
		<-sweeper.Stop().Done()
	}()

	opts := []web.Option{web.WithLogger(logger)}
	if a.history != nil {
		opts = append(opts, web.WithHistory(a.history))
	}
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.WebPort),
		Handler:           web.NewServer(a.manager, a.auth, a.schema, opts...).Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Printf("Web server running at http://localhost%s (%s board, %s storage)", server.Addr, cfg.Variant, cfg.Backend)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}
