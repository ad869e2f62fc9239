package cmd

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/altowierigge/maestro/internal/engine"
	"github.com/altowierigge/maestro/internal/web"
)

var serveAddr string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the read-only monitoring API",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "listen address (default from config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	comps, err := buildComponents()
	if err != nil {
		return err
	}
	defer comps.close()

	addr := cfg.Server.Addr
	if serveAddr != "" {
		addr = serveAddr
	}
	server := web.New(addr, comps.store, comps.recorder, comps.cost, logger)

	// Watch for active-workflow switches while serving so status
	// reflects the workflow operators actually selected.
	watcher := engine.NewWatcher(filepath.Dir(cfg.Workflow.Path), logger, func(def *engine.WorkflowDefinition) {
		logger.Info("active workflow now", "workflow", def.Name, "version", def.Version)
	})

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return server.Run(gctx) })
	g.Go(func() error { return watcher.Run(gctx) })

	err = g.Wait()
	if errors.Is(err, http.ErrServerClosed) || errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}
