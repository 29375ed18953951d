package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	httpAdapter "github.com/cwygoda/grabber/internal/adapter/http"
	"github.com/cwygoda/grabber/internal/adapter/processor"
	"github.com/cwygoda/grabber/internal/adapter/sqlite"
	"github.com/cwygoda/grabber/internal/domain"
	"github.com/cwygoda/grabber/internal/worker"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Accept listings over HTTP and process them from a queue",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Flags().Changed("port") {
				a.cfg.Port = port
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "HTTP listen port")
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	cfg, log := a.cfg, a.log
	log.Info("starting grabber",
		zap.Int("port", cfg.Port),
		zap.String("db", cfg.DBPath),
		zap.String("image_dir", cfg.ImageDir),
	)

	repo, err := sqlite.New(cfg.DBPath)
	if err != nil {
		return fmt.Errorf("initialize database: %w", err)
	}
	defer repo.Close()

	svc := domain.NewJobService(repo)

	if recovered, err := svc.RecoverStale(ctx); err != nil {
		log.Warn("failed to recover stale jobs", zap.Error(err))
	} else if recovered > 0 {
		log.Info("recovered stale jobs", zap.Int64("count", recovered))
	}

	ex, p := a.components()
	registry := processor.NewRegistry()
	for _, pc := range cfg.Processors {
		proc, err := processor.NewListingProcessor(pc, ex, p, cfg.ImageDir, cfg.Scale, log)
		if err != nil {
			return fmt.Errorf("processor %q: %w", pc.Name, err)
		}
		if err := registry.Register(proc); err != nil {
			return err
		}
		log.Info("registered processor", zap.String("name", proc.Name()), zap.String("target_dir", proc.TargetDir()))
	}

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := httpAdapter.NewServer(svc, addr, cfg.Secret, registry, log)
	w := worker.New(svc, registry, cfg.PollInterval, cfg.MaxRetries, log)

	ctx, stop := context.WithCancel(ctx)
	defer stop()

	workerDone := make(chan struct{})
	go func() {
		w.Run(ctx)
		close(workerDone)
	}()

	srvErr := make(chan error, 1)
	go func() {
		log.Info("HTTP server listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			srvErr <- err
		}
		close(srvErr)
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info("shutting down")
	case err := <-srvErr:
		runErr = fmt.Errorf("http server: %w", err)
		stop()
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn("HTTP server shutdown error", zap.Error(err))
	}

	<-workerDone
	log.Info("shutdown complete")
	return runErr
}
