package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/cwygoda/grabber/internal/config"
	"github.com/cwygoda/grabber/internal/logger"
)

// app carries what every subcommand needs once flags are parsed.
type app struct {
	cfgFile  string
	logLevel string
	dev      bool
	imageDir string
	scale    float64
	workers  int

	cfg *config.Config
	log *zap.Logger
}

// Execute runs the root command.
func Execute() error {
	// A missing .env file is fine.
	_ = godotenv.Load()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return newRootCmd().ExecuteContext(ctx)
}

func newRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:           "grabber",
		Short:         "Download and upscale marketplace listing images",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd)
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if a.log != nil {
				_ = a.log.Sync()
			}
		},
	}

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "config file (default "+config.DefaultConfigPath()+")")
	flags.StringVar(&a.logLevel, "log-level", "", "log level: debug, info, warn, error")
	flags.BoolVar(&a.dev, "dev", false, "human readable log output")
	flags.StringVar(&a.imageDir, "image-dir", "", "base folder for saved images")
	flags.Float64Var(&a.scale, "scale", 0, "upscale factor")
	flags.IntVar(&a.workers, "workers", 0, "concurrent image downloads")

	root.AddCommand(newFetchCmd(a), newBatchCmd(a), newServeCmd(a))
	return root
}

// setup loads configuration, applies flag overrides and builds the logger.
func (a *app) setup(cmd *cobra.Command) error {
	cfg, err := config.Load(a.cfgFile)
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = a.logLevel
	}
	if flags.Changed("image-dir") {
		cfg.ImageDir = config.ExpandPath(a.imageDir)
	}
	if flags.Changed("scale") {
		cfg.Scale = a.scale
	}
	if flags.Changed("workers") {
		cfg.Workers = a.workers
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	log, err := logger.New(cfg.LogLevel, a.dev)
	if err != nil {
		return err
	}

	a.cfg = cfg
	a.log = log
	return nil
}
