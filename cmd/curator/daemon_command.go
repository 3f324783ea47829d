package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"curator/internal/daemon"
	"curator/internal/logging"
)

func newDaemonCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "daemon",
		Short: "Run scheduled tasks in the foreground until interrupted",
		RunE: func(cmd *cobra.Command, args []string) error {
			return ctx.runDaemon(cmd.Context())
		},
	}
}

func (c *commandContext) runDaemon(cmdCtx context.Context) error {
	signalCtx, cancel := signal.NotifyContext(cmdCtx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := c.ensureConfig()
	if err != nil {
		return err
	}
	logger, err := c.logger()
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	reg, err := c.registry()
	if err != nil {
		return err
	}
	store, err := c.openStore()
	if err != nil {
		logger.Error("open history store", logging.Error(err))
		return err
	}

	d, err := daemon.New(daemon.Options{
		ConfigPath: c.configPath,
		Config:     cfg,
		Registry:   reg,
		Store:      store,
		Logger:     logger,
		Ring:       c.ring,
	})
	if err != nil {
		store.Close()
		return err
	}
	defer d.Close()

	if err := d.Start(signalCtx); err != nil {
		return err
	}

	<-signalCtx.Done()
	logger.Info("curator daemon shutting down")
	stopCtx, stopCancel := context.WithTimeout(context.Background(), time.Minute)
	defer stopCancel()
	return d.Stop(stopCtx)
}
