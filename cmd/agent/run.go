package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/trapd-io/trapd-agent/internal/agentconfig"
	"github.com/trapd-io/trapd-agent/internal/collector"
	"github.com/trapd-io/trapd-agent/internal/identity"
	"github.com/trapd-io/trapd-agent/internal/logging"
	"github.com/trapd-io/trapd-agent/internal/paths"
	"github.com/trapd-io/trapd-agent/internal/queue"
	"github.com/trapd-io/trapd-agent/internal/scheduler"
	"github.com/trapd-io/trapd-agent/internal/secretstore"
	"github.com/trapd-io/trapd-agent/internal/sender"
	"github.com/trapd-io/trapd-agent/internal/transport"
	"github.com/trapd-io/trapd-agent/internal/version"
)

const userAgentPrefix = "TRAPD-Agent/"

func runAgent(cmd *cobra.Command, args []string) error {
	once, _ := cmd.Flags().GetBool("once")
	startedAt := time.Now()

	if dataDirFlag != "" {
		if err := os.Setenv("DATA_DIR_OVERRIDE", dataDirFlag); err != nil {
			return err
		}
	}

	p, err := paths.Resolve()
	if err != nil {
		return fmt.Errorf("resolve data directory: %w", err)
	}

	// A bootstrap logger (stderr only) covers config loading itself; once
	// log_level is known from the loaded config, a second logger replaces it.
	bootLog, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("initialize bootstrap logging: %w", err)
	}
	cfg, err := agentconfig.Load(p.ConfigFile, bootLog)
	if err != nil {
		return fmt.Errorf("load configuration: %w", err)
	}

	log, err := logging.New(p.LogFile, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("initialize logging: %w", err)
	}
	defer log.Sync() //nolint:errcheck

	idRes := identity.Resolve(p.DataDir, log)
	log.Info("sensor identity resolved", zap.String("sensor_id", idRes.SensorID), zap.String("source", string(idRes.Source)))

	store := secretstore.New(filepath.Dir(p.APIKeyFile), p.APIKeyFile, log)
	apiKey, err := store.ReadAPIKey()
	if err != nil {
		return fmt.Errorf("read api key: %w", err)
	}

	q, err := queue.Open(cmd.Context(), p.QueueFile)
	if err != nil {
		return fmt.Errorf("open queue: %w", err)
	}
	defer q.Close()

	v := version.BuildInfoVersion()
	client := transport.New(cfg.APIURL, apiKey, userAgentPrefix+v, log)
	snd := sender.New(q, client, log)
	snd.BatchSize = cfg.BatchSize

	coll := collector.New(startedAt)
	sched := scheduler.New(q, snd, coll, log)
	sched.SensorID = idRes.SensorID
	sched.ProjectID = cfg.ProjectID
	sched.Version = v
	sched.IntervalSeconds = cfg.IntervalSeconds
	sched.LastRestart = startedAt

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)

	group, groupCtx := errgroup.WithContext(ctx)
	group.Go(func() error {
		select {
		case sig := <-sigCh:
			log.Info("received shutdown signal", zap.String("signal", sig.String()))
			cancel()
			return nil
		case <-groupCtx.Done():
			return nil
		}
	})

	group.Go(func() error {
		// Ending the scheduler also ends the signal watcher, so a --once
		// run exits once its single cycle is done.
		defer cancel()
		if once {
			return sched.RunOnce(groupCtx)
		}
		return sched.Run(groupCtx)
	})

	if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("agent: %w", err)
	}

	log.Info("agent stopped gracefully")
	return nil
}
