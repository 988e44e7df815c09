package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/dgraph-io/badger/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/meridian-labs/meridian-go/engine/consensus/prune"
	"github.com/meridian-labs/meridian-go/module/component"
	"github.com/meridian-labs/meridian-go/module/irrecoverable"
	"github.com/meridian-labs/meridian-go/module/metrics"
	"github.com/meridian-labs/meridian-go/module/taskrunner"
	"github.com/meridian-labs/meridian-go/module/util"
	"github.com/meridian-labs/meridian-go/storage"
	"github.com/meridian-labs/meridian-go/storage/operation"
	storagepruner "github.com/meridian-labs/meridian-go/storage/pruner"
)

var rootCmd = &cobra.Command{
	Use:   "pruned",
	Short: "Meridian chain data pruning daemon",
	Long: "pruned watches the finalized height recorded in the protocol store and " +
		"prunes historical chain data outside the retention window.",
	RunE: run,
}

func init() {
	bindFlags(rootCmd.PersistentFlags())
}

func bindFlags(flags *pflag.FlagSet) {
	flags.String("datadir", "data/protocol", "directory for the protocol store (badger)")
	flags.String("payload-dir", "data/payloads", "directory for the payload store (pebble)")
	flags.String("log-level", "info", "log level (trace, debug, info, warn, error)")
	flags.Uint("metrics-port", 9090, "port for the prometheus metrics endpoint")
	flags.Uint64("retain-heights", storagepruner.DefaultConfig().RetainHeights,
		"number of recent heights to retain below the latest finalized block")
	flags.Uint64("min-heights-between-runs", storagepruner.DefaultConfig().MinHeightsBetweenRuns,
		"minimum number of newly prunable heights before another run starts")
	flags.Uint64("batch-size", storagepruner.DefaultConfig().BatchSize,
		"number of heights deleted per batch commit")
	flags.Duration("prune-throttle-delay", storagepruner.DefaultConfig().PruneThrottleDelay,
		"pause between batch commits")
	flags.Duration("finalized-poll-interval", 10*time.Second,
		"how often to re-read the finalized height from the protocol store")

	if err := viper.BindPFlags(flags); err != nil {
		panic(fmt.Sprintf("could not bind flags: %v", err))
	}
	viper.SetEnvPrefix("PRUNED")
	viper.AutomaticEnv()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(*cobra.Command, []string) error {
	lvl, err := zerolog.ParseLevel(viper.GetString("log-level"))
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log := zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
		With().Timestamp().Logger().Level(lvl)

	protocolDB, err := badger.Open(badger.DefaultOptions(viper.GetString("datadir")).WithLogger(nil))
	if err != nil {
		return fmt.Errorf("could not open protocol store: %w", err)
	}
	defer protocolDB.Close()

	payloadDB, err := pebble.Open(viper.GetString("payload-dir"), &pebble.Options{})
	if err != nil {
		return fmt.Errorf("could not open payload store: %w", err)
	}
	defer payloadDB.Close()

	syncMetrics := metrics.NewSyncCollector(prometheus.DefaultRegisterer)
	server := metrics.NewServer(log, viper.GetUint("metrics-port"))
	<-server.Ready()
	defer func() {
		<-server.Done()
	}()

	cfg := storagepruner.Config{
		RetainHeights:         viper.GetUint64("retain-heights"),
		MinHeightsBetweenRuns: viper.GetUint64("min-heights-between-runs"),
		BatchSize:             viper.GetUint64("batch-size"),
		PruneThrottleDelay:    viper.GetDuration("prune-throttle-delay"),
	}
	pollInterval := viper.GetDuration("finalized-poll-interval")

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	log.Info().
		Uint64("retain_heights", cfg.RetainHeights).
		Uint64("min_heights_between_runs", cfg.MinHeightsBetweenRuns).
		Msg("starting pruning subsystem")

	err = component.RunComponent(
		ctx,
		pruningSubsystem(log, syncMetrics, protocolDB, payloadDB, cfg, pollInterval),
		onSubsystemError(log),
	)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("pruning subsystem failed: %w", err)
	}

	log.Info().Msg("shutdown complete")
	return nil
}

// pruningSubsystem returns a factory that assembles a fresh pruning
// subsystem: task runner, chain pruner, prune engine, and a follower worker
// feeding finalized heights from the protocol store. RunComponent rebuilds
// the whole subsystem from this factory if it has to be restarted.
func pruningSubsystem(
	log zerolog.Logger,
	syncMetrics *metrics.SyncCollector,
	protocolDB *badger.DB,
	payloadDB *pebble.DB,
	cfg storagepruner.Config,
	pollInterval time.Duration,
) component.ComponentFactory {
	return func() (component.Component, error) {
		chainPruner, err := storagepruner.NewChainPruner(log, syncMetrics, protocolDB, payloadDB, cfg)
		if err != nil {
			return nil, fmt.Errorf("could not create chain pruner: %w", err)
		}

		runner := taskrunner.NewRunner(log, 1)
		engine := prune.NewEngine(log, chainPruner, runner)

		cm := component.NewComponentManagerBuilder().
			AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
				runner.Start(ctx)
				engine.Start(ctx)
				select {
				case <-util.AllReady(runner, engine):
				case <-ctx.Done():
					return
				}
				ready()
				<-ctx.Done()
				<-util.AllDone(runner, engine)
			}).
			AddWorker(func(ctx irrecoverable.SignalerContext, ready component.ReadyFunc) {
				ready()
				followFinalizedHeight(ctx, protocolDB, chainPruner, pollInterval)
			}).
			Build()

		return cm, nil
	}
}

// followFinalizedHeight periodically reads the finalized height recorded in
// the protocol store and feeds it to the pruner. In a full node this comes
// from the consensus follower's canonical-state notifications; the daemon
// polls the store instead.
func followFinalizedHeight(
	ctx irrecoverable.SignalerContext,
	protocolDB *badger.DB,
	chainPruner *storagepruner.ChainPruner,
	pollInterval time.Duration,
) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			var height uint64
			err := protocolDB.View(operation.RetrieveFinalizedHeight(&height))
			if errors.Is(err, storage.ErrNotFound) {
				// the node has not recorded a finalized height yet
				continue
			}
			if err != nil {
				ctx.Throw(fmt.Errorf("could not read finalized height: %w", err))
			}
			chainPruner.OnFinalizedHeight(height)
		}
	}
}

// onSubsystemError decides how the daemon reacts to irrecoverable errors.
// A dropped prune task loses the pruning capability, so the subsystem is
// rebuilt from scratch; anything else stops the daemon.
func onSubsystemError(log zerolog.Logger) component.OnError {
	return func(err error) component.ErrorHandlingResult {
		if errors.Is(err, prune.ErrTaskDropped) {
			log.Err(err).Msg("prune task dropped; restarting pruning subsystem")
			return component.ErrorHandlingRestart
		}
		log.Err(err).Msg("unrecoverable failure in pruning subsystem")
		return component.ErrorHandlingStop
	}
}
