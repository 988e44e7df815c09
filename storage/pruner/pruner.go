package pruner

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/cockroachdb/pebble"
	"github.com/dgraph-io/badger/v2"
	"github.com/rs/zerolog"
	"go.uber.org/atomic"

	"github.com/meridian-labs/meridian-go/model/chain"
	"github.com/meridian-labs/meridian-go/module"
	"github.com/meridian-labs/meridian-go/module/counters"
	"github.com/meridian-labs/meridian-go/module/metrics"
	"github.com/meridian-labs/meridian-go/storage"
	"github.com/meridian-labs/meridian-go/storage/operation"
	pebblestorage "github.com/meridian-labs/meridian-go/storage/pebble"
)

// Config tunes the pruning policy and the load the pruner puts on the node.
type Config struct {
	// RetainHeights is how many of the most recent heights below the latest
	// finalized block are kept for querying instead of being pruned.
	RetainHeights uint64
	// MinHeightsBetweenRuns is the minimum number of newly prunable heights
	// required before another run is worth starting. Prevents churning on
	// every finalized block.
	MinHeightsBetweenRuns uint64
	// BatchSize is the number of heights deleted per batch commit.
	BatchSize uint64
	// PruneThrottleDelay is a small pause between batch commits to keep
	// pruning from starving foreground work.
	PruneThrottleDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		RetainHeights:         100_000,
		MinHeightsBetweenRuns: 1_000,
		BatchSize:             256,
		PruneThrottleDelay:    10 * time.Millisecond,
	}
}

// ChainPruner deletes historical block data from the protocol store (badger)
// and the payload store (pebble) up to a tip height. It implements
// module.Pruner.
//
// The prune controller guarantees that at most one Prune run is in flight,
// so ChainPruner performs no locking around the stores themselves. CheckTip
// and OnFinalizedHeight are safe for concurrent use.
type ChainPruner struct {
	log     zerolog.Logger
	metrics module.SyncMetrics

	protocolDB *badger.DB
	payloadDB  *pebble.DB
	payloads   *pebblestorage.Payloads

	cfg Config

	// latest finalized height, fed by the canonical-state notifications
	finalizedHeight counters.StrictMonotonicCounter
	// in-memory mirror of the persisted next-pruned-height progress entry
	nextToPrune *atomic.Uint64

	mu   sync.Mutex
	wake module.Notifier
}

var _ module.Pruner = (*ChainPruner)(nil)

// NewChainPruner creates a pruner over the given stores, loading (or
// initializing) the persisted prune progress.
func NewChainPruner(
	log zerolog.Logger,
	metrics module.SyncMetrics,
	protocolDB *badger.DB,
	payloadDB *pebble.DB,
	cfg Config,
) (*ChainPruner, error) {

	if cfg.BatchSize == 0 {
		return nil, fmt.Errorf("batch size must be positive")
	}

	var next uint64
	err := protocolDB.View(operation.RetrieveNextPrunedHeight(&next))
	if errors.Is(err, storage.ErrNotFound) {
		next = 0
		err = protocolDB.Update(operation.InsertNextPrunedHeight(next))
		if err != nil {
			return nil, fmt.Errorf("could not initialize prune progress: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("could not load prune progress: %w", err)
	}

	return &ChainPruner{
		log:             log.With().Str("component", "chain_pruner").Logger(),
		metrics:         metrics,
		protocolDB:      protocolDB,
		payloadDB:       payloadDB,
		payloads:        pebblestorage.NewPayloads(payloadDB),
		cfg:             cfg,
		finalizedHeight: counters.NewMonotonicCounter(0),
		nextToPrune:     atomic.NewUint64(next),
	}, nil
}

// OnFinalizedHeight informs the pruner that the chain has been finalized up
// to the given height. Safe for concurrent use; stale heights are ignored.
func (p *ChainPruner) OnFinalizedHeight(height uint64) {
	if p.finalizedHeight.Set(height) {
		p.waker().Notify()
	}
}

// NextToPrune returns the lowest height that has not been pruned yet.
func (p *ChainPruner) NextToPrune() uint64 {
	return p.nextToPrune.Load()
}

// CheckTip returns the highest height that is currently safe to prune to,
// or false if the retention window and run spacing policy leave nothing
// worth pruning yet. The given waker is notified on the next finalization
// that may change the answer.
func (p *ChainPruner) CheckTip(wake module.Notifier) (uint64, bool) {
	p.setWaker(wake)

	final := p.finalizedHeight.Value()
	if final <= p.cfg.RetainHeights {
		return 0, false
	}
	tip := final - p.cfg.RetainHeights

	next := p.nextToPrune.Load()
	if tip < next+p.cfg.MinHeightsBetweenRuns {
		return 0, false
	}

	return tip, true
}

// Prune deletes all block data from the last pruned height up to and
// including the given tip. It blocks until the run completes; data is
// deleted in batches with a throttle delay in between so the stores are not
// saturated. Progress is persisted after every batch, so an interrupted run
// resumes where it left off.
//
// Errors are domain pruning failures; the pruner remains usable afterwards.
func (p *ChainPruner) Prune(tip uint64) error {
	next := p.nextToPrune.Load()
	if tip < next {
		// the tip was acquired before an earlier run advanced past it
		return nil
	}

	total := tip - next + 1
	processed := uint64(0)
	start := time.Now()

	p.log.Info().
		Uint64("from", next).
		Uint64("tip", tip).
		Uint64("total", total).
		Msg("prune run started")

	for batchStart := next; batchStart <= tip; {
		batchEnd := batchStart + p.cfg.BatchSize - 1
		if batchEnd > tip {
			batchEnd = tip
		}

		gasFreed, err := p.pruneRange(batchStart, batchEnd)
		if err != nil {
			return fmt.Errorf("could not prune heights %d to %d: %w", batchStart, batchEnd, err)
		}

		processed += batchEnd - batchStart + 1
		p.metrics.StageCheckpoint(metrics.StagePrune, batchEnd)
		p.metrics.StageEntities(metrics.StagePrune, processed, total)
		p.metrics.GasProcessed(float64(gasFreed) / 1_000_000)

		batchStart = batchEnd + 1

		if batchStart <= tip {
			time.Sleep(p.cfg.PruneThrottleDelay)
		}
	}

	p.log.Info().
		Uint64("tip", tip).
		Uint64("pruned", processed).
		Dur("elapsed", time.Since(start)).
		Msg("prune run finished")

	return nil
}

// pruneRange deletes headers and payloads for all heights in [from, to] in
// one batch per store and persists the advanced progress entry. It returns
// the total gas recorded in the deleted headers.
func (p *ChainPruner) pruneRange(from uint64, to uint64) (uint64, error) {
	headerBatch := p.protocolDB.NewWriteBatch()
	defer headerBatch.Cancel()

	payloadBatch := p.payloadDB.NewBatch()
	defer payloadBatch.Close()

	var gasFreed uint64
	for height := from; height <= to; height++ {
		var header chain.Header
		err := p.protocolDB.View(operation.RetrieveHeader(height, &header))
		if err == nil {
			gasFreed += header.GasUsed
		} else if !errors.Is(err, storage.ErrNotFound) {
			return 0, fmt.Errorf("could not read header at height %d: %w", height, err)
		}

		err = operation.BatchRemoveHeader(height, headerBatch)
		if err != nil {
			return 0, err
		}

		err = p.payloads.BatchRemove(payloadBatch, height)
		if err != nil {
			return 0, err
		}
	}

	err := headerBatch.Flush()
	if err != nil {
		return 0, fmt.Errorf("could not commit header deletions: %w", err)
	}

	err = payloadBatch.Commit(pebble.Sync)
	if err != nil {
		return 0, fmt.Errorf("could not commit payload deletions: %w", err)
	}

	err = p.protocolDB.Update(operation.UpdateNextPrunedHeight(to + 1))
	if err != nil {
		return 0, fmt.Errorf("could not persist prune progress: %w", err)
	}
	p.nextToPrune.Store(to + 1)

	return gasFreed, nil
}

func (p *ChainPruner) setWaker(wake module.Notifier) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.wake = wake
}

func (p *ChainPruner) waker() module.Notifier {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.wake
}
