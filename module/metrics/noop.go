package metrics

import "github.com/meridian-labs/meridian-go/module"

// NoopCollector discards all reported metrics.
type NoopCollector struct{}

var _ module.SyncMetrics = (*NoopCollector)(nil)

func NewNoopCollector() *NoopCollector {
	return &NoopCollector{}
}

func (nc *NoopCollector) StageCheckpoint(stage string, height uint64)                {}
func (nc *NoopCollector) StageEntities(stage string, processed uint64, total uint64) {}
func (nc *NoopCollector) GasProcessed(mgas float64)                                  {}
