package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/meridian-labs/meridian-go/module"
)

// SyncCollector reports the progress of the sync stages as prometheus
// gauges, labelled by stage identifier.
type SyncCollector struct {
	// the block height of the last commit for a stage
	checkpoint *prometheus.GaugeVec
	// the number of entities processed by the last commit for a stage
	entitiesProcessed *prometheus.GaugeVec
	// the number of total entities of the last commit for a stage
	entitiesTotal *prometheus.GaugeVec
	// the cumulative amount of gas processed by the execution stage, in millions
	mgasProcessedTotal prometheus.Gauge
}

var _ module.SyncMetrics = (*SyncCollector)(nil)

// NewSyncCollector creates a new sync collector and registers its metrics
// with the given registerer.
func NewSyncCollector(registerer prometheus.Registerer) *SyncCollector {
	checkpoint := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespaceMeridian,
		Subsystem: subsystemSync,
		Name:      "checkpoint",
		Help:      "the block height of the last commit for a stage",
	}, []string{LabelStage})
	entitiesProcessed := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespaceMeridian,
		Subsystem: subsystemSync,
		Name:      "entities_processed",
		Help:      "the number of entities processed by the last commit for a stage",
	}, []string{LabelStage})
	entitiesTotal := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespaceMeridian,
		Subsystem: subsystemSync,
		Name:      "entities_total",
		Help:      "the number of total entities of the last commit for a stage",
	}, []string{LabelStage})
	mgasProcessedTotal := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespaceMeridian,
		Subsystem: subsystemSync,
		Name:      "execution_mgas_processed_total",
		Help:      "the cumulative amount of gas processed by the execution stage, in millions",
	})

	registerer.MustRegister(checkpoint, entitiesProcessed, entitiesTotal, mgasProcessedTotal)

	return &SyncCollector{
		checkpoint:         checkpoint,
		entitiesProcessed:  entitiesProcessed,
		entitiesTotal:      entitiesTotal,
		mgasProcessedTotal: mgasProcessedTotal,
	}
}

// StageCheckpoint records the height of the last commit for a stage.
func (sc *SyncCollector) StageCheckpoint(stage string, height uint64) {
	sc.checkpoint.WithLabelValues(stage).Set(float64(height))
}

// StageEntities records how many entities the last commit for a stage
// processed, out of how many total.
func (sc *SyncCollector) StageEntities(stage string, processed uint64, total uint64) {
	sc.entitiesProcessed.WithLabelValues(stage).Set(float64(processed))
	sc.entitiesTotal.WithLabelValues(stage).Set(float64(total))
}

// GasProcessed adds to the cumulative amount of gas processed by the
// execution stage, in millions.
func (sc *SyncCollector) GasProcessed(mgas float64) {
	sc.mgasProcessedTotal.Add(mgas)
}
