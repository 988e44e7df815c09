package module

// SyncMetrics reports the progress of the chain sync stages, including the
// prune stage. Implementations are passive sinks; none of the reported
// values feed back into control flow.
type SyncMetrics interface {
	// StageCheckpoint records the height of the last commit for a stage.
	StageCheckpoint(stage string, height uint64)

	// StageEntities records how many entities the last commit for a stage
	// processed, out of how many total, if applicable.
	StageEntities(stage string, processed uint64, total uint64)

	// GasProcessed adds to the cumulative amount of gas processed by the
	// execution stage, in millions.
	GasProcessed(mgas float64)
}
