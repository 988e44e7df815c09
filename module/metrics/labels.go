package metrics

const (
	LabelStage = "stage"
)

// Sync stage identifiers.
const (
	StageHeaders   = "headers"
	StageBodies    = "bodies"
	StageExecution = "execution"
	StagePrune     = "prune"
)

const (
	namespaceMeridian = "meridian"

	subsystemSync = "sync"
)
