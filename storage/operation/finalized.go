package operation

import "github.com/dgraph-io/badger/v2"

// UpsertFinalizedHeight stores the latest finalized block height.
func UpsertFinalizedHeight(height uint64) func(*badger.Txn) error {
	return upsert(makePrefix(codeFinalizedHeight), height)
}

// RetrieveFinalizedHeight retrieves the latest finalized block height. It
// errors with storage.ErrNotFound if no height has been recorded yet.
func RetrieveFinalizedHeight(height *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeFinalizedHeight), height)
}
