package operation

import "github.com/dgraph-io/badger/v2"

// InsertNextPrunedHeight initializes the height below which all block data
// has been pruned. It errors with storage.ErrAlreadyExists if the progress
// entry was initialized before.
func InsertNextPrunedHeight(height uint64) func(*badger.Txn) error {
	return insert(makePrefix(codeNextPrunedHeight), height)
}

// UpdateNextPrunedHeight updates the height below which all block data has
// been pruned.
func UpdateNextPrunedHeight(height uint64) func(*badger.Txn) error {
	return upsert(makePrefix(codeNextPrunedHeight), height)
}

// RetrieveNextPrunedHeight retrieves the height below which all block data
// has been pruned. It errors with storage.ErrNotFound if pruning has never
// been initialized on this database.
func RetrieveNextPrunedHeight(height *uint64) func(*badger.Txn) error {
	return retrieve(makePrefix(codeNextPrunedHeight), height)
}
