package operation

import (
	"github.com/dgraph-io/badger/v2"

	"github.com/meridian-labs/meridian-go/model/chain"
)

// InsertHeader inserts the header of the block at the given height.
func InsertHeader(height uint64, header *chain.Header) func(*badger.Txn) error {
	return insert(makePrefix(codeHeader, height), header)
}

// RetrieveHeader retrieves the header of the block at the given height.
func RetrieveHeader(height uint64, header *chain.Header) func(*badger.Txn) error {
	return retrieve(makePrefix(codeHeader, height), header)
}

// RemoveHeader removes the header of the block at the given height.
func RemoveHeader(height uint64) func(*badger.Txn) error {
	return remove(makePrefix(codeHeader, height))
}

// BatchRemoveHeader removes the header of the block at the given height as
// part of the given write batch. Missing headers are skipped silently so the
// removal is idempotent.
func BatchRemoveHeader(height uint64, batch *badger.WriteBatch) error {
	return batchRemove(makePrefix(codeHeader, height), batch)
}

// HeaderKey returns the raw storage key for the header at the given height.
func HeaderKey(height uint64) []byte {
	return makePrefix(codeHeader, height)
}
