package operation

import (
	"testing"
	"time"

	"github.com/dgraph-io/badger/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meridian-labs/meridian-go/model/chain"
	"github.com/meridian-labs/meridian-go/storage"
	"github.com/meridian-labs/meridian-go/utils/unittest"
)

func TestHeaderInsertRetrieveRemove(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		header := &chain.Header{
			Height:    42,
			ParentID:  chain.Identifier{0x01},
			Timestamp: time.Unix(1700000000, 0).UTC(),
			GasUsed:   21_000,
		}

		err := db.Update(InsertHeader(header.Height, header))
		require.NoError(t, err)

		// double insert is rejected
		err = db.Update(InsertHeader(header.Height, header))
		require.ErrorIs(t, err, storage.ErrAlreadyExists)

		var retrieved chain.Header
		err = db.View(RetrieveHeader(header.Height, &retrieved))
		require.NoError(t, err)
		assert.Equal(t, header.Height, retrieved.Height)
		assert.Equal(t, header.ParentID, retrieved.ParentID)
		assert.Equal(t, header.GasUsed, retrieved.GasUsed)
		assert.True(t, header.Timestamp.Equal(retrieved.Timestamp))

		err = db.Update(RemoveHeader(header.Height))
		require.NoError(t, err)

		err = db.View(RetrieveHeader(header.Height, &retrieved))
		require.ErrorIs(t, err, storage.ErrNotFound)
	})
}

func TestBatchRemoveHeader(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		for height := uint64(1); height <= 10; height++ {
			err := db.Update(InsertHeader(height, &chain.Header{Height: height}))
			require.NoError(t, err)
		}

		batch := db.NewWriteBatch()
		for height := uint64(1); height <= 5; height++ {
			require.NoError(t, BatchRemoveHeader(height, batch))
		}
		// removing a missing header is a no-op
		require.NoError(t, BatchRemoveHeader(999, batch))
		require.NoError(t, batch.Flush())

		var header chain.Header
		for height := uint64(1); height <= 5; height++ {
			err := db.View(RetrieveHeader(height, &header))
			require.ErrorIs(t, err, storage.ErrNotFound)
		}
		for height := uint64(6); height <= 10; height++ {
			err := db.View(RetrieveHeader(height, &header))
			require.NoError(t, err)
		}
	})
}

func TestNextPrunedHeightProgress(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		var height uint64
		err := db.View(RetrieveNextPrunedHeight(&height))
		require.ErrorIs(t, err, storage.ErrNotFound)

		err = db.Update(InsertNextPrunedHeight(0))
		require.NoError(t, err)

		err = db.Update(InsertNextPrunedHeight(1))
		require.ErrorIs(t, err, storage.ErrAlreadyExists)

		err = db.Update(UpdateNextPrunedHeight(100))
		require.NoError(t, err)

		err = db.View(RetrieveNextPrunedHeight(&height))
		require.NoError(t, err)
		assert.Equal(t, uint64(100), height)
	})
}

func TestFinalizedHeight(t *testing.T) {
	unittest.RunWithBadgerDB(t, func(db *badger.DB) {
		var height uint64
		err := db.View(RetrieveFinalizedHeight(&height))
		require.ErrorIs(t, err, storage.ErrNotFound)

		err = db.Update(UpsertFinalizedHeight(7))
		require.NoError(t, err)
		err = db.Update(UpsertFinalizedHeight(8))
		require.NoError(t, err)

		err = db.View(RetrieveFinalizedHeight(&height))
		require.NoError(t, err)
		assert.Equal(t, uint64(8), height)
	})
}
