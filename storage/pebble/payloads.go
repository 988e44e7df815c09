package pebble

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
	"github.com/vmihailenco/msgpack/v4"

	"github.com/meridian-labs/meridian-go/model/chain"
	"github.com/meridian-labs/meridian-go/storage"
)

const codePayload = 11

// Payloads stores execution payloads in a pebble database, keyed by height.
// Payloads are the bulk of the historical chain data and the primary target
// of pruning.
type Payloads struct {
	db *pebble.DB
}

func NewPayloads(db *pebble.DB) *Payloads {
	return &Payloads{db: db}
}

// Store persists the given payload under its height.
func (p *Payloads) Store(payload *chain.Payload) error {
	val, err := msgpack.Marshal(payload)
	if err != nil {
		return fmt.Errorf("could not encode payload: %w", err)
	}

	err = p.db.Set(payloadKey(payload.Height), val, pebble.Sync)
	if err != nil {
		return fmt.Errorf("could not store payload at height %d: %w", payload.Height, err)
	}

	return nil
}

// ByHeight returns the payload stored at the given height. It errors with
// storage.ErrNotFound if no payload is stored at that height.
func (p *Payloads) ByHeight(height uint64) (*chain.Payload, error) {
	val, closer, err := p.db.Get(payloadKey(height))
	if errors.Is(err, pebble.ErrNotFound) {
		return nil, storage.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("could not load payload at height %d: %w", height, err)
	}
	defer closer.Close()

	var payload chain.Payload
	err = msgpack.Unmarshal(val, &payload)
	if err != nil {
		return nil, fmt.Errorf("could not decode payload at height %d: %w", height, err)
	}

	return &payload, nil
}

// BatchRemove adds the deletion of the payload at the given height to the
// given batch. Missing payloads are skipped silently, so removals are
// idempotent.
func (p *Payloads) BatchRemove(batch *pebble.Batch, height uint64) error {
	err := batch.Delete(payloadKey(height), nil)
	if err != nil {
		return fmt.Errorf("could not batch delete payload at height %d: %w", height, err)
	}
	return nil
}

func payloadKey(height uint64) []byte {
	key := make([]byte, 9)
	key[0] = codePayload
	binary.BigEndian.PutUint64(key[1:], height)
	return key
}
