package chain

import (
	"encoding/hex"
	"time"
)

// Identifier represents a 32-byte unique identifier for a chain entity.
type Identifier [32]byte

// ZeroID is the lowest value in the 32-byte ID space.
var ZeroID = Identifier{}

func (id Identifier) String() string {
	return hex.EncodeToString(id[:])
}

// Header contains the consensus-relevant metadata of a block.
type Header struct {
	// Height is the height of the block in the chain.
	Height uint64
	// ParentID is the ID of this block's parent.
	ParentID Identifier
	// PayloadHash is a hash of the payload of this block.
	PayloadHash Identifier
	// Timestamp is the time at which this block was proposed.
	Timestamp time.Time
	// GasUsed is the total gas consumed by the transactions in this block.
	GasUsed uint64
}

// Payload is the execution payload of a block: the historical data that the
// pruner deletes once the block falls out of the retention window.
type Payload struct {
	// Height of the block this payload belongs to.
	Height uint64
	// Transactions is the raw transaction data.
	Transactions [][]byte
	// Receipts is the raw execution receipt data.
	Receipts [][]byte
}
