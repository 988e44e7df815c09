package operation

import "encoding/binary"

const (
	// codes for entities stored by height
	codeHeader  = 10
	codePayload = 11 // payloads live in the payload store; code reserved for key parity

	// codes for bookkeeping entries
	codeNextPrunedHeight = 20
	codeFinalizedHeight  = 21
)

// makePrefix creates a key from the given prefix code and uint64 segments,
// encoded big-endian so that lexicographic key order matches height order.
func makePrefix(code byte, segments ...uint64) []byte {
	key := make([]byte, 1+8*len(segments))
	key[0] = code
	for i, segment := range segments {
		binary.BigEndian.PutUint64(key[1+8*i:], segment)
	}
	return key
}
