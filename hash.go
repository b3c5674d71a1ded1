package pinjaman

import (
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"golang.org/x/crypto/sha3"
)

func keccak256(data []byte) common.Hash {
	h := sha3.NewLegacyKeccak256()
	h.Write(data)
	var out common.Hash
	h.Sum(out[:0])
	return out
}

// ReferenceHash binds an off-chain draft to the on-chain loan request.
// It is keccak256 over the UTF-8 bytes of the draft id.
func ReferenceHash(draftID string) common.Hash {
	return keccak256([]byte(draftID))
}

// RepayReference is keccak256("repay:<positionID>:<nowMillis>").
// The timestamp cannot be recovered from the hash, so callers must store it alongside.
func RepayReference(positionID uint64, nowMillis int64) common.Hash {
	composite := "repay:" + strconv.FormatUint(positionID, 10) + ":" + strconv.FormatInt(nowMillis, 10)
	return keccak256([]byte(composite))
}
