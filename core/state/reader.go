package state

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/andechain/pevm/core/types"
)

// MemReader is a map-backed committed state snapshot. Mutations are
// not synchronized with readers; populate it before handing it to an
// engine, or apply a finished batch via ApplyWrites between batches.
type MemReader struct {
	data map[types.StateKey]interface{}
}

func NewMemReader() *MemReader {
	return &MemReader{data: make(map[types.StateKey]interface{})}
}

func (r *MemReader) GetState(key types.StateKey) (interface{}, error) {
	val, ok := r.data[key]
	if !ok {
		return nil, nil
	}
	return val, nil
}

func (r *MemReader) SetBalance(addr common.Address, balance *uint256.Int) {
	r.data[types.BalanceKey(addr)] = new(uint256.Int).Set(balance)
}

func (r *MemReader) SetNonce(addr common.Address, nonce uint64) {
	r.data[types.NonceKey(addr)] = nonce
}

func (r *MemReader) SetStorage(addr common.Address, slot, val common.Hash) {
	r.data[types.StorageKey(addr, slot)] = val
}

// ApplyWrites folds the final writes of a committed batch back into
// the snapshot, making it the base for the next batch.
func (r *MemReader) ApplyWrites(writes map[types.StateKey]interface{}) {
	for key, val := range writes {
		r.data[key] = val
	}
}
