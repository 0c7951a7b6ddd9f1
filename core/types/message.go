package types

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"
)

// TxMessage is a decoded, sender-recovered transaction. Decoding and
// signature recovery happen before a transaction reaches this engine.
type TxMessage struct {
	From       common.Address
	To         *common.Address // nil means contract creation
	Nonce      uint64
	Value      *uint256.Int
	GasLimit   uint64
	GasPrice   *uint256.Int
	Data       []byte
	AccessList gethtypes.AccessList
}

// TxResult is the final outcome of one transaction within a batch.
// Immutable once the batch commits, and identical whatever scheduling
// produced it. A failed transaction is a normal result, not an error:
// it occupies its slot and reports the failure classification in Err.
type TxResult struct {
	TxIndex int
	Success bool
	GasUsed uint64
	Err     error
	Writes  map[StateKey]interface{}
	Logs    []*gethtypes.Log
}

// LazyChange is the end-of-batch evaluation of one hot account.
type LazyChange struct {
	Addr         common.Address
	FinalBalance *uint256.Int
	FinalNonce   uint64
	NonceChanged bool
}
