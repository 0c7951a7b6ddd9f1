package core

import (
	"github.com/holiman/uint256"

	"github.com/andechain/pevm/core/state"
	"github.com/andechain/pevm/core/types"
)

// ExecutionResult is the outcome of running one transaction against a
// state view. Err classifies a deterministic per-transaction failure;
// the transaction still occupies its slot in the batch.
type ExecutionResult struct {
	GasUsed uint64
	Err     error
}

// TxExecutor runs a single transaction against the supplied view. All
// state effects go through the view so they can be captured, validated
// and, if needed, discarded by the engine. Implementations must be
// safe for concurrent calls with distinct views.
type TxExecutor interface {
	ExecuteTx(msg *types.TxMessage, view *state.SlotDB) *ExecutionResult
}

// TransferExecutor implements native value transfers with intrinsic
// gas, nonce and balance checks. Failures are deterministic functions
// of the observed reads, so a failure verdict revalidates exactly like
// a success.
type TransferExecutor struct {
	cfg *ParallelConfig
}

func NewTransferExecutor(cfg *ParallelConfig) *TransferExecutor {
	return &TransferExecutor{cfg: cfg}
}

func (e *TransferExecutor) ExecuteTx(msg *types.TxMessage, view *state.SlotDB) *ExecutionResult {
	igas, err := IntrinsicGas(msg.Data, msg.AccessList, msg.To == nil)
	if err != nil {
		return &ExecutionResult{Err: err}
	}
	if msg.GasLimit < igas {
		return &ExecutionResult{Err: ErrIntrinsicGas}
	}

	stateNonce := view.GetNonce(msg.From)
	if msg.Nonce < stateNonce {
		return &ExecutionResult{GasUsed: igas, Err: ErrNonceTooLow}
	}
	if msg.Nonce > stateNonce {
		return &ExecutionResult{GasUsed: igas, Err: ErrNonceTooHigh}
	}

	gasPrice := valueOrZero(msg.GasPrice)
	value := valueOrZero(msg.Value)

	// up-front cost reserves the full gas limit
	cost := types.SaturatingAdd(saturatingMul(msg.GasLimit, gasPrice), value)
	balance := view.GetBalance(msg.From)
	if balance.Cmp(cost) < 0 {
		return &ExecutionResult{GasUsed: igas, Err: ErrInsufficientFunds}
	}

	// only the consumed gas is charged
	charge := types.SaturatingAdd(saturatingMul(igas, gasPrice), value)
	view.SubBalance(msg.From, charge)
	view.SetNonce(msg.From, stateNonce+1)

	if msg.To != nil {
		if e.cfg.EnableLazyUpdates && e.cfg.isHotAccount(*msg.To) {
			view.AddLazyCredit(*msg.To, value)
		} else {
			view.AddBalance(*msg.To, value)
		}
	}
	return &ExecutionResult{GasUsed: igas}
}

func valueOrZero(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return x
}

func saturatingMul(gas uint64, price *uint256.Int) *uint256.Int {
	out := new(uint256.Int).SetUint64(gas)
	if _, overflow := out.MulOverflow(out, price); overflow {
		out.SetAllOne()
	}
	return out
}
