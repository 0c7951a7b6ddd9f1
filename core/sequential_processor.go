package core

import (
	"github.com/andechain/pevm/core/state"
	"github.com/andechain/pevm/core/types"
)

// processSequential executes the batch in transaction order through
// the same view, memory and commit machinery as the parallel path, so
// both paths produce bit-identical results. It serves small batches,
// forced-sequential configs and retry-budget fallbacks.
func (p *ParallelProcessor) processSequential(txs []*types.TxMessage, snap state.Reader, fellBack bool) (*BatchResult, error) {
	mv := state.NewMvMemory(len(txs))
	if err := p.seedLazyBases(mv, snap); err != nil {
		return nil, err
	}

	views := make([]*state.SlotDB, len(txs))
	results := make([]*types.TxResult, len(txs))

	for i, msg := range txs {
		ver := types.StateVersion{TxIndex: i}
		view := state.NewSlotDB(mv, snap, ver)
		res := p.executor.ExecuteTx(msg, view)

		if err := view.Err(); err != nil {
			return nil, err
		}
		if view.Blocked() {
			// no estimates can exist when executing in order
			return nil, ErrInvariantViolation
		}

		success := res.Err == nil
		if _, err := mv.Record(ver, view.Finalise(success)); err != nil {
			return nil, err
		}

		views[i] = view
		results[i] = &types.TxResult{
			TxIndex: i,
			Success: success,
			GasUsed: res.GasUsed,
			Err:     res.Err,
			Logs:    view.Logs(),
		}
	}

	sequentialTxNumMeter.Mark(int64(len(txs)))
	return p.commit(mv, views, results, false, fellBack)
}
