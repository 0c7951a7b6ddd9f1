package core

import (
	"errors"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/log"
	"github.com/holiman/uint256"

	"github.com/andechain/pevm/common/gopool"
	"github.com/andechain/pevm/core/state"
	"github.com/andechain/pevm/core/types"
)

// BatchResult is the committed outcome of one batch: per-transaction
// results in order, the final value of every written key and the
// end-of-batch evaluation of hot accounts. For a given batch and
// snapshot it is identical whatever path or concurrency level
// produced it.
type BatchResult struct {
	Results     []*types.TxResult
	GasUsed     uint64
	FinalWrites map[types.StateKey]interface{}
	LazyChanges []types.LazyChange

	// Parallel reports the batch committed on the parallel path;
	// FellBack that it exhausted retries there first.
	Parallel bool
	FellBack bool
}

// ParallelProcessor executes batches of transactions optimistically in
// parallel and commits results equivalent to sequential order. Small
// batches and forced-sequential configs bypass the parallel machinery;
// batches that exhaust their retry budget are redone sequentially from
// the same snapshot. Safe for use from one goroutine at a time.
type ParallelProcessor struct {
	config   ParallelConfig
	executor TxExecutor
}

func NewParallelProcessor(config ParallelConfig, executor TxExecutor) (*ParallelProcessor, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &ParallelProcessor{config: config, executor: executor}, nil
}

// Process executes the batch against the committed snapshot and
// returns the batch outcome. The snapshot is never written; all
// effects are reported in the BatchResult. A returned error means the
// batch as a whole failed and nothing committed.
func (p *ParallelProcessor) Process(txs []*types.TxMessage, snap state.Reader) (*BatchResult, error) {
	if len(txs) == 0 {
		return &BatchResult{Results: []*types.TxResult{}, FinalWrites: map[types.StateKey]interface{}{}}, nil
	}
	if p.config.ForceSequential || len(txs) < p.config.MinTxsForParallel {
		return p.processSequential(txs, snap, false)
	}

	start := time.Now()
	result, err := p.processParallel(txs, snap)
	if errors.Is(err, ErrFallbackToSequential) {
		parallelFallbackMeter.Mark(1)
		log.Debug("parallel batch exhausted retries, redoing sequentially", "txs", len(txs))
		return p.processSequential(txs, snap, true)
	}
	if err != nil {
		return nil, err
	}
	parallelBatchTimer.UpdateSince(start)
	return result, nil
}

type batchContext struct {
	txs     []*types.TxMessage
	snap    state.Reader
	mv      *state.MvMemory
	sched   *scheduler
	views   []*state.SlotDB
	results []*types.TxResult

	conflictNum atomic.Int64
}

func (p *ParallelProcessor) processParallel(txs []*types.TxMessage, snap state.Reader) (*BatchResult, error) {
	mv := state.NewMvMemory(len(txs))
	if err := p.seedLazyBases(mv, snap); err != nil {
		return nil, err
	}

	sched := newScheduler(len(txs), p.config.MaxRetries)
	preBlockSameSender(sched, txs)

	ctx := &batchContext{
		txs:     txs,
		snap:    snap,
		mv:      mv,
		sched:   sched,
		views:   make([]*state.SlotDB, len(txs)),
		results: make([]*types.TxResult, len(txs)),
	}

	workers := p.config.ConcurrencyLevel
	if workers > len(txs) {
		workers = len(txs)
	}
	pool := gopool.New(workers)
	for i := 0; i < workers; i++ {
		pool.Submit(func() {
			p.runWorker(ctx)
		})
	}
	pool.Wait()

	if err := ctx.sched.HaltErr(); err != nil {
		return nil, err
	}
	if ctx.sched.FallbackRequired() {
		return nil, ErrFallbackToSequential
	}

	parallelTxNumMeter.Mark(int64(len(txs)))
	parallelConflictTxNumMeter.Mark(ctx.conflictNum.Load())

	return p.commit(mv, ctx.views, ctx.results, true, false)
}

// preBlockSameSender suspends each transaction behind the nearest
// earlier one from the same sender. They would conflict on nonce and
// balance anyway; blocking up front saves the wasted incarnations.
func preBlockSameSender(sched *scheduler, txs []*types.TxMessage) {
	lastBySender := make(map[common.Address]int, len(txs))
	for i, msg := range txs {
		if prev, ok := lastBySender[msg.From]; ok {
			sched.PreBlock(i, prev)
		}
		lastBySender[msg.From] = i
	}
}

// runWorker drains the scheduler. A finish call may hand the next task
// back directly, skipping one trip through the task queue.
func (p *ParallelProcessor) runWorker(ctx *batchContext) {
	var next *task
	for !ctx.sched.Done() {
		t := next
		next = nil
		if t == nil {
			t = ctx.sched.NextTask()
		}
		if t == nil {
			runtime.Gosched()
			continue
		}
		switch t.Kind {
		case taskKindExecution:
			next = p.tryExecute(ctx, t.Ver)
		case taskKindValidation:
			next = p.tryValidate(ctx, t.Ver)
		}
	}
}

func (p *ParallelProcessor) tryExecute(ctx *batchContext, ver types.StateVersion) *task {
	for {
		view := state.NewSlotDB(ctx.mv, ctx.snap, ver)
		res := p.executor.ExecuteTx(ctx.txs[ver.TxIndex], view)

		if err := view.Err(); err != nil {
			ctx.sched.Halt(err)
			return nil
		}
		if view.Blocked() {
			if ctx.sched.AddDependency(ver.TxIndex, view.BlockingIndex()) {
				return nil
			}
			// blocker resolved while we were looking, rerun in place
			continue
		}

		success := res.Err == nil
		wroteNewKey, err := ctx.mv.Record(ver, view.Finalise(success))
		if err != nil {
			ctx.sched.Halt(err)
			return nil
		}

		ctx.views[ver.TxIndex] = view
		ctx.results[ver.TxIndex] = &types.TxResult{
			TxIndex: ver.TxIndex,
			Success: success,
			GasUsed: res.GasUsed,
			Err:     res.Err,
			Logs:    view.Logs(),
		}
		return ctx.sched.FinishExecution(ver, wroteNewKey)
	}
}

func (p *ParallelProcessor) tryValidate(ctx *batchContext, ver types.StateVersion) *task {
	if !ctx.mv.ValidateReadSet(ver.TxIndex) && ctx.sched.TryValidationAbort(ver) {
		ctx.conflictNum.Add(1)
		ctx.mv.ConvertWritesToEstimates(ver.TxIndex)
		return ctx.sched.FinishValidation(ver.TxIndex, true)
	}
	return ctx.sched.FinishValidation(ver.TxIndex, false)
}

// seedLazyBases loads the committed balance and nonce of every hot
// account before any credit can be recorded.
func (p *ParallelProcessor) seedLazyBases(mv *state.MvMemory, snap state.Reader) error {
	if !p.config.EnableLazyUpdates {
		return nil
	}
	hot := p.config.hotAccounts()
	for _, addr := range hot {
		balVal, err := snap.GetState(types.BalanceKey(addr))
		if err != nil {
			return err
		}
		nonceVal, err := snap.GetState(types.NonceKey(addr))
		if err != nil {
			return err
		}
		balance := new(uint256.Int)
		if balVal != nil {
			balance = balVal.(*uint256.Int)
		}
		var nonce uint64
		if nonceVal != nil {
			nonce = nonceVal.(uint64)
		}
		mv.SetLazyBase(addr, balance, nonce)
	}
	lazyAccountNumMeter.Mark(int64(len(hot)))
	return nil
}

// commit runs after every transaction reached its final incarnation:
// gas is accounted in transaction order against the block limit, the
// deferred hot account operations of each committed incarnation are
// folded in order, and the final writes are assembled.
func (p *ParallelProcessor) commit(mv *state.MvMemory, views []*state.SlotDB, results []*types.TxResult, parallel, fellBack bool) (*BatchResult, error) {
	gp := new(GasPool)
	if p.config.BlockGasLimit > 0 {
		gp.AddGas(p.config.BlockGasLimit)
	} else {
		gp.AddGas(maxUint64)
	}

	var gasUsed uint64
	for i, result := range results {
		if result == nil || views[i] == nil {
			return nil, ErrInvariantViolation
		}
		if err := gp.SubGas(result.GasUsed); err != nil {
			return nil, err
		}
		gasUsed += result.GasUsed

		if rw := mv.WriteSetOf(i); rw != nil {
			writes := make(map[types.StateKey]interface{}, len(rw.WriteSet()))
			for key, item := range rw.WriteSet() {
				writes[key] = item.Val
			}
			result.Writes = writes
		}

		if !result.Success {
			continue
		}
		view := views[i]
		for addr, amount := range view.LazyCredits() {
			mv.AddLazyCredit(addr, amount)
		}
		for addr, amount := range view.LazyDebits() {
			mv.AddLazyDebit(addr, amount)
		}
		for addr, n := range view.LazyNonces() {
			for j := 0; j < n; j++ {
				mv.AddLazyNonceIncrement(addr)
			}
		}
	}

	finalWrites := mv.Snapshot()
	if p.config.EnableLazyUpdates {
		// deferred deltas apply on top of any direct write to the account
		for _, addr := range p.config.hotAccounts() {
			if val, ok := finalWrites[types.BalanceKey(addr)]; ok {
				mv.RebaseLazy(addr, val.(*uint256.Int))
			}
		}
	}
	lazyChanges := mv.EvaluateLazy()
	for _, change := range lazyChanges {
		finalWrites[types.BalanceKey(change.Addr)] = change.FinalBalance
		if change.NonceChanged {
			finalWrites[types.NonceKey(change.Addr)] = change.FinalNonce
		}
	}

	return &BatchResult{
		Results:     results,
		GasUsed:     gasUsed,
		FinalWrites: finalWrites,
		LazyChanges: lazyChanges,
		Parallel:    parallel,
		FellBack:    fellBack,
	}, nil
}
