package state

import (
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/emirpasic/gods/maps/treemap"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"golang.org/x/exp/slices"

	"github.com/andechain/pevm/core/types"
)

// Reader provides point reads of committed state. The engine never
// writes through it; final writes are returned to the caller instead.
type Reader interface {
	// GetState returns the committed value for key, or nil when the
	// account/slot has never been touched. An error is fatal for the
	// whole batch.
	GetState(key types.StateKey) (interface{}, error)
}

type ReadStatus int

const (
	ReadStatusOK ReadStatus = iota
	ReadStatusNotFound
	ReadStatusEstimate
)

// ReadResult reports where a speculative read was served from.
type ReadResult struct {
	Status ReadStatus
	Ver    types.StateVersion
	Val    interface{}
	// BlockingIndex is the lower transaction whose aborted write was
	// hit, valid only for ReadStatusEstimate.
	BlockingIndex int
}

// MvMemory is the multi-version store of tentative writes for one
// batch. A read for transaction i returns the write of the highest
// transaction j < i that touched the key; writes of aborted
// incarnations stay behind as estimate marks so that dependent reads
// surface the conflict eagerly. One instance lives exactly as long as
// one batch.
type MvMemory struct {
	blockSize     int
	data          sync.Map // types.StateKey -> *versionCells
	lastWriteKeys []atomic.Pointer[[]types.StateKey]
	lastRWSet     []atomic.Pointer[types.RWSet]

	lazyMu       sync.Mutex
	lazyAccounts map[common.Address]*lazyAccountState
}

type versionCells struct {
	sync.RWMutex
	tm *treemap.Map // tx index -> *versionCell
}

type versionCell struct {
	flag        cellFlag
	incarnation int
	val         interface{}
}

type cellFlag uint

const (
	flagDone cellFlag = iota
	flagEstimate
)

type lazyAccountState struct {
	baseBalance *uint256.Int
	baseNonce   uint64
	delta       types.BalanceDelta
	nonceIncrs  int
}

func NewMvMemory(blockSize int) *MvMemory {
	return &MvMemory{
		blockSize:     blockSize,
		lastWriteKeys: make([]atomic.Pointer[[]types.StateKey], blockSize),
		lastRWSet:     make([]atomic.Pointer[types.RWSet], blockSize),
		lazyAccounts:  make(map[common.Address]*lazyAccountState),
	}
}

// Record publishes the read & write set of one finished incarnation.
// It reports whether the incarnation wrote a key its previous
// incarnation did not, which forces revalidation of higher
// transactions.
func (mv *MvMemory) Record(ver types.StateVersion, rw *types.RWSet) (wroteNewKey bool, err error) {
	wroteNewKey, err = mv.applyWriteSet(ver, rw)
	if err != nil {
		return false, err
	}
	mv.lastRWSet[ver.TxIndex].Store(rw)
	return wroteNewKey, nil
}

// Read answers what transaction txIndex would observe for key right
// now: the highest write below it, an estimate mark of an aborted
// lower incarnation, or nothing.
func (mv *MvMemory) Read(key types.StateKey, txIndex int) (result ReadResult) {
	cells := mv.getKeyCells(key, nil)
	if cells == nil {
		result.Status = ReadStatusNotFound
		return
	}

	cells.RLock()
	defer cells.RUnlock()

	fk, fv := cells.tm.Floor(txIndex - 1)
	if fk == nil || fv == nil {
		result.Status = ReadStatusNotFound
		return
	}

	c := fv.(*versionCell)
	switch c.flag {
	case flagEstimate:
		result.Status = ReadStatusEstimate
		result.BlockingIndex = fk.(int)
	case flagDone:
		result.Status = ReadStatusOK
		result.Ver = types.StateVersion{TxIndex: fk.(int), TxIncarnation: c.incarnation}
		result.Val = c.val
	}
	return
}

// ValidateReadSet re-reads every location the last incarnation of
// txIndex observed and checks it would still see the same data. A read
// now served by a different version is tolerated when the value is
// unchanged, so a lower transaction rewriting the same balance does not
// force a re-incarnation. This is the pull-based half of conflict
// detection; the estimate marks set by ConvertWritesToEstimates are the
// push-based half, and both consult the same version index.
func (mv *MvMemory) ValidateReadSet(txIndex int) bool {
	rw := mv.lastRWSet[txIndex].Load()
	if rw == nil {
		return true
	}
	for key, read := range rw.ReadSet() {
		cur := mv.Read(key, txIndex)
		switch cur.Status {
		case ReadStatusEstimate:
			return false
		case ReadStatusNotFound:
			if read.Ver.TxIndex != types.SnapshotTxIndex {
				return false
			}
		case ReadStatusOK:
			if cur.Ver == read.Ver {
				continue
			}
			if !types.IsEqualRWVal(key, read.Val, cur.Val) {
				return false
			}
		}
	}
	return true
}

// ConvertWritesToEstimates marks the aborted incarnation's writes so
// higher transactions reading them observe the conflict immediately
// instead of at validation time.
func (mv *MvMemory) ConvertWritesToEstimates(txIndex int) {
	prev := mv.lastWriteKeys[txIndex].Load()
	if prev == nil {
		return
	}
	for _, key := range *prev {
		cells := mv.getKeyCells(key, nil)
		if cells == nil {
			continue
		}
		cells.Lock()
		if ci, ok := cells.tm.Get(txIndex); ok {
			ci.(*versionCell).flag = flagEstimate
		}
		cells.Unlock()
	}
}

// Snapshot returns the final value of every written key, i.e. the
// highest committed write per key across the whole batch.
func (mv *MvMemory) Snapshot() map[types.StateKey]interface{} {
	ret := make(map[types.StateKey]interface{})
	mv.data.Range(func(key, _ any) bool {
		result := mv.Read(key.(types.StateKey), mv.blockSize)
		if result.Status == ReadStatusOK {
			ret[key.(types.StateKey)] = result.Val
		}
		return true
	})
	return ret
}

// WriteSetOf returns the final write set recorded for txIndex.
func (mv *MvMemory) WriteSetOf(txIndex int) *types.RWSet {
	return mv.lastRWSet[txIndex].Load()
}

func (mv *MvMemory) applyWriteSet(ver types.StateVersion, rw *types.RWSet) (wroteNewKey bool, err error) {
	newKeys := rw.WriteSet()
	for key, item := range newKeys {
		if err = mv.writeCell(key, ver, item.Val); err != nil {
			return false, err
		}
	}

	prevKeys := mv.lastWriteKeys[ver.TxIndex].Load()
	if prevKeys != nil {
		prevKeyMap := make(map[types.StateKey]struct{}, len(*prevKeys))
		for _, key := range *prevKeys {
			prevKeyMap[key] = struct{}{}
		}
		for key := range newKeys {
			if _, ok := prevKeyMap[key]; !ok {
				wroteNewKey = true
				break
			}
		}
		// writes of the previous incarnation that did not recur are
		// stale and must not shadow lower writers
		for key := range prevKeyMap {
			if _, ok := newKeys[key]; !ok {
				mv.removeCell(key, ver.TxIndex)
			}
		}
	} else {
		wroteNewKey = len(newKeys) > 0
	}

	newKeyList := make([]types.StateKey, 0, len(newKeys))
	for key := range newKeys {
		newKeyList = append(newKeyList, key)
	}
	mv.lastWriteKeys[ver.TxIndex].Store(&newKeyList)
	return wroteNewKey, nil
}

func (mv *MvMemory) writeCell(key types.StateKey, ver types.StateVersion, val interface{}) error {
	cells := mv.getKeyCells(key, func() *versionCells {
		n := &versionCells{tm: treemap.NewWithIntComparator()}
		actual, _ := mv.data.LoadOrStore(key, n)
		return actual.(*versionCells)
	})

	cells.Lock()
	defer cells.Unlock()

	ci, ok := cells.tm.Get(ver.TxIndex)
	if !ok {
		cells.tm.Put(ver.TxIndex, &versionCell{
			flag:        flagDone,
			incarnation: ver.TxIncarnation,
			val:         val,
		})
		return nil
	}
	cell := ci.(*versionCell)
	if cell.incarnation > ver.TxIncarnation {
		return fmt.Errorf("mvmemory: stale incarnation write, key: %v, tx: %d, have: %d, got: %d",
			key, ver.TxIndex, cell.incarnation, ver.TxIncarnation)
	}
	cell.flag = flagDone
	cell.incarnation = ver.TxIncarnation
	cell.val = val
	return nil
}

func (mv *MvMemory) removeCell(key types.StateKey, txIndex int) {
	cells := mv.getKeyCells(key, nil)
	if cells == nil {
		return
	}
	cells.Lock()
	cells.tm.Remove(txIndex)
	cells.Unlock()
}

func (mv *MvMemory) getKeyCells(key types.StateKey, fGen func() *versionCells) *versionCells {
	val, ok := mv.data.Load(key)
	if ok {
		return val.(*versionCells)
	}
	if fGen == nil {
		return nil
	}
	return fGen()
}

// SetLazyBase seeds the hot account accumulator with the committed
// balance and nonce, once per batch before any credit is recorded.
func (mv *MvMemory) SetLazyBase(addr common.Address, balance *uint256.Int, nonce uint64) {
	mv.lazyMu.Lock()
	defer mv.lazyMu.Unlock()
	st := mv.lazyAccount(addr)
	st.baseBalance = new(uint256.Int)
	if balance != nil {
		st.baseBalance.Set(balance)
	}
	st.baseNonce = nonce
}

// RebaseLazy replaces the accumulator base of addr. Used at commit
// when a direct write to the account exists, so the deferred delta
// applies on top of it instead of the batch-start balance.
func (mv *MvMemory) RebaseLazy(addr common.Address, balance *uint256.Int) {
	mv.lazyMu.Lock()
	defer mv.lazyMu.Unlock()
	st, ok := mv.lazyAccounts[addr]
	if !ok {
		return
	}
	st.baseBalance = new(uint256.Int).Set(balance)
}

// AddLazyCredit records a deferred balance addition for a hot account.
func (mv *MvMemory) AddLazyCredit(addr common.Address, amount *uint256.Int) {
	mv.lazyMu.Lock()
	defer mv.lazyMu.Unlock()
	mv.lazyAccount(addr).delta.Credit(amount)
}

// AddLazyDebit records a deferred balance subtraction for a hot account.
func (mv *MvMemory) AddLazyDebit(addr common.Address, amount *uint256.Int) {
	mv.lazyMu.Lock()
	defer mv.lazyMu.Unlock()
	mv.lazyAccount(addr).delta.Debit(amount)
}

// AddLazyNonceIncrement records a deferred nonce bump for a hot account.
func (mv *MvMemory) AddLazyNonceIncrement(addr common.Address) {
	mv.lazyMu.Lock()
	defer mv.lazyMu.Unlock()
	mv.lazyAccount(addr).nonceIncrs++
}

// EvaluateLazy folds every hot account accumulator into its final
// balance and nonce, in deterministic address order.
func (mv *MvMemory) EvaluateLazy() []types.LazyChange {
	mv.lazyMu.Lock()
	defer mv.lazyMu.Unlock()

	addrs := make([]common.Address, 0, len(mv.lazyAccounts))
	for addr, st := range mv.lazyAccounts {
		if st.delta.Sign() == 0 && st.nonceIncrs == 0 {
			continue
		}
		addrs = append(addrs, addr)
	}
	slices.SortFunc(addrs, common.Address.Cmp)

	changes := make([]types.LazyChange, 0, len(addrs))
	for _, addr := range addrs {
		st := mv.lazyAccounts[addr]
		base := st.baseBalance
		if base == nil {
			base = new(uint256.Int)
		}
		changes = append(changes, types.LazyChange{
			Addr:         addr,
			FinalBalance: st.delta.ApplyTo(base),
			FinalNonce:   st.baseNonce + uint64(st.nonceIncrs),
			NonceChanged: st.nonceIncrs > 0,
		})
	}
	return changes
}

func (mv *MvMemory) lazyAccount(addr common.Address) *lazyAccountState {
	st, ok := mv.lazyAccounts[addr]
	if !ok {
		st = &lazyAccountState{}
		mv.lazyAccounts[addr] = st
	}
	return st
}
