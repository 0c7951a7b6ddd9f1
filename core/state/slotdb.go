package state

import (
	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/holiman/uint256"

	"github.com/andechain/pevm/core/types"
)

// SlotDB is the scratch state view one worker executes a single
// incarnation against. Reads go local buffer first, then MvMemory,
// then the committed snapshot, and every non-local read is recorded
// for later validation. Writes stay in the local buffer until
// Finalise; nothing is published while execution is in flight. A
// SlotDB is owned by exactly one worker and is never shared.
type SlotDB struct {
	mv   *MvMemory
	snap Reader
	ver  types.StateVersion

	rw    *types.RWSet
	dirty map[types.StateKey]interface{}
	logs  []*gethtypes.Log

	lazyCredits map[common.Address]*uint256.Int
	lazyDebits  map[common.Address]*uint256.Int
	lazyNonces  map[common.Address]int

	blockedBy int
	err       error
}

func NewSlotDB(mv *MvMemory, snap Reader, ver types.StateVersion) *SlotDB {
	return &SlotDB{
		mv:        mv,
		snap:      snap,
		ver:       ver,
		rw:        types.NewRWSet(ver),
		dirty:     make(map[types.StateKey]interface{}),
		blockedBy: -1,
	}
}

func (s *SlotDB) Version() types.StateVersion {
	return s.ver
}

// Blocked reports that a read hit the estimate mark of an aborted
// lower transaction; the incarnation's outcome must be discarded and
// re-scheduled behind BlockingIndex.
func (s *SlotDB) Blocked() bool {
	return s.blockedBy >= 0
}

func (s *SlotDB) BlockingIndex() int {
	return s.blockedBy
}

// Err returns the latched fatal error, if a committed-state read
// failed. Fatal errors abandon the whole batch.
func (s *SlotDB) Err() error {
	return s.err
}

func (s *SlotDB) GetBalance(addr common.Address) *uint256.Int {
	val := s.getValue(types.BalanceKey(addr))
	if val == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(val.(*uint256.Int))
}

func (s *SlotDB) GetNonce(addr common.Address) uint64 {
	val := s.getValue(types.NonceKey(addr))
	if val == nil {
		return 0
	}
	return val.(uint64)
}

func (s *SlotDB) GetState(addr common.Address, slot common.Hash) common.Hash {
	val := s.getValue(types.StorageKey(addr, slot))
	if val == nil {
		return common.Hash{}
	}
	return val.(common.Hash)
}

func (s *SlotDB) SetBalance(addr common.Address, balance *uint256.Int) {
	s.dirty[types.BalanceKey(addr)] = new(uint256.Int).Set(balance)
}

// AddBalance credits addr, saturating at the uint256 maximum instead
// of wrapping.
func (s *SlotDB) AddBalance(addr common.Address, amount *uint256.Int) {
	s.SetBalance(addr, types.SaturatingAdd(s.GetBalance(addr), amount))
}

// SubBalance debits addr, clamping at zero.
func (s *SlotDB) SubBalance(addr common.Address, amount *uint256.Int) {
	s.SetBalance(addr, types.SaturatingSub(s.GetBalance(addr), amount))
}

func (s *SlotDB) SetNonce(addr common.Address, nonce uint64) {
	s.dirty[types.NonceKey(addr)] = nonce
}

func (s *SlotDB) SetState(addr common.Address, slot common.Hash, val common.Hash) {
	s.dirty[types.StorageKey(addr, slot)] = val
}

func (s *SlotDB) AddLog(l *gethtypes.Log) {
	l.TxIndex = uint(s.ver.TxIndex)
	s.logs = append(s.logs, l)
}

func (s *SlotDB) Logs() []*gethtypes.Log {
	return s.logs
}

// AddLazyCredit defers a balance addition for a hot account. It is
// buffered locally and only folded into the batch accumulator when
// this incarnation commits, so retries never double-count.
func (s *SlotDB) AddLazyCredit(addr common.Address, amount *uint256.Int) {
	if s.lazyCredits == nil {
		s.lazyCredits = make(map[common.Address]*uint256.Int)
	}
	cur, ok := s.lazyCredits[addr]
	if !ok {
		cur = new(uint256.Int)
		s.lazyCredits[addr] = cur
	}
	cur.Set(types.SaturatingAdd(cur, amount))
}

// AddLazyDebit defers a balance subtraction for a hot account.
func (s *SlotDB) AddLazyDebit(addr common.Address, amount *uint256.Int) {
	if s.lazyDebits == nil {
		s.lazyDebits = make(map[common.Address]*uint256.Int)
	}
	cur, ok := s.lazyDebits[addr]
	if !ok {
		cur = new(uint256.Int)
		s.lazyDebits[addr] = cur
	}
	cur.Set(types.SaturatingAdd(cur, amount))
}

// LazyNonceIncrement defers a nonce bump for a hot account.
func (s *SlotDB) LazyNonceIncrement(addr common.Address) {
	if s.lazyNonces == nil {
		s.lazyNonces = make(map[common.Address]int)
	}
	s.lazyNonces[addr]++
}

func (s *SlotDB) LazyCredits() map[common.Address]*uint256.Int {
	return s.lazyCredits
}

func (s *SlotDB) LazyDebits() map[common.Address]*uint256.Int {
	return s.lazyDebits
}

func (s *SlotDB) LazyNonces() map[common.Address]int {
	return s.lazyNonces
}

// Finalise seals the incarnation and returns its read & write set.
// A failed transaction publishes its reads (the failure verdict
// depends on them and must be revalidated) but no writes.
func (s *SlotDB) Finalise(success bool) *types.RWSet {
	if success {
		for key, val := range s.dirty {
			s.rw.RecordWrite(key, val)
		}
	}
	return s.rw
}

// getValue serves a read in the order: own writes, own recorded
// reads, speculative writes of lower transactions, committed
// snapshot. Rereads within one incarnation observe the first
// recorded value.
func (s *SlotDB) getValue(key types.StateKey) interface{} {
	if val, ok := s.dirty[key]; ok {
		return val
	}
	if item := s.rw.QueryRead(key); item != nil {
		return item.Val
	}

	result := s.mv.Read(key, s.ver.TxIndex)
	switch result.Status {
	case ReadStatusEstimate:
		if s.blockedBy < 0 || result.BlockingIndex < s.blockedBy {
			s.blockedBy = result.BlockingIndex
		}
		return nil
	case ReadStatusOK:
		s.rw.RecordRead(key, result.Ver, result.Val)
		return result.Val
	}

	val, err := s.snap.GetState(key)
	if err != nil {
		if s.err == nil {
			s.err = err
		}
		return nil
	}
	s.rw.RecordRead(key, types.SnapshotVersion(), val)
	return val
}
