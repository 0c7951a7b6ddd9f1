package core

import (
	"sync"
	"sync/atomic"

	"github.com/andechain/pevm/core/types"
)

type taskKind int

const (
	taskKindExecution taskKind = iota
	taskKindValidation
)

type task struct {
	Kind taskKind
	Ver  types.StateVersion
}

const (
	txStatusReadyToExecute = iota
	txStatusExecuting
	txStatusExecuted
	txStatusAborting
)

type txStatus struct {
	sync.Mutex
	status      int
	incarnation int
}

// txDependency holds the transactions blocked on this index.
type txDependency struct {
	sync.Mutex
	dependencies map[int]struct{}
}

// txBlockers holds the transactions this index is blocked on.
type txBlockers struct {
	sync.Mutex
	blockers map[int]struct{}
}

// scheduler hands out execution and validation tasks over two atomic
// index cursors. Validation trails execution; aborts pull either cursor
// back so affected transactions are redone. An incarnation counter that
// overruns the retry budget trips the fallback marker and drains the
// batch, so livelock between conflicting transactions is impossible.
type scheduler struct {
	blockSize  int
	maxRetries int

	doneMarker     atomic.Bool
	fallbackMarker atomic.Bool

	executionIndex  atomic.Int32
	validationIndex atomic.Int32
	numActiveTasks  atomic.Int32
	decreaseCount   atomic.Int32

	allTxStatus     []*txStatus
	allTxDependency []*txDependency
	allTxBlockers   []*txBlockers

	haltMu  sync.Mutex
	haltErr error
}

func newScheduler(blockSize, maxRetries int) *scheduler {
	allTxStatus := make([]*txStatus, blockSize)
	allTxDependency := make([]*txDependency, blockSize)
	allTxBlockers := make([]*txBlockers, blockSize)
	for i := 0; i < blockSize; i++ {
		allTxStatus[i] = &txStatus{}
		allTxDependency[i] = &txDependency{}
		allTxBlockers[i] = &txBlockers{}
	}
	return &scheduler{
		blockSize:       blockSize,
		maxRetries:      maxRetries,
		allTxStatus:     allTxStatus,
		allTxDependency: allTxDependency,
		allTxBlockers:   allTxBlockers,
	}
}

func (s *scheduler) Done() bool {
	return s.doneMarker.Load()
}

// FallbackRequired reports that some transaction ran out of retries and
// the batch must be redone sequentially.
func (s *scheduler) FallbackRequired() bool {
	return s.fallbackMarker.Load()
}

// Halt aborts the whole batch with a fatal error. The first error wins.
func (s *scheduler) Halt(err error) {
	s.haltMu.Lock()
	if s.haltErr == nil {
		s.haltErr = err
	}
	s.haltMu.Unlock()
	s.doneMarker.Store(true)
}

func (s *scheduler) HaltErr() error {
	s.haltMu.Lock()
	defer s.haltMu.Unlock()
	return s.haltErr
}

// PreBlock suspends index behind blockingIndex before any worker
// starts, for dependencies known up front such as transactions sharing
// a sender. Must not be called once tasks are being handed out.
func (s *scheduler) PreBlock(index, blockingIndex int) {
	s.allTxStatus[index].status = txStatusAborting

	dep := s.allTxDependency[blockingIndex]
	if dep.dependencies == nil {
		dep.dependencies = make(map[int]struct{})
	}
	dep.dependencies[index] = struct{}{}

	blockers := s.allTxBlockers[index]
	if blockers.blockers == nil {
		blockers.blockers = make(map[int]struct{})
	}
	blockers.blockers[blockingIndex] = struct{}{}
}

// NextTask prefers validation over execution so conflicts surface as
// early as possible.
func (s *scheduler) NextTask() *task {
	if s.validationIndex.Load() < s.executionIndex.Load() {
		if ver := s.nextVersionToValidate(); ver != nil {
			return &task{Kind: taskKindValidation, Ver: *ver}
		}
	} else {
		if ver := s.nextVersionToExecute(); ver != nil {
			return &task{Kind: taskKindExecution, Ver: *ver}
		}
	}
	return nil
}

// AddDependency suspends index behind blockingIndex after its read hit
// an estimate mark. It reports false when the dependency resolved in
// the meantime and the caller should just retry execution.
func (s *scheduler) AddDependency(index, blockingIndex int) bool {
	dep := s.allTxDependency[blockingIndex]
	dep.Lock()

	st := s.allTxStatus[blockingIndex]
	st.Lock()
	if st.status == txStatusExecuted {
		st.Unlock()
		dep.Unlock()
		return false
	}
	st.Unlock()

	own := s.allTxStatus[index]
	own.Lock()
	own.status = txStatusAborting
	own.Unlock()

	if dep.dependencies == nil {
		dep.dependencies = make(map[int]struct{})
	}
	dep.dependencies[index] = struct{}{}
	dep.Unlock()

	blockers := s.allTxBlockers[index]
	blockers.Lock()
	if blockers.blockers == nil {
		blockers.blockers = make(map[int]struct{})
	}
	blockers.blockers[blockingIndex] = struct{}{}
	blockers.Unlock()

	s.numActiveTasks.Add(-1)
	return true
}

// FinishExecution transitions the transaction to executed, resumes
// anything blocked on it and decides what to validate next. When the
// incarnation wrote a key its predecessor did not, every higher
// transaction needs revalidation; otherwise validating just this one
// is enough.
func (s *scheduler) FinishExecution(ver types.StateVersion, wroteNewKey bool) *task {
	st := s.allTxStatus[ver.TxIndex]
	st.Lock()
	if st.status != txStatusExecuting {
		st.Unlock()
		s.Halt(ErrInvariantViolation)
		return nil
	}
	st.status = txStatusExecuted
	st.Unlock()

	dep := s.allTxDependency[ver.TxIndex]
	dep.Lock()
	dependencies := dep.dependencies
	dep.dependencies = nil
	dep.Unlock()

	s.resumeDependencies(ver.TxIndex, dependencies)

	if s.validationIndex.Load() > int32(ver.TxIndex) {
		if wroteNewKey {
			s.decreaseValidationIndex(ver.TxIndex)
		} else {
			return &task{Kind: taskKindValidation, Ver: ver}
		}
	}

	s.numActiveTasks.Add(-1)
	return nil
}

// FinishValidation records a validation verdict. An abort readies the
// next incarnation and schedules revalidation of everything above.
func (s *scheduler) FinishValidation(txIndex int, aborted bool) *task {
	if aborted {
		s.setReadyStatus(txIndex)
		s.decreaseValidationIndex(txIndex + 1)

		if s.executionIndex.Load() > int32(txIndex) {
			if ver := s.tryIncarnation(txIndex); ver != nil {
				return &task{Kind: taskKindExecution, Ver: *ver}
			}
		}
	}
	s.numActiveTasks.Add(-1)
	return nil
}

// TryValidationAbort claims the right to abort the given incarnation.
// Only one validator can win; a lost race means a newer incarnation
// already exists.
func (s *scheduler) TryValidationAbort(ver types.StateVersion) bool {
	st := s.allTxStatus[ver.TxIndex]
	st.Lock()
	defer st.Unlock()
	if st.incarnation == ver.TxIncarnation && st.status == txStatusExecuted {
		st.status = txStatusAborting
		return true
	}
	return false
}

func (s *scheduler) resumeDependencies(blockingIndex int, dependencies map[int]struct{}) {
	if len(dependencies) == 0 {
		return
	}
	minDepTxIndex := -1
	for depTxIndex := range dependencies {
		blockers := s.allTxBlockers[depTxIndex]
		blockers.Lock()
		delete(blockers.blockers, blockingIndex)
		canResume := len(blockers.blockers) == 0
		blockers.Unlock()
		if canResume {
			s.setReadyStatus(depTxIndex)
			if minDepTxIndex == -1 || depTxIndex < minDepTxIndex {
				minDepTxIndex = depTxIndex
			}
		}
	}
	if minDepTxIndex != -1 {
		s.decreaseExecutionIndex(minDepTxIndex)
	}
}

// setReadyStatus readies the next incarnation. Exceeding the retry
// budget trips the sequential fallback instead of spinning forever.
func (s *scheduler) setReadyStatus(txIndex int) {
	st := s.allTxStatus[txIndex]
	st.Lock()
	st.incarnation++
	st.status = txStatusReadyToExecute
	over := st.incarnation > s.maxRetries
	st.Unlock()

	if over {
		s.fallbackMarker.Store(true)
		s.doneMarker.Store(true)
	}
}

func (s *scheduler) nextVersionToValidate() *types.StateVersion {
	if s.validationIndex.Load() >= int32(s.blockSize) {
		s.checkDone()
		return nil
	}

	s.numActiveTasks.Add(1)
	validationIndex := s.validationIndex.Add(1) - 1
	if validationIndex < int32(s.blockSize) {
		st := s.allTxStatus[validationIndex]
		st.Lock()
		status, incarnation := st.status, st.incarnation
		st.Unlock()
		if status == txStatusExecuted {
			return &types.StateVersion{TxIndex: int(validationIndex), TxIncarnation: incarnation}
		}
	}

	s.numActiveTasks.Add(-1)
	return nil
}

func (s *scheduler) nextVersionToExecute() *types.StateVersion {
	if s.executionIndex.Load() >= int32(s.blockSize) {
		s.checkDone()
		return nil
	}

	s.numActiveTasks.Add(1)
	executionIndex := int(s.executionIndex.Add(1) - 1)
	return s.tryIncarnation(executionIndex)
}

func (s *scheduler) tryIncarnation(txIndex int) *types.StateVersion {
	if txIndex < s.blockSize {
		st := s.allTxStatus[txIndex]
		st.Lock()
		if st.status == txStatusReadyToExecute {
			st.status = txStatusExecuting
			incarnation := st.incarnation
			st.Unlock()
			return &types.StateVersion{TxIndex: txIndex, TxIncarnation: incarnation}
		}
		st.Unlock()
	}

	s.numActiveTasks.Add(-1)
	return nil
}

// checkDone declares the batch finished only when both cursors ran off
// the end, no task is in flight, and no cursor moved backwards while we
// were looking.
func (s *scheduler) checkDone() {
	observedCount := s.decreaseCount.Load()
	if s.executionIndex.Load() >= int32(s.blockSize) &&
		s.validationIndex.Load() >= int32(s.blockSize) &&
		s.numActiveTasks.Load() == 0 &&
		observedCount == s.decreaseCount.Load() {
		s.doneMarker.Store(true)
	}
}

func (s *scheduler) decreaseExecutionIndex(txIndex int) {
	target := int32(txIndex)
	for {
		cur := s.executionIndex.Load()
		if cur <= target || s.executionIndex.CompareAndSwap(cur, target) {
			break
		}
	}
	s.decreaseCount.Add(1)
}

func (s *scheduler) decreaseValidationIndex(txIndex int) {
	target := int32(txIndex)
	for {
		cur := s.validationIndex.Load()
		if cur <= target || s.validationIndex.CompareAndSwap(cur, target) {
			break
		}
	}
	s.decreaseCount.Add(1)
}
