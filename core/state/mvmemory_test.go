package state

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"

	"github.com/andechain/pevm/core/types"
)

var (
	addrA = common.HexToAddress("0x0a")
	addrB = common.HexToAddress("0x0b")
)

func recordWrite(t *testing.T, mv *MvMemory, ver types.StateVersion, vals map[types.StateKey]interface{}) bool {
	t.Helper()
	rw := types.NewRWSet(ver)
	for key, val := range vals {
		rw.RecordWrite(key, val)
	}
	wroteNewKey, err := mv.Record(ver, rw)
	require.NoError(t, err)
	return wroteNewKey
}

func TestMvMemory_ReadFloor(t *testing.T) {
	mv := NewMvMemory(4)
	key := types.BalanceKey(addrA)

	recordWrite(t, mv, types.StateVersion{TxIndex: 0}, map[types.StateKey]interface{}{key: uint256.NewInt(10)})
	recordWrite(t, mv, types.StateVersion{TxIndex: 2}, map[types.StateKey]interface{}{key: uint256.NewInt(20)})

	res := mv.Read(key, 0)
	require.Equal(t, ReadStatusNotFound, res.Status)

	res = mv.Read(key, 1)
	require.Equal(t, ReadStatusOK, res.Status)
	require.Equal(t, types.StateVersion{TxIndex: 0}, res.Ver)
	require.True(t, res.Val.(*uint256.Int).Eq(uint256.NewInt(10)))

	res = mv.Read(key, 3)
	require.Equal(t, ReadStatusOK, res.Status)
	require.Equal(t, types.StateVersion{TxIndex: 2}, res.Ver)
	require.True(t, res.Val.(*uint256.Int).Eq(uint256.NewInt(20)))

	res = mv.Read(types.NonceKey(addrA), 3)
	require.Equal(t, ReadStatusNotFound, res.Status)
}

func TestMvMemory_Estimates(t *testing.T) {
	mv := NewMvMemory(3)
	key := types.BalanceKey(addrA)

	recordWrite(t, mv, types.StateVersion{TxIndex: 0}, map[types.StateKey]interface{}{key: uint256.NewInt(10)})
	mv.ConvertWritesToEstimates(0)

	res := mv.Read(key, 1)
	require.Equal(t, ReadStatusEstimate, res.Status)
	require.Equal(t, 0, res.BlockingIndex)

	res = mv.Read(key, 0)
	require.Equal(t, ReadStatusNotFound, res.Status)

	// the next incarnation clears the mark
	recordWrite(t, mv, types.StateVersion{TxIndex: 0, TxIncarnation: 1}, map[types.StateKey]interface{}{key: uint256.NewInt(11)})
	res = mv.Read(key, 1)
	require.Equal(t, ReadStatusOK, res.Status)
	require.Equal(t, types.StateVersion{TxIndex: 0, TxIncarnation: 1}, res.Ver)
}

func TestMvMemory_ValidateReadSet(t *testing.T) {
	mv := NewMvMemory(3)
	key := types.BalanceKey(addrA)

	recordWrite(t, mv, types.StateVersion{TxIndex: 0}, map[types.StateKey]interface{}{key: uint256.NewInt(10)})

	ver1 := types.StateVersion{TxIndex: 1}
	rw := types.NewRWSet(ver1)
	rw.RecordRead(key, types.StateVersion{TxIndex: 0}, uint256.NewInt(10))
	_, err := mv.Record(ver1, rw)
	require.NoError(t, err)
	require.True(t, mv.ValidateReadSet(1))

	// a new incarnation of tx 0 invalidates tx 1's read
	recordWrite(t, mv, types.StateVersion{TxIndex: 0, TxIncarnation: 1}, map[types.StateKey]interface{}{key: uint256.NewInt(15)})
	require.False(t, mv.ValidateReadSet(1))
}

func TestMvMemory_ValidateSameValueRewrite(t *testing.T) {
	mv := NewMvMemory(3)
	key := types.BalanceKey(addrA)

	recordWrite(t, mv, types.StateVersion{TxIndex: 0}, map[types.StateKey]interface{}{key: uint256.NewInt(10)})

	ver1 := types.StateVersion{TxIndex: 1}
	rw := types.NewRWSet(ver1)
	rw.RecordRead(key, types.StateVersion{TxIndex: 0}, uint256.NewInt(10))
	_, err := mv.Record(ver1, rw)
	require.NoError(t, err)

	// tx 0 re-executes but lands on the same balance; tx 1's read is
	// version-stale yet value-identical and must stay valid
	recordWrite(t, mv, types.StateVersion{TxIndex: 0, TxIncarnation: 1}, map[types.StateKey]interface{}{key: uint256.NewInt(10)})
	require.True(t, mv.ValidateReadSet(1))

	recordWrite(t, mv, types.StateVersion{TxIndex: 0, TxIncarnation: 2}, map[types.StateKey]interface{}{key: uint256.NewInt(11)})
	require.False(t, mv.ValidateReadSet(1))
}

func TestMvMemory_ValidateSnapshotRead(t *testing.T) {
	mv := NewMvMemory(3)
	key := types.BalanceKey(addrB)

	ver1 := types.StateVersion{TxIndex: 1}
	rw := types.NewRWSet(ver1)
	rw.RecordRead(key, types.SnapshotVersion(), uint256.NewInt(50))
	_, err := mv.Record(ver1, rw)
	require.NoError(t, err)
	require.True(t, mv.ValidateReadSet(1))

	// a lower write appears where the snapshot was read before
	recordWrite(t, mv, types.StateVersion{TxIndex: 0}, map[types.StateKey]interface{}{key: uint256.NewInt(60)})
	require.False(t, mv.ValidateReadSet(1))
}

func TestMvMemory_EstimateFailsValidation(t *testing.T) {
	mv := NewMvMemory(3)
	key := types.BalanceKey(addrA)

	recordWrite(t, mv, types.StateVersion{TxIndex: 0}, map[types.StateKey]interface{}{key: uint256.NewInt(10)})

	ver1 := types.StateVersion{TxIndex: 1}
	rw := types.NewRWSet(ver1)
	rw.RecordRead(key, types.StateVersion{TxIndex: 0}, uint256.NewInt(10))
	_, err := mv.Record(ver1, rw)
	require.NoError(t, err)

	// push-based marking and pull-based validation must agree
	mv.ConvertWritesToEstimates(0)
	require.False(t, mv.ValidateReadSet(1))
}

func TestMvMemory_StaleKeyRemoval(t *testing.T) {
	mv := NewMvMemory(2)
	keyA := types.BalanceKey(addrA)
	keyB := types.BalanceKey(addrB)

	wroteNew := recordWrite(t, mv, types.StateVersion{TxIndex: 0}, map[types.StateKey]interface{}{
		keyA: uint256.NewInt(1),
		keyB: uint256.NewInt(2),
	})
	require.True(t, wroteNew)

	// the next incarnation drops keyB and adds nothing new
	wroteNew = recordWrite(t, mv, types.StateVersion{TxIndex: 0, TxIncarnation: 1}, map[types.StateKey]interface{}{
		keyA: uint256.NewInt(3),
	})
	require.False(t, wroteNew)

	res := mv.Read(keyB, 1)
	require.Equal(t, ReadStatusNotFound, res.Status)

	// a genuinely new key reports wroteNewKey
	wroteNew = recordWrite(t, mv, types.StateVersion{TxIndex: 0, TxIncarnation: 2}, map[types.StateKey]interface{}{
		keyA: uint256.NewInt(4),
		keyB: uint256.NewInt(5),
	})
	require.True(t, wroteNew)
}

func TestMvMemory_StaleIncarnationWrite(t *testing.T) {
	mv := NewMvMemory(1)
	key := types.BalanceKey(addrA)

	recordWrite(t, mv, types.StateVersion{TxIndex: 0, TxIncarnation: 1}, map[types.StateKey]interface{}{key: uint256.NewInt(1)})

	rw := types.NewRWSet(types.StateVersion{TxIndex: 0})
	rw.RecordWrite(key, uint256.NewInt(2))
	_, err := mv.Record(types.StateVersion{TxIndex: 0}, rw)
	require.Error(t, err)
}

func TestMvMemory_Snapshot(t *testing.T) {
	mv := NewMvMemory(3)
	keyA := types.BalanceKey(addrA)
	keyB := types.NonceKey(addrB)

	recordWrite(t, mv, types.StateVersion{TxIndex: 0}, map[types.StateKey]interface{}{keyA: uint256.NewInt(1)})
	recordWrite(t, mv, types.StateVersion{TxIndex: 2}, map[types.StateKey]interface{}{keyA: uint256.NewInt(9), keyB: uint64(4)})

	snap := mv.Snapshot()
	require.Len(t, snap, 2)
	require.True(t, snap[keyA].(*uint256.Int).Eq(uint256.NewInt(9)))
	require.Equal(t, uint64(4), snap[keyB])
}

func TestMvMemory_LazyEvaluation(t *testing.T) {
	mv := NewMvMemory(4)

	mv.SetLazyBase(addrB, uint256.NewInt(100), 7)
	mv.SetLazyBase(addrA, uint256.NewInt(10), 0)

	mv.AddLazyCredit(addrB, uint256.NewInt(50))
	mv.AddLazyDebit(addrB, uint256.NewInt(30))
	mv.AddLazyNonceIncrement(addrB)
	mv.AddLazyNonceIncrement(addrB)
	mv.AddLazyDebit(addrA, uint256.NewInt(25))

	changes := mv.EvaluateLazy()
	require.Len(t, changes, 2)

	// deterministic address order
	require.Equal(t, addrA, changes[0].Addr)
	require.Equal(t, addrB, changes[1].Addr)

	require.True(t, changes[0].FinalBalance.IsZero())
	require.Equal(t, uint64(0), changes[0].FinalNonce)
	require.False(t, changes[0].NonceChanged)

	require.True(t, changes[1].FinalBalance.Eq(uint256.NewInt(120)))
	require.Equal(t, uint64(9), changes[1].FinalNonce)
	require.True(t, changes[1].NonceChanged)
}
