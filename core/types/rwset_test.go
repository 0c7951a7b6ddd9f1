package types

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

var mockAddr = common.HexToAddress("0x00000000000000000000000000000000000000fe")

func TestRWSet_RecordRead(t *testing.T) {
	s := NewRWSet(StateVersion{TxIndex: 3, TxIncarnation: 1})

	key := BalanceKey(mockAddr)
	s.RecordRead(key, StateVersion{TxIndex: 1}, uint256.NewInt(10))
	s.RecordRead(key, StateVersion{TxIndex: 2}, uint256.NewInt(20))

	got := s.QueryRead(key)
	require.NotNil(t, got)
	require.Equal(t, 1, got.TxIndex())
	require.True(t, got.Val.(*uint256.Int).Eq(uint256.NewInt(10)))
	require.Nil(t, s.QueryRead(NonceKey(mockAddr)))
}

func TestRWSet_RecordWrite(t *testing.T) {
	ver := StateVersion{TxIndex: 5, TxIncarnation: 2}
	s := NewRWSet(ver)

	key := NonceKey(mockAddr)
	s.RecordWrite(key, uint64(1))
	s.RecordWrite(key, uint64(2))

	got := s.QueryWrite(key)
	require.NotNil(t, got)
	require.Equal(t, ver, got.Ver)
	require.Equal(t, uint64(2), got.Val)
	require.Len(t, s.WriteSet(), 1)
}

func TestRWSet_WriteKeysOrder(t *testing.T) {
	s := NewRWSet(StateVersion{})
	a := common.HexToAddress("0x02")
	b := common.HexToAddress("0x01")
	s.RecordWrite(BalanceKey(a), uint256.NewInt(1))
	s.RecordWrite(NonceKey(b), uint64(1))
	s.RecordWrite(BalanceKey(b), uint256.NewInt(1))

	keys := s.WriteKeys()
	require.Equal(t, []StateKey{NonceKey(b), BalanceKey(b), BalanceKey(a)}, keys)
}

func TestIsEqualRWVal(t *testing.T) {
	tests := []struct {
		key      StateKey
		src      interface{}
		compared interface{}
		isEqual  bool
	}{
		{
			key:      NonceKey(mockAddr),
			src:      uint64(0),
			compared: uint64(0),
			isEqual:  true,
		},
		{
			key:      NonceKey(mockAddr),
			src:      uint64(0),
			compared: uint64(1),
			isEqual:  false,
		},
		{
			key:      BalanceKey(mockAddr),
			src:      uint256.NewInt(100),
			compared: uint256.NewInt(100),
			isEqual:  true,
		},
		{
			key:      BalanceKey(mockAddr),
			src:      uint256.NewInt(100),
			compared: uint256.NewInt(101),
			isEqual:  false,
		},
		{
			key:      BalanceKey(mockAddr),
			src:      (*uint256.Int)(nil),
			compared: uint256.NewInt(0),
			isEqual:  false,
		},
		{
			key:      CodeHashKey(mockAddr),
			src:      []byte{0x01},
			compared: []byte{0x01},
			isEqual:  true,
		},
		{
			key:      CodeHashKey(mockAddr),
			src:      []byte{0x01},
			compared: []byte{0x02},
			isEqual:  false,
		},
		{
			key:      StorageKey(mockAddr, common.HexToHash("0x01")),
			src:      common.HexToHash("0xaa"),
			compared: common.HexToHash("0xaa"),
			isEqual:  true,
		},
	}

	for i, item := range tests {
		require.Equal(t, item.isEqual, IsEqualRWVal(item.key, item.src, item.compared), i)
	}
}

func TestStateKey_Cmp(t *testing.T) {
	a := common.HexToAddress("0x01")
	b := common.HexToAddress("0x02")

	require.Negative(t, BalanceKey(a).Cmp(BalanceKey(b)))
	require.Negative(t, NonceKey(a).Cmp(BalanceKey(a)))
	require.Negative(t, StorageKey(a, common.HexToHash("0x01")).Cmp(StorageKey(a, common.HexToHash("0x02"))))
	require.Zero(t, NonceKey(b).Cmp(NonceKey(b)))
}
