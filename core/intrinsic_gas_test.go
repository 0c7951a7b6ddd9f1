package core

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	gethtypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/params"
	"github.com/stretchr/testify/require"
)

func TestIntrinsicGas(t *testing.T) {
	gas, err := IntrinsicGas(nil, nil, false)
	require.NoError(t, err)
	require.Equal(t, params.TxGas, gas)

	gas, err = IntrinsicGas(nil, nil, true)
	require.NoError(t, err)
	require.Equal(t, params.TxGasContractCreation, gas)

	// one zero byte, two non-zero bytes
	gas, err = IntrinsicGas([]byte{0x00, 0x01, 0x02}, nil, false)
	require.NoError(t, err)
	require.Equal(t, params.TxGas+params.TxDataZeroGas+2*params.TxDataNonZeroGasEIP2028, gas)

	al := gethtypes.AccessList{
		{
			Address:     common.HexToAddress("0x01"),
			StorageKeys: []common.Hash{common.HexToHash("0x01"), common.HexToHash("0x02")},
		},
		{
			Address: common.HexToAddress("0x02"),
		},
	}
	gas, err = IntrinsicGas(nil, al, false)
	require.NoError(t, err)
	require.Equal(t, params.TxGas+2*params.TxAccessListAddressGas+2*params.TxAccessListStorageKeyGas, gas)
}
