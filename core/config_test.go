package core

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func TestParallelConfig_Presets(t *testing.T) {
	def := DefaultParallelConfig()
	require.NoError(t, def.Validate())
	require.Equal(t, 8, def.ConcurrencyLevel)
	require.Equal(t, 3, def.MaxRetries)
	require.Equal(t, 4, def.MinTxsForParallel)
	require.True(t, def.EnableLazyUpdates)
	require.False(t, def.ForceSequential)

	ht := HighThroughputConfig()
	require.NoError(t, ht.Validate())
	require.Equal(t, 16, ht.ConcurrencyLevel)
	require.Equal(t, 5, ht.MaxRetries)
	require.Equal(t, 2, ht.MinTxsForParallel)

	ll := LowLatencyConfig()
	require.NoError(t, ll.Validate())
	require.Equal(t, 4, ll.ConcurrencyLevel)
	require.Equal(t, 2, ll.MaxRetries)
	require.Equal(t, 3, ll.MinTxsForParallel)

	tc := TestingConfig()
	require.NoError(t, tc.Validate())
	require.Equal(t, 2, tc.ConcurrencyLevel)
	require.Equal(t, 1, tc.MaxRetries)

	seq := SequentialOnlyConfig()
	require.NoError(t, seq.Validate())
	require.True(t, seq.ForceSequential)
}

func TestParallelConfig_Validate(t *testing.T) {
	cfg := DefaultParallelConfig()
	cfg.ConcurrencyLevel = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultParallelConfig()
	cfg.MaxRetries = 0
	require.Error(t, cfg.Validate())

	cfg = DefaultParallelConfig()
	cfg.MinTxsForParallel = 0
	require.Error(t, cfg.Validate())
}

func TestParallelConfig_HotAccounts(t *testing.T) {
	cfg := DefaultParallelConfig()
	require.True(t, cfg.isHotAccount(AndePrecompileAddress))
	require.False(t, cfg.isHotAccount(common.HexToAddress("0x01")))

	other := common.HexToAddress("0x99")
	cfg.HotAccounts = []common.Address{other}
	require.True(t, cfg.isHotAccount(other))
	require.False(t, cfg.isHotAccount(AndePrecompileAddress))

	// explicit empty list disables every hot account
	cfg.HotAccounts = []common.Address{}
	require.False(t, cfg.isHotAccount(AndePrecompileAddress))
}
