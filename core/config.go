package core

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

// AndePrecompileAddress is the protocol fee sink. It is credited by
// nearly every transaction, which makes it the canonical hot account
// for lazy balance aggregation.
var AndePrecompileAddress = common.HexToAddress("0x00000000000000000000000000000000000000fd")

// DefaultHotAccounts lists the accounts whose balance updates are
// deferred to batch end when lazy updates are enabled.
func DefaultHotAccounts() []common.Address {
	return []common.Address{AndePrecompileAddress}
}

// ParallelConfig tunes one execution engine instance. The zero value
// is not usable; start from one of the presets.
type ParallelConfig struct {
	// ConcurrencyLevel is the number of worker goroutines per batch.
	ConcurrencyLevel int

	// MaxRetries bounds re-incarnations per transaction before the
	// whole batch falls back to sequential execution.
	MaxRetries int

	// MinTxsForParallel is the batch size below which parallel setup
	// costs more than it saves and the batch runs sequentially.
	MinTxsForParallel int

	// EnableLazyUpdates defers hot account balance updates to batch
	// end instead of serializing every transaction on them.
	EnableLazyUpdates bool

	// ForceSequential disables the parallel path entirely.
	ForceSequential bool

	// BlockGasLimit caps cumulative gas per batch, 0 means unlimited.
	BlockGasLimit uint64

	// HotAccounts overrides DefaultHotAccounts when non-nil.
	HotAccounts []common.Address
}

func DefaultParallelConfig() ParallelConfig {
	return ParallelConfig{
		ConcurrencyLevel:  8,
		MaxRetries:        3,
		MinTxsForParallel: 4,
		EnableLazyUpdates: true,
		HotAccounts:       DefaultHotAccounts(),
	}
}

// HighThroughputConfig favours batch throughput on big machines.
func HighThroughputConfig() ParallelConfig {
	cfg := DefaultParallelConfig()
	cfg.ConcurrencyLevel = 16
	cfg.MaxRetries = 5
	cfg.MinTxsForParallel = 2
	return cfg
}

// LowLatencyConfig keeps worker fan-out small so single batches finish
// quickly.
func LowLatencyConfig() ParallelConfig {
	cfg := DefaultParallelConfig()
	cfg.ConcurrencyLevel = 4
	cfg.MaxRetries = 2
	cfg.MinTxsForParallel = 3
	return cfg
}

// TestingConfig is small enough to exercise conflict paths
// deterministically.
func TestingConfig() ParallelConfig {
	cfg := DefaultParallelConfig()
	cfg.ConcurrencyLevel = 2
	cfg.MaxRetries = 1
	cfg.MinTxsForParallel = 2
	return cfg
}

// SequentialOnlyConfig runs every batch on the sequential path.
func SequentialOnlyConfig() ParallelConfig {
	cfg := DefaultParallelConfig()
	cfg.ForceSequential = true
	return cfg
}

func (c *ParallelConfig) Validate() error {
	if c.ConcurrencyLevel < 1 {
		return fmt.Errorf("invalid concurrency level: %d", c.ConcurrencyLevel)
	}
	if c.MaxRetries < 1 {
		return fmt.Errorf("invalid max retries: %d", c.MaxRetries)
	}
	if c.MinTxsForParallel < 1 {
		return fmt.Errorf("invalid parallel threshold: %d", c.MinTxsForParallel)
	}
	return nil
}

func (c *ParallelConfig) hotAccounts() []common.Address {
	if c.HotAccounts != nil {
		return c.HotAccounts
	}
	return DefaultHotAccounts()
}

func (c *ParallelConfig) isHotAccount(addr common.Address) bool {
	for _, hot := range c.hotAccounts() {
		if hot == addr {
			return true
		}
	}
	return false
}
