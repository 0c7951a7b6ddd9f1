package core

import (
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	parallelTxNumMeter         = metrics.NewRegisteredMeter("parallel/txs", nil)
	parallelConflictTxNumMeter = metrics.NewRegisteredMeter("parallel/conflicttxs", nil)
	parallelFallbackMeter      = metrics.NewRegisteredMeter("parallel/fallback", nil)
	parallelBatchTimer         = metrics.NewRegisteredTimer("parallel/batchtime", nil)
	sequentialTxNumMeter       = metrics.NewRegisteredMeter("sequential/txs", nil)
	lazyAccountNumMeter        = metrics.NewRegisteredMeter("parallel/lazyaccounts", nil)
)
