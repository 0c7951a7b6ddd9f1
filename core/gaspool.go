package core

import "fmt"

// GasPool tracks the gas still available for a batch while results are
// committed in transaction order. It is used single-threaded.
type GasPool uint64

func (gp *GasPool) AddGas(amount uint64) *GasPool {
	if uint64(*gp) > maxUint64-amount {
		panic("gas pool pushed above uint64")
	}
	*(*uint64)(gp) += amount
	return gp
}

// SubGas deducts the given amount and returns ErrGasLimitReached when
// the pool cannot cover it.
func (gp *GasPool) SubGas(amount uint64) error {
	if uint64(*gp) < amount {
		return ErrGasLimitReached
	}
	*(*uint64)(gp) -= amount
	return nil
}

func (gp *GasPool) Gas() uint64 {
	return uint64(*gp)
}

func (gp *GasPool) String() string {
	return fmt.Sprintf("%d", uint64(*gp))
}

const maxUint64 = 1<<64 - 1
