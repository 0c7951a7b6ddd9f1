package types

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
)

type AccountState byte

var (
	AccountNonce    AccountState = 0x02
	AccountBalance  AccountState = 0x04
	AccountCodeHash AccountState = 0x08
	AccountStorage  AccountState = 0x10
)

// SnapshotTxIndex tags a version that was read from the committed
// snapshot rather than from a speculative write.
const SnapshotTxIndex = -1

// StateKey identifies one unit of account or storage state. It is a
// comparable value type, so it can key read/write sets directly.
// Slot is meaningful only when Field is AccountStorage.
type StateKey struct {
	Addr  common.Address
	Field AccountState
	Slot  common.Hash
}

func BalanceKey(addr common.Address) StateKey {
	return StateKey{Addr: addr, Field: AccountBalance}
}

func NonceKey(addr common.Address) StateKey {
	return StateKey{Addr: addr, Field: AccountNonce}
}

func CodeHashKey(addr common.Address) StateKey {
	return StateKey{Addr: addr, Field: AccountCodeHash}
}

func StorageKey(addr common.Address, slot common.Hash) StateKey {
	return StateKey{Addr: addr, Field: AccountStorage, Slot: slot}
}

func (k StateKey) String() string {
	if k.Field == AccountStorage {
		return fmt.Sprintf("%v[%v]", k.Addr, k.Slot)
	}
	return fmt.Sprintf("%v/%#x", k.Addr, byte(k.Field))
}

// Cmp defines a total order over state keys, used to keep merged write
// sets deterministic regardless of map iteration order.
func (k StateKey) Cmp(o StateKey) int {
	if c := k.Addr.Cmp(o.Addr); c != 0 {
		return c
	}
	if k.Field != o.Field {
		if k.Field < o.Field {
			return -1
		}
		return 1
	}
	return k.Slot.Cmp(o.Slot)
}

// StateVersion record specific TxIndex & TxIncarnation
// if TxIndex equals to -1, it means the state read from DB.
type StateVersion struct {
	TxIndex int
	// Tx incarnation used for multi ver state
	TxIncarnation int
}

// SnapshotVersion is the version attached to reads served from the
// committed snapshot.
func SnapshotVersion() StateVersion {
	return StateVersion{TxIndex: SnapshotTxIndex}
}
