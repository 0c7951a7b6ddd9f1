package types

import (
	"fmt"
	"strings"

	"github.com/holiman/uint256"
	"golang.org/x/exp/slices"
)

// RWSet record all read & write set of one transaction incarnation.
// Attention: this is not a concurrent safety structure
type RWSet struct {
	ver      StateVersion
	readSet  map[StateKey]RWItem
	writeSet map[StateKey]RWItem
}

func NewRWSet(ver StateVersion) *RWSet {
	return &RWSet{
		ver:      ver,
		readSet:  make(map[StateKey]RWItem),
		writeSet: make(map[StateKey]RWItem),
	}
}

// RecordRead remembers the version a read was served from. Only the
// first read of a key is kept; later reads within the same incarnation
// observe the recorded value again.
func (s *RWSet) RecordRead(key StateKey, ver StateVersion, val interface{}) {
	if _, ok := s.readSet[key]; ok {
		return
	}
	s.readSet[key] = RWItem{Ver: ver, Val: val}
}

func (s *RWSet) RecordWrite(key StateKey, val interface{}) {
	s.writeSet[key] = RWItem{Ver: s.ver, Val: val}
}

func (s *RWSet) QueryRead(key StateKey) *RWItem {
	ret, ok := s.readSet[key]
	if !ok {
		return nil
	}
	return &ret
}

func (s *RWSet) QueryWrite(key StateKey) *RWItem {
	ret, ok := s.writeSet[key]
	if !ok {
		return nil
	}
	return &ret
}

func (s *RWSet) Version() StateVersion {
	return s.ver
}

func (s *RWSet) ReadSet() map[StateKey]RWItem {
	return s.readSet
}

func (s *RWSet) WriteSet() map[StateKey]RWItem {
	return s.writeSet
}

// WriteKeys returns the written keys in deterministic order.
func (s *RWSet) WriteKeys() []StateKey {
	keys := make([]StateKey, 0, len(s.writeSet))
	for key := range s.writeSet {
		keys = append(keys, key)
	}
	slices.SortFunc(keys, StateKey.Cmp)
	return keys
}

func (s *RWSet) String() string {
	builder := strings.Builder{}
	builder.WriteString(fmt.Sprintf("tx: %v, inc: %v\nreadSet: [", s.ver.TxIndex, s.ver.TxIncarnation))
	i := 0
	for key := range s.readSet {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(key.String())
		i++
	}
	builder.WriteString("]\nwriteSet: [")
	i = 0
	for key := range s.writeSet {
		if i > 0 {
			builder.WriteString(", ")
		}
		builder.WriteString(key.String())
		i++
	}
	builder.WriteString("]\n")
	return builder.String()
}

// IsEqualRWVal compare state values of the same key
func IsEqualRWVal(key StateKey, src interface{}, compared interface{}) bool {
	switch key.Field {
	case AccountBalance:
		if src != nil && compared != nil {
			return equalUint256(src.(*uint256.Int), compared.(*uint256.Int))
		}
		return src == compared
	case AccountNonce:
		return src.(uint64) == compared.(uint64)
	case AccountCodeHash:
		if src != nil && compared != nil {
			return slices.Equal(src.([]byte), compared.([]byte))
		}
		return src == compared
	}

	if src != nil && compared != nil {
		return src == compared
	}
	return src == compared
}

func equalUint256(s, c *uint256.Int) bool {
	if s != nil && c != nil {
		return s.Eq(c)
	}

	return s == c
}

type RWItem struct {
	Ver StateVersion
	Val interface{}
}

func NewRWItem(ver StateVersion, val interface{}) *RWItem {
	return &RWItem{
		Ver: ver,
		Val: val,
	}
}

func (w *RWItem) TxIndex() int {
	return w.Ver.TxIndex
}

func (w *RWItem) TxIncarnation() int {
	return w.Ver.TxIncarnation
}
