package types

import (
	"testing"

	"github.com/holiman/uint256"
	"github.com/stretchr/testify/require"
)

func maxUint256() *uint256.Int {
	return new(uint256.Int).SetAllOne()
}

func TestBalanceDelta_CreditDebit(t *testing.T) {
	var d BalanceDelta
	require.Zero(t, d.Sign())

	d.Credit(uint256.NewInt(100))
	require.Equal(t, 1, d.Sign())
	require.True(t, d.Abs().Eq(uint256.NewInt(100)))

	d.Debit(uint256.NewInt(40))
	require.Equal(t, 1, d.Sign())
	require.True(t, d.Abs().Eq(uint256.NewInt(60)))

	d.Debit(uint256.NewInt(100))
	require.Equal(t, -1, d.Sign())
	require.True(t, d.Abs().Eq(uint256.NewInt(40)))

	d.Credit(uint256.NewInt(40))
	require.Zero(t, d.Sign())
}

func TestBalanceDelta_Saturation(t *testing.T) {
	var d BalanceDelta
	d.Credit(maxUint256())
	d.Credit(uint256.NewInt(1))
	require.True(t, d.Abs().Eq(maxUint256()))

	var n BalanceDelta
	n.Debit(maxUint256())
	n.Debit(uint256.NewInt(1))
	require.Equal(t, -1, n.Sign())
	require.True(t, n.Abs().Eq(maxUint256()))
}

func TestBalanceDelta_ApplyTo(t *testing.T) {
	var d BalanceDelta
	d.Credit(uint256.NewInt(50))
	require.True(t, d.ApplyTo(uint256.NewInt(100)).Eq(uint256.NewInt(150)))

	var n BalanceDelta
	n.Debit(uint256.NewInt(50))
	require.True(t, n.ApplyTo(uint256.NewInt(100)).Eq(uint256.NewInt(50)))

	// debit past zero clamps
	require.True(t, n.ApplyTo(uint256.NewInt(10)).IsZero())
	require.True(t, n.ApplyTo(nil).IsZero())

	// credit past the maximum clamps
	var m BalanceDelta
	m.Credit(maxUint256())
	require.True(t, m.ApplyTo(uint256.NewInt(5)).Eq(maxUint256()))

	var zero BalanceDelta
	require.True(t, zero.ApplyTo(uint256.NewInt(7)).Eq(uint256.NewInt(7)))
}

func TestSaturatingArithmetic(t *testing.T) {
	require.True(t, SaturatingAdd(maxUint256(), uint256.NewInt(1)).Eq(maxUint256()))
	require.True(t, SaturatingAdd(uint256.NewInt(1), uint256.NewInt(2)).Eq(uint256.NewInt(3)))

	require.True(t, SaturatingSub(uint256.NewInt(1), uint256.NewInt(2)).IsZero())
	require.True(t, SaturatingSub(uint256.NewInt(5), uint256.NewInt(5)).IsZero())
	require.True(t, SaturatingSub(uint256.NewInt(5), uint256.NewInt(2)).Eq(uint256.NewInt(3)))
}
