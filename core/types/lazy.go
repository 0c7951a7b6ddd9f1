package types

import (
	"github.com/holiman/uint256"
)

// BalanceDelta accumulates the net balance change of one hot account
// across a batch. It is a signed magnitude over uint256 with saturating
// arithmetic: a crafted value can clamp the accumulator, never wrap it
// or panic.
type BalanceDelta struct {
	neg bool
	abs uint256.Int
}

// Credit adds amount to the delta, saturating at the uint256 maximum.
func (d *BalanceDelta) Credit(amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	if !d.neg {
		saturatingAdd(&d.abs, amount)
		return
	}
	// delta is negative: cancel against the magnitude
	if d.abs.Cmp(amount) >= 0 {
		d.abs.Sub(&d.abs, amount)
		if d.abs.IsZero() {
			d.neg = false
		}
		return
	}
	rest := new(uint256.Int).Sub(amount, &d.abs)
	d.abs.Set(rest)
	d.neg = false
}

// Debit subtracts amount from the delta, saturating at the negated
// uint256 maximum.
func (d *BalanceDelta) Debit(amount *uint256.Int) {
	if amount == nil || amount.IsZero() {
		return
	}
	if d.neg {
		saturatingAdd(&d.abs, amount)
		return
	}
	if d.abs.Cmp(amount) >= 0 {
		d.abs.Sub(&d.abs, amount)
		return
	}
	rest := new(uint256.Int).Sub(amount, &d.abs)
	d.abs.Set(rest)
	d.neg = true
}

// Sign reports -1, 0 or 1.
func (d *BalanceDelta) Sign() int {
	if d.abs.IsZero() {
		return 0
	}
	if d.neg {
		return -1
	}
	return 1
}

// Abs returns a copy of the delta magnitude.
func (d *BalanceDelta) Abs() *uint256.Int {
	return new(uint256.Int).Set(&d.abs)
}

// ApplyTo returns base adjusted by the delta, clamped to [0, 2^256-1].
func (d *BalanceDelta) ApplyTo(base *uint256.Int) *uint256.Int {
	out := new(uint256.Int)
	if base != nil {
		out.Set(base)
	}
	if d.abs.IsZero() {
		return out
	}
	if d.neg {
		if out.Cmp(&d.abs) <= 0 {
			return out.Clear()
		}
		return out.Sub(out, &d.abs)
	}
	saturatingAdd(out, &d.abs)
	return out
}

// saturatingAdd sets dst to dst+x, clamped at the uint256 maximum.
func saturatingAdd(dst, x *uint256.Int) {
	if _, overflow := dst.AddOverflow(dst, x); overflow {
		dst.SetAllOne()
	}
}

// SaturatingAdd returns a+b clamped at the uint256 maximum.
func SaturatingAdd(a, b *uint256.Int) *uint256.Int {
	out := new(uint256.Int).Set(a)
	saturatingAdd(out, b)
	return out
}

// SaturatingSub returns a-b clamped at zero.
func SaturatingSub(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) <= 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(a, b)
}
