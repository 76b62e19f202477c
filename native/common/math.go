package common

import "math/big"

// Rounding selects the direction applied when a fixed-point operation
// discards a remainder. Every call site names its direction explicitly; the
// credit and debit legs of a transfer deliberately round in opposite
// directions so the remainder never favours the sender.
type Rounding int

const (
	// RoundDown truncates towards zero.
	RoundDown Rounding = iota
	// RoundUp rounds away from zero whenever a remainder is discarded.
	RoundUp
)

var (
	// BasePrecision is the ledger's fixed-point scale (10^18).
	BasePrecision = mustBigInt("1000000000000000000")
	// PercentPrecision is the scale for fee rates and APR bounds (10^4).
	PercentPrecision = big.NewInt(10_000)
	// MaxSupply caps the ledger total supply at 2^128 - 1.
	MaxSupply = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 128), big.NewInt(1))
)

// SecondsPerYear is the annualisation divisor for APR bounds.
const SecondsPerYear = 31_536_000

func mustBigInt(value string) *big.Int {
	v, ok := new(big.Int).SetString(value, 10)
	if !ok {
		panic("invalid big integer constant")
	}
	return v
}

// MulDiv returns a*b/denom with the requested rounding. A nil or zero
// denominator yields zero.
func MulDiv(a, b, denom *big.Int, mode Rounding) *big.Int {
	if a == nil || b == nil || denom == nil || denom.Sign() == 0 {
		return big.NewInt(0)
	}
	product := new(big.Int).Mul(a, b)
	quo, rem := new(big.Int).QuoRem(product, denom, new(big.Int))
	if mode == RoundUp && rem.Sign() != 0 {
		quo.Add(quo, big.NewInt(1))
	}
	return quo
}

// ScaleMul returns a*b/BasePrecision, the fixed-point multiply used when
// converting token amounts into credits.
func ScaleMul(a, b *big.Int, mode Rounding) *big.Int {
	return MulDiv(a, b, BasePrecision, mode)
}

// ScaleDiv returns a*BasePrecision/b, the fixed-point divide used when
// converting credits back into token amounts.
func ScaleDiv(a, b *big.Int, mode Rounding) *big.Int {
	if b == nil || b.Sign() == 0 {
		return big.NewInt(0)
	}
	return MulDiv(a, BasePrecision, b, mode)
}

// Percent returns amount*bps/PercentPrecision with the requested rounding.
func Percent(amount *big.Int, bps uint64, mode Rounding) *big.Int {
	return MulDiv(amount, new(big.Int).SetUint64(bps), PercentPrecision, mode)
}

// MinBig returns the smaller of a and b, treating nil as zero.
func MinBig(a, b *big.Int) *big.Int {
	av, bv := orZero(a), orZero(b)
	if av.Cmp(bv) <= 0 {
		return new(big.Int).Set(av)
	}
	return new(big.Int).Set(bv)
}

// CloneBig returns a defensive copy of v, treating nil as zero.
func CloneBig(v *big.Int) *big.Int {
	return new(big.Int).Set(orZero(v))
}

func orZero(v *big.Int) *big.Int {
	if v == nil {
		return big.NewInt(0)
	}
	return v
}
