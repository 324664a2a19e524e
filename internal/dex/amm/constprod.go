package amm

import (
	"fmt"
	"math/big"

	"DexLedger/internal/dex"
)

// Constant-product arithmetic. All intermediates run through big.Int so
// reserve-scale products cannot overflow; results are exact integers.

// cpOut computes the output for selling dx against reserves (rx, ry) with
// fee numerator fee over basis:
//
//	dxf = dx * (basis - fee)
//	out = floor(ry*dxf / (rx*basis + dxf))
func cpOut(rx, ry, dx, fee, basis int64) int64 {
	dxf := new(big.Int).Mul(big.NewInt(dx), big.NewInt(basis-fee))
	num := new(big.Int).Mul(big.NewInt(ry), dxf)
	den := new(big.Int).Mul(big.NewInt(rx), big.NewInt(basis))
	den.Add(den, dxf)
	if den.Sign() == 0 {
		return 0
	}
	return new(big.Int).Quo(num, den).Int64()
}

// cpIn computes the input needed to receive dy, rounded up so the computed
// input always settles on-chain:
//
//	in = ceil(rx*basis*dy / ((ry-dy)*(basis-fee)))
func cpIn(rx, ry, dy, fee, basis int64) (int64, error) {
	if dy >= ry {
		return 0, fmt.Errorf("requested output %d drains reserve %d", dy, ry)
	}
	num := new(big.Int).Mul(big.NewInt(rx), big.NewInt(basis))
	num.Mul(num, big.NewInt(dy))
	den := new(big.Int).Mul(big.NewInt(ry-dy), big.NewInt(basis-fee))
	return ceilDiv(num, den), nil
}

// cpImpact estimates the price impact of a swap as a non-authoritative
// float for display.
func cpImpact(rx, ry, dx, out, fee, basis int64) float64 {
	if out == 0 || dx == 0 || rx == 0 || ry == 0 {
		return 0
	}
	spot := float64(ry) / float64(rx)
	eff := float64(out) / (float64(dx) * float64(basis-fee) / float64(basis))
	if spot == 0 {
		return 0
	}
	return 1 - eff/spot
}

// ceilDiv returns ceil(num/den) for positive den.
func ceilDiv(num, den *big.Int) int64 {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 {
		q.Add(q, big.NewInt(1))
	}
	return q.Int64()
}

// cpOutChecked computes a treasury-adjusted output and re-validates the
// protocol's exact settlement inequality
//
//	-dy*(rx*basis + dxf) <= ry*dxf
//
// clamping the provisional output down once if violated. A second failure
// is fatal.
func cpOutChecked(protocol string, rx, ry, dx, fee, basis int64) (int64, error) {
	out := cpOut(rx, ry, dx, fee, basis)
	if cpHolds(rx, ry, dx, out, fee, basis) {
		return out, nil
	}
	out--
	if out >= 0 && cpHolds(rx, ry, dx, out, fee, basis) {
		return out, nil
	}
	return 0, &dex.InvariantViolationError{
		Protocol: protocol,
		Reason:   fmt.Sprintf("output %d fails settlement inequality for dx=%d rx=%d ry=%d", out+1, dx, rx, ry),
	}
}

// cpHolds checks -dy*(rx*basis+dxf) <= ry*dxf with dy as the (positive)
// output amount.
func cpHolds(rx, ry, dx, dy, fee, basis int64) bool {
	dxf := new(big.Int).Mul(big.NewInt(dx), big.NewInt(basis-fee))
	lhs := new(big.Int).Mul(big.NewInt(rx), big.NewInt(basis))
	lhs.Add(lhs, dxf)
	lhs.Mul(lhs, big.NewInt(dy))
	rhs := new(big.Int).Mul(big.NewInt(ry), dxf)
	return lhs.Cmp(rhs) <= 0
}

// cpInChecked is the inverse direction with the symmetric inequality
// -dx*(ry*basis+dyf) <= rx*dyf, bumping the provisional input up once.
func cpInChecked(protocol string, rx, ry, dy, fee, basis int64) (int64, error) {
	in, err := cpIn(rx, ry, dy, fee, basis)
	if err != nil {
		return 0, err
	}
	if cpHolds(rx, ry, in, dy, fee, basis) {
		return in, nil
	}
	in++
	if cpHolds(rx, ry, in, dy, fee, basis) {
		return in, nil
	}
	return 0, &dex.InvariantViolationError{
		Protocol: protocol,
		Reason:   fmt.Sprintf("input %d fails settlement inequality for dy=%d rx=%d ry=%d", in-1, dy, rx, ry),
	}
}
