package amm

import (
	"math/big"

	"DexLedger/internal/dex"
)

// Two-asset stableswap invariant math, integer-only. Ann is the scaled
// amplification value; protocols differ in how the raw amplification
// parameter is scaled (amp*N^N for the original form, amp*N for the common
// variant) and supply the result here.

const (
	stableCoins    = 2
	stableMaxIters = 256
)

// stableD solves Ann*(x+y) + D = Ann*D + D^3/(4*x*y) for D by Newton
// iteration starting from D0 = x+y, stopping once successive values differ
// by at most one unit.
func stableD(protocol string, x, y, ann int64) (int64, error) {
	if x == 0 || y == 0 {
		return 0, nil
	}
	bx := big.NewInt(x)
	by := big.NewInt(y)
	bann := big.NewInt(ann)
	s := new(big.Int).Add(bx, by)
	prod := new(big.Int).Mul(bx, by)
	prodN := new(big.Int).Mul(prod, big.NewInt(stableCoins*stableCoins))

	one := big.NewInt(1)
	d := new(big.Int).Set(s)
	for i := 0; i < stableMaxIters; i++ {
		// d_p = d^3 / (N^N * x * y)
		dp := new(big.Int).Mul(d, d)
		dp.Mul(dp, d)
		dp.Quo(dp, prodN)

		// d' = d*(ann*s + N*d_p) / ((ann-1)*d + (N+1)*d_p)
		num := new(big.Int).Mul(bann, s)
		num.Add(num, new(big.Int).Mul(dp, big.NewInt(stableCoins)))
		num.Mul(num, d)
		den := new(big.Int).Mul(new(big.Int).Sub(bann, one), d)
		den.Add(den, new(big.Int).Mul(dp, big.NewInt(stableCoins+1)))

		next := new(big.Int).Quo(num, den)
		diff := new(big.Int).Sub(next, d)
		d = next
		if diff.CmpAbs(one) <= 0 {
			return d.Int64(), nil
		}
	}
	return 0, &dex.ConvergenceError{Protocol: protocol, Iterations: stableMaxIters}
}

// stableY solves the single-unknown quadratic for the counter-reserve given
// the invariant d and the post-trade in-side reserve:
//
//	c = d^3 / (N^2 * ann * inReserve)
//	b = inReserve + d/ann
//	y' = (y^2 + c) / (2y + b - d)
//
// iterated from y0 = d until stable within one unit.
func stableY(protocol string, inReserve, d, ann int64) (int64, error) {
	if inReserve <= 0 || d == 0 {
		return 0, nil
	}
	bd := big.NewInt(d)
	bann := big.NewInt(ann)

	c := new(big.Int).Mul(bd, bd)
	c.Mul(c, bd)
	c.Quo(c, new(big.Int).Mul(big.NewInt(stableCoins*stableCoins), new(big.Int).Mul(bann, big.NewInt(inReserve))))

	b := new(big.Int).Quo(bd, bann)
	b.Add(b, big.NewInt(inReserve))

	one := big.NewInt(1)
	out := new(big.Int).Set(bd)
	for i := 0; i < stableMaxIters; i++ {
		num := new(big.Int).Mul(out, out)
		num.Add(num, c)
		den := new(big.Int).Lsh(out, 1)
		den.Add(den, b)
		den.Sub(den, bd)

		next := new(big.Int).Quo(num, den)
		diff := new(big.Int).Sub(next, out)
		out = next
		if diff.CmpAbs(one) <= 0 {
			return out.Int64(), nil
		}
	}
	return 0, &dex.ConvergenceError{Protocol: protocol, Iterations: stableMaxIters}
}

// stableOut prices a sale of dx of inUnit against a stableswap pool. The
// trading fee is taken from the input before the invariant math; per-asset
// multipliers normalize implied decimal precision and are inverted on the
// way out.
func stableOut(p *dex.PoolState, inUnit string, dx int64) (int64, error) {
	fee := p.Fees.ForInput(p, inUnit)
	dxNet := dx * (p.Fees.Basis - fee) / p.Fees.Basis

	ra := p.ReserveA() * p.MultiplierA
	rb := p.ReserveB() * p.MultiplierB

	var inReserve, outReserve, outMult int64
	if inUnit == p.UnitA {
		inReserve = ra + dxNet*p.MultiplierA
		outReserve = rb
		outMult = p.MultiplierB
	} else {
		inReserve = rb + dxNet*p.MultiplierB
		outReserve = ra
		outMult = p.MultiplierA
	}

	d, err := stableD(p.Protocol, ra, rb, p.Ann)
	if err != nil {
		return 0, err
	}
	y, err := stableY(p.Protocol, inReserve, d, p.Ann)
	if err != nil {
		return 0, err
	}
	out := (outReserve - y) / outMult
	if out < 0 {
		out = 0
	}
	return out, nil
}

// stableIn computes the input needed to receive dy of outUnit, grossing the
// trading fee back up with ceiling rounding so the input is never short.
func stableIn(p *dex.PoolState, outUnit string, dy int64) (int64, error) {
	ra := p.ReserveA() * p.MultiplierA
	rb := p.ReserveB() * p.MultiplierB

	var outReserve, inReserve, inMult int64
	if outUnit == p.UnitA {
		outReserve = ra - dy*p.MultiplierA
		inReserve = rb
		inMult = p.MultiplierB
	} else {
		outReserve = rb - dy*p.MultiplierB
		inReserve = ra
		inMult = p.MultiplierA
	}

	d, err := stableD(p.Protocol, ra, rb, p.Ann)
	if err != nil {
		return 0, err
	}
	y, err := stableY(p.Protocol, outReserve, d, p.Ann)
	if err != nil {
		return 0, err
	}
	inNet := (y - inReserve + inMult - 1) / inMult
	if inNet < 0 {
		inNet = 0
	}

	inUnit := p.OppositeUnit(outUnit)
	fee := p.Fees.ForInput(p, inUnit)
	num := new(big.Int).Mul(big.NewInt(inNet), big.NewInt(p.Fees.Basis))
	return ceilDiv(num, big.NewInt(p.Fees.Basis-fee)), nil
}
