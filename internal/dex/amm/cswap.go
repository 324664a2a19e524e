package amm

import (
	"encoding/hex"
	"fmt"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

// CSwap pools hold ADA pairs only. The pool identity token carries the
// single-byte name "c" (hex 63) under a per-pool policy; the datum declares
// the pair, the LP token and the pool fee.

const (
	cswapIdentityName = "63"
	cswapDefaultFee   = 85
	cswapPlatformFee  = 15
	cswapMaintenance  = 2_000_000
	cswapBatcherFee   = 690_000
	cswapDeposit      = 2_000_000
)

type CSwap struct{}

func (CSwap) Name() string { return "CSWAP" }

func (CSwap) PoolAddresses() []string {
	return []string{
		"addr1z8ke0c9p89rjfwmuh98jpt8ky74uy5mffjft3zlcld9h7ml3lmln3mwk0y3zsh3gs3dzqlwa9rjzrxawkwm4udw9axhs6fuu6e",
	}
}

// OrderAddresses lists the order script addresses for swap submissions.
func (CSwap) OrderAddresses() []string {
	return []string{
		"addr1z8d9k3aw6w24eyfjacy809h68dv2rwnpw0arrfau98jk6nhv88awp8sgxk65d6kry0mar3rd0dlkfljz7dv64eu39vfs38yd9p",
	}
}

// cswapPoolDatum is the eight-field pool record: LP supply, pool fee in
// basis points over 10000, the quote and base asset classes, and the LP
// token class.
type cswapPoolDatum struct {
	TotalLP  int64
	PoolFee  int64
	Quote    string
	Base     string
	LPPolicy []byte
	LPName   []byte
}

func decodeCSwapPoolDatum(raw []byte) (cswapPoolDatum, error) {
	d, err := plutus.Unmarshal(raw)
	if err != nil {
		return cswapPoolDatum{}, err
	}
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return cswapPoolDatum{}, err
	}
	if len(c.Fields) != 8 {
		return cswapPoolDatum{}, fmt.Errorf("pool datum has %d fields, want 8", len(c.Fields))
	}
	out := cswapPoolDatum{}
	if out.TotalLP, err = c.IntField(0); err != nil {
		return cswapPoolDatum{}, err
	}
	if out.PoolFee, err = c.IntField(1); err != nil {
		return cswapPoolDatum{}, err
	}
	quotePolicy, err := c.BytesField(2)
	if err != nil {
		return cswapPoolDatum{}, err
	}
	quoteName, err := c.BytesField(3)
	if err != nil {
		return cswapPoolDatum{}, err
	}
	out.Quote = unitFromParts(quotePolicy, quoteName)
	basePolicy, err := c.BytesField(4)
	if err != nil {
		return cswapPoolDatum{}, err
	}
	baseName, err := c.BytesField(5)
	if err != nil {
		return cswapPoolDatum{}, err
	}
	out.Base = unitFromParts(basePolicy, baseName)
	if out.LPPolicy, err = c.BytesField(6); err != nil {
		return cswapPoolDatum{}, err
	}
	if out.LPName, err = c.BytesField(7); err != nil {
		return cswapPoolDatum{}, err
	}
	return out, nil
}

// unitFromParts joins a policy/name byte pair into a unit, mapping the
// empty asset class to lovelace.
func unitFromParts(policy, name []byte) string {
	if len(policy) == 0 && len(name) == 0 {
		return asset.Lovelace
	}
	return hex.EncodeToString(policy) + hex.EncodeToString(name)
}

func cswapIdentity(unit string) bool {
	return len(unit) > 56 && unit[56:] == cswapIdentityName
}

func (cs CSwap) ParsePool(rec dex.Record) (*dex.PoolState, error) {
	datum, err := decodeCSwapPoolDatum(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
	}

	cl := classifier{protocol: cs.Name(), poolMatch: cswapIdentity}
	res, err := cl.classify(rec, []string{datum.Quote, datum.Base})
	if err != nil {
		return nil, err
	}

	if !res.assets.Contains(asset.Lovelace) {
		return nil, &dex.NotAPoolError{Protocol: cs.Name(), Reason: "pool pair must contain ADA"}
	}
	assets := res.assets
	if assets.Len() == 2 {
		assets = assets.AddQuantity(asset.Lovelace, -cswapMaintenance)
	}

	unitA, unitB := pairUnits(assets)
	fee := datum.PoolFee + cswapPlatformFee
	p := &dex.PoolState{
		Protocol: cs.Name(),
		Address:  rec.Address,
		TxHash:   rec.TxHash,
		TxIndex:  rec.TxIndex,
		UnitA:    unitA,
		UnitB:    unitB,
		Reserves: assets,
		PoolNFT:  res.poolNFT,
		Style:    dex.StyleConstantProduct,
		Fees:     dex.Fees{Basis: 10000, NumA: fee, NumB: fee},
		Active:   true,
	}
	return p, nil
}

func (cs CSwap) AmountOut(p *dex.PoolState, inUnit string, amount int64) (dex.Quote, error) {
	if err := cswapCheckPair(p, inUnit); err != nil {
		return dex.Quote{}, err
	}
	rx, ry := reservesFor(p, inUnit)
	fee := p.Fees.ForInput(p, inUnit)
	out := cpOut(rx, ry, amount, fee, p.Fees.Basis)
	return dex.Quote{
		Amount:   asset.Single(p.OppositeUnit(inUnit), out),
		Slippage: cpImpact(rx, ry, amount, out, fee, p.Fees.Basis),
	}, nil
}

func (cs CSwap) AmountIn(p *dex.PoolState, outUnit string, amount int64) (dex.Quote, error) {
	if err := cswapCheckPair(p, outUnit); err != nil {
		return dex.Quote{}, err
	}
	inUnit := p.OppositeUnit(outUnit)
	rx, ry := reservesFor(p, inUnit)
	in, err := cpIn(rx, ry, amount, p.Fees.ForInput(p, inUnit), p.Fees.Basis)
	if err != nil {
		return dex.Quote{}, err
	}
	return dex.Quote{Amount: asset.Single(inUnit, in)}, nil
}

func (CSwap) BatcherFee(int64, map[string]int64) (int64, int64) {
	return cswapBatcherFee, cswapDeposit
}

func cswapCheckPair(p *dex.PoolState, unit string) error {
	if p.UnitA != asset.Lovelace && p.UnitB != asset.Lovelace {
		return fmt.Errorf("%s: pool %s-%s is not an ADA pair", p.Protocol, p.UnitA, p.UnitB)
	}
	if p.OppositeUnit(unit) == "" {
		return fmt.Errorf("%s: unit %s not in pool pair %s-%s", p.Protocol, unit, p.UnitA, p.UnitB)
	}
	return nil
}

// reservesFor orients the pool's reserves with the sold unit first.
func reservesFor(p *dex.PoolState, inUnit string) (rx, ry int64) {
	if inUnit == p.UnitB {
		return p.ReserveB(), p.ReserveA()
	}
	return p.ReserveA(), p.ReserveB()
}
