package amm

import (
	"encoding/hex"
	"errors"
	"fmt"
	"math/big"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

// ErrOrderUnsupported marks protocols whose order-datum layout is not
// modeled; callers route those swaps elsewhere.
var ErrOrderUnsupported = errors.New("amm: order construction not supported for this protocol")

// assetClassData encodes a unit as the two-field policy/name record, with
// lovelace as the empty class.
func assetClassData(unit string) (plutus.Constr, error) {
	if unit == asset.Lovelace {
		return plutus.NewConstr(0, plutus.Bytes{}, plutus.Bytes{}), nil
	}
	policy, err := hex.DecodeString(asset.PolicyID(unit))
	if err != nil {
		return plutus.Constr{}, fmt.Errorf("amm: bad unit %s: %w", unit, err)
	}
	name, err := hex.DecodeString(asset.Name(unit))
	if err != nil {
		return plutus.Constr{}, fmt.Errorf("amm: bad unit %s: %w", unit, err)
	}
	return plutus.NewConstr(0, plutus.Bytes(policy), plutus.Bytes(name)), nil
}

func unitParts(unit string) (policy, name plutus.Bytes, err error) {
	if unit == asset.Lovelace {
		return plutus.Bytes{}, plutus.Bytes{}, nil
	}
	p, err := hex.DecodeString(asset.PolicyID(unit))
	if err != nil {
		return nil, nil, fmt.Errorf("amm: bad unit %s: %w", unit, err)
	}
	n, err := hex.DecodeString(asset.Name(unit))
	if err != nil {
		return nil, nil, fmt.Errorf("amm: bad unit %s: %w", unit, err)
	}
	return p, n, nil
}

// SwapOrder builds the CSwap order record: target and input asset triples,
// the swap action tag, default slippage and the platform fee.
func (cs CSwap) SwapOrder(p *dex.PoolState, owner plutus.Address, in, out asset.Bag, _ int64) (plutus.Data, error) {
	if !in.Contains(asset.Lovelace) && !out.Contains(asset.Lovelace) {
		return nil, fmt.Errorf("%s: one side of the swap must be ADA", cs.Name())
	}

	targets := plutus.List{}
	for _, unit := range out.Units() {
		policy, name, err := unitParts(unit)
		if err != nil {
			return nil, err
		}
		targets = append(targets, plutus.List{policy, name, plutus.NewInt(out.QuantityOf(unit))})
	}
	if !out.Contains(asset.Lovelace) {
		targets = append(targets, plutus.List{plutus.Bytes{}, plutus.Bytes{}, plutus.NewInt(cswapDeposit)})
	}

	inputs := plutus.List{}
	for _, unit := range in.Units() {
		policy, name, err := unitParts(unit)
		if err != nil {
			return nil, err
		}
		inputs = append(inputs, plutus.List{policy, name, plutus.NewInt(0)})
	}

	return plutus.NewConstr(0,
		plutus.EncodeAddress(owner),
		targets,
		inputs,
		plutus.NewConstr(0),
		plutus.NewInt(50),
		plutus.NewInt(cswapPlatformFee),
	), nil
}

// SwapOrder builds the Spectrum order record. The executor-fee ratio is
// the batcher fee per output unit as an exact rational.
func (s Spectrum) SwapOrder(p *dex.PoolState, owner plutus.Address, in, out asset.Bag, _ int64) (plutus.Data, error) {
	if p.PoolNFT.Len() == 0 {
		return nil, fmt.Errorf("%s: pool state has no identity token", s.Name())
	}
	inClass, err := assetClassData(in.Unit())
	if err != nil {
		return nil, err
	}
	outClass, err := assetClassData(out.Unit())
	if err != nil {
		return nil, err
	}
	poolClass, err := assetClassData(p.PoolNFT.Unit())
	if err != nil {
		return nil, err
	}

	fee := p.Fees.ForInput(p, in.Unit())
	feeMod := (p.Fees.Basis - fee) / 10

	ratio := new(big.Rat).SetFrac64(spectrumBatcherFee, out.Quantity())
	var stake plutus.Data
	if owner.HasStake() {
		stake = plutus.NewConstr(0, plutus.Bytes(owner.StakeHash))
	} else {
		stake = plutus.NewConstr(1)
	}

	return plutus.NewConstr(0,
		inClass,
		outClass,
		poolClass,
		plutus.NewInt(feeMod),
		plutus.Int{Int: ratio.Num()},
		plutus.Int{Int: ratio.Denom()},
		plutus.Bytes(owner.PaymentHash),
		stake,
		plutus.NewInt(in.Quantity()),
		plutus.NewInt(out.Quantity()),
	), nil
}

// SwapOrder is not modeled for Splash.
func (s Splash) SwapOrder(*dex.PoolState, plutus.Address, asset.Bag, asset.Bag, int64) (plutus.Data, error) {
	return nil, fmt.Errorf("%s: %w", s.Name(), ErrOrderUnsupported)
}

// SwapOrder is not modeled for Minswap V2.
func (m MinswapV2) SwapOrder(*dex.PoolState, plutus.Address, asset.Bag, asset.Bag, int64) (plutus.Data, error) {
	return nil, fmt.Errorf("%s: %w", m.Name(), ErrOrderUnsupported)
}

// wrOrderDirection reports the trade direction against the pool's
// canonical pair order.
func wrOrderDirection(p *dex.PoolState, inUnit string) uint64 {
	if inUnit == p.UnitB {
		return 1
	}
	return 0
}

// SwapOrder builds the first-generation WingRiders order record: a config
// holding the owner, expiry and pair, and the swap detail.
func (w *wingRiders) SwapOrder(p *dex.PoolState, owner plutus.Address, in, out asset.Bag, deadline int64) (plutus.Data, error) {
	aClass, err := assetClassData(p.UnitA)
	if err != nil {
		return nil, err
	}
	bClass, err := assetClassData(p.UnitB)
	if err != nil {
		return nil, err
	}
	config := plutus.NewConstr(0,
		plutus.EncodeAddress(owner),
		plutus.Bytes(owner.PaymentHash),
		plutus.NewInt(deadline),
		plutus.NewConstr(0, aClass, bClass),
	)
	detail := plutus.NewConstr(0,
		plutus.NewConstr(wrOrderDirection(p, in.Unit())),
		plutus.NewInt(out.Quantity()),
	)
	return plutus.NewConstr(0, config, detail), nil
}

// SwapOrder builds the second-generation WingRiders order record with the
// oil deposit, compensation datum slot and per-side scales.
func (w *wingRidersV2) SwapOrder(p *dex.PoolState, owner plutus.Address, in, out asset.Bag, deadline int64) (plutus.Data, error) {
	aPolicy, aName, err := unitParts(p.UnitA)
	if err != nil {
		return nil, err
	}
	bPolicy, bName, err := unitParts(p.UnitB)
	if err != nil {
		return nil, err
	}
	scaleA, scaleB := int64(1), int64(1)
	if p.Style == dex.StyleStableswap {
		scaleA, scaleB = p.MultiplierA, p.MultiplierB
	}
	action := plutus.NewConstr(0,
		plutus.NewConstr(wrOrderDirection(p, in.Unit())),
		plutus.NewInt(out.Quantity()),
	)
	addr := plutus.EncodeAddress(owner)
	return plutus.NewConstr(0,
		plutus.NewInt(wrOil),
		addr,
		addr,
		plutus.Bytes{},
		plutus.NewConstr(0),
		plutus.NewInt(deadline),
		aPolicy, aName,
		bPolicy, bName,
		action,
		plutus.NewInt(scaleA),
		plutus.NewInt(scaleB),
	), nil
}
