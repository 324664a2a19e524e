package amm

import (
	"fmt"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

// Splash stableswap pools. The datum carries the amplification value
// already scaled (an2n), per-asset precision multipliers, and the
// protocol-fee balances held in the UTXO but excluded from pricing.

const (
	splashPoolPolicy = "0be55d262b29f564998ff81efe21bdc0022621c12f15af08d0f2ddb1"
	splashLPPolicy   = "e4214b7cce62ac6fbba385d164df48e157eae5863521b4b67ca71d86"
	splashDexPolicy  = "13aa2accf2e1561723aa26871e071fdf32c867cff7e7d50ad470d62f"

	splashDefaultFee = 30
	splashBatcherFee = 2_000_000
	splashDeposit    = 2_000_000

	// Holding the protocol governance token discounts the batcher fee
	// linearly, floored at 1.5 ADA.
	splashDiscountUnit = "29d222ce763455e3d7a09a665ce554f00ac89d2e99a1a83d267170c64d494e"
	splashMaxDiscount  = 500_000
)

type Splash struct{}

func (Splash) Name() string { return "Splash" }

func (Splash) PoolAddresses() []string {
	return []string{"addr1w9wnm7vle7al9q4aw63aw63wxz7aytnpc4h3gcjy0yufxwc3mr3e5"}
}

func (Splash) OrderAddresses() []string {
	return []string{"addr1w9wnm7vle7al9q4aw63aw63wxz7aytnpc4h3gcjy0yufxwc3mr3e5"}
}

// splashPoolDatum is the fifteen-field stableswap pool record.
type splashPoolDatum struct {
	PoolNFT      string
	An2n         int64
	AssetX       string
	AssetY       string
	MultiplierX  int64
	MultiplierY  int64
	LPToken      string
	LPFeeNum     int64
	ProtocolFeeX int64
	ProtocolFeeY int64
}

func decodeSplashPoolDatum(raw []byte) (splashPoolDatum, error) {
	d, err := plutus.Unmarshal(raw)
	if err != nil {
		return splashPoolDatum{}, err
	}
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return splashPoolDatum{}, err
	}
	if len(c.Fields) != 15 {
		return splashPoolDatum{}, fmt.Errorf("pool datum has %d fields, want 15", len(c.Fields))
	}
	out := splashPoolDatum{}
	if out.PoolNFT, err = assetClassField(c, 0); err != nil {
		return splashPoolDatum{}, err
	}
	if out.An2n, err = c.IntField(1); err != nil {
		return splashPoolDatum{}, err
	}
	if out.AssetX, err = assetClassField(c, 2); err != nil {
		return splashPoolDatum{}, err
	}
	if out.AssetY, err = assetClassField(c, 3); err != nil {
		return splashPoolDatum{}, err
	}
	if out.MultiplierX, err = c.IntField(4); err != nil {
		return splashPoolDatum{}, err
	}
	if out.MultiplierY, err = c.IntField(5); err != nil {
		return splashPoolDatum{}, err
	}
	if out.LPToken, err = assetClassField(c, 6); err != nil {
		return splashPoolDatum{}, err
	}
	if _, err = plutus.Bool(c.Fields[7]); err != nil {
		return splashPoolDatum{}, err
	}
	if _, err = plutus.Bool(c.Fields[8]); err != nil {
		return splashPoolDatum{}, err
	}
	if out.LPFeeNum, err = c.IntField(9); err != nil {
		return splashPoolDatum{}, err
	}
	if out.ProtocolFeeX, err = c.IntField(13); err != nil {
		return splashPoolDatum{}, err
	}
	if out.ProtocolFeeY, err = c.IntField(14); err != nil {
		return splashPoolDatum{}, err
	}
	return out, nil
}

func (s Splash) ParsePool(rec dex.Record) (*dex.PoolState, error) {
	datum, err := decodeSplashPoolDatum(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}

	cl := classifier{
		protocol:  s.Name(),
		dexMatch:  prefixMatch(splashDexPolicy),
		poolMatch: prefixMatch(splashPoolPolicy),
		lpMatch:   prefixMatch(splashLPPolicy),
	}
	res, err := cl.classify(rec, []string{datum.AssetX, datum.AssetY})
	if err != nil {
		return nil, err
	}

	// The accrued protocol fees live in the pool balance but are not
	// tradable reserves.
	assets := res.assets
	if datum.ProtocolFeeX > 0 {
		assets = assets.AddQuantity(datum.AssetX, -datum.ProtocolFeeX)
	}
	if datum.ProtocolFeeY > 0 {
		assets = assets.AddQuantity(datum.AssetY, -datum.ProtocolFeeY)
	}
	if assets.HasNegative() {
		return nil, &dex.MalformedAssetError{
			Protocol: s.Name(),
			Reason:   "protocol fee carry exceeds pool balance",
		}
	}

	unitA, unitB := pairUnits(assets)
	return &dex.PoolState{
		Protocol:    s.Name(),
		Address:     rec.Address,
		TxHash:      rec.TxHash,
		TxIndex:     rec.TxIndex,
		UnitA:       unitA,
		UnitB:       unitB,
		Reserves:    assets,
		PoolNFT:     res.poolNFT,
		LPTokens:    res.lp,
		DexNFT:      res.dexNFT,
		Style:       dex.StyleStableswap,
		Fees:        dex.Fees{Basis: 10000, NumA: splashDefaultFee, NumB: splashDefaultFee},
		Ann:         datum.An2n,
		MultiplierA: multiplierFor(unitA, datum),
		MultiplierB: multiplierFor(unitB, datum),
		TreasuryA:   datum.ProtocolFeeX,
		TreasuryB:   datum.ProtocolFeeY,
		Active:      true,
	}, nil
}

// multiplierFor maps a pair unit back to its datum-declared multiplier,
// defaulting to 1. The normalized pair order can differ from the datum's
// X/Y order when the native asset moves last.
func multiplierFor(unit string, datum splashPoolDatum) int64 {
	switch unit {
	case datum.AssetX:
		if datum.MultiplierX > 0 {
			return datum.MultiplierX
		}
	case datum.AssetY:
		if datum.MultiplierY > 0 {
			return datum.MultiplierY
		}
	}
	return 1
}

func (s Splash) AmountOut(p *dex.PoolState, inUnit string, amount int64) (dex.Quote, error) {
	if p.OppositeUnit(inUnit) == "" {
		return dex.Quote{}, fmt.Errorf("%s: unit %s not in pool pair", s.Name(), inUnit)
	}
	out, err := stableOut(p, inUnit, amount)
	if err != nil {
		return dex.Quote{}, err
	}
	return dex.Quote{Amount: asset.Single(p.OppositeUnit(inUnit), out)}, nil
}

func (s Splash) AmountIn(p *dex.PoolState, outUnit string, amount int64) (dex.Quote, error) {
	if p.OppositeUnit(outUnit) == "" {
		return dex.Quote{}, fmt.Errorf("%s: unit %s not in pool pair", s.Name(), outUnit)
	}
	in, err := stableIn(p, outUnit, amount)
	if err != nil {
		return dex.Quote{}, err
	}
	return dex.Quote{Amount: asset.Single(p.OppositeUnit(outUnit), in)}, nil
}

// BatcherFee discounts the base fee by the caller's governance-token
// holding, one lovelace per tenth of a token, capped at 0.5 ADA.
func (Splash) BatcherFee(_ int64, wallet map[string]int64) (int64, int64) {
	discount := int64(0)
	if wallet != nil {
		discount = wallet[splashDiscountUnit] / 100_000
		if discount > splashMaxDiscount {
			discount = splashMaxDiscount
		}
	}
	return splashBatcherFee - discount, splashDeposit
}
