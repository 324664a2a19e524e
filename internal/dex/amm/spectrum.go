package amm

import (
	"bytes"
	"encoding/hex"
	"fmt"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

// Spectrum identity tokens are recognized by name convention: the asset
// name splits on '_' into three parts with the last part "nft" for the pool
// token and "lq" for the liquidity token. The datum declares the pair, the
// fee and a liquidity bound.

const (
	spectrumBatcherFee = 1_500_000
	spectrumDeposit    = 2_000_000
	spectrumLQFloor    = 1_000_000_000
)

type Spectrum struct{}

func (Spectrum) Name() string { return "Spectrum" }

func (Spectrum) PoolAddresses() []string {
	return []string{
		"addr1x8nz307k3sr60gu0e47cmajssy4fmld7u493a4xztjrll0aj764lvrxdayh2ux30fl0ktuh27csgmpevdu89jlxppvrswgxsta",
		"addr1x94ec3t25egvhqy2n265xfhq882jxhkknurfe9ny4rl9k6dj764lvrxdayh2ux30fl0ktuh27csgmpevdu89jlxppvrst84slu",
	}
}

func (Spectrum) OrderAddresses() []string {
	return []string{
		"addr1wynp362vmvr8jtc946d3a3utqgclfdl5y9d3kn849e359hsskr20n",
	}
}

// spectrumPoolDatum: pool NFT, pair, LP token, fee modifier over 1000, an
// optional operator address list, and the minimum liquidity bound.
type spectrumPoolDatum struct {
	PoolNFT string
	AssetA  string
	AssetB  string
	PoolLQ  string
	FeeMod  int64
	LQBound int64
}

func decodeSpectrumPoolDatum(raw []byte) (spectrumPoolDatum, error) {
	d, err := plutus.Unmarshal(raw)
	if err != nil {
		return spectrumPoolDatum{}, err
	}
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return spectrumPoolDatum{}, err
	}
	if len(c.Fields) < 7 {
		return spectrumPoolDatum{}, fmt.Errorf("pool datum has %d fields, want 7", len(c.Fields))
	}
	out := spectrumPoolDatum{}
	if out.PoolNFT, err = assetClassField(c, 0); err != nil {
		return spectrumPoolDatum{}, err
	}
	if out.AssetA, err = assetClassField(c, 1); err != nil {
		return spectrumPoolDatum{}, err
	}
	if out.AssetB, err = assetClassField(c, 2); err != nil {
		return spectrumPoolDatum{}, err
	}
	if out.PoolLQ, err = assetClassField(c, 3); err != nil {
		return spectrumPoolDatum{}, err
	}
	if out.FeeMod, err = c.IntField(4); err != nil {
		return spectrumPoolDatum{}, err
	}
	if out.LQBound, err = c.IntField(6); err != nil {
		return spectrumPoolDatum{}, err
	}
	return out, nil
}

// assetClassField decodes a two-field policy/name record at field i into a
// unit string.
func assetClassField(c plutus.Constr, i int) (string, error) {
	ac, err := c.ConstrField(i)
	if err != nil {
		return "", err
	}
	policy, err := ac.BytesField(0)
	if err != nil {
		return "", err
	}
	name, err := ac.BytesField(1)
	if err != nil {
		return "", err
	}
	return unitFromParts(policy, name), nil
}

// nameSuffix splits the decoded asset name on '_' and returns the third
// part, or "" when the name does not follow the convention.
func nameSuffix(unit string) string {
	if len(unit) <= 56 {
		return ""
	}
	name, err := hex.DecodeString(unit[56:])
	if err != nil {
		return ""
	}
	parts := bytes.Split(name, []byte("_"))
	if len(parts) != 3 {
		return ""
	}
	return string(bytes.ToLower(parts[2]))
}

func spectrumIdentity(unit string) bool { return nameSuffix(unit) == "nft" }

func spectrumLP(unit string) bool { return nameSuffix(unit) == "lq" }

func (s Spectrum) ParsePool(rec dex.Record) (*dex.PoolState, error) {
	datum, err := decodeSpectrumPoolDatum(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}

	cl := classifier{
		protocol:   s.Name(),
		poolMatch:  spectrumIdentity,
		lpMatch:    spectrumLP,
		lpRequired: true,
	}
	res, err := cl.classify(rec, []string{datum.AssetA, datum.AssetB})
	if err != nil {
		return nil, err
	}

	// Low-liquidity pools stay recognized but are not traded against.
	var liquidity int64
	if res.assets.Len() == 2 {
		liquidity = res.assets.QuantityAt(0)
	} else {
		liquidity = res.assets.QuantityAt(1)
	}
	active := 2*liquidity > spectrumLQFloor

	unitA, unitB := pairUnits(res.assets)
	fee := (1000 - datum.FeeMod) * 10
	return &dex.PoolState{
		Protocol: s.Name(),
		Address:  rec.Address,
		TxHash:   rec.TxHash,
		TxIndex:  rec.TxIndex,
		UnitA:    unitA,
		UnitB:    unitB,
		Reserves: res.assets,
		PoolNFT:  res.poolNFT,
		LPTokens: res.lp,
		Style:    dex.StyleConstantProduct,
		Fees:     dex.Fees{Basis: 10000, NumA: fee, NumB: fee},
		Active:   active,
	}, nil
}

func (s Spectrum) AmountOut(p *dex.PoolState, inUnit string, amount int64) (dex.Quote, error) {
	if p.OppositeUnit(inUnit) == "" {
		return dex.Quote{}, fmt.Errorf("%s: unit %s not in pool pair", s.Name(), inUnit)
	}
	rx, ry := reservesFor(p, inUnit)
	fee := p.Fees.ForInput(p, inUnit)
	out := cpOut(rx, ry, amount, fee, p.Fees.Basis)
	return dex.Quote{
		Amount:   asset.Single(p.OppositeUnit(inUnit), out),
		Slippage: cpImpact(rx, ry, amount, out, fee, p.Fees.Basis),
	}, nil
}

func (s Spectrum) AmountIn(p *dex.PoolState, outUnit string, amount int64) (dex.Quote, error) {
	inUnit := p.OppositeUnit(outUnit)
	if inUnit == "" {
		return dex.Quote{}, fmt.Errorf("%s: unit %s not in pool pair", s.Name(), outUnit)
	}
	rx, ry := reservesFor(p, inUnit)
	in, err := cpIn(rx, ry, amount, p.Fees.ForInput(p, inUnit), p.Fees.Basis)
	if err != nil {
		return dex.Quote{}, err
	}
	return dex.Quote{Amount: asset.Single(inUnit, in)}, nil
}

func (Spectrum) BatcherFee(int64, map[string]int64) (int64, int64) {
	return spectrumBatcherFee, spectrumDeposit
}
