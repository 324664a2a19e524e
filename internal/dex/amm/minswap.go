package amm

import (
	"fmt"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

// Minswap V2 pools declare their pricing reserves in the datum rather than
// implying them from the balance: the UTXO holds reserves plus the accrued
// fee-sharing carry, and the declared values are cross-checked against the
// balance during recognition. Fees are per-direction numerators over a
// 10000 basis, and quotes re-validate the on-chain settlement inequality.

const (
	msv2AuthenPolicy = "f5808c2c990d86da54bfc97d89cee6efa20cd8461616359478d96b4c"
	msv2FeeBasis     = 10000
	msv2BatcherFee   = 2_000_000
	msv2Deposit      = 2_000_000

	// Holding MIN discounts the batcher fee linearly down to 75%.
	msv2DiscountUnit = "29d222ce763455e3d7a09a665ce554f00ac89d2e99a1a83d267170c64d494e"
)

type MinswapV2 struct{}

func (MinswapV2) Name() string { return "MinswapV2" }

func (MinswapV2) PoolAddresses() []string {
	return []string{
		"addr1z84q0denmyep98ph3tmzwsmw0j7zau9ljmsqx6a4rvaau66j2c79gy9l76sdg0xwhd7r0c0kna0tycz4y5s6mlenh8pq777e2a",
	}
}

func (MinswapV2) OrderAddresses() []string {
	return []string{
		"addr1zxn9efv2f6w82hagxqtn62ju4m293tqvw0uhmdl64ch8uw6j2c79gy9l76sdg0xwhd7r0c0kna0tycz4y5s6mlenh8pq6s3z70",
	}
}

// msv2PoolDatum declares the pair, the authoritative reserves, the
// per-direction fee numerators and the optional fee-sharing numerator.
type msv2PoolDatum struct {
	AssetA     string
	AssetB     string
	TotalLP    int64
	ReserveA   int64
	ReserveB   int64
	BaseFeeA   int64
	BaseFeeB   int64
	FeeSharing int64
}

func decodeMSV2PoolDatum(raw []byte) (msv2PoolDatum, error) {
	d, err := plutus.Unmarshal(raw)
	if err != nil {
		return msv2PoolDatum{}, err
	}
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return msv2PoolDatum{}, err
	}
	if len(c.Fields) < 9 {
		return msv2PoolDatum{}, fmt.Errorf("pool datum has %d fields, want at least 9", len(c.Fields))
	}
	out := msv2PoolDatum{}
	// Field 0 is the batching stake credential, not needed here.
	if out.AssetA, err = assetClassField(c, 1); err != nil {
		return msv2PoolDatum{}, err
	}
	if out.AssetB, err = assetClassField(c, 2); err != nil {
		return msv2PoolDatum{}, err
	}
	if out.TotalLP, err = c.IntField(3); err != nil {
		return msv2PoolDatum{}, err
	}
	if out.ReserveA, err = c.IntField(4); err != nil {
		return msv2PoolDatum{}, err
	}
	if out.ReserveB, err = c.IntField(5); err != nil {
		return msv2PoolDatum{}, err
	}
	if out.BaseFeeA, err = c.IntField(6); err != nil {
		return msv2PoolDatum{}, err
	}
	if out.BaseFeeB, err = c.IntField(7); err != nil {
		return msv2PoolDatum{}, err
	}
	sharing, err := c.ConstrField(8)
	if err != nil {
		return msv2PoolDatum{}, err
	}
	if sharing.Alternative == 0 {
		if out.FeeSharing, err = sharing.IntField(0); err != nil {
			return msv2PoolDatum{}, err
		}
	}
	return out, nil
}

func (m MinswapV2) ParsePool(rec dex.Record) (*dex.PoolState, error) {
	datum, err := decodeMSV2PoolDatum(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: m.Name(), Err: err}
	}

	cl := classifier{
		protocol:  m.Name(),
		poolMatch: prefixMatch(msv2AuthenPolicy),
	}
	res, err := cl.classify(rec, []string{datum.AssetA, datum.AssetB})
	if err != nil {
		return nil, err
	}

	// Cross-check the declared reserves against the balance; the excess
	// is the fee-sharing carry.
	balanceA := res.assets.QuantityOf(datum.AssetA)
	balanceB := res.assets.QuantityOf(datum.AssetB)
	if balanceA < datum.ReserveA || balanceB < datum.ReserveB {
		return nil, &dex.NotAPoolError{
			Protocol: m.Name(),
			Reason: fmt.Sprintf("balance (%d, %d) below declared reserves (%d, %d)",
				balanceA, balanceB, datum.ReserveA, datum.ReserveB),
		}
	}

	reserves := res.assets.
		WithQuantity(datum.AssetA, datum.ReserveA).
		WithQuantity(datum.AssetB, datum.ReserveB)

	unitA, unitB := pairUnits(reserves)
	feeA, feeB := datum.BaseFeeA, datum.BaseFeeB
	if unitA != datum.AssetA {
		feeA, feeB = feeB, feeA
	}
	return &dex.PoolState{
		Protocol:  m.Name(),
		Address:   rec.Address,
		TxHash:    rec.TxHash,
		TxIndex:   rec.TxIndex,
		UnitA:     unitA,
		UnitB:     unitB,
		Reserves:  reserves,
		PoolNFT:   res.poolNFT,
		Style:     dex.StyleConstantProduct,
		Fees:      dex.Fees{Basis: msv2FeeBasis, NumA: feeA, NumB: feeB},
		TreasuryA: balanceA - datum.ReserveA,
		TreasuryB: balanceB - datum.ReserveB,
		FeeShare:  datum.FeeSharing,
		Active:    datum.TotalLP > 0,
	}, nil
}

func (m MinswapV2) AmountOut(p *dex.PoolState, inUnit string, amount int64) (dex.Quote, error) {
	outUnit := p.OppositeUnit(inUnit)
	if outUnit == "" {
		return dex.Quote{}, fmt.Errorf("%s: unit %s not in pool pair", m.Name(), inUnit)
	}
	rx, ry := reservesFor(p, inUnit)
	fee := p.Fees.ForInput(p, inUnit)
	out, err := cpOutChecked(m.Name(), rx, ry, amount, fee, p.Fees.Basis)
	if err != nil {
		return dex.Quote{}, err
	}
	return dex.Quote{
		Amount:   asset.Single(outUnit, out),
		Slippage: cpImpact(rx, ry, amount, out, fee, p.Fees.Basis),
	}, nil
}

func (m MinswapV2) AmountIn(p *dex.PoolState, outUnit string, amount int64) (dex.Quote, error) {
	inUnit := p.OppositeUnit(outUnit)
	if inUnit == "" {
		return dex.Quote{}, fmt.Errorf("%s: unit %s not in pool pair", m.Name(), outUnit)
	}
	rx, ry := reservesFor(p, inUnit)
	in, err := cpInChecked(m.Name(), rx, ry, amount, p.Fees.ForInput(p, inUnit), p.Fees.Basis)
	if err != nil {
		return dex.Quote{}, err
	}
	return dex.Quote{Amount: asset.Single(inUnit, in)}, nil
}

// BatcherFee discounts the base fee by up to a quarter for governance-token
// holders, one lovelace per two tenths held.
func (MinswapV2) BatcherFee(_ int64, wallet map[string]int64) (int64, int64) {
	discount := int64(0)
	if wallet != nil {
		discount = wallet[msv2DiscountUnit] / 200_000
		if discount > msv2BatcherFee/4 {
			discount = msv2BatcherFee / 4
		}
	}
	return msv2BatcherFee - discount, msv2Deposit
}
