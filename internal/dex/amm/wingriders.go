package amm

import (
	"fmt"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

// WingRiders runs four pool families: first-generation constant-product and
// stableswap pools, and the V2 generation whose datum carries a composite
// fee schedule plus three treasury carries per side. Each family mints a
// dex token (the pool policy with name "L") alongside the pool identity
// token under the bare policy.

const (
	wrV1CPPPolicy = "026a18d04a0c642759bb3d83b12e3344894e5c1c7b2aeb1a2113a570"
	wrV1SSPPolicy = "980e8c567670d34d4ec13a0c3b6de6199f260ae5dc9dc9e867bc5c93"
	wrV2Policy    = "6fdc63a1d71dc2c65502b79baae7fb543185702b12c3c5fb639ed737"
	wrDexNameHex  = "4c"

	wrV1CPPFee = 35
	wrV1SSPFee = 6
	wrSSPAmp   = 75

	wrMaintenance = 3_000_000
	wrOil         = 2_000_000
)

// wrBatcherFee is the tiered operator fee shared by every family: orders
// moving more ADA pay more.
func wrBatcherFee(adaInOut int64) (fee, deposit int64) {
	switch {
	case adaInOut > 0 && adaInOut <= 250_000_000:
		fee = 850_000
	case adaInOut > 0 && adaInOut <= 500_000_000:
		fee = 1_500_000
	default:
		fee = 2_000_000
	}
	if adaInOut > 0 {
		deposit = 4_000_000 - fee
	} else {
		deposit = 2_000_000
	}
	return fee, deposit
}

// --- first generation ---

// wrV1PoolDatum: the validator hash plus a nested record declaring the
// pair, the last swap time and the per-side request quantities that are
// held in the balance but not tradable.
type wrV1PoolDatum struct {
	LPHash    []byte
	AssetA    string
	AssetB    string
	LastSwap  int64
	QuantityA int64
	QuantityB int64
}

func decodeWRV1PoolDatum(raw []byte) (wrV1PoolDatum, error) {
	d, err := plutus.Unmarshal(raw)
	if err != nil {
		return wrV1PoolDatum{}, err
	}
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return wrV1PoolDatum{}, err
	}
	out := wrV1PoolDatum{}
	if out.LPHash, err = c.BytesField(0); err != nil {
		return wrV1PoolDatum{}, err
	}
	pool, err := c.ConstrField(1)
	if err != nil {
		return wrV1PoolDatum{}, err
	}
	pair, err := pool.ConstrField(0)
	if err != nil {
		return wrV1PoolDatum{}, err
	}
	if out.AssetA, err = assetClassField(pair, 0); err != nil {
		return wrV1PoolDatum{}, err
	}
	if out.AssetB, err = assetClassField(pair, 1); err != nil {
		return wrV1PoolDatum{}, err
	}
	if out.LastSwap, err = pool.IntField(1); err != nil {
		return wrV1PoolDatum{}, err
	}
	if out.QuantityA, err = pool.IntField(2); err != nil {
		return wrV1PoolDatum{}, err
	}
	if out.QuantityB, err = pool.IntField(3); err != nil {
		return wrV1PoolDatum{}, err
	}
	return out, nil
}

// wingRiders holds the per-family wiring shared between the V1 variants.
type wingRiders struct {
	name        string
	poolPolicy  string
	poolAddress string
	orderAddr   string
	fee         int64
	stable      bool
}

// WingRidersV1 is the first-generation constant-product family.
func WingRidersV1() *wingRiders {
	return &wingRiders{
		name:        "WingRiders",
		poolPolicy:  wrV1CPPPolicy,
		poolAddress: "addr1w8nvjzjeydcn4atcd93aac8allvrpjn7pjr2qsweukpnayghhwcpj",
		orderAddr:   "addr1wxr2a8htmzuhj39y2gq7ftkpxv98y2g67tg8zezthgq4jkg0a4ul4",
		fee:         wrV1CPPFee,
	}
}

// WingRidersV1Stable is the first-generation stableswap family.
func WingRidersV1Stable() *wingRiders {
	return &wingRiders{
		name:        "WingRidersSSP",
		poolPolicy:  wrV1SSPPolicy,
		poolAddress: "addr1wxvx34v0hlxzk9x0clv7as9hvhn7dlzwj5xfcf6g4n5uucg4tkd7w",
		orderAddr:   "addr1w8z7qwzszt2lqy93m3atg2axx22yq5k7yvs9rmrvuwlawts2wzadz",
		fee:         wrV1SSPFee,
		stable:      true,
	}
}

func (w *wingRiders) Name() string { return w.name }

func (w *wingRiders) PoolAddresses() []string { return []string{w.poolAddress} }

func (w *wingRiders) OrderAddresses() []string { return []string{w.orderAddr} }

func (w *wingRiders) ParsePool(rec dex.Record) (*dex.PoolState, error) {
	datum, err := decodeWRV1PoolDatum(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}

	cl := classifier{
		protocol:  w.name,
		dexMatch:  prefixMatch(w.poolPolicy + wrDexNameHex),
		poolMatch: prefixMatch(w.poolPolicy),
	}
	res, err := cl.classify(rec, []string{datum.AssetA, datum.AssetB})
	if err != nil {
		return nil, err
	}

	assets := res.assets
	if assets.Len() == 2 {
		assets = assets.AddQuantity(assets.UnitAt(0), -wrMaintenance)
	}
	assets = assets.AddQuantity(assets.UnitAt(0), -datum.QuantityA)
	assets = assets.AddQuantity(assets.UnitAt(1), -datum.QuantityB)

	unitA, unitB := pairUnits(assets)
	p := &dex.PoolState{
		Protocol: w.name,
		Address:  rec.Address,
		TxHash:   rec.TxHash,
		TxIndex:  rec.TxIndex,
		UnitA:    unitA,
		UnitB:    unitB,
		Reserves: assets,
		PoolNFT:  res.poolNFT,
		DexNFT:   res.dexNFT,
		Style:    dex.StyleConstantProduct,
		Fees:     dex.Fees{Basis: 10000, NumA: w.fee, NumB: w.fee},
		Active:   true,
	}
	if w.stable {
		p.Style = dex.StyleStableswap
		p.Ann = wrSSPAmp * stableCoins * stableCoins
		p.MultiplierA = 1
		p.MultiplierB = 1
	}
	return p, nil
}

func (w *wingRiders) AmountOut(p *dex.PoolState, inUnit string, amount int64) (dex.Quote, error) {
	return ammOut(p, inUnit, amount)
}

func (w *wingRiders) AmountIn(p *dex.PoolState, outUnit string, amount int64) (dex.Quote, error) {
	return ammIn(p, outUnit, amount)
}

func (w *wingRiders) BatcherFee(adaInOut int64, _ map[string]int64) (int64, int64) {
	return wrBatcherFee(adaInOut)
}

// --- second generation ---

// wrV2PoolDatum carries the composite fee schedule, three treasury carries
// per side, and a pool-specifics record distinguishing constant-product
// (empty) from stableswap (invariant plus per-side scales).
type wrV2PoolDatum struct {
	RequestValidator []byte
	AssetA           string
	AssetB           string
	SwapFee          int64
	ProtocolFee      int64
	ProjectFee       int64
	ReserveFee       int64
	FeeBasis         int64
	AgentFeeADA      int64
	LastInteraction  int64
	TreasuryA        int64
	TreasuryB        int64
	ProjectTreasuryA int64
	ProjectTreasuryB int64
	ReserveTreasuryA int64
	ReserveTreasuryB int64

	Stable     bool
	ParameterD int64
	ScaleA     int64
	ScaleB     int64
}

func decodeWRV2PoolDatum(raw []byte) (wrV2PoolDatum, error) {
	d, err := plutus.Unmarshal(raw)
	if err != nil {
		return wrV2PoolDatum{}, err
	}
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return wrV2PoolDatum{}, err
	}
	if len(c.Fields) != 21 {
		return wrV2PoolDatum{}, fmt.Errorf("pool datum has %d fields, want 21", len(c.Fields))
	}
	out := wrV2PoolDatum{}
	if out.RequestValidator, err = c.BytesField(0); err != nil {
		return wrV2PoolDatum{}, err
	}
	aSym, err := c.BytesField(1)
	if err != nil {
		return wrV2PoolDatum{}, err
	}
	aTok, err := c.BytesField(2)
	if err != nil {
		return wrV2PoolDatum{}, err
	}
	bSym, err := c.BytesField(3)
	if err != nil {
		return wrV2PoolDatum{}, err
	}
	bTok, err := c.BytesField(4)
	if err != nil {
		return wrV2PoolDatum{}, err
	}
	out.AssetA = unitFromParts(aSym, aTok)
	out.AssetB = unitFromParts(bSym, bTok)

	ints := []*int64{
		&out.SwapFee, &out.ProtocolFee, &out.ProjectFee, &out.ReserveFee,
		&out.FeeBasis, &out.AgentFeeADA, &out.LastInteraction,
		&out.TreasuryA, &out.TreasuryB,
		&out.ProjectTreasuryA, &out.ProjectTreasuryB,
		&out.ReserveTreasuryA, &out.ReserveTreasuryB,
	}
	for i, dst := range ints {
		if *dst, err = c.IntField(5 + i); err != nil {
			return wrV2PoolDatum{}, err
		}
	}

	// Fields 18/19 are beneficiary records, left opaque. Field 20 picks
	// the family.
	specifics, err := c.ConstrField(20)
	if err != nil {
		return wrV2PoolDatum{}, err
	}
	if len(specifics.Fields) == 3 {
		out.Stable = true
		if out.ParameterD, err = specifics.IntField(0); err != nil {
			return wrV2PoolDatum{}, err
		}
		if out.ScaleA, err = specifics.IntField(1); err != nil {
			return wrV2PoolDatum{}, err
		}
		if out.ScaleB, err = specifics.IntField(2); err != nil {
			return wrV2PoolDatum{}, err
		}
	} else if len(specifics.Fields) != 0 {
		return wrV2PoolDatum{}, fmt.Errorf("pool specifics has %d fields", len(specifics.Fields))
	}
	return out, nil
}

type wingRidersV2 struct {
	name        string
	poolAddress string
	orderAddr   string
	stable      bool
}

// WingRidersV2 is the second-generation constant-product family.
func WingRidersV2() *wingRidersV2 {
	return &wingRidersV2{
		name:        "WingRidersV2",
		poolAddress: "addr1wxhew7fmsup08qvhdnkg8ccra88pw7q5trrncja3dlszhqczc0qfe",
		orderAddr:   "addr1w8qnfkpe5e99m7umz4vxnmelxs5qw5dxytmfjk964rla98q605wte",
	}
}

// WingRidersV2Stable is the second-generation stableswap family.
func WingRidersV2Stable() *wingRidersV2 {
	return &wingRidersV2{
		name:        "WingRidersV2SSP",
		poolAddress: "addr1wx2x4c3ggv8jl3j24ze6ewgsacn7nvly0250jf06cfurfggd7zqtl",
		orderAddr:   "addr1wy3ksr4xwqd4dukp9tnemzheflfk75ym0vq8q2w8ecg5ssqmfdjaz",
		stable:      true,
	}
}

func (w *wingRidersV2) Name() string { return w.name }

func (w *wingRidersV2) PoolAddresses() []string { return []string{w.poolAddress} }

func (w *wingRidersV2) OrderAddresses() []string { return []string{w.orderAddr} }

func (w *wingRidersV2) ParsePool(rec dex.Record) (*dex.PoolState, error) {
	datum, err := decodeWRV2PoolDatum(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	if datum.Stable != w.stable {
		return nil, &dex.NotAPoolError{Protocol: w.name, Reason: "pool specifics do not match family"}
	}
	if datum.FeeBasis <= 0 {
		return nil, &dex.SchemaMismatchError{
			Protocol: w.name,
			Err:      fmt.Errorf("non-positive fee basis %d", datum.FeeBasis),
		}
	}

	cl := classifier{
		protocol:  w.name,
		dexMatch:  prefixMatch(wrV2Policy + wrDexNameHex),
		poolMatch: prefixMatch(wrV2Policy),
	}
	res, err := cl.classify(rec, []string{datum.AssetA, datum.AssetB})
	if err != nil {
		return nil, err
	}

	assets := res.assets
	if assets.Len() == 2 {
		assets = assets.AddQuantity(assets.UnitAt(0), -wrMaintenance)
	}
	treasuryA := datum.TreasuryA + datum.ProjectTreasuryA + datum.ReserveTreasuryA
	treasuryB := datum.TreasuryB + datum.ProjectTreasuryB + datum.ReserveTreasuryB
	assets = assets.AddQuantity(assets.UnitAt(0), -treasuryA)
	assets = assets.AddQuantity(assets.UnitAt(1), -treasuryB)

	fee := (datum.SwapFee + datum.ProtocolFee + datum.ProjectFee) * 10000 / datum.FeeBasis
	unitA, unitB := pairUnits(assets)
	p := &dex.PoolState{
		Protocol:  w.name,
		Address:   rec.Address,
		TxHash:    rec.TxHash,
		TxIndex:   rec.TxIndex,
		UnitA:     unitA,
		UnitB:     unitB,
		Reserves:  assets,
		PoolNFT:   res.poolNFT,
		DexNFT:    res.dexNFT,
		Style:     dex.StyleConstantProduct,
		Fees:      dex.Fees{Basis: 10000, NumA: fee, NumB: fee},
		TreasuryA: treasuryA,
		TreasuryB: treasuryB,
		FeeShare:  datum.ProtocolFee,
		Active:    true,
	}
	if w.stable {
		p.Style = dex.StyleStableswap
		p.Ann = wrSSPAmp * stableCoins * stableCoins
		p.MultiplierA = scaleOrOne(datum.ScaleA)
		p.MultiplierB = scaleOrOne(datum.ScaleB)
	}
	return p, nil
}

func scaleOrOne(v int64) int64 {
	if v > 0 {
		return v
	}
	return 1
}

func (w *wingRidersV2) AmountOut(p *dex.PoolState, inUnit string, amount int64) (dex.Quote, error) {
	return ammOut(p, inUnit, amount)
}

func (w *wingRidersV2) AmountIn(p *dex.PoolState, outUnit string, amount int64) (dex.Quote, error) {
	return ammIn(p, outUnit, amount)
}

func (w *wingRidersV2) BatcherFee(adaInOut int64, _ map[string]int64) (int64, int64) {
	return wrBatcherFee(adaInOut)
}

// ammOut quotes an output for either pricing style using the parameters
// carried on the pool state.
func ammOut(p *dex.PoolState, inUnit string, amount int64) (dex.Quote, error) {
	outUnit := p.OppositeUnit(inUnit)
	if outUnit == "" {
		return dex.Quote{}, fmt.Errorf("%s: unit %s not in pool pair", p.Protocol, inUnit)
	}
	if p.Style == dex.StyleStableswap {
		out, err := stableOut(p, inUnit, amount)
		if err != nil {
			return dex.Quote{}, err
		}
		return dex.Quote{Amount: asset.Single(outUnit, out)}, nil
	}
	rx, ry := reservesFor(p, inUnit)
	fee := p.Fees.ForInput(p, inUnit)
	out := cpOut(rx, ry, amount, fee, p.Fees.Basis)
	return dex.Quote{
		Amount:   asset.Single(outUnit, out),
		Slippage: cpImpact(rx, ry, amount, out, fee, p.Fees.Basis),
	}, nil
}

// ammIn is the inverse quote for either pricing style.
func ammIn(p *dex.PoolState, outUnit string, amount int64) (dex.Quote, error) {
	inUnit := p.OppositeUnit(outUnit)
	if inUnit == "" {
		return dex.Quote{}, fmt.Errorf("%s: unit %s not in pool pair", p.Protocol, outUnit)
	}
	if p.Style == dex.StyleStableswap {
		in, err := stableIn(p, outUnit, amount)
		if err != nil {
			return dex.Quote{}, err
		}
		return dex.Quote{Amount: asset.Single(inUnit, in)}, nil
	}
	rx, ry := reservesFor(p, inUnit)
	in, err := cpIn(rx, ry, amount, p.Fees.ForInput(p, inUnit), p.Fees.Basis)
	if err != nil {
		return dex.Quote{}, err
	}
	return dex.Quote{Amount: asset.Single(inUnit, in)}, nil
}
