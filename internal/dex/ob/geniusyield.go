package ob

import (
	"encoding/hex"
	"math/big"
	"strings"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

const (
	gyPolicyV1  = "22f6999d4effc0ade05f6e1a70b702c65d6b3cdf0e301e4a8267f585"
	gyPolicyV11 = "642c1f7bf79ca48c0f97239fcb2f3b42b92f2548184ab394e1e1e503"

	gyFee        = 30
	gyFeeBasis   = 10000
	gyBatcherFee = 1_000_000
)

// GeniusYield recognizes and quotes limit orders. Two validator
// generations share the address set; they differ only in which way
// intermediate amounts round, keyed off the order NFT policy.
type GeniusYield struct{}

func (GeniusYield) Name() string { return "GeniusYield" }

func (GeniusYield) OrderAddresses() []string {
	return []string{
		"addr1wx5d0l6u7nq3wfcz3qmjlxkgu889kav2u9d8s5wyzes6frqktgru2",
		"addr1w8kllanr6dlut7t480zzytsd52l7pz4y3kcgxlfvx2ddavcshakwd",
	}
}

// gyOrder is the on-chain order layout: owner credentials, the offered
// and asked asset classes, the remaining offered amount, a rational
// limit price and accrued fill bookkeeping.
type gyOrder struct {
	OwnerKey        []byte
	Owner           plutus.Address
	OfferedUnit     string
	OfferedOriginal int64
	OfferedAmount   int64
	AskedUnit       string
	PriceNum        *big.Int
	PriceDenom      *big.Int
	NFTName         []byte
	StartTime       int64
	EndTime         int64
	PartialFills    int64
	MakerFee        int64
	TakerFee        int64
	FeeLovelace     int64
	FeeOffered      int64
	FeeAsked        int64
	Payment         int64
}

func decodeGYOrder(d plutus.Data) (*gyOrder, error) {
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return nil, err
	}
	var o gyOrder
	if o.OwnerKey, err = c.BytesField(0); err != nil {
		return nil, err
	}
	ownerData, err := c.Field(1)
	if err != nil {
		return nil, err
	}
	if o.Owner, err = plutus.DecodeAddress(ownerData); err != nil {
		return nil, err
	}
	if o.OfferedUnit, err = orderAssetClass(c, 2); err != nil {
		return nil, err
	}
	if o.OfferedOriginal, err = c.IntField(3); err != nil {
		return nil, err
	}
	if o.OfferedAmount, err = c.IntField(4); err != nil {
		return nil, err
	}
	if o.AskedUnit, err = orderAssetClass(c, 5); err != nil {
		return nil, err
	}
	price, err := c.ConstrField(6)
	if err != nil {
		return nil, err
	}
	if o.PriceNum, err = bigIntField(price, 0); err != nil {
		return nil, err
	}
	if o.PriceDenom, err = bigIntField(price, 1); err != nil {
		return nil, err
	}
	if o.NFTName, err = c.BytesField(7); err != nil {
		return nil, err
	}
	if o.StartTime, err = optionalTimestamp(c, 8); err != nil {
		return nil, err
	}
	if o.EndTime, err = optionalTimestamp(c, 9); err != nil {
		return nil, err
	}
	if o.PartialFills, err = c.IntField(10); err != nil {
		return nil, err
	}
	if o.MakerFee, err = c.IntField(11); err != nil {
		return nil, err
	}
	if o.TakerFee, err = c.IntField(12); err != nil {
		return nil, err
	}
	contained, err := c.ConstrField(13)
	if err != nil {
		return nil, err
	}
	if o.FeeLovelace, err = contained.IntField(0); err != nil {
		return nil, err
	}
	if o.FeeOffered, err = contained.IntField(1); err != nil {
		return nil, err
	}
	if o.FeeAsked, err = contained.IntField(2); err != nil {
		return nil, err
	}
	if o.Payment, err = c.IntField(14); err != nil {
		return nil, err
	}
	return &o, nil
}

// orderAssetClass reads a C0[policy, name] pair at field i into a unit.
func orderAssetClass(c plutus.Constr, i int) (string, error) {
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
	if len(policy) == 0 {
		return asset.Lovelace, nil
	}
	return hex.EncodeToString(policy) + hex.EncodeToString(name), nil
}

// optionalTimestamp reads a C0{ms} / C1 option at field i, returning 0
// when absent.
func optionalTimestamp(c plutus.Constr, i int) (int64, error) {
	f, err := c.Field(i)
	if err != nil {
		return 0, err
	}
	opt, err := plutus.AsConstr(f)
	if err != nil {
		return 0, err
	}
	if opt.Alternative != 0 {
		return 0, nil
	}
	return opt.IntField(0)
}

func (g GeniusYield) ParseOrder(rec dex.Record, now int64) (*dex.OrderState, error) {
	datum, err := plutus.Unmarshal(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: g.Name(), Err: err}
	}
	ord, err := decodeGYOrder(datum)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: g.Name(), Err: err}
	}

	nft, err := extractOrderNFT(g.Name(), rec, gyPolicyV1, gyPolicyV11)
	if err != nil {
		return nil, err
	}

	active := true
	if ord.StartTime > 0 && ord.StartTime/1000 > now {
		active = false
	}
	if ord.EndTime > 0 && ord.EndTime/1000 < now {
		active = false
	}

	kind := dex.KindSwap
	if ord.OfferedOriginal == ord.OfferedAmount {
		kind = dex.KindDeposit
	}

	return &dex.OrderState{
		Protocol:    g.Name(),
		Address:     rec.Address,
		TxHash:      rec.TxHash,
		TxIndex:     rec.TxIndex,
		Kind:        kind,
		Owner:       ord.Owner,
		InUnit:      ord.OfferedUnit,
		InAmount:    ord.OfferedAmount,
		OutUnit:     ord.AskedUnit,
		Price:       new(big.Rat).SetFrac(ord.PriceNum, ord.PriceDenom),
		StartTime:   ord.StartTime,
		EndTime:     ord.EndTime,
		BatcherFee:  gyBatcherFee,
		IdentityNFT: nft,
		Active:      active,
		Datum:       datum,
	}, nil
}

// extractOrderNFT pulls the order-identity NFT out of the record's
// balance by policy prefix, or re-validates a pre-populated one.
func extractOrderNFT(protocol string, rec dex.Record, policies ...string) (asset.Bag, error) {
	match := func(unit string) bool {
		for _, p := range policies {
			if strings.HasPrefix(unit, p) {
				return true
			}
		}
		return false
	}
	if rec.DexNFT.Len() > 0 {
		for _, unit := range rec.DexNFT.Units() {
			if match(unit) {
				return rec.DexNFT, nil
			}
		}
		return asset.Bag{}, &dex.NotAPoolError{Protocol: protocol, Reason: "invalid order identity token"}
	}
	for _, unit := range rec.Assets.Units() {
		if match(unit) {
			return asset.Single(unit, rec.Assets.QuantityOf(unit)), nil
		}
	}
	return asset.Bag{}, &dex.NotAPoolError{Protocol: protocol, Reason: "order identity token missing"}
}

// v11 reports whether the order belongs to the second validator
// generation, which rounds intermediate amounts the opposite way.
func gyV11(o *dex.OrderState) bool {
	units := o.IdentityNFT.Units()
	return len(units) > 0 && strings.HasPrefix(units[0], gyPolicyV11)
}

// gyClosestInput strips the taker fee from pay and snaps the remainder
// down onto the order's price grid, so the payment converts to a whole
// number of price steps.
func gyClosestInput(o *dex.OrderState, pay int64, v11 bool) *big.Int {
	net := new(big.Int).Mul(big.NewInt(pay), big.NewInt(gyFeeBasis))
	div := big.NewInt(gyFee + gyFeeBasis)
	if v11 {
		net = ceilBig(net, div)
	} else {
		net.Quo(net, div)
	}

	num, denom := o.Price.Num(), o.Price.Denom()
	steps := new(big.Int).Mul(net, denom)
	steps.Quo(steps, num)
	quantized := new(big.Int).Mul(steps, num)
	return ceilBig(quantized, denom)
}

func (g GeniusYield) TakerOut(o *dex.OrderState, pay int64) (int64, error) {
	if pay <= 0 {
		return 0, nil
	}
	v11 := gyV11(o)
	in := gyClosestInput(o, pay, v11)
	if v11 {
		in.Sub(in, big.NewInt(1))
	}
	if in.Sign() <= 0 {
		return 0, nil
	}

	out := new(big.Rat).SetInt(in)
	out.Quo(out, o.Price)
	avail := new(big.Rat).SetInt64(o.InAmount)
	if out.Cmp(avail) > 0 {
		out = avail
	}
	if v11 {
		return ratCeil(out), nil
	}
	return ratFloor(out), nil
}

func (g GeniusYield) TakerIn(o *dex.OrderState, want int64) (int64, error) {
	if want > o.InAmount {
		want = o.InAmount
	}
	if want <= 0 {
		return 0, nil
	}
	v11 := gyV11(o)

	base := new(big.Rat).SetInt64(want)
	base.Mul(base, o.Price)
	in := ratCeil(base)

	var fee int64
	if v11 {
		fee = in * gyFee / gyFeeBasis
	} else {
		fee = ceilBig(big.NewInt(in*gyFee), big.NewInt(gyFeeBasis)).Int64()
	}

	net := gyClosestInput(o, in+fee, v11)
	return net.Int64() + fee, nil
}

// FillDatum rebuilds the order datum after a partial fill: the offered
// amount drops by take, the fill counter advances and the contained
// fees accrue the maker fee plus the taker fee carved out of pay.
func (g GeniusYield) FillDatum(o *dex.OrderState, pay, take int64) (plutus.Data, error) {
	ord, err := decodeGYOrder(o.Datum)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: g.Name(), Err: err}
	}
	fee := pay - ratCeil(new(big.Rat).Mul(new(big.Rat).SetInt64(take), o.Price))
	if fee < 0 {
		fee = 0
	}
	ord.OfferedAmount -= take
	ord.PartialFills++
	ord.FeeLovelace += ord.MakerFee
	ord.FeeAsked += fee
	ord.Payment += pay - fee
	return ord.data(), nil
}

func (o *gyOrder) data() plutus.Data {
	start := plutus.NewConstr(1)
	if o.StartTime > 0 {
		start = plutus.NewConstr(0, plutus.NewInt(o.StartTime))
	}
	end := plutus.NewConstr(1)
	if o.EndTime > 0 {
		end = plutus.NewConstr(0, plutus.NewInt(o.EndTime))
	}
	return plutus.NewConstr(0,
		plutus.Bytes(o.OwnerKey),
		plutus.EncodeAddress(o.Owner),
		unitData(o.OfferedUnit),
		plutus.NewInt(o.OfferedOriginal),
		plutus.NewInt(o.OfferedAmount),
		unitData(o.AskedUnit),
		plutus.NewConstr(0, plutus.Int{Int: o.PriceNum}, plutus.Int{Int: o.PriceDenom}),
		plutus.Bytes(o.NFTName),
		start,
		end,
		plutus.NewInt(o.PartialFills),
		plutus.NewInt(o.MakerFee),
		plutus.NewInt(o.TakerFee),
		plutus.NewConstr(0,
			plutus.NewInt(o.FeeLovelace),
			plutus.NewInt(o.FeeOffered),
			plutus.NewInt(o.FeeAsked),
		),
		plutus.NewInt(o.Payment),
	)
}

// unitData encodes a unit back into a C0[policy, name] asset class.
func unitData(unit string) plutus.Data {
	if unit == asset.Lovelace {
		return plutus.NewConstr(0, plutus.Bytes(nil), plutus.Bytes(nil))
	}
	policy, _ := hex.DecodeString(asset.PolicyID(unit))
	name, _ := hex.DecodeString(asset.Name(unit))
	return plutus.NewConstr(0, plutus.Bytes(policy), plutus.Bytes(name))
}

// bigIntField returns constructor field i as an arbitrary-precision
// integer, for values that may not fit in 64 bits.
func bigIntField(c plutus.Constr, i int) (*big.Int, error) {
	f, err := c.Field(i)
	if err != nil {
		return nil, err
	}
	n, ok := f.(plutus.Int)
	if !ok || n.Int == nil {
		return nil, plutus.ErrNotInt
	}
	return n.Int, nil
}

func ceilBig(num, den *big.Int) *big.Int {
	q, r := new(big.Int).QuoRem(num, den, new(big.Int))
	if r.Sign() != 0 && (num.Sign() > 0) == (den.Sign() > 0) {
		q.Add(q, big.NewInt(1))
	}
	return q
}
