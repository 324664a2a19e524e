package ob

import (
	"errors"
	"math/big"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

var errBadOracleRate = errors.New("oracle rate is not positive")

const (
	djedFeeNum   = 15
	djedFeeBasis = 1000

	djedOrderTTL = 180

	djedBatcherFee = 2_000_000
	djedDeposit    = 2_000_000
)

// StablecoinConfig pins a Djed deployment: the order contract
// addresses, the order NFT policies minted alongside each request, and
// the stablecoin and reserve-coin units the contracts settle in.
type StablecoinConfig struct {
	OrderAddresses []string
	OrderPolicies  []string
	StableUnit     string
	ReserveUnit    string
}

// djedAction alternatives in the order datum.
const (
	djedMint uint64 = iota
	djedBurn
	shenMint
	shenBurn
)

// djedOrder is the decoded stablecoin order: one mint or burn action,
// the owner to pay out, and the oracle rate the request was priced at.
type djedOrder struct {
	Action       uint64
	CoinAmount   int64
	AdaAmount    int64
	Owner        plutus.Address
	OracleNum    *big.Int
	OracleDenom  *big.Int
	CreationTime int64
	NFTName      []byte
}

func decodeDjedOrder(d plutus.Data) (*djedOrder, error) {
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return nil, err
	}
	var o djedOrder
	action, err := c.ConstrField(0)
	if err != nil {
		return nil, err
	}
	o.Action = action.Alternative
	switch o.Action {
	case djedMint, shenMint:
		if o.CoinAmount, err = action.IntField(0); err != nil {
			return nil, err
		}
		if o.AdaAmount, err = action.IntField(1); err != nil {
			return nil, err
		}
	case djedBurn, shenBurn:
		if o.CoinAmount, err = action.IntField(0); err != nil {
			return nil, err
		}
	default:
		return nil, plutus.ErrNotConstr
	}
	ownerData, err := c.Field(1)
	if err != nil {
		return nil, err
	}
	if o.Owner, err = plutus.DecodeAddress(ownerData); err != nil {
		return nil, err
	}
	rate, err := c.ConstrField(2)
	if err != nil {
		return nil, err
	}
	if o.OracleNum, err = bigIntField(rate, 0); err != nil {
		return nil, err
	}
	if o.OracleDenom, err = bigIntField(rate, 1); err != nil {
		return nil, err
	}
	if o.CreationTime, err = c.IntField(3); err != nil {
		return nil, err
	}
	if o.NFTName, err = c.BytesField(4); err != nil {
		return nil, err
	}
	return &o, nil
}

// stablecoin carries the shared recognition and quoting logic for the
// two sides of a Djed deployment. Mint requests offer ADA against the
// coin, burn requests the reverse; the operator fee is folded into the
// oracle-derived price, so fills are plain rational conversions.
type stablecoin struct {
	name string
	cfg  StablecoinConfig
	mint uint64
	burn uint64
	unit func(StablecoinConfig) string
}

// NewDjed returns the stablecoin side of a Djed deployment.
func NewDjed(cfg StablecoinConfig) dex.OrderProtocol {
	return &stablecoin{
		name: "Djed",
		cfg:  cfg,
		mint: djedMint,
		burn: djedBurn,
		unit: func(c StablecoinConfig) string { return c.StableUnit },
	}
}

// NewShen returns the reserve-coin side of a Djed deployment.
func NewShen(cfg StablecoinConfig) dex.OrderProtocol {
	return &stablecoin{
		name: "Shen",
		cfg:  cfg,
		mint: shenMint,
		burn: shenBurn,
		unit: func(c StablecoinConfig) string { return c.ReserveUnit },
	}
}

func (s *stablecoin) Name() string { return s.name }

func (s *stablecoin) OrderAddresses() []string { return s.cfg.OrderAddresses }

func (s *stablecoin) ParseOrder(rec dex.Record, now int64) (*dex.OrderState, error) {
	datum, err := plutus.Unmarshal(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.name, Err: err}
	}
	ord, err := decodeDjedOrder(datum)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.name, Err: err}
	}
	if ord.Action != s.mint && ord.Action != s.burn {
		return nil, &dex.NotAPoolError{Protocol: s.name, Reason: "order belongs to the other coin"}
	}
	if ord.OracleNum.Sign() <= 0 || ord.OracleDenom.Sign() <= 0 {
		return nil, &dex.SchemaMismatchError{Protocol: s.name, Err: errBadOracleRate}
	}

	var nft asset.Bag
	if len(s.cfg.OrderPolicies) > 0 {
		if nft, err = extractOrderNFT(s.name, rec, s.cfg.OrderPolicies...); err != nil {
			return nil, err
		}
	}

	coin := s.unit(s.cfg)
	// The oracle rate is coin per ADA. Minting pays a 1.5% premium on
	// top, burning returns 1.5% less, both folded into the price here.
	oracle := new(big.Rat).SetFrac(ord.OracleNum, ord.OracleDenom)

	st := &dex.OrderState{
		Protocol:    s.name,
		Address:     rec.Address,
		TxHash:      rec.TxHash,
		TxIndex:     rec.TxIndex,
		Owner:       ord.Owner,
		StartTime:   ord.CreationTime * 1000,
		EndTime:     (ord.CreationTime + djedOrderTTL) * 1000,
		BatcherFee:  djedBatcherFee,
		Deposit:     djedDeposit,
		IdentityNFT: nft,
		Active:      now <= ord.CreationTime+djedOrderTTL,
		Datum:       datum,
	}

	if ord.Action == s.mint {
		st.Kind = dex.KindDeposit
		st.InUnit = asset.Lovelace
		st.InAmount = ord.AdaAmount
		st.OutUnit = coin
		st.MinReceive = ord.CoinAmount
		st.Price = oracle.Mul(oracle, big.NewRat(djedFeeBasis, djedFeeBasis+djedFeeNum))
	} else {
		st.Kind = dex.KindSwap
		st.InUnit = coin
		st.InAmount = ord.CoinAmount
		st.OutUnit = asset.Lovelace
		st.Price = oracle.Inv(oracle)
		st.Price.Mul(st.Price, big.NewRat(djedFeeBasis-djedFeeNum, djedFeeBasis))
	}
	return st, nil
}

func (s *stablecoin) TakerOut(o *dex.OrderState, pay int64) (int64, error) {
	if pay <= 0 {
		return 0, nil
	}
	out := new(big.Rat).SetInt64(pay)
	out.Quo(out, o.Price)
	avail := new(big.Rat).SetInt64(o.InAmount)
	if out.Cmp(avail) > 0 {
		out = avail
	}
	return ratFloor(out), nil
}

func (s *stablecoin) TakerIn(o *dex.OrderState, want int64) (int64, error) {
	if want > o.InAmount {
		want = o.InAmount
	}
	if want <= 0 {
		return 0, nil
	}
	in := new(big.Rat).SetInt64(want)
	in.Mul(in, o.Price)
	return ratCeil(in), nil
}

// FillDatum rebuilds the order datum with the action amount reduced by
// the filled portion. The payment is fully priced in, so pay is unused.
func (s *stablecoin) FillDatum(o *dex.OrderState, pay, take int64) (plutus.Data, error) {
	ord, err := decodeDjedOrder(o.Datum)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.name, Err: err}
	}
	switch ord.Action {
	case djedMint, shenMint:
		ord.AdaAmount -= take
	default:
		ord.CoinAmount -= take
	}
	return ord.data(), nil
}

func (o *djedOrder) data() plutus.Data {
	var action plutus.Data
	switch o.Action {
	case djedMint, shenMint:
		action = plutus.NewConstr(o.Action, plutus.NewInt(o.CoinAmount), plutus.NewInt(o.AdaAmount))
	default:
		action = plutus.NewConstr(o.Action, plutus.NewInt(o.CoinAmount))
	}
	return plutus.NewConstr(0,
		action,
		plutus.EncodeAddress(o.Owner),
		plutus.NewConstr(0, plutus.Int{Int: o.OracleNum}, plutus.Int{Int: o.OracleDenom}),
		plutus.NewInt(o.CreationTime),
		plutus.Bytes(o.NFTName),
	)
}
