package amm

import (
	"bytes"
	"encoding/hex"
	"errors"
	"testing"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

func orderOwner() plutus.Address {
	return plutus.Address{
		PaymentHash: bytes.Repeat([]byte{0x01}, 28),
		StakeHash:   bytes.Repeat([]byte{0x02}, 28),
	}
}

func orderRecord(t *testing.T, datum plutus.Data, assets asset.Bag) dex.Record {
	t.Helper()
	raw, err := plutus.Marshal(datum)
	if err != nil {
		t.Fatalf("marshal datum: %v", err)
	}
	return dex.Record{
		Address:   "addr1qorder",
		TxHash:    "bb",
		TxIndex:   1,
		Assets:    assets,
		DatumCBOR: raw,
	}
}

func TestCSwapParseOrderSwap(t *testing.T) {
	datum, err := CSwap{}.SwapOrder(&dex.PoolState{}, orderOwner(),
		asset.Single(asset.Lovelace, 25_000_000), asset.Single(tTok, 10_000), 0)
	if err != nil {
		t.Fatalf("SwapOrder: %v", err)
	}
	rec := orderRecord(t, datum, asset.Single(asset.Lovelace, 27_690_000))

	o, err := CSwap{}.ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if o.Kind != dex.KindSwap {
		t.Errorf("Kind = %v, want swap", o.Kind)
	}
	// The builder appends a 2 ADA minimum-output entry after the token
	// target; the parser must skip it.
	if o.OutUnit != tTok || o.MinReceive != 10_000 {
		t.Errorf("out = %s x%d, want %s x10000", o.OutUnit, o.MinReceive, tTok)
	}
	if o.InUnit != asset.Lovelace || o.InAmount != 27_690_000 {
		t.Errorf("in = %s x%d, want full lovelace balance", o.InUnit, o.InAmount)
	}
	if !bytes.Equal(o.Owner.PaymentHash, orderOwner().PaymentHash) {
		t.Errorf("owner payment hash = %x", o.Owner.PaymentHash)
	}
	if o.BatcherFee != cswapBatcherFee || o.Deposit != cswapDeposit {
		t.Errorf("fees = %d/%d", o.BatcherFee, o.Deposit)
	}
	if !o.Active {
		t.Error("order not active")
	}
	if want := asset.Single(tTok, 10_000); !o.RequestedAmount().Equal(want) {
		t.Errorf("RequestedAmount = %s", o.RequestedAmount())
	}
}

func TestCSwapParseOrderADAOut(t *testing.T) {
	datum, err := CSwap{}.SwapOrder(&dex.PoolState{}, orderOwner(),
		asset.Single(tTok, 1_000), asset.Single(asset.Lovelace, 10_000_000), 0)
	if err != nil {
		t.Fatalf("SwapOrder: %v", err)
	}
	rec := orderRecord(t, datum, asset.New(asset.Lovelace, 2_690_000, tTok, 1_000))

	o, err := CSwap{}.ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	// An ADA target above the 2 ADA floor is a real request, not the
	// minimum-output entry.
	if o.OutUnit != asset.Lovelace || o.MinReceive != 10_000_000 {
		t.Errorf("out = %s x%d, want lovelace x10000000", o.OutUnit, o.MinReceive)
	}
	if o.InUnit != tTok || o.InAmount != 1_000 {
		t.Errorf("in = %s x%d", o.InUnit, o.InAmount)
	}
}

func TestCSwapParseOrderRejectsPoolDatum(t *testing.T) {
	rec := dex.Record{
		Address:   "addr1qorder",
		TxHash:    "bb",
		Assets:    asset.Single(asset.Lovelace, 5_000_000),
		DatumCBOR: cswapDatum(t),
	}
	_, err := CSwap{}.ParseOrder(rec, 1_700_000_000)

	var schema *dex.SchemaMismatchError
	if !errors.As(err, &schema) {
		t.Fatalf("err = %v, want schema mismatch", err)
	}
	if !dex.Recoverable(err) {
		t.Error("schema mismatch should be recoverable")
	}
}

func TestSpectrumParseOrderRoundTrip(t *testing.T) {
	pool := &dex.PoolState{
		UnitA:   asset.Lovelace,
		UnitB:   tTok,
		PoolNFT: asset.Single(tNFT, 1),
		Fees:    dex.Fees{Basis: 10_000, NumA: 30, NumB: 30},
	}
	datum, err := Spectrum{}.SwapOrder(pool, orderOwner(),
		asset.Single(asset.Lovelace, 5_000_000), asset.Single(tTok, 9_000), 0)
	if err != nil {
		t.Fatalf("SwapOrder: %v", err)
	}
	// Balance exceeds the declared amount; the datum wins.
	rec := orderRecord(t, datum, asset.Single(asset.Lovelace, 6_500_000))

	o, err := Spectrum{}.ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if o.Kind != dex.KindSwap {
		t.Errorf("Kind = %v, want swap", o.Kind)
	}
	if o.InUnit != asset.Lovelace || o.InAmount != 5_000_000 {
		t.Errorf("in = %s x%d, want declared 5000000", o.InUnit, o.InAmount)
	}
	if o.OutUnit != tTok || o.MinReceive != 9_000 {
		t.Errorf("out = %s x%d", o.OutUnit, o.MinReceive)
	}
	if !bytes.Equal(o.Owner.PaymentHash, orderOwner().PaymentHash) {
		t.Errorf("owner payment hash = %x", o.Owner.PaymentHash)
	}
	if !bytes.Equal(o.Owner.StakeHash, orderOwner().StakeHash) {
		t.Errorf("owner stake hash = %x", o.Owner.StakeHash)
	}
	if o.BatcherFee != spectrumBatcherFee || o.Deposit != spectrumDeposit {
		t.Errorf("fees = %d/%d", o.BatcherFee, o.Deposit)
	}
}

func TestSpectrumParseOrderNoStake(t *testing.T) {
	pool := &dex.PoolState{
		UnitA:   asset.Lovelace,
		UnitB:   tTok,
		PoolNFT: asset.Single(tNFT, 1),
		Fees:    dex.Fees{Basis: 10_000, NumA: 30, NumB: 30},
	}
	owner := plutus.Address{PaymentHash: bytes.Repeat([]byte{0x03}, 28)}
	datum, err := Spectrum{}.SwapOrder(pool, owner,
		asset.Single(tTok, 4_000), asset.Single(asset.Lovelace, 2_500_000), 0)
	if err != nil {
		t.Fatalf("SwapOrder: %v", err)
	}
	rec := orderRecord(t, datum, asset.New(asset.Lovelace, 3_500_000, tTok, 4_000))

	o, err := Spectrum{}.ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if len(o.Owner.StakeHash) != 0 {
		t.Errorf("stake hash = %x, want none", o.Owner.StakeHash)
	}
	if o.InUnit != tTok || o.OutUnit != asset.Lovelace {
		t.Errorf("pair = %s -> %s", o.InUnit, o.OutUnit)
	}
}

func wrV1OrderDatum(t *testing.T, detail plutus.Data) plutus.Data {
	t.Helper()
	aClass, err := assetClassData(asset.Lovelace)
	if err != nil {
		t.Fatal(err)
	}
	bClass, err := assetClassData(tTok)
	if err != nil {
		t.Fatal(err)
	}
	config := plutus.NewConstr(0,
		plutus.EncodeAddress(orderOwner()),
		plutus.Bytes(orderOwner().PaymentHash),
		plutus.NewInt(1_800_000_000_000),
		plutus.NewConstr(0, aClass, bClass),
	)
	return plutus.NewConstr(0, config, detail)
}

func TestWingRidersV1ParseOrderSwap(t *testing.T) {
	w := WingRidersV1()
	pool := &dex.PoolState{UnitA: asset.Lovelace, UnitB: tTok}
	datum, err := w.SwapOrder(pool, orderOwner(),
		asset.Single(tTok, 500), asset.Single(asset.Lovelace, 3_000_000), 1_800_000_000_000)
	if err != nil {
		t.Fatalf("SwapOrder: %v", err)
	}
	rec := orderRecord(t, datum, asset.New(asset.Lovelace, 4_000_000, tTok, 500))

	o, err := w.ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if o.Kind != dex.KindSwap {
		t.Errorf("Kind = %v, want swap", o.Kind)
	}
	// Selling the pair's second unit reverses the direction.
	if o.InUnit != tTok || o.OutUnit != asset.Lovelace {
		t.Errorf("pair = %s -> %s", o.InUnit, o.OutUnit)
	}
	if o.InAmount != 500 || o.MinReceive != 3_000_000 {
		t.Errorf("amounts = %d -> %d", o.InAmount, o.MinReceive)
	}
	if o.EndTime != 1_800_000_000_000 {
		t.Errorf("EndTime = %d", o.EndTime)
	}
	if !o.Active {
		t.Error("order before expiration should be active")
	}
	if !bytes.Equal(o.Owner.PaymentHash, orderOwner().PaymentHash) {
		t.Errorf("owner payment hash = %x", o.Owner.PaymentHash)
	}
}

func TestWingRidersV1ParseOrderExpired(t *testing.T) {
	w := WingRidersV1()
	pool := &dex.PoolState{UnitA: asset.Lovelace, UnitB: tTok}
	datum, err := w.SwapOrder(pool, orderOwner(),
		asset.Single(asset.Lovelace, 1_000_000), asset.Single(tTok, 100), 1_800_000_000_000)
	if err != nil {
		t.Fatalf("SwapOrder: %v", err)
	}
	rec := orderRecord(t, datum, asset.Single(asset.Lovelace, 2_000_000))

	o, err := w.ParseOrder(rec, 1_900_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if o.Active {
		t.Error("order past expiration should be inactive")
	}
}

func TestWingRidersV1ParseOrderDeposit(t *testing.T) {
	datum := wrV1OrderDatum(t, plutus.NewConstr(1, plutus.NewInt(42)))
	rec := orderRecord(t, datum, asset.New(asset.Lovelace, 7_000_000, tTok, 300))

	o, err := WingRidersV1().ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if o.Kind != dex.KindDeposit {
		t.Errorf("Kind = %v, want deposit", o.Kind)
	}
	if o.OutUnit != lpUnit || o.MinReceive != 42 {
		t.Errorf("out = %s x%d, want lp x42", o.OutUnit, o.MinReceive)
	}
	if o.InUnit != asset.Lovelace || o.InAmount != 7_000_000 {
		t.Errorf("in = %s x%d", o.InUnit, o.InAmount)
	}
}

func TestWingRidersV1ParseOrderWithdraw(t *testing.T) {
	datum := wrV1OrderDatum(t, plutus.NewConstr(2, plutus.NewInt(5), plutus.NewInt(6)))
	rec := orderRecord(t, datum, asset.Single(asset.Lovelace, 4_000_000))

	o, err := WingRidersV1().ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if o.Kind != dex.KindWithdraw {
		t.Errorf("Kind = %v, want withdraw", o.Kind)
	}
	if o.MinReceiveA != 5 || o.MinReceiveB != 6 {
		t.Errorf("minimums = %d/%d", o.MinReceiveA, o.MinReceiveB)
	}
	if want := asset.New(asset.Lovelace, 5, tTok, 6); !o.RequestedAmount().Equal(want) {
		t.Errorf("RequestedAmount = %s", o.RequestedAmount())
	}
}

func TestWingRidersV1ParseOrderFeeClaim(t *testing.T) {
	datum := wrV1OrderDatum(t, plutus.NewConstr(3))
	rec := orderRecord(t, datum, asset.Single(asset.Lovelace, 4_000_000))

	o, err := WingRidersV1().ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if o.Kind != dex.KindOther {
		t.Errorf("Kind = %v, want other", o.Kind)
	}
	if o.RequestedAmount().Len() != 0 {
		t.Errorf("RequestedAmount = %s, want empty", o.RequestedAmount())
	}
}

func wrV2OrderDatum(t *testing.T, action plutus.Data, deadline int64) plutus.Data {
	t.Helper()
	policy, err := hex.DecodeString(tPolicy)
	if err != nil {
		t.Fatal(err)
	}
	addr := plutus.EncodeAddress(orderOwner())
	return plutus.NewConstr(0,
		plutus.NewInt(wrOil),
		addr,
		addr,
		plutus.Bytes{},
		plutus.NewConstr(0),
		plutus.NewInt(deadline),
		plutus.Bytes{}, plutus.Bytes{},
		plutus.Bytes(policy), plutus.Bytes([]byte("tok")),
		action,
		plutus.NewInt(1),
		plutus.NewInt(1),
	)
}

func TestWingRidersV2ParseOrderSwap(t *testing.T) {
	w := WingRidersV2()
	pool := &dex.PoolState{UnitA: asset.Lovelace, UnitB: tTok}
	datum, err := w.SwapOrder(pool, orderOwner(),
		asset.Single(asset.Lovelace, 10_000_000), asset.Single(tTok, 700), 1_800_000_000_000)
	if err != nil {
		t.Fatalf("SwapOrder: %v", err)
	}
	rec := orderRecord(t, datum, asset.Single(asset.Lovelace, 12_000_000))

	o, err := w.ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if o.Kind != dex.KindSwap {
		t.Errorf("Kind = %v, want swap", o.Kind)
	}
	if o.InUnit != asset.Lovelace || o.OutUnit != tTok {
		t.Errorf("pair = %s -> %s", o.InUnit, o.OutUnit)
	}
	if o.InAmount != 12_000_000 || o.MinReceive != 700 {
		t.Errorf("amounts = %d -> %d", o.InAmount, o.MinReceive)
	}
	if o.Deposit != wrOil {
		t.Errorf("Deposit = %d, want oil", o.Deposit)
	}
	if o.EndTime != 1_800_000_000_000 || !o.Active {
		t.Errorf("EndTime = %d, Active = %v", o.EndTime, o.Active)
	}
	if !bytes.Equal(o.Owner.PaymentHash, orderOwner().PaymentHash) {
		t.Errorf("owner payment hash = %x", o.Owner.PaymentHash)
	}
}

func TestWingRidersV2ParseOrderWithdraw(t *testing.T) {
	datum := wrV2OrderDatum(t,
		plutus.NewConstr(2, plutus.NewInt(11), plutus.NewInt(22)), 1_800_000_000_000)
	rec := orderRecord(t, datum, asset.Single(asset.Lovelace, 4_000_000))

	o, err := WingRidersV2().ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if o.Kind != dex.KindWithdraw {
		t.Errorf("Kind = %v, want withdraw", o.Kind)
	}
	if o.MinReceiveA != 11 || o.MinReceiveB != 22 {
		t.Errorf("minimums = %d/%d", o.MinReceiveA, o.MinReceiveB)
	}
	if o.InUnit != asset.Lovelace || o.OutUnit != tTok {
		t.Errorf("pair = %s -> %s", o.InUnit, o.OutUnit)
	}
}

func TestWingRidersV2ParseOrderExpired(t *testing.T) {
	datum := wrV2OrderDatum(t,
		plutus.NewConstr(0, plutus.NewConstr(0), plutus.NewInt(100)), 1_800_000_000_000)
	rec := orderRecord(t, datum, asset.Single(asset.Lovelace, 4_000_000))

	o, err := WingRidersV2().ParseOrder(rec, 1_900_000_000)
	if err != nil {
		t.Fatalf("ParseOrder: %v", err)
	}
	if o.Active {
		t.Error("order past deadline should be inactive")
	}
}

func TestSplashParseOrderSkipped(t *testing.T) {
	rec := dex.Record{Address: "addr1qorder", DatumCBOR: []byte{0x80}}
	_, err := Splash{}.ParseOrder(rec, 1_700_000_000)
	if err == nil {
		t.Fatal("expected error")
	}
	if !dex.Recoverable(err) {
		t.Errorf("err = %v, want recoverable skip", err)
	}
}
