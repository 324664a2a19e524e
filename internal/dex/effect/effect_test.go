package effect

import (
	"encoding/hex"
	"math/big"
	"testing"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/dex/ob"
	"DexLedger/internal/plutus"
)

const (
	tADA  = "lovelace"
	tCoin = "533bb94a8850ee3ccbe483106489399112b74c905342cb1792a797a0494e4459"
	tNFT  = "0be55d262b29f564998ff81efe21bdc0022621c12f15af08d0f2ddb1494e4459"
)

func testPool(feeShare int64) *dex.PoolState {
	return &dex.PoolState{
		Protocol: "test",
		Address:  "addr1pool",
		UnitA:    tADA,
		UnitB:    tCoin,
		Reserves: asset.New(tADA, int64(1_000_000_000), tCoin, int64(2_000_000_000)),
		PoolNFT:  asset.Single(tNFT, 1),
		Fees:     dex.Fees{Basis: 10000, NumA: 30, NumB: 30},
		FeeShare: feeShare,
		Active:   true,
	}
}

func TestApplySwapUpdatesReserves(t *testing.T) {
	p := testPool(0)
	quote := dex.Quote{Amount: asset.Single(tCoin, 19_000_000)}

	next, out, err := ApplySwap(p, tADA, 10_000_000, quote)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := next.ReserveA(), int64(1_010_000_000); got != want {
		t.Errorf("reserve A = %d, want %d", got, want)
	}
	if got, want := next.ReserveB(), int64(1_981_000_000); got != want {
		t.Errorf("reserve B = %d, want %d", got, want)
	}
	if out.Address != "addr1pool" {
		t.Errorf("output address = %s, want the pool address", out.Address)
	}
	if got := out.Assets.QuantityOf(tNFT); got != 1 {
		t.Errorf("pool NFT quantity in output = %d, want 1", got)
	}

	// The source state stays untouched.
	if p.ReserveA() != 1_000_000_000 {
		t.Error("ApplySwap mutated its input state")
	}
}

func TestApplySwapAccruesTreasury(t *testing.T) {
	p := testPool(100) // 1% of input diverted
	quote := dex.Quote{Amount: asset.Single(tCoin, 19_000_000)}

	next, out, err := ApplySwap(p, tADA, 10_000_000, quote)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := next.TreasuryA, int64(100_000); got != want {
		t.Errorf("treasury A = %d, want %d", got, want)
	}
	if got, want := next.ReserveA(), int64(1_009_900_000); got != want {
		t.Errorf("reserve A = %d, want %d", got, want)
	}
	// The successor balance carries reserves plus treasury.
	if got, want := out.Assets.QuantityOf(tADA), int64(1_010_000_000); got != want {
		t.Errorf("output lovelace = %d, want %d", got, want)
	}
}

func TestApplySwapRejectsOverdraw(t *testing.T) {
	p := testPool(0)
	quote := dex.Quote{Amount: asset.Single(tCoin, 2_000_000_000)}
	if _, _, err := ApplySwap(p, tADA, 10_000_000, quote); err == nil {
		t.Error("expected error draining the output reserve")
	}
}

func TestApplySwapRejectsForeignUnit(t *testing.T) {
	p := testPool(0)
	quote := dex.Quote{Amount: asset.Single(tCoin, 1)}
	if _, _, err := ApplySwap(p, "deadbeef", 10, quote); err == nil {
		t.Error("expected error for unit outside the pair")
	}
}

func gyOrderState(t *testing.T) (*dex.OrderState, asset.Bag) {
	t.Helper()
	// A live order offering 1000 tCoin against ADA at par, built through
	// the real codec so FillDatum has a datum to rewrite.
	raw, err := plutus.Marshal(plutus.NewConstr(0,
		plutus.Bytes(make([]byte, 28)),
		plutus.EncodeAddress(plutus.Address{PaymentHash: make([]byte, 28)}),
		plutus.NewConstr(0, plutus.Bytes(mustHex(t, asset.PolicyID(tCoin))), plutus.Bytes(mustHex(t, asset.Name(tCoin)))),
		plutus.NewInt(2000),
		plutus.NewInt(1000),
		plutus.NewConstr(0, plutus.Bytes(nil), plutus.Bytes(nil)),
		plutus.NewConstr(0, plutus.NewInt(1), plutus.NewInt(1)),
		plutus.Bytes([]byte{0xab}),
		plutus.NewConstr(1),
		plutus.NewConstr(1),
		plutus.NewInt(1),
		plutus.NewInt(500_000),
		plutus.NewInt(1_000_000),
		plutus.NewConstr(0, plutus.NewInt(500_000), plutus.NewInt(0), plutus.NewInt(0)),
		plutus.NewInt(1000),
	))
	if err != nil {
		t.Fatal(err)
	}
	nft := "22f6999d4effc0ade05f6e1a70b702c65d6b3cdf0e301e4a8267f585" + "ab"
	rec := dex.Record{
		Address:   "addr1orders",
		Assets:    asset.New(tCoin, int64(1000), nft, int64(1), tADA, int64(1_500_000)),
		DatumCBOR: raw,
	}
	st, err := ob.GeniusYield{}.ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatal(err)
	}
	return st, rec.Assets
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	out, err := hex.DecodeString(s)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestFillOrderPartial(t *testing.T) {
	st, balance := gyOrderState(t)
	fill := ob.Fill{Order: st, Pay: 402, Take: 400, Remaining: 600}

	res, err := FillOrder(ob.GeniusYield{}, st, fill, balance)
	if err != nil {
		t.Fatal(err)
	}
	if res.Order == nil {
		t.Fatal("partial fill should re-emit a live order")
	}
	if res.Order.InAmount != 600 {
		t.Errorf("remaining amount = %d, want 600", res.Order.InAmount)
	}
	if res.Output.Address != "addr1orders" {
		t.Errorf("output address = %s, want the order script", res.Output.Address)
	}
	if got, want := res.Output.Assets.QuantityOf(tCoin), int64(600); got != want {
		t.Errorf("offered balance = %d, want %d", got, want)
	}
	if got, want := res.Output.Assets.QuantityOf(tADA), int64(1_500_000+402+st.BatcherFee); got != want {
		t.Errorf("lovelace balance = %d, want %d", got, want)
	}
	if res.Fees != nil {
		t.Error("partial fill should not release fees")
	}
}

func TestFillOrderComplete(t *testing.T) {
	st, balance := gyOrderState(t)
	fill := ob.Fill{Order: st, Pay: 1003, Take: 1000, Remaining: 0, Complete: true}

	res, err := FillOrder(ob.GeniusYield{}, st, fill, balance)
	if err != nil {
		t.Fatal(err)
	}
	if res.Order != nil {
		t.Error("complete fill should not re-emit an order")
	}
	if res.Output.Owner == nil {
		t.Fatal("complete fill should pay the owner")
	}
	if got, want := res.Output.Assets.QuantityOf(tADA), int64(1003); got != want {
		t.Errorf("owner payout = %d, want %d", got, want)
	}
	if res.Fees == nil {
		t.Fatal("complete fill should release the accrued fees")
	}
	// The order balance held 1.5 ADA beyond the offered tokens and the
	// beacon; that residue leaves as fees.
	if got, want := res.Fees.Assets.QuantityOf(tADA), int64(1_500_000); got != want {
		t.Errorf("released fees = %d, want %d", got, want)
	}
}

func TestFillOrderRejectsOversizedFill(t *testing.T) {
	st, balance := gyOrderState(t)
	fill := ob.Fill{Order: st, Pay: 2000, Take: 2000}
	if _, err := FillOrder(ob.GeniusYield{}, st, fill, balance); err == nil {
		t.Error("expected error for fill beyond the remaining amount")
	}
}

func TestAggregateFees(t *testing.T) {
	results := []OrderResult{
		{Fees: &Output{Assets: asset.Single(tADA, 1_000_000)}},
		{},
		{Fees: &Output{Assets: asset.Single(tADA, 500_000)}},
	}
	agg := AggregateFees(results)
	if agg == nil {
		t.Fatal("expected an aggregated fee output")
	}
	if got, want := agg.Assets.QuantityOf(tADA), int64(1_500_000); got != want {
		t.Errorf("aggregated fees = %d, want %d", got, want)
	}

	if AggregateFees(nil) != nil {
		t.Error("no fills should aggregate to no fee output")
	}
}

func TestBookFillRoundTrip(t *testing.T) {
	// A take across the book feeds straight into FillOrder.
	st, balance := gyOrderState(t)
	book := ob.NewBook(ob.GeniusYield{}, tADA, tCoin, []*dex.OrderState{st}, ob.DefaultDepth)

	fills, unfilled, err := book.Take(tCoin, 400)
	if err != nil {
		t.Fatal(err)
	}
	if unfilled != 0 || len(fills) != 1 {
		t.Fatalf("got %d fills with %d unfilled, want one full match", len(fills), unfilled)
	}
	res, err := FillOrder(ob.GeniusYield{}, st, fills[0], balance)
	if err != nil {
		t.Fatal(err)
	}
	if res.Order == nil || res.Order.InAmount != 600 {
		t.Errorf("round trip left order state %+v, want 600 remaining", res.Order)
	}
	if res.Order.Price.Cmp(big.NewRat(1, 1)) != 0 {
		t.Errorf("price changed across the fill: %v", res.Order.Price)
	}
}
