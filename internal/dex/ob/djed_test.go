package ob

import (
	"bytes"
	"errors"
	"math/big"
	"testing"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

const (
	tDjed = "8db269c3ec630e06ae29f74bc39edd1f87c819f1056206e879a1cd61446a65644d6963726f555344"
	tShen = "8db269c3ec630e06ae29f74bc39edd1f87c819f1056206e879a1cd615368656e4d6963726f555344"
)

func djedConfig() StablecoinConfig {
	return StablecoinConfig{
		OrderAddresses: []string{"addr1djedorders"},
		StableUnit:     tDjed,
		ReserveUnit:    tShen,
	}
}

func djedFixture(action uint64, coin, ada int64, created int64) *djedOrder {
	return &djedOrder{
		Action:       action,
		CoinAmount:   coin,
		AdaAmount:    ada,
		Owner:        plutus.Address{PaymentHash: bytes.Repeat([]byte{0x02}, 28)},
		OracleNum:    big.NewInt(1),
		OracleDenom:  big.NewInt(2),
		CreationTime: created,
		NFTName:      []byte{0x01},
	}
}

func djedRecord(t *testing.T, ord *djedOrder) dex.Record {
	t.Helper()
	raw, err := plutus.Marshal(ord.data())
	if err != nil {
		t.Fatal(err)
	}
	return dex.Record{
		Address:   "addr1djedorders",
		Assets:    asset.New(asset.Lovelace, int64(10_000_000)),
		DatumCBOR: raw,
		TxHash:    "bb22",
		TxIndex:   1,
	}
}

func TestDjedParseMintOrder(t *testing.T) {
	now := int64(1_700_000_000)
	rec := djedRecord(t, djedFixture(djedMint, 5_000_000, 10_150_000, now-60))

	st, err := NewDjed(djedConfig()).ParseOrder(rec, now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Kind != dex.KindDeposit {
		t.Errorf("kind = %s, want deposit", st.Kind)
	}
	if st.InUnit != asset.Lovelace || st.InAmount != 10_150_000 {
		t.Errorf("offered side = %s/%d, want lovelace/10150000", st.InUnit, st.InAmount)
	}
	if st.OutUnit != tDjed {
		t.Errorf("asked unit = %s, want the stablecoin", st.OutUnit)
	}
	// Oracle says 1 coin per 2 ADA; the 1.5% mint premium thins that out.
	want := big.NewRat(1, 2)
	want.Mul(want, big.NewRat(1000, 1015))
	if st.Price.Cmp(want) != 0 {
		t.Errorf("price = %v, want %v", st.Price, want)
	}
	if !st.Active {
		t.Error("order inside its TTL should be active")
	}
}

func TestDjedParseBurnOrder(t *testing.T) {
	now := int64(1_700_000_000)
	rec := djedRecord(t, djedFixture(djedBurn, 5_000_000, 0, now-60))

	st, err := NewDjed(djedConfig()).ParseOrder(rec, now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Kind != dex.KindSwap {
		t.Errorf("kind = %s, want swap", st.Kind)
	}
	if st.InUnit != tDjed || st.InAmount != 5_000_000 {
		t.Errorf("offered side = %s/%d, want stablecoin/5000000", st.InUnit, st.InAmount)
	}
	// Inverted oracle rate of 2 ADA per coin, less the 1.5% burn fee.
	want := big.NewRat(2, 1)
	want.Mul(want, big.NewRat(985, 1000))
	if st.Price.Cmp(want) != 0 {
		t.Errorf("price = %v, want %v", st.Price, want)
	}
}

func TestDjedOrderExpires(t *testing.T) {
	now := int64(1_700_000_000)
	rec := djedRecord(t, djedFixture(djedBurn, 1_000_000, 0, now-djedOrderTTL-1))

	st, err := NewDjed(djedConfig()).ParseOrder(rec, now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Active {
		t.Error("order past its TTL should be inactive")
	}
}

func TestDjedRejectsReserveCoinOrders(t *testing.T) {
	rec := djedRecord(t, djedFixture(shenMint, 1_000_000, 2_030_000, 1_700_000_000))
	_, err := NewDjed(djedConfig()).ParseOrder(rec, 1_700_000_000)
	var notPool *dex.NotAPoolError
	if !errors.As(err, &notPool) {
		t.Fatalf("got %v, want NotAPoolError", err)
	}
}

func TestShenParsesReserveCoinOrders(t *testing.T) {
	now := int64(1_700_000_000)
	rec := djedRecord(t, djedFixture(shenBurn, 3_000_000, 0, now-10))

	st, err := NewShen(djedConfig()).ParseOrder(rec, now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Protocol != "Shen" {
		t.Errorf("protocol = %s, want Shen", st.Protocol)
	}
	if st.InUnit != tShen {
		t.Errorf("offered unit = %s, want the reserve coin", st.InUnit)
	}
}

func TestDjedRejectsBadOracleRate(t *testing.T) {
	ord := djedFixture(djedBurn, 1_000_000, 0, 1_700_000_000)
	ord.OracleDenom = big.NewInt(0)
	rec := djedRecord(t, ord)
	_, err := NewDjed(djedConfig()).ParseOrder(rec, 1_700_000_000)
	var schema *dex.SchemaMismatchError
	if !errors.As(err, &schema) {
		t.Fatalf("got %v, want SchemaMismatchError", err)
	}
}

func TestDjedTakerQuotes(t *testing.T) {
	now := int64(1_700_000_000)
	proto := NewDjed(djedConfig())
	st, err := proto.ParseOrder(djedRecord(t, djedFixture(djedBurn, 5_000_000, 0, now-60)), now)
	if err != nil {
		t.Fatal(err)
	}

	// Burn price is 1.97 ADA per coin: 1_000 coins cost 1_970 ADA.
	in, err := proto.TakerIn(st, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if in != 1970 {
		t.Errorf("taker in = %d, want 1970", in)
	}
	out, err := proto.TakerOut(st, 1970)
	if err != nil {
		t.Fatal(err)
	}
	if out != 1000 {
		t.Errorf("taker out = %d, want 1000", out)
	}
}

func TestDjedFillDatum(t *testing.T) {
	now := int64(1_700_000_000)
	djed := NewDjed(djedConfig()).(*stablecoin)
	st, err := djed.ParseOrder(djedRecord(t, djedFixture(djedBurn, 5_000_000, 0, now-60)), now)
	if err != nil {
		t.Fatal(err)
	}

	updated, err := djed.FillDatum(st, 3_940_000, 2_000_000)
	if err != nil {
		t.Fatal(err)
	}
	after, err := decodeDjedOrder(updated)
	if err != nil {
		t.Fatal(err)
	}
	if after.CoinAmount != 3_000_000 {
		t.Errorf("coin amount = %d, want 3000000", after.CoinAmount)
	}
}
