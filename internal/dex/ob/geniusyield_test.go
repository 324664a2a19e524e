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

func gyFixture(num, denom, original, amount int64) *gyOrder {
	return &gyOrder{
		OwnerKey:        bytes.Repeat([]byte{0x01}, 28),
		Owner:           plutus.Address{PaymentHash: bytes.Repeat([]byte{0x01}, 28)},
		OfferedUnit:     tCoin,
		OfferedOriginal: original,
		OfferedAmount:   amount,
		AskedUnit:       tADA,
		PriceNum:        big.NewInt(num),
		PriceDenom:      big.NewInt(denom),
		NFTName:         []byte{0xab},
	}
}

func gyRecord(t *testing.T, ord *gyOrder, nftUnit string) dex.Record {
	t.Helper()
	raw, err := plutus.Marshal(ord.data())
	if err != nil {
		t.Fatal(err)
	}
	return dex.Record{
		Address:   "addr1wx5d0l6u7nq3wfcz3qmjlxkgu889kav2u9d8s5wyzes6frqktgru2",
		Assets:    asset.New(tCoin, ord.OfferedAmount, nftUnit, int64(1)),
		DatumCBOR: raw,
		TxHash:    "aa11",
		TxIndex:   0,
	}
}

func TestGeniusYieldParseOrder(t *testing.T) {
	ord := gyFixture(3, 2, 1000, 600)
	rec := gyRecord(t, ord, gyPolicyV1+"ab")

	st, err := GeniusYield{}.ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if st.InUnit != tCoin || st.InAmount != 600 {
		t.Errorf("offered side = %s/%d, want %s/600", st.InUnit, st.InAmount, tCoin)
	}
	if st.OutUnit != tADA {
		t.Errorf("asked unit = %s, want %s", st.OutUnit, tADA)
	}
	if st.Price.Cmp(big.NewRat(3, 2)) != 0 {
		t.Errorf("price = %v, want 3/2", st.Price)
	}
	if st.Kind != dex.KindSwap {
		t.Errorf("kind = %s, want swap for a partially filled order", st.Kind)
	}
	if !st.Active {
		t.Error("order with no time bounds should be active")
	}
	if got := st.IdentityNFT.Unit(); got != gyPolicyV1+"ab" {
		t.Errorf("identity NFT = %s, want the order beacon", got)
	}
}

func TestGeniusYieldUntouchedOrderIsDeposit(t *testing.T) {
	rec := gyRecord(t, gyFixture(1, 1, 1000, 1000), gyPolicyV1+"ab")
	st, err := GeniusYield{}.ParseOrder(rec, 1_700_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if st.Kind != dex.KindDeposit {
		t.Errorf("kind = %s, want deposit", st.Kind)
	}
}

func TestGeniusYieldTimeWindows(t *testing.T) {
	now := int64(1_700_000_000)

	early := gyFixture(1, 1, 1000, 1000)
	early.StartTime = (now + 3600) * 1000
	st, err := GeniusYield{}.ParseOrder(gyRecord(t, early, gyPolicyV1+"ab"), now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Active {
		t.Error("order before its start time should be inactive")
	}

	expired := gyFixture(1, 1, 1000, 1000)
	expired.EndTime = (now - 3600) * 1000
	st, err = GeniusYield{}.ParseOrder(gyRecord(t, expired, gyPolicyV1+"ab"), now)
	if err != nil {
		t.Fatal(err)
	}
	if st.Active {
		t.Error("order past its end time should be inactive")
	}
}

func TestGeniusYieldMissingBeacon(t *testing.T) {
	ord := gyFixture(1, 1, 1000, 1000)
	rec := gyRecord(t, ord, "00112233445566778899aabbccddeeff00112233445566778899aabb"+"cc")
	_, err := GeniusYield{}.ParseOrder(rec, 1_700_000_000)
	var notPool *dex.NotAPoolError
	if !errors.As(err, &notPool) {
		t.Fatalf("got %v, want NotAPoolError", err)
	}
}

func TestGeniusYieldMalformedDatum(t *testing.T) {
	rec := dex.Record{DatumCBOR: []byte{0xff, 0xff}}
	_, err := GeniusYield{}.ParseOrder(rec, 0)
	var schema *dex.SchemaMismatchError
	if !errors.As(err, &schema) {
		t.Fatalf("got %v, want SchemaMismatchError", err)
	}
}

func quotedOrder(t *testing.T, ord *gyOrder, nftUnit string) *dex.OrderState {
	t.Helper()
	st, err := GeniusYield{}.ParseOrder(gyRecord(t, ord, nftUnit), 1_700_000_000)
	if err != nil {
		t.Fatal(err)
	}
	return st
}

func TestGeniusYieldTakerOutV1(t *testing.T) {
	st := quotedOrder(t, gyFixture(1, 1, 5000, 5000), gyPolicyV1+"ab")

	// 1003 pays a 0.3% taker fee leaving 1000 on a unit price grid.
	out, err := GeniusYield{}.TakerOut(st, 1003)
	if err != nil {
		t.Fatal(err)
	}
	if out != 1000 {
		t.Errorf("got %d, want 1000", out)
	}

	// With price 3/2 the net payment snaps down to the grid first.
	st = quotedOrder(t, gyFixture(3, 2, 5000, 5000), gyPolicyV1+"ab")
	out, err = GeniusYield{}.TakerOut(st, 1003)
	if err != nil {
		t.Fatal(err)
	}
	if out != 666 {
		t.Errorf("got %d, want 666", out)
	}
}

func TestGeniusYieldTakerOutV11RoundsAgainstTaker(t *testing.T) {
	st := quotedOrder(t, gyFixture(1, 1, 5000, 5000), gyPolicyV11+"ab")
	out, err := GeniusYield{}.TakerOut(st, 1003)
	if err != nil {
		t.Fatal(err)
	}
	if out != 999 {
		t.Errorf("got %d, want 999", out)
	}
}

func TestGeniusYieldTakerOutCapsAtAvailable(t *testing.T) {
	st := quotedOrder(t, gyFixture(1, 1, 500, 500), gyPolicyV1+"ab")
	out, err := GeniusYield{}.TakerOut(st, 10_000_000)
	if err != nil {
		t.Fatal(err)
	}
	if out != 500 {
		t.Errorf("got %d, want the 500 remaining", out)
	}
}

func TestGeniusYieldTakerInCoversTakerOut(t *testing.T) {
	st := quotedOrder(t, gyFixture(1, 1, 5000, 5000), gyPolicyV1+"ab")
	in, err := GeniusYield{}.TakerIn(st, 1000)
	if err != nil {
		t.Fatal(err)
	}
	if in != 1003 {
		t.Errorf("got %d, want 1003", in)
	}
	out, err := GeniusYield{}.TakerOut(st, in)
	if err != nil {
		t.Fatal(err)
	}
	if out < 1000 {
		t.Errorf("paying the quoted %d only yields %d, want at least 1000", in, out)
	}
}

func TestGeniusYieldFillDatum(t *testing.T) {
	ord := gyFixture(1, 1, 1000, 1000)
	ord.MakerFee = 500_000
	st := quotedOrder(t, ord, gyPolicyV1+"ab")

	updated, err := GeniusYield{}.FillDatum(st, 1003, 1000)
	if err != nil {
		t.Fatal(err)
	}
	after, err := decodeGYOrder(updated)
	if err != nil {
		t.Fatal(err)
	}
	if after.OfferedAmount != 0 {
		t.Errorf("offered amount = %d, want 0", after.OfferedAmount)
	}
	if after.PartialFills != 1 {
		t.Errorf("partial fills = %d, want 1", after.PartialFills)
	}
	if after.FeeLovelace != 500_000 {
		t.Errorf("contained lovelace fee = %d, want the maker fee", after.FeeLovelace)
	}
	if after.FeeAsked != 3 {
		t.Errorf("contained asked fee = %d, want 3", after.FeeAsked)
	}
	if after.Payment != 1000 {
		t.Errorf("contained payment = %d, want 1000", after.Payment)
	}
}
