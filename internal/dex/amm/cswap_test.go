package amm

import (
	"encoding/hex"
	"errors"
	"testing"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

const cswapNFT = "cc0000000000000000000000000000000000000000000000000000cc63"

func cswapDatum(t *testing.T) []byte {
	t.Helper()
	policy, err := hex.DecodeString(tPolicy)
	if err != nil {
		t.Fatal(err)
	}
	// total LP, pool fee, quote class (ADA), base class, LP class
	raw, err := plutus.Marshal(plutus.NewConstr(0,
		plutus.NewInt(1_000_000),
		plutus.NewInt(cswapDefaultFee),
		plutus.Bytes{}, plutus.Bytes{},
		plutus.Bytes(policy),
		plutus.Bytes([]byte("tok")),
		plutus.Bytes(policy),
		plutus.Bytes([]byte("lp")),
	))
	if err != nil {
		t.Fatalf("marshal datum: %v", err)
	}
	return raw
}

func cswapRecord(t *testing.T, assets asset.Bag) dex.Record {
	t.Helper()
	return dex.Record{
		Address:   "addr1qxyz",
		TxHash:    "aa",
		TxIndex:   0,
		Assets:    assets,
		DatumCBOR: cswapDatum(t),
	}
}

func TestCSwapParsePool(t *testing.T) {
	rec := cswapRecord(t, asset.New(asset.Lovelace, 1_000_000_000, tTok, 2_000_000_000, cswapNFT, 1))
	p, err := CSwap{}.ParsePool(rec)
	if err != nil {
		t.Fatalf("ParsePool: %v", err)
	}

	if p.UnitA != asset.Lovelace || p.UnitB != tTok {
		t.Errorf("pair = %s-%s", p.UnitA, p.UnitB)
	}
	if got := p.ReserveA(); got != 1_000_000_000-cswapMaintenance {
		t.Errorf("ReserveA = %d, want maintenance deducted", got)
	}
	if got := p.ReserveB(); got != 2_000_000_000 {
		t.Errorf("ReserveB = %d", got)
	}
	if p.PoolNFT.Unit() != cswapNFT {
		t.Errorf("PoolNFT = %s", p.PoolNFT)
	}
	if want := int64(cswapDefaultFee + cswapPlatformFee); p.Fees.NumA != want || p.Fees.NumB != want {
		t.Errorf("fees = %+v, want %d both ways", p.Fees, want)
	}
	if !p.Active {
		t.Error("pool not active")
	}
}

func TestCSwapParsePoolRejectsIdentityQuantity(t *testing.T) {
	rec := cswapRecord(t, asset.New(asset.Lovelace, 1_000_000_000, tTok, 2_000_000_000, cswapNFT, 2))
	_, err := CSwap{}.ParsePool(rec)

	var notAPool *dex.NotAPoolError
	if !errors.As(err, &notAPool) {
		t.Fatalf("err = %v, want NotAPoolError", err)
	}
}

func TestCSwapParsePoolRejectsBadDatum(t *testing.T) {
	rec := dex.Record{
		Address:   "addr1qxyz",
		TxHash:    "aa",
		Assets:    asset.New(asset.Lovelace, 1_000, tTok, 2_000, cswapNFT, 1),
		DatumCBOR: []byte{0xff, 0x00},
	}
	_, err := CSwap{}.ParsePool(rec)

	var schema *dex.SchemaMismatchError
	if !errors.As(err, &schema) {
		t.Fatalf("err = %v, want SchemaMismatchError", err)
	}
}

func cswapQuotePool() *dex.PoolState {
	return &dex.PoolState{
		Protocol: "CSWAP",
		UnitA:    asset.Lovelace,
		UnitB:    tTok,
		Reserves: asset.New(asset.Lovelace, 1_000_000_000, tTok, 2_000_000_000),
		PoolNFT:  asset.Single(cswapNFT, 1),
		Fees:     dex.Fees{Basis: 10000, NumA: 30, NumB: 30},
		Active:   true,
	}
}

func TestCSwapAmountOut(t *testing.T) {
	q, err := CSwap{}.AmountOut(cswapQuotePool(), asset.Lovelace, 10_000_000)
	if err != nil {
		t.Fatalf("AmountOut: %v", err)
	}
	if q.Amount.Unit() != tTok || q.Amount.Quantity() != 19_743_160 {
		t.Errorf("quote = %s, want %s x19743160", q.Amount, tTok)
	}
	if q.Slippage < 0 || q.Slippage > 0.05 {
		t.Errorf("slippage = %f out of range", q.Slippage)
	}
}

func TestCSwapAmountInCoversOut(t *testing.T) {
	cs := CSwap{}
	p := cswapQuotePool()

	out, err := cs.AmountOut(p, asset.Lovelace, 10_000_000)
	if err != nil {
		t.Fatal(err)
	}
	in, err := cs.AmountIn(p, tTok, out.Amount.Quantity())
	if err != nil {
		t.Fatal(err)
	}
	if got := in.Amount.Quantity(); got > 10_000_000 {
		t.Errorf("AmountIn = %d, must not exceed the original input", got)
	}
}

func TestCSwapRejectsNonADAPair(t *testing.T) {
	other := "ee0000000000000000000000000000000000000000000000000000ee6f7468"
	p := &dex.PoolState{
		Protocol: "CSWAP",
		UnitA:    tTok,
		UnitB:    other,
		Reserves: asset.New(tTok, 1_000, other, 2_000),
		Fees:     dex.Fees{Basis: 10000, NumA: 30, NumB: 30},
	}
	if _, err := (CSwap{}).AmountOut(p, tTok, 100); err == nil {
		t.Error("non-ADA pair accepted")
	}
}

func TestCSwapRejectsForeignUnit(t *testing.T) {
	if _, err := (CSwap{}).AmountOut(cswapQuotePool(), "ff00", 100); err == nil {
		t.Error("unit outside the pair accepted")
	}
}
