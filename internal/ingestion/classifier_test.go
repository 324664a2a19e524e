package ingestion

import (
	"encoding/json"
	"testing"

	"github.com/rs/zerolog"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/observability"
	"DexLedger/internal/plutus"
	"DexLedger/internal/state"
)

// metrics register against the default Prometheus registry, once per
// process.
var testMetrics = observability.NewMetrics()

type stubAMM struct{}

func (stubAMM) Name() string             { return "stubamm" }
func (stubAMM) PoolAddresses() []string  { return nil }
func (stubAMM) OrderAddresses() []string { return []string{"addr_stub_orders"} }

func (stubAMM) ParseOrder(rec dex.Record, now int64) (*dex.OrderState, error) {
	if len(rec.DatumCBOR) == 0 {
		return nil, &dex.SchemaMismatchError{Protocol: "stubamm"}
	}
	return &dex.OrderState{
		Protocol: "stubamm",
		Address:  rec.Address,
		TxHash:   rec.TxHash,
		TxIndex:  rec.TxIndex,
		Kind:     dex.KindSwap,
		InUnit:   asset.Lovelace,
		InAmount: 50,
		OutUnit:  "tok",
		Active:   true,
	}, nil
}

func (stubAMM) ParsePool(rec dex.Record) (*dex.PoolState, error) {
	if len(rec.DatumCBOR) == 0 {
		return nil, &dex.NotAPoolError{Protocol: "stubamm", Reason: "no datum"}
	}
	return &dex.PoolState{
		Protocol: "stubamm",
		TxHash:   rec.TxHash,
		TxIndex:  rec.TxIndex,
		UnitA:    asset.Lovelace,
		UnitB:    "tok",
		PoolNFT:  asset.Single("nft"+rec.TxHash, 1),
		Active:   true,
	}, nil
}

func (stubAMM) AmountOut(p *dex.PoolState, inUnit string, amount int64) (dex.Quote, error) {
	return dex.Quote{}, nil
}

func (stubAMM) AmountIn(p *dex.PoolState, outUnit string, amount int64) (dex.Quote, error) {
	return dex.Quote{}, nil
}

func (stubAMM) BatcherFee(adaInOut int64, wallet map[string]int64) (int64, int64) {
	return 0, 0
}

func (stubAMM) SwapOrder(p *dex.PoolState, owner plutus.Address, in, out asset.Bag, deadline int64) (plutus.Data, error) {
	return nil, nil
}

type stubOrders struct{}

func (stubOrders) Name() string             { return "stubob" }
func (stubOrders) OrderAddresses() []string { return nil }

func (stubOrders) ParseOrder(rec dex.Record, now int64) (*dex.OrderState, error) {
	if len(rec.DatumCBOR) == 0 {
		return nil, &dex.SchemaMismatchError{Protocol: "stubob"}
	}
	return &dex.OrderState{
		Protocol: "stubob",
		TxHash:   rec.TxHash,
		TxIndex:  rec.TxIndex,
		InUnit:   "tok",
		InAmount: 100,
		OutUnit:  asset.Lovelace,
		Active:   true,
	}, nil
}

func (stubOrders) TakerOut(o *dex.OrderState, pay int64) (int64, error) { return pay, nil }
func (stubOrders) TakerIn(o *dex.OrderState, want int64) (int64, error) { return want, nil }

func testClassifier(t *testing.T) (*Classifier, *state.Store) {
	t.Helper()
	reg := dex.NewRegistry()
	reg.RegisterAMM(stubAMM{})
	reg.RegisterOrderProtocol(stubOrders{})
	st := state.NewStore()
	c := NewClassifier(reg, st, testMetrics, observability.NewLoggerWithLevel("test", zerolog.Disabled))
	return c, st
}

func rawMsg(t *testing.T, subject string, v any) RawMsg {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return RawMsg{Subject: subject, Data: data, Ack: func() {}, Nak: func() {}}
}

func recordPayload(tx string, datum string) map[string]any {
	return map[string]any{
		"address":    "addr1qxyz",
		"tx_hash":    tx,
		"tx_index":   0,
		"datum_cbor": datum,
		"assets":     map[string]string{"lovelace": "2000000"},
	}
}

func TestHandleClassifiesPool(t *testing.T) {
	c, st := testClassifier(t)
	c.Handle(rawMsg(t, SubjectCreated+".stubamm", recordPayload("aa", "d879")))

	pools, _ := st.Counts()
	if pools != 1 {
		t.Fatalf("pools = %d, want 1", pools)
	}
}

func TestHandleClassifiesOrder(t *testing.T) {
	c, st := testClassifier(t)
	c.Handle(rawMsg(t, SubjectCreated+".stubob", recordPayload("bb", "d879")))

	if _, ok := st.Order("bb#0"); !ok {
		t.Fatal("order bb#0 not stored")
	}
}

func TestHandleRoutesAMMOrderAddress(t *testing.T) {
	c, st := testClassifier(t)
	payload := recordPayload("ff", "d879")
	payload["address"] = "addr_stub_orders"
	c.Handle(rawMsg(t, SubjectCreated+".stubamm", payload))

	o, ok := st.Order("ff#0")
	if !ok {
		t.Fatal("order ff#0 not stored")
	}
	if o.Protocol != "stubamm" || o.Kind != dex.KindSwap {
		t.Errorf("order = %s %v", o.Protocol, o.Kind)
	}
	pools, _ := st.Counts()
	if pools != 0 {
		t.Errorf("pools = %d, want 0", pools)
	}
}

func TestHandleSkipsRecoverable(t *testing.T) {
	c, st := testClassifier(t)
	c.Handle(rawMsg(t, SubjectCreated+".stubamm", recordPayload("cc", "")))

	pools, orders := st.Counts()
	if pools != 0 || orders != 0 {
		t.Errorf("store = %d pools %d orders, want empty", pools, orders)
	}
}

func TestHandleSpentRemovesOrder(t *testing.T) {
	c, st := testClassifier(t)
	c.Handle(rawMsg(t, SubjectCreated+".stubob", recordPayload("dd", "d879")))
	c.Handle(rawMsg(t, SubjectSpent, map[string]any{"tx_hash": "dd", "tx_index": 0}))

	if _, ok := st.Order("dd#0"); ok {
		t.Error("order dd#0 still present after spend")
	}
}

func TestHandleUnknownProtocol(t *testing.T) {
	c, st := testClassifier(t)
	c.Handle(rawMsg(t, SubjectCreated+".nosuch", recordPayload("ee", "d879")))

	pools, orders := st.Counts()
	if pools != 0 || orders != 0 {
		t.Error("record for unknown protocol was stored")
	}
}

func TestProtocolFromSubject(t *testing.T) {
	if got := protocolFromSubject("dex.utxo.created.cswap"); got != "cswap" {
		t.Errorf("protocolFromSubject = %q, want cswap", got)
	}
	if got := protocolFromSubject("dex.utxo.spent"); got != "" {
		t.Errorf("protocolFromSubject(spent) = %q, want empty", got)
	}
}

func TestSkipReason(t *testing.T) {
	cases := []struct {
		err  error
		want string
	}{
		{&dex.NotAPoolError{Protocol: "p"}, "not_a_pool"},
		{&dex.InvalidLPError{Protocol: "p"}, "invalid_lp"},
		{&dex.SchemaMismatchError{Protocol: "p"}, "schema_mismatch"},
		{&dex.MalformedAssetError{Protocol: "p"}, "malformed_asset"},
		{&dex.NoAssetsError{Protocol: "p"}, "no_assets"},
	}
	for _, tc := range cases {
		if got := skipReason(tc.err); got != tc.want {
			t.Errorf("skipReason(%T) = %q, want %q", tc.err, got, tc.want)
		}
	}
}

func TestParseRecordRejectsBadHex(t *testing.T) {
	data, _ := json.Marshal(recordPayload("ff", "zz"))
	if _, err := ParseRecord(data); err == nil {
		t.Error("bad datum hex accepted")
	}
}
