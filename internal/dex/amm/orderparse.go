package amm

import (
	"fmt"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
	"DexLedger/internal/plutus"
)

// lpUnit stands in for the pool-specific LP token in deposit-order
// requested amounts; the concrete unit is only known pool-side.
const lpUnit = "lp"

// orderTriple decodes one [policy, name, quantity] entry of the CSwap
// asset lists.
func orderTriple(d plutus.Data) (string, int64, error) {
	entry, err := plutus.AsList(d)
	if err != nil {
		return "", 0, err
	}
	if len(entry) != 3 {
		return "", 0, fmt.Errorf("asset entry has %d items, want 3", len(entry))
	}
	policy, err := plutus.AsBytes(entry[0])
	if err != nil {
		return "", 0, err
	}
	name, err := plutus.AsBytes(entry[1])
	if err != nil {
		return "", 0, err
	}
	qty, err := plutus.AsInt(entry[2])
	if err != nil {
		return "", 0, err
	}
	return unitFromParts(policy, name), qty, nil
}

// ParseOrder decodes the CSwap order record. The target list carries a
// 2 ADA minimum-output entry alongside the real request on token-out
// orders; that entry is bookkeeping, not a requested amount. Zap orders
// still request a single output and match as swaps.
func (cs CSwap) ParseOrder(rec dex.Record, _ int64) (*dex.OrderState, error) {
	d, err := plutus.Unmarshal(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
	}
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
	}
	if len(c.Fields) != 6 {
		return nil, &dex.SchemaMismatchError{
			Protocol: cs.Name(),
			Err:      fmt.Errorf("order datum has %d fields, want 6", len(c.Fields)),
		}
	}
	owner, err := plutus.DecodeAddress(c.Fields[0])
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
	}

	targets, err := c.ListField(1)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
	}
	var outUnit string
	var minReceive int64
	for _, t := range targets {
		unit, qty, err := orderTriple(t)
		if err != nil {
			return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
		}
		if unit == asset.Lovelace && qty <= cswapDeposit {
			continue
		}
		outUnit, minReceive = unit, qty
		break
	}
	if outUnit == "" {
		return nil, &dex.SchemaMismatchError{
			Protocol: cs.Name(),
			Err:      fmt.Errorf("order datum requests no output"),
		}
	}

	inputs, err := c.ListField(2)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
	}
	if len(inputs) == 0 {
		return nil, &dex.SchemaMismatchError{
			Protocol: cs.Name(),
			Err:      fmt.Errorf("order datum declares no input"),
		}
	}
	inUnit, _, err := orderTriple(inputs[0])
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
	}

	otype, err := c.ConstrField(3)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
	}
	if otype.Alternative > 2 {
		return nil, &dex.SchemaMismatchError{
			Protocol: cs.Name(),
			Err:      fmt.Errorf("unknown order type %d", otype.Alternative),
		}
	}
	if _, err := c.IntField(4); err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
	}
	if _, err := c.IntField(5); err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: cs.Name(), Err: err}
	}

	return &dex.OrderState{
		Protocol:   cs.Name(),
		Address:    rec.Address,
		TxHash:     rec.TxHash,
		TxIndex:    rec.TxIndex,
		Kind:       dex.KindSwap,
		Owner:      owner,
		InUnit:     inUnit,
		InAmount:   rec.Assets.QuantityOf(inUnit),
		OutUnit:    outUnit,
		MinReceive: minReceive,
		BatcherFee: cswapBatcherFee,
		Deposit:    cswapDeposit,
		Active:     true,
		Datum:      d,
	}, nil
}

// ParseOrder decodes the Spectrum order record: asset classes, the fee
// modifier, the executor-reward rational and the owner credentials.
func (s Spectrum) ParseOrder(rec dex.Record, _ int64) (*dex.OrderState, error) {
	d, err := plutus.Unmarshal(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}
	if len(c.Fields) != 10 {
		return nil, &dex.SchemaMismatchError{
			Protocol: s.Name(),
			Err:      fmt.Errorf("order datum has %d fields, want 10", len(c.Fields)),
		}
	}
	inUnit, err := assetClassField(c, 0)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}
	outUnit, err := assetClassField(c, 1)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}
	if _, err := assetClassField(c, 2); err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}
	if _, err := c.IntField(3); err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}
	// The executor-reward rational can exceed 64 bits; presence is all
	// that is checked.
	for _, i := range []int{4, 5} {
		f, err := c.Field(i)
		if err != nil {
			return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
		}
		if _, ok := f.(plutus.Int); !ok {
			return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: plutus.ErrNotInt}
		}
	}
	payment, err := c.BytesField(6)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}
	owner := plutus.Address{PaymentHash: payment}
	stake, err := c.ConstrField(7)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}
	switch stake.Alternative {
	case 0:
		if owner.StakeHash, err = stake.BytesField(0); err != nil {
			return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
		}
	case 1:
	default:
		return nil, &dex.SchemaMismatchError{
			Protocol: s.Name(),
			Err:      fmt.Errorf("staking part alternative %d", stake.Alternative),
		}
	}
	amount, err := c.IntField(8)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}
	minReceive, err := c.IntField(9)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: s.Name(), Err: err}
	}

	return &dex.OrderState{
		Protocol:   s.Name(),
		Address:    rec.Address,
		TxHash:     rec.TxHash,
		TxIndex:    rec.TxIndex,
		Kind:       dex.KindSwap,
		Owner:      owner,
		InUnit:     inUnit,
		InAmount:   amount,
		OutUnit:    outUnit,
		MinReceive: minReceive,
		BatcherFee: spectrumBatcherFee,
		Deposit:    spectrumDeposit,
		Active:     true,
		Datum:      d,
	}, nil
}

// ParseOrder is not modeled for Splash; records at the shared script
// address classify as pools or are skipped.
func (s Splash) ParseOrder(dex.Record, int64) (*dex.OrderState, error) {
	return nil, &dex.NotAPoolError{Protocol: s.Name(), Reason: "order datum layout not modeled"}
}

// ParseOrder is not modeled for Minswap V2.
func (m MinswapV2) ParseOrder(dex.Record, int64) (*dex.OrderState, error) {
	return nil, &dex.NotAPoolError{Protocol: m.Name(), Reason: "order datum layout not modeled"}
}

// ParseOrder decodes the first-generation WingRiders order record: a
// config carrying the owner, expiration and declared pair, and a detail
// variant selecting the action. Orders past their expiration are
// inactive.
func (w *wingRiders) ParseOrder(rec dex.Record, now int64) (*dex.OrderState, error) {
	d, err := plutus.Unmarshal(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	if len(c.Fields) != 2 {
		return nil, &dex.SchemaMismatchError{
			Protocol: w.name,
			Err:      fmt.Errorf("order datum has %d fields, want 2", len(c.Fields)),
		}
	}
	config, err := c.ConstrField(0)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	if len(config.Fields) != 4 {
		return nil, &dex.SchemaMismatchError{
			Protocol: w.name,
			Err:      fmt.Errorf("order config has %d fields, want 4", len(config.Fields)),
		}
	}
	owner, err := plutus.DecodeAddress(config.Fields[0])
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	if _, err := config.BytesField(1); err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	expiration, err := config.IntField(2)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	pair, err := config.ConstrField(3)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	unitA, err := assetClassField(pair, 0)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	unitB, err := assetClassField(pair, 1)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	detail, err := c.ConstrField(1)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}

	o := &dex.OrderState{
		Protocol: w.name,
		Address:  rec.Address,
		TxHash:   rec.TxHash,
		TxIndex:  rec.TxIndex,
		Owner:    owner,
		EndTime:  expiration,
		Active:   expiration == 0 || expiration/1000 >= now,
		Datum:    d,
	}
	if err := wrApplyDetail(o, detail, unitA, unitB, rec); err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	return o, nil
}

// wrApplyDetail fills the action-dependent order fields from a v1 detail
// variant: swap(direction, min_receive), deposit(min_lp), withdraw(min_a,
// min_b), fee-claim, stake-reward.
func wrApplyDetail(o *dex.OrderState, detail plutus.Constr, unitA, unitB string, rec dex.Record) error {
	switch detail.Alternative {
	case 0:
		dir, err := detail.ConstrField(0)
		if err != nil {
			return err
		}
		if dir.Alternative > 1 {
			return fmt.Errorf("swap direction %d", dir.Alternative)
		}
		min, err := detail.IntField(1)
		if err != nil {
			return err
		}
		o.Kind = dex.KindSwap
		o.InUnit, o.OutUnit = unitA, unitB
		if dir.Alternative == 1 {
			o.InUnit, o.OutUnit = unitB, unitA
		}
		o.InAmount = rec.Assets.QuantityOf(o.InUnit)
		o.MinReceive = min
	case 1:
		min, err := detail.IntField(0)
		if err != nil {
			return err
		}
		o.Kind = dex.KindDeposit
		o.InUnit = unitA
		o.InAmount = rec.Assets.QuantityOf(unitA)
		o.OutUnit = lpUnit
		o.MinReceive = min
	case 2:
		minA, err := detail.IntField(0)
		if err != nil {
			return err
		}
		minB, err := detail.IntField(1)
		if err != nil {
			return err
		}
		o.Kind = dex.KindWithdraw
		o.InUnit, o.OutUnit = unitA, unitB
		o.MinReceiveA, o.MinReceiveB = minA, minB
	case 3, 4:
		o.Kind = dex.KindOther
		o.InUnit, o.OutUnit = unitA, unitB
	default:
		return fmt.Errorf("unknown order detail %d", detail.Alternative)
	}
	return nil
}

// ParseOrder decodes the second-generation WingRiders order record: oil
// deposit, beneficiary and owner addresses, compensation datum slot,
// deadline, the declared pair and an action variant.
func (w *wingRidersV2) ParseOrder(rec dex.Record, now int64) (*dex.OrderState, error) {
	d, err := plutus.Unmarshal(rec.DatumCBOR)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	c, err := plutus.MustConstr(d, 0)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	if len(c.Fields) != 13 {
		return nil, &dex.SchemaMismatchError{
			Protocol: w.name,
			Err:      fmt.Errorf("order datum has %d fields, want 13", len(c.Fields)),
		}
	}
	oil, err := c.IntField(0)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	if _, err := plutus.DecodeAddress(c.Fields[1]); err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	owner, err := plutus.DecodeAddress(c.Fields[2])
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	// Field 3 is the free-form compensation datum; only the type tag at
	// field 4 is validated.
	compType, err := c.ConstrField(4)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	if compType.Alternative > 2 {
		return nil, &dex.SchemaMismatchError{
			Protocol: w.name,
			Err:      fmt.Errorf("compensation datum type %d", compType.Alternative),
		}
	}
	deadline, err := c.IntField(5)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	aPolicy, err := c.BytesField(6)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	aName, err := c.BytesField(7)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	bPolicy, err := c.BytesField(8)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	bName, err := c.BytesField(9)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	unitA := unitFromParts(aPolicy, aName)
	unitB := unitFromParts(bPolicy, bName)
	action, err := c.ConstrField(10)
	if err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	for _, i := range []int{11, 12} {
		if _, err := c.IntField(i); err != nil {
			return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
		}
	}

	o := &dex.OrderState{
		Protocol: w.name,
		Address:  rec.Address,
		TxHash:   rec.TxHash,
		TxIndex:  rec.TxIndex,
		Owner:    owner,
		EndTime:  deadline,
		Deposit:  oil,
		Active:   deadline == 0 || deadline/1000 >= now,
		Datum:    d,
	}
	if err := wrV2ApplyAction(o, action, unitA, unitB, rec); err != nil {
		return nil, &dex.SchemaMismatchError{Protocol: w.name, Err: err}
	}
	return o, nil
}

// wrV2ApplyAction fills the action-dependent order fields from a v2
// action variant: swap(direction, min), add-liquidity(min),
// withdraw-liquidity(min_a, min_b), withdraw-project, withdraw-protocol.
func wrV2ApplyAction(o *dex.OrderState, action plutus.Constr, unitA, unitB string, rec dex.Record) error {
	switch action.Alternative {
	case 0:
		dir, err := action.ConstrField(0)
		if err != nil {
			return err
		}
		if dir.Alternative > 1 {
			return fmt.Errorf("swap direction %d", dir.Alternative)
		}
		min, err := action.IntField(1)
		if err != nil {
			return err
		}
		o.Kind = dex.KindSwap
		o.InUnit, o.OutUnit = unitA, unitB
		if dir.Alternative == 1 {
			o.InUnit, o.OutUnit = unitB, unitA
		}
		o.InAmount = rec.Assets.QuantityOf(o.InUnit)
		o.MinReceive = min
	case 1:
		min, err := action.IntField(0)
		if err != nil {
			return err
		}
		o.Kind = dex.KindDeposit
		o.InUnit = unitA
		o.InAmount = rec.Assets.QuantityOf(unitA)
		o.OutUnit = lpUnit
		o.MinReceive = min
	case 2:
		minA, err := action.IntField(0)
		if err != nil {
			return err
		}
		minB, err := action.IntField(1)
		if err != nil {
			return err
		}
		o.Kind = dex.KindWithdraw
		o.InUnit, o.OutUnit = unitA, unitB
		o.MinReceiveA, o.MinReceiveB = minA, minB
	case 3, 4:
		o.Kind = dex.KindOther
		o.InUnit, o.OutUnit = unitA, unitB
	default:
		return fmt.Errorf("unknown order action %d", action.Alternative)
	}
	return nil
}
