package amm

import (
	"fmt"
	"strings"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
)

// classifier drives the shared pool-recognition lifecycle: pull the pair
// aside, extract the dex/LP/pool identity tokens, restore the pair, then
// validate the remaining unit count. Protocols configure it with unit
// predicates; a nil predicate skips that extraction step.
type classifier struct {
	protocol   string
	dexMatch   func(unit string) bool
	poolMatch  func(unit string) bool
	lpMatch    func(unit string) bool
	lpRequired bool
}

// classified is the outcome of the recognition steps: the normalized
// balance with identity tokens removed, plus the extracted tokens.
type classified struct {
	assets  asset.Bag
	dexNFT  asset.Bag
	poolNFT asset.Bag
	lp      asset.Bag
}

// prefixMatch builds a unit predicate from one or more policy (or
// policy+name) hex prefixes.
func prefixMatch(prefixes ...string) func(string) bool {
	return func(unit string) bool {
		for _, p := range prefixes {
			if strings.HasPrefix(unit, p) {
				return true
			}
		}
		return false
	}
}

// classify runs the recognition state machine over one record. pair lists
// the reserve units the decoded datum declares; they are removed while the
// identity checks run so a pool asset can never be mistaken for an identity
// token, and restored afterwards. When rec carries pre-extracted tokens the
// extraction is skipped and only re-validated.
func (c classifier) classify(rec dex.Record, pair []string) (classified, error) {
	if rec.Assets.Len() == 0 {
		return classified{}, &dex.NoAssetsError{Protocol: c.protocol}
	}
	assets := rec.Assets.Clone()

	held := asset.Bag{}
	for _, unit := range pair {
		if !assets.Contains(unit) {
			return classified{}, &dex.NotAPoolError{
				Protocol: c.protocol,
				Reason:   fmt.Sprintf("missing declared pair asset %s", unit),
			}
		}
		held = held.AddQuantity(unit, assets.QuantityOf(unit))
		assets = assets.Without(unit)
	}

	out := classified{}
	var err error

	if c.dexMatch != nil {
		out.dexNFT, assets, err = c.extractOne(rec.DexNFT, assets, c.dexMatch, "dex")
		if err != nil {
			return classified{}, err
		}
	}
	if c.lpMatch != nil {
		out.lp, assets, err = c.extractLP(rec.LPTokens, assets)
		if err != nil {
			return classified{}, err
		}
	}
	if c.poolMatch != nil {
		out.poolNFT, assets, err = c.extractOne(rec.PoolNFT, assets, c.poolMatch, "pool")
		if err != nil {
			return classified{}, err
		}
	}

	for _, unit := range held.Units() {
		assets = assets.AddQuantity(unit, held.QuantityOf(unit))
	}

	out.assets, err = c.normalize(assets)
	if err != nil {
		return classified{}, err
	}
	return out, nil
}

// extractOne locates a single identity token with quantity exactly 1. A
// pre-extracted bag is validated against the predicate instead of rescanned.
func (c classifier) extractOne(pre asset.Bag, assets asset.Bag, match func(string) bool, what string) (asset.Bag, asset.Bag, error) {
	if pre.Len() > 0 {
		if !match(pre.Unit()) {
			return asset.Bag{}, assets, &dex.NotAPoolError{
				Protocol: c.protocol,
				Reason:   fmt.Sprintf("pre-extracted %s token %s does not match", what, pre.Unit()),
			}
		}
		return pre, assets, nil
	}
	var found string
	for _, unit := range assets.Units() {
		if match(unit) {
			if found != "" {
				return asset.Bag{}, assets, &dex.NotAPoolError{
					Protocol: c.protocol,
					Reason:   fmt.Sprintf("more than one %s identity token", what),
				}
			}
			found = unit
		}
	}
	if found == "" {
		return asset.Bag{}, assets, &dex.NotAPoolError{
			Protocol: c.protocol,
			Reason:   fmt.Sprintf("no %s identity token", what),
		}
	}
	if qty := assets.QuantityOf(found); qty != 1 {
		return asset.Bag{}, assets, &dex.NotAPoolError{
			Protocol: c.protocol,
			Reason:   fmt.Sprintf("%s identity token %s has quantity %d, want 1", what, found, qty),
		}
	}
	return asset.Single(found, 1), assets.Without(found), nil
}

// extractLP removes staked liquidity tokens from the balance. Unlike the
// identity tokens an LP balance may be absent or larger than 1.
func (c classifier) extractLP(pre asset.Bag, assets asset.Bag) (asset.Bag, asset.Bag, error) {
	if pre.Len() > 0 {
		if !c.lpMatch(pre.Unit()) {
			return asset.Bag{}, assets, &dex.InvalidLPError{
				Protocol: c.protocol,
				Reason:   fmt.Sprintf("pre-extracted liquidity token %s does not match", pre.Unit()),
			}
		}
		return pre, assets, nil
	}
	for _, unit := range assets.Units() {
		if c.lpMatch(unit) {
			lp := asset.Single(unit, assets.QuantityOf(unit))
			return lp, assets.Without(unit), nil
		}
	}
	if c.lpRequired {
		return asset.Bag{}, assets, &dex.InvalidLPError{
			Protocol: c.protocol,
			Reason:   "no liquidity token in record",
		}
	}
	return asset.Bag{}, assets, nil
}

// normalize checks the residual unit count: an ADA pair has two units with
// one non-ADA asset, a token pair has three with the native balance moved
// last.
func (c classifier) normalize(assets asset.Bag) (asset.Bag, error) {
	nonAda := 0
	for _, unit := range assets.Units() {
		if unit != asset.Lovelace {
			nonAda++
		}
	}
	switch assets.Len() {
	case 2:
		if nonAda != 1 {
			return asset.Bag{}, &dex.MalformedAssetError{
				Protocol: c.protocol,
				Reason:   fmt.Sprintf("pool with 2 units must hold 1 non-ADA asset, found %d", nonAda),
			}
		}
		return assets, nil
	case 3:
		if nonAda != 2 {
			return asset.Bag{}, &dex.MalformedAssetError{
				Protocol: c.protocol,
				Reason:   fmt.Sprintf("pool with 3 units must hold 2 non-ADA assets, found %d", nonAda),
			}
		}
		return assets.LovelaceLast(), nil
	case 1:
		if assets.Contains(asset.Lovelace) {
			return asset.Bag{}, &dex.NoAssetsError{Protocol: c.protocol}
		}
		fallthrough
	default:
		return asset.Bag{}, &dex.MalformedAssetError{
			Protocol: c.protocol,
			Reason:   fmt.Sprintf("pool must hold 2 or 3 units after identity extraction, found %d", assets.Len()),
		}
	}
}

// pairUnits reads the first two units of a normalized balance.
func pairUnits(assets asset.Bag) (string, string) {
	return assets.UnitAt(0), assets.UnitAt(1)
}
