package asset

import (
	"fmt"
	"sort"
	"strings"
)

// Lovelace is the unit of the ledger's native currency.
const Lovelace = "lovelace"

// policyHexLen is the length of a hex-encoded minting policy id. Units for
// non-native assets are policy+name concatenated as hex.
const policyHexLen = 56

// PolicyID returns the policy portion of a unit, or "" for lovelace.
func PolicyID(unit string) string {
	if unit == Lovelace || len(unit) < policyHexLen {
		return ""
	}
	return unit[:policyHexLen]
}

// Name returns the hex-encoded asset name portion of a unit.
func Name(unit string) string {
	if unit == Lovelace || len(unit) < policyHexLen {
		return ""
	}
	return unit[policyHexLen:]
}

// Bag is an ordered multi-asset quantity bag. Keys are asset units, values
// are exact signed integer quantities. Operations return new bags; a Bag is
// never mutated after it is handed to a caller.
type Bag struct {
	units      []string
	quantities map[string]int64
}

// New builds a bag from alternating unit/quantity pairs in the given order.
func New(pairs ...any) Bag {
	if len(pairs)%2 != 0 {
		panic("asset.New: pairs must be unit, quantity alternating")
	}
	b := Bag{quantities: make(map[string]int64, len(pairs)/2)}
	for i := 0; i < len(pairs); i += 2 {
		unit, ok := pairs[i].(string)
		if !ok {
			panic(fmt.Sprintf("asset.New: unit at %d is not a string", i))
		}
		var qty int64
		switch v := pairs[i+1].(type) {
		case int:
			qty = int64(v)
		case int64:
			qty = v
		default:
			panic(fmt.Sprintf("asset.New: quantity at %d is not an integer", i+1))
		}
		b.set(unit, qty)
	}
	return b
}

// FromMap builds a bag with units sorted lexicographically, lovelace first.
func FromMap(m map[string]int64) Bag {
	units := make([]string, 0, len(m))
	for unit := range m {
		if unit == Lovelace {
			continue
		}
		units = append(units, unit)
	}
	sort.Strings(units)
	b := Bag{quantities: make(map[string]int64, len(m))}
	if qty, ok := m[Lovelace]; ok {
		b.set(Lovelace, qty)
	}
	for _, unit := range units {
		b.set(unit, m[unit])
	}
	return b
}

func (b *Bag) set(unit string, qty int64) {
	if b.quantities == nil {
		b.quantities = make(map[string]int64)
	}
	if _, ok := b.quantities[unit]; !ok {
		b.units = append(b.units, unit)
	}
	b.quantities[unit] = qty
}

// Len returns the number of distinct units in the bag.
func (b Bag) Len() int { return len(b.units) }

// Units returns the units in bag order.
func (b Bag) Units() []string {
	out := make([]string, len(b.units))
	copy(out, b.units)
	return out
}

// Contains reports whether the bag holds the unit (even at quantity zero).
func (b Bag) Contains(unit string) bool {
	_, ok := b.quantities[unit]
	return ok
}

// Unit returns the first unit in the bag, or "" if empty.
func (b Bag) Unit() string { return b.UnitAt(0) }

// UnitAt returns the unit at the given position in bag order, or "" when out
// of range.
func (b Bag) UnitAt(i int) string {
	if i < 0 || i >= len(b.units) {
		return ""
	}
	return b.units[i]
}

// Quantity returns the quantity of the first unit in the bag.
func (b Bag) Quantity() int64 { return b.QuantityAt(0) }

// QuantityOf returns the quantity held for the unit, zero if absent.
func (b Bag) QuantityOf(unit string) int64 { return b.quantities[unit] }

// QuantityAt returns the quantity at the given position in bag order.
func (b Bag) QuantityAt(i int) int64 {
	if i < 0 || i >= len(b.units) {
		return 0
	}
	return b.quantities[b.units[i]]
}

// Clone returns an independent copy of the bag.
func (b Bag) Clone() Bag {
	out := Bag{
		units:      make([]string, len(b.units)),
		quantities: make(map[string]int64, len(b.quantities)),
	}
	copy(out.units, b.units)
	for unit, qty := range b.quantities {
		out.quantities[unit] = qty
	}
	return out
}

// Add returns the unit-wise sum of two bags. Units from b keep their
// positions; new units from other are appended in other's order.
func (b Bag) Add(other Bag) Bag {
	out := b.Clone()
	for _, unit := range other.units {
		if _, ok := out.quantities[unit]; ok {
			out.quantities[unit] += other.quantities[unit]
		} else {
			out.set(unit, other.quantities[unit])
		}
	}
	return out
}

// Sub returns the unit-wise difference b - other. Quantities may go
// negative; callers validating ledger reserves check with HasNegative.
func (b Bag) Sub(other Bag) Bag {
	out := b.Clone()
	for _, unit := range other.units {
		if _, ok := out.quantities[unit]; ok {
			out.quantities[unit] -= other.quantities[unit]
		} else {
			out.set(unit, -other.quantities[unit])
		}
	}
	return out
}

// AddQuantity returns a bag with qty added to unit (appended if absent).
func (b Bag) AddQuantity(unit string, qty int64) Bag {
	out := b.Clone()
	if _, ok := out.quantities[unit]; ok {
		out.quantities[unit] += qty
	} else {
		out.set(unit, qty)
	}
	return out
}

// WithQuantity returns a bag with the unit's quantity replaced.
func (b Bag) WithQuantity(unit string, qty int64) Bag {
	out := b.Clone()
	out.set(unit, qty)
	return out
}

// Without returns a bag with the unit removed.
func (b Bag) Without(unit string) Bag {
	out := Bag{quantities: make(map[string]int64, len(b.quantities))}
	for _, u := range b.units {
		if u == unit {
			continue
		}
		out.set(u, b.quantities[u])
	}
	return out
}

// LovelaceLast returns a bag with the lovelace entry moved to the end,
// preserving the order of all other units. Pools order their pair with the
// native asset in the trailing position for non-ADA pairs.
func (b Bag) LovelaceLast() Bag {
	if !b.Contains(Lovelace) || b.Unit() != Lovelace {
		return b
	}
	out := Bag{quantities: make(map[string]int64, len(b.quantities))}
	for _, u := range b.units[1:] {
		out.set(u, b.quantities[u])
	}
	out.set(Lovelace, b.quantities[Lovelace])
	return out
}

// HasNegative reports whether any quantity in the bag is negative.
func (b Bag) HasNegative() bool {
	for _, qty := range b.quantities {
		if qty < 0 {
			return true
		}
	}
	return false
}

// Total returns the sum of all quantities in the bag.
func (b Bag) Total() int64 {
	var total int64
	for _, qty := range b.quantities {
		total += qty
	}
	return total
}

// Equal reports whether two bags hold the same units and quantities,
// ignoring order.
func (b Bag) Equal(other Bag) bool {
	if len(b.quantities) != len(other.quantities) {
		return false
	}
	for unit, qty := range b.quantities {
		if other.quantities[unit] != qty {
			return false
		}
	}
	return true
}

func (b Bag) String() string {
	var sb strings.Builder
	sb.WriteByte('{')
	for i, unit := range b.units {
		if i > 0 {
			sb.WriteString(", ")
		}
		fmt.Fprintf(&sb, "%s: %d", unit, b.quantities[unit])
	}
	sb.WriteByte('}')
	return sb.String()
}

// Single is a convenience for a one-unit bag.
func Single(unit string, qty int64) Bag {
	return New(unit, qty)
}
