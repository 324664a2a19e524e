package plutus

import (
	"encoding/hex"
	"fmt"
)

// Address is the on-datum form of a ledger address: a payment credential
// and an optional staking credential.
type Address struct {
	PaymentHash     []byte
	PaymentIsScript bool
	StakeHash       []byte
}

// HasStake reports whether the address carries a staking credential.
func (a Address) HasStake() bool { return len(a.StakeHash) > 0 }

func (a Address) String() string {
	if !a.HasStake() {
		return hex.EncodeToString(a.PaymentHash)
	}
	return hex.EncodeToString(a.PaymentHash) + ":" + hex.EncodeToString(a.StakeHash)
}

// DecodeAddress decodes the conventional two-field address record:
// constructor 0 holding a payment credential and an optional staking
// credential.
func DecodeAddress(d Data) (Address, error) {
	c, err := MustConstr(d, 0)
	if err != nil {
		return Address{}, fmt.Errorf("plutus: address: %w", err)
	}
	if len(c.Fields) != 2 {
		return Address{}, fmt.Errorf("plutus: address has %d fields, want 2", len(c.Fields))
	}
	payment, err := AsConstr(c.Fields[0])
	if err != nil {
		return Address{}, fmt.Errorf("plutus: payment credential: %w", err)
	}
	out := Address{}
	switch payment.Alternative {
	case 0, 1:
		hash, err := payment.BytesField(0)
		if err != nil {
			return Address{}, fmt.Errorf("plutus: payment credential: %w", err)
		}
		out.PaymentHash = hash
		out.PaymentIsScript = payment.Alternative == 1
	default:
		return Address{}, fmt.Errorf("plutus: payment credential alternative %d", payment.Alternative)
	}
	stake, err := AsConstr(c.Fields[1])
	if err != nil {
		return Address{}, fmt.Errorf("plutus: staking credential: %w", err)
	}
	switch stake.Alternative {
	case 0:
		// Some(StakingHash(Credential(hash))), three nested records.
		inner, err := stake.ConstrField(0)
		if err != nil {
			return Address{}, fmt.Errorf("plutus: staking credential: %w", err)
		}
		cred, err := inner.ConstrField(0)
		if err != nil {
			return Address{}, fmt.Errorf("plutus: staking credential: %w", err)
		}
		hash, err := cred.BytesField(0)
		if err != nil {
			return Address{}, fmt.Errorf("plutus: staking credential: %w", err)
		}
		out.StakeHash = hash
	case 1:
		// No staking part.
	default:
		return Address{}, fmt.Errorf("plutus: staking credential alternative %d", stake.Alternative)
	}
	return out, nil
}

// EncodeAddress builds the two-field address record from an Address.
func EncodeAddress(a Address) Constr {
	paymentAlt := uint64(0)
	if a.PaymentIsScript {
		paymentAlt = 1
	}
	payment := NewConstr(paymentAlt, Bytes(a.PaymentHash))
	var stake Constr
	if a.HasStake() {
		stake = NewConstr(0, NewConstr(0, NewConstr(0, Bytes(a.StakeHash))))
	} else {
		stake = NewConstr(1)
	}
	return NewConstr(0, payment, stake)
}

// DecodePartAddress decodes a bare credential record: constructor 0 holds a
// payment key hash, constructor 1 a reward (staking) key hash.
func DecodePartAddress(d Data) (hash []byte, reward bool, err error) {
	c, err := AsConstr(d)
	if err != nil {
		return nil, false, fmt.Errorf("plutus: part address: %w", err)
	}
	switch c.Alternative {
	case 0, 1:
		h, err := c.BytesField(0)
		if err != nil {
			return nil, false, fmt.Errorf("plutus: part address: %w", err)
		}
		return h, c.Alternative == 1, nil
	default:
		return nil, false, fmt.Errorf("plutus: part address alternative %d", c.Alternative)
	}
}
