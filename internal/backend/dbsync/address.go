package dbsync

import (
	"fmt"

	"github.com/btcsuite/btcd/btcutil/bech32"
)

const credLen = 28

// paymentCred extracts the 28-byte payment credential from a bech32
// shelley address. The first payload byte is the address header; the
// credential hash follows it.
func paymentCred(address string) ([]byte, error) {
	hrp, data, err := bech32.DecodeNoLimit(address)
	if err != nil {
		return nil, fmt.Errorf("dbsync: decode address %s: %w", address, err)
	}
	if hrp != "addr" && hrp != "addr_test" {
		return nil, fmt.Errorf("dbsync: address %s: unexpected prefix %q", address, hrp)
	}
	payload, err := bech32.ConvertBits(data, 5, 8, false)
	if err != nil {
		return nil, fmt.Errorf("dbsync: decode address %s: %w", address, err)
	}
	if len(payload) < 1+credLen {
		return nil, fmt.Errorf("dbsync: address %s: payload too short", address)
	}
	return payload[1 : 1+credLen], nil
}
