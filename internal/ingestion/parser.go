package ingestion

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"DexLedger/internal/asset"
	"DexLedger/internal/dex"
)

// recordJSON is the wire format for a created script output. Field names
// use snake_case to match upstream producers; asset quantities travel as
// strings so arbitrary-precision producers cannot overflow the decoder.
type recordJSON struct {
	Address   string            `json:"address"`
	TxHash    string            `json:"tx_hash"`
	TxIndex   int               `json:"tx_index"`
	DatumCBOR string            `json:"datum_cbor"`
	Assets    map[string]string `json:"assets"`
}

// spentJSON is the wire format for a consumed output reference.
type spentJSON struct {
	TxHash  string `json:"tx_hash"`
	TxIndex int    `json:"tx_index"`
}

// ParseRecord converts a created-output payload into a Record.
func ParseRecord(data []byte) (dex.Record, error) {
	var j recordJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return dex.Record{}, fmt.Errorf("parse record: %w", err)
	}
	if j.Address == "" || j.TxHash == "" {
		return dex.Record{}, fmt.Errorf("parse record: missing address or tx_hash")
	}

	datum, err := hex.DecodeString(j.DatumCBOR)
	if err != nil {
		return dex.Record{}, fmt.Errorf("parse record datum: %w", err)
	}

	quantities := make(map[string]int64, len(j.Assets))
	for unit, qty := range j.Assets {
		n, err := strconv.ParseInt(qty, 10, 64)
		if err != nil {
			return dex.Record{}, fmt.Errorf("parse record quantity %q for %s: %w", qty, unit, err)
		}
		quantities[unit] = n
	}

	return dex.Record{
		Address:   j.Address,
		TxHash:    j.TxHash,
		TxIndex:   j.TxIndex,
		DatumCBOR: datum,
		Assets:    asset.FromMap(quantities),
	}, nil
}

// ParseSpent converts a spent-output payload into a UTXO ref "txhash#index".
func ParseSpent(data []byte) (string, error) {
	var j spentJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return "", fmt.Errorf("parse spent ref: %w", err)
	}
	if j.TxHash == "" {
		return "", fmt.Errorf("parse spent ref: missing tx_hash")
	}
	return fmt.Sprintf("%s#%d", j.TxHash, j.TxIndex), nil
}

// protocolFromSubject extracts the protocol token from a created-output
// subject, "" when the subject carries none.
func protocolFromSubject(subject string) string {
	if !strings.HasPrefix(subject, SubjectCreated+".") {
		return ""
	}
	return subject[len(SubjectCreated)+1:]
}
